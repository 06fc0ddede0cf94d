package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCmd_SetShowUnset(t *testing.T) {
	useTempConfig(t)

	_, err := runAuth(t, "", "config", "set", "default-schema", "invoice")
	require.NoError(t, err)
	_, err = runAuth(t, "", "config", "set", "top-k", "8")
	require.NoError(t, err)
	_, err = runAuth(t, "", "config", "set", "api-url", "http://rag.internal:8080")
	require.NoError(t, err)

	out, err := runAuth(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default-schema  invoice")
	assert.Contains(t, out, "top-k           8")
	assert.Contains(t, out, "api-url         http://rag.internal:8080")

	_, err = runAuth(t, "", "config", "unset", "top-k")
	require.NoError(t, err)
	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Zero(t, config.TopK)
	assert.Equal(t, "invoice", config.DefaultSchema)
}

func TestUpdateSetting_Validation(t *testing.T) {
	useTempConfig(t)

	assert.ErrorContains(t, updateSetting("top-k", "zero"), "positive integer")
	assert.ErrorContains(t, updateSetting("top-k", "-1"), "positive integer")
	assert.ErrorContains(t, updateSetting("api-url", "localhost"), "absolute URL")
	assert.ErrorContains(t, updateSetting("color", "blue"), "unknown key")
}

func TestExtractCmd_UsesDefaultSchema(t *testing.T) {
	srv, reqs := fakeServer(t, 200, Record{Schema: "invoice", Status: "complete"})
	useTempConfig(t)
	require.NoError(t, updateSetting("default-schema", "invoice"))

	_, err := execCLI(t, srv.URL, "extract", "--document", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "invoice", (*reqs)[0].Body["schema"])
}

func TestExtractCmd_RequiresSchema(t *testing.T) {
	srv, reqs := fakeServer(t, 200, Record{})
	useTempConfig(t)

	_, err := execCLI(t, srv.URL, "extract", "--document", "doc-1")
	assert.ErrorContains(t, err, "--schema is required")
	assert.Empty(t, *reqs)
}

func TestSearchCmd_UsesSavedTopK(t *testing.T) {
	srv, reqs := fakeServer(t, 200, []Source{})
	useTempConfig(t)
	require.NoError(t, updateSetting("top-k", "9"))

	_, err := execCLI(t, srv.URL, "search", "deductible")
	require.NoError(t, err)
	assert.EqualValues(t, 9, (*reqs)[0].Body["top_k"])

	_, err = execCLI(t, srv.URL, "search", "deductible", "-k", "2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, (*reqs)[1].Body["top_k"])
}
