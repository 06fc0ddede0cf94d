package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAuth executes 'docrag auth <args>' against the temp config.
func runAuth(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "docrag", SilenceUsage: true, SilenceErrors: true}
	AddPersistentFlags(root)
	root.AddCommand(AuthCmd(), ConfigCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAuthLogin_StoresCredentials(t *testing.T) {
	useTempConfig(t)

	out, err := runAuth(t, "", "auth", "login", "--api-key", testKey, "--url", "http://localhost:8080")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully logged in")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, testKey, config.APIKey)
	assert.Equal(t, "http://localhost:8080", config.APIURL)
}

func TestAuthLogin_ReadsKeyFromStdin(t *testing.T) {
	useTempConfig(t)

	_, err := runAuth(t, testKey+"\n", "auth", "login")
	require.NoError(t, err)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, testKey, config.APIKey)
	assert.Equal(t, defaultAPIURL, config.APIURL)
}

func TestAuthLogin_KeepsDefaults(t *testing.T) {
	path := useTempConfig(t)
	writeConfigFile(t, path, GlobalConfig{APIKey: testGlobalKey, APIURL: "http://old", DefaultSchema: "invoice", TopK: 7})

	require.NoError(t, runAuthLogin(testKey, "http://new"))

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, &GlobalConfig{APIKey: testKey, APIURL: "http://new", DefaultSchema: "invoice", TopK: 7}, config)
}

func TestAuthLogin_ValidatesKeyFormat(t *testing.T) {
	useTempConfig(t)

	err := runAuthLogin("invalid_key", "http://localhost:8080")
	assert.ErrorContains(t, err, "invalid API key")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestAuthLogout(t *testing.T) {
	path := useTempConfig(t)
	writeConfigFile(t, path, GlobalConfig{APIKey: testKey, APIURL: "http://localhost:8080"})

	out, err := runAuth(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully logged out")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)

	_, err = runAuth(t, "", "auth", "logout")
	assert.NoError(t, err, "logout is idempotent")
}

func TestAuthStatus_Sources(t *testing.T) {
	t.Run("global config", func(t *testing.T) {
		path := useTempConfig(t)
		writeConfigFile(t, path, GlobalConfig{APIKey: testKey, APIURL: "http://localhost:8080"})

		out, err := runAuth(t, "", "auth", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Source: global_config")
		assert.Contains(t, out, "API Key: drg_012...cdef")
		assert.NotContains(t, out, testKey)
	})

	t.Run("env", func(t *testing.T) {
		useTempConfig(t)
		t.Setenv(envAPIKey, testEnvKey)
		t.Setenv(envAPIURL, "http://env.example.com")

		out, err := runAuth(t, "", "auth", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Source: env_file")
		assert.Contains(t, out, "API URL: http://env.example.com")
	})

	t.Run("none", func(t *testing.T) {
		useTempConfig(t)

		out, err := runAuth(t, "", "auth", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Not authenticated")
	})
}

func TestAuthStatus_JSONOutput(t *testing.T) {
	path := useTempConfig(t)
	writeConfigFile(t, path, GlobalConfig{APIKey: testKey, APIURL: "http://localhost:8080"})

	out, err := runAuth(t, "", "auth", "status", "--output")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, true, result["authenticated"])
	assert.Equal(t, "global_config", result["source"])
	assert.Equal(t, "drg_012...cdef", result["api_key"])
	assert.NotContains(t, result, "server")
}

func TestAuthStatus_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid API key"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	useTempConfig(t)

	out, err := runAuth(t, "", "auth", "status", "--check", "--api-key", testKey, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Server: ok")

	out, err = runAuth(t, "", "auth", "status", "--check", "--api-key", testEnvKey, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Server: rejected")
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "drg_012...cdef", maskAPIKey(testKey))
	assert.Equal(t, "***", maskAPIKey("short"))
}
