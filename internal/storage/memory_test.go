package storage

import (
	"context"
	"testing"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	data := []byte("policy schedule")
	require.NoError(t, m.Put(ctx, "doc-1", data, "text/plain"))
	data[0] = 'X'

	got, err := m.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "policy schedule", string(got))

	require.NoError(t, m.Delete(ctx, "doc-1"))
	_, err = m.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestMemory_DeleteMissingKey(t *testing.T) {
	assert.NoError(t, NewMemory().Delete(context.Background(), "missing"))
}
