//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newTestPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pc)
	return pool
}

func createTestDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, name string) *domain.Document {
	t.Helper()
	id := domain.DocumentID([]byte(name + uuid.NewString()))
	doc := &domain.Document{
		ID:          id,
		Name:        name,
		ContentType: "application/pdf",
		SourceKey:   id,
		Size:        1024,
		Status:      domain.DocumentStatusUploaded,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}
