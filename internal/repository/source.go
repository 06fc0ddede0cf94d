package repository

import (
	"context"
	"errors"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceRepository keeps uploaded source bytes in Postgres, keyed by document
// id. It is used when no object storage is configured.
type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

func (r *SourceRepository) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_sources (document_id, content)
		 VALUES ($1, $2)
		 ON CONFLICT (document_id) DO UPDATE SET content = EXCLUDED.content`,
		key, data,
	)
	return err
}

func (r *SourceRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT content FROM document_sources WHERE document_id = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *SourceRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_sources WHERE document_id = $1`, key)
	return err
}
