package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const (
	// IndexedDimensions is the width of the ANN-indexed embedding column.
	// Vectors of any other width are stored in embedding_bin only and searched
	// exactly.
	IndexedDimensions = 384
	// candidateFactor controls how many ANN candidates are re-scored per result.
	candidateFactor = 4
)

const chunkColumns = `id, document_id, chunk_index, chunk_text, page_number, char_start, char_end,
	model_id, dimensions, embedding_bin, created_at`

// ChunkRepository is the Postgres vector store. The fixed-width blob in
// embedding_bin is the source of truth for scoring; the pgvector column only
// orders ANN candidates.
type ChunkRepository struct {
	pool  *pgxpool.Pool
	retry retry.Policy
}

var _ vectorstore.Store = (*ChunkRepository)(nil)

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool, retry: DefaultDBRetryPolicy()}
}

// WithRetry overrides the transient-error retry policy.
func (r *ChunkRepository) WithRetry(p retry.Policy) *ChunkRepository {
	if p.Retryable == nil {
		p.Retryable = IsTransientDBError
	}
	r.retry = p
	return r
}

// Upsert replaces all chunks of documentID in one transaction, serialized per
// document by an advisory lock. Readers see either the old or the new set.
func (r *ChunkRepository) Upsert(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	replacement := make([]domain.Chunk, len(chunks))
	copy(replacement, chunks)
	if err := vectorstore.PrepareChunks(documentID, replacement); err != nil {
		return err
	}

	err := r.retry.Do(ctx, func(ctx context.Context) error {
		return r.replace(ctx, documentID, replacement)
	})
	if err != nil {
		return fmt.Errorf("replace chunks of %s: %w", documentID, err)
	}
	return nil
}

func (r *ChunkRepository) replace(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	if len(chunks) > 0 {
		now := time.Now().UTC()
		batch := &pgx.Batch{}
		for _, c := range chunks {
			var ann any
			if c.Embedding.Dimensions() == IndexedDimensions {
				ann = pgvector.NewVector(c.Embedding.Values)
			}
			batch.Queue(
				`INSERT INTO document_chunks
					(document_id, chunk_index, chunk_text, page_number, char_start, char_end,
					 model_id, dimensions, embedding_bin, embedding, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				documentID, c.Index, c.Text, c.Page, c.CharStart, c.CharEnd,
				c.Embedding.ModelID, c.Embedding.Dimensions(), domain.EncodeVector(c.Embedding.Values), ann, now,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range chunks {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE documents SET chunk_count = $2, updated_at = NOW() WHERE id = $1`,
		documentID, len(chunks),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Search ranks chunks by exact cosine similarity. Unscoped searches over
// indexed-width vectors take k*4 candidates from the HNSW index first, so a
// stored vector of another model or width is looked for up front; the ANN
// query would silently skip it.
func (r *ChunkRepository) Search(ctx context.Context, query domain.Vector, k int, filter vectorstore.Filter) ([]domain.ScoredChunk, error) {
	if err := vectorstore.ValidateK(k); err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		if err := r.checkCompatible(ctx, query, filter); err != nil {
			return err
		}
		var err error
		chunks, err = r.candidates(ctx, query, k, filter)
		return err
	})
	if domain.CodeOf(err) == domain.ErrCodeDimensionMismatch {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if err := query.CompatibleWith(c.Embedding); err != nil {
			return nil, err
		}
		scored = append(scored, domain.ScoredChunk{
			Chunk: c,
			Score: domain.CosineSimilarity(query.Values, c.Embedding.Values),
		})
	}
	return vectorstore.Rank(scored, k), nil
}

// scope renders filter as SQL conditions with placeholders numbered from
// next.
func scope(filter vectorstore.Filter, next int) (string, []any) {
	var conds []string
	var args []any
	if len(filter.DocumentIDs) > 0 {
		conds = append(conds, fmt.Sprintf("document_id = ANY($%d)", next+len(args)))
		args = append(args, filter.DocumentIDs)
	}
	if filter.MinPage > 0 {
		conds = append(conds, fmt.Sprintf("page_number >= $%d", next+len(args)))
		args = append(args, filter.MinPage)
	}
	return strings.Join(conds, " AND "), args
}

// checkCompatible fails with a DimensionMismatchError when any in-scope
// chunk was embedded by another model or at another width.
func (r *ChunkRepository) checkCompatible(ctx context.Context, query domain.Vector, filter vectorstore.Filter) error {
	sql := `SELECT model_id, dimensions FROM document_chunks WHERE (model_id <> $1 OR dimensions <> $2)`
	where, args := scope(filter, 3)
	if where != "" {
		sql += " AND " + where
	}
	sql += " LIMIT 1"

	var model string
	var dims int
	err := r.pool.QueryRow(ctx, sql, append([]any{query.ModelID, query.Dimensions()}, args...)...).Scan(&model, &dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return domain.DimensionMismatch(query.ModelID, query.Dimensions(), model, dims)
}

func (r *ChunkRepository) candidates(ctx context.Context, query domain.Vector, k int, filter vectorstore.Filter) ([]domain.Chunk, error) {
	var rows pgx.Rows
	var err error
	switch where, args := scope(filter, 1); {
	case where != "":
		rows, err = r.pool.Query(ctx,
			`SELECT `+chunkColumns+` FROM document_chunks WHERE `+where+` ORDER BY id`, args...)
	case query.Dimensions() == IndexedDimensions:
		rows, err = r.pool.Query(ctx,
			`SELECT `+chunkColumns+` FROM document_chunks
			 WHERE embedding IS NOT NULL
			 ORDER BY embedding <=> $1
			 LIMIT $2`,
			pgvector.NewVector(query.Values), k*candidateFactor,
		)
	default:
		rows, err = r.pool.Query(ctx, `SELECT `+chunkColumns+` FROM document_chunks ORDER BY id`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (r *ChunkRepository) Delete(ctx context.Context, documentID string) error {
	return r.retry.Do(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
		return err
	})
}

func (r *ChunkRepository) Count(ctx context.Context, filter vectorstore.Filter) (int, error) {
	sql := `SELECT COUNT(*) FROM document_chunks`
	where, args := scope(filter, 1)
	if where != "" {
		sql += " WHERE " + where
	}
	var n int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *ChunkRepository) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (r *ChunkRepository) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_chunks`)
	return err
}

func scanChunks(rows pgx.Rows) ([]domain.Chunk, error) {
	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		var dims int
		var blob []byte
		if err := rows.Scan(&c.Seq, &c.DocumentID, &c.Index, &c.Text, &c.Page, &c.CharStart, &c.CharEnd,
			&c.Embedding.ModelID, &dims, &blob, &c.CreatedAt); err != nil {
			return nil, err
		}
		values, err := domain.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", c.Index, c.DocumentID, err)
		}
		if len(values) != dims {
			return nil, fmt.Errorf("chunk %d of %s: blob holds %d values, row says %d", c.Index, c.DocumentID, len(values), dims)
		}
		c.Embedding.Values = values
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
