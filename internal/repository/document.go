package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, name, content_type, source_key, size, ocr_text, page_offsets, status,
	failed_stage, error, chunk_count, model_id, metadata, ingested_at, created_at, updated_at`

// DocumentRepository persists documents and their pipeline state.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		doc.ID, doc.Name, doc.ContentType, doc.SourceKey, doc.Size, doc.Text, toInt32s(doc.PageOffsets), doc.Status,
		nullableString(string(doc.FailedStage)), nullableString(doc.Error), doc.ChunkCount, nullableString(doc.ModelID),
		metadataJSON(doc.Metadata), doc.IngestedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainErrorWithCause(domain.ErrCodeAlreadyExists, "document already exists", err)
		}
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Update writes the mutable state of a document: source, OCR text, pipeline
// status and bookkeeping.
func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET name = $2, content_type = $3, source_key = $4, size = $5, ocr_text = $6, page_offsets = $7,
		     status = $8, failed_stage = $9, error = $10, chunk_count = $11, model_id = $12, metadata = $13,
		     ingested_at = $14, updated_at = $15
		 WHERE id = $1`,
		doc.ID, doc.Name, doc.ContentType, doc.SourceKey, doc.Size, doc.Text, toInt32s(doc.PageOffsets),
		doc.Status, nullableString(string(doc.FailedStage)), nullableString(doc.Error), doc.ChunkCount,
		nullableString(doc.ModelID), metadataJSON(doc.Metadata), doc.IngestedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document %s: %w", doc.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) List(ctx context.Context, opts domain.DocumentListOptions) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	var where []string
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.AfterID != "" {
		args = append(args, opts.AfterCreatedAt, opts.AfterID)
		where = append(where, fmt.Sprintf("(created_at < $%d OR (created_at = $%d AND id > $%d))",
			len(args)-1, len(args)-1, len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// DeleteAll removes every document. Chunks, sources, jobs and records cascade.
func (r *DocumentRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(chunk_count), 0) FROM documents GROUP BY status`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.DocumentStats{ByStatus: map[domain.DocumentStatus]int{}}
	for rows.Next() {
		var status domain.DocumentStatus
		var count, chunks int64
		if err := rows.Scan(&status, &count, &chunks); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = int(count)
		stats.TotalDocuments += int(count)
		stats.TotalChunks += int(chunks)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalDocuments > 0 {
		stats.AvgChunksPerDocument = float64(stats.TotalChunks) / float64(stats.TotalDocuments)
	}
	return stats, nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var offsets []int32
	var failedStage, errMsg, modelID pgtype.Text
	var metadata []byte
	if err := row.Scan(
		&doc.ID, &doc.Name, &doc.ContentType, &doc.SourceKey, &doc.Size, &doc.Text, &offsets, &doc.Status,
		&failedStage, &errMsg, &doc.ChunkCount, &modelID, &metadata, &doc.IngestedAt, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.PageOffsets = make([]int, len(offsets))
	for i, o := range offsets {
		doc.PageOffsets[i] = int(o)
	}
	if failedStage.Valid {
		doc.FailedStage = domain.Stage(failedStage.String)
	}
	if errMsg.Valid {
		doc.Error = errMsg.String
	}
	if modelID.Valid {
		doc.ModelID = modelID.String
	}
	if len(metadata) > 0 {
		doc.Metadata = json.RawMessage(metadata)
	}
	return &doc, nil
}

func toInt32s(values []int) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(v)
	}
	return out
}

func metadataJSON(m json.RawMessage) string {
	if len(m) == 0 {
		return "{}"
	}
	return string(m)
}
