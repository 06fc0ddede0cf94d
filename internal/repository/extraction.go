package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, document_id, schema_name, status, fields, problems, warnings, raw_response, attempts, created_at`

// ExtractionRepository stores structured records together with the raw model
// response they were parsed from.
type ExtractionRepository struct {
	db dbtx
}

func NewExtractionRepository(pool *pgxpool.Pool) *ExtractionRepository {
	return &ExtractionRepository{db: pool}
}

func (r *ExtractionRepository) Create(ctx context.Context, rec *domain.StructuredRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	problems, err := json.Marshal(nonNil(rec.Problems))
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}
	warnings, err := json.Marshal(nonNil(rec.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO extraction_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, nullableString(rec.DocumentID), rec.Schema, rec.Status, string(fields), string(problems),
		string(warnings), rec.RawResponse, rec.Attempts, rec.CreatedAt,
	)
	return err
}

func (r *ExtractionRepository) GetByID(ctx context.Context, id string) (*domain.StructuredRecord, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM extraction_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByDocument returns a document's records, newest first.
func (r *ExtractionRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.StructuredRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM extraction_records WHERE document_id = $1 ORDER BY created_at DESC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.StructuredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*domain.StructuredRecord, error) {
	var rec domain.StructuredRecord
	var documentID *string
	var fields, problems, warnings []byte
	if err := row.Scan(&rec.ID, &documentID, &rec.Schema, &rec.Status, &fields, &problems, &warnings,
		&rec.RawResponse, &rec.Attempts, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if documentID != nil {
		rec.DocumentID = *documentID
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if err := json.Unmarshal(problems, &rec.Problems); err != nil {
		return nil, fmt.Errorf("decode problems: %w", err)
	}
	if err := json.Unmarshal(warnings, &rec.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	return &rec, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
