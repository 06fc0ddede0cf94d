package service

import (
	"context"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
)

// TxRepositories are the stores an upload writes in one unit: the document
// row, its source bytes and the queued ingestion job.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	Jobs() IngestionJobRepositoryInterface
	// Sources joins the transaction only when source bytes live in Postgres.
	Sources() storage.Store
}

// TxRunner runs fn in a transaction that commits when fn returns nil.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
