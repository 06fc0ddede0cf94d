package repository

import (
	"context"
	"fmt"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner hands out repositories bound to one pgx transaction. Document,
// job and source rows are written together so an upload never leaves a
// document without its queued job. With an external source store, the
// source bytes are written outside the transaction and may outlive a
// rollback.
type TxRunner struct {
	pool    *pgxpool.Pool
	sources storage.Store
	opts    pgx.TxOptions
}

func NewTxRunner(pool *pgxpool.Pool, externalSources storage.Store) *TxRunner {
	return &TxRunner{
		pool:    pool,
		sources: externalSources,
		opts:    pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// WithTx commits when fn returns nil and rolls back otherwise, including when
// fn panics.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(&txRepos{tx: tx, sources: r.sources})
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

type txRepos struct {
	tx      pgx.Tx
	sources storage.Store
}

func (r *txRepos) Documents() service.DocumentRepositoryInterface {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r *txRepos) Jobs() service.IngestionJobRepositoryInterface {
	return NewIngestionJobRepositoryWithTx(r.tx)
}

func (r *txRepos) Sources() storage.Store {
	if r.sources == nil {
		return NewSourceRepositoryWithTx(r.tx)
	}
	return r.sources
}
