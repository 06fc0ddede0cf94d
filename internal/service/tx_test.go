package service

import (
	"context"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
)

// fakeTxRepos hands the in-memory fakes to transactional code.
type fakeTxRepos struct {
	documents DocumentRepositoryInterface
	jobs      IngestionJobRepositoryInterface
	sources   storage.Store
}

func (r *fakeTxRepos) Documents() DocumentRepositoryInterface { return r.documents }
func (r *fakeTxRepos) Jobs() IngestionJobRepositoryInterface  { return r.jobs }
func (r *fakeTxRepos) Sources() storage.Store                 { return r.sources }

// fakeTxRunner records whether a transaction was opened and how it ended.
// The fakes do not undo writes on rollback.
type fakeTxRunner struct {
	repos      TxRepositories
	called     bool
	rolledBack bool
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	r.called = true
	if err := fn(r.repos); err != nil {
		r.rolledBack = true
		return err
	}
	return nil
}
