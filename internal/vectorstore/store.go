// Package vectorstore defines chunk storage with similarity search.
package vectorstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// Store persists embedded chunks and ranks them against a query vector.
type Store interface {
	// Upsert replaces every chunk of documentID. On failure the previous
	// chunks stay in place.
	Upsert(ctx context.Context, documentID string, chunks []domain.Chunk) error
	// Search returns at most k chunks ordered by descending cosine similarity,
	// ties broken by insertion order.
	Search(ctx context.Context, query domain.Vector, k int, filter Filter) ([]domain.ScoredChunk, error)
	Delete(ctx context.Context, documentID string) error
	Count(ctx context.Context, filter Filter) (int, error)
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
	Clear(ctx context.Context) error
}

// Filter restricts a search. The zero value matches the whole store.
type Filter struct {
	DocumentIDs []string
	// MinPage keeps chunks starting on this page or later. Zero disables the
	// bound; chunks of unknown page (0) are out of scope once it is set.
	MinPage int
}

// Matches reports whether documentID is in scope.
func (f Filter) Matches(documentID string) bool {
	if len(f.DocumentIDs) == 0 {
		return true
	}
	return slices.Contains(f.DocumentIDs, documentID)
}

// Includes reports whether chunk is in scope.
func (f Filter) Includes(chunk domain.Chunk) bool {
	return f.Matches(chunk.DocumentID) && chunk.Page >= f.MinPage
}

// Scoped reports whether the filter narrows the store at all.
func (f Filter) Scoped() bool {
	return len(f.DocumentIDs) > 0 || f.MinPage > 0
}

// ValidateK rejects non-positive result counts.
func ValidateK(k int) error {
	if k <= 0 {
		return domain.InvalidArgumentf("k must be positive, got %d", k)
	}
	return nil
}

// Rank orders scored chunks by score descending, then Seq ascending, and
// keeps the first k.
func Rank(scored []domain.ScoredChunk, k int) []domain.ScoredChunk {
	slices.SortStableFunc(scored, func(a, b domain.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Seq, b.Chunk.Seq)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// PrepareChunks checks a replacement set before it is written: every chunk
// belongs to documentID, carries an embedding, and all embeddings come from
// one model version.
func PrepareChunks(documentID string, chunks []domain.Chunk) error {
	for i := range chunks {
		chunks[i].DocumentID = documentID
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return domain.InvalidArgumentf("%v", err)
		}
		if i > 0 {
			if err := chunks[0].Embedding.CompatibleWith(chunks[i].Embedding); err != nil {
				return err
			}
		}
	}
	return nil
}
