package vectorstore

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

type generation struct {
	docs map[string][]domain.Chunk
}

// Memory is an in-process store using brute-force cosine similarity. Readers
// see an immutable generation; writers build a new one and swap it in.
type Memory struct {
	mu  sync.Mutex
	seq int64
	gen atomic.Pointer[generation]
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	m := &Memory{}
	m.gen.Store(&generation{docs: map[string][]domain.Chunk{}})
	return m
}

func (m *Memory) Upsert(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	replacement := make([]domain.Chunk, len(chunks))
	copy(replacement, chunks)
	if err := PrepareChunks(documentID, replacement); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for i := range replacement {
		m.seq++
		replacement[i].Seq = m.seq
		replacement[i].CreatedAt = now
	}

	docs := maps.Clone(m.gen.Load().docs)
	if len(replacement) == 0 {
		delete(docs, documentID)
	} else {
		docs[documentID] = replacement
	}
	m.gen.Store(&generation{docs: docs})
	return nil
}

func (m *Memory) Search(ctx context.Context, query domain.Vector, k int, filter Filter) ([]domain.ScoredChunk, error) {
	if err := ValidateK(k); err != nil {
		return nil, err
	}
	gen := m.gen.Load()

	var scored []domain.ScoredChunk
	for docID, chunks := range gen.docs {
		if !filter.Matches(docID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if !filter.Includes(c) {
				continue
			}
			if err := query.CompatibleWith(c.Embedding); err != nil {
				return nil, err
			}
			scored = append(scored, domain.ScoredChunk{
				Chunk: c,
				Score: domain.CosineSimilarity(query.Values, c.Embedding.Values),
			})
		}
	}
	if len(scored) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	return Rank(scored, k), nil
}

func (m *Memory) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.gen.Load().docs
	if _, ok := current[documentID]; !ok {
		return nil
	}
	docs := maps.Clone(current)
	delete(docs, documentID)
	m.gen.Store(&generation{docs: docs})
	return nil
}

func (m *Memory) Count(ctx context.Context, filter Filter) (int, error) {
	total := 0
	for docID, chunks := range m.gen.Load().docs {
		if !filter.Matches(docID) {
			continue
		}
		for _, c := range chunks {
			if filter.Includes(c) {
				total++
			}
		}
	}
	return total, nil
}

func (m *Memory) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	chunks := m.gen.Load().docs[documentID]
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen.Store(&generation{docs: map[string][]domain.Chunk{}})
	return nil
}
