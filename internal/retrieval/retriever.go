// Package retrieval selects the chunks that fit a prompt's context budget.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/phuslu/log"
)

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) (domain.Vector, error)
}

// Searcher ranks stored chunks against a vector.
type Searcher interface {
	Search(ctx context.Context, query domain.Vector, k int, filter vectorstore.Filter) ([]domain.ScoredChunk, error)
}

// Retriever embeds a query, searches the store and trims the results to a
// character budget.
type Retriever struct {
	embedder QueryEmbedder
	store    Searcher
}

// NewRetriever creates a retriever.
func NewRetriever(embedder QueryEmbedder, store Searcher) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve returns the top-k chunks in score order, keeping chunks while
// their combined text stays within maxContextChars. Chunks are never split;
// accumulation stops at the first chunk that would overflow the budget.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, k, maxContextChars int, filter vectorstore.Filter) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if maxContextChars <= 0 {
		return nil, domain.InvalidArgumentf("max context chars must be positive, got %d", maxContextChars)
	}
	if err := vectorstore.ValidateK(k); err != nil {
		return nil, err
	}

	query, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	candidates, err := r.store.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}

	selected := make([]domain.ScoredChunk, 0, len(candidates))
	used := 0
	for _, c := range candidates {
		size := utf8.RuneCountInString(c.Chunk.Text)
		if used+size > maxContextChars {
			break
		}
		used += size
		selected = append(selected, c)
	}

	log.Debug().
		Int("k", k).
		Int("candidates", len(candidates)).
		Int("selected", len(selected)).
		Int("context_chars", used).
		Msg("retrieved context")
	return selected, nil
}

// FormatContext renders retrieved chunks as a prompt context block.
func FormatContext(chunks []domain.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		page := "N/A"
		if c.Chunk.Page > 0 {
			page = fmt.Sprintf("%d", c.Chunk.Page)
		}
		parts = append(parts, fmt.Sprintf("[Chunk %d - Page %s, Similarity: %.3f]\n%s", i+1, page, c.Score, c.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}
