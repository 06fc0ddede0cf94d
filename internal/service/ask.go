package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/llm"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/phuslu/log"
)

// NoInformationAnswer is returned when retrieval finds nothing to answer from.
const NoInformationAnswer = "I couldn't find relevant information in the policy document for your question. " +
	"Please try rephrasing or ask about a different topic."

const maxAnswerSources = 3

// ContextRetriever selects chunks for a query within a context budget.
type ContextRetriever interface {
	Retrieve(ctx context.Context, queryText string, k, maxContextChars int, filter vectorstore.Filter) ([]domain.ScoredChunk, error)
}

// RetrievalConfig holds the default top-k and context budget.
type RetrievalConfig struct {
	TopK            int
	MaxContextChars int
}

func (c RetrievalConfig) topK(k int) int {
	if k > 0 {
		return k
	}
	return c.TopK
}

// SearchService runs plain semantic search.
type SearchService struct {
	retriever ContextRetriever
	cfg       RetrievalConfig
}

func NewSearchService(retriever ContextRetriever, cfg RetrievalConfig) *SearchService {
	return &SearchService{retriever: retriever, cfg: cfg}
}

type SearchInput struct {
	Query       string
	DocumentIDs []string
	TopK        int
	MinPage     int
}

func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]domain.ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	return s.retriever.Retrieve(ctx, input.Query, s.cfg.topK(input.TopK), s.cfg.MaxContextChars,
		vectorstore.Filter{DocumentIDs: input.DocumentIDs, MinPage: input.MinPage})
}

// AskConfig configures question answering.
type AskConfig struct {
	Retrieval RetrievalConfig
	Options   llm.Options
	Retry     retry.Policy
}

// AskService answers questions from retrieved policy sections.
type AskService struct {
	retriever ContextRetriever
	completer llm.Completer
	cfg       AskConfig
}

func NewAskService(retriever ContextRetriever, completer llm.Completer, cfg AskConfig) *AskService {
	if cfg.Retry.Name == "" {
		cfg.Retry = retry.DefaultPolicy("ask")
	}
	return &AskService{retriever: retriever, completer: completer, cfg: cfg}
}

type AskInput struct {
	Question    string
	DocumentIDs []string
	TopK        int
	MinPage     int
}

type AskResult struct {
	Answer  string               `json:"answer"`
	Sources []domain.ScoredChunk `json:"sources"`
}

// Ask retrieves context for the question and asks the model. When nothing
// relevant is retrieved the model is not called.
func (s *AskService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "AskService.Ask", telemetry.SpanAttributes{
		Operation: "ask",
	})
	defer span.End()

	chunks, err := s.retriever.Retrieve(ctx, input.Question, s.cfg.Retrieval.topK(input.TopK),
		s.cfg.Retrieval.MaxContextChars, vectorstore.Filter{DocumentIDs: input.DocumentIDs, MinPage: input.MinPage})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(chunks) == 0 {
		return &AskResult{Answer: NoInformationAnswer, Sources: []domain.ScoredChunk{}}, nil
	}

	prompt := BuildAskPrompt(input.Question, chunks)
	var answer string
	err = s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		answer, err = s.completer.Complete(ctx, prompt, s.cfg.Options)
		return err
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	log.Debug().Int("sources", len(chunks)).Int("answer_chars", len(answer)).Msg("question answered")

	sources := chunks
	if len(sources) > maxAnswerSources {
		sources = sources[:maxAnswerSources]
	}
	return &AskResult{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

// BuildAskPrompt renders the policy-assistant prompt.
func BuildAskPrompt(question string, chunks []domain.ScoredChunk) string {
	sections := make([]string, len(chunks))
	for i, c := range chunks {
		page := "N/A"
		if c.Chunk.Page > 0 {
			page = fmt.Sprintf("%d", c.Chunk.Page)
		}
		sections[i] = fmt.Sprintf("[Section %d - Page %s]\n%s", i+1, page, c.Chunk.Text)
	}

	var b strings.Builder
	b.WriteString("You are a helpful insurance policy assistant. Answer the user's question based ONLY on the provided policy sections.\n\n")
	b.WriteString("USER QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nRELEVANT POLICY SECTIONS:\n")
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString(`

Instructions:
1. Answer the question directly and concisely
2. Quote specific policy text when relevant (use quotes)
3. If the information isn't in the provided sections, clearly state "This information is not covered in the available policy sections"
4. Use clear, simple language that's easy to understand
5. Be helpful and professional
6. Keep your answer focused and avoid unnecessary elaboration

Answer:`)
	return b.String()
}
