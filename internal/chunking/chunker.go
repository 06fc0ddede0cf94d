package chunking

import (
	"unicode"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// Config controls chunk sizes. Sizes are measured in characters (runes).
type Config struct {
	MaxChunkSize int
	Overlap      int
}

// DefaultConfig provides sane defaults for OCR'd policy and invoice text.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 1500,
		Overlap:      300,
	}
}

// Validate rejects sizes that cannot make progress.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return domain.Configurationf("max chunk size must be positive, got %d", c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return domain.Configurationf("chunk overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.MaxChunkSize {
		return domain.Configurationf("chunk overlap %d must be smaller than max chunk size %d", c.Overlap, c.MaxChunkSize)
	}
	return nil
}

// Chunker splits document text into overlapping windows.
type Chunker struct {
	cfg Config
}

// NewChunker creates a chunker with the given defaults.
func NewChunker(cfg Config) *Chunker {
	return &Chunker{cfg: cfg}
}

// Config returns the chunker's defaults.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk splits text into chunks of at most maxChunkSize characters. Each chunk
// after the first starts exactly overlap characters before the previous end.
func (c *Chunker) Chunk(documentID, text string, maxChunkSize, overlap int) ([]domain.Chunk, error) {
	spans, err := Split(text, maxChunkSize, overlap)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return []domain.Chunk{}, nil
	}

	runes := []rune(text)
	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			DocumentID: documentID,
			Index:      i,
			Text:       string(runes[s.Start:s.End]),
			CharStart:  s.Start,
			CharEnd:    s.End,
		}
	}
	return chunks, nil
}

// ChunkDocument chunks the document's OCR text with the configured sizes and
// assigns each chunk the page its first character falls on.
func (c *Chunker) ChunkDocument(doc *domain.Document) ([]domain.Chunk, error) {
	chunks, err := c.Chunk(doc.ID, doc.Text, c.cfg.MaxChunkSize, c.cfg.Overlap)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Page = doc.PageAt(chunks[i].CharStart)
	}
	return chunks, nil
}

// Span is a half-open rune range.
type Span struct {
	Start int
	End   int
}

// Split computes chunk boundaries without copying text.
func Split(text string, maxChunkSize, overlap int) ([]Span, error) {
	if err := (Config{MaxChunkSize: maxChunkSize, Overlap: overlap}).Validate(); err != nil {
		return nil, err
	}
	if isBlank(text) {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= maxChunkSize {
		return []Span{{Start: 0, End: n}}, nil
	}

	spans := make([]Span, 0, n/(maxChunkSize-overlap)+1)
	start := 0
	for {
		end := start + maxChunkSize
		if end >= n {
			spans = append(spans, Span{Start: start, End: n})
			break
		}
		end = cutPoint(runes, start, end, maxChunkSize, overlap)
		spans = append(spans, Span{Start: start, End: end})
		start = end - overlap
	}
	return spans, nil
}

// cutPoint picks the end of the chunk starting at start. Candidates lie in
// (minCut, end]; minCut keeps every chunk longer than the overlap so the
// window always advances.
func cutPoint(runes []rune, start, end, maxChunkSize, overlap int) int {
	minCut := start + maxChunkSize/2
	if floor := start + overlap; minCut < floor {
		minCut = floor
	}

	for i := end; i > minCut; i-- {
		if i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if i >= 2 && unicode.IsSpace(runes[i-1]) && isSentenceEnd(runes[i-2]) {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
