package embedding

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultHashingDimensions matches the width of the document_chunks.embedding column.
	DefaultHashingDimensions = 384
	hashingVersion           = "hashing-v1"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {},
}

// HashingModel is a local signed feature-hashing embedder. Unigrams and
// bigrams of non-stopword tokens are hashed into a fixed number of buckets
// with sublinear term frequency, then L2-normalized. It needs no network and
// is fully deterministic.
type HashingModel struct {
	dims int
}

// NewHashingModel creates a hashing model. dims <= 0 selects the default.
func NewHashingModel(dims int) *HashingModel {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingModel{dims: dims}
}

func (m *HashingModel) ID() string {
	return fmt.Sprintf("%s-%d", hashingVersion, m.dims)
}

func (m *HashingModel) Dimensions() int {
	return m.dims
}

func (m *HashingModel) Load(ctx context.Context) error {
	return ctx.Err()
}

func (m *HashingModel) Close() error {
	return nil
}

// EmbedBatch embeds each text independently.
func (m *HashingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embed(text)
	}
	return out, nil
}

func (m *HashingModel) embed(text string) []float32 {
	tokens := Tokenize(text)

	tf := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		tf[tok]++
		if i > 0 {
			tf[tokens[i-1]+" "+tok]++
		}
	}

	acc := make([]float64, m.dims)
	for _, feature := range slices.Sorted(maps.Keys(tf)) {
		count := tf[feature]
		h := xxhash.Sum64String(feature)
		idx := h % uint64(m.dims)
		weight := 1 + math.Log(float64(count))
		if (h>>32)&1 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, m.dims)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// Tokenize lower-cases text and splits it into letter/digit runs, dropping
// stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
