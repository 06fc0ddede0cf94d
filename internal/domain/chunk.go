package domain

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Chunk is a bounded span of a document's text with its embedding.
// CharStart and CharEnd are rune offsets into the document text, half-open.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	CharStart  int
	CharEnd    int
	Page       int
	Embedding  Vector
	CreatedAt  time.Time
	Seq        int64
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Vector is an embedding together with the model that produced it.
type Vector struct {
	ModelID string
	Values  []float32
}

// Dimensions returns the vector length.
func (v Vector) Dimensions() int {
	return len(v.Values)
}

// CompatibleWith returns a DimensionMismatchError when the two vectors were
// not produced by the same model version.
func (v Vector) CompatibleWith(other Vector) error {
	if v.ModelID != other.ModelID || len(v.Values) != len(other.Values) {
		return DimensionMismatch(v.ModelID, len(v.Values), other.ModelID, len(other.Values))
	}
	return nil
}

// MarshalBinary encodes the values as little-endian float32, 4 bytes each.
func (v Vector) MarshalBinary() ([]byte, error) {
	return EncodeVector(v.Values), nil
}

// UnmarshalBinary decodes a blob produced by MarshalBinary. ModelID is left untouched.
func (v *Vector) UnmarshalBinary(data []byte) error {
	values, err := DecodeVector(data)
	if err != nil {
		return err
	}
	v.Values = values
	return nil
}

// EncodeVector packs float32 values into a fixed-width blob.
func EncodeVector(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, f := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a blob written by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(data))
	}
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return values, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, computed
// in float64. Zero vectors have similarity 0. Lengths must match.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk Index cannot be negative")
	}
	if c.CharStart < 0 || c.CharEnd < c.CharStart {
		return fmt.Errorf("chunk offsets are invalid: [%d,%d)", c.CharStart, c.CharEnd)
	}
	if len(c.Embedding.Values) == 0 {
		return fmt.Errorf("chunk %d has no embedding", c.Index)
	}
	return nil
}
