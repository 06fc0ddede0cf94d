package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_BinaryRoundTrip(t *testing.T) {
	v := Vector{ModelID: "m", Values: []float32{0, 1, -1.5, float32(math.Pi), 1e-7}}

	blob, err := v.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, blob, 4*len(v.Values))

	var decoded Vector
	require.NoError(t, decoded.UnmarshalBinary(blob))
	assert.Equal(t, v.Values, decoded.Values)
}

func TestVector_EncodingIsLittleEndianFloat32(t *testing.T) {
	blob := EncodeVector([]float32{1})
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, blob)
}

func TestDecodeVector_RejectsRaggedBlob(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestVector_CompatibleWith(t *testing.T) {
	a := Vector{ModelID: "hashing-v1-384", Values: make([]float32, 384)}
	b := Vector{ModelID: "hashing-v1-384", Values: make([]float32, 384)}
	assert.NoError(t, a.CompatibleWith(b))

	otherModel := Vector{ModelID: "hashing-v2-384", Values: make([]float32, 384)}
	assert.ErrorIs(t, a.CompatibleWith(otherModel), ErrDimensionMismatch)

	otherDims := Vector{ModelID: "hashing-v1-384", Values: make([]float32, 768)}
	assert.ErrorIs(t, a.CompatibleWith(otherDims), ErrDimensionMismatch)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestValidateChunk(t *testing.T) {
	valid := &Chunk{DocumentID: "d", Index: 0, CharStart: 0, CharEnd: 10, Embedding: Vector{Values: []float32{1}}}
	assert.NoError(t, ValidateChunk(valid))

	assert.Error(t, ValidateChunk(nil))
	assert.Error(t, ValidateChunk(&Chunk{Index: 0}))
	assert.Error(t, ValidateChunk(&Chunk{DocumentID: "d", CharStart: 5, CharEnd: 2, Embedding: Vector{Values: []float32{1}}}))
	assert.Error(t, ValidateChunk(&Chunk{DocumentID: "d", CharEnd: 2}))
}
