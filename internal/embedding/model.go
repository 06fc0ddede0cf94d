// Package embedding turns text into fixed-dimension vectors through an
// injected model handle.
package embedding

import "context"

// Model is a loaded embedding capability. Implementations must be safe for
// concurrent EmbedBatch calls once Load has returned.
type Model interface {
	// ID identifies the model version. Vectors with different ids are never compared.
	ID() string
	Dimensions() int
	Load(ctx context.Context) error
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}
