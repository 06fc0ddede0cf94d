// Package llm wraps the text-generation providers behind a single Completer
// and classifies provider failures into domain errors.
package llm

import "context"

// Options tune one completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Completer turns a prompt into a completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}
