// Package embedding defines the embedding generator the cache can consult
// when callers hand it raw text instead of vectors.
package embedding

import "context"

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the dimension of the embedding vectors.
	Dimension() int
}

// Func adapts a plain function to the Embedder interface.
type Func struct {
	Fn    func(ctx context.Context, text string) ([]float64, error)
	Name  string
	Width int
}

// Embed calls the wrapped function.
func (f Func) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.Fn(ctx, text)
}

// Model returns the configured model name.
func (f Func) Model() string { return f.Name }

// Dimension returns the configured vector width.
func (f Func) Dimension() int { return f.Width }
