// Package capability defines the abstract external capabilities the insight
// pipeline consumes: single-shot text generation and fixed-dimension text
// embedding. Adapters for concrete vendors live in their own packages;
// deterministic stubs for tests and offline runs live in stub.go.
package capability

import "context"

// TextGenerator is a single-shot text completion capability.
// Output is not reproducible across calls; callers must only rely on
// structural properties.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder converts text into a fixed-dimension vector. Every vector an
// instance returns has length Dimensions(); a different length is a
// dimension-mismatch error, never silently reshaped.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
