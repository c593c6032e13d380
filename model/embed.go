package model

import (
	"context"
	"strings"
)

// Embedder converts free text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NormalizeInput flattens the text before it is sent to the embedding
// service: newlines become spaces, then any whitespace run collapses to a
// single space.
func NormalizeInput(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.Join(strings.Fields(text), " ")
}
