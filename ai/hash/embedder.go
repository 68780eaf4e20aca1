package hash

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/derrickSh43/ingestion/ai"
)

// DefaultDimension is the vector width used when none is configured.
const DefaultDimension = 16

// Embedder is a deterministic ai.Embedder that derives vectors from a sha256
// digest of the text. The vectors carry no semantic meaning; the point is
// byte-for-byte reproducible runs without a model server.
type Embedder struct {
	dim int
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a deterministic embedder producing vectors of the given
// dimension. A dimension below 1 falls back to DefaultDimension.
func NewEmbedder(dim int) *Embedder {
	if dim < 1 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

// EmbedText generates a deterministic vector for a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

// EmbedTexts generates deterministic vectors for each text in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

// Info reports the provider identity, including the fixed dimension.
func (e *Embedder) Info() ai.ModelInfo {
	return ai.ModelInfo{
		Provider:  "hash",
		Model:     fmt.Sprintf("sha256-%d", e.dim),
		Dimension: e.dim,
	}
}

// vector maps each output position onto a digest byte, scaled into [-1, 1].
func (e *Embedder) vector(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, e.dim)
	for i := 0; i < e.dim; i++ {
		b := digest[i%len(digest)]
		vec[i] = (float32(b)/255.0)*2.0 - 1.0
	}
	return vec
}
