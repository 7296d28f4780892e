package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Fake is a deterministic, dependency-free Embedder for tests: it hashes
// each whitespace-separated word into a fixed-dimension vector so that
// semantically similar strings (sharing words) land closer together than
// unrelated ones, without calling out to a real model.
type Fake struct {
	dim int
}

// NewFake returns a Fake embedder producing vectors of the given dimension.
func NewFake(dim int) *Fake {
	if dim <= 0 {
		dim = 32
	}
	return &Fake{dim: dim}
}

func (f *Fake) Dim() int { return f.dim }

func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *Fake) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *Fake) vector(text string) []float32 {
	vec := make([]float32, f.dim)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32()) % f.dim
		if idx < 0 {
			idx += f.dim
		}
		vec[idx] += 1
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
