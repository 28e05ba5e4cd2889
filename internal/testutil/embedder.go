package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
)

// HashEmbedder is a knowledge.Embedder producing deterministic unit
// vectors from a SHA-256 of the text. Identical text always embeds to
// the identical vector; explicit vectors can be pinned per text for
// exact cosine control in ranking tests.
//
// Safe for concurrent use.
type HashEmbedder struct {
	mu     sync.Mutex
	pinned map[string][]float32
	dim    int
}

// NewHashEmbedder creates an embedder emitting vectors of dim entries.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{
		pinned: make(map[string][]float32),
		dim:    dim,
	}
}

// Pin fixes the vector returned for an exact text.
func (e *HashEmbedder) Pin(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
}

// Embed implements knowledge.Embedder.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		e.mu.Lock()
		v, ok := e.pinned[text]
		e.mu.Unlock()
		if ok {
			out[i] = v
			continue
		}
		out[i] = hashVector(text, e.dim)
	}
	return out, nil
}

// hashVector derives a normalized vector from the text's SHA-256.
func hashVector(text string, dim int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
