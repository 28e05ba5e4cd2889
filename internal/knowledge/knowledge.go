// Package knowledge holds the in-memory retrieval index: embedded
// background passages ranked by cosine similarity against the user's
// message, with a file snapshot so the index survives restarts.
package knowledge

import (
	"context"
	"math"
	"strings"
	"time"
)

// Chunk is one retrievable passage of background knowledge.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`

	// Features tag the chunk with catalog facets (terrace, sea_view,
	// booking) that earn a score boost when the query mentions them.
	Features []string `json:"features,omitempty"`

	Embedding []float32 `json:"embedding"`
	AddedAt   time.Time `json:"added_at"`
}

// Scored pairs a chunk with its similarity to a query. Results are
// ordered best first.
type Scored struct {
	Chunk Chunk
	Score float64
}

// Embedder turns texts into vectors. The genai package provides the
// production implementation; tests use a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// featureKeywords maps a catalog facet to the query words that signal
// interest in it. Matching is lowercase substring, so stems like
// "reserv" cover reservation, reservar and réserver.
var featureKeywords = map[string][]string{
	"terrace":  {"terrace", "terraza", "terrassa", "outdoor", "outside"},
	"sea_view": {"sea", "view", "mar", "vista", "vistes", "bay"},
	"booking":  {"book", "reserv", "table", "mesa", "taula", "столик"},
}

// featureBonus counts the chunk features the query text mentions.
func featureBonus(query string, features []string) int {
	if len(features) == 0 {
		return 0
	}
	lower := strings.ToLower(query)
	bonus := 0
	for _, feature := range features {
		for _, kw := range featureKeywords[feature] {
			if strings.Contains(lower, kw) {
				bonus++
				break
			}
		}
	}
	return bonus
}

// cosine returns the cosine similarity of two equal-length vectors, or
// 0 when either has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
