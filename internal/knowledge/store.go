package knowledge

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/emporda/minairo/internal/log"
)

// Config holds the retrieval parameters and dependencies.
type Config struct {
	// TopK is the default number of chunks a search returns.
	TopK int

	// MinScore filters out chunks scoring below this floor, applied
	// after any feature boost.
	MinScore float64

	// FeatureBoost is added to a chunk's score once per tagged feature
	// the query mentions.
	FeatureBoost float64

	Embedder Embedder
	Logger   log.Logger
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.TopK < 1 {
		return fmt.Errorf("top k must be at least 1, got %d", c.TopK)
	}
	if c.MinScore < 0 || c.MinScore >= 1 {
		return fmt.Errorf("min score must be in [0, 1), got %g", c.MinScore)
	}
	if c.FeatureBoost < 0 {
		return fmt.Errorf("feature boost must not be negative, got %g", c.FeatureBoost)
	}
	if c.Embedder == nil {
		return fmt.Errorf("embedder is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Store is the in-memory retrieval index. The chunk set is an immutable
// snapshot behind an atomic pointer: Replace swaps it wholesale and
// Search reads it without locking, so searches never block ingestion.
type Store struct {
	cfg   Config
	index atomic.Pointer[[]Chunk]
}

// NewStore creates an empty index.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid knowledge config: %w", err)
	}
	s := &Store{cfg: cfg}
	s.index.Store(&[]Chunk{})
	return s, nil
}

// Replace swaps the entire chunk set. The slice is cloned, so the
// caller may keep mutating its copy.
func (s *Store) Replace(chunks []Chunk) {
	snapshot := slices.Clone(chunks)
	s.index.Store(&snapshot)
	s.cfg.Logger.Debug("knowledge index replaced", "chunks", len(snapshot))
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	return len(*s.index.Load())
}

// Chunks returns a copy of the current chunk set.
func (s *Store) Chunks() []Chunk {
	return slices.Clone(*s.index.Load())
}

// SearchOption overrides a search parameter for one call.
type SearchOption func(*searchParams)

type searchParams struct {
	topK     int
	minScore float64
}

// WithTopK caps the number of results for this search.
func WithTopK(k int) SearchOption {
	return func(p *searchParams) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithMinScore overrides the score floor for this search.
func WithMinScore(score float64) SearchOption {
	return func(p *searchParams) { p.minScore = score }
}

// Search embeds the query and returns the best matching chunks, ranked
// by cosine similarity plus feature boost. Ties break toward newer
// chunks, then lexicographic id. An empty query or an empty index
// yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Scored, error) {
	params := searchParams{topK: s.cfg.TopK, minScore: s.cfg.MinScore}
	for _, opt := range opts {
		opt(&params)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	chunks := *s.index.Load()
	if len(chunks) == 0 {
		return nil, nil
	}

	vecs, err := s.cfg.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vecs))
	}
	qvec := vecs[0]

	scored := make([]Scored, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != len(qvec) {
			s.cfg.Logger.Warn("skipping chunk with mismatched embedding",
				"chunk", ch.ID, "dims", len(ch.Embedding), "want", len(qvec))
			continue
		}
		score := cosine(qvec, ch.Embedding)
		score += s.cfg.FeatureBoost * float64(featureBonus(query, ch.Features))
		if score < params.minScore {
			continue
		}
		scored = append(scored, Scored{Chunk: ch, Score: score})
	}

	slices.SortFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if !a.Chunk.AddedAt.Equal(b.Chunk.AddedAt) {
			if a.Chunk.AddedAt.After(b.Chunk.AddedAt) {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})

	if len(scored) > params.topK {
		scored = scored[:params.topK]
	}
	return scored, nil
}
