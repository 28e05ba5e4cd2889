package knowledge

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CatalogEntry is one curated passage before embedding: the text plus
// its facet tags, as written by hand in the catalog file.
type CatalogEntry struct {
	ID       string   `yaml:"id"`
	Text     string   `yaml:"text"`
	Source   string   `yaml:"source,omitempty"`
	Features []string `yaml:"features,omitempty"`
}

// ReadCatalog parses a YAML catalog of knowledge entries.
func ReadCatalog(path string) ([]CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var entries []CatalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("catalog entry id %q is duplicated", e.ID)
		}
		seen[e.ID] = true
		if e.Text == "" {
			return nil, fmt.Errorf("catalog entry %q has no text", e.ID)
		}
	}
	return entries, nil
}

// Ingest embeds the catalog entries and replaces the index with them.
// Returns the number of chunks indexed.
func (s *Store) Ingest(ctx context.Context, entries []CatalogEntry) (int, error) {
	if len(entries) == 0 {
		s.Replace(nil)
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}

	vecs, err := s.cfg.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding catalog: %w", err)
	}
	if len(vecs) != len(entries) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(entries))
	}

	now := time.Now().UTC()
	chunks := make([]Chunk, len(entries))
	for i, e := range entries {
		chunks[i] = Chunk{
			ID:        e.ID,
			Text:      e.Text,
			Source:    e.Source,
			Features:  e.Features,
			Embedding: vecs[i],
			AddedAt:   now,
		}
	}
	s.Replace(chunks)
	s.cfg.Logger.Info("catalog ingested", "entries", len(chunks))
	return len(chunks), nil
}
