package genai

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Embedder implements knowledge.Embedder over the provider's embedding
// model.
type Embedder struct {
	client *Client
}

// NewEmbedder creates the production embedder.
func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed converts texts into vectors, one request for the whole batch.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := e.client.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vecs[i] = emb.Embedding
	}
	return vecs, nil
}
