// Package genai adapts Genkit model backends to the engine's
// collaborator interfaces: the completion client consumed by the chat
// coordinator, the embedder consumed by the knowledge index, and an
// optional model-backed slot matcher for the dialog engine.
package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/emporda/minairo/internal/config"
	"github.com/emporda/minairo/internal/log"
)

// Client wraps an initialized Genkit instance plus the configured model
// names. One Client serves the whole process.
type Client struct {
	g        *genkit.Genkit
	cfg      config.GenAIConfig
	embedder ai.Embedder
	logger   log.Logger
}

// Setup initializes Genkit with the configured provider. Supported
// providers: googleai (default), openai, ollama. Provider credentials
// (GEMINI_API_KEY, OPENAI_API_KEY) are read by the plugins themselves.
func Setup(ctx context.Context, cfg config.GenAIConfig, logger log.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	var g *genkit.Genkit
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: "http://localhost:11434"}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no model auto-discovery.
		plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.Model, Type: "chat"}, nil)
		plugin.DefineEmbedder(g, "http://localhost:11434", cfg.EmbedderModel, nil)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}

	default:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
	}

	c := &Client{g: g, cfg: cfg, logger: logger}
	c.embedder = c.lookupEmbedder()
	if c.embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	logger.Info("genai backend initialized",
		"provider", cfg.Provider,
		"model", cfg.FullModelName(),
		"embedder", cfg.EmbedderModel)
	return c, nil
}

// lookupEmbedder resolves the embedder the provider plugin registered.
func (c *Client) lookupEmbedder() ai.Embedder {
	switch c.cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(c.g, "http://localhost:11434")
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(c.g, api.NewName(config.ProviderOpenAI, c.cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(c.g, c.cfg.EmbedderModel)
	}
}

// Genkit exposes the underlying instance for tests that register mock
// models.
func (c *Client) Genkit() *genkit.Genkit { return c.g }
