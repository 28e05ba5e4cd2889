package language

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Translator converts text between languages. Implementations must be
// safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Translate converts text from source to target, failing open: when
// the collaborator is missing or errors, the original text comes back
// with translated=false and the turn proceeds untranslated.
// Same-language and empty inputs short-circuit without calling the
// collaborator.
func (p *Pipeline) Translate(ctx context.Context, text, source, target string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, true
	}
	if target == "" || source == target {
		return text, true
	}
	if p.cfg.Translator == nil {
		p.cfg.Logger.Debug("no translator configured, passing text through",
			"source", source, "target", target)
		return text, false
	}

	out, err := p.cfg.Translator.Translate(ctx, text, source, target)
	if err != nil {
		p.cfg.Logger.Warn("translation failed, passing text through",
			"source", source, "target", target, "error", err)
		return text, false
	}
	return out, true
}

// translateRequest and translateResponse are the minimal LibreTranslate
// wire shapes.
type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// HTTPTranslator talks to a LibreTranslate-compatible endpoint.
type HTTPTranslator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// TranslatorOption configures an HTTPTranslator.
type TranslatorOption func(*HTTPTranslator)

// WithAPIKey sends the given key with every request.
func WithAPIKey(key string) TranslatorOption {
	return func(t *HTTPTranslator) { t.apiKey = key }
}

// WithHTTPClient overrides the default client (10 second timeout).
func WithHTTPClient(client *http.Client) TranslatorOption {
	return func(t *HTTPTranslator) { t.client = client }
}

// NewHTTPTranslator creates a client for the service at baseURL.
func NewHTTPTranslator(baseURL string, opts ...TranslatorOption) (*HTTPTranslator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("translator base url is empty")
	}
	t := &HTTPTranslator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Translate posts to /translate and returns the translated text.
func (t *HTTPTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("encoding translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling translator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding translate response: %w", err)
	}
	if payload.TranslatedText == "" {
		return "", fmt.Errorf("translator returned an empty translation")
	}
	return payload.TranslatedText, nil
}
