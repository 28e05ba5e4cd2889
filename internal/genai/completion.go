package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/emporda/minairo/internal/chat"
)

// Completion implements chat.CompletionClient over a Genkit model.
type Completion struct {
	client *Client
	model  string
}

// NewCompletion creates the production completion client.
func NewCompletion(client *Client) *Completion {
	return &Completion{
		client: client,
		model:  client.cfg.FullModelName(),
	}
}

// Complete generates text for the assembled prompt. Provider failures
// are classified onto the chat package sentinels so the coordinator's
// retry policy can tell transient errors from permanent ones.
func (c *Completion) Complete(ctx context.Context, prompt string, params chat.Params) (string, error) {
	genCfg := map[string]any{}
	if params.Temperature > 0 {
		genCfg["temperature"] = params.Temperature
	}
	if params.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = params.MaxTokens
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	}
	if len(genCfg) > 0 {
		opts = append(opts, ai.WithConfig(genCfg))
	}

	resp, err := genkit.Generate(ctx, c.client.g, opts...)
	if err != nil {
		return "", classify(err)
	}
	return resp.Text(), nil
}

// errorPatterns map provider error text onto the chat sentinels.
// Genkit and the provider SDKs do not expose typed errors for these
// failures, so substring matching against err.Error() is the only
// classification available.
var errorPatterns = []struct {
	sentinel error
	match    []string
}{
	{chat.ErrRateLimited, []string{"rate limit", "quota", "resource_exhausted", "429"}},
	{chat.ErrAuth, []string{"api key", "unauthorized", "unauthenticated", "permission denied", "401", "403"}},
	{chat.ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{chat.ErrUnavailable, []string{"unavailable", "connection refused", "connection reset", "500", "502", "503", "504"}},
}

// classify wraps a provider error with the matching sentinel. Context
// errors win: a canceled caller is not a provider fault.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", chat.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		for _, m := range p.match {
			if strings.Contains(lower, m) {
				return fmt.Errorf("%w: %v", p.sentinel, err)
			}
		}
	}
	return fmt.Errorf("completion: %w", err)
}
