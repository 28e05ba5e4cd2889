package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidPort indicates the server port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidTTL indicates the session TTL is out of range.
	ErrInvalidTTL = errors.New("invalid session ttl")

	// ErrInvalidSweepInterval indicates the sweep interval is out of range.
	ErrInvalidSweepInterval = errors.New("invalid sweep interval")

	// ErrInvalidLockWait indicates the lock wait is out of range.
	ErrInvalidLockWait = errors.New("invalid lock wait")

	// ErrInvalidMatcher indicates the dialog matcher is not recognized.
	ErrInvalidMatcher = errors.New("invalid dialog matcher")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidScore indicates a score threshold is out of range.
	ErrInvalidScore = errors.New("invalid score threshold")

	// ErrInvalidBudget indicates the prompt token budget is out of range.
	ErrInvalidBudget = errors.New("invalid token budget")

	// ErrInvalidHistoryWindow indicates the history window is below 1.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidLanguageSet indicates the supported-language set is unusable.
	ErrInvalidLanguageSet = errors.New("invalid language set")

	// ErrInvalidProvider indicates the GenAI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidRetryPolicy indicates the retry settings are out of range.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")

	// ErrInvalidRateLimit indicates the completion rate limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive, got %s", ErrInvalidTimeout, c.Server.ShutdownTimeout)
	}

	// 2. Session lifecycle
	if c.Session.TTL <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidTTL, c.Session.TTL)
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidSweepInterval, c.Session.SweepInterval)
	}
	if c.Session.LockWait <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidLockWait, c.Session.LockWait)
	}

	// 3. Dialog: empty means the rule matcher.
	switch c.Dialog.Matcher {
	case "", MatcherRules, MatcherModel:
	default:
		return fmt.Errorf("%w: %q is not valid, must be %q or %q",
			ErrInvalidMatcher, c.Dialog.Matcher, MatcherRules, MatcherModel)
	}

	// 4. Retrieval
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore >= 1 {
		return fmt.Errorf("%w: retrieval.min_score must be in [0, 1), got %.2f", ErrInvalidScore, c.Retrieval.MinScore)
	}
	if c.Retrieval.FeatureBoost < 0 || c.Retrieval.FeatureBoost > 1 {
		return fmt.Errorf("%w: retrieval.feature_boost must be in [0, 1], got %.2f", ErrInvalidScore, c.Retrieval.FeatureBoost)
	}

	// 5. Prompt assembly
	if c.Prompt.TokenBudget < 256 {
		return fmt.Errorf("%w: must be at least 256, got %d", ErrInvalidBudget, c.Prompt.TokenBudget)
	}
	if c.Prompt.HistoryWindow < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidHistoryWindow, c.Prompt.HistoryWindow)
	}

	// 6. Languages: default and pivot must belong to the supported set.
	if len(c.Language.Supported) == 0 {
		return fmt.Errorf("%w: language.supported cannot be empty", ErrInvalidLanguageSet)
	}
	for _, code := range c.Language.Supported {
		if len(code) != 2 {
			return fmt.Errorf("%w: %q is not a two-letter code", ErrInvalidLanguageSet, code)
		}
	}
	if !slices.Contains(c.Language.Supported, c.Language.Default) {
		return fmt.Errorf("%w: default %q is not in supported set %v", ErrInvalidLanguageSet, c.Language.Default, c.Language.Supported)
	}
	if !slices.Contains(c.Language.Supported, c.Language.Pivot) {
		return fmt.Errorf("%w: pivot %q is not in supported set %v", ErrInvalidLanguageSet, c.Language.Pivot, c.Language.Supported)
	}

	// 7. GenAI backend
	validProviders := []string{ProviderGoogleAI, ProviderOpenAI, ProviderOllama}
	if !slices.Contains(validProviders, c.GenAI.Provider) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v", ErrInvalidProvider, c.GenAI.Provider, validProviders)
	}
	if c.GenAI.Model == "" {
		return fmt.Errorf("%w: genai.model cannot be empty", ErrInvalidModelName)
	}
	if c.GenAI.EmbedderModel == "" {
		return fmt.Errorf("%w: genai.embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.GenAI.Temperature < 0.0 || c.GenAI.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.GenAI.Temperature)
	}
	if c.GenAI.MaxTokens < 1 || c.GenAI.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.GenAI.MaxTokens)
	}
	if c.GenAI.MaxRetries < 0 || c.GenAI.MaxRetries > 10 {
		return fmt.Errorf("%w: genai.max_retries must be between 0 and 10, got %d", ErrInvalidRetryPolicy, c.GenAI.MaxRetries)
	}
	if c.GenAI.InitialBackoff <= 0 {
		return fmt.Errorf("%w: genai.initial_backoff must be positive, got %s", ErrInvalidRetryPolicy, c.GenAI.InitialBackoff)
	}
	if c.GenAI.MaxBackoff < c.GenAI.InitialBackoff {
		return fmt.Errorf("%w: genai.max_backoff %s is below genai.initial_backoff %s", ErrInvalidRetryPolicy, c.GenAI.MaxBackoff, c.GenAI.InitialBackoff)
	}
	if c.GenAI.RequestTimeout <= 0 {
		return fmt.Errorf("%w: genai.request_timeout must be positive, got %s", ErrInvalidTimeout, c.GenAI.RequestTimeout)
	}
	if c.GenAI.RateLimit <= 0 {
		return fmt.Errorf("%w: genai.rate_limit must be positive, got %.2f", ErrInvalidRateLimit, c.GenAI.RateLimit)
	}
	if c.GenAI.RateBurst < 1 {
		return fmt.Errorf("%w: genai.rate_burst must be at least 1, got %d", ErrInvalidRateLimit, c.GenAI.RateBurst)
	}

	// 8. API key, checked only for the cloud provider actually in use.
	if c.GenAI.Provider == ProviderGoogleAI && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}
	if c.GenAI.Provider == ProviderOpenAI && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	return nil
}
