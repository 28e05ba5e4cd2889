package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a Config that passes validation, mirroring the
// defaults set in Load.
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: 5 * time.Minute,
			LockWait:      3 * time.Second,
			AllowImplicit: true,
		},
		Retrieval: RetrievalConfig{
			TopK:         6,
			MinScore:     0.15,
			FeatureBoost: 0.1,
			SnapshotPath: "knowledge.json",
		},
		Prompt: PromptConfig{
			TokenBudget:   4096,
			HistoryWindow: 12,
		},
		Language: LanguageConfig{
			Default:   "en",
			Pivot:     "en",
			Supported: []string{"en", "es", "fr", "de", "ca", "ru"},
			Proverbs:  true,
		},
		GenAI: GenAIConfig{
			Provider:       ProviderOllama,
			Model:          "llama3.3",
			EmbedderModel:  DefaultEmbedderModel,
			Temperature:    0.7,
			MaxTokens:      1024,
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			RequestTimeout: 30 * time.Second,
			RateLimit:      10,
			RateBurst:      30,
		},
		Log: LogConfig{Level: "info"},
	}
}

func TestValidateSuccess(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with valid config: %v", err)
	}
}

func TestValidateMatcherValues(t *testing.T) {
	for _, matcher := range []string{"", MatcherRules, MatcherModel} {
		cfg := validConfig()
		cfg.Dialog.Matcher = matcher
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with matcher %q: unexpected error %v", matcher, err)
		}
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "shutdown timeout zero",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "ttl zero",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantErr: ErrInvalidTTL,
		},
		{
			name:    "sweep interval negative",
			mutate:  func(c *Config) { c.Session.SweepInterval = -time.Second },
			wantErr: ErrInvalidSweepInterval,
		},
		{
			name:    "lock wait zero",
			mutate:  func(c *Config) { c.Session.LockWait = 0 },
			wantErr: ErrInvalidLockWait,
		},
		{
			name:    "top_k zero",
			mutate:  func(c *Config) { c.Retrieval.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top_k too high",
			mutate:  func(c *Config) { c.Retrieval.TopK = 51 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "min score out of range",
			mutate:  func(c *Config) { c.Retrieval.MinScore = 1.0 },
			wantErr: ErrInvalidScore,
		},
		{
			name:    "feature boost negative",
			mutate:  func(c *Config) { c.Retrieval.FeatureBoost = -0.1 },
			wantErr: ErrInvalidScore,
		},
		{
			name:    "budget too small",
			mutate:  func(c *Config) { c.Prompt.TokenBudget = 100 },
			wantErr: ErrInvalidBudget,
		},
		{
			name:    "negative history window",
			mutate:  func(c *Config) { c.Prompt.HistoryWindow = -1 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "zero history window",
			mutate:  func(c *Config) { c.Prompt.HistoryWindow = 0 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "unknown dialog matcher",
			mutate:  func(c *Config) { c.Dialog.Matcher = "oracle" },
			wantErr: ErrInvalidMatcher,
		},
		{
			name:    "empty supported set",
			mutate:  func(c *Config) { c.Language.Supported = nil },
			wantErr: ErrInvalidLanguageSet,
		},
		{
			name:    "malformed code",
			mutate:  func(c *Config) { c.Language.Supported = []string{"en", "cat"} },
			wantErr: ErrInvalidLanguageSet,
		},
		{
			name:    "default outside supported",
			mutate:  func(c *Config) { c.Language.Default = "it" },
			wantErr: ErrInvalidLanguageSet,
		},
		{
			name:    "pivot outside supported",
			mutate:  func(c *Config) { c.Language.Pivot = "pt" },
			wantErr: ErrInvalidLanguageSet,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.GenAI.Provider = "unsupported" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.GenAI.Model = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder",
			mutate:  func(c *Config) { c.GenAI.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.GenAI.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "max tokens zero",
			mutate:  func(c *Config) { c.GenAI.MaxTokens = 0 },
			wantErr: ErrInvalidMaxTokens,
		},
		{
			name:    "too many retries",
			mutate:  func(c *Config) { c.GenAI.MaxRetries = 11 },
			wantErr: ErrInvalidRetryPolicy,
		},
		{
			name:    "zero initial backoff",
			mutate:  func(c *Config) { c.GenAI.InitialBackoff = 0 },
			wantErr: ErrInvalidRetryPolicy,
		},
		{
			name:    "max backoff below initial",
			mutate:  func(c *Config) { c.GenAI.MaxBackoff = 100 * time.Millisecond },
			wantErr: ErrInvalidRetryPolicy,
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *Config) { c.GenAI.RequestTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.GenAI.RateLimit = 0 },
			wantErr: ErrInvalidRateLimit,
		},
		{
			name:    "zero rate burst",
			mutate:  func(c *Config) { c.GenAI.RateBurst = 0 },
			wantErr: ErrInvalidRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProviderAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		envKey   string
		wantErr  bool
	}{
		{name: "googleai missing key", provider: ProviderGoogleAI, model: "gemini-2.5-flash", envKey: "GEMINI_API_KEY", wantErr: true},
		{name: "openai missing key", provider: ProviderOpenAI, model: "gpt-4o", envKey: "OPENAI_API_KEY", wantErr: true},
		{name: "ollama no key needed", provider: ProviderOllama, model: "llama3.3", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all API keys
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("OPENAI_API_KEY", "")

			cfg := validConfig()
			cfg.GenAI.Provider = tt.provider
			cfg.GenAI.Model = tt.model
			err := cfg.Validate()

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for missing API key (provider %q), got nil", tt.provider)
				}
				if !errors.Is(err, ErrMissingAPIKey) {
					t.Errorf("error should be ErrMissingAPIKey, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for provider %q: %v", tt.provider, err)
			}
		})
	}
}

func TestValidateAPIKeyPresent(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	cfg := validConfig()
	cfg.GenAI.Provider = ProviderGoogleAI
	cfg.GenAI.Model = "gemini-2.5-flash"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with key set: %v", err)
	}
}
