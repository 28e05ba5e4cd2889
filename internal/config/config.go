// Package config loads application configuration with multi-source
// priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.minairo/config.yaml, then ./config.yaml)
//  3. Default values
//
// Sensitive values are masked in MarshalJSON and String; validation
// runs fail-fast in Load so a misconfigured process never starts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider identifiers used in GenAIConfig.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
)

// Matcher identifiers used in DialogConfig.Matcher.
const (
	MatcherRules = "rules"
	MatcherModel = "model"
)

// DefaultEmbedderModel is the embedder used when none is configured.
// Its output dimension must match the knowledge snapshot being served.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores the full application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding secrets.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" json:"server"`
	Session       SessionConfig       `mapstructure:"session" json:"session"`
	Dialog        DialogConfig        `mapstructure:"dialog" json:"dialog"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval" json:"retrieval"`
	Prompt        PromptConfig        `mapstructure:"prompt" json:"prompt"`
	Language      LanguageConfig      `mapstructure:"language" json:"language"`
	GenAI         GenAIConfig         `mapstructure:"genai" json:"genai"`
	Log           LogConfig           `mapstructure:"log" json:"log"`
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            int           `mapstructure:"port" json:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	// TTL is how long an idle conversation survives before the sweeper
	// removes it.
	TTL time.Duration `mapstructure:"ttl" json:"ttl"`

	// SweepInterval is how often the background sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`

	// LockWait bounds how long a turn waits for the per-conversation
	// lock before giving up with a busy error.
	LockWait time.Duration `mapstructure:"lock_wait" json:"lock_wait"`

	// AllowImplicit lets clients resume with conversation ids the
	// server has never seen (a fresh session is created for them).
	AllowImplicit bool `mapstructure:"allow_implicit" json:"allow_implicit"`
}

// DialogConfig controls the scripted dialog flow.
type DialogConfig struct {
	// ScriptPath overrides the embedded booking script. Empty means
	// the embedded default.
	ScriptPath string `mapstructure:"script_path" json:"script_path"`

	// Matcher selects how intents and slots are extracted: "rules" for
	// the deterministic keyword matcher, "model" for model-backed
	// classification. Empty means rules.
	Matcher string `mapstructure:"matcher" json:"matcher"`
}

// RetrievalConfig controls context retrieval.
type RetrievalConfig struct {
	TopK         int     `mapstructure:"top_k" json:"top_k"`
	MinScore     float64 `mapstructure:"min_score" json:"min_score"`
	FeatureBoost float64 `mapstructure:"feature_boost" json:"feature_boost"`

	// SnapshotPath is where the ingest command writes the embedding
	// snapshot and where the server loads it from.
	SnapshotPath string `mapstructure:"snapshot_path" json:"snapshot_path"`

	// CatalogPath is the places catalog consumed by the ingest command.
	CatalogPath string `mapstructure:"catalog_path" json:"catalog_path"`
}

// PromptConfig controls prompt assembly.
type PromptConfig struct {
	TokenBudget   int    `mapstructure:"token_budget" json:"token_budget"`
	HistoryWindow int    `mapstructure:"history_window" json:"history_window"`
	PersonaDir    string `mapstructure:"persona_dir" json:"persona_dir"`
}

// LanguageConfig controls detection, translation and proverbs.
type LanguageConfig struct {
	Default   string   `mapstructure:"default" json:"default"`
	Pivot     string   `mapstructure:"pivot" json:"pivot"`
	Supported []string `mapstructure:"supported" json:"supported"`

	// TranslatorURL points at a LibreTranslate-compatible endpoint.
	// Empty disables translation; every translate call then passes the
	// text through unchanged.
	TranslatorURL    string `mapstructure:"translator_url" json:"translator_url"`
	TranslatorAPIKey string `mapstructure:"translator_api_key" json:"translator_api_key"` // SENSITIVE: masked in MarshalJSON

	// Proverbs toggles the sentiment-matched proverb appended to
	// free-form answers.
	Proverbs    bool   `mapstructure:"proverbs" json:"proverbs"`
	ProverbPath string `mapstructure:"proverb_path" json:"proverb_path"`
}

// GenAIConfig controls the completion and embedding backend.
type GenAIConfig struct {
	Provider      string  `mapstructure:"provider" json:"provider"`
	Model         string  `mapstructure:"model" json:"model"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retry policy for rate-limited and timed-out completion calls.
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" json:"max_backoff"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`

	// Client-side rate limit for completion calls.
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" json:"rate_burst"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level     string `mapstructure:"level" json:"level"`
	JSON      bool   `mapstructure:"json" json:"json"`
	AddSource bool   `mapstructure:"add_source" json:"add_source"`
}

// ObservabilityConfig controls the optional OTLP trace exporter.
type ObservabilityConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string  `mapstructure:"service_name" json:"service_name"`
	Environment string  `mapstructure:"environment" json:"environment"`
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".minairo")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("session.ttl", "30m")
	viper.SetDefault("session.sweep_interval", "5m")
	viper.SetDefault("session.lock_wait", "3s")
	viper.SetDefault("session.allow_implicit", true)

	viper.SetDefault("dialog.script_path", "")
	viper.SetDefault("dialog.matcher", MatcherRules)

	viper.SetDefault("retrieval.top_k", 6)
	viper.SetDefault("retrieval.min_score", 0.15)
	viper.SetDefault("retrieval.feature_boost", 0.1)
	viper.SetDefault("retrieval.snapshot_path", filepath.Join(configDir, "knowledge.json"))
	viper.SetDefault("retrieval.catalog_path", "")

	viper.SetDefault("prompt.token_budget", 4096)
	viper.SetDefault("prompt.history_window", 12)
	viper.SetDefault("prompt.persona_dir", "")

	viper.SetDefault("language.default", "en")
	viper.SetDefault("language.pivot", "en")
	viper.SetDefault("language.supported", []string{"en", "es", "fr", "de", "ca", "ru"})
	viper.SetDefault("language.translator_url", "")
	viper.SetDefault("language.proverbs", true)
	viper.SetDefault("language.proverb_path", "")

	viper.SetDefault("genai.provider", ProviderGoogleAI)
	viper.SetDefault("genai.model", "gemini-2.5-flash")
	viper.SetDefault("genai.embedder_model", DefaultEmbedderModel)
	viper.SetDefault("genai.temperature", 0.7)
	viper.SetDefault("genai.max_tokens", 1024)
	viper.SetDefault("genai.max_retries", 3)
	viper.SetDefault("genai.initial_backoff", "500ms")
	viper.SetDefault("genai.max_backoff", "10s")
	viper.SetDefault("genai.request_timeout", "30s")
	viper.SetDefault("genai.rate_limit", 10)
	viper.SetDefault("genai.rate_burst", 30)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)
	viper.SetDefault("log.add_source", false)

	viper.SetDefault("observability.enabled", false)
	viper.SetDefault("observability.endpoint", "localhost:4318")
	viper.SetDefault("observability.service_name", "minairo")
	viper.SetDefault("observability.environment", "dev")
	viper.SetDefault("observability.sample_ratio", 1.0)
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("server.host", "MINAIRO_HOST")
	mustBind("server.port", "MINAIRO_PORT")

	mustBind("genai.provider", "MINAIRO_PROVIDER")
	mustBind("genai.model", "MINAIRO_MODEL")
	mustBind("genai.embedder_model", "MINAIRO_EMBEDDER_MODEL")

	mustBind("language.translator_url", "MINAIRO_TRANSLATOR_URL")
	mustBind("language.translator_api_key", "MINAIRO_TRANSLATOR_API_KEY")

	mustBind("retrieval.snapshot_path", "MINAIRO_SNAPSHOT_PATH")
	mustBind("dialog.script_path", "MINAIRO_SCRIPT_PATH")
	mustBind("dialog.matcher", "MINAIRO_MATCHER")

	mustBind("log.level", "MINAIRO_LOG_LEVEL")

	mustBind("observability.enabled", "MINAIRO_TRACING")
	mustBind("observability.endpoint", "MINAIRO_OTLP_ENDPOINT")

	// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the
	// Genkit plugins, not via Viper.
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones keep two characters on each side for debug
// utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new secret fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Language.TranslatorAPIKey = maskSecret(a.Language.TranslatorAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// A model already containing "/" is returned as-is.
func (c *GenAIConfig) FullModelName() string {
	if strings.Contains(c.Model, "/") {
		return c.Model
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.Model
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.Model
	default:
		return ProviderGoogleAI + "/" + c.Model
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
