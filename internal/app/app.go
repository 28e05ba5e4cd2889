// Package app assembles the engine from configuration: every
// collaborator is constructed here and handed to the chat coordinator,
// so the commands stay thin.
package app

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/emporda/minairo/internal/chat"
	"github.com/emporda/minairo/internal/config"
	"github.com/emporda/minairo/internal/dialog"
	"github.com/emporda/minairo/internal/genai"
	"github.com/emporda/minairo/internal/knowledge"
	"github.com/emporda/minairo/internal/language"
	"github.com/emporda/minairo/internal/log"
	"github.com/emporda/minairo/internal/observability"
	"github.com/emporda/minairo/internal/prompt"
	"github.com/emporda/minairo/internal/session"
)

// App holds the assembled engine and the resources that need explicit
// teardown.
type App struct {
	Config      *config.Config
	Logger      log.Logger
	Coordinator *chat.Coordinator
	Sessions    *session.Store
	Knowledge   *knowledge.Store
	GenAI       *genai.Client

	shutdownTracing func(context.Context) error
}

// Setup builds the full engine from cfg. The genai backend is
// initialized eagerly so a missing credential fails startup instead of
// the first visitor.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := log.New(log.Config{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	shutdownTracing, err := observability.Setup(ctx, cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	client, err := genai.Setup(ctx, cfg.GenAI, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up genai backend: %w", err)
	}

	script, err := loadScript(cfg.Dialog)
	if err != nil {
		return nil, err
	}
	matcher, err := buildMatcher(cfg.Dialog, client, script)
	if err != nil {
		return nil, err
	}
	engine, err := dialog.NewEngine(dialog.Config{
		Script:  script,
		Matcher: matcher,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dialog engine: %w", err)
	}

	sessions, err := session.NewStore(session.Config{
		TTL:             cfg.Session.TTL,
		LockWait:        cfg.Session.LockWait,
		AllowImplicit:   cfg.Session.AllowImplicit,
		InitialStep:     script.Entry,
		DefaultLanguage: cfg.Language.Default,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	sessions.StartSweeper(cfg.Session.SweepInterval)

	retriever, err := knowledge.NewStore(knowledge.Config{
		TopK:         cfg.Retrieval.TopK,
		MinScore:     cfg.Retrieval.MinScore,
		FeatureBoost: cfg.Retrieval.FeatureBoost,
		Embedder:     genai.NewEmbedder(client),
		Logger:       logger,
	})
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("creating knowledge index: %w", err)
	}
	if cfg.Retrieval.SnapshotPath != "" {
		n, err := retriever.Restore(cfg.Retrieval.SnapshotPath)
		if err != nil {
			// The engine answers from the script and the model alone
			// until a snapshot is ingested.
			logger.Warn("knowledge snapshot not loaded, retrieval starts empty",
				"path", cfg.Retrieval.SnapshotPath, "error", err)
		} else {
			logger.Info("knowledge snapshot loaded",
				"path", cfg.Retrieval.SnapshotPath, "chunks", n)
		}
	}

	assembler, err := prompt.New(prompt.Config{
		TokenBudget:   cfg.Prompt.TokenBudget,
		HistoryWindow: cfg.Prompt.HistoryWindow,
		PersonaDir:    cfg.Prompt.PersonaDir,
		Logger:        logger,
	})
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("creating prompt assembler: %w", err)
	}

	pipeline, err := buildLanguage(cfg.Language, logger)
	if err != nil {
		sessions.Close()
		return nil, err
	}

	var proverbs *language.ProverbSet
	if cfg.Language.Proverbs {
		proverbs, err = loadProverbs(cfg.Language)
		if err != nil {
			sessions.Close()
			return nil, err
		}
	}

	var limiter *rate.Limiter
	if cfg.GenAI.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.GenAI.RateLimit), cfg.GenAI.RateBurst)
	}

	coordinator, err := chat.New(chat.Config{
		Sessions:   sessions,
		Engine:     engine,
		Retriever:  retriever,
		Assembler:  assembler,
		Language:   pipeline,
		Completion: genai.NewCompletion(client),
		Proverbs:   proverbs,
		Pivot:      cfg.Language.Pivot,
		Params: chat.Params{
			Temperature: cfg.GenAI.Temperature,
			MaxTokens:   cfg.GenAI.MaxTokens,
		},
		Retry: chat.RetryConfig{
			MaxAttempts:    cfg.GenAI.MaxRetries,
			InitialBackoff: cfg.GenAI.InitialBackoff,
			MaxBackoff:     cfg.GenAI.MaxBackoff,
		},
		Circuit:        chat.DefaultCircuitConfig(),
		RateLimiter:    limiter,
		RequestTimeout: cfg.GenAI.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		Coordinator:     coordinator,
		Sessions:        sessions,
		Knowledge:       retriever,
		GenAI:           client,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close releases the app's background resources: the session sweeper
// and the trace exporter.
func (a *App) Close(ctx context.Context) error {
	a.Sessions.Close()
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			return fmt.Errorf("flushing traces: %w", err)
		}
	}
	return nil
}

// loadScript loads the configured dialog script, or the embedded
// default booking script.
func loadScript(cfg config.DialogConfig) (*dialog.Script, error) {
	if cfg.ScriptPath != "" {
		script, err := dialog.LoadFile(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("loading dialog script: %w", err)
		}
		return script, nil
	}
	script, err := dialog.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading default dialog script: %w", err)
	}
	return script, nil
}

// buildMatcher selects the intent and slot matcher. The rule matcher is
// the default; "model" classifies with the completion model instead.
func buildMatcher(cfg config.DialogConfig, client *genai.Client, script *dialog.Script) (dialog.Matcher, error) {
	switch cfg.Matcher {
	case "", config.MatcherRules:
		return dialog.NewRuleMatcher(script.Intents), nil
	case config.MatcherModel:
		names := make([]string, 0, len(script.Intents))
		for name := range script.Intents {
			names = append(names, name)
		}
		return genai.NewMatcher(client, names), nil
	default:
		return nil, fmt.Errorf("unknown dialog matcher %q", cfg.Matcher)
	}
}

// buildLanguage wires the pipeline, attaching the HTTP translator only
// when an endpoint is configured.
func buildLanguage(cfg config.LanguageConfig, logger log.Logger) (*language.Pipeline, error) {
	var translator language.Translator
	if cfg.TranslatorURL != "" {
		var opts []language.TranslatorOption
		if cfg.TranslatorAPIKey != "" {
			opts = append(opts, language.WithAPIKey(cfg.TranslatorAPIKey))
		}
		t, err := language.NewHTTPTranslator(cfg.TranslatorURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating translator: %w", err)
		}
		translator = t
	}

	pipeline, err := language.NewPipeline(language.Config{
		Supported:  cfg.Supported,
		Default:    cfg.Default,
		Translator: translator,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating language pipeline: %w", err)
	}
	return pipeline, nil
}

// loadProverbs loads the configured proverb file, or the embedded set.
func loadProverbs(cfg config.LanguageConfig) (*language.ProverbSet, error) {
	if cfg.ProverbPath != "" {
		set, err := language.LoadProverbsFile(cfg.ProverbPath)
		if err != nil {
			return nil, fmt.Errorf("loading proverbs: %w", err)
		}
		return set, nil
	}
	set, err := language.LoadProverbs()
	if err != nil {
		return nil, fmt.Errorf("loading embedded proverbs: %w", err)
	}
	return set, nil
}
