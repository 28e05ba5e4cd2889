package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/emporda/minairo/internal/config"
	"github.com/emporda/minairo/internal/genai"
	"github.com/emporda/minairo/internal/knowledge"
	"github.com/emporda/minairo/internal/log"
)

// runIngest embeds a places catalog and writes the knowledge snapshot
// the server loads at startup.
func runIngest(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	catalogPath := cfg.Retrieval.CatalogPath
	if len(args) > 0 {
		catalogPath = args[0]
	}
	if catalogPath == "" {
		return fmt.Errorf("usage: minairo ingest <catalog.yaml> (or set retrieval.catalog_path)")
	}

	logger, err := log.New(log.Config{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := genai.Setup(ctx, cfg.GenAI, logger)
	if err != nil {
		return fmt.Errorf("setting up genai backend: %w", err)
	}

	store, err := knowledge.NewStore(knowledge.Config{
		TopK:         cfg.Retrieval.TopK,
		MinScore:     cfg.Retrieval.MinScore,
		FeatureBoost: cfg.Retrieval.FeatureBoost,
		Embedder:     genai.NewEmbedder(client),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating knowledge index: %w", err)
	}

	entries, err := knowledge.ReadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	logger.Info("embedding catalog", "path", catalogPath, "entries", len(entries))

	n, err := store.Ingest(ctx, entries)
	if err != nil {
		return fmt.Errorf("embedding catalog: %w", err)
	}

	if err := store.Save(cfg.Retrieval.SnapshotPath); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	fmt.Printf("Ingested %d chunks into %s\n", n, cfg.Retrieval.SnapshotPath)
	return nil
}
