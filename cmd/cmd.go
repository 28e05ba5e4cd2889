// Package cmd provides the minairo CLI commands.
//
// Commands:
//   - serve: HTTP API server for conversation turns
//   - chat: one conversation turn from the terminal
//   - ingest: build the knowledge snapshot from a places catalog
//
// Signal handling and graceful shutdown run via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the minairo CLI.
func Execute() error {
	// Initialize the default logger once at entry point; app.Setup
	// replaces it with the configured one for the long-lived commands.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "chat":
		return runChat(os.Args[2:])
	case "ingest":
		return runIngest(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Minairo - conversation engine for the visitor guide")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  minairo serve              Start the HTTP API server")
	fmt.Println("  minairo chat <message>     Send one message, printing the reply")
	fmt.Println("  minairo chat --new <msg>   Start a fresh conversation")
	fmt.Println("  minairo ingest <catalog>   Embed a places catalog into the snapshot")
	fmt.Println("  minairo --version          Show version information")
	fmt.Println("  minairo --help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY             API key for the googleai provider")
	fmt.Println("  MINAIRO_PROVIDER           googleai (default), openai or ollama")
	fmt.Println("  MINAIRO_TRANSLATOR_URL     LibreTranslate-compatible endpoint")
	fmt.Println("  DEBUG                      Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.minairo/config.yaml")
}
