package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/emporda/minairo/internal/app"
	"github.com/emporda/minairo/internal/config"
	"github.com/emporda/minairo/internal/session"
)

// runChat processes one conversation turn from the terminal. The active
// conversation id is kept in ~/.minairo so consecutive invocations
// continue the same conversation; --new starts over.
func runChat(args []string) error {
	startNew := false
	var words []string
	for _, a := range args {
		if a == "--new" || a == "-n" {
			startNew = true
			continue
		}
		words = append(words, a)
	}
	message := strings.TrimSpace(strings.Join(words, " "))
	if message == "" {
		return fmt.Errorf("usage: minairo chat [--new] <message>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	conversationID := ""
	if startNew {
		if err := session.ClearCurrentConversationID(); err != nil {
			return fmt.Errorf("clearing conversation state: %w", err)
		}
	} else {
		conversationID, err = session.LoadCurrentConversationID()
		if err != nil {
			return fmt.Errorf("loading conversation state: %w", err)
		}
	}

	reply, err := a.Coordinator.Respond(ctx, conversationID, message)
	if err != nil {
		return fmt.Errorf("processing turn: %w", err)
	}

	if err := session.SaveCurrentConversationID(reply.ConversationID); err != nil {
		a.Logger.Warn("saving conversation state", "error", err)
	}

	fmt.Println(reply.Response)
	if reply.Degraded {
		fmt.Println("(degraded response: the model was unavailable)")
	}
	return nil
}
