// Package testutil provides deterministic fakes for the external
// collaborators: a scripted completion client and a hash-based
// embedder. Production code never imports this package.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/emporda/minairo/internal/chat"
)

// ScriptedCompletion is a chat.CompletionClient whose answers are
// scripted in advance. Errors queued with FailWith are served before
// pattern rules, so tests can drive the retry path precisely.
//
// Safe for concurrent use.
type ScriptedCompletion struct {
	mu       sync.Mutex
	rules    []completionRule
	errQueue []error
	fallback string
	calls    []CompletionCall
}

type completionRule struct {
	pattern  string // lowercase substring matched against the prompt
	response string
}

// CompletionCall records one Complete invocation.
type CompletionCall struct {
	Prompt string
	Params chat.Params
}

// NewScriptedCompletion creates a client returning fallback when no
// pattern matches.
func NewScriptedCompletion(fallback string) *ScriptedCompletion {
	return &ScriptedCompletion{fallback: fallback}
}

// AddResponse registers a pattern-response pair. Patterns match
// case-insensitively as substrings of the prompt; first registered
// match wins.
func (s *ScriptedCompletion) AddResponse(pattern, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, completionRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// FailWith queues errors returned by the next calls, in order, before
// any pattern matching happens.
func (s *ScriptedCompletion) FailWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errQueue = append(s.errQueue, errs...)
}

// Calls returns a copy of every recorded call.
func (s *ScriptedCompletion) Calls() []CompletionCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]CompletionCall, len(s.calls))
	copy(cp, s.calls)
	return cp
}

// CallCount returns how many times Complete was invoked.
func (s *ScriptedCompletion) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Complete implements chat.CompletionClient.
func (s *ScriptedCompletion) Complete(_ context.Context, prompt string, params chat.Params) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, CompletionCall{Prompt: prompt, Params: params})

	if len(s.errQueue) > 0 {
		err := s.errQueue[0]
		s.errQueue = s.errQueue[1:]
		return "", err
	}

	lower := strings.ToLower(prompt)
	for _, r := range s.rules {
		if strings.Contains(lower, r.pattern) {
			return r.response, nil
		}
	}
	return s.fallback, nil
}
