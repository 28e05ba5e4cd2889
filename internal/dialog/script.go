// Package dialog drives the scripted part of a conversation: a named
// graph of steps with slot requirements and ordered transitions,
// advanced deterministically one user turn at a time.
package dialog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scripts/booking.yaml
var defaultScriptYAML []byte

// Keywords maps a language code to trigger words.
type Keywords map[string][]string

// Transition routes to another step when its condition matches. A
// transition with neither intent nor slot conditions matches every
// input. Fallback transitions are consulted only after every ordinary
// transition failed to match.
type Transition struct {
	// IfIntent requires the matcher to have detected this intent.
	IfIntent string `yaml:"if_intent,omitempty"`

	// IfSlots requires all named slots to be present, counting both
	// previously collected values and this turn's extractions.
	IfSlots []string `yaml:"if_slots,omitempty"`

	// Fallback marks the transition taken when nothing else matched.
	Fallback bool `yaml:"fallback,omitempty"`

	To string `yaml:"to"`
}

// Step is one node of the script graph.
type Step struct {
	ID string `yaml:"id"`

	// Prompt guides generation while the conversation sits on this
	// step. Collected slot values are substituted as {{name}}.
	Prompt string `yaml:"prompt"`

	// RequiredSlots are the values this step tries to collect; slot
	// extraction runs only against these names.
	RequiredSlots []string `yaml:"required_slots,omitempty"`

	Transitions []Transition `yaml:"transitions,omitempty"`

	// Clarify is returned verbatim (translated for the user) when no
	// transition matches and no fallback is declared.
	Clarify string `yaml:"clarify,omitempty"`

	// Degraded is the canned answer used when generation is exhausted
	// while the conversation sits on this step.
	Degraded string `yaml:"degraded,omitempty"`

	// Terminal steps hand the conversation off to free-form generation.
	Terminal bool `yaml:"terminal,omitempty"`
}

// Script is a validated, immutable dialog graph. Load it once at
// startup; Validate has already run for any Script obtained from Parse,
// LoadFile or LoadDefault.
type Script struct {
	Name string `yaml:"name"`

	// Entry is the step new conversations start on.
	Entry string `yaml:"entry"`

	// Intents maps intent names to per-language keyword lists consumed
	// by the rule matcher.
	Intents map[string]Keywords `yaml:"intents,omitempty"`

	Steps []Step `yaml:"steps"`

	index map[string]*Step
}

// Step resolves a step id.
func (s *Script) Step(id string) (*Step, bool) {
	st, ok := s.index[id]
	return st, ok
}

// Parse unmarshals and validates a script.
func Parse(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	if err := script.validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// LoadFile parses and validates the script at path.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return Parse(data)
}

// LoadDefault returns the embedded booking script.
func LoadDefault() (*Script, error) {
	return Parse(defaultScriptYAML)
}

// validate checks the graph invariants and builds the step index:
// unique non-empty step ids, non-empty prompts, an existing entry,
// every transition target resolvable, and at least one terminal step
// reachable from the entry.
func (s *Script) validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrScript)
	}
	if s.Entry == "" {
		return fmt.Errorf("%w: entry step not set", ErrScript)
	}

	s.index = make(map[string]*Step, len(s.Steps))
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.ID == "" {
			return fmt.Errorf("%w: step %d has no id", ErrScript, i)
		}
		if _, dup := s.index[step.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %q", ErrScript, step.ID)
		}
		if step.Prompt == "" {
			return fmt.Errorf("%w: step %q has no prompt", ErrScript, step.ID)
		}
		s.index[step.ID] = step
	}

	if _, ok := s.index[s.Entry]; !ok {
		return fmt.Errorf("%w: entry step %q does not exist", ErrScript, s.Entry)
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		fallbacks := 0
		for _, tr := range step.Transitions {
			if tr.To == "" {
				return fmt.Errorf("%w: step %q has a transition without a target", ErrScript, step.ID)
			}
			if _, ok := s.index[tr.To]; !ok {
				return fmt.Errorf("%w: step %q transition targets unknown step %q", ErrScript, step.ID, tr.To)
			}
			if tr.Fallback {
				fallbacks++
			}
		}
		if fallbacks > 1 {
			return fmt.Errorf("%w: step %q declares %d fallback transitions, at most one allowed", ErrScript, step.ID, fallbacks)
		}
	}

	if !s.terminalReachable() {
		return fmt.Errorf("%w: no terminal step reachable from entry %q", ErrScript, s.Entry)
	}
	return nil
}

// terminalReachable walks the graph from the entry step.
func (s *Script) terminalReachable() bool {
	visited := make(map[string]bool, len(s.Steps))
	queue := []string{s.Entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		step := s.index[id]
		if step.Terminal {
			return true
		}
		for _, tr := range step.Transitions {
			if !visited[tr.To] {
				queue = append(queue, tr.To)
			}
		}
	}
	return false
}
