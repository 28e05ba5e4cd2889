package dialog

import (
	"context"
	"fmt"
	"maps"

	"github.com/emporda/minairo/internal/log"
)

// Action tells the caller to do something besides generating a normal
// step response.
type Action string

const (
	// ActionClarify means no transition matched and the step's clarify
	// text should be returned instead of a generated response.
	ActionClarify Action = "clarify"

	// ActionHandoff means the conversation reached a terminal step and
	// subsequent turns are answered in freeform mode.
	ActionHandoff Action = "handoff_freeform"
)

// Matcher extracts intents and slot values from raw user text.
// Implementations may be rule based or backed by a model.
type Matcher interface {
	// Intent returns the name of the matched intent, or "" when the
	// text matches none.
	Intent(ctx context.Context, text, lang string) (string, error)

	// Slots extracts values for the named slots from the text. Slots
	// that cannot be extracted are simply absent from the result.
	Slots(ctx context.Context, text string, want []string, lang string) (map[string]string, error)
}

// Turn carries the conversation state needed to advance one step.
type Turn struct {
	Step     string            // current step id
	Slots    map[string]string // slots collected so far
	Input    string            // user message text
	Language string            // detected language of the input
}

// Result is the outcome of advancing the dialog by one turn.
type Result struct {
	NextStep    string            // step id the conversation is on now
	Step        *Step             // resolved step, never nil
	SlotUpdates map[string]string // slot values extracted from this turn
	Actions     []Action          // extra handling the caller must apply
}

// Clarify reports whether the caller should answer with the step's
// canned clarification instead of generating a response.
func (r Result) Clarify() bool {
	for _, a := range r.Actions {
		if a == ActionClarify {
			return true
		}
	}
	return false
}

// Handoff reports whether the conversation just reached a terminal step.
func (r Result) Handoff() bool {
	for _, a := range r.Actions {
		if a == ActionHandoff {
			return true
		}
	}
	return false
}

// Config holds the dependencies for the dialog engine.
type Config struct {
	Script  *Script
	Matcher Matcher
	Logger  log.Logger
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Script == nil {
		return fmt.Errorf("script is required")
	}
	if c.Matcher == nil {
		return fmt.Errorf("matcher is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Engine walks a conversation through a validated script. It is
// stateless: all conversation state comes in through Turn and goes back
// out through Result, so a single Engine serves every session.
type Engine struct {
	script  *Script
	matcher Matcher
	logger  log.Logger
}

// NewEngine creates a dialog engine for the given script.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{
		script:  cfg.Script,
		matcher: cfg.Matcher,
		logger:  cfg.Logger,
	}, nil
}

// Script returns the script the engine runs.
func (e *Engine) Script() *Script { return e.script }

// Entry returns the step id new conversations start on.
func (e *Engine) Entry() string { return e.script.Entry }

// Advance evaluates one user turn against the current step and decides
// where the conversation goes next.
//
// Slot extraction is best effort: a matcher failure is logged and the
// turn proceeds with whatever was extracted before the failure.
// Transitions are evaluated in declaration order against the merged
// slot set (existing slots plus this turn's extractions); the first
// match wins. If none match, the step's fallback transition is taken,
// and if there is no fallback the conversation stays on the current
// step with ActionClarify.
func (e *Engine) Advance(ctx context.Context, turn Turn) (Result, error) {
	step, ok := e.script.Step(turn.Step)
	if !ok {
		return Result{}, fmt.Errorf("%w: state references unknown step %q", ErrScript, turn.Step)
	}
	if step.Terminal {
		return Result{NextStep: step.ID, Step: step, Actions: []Action{ActionHandoff}}, nil
	}

	updates := e.extractSlots(ctx, step, turn)

	intent, err := e.matcher.Intent(ctx, turn.Input, turn.Language)
	if err != nil {
		e.logger.Warn("intent match failed", "step", step.ID, "error", err)
		intent = ""
	}

	merged := make(map[string]string, len(turn.Slots)+len(updates))
	maps.Copy(merged, turn.Slots)
	maps.Copy(merged, updates)

	next := e.pickTransition(step, intent, merged)
	if next == "" {
		e.logger.Debug("no transition matched", "step", step.ID, "intent", intent)
		return Result{
			NextStep:    step.ID,
			Step:        step,
			SlotUpdates: updates,
			Actions:     []Action{ActionClarify},
		}, nil
	}

	landed, ok := e.script.Step(next)
	if !ok {
		return Result{}, fmt.Errorf("%w: transition from %q targets unknown step %q", ErrScript, step.ID, next)
	}

	res := Result{NextStep: landed.ID, Step: landed, SlotUpdates: updates}
	if landed.Terminal {
		res.Actions = append(res.Actions, ActionHandoff)
	}
	e.logger.Debug("dialog advanced",
		"from", step.ID, "to", landed.ID, "intent", intent, "terminal", landed.Terminal)
	return res, nil
}

func (e *Engine) extractSlots(ctx context.Context, step *Step, turn Turn) map[string]string {
	if len(step.RequiredSlots) == 0 {
		return nil
	}
	updates, err := e.matcher.Slots(ctx, turn.Input, step.RequiredSlots, turn.Language)
	if err != nil {
		e.logger.Warn("slot extraction failed", "step", step.ID, "error", err)
	}
	return updates
}

// pickTransition returns the target step id of the first matching
// transition, falling back to the step's fallback transition, or ""
// when nothing applies.
func (e *Engine) pickTransition(step *Step, intent string, slots map[string]string) string {
	for _, t := range step.Transitions {
		if t.Fallback {
			continue
		}
		if t.IfIntent != "" && t.IfIntent != intent {
			continue
		}
		if !hasSlots(slots, t.IfSlots) {
			continue
		}
		return t.To
	}
	for _, t := range step.Transitions {
		if t.Fallback {
			return t.To
		}
	}
	return ""
}

func hasSlots(slots map[string]string, want []string) bool {
	for _, name := range want {
		if slots[name] == "" {
			return false
		}
	}
	return true
}
