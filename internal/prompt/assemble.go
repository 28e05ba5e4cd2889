// Package prompt composes the model prompt for one turn: persona, the
// scripted step instruction, retrieved background passages and the
// recent conversation, trimmed to a token budget.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/emporda/minairo/internal/knowledge"
	"github.com/emporda/minairo/internal/log"
	"github.com/emporda/minairo/internal/session"
)

// ErrTooLarge means the persona and step instruction alone exceed the
// budget. The turn cannot be answered; there is nothing left to drop.
var ErrTooLarge = errors.New("prompt too large")

const (
	contextHeader = "Background notes:"
	historyHeader = "Conversation so far:"

	userLabel      = "Visitor"
	assistantLabel = "Guide"
)

// Config holds the assembly parameters.
type Config struct {
	// TokenBudget caps the estimated size of the assembled prompt.
	TokenBudget int

	// HistoryWindow is the maximum number of recent turns included
	// before budget trimming.
	HistoryWindow int

	// PersonaDir optionally overrides the embedded persona texts with
	// <lang>.txt files from this directory.
	PersonaDir string

	Logger log.Logger
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.TokenBudget < 1 {
		return fmt.Errorf("token budget must be positive, got %d", c.TokenBudget)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("history window must be positive, got %d", c.HistoryWindow)
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Request is the material for one prompt.
type Request struct {
	// Language selects the persona and the reply language.
	Language string

	// StepPrompt is the current step's instruction template; {{name}}
	// placeholders are filled from Slots.
	StepPrompt string

	Slots map[string]string

	// Chunks are background passages in retrieval-rank order, best
	// first.
	Chunks []knowledge.Scored

	// History is the conversation including the current user message
	// as its newest turn.
	History []session.Turn
}

// Prompt is an assembled model request.
type Prompt struct {
	Text string

	// Tokens is the estimate the budget was enforced against.
	Tokens int

	DroppedTurns  int
	DroppedChunks int
}

// Assembler builds prompts. Safe for concurrent use.
type Assembler struct {
	cfg      Config
	personas *personaSet
}

// New creates an assembler, loading persona texts from the embedded
// defaults plus any overrides in cfg.PersonaDir.
func New(cfg Config) (*Assembler, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid prompt config: %w", err)
	}
	personas, err := loadPersonas(cfg.PersonaDir)
	if err != nil {
		return nil, err
	}
	return &Assembler{cfg: cfg, personas: personas}, nil
}

// Assemble renders the prompt in fixed order: persona, step instruction
// with slots substituted, context chunks in rank order, then the most
// recent turns oldest to newest. When the estimate exceeds the budget
// it drops the oldest kept history turn first, then the lowest-ranked
// chunk; the persona and step instruction are never dropped, and if
// those two alone exceed the budget the turn fails with ErrTooLarge.
func (a *Assembler) Assemble(req Request) (Prompt, error) {
	persona := a.personas.Persona(req.Language)
	step := Substitute(req.StepPrompt, req.Slots)

	base := estimateTokens(persona) + estimateTokens(step)
	if base > a.cfg.TokenBudget {
		return Prompt{}, fmt.Errorf("%w: persona and step need %d tokens, budget is %d",
			ErrTooLarge, base, a.cfg.TokenBudget)
	}

	chunkLines := make([]string, len(req.Chunks))
	for i, sc := range req.Chunks {
		chunkLines[i] = "- " + sc.Chunk.Text
	}

	history := req.History
	droppedTurns := 0
	if len(history) > a.cfg.HistoryWindow {
		droppedTurns = len(history) - a.cfg.HistoryWindow
		history = history[droppedTurns:]
	}
	turnLines := make([]string, len(history))
	for i, turn := range history {
		turnLines[i] = speakerLabel(turn.Speaker) + ": " + turn.Text
	}

	total := base + sectionCost(contextHeader, chunkLines) + sectionCost(historyHeader, turnLines)
	droppedChunks := 0
	for total > a.cfg.TokenBudget && (len(turnLines) > 0 || len(chunkLines) > 0) {
		if len(turnLines) > 0 {
			turnLines = turnLines[1:]
			droppedTurns++
		} else {
			chunkLines = chunkLines[:len(chunkLines)-1]
			droppedChunks++
		}
		total = base + sectionCost(contextHeader, chunkLines) + sectionCost(historyHeader, turnLines)
	}

	if droppedTurns > 0 || droppedChunks > 0 {
		a.cfg.Logger.Debug("prompt trimmed to budget",
			"budget", a.cfg.TokenBudget,
			"dropped_turns", droppedTurns,
			"dropped_chunks", droppedChunks)
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(step)
	if len(chunkLines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(contextHeader)
		for _, line := range chunkLines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	if len(turnLines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(historyHeader)
		for _, line := range turnLines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}

	return Prompt{
		Text:          b.String(),
		Tokens:        total,
		DroppedTurns:  droppedTurns,
		DroppedChunks: droppedChunks,
	}, nil
}

// sectionCost is the estimated cost of a header plus its lines, zero
// when the section is empty. The budget loop and the final Tokens value
// use this same accounting, so the enforced bound is exact with respect
// to the estimator.
func sectionCost(header string, lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	total := estimateTokens(header)
	for _, line := range lines {
		total += estimateTokens(line)
	}
	return total
}

func speakerLabel(role session.Role) string {
	switch role {
	case session.RoleUser:
		return userLabel
	case session.RoleAssistant:
		return assistantLabel
	default:
		return string(role)
	}
}

// Substitute fills {{name}} placeholders in a template. Placeholders
// with no collected value stay as written. Shared with the coordinator,
// which renders canned step texts with the same rules.
func Substitute(template string, slots map[string]string) string {
	if len(slots) == 0 || !strings.Contains(template, "{{") {
		return template
	}
	replacements := make([]string, 0, len(slots)*2)
	for name, value := range slots {
		replacements = append(replacements, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(replacements...).Replace(template)
}

// estimateTokens gives a rough token count: rune count divided by two,
// conservative for both Latin-script and Cyrillic text.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}
