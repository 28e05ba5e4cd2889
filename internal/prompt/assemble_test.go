package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emporda/minairo/internal/knowledge"
	"github.com/emporda/minairo/internal/log"
	"github.com/emporda/minairo/internal/session"
)

const testPersona = "P."

// newTestAssembler overrides the English persona with a two-rune text
// so budget arithmetic in tests is exact.
func newTestAssembler(t *testing.T, budget, window int) *Assembler {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "en.txt"), []byte(testPersona), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{
		TokenBudget:   budget,
		HistoryWindow: window,
		PersonaDir:    dir,
		Logger:        log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func scoredChunk(id, text string) knowledge.Scored {
	return knowledge.Scored{Chunk: knowledge.Chunk{ID: id, Text: text, AddedAt: time.Now()}}
}

func userTurn(text string) session.Turn {
	return session.Turn{Speaker: session.RoleUser, Text: text, At: time.Now()}
}

func assistantTurn(text string) session.Turn {
	return session.Turn{Speaker: session.RoleAssistant, Text: text, At: time.Now()}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero budget", cfg: Config{TokenBudget: 0, HistoryWindow: 4, Logger: log.NewNop()}},
		{name: "zero window", cfg: Config{TokenBudget: 100, HistoryWindow: 0, Logger: log.NewNop()}},
		{name: "nil logger", cfg: Config{TokenBudget: 100, HistoryWindow: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestAssemble_Order(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, 4096, 10)

	res, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: "Ask for the time.",
		Chunks:     []knowledge.Scored{scoredChunk("a", "first passage"), scoredChunk("b", "second passage")},
		History: []session.Turn{
			userTurn("hello"),
			assistantTurn("welcome"),
			userTurn("book a table"),
		},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	positions := []string{
		testPersona,
		"Ask for the time.",
		contextHeader,
		"first passage",
		"second passage",
		historyHeader,
		"Visitor: hello",
		"Guide: welcome",
		"Visitor: book a table",
	}
	last := -1
	for _, want := range positions {
		idx := strings.Index(res.Text, want)
		if idx < 0 {
			t.Fatalf("assembled text missing %q:\n%s", want, res.Text)
		}
		if idx <= last {
			t.Errorf("%q appears out of order at %d", want, idx)
		}
		last = idx
	}
}

func TestAssemble_SlotSubstitution(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, 4096, 10)

	res, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: "A table for {{party_size}} at {{time}}, {{unknown}} stays.",
		Slots:      map[string]string{"party_size": "2", "time": "20:30"},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(res.Text, "A table for 2 at 20:30") {
		t.Errorf("slots not substituted:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "{{unknown}} stays") {
		t.Errorf("unfilled placeholder should stay verbatim:\n%s", res.Text)
	}
}

func TestAssemble_HistoryWindow(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, 4096, 2)

	res, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: "step",
		History: []session.Turn{
			userTurn("turn one"),
			assistantTurn("turn two"),
			userTurn("turn three"),
			assistantTurn("turn four"),
		},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if strings.Contains(res.Text, "turn one") || strings.Contains(res.Text, "turn two") {
		t.Errorf("turns outside the window leaked in:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "turn three") || !strings.Contains(res.Text, "turn four") {
		t.Errorf("windowed turns missing:\n%s", res.Text)
	}
	if res.DroppedTurns != 2 {
		t.Errorf("DroppedTurns = %d, want 2", res.DroppedTurns)
	}
}

func TestAssemble_DropsOldestHistoryBeforeChunks(t *testing.T) {
	t.Parallel()

	step := "keep the step"
	chunk := scoredChunk("c", "the only chunk")
	oldTurn := userTurn("oldest words here")
	newTurn := userTurn("newest words")

	base := estimateTokens(testPersona) + estimateTokens(step)
	chunkCost := sectionCost(contextHeader, []string{"- " + chunk.Chunk.Text})
	newTurnCost := sectionCost(historyHeader, []string{"Visitor: " + newTurn.Text})

	// Room for the chunk and the newest turn, but not both turns.
	budget := base + chunkCost + newTurnCost

	a := newTestAssembler(t, budget, 10)
	res, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: step,
		Chunks:     []knowledge.Scored{chunk},
		History:    []session.Turn{oldTurn, newTurn},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if strings.Contains(res.Text, "oldest words") {
		t.Errorf("oldest turn should be dropped first:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "newest words") {
		t.Errorf("newest turn must be kept:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "the only chunk") {
		t.Errorf("chunk dropped before history:\n%s", res.Text)
	}
	if res.DroppedTurns != 1 || res.DroppedChunks != 0 {
		t.Errorf("dropped turns/chunks = %d/%d, want 1/0", res.DroppedTurns, res.DroppedChunks)
	}
}

func TestAssemble_DropsLowestRankedChunkFirst(t *testing.T) {
	t.Parallel()

	step := "this step text is retained verbatim"
	best := scoredChunk("best", "top ranked passage")
	worst := scoredChunk("worst", "bottom ranked passage")

	base := estimateTokens(testPersona) + estimateTokens(step)
	oneChunk := sectionCost(contextHeader, []string{"- " + best.Chunk.Text})

	a := newTestAssembler(t, base+oneChunk, 10)
	res, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: step,
		Chunks:     []knowledge.Scored{best, worst},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if !strings.Contains(res.Text, step) {
		t.Errorf("step prompt must be retained verbatim:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "top ranked passage") {
		t.Errorf("top chunk should survive:\n%s", res.Text)
	}
	if strings.Contains(res.Text, "bottom ranked passage") {
		t.Errorf("lowest-ranked chunk should be dropped first:\n%s", res.Text)
	}
	if res.DroppedChunks != 1 {
		t.Errorf("DroppedChunks = %d, want 1", res.DroppedChunks)
	}
	if res.Tokens > base+oneChunk {
		t.Errorf("Tokens = %d exceeds budget %d", res.Tokens, base+oneChunk)
	}
}

func TestAssemble_TooLarge(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, 5, 10)

	_, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: strings.Repeat("long step instruction ", 10),
		Chunks:     []knowledge.Scored{scoredChunk("a", "chunk")},
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Assemble() error = %v, want ErrTooLarge", err)
	}
}

func TestAssemble_EverythingDroppedStillWithinBudget(t *testing.T) {
	t.Parallel()

	step := "short step"
	base := estimateTokens(testPersona) + estimateTokens(step)

	a := newTestAssembler(t, base, 10)
	res, err := a.Assemble(Request{
		Language:   "en",
		StepPrompt: step,
		Chunks:     []knowledge.Scored{scoredChunk("a", strings.Repeat("x", 100))},
		History:    []session.Turn{userTurn(strings.Repeat("y", 100))},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if res.DroppedTurns != 1 || res.DroppedChunks != 1 {
		t.Errorf("dropped turns/chunks = %d/%d, want 1/1", res.DroppedTurns, res.DroppedChunks)
	}
	if res.Tokens > base {
		t.Errorf("Tokens = %d, want at most %d", res.Tokens, base)
	}
}
