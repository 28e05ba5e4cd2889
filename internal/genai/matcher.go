package genai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// unknownValue is what the model is told to answer for anything it
// cannot extract. Matching is case-insensitive.
const unknownValue = "unknown"

// Matcher is a model-backed dialog.Matcher: slot values and intents are
// extracted by the completion model instead of rules. Best effort by
// contract; the dialog engine treats every error as "no candidates".
type Matcher struct {
	client  *Client
	model   string
	intents []string
}

// NewMatcher creates a matcher classifying into the given intent names.
func NewMatcher(client *Client, intents []string) *Matcher {
	names := slices.Clone(intents)
	slices.Sort(names)
	return &Matcher{
		client:  client,
		model:   client.cfg.FullModelName(),
		intents: names,
	}
}

// Intent asks the model to classify the message into one of the known
// intent names, or none.
func (m *Matcher) Intent(ctx context.Context, text, lang string) (string, error) {
	if len(m.intents) == 0 || strings.TrimSpace(text) == "" {
		return "", nil
	}

	promptText := fmt.Sprintf(
		"Classify the user message into exactly one of these intents: %s.\n"+
			"The message is in language %q.\n"+
			"Answer with the intent name only, or %q if none applies.\n\n"+
			"Message: %s",
		strings.Join(m.intents, ", "), lang, unknownValue, text)

	resp, err := genkit.Generate(ctx, m.client.g,
		ai.WithModelName(m.model),
		ai.WithPrompt(promptText),
	)
	if err != nil {
		return "", fmt.Errorf("intent classification: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Text()))
	if slices.Contains(m.intents, answer) {
		return answer, nil
	}
	return "", nil
}

// Slots asks the model to extract the wanted slot values from the
// message. Slots the model answers "unknown" for are absent from the
// result, which makes the engine re-prompt the same step.
func (m *Matcher) Slots(ctx context.Context, text string, want []string, lang string) (map[string]string, error) {
	if len(want) == 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	promptText := fmt.Sprintf(
		"Extract the following fields from the user message: %s.\n"+
			"The message is in language %q.\n"+
			"Answer with one line per field in the form name: value.\n"+
			"Use %q as the value for any field the message does not state.\n"+
			"For party_size answer with digits; for time answer as HH:MM.\n\n"+
			"Message: %s",
		strings.Join(want, ", "), lang, unknownValue, text)

	resp, err := genkit.Generate(ctx, m.client.g,
		ai.WithModelName(m.model),
		ai.WithPrompt(promptText),
	)
	if err != nil {
		return nil, fmt.Errorf("slot extraction: %w", err)
	}

	return parseSlotLines(resp.Text(), want), nil
}

// parseSlotLines reads "name: value" lines, keeping only wanted names
// with a usable value.
func parseSlotLines(answer string, want []string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(answer, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if !slices.Contains(want, name) {
			continue
		}
		if value == "" || strings.EqualFold(value, unknownValue) {
			continue
		}
		out[name] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
