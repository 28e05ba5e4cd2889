package session

import (
	"slices"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Speaker Role
	Text    string
	At      time.Time
}

// State is everything the engine tracks for one conversation. History is
// append-only; prompt assembly windows it without ever truncating the
// stored sequence.
type State struct {
	// ConversationID is unique and immutable for the session's lifetime.
	ConversationID string

	// CurrentStep references a step id in the active dialog script.
	CurrentStep string

	// Slots holds the values the script has collected so far.
	Slots map[string]string

	// History is the ordered record of user and assistant turns.
	History []Turn

	// Language is the detected or pinned two-letter code.
	Language string

	// Freeform is set once the script hands the conversation off to
	// unscripted generation.
	Freeform bool

	// LastActive is stamped on every committed turn and drives TTL expiry.
	LastActive time.Time

	// SentimentTrail records one score per processed user turn.
	SentimentTrail []float64
}

// Clone returns a deep copy. Mutating the copy never affects the
// original.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Slots != nil {
		cp.Slots = make(map[string]string, len(s.Slots))
		for k, v := range s.Slots {
			cp.Slots[k] = v
		}
	}
	cp.History = slices.Clone(s.History)
	cp.SentimentTrail = slices.Clone(s.SentimentTrail)
	return &cp
}

// AppendTurn records an utterance at the end of the history.
func (s *State) AppendTurn(speaker Role, text string, at time.Time) {
	s.History = append(s.History, Turn{Speaker: speaker, Text: text, At: at})
}

// SetSlot stores a collected slot value.
func (s *State) SetSlot(name, value string) {
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	s.Slots[name] = value
}

// RecordSentiment appends a score to the sentiment trail.
func (s *State) RecordSentiment(score float64) {
	s.SentimentTrail = append(s.SentimentTrail, score)
}
