package dialog

import (
	"context"
	"testing"
)

func testIntents() map[string]Keywords {
	return map[string]Keywords{
		"booking": {
			"en": []string{"book", "table", "reservation"},
			"es": []string{"reservar", "mesa"},
			"ru": []string{"столик"},
		},
		"cancel": {
			"en": []string{"cancel", "forget it"},
			"es": []string{"cancelar"},
		},
	}
}

func TestRuleMatcher_Intent(t *testing.T) {
	t.Parallel()

	m := NewRuleMatcher(testIntents())

	tests := []struct {
		name string
		text string
		lang string
		want string
	}{
		{name: "english booking keyword", text: "Book a table for 2 tonight", lang: "en", want: "booking"},
		{name: "spanish booking keyword", text: "Quiero reservar para esta noche", lang: "es", want: "booking"},
		{name: "russian booking keyword", text: "Можно столик на двоих?", lang: "ru", want: "booking"},
		{name: "english fallback for unsupported language", text: "can I book?", lang: "fr", want: "booking"},
		{name: "cancel phrase", text: "actually, forget it", lang: "en", want: "cancel"},
		{name: "case insensitive", text: "CANCEL THAT", lang: "en", want: "cancel"},
		{name: "no keyword", text: "what a lovely day", lang: "en", want: ""},
		{name: "ambiguous text matches first intent name", text: "cancel my booking", lang: "en", want: "booking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := m.Intent(context.Background(), tt.text, tt.lang)
			if err != nil {
				t.Fatalf("Intent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Intent(%q, %q) = %q, want %q", tt.text, tt.lang, got, tt.want)
			}
		})
	}
}

func TestExtractPartySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		lang string
		want string
		ok   bool
	}{
		{name: "digit", text: "Book a table for 2 tonight", lang: "en", want: "2", ok: true},
		{name: "digit among words", text: "we are 11 people", lang: "en", want: "11", ok: true},
		{name: "time is not a party size", text: "a table at 20:30", lang: "en", ok: false},
		{name: "digit after time", text: "at 20:30 for 4 people", lang: "en", want: "4", ok: true},
		{name: "meridiem hour skipped", text: "for 3 at 8 pm", lang: "en", want: "3", ok: true},
		{name: "english word", text: "a table for two", lang: "en", want: "2", ok: true},
		{name: "spanish word", text: "mesa para cuatro personas", lang: "es", want: "4", ok: true},
		{name: "catalan word ignores article", text: "una taula per a quatre", lang: "ca", want: "4", ok: true},
		{name: "german word", text: "einen Tisch für zwei", lang: "de", want: "2", ok: true},
		{name: "russian word", text: "столик на три персоны", lang: "ru", want: "3", ok: true},
		{name: "english word under foreign language", text: "table for three please", lang: "es", want: "3", ok: true},
		{name: "too large", text: "a table for 99 people", lang: "en", ok: false},
		{name: "nothing", text: "somewhere quiet please", lang: "en", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := extractPartySize(tt.text, tt.lang)
			if ok != tt.ok {
				t.Fatalf("extractPartySize(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("extractPartySize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "24h clock", text: "around 20:30 please", want: "20:30", ok: true},
		{name: "padded", text: "at 9:05", want: "09:05", ok: true},
		{name: "evening meridiem", text: "8 pm works", want: "20:00", ok: true},
		{name: "noon meridiem", text: "12 pm", want: "12:00", ok: true},
		{name: "past midnight meridiem", text: "12 am", want: "00:00", ok: true},
		{name: "morning meridiem", text: "10am", want: "10:00", ok: true},
		{name: "french hour with minutes", text: "vers 20h30", want: "20:30", ok: true},
		{name: "french hour bare", text: "à 20h", want: "20:00", ok: true},
		{name: "noon word", text: "lunch at noon", want: "12:00", ok: true},
		{name: "midnight word", text: "after midnight", want: "00:00", ok: true},
		{name: "no time", text: "a table for four", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := extractTime(tt.text)
			if ok != tt.ok {
				t.Fatalf("extractTime(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("extractTime(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestRuleMatcher_Slots(t *testing.T) {
	t.Parallel()

	m := NewRuleMatcher(testIntents())

	got, err := m.Slots(context.Background(), "book for 2 at 20:30", []string{SlotPartySize, SlotTime, "occasion"}, "en")
	if err != nil {
		t.Fatalf("Slots() error = %v", err)
	}
	if got[SlotPartySize] != "2" {
		t.Errorf("party_size = %q, want %q", got[SlotPartySize], "2")
	}
	if got[SlotTime] != "20:30" {
		t.Errorf("time = %q, want %q", got[SlotTime], "20:30")
	}
	if _, ok := got["occasion"]; ok {
		t.Error("unknown slot name should be absent from the result")
	}
}
