package dialog

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Slot names the rule matcher knows how to extract.
const (
	SlotPartySize = "party_size"
	SlotTime      = "time"
)

var (
	clockRe    = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	frenchHrRe = regexp.MustCompile(`\b([01]?\d|2[0-3])h([0-5]\d)?\b`)
	meridiemRe = regexp.MustCompile(`\b(1[0-2]|[1-9])\s*(am|pm)\b`)
	numberRe   = regexp.MustCompile(`\b([0-9]{1,2})\b`)
	wordRe     = regexp.MustCompile(`\p{L}+`)
)

// numberWords maps spelled-out party sizes per language. Only small
// groups are spelled out in practice; larger ones arrive as digits.
// Words that double as indefinite articles (un, una, une, ein) are
// deliberately absent: they show up in nearly every booking phrase and
// would shadow the real count.
var numberWords = map[string]map[string]int{
	"en": {
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
		"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	},
	"es": {
		"uno": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
		"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10, "once": 11, "doce": 12,
	},
	"fr": {
		"deux": 2, "trois": 3, "quatre": 4, "cinq": 5,
		"six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10, "onze": 11, "douze": 12,
	},
	"de": {
		"eins": 1, "zwei": 2, "drei": 3, "vier": 4,
		"fünf": 5, "sechs": 6, "sieben": 7, "acht": 8, "neun": 9, "zehn": 10,
		"elf": 11, "zwölf": 12,
	},
	"ca": {
		"dos": 2, "dues": 2, "tres": 3, "quatre": 4,
		"cinc": 5, "sis": 6, "set": 7, "vuit": 8, "nou": 9, "deu": 10,
		"onze": 11, "dotze": 12,
	},
	"ru": {
		"один": 1, "одна": 1, "два": 2, "две": 2, "три": 3, "четыре": 4,
		"пять": 5, "шесть": 6, "семь": 7, "восемь": 8, "девять": 9,
		"десять": 10, "одиннадцать": 11, "двенадцать": 12,
	},
}

// maxPartySize caps digit extraction so years and street numbers are
// not mistaken for a dinner party.
const maxPartySize = 50

// RuleMatcher matches intents by keyword and extracts booking slots
// with plain pattern rules. It needs no network and is fully
// deterministic, which makes it the default matcher.
type RuleMatcher struct {
	intents map[string]Keywords
	names   []string
}

// NewRuleMatcher builds a matcher over the given intent keyword lists,
// usually Script.Intents. Intent names are evaluated in sorted order so
// matching does not depend on map iteration.
func NewRuleMatcher(intents map[string]Keywords) *RuleMatcher {
	names := make([]string, 0, len(intents))
	for name := range intents {
		names = append(names, name)
	}
	slices.Sort(names)
	return &RuleMatcher{intents: intents, names: names}
}

// Intent returns the first intent whose keyword list for lang (with an
// English fallback) appears in the text, or "" when none match.
func (m *RuleMatcher) Intent(_ context.Context, text, lang string) (string, error) {
	lower := strings.ToLower(text)
	for _, name := range m.names {
		kws := m.intents[name][lang]
		if lang != "en" {
			kws = append(slices.Clone(kws), m.intents[name]["en"]...)
		}
		for _, kw := range kws {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return name, nil
			}
		}
	}
	return "", nil
}

// Slots extracts values for the requested slot names. Unknown names and
// values that cannot be found are left out of the result.
func (m *RuleMatcher) Slots(_ context.Context, text string, want []string, lang string) (map[string]string, error) {
	found := make(map[string]string)
	for _, name := range want {
		switch name {
		case SlotPartySize:
			if v, ok := extractPartySize(text, lang); ok {
				found[name] = v
			}
		case SlotTime:
			if v, ok := extractTime(text); ok {
				found[name] = v
			}
		}
	}
	return found, nil
}

// extractPartySize finds the number of diners in the text. Time
// expressions are cut out first so "table at 20:30 for 4" yields 4,
// not 20.
func extractPartySize(text, lang string) (string, bool) {
	cleaned := clockRe.ReplaceAllString(text, " ")
	cleaned = frenchHrRe.ReplaceAllString(cleaned, " ")
	cleaned = meridiemRe.ReplaceAllString(strings.ToLower(cleaned), " ")

	for _, match := range numberRe.FindAllString(cleaned, -1) {
		n, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if n >= 1 && n <= maxPartySize {
			return strconv.Itoa(n), true
		}
	}

	words := numberWords[lang]
	if words == nil {
		words = numberWords["en"]
	}
	for _, word := range wordRe.FindAllString(strings.ToLower(cleaned), -1) {
		if n, ok := words[word]; ok {
			return strconv.Itoa(n), true
		}
		if lang != "en" {
			if n, ok := numberWords["en"][word]; ok {
				return strconv.Itoa(n), true
			}
		}
	}
	return "", false
}

// extractTime finds a time of day and normalizes it to 24h HH:MM.
func extractTime(text string) (string, bool) {
	lower := strings.ToLower(text)

	if m := clockRe.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d:%02d", h, min), true
	}
	if m := meridiemRe.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch {
		case m[2] == "pm" && h != 12:
			h += 12
		case m[2] == "am" && h == 12:
			h = 0
		}
		return fmt.Sprintf("%02d:00", h), true
	}
	if m := frenchHrRe.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		return fmt.Sprintf("%02d:%02d", h, min), true
	}
	if strings.Contains(lower, "noon") || strings.Contains(lower, "mediodía") || strings.Contains(lower, "migdia") {
		return "12:00", true
	}
	if strings.Contains(lower, "midnight") || strings.Contains(lower, "medianoche") || strings.Contains(lower, "mitjanit") {
		return "00:00", true
	}
	return "", false
}
