package language

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	_ "embed"
)

//go:embed proverbs/proverbs.csv
var proverbsCSV []byte

// Proverb moods, matched against the visitor's sentiment score.
const (
	MoodPositive = "positive"
	MoodNeutral  = "neutral"
	MoodNegative = "negative"
)

// sentiment thresholds for picking a mood bucket.
const (
	positiveThreshold = 0.25
	negativeThreshold = -0.25
)

// recentKeep is how many recently served proverbs are withheld from the
// next picks, so a chatty visitor does not hear the same one twice in a
// row.
const recentKeep = 3

// Proverb is one saying the guide can close a freeform answer with.
type Proverb struct {
	Mood  string
	Text  string // the saying, in Catalan
	Gloss string // its English rendering
}

// ProverbSet serves proverbs by mood, cycling through each bucket and
// avoiding recent repeats. Safe for concurrent use.
type ProverbSet struct {
	mu     sync.Mutex
	byMood map[string][]Proverb
	next   map[string]int
	recent []string
}

// LoadProverbs parses the embedded proverb table.
func LoadProverbs() (*ProverbSet, error) {
	return parseProverbs(bytes.NewReader(proverbsCSV))
}

// LoadProverbsFile parses a proverb table from disk, same CSV format as
// the embedded one: mood,text,gloss with a header row.
func LoadProverbsFile(path string) (*ProverbSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening proverbs %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return parseProverbs(f)
}

func parseProverbs(r io.Reader) (*ProverbSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	set := &ProverbSet{
		byMood: make(map[string][]Proverb),
		next:   make(map[string]int),
	}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading proverbs line %d: %w", line, err)
		}
		if line == 1 && record[0] == "mood" {
			continue
		}
		mood, text, gloss := record[0], record[1], record[2]
		switch mood {
		case MoodPositive, MoodNeutral, MoodNegative:
		default:
			return nil, fmt.Errorf("proverbs line %d: unknown mood %q", line, mood)
		}
		if text == "" {
			return nil, fmt.Errorf("proverbs line %d: empty text", line)
		}
		set.byMood[mood] = append(set.byMood[mood], Proverb{Mood: mood, Text: text, Gloss: gloss})
	}
	if len(set.byMood) == 0 {
		return nil, fmt.Errorf("proverb table is empty")
	}
	return set, nil
}

// moodFor buckets a sentiment score.
func moodFor(score float64) string {
	switch {
	case score >= positiveThreshold:
		return MoodPositive
	case score <= negativeThreshold:
		return MoodNegative
	default:
		return MoodNeutral
	}
}

// Pick returns a proverb matching the sentiment score, cycling through
// the bucket and skipping recently served ones when it can. The second
// return is false only when the matching bucket and the neutral
// fallback are both empty.
func (s *ProverbSet) Pick(score float64) (Proverb, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mood := moodFor(score)
	list := s.byMood[mood]
	if len(list) == 0 {
		mood = MoodNeutral
		list = s.byMood[mood]
	}
	if len(list) == 0 {
		return Proverb{}, false
	}

	n := len(list)
	for i := range n {
		p := list[(s.next[mood]+i)%n]
		if !slices.Contains(s.recent, p.Text) {
			s.next[mood] = (s.next[mood] + i + 1) % n
			s.remember(p.Text)
			return p, true
		}
	}

	// Every proverb in the bucket was served recently; repeat the next
	// one in the cycle.
	p := list[s.next[mood]%n]
	s.next[mood] = (s.next[mood] + 1) % n
	s.remember(p.Text)
	return p, true
}

func (s *ProverbSet) remember(text string) {
	s.recent = append(s.recent, text)
	if len(s.recent) > recentKeep {
		s.recent = s.recent[len(s.recent)-recentKeep:]
	}
}

// proverbLabels introduce an appended saying in the visitor's language.
var proverbLabels = map[string]string{
	"en": "As they say here:",
	"es": "Como dicen por aquí:",
	"fr": "Comme on dit ici :",
	"de": "Wie man hier sagt:",
	"ca": "Com diuen per aquí:",
	"ru": "Как здесь говорят:",
}

// ProverbLabel returns the phrase that introduces a proverb in lang,
// falling back to English for languages without their own label.
func ProverbLabel(lang string) string {
	if label, ok := proverbLabels[lang]; ok {
		return label
	}
	return proverbLabels["en"]
}
