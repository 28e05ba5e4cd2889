// Package language handles everything about the visitor's tongue:
// detecting it, resolving it against the supported set, scoring
// sentiment, and translating through the pivot language. All
// operations are stateless; the coordinator records their outputs
// into the session.
package language

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/emporda/minairo/internal/log"
)

var wordRe = regexp.MustCompile(`\p{L}+`)

// Config holds the pipeline parameters.
type Config struct {
	// Supported lists the language codes the assistant answers in, in
	// priority order. Detection ties resolve toward earlier entries.
	Supported []string

	// Default is the language used when nothing can be detected or
	// resolved. Must be one of Supported.
	Default string

	// Translator is the external translation collaborator. May be nil,
	// in which case every cross-language turn passes through unchanged
	// and is flagged untranslated.
	Translator Translator

	Logger log.Logger
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if len(c.Supported) == 0 {
		return fmt.Errorf("supported languages are required")
	}
	if !slices.Contains(c.Supported, c.Default) {
		return fmt.Errorf("default language %q is not in the supported set", c.Default)
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Pipeline is the language front of the assistant. Safe for concurrent
// use.
type Pipeline struct {
	cfg     Config
	matcher xlang.Matcher
}

// NewPipeline builds the pipeline and its BCP 47 matcher over the
// supported set.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid language config: %w", err)
	}
	tags := make([]xlang.Tag, len(cfg.Supported))
	for i, code := range cfg.Supported {
		tags[i] = xlang.Make(code)
	}
	return &Pipeline{cfg: cfg, matcher: xlang.NewMatcher(tags)}, nil
}

// Detect guesses the language of text. It returns a supported code and
// a confidence in (0, 1], or ("", 0) when the text carries no usable
// signal (empty, numeric, or matching no known words). Cyrillic script
// is checked first; Latin-script languages are told apart by common
// function words.
func (p *Pipeline) Detect(text string) (string, float64) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return "", 0
	}
	words := tokenize(text)
	if len(words) == 0 {
		return "", 0
	}

	letters, cyrillic := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Cyrillic, r) {
				cyrillic++
			}
		}
	}
	if cyrillic*2 > letters && slices.Contains(p.cfg.Supported, "ru") {
		return "ru", float64(cyrillic) / float64(letters)
	}

	best, bestScore := "", 0
	for _, lang := range p.cfg.Supported {
		set := stopwords[lang]
		if set == nil {
			continue
		}
		score := 0
		for _, w := range words {
			if set[w] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	if bestScore == 0 {
		return "", 0
	}
	confidence := float64(bestScore) / float64(len(words))
	if confidence > 1 {
		confidence = 1
	}
	return best, confidence
}

// Resolve maps an arbitrary language code (possibly a full BCP 47 tag
// like "ca-ES") onto the supported set, falling back to the default.
func (p *Pipeline) Resolve(code string) string {
	if code == "" {
		return p.cfg.Default
	}
	if slices.Contains(p.cfg.Supported, code) {
		return code
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return p.cfg.Default
	}
	_, idx, conf := p.matcher.Match(tag)
	if conf == xlang.No {
		return p.cfg.Default
	}
	return p.cfg.Supported[idx]
}

// Default returns the configured default language.
func (p *Pipeline) Default() string { return p.cfg.Default }

// Sentiment scores the mood of text in [-1, 1] by counting polarity
// words across all supported languages. Text with no polarity words
// scores 0.
func (p *Pipeline) Sentiment(text string) float64 {
	pos, neg := 0, 0
	for _, w := range tokenize(norm.NFC.String(text)) {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// stopwords are short function words and greetings distinctive enough
// to tell the Latin-script languages apart. Shared words (hola, una)
// are fine: ties resolve toward the earlier supported language.
var stopwords = map[string]map[string]bool{
	"en": wordSet("the", "and", "is", "are", "you", "for", "what", "where",
		"when", "how", "hello", "hi", "please", "thanks", "thank", "tonight",
		"we", "i", "my", "of", "to", "at", "in", "a", "would", "like", "can"),
	"es": wordSet("el", "la", "los", "las", "una", "que", "de", "para",
		"por", "con", "hola", "gracias", "quiero", "mesa", "noche", "esta",
		"es", "en", "un", "y", "dónde", "cómo"),
	"fr": wordSet("le", "les", "des", "une", "est", "pour", "avec",
		"bonjour", "merci", "je", "vous", "nous", "et", "ce", "du", "au",
		"soir", "voudrais", "où"),
	"de": wordSet("der", "die", "das", "und", "ist", "für", "mit", "ich",
		"wir", "bitte", "danke", "hallo", "einen", "ein", "zu", "im",
		"heute", "abend", "möchte", "wo"),
	"ca": wordSet("els", "les", "una", "què", "per", "amb", "hola",
		"gràcies", "vull", "taula", "nit", "és", "un", "i", "em", "avui",
		"vespre", "on", "voldria"),
	"ru": wordSet("и", "в", "на", "не", "что", "я", "мы", "как", "где",
		"привет", "спасибо", "можно", "хочу", "сегодня"),
}

// positiveWords and negativeWords form the sentiment lexicon, merged
// across languages since sentiment runs before the language is pinned.
var positiveWords = wordSet(
	"great", "good", "love", "lovely", "beautiful", "perfect", "thanks",
	"thank", "wonderful", "amazing", "nice", "happy", "excellent", "best",
	"genial", "bueno", "buena", "perfecto", "gracias", "maravilloso",
	"encanta", "bonito", "feliz",
	"bo", "bona", "perfecte", "gràcies", "meravellós", "bonic", "feliç",
	"super", "bon", "bonne", "parfait", "merci", "magnifique", "adore",
	"beau", "heureux",
	"toll", "gut", "perfekt", "danke", "wunderbar", "liebe", "schön",
	"glücklich",
	"отлично", "хорошо", "спасибо", "прекрасно", "люблю", "красиво",
	"счастлив",
)

var negativeWords = wordSet(
	"bad", "terrible", "awful", "hate", "horrible", "disappointed",
	"angry", "worst", "problem", "wrong", "slow", "rude", "never",
	"malo", "mala", "odio", "problema", "enfadado", "lento", "nunca",
	"dolent", "dolenta", "enfadat", "mai",
	"mauvais", "déteste", "problème", "fâché", "jamais",
	"schlecht", "schrecklich", "furchtbar", "hasse", "wütend", "langsam",
	"плохо", "ужасно", "ненавижу", "проблема", "злой", "медленно",
)
