package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed personas/*.txt
var personaFS embed.FS

// fallbackLang is the persona used when no file exists for the
// requested language. Its text carries a {{lang}} placeholder telling
// the model which language to answer in.
const fallbackLang = "en"

// languageNames spells out the codes the fallback persona can be asked
// to answer in.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ca": "Catalan",
	"ru": "Russian",
}

type personaSet struct {
	byLang map[string]string
}

// loadPersonas reads the embedded persona files and overlays any
// <lang>.txt files found in dir.
func loadPersonas(dir string) (*personaSet, error) {
	set := &personaSet{byLang: make(map[string]string)}

	entries, err := personaFS.ReadDir("personas")
	if err != nil {
		return nil, fmt.Errorf("reading embedded personas: %w", err)
	}
	for _, entry := range entries {
		data, err := personaFS.ReadFile("personas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded persona %s: %w", entry.Name(), err)
		}
		set.byLang[langFromFilename(entry.Name())] = strings.TrimSpace(string(data))
	}

	if dir != "" {
		overrides, err := filepath.Glob(filepath.Join(dir, "*.txt"))
		if err != nil {
			return nil, fmt.Errorf("listing persona overrides: %w", err)
		}
		for _, path := range overrides {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading persona override %s: %w", path, err)
			}
			set.byLang[langFromFilename(filepath.Base(path))] = strings.TrimSpace(string(data))
		}
	}
	if _, ok := set.byLang[fallbackLang]; !ok {
		return nil, fmt.Errorf("no persona for fallback language %q", fallbackLang)
	}
	return set, nil
}

func langFromFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Persona returns the persona text for lang. Languages without their
// own persona get the fallback text with {{lang}} filled in, so the
// model still answers in the visitor's language.
func (p *personaSet) Persona(lang string) string {
	if text, ok := p.byLang[lang]; ok {
		return strings.ReplaceAll(text, "{{lang}}", languageName(lang))
	}
	text := p.byLang[fallbackLang]
	return strings.ReplaceAll(text, "{{lang}}", languageName(lang))
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	if code == "" {
		return languageNames[fallbackLang]
	}
	return code
}
