// Package config detects how a project lays out its locale files and
// loads the optional .aitranslate.yaml / .aitranslate.toml project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Layout indicates how locale files are organized.
type Layout string

const (
	// LayoutFlat: locales/en.json, locales/fr.json, locales/de.json
	LayoutFlat Layout = "flat"
	// LayoutNested: locales/en/translation.json, locales/fr/translation.json
	LayoutNested Layout = "nested"
)

// Project holds the detected locale layout of a source file.
type Project struct {
	// Input is the absolute path of the source JSON file.
	Input string
	// SourceLang is the source language code.
	SourceLang string
	// Dir is the locales root: the directory holding <lang>.json files
	// (flat) or <lang>/ directories (nested).
	Dir string
	// Layout indicates how locale files are organized.
	Layout Layout
	// FileName is the per-language file name of a nested layout.
	FileName string
	// Languages are the target languages that already have a file.
	Languages []string
}

// Detect inspects the source file and its siblings. sourceLang may be
// empty, in which case it is taken from the file or directory name and
// falls back to "en".
func Detect(input, sourceLang string) (*Project, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", input, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a JSON file", input)
	}

	p := &Project{Input: abs, SourceLang: sourceLang, Layout: LayoutFlat, Dir: filepath.Dir(abs)}
	base := filepath.Base(abs)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	parent := filepath.Base(p.Dir)

	switch {
	case isLangCode(stem):
		if p.SourceLang == "" {
			p.SourceLang = stem
		}
	case isLangCode(parent):
		p.Layout = LayoutNested
		p.FileName = base
		p.Dir = filepath.Dir(p.Dir)
		if p.SourceLang == "" {
			p.SourceLang = parent
		}
	}
	if p.SourceLang == "" {
		p.SourceLang = "en"
	}

	p.Languages = p.detectLanguages()
	return p, nil
}

// OutputPath returns the locale file of lang.
func (p *Project) OutputPath(lang string) string {
	if p.Layout == LayoutNested {
		return filepath.Join(p.Dir, lang, p.FileName)
	}
	return filepath.Join(p.Dir, lang+".json")
}

// WithDir returns a copy of p writing into dir. Existing languages are
// detected again there.
func (p *Project) WithDir(dir string) *Project {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	c := *p
	c.Dir = abs
	c.Languages = c.detectLanguages()
	return &c
}

func (p *Project) detectLanguages() []string {
	var langs []string
	if p.Layout == LayoutNested {
		langs = detectLanguagesNested(p.Dir, p.FileName)
	} else {
		langs = detectLanguagesFlat(p.Dir)
	}
	out := langs[:0]
	for _, l := range langs {
		if l != p.SourceLang {
			out = append(out, l)
		}
	}
	return out
}

// isLangCode checks if a string looks like a language code.
// Supports: en, ru, fil, pt-BR, pt_BR, zh-Hans, sr-Latn-RS.
func isLangCode(s string) bool {
	parts := strings.Split(strings.ReplaceAll(s, "_", "-"), "-")
	if len(parts[0]) < 2 || len(parts[0]) > 3 {
		return false
	}
	for _, r := range parts[0] {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	for _, part := range parts[1:] {
		if len(part) < 2 || len(part) > 8 {
			return false
		}
		for _, r := range part {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return false
			}
		}
	}
	return true
}

// detectLanguagesFlat finds language codes from <lang>.json files.
func detectLanguagesFlat(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		lang := strings.TrimSuffix(name, ".json")
		if isLangCode(lang) {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

// detectLanguagesNested finds languages from <lang>/<fileName> files.
func detectLanguagesNested(dir, fileName string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var langs []string
	for _, entry := range entries {
		if !entry.IsDir() || !isLangCode(entry.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, entry.Name(), fileName)); err == nil {
			langs = append(langs, entry.Name())
		}
	}
	sort.Strings(langs)
	return langs
}
