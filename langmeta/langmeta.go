// Package langmeta resolves language codes to the names used in prompts
// and to display metadata (native names and emoji flags) for the CLI.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	// Code is the canonical BCP 47 form of the code.
	Code string
	// English is the English name, e.g. "Brazilian Portuguese".
	English string
	// Name is the native name, e.g. "português".
	Name string
	// Flag is the emoji flag of the tag's most likely region.
	Flag string
}

var englishNamer = display.English.Tags()

// canonicalize turns pt_br, PT-br and similar into pt-BR.
func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

func parse(lang string) (language.Tag, bool) {
	code := canonicalize(lang)
	if code == "" {
		return language.Und, false
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}

// EnglishName returns the English name of lang for use in prompts. Codes
// x/text does not know are returned unchanged.
func EnglishName(lang string) string {
	tag, ok := parse(lang)
	if !ok {
		return lang
	}
	if name := englishNamer.Name(tag); name != "" {
		return name
	}
	return lang
}

// Resolve returns best-effort metadata for lang, supporting variants like
// pt_BR and pt-BR. Unknown codes resolve to themselves with no flag.
func Resolve(lang string) Meta {
	tag, ok := parse(lang)
	if !ok {
		return Meta{Code: lang, English: lang, Name: lang}
	}
	m := Meta{Code: tag.String(), English: EnglishName(lang), Name: display.Self.Name(tag)}
	if m.Name == "" {
		m.Name = m.English
	}
	if region, conf := tag.Region(); conf != language.No {
		m.Flag = flag(region.String())
	}
	return m
}

// flag maps a two-letter region code to its regional indicator pair.
func flag(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + r - 'A')
	}
	return b.String()
}
