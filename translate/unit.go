package translate

import (
	"regexp"
	"strings"
)

// Unit is one string being translated.
type Unit struct {
	// ID identifies the unit within a run; JSON items are matched by it.
	ID int
	// Key is the flattened path of the source leaf.
	Key string
	// Original is the source text, with newlines already substituted.
	Original string
	// Translated is the current best candidate.
	Translated string
	// Context is an optional hint for the model.
	Context string
	// Failure is the last rejection reason, sent back to the model.
	Failure string
	// Templates are the placeholder spans of Original, in order.
	Templates []string

	TranslationAttempts  int
	VerificationAttempts int
}

func (u *Unit) attempts() int {
	return u.TranslationAttempts + u.VerificationAttempts
}

// templatePattern matches prefix...suffix spans, shortest first.
func templatePattern(prefix, suffix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `.*?` + regexp.QuoteMeta(suffix))
}

func extractTemplates(pattern *regexp.Regexp, s string) []string {
	return pattern.FindAllString(s, -1)
}

// missingTemplates returns the templates that text does not contain as
// often as they were extracted.
func missingTemplates(templates []string, text string) []string {
	if len(templates) == 0 {
		return nil
	}
	want := make(map[string]int, len(templates))
	for _, t := range templates {
		want[t]++
	}
	var missing []string
	for _, t := range templates {
		n, ok := want[t]
		if !ok {
			continue
		}
		if strings.Count(text, t) < n {
			missing = append(missing, t)
		}
		delete(want, t)
	}
	return missing
}

func unitKeys(units []*Unit) []string {
	keys := make([]string, len(units))
	for i, u := range units {
		keys[i] = u.Key
	}
	return keys
}
