// Package prompt builds the texts sent to the generation and verification
// chats. A Builder is an immutable value: overrides are validated once by
// NewBuilder and then threaded through every call.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Tokens substituted into templates by literal replacement.
const (
	TokenInputLanguage  = "${inputLanguage}"
	TokenOutputLanguage = "${outputLanguage}"
	TokenInput          = "${input}"
	TokenMergedCSV      = "${mergedCsv}"
)

const overrideInvalidCode = "PROMPT_OVERRIDE_INVALID"

// ---------------------------------------------------------------------------
// Default templates
// ---------------------------------------------------------------------------

// Instructions is the system instruction shared by every chat.
const Instructions = `You are a professional translator specializing in software and product localization. You translate user interface strings and never add commentary.`

const defaultGeneration = `You are a professional translator.

Translate each line from ${inputLanguage} to ${outputLanguage}.

Return translations in the same text formatting.

Maintain case sensitivity and whitespacing.

Output only the translations, one per line, in the same order.

All lines should start and end with an ASCII quotation mark (").

${input}`

const defaultTranslationVerification = `Given a translation from ${inputLanguage} to ${outputLanguage} in CSV form, reply with NAK if _any_ of the translations are poorly translated.

Otherwise, reply with ACK.

Only reply with ACK/NAK.

**Be as nitpicky as possible.** If even the smallest thing seems off, you should reply NAK.

${inputLanguage},${outputLanguage}
${mergedCsv}`

const defaultStylingVerification = `Given text from ${inputLanguage} to ${outputLanguage} in CSV form, reply with NAK if _any_ of the translations do not match the formatting of the original.

Check for differing capitalization, punctuation, or whitespaces.

Otherwise, reply with ACK.

Only reply with ACK/NAK.

**Be as nitpicky as possible.** If even the smallest thing seems off, you should reply NAK.

${inputLanguage},${outputLanguage}
${mergedCsv}`

const fixTemplate = `The following text was returned unchanged when translated from ${inputLanguage} to ${outputLanguage}.

If it is a proper noun, a code, or already valid ${outputLanguage}, output it unchanged. Otherwise output its ${outputLanguage} translation, transliterating where no translation exists.

Output only the translation as a single line that starts and ends with an ASCII quotation mark (").

${input}`

const generationJSONTemplate = `You are a professional translator.

Translate the "original" field of every item from ${inputLanguage} to ${outputLanguage}.

Rules:
- Keep the same "id" for every item and return every item exactly once.
- Preserve text formatting, case sensitivity, punctuation and surrounding whitespace.
- Spans of the form %[1]s...%[2]s are placeholders: copy them verbatim and never translate them. This includes %[1]sNEWLINE%[2]s, which must not be converted to a line break.
- "context" is an optional hint about where the text appears.
- "failure" describes why a previous attempt for that item was rejected; fix that problem.

Return JSON of the form {"items": [{"id": <id>, "translated": "<text>"}]}.

${input}`

const verificationJSONTemplate = `You are reviewing translations from ${inputLanguage} to ${outputLanguage}.

For every item, decide whether "translated" is a correct and natural translation of "original" that keeps its capitalization, punctuation, whitespace and every %[1]s...%[2]s placeholder unchanged.

Return JSON of the form {"items": [{"id": <id>, "valid": <bool>, "issue": "<problem or empty>", "fixedTranslation": "<corrected text or empty>"}]}.

When "valid" is false, "issue" must describe the problem and "fixedTranslation" must hold a corrected translation.

**Be as nitpicky as possible.**

${input}`

// ---------------------------------------------------------------------------
// Overrides
// ---------------------------------------------------------------------------

// Overrides replaces the default CSV-mode templates. Empty fields keep the
// defaults.
type Overrides struct {
	GenerationPrompt              string `json:"generationPrompt,omitempty"`
	TranslationVerificationPrompt string `json:"translationVerificationPrompt,omitempty"`
	StylingVerificationPrompt     string `json:"stylingVerificationPrompt,omitempty"`
}

// LoadOverrides reads an overrides JSON file.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("reading prompt overrides: %w", err)
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, goerrors.Wrap(err, goerrors.CategoryValidation, fmt.Sprintf("parsing prompt overrides %s", path)).
			WithTextCode(overrideInvalidCode)
	}
	return o, nil
}

// Builder produces prompt texts. The zero value uses the default templates
// and "{{"/"}}" placeholder delimiters.
type Builder struct {
	generation              string
	translationVerification string
	stylingVerification     string
	prefix                  string
	suffix                  string
}

// NewBuilder validates overrides and returns a Builder. A template missing
// a required token is a configuration error.
func NewBuilder(o Overrides, prefix, suffix string) (Builder, error) {
	b := Builder{prefix: prefix, suffix: suffix}

	checks := []struct {
		name     string
		template string
		required []string
		target   *string
	}{
		{"generationPrompt", o.GenerationPrompt, []string{TokenInputLanguage, TokenOutputLanguage, TokenInput}, &b.generation},
		{"translationVerificationPrompt", o.TranslationVerificationPrompt, []string{TokenInputLanguage, TokenOutputLanguage, TokenMergedCSV}, &b.translationVerification},
		{"stylingVerificationPrompt", o.StylingVerificationPrompt, []string{TokenInputLanguage, TokenOutputLanguage, TokenMergedCSV}, &b.stylingVerification},
	}
	for _, c := range checks {
		if c.template == "" {
			continue
		}
		for _, token := range c.required {
			if !strings.Contains(c.template, token) {
				err := fmt.Errorf("%s override is missing required placeholder %s", c.name, token)
				return Builder{}, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
					WithTextCode(overrideInvalidCode)
			}
		}
		*c.target = c.template
	}
	return b, nil
}

func (b Builder) delimiters() (string, string) {
	prefix, suffix := b.prefix, b.suffix
	if prefix == "" {
		prefix = "{{"
	}
	if suffix == "" {
		suffix = "}}"
	}
	return prefix, suffix
}

func pick(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

func substitute(template, inLang, outLang string, extra ...string) string {
	pairs := []string{TokenInputLanguage, inLang, TokenOutputLanguage, outLang}
	pairs = append(pairs, extra...)
	return strings.NewReplacer(pairs...).Replace(template)
}

// ---------------------------------------------------------------------------
// CSV mode
// ---------------------------------------------------------------------------

// Generation asks for a line-by-line translation of input, one quoted
// string per line.
func (b Builder) Generation(inLang, outLang, input string) string {
	return substitute(pick(b.generation, defaultGeneration), inLang, outLang, TokenInput, input)
}

// Fix asks for a single line that came back unchanged to be translated again.
func (b Builder) Fix(inLang, outLang, line string) string {
	return substitute(fixTemplate, inLang, outLang, TokenInput, line)
}

// TranslationVerification asks for ACK/NAK on the correctness of output.
func (b Builder) TranslationVerification(inLang, outLang, input, output string) string {
	return substitute(pick(b.translationVerification, defaultTranslationVerification), inLang, outLang, TokenMergedCSV, MergeCSV(input, output))
}

// StylingVerification asks for ACK/NAK on the formatting fidelity of output.
func (b Builder) StylingVerification(inLang, outLang, input, output string) string {
	return substitute(pick(b.stylingVerification, defaultStylingVerification), inLang, outLang, TokenMergedCSV, MergeCSV(input, output))
}

// MergeCSV pairs the lines of input and output as "input,output" rows.
func MergeCSV(input, output string) string {
	in := strings.Split(input, "\n")
	out := strings.Split(output, "\n")
	rows := make([]string, 0, len(in))
	for i, line := range in {
		var translated string
		if i < len(out) {
			translated = out[i]
		}
		rows = append(rows, line+","+translated)
	}
	return strings.Join(rows, "\n")
}

// ---------------------------------------------------------------------------
// JSON mode
// ---------------------------------------------------------------------------

// GenerationJSON asks for the items encoded in payload to be translated.
func (b Builder) GenerationJSON(inLang, outLang, payload string) string {
	prefix, suffix := b.delimiters()
	return substitute(fmt.Sprintf(generationJSONTemplate, prefix, suffix), inLang, outLang, TokenInput, payload)
}

// VerificationJSON asks for a verdict on every translated item in payload.
func (b Builder) VerificationJSON(inLang, outLang, payload string) string {
	prefix, suffix := b.delimiters()
	return substitute(fmt.Sprintf(verificationJSONTemplate, prefix, suffix), inLang, outLang, TokenInput, payload)
}

// OverheadTokens estimates the size of the JSON-mode templates without a
// payload, for batch budgeting.
func (b Builder) OverheadTokens(estimate func(string) int) int {
	return estimate(b.GenerationJSON("", "", ""))
}
