package translate

import (
	"math/rand"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/minios-linux/aitranslate/langmeta"
	"github.com/minios-linux/aitranslate/logging"
	"github.com/minios-linux/aitranslate/prompt"
)

// ---------------------------------------------------------------------------
// Generation modes
// ---------------------------------------------------------------------------

const (
	// ModeCSV sends one quoted line per string and verifies with ACK/NAK.
	ModeCSV = "csv"
	// ModeJSON sends structured items and verifies with a second schema pass.
	ModeJSON = "json"
)

// ---------------------------------------------------------------------------
// Translation options
// ---------------------------------------------------------------------------

// Options controls the translation engine. The zero value is usable.
type Options struct {
	// Mode is ModeCSV (default) or ModeJSON.
	Mode string
	// BatchSize is the number of lines per CSV round. Default: 32.
	BatchSize int
	// BatchMaxTokens is the token budget of a JSON round, prompt and
	// response included. Default: 4096.
	BatchMaxTokens int
	// StarvingAttempts is the attempt count from which a JSON unit is
	// moved to the front of the next batch. Default: 5.
	StarvingAttempts int
	// MaxUnitAttempts is the JSON-mode ceiling per unit; exceeding it
	// fails the whole job. Default: 25.
	MaxUnitAttempts int
	// GenerationAttempts bounds the rounds of one CSV batch. Default: 25.
	GenerationAttempts int
	// VerificationAttempts bounds the retries of one ACK/NAK exchange. Default: 5.
	VerificationAttempts int
	// RetryDelay is slept before every retry. Default: none.
	RetryDelay time.Duration
	// ResetAfterEmpty is the number of consecutive empty responses answered
	// by rollbacks; the next one resets the chat history. Default: 10.
	ResetAfterEmpty int
	// SkipTranslationVerification disables the correctness pass.
	SkipTranslationVerification bool
	// SkipStylingVerification disables the CSV styling pass.
	SkipStylingVerification bool
	// EnsureChangedTranslation re-asks for lines returned unchanged.
	EnsureChangedTranslation bool
	// UnchangedMinLength is the length above which an unchanged line is
	// suspicious. Default: 4.
	UnchangedMinLength int
	// UnchangedFixAttempts bounds the fix prompts per unchanged line. Default: 3.
	UnchangedFixAttempts int
	// TemplatedStringPrefix and TemplatedStringSuffix delimit placeholders.
	// Defaults: "{{" and "}}".
	TemplatedStringPrefix string
	TemplatedStringSuffix string
	// Prompts overrides the CSV-mode templates.
	Prompts prompt.Overrides
	// Contexts holds optional per-key hints sent with JSON items.
	Contexts map[string]string
	// Rand drives the key shuffle. Default: seeded from the clock.
	Rand *rand.Rand
	// LanguageName maps a language code to the name used in prompts.
	// Default: langmeta.EnglishName.
	LanguageName func(code string) string
	// Logger receives engine diagnostics. Default: discard.
	Logger logging.Logger
	// OnProgress is called after each accepted batch.
	OnProgress func(lang string, done, total int)
}

// Validate checks option ranges.
func (o Options) Validate() error {
	nonNegative := func(field string) validation.Rule {
		return validation.By(func(value any) error {
			switch v := value.(type) {
			case int:
				if v < 0 {
					return validation.NewError("translate.options."+field, field+" must be zero or positive")
				}
			case time.Duration:
				if v < 0 {
					return validation.NewError("translate.options."+field, field+" must be zero or positive")
				}
			}
			return nil
		})
	}
	return validation.ValidateStruct(&o,
		validation.Field(&o.Mode, validation.In(ModeCSV, ModeJSON)),
		validation.Field(&o.BatchSize, nonNegative("batch_size")),
		validation.Field(&o.BatchMaxTokens, nonNegative("batch_max_tokens")),
		validation.Field(&o.StarvingAttempts, nonNegative("starving_attempts")),
		validation.Field(&o.MaxUnitAttempts, nonNegative("max_unit_attempts")),
		validation.Field(&o.GenerationAttempts, nonNegative("generation_attempts")),
		validation.Field(&o.VerificationAttempts, nonNegative("verification_attempts")),
		validation.Field(&o.RetryDelay, nonNegative("retry_delay")),
		validation.Field(&o.ResetAfterEmpty, nonNegative("reset_after_empty")),
		validation.Field(&o.UnchangedMinLength, nonNegative("unchanged_min_length")),
		validation.Field(&o.UnchangedFixAttempts, nonNegative("unchanged_fix_attempts")),
		validation.Field(&o.TemplatedStringSuffix, validation.By(func(value any) error {
			if (o.TemplatedStringPrefix == "") != (value.(string) == "") {
				return validation.NewError("translate.options.templated_strings", "templated string prefix and suffix must be set together")
			}
			return nil
		})),
	)
}

func (o *Options) effectiveMode() string {
	if o.Mode != "" {
		return o.Mode
	}
	return ModeCSV
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 32
}

func (o *Options) effectiveBatchMaxTokens() int {
	if o.BatchMaxTokens > 0 {
		return o.BatchMaxTokens
	}
	return 4096
}

func (o *Options) effectiveStarvingAttempts() int {
	if o.StarvingAttempts > 0 {
		return o.StarvingAttempts
	}
	return 5
}

func (o *Options) effectiveMaxUnitAttempts() int {
	if o.MaxUnitAttempts > 0 {
		return o.MaxUnitAttempts
	}
	return 25
}

func (o *Options) effectiveGenerationAttempts() int {
	if o.GenerationAttempts > 0 {
		return o.GenerationAttempts
	}
	return 25
}

func (o *Options) effectiveVerificationAttempts() int {
	if o.VerificationAttempts > 0 {
		return o.VerificationAttempts
	}
	return 5
}

func (o *Options) effectiveResetAfterEmpty() int {
	if o.ResetAfterEmpty > 0 {
		return o.ResetAfterEmpty
	}
	return 10
}

func (o *Options) effectiveUnchangedMinLength() int {
	if o.UnchangedMinLength > 0 {
		return o.UnchangedMinLength
	}
	return 4
}

func (o *Options) effectiveUnchangedFixAttempts() int {
	if o.UnchangedFixAttempts > 0 {
		return o.UnchangedFixAttempts
	}
	return 3
}

func (o *Options) delimiters() (string, string) {
	if o.TemplatedStringPrefix != "" {
		return o.TemplatedStringPrefix, o.TemplatedStringSuffix
	}
	return "{{", "}}"
}

func (o *Options) newlineToken() string {
	prefix, suffix := o.delimiters()
	return prefix + "NEWLINE" + suffix
}

func (o *Options) languageName(code string) string {
	if o.LanguageName != nil {
		return o.LanguageName(code)
	}
	return langmeta.EnglishName(code)
}

func (o *Options) logger() logging.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.NoOp()
}

func (o *Options) rand() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (o *Options) progress(lang string, done, total int) {
	if o.OnProgress != nil {
		o.OnProgress(lang, done, total)
	}
}
