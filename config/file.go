package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/aitranslate/provider"
	"github.com/minios-linux/aitranslate/translate"
)

// File names searched in the project root, in order.
const (
	FileNameYAML = ".aitranslate.yaml"
	FileNameYML  = ".aitranslate.yml"
	FileNameTOML = ".aitranslate.toml"
)

const invalidFileCode = "CONFIG_INVALID"

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// File is the project configuration file. Every field is optional;
// command-line flags override the values that are set here.
type File struct {
	// Input is the source JSON file, relative to the config file.
	Input string `yaml:"input,omitempty" toml:"input"`
	// SourceLang is the source language code.
	SourceLang string `yaml:"source_lang,omitempty" toml:"source_lang"`
	// Languages are the target language codes.
	Languages []string `yaml:"languages,omitempty" toml:"languages"`
	// OutputDir overrides where target files are written.
	OutputDir string `yaml:"output_dir,omitempty" toml:"output_dir"`

	Engine            string  `yaml:"engine,omitempty" toml:"engine"`
	Model             string  `yaml:"model,omitempty" toml:"model"`
	BaseURL           string  `yaml:"base_url,omitempty" toml:"base_url"`
	Proxy             string  `yaml:"proxy,omitempty" toml:"proxy"`
	Timeout           string  `yaml:"timeout,omitempty" toml:"timeout"`
	RequestsPerMinute int     `yaml:"requests_per_minute,omitempty" toml:"requests_per_minute"`
	Temperature       float64 `yaml:"temperature,omitempty" toml:"temperature"`

	// Mode is "csv" or "json".
	Mode                        string `yaml:"mode,omitempty" toml:"mode"`
	BatchSize                   int    `yaml:"batch_size,omitempty" toml:"batch_size"`
	BatchMaxTokens              int    `yaml:"batch_max_tokens,omitempty" toml:"batch_max_tokens"`
	GenerationAttempts          int    `yaml:"generation_attempts,omitempty" toml:"generation_attempts"`
	VerificationAttempts        int    `yaml:"verification_attempts,omitempty" toml:"verification_attempts"`
	SkipTranslationVerification bool   `yaml:"skip_translation_verification,omitempty" toml:"skip_translation_verification"`
	SkipStylingVerification     bool   `yaml:"skip_styling_verification,omitempty" toml:"skip_styling_verification"`
	EnsureChangedTranslation    bool   `yaml:"ensure_changed_translation,omitempty" toml:"ensure_changed_translation"`
	TemplatedStringPrefix       string `yaml:"templated_string_prefix,omitempty" toml:"templated_string_prefix"`
	TemplatedStringSuffix       string `yaml:"templated_string_suffix,omitempty" toml:"templated_string_suffix"`
	// OverridePrompt is a JSON file of prompt template overrides.
	OverridePrompt string `yaml:"override_prompt,omitempty" toml:"override_prompt"`
	// Contexts maps keys to hints sent along in JSON mode.
	Contexts map[string]string `yaml:"contexts,omitempty" toml:"contexts"`

	LogLevel  string `yaml:"log_level,omitempty" toml:"log_level"`
	LogFormat string `yaml:"log_format,omitempty" toml:"log_format"`

	path string
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Find returns the config file in dir, or "" if there is none.
func Find(dir string) string {
	for _, name := range []string{FileNameYAML, FileNameYML, FileNameTOML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load loads and validates the config file of dir.
// Returns nil if no config file exists.
func Load(dir string) (*File, error) {
	path := Find(dir)
	if path == "" {
		return nil, nil
	}
	return LoadPath(path)
}

// LoadPath loads and validates a config file. The format follows the
// extension: .toml is TOML, anything else YAML.
func LoadPath(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
		if err != nil {
			return nil, invalid(fmt.Errorf("parsing %s: %w", path, err))
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, invalid(fmt.Errorf("parsing %s: unknown field %q", path, undecoded[0].String()))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, invalid(fmt.Errorf("parsing %s: %w", path, err))
		}
	}
	f.path = path

	if err := f.Validate(); err != nil {
		return nil, invalid(fmt.Errorf("%s: %w", path, err))
	}
	return &f, nil
}

func invalid(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
		WithTextCode(invalidFileCode)
}

// Path returns the file the configuration was loaded from.
func (f *File) Path() string {
	return f.path
}

// Resolve returns path relative to the config file directory. Absolute
// and empty paths are returned unchanged.
func (f *File) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || f.path == "" {
		return path
	}
	return filepath.Join(filepath.Dir(f.path), path)
}

// TimeoutDuration parses Timeout; zero means the engine default.
func (f *File) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(f.Timeout)
	return d
}

// Validate checks field values.
func (f File) Validate() error {
	engines := make([]any, 0, 4)
	for _, e := range provider.Engines() {
		engines = append(engines, e)
	}
	nonNegative := func(code string) validation.Rule {
		return validation.By(func(value any) error {
			if value.(int) < 0 {
				return validation.NewError("config."+code, code+" must be zero or positive")
			}
			return nil
		})
	}

	return validation.ValidateStruct(&f,
		validation.Field(&f.Engine, validation.In(engines...)),
		validation.Field(&f.Mode, validation.In(translate.ModeCSV, translate.ModeJSON)),
		validation.Field(&f.LogFormat, validation.In("console", "json", "pretty")),
		validation.Field(&f.LogLevel, validation.In("trace", "debug", "info", "warn", "error", "fatal")),
		validation.Field(&f.Timeout, validation.By(func(value any) error {
			s := value.(string)
			if s == "" {
				return nil
			}
			if d, err := time.ParseDuration(s); err != nil || d < 0 {
				return validation.NewError("config.timeout", "timeout must be a duration such as 90s")
			}
			return nil
		})),
		validation.Field(&f.BatchSize, nonNegative("batch_size")),
		validation.Field(&f.BatchMaxTokens, nonNegative("batch_max_tokens")),
		validation.Field(&f.GenerationAttempts, nonNegative("generation_attempts")),
		validation.Field(&f.VerificationAttempts, nonNegative("verification_attempts")),
		validation.Field(&f.RequestsPerMinute, nonNegative("requests_per_minute")),
		validation.Field(&f.TemplatedStringSuffix, validation.By(func(value any) error {
			if (f.TemplatedStringPrefix == "") != (value.(string) == "") {
				return validation.NewError("config.templated_strings", "templated_string_prefix and templated_string_suffix must be set together")
			}
			return nil
		})),
	)
}

// ---------------------------------------------------------------------------
// Flag overrides
// ---------------------------------------------------------------------------

// Override copies every flag the user set explicitly on fs into f.
// Flags left at their defaults never replace a configured value.
func (f *File) Override(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(fl *pflag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "input":
			f.Input, err = absFlag(fs, fl.Name)
		case "input-language":
			f.SourceLang, err = fs.GetString(fl.Name)
		case "output-languages":
			f.Languages, err = fs.GetStringSlice(fl.Name)
		case "output-dir":
			f.OutputDir, err = absFlag(fs, fl.Name)
		case "engine":
			f.Engine, err = fs.GetString(fl.Name)
		case "model":
			f.Model, err = fs.GetString(fl.Name)
		case "base-url":
			f.BaseURL, err = fs.GetString(fl.Name)
		case "proxy":
			f.Proxy, err = fs.GetString(fl.Name)
		case "timeout":
			var d time.Duration
			d, err = fs.GetDuration(fl.Name)
			f.Timeout = d.String()
		case "rpm":
			f.RequestsPerMinute, err = fs.GetInt(fl.Name)
		case "temperature":
			f.Temperature, err = fs.GetFloat64(fl.Name)
		case "mode":
			f.Mode, err = fs.GetString(fl.Name)
		case "batch-size":
			f.BatchSize, err = fs.GetInt(fl.Name)
		case "batch-max-tokens":
			f.BatchMaxTokens, err = fs.GetInt(fl.Name)
		case "generation-attempts":
			f.GenerationAttempts, err = fs.GetInt(fl.Name)
		case "verification-attempts":
			f.VerificationAttempts, err = fs.GetInt(fl.Name)
		case "skip-translation-verification":
			f.SkipTranslationVerification, err = fs.GetBool(fl.Name)
		case "skip-styling-verification":
			f.SkipStylingVerification, err = fs.GetBool(fl.Name)
		case "ensure-changed-translation":
			f.EnsureChangedTranslation, err = fs.GetBool(fl.Name)
		case "templated-string-prefix":
			f.TemplatedStringPrefix, err = fs.GetString(fl.Name)
		case "templated-string-suffix":
			f.TemplatedStringSuffix, err = fs.GetString(fl.Name)
		case "override-prompt":
			f.OverridePrompt, err = absFlag(fs, fl.Name)
		case "log-level":
			f.LogLevel, err = fs.GetString(fl.Name)
		case "log-format":
			f.LogFormat, err = fs.GetString(fl.Name)
		}
	})
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}

// absFlag reads a path flag. Flag paths are relative to the working
// directory, not to the config file.
func absFlag(fs *pflag.FlagSet, name string) (string, error) {
	path, err := fs.GetString(name)
	if err != nil || path == "" {
		return path, err
	}
	return filepath.Abs(path)
}
