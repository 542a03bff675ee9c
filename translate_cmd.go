package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/aitranslate/config"
	"github.com/minios-linux/aitranslate/diff"
	"github.com/minios-linux/aitranslate/flatten"
	"github.com/minios-linux/aitranslate/i18n"
	"github.com/minios-linux/aitranslate/lockfile"
	"github.com/minios-linux/aitranslate/logging"
	"github.com/minios-linux/aitranslate/merge"
	"github.com/minios-linux/aitranslate/prompt"
	"github.com/minios-linux/aitranslate/provider"
	"github.com/minios-linux/aitranslate/settings"
	"github.com/minios-linux/aitranslate/translate"
)

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	apiKey      string
	incremental bool
	retranslate bool
	dryRun      bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: i18n.T("Translate a JSON locale file"),
		Long: i18n.T(`Translate a JSON locale file into one or more languages.

The layout is detected from the input path: locales/en.json writes
locales/<lang>.json, locales/en/app.json writes locales/<lang>/app.json.
Without --output-languages every existing sibling language is updated.

By default only keys missing from a target file are translated. With
--incremental, source strings changed since the last run (tracked in
aitranslate.lock) are translated again as well.

Settings are read from .aitranslate.yaml or .aitranslate.toml in the
working directory; flags given on the command line take precedence.

Examples:
  aitranslate translate --input locales/en.json --output-languages fr,de
  aitranslate translate --input locales/en.json --engine ollama --model qwen2.5
  aitranslate translate --incremental
  aitranslate translate --mode json --batch-max-tokens 8000 --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, a)
		},
	}

	fs := cmd.Flags()
	fs.String("input", "", i18n.T("Source JSON file"))
	fs.StringSlice("output-languages", nil, i18n.T("Target languages, comma-separated (default: existing sibling files)"))
	fs.String("output-dir", "", i18n.T("Directory for target files (default: next to the input)"))
	fs.BoolVar(&a.incremental, "incremental", false, i18n.T("Also retranslate strings changed since the last run"))
	fs.BoolVar(&a.retranslate, "retranslate", false, i18n.T("Translate every string again"))
	fs.BoolVar(&a.dryRun, "dry-run", false, i18n.T("Show what would be translated without calling the model"))
	addTranslationFlags(cmd, &a.apiKey)

	return cmd
}

// addTranslationFlags registers the engine and generation flags shared by
// translate and diff. Defaults are zero values: only flags set on the
// command line override the project file.
func addTranslationFlags(cmd *cobra.Command, apiKey *string) {
	fs := cmd.Flags()

	fs.String("input-language", "", i18n.T("Source language code (default: from the input path, or en)"))

	// Engine
	fs.String("engine", "", i18n.T("Engine: chatgpt, gemini, anthropic, ollama (default: chatgpt)"))
	fs.String("model", "", i18n.T("Model name (default: engine-specific)"))
	fs.StringVar(apiKey, "api-key", "", i18n.T("API key (or AITRANSLATE_API_KEY env var)"))
	fs.String("base-url", "", i18n.T("Custom API base URL"))
	fs.Float64("temperature", 0, i18n.T("Sampling temperature (0 = model default)"))

	// Network
	fs.String("proxy", "", i18n.T("HTTP/HTTPS proxy URL"))
	fs.Duration("timeout", 0, i18n.T("Request timeout (0 = engine default)"))
	fs.Int("rpm", 0, i18n.T("Requests per minute (0 = engine default)"))

	// Generation
	fs.String("mode", "", i18n.T("Generation mode: csv or json (default: csv)"))
	fs.Int("batch-size", 0, i18n.T("Lines per CSV batch (0 = 32)"))
	fs.Int("batch-max-tokens", 0, i18n.T("Token budget of a JSON batch (0 = 4096)"))
	fs.Int("generation-attempts", 0, i18n.T("Attempts per batch (0 = 25)"))
	fs.Int("verification-attempts", 0, i18n.T("Attempts per verification (0 = 5)"))
	fs.Bool("skip-translation-verification", false, i18n.T("Skip the translation quality check"))
	fs.Bool("skip-styling-verification", false, i18n.T("Skip the formatting check (csv mode)"))
	fs.Bool("ensure-changed-translation", false, i18n.T("Ask again for strings returned untranslated"))
	fs.String("templated-string-prefix", "", i18n.T("Placeholder prefix (default: {{)"))
	fs.String("templated-string-suffix", "", i18n.T("Placeholder suffix (default: }})"))
	fs.String("override-prompt", "", i18n.T("JSON file with prompt template overrides"))

	// Logging
	fs.String("log-level", "", i18n.T("Log level: trace, debug, info, warn, error (default: warn)"))
	fs.String("log-format", "", i18n.T("Log format: console, json, pretty"))

	_ = cmd.RegisterFlagCompletionFunc("engine", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		engines := provider.Engines()
		completions := make([]string, 0, len(engines))
		for _, id := range engines {
			d, _ := provider.Lookup(id)
			completions = append(completions, fmt.Sprintf("%s\t%s", id, d.Name))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{translate.ModeCSV, translate.ModeJSON}, cobra.ShellCompDirectiveNoFileComp
	})
}

// languagePlan is the work for one target language.
type languagePlan struct {
	lang   string
	path   string
	target string
	// current holds the existing translations of keys still in the source.
	current map[string]string
	diff    diff.Result
}

func runTranslate(cmd *cobra.Command, a translateArgs) error {
	file, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	input := file.Resolve(file.Input)
	if input == "" {
		return errors.New(i18n.T("no input file: use --input or set input in .aitranslate.yaml"))
	}
	proj, err := config.Detect(input, file.SourceLang)
	if err != nil {
		return err
	}
	if file.OutputDir != "" {
		proj = proj.WithDir(file.Resolve(file.OutputDir))
	}

	langs := file.Languages
	if len(langs) == 0 {
		langs = proj.Languages
	}
	langs = filterLanguages(langs, proj.SourceLang)
	if len(langs) == 0 {
		return errors.New(i18n.T("no target languages: use --output-languages, e.g. --output-languages fr,de"))
	}

	sourceFlat, err := loadLocale(proj.Input)
	if err != nil {
		return err
	}
	source := flatten.Strings(sourceFlat)

	lock, err := lockfile.Load(proj.Dir)
	if err != nil {
		return err
	}
	keepLock := a.incremental || fileExists(lock.Path())

	plans := make([]languagePlan, 0, len(langs))
	for _, lang := range langs {
		p, err := planLanguage(proj, lock, source, lang, a)
		if err != nil {
			return err
		}
		plans = append(plans, p)
	}

	logInfo(i18n.N("Source: %s (%s), %d string", "Source: %s (%s), %d strings", len(source)), proj.Input, proj.SourceLang, len(source))

	if a.dryRun {
		if keepLock {
			n := len(lock.Targets())
			logInfo(i18n.N("Lock file %s: %d recorded output", "Lock file %s: %d recorded outputs", n), lock.Path(), n)
		}
		for _, p := range plans {
			n := len(p.diff.Changed())
			logInfo(i18n.N("%s: %d string to translate", "%s: %d strings to translate", n), langLabel(p.lang), n)
			if len(p.diff.Deleted) > 0 {
				logInfo(i18n.N("%s: %d obsolete key to remove", "%s: %d obsolete keys to remove", len(p.diff.Deleted)), langLabel(p.lang), len(p.diff.Deleted))
			}
		}
		return nil
	}

	log, err := newLogger(file)
	if err != nil {
		return err
	}
	tr, err := newTranslator(file, a.apiKey, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var failed []string
	for _, p := range plans {
		if p.diff.Empty() && fileExists(p.path) {
			logSuccess(i18n.T("%s: up to date"), langLabel(p.lang))
			continue
		}
		n := len(p.diff.Changed())
		logInfo(i18n.N("%s: translating %d string", "%s: translating %d strings", n), langLabel(p.lang), n)

		result, err := tr.ApplyDiff(ctx, p.diff, source, map[string]map[string]string{p.lang: p.current}, proj.SourceLang)
		if err != nil {
			if ctx.Err() != nil {
				logWarning(i18n.T("Translation interrupted, %s was not written"), p.path)
				return ctx.Err()
			}
			logError("%s: %v", p.lang, err)
			failed = append(failed, p.lang)
			continue
		}

		if err := writeLocale(p.path, sourceFlat, result[p.lang]); err != nil {
			return err
		}
		if keepLock {
			if a.incremental || a.retranslate {
				lock.Record(p.target, source)
			} else {
				lock.Update(p.target, source, p.diff.Changed(), p.diff.Deleted)
			}
			if err := lock.Save(); err != nil {
				return err
			}
		}
		logSuccess(i18n.T("%s: wrote %s"), langLabel(p.lang), p.path)
	}

	if len(failed) > 0 {
		return fmt.Errorf(i18n.T("translation failed for: %s"), strings.Join(failed, ", "))
	}
	logSuccess(i18n.T("Translation complete!"))
	return nil
}

// planLanguage reads the existing target file and decides which keys to
// translate and which to drop.
func planLanguage(proj *config.Project, lock *lockfile.LockFile, source map[string]string, lang string, a translateArgs) (languagePlan, error) {
	p := languagePlan{lang: lang, path: proj.OutputPath(lang)}
	p.target = lockfile.TargetKey(proj.Dir, p.path)

	existing, err := readStrings(p.path)
	if err != nil {
		return p, err
	}
	kept, missing, obsolete := merge.Sync(existing, source)
	p.current = kept
	untranslated := diff.Result{Added: missing, Deleted: obsolete}

	switch {
	case a.retranslate:
		p.diff = diff.Result{Modified: translate.SortedKeys(kept)}.Union(untranslated)
	case a.incremental && lock.Has(p.target):
		p.diff = lock.Diff(p.target, source).Union(untranslated)
	default:
		p.diff = untranslated
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

// loadConfig reads the project file of the working directory, if any, and
// applies the flags set on the command line.
func loadConfig(fs *pflag.FlagSet) (*config.File, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	file, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if file == nil {
		file = &config.File{}
	} else {
		logInfo(i18n.T("Using %s"), file.Path())
	}
	if err := file.Override(fs); err != nil {
		return nil, err
	}
	return file, nil
}

func newLogger(file *config.File) (logging.Logger, error) {
	level := file.LogLevel
	if level == "" {
		level = "warn"
	}
	return logging.New(logging.Config{Level: level, Format: file.LogFormat})
}

// newTranslator resolves the engine credentials and builds the engine.
func newTranslator(file *config.File, apiKeyFlag string, log logging.Logger) (*translate.Translator, error) {
	engine := file.Engine
	if engine == "" {
		engine = provider.EngineChatGPT
	}
	defaults, _ := provider.Lookup(engine)

	key, source := settings.ResolveAPIKey(engine, apiKeyFlag)
	baseURL := file.BaseURL
	if baseURL == "" {
		if info := settings.Get(engine); info != nil {
			baseURL = info.BaseURL
		}
	}
	if key == "" && baseURL == "" && engine != provider.EngineOllama {
		return nil, fmt.Errorf(i18n.T("no API key for %s: use --api-key, set %s, or run 'aitranslate auth login --engine %s'"),
			engine, keyVariables(engine), engine)
	}
	if source != "" {
		log.Debug("api key resolved", "engine", engine, "source", source)
	}

	chats, err := provider.Factory(provider.Config{
		Engine:            engine,
		Model:             file.Model,
		BaseURL:           baseURL,
		APIKey:            key,
		Proxy:             file.Proxy,
		Timeout:           file.TimeoutDuration(),
		RequestsPerMinute: file.RequestsPerMinute,
		Temperature:       file.Temperature,
		Logger:            log,
	}, nil)
	if err != nil {
		return nil, err
	}

	overrides, err := loadPromptOverrides(file)
	if err != nil {
		return nil, err
	}

	model := file.Model
	if model == "" {
		model = defaults.Model
	}
	logInfo(i18n.T("Engine: %s, model: %s"), defaults.Name, model)

	return translate.New(chats, translate.Options{
		Mode:                        file.Mode,
		BatchSize:                   file.BatchSize,
		BatchMaxTokens:              file.BatchMaxTokens,
		GenerationAttempts:          file.GenerationAttempts,
		VerificationAttempts:        file.VerificationAttempts,
		SkipTranslationVerification: file.SkipTranslationVerification,
		SkipStylingVerification:     file.SkipStylingVerification,
		EnsureChangedTranslation:    file.EnsureChangedTranslation,
		TemplatedStringPrefix:       file.TemplatedStringPrefix,
		TemplatedStringSuffix:       file.TemplatedStringSuffix,
		Prompts:                     overrides,
		Contexts:                    file.Contexts,
		Logger:                      log,
		OnProgress: func(lang string, done, total int) {
			logInfo("  %s: %d/%d", lang, done, total)
		},
	})
}

// loadPromptOverrides reads --override-prompt, or the user's prompts.json
// when it exists.
func loadPromptOverrides(file *config.File) (prompt.Overrides, error) {
	path := file.Resolve(file.OverridePrompt)
	if path == "" {
		if p, err := settings.PromptsFilePath(); err == nil && fileExists(p) {
			path = p
		}
	}
	if path == "" {
		return prompt.Overrides{}, nil
	}
	logInfo(i18n.T("Prompt overrides: %s"), path)
	return prompt.LoadOverrides(path)
}

// keyVariables names the environment variables consulted for engine.
func keyVariables(engine string) string {
	if v := settings.EnvVar(engine); v != "" {
		return settings.EnvAPIKey + " or " + v
	}
	return settings.EnvAPIKey
}

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logWarning(i18n.T("Interrupted, stopping..."))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
