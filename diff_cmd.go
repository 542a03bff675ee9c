package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minios-linux/aitranslate/config"
	"github.com/minios-linux/aitranslate/diff"
	"github.com/minios-linux/aitranslate/flatten"
	"github.com/minios-linux/aitranslate/i18n"
	"github.com/minios-linux/aitranslate/lockfile"
	"github.com/minios-linux/aitranslate/merge"
	"github.com/minios-linux/aitranslate/translate"
)

// ---------------------------------------------------------------------------
// diff (update translations from a source change)
// ---------------------------------------------------------------------------

type diffArgs struct {
	before string
	after  string
	langs  []string
	apiKey string
	dryRun bool
}

func newDiffCmd() *cobra.Command {
	var a diffArgs

	cmd := &cobra.Command{
		Use:   "diff",
		Short: i18n.T("Update translations after the source file changed"),
		Long: i18n.T(`Compare two versions of a source file and update every translation.

Keys deleted from the source are removed from each language, added and
modified keys are translated, and all other translations are kept as they
are. Source keys a language has no translation for are translated as well. Target files are the siblings of --after, detected the same way as
for translate. Nothing is written unless every language succeeds.

Examples:
  git show HEAD~1:locales/en.json > /tmp/en.old.json
  aitranslate diff --before /tmp/en.old.json --after locales/en.json
  aitranslate diff --before old.json --after en.json --languages fr,de`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, a)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&a.before, "before", "", i18n.T("Previous version of the source file (required)"))
	fs.StringVar(&a.after, "after", "", i18n.T("Current version of the source file (default: input from the config file)"))
	fs.StringSliceVar(&a.langs, "languages", nil, i18n.T("Languages to update, comma-separated (default: existing sibling files)"))
	fs.BoolVar(&a.dryRun, "dry-run", false, i18n.T("Show the changes without calling the model"))
	addTranslationFlags(cmd, &a.apiKey)
	_ = cmd.MarkFlagRequired("before")

	return cmd
}

func runDiff(cmd *cobra.Command, a diffArgs) error {
	file, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	afterPath := a.after
	if afterPath == "" {
		afterPath = file.Resolve(file.Input)
	}
	if afterPath == "" {
		return errors.New(i18n.T("no source file: use --after or set input in .aitranslate.yaml"))
	}
	proj, err := config.Detect(afterPath, file.SourceLang)
	if err != nil {
		return err
	}
	if file.OutputDir != "" {
		proj = proj.WithDir(file.Resolve(file.OutputDir))
	}

	langs := a.langs
	if len(langs) == 0 {
		langs = file.Languages
	}
	if len(langs) == 0 {
		langs = proj.Languages
	}
	langs = filterLanguages(langs, proj.SourceLang)
	if len(langs) == 0 {
		return errors.New(i18n.T("no languages to update: use --languages"))
	}

	beforeFlat, err := loadLocale(a.before)
	if err != nil {
		return err
	}
	afterFlat, err := loadLocale(proj.Input)
	if err != nil {
		return err
	}
	before, after := flatten.Strings(beforeFlat), flatten.Strings(afterFlat)

	d := diff.Compute(before, after)
	logInfo(i18n.T("Source changes: %d added, %d modified, %d deleted"), len(d.Added), len(d.Modified), len(d.Deleted))

	// Each language also receives the source keys it has never been
	// translated for, so no source text is written as a translation.
	current := make(map[string]map[string]string, len(langs))
	plans := make(map[string]diff.Result, len(langs))
	pending := !d.Empty()
	for _, lang := range langs {
		existing, err := readStrings(proj.OutputPath(lang))
		if err != nil {
			return err
		}
		_, missing, obsolete := merge.Sync(existing, after)
		current[lang] = existing
		plans[lang] = d.Union(diff.Result{Added: missing, Deleted: obsolete})
		if len(missing) > 0 || len(obsolete) > 0 {
			pending = true
		}
	}

	if a.dryRun {
		for _, key := range d.Changed() {
			fmt.Fprintf(cmd.OutOrStdout(), "~ %s\n", key)
		}
		for _, key := range d.Deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", key)
		}
		for _, lang := range langs {
			if extra := len(plans[lang].Changed()) - len(d.Changed()); extra > 0 {
				logInfo(i18n.N("%s: %d untranslated string", "%s: %d untranslated strings", extra), langLabel(lang), extra)
			}
		}
		return nil
	}
	if !pending {
		logSuccess(i18n.T("No source changes"))
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

	result := make(map[string]map[string]string, len(langs))
	for _, lang := range translate.SortedKeys(plans) {
		out, err := tr.ApplyDiff(ctx, plans[lang], after, map[string]map[string]string{lang: current[lang]}, proj.SourceLang)
		if err != nil {
			if ctx.Err() != nil {
				logWarning(i18n.T("Interrupted, no files were written"))
				return ctx.Err()
			}
			return err
		}
		result[lang] = out[lang]
	}

	lock, err := lockfile.Load(proj.Dir)
	if err != nil {
		return err
	}
	for _, lang := range translate.SortedKeys(result) {
		path := proj.OutputPath(lang)
		if err := writeLocale(path, afterFlat, result[lang]); err != nil {
			return err
		}
		lock.Record(lockfile.TargetKey(proj.Dir, path), after)
		logSuccess(i18n.T("%s: wrote %s"), langLabel(lang), path)
	}
	if fileExists(lock.Path()) {
		if err := lock.Save(); err != nil {
			return err
		}
	}

	logSuccess(i18n.T("Translations updated!"))
	return nil
}
