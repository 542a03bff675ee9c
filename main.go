// aitranslate translates i18n JSON locale files with large language models.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/aitranslate/flatten"
	"github.com/minios-linux/aitranslate/i18n"
	"github.com/minios-linux/aitranslate/langmeta"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aitranslate",
		Short: i18n.T("Translate i18n JSON files with large language models"),
		Long: i18n.T(`aitranslate translates i18n JSON locale files with large language models.

Nested JSON is flattened to dotted keys, translated in batches and verified
by a second model pass before the target file is written. Placeholders such
as {{name}} are preserved; a batch that loses one is sent again.

Commands:
  translate   Translate a source file into one or more languages
  diff        Update translations after the source file changed
  auth        Manage engine API keys
  version     Show version information

Engines:
  chatgpt     OpenAI (or any OpenAI-compatible endpoint via --base-url)
  gemini      Google Gemini
  anthropic   Anthropic Claude
  ollama      Local Ollama server, no API key`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTranslateCmd(),
		newDiffCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Long:  i18n.T("Display version, commit hash, and build date."),
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "aitranslate version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
			if lang := i18n.Language(); lang != "" {
				fmt.Fprintf(out, "  locale:    %s\n", lang)
			}
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadLocale parses a JSON locale file into its flattened leaves.
func loadLocale(path string) (map[string]any, error) {
	tree, err := flatten.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return flatten.Flatten(tree, flatten.DefaultDelimiter), nil
}

// readStrings returns the string leaves of a locale file. A missing file
// has no translations yet.
func readStrings(path string) (map[string]string, error) {
	if !fileExists(path) {
		return map[string]string{}, nil
	}
	flat, err := loadLocale(path)
	if err != nil {
		return nil, err
	}
	return flatten.Strings(flat), nil
}

// writeLocale writes values in the shape of the source tree. Non-string
// leaves (numbers, booleans) are copied from source; source strings
// missing from values are not written.
func writeLocale(path string, source map[string]any, values map[string]string) error {
	tree, err := flatten.Unflatten(flatten.Merge(source, values), flatten.DefaultDelimiter)
	if err != nil {
		return fmt.Errorf("building %s: %w", path, err)
	}
	return flatten.WriteFile(path, tree)
}

// filterLanguages trims the codes and drops empty entries, duplicates and
// the source language, keeping the given order.
func filterLanguages(langs []string, source string) []string {
	seen := map[string]bool{source: true}
	var out []string
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// langLabel renders a language for status lines: flag, code and native name.
func langLabel(lang string) string {
	meta := langmeta.Resolve(lang)
	label := lang
	if meta.Flag != "" {
		label = meta.Flag + " " + label
	}
	if meta.Name != "" && meta.Name != lang {
		label += " (" + meta.Name + ")"
	}
	return label
}
