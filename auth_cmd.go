package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/aitranslate/i18n"
	"github.com/minios-linux/aitranslate/provider"
	"github.com/minios-linux/aitranslate/settings"
)

// ---------------------------------------------------------------------------
// auth (manage engine API keys)
// ---------------------------------------------------------------------------

// keyHelpURLs lists where each engine issues API keys.
var keyHelpURLs = map[string]string{
	provider.EngineChatGPT:   "https://platform.openai.com/api-keys",
	provider.EngineGemini:    "https://aistudio.google.com/apikey",
	provider.EngineAnthropic: "https://console.anthropic.com/settings/keys",
}

// keyEngines returns the engines that authenticate with an API key.
func keyEngines() []string {
	var ids []string
	for _, id := range provider.Engines() {
		if id != provider.EngineOllama {
			ids = append(ids, id)
		}
	}
	return ids
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage engine API keys"),
		Long: i18n.T(`Manage the API keys stored for each engine.

Keys are saved in ~/.local/share/aitranslate/auth.json with 0600
permissions. The --api-key flag, AITRANSLATE_API_KEY and the engine's own
variable (OPENAI_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY) take
precedence over stored keys.

Examples:
  aitranslate auth login                         Interactive engine selection
  aitranslate auth login --engine gemini         Store a Gemini API key
  aitranslate auth login --engine chatgpt --base-url https://openrouter.ai/api/v1
  aitranslate auth logout --engine gemini        Remove the Gemini key
  aitranslate auth logout                        Remove all keys
  aitranslate auth list                          Show stored keys`),
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var engine, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: i18n.T("Store an API key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewScanner(cmd.InOrStdin())
			if engine == "" {
				var err error
				if engine, err = selectEngine(in); err != nil {
					return err
				}
			}
			return authLogin(in, engine, baseURL)
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "", i18n.T("Engine to store a key for (default: ask)"))
	cmd.Flags().StringVar(&baseURL, "base-url", "", i18n.T("Custom endpoint used with this key"))
	_ = cmd.RegisterFlagCompletionFunc("engine", engineKeyCompletion)

	return cmd
}

// selectEngine shows a numbered menu of key engines and reads a choice.
func selectEngine(in *bufio.Scanner) (string, error) {
	engines := keyEngines()
	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Select an engine"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	for i, id := range engines {
		d, _ := provider.Lookup(id)
		fmt.Fprintf(os.Stderr, "  %d) %-10s %s\n", i+1, id, d.Name)
	}
	fmt.Fprintf(os.Stderr, "\n  %s ", i18n.T("Engine number:"))

	if !in.Scan() {
		return "", errors.New(i18n.T("no input received"))
	}
	choice := strings.TrimSpace(in.Text())
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(engines) {
		return engines[n-1], nil
	}
	for _, id := range engines {
		if id == choice {
			return id, nil
		}
	}
	return "", fmt.Errorf(i18n.T("invalid choice %q"), choice)
}

// authLogin reads a key for engine from in and stores it. An empty line
// keeps an existing key.
func authLogin(in *bufio.Scanner, engine, baseURL string) error {
	if _, ok := provider.Lookup(engine); !ok || engine == provider.EngineOllama {
		return fmt.Errorf(i18n.T("engine %q does not use an API key (choose from: %s)"), engine, strings.Join(keyEngines(), ", "))
	}
	d, _ := provider.Lookup(engine)

	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, fmt.Sprintf(i18n.T("%s API key setup"), d.Name), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	if url := keyHelpURLs[engine]; url != "" && baseURL == "" {
		fmt.Fprintf(os.Stderr, "  %s %s%s%s\n\n", i18n.T("Get your API key from:"), colorGreen, url, colorReset)
	}

	existing := settings.Get(engine)
	if existing != nil && existing.Key != "" {
		fmt.Fprintf(os.Stderr, "  %s %s%s%s\n", i18n.T("Current key:"), colorYellow, settings.MaskKey(existing.Key), colorReset)
		fmt.Fprintf(os.Stderr, "  %s ", i18n.T("Enter new key to replace, or press Enter to keep:"))
	} else {
		fmt.Fprintf(os.Stderr, "  %s ", i18n.T("Enter API key:"))
	}

	var key string
	if in.Scan() {
		key = strings.TrimSpace(in.Text())
	}
	if key == "" {
		if existing != nil && existing.Key != "" {
			logInfo(i18n.T("Keeping existing key"))
			return nil
		}
		return errors.New(i18n.T("no API key provided"))
	}

	if baseURL == "" && existing != nil {
		baseURL = existing.BaseURL
	}
	if err := settings.SetAPIKey(engine, key, baseURL); err != nil {
		return fmt.Errorf(i18n.T("saving API key: %w"), err)
	}
	logSuccess(i18n.T("%s API key saved to %s"), d.Name, settings.FilePath())
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: i18n.T("Remove stored API keys"),
		Long: i18n.T(`Remove the stored key of one engine, or of all engines when --engine
is not given. Environment variables are not affected.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if engine == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess(i18n.T("All stored API keys removed"))
				return nil
			}
			if settings.Get(engine) == nil {
				logWarning(i18n.T("No key stored for %s"), engine)
				return nil
			}
			if err := settings.Remove(engine); err != nil {
				return err
			}
			logSuccess(i18n.T("%s API key removed"), engine)
			return nil
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "", i18n.T("Engine to log out (default: all)"))
	_ = cmd.RegisterFlagCompletionFunc("engine", engineKeyCompletion)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   i18n.T("Show stored API keys"),
		Run: func(cmd *cobra.Command, args []string) {
			printAuthStatus(cmd.OutOrStdout())
		},
	}
}

// printAuthStatus lists stored keys and the environment variables that
// override them.
func printAuthStatus(w io.Writer) {
	store := settings.Load()

	fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, i18n.T("Stored API Keys"), colorReset)
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, id := range keyEngines() {
		info := store[id]
		if info == nil || info.Key == "" {
			fmt.Fprintf(w, "  %-10s %s%s%s\n", id, colorRed, i18n.T("not configured"), colorReset)
			continue
		}
		fmt.Fprintf(w, "  %-10s %s%s%s (%s)\n", id, colorGreen, i18n.T("configured"), colorReset, settings.MaskKey(info.Key))
		if info.BaseURL != "" {
			fmt.Fprintf(w, "  %-10s %s %s\n", "", i18n.T("endpoint:"), info.BaseURL)
		}
	}

	fmt.Fprintf(w, "\n  %s%s%s\n", colorYellow, i18n.T("Environment Variables"), colorReset)
	vars := []string{settings.EnvAPIKey}
	for _, id := range keyEngines() {
		if v := settings.EnvVar(id); v != "" {
			vars = append(vars, v)
		}
	}
	for _, name := range vars {
		if v := os.Getenv(name); v != "" {
			fmt.Fprintf(w, "  %-18s %s%s%s\n", name, colorGreen, settings.MaskKey(v), colorReset)
		} else {
			fmt.Fprintf(w, "  %-18s %s%s%s\n", name, colorRed, i18n.T("not set"), colorReset)
		}
	}
	fmt.Fprintln(w)
}

func engineKeyCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	engines := keyEngines()
	completions := make([]string, 0, len(engines))
	for _, id := range engines {
		d, _ := provider.Lookup(id)
		completions = append(completions, fmt.Sprintf("%s\t%s", id, d.Name))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
