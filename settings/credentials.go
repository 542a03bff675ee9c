// Package settings keeps per-user state under
// $XDG_DATA_HOME/aitranslate (~/.local/share/aitranslate by default):
// auth.json with one API key per engine, mode 0600, and an optional
// prompts.json with prompt overrides.
//
// API keys are looked up in this order:
//  1. --api-key flag (highest priority)
//  2. AITRANSLATE_API_KEY environment variable
//  3. the engine's own variable (OPENAI_API_KEY, GEMINI_API_KEY, ...)
//  4. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	dataDirName = "aitranslate"
	fileName    = "auth.json"

	// EnvAPIKey overrides the stored key of every engine.
	EnvAPIKey = "AITRANSLATE_API_KEY"
)

// engineEnv maps engine IDs to their conventional key variables.
var engineEnv = map[string]string{
	"chatgpt":   "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Info is the credential stored per engine in auth.json.
type Info struct {
	// Key is the API key.
	Key string `json:"key"`
	// BaseURL is an optional endpoint for OpenAI-compatible services.
	BaseURL string `json:"baseUrl,omitempty"`
	// Added is when the key was stored (Unix seconds).
	Added int64 `json:"added,omitempty"`
}

// Store holds all engine credentials, keyed by engine ID.
type Store map[string]*Info

// Engines returns the engine IDs with stored credentials, sorted.
func (s Store) Engines() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

// location joins name onto $XDG_DATA_HOME/aitranslate, or
// ~/.local/share/aitranslate when the variable is unset.
func location(name string) (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating data directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, dataDirName, name), nil
}

// FilePath is the auth.json location, or "" when the home directory is
// unknown.
func FilePath() string {
	p, _ := location(fileName)
	return p
}

// PromptsFilePath is the prompts.json location.
func PromptsFilePath() (string, error) {
	return location("prompts.json")
}

// Load returns the stored credentials. A missing or unreadable file is an
// empty store.
func Load() Store {
	store := Store{}
	path := FilePath()
	if path == "" {
		return store
	}
	if data, err := os.ReadFile(path); err == nil {
		if json.Unmarshal(data, &store) != nil || store == nil {
			store = Store{}
		}
	}
	return store
}

// Save replaces auth.json with store. The file is private to the owner.
func Save(store Store) error {
	path, err := location(fileName)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// update loads the store, applies fn and saves when fn reports a change.
func update(fn func(Store) bool) error {
	store := Load()
	if !fn(store) {
		return nil
	}
	return Save(store)
}

// Get returns the credential of engine, or nil.
func Get(engine string) *Info {
	return Load()[engine]
}

// SetAPIKey stores key for engine. baseURL may be empty.
func SetAPIKey(engine, key, baseURL string) error {
	if key == "" {
		return fmt.Errorf("empty API key for %s", engine)
	}
	return update(func(s Store) bool {
		s[engine] = &Info{Key: key, BaseURL: baseURL, Added: time.Now().Unix()}
		return true
	})
}

// Remove forgets the credential of engine. Removing an unknown engine is
// not an error.
func Remove(engine string) error {
	return update(func(s Store) bool {
		if _, ok := s[engine]; !ok {
			return false
		}
		delete(s, engine)
		return true
	})
}

// RemoveAll deletes auth.json.
func RemoveAll() error {
	path, err := location(fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Key resolution
// ---------------------------------------------------------------------------

// ResolveAPIKey returns the key for engine following the lookup order
// above, and a short description of where it came from. flagValue is the
// --api-key flag; an empty result means no key was found.
func ResolveAPIKey(engine, flagValue string) (key, source string) {
	if flagValue != "" {
		return flagValue, "--api-key"
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v, EnvAPIKey
	}
	if name, ok := engineEnv[engine]; ok {
		if v := os.Getenv(name); v != "" {
			return v, name
		}
	}
	if info := Get(engine); info != nil && info.Key != "" {
		return info.Key, FilePath()
	}
	return "", ""
}

// EnvVar returns the engine-specific key variable, or "".
func EnvVar(engine string) string {
	return engineEnv[engine]
}

// MaskKey shows the first and last four characters of key.
func MaskKey(key string) string {
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return "****"
}
