package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	t.Setenv(EnvAPIKey, "")
	for _, name := range engineEnv {
		t.Setenv(name, "")
	}
	return tmp
}

func TestFilePathsUseXDGDataHome(t *testing.T) {
	tmp := isolate(t)

	wantPath := filepath.Join(tmp, "aitranslate", "auth.json")
	if got := FilePath(); got != wantPath {
		t.Fatalf("FilePath() = %q, want %q", got, wantPath)
	}
	prompts, err := PromptsFilePath()
	if err != nil {
		t.Fatalf("PromptsFilePath() error: %v", err)
	}
	if want := filepath.Join(tmp, "aitranslate", "prompts.json"); prompts != want {
		t.Fatalf("PromptsFilePath() = %q, want %q", prompts, want)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := isolate(t)

	if err := SetAPIKey("gemini", "apikey123456", ""); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}
	if err := SetAPIKey("chatgpt", "sk-openrouter-key", "https://openrouter.ai/api/v1"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}

	path := filepath.Join(tmp, "aitranslate", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	loaded := Load()
	if got := loaded.Engines(); !reflect.DeepEqual(got, []string{"chatgpt", "gemini"}) {
		t.Fatalf("Engines() = %v", got)
	}
	if loaded["chatgpt"].BaseURL != "https://openrouter.ai/api/v1" || loaded["chatgpt"].Added == 0 {
		t.Fatalf("chatgpt entry = %#v", loaded["chatgpt"])
	}

	if err := Remove("gemini"); err != nil {
		t.Fatalf("Remove(gemini) error: %v", err)
	}
	if Get("gemini") != nil {
		t.Fatal("gemini still stored after Remove")
	}
	if err := Remove("gemini"); err != nil {
		t.Fatalf("second Remove(gemini) error: %v", err)
	}

	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if len(Load()) != 0 {
		t.Fatal("store not empty after RemoveAll")
	}
	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() on missing file error: %v", err)
	}
}

func TestSetAPIKeyRejectsEmpty(t *testing.T) {
	isolate(t)
	if err := SetAPIKey("gemini", "", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestLoadInvalidFileReturnsEmptyStore(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "aitranslate", "auth.json")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if store := Load(); store == nil || len(store) != 0 {
		t.Fatalf("Load() = %#v, want empty store", store)
	}
}

func TestResolveAPIKeyOrder(t *testing.T) {
	isolate(t)
	if err := SetAPIKey("chatgpt", "stored-key-0001", ""); err != nil {
		t.Fatal(err)
	}

	if key, source := ResolveAPIKey("chatgpt", ""); key != "stored-key-0001" || source != FilePath() {
		t.Errorf("store: %q from %q", key, source)
	}

	t.Setenv("OPENAI_API_KEY", "engine-env")
	if key, source := ResolveAPIKey("chatgpt", ""); key != "engine-env" || source != "OPENAI_API_KEY" {
		t.Errorf("engine env: %q from %q", key, source)
	}

	t.Setenv(EnvAPIKey, "global-env")
	if key, _ := ResolveAPIKey("chatgpt", ""); key != "global-env" {
		t.Errorf("global env: %q", key)
	}

	if key, source := ResolveAPIKey("chatgpt", "from-flag"); key != "from-flag" || source != "--api-key" {
		t.Errorf("flag: %q from %q", key, source)
	}

	t.Setenv(EnvAPIKey, "")
	if key, _ := ResolveAPIKey("ollama", ""); key != "" {
		t.Errorf("ollama: %q, want none", key)
	}
}

func TestEnvVar(t *testing.T) {
	if EnvVar("anthropic") != "ANTHROPIC_API_KEY" || EnvVar("ollama") != "" {
		t.Errorf("EnvVar mapping wrong")
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("short"); got != "****" {
		t.Errorf("MaskKey(short) = %q", got)
	}
	if got := MaskKey("sk-1234567890abcd"); got != "sk-1...abcd" {
		t.Errorf("MaskKey(long) = %q", got)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	tmp := isolate(t)
	if err := SetAPIKey("anthropic", "sk-ant-000000001", ""); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(tmp, "aitranslate"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "auth.json" {
		t.Fatalf("data directory = %v, want only auth.json", entries)
	}
}
