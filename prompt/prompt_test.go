package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestGeneration_Default(t *testing.T) {
	var b Builder
	got := b.Generation("English", "French", "\"Hello\"\n\"Bye\"")
	if !strings.Contains(got, "from English to French") {
		t.Errorf("languages not substituted: %s", got)
	}
	if !strings.HasSuffix(got, "\"Hello\"\n\"Bye\"") {
		t.Errorf("input not appended: %s", got)
	}
	if strings.Contains(got, "${") {
		t.Errorf("unsubstituted token left: %s", got)
	}
}

func TestVerification_MergedCSV(t *testing.T) {
	var b Builder
	got := b.TranslationVerification("English", "German", "\"Hello\"\n\"Bye\"", "\"Hallo\"\n\"Tschüss\"")
	want := "English,German\n\"Hello\",\"Hallo\"\n\"Bye\",\"Tschüss\""
	if !strings.HasSuffix(got, want) {
		t.Errorf("verification prompt = %q, want suffix %q", got, want)
	}

	styling := b.StylingVerification("English", "German", "\"A\"", "\"B\"")
	if !strings.Contains(styling, "capitalization") || !strings.HasSuffix(styling, "\"A\",\"B\"") {
		t.Errorf("styling prompt = %q", styling)
	}
}

func TestNewBuilder_Override(t *testing.T) {
	b, err := NewBuilder(Overrides{
		GenerationPrompt: "Translate ${inputLanguage} into ${outputLanguage}: ${input}",
	}, "", "")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if got := b.Generation("en", "fr", "\"x\""); got != "Translate en into fr: \"x\"" {
		t.Errorf("got %q", got)
	}
	// Verification templates keep their defaults.
	if !strings.Contains(b.TranslationVerification("en", "fr", "a", "b"), "ACK") {
		t.Error("default verification template lost")
	}
}

func TestNewBuilder_MissingToken(t *testing.T) {
	cases := []Overrides{
		{GenerationPrompt: "Translate ${inputLanguage} to ${outputLanguage}"},
		{TranslationVerificationPrompt: "Check ${input}"},
		{StylingVerificationPrompt: "${inputLanguage} ${outputLanguage}"},
	}
	for _, o := range cases {
		_, err := NewBuilder(o, "", "")
		if err == nil {
			t.Errorf("NewBuilder(%+v): expected error", o)
			continue
		}
		if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
			t.Errorf("NewBuilder(%+v): error %v is not a validation error", o, err)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.json")
	os.WriteFile(path, []byte(`{"stylingVerificationPrompt": "${inputLanguage}/${outputLanguage}\n${mergedCsv}"}`), 0644)

	o, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	b, err := NewBuilder(o, "", "")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if got := b.StylingVerification("en", "de", "\"a\"", "\"b\""); got != "en/de\n\"a\",\"b\"" {
		t.Errorf("got %q", got)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{`), 0644)
	if _, err := LoadOverrides(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestJSONPrompts_Delimiters(t *testing.T) {
	b, err := NewBuilder(Overrides{}, "<%", "%>")
	if err != nil {
		t.Fatal(err)
	}
	got := b.GenerationJSON("English", "Spanish", `[{"id":1,"original":"Hi"}]`)
	if !strings.Contains(got, "<%NEWLINE%>") {
		t.Errorf("custom delimiters missing: %s", got)
	}
	if !strings.HasSuffix(got, `[{"id":1,"original":"Hi"}]`) {
		t.Errorf("payload missing: %s", got)
	}
	if !strings.Contains(b.VerificationJSON("English", "Spanish", "[]"), "fixedTranslation") {
		t.Error("verification prompt does not describe fixedTranslation")
	}
	if n := b.OverheadTokens(func(s string) int { return len(s) / 4 }); n <= 0 {
		t.Errorf("OverheadTokens = %d", n)
	}
}

func TestMergeCSV_UnevenLines(t *testing.T) {
	if got := MergeCSV("a\nb", "x"); got != "a,x\nb," {
		t.Errorf("got %q", got)
	}
}
