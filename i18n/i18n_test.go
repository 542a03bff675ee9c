package i18n

import "testing"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"LANGUAGE wins and keeps the first entry", map[string]string{"LANGUAGE": "ru_RU.UTF-8:en_US", "LC_ALL": "de_DE.UTF-8"}, "ru_RU"},
		{"C and POSIX mean untranslated", map[string]string{"LANGUAGE": "C", "LC_ALL": "POSIX", "LC_MESSAGES": "fr_FR.UTF-8"}, "fr_FR"},
		{"modifier is stripped", map[string]string{"LANG": "de_DE@euro"}, "de_DE"},
		{"nothing set", nil, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
				t.Setenv(name, tt.env[name])
			}
			if got := detectLanguage(); got != tt.want {
				t.Errorf("detectLanguage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPassthroughWithoutCatalog(t *testing.T) {
	saved := po
	po = nil
	t.Cleanup(func() { po = saved })

	if T("Select an engine") != "Select an engine" {
		t.Error("T changed the msgid")
	}
	for n, want := range map[int]string{1: "%d key", 0: "%d keys", 7: "%d keys"} {
		if got := N("%d key", "%d keys", n); got != want {
			t.Errorf("N(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestInitEmbeddedRussianCatalog(t *testing.T) {
	savedPo, savedLang := po, current
	t.Cleanup(func() { po, current = savedPo, savedLang })

	Init("ru")
	if Language() != "ru" {
		t.Fatalf("Language() = %q, want ru", Language())
	}
	if got := T("Translation complete!"); got != "Перевод завершён!" {
		t.Errorf("T() = %q", got)
	}
	if got := N("%s: translating %d string", "%s: translating %d strings", 5); got != "%s: перевод %d строк" {
		t.Errorf("N(5) = %q", got)
	}
	if got := T("untranslated message"); got != "untranslated message" {
		t.Errorf("missing msgid = %q", got)
	}
}
