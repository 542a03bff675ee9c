// Package i18n translates the CLI's own messages. The catalogs are PO
// files embedded in the binary; T and N fall back to the English msgid.
//
//	i18n.Init("") // LANGUAGE, LC_ALL, LC_MESSAGES, LANG
//	fmt.Println(i18n.N("%d key", "%d keys", n))
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Directory structure: locales/{lang}/LC_MESSAGES/aitranslate.po
//
//go:embed all:locales
var locales embed.FS

const domain = "aitranslate"

var (
	po      *gotext.Locale
	current string
)

// Init loads the catalog of lang, detected from the environment when
// empty. Call it once before T or N.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}

	current = lang
	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates msgid, or returns it unchanged.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a message with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// Language returns the language Init selected, or "" before Init.
func Language() string {
	return current
}

// detectLanguage follows GNU gettext: LANGUAGE, LC_ALL, LC_MESSAGES, LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// ru_RU.UTF-8@euro -> ru_RU
		if idx := strings.IndexAny(val, ".@"); idx >= 0 {
			val = val[:idx]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
