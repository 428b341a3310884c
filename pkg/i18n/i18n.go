// Package i18n translates the application's own interface strings.
//
// Catalogs are gettext .po files embedded in the binary. Strings without a
// translation are shown as written in the source.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales layout: locales/{lang}/LC_MESSAGES/quicktranslator.po
//
//go:embed all:locales
var locales embed.FS

const domain = "quicktranslator"

// DefaultLanguage is used when the environment names no language.
const DefaultLanguage = "zh"

var po *gotext.Locale

var current string

// Init loads the catalog for lang, or for the language detected from the
// environment when lang is empty. Call once at startup.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	current = lang

	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language returns the language passed to (or detected by) Init.
func Language() string { return current }

// T translates msgid and formats it with vars.
func T(msgid string, vars ...interface{}) string {
	if po == nil {
		if len(vars) == 0 {
			return msgid
		}
		return fmt.Sprintf(msgid, vars...)
	}
	return po.Get(msgid, vars...)
}

// detectLanguage follows GNU gettext: LANGUAGE > LC_ALL > LC_MESSAGES > LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return DefaultLanguage
}
