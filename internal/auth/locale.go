package auth

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Locale is a supported UI language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleES Locale = "es"
)

var (
	supportedLocales = []Locale{LocaleEN, LocaleES}
	localeMatcher    = language.NewMatcher([]language.Tag{language.English, language.Spanish})
)

// Valid reports whether l is supported.
func (l Locale) Valid() bool {
	return l == LocaleEN || l == LocaleES
}

// ParseLocale converts raw input into a Locale.
func ParseLocale(s string) (Locale, bool) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

// MatchLocale picks the best supported locale for an Accept-Language
// header. Anything unparseable or unsupported falls back to English.
func MatchLocale(acceptLanguage string) Locale {
	if strings.TrimSpace(acceptLanguage) == "" {
		return LocaleEN
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return LocaleEN
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(supportedLocales) {
		return LocaleEN
	}
	return supportedLocales[idx]
}

// Slugify derives the URL-safe organization key from a display name:
// diacritics are stripped, letters lower-cased, and every run of
// characters outside [a-z0-9] becomes a single dash.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(name))
	if err != nil {
		folded = strings.ToLower(name)
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
