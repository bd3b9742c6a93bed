package tabular

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// invisibles are format characters (zero-width space, BOM, joiners) that ERP
// exports leave inside otherwise blank cells.
var invisibles = runes.In(unicode.Cf)

// nbsp turns non-breaking spaces into plain spaces so TrimSpace sees them.
var nbsp = runes.Map(func(r rune) rune {
	if r == '\u00a0' || r == '\u202f' || r == '\u2007' {
		return ' '
	}
	return r
})

// Clean strips invisible format characters, folds non-breaking spaces and
// trims the result.
func Clean(s string) string {
	if s == "" {
		return s
	}
	t := transform.Chain(runes.Remove(invisibles), nbsp)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}
