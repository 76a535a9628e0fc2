package personas

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var specialFolds = strings.NewReplacer("ß", "ss", "æ", "ae", "ø", "o", "œ", "oe", "ł", "l", "đ", "d")

// Slug lower-cases s, strips diacritics and drops everything that is not an ASCII letter.
func Slug(s string) string {
	return fold(s, func(r rune) bool { return r >= 'a' && r <= 'z' })
}

// DomainSlug is Slug that also keeps ASCII digits, falling back to "company"
// when nothing is left. Company codes like ACME2 keep their own email domain.
func DomainSlug(s string) string {
	out := fold(s, func(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') })
	if out == "" {
		return "company"
	}
	return out
}

func fold(s string, keep func(rune) bool) string {
	s = specialFolds.Replace(strings.ToLower(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
