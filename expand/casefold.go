package expand

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
	titleCaser = cases.Title(language.Und)
)

// CaseTransform implements the `${name^}`, `${name^^}`, `${name,}`,
// `${name,,}` operators from spec.md §4.2, Unicode-aware via
// golang.org/x/text/cases rather than ASCII-only unicode.ToUpper loops.
// first controls whether only the first rune is touched (the singular
// `^`/`,` forms) or every matching rune (the doubled forms); pattern,
// when non-nil, restricts which runes are transformed.
func CaseTransform(s string, upper, first bool, pattern *Pattern) string {
	if s == "" {
		return s
	}
	if pattern == nil {
		if first {
			return transformFirst(s, upper)
		}
		if upper {
			return upperCaser.String(s)
		}
		return lowerCaser.String(s)
	}
	runes := []rune(s)
	for i, r := range runes {
		if !runeMatchesPattern(r, pattern) {
			continue
		}
		runes[i] = []rune(foldRune(r, upper))[0]
		if first {
			break
		}
	}
	return string(runes)
}

func transformFirst(s string, upper bool) string {
	runes := []rune(s)
	first := foldRune(runes[0], upper)
	return first + string(runes[1:])
}

func foldRune(r rune, upper bool) string {
	if upper {
		return upperCaser.String(string(r))
	}
	return lowerCaser.String(string(r))
}

func runeMatchesPattern(r rune, p *Pattern) bool {
	ok, err := p.Match(string(r))
	return err == nil && ok
}

// TitleCase title-cases s word by word; it is separate from
// CaseTransform since it operates per-word rather than per-rune. No
// expansion operator in this package calls it.
func TitleCase(s string) string { return titleCaser.String(s) }

// IsUpper/IsLower report whether r is an upper- or lower-case letter.
func IsUpper(r rune) bool { return unicode.IsUpper(r) }
func IsLower(r rune) bool { return unicode.IsLower(r) }
