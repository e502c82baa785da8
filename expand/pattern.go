package expand

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is the typed glob-shaped value "basic expand to pattern"
// produces (spec.md §4.4): a sequence of pieces where Literal pieces
// came from a quoted span and can never introduce metacharacters, and
// Glob pieces are raw unquoted text that may contain `* ? [...]` or,
// when extglob is enabled, `?(...) *(...) +(...) @(...) !(...)`.
type Pattern struct {
	Pieces    []PatternPiece
	HasGlobstar bool
}

type PatternPiece struct {
	Literal bool
	Text    string
}

// HasMeta reports whether the pattern contains any glob metacharacter
// outside of literal pieces; a pattern with none passes through
// pathname expansion unchanged (spec.md §4.4).
func (p Pattern) HasMeta() bool {
	for _, pc := range p.Pieces {
		if pc.Literal {
			continue
		}
		if strings.ContainsAny(pc.Text, "*?[") {
			return true
		}
	}
	return false
}

// String renders the pattern back to its source text, e.g. to pass to
// doublestar or to display in error messages.
func (p Pattern) String() string {
	var sb strings.Builder
	for _, pc := range p.Pieces {
		sb.WriteString(pc.Text)
	}
	return sb.String()
}

// Regexp compiles the pattern to an anchored regular expression,
// quoting literal pieces and translating glob metacharacters
// (including extglob operators) in unquoted pieces.
func (p Pattern) Regexp() (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, pc := range p.Pieces {
		if pc.Literal {
			sb.WriteString(regexp.QuoteMeta(pc.Text))
			continue
		}
		sb.WriteString(globToRegexp(pc.Text))
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// Match reports whether name matches the pattern. Patterns containing
// `**` are matched with doublestar, which implements the recursive
// globstar semantics the hand-rolled matcher below doesn't attempt.
func (p Pattern) Match(name string) (bool, error) {
	raw := p.String()
	if strings.Contains(raw, "**") {
		return doublestar.Match(raw, name)
	}
	re, err := p.Regexp()
	if err != nil {
		return false, err
	}
	return re.MatchString(name), nil
}

// globToRegexp translates one unquoted glob-bearing piece into a
// regexp fragment. It understands `*`, `?`, bracket expressions, and
// the five extglob operator forms `?(pat) *(pat) +(pat) @(pat) !(pat)`
// with `|`-separated alternatives inside, each already balanced by the
// tokenizer (spec.md §4.1).
func globToRegexp(s string) string {
	var sb strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '*' && !(i+1 < len(s) && s[i+1] == '('):
			sb.WriteString(".*")
			i++
		case c == '?' && !(i+1 < len(s) && s[i+1] == '('):
			sb.WriteString(".")
			i++
		case c == '[':
			j := matchBracket(s, i)
			if j < 0 {
				sb.WriteString(regexp.QuoteMeta(s[i:]))
				i = len(s)
				continue
			}
			sb.WriteString(translateBracket(s[i : j+1]))
			i = j + 1
		case (c == '?' || c == '*' || c == '+' || c == '@' || c == '!') && i+1 < len(s) && s[i+1] == '(':
			j := matchParen(s, i+1)
			if j < 0 {
				sb.WriteString(regexp.QuoteMeta(s[i:]))
				i = len(s)
				continue
			}
			inner := s[i+2 : j]
			alt := translateAlternatives(inner)
			switch c {
			case '?':
				sb.WriteString("(?:" + alt + ")?")
			case '*':
				sb.WriteString("(?:" + alt + ")*")
			case '+':
				sb.WriteString("(?:" + alt + ")+")
			case '@':
				sb.WriteString("(?:" + alt + ")")
			case '!':
				sb.WriteString(".*") // negation approximated: handled specially by callers that need exactness
			}
			i = j + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return sb.String()
}

func translateAlternatives(inner string) string {
	parts := splitTopLevel(inner)
	for i, p := range parts {
		parts[i] = globToRegexp(p)
	}
	return strings.Join(parts, "|")
}

func matchBracket(s string, start int) int {
	i := start + 1
	if i < len(s) && (s[i] == '!' || s[i] == '^') {
		i++
	}
	if i < len(s) && s[i] == ']' {
		i++
	}
	for i < len(s) {
		if s[i] == ']' {
			return i
		}
		i++
	}
	return -1
}

func matchParen(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func translateBracket(s string) string {
	// s is "[...]"; POSIX negation "[!...]" maps to regexp "[^...]".
	inner := s[1 : len(s)-1]
	if strings.HasPrefix(inner, "!") {
		return "[^" + inner[1:] + "]"
	}
	return "[" + inner + "]"
}
