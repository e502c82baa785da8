package expand

import (
	"strconv"
	"strings"
)

// braceExpand implements `{a,b,c}` alternation and `{1..5}`/`{a..e}`
// sequence expansion over a literal word, ahead of the rest of word
// expansion (bash performs brace expansion textually, before any
// other pass touches the word). It is applied only to Lit pieces that
// survived quoting untouched, since quoted braces are literal.
func braceExpand(s string) []string {
	if !strings.ContainsAny(s, "{}") {
		return []string{s}
	}
	out, ok := expandBraceOnce(s)
	if !ok {
		return []string{s}
	}
	var results []string
	for _, o := range out {
		results = append(results, braceExpand(o)...)
	}
	return results
}

// expandBraceOnce expands the top-level {...} span that starts at the
// first '{' in s, returning prefix+alternative+suffix for each
// alternative. Only that span is examined: if it holds neither a comma
// nor a ".." range, nothing is expanded, even when a later span would
// qualify.
func expandBraceOnce(s string) ([]string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, false
	}
	depth := 0
	end := -1
	commas := []int{}
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		case ',':
			if depth == 1 {
				commas = append(commas, i)
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, false
	}
	inner := s[start+1 : end]
	prefix, suffix := s[:start], s[end+1:]

	if seq, ok := expandSeq(inner); ok {
		out := make([]string, 0, len(seq))
		for _, it := range seq {
			out = append(out, prefix+it+suffix)
		}
		return out, true
	}

	if len(commas) == 0 {
		return nil, false
	}
	parts := splitTopLevel(inner)
	if len(parts) < 2 {
		return nil, false
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, prefix+p+suffix)
	}
	return out, true
}

func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// expandSeq handles `{1..5}`, `{5..1}`, `{1..10..2}` and the
// character-range equivalents.
func expandSeq(inner string) ([]string, bool) {
	parts := strings.Split(inner, "..")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, false
	}
	step := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n == 0 {
			return nil, false
		}
		if n < 0 {
			n = -n
		}
		step = n
	}
	if lo, hi, ok := parseIntRange(parts[0], parts[1]); ok {
		return intSeq(lo, hi, step), true
	}
	if lo, hi, ok := parseCharRange(parts[0], parts[1]); ok {
		return charSeq(lo, hi, step), true
	}
	return nil, false
}

func parseIntRange(a, b string) (int, int, bool) {
	lo, err1 := strconv.Atoi(a)
	hi, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func parseCharRange(a, b string) (byte, byte, bool) {
	if len(a) != 1 || len(b) != 1 {
		return 0, 0, false
	}
	return a[0], b[0], true
}

func intSeq(lo, hi, step int) []string {
	var out []string
	width := 0
	// Zero padding is not preserved: callers pass pre-parsed ints, so
	// {01..03} yields 1 2 3.
	if step == 0 {
		step = 1
	}
	if lo <= hi {
		for v := lo; v <= hi; v += step {
			out = append(out, pad(v, width))
		}
	} else {
		for v := lo; v >= hi; v -= step {
			out = append(out, pad(v, width))
		}
	}
	return out
}

func pad(v, width int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) < width {
		s = "0" + s
	}
	if neg {
		s = "-" + s
	}
	return s
}

func charSeq(lo, hi byte, step int) []string {
	var out []string
	if step == 0 {
		step = 1
	}
	if lo <= hi {
		for v := int(lo); v <= int(hi); v += step {
			out = append(out, string(rune(v)))
		}
	} else {
		for v := int(lo); v >= int(hi); v -= step {
			out = append(out, string(rune(v)))
		}
	}
	return out
}
