package expand

import "regexp"

// replaceFirst/replaceAllRe/replaceAnchored back the `${name/p/r}`,
// `${name//p/r}`, `${name/#p/r}` and `${name/%p/r}` operators of
// spec.md §4.2, built on the same glob-to-regexp translation Pattern
// uses for matching.
func replaceFirst(val, pat, repl string) string {
	re, err := regexp.Compile(pat)
	if err != nil {
		return val
	}
	replaced := false
	return re.ReplaceAllStringFunc(val, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		return repl
	})
}

func replaceAllRe(val, pat, repl string) string {
	re, err := regexp.Compile(pat)
	if err != nil {
		return val
	}
	return re.ReplaceAllString(val, regexp.QuoteMeta(repl))
}

func replaceAnchored(val, pat, repl string, _ bool) string {
	re, err := regexp.Compile(pat)
	if err != nil {
		return val
	}
	return re.ReplaceAllString(val, regexp.QuoteMeta(repl))
}
