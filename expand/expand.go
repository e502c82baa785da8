package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/posixsh/posh/syntax"
)

// Error is returned for bad substitution syntax, `${var:?msg}`,
// unbound variables under nounset, and tildes with no resolvable home
// (spec.md §7's "Expansion errors" class).
type Error struct {
	Msg    string
	Checked bool // set for ${var:?msg}; callers print Msg to stderr verbatim
}

func (e *Error) Error() string { return e.Msg }

// Runtime is everything the expander needs from the owning shell:
// variable access (including array elements), positional parameters,
// command substitution, pathname resolution and shell option flags.
// interp.Shell implements this; keeping it as an interface here lets
// expand stay free of any dependency on the interpreter's scope stack.
type Runtime interface {
	ArithContext
	WriteEnviron

	// Positional returns $1.. (index 1-based) and $0.
	Positional(i int) (string, bool)
	NumPositional() int
	ScriptName() string

	// IndexedElems/AssocElems return every element of an indexed or
	// associative array; ok is false if the variable isn't that kind.
	IndexedElems(name string) (map[int]string, bool)
	AssocElems(name string) (map[string]string, bool)

	// RunCommandSubst executes stmts (already parsed by the tokenizer's
	// recursive $(...) handling) in a subshell clone and returns its
	// captured, trailing-newline-trimmed stdout (spec.md §4.4).
	RunCommandSubst(stmts []*syntax.Stmt) (string, error)

	// Glob lists cwd-relative paths matching pat; nullglob/failglob
	// policy is applied by the caller using the returned slice.
	Glob(pat string) ([]string, error)

	// Options surfaces the subset of shell flags the expander reads.
	Options() Options

	// HomeDir resolves "~" (empty user) or "~user".
	HomeDir(user string) (string, bool)
}

// Options are the shopt/set flags that change expansion behaviour.
type Options struct {
	NoUnset    bool // set -u
	NoGlob     bool // set -f
	NullGlob   bool // shopt -s nullglob
	FailGlob   bool // shopt -s failglob
	GlobStar   bool // shopt -s globstar
	ExtGlob    bool // shopt -s extglob
	NoCaseGlob bool
}

// piece is one element of a field: Unsplittable pieces (from inside
// double quotes, or produced by an expansion that must stay intact)
// never trigger IFS splitting and always extend the current field.
type piece struct {
	s           string
	splittable  bool
}

// field is one element of the expansion's field list, per spec.md
// §4.4's field model.
type field struct {
	pieces []piece
}

func (f field) String() string {
	var sb strings.Builder
	for _, p := range f.pieces {
		sb.WriteString(p.s)
	}
	return sb.String()
}

// Expander drives the four expansion levels over Word nodes.
type Expander struct {
	RT Runtime
}

func NewExpander(rt Runtime) *Expander { return &Expander{RT: rt} }

// String implements "basic expand to string" (spec.md §4.4): tilde,
// parameter/command/arithmetic expansion, concatenated, no splitting
// and no pathname expansion.
func (e *Expander) String(w *syntax.Word) (string, error) {
	fs, err := e.expandWord(w, false)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range fs {
		sb.WriteString(f.String())
	}
	return sb.String(), nil
}

// Pattern implements "basic expand to pattern": like String, but the
// result retains which bytes came from quoted (therefore literal,
// glob-incapable) text versus unquoted (therefore glob-capable) text.
func (e *Expander) Pattern(w *syntax.Word) (Pattern, error) {
	fs, err := e.expandWord(w, false)
	if err != nil {
		return Pattern{}, err
	}
	var p Pattern
	for _, f := range fs {
		for _, pc := range f.pieces {
			p.Pieces = append(p.Pieces, PatternPiece{Literal: !pc.splittable, Text: pc.s})
		}
	}
	if strings.Contains(p.String(), "**") {
		p.HasGlobstar = true
	}
	return p, nil
}

// Fields implements "full expand with splitting": basic expansion,
// IFS field splitting, then pathname expansion per field unless
// NoGlob is set.
func (e *Expander) Fields(words ...*syntax.Word) ([]string, error) {
	var out []string
	opts := e.RT.Options()
	for _, w := range words {
		fs, err := e.expandWord(w, true)
		if err != nil {
			return nil, err
		}
		split := e.splitFields(fs)
		for _, f := range split {
			if opts.NoGlob {
				out = append(out, f)
				continue
			}
			globbed, err := e.maybeGlob(f, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, globbed...)
		}
	}
	return out, nil
}

// Regex implements "basic expand to regex", used by `[[ s =~ re ]]`:
// like Pattern but the caller treats the unquoted text as a POSIX ERE
// instead of a glob.
func (e *Expander) Regex(w *syntax.Word) (string, error) {
	fs, err := e.expandWord(w, false)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range fs {
		for _, pc := range f.pieces {
			if pc.splittable {
				sb.WriteString(pc.s)
			} else {
				sb.WriteString(regexp.QuoteMeta(pc.s))
			}
		}
	}
	return sb.String(), nil
}

func (e *Expander) maybeGlob(pat string, opts Options) ([]string, error) {
	p := Pattern{Pieces: []PatternPiece{{Literal: false, Text: pat}}}
	if !p.HasMeta() {
		return []string{pat}, nil
	}
	matches, err := e.RT.Glob(pat)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if opts.FailGlob {
			return nil, &Error{Msg: fmt.Sprintf("no match: %s", pat)}
		}
		if opts.NullGlob {
			return nil, nil
		}
		return []string{pat}, nil
	}
	return matches, nil
}

// splitFields walks the pieces of each already-concatenated word field
// and re-splits the Splittable runs on IFS, per spec.md §4.4.
func (e *Expander) splitFields(fs []field) []string {
	ifs := e.RT.Get("IFS")
	ifsChars := " \t\n"
	if ifs.IsSet() {
		ifsChars = ifs.String()
	}
	var out []string
	for _, f := range fs {
		out = append(out, splitOneField(f, ifsChars)...)
	}
	return out
}

func splitOneField(f field, ifs string) []string {
	var result []string
	var cur strings.Builder
	has := false
	flush := func() {
		result = append(result, cur.String())
		cur.Reset()
		has = false
	}
	for _, p := range f.pieces {
		if !p.splittable {
			cur.WriteString(p.s)
			has = true
			continue
		}
		start := 0
		for i, r := range p.s {
			if strings.ContainsRune(ifs, r) {
				seg := p.s[start:i]
				cur.WriteString(seg)
				if seg != "" {
					has = true
				}
				if isIFSWhite(r, ifs) {
					// run of whitespace: flush only when the field has
					// content, so a run of whitespace ends one field.
					if has {
						flush()
					}
				} else {
					flush()
				}
				start = i + len(string(r))
			}
		}
		cur.WriteString(p.s[start:])
		if len(p.s[start:]) > 0 {
			has = true
		}
	}
	if has || len(result) == 0 {
		flush()
	}
	// Drop leading/trailing empty fields produced by IFS whitespace runs,
	// but keep interior ones from non-whitespace delimiters.
	return trimEmptyEdges(result)
}

func isIFSWhite(r rune, ifs string) bool {
	return (r == ' ' || r == '\t' || r == '\n') && strings.ContainsRune(ifs, r)
}

func trimEmptyEdges(fs []string) []string {
	for len(fs) > 0 && fs[0] == "" {
		fs = fs[1:]
	}
	for len(fs) > 0 && fs[len(fs)-1] == "" {
		fs = fs[:len(fs)-1]
	}
	return fs
}

// expandWord walks a Word's pieces, handling concatenation and the
// special multi-field behaviour of "$@" / $* (spec.md §4.4). Brace
// expansion runs first, at whole-word granularity: it can turn one
// Word into several (spec.md's brace pass is purely textual and must
// see the entire word, not just one Lit piece, so `{a,b}{c,d}`
// cross-products and `a{b,c}d` yields two fields rather than one
// concatenated mess).
func (e *Expander) expandWord(w *syntax.Word, split bool) ([]field, error) {
	variants := braceExpandWord(w)
	if len(variants) == 1 {
		return e.expandWordPieces(variants[0], split)
	}
	var all []field
	for _, v := range variants {
		fs, err := e.expandWordPieces(v, split)
		if err != nil {
			return nil, err
		}
		all = append(all, fs...)
	}
	return all, nil
}

func (e *Expander) expandWordPieces(w *syntax.Word, split bool) ([]field, error) {
	fields := []field{{}}
	appendPiece := func(s string, splittable bool) {
		last := &fields[len(fields)-1]
		last.pieces = append(last.pieces, piece{s: s, splittable: splittable})
	}
	newField := func() { fields = append(fields, field{}) }

	for _, wp := range w.Pieces {
		switch p := wp.(type) {
		case *syntax.Lit:
			appendPiece(p.Value, true)
		case *syntax.SingleQuoted:
			appendPiece(p.Value, false)
		case *syntax.AnsiCQuoted:
			appendPiece(p.Value, false)
		case *syntax.TildePrefix:
			home, ok := e.RT.HomeDir(p.User)
			if !ok {
				appendPiece("~"+p.User, true)
				continue
			}
			appendPiece(home, false)
		case *syntax.DoubleQuoted:
			dqFields, err := e.expandDoubleQuoted(p)
			if err != nil {
				return nil, err
			}
			if len(dqFields) == 0 {
				appendPiece("", false)
			} else {
				for i, df := range dqFields {
					if i > 0 {
						newField()
					}
					for _, pc := range df.pieces {
						appendPiece(pc.s, pc.splittable)
					}
				}
			}
		case *syntax.ParamExp:
			pfields, err := e.expandParam(p)
			if err != nil {
				return nil, err
			}
			if len(pfields) == 0 {
				continue
			}
			for i, pf := range pfields {
				if i > 0 {
					newField()
				}
				for _, pc := range pf.pieces {
					appendPiece(pc.s, pc.splittable)
				}
			}
		case *syntax.CmdSubst:
			out, err := e.RT.RunCommandSubst(p.Body)
			if err != nil {
				return nil, err
			}
			appendPiece(out, true)
		case *syntax.BackquoteSubst:
			out, err := e.RT.RunCommandSubst(p.Body)
			if err != nil {
				return nil, err
			}
			appendPiece(out, true)
		case *syntax.ArithExpansion:
			v, err := EvalArith(p.X, e.RT)
			if err != nil {
				return nil, err
			}
			appendPiece(strconv.FormatInt(v, 10), true)
		case *syntax.ExtGlob:
			appendPiece(string(p.Op)+"("+p.Pattern+")", true)
		case *syntax.ArrayLiteral:
			// Only valid as a whole assignment RHS; callers that reach
			// an array literal mid-word treat it textually.
			appendPiece(rawArrayLiteral(p), true)
		default:
			return nil, fmt.Errorf("expand: unhandled word piece %T", wp)
		}
	}
	return fields, nil
}

// bracePlaceholderBase is a Supplementary Private Use Area-A code
// point: far enough outside any text a shell script would plausibly
// contain that it's safe to use as a one-rune stand-in for a
// non-literal word piece while braceExpand operates on plain text.
const bracePlaceholderBase = 0xF0000

// braceExpandWord runs `{a,b,c}`/`{1..5}` alternation across an entire
// word, ahead of every other expansion pass, and returns the resulting
// Words (a single-element slice, the Word unchanged, if there was
// nothing to expand). Non-literal pieces (quoted text, parameter
// expansions, command substitutions, …) are opaque to brace expansion
// — each is swapped for a placeholder rune before the text pass and
// restored verbatim in every alternative afterward.
func braceExpandWord(w *syntax.Word) []*syntax.Word {
	var sb strings.Builder
	var opaque []syntax.WordPiece
	hasBrace := false
	for _, wp := range w.Pieces {
		lit, ok := wp.(*syntax.Lit)
		if !ok {
			sb.WriteRune(bracePlaceholderBase + rune(len(opaque)))
			opaque = append(opaque, wp)
			continue
		}
		if strings.ContainsAny(lit.Value, "{}") {
			hasBrace = true
		}
		sb.WriteString(lit.Value)
	}
	if !hasBrace {
		return []*syntax.Word{w}
	}
	alts := braceExpand(sb.String())
	if len(alts) <= 1 {
		return []*syntax.Word{w}
	}
	words := make([]*syntax.Word, len(alts))
	for i, alt := range alts {
		words[i] = rebuildBraceWord(alt, opaque)
	}
	return words
}

// rebuildBraceWord turns one braceExpand alternative back into a Word,
// re-inserting the opaque pieces braceExpandWord swapped out.
func rebuildBraceWord(alt string, opaque []syntax.WordPiece) *syntax.Word {
	var pieces []syntax.WordPiece
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			pieces = append(pieces, &syntax.Lit{Value: lit.String()})
			lit.Reset()
		}
	}
	for _, r := range alt {
		if idx := int(r - bracePlaceholderBase); idx >= 0 && idx < len(opaque) {
			flush()
			pieces = append(pieces, opaque[idx])
			continue
		}
		lit.WriteRune(r)
	}
	flush()
	return &syntax.Word{Pieces: pieces}
}

func rawArrayLiteral(a *syntax.ArrayLiteral) string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, el := range a.Elems {
		if i > 0 {
			sb.WriteString(" ")
		}
		if t, ok := el.Value.Lit(); ok {
			sb.WriteString(t)
		}
	}
	sb.WriteString(")")
	return sb.String()
}
