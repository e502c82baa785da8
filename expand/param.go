package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/posixsh/posh/syntax"
)

// expandDoubleQuoted expands the inside of a double-quoted span. Every
// resulting piece is unsplittable; "$@", and any parameter expansion
// whose result is several fields (such as "${arr[@]}"), produces more
// than one field from inside quotes (spec.md §4.4).
func (e *Expander) expandDoubleQuoted(dq *syntax.DoubleQuoted) ([]field, error) {
	fields := []field{{}}
	appendPiece := func(s string) {
		last := &fields[len(fields)-1]
		last.pieces = append(last.pieces, piece{s: s, splittable: false})
	}
	newField := func() { fields = append(fields, field{}) }

	for _, wp := range dq.Parts {
		switch p := wp.(type) {
		case *syntax.Lit:
			appendPiece(p.Value)
		case *syntax.ParamExp:
			if p.Short && p.Name == "@" {
				n := e.RT.NumPositional()
				if n == 0 {
					continue
				}
				for i := 1; i <= n; i++ {
					if i > 1 {
						newField()
					}
					v, _ := e.RT.Positional(i)
					appendPiece(v)
				}
				continue
			}
			pfs, err := e.expandParam(p)
			if err != nil {
				return nil, err
			}
			for i, pf := range pfs {
				if i > 0 {
					newField()
				}
				appendPiece(pf.String())
			}
		case *syntax.CmdSubst:
			out, err := e.RT.RunCommandSubst(p.Body)
			if err != nil {
				return nil, err
			}
			appendPiece(out)
		case *syntax.BackquoteSubst:
			out, err := e.RT.RunCommandSubst(p.Body)
			if err != nil {
				return nil, err
			}
			appendPiece(out)
		case *syntax.ArithExpansion:
			v, err := EvalArith(p.X, e.RT)
			if err != nil {
				return nil, err
			}
			appendPiece(strconv.FormatInt(v, 10))
		default:
			return nil, fmt.Errorf("expand: unhandled double-quoted piece %T", wp)
		}
	}
	return fields, nil
}

// expandParam implements the full `${...}` operator grammar of
// spec.md §4.2. It returns one or more fields: plain scalar lookups
// and most operators return exactly one, while "$@"/"${name[@]}" and
// the `${!prefix@}` name-listing forms can return several.
func (e *Expander) expandParam(p *syntax.ParamExp) ([]field, error) {
	switch p.Op {
	case syntax.ParamLength:
		return e.paramLength(p)
	case syntax.ParamIndirect:
		return e.paramIndirect(p)
	case syntax.ParamNamesPrefix:
		return e.paramNamesPrefix(p)
	case syntax.ParamSlice:
		return e.paramSlice(p)
	}

	if p.Name == "@" || p.Name == "*" {
		return e.paramAllPositional(p)
	}
	if idx := p.Index; idx != nil {
		if lit, ok := idx.Lit(); ok && (lit == "@" || lit == "*") {
			return e.paramAllArrayElems(p, lit == "@")
		}
	}

	val, isSet := e.lookupScalar(p)

	switch p.Op {
	case syntax.ParamPlain:
		if !isSet {
			if err := e.checkUnset(p.Name); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return oneField(val, true), nil
	case syntax.ParamDefault, syntax.ParamDefaultUnset:
		useDefault := !isSet || (p.Op == syntax.ParamDefault && val == "")
		if useDefault {
			w, err := e.expandArgWord(p.Arg)
			if err != nil {
				return nil, err
			}
			return oneField(w, true), nil
		}
		return oneField(val, true), nil
	case syntax.ParamAssign, syntax.ParamAssignUnset:
		useDefault := !isSet || (p.Op == syntax.ParamAssign && val == "")
		if useDefault {
			w, err := e.expandArgWord(p.Arg)
			if err != nil {
				return nil, err
			}
			if err := e.RT.Set(p.Name, Variable{Set: true, Kind: String, Str: w}); err != nil {
				return nil, err
			}
			return oneField(w, true), nil
		}
		return oneField(val, true), nil
	case syntax.ParamError, syntax.ParamErrorUnset:
		useError := !isSet || (p.Op == syntax.ParamError && val == "")
		if useError {
			msg, err := e.expandArgWord(p.Arg)
			if err != nil {
				return nil, err
			}
			if msg == "" {
				msg = p.Name + ": parameter null or not set"
			}
			return nil, &Error{Msg: p.Name + ": " + msg, Checked: true}
		}
		return oneField(val, true), nil
	case syntax.ParamAlt, syntax.ParamAltUnset:
		useAlt := isSet && (p.Op == syntax.ParamAltUnset || val != "")
		if useAlt {
			w, err := e.expandArgWord(p.Arg)
			if err != nil {
				return nil, err
			}
			return oneField(w, true), nil
		}
		return nil, nil
	case syntax.ParamRemSmallPrefix, syntax.ParamRemLargePrefix,
		syntax.ParamRemSmallSuffix, syntax.ParamRemLargeSuffix:
		pat, err := e.expandPatternArg(p.Arg)
		if err != nil {
			return nil, err
		}
		return oneField(trimByPattern(val, pat, p.Op), true), nil
	case syntax.ParamReplaceOnce, syntax.ParamReplaceAll,
		syntax.ParamReplacePrefix, syntax.ParamReplaceSuffix:
		return e.paramReplace(p, val)
	case syntax.ParamCaseUpperFirst, syntax.ParamCaseUpperAll,
		syntax.ParamCaseLowerFirst, syntax.ParamCaseLowerAll:
		upper := p.Op == syntax.ParamCaseUpperFirst || p.Op == syntax.ParamCaseUpperAll
		first := p.Op == syntax.ParamCaseUpperFirst || p.Op == syntax.ParamCaseLowerFirst
		var pat *Pattern
		if p.Arg != nil {
			pp, err := e.expandPatternArg(p.Arg)
			if err != nil {
				return nil, err
			}
			pat = &pp
		}
		return oneField(CaseTransform(val, upper, first, pat), true), nil
	case syntax.ParamTransform:
		return oneField(e.paramTransform(p, val), true), nil
	}
	return oneField(val, true), nil
}

func oneField(s string, splittable bool) []field {
	return []field{{pieces: []piece{{s: s, splittable: splittable}}}}
}

func (e *Expander) checkUnset(name string) error {
	if e.RT.Options().NoUnset {
		return &Error{Msg: name + ": unbound variable"}
	}
	return nil
}

func (e *Expander) expandArgWord(w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	return e.String(w)
}

func (e *Expander) expandPatternArg(w *syntax.Word) (Pattern, error) {
	if w == nil {
		return Pattern{}, nil
	}
	return e.Pattern(w)
}

// lookupScalar resolves a ${name} or ${name[index]} to its string
// value plus whether it is set at all.
func (e *Expander) lookupScalar(p *syntax.ParamExp) (string, bool) {
	if p.Index != nil {
		idxLit, isLit := p.Index.Lit()
		if assoc, ok := e.RT.AssocElems(p.Name); ok {
			key := idxLit
			if !isLit {
				s, _ := e.String(p.Index)
				key = s
			}
			v, ok := assoc[key]
			return v, ok
		}
		if arr, ok := e.RT.IndexedElems(p.Name); ok {
			n, err := EvalArith(mustArith(idxLit, isLit, p.Index), e.RT)
			if err != nil {
				return "", false
			}
			v, ok := arr[int(n)]
			return v, ok
		}
	}
	if n, err := strconv.Atoi(p.Name); err == nil {
		v, ok := e.RT.Positional(n)
		return v, ok
	}
	switch p.Name {
	case "?", "$", "#", "!", "-", "0":
		v := e.RT.Get(p.Name)
		return v.String(), v.IsSet()
	}
	vr := e.RT.Get(p.Name)
	if vr.Kind == NameRef {
		_, resolved := vr.Resolve(e.RT, 100)
		return resolved.String(), resolved.IsSet()
	}
	return vr.String(), vr.IsSet()
}

func mustArith(lit string, isLit bool, w *syntax.Word) syntax.ArithExpr {
	if isLit {
		if x, err := syntax.ParseArith(lit, w.Pos()); err == nil {
			return x
		}
	}
	return &syntax.ArithLit{ValuePos: w.Pos(), Value: "0"}
}

func (e *Expander) paramLength(p *syntax.ParamExp) ([]field, error) {
	if p.Name == "@" || p.Name == "*" {
		return oneField(strconv.Itoa(e.RT.NumPositional()), true), nil
	}
	if arr, ok := e.RT.IndexedElems(p.Name); ok {
		return oneField(strconv.Itoa(len(arr)), true), nil
	}
	if assoc, ok := e.RT.AssocElems(p.Name); ok {
		return oneField(strconv.Itoa(len(assoc)), true), nil
	}
	val, _ := e.lookupScalar(p)
	return oneField(strconv.Itoa(len([]rune(val))), true), nil
}

func (e *Expander) paramIndirect(p *syntax.ParamExp) ([]field, error) {
	target := e.RT.Get(p.Name).String()
	if target == "" {
		return nil, nil
	}
	inner := &syntax.ParamExp{Dollar: p.Dollar, Rbrace: p.Rbrace, Name: target, Index: p.Index}
	return e.expandParam(inner)
}

func (e *Expander) paramNamesPrefix(p *syntax.ParamExp) ([]field, error) {
	var names []string
	e.RT.Each(func(name string, _ Variable) bool {
		if strings.HasPrefix(name, p.Name) {
			names = append(names, name)
		}
		return true
	})
	if !p.NamesAll || len(names) == 0 {
		if len(names) == 0 {
			return nil, nil
		}
		return oneField(strings.Join(names, " "), true), nil
	}
	var fs []field
	for _, n := range names {
		fs = append(fs, field{pieces: []piece{{s: n, splittable: false}}})
	}
	return fs, nil
}

func (e *Expander) paramAllPositional(p *syntax.ParamExp) ([]field, error) {
	n := e.RT.NumPositional()
	if p.Name == "@" {
		var fs []field
		for i := 1; i <= n; i++ {
			v, _ := e.RT.Positional(i)
			fs = append(fs, field{pieces: []piece{{s: v, splittable: false}}})
		}
		return fs, nil
	}
	// $*: joined by the first IFS character (space if IFS is unset, no
	// separator if IFS is empty).
	ifs := e.RT.Get("IFS")
	sep := " "
	if ifs.IsSet() {
		if s := ifs.String(); s != "" {
			sep = s[:1]
		} else {
			sep = ""
		}
	}
	var parts []string
	for i := 1; i <= n; i++ {
		v, _ := e.RT.Positional(i)
		parts = append(parts, v)
	}
	return oneField(strings.Join(parts, sep), false), nil
}

func (e *Expander) paramAllArrayElems(p *syntax.ParamExp, atForm bool) ([]field, error) {
	if arr, ok := e.RT.IndexedElems(p.Name); ok {
		keys := sortedIntKeys(arr)
		if atForm {
			var fs []field
			for _, k := range keys {
				fs = append(fs, field{pieces: []piece{{s: arr[k], splittable: false}}})
			}
			return fs, nil
		}
		var parts []string
		for _, k := range keys {
			parts = append(parts, arr[k])
		}
		return oneField(strings.Join(parts, " "), false), nil
	}
	if assoc, ok := e.RT.AssocElems(p.Name); ok {
		keys := sortedStrKeys(assoc)
		if atForm {
			var fs []field
			for _, k := range keys {
				fs = append(fs, field{pieces: []piece{{s: assoc[k], splittable: false}}})
			}
			return fs, nil
		}
		var parts []string
		for _, k := range keys {
			parts = append(parts, assoc[k])
		}
		return oneField(strings.Join(parts, " "), false), nil
	}
	return nil, nil
}

func sortedIntKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func sortedStrKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// paramSlice implements `${name:offset:length}` including negative
// offsets and lengths, and the element-unit slicing of `${@:a:b}`
// (spec.md §4.4).
func (e *Expander) paramSlice(p *syntax.ParamExp) ([]field, error) {
	off, err := EvalArith(p.SliceOff, e.RT)
	if err != nil {
		return nil, err
	}
	var length int64 = -1
	hasLen := p.SliceLen != nil
	if hasLen {
		length, err = EvalArith(p.SliceLen, e.RT)
		if err != nil {
			return nil, err
		}
	}

	if p.Name == "@" || p.Name == "*" {
		n := e.RT.NumPositional()
		elems := make([]string, n+1)
		elems[0] = e.RT.ScriptName()
		for i := 1; i <= n; i++ {
			elems[i], _ = e.RT.Positional(i)
		}
		lo, hi := sliceBounds(int64(len(elems)), off, length, hasLen)
		sel := elems[lo:hi]
		var fs []field
		for _, s := range sel {
			fs = append(fs, field{pieces: []piece{{s: s, splittable: false}}})
		}
		return fs, nil
	}

	val, _ := e.lookupScalar(p)
	runes := []rune(val)
	lo, hi := sliceBounds(int64(len(runes)), off, length, hasLen)
	return oneField(string(runes[lo:hi]), true), nil
}

func sliceBounds(n, off, length int64, hasLen bool) (int64, int64) {
	if off < 0 {
		off += n
		if off < 0 {
			off = 0
		}
	}
	if off > n {
		off = n
	}
	hi := n
	if hasLen {
		if length < 0 {
			hi = n + length
		} else {
			hi = off + length
		}
	}
	if hi < off {
		hi = off
	}
	if hi > n {
		hi = n
	}
	return off, hi
}

// trimByPattern implements `#`/`##`/`%`/`%%` removal: the smallest or
// largest matching prefix/suffix is stripped.
func trimByPattern(val string, pat Pattern, op syntax.ParamOp) string {
	if pat.String() == "" {
		return val
	}
	switch op {
	case syntax.ParamRemSmallPrefix:
		return trimPrefixGreedy(val, pat, false)
	case syntax.ParamRemLargePrefix:
		return trimPrefixGreedy(val, pat, true)
	case syntax.ParamRemSmallSuffix:
		return trimSuffixGreedy(val, pat, false)
	case syntax.ParamRemLargeSuffix:
		return trimSuffixGreedy(val, pat, true)
	}
	return val
}

func trimPrefixGreedy(val string, pat Pattern, largest bool) string {
	best := -1
	for i := 0; i <= len(val); i++ {
		ok, _ := matchAnchoredPrefix(pat, val[:i])
		if ok {
			best = i
			if !largest {
				break
			}
		}
	}
	if best < 0 {
		return val
	}
	return val[best:]
}

func trimSuffixGreedy(val string, pat Pattern, largest bool) string {
	best := -1
	for i := len(val); i >= 0; i-- {
		ok, _ := matchAnchoredPrefix(pat, val[i:])
		if ok {
			best = i
			if !largest {
				break
			}
		}
	}
	if best < 0 {
		return val
	}
	return val[:best]
}

func matchAnchoredPrefix(pat Pattern, s string) (bool, error) {
	return pat.Match(s)
}

func (e *Expander) paramReplace(p *syntax.ParamExp, val string) ([]field, error) {
	pat, err := e.expandPatternArg(p.ReplFrom)
	if err != nil {
		return nil, err
	}
	repl, err := e.expandArgWord(p.ReplTo)
	if err != nil {
		return nil, err
	}
	re, err := pat.Regexp()
	if err != nil {
		return oneField(val, true), nil
	}
	// Strip the anchors added by Pattern.Regexp so we can search
	// anywhere in val for /pat/ and /pat/$ for %pat, ^pat for #pat.
	src := strings.TrimSuffix(strings.TrimPrefix(re.String(), "^"), "$")
	switch p.Op {
	case syntax.ParamReplaceOnce:
		return oneField(replaceFirst(val, src, repl), true), nil
	case syntax.ParamReplaceAll:
		return oneField(replaceAllRe(val, src, repl), true), nil
	case syntax.ParamReplacePrefix:
		return oneField(replaceAnchored(val, "^("+src+")", repl, true), true), nil
	case syntax.ParamReplaceSuffix:
		return oneField(replaceAnchored(val, "("+src+")$", repl, false), true), nil
	}
	return oneField(val, true), nil
}

func (e *Expander) paramTransform(p *syntax.ParamExp, val string) string {
	switch p.Transform {
	case 'Q':
		return quoteShell(val)
	case 'U':
		return CaseTransform(val, true, false, nil)
	case 'L':
		return CaseTransform(val, false, false, nil)
	case 'A':
		return p.Name + "=" + quoteShell(val)
	default:
		return val
	}
}

func quoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
