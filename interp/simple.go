package interp

import (
	"fmt"
	"strconv"

	"github.com/posixsh/posh/expand"
	"github.com/posixsh/posh/syntax"
)

// execSimpleCommand implements spec.md §4.3/§4.7: expand the leading
// assignments and words, apply redirections, and dispatch to whichever
// of alias/special-builtin/function/builtin/external resolves first.
// A simple command with no words at all is a pure assignment/redirect
// statement (spec.md §4.9 edge case): it mutates the current scope and
// never creates a new one.
func (sh *Shell) execSimpleCommand(c *syntax.SimpleCommand, stmtRedirs []*syntax.Redirect) ExecResult {
	assigns, redirs := splitPrefix(c.Prefix)
	redirs = append(redirs, redirsOf(c.Suffix)...)
	redirs = append(redirs, stmtRedirs...)

	if len(c.Words) == 0 {
		return sh.withRedirs(redirs, func() ExecResult {
			if err := sh.applyAssigns(assigns, scopeGlobal); err != nil {
				fmt.Fprintln(sh.Stderr, "posh:", err)
				return normal(1)
			}
			return normal(0)
		})
	}

	argv, err := sh.Expander().Fields(c.Words...)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	if len(argv) == 0 {
		return normal(0)
	}

	return sh.withRedirs(redirs, func() ExecResult {
		return sh.dispatch(argv, assigns)
	})
}

func splitPrefix(prefix []*syntax.CmdPart) (assigns []*syntax.Assignment, redirs []*syntax.Redirect) {
	for _, p := range prefix {
		switch {
		case p.Assign != nil:
			assigns = append(assigns, p.Assign)
		case p.Redirect != nil:
			redirs = append(redirs, p.Redirect)
		}
	}
	return assigns, redirs
}

func redirsOf(suffix []*syntax.CmdPart) []*syntax.Redirect {
	var out []*syntax.Redirect
	for _, p := range suffix {
		if p.Redirect != nil {
			out = append(out, p.Redirect)
		}
	}
	return out
}

// applyAssigns evaluates name=value / name+=value / name=(arr…) forms
// in order, creating the variable in createIn if it does not already
// exist in an outer scope (spec.md §3, §4.3).
func (sh *Shell) applyAssigns(assigns []*syntax.Assignment, createIn scopeKind) error {
	for _, a := range assigns {
		vr, err := sh.evalAssignment(a)
		if err != nil {
			return err
		}
		if err := sh.scopes.setAnywhere(a.Name, vr, createIn); err != nil {
			return err
		}
	}
	return nil
}

func (sh *Shell) evalAssignment(a *syntax.Assignment) (expand.Variable, error) {
	if a.Array != nil {
		return sh.evalArrayAssignment(a)
	}
	val := ""
	if a.Value != nil {
		v, err := sh.Expander().String(a.Value)
		if err != nil {
			return expand.Variable{}, err
		}
		val = v
	}
	if a.Index != nil {
		return sh.evalIndexAssignment(a, val)
	}
	if a.Append {
		old := sh.Get(a.Name)
		if old.IsSet() {
			val = old.String() + val
		}
	}
	return expand.Variable{Set: true, Kind: expand.String, Str: val}, nil
}

func (sh *Shell) evalIndexAssignment(a *syntax.Assignment, val string) (expand.Variable, error) {
	old := sh.Get(a.Name)
	if a.Index.Key == nil {
		return expand.Variable{Set: true, Kind: expand.String, Str: val}, nil
	}
	idxStr, err := sh.Expander().String(a.Index.Key)
	if err != nil {
		return expand.Variable{}, err
	}
	if n, err := strconv.Atoi(idxStr); err == nil {
		list := map[int]string{}
		for k, v := range old.List {
			list[k] = v
		}
		if a.Append {
			val = list[n] + val
		}
		list[n] = val
		return expand.Variable{Set: true, Kind: expand.Indexed, List: list}, nil
	}
	m := map[string]string{}
	for k, v := range old.Map {
		m[k] = v
	}
	if a.Append {
		val = m[idxStr] + val
	}
	m[idxStr] = val
	return expand.Variable{Set: true, Kind: expand.Associative, Map: m}, nil
}

func (sh *Shell) evalArrayAssignment(a *syntax.Assignment) (expand.Variable, error) {
	list := map[int]string{}
	m := map[string]string{}
	assoc := false
	next := 0
	for _, elem := range a.Array {
		v, err := sh.Expander().String(elem.Value)
		if err != nil {
			return expand.Variable{}, err
		}
		if elem.Key != nil {
			k, err := sh.Expander().String(elem.Key)
			if err != nil {
				return expand.Variable{}, err
			}
			if n, err := strconv.Atoi(k); err == nil {
				list[n] = v
				if n >= next {
					next = n + 1
				}
				continue
			}
			assoc = true
			m[k] = v
			continue
		}
		list[next] = v
		next++
	}
	if assoc {
		return expand.Variable{Set: true, Kind: expand.Associative, Map: m}, nil
	}
	return expand.Variable{Set: true, Kind: expand.Indexed, List: list}, nil
}
