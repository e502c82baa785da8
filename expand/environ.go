// Package expand implements the word-expansion engine described in
// spec.md §4.4: tilde, parameter, command and arithmetic substitution,
// brace expansion, field splitting and pathname expansion, exposed as
// the four entry points the grammar's Word nodes are fed through.
package expand

import (
	"cmp"
	"slices"
	"strings"
)

// ValueKind discriminates the shapes a shell value can take, matching
// the tagged union in spec.md §3.
type ValueKind uint8

const (
	Unknown ValueKind = iota
	String
	NameRef
	Indexed
	Associative
)

// Variable is a shell value plus the attribute bits spec.md §3 attaches
// to it. A Dynamic variable (RANDOM, SECONDS, PIPESTATUS, ...) never
// appears here directly; its owner resolves it to a Variable lazily on
// each Get, which is why Environ.Get takes no mutable receiver.
type Variable struct {
	Set      bool
	Exported bool
	ReadOnly bool
	Integer  bool
	Lower    bool
	Upper    bool

	Kind ValueKind
	Str  string
	List map[int]string   // Indexed, sparse on purpose (spec.md §3)
	Map  map[string]string
}

func (v Variable) IsSet() bool { return v.Set }

// String renders the variable the way word expansion and the child
// process environment both want: the scalar value, or element 0 of an
// indexed array, or empty for an associative array used as a scalar.
func (v Variable) String() string {
	switch v.Kind {
	case String, NameRef:
		return v.Str
	case Indexed:
		return v.List[0]
	}
	return ""
}

// Resolve follows NameRef variables to their target, bounded to avoid
// cycles, mirroring the arithmetic evaluator's recursive dereferencing
// rule in spec.md §4.4.
func (v Variable) Resolve(env Environ, maxDepth int) (string, Variable) {
	name := ""
	for i := 0; i < maxDepth; i++ {
		if v.Kind != NameRef {
			return name, v
		}
		name = v.Str
		v = env.Get(name)
	}
	return name, Variable{}
}

// Environ is the read side of the scoped environment stack in
// spec.md §3: innermost-first lookup, with Each required to surface
// every visible name (duplicates allowed; the latest wins).
type Environ interface {
	Get(name string) Variable
	Each(func(name string, vr Variable) bool)
}

// WriteEnviron adds mutation: Set with an unset Variable deletes,
// otherwise it replaces. Implementations enforce ReadOnly themselves.
type WriteEnviron interface {
	Environ
	Set(name string, vr Variable) error
}

// FuncEnviron adapts a plain name->value function (e.g. a Dynamic
// variable table) into a read-only Environ.
func FuncEnviron(fn func(string) string) Environ { return funcEnviron(fn) }

type funcEnviron func(string) string

func (f funcEnviron) Get(name string) Variable {
	v := f(name)
	if v == "" {
		return Variable{}
	}
	return Variable{Set: true, Exported: true, Kind: String, Str: v}
}
func (f funcEnviron) Each(func(string, Variable) bool) {}

// ListEnviron builds a read-only Environ out of "name=value" pairs, the
// shape external-process environments and exported-variable snapshots
// both take (spec.md §6).
func ListEnviron(pairs ...string) Environ {
	list := slices.Clone(pairs)
	slices.SortStableFunc(list, func(a, b string) int {
		return strings.Compare(nameOf(a), nameOf(b))
	})
	return listEnviron(list)
}

func nameOf(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

type listEnviron []string

func (l listEnviron) Get(name string) Variable {
	i, ok := slices.BinarySearchFunc(l, name, func(kv, name string) int {
		return cmp.Compare(nameOf(kv), name)
	})
	if !ok || nameOf(l[i]) != name {
		return Variable{}
	}
	for i+1 < len(l) && nameOf(l[i+1]) == name {
		i++
	}
	_, val, _ := strings.Cut(l[i], "=")
	return Variable{Set: true, Exported: true, Kind: String, Str: val}
}

func (l listEnviron) Each(fn func(string, Variable) bool) {
	for _, kv := range l {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if !fn(name, Variable{Set: true, Exported: true, Kind: String, Str: val}) {
			return
		}
	}
}
