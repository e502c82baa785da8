package expand

import (
	"fmt"
	"testing"

	"github.com/posixsh/posh/syntax"
)

// fakeRuntime is a minimal, map-backed Runtime good enough to drive
// the expander end to end without pulling in interp's scope stack.
type fakeRuntime struct {
	vars       map[string]Variable
	positional []string
	name       string
	opts       Options
	homeDirs   map[string]string
	globResult map[string][]string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		vars:       map[string]Variable{},
		name:       "script",
		homeDirs:   map[string]string{},
		globResult: map[string][]string{},
	}
}

func (r *fakeRuntime) Get(name string) Variable { return r.vars[name] }
func (r *fakeRuntime) Each(fn func(string, Variable) bool) {
	for k, v := range r.vars {
		if !fn(k, v) {
			return
		}
	}
}
func (r *fakeRuntime) Set(name string, vr Variable) error {
	r.vars[name] = vr
	return nil
}
func (r *fakeRuntime) SetInt(name string, v int64) error {
	r.vars[name] = Variable{Set: true, Kind: String, Integer: true, Str: fmt.Sprintf("%d", v)}
	return nil
}
func (r *fakeRuntime) Positional(i int) (string, bool) {
	if i == 0 {
		return r.name, true
	}
	if i < 1 || i > len(r.positional) {
		return "", false
	}
	return r.positional[i-1], true
}
func (r *fakeRuntime) NumPositional() int { return len(r.positional) }
func (r *fakeRuntime) ScriptName() string { return r.name }
func (r *fakeRuntime) IndexedElems(name string) (map[int]string, bool) {
	v, ok := r.vars[name]
	if !ok || v.Kind != Indexed {
		return nil, false
	}
	return v.List, true
}
func (r *fakeRuntime) AssocElems(name string) (map[string]string, bool) {
	v, ok := r.vars[name]
	if !ok || v.Kind != Associative {
		return nil, false
	}
	return v.Map, true
}
func (r *fakeRuntime) RunCommandSubst(stmts []*syntax.Stmt) (string, error) {
	return "", nil
}
func (r *fakeRuntime) Glob(pat string) ([]string, error) {
	return r.globResult[pat], nil
}
func (r *fakeRuntime) Options() Options { return r.opts }
func (r *fakeRuntime) HomeDir(user string) (string, bool) {
	h, ok := r.homeDirs[user]
	return h, ok
}

func parseWord(t *testing.T, src string) *syntax.Word {
	t.Helper()
	prog, err := syntax.Parse("test", "x "+src+"\n")
	if err != nil {
		t.Fatalf("parsing word %q: %v", src, err)
	}
	sc := prog.Lines[0].Stmts[0].Cmd.(*syntax.SimpleCommand)
	if len(sc.Words) != 2 {
		t.Fatalf("word %q split into %d words, want 1", src, len(sc.Words)-1)
	}
	return sc.Words[1]
}

func TestExpanderStringLiteral(t *testing.T) {
	rt := newFakeRuntime()
	e := NewExpander(rt)
	got, err := e.String(parseWord(t, "hello"))
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestExpanderStringParam(t *testing.T) {
	rt := newFakeRuntime()
	rt.vars["FOO"] = Variable{Set: true, Kind: String, Str: "bar"}
	e := NewExpander(rt)
	got, err := e.String(parseWord(t, "$FOO"))
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if got != "bar" {
		t.Errorf("got %q, want %q", got, "bar")
	}
}

func TestExpanderStringParamDefault(t *testing.T) {
	rt := newFakeRuntime()
	e := NewExpander(rt)
	got, err := e.String(parseWord(t, "${FOO:-fallback}"))
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
}

func TestExpanderStringUnsetErrors(t *testing.T) {
	rt := newFakeRuntime()
	e := NewExpander(rt)
	_, err := e.String(parseWord(t, `${FOO:?not set}`))
	if err == nil {
		t.Fatal("expected an error for ${FOO:?not set}, got nil")
	}
}

func TestExpanderFieldsSplitting(t *testing.T) {
	rt := newFakeRuntime()
	rt.vars["FOO"] = Variable{Set: true, Kind: String, Str: "a b  c"}
	e := NewExpander(rt)
	got, err := e.Fields(parseWord(t, "$FOO"))
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpanderFieldsQuotedNoSplit(t *testing.T) {
	rt := newFakeRuntime()
	rt.vars["FOO"] = Variable{Set: true, Kind: String, Str: "a b  c"}
	e := NewExpander(rt)
	got, err := e.Fields(parseWord(t, `"$FOO"`))
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(got) != 1 || got[0] != "a b  c" {
		t.Fatalf("got %v, want one field %q", got, "a b  c")
	}
}

func TestExpanderPositional(t *testing.T) {
	rt := newFakeRuntime()
	rt.positional = []string{"one", "two"}
	e := NewExpander(rt)
	got, err := e.String(parseWord(t, "$1-$2"))
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if got != "one-two" {
		t.Errorf("got %q, want %q", got, "one-two")
	}
}

func TestExpanderFieldsBraceAlternation(t *testing.T) {
	rt := newFakeRuntime()
	e := NewExpander(rt)
	got, err := e.Fields(parseWord(t, "a{b,c}d"))
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	want := []string{"abd", "acd"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpanderFieldsBraceCrossProduct(t *testing.T) {
	rt := newFakeRuntime()
	e := NewExpander(rt)
	got, err := e.Fields(parseWord(t, "{a,b}{c,d}"))
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	want := []string{"ac", "ad", "bc", "bd"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpanderFieldsBraceWithParam(t *testing.T) {
	rt := newFakeRuntime()
	rt.vars["X"] = Variable{Set: true, Kind: String, Str: "mid"}
	e := NewExpander(rt)
	got, err := e.Fields(parseWord(t, "{pre,post}-$X"))
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	want := []string{"pre-mid", "post-mid"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpanderFieldsBraceQuotedNotExpanded(t *testing.T) {
	rt := newFakeRuntime()
	e := NewExpander(rt)
	got, err := e.Fields(parseWord(t, `"{a,b}"`))
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(got) != 1 || got[0] != "{a,b}" {
		t.Fatalf("got %v, want one literal field %q", got, "{a,b}")
	}
}

func TestEvalArithBasic(t *testing.T) {
	rt := newFakeRuntime()
	expr, err := syntax.ParseArith("1 + 2 * 3", 0)
	if err != nil {
		t.Fatalf("ParseArith: %v", err)
	}
	got, err := EvalArith(expr, rt)
	if err != nil {
		t.Fatalf("EvalArith: %v", err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestEvalArithVariable(t *testing.T) {
	rt := newFakeRuntime()
	rt.vars["X"] = Variable{Set: true, Kind: String, Str: "5"}
	expr, err := syntax.ParseArith("X * X", 0)
	if err != nil {
		t.Fatalf("ParseArith: %v", err)
	}
	got, err := EvalArith(expr, rt)
	if err != nil {
		t.Fatalf("EvalArith: %v", err)
	}
	if got != 25 {
		t.Errorf("got %d, want 25", got)
	}
}

func TestEvalArithDivideByZero(t *testing.T) {
	rt := newFakeRuntime()
	expr, err := syntax.ParseArith("1 / 0", 0)
	if err != nil {
		t.Fatalf("ParseArith: %v", err)
	}
	if _, err := EvalArith(expr, rt); err == nil {
		t.Fatal("expected a divide-by-zero error, got nil")
	}
}

func TestListEnvironGet(t *testing.T) {
	env := ListEnviron("FOO=bar", "BAZ=qux")
	v := env.Get("FOO")
	if !v.IsSet() || v.String() != "bar" {
		t.Errorf("Get(FOO) = %+v, want Str=bar", v)
	}
	if env.Get("MISSING").IsSet() {
		t.Error("Get(MISSING).IsSet() = true, want false")
	}
}

func TestVariableResolveNameRef(t *testing.T) {
	rt := newFakeRuntime()
	rt.vars["ref"] = Variable{Set: true, Kind: NameRef, Str: "target"}
	rt.vars["target"] = Variable{Set: true, Kind: String, Str: "value"}
	name, v := rt.vars["ref"].Resolve(rt, 10)
	if name != "target" || v.Str != "value" {
		t.Errorf("Resolve = (%q, %+v), want (target, value)", name, v)
	}
}
