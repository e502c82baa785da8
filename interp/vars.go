package interp

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/posixsh/posh/expand"
)

// scopeKind names the three environment-scope layers of spec.md §3:
// Global persists for the shell's lifetime, Local is pushed per
// function call, Command is the ephemeral scope pushed around a
// regular builtin to hold its leading assignments.
type scopeKind int

const (
	scopeGlobal scopeKind = iota
	scopeLocal
	scopeCommand
)

type scope struct {
	kind   scopeKind
	values map[string]expand.Variable
}

func newScope(kind scopeKind) *scope {
	return &scope{kind: kind, values: make(map[string]expand.Variable)}
}

// scopeStack is the LIFO environment stack from spec.md §3. push/pop
// must strictly pair; a mismatched pop is a programming error, caught
// here with a panic since it can only be caused by an interpreter bug.
type scopeStack struct {
	frames []*scope
	dyn    map[string]dynamicVar
}

// dynamicVar implements the (getter, setter) pair spec.md §3 and §4.8
// use for RANDOM, SECONDS, PIPESTATUS, FUNCNAME, BASH_SOURCE, DIRSTACK,
// EPOCHSECONDS, EPOCHREALTIME, GROUPS and LINENO: these are never
// stored, only computed from live shell state on read.
type dynamicVar struct {
	get func(*Shell) expand.Variable
	set func(*Shell, expand.Variable) error
}

func newScopeStack() *scopeStack {
	s := &scopeStack{frames: []*scope{newScope(scopeGlobal)}}
	return s
}

func (s *scopeStack) push(kind scopeKind) { s.frames = append(s.frames, newScope(kind)) }

func (s *scopeStack) pop(kind scopeKind) {
	n := len(s.frames)
	if n == 0 || s.frames[n-1].kind != kind {
		panic(fmt.Sprintf("interp: mismatched scope pop: want %v, have %v", kind, s.frames[n-1].kind))
	}
	s.frames = s.frames[:n-1]
}

func (s *scopeStack) top() *scope { return s.frames[len(s.frames)-1] }

// get performs innermost-first lookup across the visible scope frames.
func (s *scopeStack) get(name string) (expand.Variable, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].values[name]; ok {
			return v, true
		}
	}
	return expand.Variable{}, false
}

// setAnywhere mutates the innermost scope that already holds name,
// falling back to the given default scope to create it there
// (spec.md §3's "Anywhere lookup").
func (s *scopeStack) setAnywhere(name string, vr expand.Variable, createIn scopeKind) error {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if existing, ok := s.frames[i].values[name]; ok {
			if existing.ReadOnly && vr.Kind != expand.Unknown {
				return fmt.Errorf("%s: readonly variable", name)
			}
			s.frames[i].values[name] = vr
			return nil
		}
	}
	var target *scope
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].kind == createIn {
			target = s.frames[i]
			break
		}
	}
	if target == nil {
		target = s.frames[0]
	}
	target.values[name] = vr
	return nil
}

func (s *scopeStack) unset(name string) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].values[name]; ok {
			delete(s.frames[i].values, name)
			return
		}
	}
}

func (s *scopeStack) each(fn func(string, expand.Variable) bool) {
	seen := map[string]bool{}
	for i := len(s.frames) - 1; i >= 0; i-- {
		for name, vr := range s.frames[i].values {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !fn(name, vr) {
				return
			}
		}
	}
}

// --- Shell-facing Environ/WriteEnviron implementation ---

// Get implements expand.Environ, checking dynamic variables first
// since they shadow any stored value of the same name.
func (sh *Shell) Get(name string) expand.Variable {
	if d, ok := sh.scopes.dyn[name]; ok {
		return d.get(sh)
	}
	v, _ := sh.scopes.get(name)
	return v
}

func (sh *Shell) Each(fn func(string, expand.Variable) bool) {
	for name, d := range sh.scopes.dyn {
		if !fn(name, d.get(sh)) {
			return
		}
	}
	sh.scopes.each(fn)
}

func (sh *Shell) Set(name string, vr expand.Variable) error {
	if d, ok := sh.scopes.dyn[name]; ok {
		if d.set == nil {
			return nil // dynamic vars without a setter silently ignore writes
		}
		return d.set(sh, vr)
	}
	return sh.scopes.setAnywhere(name, vr, scopeGlobal)
}

// SetInt implements expand.ArithContext for arithmetic assignment.
func (sh *Shell) SetInt(name string, v int64) error {
	return sh.Set(name, expand.Variable{Set: true, Integer: true, Kind: expand.String, Str: strconv.FormatInt(v, 10)})
}

func (sh *Shell) Unset(name string) {
	if _, ok := sh.scopes.dyn[name]; ok {
		return
	}
	sh.scopes.unset(name)
}

// installDynamicVars wires up the canonical dynamic-variable table
// described in spec.md §4.8.
func (sh *Shell) installDynamicVars() {
	sh.scopes.dyn = map[string]dynamicVar{
		"RANDOM": {get: func(s *Shell) expand.Variable {
			return strVar(strconv.Itoa(s.rng.Intn(32768)))
		}},
		"SECONDS": {
			get: func(s *Shell) expand.Variable {
				return strVar(strconv.FormatInt(int64(time.Since(s.started).Seconds())+s.secondsOffset, 10))
			},
			set: func(s *Shell, vr expand.Variable) error {
				n, _ := strconv.ParseInt(vr.String(), 10, 64)
				s.secondsOffset = n
				s.started = time.Now()
				return nil
			},
		},
		"PIPESTATUS": {get: func(s *Shell) expand.Variable {
			parts := make([]string, len(s.pipeStatus))
			for i, c := range s.pipeStatus {
				parts[i] = strconv.Itoa(c)
			}
			m := map[int]string{}
			for i, p := range parts {
				m[i] = p
			}
			return expand.Variable{Set: true, Kind: expand.Indexed, List: m}
		}},
		"FUNCNAME": {get: func(s *Shell) expand.Variable {
			m := map[int]string{}
			for i, f := range s.funcStack {
				m[len(s.funcStack)-1-i] = f.name
			}
			return expand.Variable{Set: len(s.funcStack) > 0, Kind: expand.Indexed, List: m}
		}},
		"BASH_SOURCE": {get: func(s *Shell) expand.Variable {
			m := map[int]string{}
			for i, c := range s.scriptStack {
				m[len(s.scriptStack)-1-i] = c.name
			}
			return expand.Variable{Set: len(s.scriptStack) > 0, Kind: expand.Indexed, List: m}
		}},
		"DIRSTACK": {get: func(s *Shell) expand.Variable {
			m := map[int]string{}
			for i, d := range s.dirStack {
				m[i] = d
			}
			return expand.Variable{Set: true, Kind: expand.Indexed, List: m}
		}},
		"EPOCHSECONDS": {get: func(s *Shell) expand.Variable {
			return strVar(strconv.FormatInt(time.Now().Unix(), 10))
		}},
		"EPOCHREALTIME": {get: func(s *Shell) expand.Variable {
			return strVar(fmt.Sprintf("%.6f", float64(time.Now().UnixNano())/1e9))
		}},
		"GROUPS": {get: func(s *Shell) expand.Variable {
			m := map[int]string{}
			for i, g := range s.groups {
				m[i] = g
			}
			return expand.Variable{Set: true, Kind: expand.Indexed, List: m}
		}},
		"LINENO": {get: func(s *Shell) expand.Variable {
			return strVar(strconv.Itoa(s.curLine))
		}},
		"?": {get: func(s *Shell) expand.Variable { return strVar(strconv.Itoa(s.lastStatus)) }},
		"$": {get: func(s *Shell) expand.Variable { return strVar(strconv.Itoa(s.pid)) }},
		"!": {get: func(s *Shell) expand.Variable { return strVar(strconv.Itoa(s.lastBgPID)) }},
		"#": {get: func(s *Shell) expand.Variable { return strVar(strconv.Itoa(len(s.positional))) }},
		"0": {get: func(s *Shell) expand.Variable { return strVar(s.scriptName) }},
		"BASH_SUBSHELL": {get: func(s *Shell) expand.Variable { return strVar(strconv.Itoa(s.subshellDepth)) }},
	}
}

func strVar(s string) expand.Variable {
	return expand.Variable{Set: true, Kind: expand.String, Str: s}
}

// IndexedElems/AssocElems implement expand.Runtime's array accessors.
func (sh *Shell) IndexedElems(name string) (map[int]string, bool) {
	vr := sh.Get(name)
	if vr.Kind != expand.Indexed {
		return nil, false
	}
	return vr.List, true
}

func (sh *Shell) AssocElems(name string) (map[string]string, bool) {
	vr := sh.Get(name)
	if vr.Kind != expand.Associative {
		return nil, false
	}
	return vr.Map, true
}

func (sh *Shell) Positional(i int) (string, bool) {
	if i == 0 {
		return sh.scriptName, true
	}
	if i < 1 || i > len(sh.positional) {
		return "", false
	}
	return sh.positional[i-1], true
}

func (sh *Shell) NumPositional() int { return len(sh.positional) }
func (sh *Shell) ScriptName() string { return sh.scriptName }

// exportedList materialises the environment block passed to external
// children: exported variables from the scope stack, innermost wins.
func (sh *Shell) exportedList() []string {
	seen := map[string]bool{}
	var out []string
	for i := len(sh.scopes.frames) - 1; i >= 0; i-- {
		names := make([]string, 0, len(sh.scopes.frames[i].values))
		for name := range sh.scopes.frames[i].values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			vr := sh.scopes.frames[i].values[name]
			if vr.Exported && vr.Kind == expand.String {
				out = append(out, name+"="+vr.Str)
			}
		}
	}
	return out
}

func newRand() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
