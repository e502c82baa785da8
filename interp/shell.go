// Package interp implements the execution engine of spec.md §4.6-§4.9:
// word expansion drives pipeline assembly, redirection application,
// command dispatch through the alias/builtin/function/external
// hierarchy, and shell state (environment, jobs, traps, control-flow
// signals).
package interp

import (
	"context"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/posixsh/posh/expand"
	"github.com/posixsh/posh/syntax"
)

// scriptCallType distinguishes a sourced script from a directly
// executed one, per spec.md §3's script call stack: it governs whether
// `return` is legal and how BASH_SOURCE/error prefixes read.
type scriptCallType int

const (
	callExecuted scriptCallType = iota
	callSourced
)

type scriptFrame struct {
	typ  scriptCallType
	name string
}

type funcFrame struct {
	name string
	def  *syntax.FuncDecl
}

// Function is a reference-counted, immutable handle to a definition;
// recursion re-executes the same body against a fresh call frame
// rather than mutating anything in place (spec.md §9).
type Function struct {
	Name string
	Decl *syntax.FuncDecl
}

// Option flags mirror bash's `set -o`/`shopt` surface that changes
// execution semantics (spec.md §4.9, §7).
type ShellOptions struct {
	ErrExit    bool // set -e
	NoUnset    bool // set -u
	PipeFail   bool // set -o pipefail
	Verbose    bool
	XTrace     bool
	NoClobber  bool // set -C
	NoGlob     bool // set -f
	Monitor    bool // set -m, job control
	NullGlob   bool // shopt -s nullglob
	FailGlob   bool // shopt -s failglob
	ExtGlob    bool // shopt -s extglob
	GlobStar   bool // shopt -s globstar
	LastPipe   bool // shopt -s lastpipe
	Posix      bool
	Interactive bool
}

// Shell is the single owned aggregate spec.md §4.8/§9 describes: every
// field below is "the global state" for this instance. Subshells are
// explicit deep clones (Clone), never shared references, so no locking
// is needed on any of it.
type Shell struct {
	scopes *scopeStack

	Aliases   map[string]string
	Functions map[string]*Function
	Opts      ShellOptions

	positional []string
	scriptName string

	lastStatus int
	pipeStatus []int
	lastBgPID  int
	pid        int

	cwd, oldpwd string
	dirStack    []string
	groups      []string

	funcStack   []funcFrame
	scriptStack []scriptFrame

	traps map[string]*syntax.Stmt // signal name -> handler body

	Jobs *JobManager

	started       time.Time
	secondsOffset int64
	rng           *rand.Rand
	curLine       int
	subshellDepth int

	Files *OpenFiles

	Stdin          io.Reader
	Stdout, Stderr io.Writer

	pathCache map[string]string

	ctx    context.Context
	cancel context.CancelFunc

	// interrupted is set between commands when an embedding layer
	// delivers Ctrl-C; it acts like Break of every loop level for
	// in-process loops (spec.md §5).
	interrupted bool

	Builtins map[string]Builtin

	exp *expand.Expander
}

// New creates a shell wired to the given stdio, cwd, and inherited
// environment (name=value pairs, as a child process would see them).
func New(stdin io.Reader, stdout, stderr io.Writer, envPairs []string) (*Shell, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}
	ctx, cancel := context.WithCancel(context.Background())
	sh := &Shell{
		scopes:    newScopeStack(),
		Aliases:   map[string]string{},
		Functions: map[string]*Function{},
		cwd:       cwd,
		traps:     map[string]*syntax.Stmt{},
		started:   time.Now(),
		rng:       newRand(),
		pid:       os.Getpid(),
		Files:     NewOpenFiles(stdin, stdout, stderr),
		Stdin:     stdin,
		Stdout:    stdout,
		Stderr:    stderr,
		pathCache: map[string]string{},
		ctx:       ctx,
		cancel:    cancel,
		Builtins:  defaultBuiltins(),
		Jobs:      NewJobManager(),
	}
	sh.installDynamicVars()
	for _, kv := range envPairs {
		name, val, ok := cut(kv, '=')
		if !ok {
			continue
		}
		sh.scopes.top().values[name] = expand.Variable{Set: true, Exported: true, Kind: expand.String, Str: val}
	}
	sh.exp = expand.NewExpander(sh)
	return sh, nil
}

func cut(s string, b byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// Expander returns the word expander bound to this shell's state.
func (sh *Shell) Expander() *expand.Expander { return sh.exp }

// Clone produces a deep, independent copy for subshells and command
// substitutions (spec.md §3, §5): mutations in the clone never
// propagate back, which is what lets the scheduler avoid locking.
func (sh *Shell) Clone() *Shell {
	clone := &Shell{
		scopes:        sh.scopes.cloneStack(),
		Aliases:       cloneMap(sh.Aliases),
		Functions:     sh.Functions, // immutable handles, safe to share
		Opts:          sh.Opts,
		positional:    append([]string(nil), sh.positional...),
		scriptName:    sh.scriptName,
		lastStatus:    sh.lastStatus,
		pipeStatus:    append([]int(nil), sh.pipeStatus...),
		cwd:           sh.cwd,
		oldpwd:        sh.oldpwd,
		dirStack:      append([]string(nil), sh.dirStack...),
		groups:        sh.groups,
		funcStack:     append([]funcFrame(nil), sh.funcStack...),
		scriptStack:   append([]scriptFrame(nil), sh.scriptStack...),
		traps:         sh.traps,
		Jobs:          NewJobManager(),
		started:       sh.started,
		secondsOffset: sh.secondsOffset,
		rng:           sh.rng,
		pid:           sh.pid,
		curLine:       sh.curLine,
		subshellDepth: sh.subshellDepth + 1,
		Files:         sh.Files.Clone(),
		Stdin:         sh.Stdin,
		Stdout:        sh.Stdout,
		Stderr:        sh.Stderr,
		pathCache:     sh.pathCache,
		ctx:           sh.ctx,
		cancel:        sh.cancel,
		Builtins:      sh.Builtins,
	}
	clone.Opts.Interactive = false
	clone.exp = expand.NewExpander(clone)
	return clone
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *scopeStack) cloneStack() *scopeStack {
	out := &scopeStack{dyn: s.dyn}
	for _, f := range s.frames {
		nf := &scope{kind: f.kind, values: make(map[string]expand.Variable, len(f.values))}
		for k, v := range f.values {
			nf.values[k] = v
		}
		out.frames = append(out.frames, nf)
	}
	return out
}

func (sh *Shell) Context() context.Context { return sh.ctx }

func (sh *Shell) Options() expand.Options {
	return expand.Options{
		NoUnset:  sh.Opts.NoUnset,
		NoGlob:   sh.Opts.NoGlob,
		NullGlob: sh.Opts.NullGlob,
		FailGlob: sh.Opts.FailGlob,
		GlobStar: sh.Opts.GlobStar,
		ExtGlob:  sh.Opts.ExtGlob,
	}
}
