package interp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/posixsh/posh/internal/procutil"
	"github.com/posixsh/posh/syntax"
)

// specialBuiltins are the POSIX "special" builtins: assignments they
// perform persist in the calling shell/script scope even without
// `declare`, and a syntax error inside one is fatal to a non-interactive
// shell (spec.md §4.7, §6).
var specialBuiltins = map[string]bool{
	":": true, ".": true, "eval": true, "exec": true, "exit": true,
	"export": true, "readonly": true, "return": true, "set": true,
	"shift": true, "trap": true, "unset": true, "break": true,
	"continue": true,
}

// dispatch resolves argv[0] through the fixed order spec.md §4.7
// mandates: alias, special builtin, function, regular builtin,
// external. Command-scoped assignments (VAR=val cmd …) are visible to
// the resolved command only and never leak to the caller, except when
// the resolved command is itself a special builtin or has no words.
func (sh *Shell) dispatch(argv []string, assigns []*syntax.Assignment) ExecResult {
	argv = sh.expandAliases(argv, map[string]bool{})
	if len(argv) == 0 {
		return normal(0)
	}
	name := argv[0]

	if specialBuiltins[name] {
		if err := sh.applyAssigns(assigns, scopeGlobal); err != nil {
			fmt.Fprintln(sh.Stderr, "posh:", err)
			return normal(1)
		}
		return sh.callBuiltin(name, argv)
	}

	if fn, ok := sh.Functions[name]; ok {
		return sh.callFunctionScoped(fn, argv, assigns)
	}

	if b, ok := sh.Builtins[name]; ok {
		return sh.callBuiltinScoped(b, name, argv, assigns)
	}

	return sh.callExternalScoped(name, argv, assigns)
}

func (sh *Shell) callFunctionScoped(fn *Function, argv []string, assigns []*syntax.Assignment) ExecResult {
	sh.scopes.push(scopeLocal)
	defer sh.scopes.pop(scopeLocal)
	if err := sh.applyAssigns(assigns, scopeLocal); err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	return sh.callFunction(fn, argv)
}

func (sh *Shell) callBuiltinScoped(b Builtin, name string, argv []string, assigns []*syntax.Assignment) ExecResult {
	sh.scopes.push(scopeCommand)
	defer sh.scopes.pop(scopeCommand)
	if err := sh.applyAssigns(assigns, scopeCommand); err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	return sh.runBuiltin(b, argv)
}

func (sh *Shell) callBuiltin(name string, argv []string) ExecResult {
	b, ok := sh.Builtins[name]
	if !ok {
		fmt.Fprintf(sh.Stderr, "posh: %s: command not found\n", name)
		return normal(127)
	}
	return sh.runBuiltin(b, argv)
}

// runBuiltin runs b with sh.Stdout/sh.Stderr pointed at fds 1 and 2 of
// the current open-files table, so redirections and pipes apply to
// builtin output the same way they apply to external commands.
func (sh *Shell) runBuiltin(b Builtin, argv []string) ExecResult {
	savedOut, savedErr := sh.Stdout, sh.Stderr
	if w := sh.Files.Writer(1); w != nil {
		sh.Stdout = w
	}
	if w := sh.Files.Writer(2); w != nil {
		sh.Stderr = w
	}
	defer func() { sh.Stdout, sh.Stderr = savedOut, savedErr }()
	return b(sh, argv)
}

// callFunction runs decl's body with argv[1:] as the new positional
// parameters and FUNCNAME/BASH_SOURCE pushed, swallowing a bare Return
// at the function boundary (spec.md §4.9).
func (sh *Shell) callFunction(fn *Function, argv []string) ExecResult {
	savedPositional := sh.positional
	sh.positional = argv[1:]
	sh.funcStack = append(sh.funcStack, funcFrame{name: fn.Name})
	defer func() {
		sh.positional = savedPositional
		sh.funcStack = sh.funcStack[:len(sh.funcStack)-1]
	}()

	res := sh.execStmt(fn.Decl.Body)
	if res.isReturn() {
		return normal(res.Status)
	}
	return res
}

// callExternalScoped resolves name against PATH (cached) and execs it
// as a child process with the command-scoped assignments exported into
// its environment only (spec.md §4.7).
func (sh *Shell) callExternalScoped(name string, argv []string, assigns []*syntax.Assignment) ExecResult {
	path, err := sh.lookPath(name)
	if err != nil {
		if strings.Contains(name, "/") {
			fmt.Fprintf(sh.Stderr, "posh: %s: %v\n", name, err)
		} else {
			fmt.Fprintf(sh.Stderr, "posh: %s: command not found\n", name)
		}
		return normal(127)
	}

	env := sh.exportedList()
	for _, a := range assigns {
		v, err := sh.Expander().String(a.Value)
		if err != nil {
			fmt.Fprintln(sh.Stderr, "posh:", err)
			return normal(1)
		}
		env = append(env, a.Name+"="+v)
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = env
	cmd.Dir = sh.cwd
	cmd.Stdin = sh.Files.Reader(0)
	cmd.Stdout = sh.Files.Writer(1)
	cmd.Stderr = sh.Files.Writer(2)
	if cmd.Stdin == nil {
		cmd.Stdin = sh.Stdin
	}
	if sh.Opts.Monitor {
		procutil.PrepareGroup(cmd)
	}

	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return normal(ee.ExitCode())
		}
		fmt.Fprintf(sh.Stderr, "posh: %s: %v\n", name, err)
		return normal(126)
	}
	return normal(0)
}

// lookPath resolves name against $PATH, memoizing hits the way bash's
// hash table does (spec.md §6's `hash` builtin observes this cache).
func (sh *Shell) lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, checkExecutable(name)
	}
	if p, ok := sh.pathCache[name]; ok {
		if checkExecutable(p) == nil {
			return p, nil
		}
		delete(sh.pathCache, name)
	}
	pathVar := sh.Get("PATH").String()
	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			dir = "."
		}
		cand := filepath.Join(dir, name)
		if checkExecutable(cand) == nil {
			sh.pathCache[name] = cand
			return cand, nil
		}
	}
	return "", os.ErrNotExist
}

func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return os.ErrPermission
	}
	if fi.Mode().Perm()&0111 == 0 {
		return os.ErrPermission
	}
	return nil
}

// expandAliases substitutes argv[0] through the alias table and repeats
// on the first word of each replacement, stopping at a name already
// substituted in this chain (visited), which also ends cycles. Only the
// first word is ever substituted: alias text ending in a blank does not
// make the following word eligible (spec.md §4.7).
func (sh *Shell) expandAliases(argv []string, visited map[string]bool) []string {
	if len(argv) == 0 {
		return argv
	}
	name := argv[0]
	repl, ok := sh.Aliases[name]
	if !ok || visited[name] {
		return argv
	}
	visited[name] = true
	fields := strings.Fields(repl)
	out := append(fields, argv[1:]...)
	if strings.HasSuffix(repl, " ") || strings.HasSuffix(repl, "\t") {
		return sh.expandAliases(out, visited)
	}
	if len(fields) > 0 && fields[0] != name {
		return sh.expandAliases(out, visited)
	}
	return out
}
