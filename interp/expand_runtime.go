package interp

import (
	"bytes"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/posixsh/posh/syntax"
)

// RunCommandSubst implements expand.Runtime: it clones the shell (so
// mutations never leak back, per spec.md §4.4 and the testable
// property in §8.7), captures the clone's stdout, executes stmts to
// completion, and returns the trailing-newline-trimmed bytes. $? in
// the parent is updated to the subshell's final exit status, matching
// spec.md's fixed choice to strip all trailing newlines.
func (sh *Shell) RunCommandSubst(stmts []*syntax.Stmt) (string, error) {
	var buf bytes.Buffer
	clone := sh.Clone()
	clone.Files.Set(1, &OpenFile{Writer: &buf})
	clone.Stdout = &buf

	status, _ := clone.execStmts(stmts)
	sh.lastStatus = status
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Glob implements expand.Runtime's pathname-expansion hook. Plain
// patterns are matched with filepath.Glob relative to cwd; patterns
// containing `**` defer to doublestar so the globstar shell option
// gets real recursive-directory semantics (spec.md §4.4, DOMAIN STACK).
// A plain pattern that filepath.Glob rejects as malformed (such as an
// unclosed '[') matches nothing.
func (sh *Shell) Glob(pat string) ([]string, error) {
	full := pat
	if !filepath.IsAbs(pat) {
		full = filepath.Join(sh.cwd, pat)
	}
	if strings.Contains(pat, "**") {
		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			return nil, err
		}
		return relativizeAll(sh.cwd, matches), nil
	}
	matches, err := filepath.Glob(full)
	if err == filepath.ErrBadPattern {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return relativizeAll(sh.cwd, matches), nil
}

func relativizeAll(base string, matches []string) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		if rel, err := filepath.Rel(base, m); err == nil && !strings.HasPrefix(rel, "..") {
			out[i] = rel
		} else {
			out[i] = m
		}
	}
	return out
}

// HomeDir implements expand.Runtime's tilde-resolution hook, matching
// spec.md §6's platform-shim contract (get_current_user_home_dir,
// get_user_home_dir(name)).
func (sh *Shell) HomeDir(name string) (string, bool) {
	if name == "" {
		if h := sh.Get("HOME"); h.IsSet() {
			return h.String(), true
		}
		if u, err := user.Current(); err == nil {
			return u.HomeDir, true
		}
		if h := os.Getenv("HOME"); h != "" {
			return h, true
		}
		return "", false
	}
	if u, err := user.Lookup(name); err == nil {
		return u.HomeDir, true
	}
	return "", false
}
