package interp

import (
	"io"
	"strings"

	"github.com/posixsh/posh/syntax"
)

// applyHereDoc installs an in-memory pipe carrying the here-doc body,
// basic-expanded unless the tag was quoted (spec.md §4.1, §4.5).
func (sh *Shell) applyHereDoc(files *OpenFiles, fd int, r *syntax.Redirect) error {
	body := ""
	if r.HdocBody != nil {
		if r.HdocLiteral {
			body, _ = r.HdocBody.Lit()
		} else {
			expanded, err := sh.Expander().String(r.HdocBody)
			if err != nil {
				return err
			}
			body = expanded
		}
	}
	files.Set(fd, &OpenFile{Reader: strings.NewReader(body)})
	return nil
}

// applyHereString installs the basic-expanded word plus a trailing
// newline, read-only (spec.md §4.5).
func (sh *Shell) applyHereString(files *OpenFiles, fd int, r *syntax.Redirect) error {
	s, err := sh.Expander().String(r.Target.Filename)
	if err != nil {
		return err
	}
	files.Set(fd, &OpenFile{Reader: strings.NewReader(s + "\n")})
	return nil
}

// applyProcSub spawns the substitution's body asynchronously against a
// clone of the shell with one end of a pipe wired to its stdin/stdout,
// installing the other end at fd (spec.md §4.5). The clone means the
// spawned side can never mutate this shell's state.
func (sh *Shell) applyProcSub(files *OpenFiles, fd int, r *syntax.Redirect, opened *[]io.Closer) error {
	ps := r.Target.ProcSubst
	pr, pw := io.Pipe()
	clone := sh.Clone()

	go func() {
		if ps.In {
			clone.Files.Set(1, &OpenFile{Writer: pw})
		} else {
			clone.Files.Set(0, &OpenFile{Reader: pr})
		}
		status, _ := clone.execStmts(ps.Body)
		_ = status
		pw.Close()
		pr.Close()
	}()

	if ps.In {
		files.Set(fd, &OpenFile{Reader: pr, Closer: pr})
		*opened = append(*opened, closerFunc(func() error { pw.Close(); return nil }))
	} else {
		files.Set(fd, &OpenFile{Writer: pw, Closer: pw})
		*opened = append(*opened, closerFunc(func() error { pr.Close(); return nil }))
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
