package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/posixsh/posh/syntax"
)

// RedirectError is returned when opening/duplicating a target fails,
// or the filename expands to more than one field (an ambiguous
// redirect); spec.md §7 prescribes that this prevents the target
// command from executing.
type RedirectError struct {
	Target string
	Cause  error
}

func (e *RedirectError) Error() string { return fmt.Sprintf("%s: %v", e.Target, e.Cause) }
func (e *RedirectError) Unwrap() error { return e.Cause }

// OpenFile is one fd slot's backing resource: a real OS file, a pipe
// endpoint, the inherited stdio, an in-memory here-doc body, or a
// process-substitution artefact (spec.md §3).
type OpenFile struct {
	Reader io.Reader
	Writer io.Writer
	Closer io.Closer
}

// OpenFiles is the sparse fd -> OpenFile table each execution context
// owns independently (spec.md §3); dup produces an entry that shares
// the same backing resource, and redirections installed for a command
// are restored on scope exit regardless of outcome.
type OpenFiles struct {
	table map[int]*OpenFile
}

func NewOpenFiles(stdin io.Reader, stdout, stderr io.Writer) *OpenFiles {
	return &OpenFiles{table: map[int]*OpenFile{
		0: {Reader: stdin},
		1: {Writer: stdout},
		2: {Writer: stderr},
	}}
}

func (o *OpenFiles) Clone() *OpenFiles {
	out := &OpenFiles{table: make(map[int]*OpenFile, len(o.table))}
	for fd, f := range o.table {
		out.table[fd] = f
	}
	return out
}

func (o *OpenFiles) Get(fd int) *OpenFile     { return o.table[fd] }
func (o *OpenFiles) Set(fd int, f *OpenFile)  { o.table[fd] = f }
func (o *OpenFiles) Close(fd int) {
	if f, ok := o.table[fd]; ok && f.Closer != nil {
		f.Closer.Close()
	}
	delete(o.table, fd)
}

func (o *OpenFiles) Reader(fd int) io.Reader {
	if f := o.table[fd]; f != nil {
		return f.Reader
	}
	return nil
}

func (o *OpenFiles) Writer(fd int) io.Writer {
	if f := o.table[fd]; f != nil {
		return f.Writer
	}
	return nil
}

// applyRedirects mutates files in order per the table in spec.md §4.5.
// It returns a restore func that reinstalls the pre-call snapshot of
// every fd touched, satisfying the "scoped acquisition with guaranteed
// release" invariant (spec.md §5, §8 property 3) regardless of how the
// caller's command finishes.
func (sh *Shell) applyRedirects(files *OpenFiles, redirs []*syntax.Redirect) (restore func(), err error) {
	snapshot := map[int]*OpenFile{}
	remember := func(fd int) {
		if _, ok := snapshot[fd]; !ok {
			snapshot[fd] = files.Get(fd)
		}
	}
	var opened []io.Closer

	for _, r := range redirs {
		fd := defaultFD(r)
		remember(fd)
		if r.Kind == syntax.RedirOutErr {
			remember(2)
		}
		if err := sh.applyOneRedirect(files, r, fd, &opened); err != nil {
			for _, c := range opened {
				c.Close()
			}
			for fd, of := range snapshot {
				files.Set(fd, of)
			}
			return nil, err
		}
	}

	restore = func() {
		for fd, of := range snapshot {
			if cur := files.Get(fd); cur != nil && cur.Closer != nil {
				cur.Closer.Close()
			}
			files.Set(fd, of)
		}
	}
	return restore, nil
}

func defaultFD(r *syntax.Redirect) int {
	if r.Fd != nil {
		if n, err := strconv.Atoi(r.Fd.Value); err == nil {
			return n
		}
	}
	switch r.Kind {
	case syntax.RedirRead, syntax.RedirReadWrite, syntax.RedirDupIn, syntax.RedirHereDoc, syntax.RedirHereString:
		return 0
	default:
		return 1
	}
}

func (sh *Shell) applyOneRedirect(files *OpenFiles, r *syntax.Redirect, fd int, opened *[]io.Closer) error {
	if r.Target.ProcSubst != nil {
		return sh.applyProcSub(files, fd, r, opened)
	}
	switch r.Kind {
	case syntax.RedirRead:
		return sh.openFileRedirect(files, fd, r, os.O_RDONLY, 0, opened)
	case syntax.RedirWrite:
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if sh.Opts.NoClobber {
			flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
		}
		return sh.openFileRedirect(files, fd, r, flags, 0644, opened)
	case syntax.RedirClobber:
		return sh.openFileRedirect(files, fd, r, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644, opened)
	case syntax.RedirAppend:
		return sh.openFileRedirect(files, fd, r, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644, opened)
	case syntax.RedirReadWrite:
		return sh.openFileRedirect(files, fd, r, os.O_RDWR|os.O_CREATE, 0644, opened)
	case syntax.RedirDupIn, syntax.RedirDupOut:
		return sh.applyDup(files, fd, r)
	case syntax.RedirOutErr:
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if r.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		if err := sh.openFileRedirect(files, 1, r, flags, 0644, opened); err != nil {
			return err
		}
		files.Set(2, files.Get(1))
		return nil
	case syntax.RedirHereDoc:
		return sh.applyHereDoc(files, fd, r)
	case syntax.RedirHereString:
		return sh.applyHereString(files, fd, r)
	}
	return fmt.Errorf("interp: unhandled redirect kind %v", r.Kind)
}

func (sh *Shell) expandOneField(w *syntax.Word) (string, error) {
	fields, err := sh.Expander().Fields(w)
	if err != nil {
		return "", err
	}
	if len(fields) != 1 {
		return "", &RedirectError{Target: rawWordText(w), Cause: fmt.Errorf("ambiguous redirect")}
	}
	return fields[0], nil
}

func rawWordText(w *syntax.Word) string {
	if lit, ok := w.Lit(); ok {
		return lit
	}
	return "<word>"
}

func (sh *Shell) openFileRedirect(files *OpenFiles, fd int, r *syntax.Redirect, flags int, perm os.FileMode, opened *[]io.Closer) error {
	if r.Target.Filename == nil {
		return fmt.Errorf("interp: redirect missing filename")
	}
	path, err := sh.expandOneField(r.Target.Filename)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return &RedirectError{Target: path, Cause: err}
	}
	*opened = append(*opened, f)
	files.Set(fd, &OpenFile{Reader: f, Writer: f, Closer: f})
	return nil
}

func (sh *Shell) applyDup(files *OpenFiles, fd int, r *syntax.Redirect) error {
	if lit, ok := r.Target.FdWord.Lit(); ok && lit == "-" {
		files.Close(fd)
		return nil
	}
	if !r.Target.FdSet {
		return fmt.Errorf("interp: dup redirect missing source fd")
	}
	of := files.Get(r.Target.Fd)
	if of == nil {
		return &RedirectError{Target: strconv.Itoa(r.Target.Fd), Cause: fmt.Errorf("bad file descriptor")}
	}
	files.Set(fd, of)
	return nil
}
