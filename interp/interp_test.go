package interp

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/posixsh/posh/syntax"
)

// run parses and executes src against a fresh shell, returning its
// exit status, stdout and stderr, the way cmd/goshell drives sh.Run.
func run(t *testing.T, src string) (status int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	sh, err := New(strings.NewReader(""), &out, &errOut, []string{"PATH=/usr/bin:/bin"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := syntax.Parse("test", src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	status, runErr := sh.Run(prog)
	if runErr != nil {
		t.Fatalf("Run(%q): %v", src, runErr)
	}
	return status, out.String(), errOut.String()
}

func TestRunEcho(t *testing.T) {
	status, out, _ := run(t, "echo hello world\n")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if out != "hello world\n" {
		t.Errorf("stdout = %q, want %q", out, "hello world\n")
	}
}

func TestRunVariableAssignmentAndExpansion(t *testing.T) {
	_, out, _ := run(t, "x=foo; echo $x\n")
	if out != "foo\n" {
		t.Errorf("stdout = %q, want %q", out, "foo\n")
	}
}

func TestRunExitStatus(t *testing.T) {
	status, _, _ := run(t, "false\n")
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
	status, _, _ = run(t, "true\n")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestRunAndOrShortCircuit(t *testing.T) {
	_, out, _ := run(t, "false && echo no; true || echo no; echo done\n")
	if out != "done\n" {
		t.Errorf("stdout = %q, want %q", out, "done\n")
	}
}

func TestRunIfElse(t *testing.T) {
	_, out, _ := run(t, "if true; then echo yes; else echo no; fi\n")
	if out != "yes\n" {
		t.Errorf("stdout = %q, want %q", out, "yes\n")
	}
	_, out, _ = run(t, "if false; then echo yes; else echo no; fi\n")
	if out != "no\n" {
		t.Errorf("stdout = %q, want %q", out, "no\n")
	}
}

func TestRunForLoop(t *testing.T) {
	_, out, _ := run(t, "for x in a b c; do echo $x; done\n")
	if out != "a\nb\nc\n" {
		t.Errorf("stdout = %q, want %q", out, "a\nb\nc\n")
	}
}

func TestRunWhileLoop(t *testing.T) {
	_, out, _ := run(t, "i=0; while [ $i -lt 3 ]; do echo $i; i=$((i+1)); done\n")
	if out != "0\n1\n2\n" {
		t.Errorf("stdout = %q, want %q", out, "0\n1\n2\n")
	}
}

func TestRunBreakContinue(t *testing.T) {
	_, out, _ := run(t, "for x in 1 2 3 4 5; do if [ $x = 3 ]; then continue; fi; if [ $x = 5 ]; then break; fi; echo $x; done\n")
	if out != "1\n2\n4\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n4\n")
	}
}

func TestRunWhileContinue(t *testing.T) {
	_, out, _ := run(t, "i=0; while [ $i -lt 5 ]; do i=$((i+1)); if [ $i = 3 ]; then continue; fi; echo $i; done\n")
	if out != "1\n2\n4\n5\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n4\n5\n")
	}
}

func TestRunUntilContinue(t *testing.T) {
	_, out, _ := run(t, "i=0; until [ $i -ge 5 ]; do i=$((i+1)); if [ $i = 3 ]; then continue; fi; echo $i; done\n")
	if out != "1\n2\n4\n5\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n4\n5\n")
	}
}

func TestRunWhileBreak(t *testing.T) {
	_, out, _ := run(t, "i=0; while [ $i -lt 5 ]; do i=$((i+1)); if [ $i = 3 ]; then break; fi; echo $i; done\n")
	if out != "1\n2\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n")
	}
}

func TestRunFunctionCall(t *testing.T) {
	_, out, _ := run(t, "greet() { echo \"hi $1\"; }; greet world\n")
	if out != "hi world\n" {
		t.Errorf("stdout = %q, want %q", out, "hi world\n")
	}
}

func TestRunFunctionReturn(t *testing.T) {
	status, out, _ := run(t, "f() { return 3; }; f; echo $?\n")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if out != "3\n" {
		t.Errorf("stdout = %q, want %q", out, "3\n")
	}
}

func TestRunLocalScoping(t *testing.T) {
	_, out, _ := run(t, "x=outer; f() { local x=inner; echo $x; }; f; echo $x\n")
	if out != "inner\nouter\n" {
		t.Errorf("stdout = %q, want %q", out, "inner\nouter\n")
	}
}

func TestRunPipeline(t *testing.T) {
	_, out, _ := run(t, "printf 'b\\na\\nc\\n' | sort\n")
	// sort is an external command; skip structural assertion if it's
	// unavailable in the test environment.
	if _, err := os.Stat("/usr/bin/sort"); err != nil {
		if _, err := os.Stat("/bin/sort"); err != nil {
			return
		}
	}
	if out != "a\nb\nc\n" {
		t.Errorf("stdout = %q, want %q", out, "a\nb\nc\n")
	}
}

func TestRunCaseClause(t *testing.T) {
	_, out, _ := run(t, "x=b; case $x in a) echo A ;; b) echo B ;; *) echo other ;; esac\n")
	if out != "B\n" {
		t.Errorf("stdout = %q, want %q", out, "B\n")
	}
}

func TestRunArithCmd(t *testing.T) {
	_, out, _ := run(t, "x=5; (( x = x * 2 )); echo $x\n")
	if out != "10\n" {
		t.Errorf("stdout = %q, want %q", out, "10\n")
	}
}

func TestRunSubshellIsolation(t *testing.T) {
	_, out, _ := run(t, "x=outer; ( x=inner; echo $x ); echo $x\n")
	if out != "inner\nouter\n" {
		t.Errorf("stdout = %q, want %q", out, "inner\nouter\n")
	}
}

func TestRunCommandSubstitution(t *testing.T) {
	_, out, _ := run(t, "x=$(echo hi); echo $x\n")
	if out != "hi\n" {
		t.Errorf("stdout = %q, want %q", out, "hi\n")
	}
}

func TestRunExport(t *testing.T) {
	var out, errOut bytes.Buffer
	sh, err := New(strings.NewReader(""), &out, &errOut, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := syntax.Parse("test", "export FOO=bar\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := sh.Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v := sh.Get("FOO")
	if !v.Exported || v.Str != "bar" {
		t.Errorf("FOO = %+v, want Exported Str=bar", v)
	}
}

func TestRunRedirectToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	_, _, _ = run(t, "echo content > "+path+"\n")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "content\n" {
		t.Errorf("file content = %q, want %q", data, "content\n")
	}
}

func TestRunHereDoc(t *testing.T) {
	_, out, _ := run(t, "cat <<EOF\nline one\nline two\nEOF\n")
	if out != "line one\nline two\n" {
		t.Errorf("stdout = %q, want %q", out, "line one\nline two\n")
	}
}

func TestRunHereString(t *testing.T) {
	_, out, _ := run(t, "cat <<< hello\n")
	if out != "hello\n" {
		t.Errorf("stdout = %q, want %q", out, "hello\n")
	}
}

func TestRunGlobExpansion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(cwd)

	_, out, _ := run(t, "cd "+dir+"; for f in *.txt; do echo $f; done\n")
	if out != "a.txt\nb.txt\n" {
		t.Errorf("stdout = %q, want %q", out, "a.txt\nb.txt\n")
	}
}

func TestRunErrExit(t *testing.T) {
	var out, errOut bytes.Buffer
	sh, err := New(strings.NewReader(""), &out, &errOut, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sh.Opts.ErrExit = true
	prog, err := syntax.Parse("test", "false\necho unreachable\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	status, err := sh.Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
	if out.String() != "" {
		t.Errorf("stdout = %q, want empty (errexit should stop before echo)", out.String())
	}
}
