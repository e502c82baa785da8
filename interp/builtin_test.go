package interp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/posixsh/posh/syntax"
)

func runWithStdin(t *testing.T, stdin, src string) (status int, stdout string) {
	t.Helper()
	var out, errOut bytes.Buffer
	sh, err := New(strings.NewReader(stdin), &out, &errOut, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := syntax.Parse("test", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	status, err = sh.Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return status, out.String()
}

func TestBuiltinEchoEscapes(t *testing.T) {
	_, out := runWithStdin(t, "", `echo -e "a\tb\nc"`+"\n")
	if out != "a\tb\nc\n" {
		t.Errorf("got %q, want %q", out, "a\tb\nc\n")
	}
}

func TestBuiltinEchoNoNewline(t *testing.T) {
	_, out := runWithStdin(t, "", "echo -n hi\n")
	if out != "hi" {
		t.Errorf("got %q, want %q", out, "hi")
	}
}

func TestBuiltinPrintfBasic(t *testing.T) {
	_, out := runWithStdin(t, "", `printf "%s-%d\n" foo 42`+"\n")
	if out != "foo-42\n" {
		t.Errorf("got %q, want %q", out, "foo-42\n")
	}
}

func TestBuiltinPrintfRecycle(t *testing.T) {
	_, out := runWithStdin(t, "", `printf "%s\n" a b c`+"\n")
	if out != "a\nb\nc\n" {
		t.Errorf("got %q, want %q", out, "a\nb\nc\n")
	}
}

func TestBuiltinRead(t *testing.T) {
	_, out := runWithStdin(t, "hello world\n", "read a b; echo $a-$b\n")
	if out != "hello-world\n" {
		t.Errorf("got %q, want %q", out, "hello-world\n")
	}
}

func TestBuiltinReadTrailingFieldsJoin(t *testing.T) {
	_, out := runWithStdin(t, "one two three four\n", "read a b rest; echo [$a][$b][$rest]\n")
	if out != "[one][two][three four]\n" {
		t.Errorf("got %q, want %q", out, "[one][two][three four]\n")
	}
}

func TestBuiltinDeclareArray(t *testing.T) {
	_, out := runWithStdin(t, "", "declare -a arr; arr=(x y z); echo ${arr[1]}\n")
	if out != "y\n" {
		t.Errorf("got %q, want %q", out, "y\n")
	}
}

func TestBuiltinUnset(t *testing.T) {
	_, out := runWithStdin(t, "", "x=foo; unset x; echo [$x]\n")
	if out != "[]\n" {
		t.Errorf("got %q, want %q", out, "[]\n")
	}
}

func TestBuiltinShift(t *testing.T) {
	_, out := runWithStdin(t, "", "set -- a b c; shift; echo $1 $2\n")
	if out != "b c\n" {
		t.Errorf("got %q, want %q", out, "b c\n")
	}
}

func TestBuiltinTestStringEquality(t *testing.T) {
	status, _ := runWithStdin(t, "", `[ "abc" = "abc" ]`+"\n")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	status, _ = runWithStdin(t, "", `[ "abc" = "xyz" ]`+"\n")
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
}

func TestBuiltinAliasExpansion(t *testing.T) {
	_, out := runWithStdin(t, "", "alias greet='echo hi'; greet\n")
	if out != "hi\n" {
		t.Errorf("got %q, want %q", out, "hi\n")
	}
}
