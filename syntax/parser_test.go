package syntax

import (
	"testing"
)

func wordLit(t *testing.T, w *Word) string {
	t.Helper()
	s, ok := w.Lit()
	if !ok {
		t.Fatalf("word %#v is not a single literal", w)
	}
	return s
}

func firstSimple(t *testing.T, prog *Program) *SimpleCommand {
	t.Helper()
	if len(prog.Lines) == 0 {
		t.Fatal("no complete commands parsed")
	}
	stmt := prog.Lines[0].Stmts[0]
	sc, ok := stmt.Cmd.(*SimpleCommand)
	if !ok {
		t.Fatalf("first command is %T, not *SimpleCommand", stmt.Cmd)
	}
	return sc
}

func TestParseSimpleCommand(t *testing.T) {
	prog, err := Parse("test", "echo foo bar\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc := firstSimple(t, prog)
	if len(sc.Words) != 3 {
		t.Fatalf("got %d words, want 3", len(sc.Words))
	}
	got := []string{wordLit(t, sc.Words[0]), wordLit(t, sc.Words[1]), wordLit(t, sc.Words[2])}
	want := []string{"echo", "foo", "bar"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseAssignmentPrefix(t *testing.T) {
	prog, err := Parse("test", "FOO=bar echo $FOO\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc := firstSimple(t, prog)
	if len(sc.Prefix) != 1 || sc.Prefix[0].Assign == nil {
		t.Fatalf("expected one assignment prefix, got %#v", sc.Prefix)
	}
	if sc.Prefix[0].Assign.Name != "FOO" {
		t.Errorf("assignment name = %q, want FOO", sc.Prefix[0].Assign.Name)
	}
}

func TestParsePipeline(t *testing.T) {
	prog, err := Parse("test", "a | b | c\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	pl, ok := stmt.Cmd.(*Pipeline)
	if !ok {
		t.Fatalf("got %T, want *Pipeline", stmt.Cmd)
	}
	if len(pl.Commands) != 3 {
		t.Fatalf("got %d pipeline stages, want 3", len(pl.Commands))
	}
}

func TestParseAndOr(t *testing.T) {
	prog, err := Parse("test", "a && b || c\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	ao, ok := stmt.Cmd.(*AndOrList)
	if !ok {
		t.Fatalf("got %T, want *AndOrList", stmt.Cmd)
	}
	if len(ao.Pipelines) != 3 {
		t.Fatalf("got %d pipelines, want 3", len(ao.Pipelines))
	}
	if ao.Ops[0] != LogAnd || ao.Ops[1] != LogOr {
		t.Errorf("ops = %v, want [&&, ||]", ao.Ops)
	}
}

func TestParseIfClause(t *testing.T) {
	src := "if true; then echo yes; elif false; then echo maybe; else echo no; fi\n"
	prog, err := Parse("test", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	ifc, ok := stmt.Cmd.(*IfClause)
	if !ok {
		t.Fatalf("got %T, want *IfClause", stmt.Cmd)
	}
	if len(ifc.Elifs) != 1 {
		t.Fatalf("got %d elif arms, want 1", len(ifc.Elifs))
	}
	if len(ifc.Else) != 1 {
		t.Fatalf("got %d else statements, want 1", len(ifc.Else))
	}
}

func TestParseForWords(t *testing.T) {
	prog, err := Parse("test", "for x in a b c; do echo $x; done\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	fc, ok := stmt.Cmd.(*ForClause)
	if !ok {
		t.Fatalf("got %T, want *ForClause", stmt.Cmd)
	}
	wl, ok := fc.Iter.(*WordList)
	if !ok {
		t.Fatalf("got %T, want *WordList", fc.Iter)
	}
	if len(wl.Items) != 3 {
		t.Fatalf("got %d words, want 3", len(wl.Items))
	}
}

func TestParseCaseClause(t *testing.T) {
	src := "case $x in a) echo a ;; b|c) echo bc ;; *) echo other ;; esac\n"
	prog, err := Parse("test", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	cc, ok := stmt.Cmd.(*CaseClause)
	if !ok {
		t.Fatalf("got %T, want *CaseClause", stmt.Cmd)
	}
	if len(cc.Arms) != 3 {
		t.Fatalf("got %d case arms, want 3", len(cc.Arms))
	}
	if len(cc.Arms[1].Patterns) != 2 {
		t.Fatalf("second arm has %d patterns, want 2", len(cc.Arms[1].Patterns))
	}
}

func TestParseFuncDecl(t *testing.T) {
	prog, err := Parse("test", "myfunc() { echo hi; }\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	fd, ok := stmt.Cmd.(*FuncDecl)
	if !ok {
		t.Fatalf("got %T, want *FuncDecl", stmt.Cmd)
	}
	if fd.Name != "myfunc" {
		t.Errorf("func name = %q, want myfunc", fd.Name)
	}
}

func TestParseRedirect(t *testing.T) {
	prog, err := Parse("test", "cmd > out.txt 2>&1\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc := firstSimple(t, prog)
	if len(sc.Suffix) != 2 {
		t.Fatalf("got %d suffix parts, want 2", len(sc.Suffix))
	}
	for _, p := range sc.Suffix {
		if p.Redirect == nil {
			t.Errorf("suffix part %#v has no redirect", p)
		}
	}
}

func TestParseSubshell(t *testing.T) {
	prog, err := Parse("test", "( echo hi )\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Lines[0].Stmts[0]
	if _, ok := stmt.Cmd.(*Subshell); !ok {
		t.Fatalf("got %T, want *Subshell", stmt.Cmd)
	}
}

func TestParseErrorUnclosed(t *testing.T) {
	_, err := Parse("test", "if true; then echo hi\n")
	if err == nil {
		t.Fatal("expected a parse error for an unclosed if, got nil")
	}
}

func TestParseSingleQuoted(t *testing.T) {
	prog, err := Parse("test", "echo 'a b  c'\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc := firstSimple(t, prog)
	if len(sc.Words) != 2 {
		t.Fatalf("got %d words, want 2", len(sc.Words))
	}
	if len(sc.Words[1].Pieces) != 1 {
		t.Fatalf("expected a single piece, got %d", len(sc.Words[1].Pieces))
	}
	sq, ok := sc.Words[1].Pieces[0].(*SingleQuoted)
	if !ok {
		t.Fatalf("got %T, want *SingleQuoted", sc.Words[1].Pieces[0])
	}
	if sq.Value != "a b  c" {
		t.Errorf("single-quoted value = %q, want %q", sq.Value, "a b  c")
	}
}
