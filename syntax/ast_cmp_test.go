package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/posixsh/posh/token"
)

// ignorePos treats every token.Pos as equal, so structural comparisons
// below only care about shape, not where in the source each node
// started.
var ignorePos = cmp.Comparer(func(a, b token.Pos) bool { return true })

func TestParseStructuralEquivalence(t *testing.T) {
	// Different whitespace and line breaks around otherwise identical
	// content must parse to the same shape, modulo source positions.
	a, err := Parse("a", "echo foo bar\n")
	if err != nil {
		t.Fatalf("Parse(a): %v", err)
	}
	b, err := Parse("b", "echo   foo   bar\n")
	if err != nil {
		t.Fatalf("Parse(b): %v", err)
	}

	opts := cmp.Options{
		ignorePos,
		cmpopts.IgnoreFields(Program{}, "Name"),
		cmpopts.IgnoreUnexported(Program{}),
	}
	if diff := cmp.Diff(a, b, opts); diff != "" {
		t.Errorf("structurally equivalent sources parsed differently (-a +b):\n%s", diff)
	}
}

func TestParseStructuralDifference(t *testing.T) {
	a, err := Parse("a", "echo foo\n")
	if err != nil {
		t.Fatalf("Parse(a): %v", err)
	}
	b, err := Parse("b", "echo bar\n")
	if err != nil {
		t.Fatalf("Parse(b): %v", err)
	}

	opts := cmp.Options{
		ignorePos,
		cmpopts.IgnoreFields(Program{}, "Name"),
		cmpopts.IgnoreUnexported(Program{}),
	}
	if diff := cmp.Diff(a, b, opts); diff == "" {
		t.Error("expected echo foo and echo bar to differ structurally, got no diff")
	}
}

func TestParsePipelineStructure(t *testing.T) {
	prog, err := Parse("test", "a | b\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Pipeline{
		Commands: []*Stmt{
			{Cmd: &SimpleCommand{Words: []*Word{{Pieces: []WordPiece{&Lit{Value: "a"}}}}}},
			{Cmd: &SimpleCommand{Words: []*Word{{Pieces: []WordPiece{&Lit{Value: "b"}}}}}},
		},
		PipeAll: []bool{false},
	}
	got := prog.Lines[0].Stmts[0].Cmd.(*Pipeline)

	opts := cmp.Options{ignorePos}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("pipeline structure mismatch (-want +got):\n%s", diff)
	}
}
