package expand

import "testing"

func TestCaseTransformUpperAll(t *testing.T) {
	got := CaseTransform("hello", true, false, nil)
	if got != "HELLO" {
		t.Errorf("got %q, want %q", got, "HELLO")
	}
}

func TestCaseTransformLowerAll(t *testing.T) {
	got := CaseTransform("HELLO", false, false, nil)
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestCaseTransformFirstOnly(t *testing.T) {
	got := CaseTransform("hello world", true, true, nil)
	if got != "Hello world" {
		t.Errorf("got %q, want %q", got, "Hello world")
	}
}

func TestCaseTransformUnicode(t *testing.T) {
	got := CaseTransform("straße", true, false, nil)
	if got == "straße" {
		t.Error("expected Unicode-aware uppercasing to change straße")
	}
}

func TestCaseTransformEmpty(t *testing.T) {
	if got := CaseTransform("", true, false, nil); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}
