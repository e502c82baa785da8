package expand

import (
	"reflect"
	"testing"
)

func TestBraceExpandAlternation(t *testing.T) {
	got := braceExpand("a{b,c,d}e")
	want := []string{"abe", "ace", "ade"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBraceExpandIntRange(t *testing.T) {
	got := braceExpand("{1..4}")
	want := []string{"1", "2", "3", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBraceExpandCharRange(t *testing.T) {
	got := braceExpand("{a..e}")
	want := []string{"a", "b", "c", "d", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBraceExpandNested(t *testing.T) {
	got := braceExpand("{a,b{1,2}}")
	want := []string{"a", "b1", "b2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBraceExpandNoMeta(t *testing.T) {
	got := braceExpand("plain")
	want := []string{"plain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBraceExpandUnmatched(t *testing.T) {
	got := braceExpand("a{b")
	want := []string{"a{b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
