package expand

import "testing"

func TestPatternMatchLiteral(t *testing.T) {
	p := Pattern{Pieces: []PatternPiece{{Literal: true, Text: "abc"}}}
	ok, err := p.Match("abc")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ok {
		t.Error("expected literal pattern to match identical text")
	}
	ok, err = p.Match("abcd")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if ok {
		t.Error("expected literal pattern not to match a longer string")
	}
}

func TestPatternMatchGlob(t *testing.T) {
	p := Pattern{Pieces: []PatternPiece{{Literal: false, Text: "a*c"}}}
	for _, tc := range []struct {
		name string
		want bool
	}{
		{"abc", true},
		{"ac", true},
		{"abcd", false},
		{"xbc", false},
	} {
		ok, err := p.Match(tc.name)
		if err != nil {
			t.Fatalf("Match(%q): %v", tc.name, err)
		}
		if ok != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.name, ok, tc.want)
		}
	}
}

func TestPatternMatchGlobstar(t *testing.T) {
	p := Pattern{Pieces: []PatternPiece{{Literal: false, Text: "a/**/c"}}}
	ok, err := p.Match("a/b/x/c")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ok {
		t.Error("expected a/**/c to match a/b/x/c via doublestar")
	}
}

func TestPatternHasMeta(t *testing.T) {
	lit := Pattern{Pieces: []PatternPiece{{Literal: true, Text: "a*b"}}}
	if lit.HasMeta() {
		t.Error("a quoted literal piece should never report HasMeta")
	}
	glob := Pattern{Pieces: []PatternPiece{{Literal: false, Text: "a*b"}}}
	if !glob.HasMeta() {
		t.Error("an unquoted '*' should report HasMeta")
	}
}
