package token

import "testing"

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{Semicolon, ";"},
		{AndIf, "&&"},
		{OrIf, "||"},
		{Pipe, "|"},
		{DblSemi, ";;"},
		{ShiftL, "<<"},
		{DashHdoc, "<<-"},
		{ProcIn, "<("},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.want {
			t.Errorf("Op(%d).String() = %q, want %q", tc.op, got, tc.want)
		}
	}
}

func TestOpStringUnknown(t *testing.T) {
	var op Op = 999
	if got, want := op.String(), "Op(999)"; got != want {
		t.Errorf("unknown op String() = %q, want %q", got, want)
	}
}

func TestIsRedirect(t *testing.T) {
	redirects := []Op{Less, Great, Clobber, DplLess, DplGreat, ShiftL, ShiftR,
		DashHdoc, HdocStr, ReadWrite, AndGreat, AndDGreat, ProcIn, ProcOut}
	for _, op := range redirects {
		if !op.IsRedirect() {
			t.Errorf("%v.IsRedirect() = false, want true", op)
		}
	}
	nonRedirects := []Op{Semicolon, AndIf, OrIf, Pipe, Amp, Lparen, Rparen}
	for _, op := range nonRedirects {
		if op.IsRedirect() {
			t.Errorf("%v.IsRedirect() = true, want false", op)
		}
	}
}

func TestCaseEnd(t *testing.T) {
	for _, op := range []Op{DblSemi, SemiAmp, DblSemiAmp} {
		if !op.CaseEnd() {
			t.Errorf("%v.CaseEnd() = false, want true", op)
		}
	}
	for _, op := range []Op{Semicolon, Pipe, AndIf} {
		if op.CaseEnd() {
			t.Errorf("%v.CaseEnd() = true, want false", op)
		}
	}
}

func TestPositionValid(t *testing.T) {
	var zero Position
	if zero.Valid() {
		t.Error("zero Position.Valid() = true, want false")
	}
	p := Position{Offset: 5, Line: 2, Column: 3}
	if !p.Valid() {
		t.Error("Position.Valid() = false, want true")
	}
	if got, want := p.String(), "2:3"; got != want {
		t.Errorf("Position.String() = %q, want %q", got, want)
	}
	if got, want := zero.String(), "<unknown>"; got != want {
		t.Errorf("zero Position.String() = %q, want %q", got, want)
	}
}
