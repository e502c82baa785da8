package syntax

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/posixsh/posh/token"
)

// TokenizeError is returned for unterminated quotes, substitutions,
// here-documents and extglobs; the parser also returns it for grammar
// errors. Error() prints it as "<byte offset>: message". Incomplete
// reports whether more input could resolve the error, which lets an
// interactive driver decide whether to reprompt for a continuation
// line instead of failing outright.
type TokenizeError struct {
	Pos        token.Pos
	Msg        string
	Incomplete bool
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("%d: %s", e.Pos, e.Msg)
}

// hdocState drives the four-state here-document tracker described in
// §4.1: from None, a `<<`/`<<-` operator arms the tag reader, the next
// word becomes the tag, subsequent tokens queue until the first
// newline, and then raw lines are consumed until one equals the tag.
type hdocState int

const (
	hdocNone hdocState = iota
	hdocWantTag
	hdocAfterTag
	hdocReading
)

type pendingHdoc struct {
	removeTabs bool
	literal    bool
	tag        string
	body       strings.Builder
}

// Token is the tokenizer's output unit: a discriminated Word or
// Operator carrying its source span.
type Token struct {
	Kind  token.Kind
	Op    token.Op
	Word  *Word // set when Kind == token.Word
	Start token.Pos
	End   token.Pos
}

// Lexer is the streaming tokenizer. It holds one character of
// lookahead and the context needed to disambiguate operators, quoting,
// here-documents, extended globs, and the arithmetic-context flag that
// turns `<<` back into left-shift.
type Lexer struct {
	src string
	off int
	r   rune
	rl  int

	extGlob bool
	posix   bool

	arithDepth int // >0 suppresses heredoc parsing of << / <<- / <<<

	hdoc       hdocState
	hdocRemove bool
	hdocs      []*pendingHdoc
	queued     []Token
}

// NewLexer creates a Lexer over src. extGlob and posix mirror the
// shopt-level settings that change tokenization (extglob patterns,
// and POSIX-mode operator/keyword restrictions).
func NewLexer(src string, extGlob, posix bool) *Lexer {
	l := &Lexer{src: src, extGlob: extGlob, posix: posix}
	l.advance()
	return l
}

func (l *Lexer) advance() rune {
	prev := l.r
	l.off += l.rl
	if l.off >= len(l.src) {
		l.r, l.rl = -1, 0
		return prev
	}
	r, size := utf8.DecodeRuneInString(l.src[l.off:])
	l.r, l.rl = r, size
	return prev
}

func (l *Lexer) pos() token.Pos { return token.Pos(l.off) }

func (l *Lexer) peekByte(ahead int) byte {
	i := l.off + ahead
	if i < 0 || i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

// Next produces the next token, or a Token with Kind == token.EOF once
// the input (and any pending here-documents) is exhausted.
func (l *Lexer) Next() (Token, error) {
	if l.hdoc == hdocReading {
		return l.readHereDocLine()
	}
	if len(l.queued) > 0 {
		t := l.queued[0]
		l.queued = l.queued[1:]
		return t, nil
	}

	l.skipBlanksAndComments()

	if l.r < 0 {
		if len(l.hdocs) > 0 || l.hdoc != hdocNone {
			return Token{}, &TokenizeError{Pos: l.pos(), Msg: "unterminated here-document(s)", Incomplete: true}
		}
		return Token{Kind: token.EOF, Start: l.pos(), End: l.pos()}, nil
	}

	start := l.pos()

	if op, ok := l.tryOperator(); ok {
		tok := Token{Kind: token.Operator, Op: op, Start: start, End: l.pos()}
		if (op == token.ShiftL || op == token.DashHdoc) && l.arithDepth == 0 {
			l.hdoc = hdocWantTag
			l.hdocRemove = op == token.DashHdoc
		}
		if op == token.Newline && len(l.hdocs) > 0 {
			l.hdoc = hdocReading
		}
		return tok, nil
	}

	w, err := l.readWord()
	if err != nil {
		return Token{}, err
	}
	tok := Token{Kind: token.Word, Word: w, Start: start, End: l.pos()}

	if l.hdoc == hdocWantTag {
		tag, literal := hereTagText(w)
		l.hdocs = append(l.hdocs, &pendingHdoc{removeTabs: l.hdocRemove, literal: literal, tag: tag})
		l.hdoc = hdocAfterTag
	}
	return tok, nil
}

// hereTagText extracts a here-doc tag's literal text and whether the
// tag was quoted (which marks the body as literal, unexpanded text).
func hereTagText(w *Word) (tag string, literal bool) {
	var sb strings.Builder
	for _, p := range w.Pieces {
		switch v := p.(type) {
		case *Lit:
			sb.WriteString(v.Value)
		case *SingleQuoted:
			literal = true
			sb.WriteString(v.Value)
		case *DoubleQuoted:
			literal = true
			for _, in := range v.Parts {
				if l, ok := in.(*Lit); ok {
					sb.WriteString(l.Value)
				}
			}
		}
	}
	return sb.String(), literal
}

func (l *Lexer) skipBlanksAndComments() {
	for {
		for l.r == ' ' || l.r == '\t' {
			l.advance()
		}
		if l.r == '\\' && l.peekByte(1) == '\n' {
			l.advance()
			l.advance()
			continue
		}
		if l.r == '#' {
			for l.r >= 0 && l.r != '\n' {
				l.advance()
			}
			continue
		}
		return
	}
}

// armQueuedHeredocs is retained for symmetry with the state diagram in
// §4.1; tag-arming happens inline in Next, so this currently has
// nothing left to do once a newline is seen but is where a driver
// hooks in if it needs to observe "heredocs now pending" transitions.
func (l *Lexer) armQueuedHeredocs() error { return nil }

// readHereDocLine accumulates one physical line of here-document body
// into the oldest pending tag; once a line equals the tag, that body is
// finalised into a Word token and the state advances to the next
// pending tag, or back to None.
func (l *Lexer) readHereDocLine() (Token, error) {
	doc := l.hdocs[0]
	start := l.pos()
	for {
		lineStart := l.off
		for l.r >= 0 && l.r != '\n' {
			l.advance()
		}
		line := l.src[lineStart:l.off]
		if l.r == '\n' {
			l.advance()
		}
		trimmed := line
		if doc.removeTabs {
			trimmed = strings.TrimLeft(line, "\t")
		}
		if trimmed == doc.tag {
			break
		}
		doc.body.WriteString(trimmed)
		doc.body.WriteByte('\n')
		if l.r < 0 {
			return Token{}, &TokenizeError{Pos: start, Msg: "unterminated here-document " + doc.tag, Incomplete: true}
		}
	}
	l.hdocs = l.hdocs[1:]
	if len(l.hdocs) == 0 {
		l.hdoc = hdocNone
	}
	body := doc.body.String()
	var w *Word
	if doc.literal {
		w = &Word{Pieces: []WordPiece{&Lit{ValuePos: start, Value: body}}}
	} else {
		pieces, err := parsePiecesFrom(body, start, false)
		if err != nil {
			return Token{}, err
		}
		w = &Word{Pieces: pieces}
	}
	return Token{Kind: token.Word, Word: w, Start: start, End: l.pos()}, nil
}

// operator table: longest-prefix match over the fixed punctuation
// alphabet. Order matters only for readability; matching always tries
// the longest candidate first.
func (l *Lexer) tryOperator() (token.Op, bool) {
	// Operators are ASCII-only, so byte lookahead is enough.
	b0 := byte(0)
	if l.r >= 0 && l.r < 128 {
		b0 = byte(l.r)
	}
	b1 := l.peekByte(1)
	b2 := l.peekByte(2)

	match := func(_ string, op token.Op, n int) (token.Op, bool) {
		for i := 0; i < n; i++ {
			l.advance()
		}
		return op, true
	}

	switch b0 {
	case '\n':
		return match("", token.Newline, 1)
	case ';':
		if b1 == ';' && b2 == '&' {
			return match("", token.DblSemiAmp, 3)
		}
		if b1 == ';' {
			return match("", token.DblSemi, 2)
		}
		if b1 == '&' {
			return match("", token.SemiAmp, 2)
		}
		return match("", token.Semicolon, 1)
	case '&':
		if b1 == '&' {
			return match("", token.AndIf, 2)
		}
		if b1 == '>' && b2 == '>' {
			return match("", token.AndDGreat, 3)
		}
		if b1 == '>' {
			return match("", token.AndGreat, 2)
		}
		return match("", token.Amp, 1)
	case '|':
		if b1 == '|' {
			return match("", token.OrIf, 2)
		}
		if b1 == '&' {
			return match("", token.PipeAmp, 2)
		}
		return match("", token.Pipe, 1)
	case '(':
		return match("", token.Lparen, 1)
	case ')':
		return match("", token.Rparen, 1)
	case '<':
		if b1 == '<' && b2 == '-' {
			return match("", token.DashHdoc, 3)
		}
		if b1 == '<' && b2 == '<' {
			return match("", token.HdocStr, 3)
		}
		if b1 == '<' {
			return match("", token.ShiftL, 2)
		}
		if b1 == '&' {
			return match("", token.DplLess, 2)
		}
		if b1 == '>' {
			return match("", token.ReadWrite, 2)
		}
		if b1 == '(' {
			return match("", token.ProcIn, 2)
		}
		return match("", token.Less, 1)
	case '>':
		if b1 == '>' {
			return match("", token.ShiftR, 2)
		}
		if b1 == '&' {
			return match("", token.DplGreat, 2)
		}
		if b1 == '|' {
			return match("", token.Clobber, 2)
		}
		if b1 == '(' {
			return match("", token.ProcOut, 2)
		}
		return match("", token.Great, 1)
	}
	return 0, false
}
