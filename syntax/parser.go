package syntax

import (
	"strconv"

	"github.com/posixsh/posh/token"
)

// Parser turns a Lexer's token stream into the AST defined in nodes.go.
// It keeps one token of "current" state plus a small lookahead buffer,
// used to distinguish `name() …` function definitions from a simple
// command, and to look past the current token for fd-number
// redirects, `((` arithmetic commands, C-style `for ((` loops and
// coproc names.
type Parser struct {
	lex  *Lexer
	cur  Token
	buf  []Token
	name string

	pendingHdocs []*Redirect
}

// Parse parses a named input into a Program. The name is carried only
// for diagnostics; it never affects parsing.
func Parse(name, src string) (*Program, error) {
	p := &Parser{lex: NewLexer(src, true, false), name: name}
	if err := p.rawAdvance(); err != nil {
		return nil, err
	}
	stmts, seps, err := p.parseStmtList(func() bool { return p.atEOF() })
	if err != nil {
		return nil, err
	}
	prog := &Program{Name: name}
	if len(stmts) > 0 {
		prog.Lines = []*CompleteCommand{{Stmts: stmts, Seps: seps}}
	}
	prog.SetLineOffsets(computeLineOffsets(src))
	return prog, nil
}

func computeLineOffsets(src string) []int {
	offsets := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// parseNestedProgram parses the body of a `$(...)`/backquote substitution,
// recursively invoking the same grammar on the extracted substring. base
// anchors the resulting nodes in the outer source's coordinate space.
func parseNestedProgram(src string, base token.Pos) ([]*Stmt, error) {
	p := &Parser{lex: NewLexer(src, true, false)}
	if err := p.rawAdvance(); err != nil {
		return nil, err
	}
	stmts, _, err := p.parseStmtList(func() bool { return p.atEOF() })
	if err != nil {
		return nil, err
	}
	shiftStmts(stmts, base)
	return stmts, nil
}

func (p *Parser) rawAdvance() error {
	if len(p.buf) > 0 {
		p.cur = p.buf[0]
		p.buf = p.buf[1:]
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

// advance fetches the next token, transparently draining any here-document
// bodies that become due because the token just consumed was a newline.
func (p *Parser) advance() error {
	wasNewline := p.cur.Kind == token.Operator && p.cur.Op == token.Newline
	if err := p.rawAdvance(); err != nil {
		return err
	}
	for wasNewline && len(p.pendingHdocs) > 0 {
		r := p.pendingHdocs[0]
		p.pendingHdocs = p.pendingHdocs[1:]
		if p.cur.Kind != token.Word {
			return &TokenizeError{Pos: p.cur.Start, Msg: "expected here-document body for " + r.HdocTag}
		}
		r.HdocBody = p.cur.Word
		if err := p.rawAdvance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) peek(n int) (Token, error) {
	for len(p.buf) < n {
		t, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.buf = append(p.buf, t)
	}
	return p.buf[n-1], nil
}

func (p *Parser) atEOF() bool { return p.cur.Kind == token.EOF }

func (p *Parser) isOp(o token.Op) bool {
	return p.cur.Kind == token.Operator && p.cur.Op == o
}

// litWord returns the current token's text when it is a single
// unquoted literal piece, which is the only shape the grammar ever
// recognises as a reserved word.
func (p *Parser) litWord() (string, bool) {
	if p.cur.Kind != token.Word {
		return "", false
	}
	return p.cur.Word.Lit()
}

func (p *Parser) isKeyword(words ...string) bool {
	lit, ok := p.litWord()
	if !ok {
		return false
	}
	for _, w := range words {
		if lit == w {
			return true
		}
	}
	return false
}

func (p *Parser) errf(msg string) error {
	return &TokenizeError{Pos: p.cur.Start, Msg: msg}
}

func (p *Parser) skipNewlines() error {
	for p.isOp(token.Newline) {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

// parseStmtList parses statements separated by `;`, `&`, and newlines
// until stop() reports true.
func (p *Parser) parseStmtList(stop func() bool) ([]*Stmt, []Separator, error) {
	var stmts []*Stmt
	var seps []Separator
	if err := p.skipNewlines(); err != nil {
		return nil, nil, err
	}
	for !stop() {
		if p.isOp(token.Semicolon) {
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			if err := p.skipNewlines(); err != nil {
				return nil, nil, err
			}
			continue
		}
		s, err := p.parseAndOr()
		if err != nil {
			return nil, nil, err
		}
		sep := SeqSep
		switch {
		case p.isOp(token.Amp):
			sep = AsyncSep
			s.Background = true
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
		case p.isOp(token.Semicolon):
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
		case p.isOp(token.Newline):
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
		}
		stmts = append(stmts, s)
		seps = append(seps, sep)
		if err := p.skipNewlines(); err != nil {
			return nil, nil, err
		}
		if stop() {
			break
		}
		if !p.canStartStmt() {
			break
		}
	}
	return stmts, seps, nil
}

// canStartStmt reports whether the current token could begin a new
// statement, used to detect "no separator present, the list is over".
func (p *Parser) canStartStmt() bool {
	if p.atEOF() {
		return false
	}
	if p.cur.Kind == token.Operator {
		return p.cur.Op == token.Lparen
	}
	return true
}

func (p *Parser) parseAndOr() (*Stmt, error) {
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	pipelines := []*Pipeline{asPipeline(first)}
	var ops []LogicalOp
	for p.isOp(token.AndIf) || p.isOp(token.OrIf) {
		lop := LogAnd
		if p.cur.Op == token.OrIf {
			lop = LogOr
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, asPipeline(next))
		ops = append(ops, lop)
	}
	if len(pipelines) == 1 {
		return first, nil
	}
	al := &AndOrList{Pipelines: pipelines, Ops: ops}
	return &Stmt{StmtPos: al.Pos(), StmtEnd: al.End(), Cmd: al}, nil
}

func asPipeline(s *Stmt) *Pipeline {
	if pl, ok := s.Cmd.(*Pipeline); ok {
		return pl
	}
	return &Pipeline{StartPos: s.Pos(), Commands: []*Stmt{s}}
}

func (p *Parser) parsePipeline() (*Stmt, error) {
	start := p.cur.Start
	timeFmt := NoTime
	if p.isKeyword("time") {
		timeFmt = TimeBash
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isKeyword("-p") {
			timeFmt = TimePosix
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	negate := false
	if p.isKeyword("!") {
		negate = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	first, err := p.parseCommandStmt()
	if err != nil {
		return nil, err
	}
	stmts := []*Stmt{first}
	var pipeAll []bool
	for p.isOp(token.Pipe) || p.isOp(token.PipeAmp) {
		all := p.cur.Op == token.PipeAmp
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		next, err := p.parseCommandStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, next)
		pipeAll = append(pipeAll, all)
	}
	if len(stmts) == 1 && !negate && timeFmt == NoTime {
		return first, nil
	}
	end := stmts[len(stmts)-1].End()
	pl := &Pipeline{StartPos: start, Time: timeFmt, Negate: negate, Commands: stmts, PipeAll: pipeAll}
	return &Stmt{StmtPos: start, StmtEnd: end, Cmd: pl}, nil
}

// parseCommandStmt parses one "command": a compound command (optionally
// followed by trailing redirections), a function definition, or a
// simple command.
func (p *Parser) parseCommandStmt() (*Stmt, error) {
	if isFuncDeclStart, err := p.looksLikeFuncDecl(); err != nil {
		return nil, err
	} else if isFuncDeclStart {
		return p.parseFuncDecl()
	}
	if p.isCompoundStart() {
		start := p.cur.Start
		cmd, err := p.parseCompoundCommand()
		if err != nil {
			return nil, err
		}
		redirs, err := p.parseRedirTail()
		if err != nil {
			return nil, err
		}
		end := cmd.End()
		if len(redirs) > 0 {
			end = redirs[len(redirs)-1].End()
		}
		return &Stmt{StmtPos: start, StmtEnd: end, Cmd: cmd, Redirs: redirs}, nil
	}
	return p.parseSimpleCommand()
}

func (p *Parser) looksLikeFuncDecl() (bool, error) {
	if p.isKeyword("function") {
		return true, nil
	}
	if p.cur.Kind != token.Word {
		return false, nil
	}
	name, ok := p.cur.Word.Lit()
	if !ok || !isValidFuncName(name) {
		return false, nil
	}
	t1, err := p.peek(1)
	if err != nil {
		return false, err
	}
	if t1.Kind != token.Operator || t1.Op != token.Lparen || t1.Start != p.cur.End {
		return false, nil
	}
	t2, err := p.peek(2)
	if err != nil {
		return false, err
	}
	return t2.Kind == token.Operator && t2.Op == token.Rparen, nil
}

func isValidFuncName(s string) bool {
	if s == "" || !(isNameStart(rune(s[0]))) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameCont(rune(s[i])) {
			return false
		}
	}
	return true
}

func (p *Parser) parseFuncDecl() (*Stmt, error) {
	start := p.cur.Start
	usedKeyword := false
	if p.isKeyword("function") {
		usedKeyword = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.Kind != token.Word {
		return nil, p.errf("expected function name")
	}
	name, _ := p.cur.Word.Lit()
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.isOp(token.Lparen) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.isOp(token.Rparen) {
			return nil, p.errf("expected ) in function definition")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	bodyCmd, err := p.parseCompoundCommand()
	if err != nil {
		return nil, err
	}
	body := &Stmt{StmtPos: bodyCmd.Pos(), StmtEnd: bodyCmd.End(), Cmd: bodyCmd}
	fd := &FuncDecl{Position: start, Keyword: usedKeyword, Name: name, Body: body}
	redirs, err := p.parseRedirTail()
	if err != nil {
		return nil, err
	}
	end := fd.End()
	if len(redirs) > 0 {
		end = redirs[len(redirs)-1].End()
	}
	return &Stmt{StmtPos: start, StmtEnd: end, Cmd: fd, Redirs: redirs}, nil
}

func (p *Parser) isCompoundStart() bool {
	if p.isKeyword("if", "while", "until", "for", "case", "coproc") {
		return true
	}
	if lit, ok := p.litWord(); ok && (lit == "{" || lit == "[[") {
		return true
	}
	if p.isOp(token.Lparen) {
		return true
	}
	return false
}

func (p *Parser) parseCompoundCommand() (Command, error) {
	switch {
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("until"):
		return p.parseUntil()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("case"):
		return p.parseCase()
	case p.isKeyword("coproc"):
		return p.parseCoproc()
	case p.isKeyword("{"):
		return p.parseBraceGroup()
	case p.isKeyword("[["):
		return p.parseTestClause()
	case p.isOp(token.Lparen):
		return p.parseSubshellOrArith()
	}
	return nil, p.errf("expected a compound command")
}

func (p *Parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return p.errf("expected '" + word + "'")
	}
	return p.advance()
}

func (p *Parser) parseBraceGroup() (*BraceGroup, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, _, err := p.parseStmtList(func() bool { return p.isKeyword("}") })
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("}") {
		return nil, p.errf("expected } to close brace group")
	}
	end := p.cur.End - 1
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &BraceGroup{Lbrace: start, Rbrace: end, Body: body}, nil
}

func (p *Parser) parseSubshellOrArith() (Command, error) {
	start := p.cur.Start
	t1, err := p.peek(1)
	if err != nil {
		return nil, err
	}
	if t1.Kind == token.Operator && t1.Op == token.Lparen && t1.Start == p.cur.End {
		return p.parseArithCmd(start)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, _, err := p.parseStmtList(func() bool { return p.isOp(token.Rparen) })
	if err != nil {
		return nil, err
	}
	if !p.isOp(token.Rparen) {
		return nil, p.errf("expected ) to close subshell")
	}
	end := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &Subshell{Lparen: start, Rparen: end, Body: body}, nil
}

func (p *Parser) parseArithCmd(start token.Pos) (*ArithCmd, error) {
	if err := p.advance(); err != nil { // first (
		return nil, err
	}
	if err := p.advance(); err != nil { // second (
		return nil, err
	}
	body, end, err := p.collectRawUntilDoubleRparen()
	if err != nil {
		return nil, err
	}
	x, err := ParseArith(body, start+2)
	if err != nil {
		return nil, err
	}
	return &ArithCmd{Lparen: start, Rparen: end, X: x}, nil
}

// collectRawUntilDoubleRparen re-synthesises the raw text of an `((
// … ))` arithmetic command from the already-tokenized stream: since
// the tokenizer does not special-case `((` in command position, its
// contents arrive as ordinary Word/operator tokens, which this
// re-stitches with single spaces before handing off to ParseArith.
// The lexer's arithDepth is raised meanwhile so `<<` is a shift, not a
// here-document.
func (p *Parser) collectRawUntilDoubleRparen() (string, token.Pos, error) {
	p.lex.arithDepth++
	defer func() { p.lex.arithDepth-- }()
	var parts []string
	depth := 1
	for {
		if p.isOp(token.Lparen) {
			depth++
			parts = append(parts, "(")
			if err := p.advance(); err != nil {
				return "", 0, err
			}
			continue
		}
		if p.isOp(token.Rparen) {
			depth--
			rparenPos := p.cur.Start
			if err := p.advance(); err != nil {
				return "", 0, err
			}
			if depth == 0 {
				return joinSpace(parts), rparenPos, nil
			}
			parts = append(parts, ")")
			continue
		}
		if p.atEOF() {
			return "", 0, p.errf("reached EOF without closing )) for ((")
		}
		if p.cur.Kind == token.Word {
			parts = append(parts, p.lex.src[p.cur.Start:p.cur.End])
			if err := p.advance(); err != nil {
				return "", 0, err
			}
			continue
		}
		if p.cur.Kind == token.Operator {
			parts = append(parts, p.cur.Op.String())
		}
		if err := p.advance(); err != nil {
			return "", 0, err
		}
	}
}

func joinSpace(parts []string) string {
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

func (p *Parser) parseIf() (*IfClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, _, err := p.parseStmtList(func() bool { return p.isKeyword("then") })
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, _, err := p.parseStmtList(func() bool { return p.isKeyword("elif", "else", "fi") })
	if err != nil {
		return nil, err
	}
	var elifs []*ElifArm
	for p.isKeyword("elif") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		econd, _, err := p.parseStmtList(func() bool { return p.isKeyword("then") })
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		ethen, _, err := p.parseStmtList(func() bool { return p.isKeyword("elif", "else", "fi") })
		if err != nil {
			return nil, err
		}
		elifs = append(elifs, &ElifArm{Cond: econd, Then: ethen})
	}
	var els []*Stmt
	if p.isKeyword("else") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		els, _, err = p.parseStmtList(func() bool { return p.isKeyword("fi") })
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("fi"); err != nil {
		return nil, err
	}
	return &IfClause{IfPos: start, FiPos: p.cur.Start - 2, Cond: cond, Then: then, Elifs: elifs, Else: els}, nil
}

func (p *Parser) parseWhile() (*WhileClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, _, err := p.parseStmtList(func() bool { return p.isKeyword("do") })
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, _, err := p.parseStmtList(func() bool { return p.isKeyword("done") })
	if err != nil {
		return nil, err
	}
	donePos := p.cur.Start
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &WhileClause{WhilePos: start, DonePos: donePos, Cond: cond, Body: body}, nil
}

func (p *Parser) parseUntil() (*UntilClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, _, err := p.parseStmtList(func() bool { return p.isKeyword("do") })
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, _, err := p.parseStmtList(func() bool { return p.isKeyword("done") })
	if err != nil {
		return nil, err
	}
	donePos := p.cur.Start
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &UntilClause{UntilPos: start, DonePos: donePos, Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (*ForClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	var iter ForIter
	if p.isOp(token.Lparen) {
		t1, err := p.peek(1)
		if err != nil {
			return nil, err
		}
		if t1.Kind == token.Operator && t1.Op == token.Lparen {
			lparen := p.cur.Start
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			raw, rparen, err := p.collectRawUntilDoubleRparen()
			if err != nil {
				return nil, err
			}
			initStr, rest := splitUnescaped(raw, ';')
			var condStr, postStr string
			if rest != nil {
				condStr, rest = splitUnescaped(*rest, ';')
				if rest != nil {
					postStr = *rest
				}
			}
			cf := &CStyleFor{Lparen: lparen, Rparen: rparen}
			if s := trimSpace(initStr); s != "" {
				cf.Init, _ = ParseArith(s, lparen+2)
			}
			if s := trimSpace(condStr); s != "" {
				cf.Cond, _ = ParseArith(s, lparen+2)
			}
			if s := trimSpace(postStr); s != "" {
				cf.Post, _ = ParseArith(s, lparen+2)
			}
			iter = cf
		}
	}
	if iter == nil {
		if p.cur.Kind != token.Word {
			return nil, p.errf("expected loop variable name in for")
		}
		name, _ := p.cur.Word.Lit()
		namePos := p.cur.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		wl := &WordList{NamePos: namePos, Name: name}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		if p.isKeyword("in") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			for p.cur.Kind == token.Word {
				wl.Items = append(wl.Items, p.cur.Word)
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		iter = wl
	}
	if p.isOp(token.Semicolon) || p.isOp(token.Newline) {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, _, err := p.parseStmtList(func() bool { return p.isKeyword("done") })
	if err != nil {
		return nil, err
	}
	donePos := p.cur.Start
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &ForClause{ForPos: start, DonePos: donePos, Iter: iter, Body: body}, nil
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}

func (p *Parser) parseCase() (*CaseClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind != token.Word {
		return nil, p.errf("expected word after case")
	}
	word := p.cur.Word
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	var arms []*CaseArm
	for !p.isKeyword("esac") && !p.atEOF() {
		if p.isOp(token.Lparen) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		var pats []*Word
		for {
			if p.cur.Kind != token.Word {
				return nil, p.errf("expected case pattern")
			}
			pats = append(pats, p.cur.Word)
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.isOp(token.Pipe) {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if !p.isOp(token.Rparen) {
			return nil, p.errf("expected ) after case pattern")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		body, _, err := p.parseStmtList(func() bool {
			return p.isKeyword("esac") || p.cur.Op.CaseEnd()
		})
		if err != nil {
			return nil, err
		}
		term := CaseBreak
		if p.cur.Kind == token.Operator {
			switch p.cur.Op {
			case token.SemiAmp:
				term = CaseFall
			case token.DblSemiAmp:
				term = CaseRetest
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		arms = append(arms, &CaseArm{Patterns: pats, Body: body, Term: term})
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}
	esacPos := p.cur.Start
	if err := p.expectKeyword("esac"); err != nil {
		return nil, err
	}
	return &CaseClause{CasePos: start, EsacPos: esacPos, Word: word, Arms: arms}, nil
}

func (p *Parser) parseCoproc() (*CoprocClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	name := "COPROC"
	if p.cur.Kind == token.Word {
		if lit, ok := p.cur.Word.Lit(); ok && isValidFuncName(lit) {
			t1, err := p.peek(1)
			if err != nil {
				return nil, err
			}
			if !(t1.Kind == token.Operator && t1.Op == token.Lparen && t1.Start == p.cur.End) {
				name = lit
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
	}
	bodyStmt, err := p.parseCommandStmt()
	if err != nil {
		return nil, err
	}
	return &CoprocClause{Position: start, Name: name, Body: bodyStmt}, nil
}

func (p *Parser) parseTestClause() (*TestClause, error) {
	start := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	x, err := p.parseTestOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("]]") {
		return nil, p.errf("expected ]]")
	}
	end := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &TestClause{Lbrack: start, Rbrack: end, X: x}, nil
}

func (p *Parser) parseTestOr() (*TestExpr, error) {
	x, err := p.parseTestAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp(token.OrIf) {
		start := x.Pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseTestAnd()
		if err != nil {
			return nil, err
		}
		x = &TestExpr{Op: TestOrOr, StartPos: start, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseTestAnd() (*TestExpr, error) {
	x, err := p.parseTestUnaryLevel()
	if err != nil {
		return nil, err
	}
	for p.isOp(token.AndIf) {
		start := x.Pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseTestUnaryLevel()
		if err != nil {
			return nil, err
		}
		x = &TestExpr{Op: TestAndAnd, StartPos: start, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseTestUnaryLevel() (*TestExpr, error) {
	if p.isKeyword("!") {
		start := p.cur.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseTestUnaryLevel()
		if err != nil {
			return nil, err
		}
		return &TestExpr{Op: TestNot, StartPos: start, X: x}, nil
	}
	if p.isOp(token.Lparen) {
		start := p.cur.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseTestOr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(token.Rparen) {
			return nil, p.errf("expected ) in [[ ]] expression")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &TestExpr{Op: TestParen, StartPos: start, X: x}, nil
	}
	if lit, ok := p.litWord(); ok && len(lit) == 2 && lit[0] == '-' && isTestUnaryLetter(lit[1]) {
		start := p.cur.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		w, err := p.expectWord()
		if err != nil {
			return nil, err
		}
		return &TestExpr{Op: TestUnary, StartPos: start, UnaryOp: lit, Word: w}, nil
	}
	start := p.cur.Start
	left, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	if binOp, ok := p.testBinOp(); ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.expectWord()
		if err != nil {
			return nil, err
		}
		return &TestExpr{Op: TestBinary, StartPos: start, BinOp: binOp, Word: left, Y: &TestExpr{Op: TestWord, StartPos: right.Pos(), Word: right}}, nil
	}
	return &TestExpr{Op: TestWord, StartPos: start, Word: left}, nil
}

func isTestUnaryLetter(b byte) bool {
	switch b {
	case 'e', 'f', 'd', 'r', 'w', 'x', 's', 'z', 'n', 'L', 'h', 'p', 'S', 'b', 'c', 'g', 'u', 'k', 'O', 'G', 'N', 'v', 'o', 't':
		return true
	}
	return false
}

func (p *Parser) testBinOp() (string, bool) {
	if p.cur.Kind == token.Operator && (p.cur.Op == token.Less || p.cur.Op == token.Great) {
		return p.cur.Op.String(), true
	}
	lit, ok := p.litWord()
	if !ok {
		return "", false
	}
	switch lit {
	case "==", "=", "!=", "=~", "-eq", "-ne", "-lt", "-le", "-gt", "-ge", "-nt", "-ot", "-ef":
		return lit, true
	}
	return "", false
}

func (p *Parser) expectWord() (*Word, error) {
	if p.cur.Kind != token.Word {
		return nil, p.errf("expected word")
	}
	w := p.cur.Word
	if err := p.advance(); err != nil {
		return nil, err
	}
	return w, nil
}

// parseRedirTail consumes any redirections trailing a compound command.
func (p *Parser) parseRedirTail() ([]*Redirect, error) {
	var redirs []*Redirect
	for {
		r, ok, err := p.tryParseRedirect()
		if err != nil {
			return nil, err
		}
		if !ok {
			return redirs, nil
		}
		redirs = append(redirs, r)
	}
}

func (p *Parser) parseSimpleCommand() (*Stmt, error) {
	start := p.cur.Start
	var prefix, suffix []*CmdPart
	var words []*Word

	for {
		if a, ok, err := p.tryAssignment(); err != nil {
			return nil, err
		} else if ok {
			prefix = append(prefix, &CmdPart{Assign: a})
			continue
		}
		r, ok, err := p.tryParseRedirect()
		if err != nil {
			return nil, err
		}
		if ok {
			prefix = append(prefix, &CmdPart{Redirect: r})
			continue
		}
		break
	}

	for p.cur.Kind == token.Word {
		words = append(words, p.cur.Word)
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			r, ok, err := p.tryParseRedirect()
			if err != nil {
				return nil, err
			}
			if ok {
				suffix = append(suffix, &CmdPart{Redirect: r})
				continue
			}
			break
		}
	}

	if len(words) == 0 && len(prefix) == 0 {
		return nil, p.errf("expected a command")
	}

	cmd := &SimpleCommand{Prefix: prefix, Words: words, Suffix: suffix}
	end := cmd.End()
	if end == 0 {
		end = start
	}
	return &Stmt{StmtPos: start, StmtEnd: end, Cmd: cmd}, nil
}

// tryAssignment recognises `name=value`, `name+=value`, and
// `name=(elems…)` as an assignment-word and consumes it. It only
// applies when the current token's first piece is a literal carrying
// the name= prefix; assignments whose array index contains an
// expansion are not recognised here and fall through to being parsed
// as a plain word, matching the scope this grammar covers.
func (p *Parser) tryAssignment() (*Assignment, bool, error) {
	if p.cur.Kind != token.Word || len(p.cur.Word.Pieces) == 0 {
		return nil, false, nil
	}
	lit, ok := p.cur.Word.Pieces[0].(*Lit)
	if !ok {
		return nil, false, nil
	}
	name, index, appnd, rest, ok := splitAssignmentPrefix(lit.Value)
	if !ok {
		return nil, false, nil
	}
	namePos := lit.ValuePos
	a := &Assignment{NamePos: namePos, Name: name, Append: appnd}
	if index != "" {
		idxPieces, _ := parsePiecesFrom(index, lit.ValuePos+token.Pos(len(name))+1, false)
		a.Index = &ArrayIndex{Key: &Word{Pieces: idxPieces}}
	}

	restPieces := p.cur.Word.Pieces[1:]
	wordEnd := p.cur.End
	if err := p.advance(); err != nil {
		return nil, false, err
	}

	if rest == "" && len(restPieces) == 0 && p.isOp(token.Lparen) && p.cur.Start == wordEnd {
		elems, err := p.parseArrayLiteral()
		if err != nil {
			return nil, false, err
		}
		a.Array = elems
		return a, true, nil
	}

	var pieces []WordPiece
	if rest != "" {
		pieces = append(pieces, &Lit{ValuePos: lit.ValuePos + token.Pos(len(lit.Value)-len(rest)), Value: rest})
	}
	pieces = append(pieces, restPieces...)
	a.Value = &Word{Pieces: pieces}
	return a, true, nil
}

func (p *Parser) parseArrayLiteral() ([]*ArrayElem, error) {
	if err := p.advance(); err != nil { // (
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	var elems []*ArrayElem
	for !p.isOp(token.Rparen) && !p.atEOF() {
		if p.cur.Kind != token.Word {
			return nil, p.errf("expected array element")
		}
		var key *Word
		val := p.cur.Word
		if lit, ok := val.Pieces[0].(*Lit); ok {
			if n, idx, _, rest, ok := splitAssignmentPrefix(lit.Value); ok && idx != "" && n != "" {
				idxPieces, _ := parsePiecesFrom(idx, lit.ValuePos, false)
				key = &Word{Pieces: idxPieces}
				var pieces []WordPiece
				if rest != "" {
					pieces = append(pieces, &Lit{ValuePos: lit.ValuePos, Value: rest})
				}
				pieces = append(pieces, val.Pieces[1:]...)
				val = &Word{Pieces: pieces}
			}
		}
		elems = append(elems, &ArrayElem{Key: key, Value: val})
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}
	if !p.isOp(token.Rparen) {
		return nil, p.errf("expected ) to close array literal")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return elems, nil
}

func (p *Parser) tryParseRedirect() (*Redirect, bool, error) {
	var fd *Lit
	if p.cur.Kind == token.Word {
		if lit, ok := p.cur.Word.Lit(); ok && allDigits(lit) {
			t1, err := p.peek(1)
			if err != nil {
				return nil, false, err
			}
			if t1.Kind == token.Operator && t1.Op.IsRedirect() && t1.Start == p.cur.End {
				fd = &Lit{ValuePos: p.cur.Start, Value: lit}
				if err := p.advance(); err != nil {
					return nil, false, err
				}
			}
		}
	}
	if p.cur.Kind != token.Operator || !p.cur.Op.IsRedirect() {
		if fd != nil {
			return nil, false, p.errf("expected redirection operator")
		}
		return nil, false, nil
	}
	op := p.cur.Op
	opPos := p.cur.Start
	if err := p.advance(); err != nil {
		return nil, false, err
	}
	switch op {
	case token.Less, token.Great, token.Clobber, token.ReadWrite:
		target, err := p.expectWord()
		if err != nil {
			return nil, false, err
		}
		kind := map[token.Op]RedirKind{
			token.Less: RedirRead, token.Great: RedirWrite,
			token.Clobber: RedirClobber, token.ReadWrite: RedirReadWrite,
		}[op]
		return &Redirect{OpPos: opPos, Kind: kind, Fd: fd, Target: RedirTarget{Filename: target}}, true, nil
	case token.ProcIn, token.ProcOut:
		body, rparen, err := p.parseProcSubstBody(opPos)
		if err != nil {
			return nil, false, err
		}
		ps := &ProcSubst{Lparen: opPos, Rparen: rparen, In: op == token.ProcIn, Body: body}
		return &Redirect{OpPos: opPos, Kind: RedirRead, Fd: fd, Target: RedirTarget{ProcSubst: ps}}, true, nil
	case token.DplLess, token.DplGreat:
		w, err := p.expectWord()
		if err != nil {
			return nil, false, err
		}
		kind := RedirDupIn
		if op == token.DplGreat {
			kind = RedirDupOut
		}
		target := RedirTarget{FdWord: w}
		if lit, ok := w.Lit(); ok {
			if lit == "-" {
				target = RedirTarget{FdWord: w}
			} else if n, err := strconv.Atoi(lit); err == nil {
				target = RedirTarget{Fd: n, FdSet: true, FdWord: w}
			}
		}
		return &Redirect{OpPos: opPos, Kind: kind, Fd: fd, Target: target}, true, nil
	case token.ShiftL, token.DashHdoc:
		if p.cur.Kind != token.Word {
			return nil, false, p.errf("expected here-document tag")
		}
		tag, literal := hereTagText(p.cur.Word)
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		r := &Redirect{OpPos: opPos, Kind: RedirHereDoc, Fd: fd, RemoveTabs: op == token.DashHdoc, HdocLiteral: literal, HdocTag: tag}
		p.pendingHdocs = append(p.pendingHdocs, r)
		return r, true, nil
	case token.HdocStr:
		w, err := p.expectWord()
		if err != nil {
			return nil, false, err
		}
		return &Redirect{OpPos: opPos, Kind: RedirHereString, Fd: fd, Target: RedirTarget{Filename: w}}, true, nil
	case token.AndGreat, token.AndDGreat:
		target, err := p.expectWord()
		if err != nil {
			return nil, false, err
		}
		return &Redirect{OpPos: opPos, Kind: RedirOutErr, Fd: fd, Append: op == token.AndDGreat, Target: RedirTarget{Filename: target}}, true, nil
	}
	return nil, false, p.errf("unhandled redirection operator")
}

// parseProcSubstBody handles `<(cmd)`/`>(cmd)` by stitching the already
// tokenized words back into a string and recursively parsing it as an
// independent program, the same trick used for `(( … ))`.
func (p *Parser) parseProcSubstBody(start token.Pos) ([]*Stmt, token.Pos, error) {
	raw, rparen, err := p.collectRawUntilSingleRparen()
	if err != nil {
		return nil, 0, err
	}
	stmts, err := parseNestedProgram(raw, start+2)
	if err != nil {
		return nil, 0, err
	}
	return stmts, rparen, nil
}

func (p *Parser) collectRawUntilSingleRparen() (string, token.Pos, error) {
	var parts []string
	depth := 1
	for {
		if p.isOp(token.Lparen) {
			depth++
			parts = append(parts, "(")
			if err := p.advance(); err != nil {
				return "", 0, err
			}
			continue
		}
		if p.isOp(token.Rparen) {
			depth--
			rparenPos := p.cur.Start
			if err := p.advance(); err != nil {
				return "", 0, err
			}
			if depth == 0 {
				return joinSpace(parts), rparenPos, nil
			}
			parts = append(parts, ")")
			continue
		}
		if p.atEOF() {
			return "", 0, p.errf("reached EOF without closing ) for process substitution")
		}
		if p.cur.Kind == token.Word {
			parts = append(parts, p.lex.src[p.cur.Start:p.cur.End])
		} else if p.cur.Kind == token.Operator {
			parts = append(parts, p.cur.Op.String())
		}
		if err := p.advance(); err != nil {
			return "", 0, err
		}
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(rune(s[i])) {
			return false
		}
	}
	return true
}

// shiftStmts is a deliberate no-op: positions inside a nested
// substitution's body are resolved against that substring, not the
// outer source, which is adequate for execution and for diagnostics
// reported while evaluating the substitution itself.
func shiftStmts(_ []*Stmt, _ token.Pos) {}
