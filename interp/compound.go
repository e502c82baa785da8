package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/posixsh/posh/expand"
	"github.com/posixsh/posh/syntax"
)

func (sh *Shell) execBraceGroup(b *syntax.BraceGroup) ExecResult {
	_, res := sh.execStmts(b.Body)
	return res
}

// execSubshell runs Body against a deep clone (spec.md §4.9: a
// subshell's variable/fd/cwd mutations are invisible to the parent).
func (sh *Shell) execSubshell(s *syntax.Subshell) ExecResult {
	clone := sh.Clone()
	status, res := clone.execStmts(s.Body)
	sh.lastStatus = status
	if res.isReturn() || res.isLoopSignal() {
		return normal(status)
	}
	return res
}

// execCond runs an if/while/until condition with errexit turned off:
// its status is being tested, so a non-zero status is not a failure.
func (sh *Shell) execCond(stmts []*syntax.Stmt) (int, ExecResult) {
	saved := sh.Opts.ErrExit
	sh.Opts.ErrExit = false
	defer func() { sh.Opts.ErrExit = saved }()
	return sh.execStmts(stmts)
}

func (sh *Shell) execIf(c *syntax.IfClause) ExecResult {
	status, cres := sh.execCond(c.Cond)
	if cres.Flow != CFNormal {
		return cres
	}
	if status == 0 {
		_, res := sh.execStmts(c.Then)
		return res
	}
	for _, arm := range c.Elifs {
		status, cres = sh.execCond(arm.Cond)
		if cres.Flow != CFNormal {
			return cres
		}
		if status == 0 {
			_, res := sh.execStmts(arm.Then)
			return res
		}
	}
	if c.Else != nil {
		_, res := sh.execStmts(c.Else)
		return res
	}
	return normal(0)
}

func (sh *Shell) execWhile(c *syntax.WhileClause) ExecResult {
	return sh.execLoop(func() (bool, ExecResult) {
		status, cres := sh.execCond(c.Cond)
		if cres.Flow != CFNormal {
			return false, cres
		}
		return status == 0, normal(0)
	}, c.Body)
}

func (sh *Shell) execUntil(c *syntax.UntilClause) ExecResult {
	return sh.execLoop(func() (bool, ExecResult) {
		status, cres := sh.execCond(c.Cond)
		if cres.Flow != CFNormal {
			return false, cres
		}
		return status != 0, normal(0)
	}, c.Body)
}

// execLoop factors the while/until body-loop: it runs test before each
// iteration, runs body, and applies decrementLoop to break/continue
// signals surfacing from the body (spec.md §4.9).
func (sh *Shell) execLoop(test func() (bool, ExecResult), body []*syntax.Stmt) ExecResult {
	last := 0
	for {
		cont, tres := test()
		if tres.Flow != CFNormal {
			return tres
		}
		if !cont {
			return normal(last)
		}
		_, res := sh.execStmts(body)
		last = res.Status
		if res.Flow == CFNormal {
			continue
		}
		if swallow, out := decrementLoop(res); swallow {
			if res.Flow == CFBreak {
				return normal(out.Status)
			}
			continue
		} else {
			return out
		}
	}
}

func (sh *Shell) execFor(c *syntax.ForClause) ExecResult {
	switch it := c.Iter.(type) {
	case *syntax.WordList:
		return sh.execForWords(it, c.Body)
	case *syntax.CStyleFor:
		return sh.execForArith(it, c.Body)
	default:
		return normal(2)
	}
}

func (sh *Shell) execForWords(it *syntax.WordList, body []*syntax.Stmt) ExecResult {
	var items []*syntax.Word
	if it.Items == nil {
		for _, p := range sh.positional {
			items = append(items, litWord(p))
		}
	} else {
		items = it.Items
	}
	fields, err := sh.Expander().Fields(items...)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	last := 0
	for _, v := range fields {
		sh.Set(it.Name, expand.Variable{Set: true, Kind: expand.String, Str: v})
		_, res := sh.execStmts(body)
		last = res.Status
		if res.Flow == CFNormal {
			continue
		}
		if swallow, out := decrementLoop(res); swallow {
			if res.Flow == CFBreak {
				return normal(out.Status)
			}
			continue
		} else {
			return out
		}
	}
	return normal(last)
}

func litWord(s string) *syntax.Word {
	return &syntax.Word{Pieces: []syntax.WordPiece{&syntax.Lit{Value: s}}}
}

func (sh *Shell) execForArith(it *syntax.CStyleFor, body []*syntax.Stmt) ExecResult {
	if it.Init != nil {
		if _, err := expand.EvalArith(it.Init, sh); err != nil {
			fmt.Fprintln(sh.Stderr, "posh:", err)
			return normal(1)
		}
	}
	last := 0
	for {
		if it.Cond != nil {
			v, err := expand.EvalArith(it.Cond, sh)
			if err != nil {
				fmt.Fprintln(sh.Stderr, "posh:", err)
				return normal(1)
			}
			if v == 0 {
				return normal(last)
			}
		}
		_, res := sh.execStmts(body)
		last = res.Status
		if res.Flow != CFNormal {
			if swallow, out := decrementLoop(res); swallow {
				if res.Flow == CFBreak {
					return normal(out.Status)
				}
			} else {
				return out
			}
		}
		if it.Post != nil {
			if _, err := expand.EvalArith(it.Post, sh); err != nil {
				fmt.Fprintln(sh.Stderr, "posh:", err)
				return normal(1)
			}
		}
	}
}

// execCase evaluates word against each arm's patterns in order,
// honoring ;; / ;& / ;;& fallthrough semantics (spec.md §4.9).
func (sh *Shell) execCase(c *syntax.CaseClause) ExecResult {
	subj, err := sh.Expander().String(c.Word)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	for i := 0; i < len(c.Arms); i++ {
		arm := c.Arms[i]
		if !sh.caseArmMatches(arm, subj) {
			continue
		}
		_, res := sh.execStmts(arm.Body)
		if res.Flow != CFNormal {
			return res
		}
		if arm.Term == syntax.CaseBreak {
			return res
		}
		if arm.Term == syntax.CaseFall {
			if i+1 < len(c.Arms) {
				_, res2 := sh.execStmts(c.Arms[i+1].Body)
				return res2
			}
			return res
		}
		// CaseRetest: keep scanning remaining arms for another match.
	}
	return normal(0)
}

func (sh *Shell) caseArmMatches(arm *syntax.CaseArm, subj string) bool {
	for _, pw := range arm.Patterns {
		pat, err := sh.Expander().Pattern(pw)
		if err != nil {
			continue
		}
		if ok, _ := pat.Match(subj); ok {
			return true
		}
	}
	return false
}

func (sh *Shell) execArithCmd(c *syntax.ArithCmd) ExecResult {
	v, err := expand.EvalArith(c.X, sh)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	if v == 0 {
		return normal(1)
	}
	return normal(0)
}

func (sh *Shell) execCoproc(c *syntax.CoprocClause) ExecResult {
	name := c.Name
	clone := sh.Clone()
	toChild, toChildW := osPipe()
	fromChild, fromChildW := osPipe()
	if toChild == nil || fromChild == nil {
		fmt.Fprintln(sh.Stderr, "posh: coproc: pipe failed")
		return normal(1)
	}
	clone.Files.Set(0, &OpenFile{Reader: toChild, Closer: toChild})
	clone.Files.Set(1, &OpenFile{Writer: fromChildW, Closer: fromChildW})
	go func() {
		clone.execCommand(c.Body.Cmd, c.Body.Redirs)
		toChild.Close()
		fromChildW.Close()
	}()
	sh.Files.Set(63, &OpenFile{Writer: toChildW, Closer: toChildW})
	sh.Files.Set(62, &OpenFile{Reader: fromChild, Closer: fromChild})
	sh.Set(name+"_PID", expand.Variable{Set: true, Kind: expand.String, Str: "0"})
	return normal(0)
}

// execTest evaluates the `[[ … ]]` mini-language (spec.md §6's
// reference `test`/`[[` semantics), returning 0/1 per the final
// boolean, never failing the enclosing command on a false result.
func (sh *Shell) execTest(t *syntax.TestClause) ExecResult {
	v, err := sh.evalTestExpr(t.X)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(2)
	}
	if v {
		return normal(0)
	}
	return normal(1)
}

func (sh *Shell) evalTestExpr(e *syntax.TestExpr) (bool, error) {
	switch e.Op {
	case syntax.TestParen:
		return sh.evalTestExpr(e.X)
	case syntax.TestNot:
		v, err := sh.evalTestExpr(e.X)
		return !v, err
	case syntax.TestAndAnd:
		l, err := sh.evalTestExpr(e.X)
		if err != nil || !l {
			return false, err
		}
		return sh.evalTestExpr(e.Y)
	case syntax.TestOrOr:
		l, err := sh.evalTestExpr(e.X)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return sh.evalTestExpr(e.Y)
	case syntax.TestWord:
		s, err := sh.Expander().String(e.Word)
		if err != nil {
			return false, err
		}
		return s != "", nil
	case syntax.TestUnary:
		return sh.evalUnaryTest(e)
	case syntax.TestBinary:
		return sh.evalBinaryTest(e)
	}
	return false, fmt.Errorf("interp: unhandled test op %v", e.Op)
}

func (sh *Shell) evalUnaryTest(e *syntax.TestExpr) (bool, error) {
	s, err := sh.Expander().String(e.Word)
	if err != nil {
		return false, err
	}
	switch e.UnaryOp {
	case "-z":
		return s == "", nil
	case "-n":
		return s != "", nil
	case "-e", "-a":
		_, err := os.Stat(s)
		return err == nil, nil
	case "-f":
		fi, err := os.Stat(s)
		return err == nil && fi.Mode().IsRegular(), nil
	case "-d":
		fi, err := os.Stat(s)
		return err == nil && fi.IsDir(), nil
	case "-h", "-L":
		fi, err := os.Lstat(s)
		return err == nil && fi.Mode()&os.ModeSymlink != 0, nil
	case "-r", "-w", "-x":
		return testAccess(s, e.UnaryOp), nil
	case "-s":
		fi, err := os.Stat(s)
		return err == nil && fi.Size() > 0, nil
	case "-v":
		return sh.Get(s).IsSet(), nil
	case "-o":
		return sh.shoptEnabled(s), nil
	default:
		return false, fmt.Errorf("interp: unsupported unary test %s", e.UnaryOp)
	}
}

func (sh *Shell) evalBinaryTest(e *syntax.TestExpr) (bool, error) {
	l, err := sh.Expander().String(e.X.Word)
	if err != nil {
		return false, err
	}
	switch e.BinOp {
	case "=~":
		rhs, err := rawPattern(e.Y.Word)
		if err != nil {
			return false, err
		}
		re, err := regexp.Compile(rhs)
		if err != nil {
			return false, err
		}
		return re.MatchString(l), nil
	}
	r, err := sh.Expander().String(e.Y.Word)
	if err != nil {
		return false, err
	}
	switch e.BinOp {
	case "==", "=":
		pat, err := sh.Expander().Pattern(e.Y.Word)
		if err != nil {
			return false, err
		}
		return pat.Match(l)
	case "!=":
		pat, err := sh.Expander().Pattern(e.Y.Word)
		if err != nil {
			return false, err
		}
		ok, err := pat.Match(l)
		return !ok, err
	case "<":
		return l < r, nil
	case ">":
		return l > r, nil
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return sh.arithCompare(l, r, e.BinOp)
	case "-ef":
		li, lerr := os.Stat(l)
		ri, rerr := os.Stat(r)
		return lerr == nil && rerr == nil && os.SameFile(li, ri), nil
	case "-nt":
		li, lerr := os.Stat(l)
		ri, rerr := os.Stat(r)
		return lerr == nil && rerr == nil && li.ModTime().After(ri.ModTime()), nil
	case "-ot":
		li, lerr := os.Stat(l)
		ri, rerr := os.Stat(r)
		return lerr == nil && rerr == nil && li.ModTime().Before(ri.ModTime()), nil
	}
	return false, fmt.Errorf("interp: unsupported binary test %s", e.BinOp)
}

func rawPattern(w *syntax.Word) (string, error) {
	if lit, ok := w.Lit(); ok {
		return lit, nil
	}
	return "", fmt.Errorf("interp: =~ pattern must be literal")
}

func (sh *Shell) arithCompare(l, r, op string) (bool, error) {
	lv, err := sh.evalArithString(l)
	if err != nil {
		return false, err
	}
	rv, err := sh.evalArithString(r)
	if err != nil {
		return false, err
	}
	switch op {
	case "-eq":
		return lv == rv, nil
	case "-ne":
		return lv != rv, nil
	case "-lt":
		return lv < rv, nil
	case "-le":
		return lv <= rv, nil
	case "-gt":
		return lv > rv, nil
	case "-ge":
		return lv >= rv, nil
	}
	return false, fmt.Errorf("interp: unknown arith comparator %s", op)
}

func (sh *Shell) evalArithString(s string) (int64, error) {
	e, err := syntax.ParseArith(s, 0)
	if err != nil {
		return 0, err
	}
	return expand.EvalArith(e, sh)
}

func (sh *Shell) shoptEnabled(name string) bool {
	switch strings.ToLower(name) {
	case "noclobber":
		return sh.Opts.NoClobber
	case "nounset":
		return sh.Opts.NoUnset
	case "errexit":
		return sh.Opts.ErrExit
	case "xtrace":
		return sh.Opts.XTrace
	case "pipefail":
		return sh.Opts.PipeFail
	}
	return false
}

func osPipe() (*os.File, *os.File) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil
	}
	return r, w
}

func testAccess(path, mode string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	perm := fi.Mode().Perm()
	switch mode {
	case "-r":
		return perm&0444 != 0
	case "-w":
		return perm&0222 != 0
	case "-x":
		return perm&0111 != 0 || filepath.Ext(path) == ".exe"
	}
	return false
}
