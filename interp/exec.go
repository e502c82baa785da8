package interp

import (
	"fmt"

	"github.com/posixsh/posh/syntax"
)

// Run executes a parsed Program to completion (the top level spec.md
// §2 calls "source -> tokens -> AST -> ... -> ExecutionResult"),
// returning the final exit status.
func (sh *Shell) Run(prog *syntax.Program) (int, error) {
	sh.scriptName = prog.Name
	status, res := sh.execStmts(stmtsOf(prog))
	if res.isExit() {
		return res.Status, nil
	}
	return status, nil
}

func stmtsOf(prog *syntax.Program) []*syntax.Stmt {
	var out []*syntax.Stmt
	for _, cc := range prog.Lines {
		out = append(out, cc.Stmts...)
	}
	return out
}

// execStmts runs a compound list in order (spec.md §8 property: every
// visible effect of A happens-before any effect of B).
func (sh *Shell) execStmts(stmts []*syntax.Stmt) (int, ExecResult) {
	status := 0
	for _, s := range stmts {
		sh.curLine++
		if sh.interrupted {
			return status, ExecResult{Status: 130, Flow: CFBreak, Levels: 1 << 30}
		}
		res := sh.execStmt(s)
		status = res.Status
		sh.lastStatus = status
		if res.Flow != CFNormal {
			return status, res
		}
		if sh.Opts.ErrExit && status != 0 && !statementIsCondition(s) {
			return status, ExecResult{Status: status, Flow: CFExit}
		}
	}
	return status, normal(status)
}

// statementIsCondition is the Stmt-level opt-out from errexit; it
// reports false for every statement. The errexit rule chosen for bash's
// inconsistent &&/||/if behaviour (spec.md §9) is: if/while/until
// conditions run through execCond, which turns errexit off while they
// run, and execAndOr runs the arms of && / || directly rather than
// through execStmts, so a failing arm does not trigger errexit by
// itself; errexit then applies to the status of the whole and-or list.
func statementIsCondition(*syntax.Stmt) bool { return false }

// execStmt dispatches one Stmt to its command-kind handler, applying
// the statement's own redirections/background flag uniformly so every
// Command implementation doesn't need to repeat that logic.
func (sh *Shell) execStmt(s *syntax.Stmt) ExecResult {
	if s.Background {
		return sh.runAsync(s)
	}
	return sh.execCommand(s.Cmd, s.Redirs)
}

func (sh *Shell) execCommand(cmd syntax.Command, redirs []*syntax.Redirect) ExecResult {
	switch c := cmd.(type) {
	case *syntax.SimpleCommand:
		return sh.execSimpleCommand(c, redirs)
	case *syntax.Pipeline:
		return sh.execPipeline(c)
	case *syntax.AndOrList:
		return sh.execAndOr(c)
	case *syntax.BraceGroup:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execBraceGroup(c) })
	case *syntax.Subshell:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execSubshell(c) })
	case *syntax.IfClause:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execIf(c) })
	case *syntax.WhileClause:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execWhile(c) })
	case *syntax.UntilClause:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execUntil(c) })
	case *syntax.ForClause:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execFor(c) })
	case *syntax.CaseClause:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execCase(c) })
	case *syntax.ArithCmd:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execArithCmd(c) })
	case *syntax.FuncDecl:
		sh.Functions[c.Name] = &Function{Name: c.Name, Decl: c}
		return normal(0)
	case *syntax.TestClause:
		return sh.withRedirs(redirs, func() ExecResult { return sh.execTest(c) })
	case *syntax.CoprocClause:
		return sh.execCoproc(c)
	default:
		fmt.Fprintf(sh.Stderr, "posh: unhandled command type %T\n", cmd)
		return normal(2)
	}
}

// withRedirs applies redirs to the shell's live fd table for the
// duration of fn, restoring it on every exit path (spec.md §8
// property 3: per-command open-files table restored regardless of
// success, failure, or control-flow escape).
func (sh *Shell) withRedirs(redirs []*syntax.Redirect, fn func() ExecResult) ExecResult {
	if len(redirs) == 0 {
		return fn()
	}
	restore, err := sh.applyRedirects(sh.Files, redirs)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	defer restore()
	return fn()
}

func (sh *Shell) execAndOr(a *syntax.AndOrList) ExecResult {
	res := sh.execCommand(a.Pipelines[0], nil)
	status := res.Status
	for i, op := range a.Ops {
		if res.Flow != CFNormal {
			return res
		}
		shortCircuit := (op == syntax.LogAnd && status != 0) || (op == syntax.LogOr && status == 0)
		if shortCircuit {
			continue
		}
		res = sh.execCommand(a.Pipelines[i+1], nil)
		status = res.Status
	}
	return ExecResult{Status: status, Flow: res.Flow, Levels: res.Levels}
}

// runAsync launches a Stmt as a background job (spec.md §4.6): it
// registers a job and returns success immediately without waiting.
func (sh *Shell) runAsync(s *syntax.Stmt) ExecResult {
	clone := sh.Clone()
	job := sh.Jobs.NewJob(stmtText(s))
	done := make(chan int, 1)
	go func() {
		res := clone.execCommand(s.Cmd, s.Redirs)
		done <- res.Status
		sh.Jobs.MarkDone(job.ID, res.Status)
	}()
	sh.lastBgPID = job.ID
	return normal(0)
}

func stmtText(s *syntax.Stmt) string {
	if sc, ok := s.Cmd.(*syntax.SimpleCommand); ok && len(sc.Words) > 0 {
		if lit, ok := sc.Words[0].Lit(); ok {
			return lit
		}
	}
	return "command"
}
