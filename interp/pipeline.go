package interp

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/posixsh/posh/syntax"
)

// execPipeline wires anonymous pipes between consecutive stages and
// runs all of them concurrently (spec.md §4.6): each non-final stage
// runs against a clone so its variable/cwd changes stay invisible to
// the caller, while the final stage runs in the current shell when the
// `lastpipe` option is enabled and the pipeline is not backgrounded.
func (sh *Shell) execPipeline(p *syntax.Pipeline) ExecResult {
	if len(p.Commands) == 1 && !p.Negate && p.Time == syntax.NoTime {
		res := sh.execStmt(p.Commands[0])
		sh.pipeStatus = []int{res.Status}
		return res
	}

	start := time.Now()
	statuses := make([]int, len(p.Commands))
	flows := make([]ExecResult, len(p.Commands))

	pipes := make([]*io.PipeReader, len(p.Commands)-1)
	writers := make([]*io.PipeWriter, len(p.Commands)-1)
	for i := range pipes {
		pipes[i], writers[i] = io.Pipe()
	}

	var g errgroup.Group
	for i, stmt := range p.Commands {
		i, stmt := i, stmt
		useLastPipe := sh.Opts.LastPipe && i == len(p.Commands)-1
		runner := sh
		if !useLastPipe {
			runner = sh.Clone()
		}
		if i > 0 {
			runner.Files.Set(0, &OpenFile{Reader: pipes[i-1]})
		}
		if i < len(p.Commands)-1 {
			runner.Files.Set(1, &OpenFile{Writer: writers[i]})
		}
		g.Go(func() error {
			res := runner.execStmt(stmt)
			statuses[i] = res.Status
			flows[i] = res
			if i > 0 {
				pipes[i-1].Close()
			}
			if i < len(p.Commands)-1 {
				writers[i].Close()
			}
			return nil
		})
	}
	g.Wait()

	sh.pipeStatus = statuses
	last := statuses[len(statuses)-1]
	status := last
	if sh.Opts.PipeFail {
		for _, s := range statuses {
			if s != 0 {
				status = s
			}
		}
	}
	if p.Negate {
		if status == 0 {
			status = 1
		} else {
			status = 0
		}
	}
	if p.Time != syntax.NoTime {
		reportTime(sh.Stderr, time.Since(start), p.Time)
	}

	for _, f := range flows {
		if f.isLoopSignal() || f.isReturn() || f.isExit() {
			return ExecResult{Status: status, Flow: f.Flow, Levels: f.Levels}
		}
	}
	return normal(status)
}

func reportTime(w io.Writer, d time.Duration, format syntax.TimeFormat) {
	if format == syntax.TimePosix {
		fmt.Fprintf(w, "real %.2f\n", d.Seconds())
		return
	}
	fmt.Fprintf(w, "\nreal\t%s\n", d.Round(time.Millisecond))
}
