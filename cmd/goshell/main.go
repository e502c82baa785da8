// goshell is a proof of concept shell built on top of [interp].
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/posixsh/posh/internal/procutil"
	"github.com/posixsh/posh/interp"
	"github.com/posixsh/posh/syntax"
)

var command = flag.String("c", "", "command to be executed")
var rcfile = flag.String("rcfile", "", "config file to source before running")

func main() {
	flag.Parse()
	os.Exit(runAll())
}

func runAll() int {
	sh, err := interp.New(os.Stdin, os.Stdout, os.Stderr, os.Environ())
	if err != nil {
		fmt.Fprintln(os.Stderr, "goshell:", err)
		return 1
	}
	sh.Opts.Interactive = flag.NArg() == 0 && *command == ""

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go sh.WatchSignals(sigc)

	loadInitConfig(sh, *rcfile)

	switch {
	case *command != "":
		return runSource(sh, "command", *command)
	case flag.NArg() == 0:
		if isTerminal(os.Stdin) {
			return runInteractive(sh, os.Stdin, os.Stdout)
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "goshell:", err)
			return 1
		}
		return runSource(sh, "stdin", string(data))
	default:
		status := 0
		for _, path := range flag.Args() {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintln(os.Stderr, "goshell:", err)
				return 1
			}
			status = runSource(sh, path, string(data))
		}
		return status
	}
}

func runSource(sh *interp.Shell, name, src string) int {
	sh.ClearInterrupt()
	prog, err := syntax.Parse(name, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "goshell:", err)
		return 2
	}
	status, err := sh.Run(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "goshell:", err)
	}
	return status
}

func runInteractive(sh *interp.Shell, stdin io.Reader, stdout io.Writer) int {
	scanner := bufio.NewScanner(stdin)
	fmt.Fprint(stdout, "$ ")
	status := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Fprint(stdout, "$ ")
			continue
		}
		prog, err := syntax.Parse("stdin", line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "goshell:", err)
			fmt.Fprint(stdout, "$ ")
			continue
		}
		sh.ClearInterrupt()
		status, err = sh.Run(prog)
		if err != nil {
			fmt.Fprintln(os.Stderr, "goshell:", err)
		}
		fmt.Fprint(stdout, "$ ")
	}
	return status
}

func isTerminal(f *os.File) bool {
	return procutil.IsInteractiveTerminal(int(f.Fd()))
}
