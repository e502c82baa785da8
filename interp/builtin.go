package interp

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/posixsh/posh/expand"
	"github.com/posixsh/posh/internal/procutil"
	"github.com/posixsh/posh/syntax"
)

// Builtin is the contract spec.md §6 calls BuiltinFn: argv[0] is the
// builtin's own name, argv[1:] its already-expanded arguments. It
// returns the ExecResult the caller should adopt, which lets break,
// continue, return and exit be ordinary builtins instead of special
// cases in the dispatcher.
type Builtin func(sh *Shell, argv []string) ExecResult

func defaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		":":         biTrue,
		"true":      biTrue,
		"false":     biFalse,
		"cd":        biCd,
		"pwd":       biPwd,
		"export":    biExport,
		"readonly":  biReadonly,
		"unset":     biUnset,
		"shift":     biShift,
		"exit":      biExit,
		"return":    biReturn,
		"break":     biBreak,
		"continue":  biContinue,
		"eval":      biEval,
		"exec":      biExec,
		"set":       biSet,
		"trap":      biTrap,
		"times":     biTimes,
		"echo":      biEcho,
		"printf":    biPrintf,
		"read":      biRead,
		"declare":   biDeclare,
		"local":     biDeclare,
		"typeset":   biDeclare,
		"pushd":     biPushd,
		"popd":      biPopd,
		"dirs":      biDirs,
		"wait":      biWait,
		"jobs":      biJobs,
		"fg":        biFgBg,
		"bg":        biFgBg,
		"kill":      biKill,
		"test":      biTest,
		"[":         biTest,
		"type":      biType,
		"hash":      biHash,
		"getopts":   biGetopts,
		"mapfile":   biMapfile,
		"readarray": biMapfile,
		".":         biSource,
		"source":    biSource,
		"alias":     biAlias,
		"unalias":   biUnalias,
	}
}

func biTrue(sh *Shell, argv []string) ExecResult  { return normal(0) }
func biFalse(sh *Shell, argv []string) ExecResult { return normal(1) }

func biCd(sh *Shell, argv []string) ExecResult {
	target := ""
	if len(argv) > 1 {
		target = argv[1]
	}
	switch target {
	case "":
		if h := sh.Get("HOME"); h.IsSet() {
			target = h.String()
		}
	case "-":
		target = sh.oldpwd
		fmt.Fprintln(sh.Stdout, target)
	}
	if !strings.HasPrefix(target, "/") {
		target = sh.cwd + "/" + target
	}
	if err := os.Chdir(target); err != nil {
		fmt.Fprintln(sh.Stderr, "posh: cd:", err)
		return normal(1)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = target
	}
	sh.oldpwd = sh.cwd
	sh.cwd = cwd
	sh.Set("PWD", expand.Variable{Set: true, Kind: expand.String, Str: cwd})
	sh.Set("OLDPWD", expand.Variable{Set: true, Kind: expand.String, Str: sh.oldpwd})
	return normal(0)
}

func biPwd(sh *Shell, argv []string) ExecResult {
	fmt.Fprintln(sh.Stdout, sh.cwd)
	return normal(0)
}

func biExport(sh *Shell, argv []string) ExecResult {
	if len(argv) == 1 {
		var names []string
		sh.Each(func(n string, v expand.Variable) bool {
			if v.Exported {
				names = append(names, n)
			}
			return true
		})
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(sh.Stdout, "export %s=%q\n", n, sh.Get(n).String())
		}
		return normal(0)
	}
	for _, arg := range argv[1:] {
		name, val, hasVal := cut(arg, '=')
		vr := sh.Get(name)
		vr.Set = true
		vr.Exported = true
		if hasVal {
			vr.Kind = expand.String
			vr.Str = val
		}
		sh.Set(name, vr)
	}
	return normal(0)
}

func biReadonly(sh *Shell, argv []string) ExecResult {
	for _, arg := range argv[1:] {
		name, val, hasVal := cut(arg, '=')
		vr := sh.Get(name)
		vr.Set = true
		if hasVal {
			vr.Kind = expand.String
			vr.Str = val
		}
		vr.ReadOnly = true
		sh.scopes.setAnywhere(name, vr, scopeGlobal)
	}
	return normal(0)
}

func biUnset(sh *Shell, argv []string) ExecResult {
	for _, name := range argv[1:] {
		if name == "-f" || name == "-v" {
			continue
		}
		if _, ok := sh.Functions[name]; ok {
			delete(sh.Functions, name)
			continue
		}
		sh.Unset(name)
	}
	return normal(0)
}

func biShift(sh *Shell, argv []string) ExecResult {
	n := 1
	if len(argv) > 1 {
		v, err := strconv.Atoi(argv[1])
		if err == nil {
			n = v
		}
	}
	if n > len(sh.positional) {
		return normal(1)
	}
	sh.positional = sh.positional[n:]
	return normal(0)
}

func biExit(sh *Shell, argv []string) ExecResult {
	status := sh.lastStatus
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			status = n
		}
	}
	return ExecResult{Status: status & 0xff, Flow: CFExit}
}

func biReturn(sh *Shell, argv []string) ExecResult {
	status := sh.lastStatus
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			status = n
		}
	}
	return ExecResult{Status: status & 0xff, Flow: CFReturn}
}

func biBreak(sh *Shell, argv []string) ExecResult {
	n := parseLevels(argv)
	return ExecResult{Status: 0, Flow: CFBreak, Levels: n}
}

func biContinue(sh *Shell, argv []string) ExecResult {
	n := parseLevels(argv)
	return ExecResult{Status: 0, Flow: CFContinue, Levels: n}
}

func parseLevels(argv []string) int {
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// biEval re-parses its joined arguments as a new program and executes
// it in the current scope (spec.md §6): control-flow escapes from the
// evaluated text propagate to eval's own caller.
func biEval(sh *Shell, argv []string) ExecResult {
	src := strings.Join(argv[1:], " ")
	if src == "" {
		return normal(0)
	}
	prog, err := syntax.Parse("eval", src)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh: eval:", err)
		return normal(2)
	}
	status, res := sh.execStmts(stmtsOf(prog))
	if res.Flow == CFNormal {
		return normal(status)
	}
	return res
}

// biExec implements the common case of `exec cmd args…` (replace this
// invocation with an external command's status) and, with no
// arguments, is a no-op since this implementation applies `exec`'s
// redirects through the same withRedirs machinery every simple command
// uses rather than mutating the live fd table permanently.
func biExec(sh *Shell, argv []string) ExecResult {
	if len(argv) == 1 {
		return normal(0)
	}
	res := sh.callExternalScoped(argv[1], argv[1:], nil)
	return ExecResult{Status: res.Status, Flow: CFExit}
}

func biSet(sh *Shell, argv []string) ExecResult {
	i := 1
	for i < len(argv) {
		arg := argv[i]
		if arg == "--" {
			i++
			break
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			break
		}
		enable := arg[0] == '-'
		if arg == "-o" || arg == "+o" {
			i++
			if i >= len(argv) {
				break
			}
			sh.setOption(argv[i], enable)
			i++
			continue
		}
		for _, c := range arg[1:] {
			sh.setShortOption(c, enable)
		}
		i++
	}
	if i < len(argv) {
		sh.positional = append([]string(nil), argv[i:]...)
	}
	return normal(0)
}

func (sh *Shell) setShortOption(c rune, enable bool) {
	switch c {
	case 'e':
		sh.Opts.ErrExit = enable
	case 'u':
		sh.Opts.NoUnset = enable
	case 'x':
		sh.Opts.XTrace = enable
	case 'v':
		sh.Opts.Verbose = enable
	case 'f':
		sh.Opts.NoGlob = enable
	case 'C':
		sh.Opts.NoClobber = enable
	case 'm':
		sh.Opts.Monitor = enable
	}
}

func (sh *Shell) setOption(name string, enable bool) {
	switch name {
	case "errexit":
		sh.Opts.ErrExit = enable
	case "nounset":
		sh.Opts.NoUnset = enable
	case "pipefail":
		sh.Opts.PipeFail = enable
	case "xtrace":
		sh.Opts.XTrace = enable
	case "noclobber":
		sh.Opts.NoClobber = enable
	case "noglob":
		sh.Opts.NoGlob = enable
	case "monitor":
		sh.Opts.Monitor = enable
	case "posix":
		sh.Opts.Posix = enable
	case "nullglob":
		sh.Opts.NullGlob = enable
	case "failglob":
		sh.Opts.FailGlob = enable
	case "extglob":
		sh.Opts.ExtGlob = enable
	case "globstar":
		sh.Opts.GlobStar = enable
	case "lastpipe":
		sh.Opts.LastPipe = enable
	}
}

// biTrap registers/queries signal handlers (spec.md §6). Handlers are
// stored as unparsed text and parsed lazily on first delivery, since a
// trap can be set before the commands it invokes are ever reachable.
func biTrap(sh *Shell, argv []string) ExecResult {
	if len(argv) == 1 {
		for name := range sh.traps {
			fmt.Fprintf(sh.Stdout, "trap -- '%s'\n", name)
		}
		return normal(0)
	}
	body := argv[1]
	for _, sig := range argv[2:] {
		if body == "-" {
			delete(sh.traps, sig)
			continue
		}
		prog, err := syntax.Parse("trap", body)
		if err != nil {
			fmt.Fprintln(sh.Stderr, "posh: trap:", err)
			return normal(1)
		}
		if len(stmtsOf(prog)) > 0 {
			sh.traps[sig] = stmtsOf(prog)[0]
		}
	}
	return normal(0)
}

func biTimes(sh *Shell, argv []string) ExecResult {
	fmt.Fprintln(sh.Stdout, "0m0.000s 0m0.000s")
	fmt.Fprintln(sh.Stdout, "0m0.000s 0m0.000s")
	return normal(0)
}

func biEcho(sh *Shell, argv []string) ExecResult {
	args := argv[1:]
	newline := true
	interpret := false
	for len(args) > 0 && strings.HasPrefix(args[0], "-") && len(args[0]) > 1 {
		switch args[0] {
		case "-n":
			newline = false
		case "-e":
			interpret = true
		case "-E":
			interpret = false
		default:
			goto doneFlags
		}
		args = args[1:]
	}
doneFlags:
	out := strings.Join(args, " ")
	if interpret {
		out = expandEchoEscapes(out)
	}
	fmt.Fprint(sh.Stdout, out)
	if newline {
		fmt.Fprintln(sh.Stdout)
	}
	return normal(0)
}

func expandEchoEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case 'a':
			b.WriteByte('\a')
		case 'c':
			return b.String()
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// biPrintf implements a pragmatic subset of POSIX printf(1): %s/%d/%i
// %x/%o/%c/%%/%b, field width/precision passed straight through to
// fmt, recycling the format string over surplus arguments the way the
// reference implementation does when more operands remain than
// conversions consumed them.
func biPrintf(sh *Shell, argv []string) ExecResult {
	if len(argv) < 2 {
		return normal(0)
	}
	format := argv[1]
	args := argv[2:]
	for {
		consumed := runPrintfOnce(sh, format, &args)
		if len(args) == 0 || consumed == 0 {
			break
		}
	}
	return normal(0)
}

// runPrintfOnce consumes one pass over format, pulling operands from
// *args as %-conversions are encountered, and returns how many it used.
func runPrintfOnce(sh *Shell, format string, args *[]string) int {
	used := 0
	next := func() string {
		if len(*args) == 0 {
			return ""
		}
		v := (*args)[0]
		*args = (*args)[1:]
		used++
		return v
	}
	var b strings.Builder
	i := 0
	for i < len(format) {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			b.WriteString(expandEchoEscapes(format[i : i+2]))
			i += 2
			continue
		}
		if c != '%' {
			b.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ 0123456789.#", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			b.WriteByte('%')
			break
		}
		spec := format[i : j+1]
		verb := format[j]
		i = j + 1
		switch verb {
		case '%':
			b.WriteByte('%')
		case 's':
			fmt.Fprintf(&b, spec, next())
		case 'd', 'i':
			v, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
			fmt.Fprintf(&b, spec[:len(spec)-1]+"d", v)
		case 'x', 'X', 'o':
			v, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
			fmt.Fprintf(&b, spec, v)
		case 'c':
			s := next()
			if len(s) > 0 {
				b.WriteByte(s[0])
			}
		case 'b':
			b.WriteString(expandEchoEscapes(next()))
		case 'f', 'e', 'g':
			v, _ := strconv.ParseFloat(strings.TrimSpace(next()), 64)
			fmt.Fprintf(&b, spec, v)
		case 'q':
			fmt.Fprintf(&b, "%q", next())
		default:
			b.WriteString(spec)
		}
	}
	fmt.Fprint(sh.Stdout, b.String())
	return used
}

func biRead(sh *Shell, argv []string) ExecResult {
	names := argv[1:]
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	r := sh.Files.Reader(0)
	if r == nil {
		r = sh.Stdin
	}
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	line = strings.TrimRight(line, "\n")
	if err != nil && line == "" {
		return normal(1)
	}
	fields := strings.Fields(line)
	for i, name := range names {
		val := ""
		if i == len(names)-1 && i < len(fields) {
			val = strings.Join(fields[i:], " ")
		} else if i < len(fields) {
			val = fields[i]
		}
		sh.scopes.setAnywhere(name, expand.Variable{Set: true, Kind: expand.String, Str: val}, scopeGlobal)
	}
	return normal(0)
}

// biDeclare backs declare/local/typeset: it applies attribute flags and
// performs assignments in the named scope (`local` forces the
// innermost Local frame per spec.md §3's shadowing rule; declare/
// typeset behave like a plain assignment visible from the call site).
func biDeclare(sh *Shell, argv []string) ExecResult {
	forceLocal := argv[0] == "local"
	i := 1
	var attrs struct{ array, assoc, integer, export, readonly bool }
	for i < len(argv) && strings.HasPrefix(argv[i], "-") && argv[i] != "-" {
		for _, c := range argv[i][1:] {
			switch c {
			case 'a':
				attrs.array = true
			case 'A':
				attrs.assoc = true
			case 'i':
				attrs.integer = true
			case 'x':
				attrs.export = true
			case 'r':
				attrs.readonly = true
			}
		}
		i++
	}
	for _, arg := range argv[i:] {
		name, val, hasVal := cut(arg, '=')
		vr := sh.Get(name)
		vr.Set = true
		vr.Integer = attrs.integer
		vr.Exported = vr.Exported || attrs.export
		vr.ReadOnly = vr.ReadOnly || attrs.readonly
		if hasVal {
			vr.Kind = expand.String
			vr.Str = val
		} else if attrs.array && vr.Kind == expand.Unknown {
			vr.Kind = expand.Indexed
		} else if attrs.assoc && vr.Kind == expand.Unknown {
			vr.Kind = expand.Associative
		}
		if forceLocal {
			sh.setLocal(name, vr)
		} else {
			sh.scopes.setAnywhere(name, vr, scopeGlobal)
		}
	}
	return normal(0)
}

// setLocal creates or updates name in the innermost Local frame,
// bypassing the anywhere-lookup so a function's `local x` always
// shadows an outer global of the same name (spec.md §3).
func (sh *Shell) setLocal(name string, vr expand.Variable) {
	for i := len(sh.scopes.frames) - 1; i >= 0; i-- {
		if sh.scopes.frames[i].kind == scopeLocal {
			sh.scopes.frames[i].values[name] = vr
			return
		}
	}
	sh.scopes.frames[0].values[name] = vr
}

func biPushd(sh *Shell, argv []string) ExecResult {
	if len(argv) < 2 {
		return normal(0)
	}
	sh.dirStack = append([]string{sh.cwd}, sh.dirStack...)
	return biCd(sh, []string{"cd", argv[1]})
}

func biPopd(sh *Shell, argv []string) ExecResult {
	if len(sh.dirStack) == 0 {
		fmt.Fprintln(sh.Stderr, "posh: popd: directory stack empty")
		return normal(1)
	}
	top := sh.dirStack[0]
	sh.dirStack = sh.dirStack[1:]
	return biCd(sh, []string{"cd", top})
}

func biDirs(sh *Shell, argv []string) ExecResult {
	fmt.Fprintln(sh.Stdout, strings.Join(append([]string{sh.cwd}, sh.dirStack...), " "))
	return normal(0)
}

func biWait(sh *Shell, argv []string) ExecResult {
	if len(argv) == 1 {
		sh.Jobs.WaitAll()
		sh.Jobs.Reap()
		return normal(0)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(argv[1], "%"))
	if err != nil {
		return normal(0)
	}
	status, ok := sh.Jobs.Wait(n)
	if !ok {
		return normal(127)
	}
	return normal(status)
}

func biJobs(sh *Shell, argv []string) ExecResult {
	for _, j := range sh.Jobs.List() {
		fmt.Fprintf(sh.Stdout, "[%d]  %s  %s\n", j.ID, j.State, j.Command)
	}
	return normal(0)
}

// biFgBg resumes a stopped or backgrounded job, handing it the
// controlling terminal for fg (spec.md §3's job-control state
// machine). This implementation's jobs run as in-process goroutines
// rather than their own process groups, so there is no real terminal
// handoff to perform; it reports the job's current status instead of
// silently pretending to block on it.
func biFgBg(sh *Shell, argv []string) ExecResult {
	id := 0
	if cur, ok := sh.Jobs.Current(); ok {
		id = cur.ID
	}
	if len(argv) > 1 {
		n, err := strconv.Atoi(strings.TrimPrefix(argv[1], "%"))
		if err == nil {
			id = n
		}
	}
	j, ok := sh.Jobs.Get(id)
	if !ok {
		fmt.Fprintf(sh.Stderr, "posh: %s: no such job\n", argv[0])
		return normal(1)
	}
	fmt.Fprintf(sh.Stdout, "[%d]  %s\n", j.ID, j.Command)
	if argv[0] == "fg" {
		return normal(j.Status)
	}
	return normal(0)
}

func biKill(sh *Shell, argv []string) ExecResult {
	if len(argv) < 2 {
		return normal(1)
	}
	target := argv[len(argv)-1]
	if strings.HasPrefix(target, "%") {
		n, err := strconv.Atoi(strings.TrimPrefix(target, "%"))
		if err != nil {
			fmt.Fprintln(sh.Stderr, "posh: kill:", err)
			return normal(1)
		}
		if _, ok := sh.Jobs.Get(n); !ok {
			fmt.Fprintf(sh.Stderr, "posh: kill: %s: no such job\n", target)
			return normal(1)
		}
		sh.Jobs.MarkDone(n, 143)
		return normal(0)
	}
	pid, err := strconv.Atoi(target)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh: kill:", err)
		return normal(1)
	}
	if err := procutil.KillGroup(pid); err != nil {
		if proc, perr := os.FindProcess(pid); perr == nil {
			proc.Kill()
		} else {
			fmt.Fprintln(sh.Stderr, "posh: kill:", err)
			return normal(1)
		}
	}
	return normal(0)
}

func biTest(sh *Shell, argv []string) ExecResult {
	args := argv[1:]
	if argv[0] == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			fmt.Fprintln(sh.Stderr, "posh: [: missing ]")
			return normal(2)
		}
		args = args[:len(args)-1]
	}
	ok, err := evalTestArgs(args)
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(2)
	}
	if ok {
		return normal(0)
	}
	return normal(1)
}

// evalTestArgs implements the classic POSIX test(1) argument grammar
// directly over already-expanded strings (distinct from the `[[ … ]]`
// AST evaluator in compound.go, which works over unevaluated Words).
func evalTestArgs(a []string) (bool, error) {
	switch len(a) {
	case 0:
		return false, nil
	case 1:
		return a[0] != "", nil
	case 2:
		if a[0] == "!" {
			v, err := evalTestArgs(a[1:])
			return !v, err
		}
		return evalUnaryStr(a[0], a[1])
	case 3:
		return evalBinaryStr(a[0], a[1], a[2])
	default:
		if a[0] == "!" {
			v, err := evalTestArgs(a[1:])
			return !v, err
		}
		return false, fmt.Errorf("test: too many arguments")
	}
}

func evalUnaryStr(op, val string) (bool, error) {
	switch op {
	case "-z":
		return val == "", nil
	case "-n":
		return val != "", nil
	case "-e", "-a":
		_, err := os.Stat(val)
		return err == nil, nil
	case "-f":
		fi, err := os.Stat(val)
		return err == nil && fi.Mode().IsRegular(), nil
	case "-d":
		fi, err := os.Stat(val)
		return err == nil && fi.IsDir(), nil
	case "-r", "-w", "-x":
		return testAccess(val, op), nil
	case "-s":
		fi, err := os.Stat(val)
		return err == nil && fi.Size() > 0, nil
	}
	return false, fmt.Errorf("test: unknown unary operator %s", op)
}

func evalBinaryStr(l, op, r string) (bool, error) {
	switch op {
	case "=", "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		li, err := strconv.Atoi(l)
		if err != nil {
			return false, err
		}
		ri, err := strconv.Atoi(r)
		if err != nil {
			return false, err
		}
		switch op {
		case "-eq":
			return li == ri, nil
		case "-ne":
			return li != ri, nil
		case "-lt":
			return li < ri, nil
		case "-le":
			return li <= ri, nil
		case "-gt":
			return li > ri, nil
		case "-ge":
			return li >= ri, nil
		}
	}
	return false, fmt.Errorf("test: unknown binary operator %s", op)
}

func biType(sh *Shell, argv []string) ExecResult {
	status := 0
	for _, name := range argv[1:] {
		switch {
		case sh.Aliases[name] != "":
			fmt.Fprintf(sh.Stdout, "%s is aliased to `%s'\n", name, sh.Aliases[name])
		case sh.Functions[name] != nil:
			fmt.Fprintf(sh.Stdout, "%s is a function\n", name)
		case sh.Builtins[name] != nil || specialBuiltins[name]:
			fmt.Fprintf(sh.Stdout, "%s is a shell builtin\n", name)
		default:
			if p, err := sh.lookPath(name); err == nil {
				fmt.Fprintf(sh.Stdout, "%s is %s\n", name, p)
			} else {
				fmt.Fprintf(sh.Stderr, "posh: type: %s: not found\n", name)
				status = 1
			}
		}
	}
	return normal(status)
}

func biHash(sh *Shell, argv []string) ExecResult {
	if len(argv) > 1 && argv[1] == "-r" {
		sh.pathCache = map[string]string{}
		return normal(0)
	}
	for name, path := range sh.pathCache {
		fmt.Fprintf(sh.Stdout, "%s\t%s\n", name, path)
	}
	return normal(0)
}

// biGetopts implements the single-pass option scanner spec.md §6
// names, storing state (the scan position) in the OPTIND variable so
// repeated calls within a loop resume where the last left off.
func biGetopts(sh *Shell, argv []string) ExecResult {
	if len(argv) < 3 {
		return normal(2)
	}
	optstring := argv[1]
	varname := argv[2]
	args := sh.positional

	optind := 1
	if v := sh.Get("OPTIND"); v.IsSet() {
		if n, err := strconv.Atoi(v.String()); err == nil {
			optind = n
		}
	}
	if optind-1 >= len(args) {
		return normal(1)
	}
	arg := args[optind-1]
	if len(arg) == 0 || arg[0] != '-' || arg == "-" {
		return normal(1)
	}
	opt := arg[1]
	idx := strings.IndexByte(optstring, opt)
	if idx < 0 {
		sh.Set(varname, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		sh.Set("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(optind + 1)})
		return normal(0)
	}
	sh.Set(varname, expand.Variable{Set: true, Kind: expand.String, Str: string(opt)})
	nextInd := optind + 1
	if idx+1 < len(optstring) && optstring[idx+1] == ':' {
		if len(arg) > 2 {
			sh.Set("OPTARG", expand.Variable{Set: true, Kind: expand.String, Str: arg[2:]})
		} else if optind < len(args) {
			sh.Set("OPTARG", expand.Variable{Set: true, Kind: expand.String, Str: args[optind]})
			nextInd++
		}
	}
	sh.Set("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(nextInd)})
	return normal(0)
}

func biMapfile(sh *Shell, argv []string) ExecResult {
	name := "MAPFILE"
	for _, a := range argv[1:] {
		if !strings.HasPrefix(a, "-") {
			name = a
		}
	}
	r := sh.Files.Reader(0)
	if r == nil {
		r = sh.Stdin
	}
	sc := bufio.NewScanner(r)
	list := map[int]string{}
	i := 0
	for sc.Scan() {
		list[i] = sc.Text()
		i++
	}
	sh.Set(name, expand.Variable{Set: true, Kind: expand.Indexed, List: list})
	return normal(0)
}

func biSource(sh *Shell, argv []string) ExecResult {
	if len(argv) < 2 {
		return normal(1)
	}
	data, err := os.ReadFile(argv[1])
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(1)
	}
	prog, err := syntax.Parse(argv[1], string(data))
	if err != nil {
		fmt.Fprintln(sh.Stderr, "posh:", err)
		return normal(2)
	}
	sh.scriptStack = append(sh.scriptStack, scriptFrame{typ: callSourced, name: argv[1]})
	defer func() { sh.scriptStack = sh.scriptStack[:len(sh.scriptStack)-1] }()
	status, res := sh.execStmts(stmtsOf(prog))
	if res.isReturn() {
		return normal(res.Status)
	}
	if res.Flow == CFNormal {
		return normal(status)
	}
	return res
}

func biAlias(sh *Shell, argv []string) ExecResult {
	if len(argv) == 1 {
		var names []string
		for n := range sh.Aliases {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(sh.Stdout, "alias %s='%s'\n", n, sh.Aliases[n])
		}
		return normal(0)
	}
	for _, arg := range argv[1:] {
		name, val, ok := cut(arg, '=')
		if !ok {
			if v, ok := sh.Aliases[name]; ok {
				fmt.Fprintf(sh.Stdout, "alias %s='%s'\n", name, v)
			}
			continue
		}
		sh.Aliases[name] = val
	}
	return normal(0)
}

func biUnalias(sh *Shell, argv []string) ExecResult {
	for _, name := range argv[1:] {
		delete(sh.Aliases, name)
	}
	return normal(0)
}
