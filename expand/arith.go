package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/posixsh/posh/syntax"
)

// ArithError is returned for division/modulo by zero, matching the
// "fails with DivideByZero" wording of spec.md §4.4.
type ArithError struct{ Msg string }

func (e *ArithError) Error() string { return e.Msg }

// ArithContext is the minimal surface the arithmetic evaluator needs
// from the shell: variable lookup/assignment, keyed by plain string
// values so it stays independent of interp's scope stack.
type ArithContext interface {
	Environ
	SetInt(name string, v int64) error
}

const maxArithDepth = 200

// EvalArith walks an ArithExpr tree, resolving identifiers by
// repeated parameter dereferencing (an unquoted name's string value is
// itself parsed as arithmetic, recursively) per spec.md §4.4.
func EvalArith(e syntax.ArithExpr, ctx ArithContext) (int64, error) {
	return evalArith(e, ctx, 0)
}

func evalArith(e syntax.ArithExpr, ctx ArithContext, depth int) (int64, error) {
	if depth > maxArithDepth {
		return 0, &ArithError{"arithmetic recursion too deep"}
	}
	switch n := e.(type) {
	case *syntax.ArithLit:
		return parseArithLit(n.Value)
	case *syntax.ArithWord:
		return lookupArithVar(n.Name, ctx, depth)
	case *syntax.ArithParen:
		return evalArith(n.X, ctx, depth)
	case *syntax.ArithCommaList:
		var v int64
		var err error
		for _, it := range n.Items {
			v, err = evalArith(it, ctx, depth)
			if err != nil {
				return 0, err
			}
		}
		return v, nil
	case *syntax.ArithUnary:
		return evalUnary(n, ctx, depth)
	case *syntax.ArithBinary:
		return evalBinary(n, ctx, depth)
	case *syntax.ArithAssign:
		return evalAssign(n, ctx, depth)
	case *syntax.ArithTernary:
		c, err := evalArith(n.Cond, ctx, depth)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return evalArith(n.Then, ctx, depth)
		}
		return evalArith(n.Else, ctx, depth)
	default:
		return 0, fmt.Errorf("expand: unhandled arithmetic node %T", e)
	}
}

func parseArithLit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.Contains(s, "#"):
		parts := strings.SplitN(s, "#", 2)
		if b, err := strconv.Atoi(parts[0]); err == nil {
			base, s = b, parts[1]
		}
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		if u, uerr := strconv.ParseUint(s, base, 64); uerr == nil {
			return int64(u), nil
		}
		return 0, fmt.Errorf("expand: invalid arithmetic literal %q", s)
	}
	return v, nil
}

// lookupArithVar resolves an identifier by recursively parsing its
// string value as arithmetic, bounded by depth to prevent cycles
// (spec.md §4.4).
func lookupArithVar(name string, ctx ArithContext, depth int) (int64, error) {
	vr := ctx.Get(name)
	if !vr.IsSet() {
		return 0, nil
	}
	s := vr.String()
	if s == "" {
		return 0, nil
	}
	if s == name {
		return 0, nil // self-referential, avoid infinite loop
	}
	sub, err := syntax.ParseArith(s, 0)
	if err != nil {
		// Not itself a valid expression; bash treats this as a
		// syntax error, but for robustness treat as its own string
		// value failing to parse as zero.
		return 0, nil
	}
	return evalArith(sub, ctx, depth+1)
}

func evalUnary(n *syntax.ArithUnary, ctx ArithContext, depth int) (int64, error) {
	switch n.Op {
	case syntax.ArithPreInc, syntax.ArithPreDec, syntax.ArithPostInc, syntax.ArithPostDec:
		return evalIncDec(n, ctx, depth)
	}
	v, err := evalArith(n.X, ctx, depth)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case syntax.ArithNeg:
		return -v, nil
	case syntax.ArithPos:
		return v, nil
	case syntax.ArithNot:
		return boolInt(v == 0), nil
	case syntax.ArithBitNot:
		return ^v, nil
	}
	return 0, fmt.Errorf("expand: unhandled unary op %v", n.Op)
}

func evalIncDec(n *syntax.ArithUnary, ctx ArithContext, depth int) (int64, error) {
	word, ok := n.X.(*syntax.ArithWord)
	if !ok {
		return 0, fmt.Errorf("expand: ++/-- requires an lvalue")
	}
	cur, err := lookupArithVar(word.Name, ctx, depth)
	if err != nil {
		return 0, err
	}
	var next int64
	switch n.Op {
	case syntax.ArithPreInc, syntax.ArithPostInc:
		next = cur + 1
	default:
		next = cur - 1
	}
	if err := ctx.SetInt(word.Name, next); err != nil {
		return 0, err
	}
	if n.Post {
		return cur, nil
	}
	return next, nil
}

func evalBinary(n *syntax.ArithBinary, ctx ArithContext, depth int) (int64, error) {
	// Short-circuit && and ||.
	if n.Op == syntax.ArithLand || n.Op == syntax.ArithLor {
		x, err := evalArith(n.X, ctx, depth)
		if err != nil {
			return 0, err
		}
		if n.Op == syntax.ArithLand && x == 0 {
			return 0, nil
		}
		if n.Op == syntax.ArithLor && x != 0 {
			return 1, nil
		}
		y, err := evalArith(n.Y, ctx, depth)
		if err != nil {
			return 0, err
		}
		if n.Op == syntax.ArithLand {
			return boolInt(y != 0), nil
		}
		return boolInt(y != 0), nil
	}
	x, err := evalArith(n.X, ctx, depth)
	if err != nil {
		return 0, err
	}
	y, err := evalArith(n.Y, ctx, depth)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case syntax.ArithAdd:
		return x + y, nil
	case syntax.ArithSub:
		return x - y, nil
	case syntax.ArithMul:
		return x * y, nil
	case syntax.ArithQuo:
		if y == 0 {
			return 0, &ArithError{"division by zero"}
		}
		return x / y, nil
	case syntax.ArithRem:
		if y == 0 {
			return 0, &ArithError{"division by zero"}
		}
		return x % y, nil
	case syntax.ArithPow:
		return ipow(x, y), nil
	case syntax.ArithAnd:
		return x & y, nil
	case syntax.ArithOr:
		return x | y, nil
	case syntax.ArithXor:
		return x ^ y, nil
	case syntax.ArithShl:
		return int64(uint64(x) << uint64(y%64)), nil
	case syntax.ArithShr:
		return x >> uint64(y%64), nil
	case syntax.ArithEql:
		return boolInt(x == y), nil
	case syntax.ArithNeq:
		return boolInt(x != y), nil
	case syntax.ArithLss:
		return boolInt(x < y), nil
	case syntax.ArithGtr:
		return boolInt(x > y), nil
	case syntax.ArithLeq:
		return boolInt(x <= y), nil
	case syntax.ArithGeq:
		return boolInt(x >= y), nil
	case syntax.ArithComma:
		return y, nil
	}
	return 0, fmt.Errorf("expand: unhandled binary op %v", n.Op)
}

// ipow computes x**y with wraparound on overflow, matching the
// 64-bit-wrapping choice spec.md §9 fixes for this implementation.
func ipow(x, y int64) int64 {
	if y < 0 {
		return 0
	}
	var r int64 = 1
	for ; y > 0; y-- {
		r *= x
	}
	return r
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func evalAssign(n *syntax.ArithAssign, ctx ArithContext, depth int) (int64, error) {
	cur, err := lookupArithVar(n.X.Name, ctx, depth)
	if err != nil {
		return 0, err
	}
	rhs, err := evalArith(n.Y, ctx, depth)
	if err != nil {
		return 0, err
	}
	var next int64
	switch n.Op {
	case syntax.AssignSet:
		next = rhs
	case syntax.AssignAdd:
		next = cur + rhs
	case syntax.AssignSub:
		next = cur - rhs
	case syntax.AssignMul:
		next = cur * rhs
	case syntax.AssignQuo:
		if rhs == 0 {
			return 0, &ArithError{"division by zero"}
		}
		next = cur / rhs
	case syntax.AssignRem:
		if rhs == 0 {
			return 0, &ArithError{"division by zero"}
		}
		next = cur % rhs
	case syntax.AssignAnd:
		next = cur & rhs
	case syntax.AssignOr:
		next = cur | rhs
	case syntax.AssignXor:
		next = cur ^ rhs
	case syntax.AssignShl:
		next = int64(uint64(cur) << uint64(rhs%64))
	case syntax.AssignShr:
		next = cur >> uint64(rhs%64)
	}
	if err := ctx.SetInt(n.X.Name, next); err != nil {
		return 0, err
	}
	return next, nil
}
