package ir

import (
	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/opcodes"
)

// Pass is one idempotent, order-independent rewrite over a Function.
// Run reports whether it changed anything, which RunToFixpoint uses to
// decide when to stop sweeping.
type Pass interface {
	Name() string
	Run(fn *Function) bool
}

// maxSweeps bounds RunToFixpoint against a pathological (non-converging)
// pass interaction; real passes here are all confluent and terminate in
// a handful of sweeps.
const maxSweeps = 1000

// RunToFixpoint runs passes repeatedly until a full sweep makes no
// change, and returns the number of sweeps performed.
func RunToFixpoint(fn *Function, passes ...Pass) int {
	sweeps := 0
	for sweeps < maxSweeps {
		sweeps++
		changed := false
		for _, p := range passes {
			if p.Run(fn) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return sweeps
}

// expFuelLimit bounds constant-folded EXP so a bytecode literal like
// `PUSH32 <huge> EXP` can't blow up fold time; larger exponents are left
// unfolded, same as division/modulo by zero.
const expFuelLimit = 1024

// ConstantFold evaluates BinOp/UnOp nodes whose operands are already
// Const.
type ConstantFold struct{}

func (ConstantFold) Name() string { return "constant-fold" }
func (ConstantFold) Run(fn *Function) bool {
	return ApplyExprRewrite(fn, foldConst)
}

func foldConst(e Expr) (Expr, bool) {
	switch n := e.(type) {
	case UnOp:
		c, ok := n.X.(Const)
		if !ok {
			return e, false
		}
		switch n.Op {
		case opcodes.ISZERO:
			if c.Value.IsZero() {
				return ConstFromUint64(1), true
			}
			return ConstFromUint64(0), true
		case opcodes.NOT:
			var out uint256.Int
			out.Not(&c.Value)
			return Const{Value: out}, true
		}
	case BinOp:
		cx, okx := n.X.(Const)
		cy, oky := n.Y.(Const)
		if !okx || !oky {
			return e, false
		}
		var out uint256.Int
		switch n.Op {
		case opcodes.ADD:
			out.Add(&cx.Value, &cy.Value)
		case opcodes.SUB:
			out.Sub(&cx.Value, &cy.Value)
		case opcodes.MUL:
			out.Mul(&cx.Value, &cy.Value)
		case opcodes.DIV:
			if cy.Value.IsZero() {
				return e, false
			}
			out.Div(&cx.Value, &cy.Value)
		case opcodes.MOD:
			if cy.Value.IsZero() {
				return e, false
			}
			out.Mod(&cx.Value, &cy.Value)
		case opcodes.SDIV:
			if cy.Value.IsZero() {
				return e, false
			}
			out.SDiv(&cx.Value, &cy.Value)
		case opcodes.SMOD:
			if cy.Value.IsZero() {
				return e, false
			}
			out.SMod(&cx.Value, &cy.Value)
		case opcodes.EXP:
			v, ok := boundedExp(cx.Value, cy.Value)
			if !ok {
				return e, false
			}
			out = v
		case opcodes.AND:
			out.And(&cx.Value, &cy.Value)
		case opcodes.OR:
			out.Or(&cx.Value, &cy.Value)
		case opcodes.XOR:
			out.Xor(&cx.Value, &cy.Value)
		case opcodes.LT:
			return boolConst(cx.Value.Lt(&cy.Value)), true
		case opcodes.GT:
			return boolConst(cx.Value.Gt(&cy.Value)), true
		case opcodes.EQ:
			return boolConst(cx.Value.Eq(&cy.Value)), true
		default:
			return e, false
		}
		return Const{Value: out}, true
	}
	return e, false
}

func boolConst(v bool) Const {
	if v {
		return ConstFromUint64(1)
	}
	return ConstFromUint64(0)
}

func boundedExp(base, exp uint256.Int) (uint256.Int, bool) {
	e64, overflow := exp.Uint64WithOverflow()
	if overflow || e64 > expFuelLimit {
		return uint256.Int{}, false
	}
	var out uint256.Int
	out.Exp(&base, &exp)
	return out, true
}

// Algebraic applies the identity simplifications spec.md §4.9 lists:
// x+0, x*1, x/1, x**1, x**0 and duals; x-x=0, x/x=1, x^x=0, x|x=x,
// x&x=x; plus double-NOT cancellation (the AST has no parenthesization
// to clean up, unlike the string-based original this was distilled
// from, so that item is a no-op here).
type Algebraic struct{}

func (Algebraic) Name() string { return "algebraic" }
func (Algebraic) Run(fn *Function) bool {
	return ApplyExprRewrite(fn, algebraicSimplify)
}

func isConstVal(e Expr, v uint64) bool {
	c, ok := e.(Const)
	if !ok {
		return false
	}
	want := uint256.NewInt(v)
	return c.Value.Eq(want)
}

func algebraicSimplify(e Expr) (Expr, bool) {
	switch n := e.(type) {
	case BinOp:
		switch n.Op {
		case opcodes.ADD:
			if isConstVal(n.Y, 0) {
				return n.X, true
			}
			if isConstVal(n.X, 0) {
				return n.Y, true
			}
		case opcodes.SUB:
			if isConstVal(n.Y, 0) {
				return n.X, true
			}
			if exprEqual(n.X, n.Y) {
				return ConstFromUint64(0), true
			}
		case opcodes.MUL:
			if isConstVal(n.Y, 1) {
				return n.X, true
			}
			if isConstVal(n.X, 1) {
				return n.Y, true
			}
		case opcodes.DIV:
			if isConstVal(n.Y, 1) {
				return n.X, true
			}
			if exprEqual(n.X, n.Y) {
				return ConstFromUint64(1), true
			}
		case opcodes.EXP:
			if isConstVal(n.Y, 1) {
				return n.X, true
			}
			if isConstVal(n.Y, 0) {
				return ConstFromUint64(1), true
			}
		case opcodes.XOR:
			if exprEqual(n.X, n.Y) {
				return ConstFromUint64(0), true
			}
		case opcodes.OR:
			if exprEqual(n.X, n.Y) {
				return n.X, true
			}
		case opcodes.AND:
			if exprEqual(n.X, n.Y) {
				return n.X, true
			}
		}
	case UnOp:
		if n.Op == opcodes.NOT {
			if inner, ok := n.X.(UnOp); ok && inner.Op == opcodes.NOT {
				return inner.X, true
			}
		}
	}
	return e, false
}

// BitwiseCast recognizes type-narrowing masks: AND against a contiguous
// all-ones byte mask becomes a Cast(Bytes(k)), a 20-byte mask becomes
// Cast(Address); XOR against the all-ones word becomes bitwise NOT.
type BitwiseCast struct{}

func (BitwiseCast) Name() string { return "bitwise-to-cast" }
func (BitwiseCast) Run(fn *Function) bool {
	return ApplyExprRewrite(fn, bitwiseCast)
}

func bitwiseCast(e Expr) (Expr, bool) {
	bin, ok := e.(BinOp)
	if !ok {
		return e, false
	}
	switch bin.Op {
	case opcodes.AND:
		if w, ok2 := maskWidth(bin.Y); ok2 {
			return applyMaskCast(bin.X, w), true
		}
		if w, ok2 := maskWidth(bin.X); ok2 {
			return applyMaskCast(bin.Y, w), true
		}
	case opcodes.XOR:
		if isMaxConst(bin.Y) {
			return UnOp{Op: opcodes.NOT, X: bin.X}, true
		}
		if isMaxConst(bin.X) {
			return UnOp{Op: opcodes.NOT, X: bin.Y}, true
		}
	}
	return e, false
}

func applyMaskCast(x Expr, width int) Expr {
	if width == 20 {
		return Cast{Type: Address, Value: x}
	}
	return Cast{Type: Bytes(width), Value: x}
}

// maskWidth reports the width, in bytes, of a right-aligned run of
// 0xFF bytes, i.e. a type-narrowing mask such as the common
// `AND(x, 0xffff...ff)` prelude to a smaller integer or address type.
func maskWidth(e Expr) (int, bool) {
	c, ok := e.(Const)
	if !ok {
		return 0, false
	}
	b := c.Value.Bytes32()
	n := 0
	for i := 31; i >= 0; i-- {
		switch b[i] {
		case 0xff:
			n++
		case 0x00:
			return n, n > 0
		default:
			return 0, false
		}
	}
	return n, n > 0
}

func isMaxConst(e Expr) bool {
	c, ok := e.(Const)
	if !ok {
		return false
	}
	var zero, max uint256.Int
	max.Not(&zero)
	return c.Value.Eq(&max)
}

// StrengthReduction turns power-of-two MUL/DIV/MOD into shifts and
// masks, and x*MAX into two's-complement negation.
type StrengthReduction struct{}

func (StrengthReduction) Name() string { return "strength-reduction" }
func (StrengthReduction) Run(fn *Function) bool {
	return ApplyExprRewrite(fn, strengthReduce)
}

func strengthReduce(e Expr) (Expr, bool) {
	bin, ok := e.(BinOp)
	if !ok {
		return e, false
	}
	switch bin.Op {
	case opcodes.MUL:
		if k, ok2 := powerOfTwo(bin.Y); ok2 {
			return BinOp{Op: opcodes.SHL, X: ConstFromUint64(uint64(k)), Y: bin.X}, true
		}
		if k, ok2 := powerOfTwo(bin.X); ok2 {
			return BinOp{Op: opcodes.SHL, X: ConstFromUint64(uint64(k)), Y: bin.Y}, true
		}
		if isMaxConst(bin.Y) {
			return BinOp{Op: opcodes.SUB, X: ConstFromUint64(0), Y: bin.X}, true
		}
		if isMaxConst(bin.X) {
			return BinOp{Op: opcodes.SUB, X: ConstFromUint64(0), Y: bin.Y}, true
		}
	case opcodes.DIV:
		if k, ok2 := powerOfTwo(bin.Y); ok2 {
			return BinOp{Op: opcodes.SHR, X: ConstFromUint64(uint64(k)), Y: bin.X}, true
		}
	case opcodes.MOD:
		if k, ok2 := powerOfTwo(bin.Y); ok2 {
			var one, pow, mask uint256.Int
			one.SetUint64(1)
			pow.SetUint64(1)
			pow.Lsh(&pow, uint(k))
			mask.Sub(&pow, &one)
			return BinOp{Op: opcodes.AND, X: bin.X, Y: Const{Value: mask}}, true
		}
	}
	return e, false
}

// powerOfTwo reports log2(v) if e is a Const whose value is an exact
// power of two.
func powerOfTwo(e Expr) (int, bool) {
	c, ok := e.(Const)
	if !ok {
		return 0, false
	}
	v := c.Value
	if v.IsZero() {
		return 0, false
	}
	var one, vMinus1, and uint256.Int
	one.SetUint64(1)
	vMinus1.Sub(&v, &one)
	and.And(&v, &vMinus1)
	if !and.IsZero() {
		return 0, false
	}
	return v.BitLen() - 1, true
}
