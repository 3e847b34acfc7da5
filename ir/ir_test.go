package ir

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/opcodes"
)

func maxUint256() uint256.Int {
	var zero, max uint256.Int
	max.Not(&zero)
	return max
}

func singleAssignFunction(value Expr) *Function {
	return &Function{
		Blocks: []*Block{
			{PC: 0, Stmts: []Stmt{Assign{Name: "var_0", Value: value}}},
		},
	}
}

func TestConstantFoldEvaluatesArithmetic(t *testing.T) {
	fn := singleAssignFunction(BinOp{Op: opcodes.ADD, X: ConstFromUint64(10), Y: ConstFromUint64(32)})
	ConstantFold{}.Run(fn)

	got, ok := fn.Blocks[0].Stmts[0].(Assign).Value.(Const)
	if !ok {
		t.Fatalf("expected folded Const, got %T", fn.Blocks[0].Stmts[0].(Assign).Value)
	}
	if !got.Value.Eq(uint256.NewInt(42)) {
		t.Fatalf("got %s, want 42", got.Value.String())
	}
}

func TestConstantFoldLeavesDivisionByZeroUnfolded(t *testing.T) {
	fn := singleAssignFunction(BinOp{Op: opcodes.DIV, X: ConstFromUint64(10), Y: ConstFromUint64(0)})
	changed := ConstantFold{}.Run(fn)
	if changed {
		t.Fatalf("division by zero must not be folded")
	}
}

func TestAlgebraicSimplifiesAdditiveIdentity(t *testing.T) {
	x := Var{Name: "x"}
	fn := singleAssignFunction(BinOp{Op: opcodes.ADD, X: x, Y: ConstFromUint64(0)})
	Algebraic{}.Run(fn)

	got := fn.Blocks[0].Stmts[0].(Assign).Value
	if v, ok := got.(Var); !ok || v.Name != "x" {
		t.Fatalf("x+0 did not simplify to x, got %#v", got)
	}
}

func TestAlgebraicSimplifiesSelfSubtraction(t *testing.T) {
	x := Var{Name: "x"}
	fn := singleAssignFunction(BinOp{Op: opcodes.SUB, X: x, Y: x})
	Algebraic{}.Run(fn)

	got := fn.Blocks[0].Stmts[0].(Assign).Value
	c, ok := got.(Const)
	if !ok || !c.Value.IsZero() {
		t.Fatalf("x-x did not simplify to 0, got %#v", got)
	}
}

func TestBitwiseCastRecognizesAddressMask(t *testing.T) {
	var mask uint256.Int
	mask.SetAllOne()
	var shifted uint256.Int
	shifted.Rsh(&mask, 256-160) // low 20 bytes set, matches AND(x, 0xffff...ff 20 bytes)

	x := Var{Name: "x"}
	fn := singleAssignFunction(BinOp{Op: opcodes.AND, X: x, Y: Const{Value: shifted}})
	BitwiseCast{}.Run(fn)

	got := fn.Blocks[0].Stmts[0].(Assign).Value
	c, ok := got.(Cast)
	if !ok || c.Type != Address {
		t.Fatalf("expected Cast(Address, x), got %#v", got)
	}
}

func TestBitwiseCastRecognizesXorMaxAsNot(t *testing.T) {
	x := Var{Name: "x"}
	fn := singleAssignFunction(BinOp{Op: opcodes.XOR, X: x, Y: Const{Value: maxUint256()}})
	BitwiseCast{}.Run(fn)

	got := fn.Blocks[0].Stmts[0].(Assign).Value
	u, ok := got.(UnOp)
	if !ok || u.Op != opcodes.NOT {
		t.Fatalf("expected UnOp(NOT, x), got %#v", got)
	}
}

func TestStrengthReductionRewritesPowerOfTwoMultiply(t *testing.T) {
	x := Var{Name: "x"}
	fn := singleAssignFunction(BinOp{Op: opcodes.MUL, X: x, Y: ConstFromUint64(8)})
	StrengthReduction{}.Run(fn)

	got := fn.Blocks[0].Stmts[0].(Assign).Value
	b, ok := got.(BinOp)
	if !ok || b.Op != opcodes.SHL {
		t.Fatalf("expected SHL, got %#v", got)
	}
	shiftAmount, ok := b.X.(Const)
	if !ok || !shiftAmount.Value.Eq(uint256.NewInt(3)) {
		t.Fatalf("expected shift amount 3, got %#v", b.X)
	}
}

func TestDeadVarElimRemovesUnusedSyntheticAssign(t *testing.T) {
	fn := &Function{
		Blocks: []*Block{
			{PC: 0, Stmts: []Stmt{
				Assign{Name: "var_0", Value: ConstFromUint64(1)},
				Assign{Name: "var_1", Value: BinOp{Op: opcodes.ADD, X: Var{Name: "var_0"}, Y: ConstFromUint64(1)}},
				Return{Values: []Expr{Var{Name: "var_1"}}},
			}},
		},
	}
	DeadVarElim{}.Run(fn)
	if len(fn.Blocks[0].Stmts) != 3 {
		t.Fatalf("var_0 and var_1 are both used (var_1 by Return, var_0 by var_1's Value), expected no removal, got %d stmts", len(fn.Blocks[0].Stmts))
	}

	fn2 := &Function{
		Blocks: []*Block{
			{PC: 0, Stmts: []Stmt{
				Assign{Name: "var_0", Value: ConstFromUint64(1)},
				Return{Values: []Expr{ConstFromUint64(2)}},
			}},
		},
	}
	DeadVarElim{}.Run(fn2)
	if len(fn2.Blocks[0].Stmts) != 1 {
		t.Fatalf("expected the unused var_0 assignment removed, got %d stmts", len(fn2.Blocks[0].Stmts))
	}
}

func TestRunToFixpointIsIdempotentOnAlreadyOptimizedIR(t *testing.T) {
	// var_0 is returned, so DeadVarElim keeps the assignment in place.
	fn := &Function{
		Blocks: []*Block{
			{PC: 0, Stmts: []Stmt{
				Assign{Name: "var_0", Value: BinOp{Op: opcodes.ADD, X: Var{Name: "x"}, Y: ConstFromUint64(0)}},
				Return{Values: []Expr{Var{Name: "var_0"}}},
			}},
		},
	}
	passes := []Pass{ConstantFold{}, Algebraic{}, BitwiseCast{}, StrengthReduction{}, DeadVarElim{}}

	RunToFixpoint(fn, passes...)
	snapshot := fn.Blocks[0].Stmts[0].(Assign).Value

	sweeps := RunToFixpoint(fn, passes...)
	if sweeps != 1 {
		t.Fatalf("re-running the pass manager on optimized IR should be a single no-op sweep, took %d", sweeps)
	}
	if again := fn.Blocks[0].Stmts[0].(Assign).Value; !exprEqual(snapshot, again) {
		t.Fatalf("re-running passes changed an already-optimized expression")
	}
}
