package decompile

import (
	"context"
	"fmt"

	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/snapshot"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// Builder accumulates one Function's IR while walking a VMTrace.
// Shared analyzer state lives here: conditionalStack is implicit in the
// recursion itself (each nested If/While's Then/Else is built by a
// fresh recursive call), matching spec.md §4.8's "stack of open scopes"
// without needing an explicit mutable stack field.
type Builder struct {
	ctx      context.Context
	snapshot *snapshot.AnalyzedFunction
	pipeline []Heuristic
	fn       *ir.Function
	notices  []string
}

// NewVar allocates the next synthetic variable for the function under
// construction, per ir.Function.NewVar.
func (b *Builder) NewVar() ir.Var { return b.fn.NewVar() }

// walk converts one VMTrace node (and everything below it) into a
// statement list. At a fork, branch walks the taken side before the
// fall-through side (an If's Then is the taken branch), which is the
// reverse of the order symbolic.VMTrace stores the children in.
func (b *Builder) walk(t *symbolic.VMTrace) []ir.Stmt {
	if t == nil {
		return nil
	}

	ops := t.Operations
	n := len(ops)
	branching := len(t.Children) == 2
	if branching && n > 0 && ops[n-1].Instruction.Opcode == opcodes.JUMPI {
		n-- // the JUMPI itself becomes the If/While condition, not a Stmt
	}

	var stmts []ir.Stmt
	for _, st := range ops[:n] {
		s, _ := b.statementsFor(st)
		stmts = append(stmts, s...)
	}

	switch {
	case !branching:
		stmts = append(stmts, b.terminal(t)...)
	default:
		stmts = append(stmts, b.branch(t, ops[n].Instruction)...)
	}
	return stmts
}

// branch renders the JUMPI at the end of t's own operations as either a
// While loop (loop_heuristic, spec.md §4.8 item 6) or a structured If,
// and records a modifier notice (item 4) when the guard matches a
// recognized require() pattern.
func (b *Builder) branch(t *symbolic.VMTrace, jumpi vm.Instruction) []ir.Stmt {
	fallThrough, taken := t.Children[0], t.Children[1]
	cond := b.expr(jumpi.InputOperations[1])

	b.detectModifier(cond, fallThrough, taken)

	if allLoopCutoff(taken) && !allLoopCutoff(fallThrough) {
		body := b.walk(taken)
		return append([]ir.Stmt{ir.While{Cond: cond, Body: suppressInduction(body)}}, b.walk(fallThrough)...)
	}
	if allLoopCutoff(fallThrough) && !allLoopCutoff(taken) {
		body := b.walk(fallThrough)
		negated := ir.UnOp{Op: opcodes.ISZERO, X: cond}
		return append([]ir.Stmt{ir.While{Cond: negated, Body: suppressInduction(body)}}, b.walk(taken)...)
	}

	return []ir.Stmt{ir.If{Cond: cond, Then: b.walk(taken), Else: b.walk(fallThrough)}}
}

// allLoopCutoff reports whether every leaf reachable from t terminated
// via a §4.4 loop-detection predicate — the signature of "this subtree
// is the rest of a loop body that the executor gave up unrolling",
// which the loop_heuristic treats as the loop's own continuation arm.
func allLoopCutoff(t *symbolic.VMTrace) bool {
	leaves := t.Leaves()
	if len(leaves) == 0 {
		return false
	}
	for _, l := range leaves {
		if l.Leaf == nil || l.Leaf.Reason != symbolic.ReasonLoopCutoff {
			return false
		}
	}
	return true
}

// suppressInduction drops a trailing bare Store/Assign from a loop
// body: the common `i = i + 1` / `storage[slot] = storage[slot] + 1`
// induction update that spec.md §4.8 item 6 says the for-loop heading
// itself should absorb instead of restating in the body. This is a
// best-effort textual simplification, not a data-flow proof.
func suppressInduction(body []ir.Stmt) []ir.Stmt {
	if len(body) == 0 {
		return body
	}
	switch body[len(body)-1].(type) {
	case ir.Assign, ir.Store:
		return body[:len(body)-1]
	default:
		return body
	}
}

// panicSelector is Solidity >=0.8's Panic(uint256) error selector,
// keccak256("Panic(uint256)")[:4], spec.md §9's "Panic code" GLOSSARY
// entry.
var panicSelector = [4]byte{0x4e, 0x48, 0x7b, 0x71}

// terminal renders a leaf VMTrace node's exit as Return/Revert, eliding
// the Solidity >=0.8 overflow/div-by-zero panic-check boilerplate
// (spec.md §4.8 item 6, §9 Open Question on the exact matcher — pinned
// here to exactly reason codes 0x11 (arithmetic overflow/underflow) and
// 0x12 (division or modulo by zero); other panic codes, e.g. 0x01
// assert or 0x32 out-of-bounds, are rendered as ordinary reverts) and
// the "not a theorem prover" cutoff/timeout leaves, which simply end
// the branch with nothing to render.
func (b *Builder) terminal(t *symbolic.VMTrace) []ir.Stmt {
	if t.Leaf == nil || t.Leaf.Reason != symbolic.ReasonExit {
		return nil
	}
	var last *vm.Instruction
	if len(t.Operations) > 0 {
		last = &t.Operations[len(t.Operations)-1].Instruction
	}
	switch t.Leaf.ExitCode {
	case vm.ExitReturn:
		if last == nil || len(last.InputOperations) < 1 {
			return []ir.Stmt{ir.Return{}}
		}
		return []ir.Stmt{ir.Return{Values: []ir.Expr{
			ir.Load{Type: ir.Word, Space: ir.SpaceMemory, Addr: b.expr(last.InputOperations[0])},
		}}}
	case vm.ExitRevert:
		if last == nil || len(last.InputOperations) < 1 {
			return []ir.Stmt{ir.Revert{}}
		}
		if code, ok := panicCode(t.Operations); ok && (code == 0x11 || code == 0x12) {
			b.notices = append(b.notices, fmt.Sprintf("elided Solidity panic(0x%02x) check", code))
			return nil
		}
		return []ir.Stmt{ir.Revert{Data: ir.Load{Type: ir.Word, Space: ir.SpaceMemory, Addr: b.expr(last.InputOperations[0])}}}
	case vm.ExitStop:
		return []ir.Stmt{ir.Return{}}
	default:
		// VmFault (stack/gas/jump/memory fault): spec.md §7 says these
		// end the branch as a leaf without a language-level construct
		// to name; a bare revert is the closest pseudocode analogue.
		return []ir.Stmt{ir.Revert{}}
	}
}

// panicCode scans ops for the MSTORE(0, panicSelector<<224) prelude
// of a REVERT(0, 0x24), mirroring snapshot.recordRevert's custom-error
// recognition but specialized to the Panic(uint256) selector. The
// reason code is the low byte of the last word stored at offset 4.
func panicCode(ops []symbolic.State) (byte, bool) {
	var reason byte
	haveReason := false
	for i := len(ops) - 1; i >= 0; i-- {
		ins := ops[i].Instruction
		if ins.Opcode != opcodes.MSTORE || len(ins.Inputs) != 2 {
			continue
		}
		word := ins.Inputs[1].Bytes32()
		if word[0] == panicSelector[0] && word[1] == panicSelector[1] &&
			word[2] == panicSelector[2] && word[3] == panicSelector[3] {
			return reason, true
		}
		if ins.Inputs[0].IsUint64() && ins.Inputs[0].Uint64() == 4 {
			if !haveReason {
				reason, haveReason = word[31], true
			}
			continue
		}
		if !ins.Inputs[0].IsZero() {
			continue
		}
		return 0, false
	}
	return 0, false
}

// detectModifier recognizes the two require() guard shapes spec.md
// §4.8 item 4 names and records a notice; it does not rewrite the
// statement tree (the If/While is still emitted in full), matching
// spec.md §4.7's payable-guard treatment of the same family of checks.
func (b *Builder) detectModifier(cond ir.Expr, fallThrough, taken *symbolic.VMTrace) {
	if _, ok := guardedRevertBranch(fallThrough, taken); !ok {
		return
	}
	switch {
	case containsOp(cond, opcodes.CALLVALUE):
		b.notices = append(b.notices, "require(msg.value == 0)")
	case containsOp(cond, opcodes.CALLER):
		b.notices = append(b.notices, "require(msg.sender == <address>)")
	}
}

// guardedRevertBranch reports whether exactly one side of a fork is a
// leaf that exits with REVERT, however many instructions it ran (the
// other side being the function's normal continuation) — the shape of
// a require()-style guard.
func guardedRevertBranch(fallThrough, taken *symbolic.VMTrace) (*symbolic.VMTrace, bool) {
	isPureRevert := func(t *symbolic.VMTrace) bool {
		return t.IsLeaf() && t.Leaf.Reason == symbolic.ReasonExit && t.Leaf.ExitCode == vm.ExitRevert
	}
	switch {
	case isPureRevert(taken) && !isPureRevert(fallThrough):
		return taken, true
	case isPureRevert(fallThrough) && !isPureRevert(taken):
		return fallThrough, true
	default:
		return nil, false
	}
}

func containsOp(e ir.Expr, op opcodes.OpCode) bool {
	switch n := e.(type) {
	case ir.BinOp:
		return containsOp(n.X, op) || containsOp(n.Y, op)
	case ir.UnOp:
		return containsOp(n.X, op)
	case ir.Cast:
		return containsOp(n.Value, op)
	case ir.Call:
		if n.Op == op {
			return true
		}
		for _, a := range n.Args {
			if containsOp(a, op) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// expr converts an opcode provenance DAG (opcodes.WrappedOpcode) into
// the decompiler's own IR expression tree. Each WrappedOpcode already
// carries its full operand history, so this is a straightforward
// recursive translation, not a re-derivation.
func (b *Builder) expr(w opcodes.WrappedOpcode) ir.Expr {
	if w.Constant != nil {
		return ir.Const{Value: *w.Constant}
	}

	switch w.Op {
	case opcodes.CALLDATALOAD:
		if len(w.Inputs) == 1 {
			return ir.Load{Type: ir.Word, Addr: b.expr(w.Inputs[0])}
		}
	case opcodes.SLOAD:
		if len(w.Inputs) == 1 {
			return ir.Load{Type: ir.Word, Space: ir.SpaceStorage, Addr: b.expr(w.Inputs[0])}
		}
	case opcodes.MLOAD:
		if len(w.Inputs) == 1 {
			return ir.Load{Type: ir.Word, Space: ir.SpaceMemory, Addr: b.expr(w.Inputs[0])}
		}
	case opcodes.ISZERO:
		if len(w.Inputs) == 1 {
			return ir.UnOp{Op: opcodes.ISZERO, X: b.expr(w.Inputs[0])}
		}
	case opcodes.NOT:
		if len(w.Inputs) == 1 {
			return ir.UnOp{Op: opcodes.NOT, X: b.expr(w.Inputs[0])}
		}
	case opcodes.ADD, opcodes.SUB, opcodes.MUL, opcodes.DIV, opcodes.SDIV, opcodes.MOD, opcodes.SMOD,
		opcodes.AND, opcodes.OR, opcodes.XOR, opcodes.SHL, opcodes.SHR, opcodes.SAR,
		opcodes.LT, opcodes.GT, opcodes.SLT, opcodes.SGT, opcodes.EQ, opcodes.EXP, opcodes.BYTE,
		opcodes.SIGNEXTEND:
		if len(w.Inputs) == 2 {
			return ir.BinOp{Op: w.Op, X: b.expr(w.Inputs[0]), Y: b.expr(w.Inputs[1])}
		}
	case opcodes.ADDMOD, opcodes.MULMOD:
		if len(w.Inputs) == 3 {
			// No ternary arithmetic node exists; fold to nested BinOps
			// (x OP y) MOD z, a faithful-enough pseudocode rendering.
			inner := opcodes.OpCode(opcodes.ADD)
			if w.Op == opcodes.MULMOD {
				inner = opcodes.MUL
			}
			return ir.BinOp{Op: opcodes.MOD,
				X: ir.BinOp{Op: inner, X: b.expr(w.Inputs[0]), Y: b.expr(w.Inputs[1])},
				Y: b.expr(w.Inputs[2]),
			}
		}
	case opcodes.SHA3:
		args := make([]ir.Expr, len(w.Inputs))
		for i, in := range w.Inputs {
			args[i] = b.expr(in)
		}
		return ir.Call{Op: opcodes.SHA3, Name: "keccak256", Args: args}
	}

	// Generic fallback for opcodes with no dedicated node shape
	// (environment accessors, ADDRESS/CALLER/TIMESTAMP/..., and any
	// opcode not special-cased above): represent as a zero-arg or
	// n-arg Call so the rendered text still names the opcode.
	args := make([]ir.Expr, len(w.Inputs))
	for i, in := range w.Inputs {
		args[i] = b.expr(in)
	}
	return ir.Call{Op: w.Op, Name: w.Op.String(), Args: args}
}
