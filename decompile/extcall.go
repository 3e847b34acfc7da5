package decompile

import (
	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// extcallTransferGas is the classic 2300-gas stipend that Solidity's
// `.transfer()`/`.send()` forward, spec.md §4.8 item 5's degradation
// trigger.
const extcallTransferGas = 2300

// extcallHeuristic is spec.md §4.8 item 5: CALL/CALLCODE/DELEGATECALL/
// STATICCALL become `address(Target).Name{gas: G, value: V}(Args)`,
// where Name is resolved from the synthesized calldata's first 4
// bytes, degrading to `.transfer(value)` when gas is the 2300 stipend
// or the call carries no calldata.
type extcallHeuristic struct{}

func (extcallHeuristic) Name() string { return "extcall_heuristic" }

func (extcallHeuristic) Apply(b *Builder, st symbolic.State) ([]ir.Stmt, bool) {
	ins := st.Instruction
	if !isExternalCallOp(ins.Opcode) {
		return nil, false
	}

	var gas, target, value ir.Expr
	var argOps []opcodes.WrappedOpcode
	switch ins.Opcode {
	case opcodes.CALL, opcodes.CALLCODE:
		if len(ins.InputOperations) < 5 {
			return nil, true
		}
		gas = b.expr(ins.InputOperations[0])
		target = b.expr(ins.InputOperations[1])
		value = b.expr(ins.InputOperations[2])
		argOps = ins.InputOperations[3:5]
	default: // DELEGATECALL, STATICCALL: no value operand
		if len(ins.InputOperations) < 4 {
			return nil, true
		}
		gas = b.expr(ins.InputOperations[0])
		target = b.expr(ins.InputOperations[1])
		argOps = ins.InputOperations[2:4]
	}

	call := ir.Call{
		Op:     ins.Opcode,
		Target: target,
		Gas:    gas,
		Value:  value,
		Name:   b.resolveCalleeName(ins),
		Args: []ir.Expr{
			ir.Load{Type: ir.Word, Space: ir.SpaceMemory, Addr: b.expr(argOps[0])},
		},
	}
	call.IsTransferDegradation = isTransferDegradation(ins.Inputs, ins.Opcode)

	v := b.NewVar()
	return []ir.Stmt{ir.Assign{Name: v.Name, Value: call}}, true
}

func isExternalCallOp(op opcodes.OpCode) bool {
	switch op {
	case opcodes.CALL, opcodes.CALLCODE, opcodes.DELEGATECALL, opcodes.STATICCALL:
		return true
	default:
		return false
	}
}

// isTransferDegradation reports whether inputs match the classic
// `.transfer`/`.send` shape: a 2300 gas stipend, or call data of zero
// length (the Inputs layout mirrors the InputOperations slicing above).
func isTransferDegradation(inputs []uint256.Int, op opcodes.OpCode) bool {
	if len(inputs) == 0 {
		return false
	}
	if inputs[0].IsUint64() && inputs[0].Uint64() == extcallTransferGas {
		return true
	}
	sizeIdx := 3
	if op == opcodes.CALL || op == opcodes.CALLCODE {
		sizeIdx = 4
	}
	if len(inputs) > sizeIdx {
		return inputs[sizeIdx].IsZero()
	}
	return false
}

// resolveCalleeName would resolve the callee's selector from the first
// four bytes of the synthesized calldata, per spec.md §4.8 item 5. The
// VMTrace's State deliberately does not carry a full memory snapshot
// per step (see symbolic.State's doc comment), so the concrete bytes at
// the call's args offset aren't available here; without a world state
// to query for the callee's real ABI either, heimdall can only name an
// external call when some other signal resolves it. Left unresolved
// (empty Name renders the generic `address(...).call{...}(...)` form)
// until the trace model grows a memory snapshot.
func (b *Builder) resolveCalleeName(ins vm.Instruction) string {
	return ""
}
