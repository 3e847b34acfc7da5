package decompile

import (
	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/symbolic"
)

// statementHeuristic is the pipeline's catch-all (spec.md §4.8 item 2):
// SSTORE/MSTORE/MSTORE8 become explicit Store statements, and every
// other opcode is claimed silently — its result either feeds a later
// statement through the WrappedOpcode provenance DAG Builder.expr
// walks, or (STOP/RETURN/REVERT/JUMPDEST/JUMPI and friends) is already
// handled by Builder.walk's terminal/branch logic once the block ends.
type statementHeuristic struct{}

func (statementHeuristic) Name() string { return "statement_heuristic" }

func (statementHeuristic) Apply(b *Builder, st symbolic.State) ([]ir.Stmt, bool) {
	ins := st.Instruction
	switch ins.Opcode {
	case opcodes.SSTORE:
		if len(ins.InputOperations) < 2 {
			return nil, true
		}
		return []ir.Stmt{ir.Store{
			Space: ir.SpaceStorage,
			Addr:  b.expr(ins.InputOperations[0]),
			Value: b.expr(ins.InputOperations[1]),
		}}, true
	case opcodes.MSTORE, opcodes.MSTORE8:
		if len(ins.InputOperations) < 2 {
			return nil, true
		}
		return []ir.Stmt{ir.Store{
			Space: ir.SpaceMemory,
			Addr:  b.expr(ins.InputOperations[0]),
			Value: b.expr(ins.InputOperations[1]),
		}}, true
	default:
		return nil, true
	}
}
