package decompile

import (
	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/symbolic"
)

// argumentHeuristic is spec.md §4.8 item 3: CALLDATALOAD reads feed the
// function signature (already derived by snapshot.Analyze, C7) rather
// than the statement body, so it claims the instruction and emits
// nothing — downstream uses of the loaded word still reach the body
// through the WrappedOpcode provenance DAG Builder.expr walks directly.
type argumentHeuristic struct{}

func (argumentHeuristic) Name() string { return "argument_heuristic" }

func (argumentHeuristic) Apply(b *Builder, st symbolic.State) ([]ir.Stmt, bool) {
	if st.Instruction.Opcode != opcodes.CALLDATALOAD {
		return nil, false
	}
	return nil, true
}

// statementsFor runs the pipeline in order over one instruction,
// stopping at the first heuristic that claims it (spec.md §4.8: "a
// pipeline of heuristics applied in order to each operation").
func (b *Builder) statementsFor(st symbolic.State) ([]ir.Stmt, bool) {
	for _, h := range b.pipeline {
		if stmts, handled := h.Apply(b, st); handled {
			return stmts, true
		}
	}
	return nil, false
}
