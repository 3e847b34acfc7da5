// Package decompile implements C8: a pluggable pipeline of heuristics
// that turns a symbolic.VMTrace into an ir.Function of structured
// statements, and renders that IR as ABI JSON, Solidity-flavored
// pseudocode, or a Yul object, grounded in
// original_source/crates/decompile/src/utils/heuristics/* and
// core/src/decompile/out/solidity.rs. It never aims for compilable
// output (spec.md §1 Non-goal iii): the goal is faithful pseudocode a
// reviewer can read, not a roundtrippable contract.
package decompile

import (
	"context"

	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/snapshot"
	"github.com/bifrost-sh/heimdall/symbolic"
)

// Kind selects which analyzer flavor Render produces, per spec.md §4.8.
type Kind int

const (
	KindABI Kind = iota
	KindSolidity
	KindYul
)

// Heuristic is one step of the per-State pipeline (spec.md §4.8): given
// the current State, it either claims the instruction (returning the
// statements it produced, possibly none, and handled=true) or declines
// so the next heuristic in the pipeline gets a turn.
type Heuristic interface {
	Name() string
	Apply(b *Builder, st symbolic.State) (stmts []ir.Stmt, handled bool)
}

// DefaultPipeline is the heuristic order spec.md §4.8 lists item 1-2,
// with argument/extcall heuristics running first so the bulk statement
// heuristic only ever sees what nothing more specific already claimed.
func DefaultPipeline() []Heuristic {
	return []Heuristic{
		argumentHeuristic{},
		eventHeuristic{},
		extcallHeuristic{},
		statementHeuristic{},
	}
}

// Function is one decompiled function: its structured IR plus the
// notices the modifier_heuristic recorded along the way.
type Function struct {
	IR      *ir.Function
	Notices []string
}

// Decompile walks trace and builds the structured IR for the function
// entered at snap.EntryPoint. snap supplies the already-derived
// signature metadata (spec.md §4.8 item 3, the argument_heuristic's
// type inference, is C7's own analysis — C8 reuses it rather than
// re-deriving the same masks from scratch).
func Decompile(ctx context.Context, trace *symbolic.VMTrace, snap *snapshot.AnalyzedFunction, pipeline []Heuristic) *Function {
	if pipeline == nil {
		pipeline = DefaultPipeline()
	}
	b := &Builder{
		ctx:      ctx,
		snapshot: snap,
		pipeline: pipeline,
		fn:       &ir.Function{Name: snap.Name, Selector: snap.Selector},
	}
	stmts := b.walk(trace)
	b.fn.Blocks = []*ir.Block{{PC: snap.EntryPoint, Stmts: stmts}}
	return &Function{IR: b.fn, Notices: b.notices}
}
