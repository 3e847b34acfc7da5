package symbolic

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/vm"
)

// DefaultTimeout is the per-selector wall-clock budget, per spec.md §4.4.
const DefaultTimeout = 10 * time.Second

// DefaultCalldataSize is how much zero-padded calldata follows the
// preloaded selector. Heimdall never supplies concrete argument values
// (there is no solver): CALLDATALOAD reads of argument bytes resolve to
// zero, but every such read still carries its CALLDATALOAD provenance,
// which is all the downstream analyzers need.
const DefaultCalldataSize = 4 + 32*32

// MaxBranches is a hard safety valve on top of the §4.4 predicates: if a
// pathological bytecode still manages to fork past this many times, the
// executor stops forking and terminates remaining branches as loop
// cutoffs rather than hang. The predicates are expected to fire first in
// practice; this is a backstop, not the primary termination mechanism.
const MaxBranches = 20000

// Options configures one Executor.
type Options struct {
	Timeout      time.Duration
	CalldataSize int
	MaxBranches  int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.CalldataSize <= 0 {
		o.CalldataSize = DefaultCalldataSize
	}
	if o.MaxBranches <= 0 {
		o.MaxBranches = MaxBranches
	}
	return o
}

// Executor drives the C3 interpreter to build a VMTrace per selector.
type Executor struct {
	opts Options
}

// NewExecutor returns an Executor with defaults filled in for any zero
// field of opts.
func NewExecutor(opts Options) *Executor {
	return &Executor{opts: opts.withDefaults()}
}

// Result is what Run returns: the trace tree, the number of JUMPI forks
// taken, and whether the wall-clock budget was exhausted before the
// whole tree was explored (a partial trace is still returned in that
// case, per spec.md §7 Timeout handling).
type Result struct {
	Trace       *VMTrace
	Branches    int
	TimedOut    bool
}

// Run preloads calldata with selector, starts the VM at entryPC (the PC
// the dispatcher jumps to for this selector, as found by C5), and
// recursively builds the VMTrace tree, forking at every JUMPI until a
// loop-detection predicate, an exit opcode, or the timeout ends each
// branch.
func (e *Executor) Run(ctx context.Context, code []byte, selector [4]byte, entryPC uint64, vctx vm.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	calldata := make([]byte, e.opts.CalldataSize)
	copy(calldata, selector[:])

	v := vm.New(code, calldata, vctx)
	v.PC = entryPC

	run := &run{opts: e.opts, history: newLoopHistory(), ctx: ctx}
	trace := run.trace(v)

	return Result{Trace: trace, Branches: run.branches, TimedOut: ctx.Err() != nil}
}

// run holds the mutable state shared across one Executor.Run's
// recursive descent: the loop-detection history and the branch counter.
// It is never touched by more than one goroutine (symbolic execution of
// a single selector is single-threaded and recursive, per spec.md §5).
type run struct {
	opts     Options
	history  *loopHistory
	branches int
	ctx      context.Context
}

func (r *run) trace(v *vm.VM) *VMTrace {
	node := &VMTrace{PC: v.PC}

	for {
		if r.ctx.Err() != nil {
			node.Leaf = &LeafInfo{Reason: ReasonTimeout}
			return node
		}
		if v.ExitCode != vm.ExitRunning {
			node.Leaf = &LeafInfo{Reason: ReasonExit, ExitCode: v.ExitCode}
			return node
		}

		if v.CurrentOp() == opcodes.JUMPI {
			return r.fork(v, node)
		}

		ins, err := v.Step()
		if err != nil || ins == nil {
			node.Leaf = &LeafInfo{Reason: ReasonExit, ExitCode: v.ExitCode}
			return node
		}
		node.Operations = append(node.Operations, r.snapshot(v, *ins))
		node.GasUsed = v.GasUsed

		if v.ExitCode != vm.ExitRunning {
			node.Leaf = &LeafInfo{Reason: ReasonExit, ExitCode: v.ExitCode}
			return node
		}
	}
}

// fork handles the JUMPI at v's current PC: it pops target/condition
// itself (rather than letting Step follow the concrete branch), records
// the JUMPI as this node's final operation, and recurses into the
// fall-through child first, then the taken child, per spec.md §5's
// determinism guarantee.
func (r *run) fork(v *vm.VM, node *VMTrace) *VMTrace {
	pcJ := v.PC
	targetFrame, condFrame, ok := v.PrepareJumpI()
	if !ok {
		node.Leaf = &LeafInfo{Reason: ReasonExit, ExitCode: v.ExitCode}
		return node
	}

	ins := vm.Instruction{
		PC:              pcJ,
		Opcode:          opcodes.JUMPI,
		Inputs:          []uint256.Int{targetFrame.Value, condFrame.Value},
		InputOperations: []opcodes.WrappedOpcode{targetFrame.Operation, condFrame.Operation},
	}
	node.Operations = append(node.Operations, r.snapshot(v, ins))
	node.GasUsed = v.GasUsed

	snap := stackSnapshot{depth: v.Stack.Size(), frames: v.Stack.Frames()}
	targetBytes := targetFrame.Value.Bytes32()
	fallKey := JumpFrame{PC: pcJ, JumpTarget: targetBytes, StackDepth: snap.depth, Taken: false}
	takenKey := JumpFrame{PC: pcJ, JumpTarget: targetBytes, StackDepth: snap.depth, Taken: true}

	r.branches++
	if r.branches > r.opts.MaxBranches {
		node.Children = []*VMTrace{
			{PC: pcJ + 1, Leaf: &LeafInfo{Reason: ReasonLoopCutoff}},
			{PC: pcJ, Leaf: &LeafInfo{Reason: ReasonLoopCutoff}},
		}
		return node
	}

	fallThrough := r.child(v, fallKey, snap, condFrame.Operation, pcJ+1, pcJ+1)
	targetU64, overflow := targetFrame.Value.Uint64WithOverflow()
	var taken *VMTrace
	if overflow || !v.IsJumpDest(targetU64) {
		taken = &VMTrace{PC: pcJ, Leaf: &LeafInfo{Reason: ReasonExit, ExitCode: vm.ExitInvalidJump}}
	} else {
		taken = r.child(v, takenKey, snap, condFrame.Operation, targetU64, targetU64)
	}

	node.Children = []*VMTrace{fallThrough, taken}
	return node
}

// child evaluates the loop-detection predicates for one side of a fork
// and either returns a cutoff leaf or clones v, sets its PC, and
// recurses.
func (r *run) child(v *vm.VM, jf JumpFrame, snap stackSnapshot, cond opcodes.WrappedOpcode, leafPC, clonePC uint64) *VMTrace {
	if predicate := r.history.cutoff(jf, snap, cond); predicate != 0 {
		return &VMTrace{PC: leafPC, Leaf: &LeafInfo{Reason: ReasonLoopCutoff, Predicate: predicate}}
	}
	r.history.record(jf, snap)
	clone := v.Clone()
	clone.PC = clonePC
	return r.trace(clone)
}

func (r *run) snapshot(v *vm.VM, ins vm.Instruction) State {
	return State{
		Instruction:  ins,
		GasUsed:      v.GasUsed,
		GasRemaining: v.Gas,
		Stack:        v.Stack.Frames(),
		StackHash:    v.Stack.Hash(),
	}
}
