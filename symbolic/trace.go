// Package symbolic drives the C3 interpreter to build a VMTrace tree:
// straight-line execution until a JUMPI, then a fork into taken and
// not-taken children, with recursion bounded by loop-detection
// heuristics rather than a solver. It is the core of heimdall's "not a
// theorem prover" design: branch enumeration is heuristic, not sound.
package symbolic

import (
	"github.com/bifrost-sh/heimdall/vm"
)

// LeafReason classifies why a VMTrace node has no children.
type LeafReason int

const (
	// ReasonExit means the VM itself stopped (STOP/RETURN/REVERT/
	// INVALID/out-of-gas/stack fault/bad jump target).
	ReasonExit LeafReason = iota
	// ReasonLoopCutoff means one of the §4.4 predicates fired.
	ReasonLoopCutoff
	// ReasonTimeout means the selector's wall-clock budget expired.
	ReasonTimeout
)

func (r LeafReason) String() string {
	switch r {
	case ReasonExit:
		return "exit"
	case ReasonLoopCutoff:
		return "loop-cutoff"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// LeafInfo explains why a VMTrace node is terminal.
type LeafInfo struct {
	Reason LeafReason
	// ExitCode is meaningful when Reason == ReasonExit.
	ExitCode vm.ExitCode
	// Predicate is the 1-8 index of the §4.4 heuristic that fired,
	// meaningful when Reason == ReasonLoopCutoff.
	Predicate int
}

// State is the per-step snapshot recorded in a VMTrace node's
// Operations list. Full memory/storage images are not duplicated at
// every step (see DESIGN.md — "JUMPI forking without COW" applies
// equally to per-step snapshotting): callers needing memory/storage
// content read or written by a given step use Instruction's own
// Inputs/InputOperations, which already carry the address and value
// operands for MLOAD/MSTORE/SLOAD/SSTORE.
type State struct {
	Instruction  vm.Instruction
	GasUsed      uint64
	GasRemaining uint64
	// Stack is a top-first snapshot taken immediately after Instruction
	// executed.
	Stack     []vm.StackFrame
	StackHash [32]byte
}

// VMTrace is one node of the symbolic-execution tree. A node with two
// children is the two sides of a JUMPI (Children[0] is fall-through,
// Children[1] is taken, per the fall-through-first traversal order);
// a node with a non-nil Leaf is terminal.
type VMTrace struct {
	PC         uint64
	GasUsed    uint64
	Operations []State
	Children   []*VMTrace
	Leaf       *LeafInfo
}

// IsLeaf reports whether this node terminates the branch.
func (t *VMTrace) IsLeaf() bool { return t.Leaf != nil }

// Walk calls fn for this node and recursively for every descendant,
// fall-through child first, matching the executor's own traversal
// order (spec.md §5 "deterministic ... children visited fall-through-
// first, then taken-side").
func (t *VMTrace) Walk(fn func(*VMTrace)) {
	if t == nil {
		return
	}
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// Leaves returns every terminal node reachable from t, in traversal
// order.
func (t *VMTrace) Leaves() []*VMTrace {
	var out []*VMTrace
	t.Walk(func(n *VMTrace) {
		if n.IsLeaf() {
			out = append(out, n)
		}
	})
	return out
}

// CountBranches returns the number of JUMPI forks in the tree (internal
// nodes with exactly two children).
func (t *VMTrace) CountBranches() int {
	n := 0
	t.Walk(func(node *VMTrace) {
		if len(node.Children) == 2 {
			n++
		}
	})
	return n
}
