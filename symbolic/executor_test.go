package symbolic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/vm"
)

func push1(b byte) []byte { return []byte{byte(opcodes.PUSH1), b} }

// TestStraightLineTraceHasNoChildren exercises scenario 4 of spec.md §8:
// simple arithmetic with no JUMPI produces a single leaf node.
func TestStraightLineTraceHasNoChildren(t *testing.T) {
	code := append(append(push1(10), push1(10)...), byte(opcodes.ADD), byte(opcodes.STOP))
	exec := NewExecutor(Options{})
	res := exec.Run(context.Background(), code, [4]byte{}, 0, vm.Context{})

	require.False(t, res.TimedOut)
	require.Nil(t, res.Trace.Children)
	require.True(t, res.Trace.IsLeaf())
	require.Equal(t, vm.ExitStop, res.Trace.Leaf.ExitCode)

	last := res.Trace.Operations[len(res.Trace.Operations)-1]
	require.Equal(t, opcodes.ADD, last.Instruction.Opcode)
}

// TestLoopTerminatesViaCutoff exercises spec.md §8 scenario 6: a
// Solidity-style bounded for-loop (for (uint i; i < 10; ++i)) must
// terminate quickly via one of the §4.4 predicates — here, on the
// second visit to the JUMPI the loop condition reads the counter the
// body just changed, so predicate 5 fires long before the loop would
// naturally exit at i == 10 — never by exhausting the timeout or the
// branch safety valve.
func TestLoopTerminatesViaCutoff(t *testing.T) {
	code := []byte{
		byte(opcodes.PUSH1), 0x00, // seed counter = 0
		byte(opcodes.JUMPDEST),    // loop head, pc 2
		byte(opcodes.PUSH1), 0x01,
		byte(opcodes.ADD), // counter += 1
		byte(opcodes.DUP1),
		byte(opcodes.PUSH1), 0x0a,
		byte(opcodes.SWAP1),
		byte(opcodes.LT), // cond = counter < 10
		byte(opcodes.PUSH1), 0x02, // target = loop head
		byte(opcodes.JUMPI),
		byte(opcodes.STOP),
	}
	exec := NewExecutor(Options{})
	res := exec.Run(context.Background(), code, [4]byte{}, 0, vm.Context{})

	require.False(t, res.TimedOut)
	require.Less(t, res.Branches, 100, "a bounded counting loop should cut off in well under 100 forks")

	var sawCutoff bool
	for _, l := range res.Trace.Leaves() {
		if l.Leaf.Reason == ReasonLoopCutoff {
			sawCutoff = true
		}
	}
	require.True(t, sawCutoff, "expected at least one branch to end via loop cutoff")
}

func TestForkVisitsFallThroughBeforeTaken(t *testing.T) {
	// JUMPDEST(0); PUSH1 1 (cond); PUSH1 <target>; JUMPI; STOP; JUMPDEST(target); STOP
	code := []byte{
		byte(opcodes.JUMPDEST),       // 0
		byte(opcodes.PUSH1), 0x01,    // 1,2 cond
		byte(opcodes.PUSH1), 0x07,    // 3,4 target = 7
		byte(opcodes.JUMPI),          // 5
		byte(opcodes.STOP),           // 6 (fall-through)
		byte(opcodes.JUMPDEST),       // 7 (taken)
		byte(opcodes.STOP),           // 8
	}
	exec := NewExecutor(Options{})
	res := exec.Run(context.Background(), code, [4]byte{}, 0, vm.Context{})

	require.Len(t, res.Trace.Children, 2)
	require.Equal(t, uint64(6), res.Trace.Children[0].PC)
	require.Equal(t, uint64(7), res.Trace.Children[1].PC)
}
