package symbolic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bifrost-sh/heimdall/opcodes"
)

// TestShrinkingStackCrossesJumpFrameVariants is a regression test for
// predicate 4 (§4.4 "shrinking stack"): a JumpFrame bakes StackDepth
// into its map key, so a lookup keyed on the current JumpFrame could
// never see a *different* depth recorded under a sibling JumpFrame at
// the same (pc, target) site. shrinkingStack must compare against the
// max depth observed across every StackDepth/Taken variant of that
// site, the way original_source/crates/vm/src/ext/exec/util.rs's
// jump_stack_depth_less_than_max_stack_depth filters handled_jumps by
// (pc, jumpdest) alone before taking the max.
func TestShrinkingStackCrossesJumpFrameVariants(t *testing.T) {
	h := newLoopHistory()
	target := [32]byte{9}
	deep := JumpFrame{PC: 10, JumpTarget: target, StackDepth: 5, Taken: true}
	shallow := JumpFrame{PC: 10, JumpTarget: target, StackDepth: 3, Taken: true}

	h.record(deep, stackSnapshot{depth: 5})

	require.True(t, h.shrinkingStack(shallow, stackSnapshot{depth: 3}),
		"a shallower branch at the same (pc, target) site must trip predicate 4 even though its JumpFrame key carries a different StackDepth")
}

// TestShrinkingStackIgnoresUnrelatedSite ensures the site-level max
// depth tracking doesn't leak across distinct (pc, target) pairs.
func TestShrinkingStackIgnoresUnrelatedSite(t *testing.T) {
	h := newLoopHistory()
	siteA := JumpFrame{PC: 10, JumpTarget: [32]byte{9}, StackDepth: 5, Taken: true}
	siteB := JumpFrame{PC: 20, JumpTarget: [32]byte{8}, StackDepth: 1, Taken: true}

	h.record(siteA, stackSnapshot{depth: 5})

	require.False(t, h.shrinkingStack(siteB, stackSnapshot{depth: 1}),
		"a different (pc, target) site must not be affected by siteA's recorded depth")
}

// TestShrinkingStackRequiresPriorObservation ensures the very first
// observation at a site never fires predicate 4 against itself.
func TestShrinkingStackRequiresPriorObservation(t *testing.T) {
	h := newLoopHistory()
	jf := JumpFrame{PC: 10, JumpTarget: [32]byte{9}, StackDepth: 3, Taken: true}

	require.False(t, h.shrinkingStack(jf, stackSnapshot{depth: 3}))
}

// TestCutoffFiresPredicateFour drives cutoff end-to-end: a site first
// observed at depth 5 (recorded), then revisited at depth 3 under a
// different JumpFrame (different StackDepth), must report predicate 4.
func TestCutoffFiresPredicateFour(t *testing.T) {
	h := newLoopHistory()
	target := [32]byte{9}
	first := JumpFrame{PC: 10, JumpTarget: target, StackDepth: 5, Taken: false}
	h.record(first, stackSnapshot{depth: 5})

	second := JumpFrame{PC: 10, JumpTarget: target, StackDepth: 3, Taken: false}
	predicate := h.cutoff(second, stackSnapshot{depth: 3}, opcodes.WrappedOpcode{})
	require.Equal(t, 4, predicate)
}
