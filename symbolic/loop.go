package symbolic

import (
	"math"
	"regexp"
	"strings"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/vm"
)

// JumpFrame indexes the history of stack snapshots seen at one JUMPI
// site/direction pair, per spec.md §3/§4.4.
type JumpFrame struct {
	PC         uint64
	JumpTarget [32]byte
	StackDepth int
	Taken      bool
}

// stackSnapshot is one historical observation at a JumpFrame.
type stackSnapshot struct {
	depth  int
	frames []vm.StackFrame // top-first
}

// Loop-detection tunables, per spec.md §4.4.
const (
	maxStackSize        = 320
	maxDuplicateCount    = 16
	maxProvenanceDepth   = 16
	stableDiffHistory    = 4
	patternMinHistory    = 10
	patternThreshold     = 0.6
	maxHistoryPerJump    = 64 // bounds memory; the predicates only look at the tail
)

var memoryOrStorageRef = regexp.MustCompile(`(memory|storage)\[`)

// loopSite identifies a JUMPI site by (pc, jump target) alone, ignoring
// the StackDepth/Taken fields that make a JumpFrame unique. Predicate 4
// compares the current stack depth against the max depth ever observed
// at this site across *every* StackDepth/Taken variant, mirroring
// original_source/crates/vm/src/ext/exec/util.rs's
// jump_stack_depth_less_than_max_stack_depth, which filters
// handled_jumps by (pc, jumpdest) only before computing the max.
type loopSite struct {
	PC         uint64
	JumpTarget [32]byte
}

// loopHistory tracks, per JumpFrame, the stack snapshots observed so
// far, plus the running max stack depth per loopSite for predicate 4.
// It is owned exclusively by one Executor.Run call (single-threaded and
// recursive within a selector, per spec.md §5).
type loopHistory struct {
	seen         map[JumpFrame][]stackSnapshot
	siteMaxDepth map[loopSite]int
}

func newLoopHistory() *loopHistory {
	return &loopHistory{
		seen:         make(map[JumpFrame][]stackSnapshot),
		siteMaxDepth: make(map[loopSite]int),
	}
}

func (h *loopHistory) record(jf JumpFrame, snap stackSnapshot) {
	hist := h.seen[jf]
	hist = append(hist, snap)
	if len(hist) > maxHistoryPerJump {
		hist = hist[len(hist)-maxHistoryPerJump:]
	}
	h.seen[jf] = hist

	site := loopSite{PC: jf.PC, JumpTarget: jf.JumpTarget}
	if maxSeen, ok := h.siteMaxDepth[site]; !ok || snap.depth > maxSeen {
		h.siteMaxDepth[site] = snap.depth
	}
}

// cutoff evaluates the eight §4.4 predicates in order for the branch
// about to be taken at jf and reports the first one that fires (1-8),
// or 0 if none do.
func (h *loopHistory) cutoff(jf JumpFrame, cur stackSnapshot, cond opcodes.WrappedOpcode) int {
	history := h.seen[jf]

	if cur.depth > maxStackSize {
		return 1
	}
	if duplicatedFrame(cur) {
		return 2
	}
	if deepProvenance(cur) {
		return 3
	}
	if h.shrinkingStack(jf, cur) {
		return 4
	}
	if len(history) > 0 && conditionSelfReference(history[len(history)-1], cur, cond) {
		return 5
	}
	if len(history) > 0 && loopMutatedState(history[len(history)-1], cur, cond) {
		return 6
	}
	if stableDiff(history, cur) {
		return 7
	}
	if monotonicOrAlternating(history, cur) {
		return 8
	}
	return 0
}

func duplicatedFrame(cur stackSnapshot) bool {
	counts := make(map[string]int, len(cur.frames))
	for _, f := range cur.frames {
		s := f.Operation.Solidify()
		counts[s]++
		if counts[s] >= maxDuplicateCount {
			return true
		}
	}
	return false
}

func deepProvenance(cur stackSnapshot) bool {
	for _, f := range cur.frames {
		if f.Operation.Depth() > maxProvenanceDepth {
			return true
		}
	}
	return false
}

// shrinkingStack implements predicate 4: has this (pc, target) site
// previously been observed at a greater stack depth than the current
// branch, across every StackDepth/Taken variant of JumpFrame recorded
// at that site? A lookup keyed on the full JumpFrame (which bakes
// StackDepth into the key) could never see a depth other than its own,
// so the comparison is deliberately keyed on loopSite instead.
func (h *loopHistory) shrinkingStack(jf JumpFrame, cur stackSnapshot) bool {
	site := loopSite{PC: jf.PC, JumpTarget: jf.JumpTarget}
	maxSeen, ok := h.siteMaxDepth[site]
	return ok && cur.depth < maxSeen
}

// stackDiff returns the Solidify() strings of frames that differ
// between prev and cur at the same top-first index, plus any frames
// cur has beyond prev's length. Used by predicates 5-7.
func stackDiff(prev, cur stackSnapshot) []string {
	var diff []string
	n := len(prev.frames)
	if len(cur.frames) < n {
		n = len(cur.frames)
	}
	for i := 0; i < n; i++ {
		ps := prev.frames[i].Operation.Solidify()
		cs := cur.frames[i].Operation.Solidify()
		if ps != cs {
			diff = append(diff, cs)
		}
	}
	for i := n; i < len(cur.frames); i++ {
		diff = append(diff, cur.frames[i].Operation.Solidify())
	}
	return diff
}

func conditionSelfReference(prev stackSnapshot, cur stackSnapshot, cond opcodes.WrappedOpcode) bool {
	diff := stackDiff(prev, cur)
	condStr := cond.Solidify()
	for _, s := range diff {
		if s != "" && strings.Contains(condStr, s) {
			return true
		}
	}
	return false
}

func loopMutatedState(prev, cur stackSnapshot, cond opcodes.WrappedOpcode) bool {
	condStr := cond.Solidify()
	if !memoryOrStorageRef.MatchString(condStr) {
		return false
	}
	for _, s := range stackDiff(prev, cur) {
		if memoryOrStorageRef.MatchString(s) && memoryOrStorageRefsOverlap(condStr, s) {
			return true
		}
	}
	return false
}

// memoryOrStorageRefsOverlap reports whether two solidified expressions
// reference the same kind of slot (both "memory[" or both "storage[").
// A byte-exact address match is not required: the heuristic only needs
// to recognize "the loop condition reads the same kind of cell the loop
// body just mutated", per spec.md §4.4 predicate 6.
func memoryOrStorageRefsOverlap(a, b string) bool {
	aMem, aSto := strings.Contains(a, "memory["), strings.Contains(a, "storage[")
	bMem, bSto := strings.Contains(b, "memory["), strings.Contains(b, "storage[")
	return (aMem && bMem) || (aSto && bSto)
}

func stableDiff(history []stackSnapshot, cur stackSnapshot) bool {
	if len(history) < stableDiffHistory {
		return false
	}
	window := append(append([]stackSnapshot{}, history[len(history)-stableDiffHistory:]...), cur)
	threshold := int(math.Ceil(float64(cur.depth) / 10))
	var lead string
	for i := 1; i < len(window); i++ {
		diff := stackDiff(window[i-1], window[i])
		if len(diff) > threshold {
			return false
		}
		if len(diff) == 0 {
			continue
		}
		if lead == "" {
			lead = diff[0]
		} else if diff[0] != lead {
			return false
		}
	}
	return lead != ""
}

func monotonicOrAlternating(history []stackSnapshot, cur stackSnapshot) bool {
	if len(history) < patternMinHistory {
		return false
	}
	window := append(append([]stackSnapshot{}, history[len(history)-patternMinHistory:]...), cur)
	minDepth := window[0].depth
	for _, w := range window {
		if w.depth < minDepth {
			minDepth = w.depth
		}
	}
	for pos := 0; pos < minDepth; pos++ {
		values := make([]float64, len(window))
		for i, w := range window {
			values[i] = float64(len(w.frames[pos].Operation.Solidify()))
		}
		if isMonotonicOrAlternating(values) {
			return true
		}
	}
	return false
}

func isMonotonicOrAlternating(values []float64) bool {
	triples := len(values) - 2
	if triples <= 0 {
		return false
	}
	incDec, alt := 0, 0
	for i := 0; i+2 < len(values); i++ {
		a, b, c := values[i], values[i+1], values[i+2]
		if (a <= b && b <= c) || (a >= b && b >= c) {
			incDec++
		}
		if (a < b && b > c) || (a > b && b < c) {
			alt++
		}
	}
	best := incDec
	if alt > best {
		best = alt
	}
	return float64(best)/float64(triples) >= patternThreshold
}
