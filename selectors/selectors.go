// Package selectors implements C5: scanning disassembled bytecode for
// PUSH4 immediates, then driving the symbolic executor against each
// candidate to find the PC the dispatcher jumps to for that selector.
package selectors

import (
	"context"
	"strings"

	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/disasm"
	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// arg0Literal is how CALLDATALOAD(0)'s provenance solidifies; computed
// once from the same Constant/Solidify path the VM itself uses so this
// package never hardcodes uint256's hex formatting.
var arg0Literal = "arg(" + opcodes.Constant(uint256.NewInt(0)).Solidify() + ")"

// candidates walks the disassembly and returns every distinct PUSH4
// immediate, in first-seen order.
func candidates(code []byte) [][4]byte {
	seen := make(map[[4]byte]bool)
	var out [][4]byte
	for _, line := range disasm.Disassemble(code) {
		if line.Op != opcodes.PUSH4 || len(line.Immediate) != 4 {
			continue
		}
		var sel [4]byte
		copy(sel[:], line.Immediate)
		if !seen[sel] {
			seen[sel] = true
			out = append(out, sel)
		}
	}
	return out
}

// Options groups executor and VM settings for selector discovery.
// Discover does not take an Options: it runs with symbolic.Options{} and
// a zero vm.Context.
type Options struct {
	Executor symbolic.Options
	Context  vm.Context
}

// Discover returns, for every PUSH4 immediate found in code, the PC the
// dispatcher jumps to when that selector is the function called —
// found by symbolically executing each candidate selector from the
// contract's entry point (pc 0) and watching for the dispatcher's own
// comparison-and-jump. Per spec.md §4.5, a candidate is accepted when a
// JUMPI's condition mentions both the selector literal and a calldata
// read at byte 0; candidates whose own jump-guard forms a cycle (the
// dispatcher never resolves, e.g. a false positive PUSH4 inside another
// instruction's immediate) are silently dropped.
func Discover(ctx context.Context, code []byte) map[[4]byte]uint64 {
	out := make(map[[4]byte]uint64)
	exec := symbolic.NewExecutor(symbolic.Options{})
	for _, sel := range candidates(code) {
		if pc, ok := resolveEntry(ctx, exec, code, sel); ok {
			out[sel] = pc
		}
	}
	return out
}

func resolveEntry(ctx context.Context, exec *symbolic.Executor, code []byte, sel [4]byte) (uint64, bool) {
	res := exec.Run(ctx, code, sel, 0, vm.Context{})
	if res.Trace == nil {
		return 0, false
	}
	selLiteral := opcodes.Constant(new(uint256.Int).SetBytes(sel[:])).Solidify()
	pc, found := findDispatchJump(res.Trace, selLiteral)
	return pc, found
}

// findDispatchJump walks the trace looking for the dispatcher's own
// JUMPI: a branch whose condition mentions both the selector literal
// and a calldata read at byte 0 (CALLDATALOAD(0) or
// CALLDATALOAD(0) masked to 4 bytes, both of which solidify with
// "arg(0x00)"). The taken child's starting PC is the function's entry
// point, per spec.md §4.5.
func findDispatchJump(t *symbolic.VMTrace, selLiteral string) (uint64, bool) {
	if t == nil {
		return 0, false
	}
	for _, op := range t.Operations {
		if op.Instruction.Opcode != opcodes.JUMPI {
			continue
		}
		cond := op.Instruction.InputOperations[1].Solidify()
		if strings.Contains(cond, selLiteral) && strings.Contains(cond, arg0Literal) {
			if len(t.Children) == 2 {
				return t.Children[1].PC, true
			}
		}
	}
	for _, c := range t.Children {
		if pc, ok := findDispatchJump(c, selLiteral); ok {
			return pc, ok
		}
	}
	return 0, false
}
