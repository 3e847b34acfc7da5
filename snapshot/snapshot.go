// Package snapshot implements C7: walking a VMTrace per function and
// deriving purity, argument types, storage layout, events, errors,
// external calls, and gas statistics, grounded in
// original_source/heimdall/src/snapshot/analyze.rs's rule set (spec.md
// §4.7).
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/signatures"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// ArgHeuristic is one of the three type hints §4.7 derives from how a
// calldata argument's bytes are used downstream.
type ArgHeuristic int

const (
	HeuristicNumeric ArgHeuristic = iota
	HeuristicBytes
	HeuristicBoolean
)

// CalldataFrame is one inferred function argument.
type CalldataFrame struct {
	Index         int
	LoadOperation opcodes.WrappedOpcode
	MaskSizeBytes int // starts at 32, tightened by a contiguous AND mask
	Heuristics    mapset.Set[ArgHeuristic]
}

// InferredType guesses a Solidity type name from the accumulated
// heuristics and mask width. It is a best-effort label, not a proof.
func (cf *CalldataFrame) InferredType() string {
	switch {
	case cf.Heuristics.Contains(HeuristicBoolean):
		return "bool"
	case cf.Heuristics.Contains(HeuristicBytes):
		if cf.MaskSizeBytes == 20 {
			return "address"
		}
		return fmt.Sprintf("bytes%d", cf.MaskSizeBytes)
	default:
		return fmt.Sprintf("uint%d", cf.MaskSizeBytes*8)
	}
}

// AnalyzedFunction is the per-selector snapshot spec.md §3 describes.
type AnalyzedFunction struct {
	Selector   [4]byte
	Name       string
	EntryPoint uint64

	Arguments map[int]*CalldataFrame

	StorageRead    mapset.Set[[32]byte]
	StorageWritten mapset.Set[[32]byte]

	Events     mapset.Set[[32]byte]
	EventNames map[[32]byte]string

	Errors     mapset.Set[[4]byte]
	ErrorNames map[[4]byte]string

	ExternalCalls []string

	Pure, View, Payable bool

	GasMin, GasMax uint64
	GasAvg         float64
	BranchCount    int

	Notices []string
}

var pureBreakers = map[opcodes.OpCode]bool{
	opcodes.BALANCE: true, opcodes.ORIGIN: true, opcodes.CALLER: true, opcodes.GASPRICE: true,
	opcodes.EXTCODESIZE: true, opcodes.EXTCODECOPY: true, opcodes.EXTCODEHASH: true,
	opcodes.BLOCKHASH: true, opcodes.COINBASE: true, opcodes.TIMESTAMP: true, opcodes.NUMBER: true,
	opcodes.DIFFICULTY: true, opcodes.GASLIMIT: true, opcodes.CHAINID: true, opcodes.SELFBALANCE: true,
	opcodes.BASEFEE: true, opcodes.SLOAD: true, opcodes.SSTORE: true,
	opcodes.CREATE: true, opcodes.CREATE2: true, opcodes.SELFDESTRUCT: true,
	opcodes.CALL: true, opcodes.CALLCODE: true, opcodes.DELEGATECALL: true, opcodes.STATICCALL: true,
	opcodes.LOG0: true, opcodes.LOG1: true, opcodes.LOG2: true, opcodes.LOG3: true, opcodes.LOG4: true,
}

// viewBreakers is the state-mutating subset of pureBreakers: opcodes
// that also clear `view` (STATICCALL reads external state, clearing
// purity, but never mutates, so it is not here).
var viewBreakers = map[opcodes.OpCode]bool{
	opcodes.SSTORE: true, opcodes.CREATE: true, opcodes.CREATE2: true, opcodes.SELFDESTRUCT: true,
	opcodes.CALL: true, opcodes.CALLCODE: true, opcodes.DELEGATECALL: true,
	opcodes.LOG0: true, opcodes.LOG1: true, opcodes.LOG2: true, opcodes.LOG3: true, opcodes.LOG4: true,
}

var numericOps = map[opcodes.OpCode]bool{
	opcodes.MUL: true, opcodes.DIV: true, opcodes.MOD: true, opcodes.EXP: true,
	opcodes.LT: true, opcodes.GT: true, opcodes.SLT: true, opcodes.SGT: true,
	opcodes.SIGNEXTEND: true, opcodes.ADDMOD: true, opcodes.MULMOD: true, opcodes.SMOD: true,
}

var bytesOps = map[opcodes.OpCode]bool{
	opcodes.XOR: true, opcodes.BYTE: true, opcodes.SHL: true, opcodes.SHR: true,
	opcodes.SAR: true, opcodes.SHA3: true, opcodes.NOT: true,
}

// Analyze walks trace and derives the snapshot for selector, which the
// dispatcher enters at entryPC. resolver supplies human names for
// events/errors/the function itself; pass signatures.None() for a
// zero-configuration run.
func Analyze(ctx context.Context, trace *symbolic.VMTrace, selector [4]byte, entryPC uint64, resolver signatures.Resolver) *AnalyzedFunction {
	fn := &AnalyzedFunction{
		Selector:       selector,
		EntryPoint:     entryPC,
		Arguments:      make(map[int]*CalldataFrame),
		StorageRead:    mapset.NewThreadUnsafeSet[[32]byte](),
		StorageWritten: mapset.NewThreadUnsafeSet[[32]byte](),
		Events:         mapset.NewThreadUnsafeSet[[32]byte](),
		Errors:         mapset.NewThreadUnsafeSet[[4]byte](),
		Pure:           true,
		View:           true,
		Payable:        true,
	}

	var gasLeaves []uint64
	trace.Walk(func(node *symbolic.VMTrace) {
		fn.processOperations(node.Operations)
		if node.IsLeaf() {
			gasLeaves = append(gasLeaves, node.GasUsed)
		}
	})
	fn.BranchCount = trace.CountBranches()
	fn.summarizeGas(gasLeaves)
	fn.resolveNames(ctx, resolver)
	return fn
}

func (fn *AnalyzedFunction) summarizeGas(leaves []uint64) {
	if len(leaves) == 0 {
		return
	}
	fn.GasMin, fn.GasMax = leaves[0], leaves[0]
	var sum uint64
	for _, g := range leaves {
		if g < fn.GasMin {
			fn.GasMin = g
		}
		if g > fn.GasMax {
			fn.GasMax = g
		}
		sum += g
	}
	fn.GasAvg = float64(sum) / float64(len(leaves))
}

func (fn *AnalyzedFunction) processOperations(ops []symbolic.State) {
	for i, st := range ops {
		ins := st.Instruction
		if pureBreakers[ins.Opcode] {
			fn.Pure = false
		}
		if viewBreakers[ins.Opcode] {
			fn.View = false
		}

		switch {
		case opcodes.IsLog(ins.Opcode):
			fn.recordEvent(ins)
		case ins.Opcode == opcodes.SSTORE:
			fn.recordStorage(fn.StorageWritten, ins)
		case ins.Opcode == opcodes.SLOAD:
			fn.recordStorage(fn.StorageRead, ins)
		case ins.Opcode == opcodes.CALLDATALOAD:
			fn.recordArgument(ins)
		case ins.Opcode == opcodes.AND:
			fn.tightenMask(ins)
		case ins.Opcode == opcodes.REVERT:
			fn.recordRevert(ops, i)
		case isExternalCallOp(ins.Opcode):
			fn.recordExternalCall(ins)
		case ins.Opcode == opcodes.JUMPI:
			fn.detectPayableGuard(ins)
		}
		fn.tagArgumentHeuristics(ins)
	}
}

func isExternalCallOp(op opcodes.OpCode) bool {
	switch op {
	case opcodes.CALL, opcodes.CALLCODE, opcodes.DELEGATECALL, opcodes.STATICCALL:
		return true
	default:
		return false
	}
}

func toKey(u uint256.Int) [32]byte { return u.Bytes32() }

func (fn *AnalyzedFunction) recordStorage(set mapset.Set[[32]byte], ins vm.Instruction) {
	if len(ins.Inputs) < 1 {
		return
	}
	set.Add(toKey(ins.Inputs[0]))
}

func (fn *AnalyzedFunction) recordEvent(ins vm.Instruction) {
	n := int(ins.Opcode - opcodes.LOG0)
	if n == 0 || len(ins.Inputs) < 3 {
		// LOG0 has no topic to key events by, per spec.md §4.7.
		return
	}
	fn.Events.Add(toKey(ins.Inputs[2]))
}

// recordRevert recognizes the common Solidity custom-error encoding:
// MSTORE(0, selector<<224) immediately (within this function's own
// instruction stream) followed by REVERT(0, n). The MSTORE's stored
// value is a compile-time constant regardless of calldata, so even
// heimdall's un-symbolic engine computes it concretely and correctly.
func (fn *AnalyzedFunction) recordRevert(ops []symbolic.State, idx int) {
	ins := ops[idx].Instruction
	if len(ins.Inputs) < 2 || !ins.Inputs[0].IsZero() {
		return
	}
	for i := idx - 1; i >= 0; i-- {
		prior := ops[i].Instruction
		if prior.Opcode == opcodes.MSTORE && len(prior.Inputs) == 2 && prior.Inputs[0].IsZero() {
			word := prior.Inputs[1].Bytes32()
			var sel [4]byte
			copy(sel[:], word[:4])
			fn.Errors.Add(sel)
			return
		}
	}
}

func (fn *AnalyzedFunction) recordExternalCall(ins vm.Instruction) {
	var target opcodes.WrappedOpcode
	if len(ins.InputOperations) > 1 {
		target = ins.InputOperations[1]
	}
	fn.ExternalCalls = append(fn.ExternalCalls, fmt.Sprintf("%s(%s)", ins.Opcode, target.Solidify()))
}

func (fn *AnalyzedFunction) recordArgument(ins vm.Instruction) {
	if len(ins.Inputs) < 1 {
		return
	}
	offset, overflow := ins.Inputs[0].Uint64WithOverflow()
	if overflow || offset < 4 {
		return
	}
	idx := int((offset - 4) / 32)
	if _, ok := fn.Arguments[idx]; ok {
		return
	}
	cf := &CalldataFrame{Index: idx, MaskSizeBytes: 32, Heuristics: mapset.NewThreadUnsafeSet[ArgHeuristic]()}
	if len(ins.OutputOperations) > 0 {
		cf.LoadOperation = ins.OutputOperations[0]
	}
	fn.Arguments[idx] = cf
}

// tightenMask implements "AND against a mask composed of contiguous
// 0xFF bytes tightens mask_size_bytes", §4.7.
func (fn *AnalyzedFunction) tightenMask(ins vm.Instruction) {
	if len(ins.Inputs) != 2 || len(ins.InputOperations) != 2 {
		return
	}
	for i, maskVal := range ins.Inputs {
		n, ok := contiguousOnesMaskBytes(maskVal)
		if !ok {
			continue
		}
		other := ins.InputOperations[1-i]
		for _, off := range findCalldataLoadOffsets(other) {
			if off < 4 {
				continue
			}
			idx := int((off - 4) / 32)
			if cf, ok2 := fn.Arguments[idx]; ok2 && n < cf.MaskSizeBytes {
				cf.MaskSizeBytes = n
			}
		}
	}
}

// contiguousOnesMaskBytes reports the width, in bytes, of a
// right-aligned run of 0xFF bytes (a type-narrowing mask), or ok=false
// if v is not such a mask.
func contiguousOnesMaskBytes(v uint256.Int) (int, bool) {
	b := v.Bytes32()
	n := 0
	for i := 31; i >= 0; i-- {
		switch b[i] {
		case 0xff:
			n++
		case 0x00:
			return n, n > 0
		default:
			return 0, false
		}
	}
	return n, n > 0
}

func (fn *AnalyzedFunction) tagArgumentHeuristics(ins vm.Instruction) {
	var tag ArgHeuristic
	tagged := false
	switch {
	case numericOps[ins.Opcode]:
		tag, tagged = HeuristicNumeric, true
	case bytesOps[ins.Opcode]:
		tag, tagged = HeuristicBytes, true
	case ins.Opcode == opcodes.ISZERO && len(ins.InputOperations) == 1 && ins.InputOperations[0].Op == opcodes.CALLDATALOAD:
		tag, tagged = HeuristicBoolean, true
	}
	if !tagged {
		return
	}
	for _, in := range ins.InputOperations {
		for _, off := range findCalldataLoadOffsets(in) {
			if off < 4 {
				continue
			}
			idx := int((off - 4) / 32)
			if cf, ok := fn.Arguments[idx]; ok {
				cf.Heuristics.Add(tag)
			}
		}
	}
}

// findCalldataLoadOffsets returns the CALLDATALOAD offsets appearing
// anywhere in op's provenance DAG, constant offsets only.
func findCalldataLoadOffsets(op opcodes.WrappedOpcode) []uint64 {
	var out []uint64
	var walk func(opcodes.WrappedOpcode)
	walk = func(w opcodes.WrappedOpcode) {
		if w.Op == opcodes.CALLDATALOAD && len(w.Inputs) == 1 && w.Inputs[0].Constant != nil {
			out = append(out, w.Inputs[0].Constant.Uint64())
		}
		for _, in := range w.Inputs {
			walk(in)
		}
	}
	walk(op)
	return out
}

// detectPayableGuard resolves the spec.md §9 open question on `payable`:
// it starts true and is cleared by any JUMPI whose condition mentions
// CALLVALUE() (the shape of the standard Solidity nonpayable prelude),
// never by CALLVALUE's mere presence elsewhere. Whether either side of
// that JUMPI reverts is not checked.
func (fn *AnalyzedFunction) detectPayableGuard(ins vm.Instruction) {
	if len(ins.InputOperations) < 2 {
		return
	}
	cond := ins.InputOperations[1].Solidify()
	if strings.Contains(cond, "CALLVALUE()") {
		fn.Payable = false
	}
}

func (fn *AnalyzedFunction) resolveNames(ctx context.Context, resolver signatures.Resolver) {
	if resolver == nil {
		resolver = signatures.None()
	}
	if sigs, err := resolver.ResolveFunction(ctx, fn.Selector); err == nil && len(sigs) > 0 {
		fn.Name = sigs[0].Signature
	} else {
		fn.Name = signatures.UnresolvedFunctionName(fn.Selector)
	}

	fn.EventNames = make(map[[32]byte]string, fn.Events.Cardinality())
	for _, topic := range fn.Events.ToSlice() {
		if sigs, err := resolver.ResolveEvent(ctx, topic); err == nil && len(sigs) > 0 {
			fn.EventNames[topic] = sigs[0].Signature
		} else {
			fn.EventNames[topic] = signatures.UnresolvedEventName(topic)
		}
	}

	fn.ErrorNames = make(map[[4]byte]string, fn.Errors.Cardinality())
	for _, sel := range fn.Errors.ToSlice() {
		if sigs, err := resolver.ResolveError(ctx, sel); err == nil && len(sigs) > 0 {
			fn.ErrorNames[sel] = sigs[0].Signature
		} else {
			fn.ErrorNames[sel] = signatures.UnresolvedErrorName(sel)
		}
	}
}

// ArgTypes returns the inferred Solidity type of each argument, ordered
// by calldata index.
func (fn *AnalyzedFunction) ArgTypes() []string {
	idxs := make([]int, 0, len(fn.Arguments))
	for i := range fn.Arguments {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = fn.Arguments[idx].InferredType()
	}
	return out
}
