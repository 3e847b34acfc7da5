// Package vm implements the single-frame EVM interpreter (C2 state
// containers + C3 interpreter) described in heimdall's specification.
// It is not a conforming EVM: external calls do not recurse, there is
// no world state, and environment opcodes return constants supplied by
// the caller. Every value the interpreter produces carries a
// WrappedOpcode describing its provenance, which is what the symbolic
// executor and downstream analyzers consume.
package vm

import (
	"fmt"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/holiman/uint256"
)

// ExitCode reports why a VM stopped running. ExitRunning (255) is the
// sentinel used while execution is still in progress.
type ExitCode uint8

const (
	ExitRunning        ExitCode = 255
	ExitStop           ExitCode = 0
	ExitReturn         ExitCode = 1
	ExitRevert         ExitCode = 2
	ExitInvalidOpcode  ExitCode = 3
	ExitOutOfGas       ExitCode = 4
	ExitStackUnderflow ExitCode = 5
	ExitStackOverflow  ExitCode = 6
	ExitInvalidJump    ExitCode = 7
	ExitInvalidMemory  ExitCode = 8
	ExitSelfDestruct   ExitCode = 9
)

func (e ExitCode) String() string {
	switch e {
	case ExitRunning:
		return "running"
	case ExitStop:
		return "stop"
	case ExitReturn:
		return "return"
	case ExitRevert:
		return "revert"
	case ExitInvalidOpcode:
		return "invalid-opcode"
	case ExitOutOfGas:
		return "out-of-gas"
	case ExitStackUnderflow:
		return "stack-underflow"
	case ExitStackOverflow:
		return "stack-overflow"
	case ExitInvalidJump:
		return "invalid-jump"
	case ExitInvalidMemory:
		return "invalid-memory"
	case ExitSelfDestruct:
		return "selfdestruct"
	default:
		return "unknown"
	}
}

// Context holds the environment constants a single symbolic run is
// parameterized by. Heimdall treats these as caller-supplied constants,
// never as queries into a real chain.
type Context struct {
	Address, Origin, Caller [20]byte
	Value                   uint256.Int
	GasPrice                uint256.Int
	ChainID                 uint256.Int
	Timestamp               uint64
	Number                  uint64
	Difficulty              uint256.Int
	GasLimit                uint64
	BaseFee                 uint256.Int
	CodeSize                uint64 // synthetic EXTCODESIZE/BALANCE answer for any address
}

// ExternalCall records a CALL/CALLCODE/DELEGATECALL/STATICCALL that the
// interpreter observed without recursing into it, per §4.3.
type ExternalCall struct {
	PC          uint64
	Op          opcodes.OpCode
	Gas         opcodes.WrappedOpcode
	Target      opcodes.WrappedOpcode
	Value       opcodes.WrappedOpcode
	ArgsOffset  opcodes.WrappedOpcode
	ArgsSize    opcodes.WrappedOpcode
	Calldata    []byte
	CalldataOps []opcodes.WrappedOpcode
}

// Event records a LOGn emission.
type Event struct {
	PC     uint64
	Topics []opcodes.WrappedOpcode
	Offset opcodes.WrappedOpcode
	Size   opcodes.WrappedOpcode
	Data   []byte
}

// Instruction is one single-step trace record (§3).
type Instruction struct {
	PC               uint64
	Opcode           opcodes.OpCode
	Inputs           []uint256.Int
	Outputs          []uint256.Int
	InputOperations  []opcodes.WrappedOpcode
	OutputOperations []opcodes.WrappedOpcode
}

// VM is a single contract-frame interpreter: one program counter, one
// stack, one memory, one storage view. Forking at a JUMPI is done by
// cloning a VM (see Clone), not by the VM itself.
type VM struct {
	Code    []byte
	Context Context
	Calldata []byte

	PC         uint64
	Gas        uint64
	GasUsed    uint64
	Stack      *Stack
	Memory     *Memory
	Storage    *Storage
	Events     []Event
	ExternalCalls []ExternalCall
	ReturnData []byte
	ExitCode   ExitCode

	jumpdests map[uint64]bool
	jumped    bool
}

// DefaultGas is used for analysis runs when the caller supplies none:
// spec.md §5 calls for "gas ceiling supplied by the caller (default
// u128 max)"; Go's uint64 gas counter saturates at MaxUint64 instead.
const DefaultGas = ^uint64(0)

// New returns a VM ready to execute code against calldata.
func New(code, calldata []byte, ctx Context) *VM {
	v := &VM{
		Code:     code,
		Calldata: calldata,
		Context:  ctx,
		Gas:      DefaultGas,
		Stack:    NewStack(),
		Memory:   NewMemory(),
		Storage:  NewStorage(),
		ExitCode: ExitRunning,
	}
	v.jumpdests = findJumpdests(code)
	return v
}

func findJumpdests(code []byte) map[uint64]bool {
	dests := make(map[uint64]bool)
	i := 0
	for i < len(code) {
		op := opcodes.OpCode(code[i])
		if op == opcodes.JUMPDEST {
			dests[uint64(i)] = true
			i++
			continue
		}
		i += 1 + opcodes.PushBytes(op)
	}
	return dests
}

// Clone produces an independent VM sharing no mutable state, used by the
// symbolic executor to fork at a JUMPI.
func (v *VM) Clone() *VM {
	c := &VM{
		Code:      v.Code, // immutable, safe to share
		Calldata:  v.Calldata,
		Context:   v.Context,
		PC:        v.PC,
		Gas:       v.Gas,
		GasUsed:   v.GasUsed,
		Stack:     v.Stack.Clone(),
		Memory:    v.Memory.Clone(),
		Storage:   v.Storage.Clone(),
		ExitCode:  v.ExitCode,
		jumpdests: v.jumpdests, // immutable
	}
	c.Events = append([]Event(nil), v.Events...)
	c.ExternalCalls = append([]ExternalCall(nil), v.ExternalCalls...)
	c.ReturnData = append([]byte(nil), v.ReturnData...)
	return c
}

// IsJumpDest reports whether pc is a legal JUMP/JUMPI target, letting
// callers outside the package (the symbolic executor forking at a
// JUMPI) validate a destination without re-deriving the jumpdest set.
func (v *VM) IsJumpDest(pc uint64) bool { return v.jumpdests[pc] }

// CurrentOp returns the opcode at the current PC without advancing
// anything, letting the symbolic executor recognize a JUMPI before
// stepping into it.
func (v *VM) CurrentOp() opcodes.OpCode { return v.opByte(v.PC) }

// PrepareJumpI pops the target/condition frames for the JUMPI at the
// current PC and charges its gas, without branching or advancing PC:
// the caller (the symbolic executor, which forks one VM per side of
// the branch rather than following the concrete condition value)
// decides the destination PC for each clone. ok is false if the stack
// underflowed or gas ran out, in which case ExitCode is already set.
func (v *VM) PrepareJumpI() (target, cond StackFrame, ok bool) {
	frames, err := v.Stack.PopN(2)
	if err != nil {
		v.ExitCode = ExitStackUnderflow
		return StackFrame{}, StackFrame{}, false
	}
	if !v.useGas(opcodes.Decode(byte(opcodes.JUMPI)).MinGas) {
		return StackFrame{}, StackFrame{}, false
	}
	return frames[0], frames[1], true
}

// opByte returns the opcode at pc, or STOP past the end of code (the
// EVM convention: a call that runs off the end of the code halts).
func (v *VM) opByte(pc uint64) opcodes.OpCode {
	if pc >= uint64(len(v.Code)) {
		return opcodes.STOP
	}
	return opcodes.OpCode(v.Code[pc])
}

// useGas consumes cost from the remaining gas budget; returns false and
// sets ExitOutOfGas if insufficient.
func (v *VM) useGas(cost uint64) bool {
	if cost > v.Gas {
		v.ExitCode = ExitOutOfGas
		return false
	}
	v.Gas -= cost
	v.GasUsed += cost
	return true
}

// chargeMemory resizes Memory to cover [offset, offset+size) and charges
// the expansion gas. size == 0 is always free and a no-op.
func (v *VM) chargeMemory(offset, size uint64) bool {
	if size == 0 {
		return true
	}
	cost := v.Memory.ExpansionCost(offset, size)
	if !v.useGas(cost) {
		return false
	}
	if err := v.Memory.Resize(offset + size); err != nil {
		v.ExitCode = ExitInvalidMemory
		return false
	}
	return true
}

// Step decodes and executes the single instruction at the current PC,
// returning the trace record. A non-nil error or ExitCode != ExitRunning
// after Step means execution has stopped; it is safe, but unnecessary,
// to call Step again (it returns ErrExecutionDone).
func (v *VM) Step() (*Instruction, error) {
	if v.ExitCode != ExitRunning {
		return nil, ErrExecutionDone
	}

	op := v.opByte(v.PC)
	info := opcodes.Decode(byte(op))

	if opcodes.IsPush(op) {
		return v.stepPush(op)
	}
	if opcodes.IsDup(op) {
		return v.stepDup(op)
	}
	if opcodes.IsSwap(op) {
		return v.stepSwap(op)
	}

	if v.Stack.Size() < info.Inputs {
		v.ExitCode = ExitStackUnderflow
		return nil, ErrStackUnderflow
	}

	handler, ok := jumpTable[op]
	if !ok {
		v.ExitCode = ExitInvalidOpcode
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidOpcode, byte(op))
	}

	inputs, _ := v.Stack.PopN(info.Inputs)

	if !v.useGas(info.MinGas) {
		return nil, nil
	}

	v.jumped = false
	pcBefore := v.PC
	outputs, err := handler(v, op, inputs)
	if err != nil {
		return nil, err
	}
	if v.ExitCode != ExitRunning {
		return buildInstruction(pcBefore, op, inputs, nil), nil
	}

	ins := buildInstruction(pcBefore, op, inputs, outputs)

	if len(outputs) > 0 {
		inputOps := make([]opcodes.WrappedOpcode, len(inputs))
		for i, f := range inputs {
			inputOps[i] = f.Operation
		}
		opNode := opcodes.NewWrappedOpcode(op, inputOps...)
		for _, out := range outputs {
			if len(v.Stack.data) >= MaxStackDepth {
				v.ExitCode = ExitStackOverflow
				return ins, nil
			}
			v.Stack.data = append(v.Stack.data, StackFrame{Value: out, Operation: opNode})
		}
	}

	if !v.jumped {
		v.PC++
	}
	return ins, nil
}

func buildInstruction(pc uint64, op opcodes.OpCode, inputs []StackFrame, outputs []uint256.Int) *Instruction {
	ins := &Instruction{PC: pc, Opcode: op, Outputs: outputs}
	ins.Inputs = make([]uint256.Int, len(inputs))
	ins.InputOperations = make([]opcodes.WrappedOpcode, len(inputs))
	for i, f := range inputs {
		ins.Inputs[i] = f.Value
		ins.InputOperations[i] = f.Operation
	}
	if len(outputs) > 0 {
		inputOps := ins.InputOperations
		opNode := opcodes.NewWrappedOpcode(op, inputOps...)
		ins.OutputOperations = make([]opcodes.WrappedOpcode, len(outputs))
		for i := range outputs {
			ins.OutputOperations[i] = opNode
		}
	}
	return ins
}

// stepDup handles DUPn directly against the stack: it duplicates the
// frame n positions from the top (operation included, unchanged — DUP
// does not transform the value, so its provenance is the original
// frame's operation, not a new DUP-wrapped node).
func (v *VM) stepDup(op opcodes.OpCode) (*Instruction, error) {
	n := int(op-opcodes.DUP1) + 1
	if v.Stack.Size() < n {
		v.ExitCode = ExitStackUnderflow
		return nil, ErrStackUnderflow
	}
	if !v.useGas(3) {
		return nil, nil
	}
	f := v.Stack.Peek(n - 1)
	pcBefore := v.PC
	if !v.Stack.Dup(n) {
		v.ExitCode = ExitStackOverflow
		return buildInstruction(pcBefore, op, nil, nil), nil
	}
	v.PC++
	return buildInstruction(pcBefore, op, nil, []uint256.Int{f.Value}), nil
}

// stepSwap handles SWAPn directly against the stack: it exchanges the
// top frame with the one n positions down, operations included. Neither
// frame's operation changes; SWAP only reorders, and the symbolic
// executor never needs a "SWAP produced this value" provenance node.
func (v *VM) stepSwap(op opcodes.OpCode) (*Instruction, error) {
	n := int(op-opcodes.SWAP1) + 1
	if v.Stack.Size() < n+1 {
		v.ExitCode = ExitStackUnderflow
		return nil, ErrStackUnderflow
	}
	if !v.useGas(3) {
		return nil, nil
	}
	pcBefore := v.PC
	v.Stack.Swap(n)
	v.PC++
	return buildInstruction(pcBefore, op, nil, nil), nil
}

func (v *VM) stepPush(op opcodes.OpCode) (*Instruction, error) {
	if !v.useGas(3) {
		return nil, nil
	}
	n := opcodes.PushBytes(op)
	pc := v.PC
	var buf [32]byte
	start := pc + 1
	codeLen := uint64(len(v.Code))
	for i := uint64(0); i < uint64(n); i++ {
		idx := start + i
		if idx < codeLen {
			buf[32-uint64(n)+i] = v.Code[idx]
		}
	}
	val := new(uint256.Int).SetBytes(buf[32-n:])
	opNode := opcodes.Constant(val)
	if err := v.Stack.Push(StackFrame{Value: *val, Operation: opNode}); err != nil {
		v.ExitCode = ExitStackOverflow
		return nil, nil
	}
	ins := &Instruction{
		PC:               pc,
		Opcode:           op,
		Outputs:          []uint256.Int{*val},
		OutputOperations: []opcodes.WrappedOpcode{opNode},
	}
	v.PC = pc + 1 + uint64(n)
	return ins, nil
}

// Execute runs Step in a loop until ExitCode != ExitRunning.
func (v *VM) Execute() error {
	for v.ExitCode == ExitRunning {
		if _, err := v.Step(); err != nil {
			return err
		}
	}
	return nil
}
