package vm

import (
	"testing"

	"github.com/bifrost-sh/heimdall/opcodes"
)

func push1(b byte) []byte { return []byte{byte(opcodes.PUSH1), b} }

func runToCompletion(t *testing.T, code []byte) *VM {
	t.Helper()
	v := New(code, nil, Context{})
	if err := v.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	return v
}

func TestVMAddition(t *testing.T) {
	// PUSH1 2 PUSH1 3 ADD STOP
	code := append(append(push1(2), push1(3)...), byte(opcodes.ADD), byte(opcodes.STOP))
	v := runToCompletion(t, code)
	if v.ExitCode != ExitStop {
		t.Fatalf("ExitCode = %v, want stop", v.ExitCode)
	}
	if v.Stack.Size() != 1 {
		t.Fatalf("stack size = %d, want 1", v.Stack.Size())
	}
	if got := v.Stack.Peek(0).Value.Uint64(); got != 5 {
		t.Fatalf("result = %d, want 5", got)
	}
}

func TestVMDivByZeroYieldsZero(t *testing.T) {
	// PUSH1 0 PUSH1 5 DIV STOP  (5 / 0)
	code := append(append(push1(0), push1(5)...), byte(opcodes.DIV), byte(opcodes.STOP))
	v := runToCompletion(t, code)
	if got := v.Stack.Peek(0).Value.Uint64(); got != 0 {
		t.Fatalf("5 DIV 0 = %d, want 0", got)
	}
}

func TestVMDupKeepsOriginalProvenance(t *testing.T) {
	// PUSH1 5 DUP1 ADD STOP -> 10, and the DUP'd operand keeps the PUSH's
	// provenance rather than being wrapped in a DUP node.
	code := append(push1(5), byte(opcodes.DUP1), byte(opcodes.ADD), byte(opcodes.STOP))
	v := runToCompletion(t, code)
	if got := v.Stack.Peek(0).Value.Uint64(); got != 10 {
		t.Fatalf("result = %d, want 10", got)
	}
	if got, want := v.Stack.Peek(0).Operation.Solidify(), "(0x05 + 0x05)"; got != want {
		t.Fatalf("provenance = %q, want %q", got, want)
	}
}

func TestVMSwap(t *testing.T) {
	// PUSH1 1 PUSH1 2 SWAP1 STOP -> stack top-to-bottom: 1, 2
	code := append(append(push1(1), push1(2)...), byte(opcodes.SWAP1), byte(opcodes.STOP))
	v := runToCompletion(t, code)
	if got := v.Stack.Peek(0).Value.Uint64(); got != 1 {
		t.Fatalf("top = %d, want 1", got)
	}
	if got := v.Stack.Peek(1).Value.Uint64(); got != 2 {
		t.Fatalf("second = %d, want 2", got)
	}
}

func TestVMStackUnderflow(t *testing.T) {
	code := []byte{byte(opcodes.ADD)}
	v := New(code, nil, Context{})
	if err := v.Execute(); err != ErrStackUnderflow {
		t.Fatalf("Execute() err = %v, want ErrStackUnderflow", err)
	}
	if v.ExitCode != ExitStackUnderflow {
		t.Fatalf("ExitCode = %v, want stack-underflow", v.ExitCode)
	}
}

func TestVMInvalidOpcode(t *testing.T) {
	code := []byte{0x0c}
	v := New(code, nil, Context{})
	if err := v.Execute(); err == nil {
		t.Fatal("expected an error from an invalid opcode")
	}
	if v.ExitCode != ExitInvalidOpcode {
		t.Fatalf("ExitCode = %v, want invalid-opcode", v.ExitCode)
	}
}

func TestVMOutOfGas(t *testing.T) {
	code := append(append(push1(2), push1(3)...), byte(opcodes.ADD), byte(opcodes.STOP))
	v := New(code, nil, Context{})
	v.Gas = 2 // below PUSH1's 3 gas
	if err := v.Execute(); err != nil {
		t.Fatalf("Execute() should stop cleanly on out-of-gas, got err: %v", err)
	}
	if v.ExitCode != ExitOutOfGas {
		t.Fatalf("ExitCode = %v, want out-of-gas", v.ExitCode)
	}
}

func TestVMJumpToValidDest(t *testing.T) {
	// PUSH1 4 JUMP JUMPDEST(pc=4)->wrong: compute offsets manually.
	// layout: [0]PUSH1 [1]0x04 [2]JUMP [3]INVALID [4]JUMPDEST [5]STOP
	code := []byte{
		byte(opcodes.PUSH1), 0x04,
		byte(opcodes.JUMP),
		byte(opcodes.INVALID),
		byte(opcodes.JUMPDEST),
		byte(opcodes.STOP),
	}
	v := runToCompletion(t, code)
	if v.ExitCode != ExitStop {
		t.Fatalf("ExitCode = %v, want stop (JUMP should skip the INVALID)", v.ExitCode)
	}
}

func TestVMJumpToInvalidDest(t *testing.T) {
	// PUSH1 3 JUMP STOP(pc=3, not a JUMPDEST)
	code := []byte{
		byte(opcodes.PUSH1), 0x03,
		byte(opcodes.JUMP),
		byte(opcodes.STOP),
	}
	v := runToCompletion(t, code)
	if v.ExitCode != ExitInvalidJump {
		t.Fatalf("ExitCode = %v, want invalid-jump", v.ExitCode)
	}
}

func TestVMJumpiFallsThroughWhenFalse(t *testing.T) {
	// PUSH1 0 (cond) PUSH1 8 (dest) JUMPI PUSH1 1 STOP JUMPDEST(pc=8) PUSH1 2 STOP
	code := []byte{
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.PUSH1), 0x08,
		byte(opcodes.JUMPI),
		byte(opcodes.PUSH1), 0x01,
		byte(opcodes.STOP),
		byte(opcodes.JUMPDEST),
		byte(opcodes.PUSH1), 0x02,
		byte(opcodes.STOP),
	}
	v := runToCompletion(t, code)
	if got := v.Stack.Peek(0).Value.Uint64(); got != 1 {
		t.Fatalf("fallthrough result = %d, want 1", got)
	}
}

func TestVMMstoreMloadRoundTrip(t *testing.T) {
	// PUSH1 9 PUSH1 0 MSTORE PUSH1 0 MLOAD STOP
	code := []byte{
		byte(opcodes.PUSH1), 0x09,
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.MSTORE),
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.MLOAD),
		byte(opcodes.STOP),
	}
	v := runToCompletion(t, code)
	if got := v.Stack.Peek(0).Value.Uint64(); got != 9 {
		t.Fatalf("MLOAD result = %d, want 9", got)
	}
}

func TestVMSstoreSloadRoundTrip(t *testing.T) {
	// PUSH1 7 PUSH1 0 SSTORE PUSH1 0 SLOAD STOP
	code := []byte{
		byte(opcodes.PUSH1), 0x07,
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.SSTORE),
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.SLOAD),
		byte(opcodes.STOP),
	}
	v := runToCompletion(t, code)
	if got := v.Stack.Peek(0).Value.Uint64(); got != 7 {
		t.Fatalf("SLOAD result = %d, want 7", got)
	}
}

func TestVMReturnCapturesMemory(t *testing.T) {
	// PUSH1 9 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	code := []byte{
		byte(opcodes.PUSH1), 0x09,
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.MSTORE),
		byte(opcodes.PUSH1), 0x20,
		byte(opcodes.PUSH1), 0x00,
		byte(opcodes.RETURN),
	}
	v := runToCompletion(t, code)
	if v.ExitCode != ExitReturn {
		t.Fatalf("ExitCode = %v, want return", v.ExitCode)
	}
	if len(v.ReturnData) != 32 {
		t.Fatalf("ReturnData length = %d, want 32", len(v.ReturnData))
	}
	if v.ReturnData[31] != 9 {
		t.Fatalf("ReturnData[31] = %d, want 9", v.ReturnData[31])
	}
}

func TestVMStepAfterDoneIsError(t *testing.T) {
	v := New([]byte{byte(opcodes.STOP)}, nil, Context{})
	if _, err := v.Step(); err != nil {
		t.Fatalf("first Step() returned error: %v", err)
	}
	if _, err := v.Step(); err != ErrExecutionDone {
		t.Fatalf("second Step() err = %v, want ErrExecutionDone", err)
	}
}

func TestVMCloneForksIndependently(t *testing.T) {
	code := append(push1(1), byte(opcodes.STOP))
	v := New(code, nil, Context{})
	v.Step()
	c := v.Clone()
	c.Stack.Push(StackFrame{})
	if v.Stack.Size() == c.Stack.Size() {
		t.Fatal("clone shares stack with original")
	}
}

func TestVMWrappedOpcodeDAGReflectsComputation(t *testing.T) {
	// PUSH1 2 PUSH1 3 ADD STOP; provenance of the result should render as
	// an ADD over the two pushed constants.
	code := append(append(push1(2), push1(3)...), byte(opcodes.ADD), byte(opcodes.STOP))
	v := runToCompletion(t, code)
	top := v.Stack.Peek(0)
	want := "(0x03 + 0x02)"
	if got := top.Operation.Solidify(); got != want {
		t.Fatalf("provenance = %q, want %q", got, want)
	}
}
