package opcodes

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestDecodeKnown(t *testing.T) {
	tests := []struct {
		op      OpCode
		name    string
		inputs  int
		outputs int
	}{
		{ADD, "ADD", 2, 1},
		{PUSH1, "PUSH1", 0, 1},
		{PUSH32, "PUSH32", 0, 1},
		{DUP16, "DUP16", 16, 17},
		{SWAP1, "SWAP1", 2, 2},
		{LOG4, "LOG4", 6, 0},
		{JUMPDEST, "JUMPDEST", 0, 0},
	}
	for _, tt := range tests {
		info := Decode(byte(tt.op))
		if info.Name != tt.name || info.Inputs != tt.inputs || info.Outputs != tt.outputs {
			t.Errorf("Decode(%v) = %+v, want name=%s inputs=%d outputs=%d", tt.op, info, tt.name, tt.inputs, tt.outputs)
		}
	}
}

func TestDecodeUnknownIsInvalid(t *testing.T) {
	// 0x0c is unassigned in every fork.
	info := Decode(0x0c)
	if info.Name != "INVALID" || info.Inputs != 0 || info.Outputs != 0 {
		t.Fatalf("unknown opcode should decode as INVALID, got %+v", info)
	}
	if info.MinGas != allRemainingGas {
		t.Fatalf("INVALID MinGas should consume all remaining gas")
	}
}

func TestWrappedOpcodeDepth(t *testing.T) {
	leaf := Constant(uint256.NewInt(10))
	if leaf.Depth() != 0 {
		t.Fatalf("leaf depth = %d, want 0", leaf.Depth())
	}
	add := NewWrappedOpcode(ADD, leaf, leaf)
	if add.Depth() != 1 {
		t.Fatalf("ADD(leaf,leaf) depth = %d, want 1", add.Depth())
	}
	nested := NewWrappedOpcode(MUL, add, leaf)
	if nested.Depth() != 2 {
		t.Fatalf("nested depth = %d, want 2", nested.Depth())
	}
}

func TestSolidifyArithmetic(t *testing.T) {
	a := Constant(uint256.NewInt(10))
	b := Constant(uint256.NewInt(10))
	add := NewWrappedOpcode(ADD, a, b)
	got := add.Solidify()
	want := "(0x0a + 0x0a)"
	if got != want {
		t.Fatalf("Solidify() = %q, want %q", got, want)
	}
}

func TestSolidifyDeterministic(t *testing.T) {
	a := Constant(uint256.NewInt(1))
	w := NewWrappedOpcode(SHA3, a, a)
	if w.Solidify() != w.Solidify() {
		t.Fatalf("Solidify is not deterministic")
	}
}
