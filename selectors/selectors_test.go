package selectors

import (
	"context"
	"testing"

	"github.com/bifrost-sh/heimdall/opcodes"
)

// TestDiscoverFindsDispatcherEntry exercises spec.md §8 scenario 5:
// a PUSH4 selector compared against calldata and JUMPI'd on resolves to
// its taken branch's PC.
func TestDiscoverFindsDispatcherEntry(t *testing.T) {
	code := []byte{
		byte(opcodes.PUSH1), 0x00, // pc0,1
		byte(opcodes.CALLDATALOAD),              // pc2
		byte(opcodes.PUSH4), 0xd0, 0xe3, 0x0d, 0xb0, // pc3-7
		byte(opcodes.EQ),           // pc8
		byte(opcodes.PUSH1), 0x0d, // pc9,10 target=13
		byte(opcodes.JUMPI),   // pc11
		byte(opcodes.STOP),    // pc12
		byte(opcodes.JUMPDEST), // pc13
		byte(opcodes.STOP),    // pc14
	}

	out := Discover(context.Background(), code)
	want := [4]byte{0xd0, 0xe3, 0x0d, 0xb0}
	pc, ok := out[want]
	if !ok {
		t.Fatalf("selector %x not discovered; got %v", want, out)
	}
	if pc != 13 {
		t.Fatalf("entry pc = %d, want 13", pc)
	}
}

func TestCandidatesDedup(t *testing.T) {
	code := []byte{
		byte(opcodes.PUSH4), 0x01, 0x02, 0x03, 0x04,
		byte(opcodes.POP),
		byte(opcodes.PUSH4), 0x01, 0x02, 0x03, 0x04,
	}
	got := candidates(code)
	if len(got) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(got))
	}
}
