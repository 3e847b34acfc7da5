package vm

import (
	"bytes"
	"testing"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/holiman/uint256"
)

func constOp(v uint64) opcodes.WrappedOpcode {
	return opcodes.Constant(uint256.NewInt(v))
}

func TestMemoryResizeZeroFills(t *testing.T) {
	m := NewMemory()
	if err := m.Resize(64); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", m.Len())
	}
	if !bytes.Equal(m.GetCopy(0, 64), make([]byte, 64)) {
		t.Fatal("expansion did not zero-fill")
	}
}

func TestMemoryResizeNeverShrinks(t *testing.T) {
	m := NewMemory()
	m.Resize(64)
	m.Resize(32)
	if m.Len() != 64 {
		t.Fatalf("Len() = %d after shrink request, want 64", m.Len())
	}
}

func TestMemoryResizeOverCapFails(t *testing.T) {
	m := NewMemoryWithCap(16)
	if err := m.Resize(17); err != ErrMemoryLimit {
		t.Fatalf("err = %v, want ErrMemoryLimit", err)
	}
}

func TestMemoryStoreLoadRoundTrip(t *testing.T) {
	m := NewMemory()
	data := bytes.Repeat([]byte{0xab}, 32)
	op := constOp(1)
	if err := m.Store(0, data, op); err != nil {
		t.Fatal(err)
	}
	val, prov := m.Load(0)
	want := new(uint256.Int).SetBytes(data)
	if val.Cmp(want) != 0 {
		t.Fatalf("Load() = %s, want %s", val.Hex(), want.Hex())
	}
	if prov == nil || prov.Solidify() != op.Solidify() {
		t.Fatal("Load() did not return the recorded provenance")
	}
}

func TestMemoryLoadPastBufferIsZero(t *testing.T) {
	m := NewMemory()
	val, prov := m.Load(1000)
	if !val.IsZero() {
		t.Fatalf("Load past buffer = %s, want 0", val.Hex())
	}
	if prov != nil {
		t.Fatal("Load past buffer should carry no provenance")
	}
}

// TestMemoryRangeMapFullyContained exercises the "fully contained -> delete"
// branch of the range-map invariant: a later, wider write swallows an
// earlier, narrower one entirely.
func TestMemoryRangeMapFullyContained(t *testing.T) {
	m := NewMemory()
	m.Store(8, []byte{1, 2, 3, 4}, constOp(1))
	m.Store(0, bytes.Repeat([]byte{0}, 32), constOp(2))
	ranges := m.Ranges()
	if len(ranges) != 1 {
		t.Fatalf("ranges = %+v, want a single entry covering [0,32)", ranges)
	}
	if ranges[0].Start != 0 || ranges[0].End != 32 {
		t.Fatalf("range = [%d,%d), want [0,32)", ranges[0].Start, ranges[0].End)
	}
}

// TestMemoryRangeMapSplit exercises the "strictly contains -> split" branch:
// a narrow write lands in the middle of a wider earlier one.
func TestMemoryRangeMapSplit(t *testing.T) {
	m := NewMemory()
	m.Store(0, bytes.Repeat([]byte{0}, 32), constOp(1))
	m.Store(10, []byte{1, 2}, constOp(2))
	ranges := m.Ranges()
	if len(ranges) != 3 {
		t.Fatalf("ranges = %+v, want 3 entries (left remainder, new write, right remainder)", ranges)
	}
	if ranges[0].Start != 0 || ranges[0].End != 10 {
		t.Fatalf("left remainder = [%d,%d), want [0,10)", ranges[0].Start, ranges[0].End)
	}
	if ranges[1].Start != 10 || ranges[1].End != 12 {
		t.Fatalf("new write = [%d,%d), want [10,12)", ranges[1].Start, ranges[1].End)
	}
	if ranges[2].Start != 12 || ranges[2].End != 32 {
		t.Fatalf("right remainder = [%d,%d), want [12,32)", ranges[2].Start, ranges[2].End)
	}
}

// TestMemoryRangeMapShorten exercises the overlap-one-edge branches.
func TestMemoryRangeMapShorten(t *testing.T) {
	m := NewMemory()
	m.Store(0, bytes.Repeat([]byte{0}, 16), constOp(1))
	m.Store(8, bytes.Repeat([]byte{0}, 16), constOp(2))
	ranges := m.Ranges()
	if len(ranges) != 2 {
		t.Fatalf("ranges = %+v, want 2 entries", ranges)
	}
	if ranges[0].Start != 0 || ranges[0].End != 8 {
		t.Fatalf("shortened first range = [%d,%d), want [0,8)", ranges[0].Start, ranges[0].End)
	}
	if ranges[1].Start != 8 || ranges[1].End != 24 {
		t.Fatalf("second range = [%d,%d), want [8,24)", ranges[1].Start, ranges[1].End)
	}
}

func TestMemoryRangesStayDisjointAndSorted(t *testing.T) {
	m := NewMemory()
	m.Store(100, []byte{1}, constOp(1))
	m.Store(0, []byte{1}, constOp(2))
	m.Store(50, []byte{1}, constOp(3))
	ranges := m.Ranges()
	for i := 1; i < len(ranges); i++ {
		if ranges[i-1].End > ranges[i].Start {
			t.Fatalf("ranges overlap or are unsorted: %+v", ranges)
		}
	}
}

func TestMemoryExpansionCostQuadratic(t *testing.T) {
	m := NewMemory()
	// First 32 bytes: 1 word, cost = 3*1 + 1/512 = 3.
	if got := m.ExpansionCost(0, 32); got != 3 {
		t.Fatalf("ExpansionCost(0,32) = %d, want 3", got)
	}
	m.Resize(32)
	// No growth needed: free.
	if got := m.ExpansionCost(0, 32); got != 0 {
		t.Fatalf("ExpansionCost with no growth = %d, want 0", got)
	}
}

func TestMemoryGetCopyZeroPadsPastEnd(t *testing.T) {
	m := NewMemory()
	m.Store(0, []byte{1, 2, 3}, constOp(1))
	got := m.GetCopy(0, 10)
	want := []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("GetCopy = %v, want %v", got, want)
	}
}

func TestMemoryCloneIsIndependent(t *testing.T) {
	m := NewMemory()
	m.Store(0, []byte{1, 2, 3, 4}, constOp(1))
	c := m.Clone()
	c.Store(0, []byte{9, 9, 9, 9}, constOp(2))
	if bytes.Equal(m.GetCopy(0, 4), c.GetCopy(0, 4)) {
		t.Fatal("clone shares backing storage with original")
	}
}
