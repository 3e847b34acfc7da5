package vm

import (
	"errors"
	"sort"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/holiman/uint256"
)

// DefaultMemoryCap bounds a single VM's memory growth (16 MiB, per §5).
const DefaultMemoryCap = 16 * 1024 * 1024

var ErrMemoryLimit = errors.New("vm: memory expansion exceeds cap")

// memRange is one entry in the range-map: the half-open byte range
// [Start, End) and the operation that most recently wrote it.
type memRange struct {
	Start, End uint64
	Op         opcodes.WrappedOpcode
}

// Memory is a byte-addressable, dynamically grown buffer plus a
// range-map recording, for every byte ever written, the WrappedOpcode
// responsible for the most recent write covering it.
type Memory struct {
	store  []byte
	ranges []memRange // sorted, pairwise-disjoint by Start
	cap    uint64
}

// NewMemory returns an empty Memory using the default cap.
func NewMemory() *Memory {
	return &Memory{cap: DefaultMemoryCap}
}

// NewMemoryWithCap returns an empty Memory bounded to capBytes.
func NewMemoryWithCap(capBytes uint64) *Memory {
	return &Memory{cap: capBytes}
}

// Len returns the current byte length of the buffer.
func (m *Memory) Len() int { return len(m.store) }

// Resize grows the buffer to at least size bytes, zero-filling the
// extension. It never shrinks.
func (m *Memory) Resize(size uint64) error {
	if size > m.cap {
		return ErrMemoryLimit
	}
	if uint64(len(m.store)) >= size {
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.store)
	m.store = grown
	return nil
}

// ExpansionCost returns the delta in EVM memory gas for expanding to
// cover [offset, offset+size), using the standard quadratic formula
// over current vs. new word count. Returns 0 if size is 0 or no growth
// is needed.
func (m *Memory) ExpansionCost(offset, size uint64) uint64 {
	if size == 0 {
		return 0
	}
	newLen := offset + size
	if newLen <= uint64(len(m.store)) {
		return 0
	}
	oldWords := toWordSize(uint64(len(m.store)))
	newWords := toWordSize(newLen)
	return memGasForWords(newWords) - memGasForWords(oldWords)
}

func toWordSize(n uint64) uint64 {
	return (n + 31) / 32
}

func memGasForWords(words uint64) uint64 {
	return 3*words + (words*words)/512
}

// Store writes data at offset, recording op as the provenance for the
// written range, and updates the range-map per the §3 invariants:
// an incumbent range fully contained in the new write is deleted, one
// strictly containing it is split, and one overlapping one end is
// shortened. Ranges never overlap after the call.
func (m *Memory) Store(offset uint64, data []byte, op opcodes.WrappedOpcode) error {
	if len(data) == 0 {
		return nil
	}
	end := offset + uint64(len(data))
	if err := m.Resize(end); err != nil {
		return err
	}
	copy(m.store[offset:end], data)
	m.recordRange(offset, end, op)
	return nil
}

func (m *Memory) recordRange(start, end uint64, op opcodes.WrappedOpcode) {
	var kept []memRange
	for _, r := range m.ranges {
		switch {
		case r.End <= start || r.Start >= end:
			// Disjoint from the new write; keep untouched.
			kept = append(kept, r)
		case r.Start >= start && r.End <= end:
			// Fully contained: delete.
		case r.Start < start && r.End > end:
			// Strictly contains the new write: split into two.
			kept = append(kept, memRange{Start: r.Start, End: start, Op: r.Op})
			kept = append(kept, memRange{Start: end, End: r.End, Op: r.Op})
		case r.Start < start:
			// Overlaps the left edge: shorten from the right.
			kept = append(kept, memRange{Start: r.Start, End: start, Op: r.Op})
		default:
			// Overlaps the right edge: shorten from the left.
			kept = append(kept, memRange{Start: end, End: r.End, Op: r.Op})
		}
	}
	kept = append(kept, memRange{Start: start, End: end, Op: op})
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	m.ranges = kept
}

// Load returns the 32-byte word starting at offset, growing the buffer
// if needed, and the WrappedOpcode covering that offset if one is on
// record (the first range-map entry intersecting [offset, offset+32)).
func (m *Memory) Load(offset uint64) (uint256.Int, *opcodes.WrappedOpcode) {
	var out uint256.Int
	end := offset + 32
	if uint64(len(m.store)) < end {
		// Reads past the current buffer observe zero bytes without
		// mutating state; callers needing gas-accounted growth call
		// Resize/ExpansionCost explicitly beforehand.
		var word [32]byte
		if offset < uint64(len(m.store)) {
			copy(word[:], m.store[offset:])
		}
		out.SetBytes(word[:])
	} else {
		out.SetBytes(m.store[offset:end])
	}

	for i := range m.ranges {
		r := m.ranges[i]
		if r.Start < end && r.End > offset {
			return out, &m.ranges[i].Op
		}
	}
	return out, nil
}

// GetCopy returns a copy of size bytes starting at offset, zero-padding
// past the end of the buffer.
func (m *Memory) GetCopy(offset, size uint64) []byte {
	out := make([]byte, size)
	if offset >= uint64(len(m.store)) || size == 0 {
		return out
	}
	n := copy(out, m.store[offset:])
	_ = n
	return out
}

// Ranges returns the current range-map entries, sorted by Start, for
// inspection/testing.
func (m *Memory) Ranges() []memRange {
	out := make([]memRange, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// Clone returns an independent copy for forking at a JUMPI.
func (m *Memory) Clone() *Memory {
	store := make([]byte, len(m.store))
	copy(store, m.store)
	ranges := make([]memRange, len(m.ranges))
	copy(ranges, m.ranges)
	return &Memory{store: store, ranges: ranges, cap: m.cap}
}
