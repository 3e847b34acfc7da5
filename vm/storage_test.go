package vm

import "testing"

func word(b byte) Word {
	var w Word
	w[31] = b
	return w
}

func TestStorageSLoadUnsetIsZero(t *testing.T) {
	s := NewStorage()
	got := s.SLoad(word(1))
	var zero Word
	if got != zero {
		t.Fatalf("SLoad of unset key = %v, want zero word", got)
	}
}

func TestStorageSStoreSLoadRoundTrip(t *testing.T) {
	s := NewStorage()
	s.SStore(word(1), word(42))
	if got := s.SLoad(word(1)); got != word(42) {
		t.Fatalf("SLoad = %v, want %v", got, word(42))
	}
}

func TestStorageTransientIsSeparateFromPersistent(t *testing.T) {
	s := NewStorage()
	s.TStore(word(1), word(7))
	if got := s.SLoad(word(1)); got != (Word{}) {
		t.Fatal("TSTORE leaked into persistent storage")
	}
	if got := s.TLoad(word(1)); got != word(7) {
		t.Fatalf("TLoad = %v, want %v", got, word(7))
	}
}

func TestStorageAccessCostColdThenWarm(t *testing.T) {
	s := NewStorage()
	k := word(1)
	if got := s.AccessCost(k); got != coldAccessCost {
		t.Fatalf("first access cost = %d, want %d", got, coldAccessCost)
	}
	if got := s.AccessCost(k); got != warmAccessCost {
		t.Fatalf("second access cost = %d, want %d", got, warmAccessCost)
	}
}

func TestStorageStorageCostSetVsClear(t *testing.T) {
	s := NewStorage()
	k := word(1)
	setCost := s.StorageCost(k, word(5))
	if setCost != coldAccessCost+sstoreSetCost {
		t.Fatalf("set cost = %d, want %d", setCost, coldAccessCost+sstoreSetCost)
	}
	clearCost := s.StorageCost(k, Word{})
	if clearCost != warmAccessCost+sstoreClearCost {
		t.Fatalf("clear cost = %d, want %d", clearCost, warmAccessCost+sstoreClearCost)
	}
}

func TestStorageCloneIsIndependent(t *testing.T) {
	s := NewStorage()
	s.SStore(word(1), word(1))
	c := s.Clone()
	c.SStore(word(1), word(2))
	if got := s.SLoad(word(1)); got != word(1) {
		t.Fatal("clone mutation leaked into original")
	}
}
