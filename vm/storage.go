package vm

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Word is a 32-byte storage key or value.
type Word [32]byte

const (
	coldAccessCost  = 2100
	warmAccessCost  = 100
	sstoreSetCost   = 20000
	sstoreClearCost = 2900
)

// Storage holds the persistent and transient key/value mappings plus the
// access set used for cold/warm gas accounting. Heimdall never executes
// a real world-state transaction, so this is scoped to a single run: it
// starts empty and every key is cold until first touched.
type Storage struct {
	persistent map[Word]Word
	transient  map[Word]Word
	accessed   mapset.Set[Word]
}

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{
		persistent: make(map[Word]Word),
		transient:  make(map[Word]Word),
		accessed:   mapset.NewThreadUnsafeSet[Word](),
	}
}

// SLoad loads the persistent value at key; an unset key yields the zero
// word, per §3.
func (s *Storage) SLoad(key Word) Word {
	return s.persistent[key]
}

// SStore sets the persistent value at key.
func (s *Storage) SStore(key, value Word) {
	s.persistent[key] = value
}

// TLoad loads the transient value at key.
func (s *Storage) TLoad(key Word) Word {
	return s.transient[key]
}

// TStore sets the transient value at key.
func (s *Storage) TStore(key, value Word) {
	s.transient[key] = value
}

// AccessCost returns 2100 on the first touch of key in this run, 100
// afterwards, and marks key as warm as a side effect.
func (s *Storage) AccessCost(key Word) uint64 {
	if s.accessed.Contains(key) {
		return warmAccessCost
	}
	s.accessed.Add(key)
	return coldAccessCost
}

// StorageCost returns the gas for writing value to key via SSTORE: the
// cold/warm access cost plus 20000 for a non-zero write or 2900 for a
// zero write. The slot's current value is not consulted.
func (s *Storage) StorageCost(key Word, value Word) uint64 {
	access := s.AccessCost(key)
	var zero Word
	if value == zero {
		return access + sstoreClearCost
	}
	return access + sstoreSetCost
}

// Clone returns an independent copy for forking at a JUMPI.
func (s *Storage) Clone() *Storage {
	c := &Storage{
		persistent: make(map[Word]Word, len(s.persistent)),
		transient:  make(map[Word]Word, len(s.transient)),
		accessed:   s.accessed.Clone(),
	}
	for k, v := range s.persistent {
		c.persistent[k] = v
	}
	for k, v := range s.transient {
		c.transient[k] = v
	}
	return c
}
