package store

import (
	"sync"

	"github.com/george-ags/lm-micra/internal/brew"
)

// FakeStore records saves in memory and serves a scripted load.
type FakeStore struct {
	mu sync.Mutex

	// LoadMemories is what Load returns; leave nil for factory defaults.
	LoadMemories []brew.Memory

	// SaveErr, when set, is returned by every Save call. The snapshot is
	// still recorded.
	SaveErr error

	saves [][]brew.Memory
}

// Save records the snapshot.
func (f *FakeStore) Save(mems []brew.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := make([]brew.Memory, len(mems))
	copy(snap, mems)
	f.saves = append(f.saves, snap)
	return f.SaveErr
}

// Load returns the scripted memories, or defaults when none are scripted.
func (f *FakeStore) Load() []brew.Memory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.LoadMemories) == 0 {
		return brew.DefaultMemories()
	}
	out := make([]brew.Memory, len(f.LoadMemories))
	copy(out, f.LoadMemories)
	return out
}

// Saves returns every snapshot passed to Save, oldest first.
func (f *FakeStore) Saves() [][]brew.Memory {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]brew.Memory, len(f.saves))
	for i, s := range f.saves {
		cp := make([]brew.Memory, len(s))
		copy(cp, s)
		out[i] = cp
	}
	return out
}

// SaveCount returns how many Save calls were made.
func (f *FakeStore) SaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// LastSave returns the most recent snapshot, or nil when none exists.
func (f *FakeStore) LastSave() []brew.Memory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	last := f.saves[len(f.saves)-1]
	out := make([]brew.Memory, len(last))
	copy(out, last)
	return out
}
