package engine

import "sync"

// lockTable serializes transitions per key (auction id or identity).
// Locks are created on first use and held for the life of the table; the key
// space is bounded by live auctions and active withdrawers.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the key's mutex and returns its unlock function.
func (t *lockTable) lock(key string) func() {
	t.mu.Lock()
	entry, ok := t.locks[key]
	if !ok {
		entry = &sync.Mutex{}
		t.locks[key] = entry
	}
	t.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
