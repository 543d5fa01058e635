package service

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const trackedWrites = 4096

// writeTracker orders cache fills against writes. Every write gets a sequence
// number; a read that started before the latest write of its id must not refill
// the cache with what it loaded.
type writeTracker struct {
	mu     sync.Mutex
	seq    uint64
	floor  uint64
	writes *lru.Cache[string, uint64]
}

func newWriteTracker(size int) *writeTracker {
	t := &writeTracker{}
	// Evicted ids fall back to the newest evicted sequence.
	t.writes, _ = lru.NewWithEvict[string, uint64](size, func(_ string, seq uint64) {
		if seq > t.floor {
			t.floor = seq
		}
	})
	return t
}

// mark returns the sequence a read starts from.
func (t *writeTracker) mark() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// record stamps a write of id and runs fn before any read can fill the cache.
func (t *writeTracker) record(id string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.writes.Add(id, t.seq)
	fn()
}

// fill runs fn unless id was written after since. It reports whether fn ran.
func (t *writeTracker) fill(id string, since uint64, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.writes.Get(id)
	if !ok {
		last = t.floor
	}
	if last > since {
		return false
	}
	fn()
	return true
}
