// Package routing holds the bounded recency tables the mesh engine
// maintains: recently seen message ids, learned next-hop routes and
// pending delivery confirmations. All three are insertion-ordered with
// oldest-first eviction once their bound is reached.
package routing

import (
	"sync"

	"github.com/meshwire/meshwire/pkg/frame"
)

// Entry maps an ultimate destination to the neighbour frames for it
// should be handed to.
type Entry struct {
	Destination frame.Addr `json:"destination"`
	NextHop     frame.Addr `json:"next_hop"`
}

// Table is the bounded route table. At most one entry exists per
// destination; learning a destination again replaces the old entry.
type Table struct {
	mu      sync.RWMutex
	cap     int
	entries []Entry
}

// NewTable returns a Table bounded to cap entries.
func NewTable(cap int) *Table {
	return &Table{cap: cap}
}

// NextHop returns the learned next hop for dst.
func (t *Table) NextHop(dst frame.Addr) (frame.Addr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		if e.Destination == dst {
			return e.NextHop, true
		}
	}
	return frame.Addr{}, false
}

// Learn records hop as the next hop towards dst. Any previous entry for
// dst is removed first; the oldest entry is evicted once the bound is
// exceeded.
func (t *Table) Learn(dst, hop frame.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Destination == dst {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	t.entries = append(t.entries, Entry{Destination: dst, NextHop: hop})
	if len(t.entries) > t.cap {
		t.entries = t.entries[1:]
	}
}

// Invalidate removes the entry for dst, reporting whether one existed.
func (t *Table) Invalidate(dst frame.Addr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Destination == dst {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of stored entries.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// All returns a snapshot of the table in insertion order.
func (t *Table) All() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
