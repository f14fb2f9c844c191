package routing

import "sync"

// ConfirmList holds message ids for which a delivery confirmation has
// arrived at the originator but has not yet been matched against its
// waiting unicast. Entries that never match evict by FIFO once the bound
// is reached; the wait path does not scrub them on timeout.
type ConfirmList struct {
	mu  sync.Mutex
	cap int
	ids []uint32
}

// NewConfirmList returns a ConfirmList bounded to cap entries.
func NewConfirmList(cap int) *ConfirmList {
	return &ConfirmList{cap: cap}
}

// Add appends id, evicting the oldest entry if the bound is exceeded.
func (l *ConfirmList) Add(id uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ids = append(l.ids, id)
	if len(l.ids) > l.cap {
		l.ids = l.ids[1:]
	}
}

// TakeMatch removes id from the list, reporting whether it was present.
func (l *ConfirmList) TakeMatch(id uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of pending confirmations.
func (l *ConfirmList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}
