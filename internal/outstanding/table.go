package outstanding

import (
	"errors"
	"sync"
)

// ErrExhausted is returned by Insert when every one of the 2^32-1 usable
// sequence numbers is currently live (spec.md section 4.1: "practically
// unreachable; spec requires the check").
var ErrExhausted = errors.New("outstanding: no free sequence number")

// Table is the single source of truth for which requests are currently
// in flight on a session. Allocation and lookup-and-remove share one lock
// because seqnum allocation must never collide with a concurrent Dequeue
// that frees up a slot (spec.md section 4.1).
type Table struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]*Request
}

// NewTable creates an empty table with the seqnum counter primed so the
// first allocation is 1 (spec.md section 3: "starts at 1, wraps skipping
// 0").
func NewTable() *Table {
	return &Table{
		next:    1,
		entries: make(map[uint32]*Request),
	}
}

// Insert assigns the request the next free sequence number (skipping 0 and
// any number currently live), records it, and returns the chosen number.
func (t *Table) Insert(r *Request) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if uint32(len(t.entries)) == ^uint32(0) {
		return 0, ErrExhausted
	}

	start := t.next
	for {
		candidate := t.next
		t.next++
		if t.next == 0 {
			t.next = 1
		}

		if candidate == 0 {
			continue
		}
		if _, taken := t.entries[candidate]; taken {
			if t.next == start {
				return 0, ErrExhausted
			}
			continue
		}

		r.SeqNum = candidate
		r.store(StatusInit)
		t.entries[candidate] = r
		return candidate, nil
	}
}

// Dequeue atomically looks up and removes the request for seqNum. At most
// one caller ever observes a given request via Dequeue (spec.md section
// 4.1).
func (t *Table) Dequeue(seqNum uint32) (*Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[seqNum]
	if !ok {
		return nil, false
	}
	delete(t.entries, seqNum)
	return r, true
}

// Peek looks up a request without removing it. Used by the cancellation
// path, which must mutate the request's status before deciding whether a
// wire UNLINK is needed, without racing a concurrent Dequeue for the
// bookkeeping entry itself.
func (t *Table) Peek(seqNum uint32) (*Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.entries[seqNum]
	return r, ok
}

// Remove deletes seqNum from the table if present, without returning the
// request. Used to drop the entry of a frame that never reached the wire
// (the session began draining before it was queued) or of an UNLINK whose
// write failed.
func (t *Table) Remove(seqNum uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, seqNum)
}

// Drain atomically removes and returns every currently outstanding
// request, used during session teardown (spec.md section 4.1).
func (t *Table) Drain() []*Request {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Request, 0, len(t.entries))
	for seq, r := range t.entries {
		out = append(out, r)
		delete(t.entries, seq)
	}
	return out
}

// Len reports the number of currently outstanding requests. Intended for
// tests and metrics, not for control flow (the count can change the
// instant after it is read).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
