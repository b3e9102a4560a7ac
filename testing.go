package usbip

import (
	"sync"

	"github.com/behrlich/go-usbip/internal/wire"
)

// Completion records one call the core made back into a Host, for tests
// to assert against (spec.md section 8's scenario suite).
type Completion struct {
	Handle       URBHandle
	Canceled     bool
	Status       wire.Status
	ActualLength int
	IsoPackets   []wire.IsoPacketDesc
}

// MockHost is a Host that records every completion it receives instead of
// acting on it, adapted from the teacher's MockBackend call-tracking
// pattern (testing.go) to this package's CompleteURB/CompleteURBCancel
// surface.
type MockHost struct {
	mu          sync.Mutex
	completions []Completion
	notify      chan struct{}
}

// NewMockHost creates an empty MockHost.
func NewMockHost() *MockHost {
	return &MockHost{notify: make(chan struct{}, 1)}
}

// CompleteURB implements Host.
func (m *MockHost) CompleteURB(handle URBHandle, status wire.Status, actualLength int, isoPackets []wire.IsoPacketDesc) {
	m.record(Completion{Handle: handle, Status: status, ActualLength: actualLength, IsoPackets: isoPackets})
}

// CompleteURBCancel implements Host.
func (m *MockHost) CompleteURBCancel(handle URBHandle) {
	m.record(Completion{Handle: handle, Canceled: true, Status: wire.StatusCanceled})
}

func (m *MockHost) record(c Completion) {
	m.mu.Lock()
	m.completions = append(m.completions, c)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Completions returns a snapshot of every completion recorded so far.
func (m *MockHost) Completions() []Completion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Completion, len(m.completions))
	copy(out, m.completions)
	return out
}

// Count returns the number of completions recorded so far.
func (m *MockHost) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completions)
}

// Wait blocks until at least one completion has been recorded since the
// last call to Wait returned; several completions in between release a
// single Wait. Tests use this to avoid sleep-based polling for an
// asynchronous completion.
func (m *MockHost) Wait() {
	<-m.notify
}

var _ Host = (*MockHost)(nil)
