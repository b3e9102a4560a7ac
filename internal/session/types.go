// Package session implements the per-connection sender/receiver pair and
// the Session object that owns the outstanding table, the TCP connection
// and the prepared-frame queue between them (spec.md sections 2, 4.2,
// 4.3, 5).
package session

import (
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// Host is the subset of the root package's Host interface the engine
// needs. Defined locally (rather than imported) so the dependency
// between this package and the root package runs one way.
type Host interface {
	CompleteURB(handle outstanding.URBHandle, status wire.Status, actualLength int, isoPackets []wire.IsoPacketDesc)
	CompleteURBCancel(handle outstanding.URBHandle)
}

// Observer mirrors the root package's metrics Observer interface, for the
// same reason as Host.
type Observer interface {
	ObserveSubmit(bytes uint64)
	ObserveComplete(bytes uint64, latencyNs uint64, canceled bool)
	ObserveUnlink()
	ObserveProtocolError()
	ObserveIOError()
	ObserveQueueDepth(depth uint32)
}

// noOpObserver is used when NewEngine is given a nil Observer, so the
// sender and receiver never need a nil check on every call.
type noOpObserver struct{}

func (noOpObserver) ObserveSubmit(uint64)              {}
func (noOpObserver) ObserveComplete(uint64, uint64, bool) {}
func (noOpObserver) ObserveUnlink()                    {}
func (noOpObserver) ObserveProtocolError()             {}
func (noOpObserver) ObserveIOError()                   {}
func (noOpObserver) ObserveQueueDepth(uint32)          {}

// Lifecycle is the session-wide state described in spec.md section 3.
type Lifecycle int32

const (
	LifecycleActive Lifecycle = iota
	LifecycleDraining
	LifecycleClosed
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "ACTIVE"
	case LifecycleDraining:
		return "DRAINING"
	case LifecycleClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
