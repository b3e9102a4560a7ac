// Package outstanding implements the per-session table of in-flight USB/IP
// requests and the atomic status lattice each request moves through
// between submission and completion (spec.md sections 3, 4.1, 4.5).
package outstanding

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/go-usbip/internal/wire"
)

// Kind identifies the shape of a Request for the purposes of the wire
// codec (spec.md section 3: urb_kind).
type Kind int

const (
	KindControl Kind = iota
	KindBulkOrInterrupt
	KindIso
	KindSetConfig
	KindSetInterface
	KindUnlink
)

// Status is the tri-state-plus-terminal lattice each Request moves
// through, manipulated exclusively by compare-and-swap (spec.md section
// 3, "Invariants" and section 4.5). It is the sole piece of cross-actor
// state touched without the table's lock, directly modeled on the
// teacher's per-tag TagState in internal/queue/runner.go generalized from
// three states to this five-state lattice.
type Status int32

const (
	StatusInit Status = iota
	StatusSendComplete
	StatusRecvComplete
	StatusCanceled
	StatusNoHandle
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "INIT"
	case StatusSendComplete:
		return "SEND_COMPLETE"
	case StatusRecvComplete:
		return "RECV_COMPLETE"
	case StatusCanceled:
		return "CANCELED"
	case StatusNoHandle:
		return "NO_HANDLE"
	default:
		return "UNKNOWN"
	}
}

// URBHandle is an opaque token the host layer uses to identify a URB when
// the core calls back into it (spec.md section 3: host_request_handle).
type URBHandle interface{}

// Request is one outstanding URB's bookkeeping record. SeqNum, Kind,
// Direction, the borrowed TransferBuffer and IsoPackets are set once at
// insertion and never mutated afterwards; Status is the only field
// mutated concurrently, and only via CAS.
type Request struct {
	SeqNum    uint32
	Kind      Kind
	Direction uint32 // a constants.Direction value, stored as a plain uint32

	// TransferBuffer is borrowed from the host URB; it is never freed by
	// this package (spec.md invariant 3).
	TransferBuffer []byte
	IsoPackets     []wire.IsoPacketDesc

	// IsFunctionSelect marks SELECT_CONFIGURATION/SELECT_INTERFACE
	// synthesised control transfers, which have no host-supplied payload
	// to send (spec.md section 3).
	IsFunctionSelect bool

	// Handle is the opaque host completion token.
	Handle URBHandle

	// UnlinkOf, when non-zero, means this Request's wire frame is an
	// UNLINK targeting the SUBMIT with that seqnum.
	UnlinkOf uint32

	// SubmittedAt is when the session handed this request's frame to the
	// sender, used to compute completion latency for metrics.
	SubmittedAt time.Time

	status atomic.Int32

	// ReplyStatus, ReplyActualLength and ReplyIsoPackets stash a reply the
	// receiver parsed before the send path had observed INIT->SEND_COMPLETE
	// (spec.md section 4.3: "defer final completion to the sender"). They
	// are written once, by the receiver, strictly before the CAS that
	// publishes StatusRecvComplete, and read only by whichever goroutine's
	// own CAS subsequently observes that state — the status CAS is the
	// synchronization edge, not a separate lock.
	ReplyStatus       wire.Status
	ReplyActualLength int
	ReplyIsoPackets   []wire.IsoPacketDesc
}

// SetReply stashes a parsed reply on the request. Callers must write this
// before the CAS transition that makes the reply visible to another
// goroutine.
func (r *Request) SetReply(status wire.Status, actualLength int, isoPackets []wire.IsoPacketDesc) {
	r.ReplyStatus = status
	r.ReplyActualLength = actualLength
	r.ReplyIsoPackets = isoPackets
}

// NewRequest creates a Request in the INIT state. SeqNum is assigned by
// the Table on Insert, not here.
func NewRequest(kind Kind, direction uint32, buf []byte, handle URBHandle) *Request {
	return &Request{
		Kind:           kind,
		Direction:      direction,
		TransferBuffer: buf,
		Handle:         handle,
	}
}

// Status returns the request's current status.
func (r *Request) Status() Status {
	return Status(r.status.Load())
}

// CAS attempts to move the request from 'from' to 'to', returning whether
// it succeeded.
func (r *Request) CAS(from, to Status) bool {
	return r.status.CompareAndSwap(int32(from), int32(to))
}

// store unconditionally sets the request's status. Used only at
// construction time before the request is visible to any other goroutine.
func (r *Request) store(s Status) {
	r.status.Store(int32(s))
}
