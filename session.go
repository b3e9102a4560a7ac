// Package usbip implements a USB/IP client-side protocol engine: the
// per-connection URB lifecycle, the outstanding-request table, the wire
// codec and the sender/receiver pair that drive a TCP connection to a
// USB/IP server (spec.md sections 1-6).
package usbip

import (
	"context"
	"net"
	"sync"

	"github.com/behrlich/go-usbip/internal/intake"
	"github.com/behrlich/go-usbip/internal/isorepack"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/session"
	"github.com/behrlich/go-usbip/internal/wire"
)

// Lifecycle is the session-wide state described in spec.md section 3.
type Lifecycle = session.Lifecycle

const (
	LifecycleActive   = session.LifecycleActive
	LifecycleDraining = session.LifecycleDraining
	LifecycleClosed   = session.LifecycleClosed
)

// Session is a single USB/IP client connection: one outstanding-request
// table, one sender goroutine, one receiver goroutine, all driving one
// net.Conn for the lifetime of one imported device (spec.md section 2).
type Session struct {
	engine *session.Engine
	host   *interceptHost
	devID  uint32
	opts   *options
}

// NewSession wraps an already-connected conn (typically from Dial, or a
// caller-managed *net.TCPConn after the OP_REQ_IMPORT/OP_REP_IMPORT
// handshake) into a running Session for devID.
func NewSession(ctx context.Context, conn net.Conn, devID uint32, host Host, opts ...Option) (*Session, error) {
	if host == nil {
		return nil, NewError("NewSession", ErrCodeInvalidParameter, "host must not be nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := session.ApplyKeepalive(tcpConn, o.keepalive); err != nil {
			o.logger.Warn("failed to apply tcp keepalive", "devid", devID, "error", err)
		}
	}

	ih := newInterceptHost(host)
	engine := session.NewEngine(ctx, conn, devID, ih, o.observer, o.logger, 0)
	if len(o.cpuAffinity) > 0 {
		engine.SetCPUAffinity(o.cpuAffinity)
	}
	s := &Session{engine: engine, host: ih, devID: devID, opts: o}
	engine.Start()
	return s, nil
}

// Dial connects to address over TCP and wraps the connection in a
// Session. The caller is still responsible for having completed any
// OP_REQ_IMPORT/OP_REP_IMPORT handshake out of band before URBs can be
// submitted meaningfully (spec.md "Non-goals").
func Dial(ctx context.Context, address string, devID uint32, host Host, opts ...Option) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, WrapError("Dial", err)
	}
	s, err := NewSession(ctx, conn, devID, host, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// SubmitURB dispatches urb per spec.md section 4.4. A URB function that
// does not translate to a wire frame is completed locally and
// OutcomeCompletedLocally is returned; otherwise the URB is queued and
// OutcomePending is returned, with eventual completion delivered through
// the Host passed to NewSession/Dial.
func (s *Session) SubmitURB(urb *URB) (SubmitOutcome, error) {
	plan, err := intake.Dispatch(urb)
	if err != nil {
		status := localFailureStatus(err)
		s.host.inner.CompleteURB(urb.Handle, status, 0, nil)
		return OutcomeCompletedLocally, nil
	}

	seqNum, err := s.engine.Submit(plan)
	if err != nil {
		if err == session.ErrDraining {
			return OutcomePending, NewError("SubmitURB", ErrCodeIO, "session is draining")
		}
		if err == isorepack.ErrInvalidParameter {
			s.host.inner.CompleteURB(urb.Handle, wire.StatusInvalidParam, 0, nil)
			return OutcomeCompletedLocally, nil
		}
		if err == outstanding.ErrExhausted {
			s.host.inner.CompleteURB(urb.Handle, wire.StatusGeneralFailure, 0, nil)
			return OutcomeCompletedLocally, WrapError("SubmitURB", err)
		}
		return OutcomePending, WrapError("SubmitURB", err)
	}

	s.host.track(urb.Handle, seqNum)
	return OutcomePending, nil
}

// CancelURB requests cancellation of a previously submitted URB, looked
// up by the handle it was submitted with. A handle for an already
// completed URB, or one never submitted, is a silent no-op (spec.md
// section 4.5, section 6: "cancel_urb(session, urb_handle)").
func (s *Session) CancelURB(handle URBHandle) {
	if seqNum, ok := s.host.seqNumFor(handle); ok {
		s.engine.CancelURB(seqNum)
	}
}

// Detach initiates draining: every outstanding URB is completed with a
// cancellation status and the connection is closed (spec.md section 6,
// "detach(session) — initiates draining").
func (s *Session) Detach() {
	s.engine.Close()
}

// Wait blocks until the session's sender and receiver goroutines have
// both exited, which happens once Detach has been called or the
// connection has failed.
func (s *Session) Wait() {
	s.engine.Wait()
}

// State reports the session's current lifecycle state.
func (s *Session) State() Lifecycle {
	return s.engine.Lifecycle()
}

// localFailureStatus maps an intake dispatch error to the wire Status
// reported to the host for a locally-completed URB.
func localFailureStatus(err error) wire.Status {
	if err == intake.ErrInvalidParameter {
		return wire.StatusInvalidParam
	}
	return wire.StatusNotSupported
}

// interceptHost wraps the caller's Host to maintain the handle->seqnum
// index CancelURB needs, and forwards every completion through to the
// real host while forgetting the mapping exactly once (spec.md section
// 4.5: a URB is completed, and its handle forgotten, exactly once).
type interceptHost struct {
	inner Host

	mu      sync.Mutex
	seqnums map[any]uint32
}

func newInterceptHost(inner Host) *interceptHost {
	return &interceptHost{inner: inner, seqnums: make(map[any]uint32)}
}

func (h *interceptHost) track(handle URBHandle, seqNum uint32) {
	h.mu.Lock()
	h.seqnums[handle] = seqNum
	h.mu.Unlock()
}

func (h *interceptHost) seqNumFor(handle URBHandle) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	seqNum, ok := h.seqnums[handle]
	return seqNum, ok
}

func (h *interceptHost) forget(handle URBHandle) {
	h.mu.Lock()
	delete(h.seqnums, handle)
	h.mu.Unlock()
}

func (h *interceptHost) CompleteURB(handle URBHandle, status wire.Status, actualLength int, isoPackets []wire.IsoPacketDesc) {
	h.forget(handle)
	h.inner.CompleteURB(handle, status, actualLength, isoPackets)
}

func (h *interceptHost) CompleteURBCancel(handle URBHandle) {
	h.forget(handle)
	h.inner.CompleteURBCancel(handle)
}

var _ Host = (*interceptHost)(nil)
