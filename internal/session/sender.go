package session

import (
	"runtime"
	"time"

	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// sendLoop drains sendCh and writes each frame to the connection in order.
// It is the only goroutine that ever writes to e.conn (spec.md section 5:
// "writes are serialized through a single sender"). It exits once the
// engine's context is cancelled, which only happens from drain().
func (e *Engine) sendLoop() {
	defer e.wg.Done()
	if len(e.cpuAffinity) > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPUs(e.cpuAffinity); err != nil {
			e.logger.Warn("failed to pin sender to cpu affinity", "devid", e.devID, "error", err)
		}
	}
	for {
		select {
		case f := <-e.sendCh:
			e.writeFrame(f)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) writeFrame(f *frame) {
	_, err := f.buffers.WriteTo(e.conn)
	if err != nil {
		e.handleWriteError(f.req, err)
		return
	}
	if f.req.Kind == outstanding.KindUnlink {
		e.observer.ObserveUnlink()
		return
	}
	e.observer.ObserveSubmit(uint64(f.payloadLen))
	e.afterWrite(f.req)
}

// handleWriteError completes the request locally with an I/O error (or,
// for an UNLINK frame, simply drops the bookkeeping entry) and begins
// draining the session: a write failure means the connection is unusable
// for everything else queued behind it too (spec.md section 5).
func (e *Engine) handleWriteError(req *outstanding.Request, err error) {
	e.observer.ObserveIOError()
	if req.Kind == outstanding.KindUnlink {
		e.table.Remove(req.SeqNum)
	} else if victim, ok := e.table.Dequeue(req.SeqNum); ok {
		e.completeLocally(victim, wire.StatusIOError, 0, nil)
	}
	e.drain(err)
}

// afterWrite implements the send side of the completion race described in
// spec.md sections 4.2 and 4.5. It retries its CAS against whatever status
// it observes until one of the three terminal outcomes is reached; the
// loop exists because a lost CAS only means a concurrent actor moved the
// status between the Load and the CAS, not that the actor's work is done.
func (e *Engine) afterWrite(req *outstanding.Request) {
	for {
		switch req.Status() {
		case outstanding.StatusInit:
			if req.CAS(outstanding.StatusInit, outstanding.StatusSendComplete) {
				// Ordinary path: the reply hasn't arrived and CancelURB
				// hasn't raced in. The receiver will see SEND_COMPLETE.
				return
			}

		case outstanding.StatusRecvComplete:
			// The receiver's reply raced in first, already dequeued this
			// request, stashed the reply and published RECV_COMPLETE. The
			// sender never needs to dequeue here — the receiver's dequeue
			// was the one and only dequeue for this seqnum.
			e.completeFromReply(req)
			return

		case outstanding.StatusCanceled:
			// CancelURB's CAS(INIT, CANCELED) won the race before this
			// sender's CAS ever landed. Unlike the INIT->CANCELED
			// transition itself, nobody has dequeued this request from
			// the table yet, so completion ownership is decided by
			// whichever actor's dequeue wins: this sender, or the
			// receiver if a RET_SUBMIT for it arrives first.
			if victim, ok := e.table.Dequeue(req.SeqNum); ok {
				e.host.CompleteURBCancel(victim.Handle)
				e.observer.ObserveComplete(0, 0, true)
			}
			return

		default:
			// SEND_COMPLETE/NO_HANDLE here would mean this sender already
			// completed this seqnum once, which the single-sender-
			// goroutine invariant rules out.
			return
		}
	}
}

// completeFromReply finishes a request whose reply the receiver already
// stashed via SetReply, computing latency from SubmittedAt and handing
// the result to the host exactly once.
func (e *Engine) completeFromReply(req *outstanding.Request) {
	latency := time.Since(req.SubmittedAt)
	e.host.CompleteURB(req.Handle, req.ReplyStatus, req.ReplyActualLength, req.ReplyIsoPackets)
	e.observer.ObserveComplete(uint64(req.ReplyActualLength), uint64(latency.Nanoseconds()), false)
}

// completeLocally finishes a request without ever having heard back from
// the wire (a write error). Latency is not meaningful here.
func (e *Engine) completeLocally(req *outstanding.Request, status wire.Status, actualLength int, isoPackets []wire.IsoPacketDesc) {
	e.host.CompleteURB(req.Handle, status, actualLength, isoPackets)
	e.observer.ObserveComplete(uint64(actualLength), 0, false)
}
