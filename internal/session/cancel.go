package session

import (
	"net"

	"github.com/behrlich/go-usbip/internal/constants"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// CancelURB implements the cancellation algorithm of spec.md section 4.5:
// a compare-and-swap to CANCELED whose observed prior state decides
// whether a wire UNLINK is needed, is redundant, or is already too late.
func (e *Engine) CancelURB(seqNum uint32) {
	req, ok := e.table.Peek(seqNum)
	if !ok {
		return
	}

	for {
		switch req.Status() {
		case outstanding.StatusInit:
			if req.CAS(outstanding.StatusInit, outstanding.StatusCanceled) {
				// The SUBMIT may not have reached the server yet; the
				// sender will observe CANCELED on write completion and
				// complete the URB itself. No wire UNLINK is sent.
				return
			}

		case outstanding.StatusSendComplete:
			if req.CAS(outstanding.StatusSendComplete, outstanding.StatusCanceled) {
				e.sendUnlink(seqNum)
				return
			}

		default:
			// RECV_COMPLETE: too late, the URB is already being completed.
			// CANCELED/NO_HANDLE: already handled. Either way, cancellation
			// is a no-op here.
			return
		}
	}
}

// sendUnlink enqueues a UNLINK frame for victimSeqNum under a fresh
// sequence number of its own, so the eventual RET_UNLINK can be matched
// back to the cancellation that caused it (spec.md section 4.5).
func (e *Engine) sendUnlink(victimSeqNum uint32) {
	if e.ctx.Err() != nil {
		return
	}

	req := outstanding.NewRequest(outstanding.KindUnlink, uint32(constants.DirOut), nil, nil)
	req.UnlinkOf = victimSeqNum

	seqNum, err := e.table.Insert(req)
	if err != nil {
		// No free sequence number for the UNLINK itself; the victim stays
		// CANCELED and pending, to be caught by drain() if the session
		// tears down, or by a RET_SUBMIT for it arriving normally.
		return
	}

	headerBytes := wire.EncodeUnlink(seqNum, e.devID, constants.DirOut, 0, victimSeqNum)
	select {
	case e.sendCh <- &frame{req: req, buffers: net.Buffers{headerBytes}}:
	case <-e.ctx.Done():
		e.table.Remove(seqNum)
	}
}
