package session

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/behrlich/go-usbip/internal/constants"
	"github.com/behrlich/go-usbip/internal/isorepack"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// recvLoop implements the AwaitHeader/AwaitPayload/AwaitIsoTail parser
// state machine (spec.md section 4.3). It is the only goroutine that ever
// reads from e.conn. A read or protocol error transitions the session to
// draining; e.conn.Close() from drain() is what unblocks a pending read.
func (e *Engine) recvLoop() {
	defer e.wg.Done()
	if len(e.cpuAffinity) > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPUs(e.cpuAffinity); err != nil {
			e.logger.Warn("failed to pin receiver to cpu affinity", "devid", e.devID, "error", err)
		}
	}
	br := bufio.NewReaderSize(e.conn, constants.HeaderSize*4)
	headerBuf := make([]byte, constants.HeaderSize)

	for {
		if _, err := io.ReadFull(br, headerBuf); err != nil {
			e.drain(err)
			return
		}
		h := wire.DecodeHeader(headerBuf)

		switch h.Command {
		case constants.CmdRetSubmit:
			if err := e.handleRetSubmit(br, h); err != nil {
				e.observer.ObserveProtocolError()
				e.drain(err)
				return
			}
		case constants.CmdRetUnlink:
			e.handleRetUnlink(h)
		case constants.CmdResetDev:
			// The reference server rarely sends this unprompted; treated
			// as an informational no-op rather than a protocol error.
			e.logger.Warn("received RESET_DEV from peer", "devid", e.devID)
		default:
			e.observer.ObserveProtocolError()
			e.drain(fmt.Errorf("usbip: unexpected command %#x from peer", uint32(h.Command)))
			return
		}
	}
}

// handleRetSubmit reads the payload and iso tail for one RET_SUBMIT frame
// and, if a matching request is still outstanding, completes it.
func (e *Engine) handleRetSubmit(br *bufio.Reader, h *wire.Header) error {
	req, found := e.table.Dequeue(h.SeqNum)

	var payload []byte
	if h.Direction == constants.DirIn && h.ActualLen > 0 {
		if found {
			if h.ActualLen > uint32(len(req.TransferBuffer)) {
				return fmt.Errorf("usbip: RET_SUBMIT seq=%d actual_length %d exceeds buffer of %d", h.SeqNum, h.ActualLen, len(req.TransferBuffer))
			}
			payload = req.TransferBuffer[:h.ActualLen]
		} else {
			payload = getScratch(h.ActualLen)
			defer putScratch(payload)
		}
		if _, err := io.ReadFull(br, payload); err != nil {
			return err
		}
	}

	var isoDescs []wire.IsoPacketDesc
	if h.NumberOfPackets != constants.NoFrameNumber && h.NumberOfPackets > 0 {
		isoBuf := getScratch(h.NumberOfPackets * 16)
		if _, err := io.ReadFull(br, isoBuf); err != nil {
			putScratch(isoBuf)
			return err
		}
		descs := wire.DecodeIsoDescs(isoBuf, int(h.NumberOfPackets))
		putScratch(isoBuf)
		if h.Direction == constants.DirIn {
			descs = isorepack.UnpackIn(descs)
		}
		isoDescs = descs
	}

	if !found {
		// Races with cancellation (spec.md section 4.1: "a RET_SUBMIT or
		// RET_UNLINK whose seqnum is not in outstanding is a
		// protocol-valid no-op"); bytes above are already consumed.
		return nil
	}

	status := wire.MapWireStatus(h.Status)
	actualLen := int(h.ActualLen)

	for {
		switch req.Status() {
		case outstanding.StatusSendComplete:
			if req.CAS(outstanding.StatusSendComplete, outstanding.StatusRecvComplete) {
				latency := time.Since(req.SubmittedAt)
				e.host.CompleteURB(req.Handle, status, actualLen, isoDescs)
				e.observer.ObserveComplete(uint64(actualLen), uint64(latency.Nanoseconds()), false)
				return nil
			}

		case outstanding.StatusInit:
			// The send path hasn't observed its own write completion yet.
			// Stash the reply before publishing RECV_COMPLETE; the CAS is
			// the synchronization edge the sender relies on to see it.
			req.SetReply(status, actualLen, isoDescs)
			if req.CAS(outstanding.StatusInit, outstanding.StatusRecvComplete) {
				return nil
			}
			// Lost the race to the sender's own CAS(INIT, SEND_COMPLETE)
			// landing in between; retry against the now-current state.

		case outstanding.StatusCanceled:
			e.host.CompleteURBCancel(req.Handle)
			e.observer.ObserveComplete(0, 0, true)
			return nil

		case outstanding.StatusRecvComplete:
			e.logger.WithSeqNum(h.SeqNum).Warn("duplicate RET_SUBMIT", "devid", e.devID)
			return fmt.Errorf("usbip: duplicate RET_SUBMIT for seqnum %d", h.SeqNum)

		default:
			e.logger.WithSeqNum(h.SeqNum).Warn("RET_SUBMIT in unexpected state", "devid", e.devID, "state", req.Status())
			return fmt.Errorf("usbip: RET_SUBMIT for seqnum %d in unexpected state %s", h.SeqNum, req.Status())
		}
	}
}

// handleRetUnlink completes the victim of a CancelURB-issued UNLINK, if
// the RET_SUBMIT for the victim hasn't already claimed it (spec.md section
// 4.5: "the RET_UNLINK response releases the record").
func (e *Engine) handleRetUnlink(h *wire.Header) {
	companion, found := e.table.Dequeue(h.SeqNum)
	if !found || companion.Kind != outstanding.KindUnlink {
		return
	}
	victim, ok := e.table.Dequeue(companion.UnlinkOf)
	if !ok {
		// The victim's own RET_SUBMIT arrived first and already completed
		// it; this RET_UNLINK frees nothing further.
		return
	}
	e.host.CompleteURBCancel(victim.Handle)
	e.observer.ObserveComplete(0, 0, true)
}
