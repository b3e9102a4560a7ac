package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/behrlich/go-usbip/internal/constants"
	"github.com/behrlich/go-usbip/internal/intake"
	"github.com/behrlich/go-usbip/internal/isorepack"
	"github.com/behrlich/go-usbip/internal/logging"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// frame is one fully-prepared SUBMIT or UNLINK, queued for the sender.
type frame struct {
	req        *outstanding.Request
	buffers    net.Buffers
	payloadLen int
}

// Engine is the per-connection USB/IP protocol engine: the outstanding
// table, the sender and receiver goroutines, and the TCP connection they
// share (spec.md sections 2, 5).
type Engine struct {
	conn     net.Conn
	devID    uint32
	table    *outstanding.Table
	host     Host
	observer Observer
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sendCh    chan *frame
	lifecycle atomic.Int32

	cpuAffinity []int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// SetCPUAffinity pins the sender and receiver goroutines' host OS thread
// to cpus once Start is called. Must be called before Start; a nil or
// empty slice leaves scheduling untouched. Linux only, per
// session.PinToCPUs.
func (e *Engine) SetCPUAffinity(cpus []int) {
	e.cpuAffinity = cpus
}

// NewEngine constructs an Engine bound to conn. Start must be called to
// launch the sender and receiver goroutines. Modeled on the teacher's
// Runner, which carries its own derived context.Context/CancelFunc rather
// than closing channels to signal shutdown (internal/queue/runner.go).
func NewEngine(ctx context.Context, conn net.Conn, devID uint32, host Host, observer Observer, logger *logging.Logger, queueDepth int) *Engine {
	if ctx == nil {
		ctx = context.Background()
	}
	if queueDepth <= 0 {
		queueDepth = constants.SendQueueDepth
	}
	if observer == nil {
		observer = noOpObserver{}
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Engine{
		conn:     conn,
		devID:    devID,
		table:    outstanding.NewTable(),
		host:     host,
		observer: observer,
		logger:   logger,
		ctx:      cctx,
		cancel:   cancel,
		sendCh:   make(chan *frame, queueDepth),
	}
}

// Start launches the sender and receiver goroutines.
func (e *Engine) Start() {
	e.wg.Add(2)
	go e.sendLoop()
	go e.recvLoop()
}

// Wait blocks until both the sender and receiver goroutines have exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Lifecycle reports the engine's current session state.
func (e *Engine) Lifecycle() Lifecycle {
	return Lifecycle(e.lifecycle.Load())
}

// Table exposes the outstanding table, used by tests to assert on its
// depth and by the session for metrics sampling.
func (e *Engine) Table() *outstanding.Table {
	return e.table
}

// Close begins draining the session: all outstanding requests are
// completed with cancellation and the connection is closed. Idempotent
// (spec.md section 5: "Session teardown ... is idempotent").
func (e *Engine) Close() {
	e.drain(nil)
}

func (e *Engine) drain(cause error) {
	e.closeOnce.Do(func() {
		e.lifecycle.Store(int32(LifecycleDraining))
		if cause != nil {
			e.logger.Warn("session draining", "devid", e.devID, "cause", cause)
		} else {
			e.logger.Info("session draining", "devid", e.devID)
		}
		e.cancel()
		e.conn.Close()

		for _, req := range e.table.Drain() {
			if req.Kind == outstanding.KindUnlink {
				continue
			}
			e.host.CompleteURBCancel(req.Handle)
			e.observer.ObserveComplete(0, 0, true)
		}
		e.lifecycle.Store(int32(LifecycleClosed))
	})
}

// Submit builds a wire frame from plan, inserts its bookkeeping Request
// into the outstanding table, and queues the frame for the sender. It
// returns the assigned sequence number so the caller can associate a host
// handle with it for later cancellation.
func (e *Engine) Submit(plan *intake.Plan) (uint32, error) {
	if e.ctx.Err() != nil {
		return 0, ErrDraining
	}

	var isoDescs []wire.IsoPacketDesc
	if plan.Kind == outstanding.KindIso {
		if plan.Direction == constants.DirOut {
			descs, err := isorepack.RepackOut(plan.IsoOffsets, uint32(len(plan.TransferBuffer)))
			if err != nil {
				return 0, err
			}
			isoDescs = descs
		} else {
			isoDescs = make([]wire.IsoPacketDesc, len(plan.IsoOffsets))
			for i, off := range plan.IsoOffsets {
				isoDescs[i] = wire.IsoPacketDesc{Offset: off}
			}
		}
	}

	req := outstanding.NewRequest(plan.Kind, uint32(plan.Direction), plan.TransferBuffer, plan.Handle)
	req.IsoPackets = isoDescs
	req.IsFunctionSelect = plan.IsFunctionSelect
	req.SubmittedAt = time.Now()

	seqNum, err := e.table.Insert(req)
	if err != nil {
		return 0, err
	}
	e.observer.ObserveQueueDepth(uint32(e.table.Len()))

	header := &wire.Header{
		SeqNum:            seqNum,
		DevID:             e.devID,
		Direction:         plan.Direction,
		Endpoint:          plan.Endpoint,
		TransferFlags:     plan.TransferFlags,
		TransferBufferLen: uint32(len(plan.TransferBuffer)),
		NumberOfPackets:   constants.NoFrameNumber,
	}
	if plan.Kind == outstanding.KindIso {
		header.NumberOfPackets = uint32(len(isoDescs))
	}
	if plan.Kind == outstanding.KindControl || plan.Kind == outstanding.KindSetConfig || plan.Kind == outstanding.KindSetInterface {
		header.Setup = plan.Setup.Bytes()
	}

	headerBytes := wire.EncodeSubmit(header)
	buffers := net.Buffers{headerBytes}
	payloadLen := 0
	if plan.Direction == constants.DirOut && len(plan.TransferBuffer) > 0 {
		buffers = append(buffers, plan.TransferBuffer)
		payloadLen = len(plan.TransferBuffer)
	}
	if plan.Kind == outstanding.KindIso && plan.Direction == constants.DirOut {
		buffers = append(buffers, wire.EncodeIsoDescs(isoDescs))
	}

	select {
	case e.sendCh <- &frame{req: req, buffers: buffers, payloadLen: payloadLen}:
		return seqNum, nil
	case <-e.ctx.Done():
		e.table.Remove(seqNum)
		return 0, ErrDraining
	}
}
