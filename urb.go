package usbip

import (
	"github.com/behrlich/go-usbip/internal/intake"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// URBHandle is the opaque token the host layer uses to identify a URB when
// the core calls back into it. It is an alias for the outstanding table's
// handle type so callers never have to convert between the two.
type URBHandle = outstanding.URBHandle

// EndpointType is one of the four USB pipe types; it gates which URB
// functions are valid on a given endpoint (spec.md section 3, GLOSSARY).
// Aliased from internal/intake, which owns the type so the dependency
// between that package and this one runs one way.
type EndpointType = intake.EndpointType

const (
	EndpointControl     = intake.EndpointControl
	EndpointBulk        = intake.EndpointBulk
	EndpointInterrupt   = intake.EndpointInterrupt
	EndpointIsochronous = intake.EndpointIsochronous
)

// URBFunction identifies what kind of operation a URB requests, mirroring
// the dispatch table in spec.md section 4.4.
type URBFunction = intake.URBFunction

const (
	FunctionSelectConfiguration    = intake.FunctionSelectConfiguration
	FunctionSelectInterface        = intake.FunctionSelectInterface
	FunctionControlTransfer        = intake.FunctionControlTransfer
	FunctionControlTransferEx      = intake.FunctionControlTransferEx
	FunctionBulkOrInterruptTransfer = intake.FunctionBulkOrInterruptTransfer
	FunctionIsochTransfer          = intake.FunctionIsochTransfer

	// Functions completed locally with NotSupported; the server does not
	// participate in any of these (spec.md section 4.4).
	FunctionAbortPipe                      = intake.FunctionAbortPipe
	FunctionSyncResetPipe                  = intake.FunctionSyncResetPipe
	FunctionSyncClearStall                 = intake.FunctionSyncClearStall
	FunctionSyncResetPipeAndClearStall     = intake.FunctionSyncResetPipeAndClearStall
	FunctionCloseStaticStreams             = intake.FunctionCloseStaticStreams
	FunctionOpenStaticStreams              = intake.FunctionOpenStaticStreams
	FunctionGetCurrentFrameNumber          = intake.FunctionGetCurrentFrameNumber
	FunctionGetMsFeatureDescriptor         = intake.FunctionGetMsFeatureDescriptor
	FunctionGetIsochPipeTransferPathDelays = intake.FunctionGetIsochPipeTransferPathDelays
	FunctionGetStatus                      = intake.FunctionGetStatus
	FunctionGetDescriptor                  = intake.FunctionGetDescriptor
	FunctionSetDescriptor                  = intake.FunctionSetDescriptor
	FunctionGetConfiguration               = intake.FunctionGetConfiguration
	FunctionGetInterface                   = intake.FunctionGetInterface
	FunctionVendorOrClass                  = intake.FunctionVendorOrClass
	FunctionReserved                       = intake.FunctionReserved
)

// URB is a single host-submitted USB Request Block, the local-side
// counterpart of one outstanding.Request before intake has dispatched it
// onto the wire (spec.md section 3, 4.4). Aliased from internal/intake.
type URB = intake.URB

// SubmitOutcome reports what SubmitURB did with a URB: queued it for the
// wire, or completed it immediately without ever reaching the network
// (spec.md section 6: "submit_urb(session, urb) -> pending | completed").
type SubmitOutcome int

const (
	// OutcomePending means the URB was handed to the sender and will
	// complete asynchronously through Host.CompleteURB /
	// Host.CompleteURBCancel.
	OutcomePending SubmitOutcome = iota

	// OutcomeCompletedLocally means the URB was already completed before
	// SubmitURB returned (NotSupported or InvalidParameter), and no wire
	// traffic occurred for it.
	OutcomeCompletedLocally
)

// Host is the interface the core requires from the surrounding OS
// integration layer (spec.md section 6, "Host-side interface required
// from the surrounding layer").
type Host interface {
	// CompleteURB finalises a URB with its final wire status, and — for
	// successful IN transfers — the number of bytes actually received.
	// isoPackets is non-nil only for iso transfers and carries the
	// per-packet actual lengths and statuses.
	CompleteURB(handle URBHandle, status wire.Status, actualLength int, isoPackets []wire.IsoPacketDesc)

	// CompleteURBCancel finalises a URB that was terminated by the cancel
	// path rather than by a server reply.
	CompleteURBCancel(handle URBHandle)
}
