// Package intake converts a single host-submitted URB into a Plan from
// which the session builds the wire frame and its outstanding.Request,
// implementing the dispatch table in spec.md section
// 4.4. It owns the URB type itself (rather than the root package) so the
// dependency runs one way: root usbip re-exports these types, it does not
// feed them back in.
package intake

import (
	"github.com/behrlich/go-usbip/internal/constants"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// EndpointType is one of the four USB pipe types; it gates which URB
// functions are valid on a given endpoint (spec.md section 3, GLOSSARY).
type EndpointType int

const (
	EndpointControl EndpointType = iota
	EndpointBulk
	EndpointInterrupt
	EndpointIsochronous
)

// URBFunction identifies what kind of operation a URB requests, mirroring
// the dispatch table in spec.md section 4.4.
type URBFunction int

const (
	FunctionSelectConfiguration URBFunction = iota
	FunctionSelectInterface
	FunctionControlTransfer
	FunctionControlTransferEx
	FunctionBulkOrInterruptTransfer
	FunctionIsochTransfer

	// Functions completed locally with NotSupported; the server does not
	// participate in any of these (spec.md section 4.4).
	FunctionAbortPipe
	FunctionSyncResetPipe
	FunctionSyncClearStall
	FunctionSyncResetPipeAndClearStall
	FunctionCloseStaticStreams
	FunctionOpenStaticStreams
	FunctionGetCurrentFrameNumber
	FunctionGetMsFeatureDescriptor
	FunctionGetIsochPipeTransferPathDelays
	FunctionGetStatus
	FunctionGetDescriptor
	FunctionSetDescriptor
	FunctionGetConfiguration
	FunctionGetInterface
	FunctionVendorOrClass
	FunctionReserved
)

// URB is a single host-submitted USB Request Block, the local-side
// counterpart of one outstanding.Request before Dispatch has translated
// it onto the wire (spec.md section 3, 4.4).
type URB struct {
	Function     URBFunction
	Endpoint     uint32
	EndpointType EndpointType
	Direction    constants.Direction

	// TransferBuffer is the data to send (OUT) or the buffer to fill (IN).
	// It is borrowed: the core never copies or frees it, per spec.md
	// invariant 3.
	TransferBuffer []byte
	TransferFlags  uint32

	// Setup carries the control setup packet for FunctionControlTransfer /
	// FunctionControlTransferEx. Direction is derived from Setup's
	// bmRequestType, not from TransferFlags (spec.md section 4.4).
	Setup wire.SetupPacket

	// IsoOffsets holds each packet's starting offset within TransferBuffer
	// for FunctionIsochTransfer submissions (spec.md section 4.6).
	IsoOffsets []uint32

	// ConfigValue / InterfaceValue / AlternateSetting populate the
	// synthesised SET_CONFIGURATION / SET_INTERFACE control transfer for
	// FunctionSelectConfiguration / FunctionSelectInterface (spec.md
	// section 4.4).
	ConfigValue      uint16
	InterfaceValue   uint16
	AlternateSetting uint16

	// Handle is the opaque host completion token passed back unchanged
	// through the eventual outstanding.Request.
	Handle outstanding.URBHandle
}
