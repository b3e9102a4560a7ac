package intake

import (
	"errors"

	"github.com/behrlich/go-usbip/internal/constants"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

// ErrNotSupported is returned for URB functions the core refuses to
// translate onto the wire (spec.md section 4.4).
var ErrNotSupported = errors.New("intake: URB function not supported")

// ErrInvalidParameter is returned for a malformed URB: wrong endpoint
// type for the function, or (for iso) bad packet geometry (spec.md
// section 4.4, 4.6).
var ErrInvalidParameter = errors.New("intake: invalid URB parameters")

// Plan is everything Dispatch derives from a URB that the session needs
// to build and enqueue a wire frame, once a sequence number has been
// assigned. Plan never carries a seqnum itself — that is the outstanding
// table's job (spec.md section 4.1).
type Plan struct {
	Kind             outstanding.Kind
	Direction        constants.Direction
	Endpoint         uint32
	TransferFlags    uint32
	TransferBuffer   []byte
	Setup            wire.SetupPacket
	IsoOffsets       []uint32
	IsFunctionSelect bool
	Handle           outstanding.URBHandle
}

// Dispatch converts a URB into a Plan, or returns ErrNotSupported /
// ErrInvalidParameter for a URB that never reaches the wire (spec.md
// section 4.4).
func Dispatch(urb *URB) (*Plan, error) {
	switch urb.Function {
	case FunctionSelectConfiguration:
		return &Plan{
			Kind:      outstanding.KindSetConfig,
			Direction: constants.DirOut,
			Endpoint:  0,
			Setup: wire.SetupPacket{
				RequestType: 0x00,
				Request:     wire.ReqSetConfiguration,
				Value:       urb.ConfigValue,
				Index:       0,
				Length:      0,
			},
			IsFunctionSelect: true,
			Handle:           urb.Handle,
		}, nil

	case FunctionSelectInterface:
		return &Plan{
			Kind:      outstanding.KindSetInterface,
			Direction: constants.DirOut,
			Endpoint:  0,
			Setup: wire.SetupPacket{
				RequestType: 0x01, // recipient = interface
				Request:     wire.ReqSetInterface,
				Value:       urb.AlternateSetting,
				Index:       urb.InterfaceValue,
				Length:      0,
			},
			IsFunctionSelect: true,
			Handle:           urb.Handle,
		}, nil

	case FunctionControlTransfer, FunctionControlTransferEx:
		if urb.EndpointType != EndpointControl {
			return nil, ErrInvalidParameter
		}
		dir := urb.Setup.Direction() // spec.md 4.4: derived from bmRequestType.Dir
		return &Plan{
			Kind:           outstanding.KindControl,
			Direction:      dir,
			Endpoint:       urb.Endpoint,
			TransferFlags:  normalizeTransferFlags(urb.TransferFlags, dir),
			TransferBuffer: urb.TransferBuffer,
			Setup:          urb.Setup,
			Handle:         urb.Handle,
		}, nil

	case FunctionBulkOrInterruptTransfer:
		if urb.EndpointType != EndpointBulk && urb.EndpointType != EndpointInterrupt {
			return nil, ErrInvalidParameter
		}
		return &Plan{
			Kind:           outstanding.KindBulkOrInterrupt,
			Direction:      urb.Direction,
			Endpoint:       urb.Endpoint,
			TransferFlags:  normalizeTransferFlags(urb.TransferFlags, urb.Direction),
			TransferBuffer: urb.TransferBuffer,
			Handle:         urb.Handle,
		}, nil

	case FunctionIsochTransfer:
		if urb.EndpointType != EndpointIsochronous {
			return nil, ErrInvalidParameter
		}
		if len(urb.IsoOffsets) == 0 {
			return nil, ErrInvalidParameter
		}
		return &Plan{
			Kind:      outstanding.KindIso,
			Direction: urb.Direction,
			Endpoint:  urb.Endpoint,
			// USBD_START_ISO_TRANSFER_ASAP forced on: current frame number
			// is not tracked locally (spec.md section 4.2, 4.4).
			TransferFlags:  normalizeTransferFlags(urb.TransferFlags, urb.Direction) | constants.FlagStartIsoASAP,
			TransferBuffer: urb.TransferBuffer,
			IsoOffsets:     urb.IsoOffsets,
			Handle:         urb.Handle,
		}, nil

	default:
		// ABORT_PIPE, SYNC_RESET_PIPE, SYNC_CLEAR_STALL,
		// SYNC_RESET_PIPE_AND_CLEAR_STALL, CLOSE/OPEN_STATIC_STREAMS,
		// GET_CURRENT_FRAME_NUMBER, GET_MS_FEATURE_DESCRIPTOR,
		// GET_ISOCH_PIPE_TRANSFER_PATH_DELAYS, GET_STATUS_*,
		// GET/SET_DESCRIPTOR_*, GET_CONFIGURATION, GET_INTERFACE, vendor /
		// class non-transfer forms, and reserved codes all complete
		// locally (spec.md section 4.4): the reference server is
		// stateless with respect to them.
		return nil, ErrNotSupported
	}
}

// normalizeTransferFlags masks out the transfer_flags bits that are
// meaningful only to the local host-controller driver and recomputes the
// direction bit from dir rather than trusting whatever the host URB
// carried (spec.md section 4.2).
func normalizeTransferFlags(flags uint32, dir constants.Direction) uint32 {
	flags &^= constants.FlagLocalOnlyMask
	if dir == constants.DirIn {
		flags |= constants.FlagDirectionIn
	}
	return flags
}
