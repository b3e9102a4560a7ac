// Package isorepack computes the USB/IP wire isochronous packet descriptor
// array from a URB's packet offset array, and the reverse for inbound
// transfers (spec.md section 4.6). It has no dependencies on the rest of
// the session engine so it can be unit tested in isolation, mirroring the
// pack's kevmo314-go-usb isochronous packet bookkeeping.
package isorepack

import (
	"errors"

	"github.com/behrlich/go-usbip/internal/wire"
)

// ErrInvalidParameter is returned when the packet offsets are not
// monotonically non-decreasing, or overrun the declared transfer buffer
// length (spec.md section 4.6).
var ErrInvalidParameter = errors.New("isorepack: invalid packet geometry")

// RepackOut derives the OUT-direction wire packet descriptors from a URB's
// packet offset array and total transfer buffer length. Packet i's length
// is the gap to the next packet's offset (or to the end of the buffer for
// the last packet); actual_length and status are always submitted zero.
func RepackOut(offsets []uint32, bufferLen uint32) ([]wire.IsoPacketDesc, error) {
	n := len(offsets)
	descs := make([]wire.IsoPacketDesc, n)

	var sum uint32
	for i := 0; i < n; i++ {
		var length uint32
		if i+1 < n {
			if offsets[i+1] < offsets[i] {
				return nil, ErrInvalidParameter
			}
			length = offsets[i+1] - offsets[i]
		} else {
			if bufferLen < offsets[i] {
				return nil, ErrInvalidParameter
			}
			length = bufferLen - offsets[i]
		}

		if offsets[i]+length > bufferLen {
			return nil, ErrInvalidParameter
		}

		descs[i] = wire.IsoPacketDesc{
			Offset:       offsets[i],
			Length:       length,
			ActualLength: 0,
			Status:       0,
		}
		sum += length
	}

	if sum != bufferLen {
		return nil, ErrInvalidParameter
	}

	return descs, nil
}

// UnpackIn recomputes per-packet offsets for an IN-direction transfer from
// the server's reported actual_length sequence. OUT-direction transfers
// use the originally submitted offsets verbatim and are not touched by
// this function (spec.md section 4.3, AwaitIsoTail).
func UnpackIn(descs []wire.IsoPacketDesc) []wire.IsoPacketDesc {
	out := make([]wire.IsoPacketDesc, len(descs))
	var offset uint32
	for i, d := range descs {
		out[i] = d
		out[i].Offset = offset
		offset += d.ActualLength
	}
	return out
}
