package wire

import (
	"encoding/binary"

	"github.com/behrlich/go-usbip/internal/constants"
)

// SetupPacket is a standard 8-byte USB control setup packet. Unlike the
// rest of the USB/IP header, the setup bytes travel on the wire in USB's
// own little-endian order and are copied verbatim (spec.md section 6);
// SetupPacket exists only so callers can build or inspect one without
// hand-indexing a byte array, mirroring usbarmory-tamago's SetupData.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// Bytes renders the setup packet into its 8-byte wire form.
func (s SetupPacket) Bytes() [8]byte {
	var b [8]byte
	b[0] = s.RequestType
	b[1] = s.Request
	binary.LittleEndian.PutUint16(b[2:4], s.Value)
	binary.LittleEndian.PutUint16(b[4:6], s.Index)
	binary.LittleEndian.PutUint16(b[6:8], s.Length)
	return b
}

// ParseSetupPacket decodes an 8-byte wire setup packet.
func ParseSetupPacket(b [8]byte) SetupPacket {
	return SetupPacket{
		RequestType: b[0],
		Request:     b[1],
		Value:       binary.LittleEndian.Uint16(b[2:4]),
		Index:       binary.LittleEndian.Uint16(b[4:6]),
		Length:      binary.LittleEndian.Uint16(b[6:8]),
	}
}

// Direction reports the transfer direction implied by bmRequestType.Dir
// (bit 7), per spec.md section 4.4 ("direction derived from
// bmRequestType.Dir, not from TransferFlags").
func (s SetupPacket) Direction() constants.Direction {
	if s.RequestType&0x80 != 0 {
		return constants.DirIn
	}
	return constants.DirOut
}

// Standard USB request codes used when synthesising control transfers for
// URB functions that carry no wire payload of their own (spec.md 4.4).
const (
	ReqGetStatus        = 0x00
	ReqClearFeature     = 0x01
	ReqSetFeature       = 0x03
	ReqSetAddress       = 0x05
	ReqGetDescriptor    = 0x06
	ReqSetDescriptor    = 0x07
	ReqGetConfiguration = 0x08
	ReqSetConfiguration = 0x09
	ReqGetInterface     = 0x0A
	ReqSetInterface     = 0x0B
	ReqSynchFrame       = 0x0C
)
