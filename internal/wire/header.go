// Package wire implements the USB/IP on-wire frame layouts and their
// encode/decode to and from network byte order (spec.md section 6).
package wire

import (
	"encoding/binary"

	"github.com/behrlich/go-usbip/internal/constants"
)

// Header is the fixed 48-byte USB/IP command header, decoded into host
// representation. Only the fields relevant to the command in play are
// meaningful; callers know which union member to read from the command.
type Header struct {
	Command   constants.Command
	SeqNum    uint32
	DevID     uint32
	Direction constants.Direction
	Endpoint  uint32

	// SUBMIT fields
	TransferFlags       uint32
	TransferBufferLen   uint32
	StartFrame          uint32
	NumberOfPackets     uint32
	Interval            uint32
	Setup               [constants.SetupLen]byte

	// RET_SUBMIT fields
	Status      int32
	ActualLen   uint32
	ErrorCount  uint32

	// UNLINK field
	UnlinkSeqNum uint32
}

// EncodeSubmit serialises a SUBMIT header into a freshly-allocated 48-byte
// network-order buffer. The setup bytes are copied verbatim (USB-wire,
// little-endian order) and are never byte-swapped.
func EncodeSubmit(h *Header) []byte {
	buf := make([]byte, constants.HeaderSize)
	putCommon(buf, constants.CmdSubmit, h.SeqNum, h.DevID, h.Direction, h.Endpoint)

	binary.BigEndian.PutUint32(buf[20:24], h.TransferFlags)
	binary.BigEndian.PutUint32(buf[24:28], h.TransferBufferLen)
	binary.BigEndian.PutUint32(buf[28:32], h.StartFrame)
	binary.BigEndian.PutUint32(buf[32:36], h.NumberOfPackets)
	binary.BigEndian.PutUint32(buf[36:40], h.Interval)
	copy(buf[40:48], h.Setup[:])

	return buf
}

// EncodeUnlink serialises an UNLINK header whose payload is the seqnum of
// the victim SUBMIT, zero-padded to the union size.
func EncodeUnlink(seqNum, devID uint32, dir constants.Direction, ep, victimSeqNum uint32) []byte {
	buf := make([]byte, constants.HeaderSize)
	putCommon(buf, constants.CmdUnlink, seqNum, devID, dir, ep)
	binary.BigEndian.PutUint32(buf[20:24], victimSeqNum)
	// buf[24:48] is already zero.
	return buf
}

func putCommon(buf []byte, cmd constants.Command, seqNum, devID uint32, dir constants.Direction, ep uint32) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(cmd))
	binary.BigEndian.PutUint32(buf[4:8], seqNum)
	binary.BigEndian.PutUint32(buf[8:12], devID)
	binary.BigEndian.PutUint32(buf[12:16], uint32(dir))
	binary.BigEndian.PutUint32(buf[16:20], ep)
}

// DecodeHeader parses a 48-byte network-order buffer into host
// representation. The caller must have already determined, or be in the
// process of determining, which command the header carries; DecodeHeader
// fills every union field it knows how to interpret regardless of command,
// leaving it to the caller to read only the fields valid for h.Command.
func DecodeHeader(buf []byte) *Header {
	h := &Header{}
	h.Command = constants.Command(binary.BigEndian.Uint32(buf[0:4]))
	h.SeqNum = binary.BigEndian.Uint32(buf[4:8])
	h.DevID = binary.BigEndian.Uint32(buf[8:12])
	h.Direction = constants.Direction(binary.BigEndian.Uint32(buf[12:16]))
	h.Endpoint = binary.BigEndian.Uint32(buf[16:20])

	switch h.Command {
	case constants.CmdSubmit:
		h.TransferFlags = binary.BigEndian.Uint32(buf[20:24])
		h.TransferBufferLen = binary.BigEndian.Uint32(buf[24:28])
		h.StartFrame = binary.BigEndian.Uint32(buf[28:32])
		h.NumberOfPackets = binary.BigEndian.Uint32(buf[32:36])
		h.Interval = binary.BigEndian.Uint32(buf[36:40])
		copy(h.Setup[:], buf[40:48])
	case constants.CmdRetSubmit:
		h.Status = int32(binary.BigEndian.Uint32(buf[20:24]))
		h.ActualLen = binary.BigEndian.Uint32(buf[24:28])
		h.StartFrame = binary.BigEndian.Uint32(buf[28:32])
		h.NumberOfPackets = binary.BigEndian.Uint32(buf[32:36])
		h.ErrorCount = binary.BigEndian.Uint32(buf[36:40])
	case constants.CmdUnlink:
		h.UnlinkSeqNum = binary.BigEndian.Uint32(buf[20:24])
	case constants.CmdRetUnlink:
		h.Status = int32(binary.BigEndian.Uint32(buf[20:24]))
	}

	return h
}
