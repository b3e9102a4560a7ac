package wire

import "encoding/binary"

// IsoPacketDesc is one 16-byte isochronous packet descriptor, decoded into
// host representation (spec.md section 3).
type IsoPacketDesc struct {
	Offset       uint32
	Length       uint32
	ActualLength uint32
	Status       int32
}

// EncodeIsoDescs serialises a slice of packet descriptors into a
// network-order byte slice, in order.
func EncodeIsoDescs(descs []IsoPacketDesc) []byte {
	buf := make([]byte, len(descs)*16)
	for i, d := range descs {
		off := i * 16
		binary.BigEndian.PutUint32(buf[off:off+4], d.Offset)
		binary.BigEndian.PutUint32(buf[off+4:off+8], d.Length)
		binary.BigEndian.PutUint32(buf[off+8:off+12], d.ActualLength)
		binary.BigEndian.PutUint32(buf[off+12:off+16], uint32(d.Status))
	}
	return buf
}

// DecodeIsoDescs parses count descriptors out of buf, which must contain at
// least count*16 bytes.
func DecodeIsoDescs(buf []byte, count int) []IsoPacketDesc {
	descs := make([]IsoPacketDesc, count)
	for i := 0; i < count; i++ {
		off := i * 16
		descs[i] = IsoPacketDesc{
			Offset:       binary.BigEndian.Uint32(buf[off : off+4]),
			Length:       binary.BigEndian.Uint32(buf[off+4 : off+8]),
			ActualLength: binary.BigEndian.Uint32(buf[off+8 : off+12]),
			Status:       int32(binary.BigEndian.Uint32(buf[off+12 : off+16])),
		}
	}
	return descs
}
