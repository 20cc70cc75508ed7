package wire

import (
	"encoding/binary"
	"errors"
)

var errShortBody = errors.New("wire: body shorter than fixed head")

// bodyHeadSize is the fixed-size prefix of a marshaled packet body: Type(1)
// + ID(4) + Index(2) + NumIndices(2) + IsNack(1).
const bodyHeadSize = 10

// MarshalBody serializes everything in p that travels inside the
// AES-authenticated region: Type, ID, Index, NumIndices, IsNack and Data.
// Hash, CipherLen and IV are cleartext header fields populated by the
// crypto package and are not part of the body.
func MarshalBody(p Packet) []byte {
	buf := make([]byte, bodyHeadSize+len(p.Data))
	buf[0] = byte(p.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(p.ID))
	binary.BigEndian.PutUint16(buf[5:7], p.Index)
	binary.BigEndian.PutUint16(buf[7:9], p.NumIndices)
	buf[9] = boolByte(p.IsNack)
	copy(buf[bodyHeadSize:], p.Data)
	return buf
}

// UnmarshalBody parses a body produced by MarshalBody into a Packet with
// Hash, CipherLen and IV left zero; the caller fills those from the
// cleartext header it read off the wire.
func UnmarshalBody(buf []byte) (Packet, error) {
	if len(buf) < bodyHeadSize {
		return Packet{}, errShortBody
	}
	var p Packet
	p.Type = PacketType(buf[0])
	p.ID = int32(binary.BigEndian.Uint32(buf[1:5]))
	p.Index = binary.BigEndian.Uint16(buf[5:7])
	p.NumIndices = binary.BigEndian.Uint16(buf[7:9])
	p.IsNack = buf[9] != 0
	if len(buf) > bodyHeadSize {
		data := make([]byte, len(buf)-bodyHeadSize)
		copy(data, buf[bodyHeadSize:])
		p.Data = data
	}
	return p, nil
}
