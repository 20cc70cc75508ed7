package transport

import (
	"encoding/binary"
	"errors"

	"github.com/skylinewire/streamd/internal/wire"
)

// envelopeHeadSize is the cleartext prefix carried alongside every
// ciphertext: Hash(16) + CipherLen(4) + IV(16).
const envelopeHeadSize = 16 + 4 + 16

var errShortEnvelope = errors.New("transport: frame shorter than envelope head")

// encodeEnvelope serializes a Packet's cleartext header and ciphertext into
// the bytes that travel as one UDP datagram or one TCP frame.
func encodeEnvelope(p wire.Packet, ciphertext []byte) []byte {
	buf := make([]byte, envelopeHeadSize+len(ciphertext))
	copy(buf[0:16], p.Hash[:])
	binary.BigEndian.PutUint32(buf[16:20], p.CipherLen)
	copy(buf[20:36], p.IV[:])
	copy(buf[36:], ciphertext)
	return buf
}

// decodeEnvelope splits a received frame back into the cleartext header
// fields and the ciphertext region.
func decodeEnvelope(buf []byte) (hash [16]byte, cipherLen uint32, iv [16]byte, ciphertext []byte, err error) {
	if len(buf) < envelopeHeadSize {
		return hash, 0, iv, nil, errShortEnvelope
	}
	copy(hash[:], buf[0:16])
	cipherLen = binary.BigEndian.Uint32(buf[16:20])
	copy(iv[:], buf[20:36])
	ciphertext = buf[36:]
	return hash, cipherLen, iv, ciphertext, nil
}
