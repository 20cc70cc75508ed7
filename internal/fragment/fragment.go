// Package fragment splits payloads into wire.Packet-sized fragments and
// reassembles them on the receiving side, tracking gaps so the receiver can
// request retransmission.
package fragment

import (
	"github.com/skylinewire/streamd/internal/wire"
)

// Split divides payload into fragments of at most wire.MaxPayloadSize bytes,
// each addressed by (pktType, id, index, numIndices). id is assigned by the
// caller (drawn from a monotonic per-(type,sender) counter).
func Split(pktType wire.PacketType, id int32, payload []byte) []wire.Packet {
	if len(payload) == 0 {
		return []wire.Packet{{
			Type:       pktType,
			ID:         id,
			Index:      0,
			NumIndices: 1,
			Data:       nil,
		}}
	}

	numIndices := (len(payload) + wire.MaxPayloadSize - 1) / wire.MaxPayloadSize
	fragments := make([]wire.Packet, 0, numIndices)
	for i := 0; i < numIndices; i++ {
		start := i * wire.MaxPayloadSize
		end := start + wire.MaxPayloadSize
		if end > len(payload) {
			end = len(payload)
		}
		data := make([]byte, end-start)
		copy(data, payload[start:end])
		fragments = append(fragments, wire.Packet{
			Type:       pktType,
			ID:         id,
			Index:      uint16(i),
			NumIndices: uint16(numIndices),
			Data:       data,
		})
	}
	return fragments
}
