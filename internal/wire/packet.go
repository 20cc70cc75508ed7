// Package wire defines the canonical on-the-wire layout shared by every
// transport and pipeline component: the Packet header, the video Frame
// envelope, cursor images, and audio frames.
package wire

// Size ceilings referenced throughout the transport and media pipeline.
const (
	// MaxPayloadSize is the largest payload a single Packet fragment may
	// carry. Larger logical payloads are split across multiple fragments
	// sharing one (Type, ID) pair.
	MaxPayloadSize = 1285

	// LargestFrameSize bounds a single video Frame envelope, cursor image
	// and all.
	LargestFrameSize = 1 << 20 // 1 MB

	// MaxCursorWidth and MaxCursorHeight bound a bitmap cursor image.
	MaxCursorWidth  = 64
	MaxCursorHeight = 64

	// LargestTCPPacket bounds any single TCP-carried Packet (Clipboard,
	// Discovery).
	LargestTCPPacket = 10 << 20 // 10 MB

	// MaxPacketSize bounds the ciphertext region of any UDP Packet. Sending
	// a larger payload over UDP is a caller error, not a wire condition.
	MaxPacketSize = 1400

	// hashSize is the truncated HMAC-SHA-256 prefix length.
	hashSize = 16
	// ivSize is the AES-128-CBC initialization vector length.
	ivSize = 16
)

// PacketType identifies what a Packet's payload represents.
type PacketType uint8

const (
	PacketVideo PacketType = iota
	PacketAudio
	PacketMessage
)

func (t PacketType) String() string {
	switch t {
	case PacketVideo:
		return "video"
	case PacketAudio:
		return "audio"
	case PacketMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Packet is the wire unit: every byte sent belongs to exactly one Packet.
// Hash, CipherLen and IV are populated by crypto.Encrypt and validated by
// crypto.Decrypt; callers set the remaining fields, serialize them with
// MarshalBody and pass those bytes to crypto.Encrypt, which returns the
// header Packet and the ciphertext.
type Packet struct {
	Hash       [hashSize]byte
	CipherLen  uint32
	IV         [ivSize]byte
	Type       PacketType
	ID         int32
	Index      uint16
	NumIndices uint16
	IsNack     bool
	Data       []byte // up to MaxPayloadSize bytes; PayloadSize = len(Data)
}

// PayloadSize reports the number of valid bytes in Data.
func (p *Packet) PayloadSize() int {
	return len(p.Data)
}
