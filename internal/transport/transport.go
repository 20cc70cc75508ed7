// Package transport implements the UDP and TCP socket contexts that carry
// already-fragmented wire.Packet values between client and server: socket
// setup (with optional STUN-assisted NAT traversal), the private-key
// handshake that authenticates a fresh connection, and the serialized
// send/receive path that wraps every packet body in per-packet AES-128-CBC
// encryption with a truncated HMAC-SHA256 before it hits the network.
package transport

import (
	"errors"
	"time"

	"github.com/skylinewire/streamd/internal/logging"
	"github.com/skylinewire/streamd/internal/throttle"
)

var log = logging.L("transport")

// Role distinguishes which side of a context opened the connection.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

const (
	// udpRecvBuf is the enlarged SO_RCVBUF applied to every UDP socket so a
	// burst of fragments doesn't overflow the kernel buffer before the
	// reassembler drains it.
	udpRecvBuf = 65535

	// tcpReadChunk is how much of the TCP reassembly buffer is drained into
	// memory per read() call.
	tcpReadChunk = 1024

	// maxRetries and retryDelay implement the ENOBUFS backoff on UDP sends.
	maxRetries = 5
	retryDelay = 5 * time.Millisecond
)

// ErrHandshakeTimeout is returned (wrapped) by CreateUDP and CreateTCP when
// the private-key handshake does not complete within Options.HandshakeTimeout.
var ErrHandshakeTimeout = errors.New("transport: handshake timed out")

// ErrHandshakeMismatch is returned when the peer's challenge response does
// not verify against the shared key.
var ErrHandshakeMismatch = errors.New("transport: handshake signature mismatch")

// Options configures Create for both UDP and TCP contexts.
type Options struct {
	Role             Role
	Destination      string // host:port; empty on a server with no fixed peer
	Port             int
	RecvTimeout      time.Duration
	HandshakeTimeout time.Duration
	UseSTUN          bool
	STUNServer       string // host:port of the fixed STUN host
	Key              []byte // shared secret, see internal/crypto.KeySize

	// Throttler, if non-nil, gates a UDP context's sends; TCP contexts ignore
	// it. The server's mediaserver.AcceptSlot and the client leave it nil.
	Throttler *throttle.Throttler
}
