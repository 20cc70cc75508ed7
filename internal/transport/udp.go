package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/skylinewire/streamd/internal/crypto"
	"github.com/skylinewire/streamd/internal/throttle"
	"github.com/skylinewire/streamd/internal/wire"
)

// UDPContext is one authenticated UDP socket to a single peer. Exactly one
// exists per client, carrying video, audio and the fast control lane.
type UDPContext struct {
	pc     *net.UDPConn
	remote *net.UDPAddr
	framed *udpFramed

	key         []byte
	recvTimeout time.Duration
	throttler   *throttle.Throttler

	sendMu sync.Mutex
}

// CreateUDP opens (server: binds and accepts one peer; client: connects to
// opts.Destination, optionally via STUN) a UDP context and completes the
// private-key handshake before returning.
func CreateUDP(opts Options) (*UDPContext, error) {
	pc, remote, err := dialOrListenUDP(opts)
	if err != nil {
		return nil, err
	}
	if err := pc.SetReadBuffer(udpRecvBuf); err != nil {
		log.Warn("failed to enlarge UDP RCVBUF", "error", err)
	}

	framed := &udpFramed{pc: pc, remote: remote}
	if remote == nil {
		// Server with no fixed peer: the first frame we read establishes
		// the peer address for the remainder of the context's life.
		if _, err := framed.readFrame(); err != nil {
			pc.Close()
			return nil, fmt.Errorf("transport: udp accept: %w", err)
		}
	}

	if err := runHandshake(framed, opts.Key, opts.HandshakeTimeout); err != nil {
		pc.Close()
		return nil, err
	}

	return &UDPContext{
		pc:          pc,
		remote:      framed.remote,
		framed:      framed,
		key:         opts.Key,
		recvTimeout: opts.RecvTimeout,
		throttler:   opts.Throttler,
	}, nil
}

func dialOrListenUDP(opts Options) (*net.UDPConn, *net.UDPAddr, error) {
	switch opts.Role {
	case RoleClient:
		dest := opts.Destination
		if opts.UseSTUN {
			local, err := net.ListenUDP("udp4", &net.UDPAddr{Port: opts.Port})
			if err != nil {
				return nil, nil, err
			}
			pub, err := discoverPublicAddr(local, opts.STUNServer)
			if err != nil {
				local.Close()
				return nil, nil, err
			}
			log.Info("stun discovered public endpoint", "addr", pub.String())
			raddr, err := net.ResolveUDPAddr("udp4", dest)
			if err != nil {
				local.Close()
				return nil, nil, err
			}
			return local, raddr, nil
		}
		raddr, err := net.ResolveUDPAddr("udp4", dest)
		if err != nil {
			return nil, nil, err
		}
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: opts.Port})
		if err != nil {
			return nil, nil, err
		}
		return conn, raddr, nil
	default: // RoleServer
		local, err := net.ListenUDP("udp4", &net.UDPAddr{Port: opts.Port})
		if err != nil {
			return nil, nil, err
		}
		return local, nil, nil
	}
}

// SendPacket encrypts and transmits one packet. On the server side, if a
// throttler is attached, it blocks until the throttler allocates bytes for
// this packet's wire size. Transient send errors are retried up to
// maxRetries times with a fixed retryDelay, matching how a kernel-buffer
// exhaustion (ENOBUFS) resolves itself under backpressure.
func (c *UDPContext) SendPacket(p wire.Packet) error {
	body := wire.MarshalBody(p)
	hdr, ciphertext, err := crypto.Encrypt(body, c.key)
	if err != nil {
		return err
	}
	frame := encodeEnvelope(hdr, ciphertext)

	if c.throttler != nil {
		c.throttler.AwaitBytes(len(frame))
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	var sendErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		sendErr = c.framed.writeFrame(frame)
		if sendErr == nil {
			return nil
		}
		time.Sleep(retryDelay)
	}
	return fmt.Errorf("transport: udp send failed after %d retries: %w", maxRetries, sendErr)
}

// ReadPacket blocks up to RecvTimeout for the next packet, decrypting and
// validating it before returning. A timeout returns (nil, nil): the caller's
// read loop should treat that as "nothing arrived this tick", not an error.
func (c *UDPContext) ReadPacket() (*wire.Packet, error) {
	if c.recvTimeout > 0 {
		if err := c.framed.setDeadline(time.Now().Add(c.recvTimeout)); err != nil {
			return nil, err
		}
	}

	frame, err := c.framed.readFrame()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	if len(frame) == 0 {
		// NAT keep-alive / ack probe, not a packet.
		return nil, nil
	}

	hash, cipherLen, iv, ciphertext, err := decodeEnvelope(frame)
	if err != nil {
		return nil, err
	}
	hdr := wire.Packet{Hash: hash, CipherLen: cipherLen, IV: iv}
	plaintext, err := crypto.Decrypt(hdr, ciphertext, c.key)
	if err != nil {
		return nil, err
	}
	p, err := wire.UnmarshalBody(plaintext)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Ack sends an empty datagram: a NAT keep-alive on the client side, a
// liveness probe on the server side.
func (c *UDPContext) Ack() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.framed.writeFrame(nil)
}

// FreePacket releases the buffer produced by ReadPacket. The Go garbage
// collector reclaims it once unreferenced; this exists only so callers
// written against the symmetric UDP/TCP context surface don't need a
// transport-specific branch.
func (c *UDPContext) FreePacket(p *wire.Packet) {}

// Destroy closes the socket and detaches the throttler.
func (c *UDPContext) Destroy() error {
	c.throttler = nil
	return c.framed.close()
}
