package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/skylinewire/streamd/internal/crypto"
	"github.com/skylinewire/streamd/internal/wire"
)

// TCPContext is the reliable sibling of UDPContext: one per client, carrying
// clipboard sync and other control messages. Discovery does not use it; it
// runs over its own cleartext connection in package session. Sends are
// length-prefixed frames rather than discrete datagrams.
type TCPContext struct {
	conn   net.Conn
	framed *tcpFramed

	key         []byte
	recvTimeout time.Duration

	sendMu sync.Mutex

	listener net.Listener // non-nil only on a RoleServer context, for Destroy
}

// CreateTCP opens a TCP context (server: listens on opts.Port and accepts
// one connection; client: dials opts.Destination) and completes the
// private-key handshake before returning.
func CreateTCP(opts Options) (*TCPContext, error) {
	var (
		conn net.Conn
		ln   net.Listener
	)

	switch opts.Role {
	case RoleClient:
		c, err := net.DialTimeout("tcp4", opts.Destination, opts.HandshakeTimeout)
		if err != nil {
			return nil, fmt.Errorf("transport: tcp dial: %w", err)
		}
		conn = c
	default: // RoleServer
		l, err := net.Listen("tcp4", fmt.Sprintf(":%d", opts.Port))
		if err != nil {
			return nil, fmt.Errorf("transport: tcp listen: %w", err)
		}
		c, err := l.Accept()
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("transport: tcp accept: %w", err)
		}
		conn, ln = c, l
	}

	framed := &tcpFramed{conn: conn}
	if err := runHandshake(framed, opts.Key, opts.HandshakeTimeout); err != nil {
		conn.Close()
		if ln != nil {
			ln.Close()
		}
		return nil, err
	}

	return &TCPContext{
		conn:        conn,
		framed:      framed,
		key:         opts.Key,
		recvTimeout: opts.RecvTimeout,
		listener:    ln,
	}, nil
}

// SendPacket encrypts and transmits one length-prefixed packet frame.
func (c *TCPContext) SendPacket(p wire.Packet) error {
	body := wire.MarshalBody(p)
	hdr, ciphertext, err := crypto.Encrypt(body, c.key)
	if err != nil {
		return err
	}
	frame := encodeEnvelope(hdr, ciphertext)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.framed.writeFrame(frame); err != nil {
		return fmt.Errorf("transport: tcp send: %w", err)
	}
	return nil
}

// ReadPacket blocks up to RecvTimeout for the next framed packet, draining
// and reassembling the stream in tcpReadChunk-sized reads.
func (c *TCPContext) ReadPacket() (*wire.Packet, error) {
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

// FreePacket exists only for API symmetry with UDPContext; see its doc.
func (c *TCPContext) FreePacket(p *wire.Packet) {}

// Ack sends an empty frame as a liveness probe.
func (c *TCPContext) Ack() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.framed.writeFrame(nil)
}

// Destroy closes the connection (and, on the server, the listener).
func (c *TCPContext) Destroy() error {
	err := c.framed.close()
	if c.listener != nil {
		if lerr := c.listener.Close(); err == nil {
			err = lerr
		}
	}
	return err
}
