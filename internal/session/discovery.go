package session

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/skylinewire/streamd/internal/control"
	"github.com/skylinewire/streamd/internal/transport"
)

// DiscoveryServer accepts one client connection at a time on a fixed TCP
// port, reads its DiscoveryRequest, admits it into the Manager's slot
// array, and replies with its assigned ports. The discovery channel itself
// carries no user data and predates the per-slot private-key handshake, so
// it is framed in the clear with a 4-byte length prefix rather than through
// the encrypted transport envelope.
type DiscoveryServer struct {
	mgr      *Manager
	listener net.Listener

	// onAdmit, if set, fires after a client is admitted into a slot and the
	// DiscoveryReply has been sent, so the caller can open that slot's UDP
	// and TCP contexts and run its private-key handshake.
	onAdmit func(idx int, udpPort, tcpPort uint16)
}

// ListenDiscovery binds the fixed discovery port.
func ListenDiscovery(mgr *Manager, port int) (*DiscoveryServer, error) {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("session: listen discovery: %w", err)
	}
	return &DiscoveryServer{mgr: mgr, listener: ln}, nil
}

// OnAdmit registers a callback invoked after each successful admission.
func (d *DiscoveryServer) OnAdmit(fn func(idx int, udpPort, tcpPort uint16)) {
	d.onAdmit = fn
}

// Serve accepts connections one at a time until stop is closed. Each
// connection is handled synchronously: accept, admit, reply, close — the
// client reconnects on its assigned UDP/TCP ports afterward.
func (d *DiscoveryServer) Serve(stop <-chan struct{}) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
				log.Warn("discovery accept error", "error", err)
				continue
			}
		}
		d.handle(conn)
	}
}

// Close stops accepting new discovery connections.
func (d *DiscoveryServer) Close() error {
	return d.listener.Close()
}

func (d *DiscoveryServer) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(DiscoveryReadTimeout))

	req, err := readDiscoveryFrame(conn)
	if err != nil {
		log.Warn("discovery read failed", "error", err)
		return
	}
	reply, err := d.mgr.Admit(req)
	if err != nil {
		log.Warn("discovery admission failed", "error", err)
		return
	}
	if err := writeDiscoveryFrame(conn, reply); err != nil {
		log.Warn("discovery reply failed", "error", err)
		return
	}
	if d.onAdmit != nil {
		d.onAdmit(int(reply.ClientID), reply.UDPPort, reply.TCPPort)
	}
}

// Admit applies the admission policy from a decoded DiscoveryRequest:
// reuse the slot of a returning username (evicting its prior occupant), or
// take the lowest free slot. It returns the DiscoveryReply to send back.
func (m *Manager) Admit(req control.DiscoveryRequest) (control.DiscoveryReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.findByUsernameLocked(req.Username)
	if idx == -1 {
		idx = m.findFreeLocked()
	}
	if idx == -1 {
		return control.DiscoveryReply{}, fmt.Errorf("session: no free slot for %q", req.Username)
	}

	udpPort, tcpPort, err := m.portMap.Ports(idx)
	if err != nil {
		return control.DiscoveryReply{}, err
	}

	connID := int32(time.Now().UnixNano() & 0x7fffffff)
	m.slots[idx] = Slot{
		Active:       false, // becomes true once the client completes both handshakes
		Username:     req.Username,
		ConnectionID: connID,
		UDPPort:      udpPort,
		TCPPort:      tcpPort,
		LastPing:     time.Now(),
	}
	m.everConnected = true

	return control.DiscoveryReply{
		ClientID:        int32(idx),
		UDPPort:         udpPort,
		TCPPort:         tcpPort,
		AudioSampleRate: 44100,
		ConnectionID:    connID,
		Username:        req.Username,
	}, nil
}

// ActivateSlot marks a slot active after its UDP and TCP handshakes both
// complete, attaching the live contexts, resetting input state, and
// granting it controller status per the current all-clients-control
// policy.
func (m *Manager) ActivateSlot(idx int, udp *transport.UDPContext, tcp *transport.TCPContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 || idx >= len(m.slots) {
		return
	}
	m.slots[idx].UDP = udp
	m.slots[idx].TCP = tcp
	m.slots[idx].Active = true
	m.slots[idx].IsControlling = true
	m.slots[idx].LastPing = time.Now()
}

func readDiscoveryFrame(conn net.Conn) (control.DiscoveryRequest, error) {
	var lenBuf [4]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return control.DiscoveryRequest{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := readFull(conn, buf); err != nil {
		return control.DiscoveryRequest{}, err
	}
	msg, err := control.DecodeServer(buf)
	if err != nil {
		return control.DiscoveryRequest{}, err
	}
	req, ok := msg.(control.DiscoveryRequest)
	if !ok {
		return control.DiscoveryRequest{}, fmt.Errorf("session: expected DiscoveryRequest, got %T", msg)
	}
	return req, nil
}

func writeDiscoveryFrame(conn net.Conn, reply control.DiscoveryReply) error {
	body, err := control.EncodeClient(reply)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = conn.Write(body)
	return err
}

// DialDiscovery is the client side of the discovery handshake: connect to
// the server's discovery port, send a DiscoveryRequest, and return the
// DiscoveryReply carrying the slot's assigned ports and connection id.
func DialDiscovery(address string, req control.DiscoveryRequest, timeout time.Duration) (control.DiscoveryReply, error) {
	conn, err := net.DialTimeout("tcp4", address, timeout)
	if err != nil {
		return control.DiscoveryReply{}, fmt.Errorf("session: dial discovery: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	body, err := control.EncodeServer(req)
	if err != nil {
		return control.DiscoveryReply{}, err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return control.DiscoveryReply{}, err
	}
	if _, err := conn.Write(body); err != nil {
		return control.DiscoveryReply{}, err
	}

	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return control.DiscoveryReply{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	replyBuf := make([]byte, n)
	if _, err := readFull(conn, replyBuf); err != nil {
		return control.DiscoveryReply{}, err
	}
	msg, err := control.DecodeClient(replyBuf)
	if err != nil {
		return control.DiscoveryReply{}, err
	}
	reply, ok := msg.(control.DiscoveryReply)
	if !ok {
		return control.DiscoveryReply{}, fmt.Errorf("session: expected DiscoveryReply, got %T", msg)
	}
	return reply, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
