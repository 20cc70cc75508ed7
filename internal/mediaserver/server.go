package mediaserver

import (
	"context"
	"time"

	"github.com/skylinewire/streamd/internal/clipboard"
	"github.com/skylinewire/streamd/internal/control"
	"github.com/skylinewire/streamd/internal/fragment"
	"github.com/skylinewire/streamd/internal/session"
	"github.com/skylinewire/streamd/internal/transport"
	"github.com/skylinewire/streamd/internal/wire"
)

// Server owns the shared Pipeline and fans every slot's incoming control
// traffic to it: pings, NACKs, dimension changes and input.
type Server struct {
	mgr      *session.Manager
	pipeline *Pipeline
	input    InputHandler
	clip     *clipboard.Synchronizer
	key      []byte
}

// NewServer ties mgr (the slot/admission layer) to pipeline (the shared
// capture/encode loop) for the lifetime of the process. clip may be nil,
// in which case incoming clipboard updates are simply broadcast without a
// local provider to apply them to.
func NewServer(mgr *session.Manager, pipeline *Pipeline, clip *clipboard.Synchronizer, key []byte) *Server {
	return &Server{
		mgr:      mgr,
		pipeline: pipeline,
		input:    newLoggingInputHandler(),
		clip:     clip,
		key:      key,
	}
}

// AcceptSlot opens the UDP and TCP contexts for an already-admitted slot
// (its ports were handed out by discovery) and activates the slot once both
// handshakes succeed.
func (s *Server) AcceptSlot(ctx context.Context, idx int, udpPort, tcpPort uint16, handshakeTimeout time.Duration) error {
	udpOpts := transport.Options{
		Role:             transport.RoleServer,
		Port:             int(udpPort),
		Key:              s.key,
		HandshakeTimeout: handshakeTimeout,
		RecvTimeout:      time.Second,
	}
	udp, err := transport.CreateUDP(udpOpts)
	if err != nil {
		return err
	}

	tcpOpts := transport.Options{
		Role:             transport.RoleServer,
		Port:             int(tcpPort),
		Key:              s.key,
		HandshakeTimeout: handshakeTimeout,
		RecvTimeout:      time.Second,
	}
	tcp, err := transport.CreateTCP(tcpOpts)
	if err != nil {
		udp.Destroy()
		return err
	}

	s.mgr.ActivateSlot(idx, udp, tcp)
	go s.serveUDP(ctx, idx, udp)
	go s.serveTCP(ctx, idx, tcp)
	return nil
}

func (s *Server) serveUDP(ctx context.Context, idx int, udp *transport.UDPContext) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p, err := udp.ReadPacket()
		if err != nil {
			log.Warn("udp read failed, tearing down slot", "slot", idx, "error", err)
			return
		}
		if p == nil {
			continue
		}
		if p.Type != wire.PacketMessage {
			continue
		}
		s.handleControl(idx, udp, p.Data)
	}
}

func (s *Server) serveTCP(ctx context.Context, idx int, tcp *transport.TCPContext) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p, err := tcp.ReadPacket()
		if err != nil {
			log.Warn("tcp read failed, tearing down slot", "slot", idx, "error", err)
			return
		}
		if p == nil {
			continue
		}
		if p.Type != wire.PacketMessage {
			continue
		}
		s.handleControl(idx, tcp, p.Data)
	}
}

type sendContext interface {
	SendPacket(p wire.Packet) error
}

func (s *Server) handleControl(idx int, conn sendContext, body []byte) {
	msg, err := control.DecodeServer(body)
	if err != nil {
		log.Warn("malformed server message", "slot", idx, "error", err)
		return
	}

	s.mgr.Touch(idx)

	if handled, err := DispatchInput(s.input, msg); handled {
		if err != nil {
			log.Warn("input dispatch failed", "slot", idx, "error", err)
		}
		return
	}

	switch m := msg.(type) {
	case control.Ping:
		s.replyPong(conn, m.ID)
	case control.Mbps:
		s.pipeline.ObserveBandwidth(m.Value)
	case control.Dimensions:
		if err := s.pipeline.RebuildCapturer(int(m.Width), int(m.Height)); err != nil {
			log.Warn("capturer rebuild failed", "slot", idx, "error", err)
		}
	case control.NackVideo:
		s.retransmit(conn, s.pipeline.replay, wire.PacketVideo, m.ID, m.Index)
	case control.NackAudio:
		s.retransmit(conn, s.pipeline.audioReplay, wire.PacketAudio, m.ID, m.Index)
	case control.IFrameRequest:
		s.pipeline.RequestIFrame()
	case control.ClipboardToServer:
		s.handleClipboard(idx, m)
	}
}

// handleClipboard applies a client's clipboard update to the local provider
// (so a paste on the remote desktop sees it) and re-broadcasts it to every
// active slot, the sender included, so all clients stay in sync.
func (s *Server) handleClipboard(idx int, m control.ClipboardToServer) {
	if s.clip != nil {
		if err := s.clip.ApplyRemote(m.Content); err != nil {
			log.Warn("clipboard apply failed", "slot", idx, "error", err)
		}
	}
	body, err := control.EncodeClient(control.ClipboardToClient{Content: m.Content})
	if err != nil {
		log.Warn("clipboard re-encode failed", "error", err)
		return
	}
	s.mgr.BroadcastTCP(wire.Packet{Type: wire.PacketMessage, Data: body})
}

func (s *Server) replyPong(conn sendContext, id int32) {
	body, err := control.EncodeClient(control.Pong{ID: id})
	if err != nil {
		return
	}
	pkt := wire.Packet{Type: wire.PacketMessage, Data: body}
	if err := conn.SendPacket(pkt); err != nil {
		log.Warn("pong send failed", "error", err)
	}
}

func (s *Server) retransmit(conn sendContext, cache *fragment.ReplayCache, pktType wire.PacketType, id int32, index uint16) {
	data, ok := cache.Lookup(id, index)
	if !ok {
		return
	}
	pkt := wire.Packet{Type: pktType, ID: id, Index: index, Data: data}
	if err := conn.SendPacket(pkt); err != nil {
		log.Warn("nack retransmit failed", "error", err)
	}
}

// ObserveBandwidth applies a client-reported Mbps sample as the adaptive
// controller's new ceiling, the same way the reported rate is treated as
// authoritative for the target bitrate.
func (p *Pipeline) ObserveBandwidth(mbps float64) {
	if p.adaptive == nil || mbps <= 0 {
		return
	}
	p.adaptive.SetMaxBitrate(int(mbps * 1_000_000))
}
