package mediaclient

import (
	"sync"
	"time"

	"github.com/skylinewire/streamd/internal/clipboard"
	"github.com/skylinewire/streamd/internal/control"
	"github.com/skylinewire/streamd/internal/fragment"
	"github.com/skylinewire/streamd/internal/transport"
	"github.com/skylinewire/streamd/internal/wire"
)

const (
	reassemblyHorizon = time.Second
	pingInterval      = time.Second
)

// sendContext is the subset of transport.UDPContext/TCPContext the client
// needs to push a packet back to the server (NACKs, pings, input).
type sendContext interface {
	SendPacket(p wire.Packet) error
}

// Client drives the receive side of one media connection: reassembling
// video and audio fragments, decoding them, and feeding a Renderer, while
// tracking round-trip latency via periodic pings.
type Client struct {
	udp *transport.UDPContext
	tcp *transport.TCPContext

	videoReasm *fragment.Reassembler
	audioReasm *fragment.Reassembler

	decoders *DecoderChain
	audioDec AudioDecoder
	renderer Renderer
	clip     *clipboard.Synchronizer

	metrics *ClientMetrics

	pingMu   sync.Mutex
	inFlight map[int32]time.Time
	nextPing int32

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient builds a Client around already-handshaken UDP and TCP contexts.
// renderer and clip may be nil; clip being nil just means remote clipboard
// updates are not applied locally.
func NewClient(udp *transport.UDPContext, tcp *transport.TCPContext, renderer Renderer, clip *clipboard.Synchronizer, preferHardwareDecode bool) *Client {
	if renderer == nil {
		renderer = newLastFrameRenderer()
	}
	c := &Client{
		udp:      udp,
		tcp:      tcp,
		decoders: NewDecoderChain(preferHardwareDecode),
		audioDec: NewAudioDecoder(),
		renderer: renderer,
		clip:     clip,
		metrics:  newClientMetrics(),
		inFlight: make(map[int32]time.Time),
		done:     make(chan struct{}),
	}
	c.videoReasm = fragment.New(reassemblyHorizon, c.onVideoNack)
	c.audioReasm = fragment.New(reassemblyHorizon, c.onAudioNack)
	return c
}

// Metrics returns a point-in-time telemetry snapshot.
func (c *Client) Metrics() ClientMetricsSnapshot {
	return c.metrics.Snapshot()
}

// Run starts the UDP/TCP receive loops and the ping ticker, blocking until
// stop is closed.
func (c *Client) Run(stop <-chan struct{}) {
	c.wg.Add(3)
	go c.receiveUDP(stop)
	go c.receiveTCP(stop)
	go c.pingLoop(stop)
	c.wg.Wait()
}

// Stop halts Run's goroutines and releases the decoder chain.
func (c *Client) Stop() {
	close(c.done)
	c.decoders.Close()
}

func (c *Client) receiveUDP(stop <-chan struct{}) {
	defer c.wg.Done()
	sweep := time.NewTicker(reassemblyHorizon)
	defer sweep.Stop()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-c.done:
				return
			case <-sweep.C:
				c.videoReasm.Sweep()
				c.audioReasm.Sweep()
			}
		}
	}()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		default:
		}
		p, err := c.udp.ReadPacket()
		if err != nil {
			log.Warn("udp read failed", "error", err)
			return
		}
		if p == nil {
			continue
		}
		c.dispatchUDP(*p)
	}
}

func (c *Client) dispatchUDP(p wire.Packet) {
	switch p.Type {
	case wire.PacketVideo:
		payload, done := c.videoReasm.Feed(p)
		if !done {
			return
		}
		c.decodeVideo(payload)
	case wire.PacketAudio:
		payload, done := c.audioReasm.Feed(p)
		if !done {
			return
		}
		if _, err := c.audioDec.Decode(payload); err != nil {
			log.Warn("audio decode failed", "error", err)
		}
	case wire.PacketMessage:
		c.handleControl(c.udp, p.Data)
	}
}

func (c *Client) decodeVideo(payload []byte) {
	frame, err := wire.UnmarshalFrame(payload)
	if err != nil {
		c.metrics.RecordDrop()
		log.Warn("frame envelope decode failed", "error", err)
		return
	}

	start := time.Now()
	decoded, err := c.decoders.Decode(frame.VideoData, frame.Width, frame.Height, frame.IsIFrame)
	if err != nil {
		c.metrics.RecordDrop()
		log.Warn("video decode failed", "error", err)
		return
	}
	c.metrics.RecordDecode(time.Since(start), len(frame.VideoData))

	c.renderer.RenderVideo(decoded)
	if frame.HasCursor {
		c.renderer.RenderCursor(frame.Cursor)
	}
	if len(frame.PeerCursors) > 0 {
		c.renderer.RenderPeerCursors(frame.PeerCursors)
	}
}

func (c *Client) receiveTCP(stop <-chan struct{}) {
	defer c.wg.Done()
	if c.tcp == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		default:
		}
		p, err := c.tcp.ReadPacket()
		if err != nil {
			log.Warn("tcp read failed", "error", err)
			return
		}
		if p == nil || p.Type != wire.PacketMessage {
			continue
		}
		c.handleControl(c.tcp, p.Data)
	}
}

func (c *Client) handleControl(conn sendContext, body []byte) {
	msg, err := control.DecodeClient(body)
	if err != nil {
		log.Warn("malformed client message", "error", err)
		return
	}

	switch m := msg.(type) {
	case control.Pong:
		c.onPong(m.ID)
	case control.ClipboardToClient:
		if c.clip != nil {
			if err := c.clip.ApplyRemote(m.Content); err != nil {
				log.Warn("clipboard apply failed", "error", err)
			}
		}
	}
}

func (c *Client) pingLoop(stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.sendPing()
		}
	}
}

func (c *Client) sendPing() {
	c.pingMu.Lock()
	c.nextPing++
	id := c.nextPing
	c.inFlight[id] = time.Now()
	c.pingMu.Unlock()

	body, err := control.EncodeServer(control.Ping{ID: id})
	if err != nil {
		return
	}
	if err := c.udp.SendPacket(wire.Packet{Type: wire.PacketMessage, Data: body}); err != nil {
		log.Warn("ping send failed", "error", err)
	}
}

func (c *Client) onPong(id int32) {
	c.pingMu.Lock()
	sentAt, ok := c.inFlight[id]
	if ok {
		delete(c.inFlight, id)
	}
	c.pingMu.Unlock()
	if ok {
		c.metrics.RecordRTT(time.Since(sentAt))
	}
}

func (c *Client) onVideoNack(id int32, index uint16) {
	c.sendNack(control.NackVideo{ID: id, Index: index})
}

func (c *Client) onAudioNack(id int32, index uint16) {
	c.sendNack(control.NackAudio{ID: id, Index: index})
}

func (c *Client) sendNack(msg control.ServerMessage) {
	body, err := control.EncodeServer(msg)
	if err != nil {
		return
	}
	if err := c.udp.SendPacket(wire.Packet{Type: wire.PacketMessage, Data: body}); err != nil {
		log.Warn("nack send failed", "error", err)
	}
}
