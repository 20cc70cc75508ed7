// Package control implements the control-message protocol: the tagged
// union of small, fixed-shape messages client and server exchange over the
// UDP (fast path: input, ping, nack, dimensions, bitrate, quit) and TCP
// (reliable path: clipboard, discovery) channels.
//
// Every message's wire size is derived deterministically from its tag (and,
// for tail-bearing messages, the embedded tail length); Decode validates
// that the reassembled payload matches the size the tag implies.
package control

import "github.com/skylinewire/streamd/internal/clipboard"

// ServerTag identifies a server-bound (client → server) message.
type ServerTag uint8

const (
	TagKeyboard ServerTag = iota + 1
	TagMouseButton
	TagMouseWheel
	TagMouseMotion
	TagReleaseAllInput
	TagMbps
	TagPing
	TagDimensions
	TagNackVideo
	TagNackAudio
	TagKeyboardState
	TagClipboardToServer
	TagIFrameRequest
	TagInteractionMode
	TagQuitToServer
	TagDiscoveryRequest
)

// ClientTag identifies a client-bound (server → client) message.
type ClientTag uint8

const (
	TagPong ClientTag = iota + 1
	TagAudioFrequency
	TagClipboardToClient
	TagWindowTitle
	TagDiscoveryReply
	TagInit
	TagQuitToClient
)

// InteractionMode is the role a client currently holds over the session.
type InteractionMode uint8

const (
	Spectate InteractionMode = iota
	Control
	ExclusiveControl
)

// ServerMessage is implemented by every server-bound message type. The set
// is closed: Encode/Decode switch exhaustively over the known
// implementations.
type ServerMessage interface {
	serverTag() ServerTag
}

// Keyboard reports a single key transition.
type Keyboard struct {
	Code    uint32
	Mod     uint32
	Pressed bool
}

func (Keyboard) serverTag() ServerTag { return TagKeyboard }

// MouseButton reports a single mouse button transition.
type MouseButton struct {
	Button  uint8
	Pressed bool
}

func (MouseButton) serverTag() ServerTag { return TagMouseButton }

// MouseWheel reports a scroll delta.
type MouseWheel struct {
	DX, DY int32
}

func (MouseWheel) serverTag() ServerTag { return TagMouseWheel }

// MouseMotion reports a cursor move, either absolute or relative to the
// last reported position.
type MouseMotion struct {
	X, Y     int32
	Relative bool
}

func (MouseMotion) serverTag() ServerTag { return TagMouseMotion }

// ReleaseAllInput instructs the host to release every currently pressed
// key and mouse button, typically sent when a client loses focus.
type ReleaseAllInput struct{}

func (ReleaseAllInput) serverTag() ServerTag { return TagReleaseAllInput }

// Mbps reports the client's measured bandwidth; the server throttler uses
// it as the new ceiling.
type Mbps struct {
	Value float64
}

func (Mbps) serverTag() ServerTag { return TagMbps }

// Ping is a liveness probe; the server replies with a Pong carrying the
// same ID.
type Ping struct {
	ID int32
}

func (Ping) serverTag() ServerTag { return TagPing }

// Dimensions tells the server the client's desired capture geometry and
// codec; the server rebuilds the Capturer to match.
type Dimensions struct {
	Width, Height int32
	DPI           int32
	Codec         uint8
}

func (Dimensions) serverTag() ServerTag { return TagDimensions }

// NackVideo requests retransmission of one missing video fragment.
type NackVideo struct {
	ID    int32
	Index uint16
}

func (NackVideo) serverTag() ServerTag { return TagNackVideo }

// NackAudio requests retransmission of one missing audio fragment.
type NackAudio struct {
	ID    int32
	Index uint16
}

func (NackAudio) serverTag() ServerTag { return TagNackAudio }

// KeyboardState reconciles caps-lock/num-lock and the full pressed-key set,
// sent on reconnect or focus regain so the server can toggle any divergent
// lock keys.
type KeyboardState struct {
	CapsLock bool
	NumLock  bool
	Keys     []uint32
}

func (KeyboardState) serverTag() ServerTag { return TagKeyboardState }

// ClipboardToServer carries a clipboard content update from client to
// server.
type ClipboardToServer struct {
	Content clipboard.Content
}

func (ClipboardToServer) serverTag() ServerTag { return TagClipboardToServer }

// IFrameRequest asks the encoder to force a keyframe on its next output.
type IFrameRequest struct {
	ReinitEncoder bool
}

func (IFrameRequest) serverTag() ServerTag { return TagIFrameRequest }

// InteractionModeMsg transitions the sender among Spectate, Control and
// ExclusiveControl.
type InteractionModeMsg struct {
	Mode InteractionMode
}

func (InteractionModeMsg) serverTag() ServerTag { return TagInteractionMode }

// QuitToServer tells the server the client is disconnecting gracefully.
type QuitToServer struct{}

func (QuitToServer) serverTag() ServerTag { return TagQuitToServer }

// DiscoveryRequest is the admission handshake a client sends over TCP
// before any slot is assigned.
type DiscoveryRequest struct {
	Username  string
	UserEmail string
	TimeData  TimeData
}

func (DiscoveryRequest) serverTag() ServerTag { return TagDiscoveryRequest }

// TimeData carries the client's timezone so the server can report
// consistent wall-clock timestamps (e.g. in logs shared across peers).
type TimeData struct {
	UTCOffsetSeconds int32
	DSTActive        bool
	TZName           string
}

// ClientMessage is implemented by every client-bound message type.
type ClientMessage interface {
	clientTag() ClientTag
}

// Pong answers a Ping, echoing its ID.
type Pong struct {
	ID int32
}

func (Pong) clientTag() ClientTag { return TagPong }

// AudioFrequency tells the client the sample rate of the audio stream.
type AudioFrequency struct {
	Hz int32
}

func (AudioFrequency) clientTag() ClientTag { return TagAudioFrequency }

// ClipboardToClient carries a clipboard content update from server to
// client.
type ClipboardToClient struct {
	Content clipboard.Content
}

func (ClipboardToClient) clientTag() ClientTag { return TagClipboardToClient }

// WindowTitle propagates the remote application's window title for the
// client's window chrome.
type WindowTitle struct {
	Text string
}

func (WindowTitle) clientTag() ClientTag { return TagWindowTitle }

// DiscoveryReply answers a DiscoveryRequest, assigning the client its slot
// and the ports to reconnect on.
type DiscoveryReply struct {
	ClientID        int32
	UDPPort         uint16
	TCPPort         uint16
	AudioSampleRate int32
	ConnectionID    int32
	Username        string
	Filename        string
}

func (DiscoveryReply) clientTag() ClientTag { return TagDiscoveryReply }

// Init is the first message on a fresh media connection, telling the client
// which logical session it has joined.
type Init struct {
	Filename     string
	Username     string
	ConnectionID int32
}

func (Init) clientTag() ClientTag { return TagInit }

// QuitToClient tells the client the server is tearing the session down.
type QuitToClient struct{}

func (QuitToClient) clientTag() ClientTag { return TagQuitToClient }
