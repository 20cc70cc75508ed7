package mediaclient

import "github.com/skylinewire/streamd/internal/wire"

// Renderer displays decoded frames and cursor state. A real implementation
// would own a platform window/surface; rendering is out of scope here, so
// the only implementation retains the latest frame for inspection rather
// than drawing it.
type Renderer interface {
	RenderVideo(frame DecodedFrame)
	RenderCursor(cursor *wire.CursorImage)
	RenderPeerCursors(cursors []wire.PeerCursor)
}

// lastFrameRenderer keeps the most recently rendered state so the receive
// pipeline above it is exercised and testable without a real display.
type lastFrameRenderer struct {
	Frame       DecodedFrame
	Cursor      *wire.CursorImage
	PeerCursors []wire.PeerCursor
}

func newLastFrameRenderer() *lastFrameRenderer { return &lastFrameRenderer{} }

func (r *lastFrameRenderer) RenderVideo(frame DecodedFrame) { r.Frame = frame }

func (r *lastFrameRenderer) RenderCursor(cursor *wire.CursorImage) { r.Cursor = cursor }

func (r *lastFrameRenderer) RenderPeerCursors(cursors []wire.PeerCursor) { r.PeerCursors = cursors }
