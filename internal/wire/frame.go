package wire

// Codec identifies a video codec in use on a Frame.
type Codec uint8

const (
	CodecH264 Codec = iota
	CodecVP8
	CodecVP9
	CodecH265
)

// SystemCursor enumerates the stock cursor shapes a Frame can reference
// instead of shipping a bitmap.
type SystemCursor uint8

const (
	CursorArrow SystemCursor = iota
	CursorCrosshair
	CursorHand
	CursorIBeam
	CursorNone
)

// CursorImage is either a named system cursor or an explicit bitmap. Bitmap
// is nil when the cursor is a system cursor.
type CursorImage struct {
	Visible bool

	System SystemCursor // meaningful when Bitmap == nil

	Width, Height int
	HotspotX      int
	HotspotY      int
	Bitmap        []byte // width*height*4 bytes, RGBA
}

// IsBitmap reports whether this CursorImage carries a pixel bitmap rather
// than referencing a system cursor.
func (c *CursorImage) IsBitmap() bool {
	return c != nil && c.Bitmap != nil
}

// PeerCursor is a remote controller's cursor position, broadcast to other
// spectating clients.
type PeerCursor struct {
	ClientID int
	X, Y     int32
	Color    uint32
}

// Frame is the video payload envelope assembled by the server media
// pipeline and split into fragments before being handed to the transport.
// Its total encoded size, including the cursor image and peer-cursor tail,
// must not exceed LargestFrameSize.
type Frame struct {
	Width, Height int
	Codec         Codec
	IsIFrame      bool
	HasCursor     bool
	Cursor        *CursorImage
	PeerCursors   []PeerCursor
	VideoData     []byte
}

// AudioFrame is the audio payload envelope: AAC-encoded, 44.1 kHz stereo.
type AudioFrame struct {
	EncodedData []byte
}
