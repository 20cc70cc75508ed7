package wire

import (
	"encoding/binary"
	"fmt"
)

// Marshal serializes a Frame into the canonical envelope layout: a fixed
// head (dimensions, codec, flags, lengths) followed by the variable tail
// (cursor image, encoded video bytes, peer-cursor messages).
func (f *Frame) Marshal() ([]byte, error) {
	var cursorBuf []byte
	if f.HasCursor && f.Cursor != nil {
		cursorBuf = marshalCursor(f.Cursor)
	}

	peerBuf := make([]byte, 0, len(f.PeerCursors)*peerCursorSize)
	for _, pc := range f.PeerCursors {
		peerBuf = appendPeerCursor(peerBuf, pc)
	}

	total := frameHeadSize + len(cursorBuf) + len(f.VideoData) + len(peerBuf)
	if total > LargestFrameSize {
		return nil, fmt.Errorf("wire: frame envelope %d bytes exceeds LargestFrameSize", total)
	}

	buf := make([]byte, 0, total)
	buf = binary.BigEndian.AppendUint32(buf, uint32(f.Width))
	buf = binary.BigEndian.AppendUint32(buf, uint32(f.Height))
	buf = append(buf, byte(f.Codec))
	buf = append(buf, boolByte(f.IsIFrame))
	buf = append(buf, boolByte(f.HasCursor))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.PeerCursors)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.VideoData)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(cursorBuf)))
	buf = append(buf, cursorBuf...)
	buf = append(buf, f.VideoData...)
	buf = append(buf, peerBuf...)
	return buf, nil
}

// frameHeadSize is width(4) + height(4) + codec(1) + is_iframe(1) +
// has_cursor(1) + num_peer_msgs(2) + videodata_length(4) + cursor_length(4).
const frameHeadSize = 4 + 4 + 1 + 1 + 1 + 2 + 4 + 4

// UnmarshalFrame decodes a Frame envelope produced by Marshal.
func UnmarshalFrame(buf []byte) (*Frame, error) {
	if len(buf) < frameHeadSize {
		return nil, fmt.Errorf("wire: frame envelope too short: %d bytes", len(buf))
	}
	f := &Frame{}
	f.Width = int(binary.BigEndian.Uint32(buf[0:4]))
	f.Height = int(binary.BigEndian.Uint32(buf[4:8]))
	f.Codec = Codec(buf[8])
	f.IsIFrame = buf[9] != 0
	f.HasCursor = buf[10] != 0
	numPeer := int(binary.BigEndian.Uint16(buf[11:13]))
	videoLen := int(binary.BigEndian.Uint32(buf[13:17]))
	cursorLen := int(binary.BigEndian.Uint32(buf[17:21]))

	rest := buf[frameHeadSize:]
	if len(rest) < cursorLen {
		return nil, fmt.Errorf("wire: frame envelope truncated cursor tail")
	}
	if cursorLen > 0 {
		cursor, err := unmarshalCursor(rest[:cursorLen])
		if err != nil {
			return nil, err
		}
		f.Cursor = cursor
	}
	rest = rest[cursorLen:]

	if len(rest) < videoLen {
		return nil, fmt.Errorf("wire: frame envelope truncated video data")
	}
	f.VideoData = append([]byte(nil), rest[:videoLen]...)
	rest = rest[videoLen:]

	peerCursors := make([]PeerCursor, 0, numPeer)
	for i := 0; i < numPeer; i++ {
		pc, tail, err := parsePeerCursor(rest)
		if err != nil {
			return nil, err
		}
		peerCursors = append(peerCursors, pc)
		rest = tail
	}
	f.PeerCursors = peerCursors

	return f, nil
}

// cursorHeadSize is visible(1) + is_bitmap(1) + system(1) + width(2) +
// height(2) + hotspot_x(2) + hotspot_y(2).
const cursorHeadSize = 1 + 1 + 1 + 2 + 2 + 2 + 2

func marshalCursor(c *CursorImage) []byte {
	buf := make([]byte, 0, cursorHeadSize+len(c.Bitmap))
	buf = append(buf, boolByte(c.Visible))
	buf = append(buf, boolByte(c.IsBitmap()))
	buf = append(buf, byte(c.System))
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.Width))
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.Height))
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.HotspotX))
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.HotspotY))
	buf = append(buf, c.Bitmap...)
	return buf
}

func unmarshalCursor(buf []byte) (*CursorImage, error) {
	if len(buf) < cursorHeadSize {
		return nil, fmt.Errorf("wire: cursor image too short: %d bytes", len(buf))
	}
	c := &CursorImage{
		Visible:  buf[0] != 0,
		System:   SystemCursor(buf[2]),
		Width:    int(binary.BigEndian.Uint16(buf[3:5])),
		Height:   int(binary.BigEndian.Uint16(buf[5:7])),
		HotspotX: int(binary.BigEndian.Uint16(buf[7:9])),
		HotspotY: int(binary.BigEndian.Uint16(buf[9:11])),
	}
	isBitmap := buf[1] != 0
	if c.Width > MaxCursorWidth || c.Height > MaxCursorHeight {
		return nil, fmt.Errorf("wire: cursor image %dx%d exceeds bounds", c.Width, c.Height)
	}
	if isBitmap {
		want := c.Width * c.Height * 4
		if len(buf[cursorHeadSize:]) < want {
			return nil, fmt.Errorf("wire: cursor bitmap truncated")
		}
		c.Bitmap = append([]byte(nil), buf[cursorHeadSize:cursorHeadSize+want]...)
	}
	return c, nil
}

// peerCursorSize is client_id(4) + x(4) + y(4) + color(4).
const peerCursorSize = 4 + 4 + 4 + 4

func appendPeerCursor(buf []byte, pc PeerCursor) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(pc.ClientID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(pc.X))
	buf = binary.BigEndian.AppendUint32(buf, uint32(pc.Y))
	buf = binary.BigEndian.AppendUint32(buf, pc.Color)
	return buf
}

func parsePeerCursor(buf []byte) (PeerCursor, []byte, error) {
	if len(buf) < peerCursorSize {
		return PeerCursor{}, nil, fmt.Errorf("wire: peer-cursor message truncated")
	}
	pc := PeerCursor{
		ClientID: int(binary.BigEndian.Uint32(buf[0:4])),
		X:        int32(binary.BigEndian.Uint32(buf[4:8])),
		Y:        int32(binary.BigEndian.Uint32(buf[8:12])),
		Color:    binary.BigEndian.Uint32(buf[12:16]),
	}
	return pc, buf[peerCursorSize:], nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
