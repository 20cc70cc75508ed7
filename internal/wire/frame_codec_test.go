package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTripNoCursor(t *testing.T) {
	f := &Frame{
		Width:     1920,
		Height:    1080,
		Codec:     CodecH264,
		IsIFrame:  true,
		VideoData: []byte{1, 2, 3, 4, 5},
		PeerCursors: []PeerCursor{
			{ClientID: 1, X: 10, Y: 20, Color: 0xff0000},
			{ClientID: 2, X: -5, Y: 300, Color: 0x00ff00},
		},
	}

	buf, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := UnmarshalFrame(buf)
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}

	if got.Width != f.Width || got.Height != f.Height || got.Codec != f.Codec || got.IsIFrame != f.IsIFrame {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if !bytes.Equal(got.VideoData, f.VideoData) {
		t.Fatalf("video data mismatch: got %v want %v", got.VideoData, f.VideoData)
	}
	if len(got.PeerCursors) != len(f.PeerCursors) {
		t.Fatalf("peer cursor count = %d, want %d", len(got.PeerCursors), len(f.PeerCursors))
	}
	for i, pc := range f.PeerCursors {
		if got.PeerCursors[i] != pc {
			t.Fatalf("peer cursor %d = %+v, want %+v", i, got.PeerCursors[i], pc)
		}
	}
}

func TestFrameRoundTripWithBitmapCursor(t *testing.T) {
	bitmap := make([]byte, 8*8*4)
	for i := range bitmap {
		bitmap[i] = byte(i)
	}
	f := &Frame{
		Width:     800,
		Height:    600,
		Codec:     CodecVP9,
		HasCursor: true,
		Cursor: &CursorImage{
			Visible:  true,
			Width:    8,
			Height:   8,
			HotspotX: 1,
			HotspotY: 2,
			Bitmap:   bitmap,
		},
		VideoData: []byte("encoded-frame-bytes"),
	}

	buf, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalFrame(buf)
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}
	if got.Cursor == nil || !got.Cursor.IsBitmap() {
		t.Fatal("expected bitmap cursor to survive round trip")
	}
	if !bytes.Equal(got.Cursor.Bitmap, bitmap) {
		t.Fatal("cursor bitmap mismatch")
	}
	if got.Cursor.HotspotX != 1 || got.Cursor.HotspotY != 2 {
		t.Fatalf("hotspot mismatch: got (%d,%d)", got.Cursor.HotspotX, got.Cursor.HotspotY)
	}
}

func TestFrameRoundTripWithSystemCursor(t *testing.T) {
	f := &Frame{
		Width:     100,
		Height:    100,
		HasCursor: true,
		Cursor: &CursorImage{
			Visible: true,
			System:  CursorHand,
		},
		VideoData: []byte{0xaa},
	}
	buf, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalFrame(buf)
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}
	if got.Cursor.IsBitmap() {
		t.Fatal("expected system cursor, not bitmap")
	}
	if got.Cursor.System != CursorHand {
		t.Fatalf("System = %v, want CursorHand", got.Cursor.System)
	}
}

func TestUnmarshalFrameRejectsTruncatedHead(t *testing.T) {
	if _, err := UnmarshalFrame([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated head")
	}
}

func TestMarshalRejectsOversizeEnvelope(t *testing.T) {
	f := &Frame{
		Width:     1,
		Height:    1,
		VideoData: make([]byte, LargestFrameSize+1),
	}
	if _, err := f.Marshal(); err == nil {
		t.Fatal("expected error for oversize envelope")
	}
}
