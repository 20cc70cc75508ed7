package control

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/skylinewire/streamd/internal/clipboard"
	"github.com/skylinewire/streamd/internal/logging"
)

var log = logging.L("control")

// fixedTailSize is the 40-byte body budget that, together with the one-byte
// tag, keeps a small UDP message inside a single fragment. The encoders
// below write each body at its natural size without padding to this budget,
// and nothing in this package checks a body against it.
const fixedTailSize = 40

// EncodeServer serializes a ServerMessage into its tag byte followed by a
// fixed-shape body.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	tag := msg.serverTag()
	body, err := encodeServerBody(msg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(tag))
	out = append(out, body...)
	return out, nil
}

// DecodeServer parses a tag byte and body into a ServerMessage, validating
// that the body length matches what the tag implies.
func DecodeServer(buf []byte) (ServerMessage, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("control: empty server message")
	}
	tag := ServerTag(buf[0])
	body := buf[1:]

	switch tag {
	case TagKeyboard:
		if len(body) != 9 {
			return nil, sizeErr(tag, len(body), 9)
		}
		return Keyboard{
			Code:    binary.BigEndian.Uint32(body[0:4]),
			Mod:     binary.BigEndian.Uint32(body[4:8]),
			Pressed: body[8] != 0,
		}, nil
	case TagMouseButton:
		if len(body) != 2 {
			return nil, sizeErr(tag, len(body), 2)
		}
		return MouseButton{Button: body[0], Pressed: body[1] != 0}, nil
	case TagMouseWheel:
		if len(body) != 8 {
			return nil, sizeErr(tag, len(body), 8)
		}
		return MouseWheel{
			DX: int32(binary.BigEndian.Uint32(body[0:4])),
			DY: int32(binary.BigEndian.Uint32(body[4:8])),
		}, nil
	case TagMouseMotion:
		if len(body) != 9 {
			return nil, sizeErr(tag, len(body), 9)
		}
		return MouseMotion{
			X:        int32(binary.BigEndian.Uint32(body[0:4])),
			Y:        int32(binary.BigEndian.Uint32(body[4:8])),
			Relative: body[8] != 0,
		}, nil
	case TagReleaseAllInput:
		if len(body) != 0 {
			return nil, sizeErr(tag, len(body), 0)
		}
		return ReleaseAllInput{}, nil
	case TagMbps:
		if len(body) != 8 {
			return nil, sizeErr(tag, len(body), 8)
		}
		return Mbps{Value: float64FromBits(binary.BigEndian.Uint64(body))}, nil
	case TagPing:
		if len(body) != 4 {
			return nil, sizeErr(tag, len(body), 4)
		}
		return Ping{ID: int32(binary.BigEndian.Uint32(body))}, nil
	case TagDimensions:
		if len(body) != 13 {
			return nil, sizeErr(tag, len(body), 13)
		}
		return Dimensions{
			Width:  int32(binary.BigEndian.Uint32(body[0:4])),
			Height: int32(binary.BigEndian.Uint32(body[4:8])),
			DPI:    int32(binary.BigEndian.Uint32(body[8:12])),
			Codec:  body[12],
		}, nil
	case TagNackVideo:
		if len(body) != 6 {
			return nil, sizeErr(tag, len(body), 6)
		}
		return NackVideo{
			ID:    int32(binary.BigEndian.Uint32(body[0:4])),
			Index: binary.BigEndian.Uint16(body[4:6]),
		}, nil
	case TagNackAudio:
		if len(body) != 6 {
			return nil, sizeErr(tag, len(body), 6)
		}
		return NackAudio{
			ID:    int32(binary.BigEndian.Uint32(body[0:4])),
			Index: binary.BigEndian.Uint16(body[4:6]),
		}, nil
	case TagKeyboardState:
		if len(body) < 2 {
			return nil, fmt.Errorf("control: KeyboardState body too short: %d bytes", len(body))
		}
		numKeys := int(binary.BigEndian.Uint16(body[0:2]))
		want := 2 + 2 + numKeys*4
		if len(body) != want {
			return nil, sizeErr(tag, len(body), want)
		}
		keys := make([]uint32, numKeys)
		for i := 0; i < numKeys; i++ {
			off := 4 + i*4
			keys[i] = binary.BigEndian.Uint32(body[off : off+4])
		}
		return KeyboardState{
			CapsLock: body[2] != 0,
			NumLock:  body[3] != 0,
			Keys:     keys,
		}, nil
	case TagClipboardToServer:
		content, err := decodeClipboardContent(body)
		if err != nil {
			return nil, err
		}
		return ClipboardToServer{Content: content}, nil
	case TagIFrameRequest:
		if len(body) != 1 {
			return nil, sizeErr(tag, len(body), 1)
		}
		return IFrameRequest{ReinitEncoder: body[0] != 0}, nil
	case TagInteractionMode:
		if len(body) != 1 {
			return nil, sizeErr(tag, len(body), 1)
		}
		return InteractionModeMsg{Mode: InteractionMode(body[0])}, nil
	case TagQuitToServer:
		if len(body) != 0 {
			return nil, sizeErr(tag, len(body), 0)
		}
		return QuitToServer{}, nil
	case TagDiscoveryRequest:
		return decodeDiscoveryRequest(body)
	default:
		return nil, fmt.Errorf("control: unknown server tag %d", tag)
	}
}

func encodeServerBody(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case Keyboard:
		buf := binary.BigEndian.AppendUint32(nil, m.Code)
		buf = binary.BigEndian.AppendUint32(buf, m.Mod)
		return append(buf, boolByte(m.Pressed)), nil
	case MouseButton:
		return []byte{m.Button, boolByte(m.Pressed)}, nil
	case MouseWheel:
		buf := binary.BigEndian.AppendUint32(nil, uint32(m.DX))
		return binary.BigEndian.AppendUint32(buf, uint32(m.DY)), nil
	case MouseMotion:
		buf := binary.BigEndian.AppendUint32(nil, uint32(m.X))
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Y))
		return append(buf, boolByte(m.Relative)), nil
	case ReleaseAllInput:
		return nil, nil
	case Mbps:
		return binary.BigEndian.AppendUint64(nil, bitsFromFloat64(m.Value)), nil
	case Ping:
		return binary.BigEndian.AppendUint32(nil, uint32(m.ID)), nil
	case Dimensions:
		buf := binary.BigEndian.AppendUint32(nil, uint32(m.Width))
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Height))
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.DPI))
		return append(buf, m.Codec), nil
	case NackVideo:
		buf := binary.BigEndian.AppendUint32(nil, uint32(m.ID))
		return binary.BigEndian.AppendUint16(buf, m.Index), nil
	case NackAudio:
		buf := binary.BigEndian.AppendUint32(nil, uint32(m.ID))
		return binary.BigEndian.AppendUint16(buf, m.Index), nil
	case KeyboardState:
		buf := binary.BigEndian.AppendUint16(nil, uint16(len(m.Keys)))
		buf = append(buf, boolByte(m.CapsLock), boolByte(m.NumLock))
		for _, k := range m.Keys {
			buf = binary.BigEndian.AppendUint32(buf, k)
		}
		return buf, nil
	case ClipboardToServer:
		return encodeClipboardContent(m.Content), nil
	case IFrameRequest:
		return []byte{boolByte(m.ReinitEncoder)}, nil
	case InteractionModeMsg:
		return []byte{byte(m.Mode)}, nil
	case QuitToServer:
		return nil, nil
	case DiscoveryRequest:
		return encodeDiscoveryRequest(m), nil
	default:
		return nil, fmt.Errorf("control: unknown server message type %T", msg)
	}
}

// EncodeClient serializes a ClientMessage into its tag byte followed by a
// fixed-shape body.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	tag := msg.clientTag()
	body, err := encodeClientBody(msg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(tag))
	out = append(out, body...)
	return out, nil
}

// DecodeClient parses a tag byte and body into a ClientMessage.
func DecodeClient(buf []byte) (ClientMessage, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("control: empty client message")
	}
	tag := ClientTag(buf[0])
	body := buf[1:]

	switch tag {
	case TagPong:
		if len(body) != 4 {
			return nil, sizeErrClient(tag, len(body), 4)
		}
		return Pong{ID: int32(binary.BigEndian.Uint32(body))}, nil
	case TagAudioFrequency:
		if len(body) != 4 {
			return nil, sizeErrClient(tag, len(body), 4)
		}
		return AudioFrequency{Hz: int32(binary.BigEndian.Uint32(body))}, nil
	case TagClipboardToClient:
		content, err := decodeClipboardContent(body)
		if err != nil {
			return nil, err
		}
		return ClipboardToClient{Content: content}, nil
	case TagWindowTitle:
		return WindowTitle{Text: string(body)}, nil
	case TagDiscoveryReply:
		return decodeDiscoveryReply(body)
	case TagInit:
		return decodeInit(body)
	case TagQuitToClient:
		if len(body) != 0 {
			return nil, sizeErrClient(tag, len(body), 0)
		}
		return QuitToClient{}, nil
	default:
		return nil, fmt.Errorf("control: unknown client tag %d", tag)
	}
}

func encodeClientBody(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case Pong:
		return binary.BigEndian.AppendUint32(nil, uint32(m.ID)), nil
	case AudioFrequency:
		return binary.BigEndian.AppendUint32(nil, uint32(m.Hz)), nil
	case ClipboardToClient:
		return encodeClipboardContent(m.Content), nil
	case WindowTitle:
		return []byte(m.Text), nil
	case DiscoveryReply:
		return encodeDiscoveryReply(m), nil
	case Init:
		return encodeInit(m), nil
	case QuitToClient:
		return nil, nil
	default:
		return nil, fmt.Errorf("control: unknown client message type %T", msg)
	}
}

func sizeErr(tag ServerTag, got, want int) error {
	return fmt.Errorf("control: server tag %d body size %d, want %d", tag, got, want)
}

func sizeErrClient(tag ClientTag, got, want int) error {
	return fmt.Errorf("control: client tag %d body size %d, want %d", tag, got, want)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func bitsFromFloat64(f float64) uint64 {
	return math.Float64bits(f)
}

func float64FromBits(b uint64) float64 {
	return math.Float64frombits(b)
}

// --- clipboard tail codec ---

func encodeClipboardContent(c clipboard.Content) []byte {
	buf := []byte{byte(c.Type)}
	switch c.Type {
	case clipboard.ContentTypeText:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Text)))
		buf = append(buf, []byte(c.Text)...)
	case clipboard.ContentTypeRTF:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.RTF)))
		buf = append(buf, []byte(c.RTF)...)
	case clipboard.ContentTypeImage:
		buf = append(buf, byte(len(c.ImageFormat)))
		buf = append(buf, []byte(c.ImageFormat)...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Image)))
		buf = append(buf, c.Image...)
	}
	return buf
}

func decodeClipboardContent(body []byte) (clipboard.Content, error) {
	if len(body) < 1 {
		return clipboard.Content{}, fmt.Errorf("control: empty clipboard payload")
	}
	typ := clipboard.ContentType(body[0])
	rest := body[1:]

	switch typ {
	case clipboard.ContentTypeNone:
		return clipboard.Content{}, nil
	case clipboard.ContentTypeText:
		textBytes, rest, err := readUint32Prefixed(rest)
		if err != nil {
			return clipboard.Content{}, err
		}
		return clipboard.Content{Type: typ, Text: string(textBytes)}, consumeRemainder(rest)
	case clipboard.ContentTypeRTF:
		rtfBytes, rest, err := readUint32Prefixed(rest)
		if err != nil {
			return clipboard.Content{}, err
		}
		return clipboard.Content{Type: typ, RTF: string(rtfBytes)}, consumeRemainder(rest)
	case clipboard.ContentTypeImage:
		if len(rest) < 1 {
			return clipboard.Content{}, fmt.Errorf("control: truncated image format length")
		}
		formatLen := int(rest[0])
		rest = rest[1:]
		if len(rest) < formatLen {
			return clipboard.Content{}, fmt.Errorf("control: truncated image format")
		}
		format := string(rest[:formatLen])
		rest = rest[formatLen:]
		img, rest, err := readUint32Prefixed(rest)
		if err != nil {
			return clipboard.Content{}, err
		}
		return clipboard.Content{Type: typ, Image: img, ImageFormat: format}, consumeRemainder(rest)
	default:
		return clipboard.Content{}, fmt.Errorf("control: unknown clipboard content type %d", typ)
	}
}

func readUint32Prefixed(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("control: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(buf[0:4]))
	buf = buf[4:]
	if len(buf) < n {
		return nil, nil, fmt.Errorf("control: truncated payload: want %d have %d", n, len(buf))
	}
	return buf[:n], buf[n:], nil
}

func consumeRemainder(rest []byte) error {
	if len(rest) != 0 {
		return fmt.Errorf("control: %d trailing bytes after clipboard payload", len(rest))
	}
	return nil
}

// --- discovery / init tail codec ---

func encodeDiscoveryRequest(m DiscoveryRequest) []byte {
	buf := appendString(nil, m.Username)
	buf = appendString(buf, m.UserEmail)
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.TimeData.UTCOffsetSeconds))
	buf = append(buf, boolByte(m.TimeData.DSTActive))
	buf = appendString(buf, m.TimeData.TZName)
	return buf
}

func decodeDiscoveryRequest(body []byte) (DiscoveryRequest, error) {
	username, rest, err := readString(body)
	if err != nil {
		return DiscoveryRequest{}, err
	}
	email, rest, err := readString(rest)
	if err != nil {
		return DiscoveryRequest{}, err
	}
	if len(rest) < 5 {
		return DiscoveryRequest{}, fmt.Errorf("control: truncated DiscoveryRequest time data")
	}
	offset := int32(binary.BigEndian.Uint32(rest[0:4]))
	dst := rest[4] != 0
	rest = rest[5:]
	tz, rest, err := readString(rest)
	if err != nil {
		return DiscoveryRequest{}, err
	}
	if len(rest) != 0 {
		return DiscoveryRequest{}, fmt.Errorf("control: trailing bytes after DiscoveryRequest")
	}
	return DiscoveryRequest{
		Username:  string(username),
		UserEmail: string(email),
		TimeData: TimeData{
			UTCOffsetSeconds: offset,
			DSTActive:        dst,
			TZName:           string(tz),
		},
	}, nil
}

func encodeDiscoveryReply(m DiscoveryReply) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(m.ClientID))
	buf = binary.BigEndian.AppendUint16(buf, m.UDPPort)
	buf = binary.BigEndian.AppendUint16(buf, m.TCPPort)
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.AudioSampleRate))
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.ConnectionID))
	buf = appendString(buf, m.Username)
	buf = appendString(buf, m.Filename)
	return buf
}

func decodeDiscoveryReply(body []byte) (DiscoveryReply, error) {
	if len(body) < 16 {
		return DiscoveryReply{}, fmt.Errorf("control: truncated DiscoveryReply head")
	}
	d := DiscoveryReply{
		ClientID:        int32(binary.BigEndian.Uint32(body[0:4])),
		UDPPort:         binary.BigEndian.Uint16(body[4:6]),
		TCPPort:         binary.BigEndian.Uint16(body[6:8]),
		AudioSampleRate: int32(binary.BigEndian.Uint32(body[8:12])),
		ConnectionID:    int32(binary.BigEndian.Uint32(body[12:16])),
	}
	rest := body[16:]
	username, rest, err := readString(rest)
	if err != nil {
		return DiscoveryReply{}, err
	}
	filename, rest, err := readString(rest)
	if err != nil {
		return DiscoveryReply{}, err
	}
	if len(rest) != 0 {
		return DiscoveryReply{}, fmt.Errorf("control: trailing bytes after DiscoveryReply")
	}
	d.Username = string(username)
	d.Filename = string(filename)
	return d, nil
}

func encodeInit(m Init) []byte {
	buf := appendString(nil, m.Filename)
	buf = appendString(buf, m.Username)
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.ConnectionID))
	return buf
}

func decodeInit(body []byte) (Init, error) {
	filename, rest, err := readString(body)
	if err != nil {
		return Init{}, err
	}
	username, rest, err := readString(rest)
	if err != nil {
		return Init{}, err
	}
	if len(rest) != 4 {
		return Init{}, fmt.Errorf("control: truncated Init connection id")
	}
	return Init{
		Filename:     string(filename),
		Username:     string(username),
		ConnectionID: int32(binary.BigEndian.Uint32(rest)),
	}, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, []byte(s)...)
}

func readString(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 2 {
		return nil, nil, fmt.Errorf("control: truncated string length prefix")
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return nil, nil, fmt.Errorf("control: truncated string: want %d have %d", n, len(buf))
	}
	return buf[:n], buf[n:], nil
}
