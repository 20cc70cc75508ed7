package mediaserver

import (
	"github.com/skylinewire/streamd/internal/control"
)

// loggingInputHandler records injected input without touching the host OS.
// Real per-OS injection (SendInput on Windows, XTest on X11, CGEvent on
// macOS) is out of scope here; this stands in for it so the dispatch path
// above it — decoding a control message and routing it to the right
// InputHandler method — is fully exercised and testable.
type loggingInputHandler struct {
	events []InputEvent
}

func newLoggingInputHandler() *loggingInputHandler {
	return &loggingInputHandler{}
}

func (h *loggingInputHandler) MoveMouse(x, y int32, relative bool) error {
	h.events = append(h.events, InputEvent{Kind: InputMouseMotion, X: x, Y: y, Relative: relative})
	return nil
}

func (h *loggingInputHandler) SetMouseButton(button uint8, pressed bool) error {
	h.events = append(h.events, InputEvent{Kind: InputMouseButton, Button: button, Pressed: pressed})
	return nil
}

func (h *loggingInputHandler) ScrollMouse(dx, dy int32) error {
	h.events = append(h.events, InputEvent{Kind: InputMouseWheel, DX: dx, DY: dy})
	return nil
}

func (h *loggingInputHandler) SetKey(code, mod uint32, pressed bool) error {
	h.events = append(h.events, InputEvent{Kind: InputKeyboard, Code: code, Mod: mod, Pressed: pressed})
	return nil
}

func (h *loggingInputHandler) SyncKeyboardState(capsLock, numLock bool, keys []uint32) error {
	h.events = append(h.events, InputEvent{Kind: InputKeyboardState, CapsLock: capsLock, NumLock: numLock, Keys: keys})
	return nil
}

func (h *loggingInputHandler) ReleaseAll() error {
	h.events = append(h.events, InputEvent{Kind: InputReleaseAll})
	return nil
}

// DispatchInput routes a decoded server-bound control message to the
// matching InputHandler call. Messages that aren't input at all (Ping,
// Mbps, clipboard, ...) are the caller's responsibility; DispatchInput
// reports false for anything it doesn't recognize as input.
func DispatchInput(h InputHandler, msg control.ServerMessage) (handled bool, err error) {
	switch m := msg.(type) {
	case control.MouseMotion:
		return true, h.MoveMouse(m.X, m.Y, m.Relative)
	case control.MouseButton:
		return true, h.SetMouseButton(m.Button, m.Pressed)
	case control.MouseWheel:
		return true, h.ScrollMouse(m.DX, m.DY)
	case control.Keyboard:
		return true, h.SetKey(m.Code, m.Mod, m.Pressed)
	case control.KeyboardState:
		return true, h.SyncKeyboardState(m.CapsLock, m.NumLock, m.Keys)
	case control.ReleaseAllInput:
		return true, h.ReleaseAll()
	default:
		return false, nil
	}
}
