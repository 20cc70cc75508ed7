package mediaserver

// InputKind distinguishes the action recorded in an InputEvent.
type InputKind int

const (
	InputMouseMotion InputKind = iota
	InputMouseButton
	InputMouseWheel
	InputKeyboard
	InputKeyboardState
	InputReleaseAll
)

// InputEvent records one input action injected into the host desktop
// session, using the same field shapes as the control-message types it is
// built from rather than re-encoding positions, buttons, and keycodes as
// strings.
type InputEvent struct {
	Kind InputKind

	X, Y     int32
	Relative bool

	Button  uint8
	Pressed bool

	DX, DY int32

	Code uint32
	Mod  uint32

	CapsLock bool
	NumLock  bool
	Keys     []uint32
}

// InputHandler injects input into the host desktop. Real per-OS injection
// (SendInput on Windows, XTest on X11, CGEvent on macOS) is out of scope
// here; see loggingInputHandler in input_dispatch.go for the stand-in this
// codebase exercises.
type InputHandler interface {
	// MoveMouse moves the cursor to (x, y), absolute or relative to the
	// last reported position.
	MoveMouse(x, y int32, relative bool) error

	// SetMouseButton presses or releases a mouse button.
	SetMouseButton(button uint8, pressed bool) error

	// ScrollMouse applies a wheel delta.
	ScrollMouse(dx, dy int32) error

	// SetKey presses or releases a key, with modifier flags.
	SetKey(code, mod uint32, pressed bool) error

	// SyncKeyboardState reconciles caps-lock/num-lock and the full set of
	// currently pressed keys, sent on reconnect or focus regain.
	SyncKeyboardState(capsLock, numLock bool, keys []uint32) error

	// ReleaseAll releases every currently pressed key and mouse button.
	ReleaseAll() error
}
