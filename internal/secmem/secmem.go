// Package secmem holds sensitive in-memory values — pre-shared keys,
// tokens — with best-effort zeroing and redacted formatting so they never
// leak into logs, error messages, or JSON payloads by accident.
package secmem

import (
	"sync"
	"sync/atomic"

	"github.com/skylinewire/streamd/internal/logging"
)

var log = logging.L("secmem")

const redacted = "[REDACTED]"

// SecureString holds sensitive text with best-effort memory zeroing. Go's
// GC may copy the backing array, so this is defense-in-depth, not a
// guarantee. Call Zero() in shutdown paths to overwrite the value in place.
type SecureString struct {
	mu         sync.Mutex
	data       []byte
	warnedOnce atomic.Bool
}

// NewSecureString creates a SecureString from the given string.
func NewSecureString(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return &SecureString{data: b}
}

// Reveal returns the plaintext value, or "" if the value has been zeroed.
// The first Reveal after Zero logs a warning; it does not panic, since
// callers on a shutdown path may legitimately race a final Reveal against
// Zero.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		if !s.warnedOnce.Swap(true) {
			log.Warn("Reveal called after Zero")
		}
		return ""
	}
	return string(s.data)
}

// IsZeroed reports whether Zero has already been called.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data == nil
}

// String returns a redacted representation so fmt verbs never print the
// underlying value.
func (s *SecureString) String() string {
	return redacted
}

// GoString returns a redacted representation to prevent accidental logging
// via fmt.Printf("%#v", token).
func (s *SecureString) GoString() string {
	return redacted
}

// MarshalJSON always emits the redacted placeholder.
func (s *SecureString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// UnmarshalJSON refuses to populate a SecureString from JSON; secrets must
// be set via NewSecureString, never deserialized from an untrusted payload.
func (s *SecureString) UnmarshalJSON([]byte) error {
	return errUnmarshalNotSupported
}

// MarshalText always emits the redacted placeholder.
func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Zero overwrites the backing byte slice with zeros.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}

var errUnmarshalNotSupported = errNotSupported("secmem: SecureString cannot be unmarshaled from JSON")

type errNotSupported string

func (e errNotSupported) Error() string { return string(e) }

// SecureBytes holds a binary secret (e.g. a shared AES/HMAC key) with the
// same zeroing discipline as SecureString, without the string round trip
// that would make binary data awkward to handle.
type SecureBytes struct {
	mu   sync.Mutex
	data []byte
}

// NewSecureBytes copies b into a SecureBytes.
func NewSecureBytes(b []byte) *SecureBytes {
	data := make([]byte, len(b))
	copy(data, b)
	return &SecureBytes{data: data}
}

// Bytes returns the underlying secret. Callers must not retain or mutate
// the returned slice past the SecureBytes' lifetime.
func (s *SecureBytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// GoString returns a redacted representation to prevent accidental logging.
func (s *SecureBytes) GoString() string {
	return redacted
}

// Zero overwrites the backing byte slice with zeros.
func (s *SecureBytes) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}
