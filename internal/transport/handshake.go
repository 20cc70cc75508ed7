package transport

import (
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/skylinewire/streamd/internal/crypto"
)

// challengeRecordSize is the wire size of the {iv, signature} record: a
// 16-byte IV and a 32-byte HMAC-SHA256 signature.
const challengeRecordSize = 16 + 32

// runHandshake performs the symmetric private-key challenge-response over
// fc: both sides open a NAT pinhole with an empty frame, exchange random
// IVs, sign the peer's IV under the shared key, and verify the returned
// record. Either side aborts the connection on any mismatch.
func runHandshake(fc framedConn, key []byte, timeout time.Duration) error {
	if err := fc.setDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer fc.setDeadline(time.Time{})

	if err := fc.writeFrame(nil); err != nil {
		return fmt.Errorf("transport: handshake pinhole: %w", err)
	}

	var myIV [16]byte
	if _, err := io.ReadFull(rand.Reader, myIV[:]); err != nil {
		return err
	}
	if err := fc.writeFrame(myIV[:]); err != nil {
		return fmt.Errorf("transport: handshake send iv: %w", err)
	}

	peerIV, err := readExactFrame(fc, 16)
	if err != nil {
		return fmt.Errorf("transport: handshake recv iv: %w", err)
	}
	var peerIVArr [16]byte
	copy(peerIVArr[:], peerIV)

	sig := crypto.SignChallenge(peerIVArr, key)
	record := make([]byte, 0, challengeRecordSize)
	record = append(record, peerIV...)
	record = append(record, sig[:]...)
	if err := fc.writeFrame(record); err != nil {
		return fmt.Errorf("transport: handshake send record: %w", err)
	}

	reply, err := readExactFrame(fc, challengeRecordSize)
	if err != nil {
		return fmt.Errorf("transport: handshake recv record: %w", err)
	}
	var (
		echoedIV [16]byte
		peerSig  [32]byte
	)
	copy(echoedIV[:], reply[:16])
	copy(peerSig[:], reply[16:])

	if echoedIV != myIV {
		return ErrHandshakeMismatch
	}
	if !crypto.VerifyChallenge(myIV, key, peerSig) {
		return ErrHandshakeMismatch
	}
	return nil
}

// readExactFrame reads frames, discarding empty pinhole/keep-alive frames,
// until one of exactly want bytes arrives.
func readExactFrame(fc framedConn, want int) ([]byte, error) {
	for {
		frame, err := fc.readFrame()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, ErrHandshakeTimeout
			}
			return nil, err
		}
		if len(frame) == 0 {
			continue
		}
		if len(frame) != want {
			return nil, fmt.Errorf("transport: handshake frame size %d, want %d", len(frame), want)
		}
		return frame, nil
	}
}
