package crypto

import (
	"bytes"
	"testing"

	"github.com/skylinewire/streamd/internal/wire"
)

func testKey() []byte {
	return []byte("0123456789abcdef")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	plaintext := []byte("a control message payload, short")

	p, ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(p, ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptWrongKeyFailsHMAC(t *testing.T) {
	key := testKey()
	wrongKey := []byte("fedcba9876543210")

	p, ciphertext, err := Encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(p, ciphertext, wrongKey)
	if err != ErrBadHMAC {
		t.Fatalf("Decrypt with wrong key = %v, want ErrBadHMAC", err)
	}
}

func TestDecryptTamperedCiphertextFailsHMAC(t *testing.T) {
	key := testKey()
	p, ciphertext, err := Encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF

	_, err = Decrypt(p, tampered, key)
	if err != ErrBadHMAC {
		t.Fatalf("Decrypt of tampered ciphertext = %v, want ErrBadHMAC", err)
	}
}

func TestEncryptRejectsShortKey(t *testing.T) {
	_, _, err := Encrypt([]byte("x"), []byte("tooshort"))
	if err != ErrShortKey {
		t.Fatalf("Encrypt with short key = %v, want ErrShortKey", err)
	}
}

func TestDecryptOversizePacket(t *testing.T) {
	key := testKey()
	p := wire.Packet{CipherLen: uint32(wire.MaxPacketSize + 1)}
	ciphertext := make([]byte, wire.MaxPacketSize+1)
	_, err := Decrypt(p, ciphertext, key)
	if err != ErrOversizePacket {
		t.Fatalf("Decrypt oversize = %v, want ErrOversizePacket", err)
	}
}

func TestDecryptLengthMismatch(t *testing.T) {
	key := testKey()
	p, ciphertext, err := Encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	p.CipherLen = uint32(len(ciphertext) + 16)
	_, err = Decrypt(p, ciphertext, key)
	if err != ErrBadLength {
		t.Fatalf("Decrypt with mismatched CipherLen = %v, want ErrBadLength", err)
	}
}

func TestChallengeSignAndVerify(t *testing.T) {
	key := testKey()
	iv := [16]byte{1, 2, 3, 4}

	sig := SignChallenge(iv, key)
	if !VerifyChallenge(iv, key, sig) {
		t.Fatal("VerifyChallenge rejected a valid signature")
	}

	otherKey := []byte("fedcba9876543210")
	if VerifyChallenge(iv, otherKey, sig) {
		t.Fatal("VerifyChallenge accepted a signature made with a different key")
	}
}

func TestEachFragmentUnderMaxPayloadEncryptsWithinMaxPacketSize(t *testing.T) {
	key := testKey()
	payload := bytes.Repeat([]byte{0xAB}, wire.MaxPayloadSize)
	_, ciphertext, err := Encrypt(payload, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(ciphertext) > wire.MaxPacketSize {
		t.Fatalf("ciphertext length %d exceeds MaxPacketSize %d", len(ciphertext), wire.MaxPacketSize)
	}
}
