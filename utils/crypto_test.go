package utils

import (
	"bytes"
	"testing"
)

func TestCredentialBoxRoundTrip(t *testing.T) {
	box, err := NewCredentialBox(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte(`{"access_token":"ya29.test","refresh_token":"1//abc"}`)
	sealed, err := box.Seal(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, []byte("ya29")) {
		t.Error("sealed credential leaks plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip mismatch: %q", opened)
	}
}

func TestCredentialBoxNonceVaries(t *testing.T) {
	box, _ := NewCredentialBox(make([]byte, 32))
	a, _ := box.Seal([]byte("secret"))
	b, _ := box.Seal([]byte("secret"))
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext should differ")
	}
}

func TestCredentialBoxRejectsTampering(t *testing.T) {
	box, _ := NewCredentialBox(make([]byte, 32))
	sealed, _ := box.Seal([]byte("secret"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := box.Open(sealed); err == nil {
		t.Error("tampered ciphertext should fail to open")
	}
}

func TestCredentialBoxRejectsShortCiphertext(t *testing.T) {
	box, _ := NewCredentialBox(make([]byte, 32))
	if _, err := box.Open([]byte("short")); err == nil {
		t.Error("truncated ciphertext should fail")
	}
}

func TestCredentialBoxRejectsBadKey(t *testing.T) {
	if _, err := NewCredentialBox([]byte("too-short")); err == nil {
		t.Error("16/24/32 byte key required")
	}
}
