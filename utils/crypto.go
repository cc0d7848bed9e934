package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// CredentialBox seals and opens OAuth credentials with AES-GCM so tokens are
// never stored in plaintext. The key comes from CREDENTIAL_KEY (hex, 32
// bytes).
type CredentialBox struct {
	aead cipher.AEAD
}

// NewCredentialBoxFromEnv builds the box from the CREDENTIAL_KEY variable.
func NewCredentialBoxFromEnv() (*CredentialBox, error) {
	keyHex := os.Getenv("CREDENTIAL_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("CREDENTIAL_KEY is not set")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("CREDENTIAL_KEY must be 64 hex characters (32 bytes)")
	}
	return NewCredentialBox(key)
}

func NewCredentialBox(key []byte) (*CredentialBox, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CredentialBox{aead: aead}, nil
}

// Seal encrypts a plaintext credential; the nonce is prepended.
func (b *CredentialBox) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed credential.
func (b *CredentialBox) Open(ciphertext []byte) ([]byte, error) {
	ns := b.aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return b.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
}
