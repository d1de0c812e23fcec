package websession

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCiphertext is returned by AEADEncrypter.Decrypt for malformed or tampered input.
var ErrCiphertext = errors.New("invalid ciphertext")

// AEADEncrypter is an Encrypter backed by XChaCha20-Poly1305. Ciphertexts
// are base64(nonce || sealed).
type AEADEncrypter struct {
	aead cipher.AEAD
}

// NewAEADEncrypter creates an encrypter from a 32-byte key.
func NewAEADEncrypter(key []byte) (*AEADEncrypter, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &AEADEncrypter{aead: aead}, nil
}

// GenerateKey returns a random key suitable for NewAEADEncrypter.
func GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *AEADEncrypter) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext. A JSON object plaintext is returned as
// map[string]any, anything else as the plaintext string.
func (e *AEADEncrypter) Decrypt(ciphertext string) (any, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	if len(sealed) < e.aead.NonceSize()+e.aead.Overhead() {
		return nil, ErrCiphertext
	}
	nonce, body := sealed[:e.aead.NonceSize()], sealed[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrCiphertext
	}
	defer clear(plaintext)

	var obj map[string]any
	if json.Unmarshal(plaintext, &obj) == nil && obj != nil {
		return obj, nil
	}
	return string(plaintext), nil
}
