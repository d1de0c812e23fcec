package websession

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

// Encrypter is the symmetric encryption capability used by a Codec.
// Decrypt may return either structured data (map[string]any) or a string
// when the plaintext is not a JSON object.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (any, error)
}

// Record is the persisted form of a session.
type Record struct {
	ID        string `json:"id"`
	Expiry    int64  `json:"expiry"`
	Encrypted bool   `json:"encrypted"`
	Session   string `json:"session"`
}

// Codec turns sessions into backend-agnostic record strings and back:
// base64 of the JSON record, whose payload is the JSON data bag, encrypted
// when encryption is enabled. A Codec is safe for concurrent use.
type Codec struct {
	encrypter Encrypter
	encrypt   atomic.Bool
}

// NewCodec returns a codec with encryption enabled.
func NewCodec(encrypter Encrypter) *Codec {
	c := &Codec{encrypter: encrypter}
	c.encrypt.Store(true)
	return c
}

// ShouldEncrypt toggles payload encryption.
func (c *Codec) ShouldEncrypt(encrypt bool) *Codec {
	c.encrypt.Store(encrypt)
	return c
}

// Encrypts reports whether new records get an encrypted payload.
func (c *Codec) Encrypts() bool {
	return c.encrypt.Load()
}

// Encode serializes s into a record string. Sessions Decode would reject,
// such as one with a malformed CSRF entry, are refused.
func (c *Codec) Encode(s *Session) (string, error) {
	if err := checkCSRF(s.Data()); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFormat, err)
	}
	rec := Record{
		ID:     s.ID(),
		Expiry: s.Expiry(),
	}

	if c.Encrypts() {
		ciphertext, err := c.Encrypt(s)
		if err != nil {
			return "", err
		}
		rec.Session = ciphertext
		rec.Encrypted = true
	} else {
		payload, err := marshalData(s.Data())
		if err != nil {
			return "", err
		}
		rec.Session = payload
	}

	buf := getBuffer()
	defer PutBuffer(buf)
	if err := json.NewEncoder(buf).Encode(rec); err != nil {
		return "", fmt.Errorf("%w: encode record: %w", ErrEncryptionFormat, err)
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Peek decodes the outer layers of raw without touching the payload.
func (c *Codec) Peek(raw string) (Record, error) {
	var rec Record
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return rec, fmt.Errorf("%w: base64: %w", ErrEncryptionFormat, err)
	}
	defer clear(decoded)
	if err := json.Unmarshal(decoded, &rec); err != nil {
		return rec, fmt.Errorf("%w: record: %w", ErrEncryptionFormat, err)
	}
	return rec, nil
}

// Decode rebuilds a session from a record string produced by Encode.
func (c *Codec) Decode(raw string) (*Session, error) {
	rec, err := c.Peek(raw)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if rec.Encrypted {
		data, err = c.Decrypt(rec.Session)
		if err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal([]byte(rec.Session), &data); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrEncryptionFormat, err)
	}

	session, err := RestoreSession(rec.ID, rec.Expiry, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFormat, err)
	}
	return session, nil
}

// Encrypt returns the encrypted JSON form of the session data.
func (c *Codec) Encrypt(s *Session) (string, error) {
	if c.encrypter == nil {
		return "", fmt.Errorf("%w: no encrypter configured", ErrEncryptionFormat)
	}
	payload, err := marshalData(s.Data())
	if err != nil {
		return "", err
	}
	ciphertext, err := c.encrypter.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encrypt: %w", ErrEncryptionFormat, err)
	}
	return ciphertext, nil
}

// Decrypt decrypts raw and returns the session data it holds.
func (c *Codec) Decrypt(raw string) (map[string]any, error) {
	if c.encrypter == nil {
		return nil, fmt.Errorf("%w: no encrypter configured", ErrEncryptionFormat)
	}
	value, err := c.encrypter.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", ErrEncryptionFormat, err)
	}
	data, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: decrypted payload is not an object", ErrEncryptionFormat)
	}
	return data, nil
}

func marshalData(data map[string]any) (string, error) {
	buf := getBuffer()
	defer PutBuffer(buf)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		return "", fmt.Errorf("%w: encode data: %w", ErrEncryptionFormat, err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// isFormatError reports whether err came from a corrupt or undecryptable record.
func isFormatError(err error) bool {
	return errors.Is(err, ErrEncryptionFormat)
}
