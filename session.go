package websession

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"
)

// CSRFKey is the reserved data key holding the session's CSRF token.
const CSRFKey = "csrf"

// Session is a user session: an id, an expiry and a data bag.
// Its methods are safe for concurrent use.
type Session struct {
	mu           sync.RWMutex
	id           string
	expiry       int64 // epoch milliseconds
	data         map[string]any
	lastAccessed time.Time
}

// NewSession creates a session with a fresh id and CSRF token that expires
// at expiry (epoch milliseconds).
func NewSession(expiry int64) (*Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, err
	}
	csrf, err := generateToken()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:           id,
		expiry:       expiry,
		data:         map[string]any{CSRFKey: csrf},
		lastAccessed: time.Now(),
	}, nil
}

// RestoreSession rebuilds a session from persisted fields. The id and, when
// present, the CSRF entry of data must be valid tokens.
func RestoreSession(id string, expiry int64, data map[string]any) (*Session, error) {
	if !IsValidToken(id) {
		return nil, fmt.Errorf("%w: malformed session id", ErrInvalidArgument)
	}
	if data == nil {
		data = make(map[string]any)
	}
	if err := checkCSRF(data); err != nil {
		return nil, err
	}
	return &Session{
		id:           id,
		expiry:       expiry,
		data:         data,
		lastAccessed: time.Now(),
	}, nil
}

// checkCSRF fails when data holds a CSRF entry that is not a valid token.
func checkCSRF(data map[string]any) error {
	v, ok := data[CSRFKey]
	if !ok {
		return nil
	}
	if token, isString := v.(string); !isString || !IsValidToken(token) {
		return fmt.Errorf("%w: malformed csrf token", ErrInvalidArgument)
	}
	return nil
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetID replaces the session id.
func (s *Session) SetID(id string) error {
	if !IsValidToken(id) {
		return fmt.Errorf("%w: malformed session id", ErrInvalidArgument)
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return nil
}

// CSRF returns the CSRF token, or "" if none is set.
func (s *Session) CSRF() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, _ := s.data[CSRFKey].(string)
	return token
}

// SetCSRF replaces the CSRF token.
func (s *Session) SetCSRF(token string) error {
	if !IsValidToken(token) {
		return fmt.Errorf("%w: malformed csrf token", ErrInvalidArgument)
	}
	s.mu.Lock()
	s.data[CSRFKey] = token
	s.mu.Unlock()
	return nil
}

// VerifyCSRF compares token with the session's CSRF token in constant time.
func (s *Session) VerifyCSRF(token string) bool {
	expected := s.CSRF()
	if expected == "" || len(token) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

// Expiry returns the expiry as epoch milliseconds.
func (s *Session) Expiry() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// SetExpiry sets the expiry in epoch milliseconds.
func (s *Session) SetExpiry(expiry int64) {
	s.mu.Lock()
	s.expiry = expiry
	s.mu.Unlock()
}

// ExpiresAt returns the expiry as a time.Time.
func (s *Session) ExpiresAt() time.Time {
	return time.UnixMilli(s.Expiry())
}

// HasExpired reports whether the current time is past the expiry.
func (s *Session) HasExpired() bool {
	return s.HasExpiredAt(time.Now())
}

// HasExpiredAt reports whether now is strictly after the expiry.
func (s *Session) HasExpiredAt(now time.Time) bool {
	return now.UnixMilli() > s.Expiry()
}

// Get returns the value stored under key, or def if there is none. Dotted
// keys reach into nested maps.
func (s *Session) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := lookupPath(s.data, key); ok {
		return v
	}
	return def
}

// Set stores value under key. The key is not split on dots. Use SetCSRF to
// replace the CSRF token: a malformed value stored under CSRFKey makes the
// session unencodable, so stores refuse to save it.
func (s *Session) Set(key string, value any) *Session {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return s
}

// Delete removes key from the data bag.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Data returns a shallow copy of the data bag.
func (s *Session) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Clear wipes every value except the CSRF token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k != CSRFKey {
			delete(s.data, k)
		}
	}
}

// Touch records an access to the session.
func (s *Session) Touch() *Session {
	s.mu.Lock()
	s.lastAccessed = time.Now()
	s.mu.Unlock()
	return s
}

// LastAccessed returns the time of the last Touch, or of creation.
func (s *Session) LastAccessed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessed
}
