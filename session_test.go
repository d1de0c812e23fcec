package websession

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UnixMilli()
	s, err := NewSession(expiry)
	require.NoError(t, err)

	assert.True(t, IsValidToken(s.ID()))
	assert.True(t, IsValidToken(s.CSRF()))
	assert.NotEqual(t, s.ID(), s.CSRF(), "id and csrf must be independent tokens")
	assert.Equal(t, expiry, s.Expiry())
	assert.Equal(t, s.CSRF(), s.Get(CSRFKey, nil))
}

func TestRestoreSession(t *testing.T) {
	id := newTestToken(t)
	csrf := newTestToken(t)

	t.Run("valid", func(t *testing.T) {
		s, err := RestoreSession(id, 42, map[string]any{CSRFKey: csrf, "a": "b"})
		require.NoError(t, err)
		assert.Equal(t, id, s.ID())
		assert.Equal(t, csrf, s.CSRF())
		assert.Equal(t, int64(42), s.Expiry())
	})

	t.Run("nil data", func(t *testing.T) {
		s, err := RestoreSession(id, 42, nil)
		require.NoError(t, err)
		s.Set("k", "v")
		assert.Equal(t, "v", s.Get("k", nil))
	})

	t.Run("malformed id", func(t *testing.T) {
		for _, bad := range []string{"", "_idisinvalid", id[:39], id + "a", strings.Repeat("-", 40)} {
			_, err := RestoreSession(bad, 42, nil)
			assert.ErrorIs(t, err, ErrInvalidArgument, "id %q", bad)
		}
	})

	t.Run("malformed csrf", func(t *testing.T) {
		_, err := RestoreSession(id, 42, map[string]any{CSRFKey: "short"})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = RestoreSession(id, 42, map[string]any{CSRFKey: 12345})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestSession_SetIDAndCSRF(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)
	origID, origCSRF := s.ID(), s.CSRF()

	assert.ErrorIs(t, s.SetID("not-a-token"), ErrInvalidArgument)
	assert.Equal(t, origID, s.ID(), "failed SetID must not change the id")

	assert.ErrorIs(t, s.SetCSRF(origCSRF[:10]), ErrInvalidArgument)
	assert.Equal(t, origCSRF, s.CSRF())

	newID := newTestToken(t)
	require.NoError(t, s.SetID(newID))
	assert.Equal(t, newID, s.ID())

	newCSRF := newTestToken(t)
	require.NoError(t, s.SetCSRF(newCSRF))
	assert.Equal(t, newCSRF, s.CSRF())
}

func TestSession_VerifyCSRF(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)

	assert.True(t, s.VerifyCSRF(s.CSRF()))
	assert.False(t, s.VerifyCSRF(newTestToken(t)))
	assert.False(t, s.VerifyCSRF(""))
	assert.False(t, s.VerifyCSRF(s.CSRF()[:39]))
}

func TestSession_HasExpired(t *testing.T) {
	expiry := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSession(expiry.UnixMilli())
	require.NoError(t, err)

	assert.False(t, s.HasExpiredAt(expiry.Add(-time.Millisecond)))
	assert.False(t, s.HasExpiredAt(expiry), "now == expiry is not expired")
	assert.True(t, s.HasExpiredAt(expiry.Add(time.Millisecond)))

	past, err := NewSession(time.Now().Add(-time.Second).UnixMilli())
	require.NoError(t, err)
	assert.True(t, past.HasExpired())

	future, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.False(t, future.HasExpired())
	assert.Equal(t, future.Expiry(), future.ExpiresAt().UnixMilli())
}

func TestSession_GetSet(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)

	s.Set("role", "admin").Set("user", map[string]any{
		"profile": map[string]any{"name": "mordicus"},
		"tags":    map[string]string{"team": "core"},
	})
	s.Set("flat.key", "flat")

	assert.Equal(t, "admin", s.Get("role", nil))
	assert.Equal(t, "mordicus", s.Get("user.profile.name", nil))
	assert.Equal(t, "core", s.Get("user.tags.team", nil))
	assert.Equal(t, "flat", s.Get("flat.key", nil), "Set does not split on dots")
	assert.Equal(t, "fallback", s.Get("user.profile.missing", "fallback"))
	assert.Equal(t, "fallback", s.Get("role.nested", "fallback"))
	assert.Nil(t, s.Get("missing", nil))

	s.Delete("role")
	assert.Nil(t, s.Get("role", nil))
}

func TestSession_DataIsCopy(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)
	s.Set("a", 1)

	data := s.Data()
	data["a"] = 2
	assert.Equal(t, 1, s.Get("a", nil))
}

func TestSession_Clear(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)
	csrf := s.CSRF()
	s.Set("secret", "value")

	s.Clear()
	assert.Nil(t, s.Get("secret", nil))
	assert.Equal(t, csrf, s.CSRF())
}

func TestSession_Touch(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)
	before := s.LastAccessed()
	time.Sleep(2 * time.Millisecond)
	s.Touch()
	assert.True(t, s.LastAccessed().After(before))
}

// TestSession_ConcurrentAccess is meant for -race: Set and Data race
// without the session's lock.
func TestSession_ConcurrentAccess(t *testing.T) {
	s, err := NewSession(0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set("key", i*j)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.Data()
				_ = s.Get("key", nil)
			}
		}()
	}
	wg.Wait()
}
