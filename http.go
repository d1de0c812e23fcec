package websession

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type managerKey struct{}

// WithManager returns a copy of ctx carrying m.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// ManagerFromContext returns the manager stored by WithManager.
func ManagerFromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(managerKey{}).(*Manager)
	return m, ok
}

// SessionFromContext returns the active session of the request, or nil.
func SessionFromContext(ctx context.Context) *Session {
	m, ok := ManagerFromContext(ctx)
	if !ok {
		return nil
	}
	return m.Session()
}

// StartRequest loads the session named by the request's session cookie
// and makes it active, creating a new one if it is missing or expired.
func (m *Manager) StartRequest(r *http.Request) *Session {
	var candidate *Session
	if c, err := r.Cookie(m.cookieName); err == nil {
		candidate = m.LoadSession(r.Context(), c.Value)
	}
	return m.StartSession(candidate)
}

// WriteCookies sets the session and CSRF cookies on w. Without an active
// session, it expires both on the client.
func (m *Manager) WriteCookies(w http.ResponseWriter) {
	if m.session == nil {
		for _, name := range []string{m.cookieName, m.csrfCookieName} {
			c := m.Cookie(name, "", time.Time{}).HTTPCookie()
			c.MaxAge = -1
			http.SetCookie(w, c)
		}
		return
	}
	http.SetCookie(w, m.SessionCookie().HTTPCookie())
	http.SetCookie(w, m.CSRFCookie().HTTPCookie())
}

// Middleware starts a session for every request with a fresh Manager,
// exposes it through the request context and persists it once the
// handler returns. Cookies are written just before the response headers.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	logger := resolveLogger(cfg.Logger, "session_middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m, err := NewManager(cfg)
			if err != nil {
				logger.Error().Err(err).Msg("failed to create session manager")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			m.StartRequest(r)

			cw := &cookieWriter{ResponseWriter: w, manager: m}
			next.ServeHTTP(cw, r.WithContext(WithManager(r.Context(), m)))
			cw.writeCookies()

			if m.State() == StateActive && !m.EndSession(r.Context()) {
				logger.Warn().Str("driver", m.Driver()).Msg("session not persisted at end of request")
			}
		})
	}
}

// cookieWriter sets the session cookies right before the first header or
// body write, so handlers can still regenerate or destroy the session.
type cookieWriter struct {
	http.ResponseWriter
	manager *Manager
	once    sync.Once
}

func (w *cookieWriter) writeCookies() {
	w.once.Do(func() {
		w.manager.WriteCookies(w.ResponseWriter)
	})
}

func (w *cookieWriter) WriteHeader(code int) {
	w.writeCookies()
	w.ResponseWriter.WriteHeader(code)
}

func (w *cookieWriter) Write(b []byte) (int, error) {
	w.writeCookies()
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *cookieWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
