package websession

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Default configuration values.
const (
	DefaultLifetimeMinutes = 120
	DefaultCookieName      = "session_id"
	DefaultCSRFCookieName  = "XSRF-TOKEN"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateUnset means no session is held.
	StateUnset State = iota
	// StateActive means a valid, non-expired session is held.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager drives the session of a single request. Build one per request
// and pass it along through the request context; it is not safe for
// concurrent use.
type Manager struct {
	settings       ConfigReader
	driver         string
	store          Store
	lifetime       time.Duration
	cookieName     string
	csrfCookieName string
	session        *Session
	now            func() time.Time
	logger         zerolog.Logger
}

// Config holds what a Manager needs to resolve its store.
type Config struct {
	Settings ConfigReader
	Registry *Registry
	Logger   *zerolog.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// NewManager resolves the driver named by session.store and returns a
// manager with no active session. Unknown driver names fall back to the
// file driver.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Settings == nil {
		cfg.Settings = NewSettings(nil)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: no registry", ErrUnknownDriver)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := resolveLogger(cfg.Logger, "session_manager")

	requested := settingString(cfg.Settings, "session.store", DefaultDriver)
	driver, factory, err := cfg.Registry.Resolve(requested)
	if err != nil {
		return nil, err
	}
	if driver != requested {
		logger.Warn().Str("requested", requested).Str("driver", driver).Msg("unknown session driver, using default")
	}

	store, err := factory(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s session store: %w", driver, err)
	}

	return &Manager{
		settings:       cfg.Settings,
		driver:         driver,
		store:          store,
		lifetime:       time.Duration(settingInt(cfg.Settings, "session.lifetime", DefaultLifetimeMinutes)) * time.Minute,
		cookieName:     settingString(cfg.Settings, "session.cookie", DefaultCookieName),
		csrfCookieName: settingString(cfg.Settings, "session.csrf_cookie", DefaultCSRFCookieName),
		now:            cfg.Now,
		logger:         logger.With().Str("driver", driver).Logger(),
	}, nil
}

// Driver returns the name of the selected store driver.
func (m *Manager) Driver() string {
	return m.driver
}

// Store returns the selected store.
func (m *Manager) Store() Store {
	return m.store
}

// Lifetime returns the configured session lifetime.
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// State reports whether a session is held.
func (m *Manager) State() State {
	if m.session == nil {
		return StateUnset
	}
	return StateActive
}

// Session returns the active session, or nil.
func (m *Manager) Session() *Session {
	return m.session
}

// SetActiveSession replaces the active session.
func (m *Manager) SetActiveSession(s *Session) {
	m.session = s
}

// CreateSession returns a new session expiring one lifetime from now. It
// panics if the system random source fails.
func (m *Manager) CreateSession() *Session {
	s, err := NewSession(m.now().Add(m.lifetime).UnixMilli())
	if err != nil {
		panic(err)
	}
	return s
}

// StartSession adopts candidate as the active session, or a new one when
// candidate is nil or expired.
func (m *Manager) StartSession(candidate *Session) *Session {
	if candidate == nil || candidate.HasExpiredAt(m.now()) {
		candidate = m.CreateSession()
	}
	m.session = candidate.Touch()
	return m.session
}

// LoadSession reads the session stored under id. Malformed ids return nil
// without reaching the store.
func (m *Manager) LoadSession(ctx context.Context, id string) *Session {
	if !IsValidToken(id) {
		return nil
	}
	return m.store.Read(ctx, id)
}

// EndSession persists the active session. It reports false when there is
// no session or the store failed.
func (m *Manager) EndSession(ctx context.Context) bool {
	if m.session == nil {
		return false
	}
	if !m.store.Save(ctx, m.session) {
		m.logger.Warn().Str("session_id", shortID(m.session.ID())).Msg("failed to persist session")
		return false
	}
	return true
}

// Regenerate gives the active session a new id to prevent session fixation:
// the session is saved under the new id and the old record removed. If the
// old record survives, the new one is removed too and an error returned.
func (m *Manager) Regenerate(ctx context.Context) error {
	s := m.session
	if s == nil {
		return fmt.Errorf("%w: no active session", ErrInvalidArgument)
	}
	oldID := s.ID()
	newID, err := generateToken()
	if err != nil {
		return err
	}
	if err := s.SetID(newID); err != nil {
		return err
	}

	if !m.store.Save(ctx, s) {
		_ = s.SetID(oldID)
		return fmt.Errorf("%w: could not save regenerated session", ErrStoreFailure)
	}

	if !m.store.Remove(ctx, oldID) && m.store.Read(ctx, oldID) != nil {
		m.store.Remove(ctx, newID)
		m.session = nil
		return fmt.Errorf("%w: could not remove previous session", ErrStoreFailure)
	}
	return nil
}

// Destroy removes the active session from the store, wipes its data and
// leaves the manager unset.
func (m *Manager) Destroy(ctx context.Context) bool {
	s := m.session
	if s == nil {
		return false
	}
	defer s.Clear()
	m.session = nil
	return m.store.Remove(ctx, s.ID())
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// SetCookieName sets the name of the session cookie.
func (m *Manager) SetCookieName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: session cookie name cannot be empty", ErrInvalidArgument)
	}
	m.cookieName = name
	return nil
}

// CSRFCookieName returns the name of the CSRF cookie.
func (m *Manager) CSRFCookieName() string {
	return m.csrfCookieName
}

// SetCSRFCookieName sets the name of the CSRF cookie.
func (m *Manager) SetCSRFCookieName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: CSRF cookie name cannot be empty", ErrInvalidArgument)
	}
	m.csrfCookieName = name
	return nil
}
