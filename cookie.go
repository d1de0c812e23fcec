package websession

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Cookie describes a cookie to send to the client.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time // zero for a browser-session cookie
	Secure   bool
	HTTPOnly bool
	// Raw sends Value as is; otherwise it is query-escaped.
	Raw      bool
	SameSite http.SameSite
}

// HTTPCookie converts c for http.SetCookie.
func (c *Cookie) HTTPCookie() *http.Cookie {
	value := c.Value
	if !c.Raw {
		value = url.QueryEscape(value)
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

// Cookie builds a cookie whose attributes come from the session.*
// settings. With session.expire_on_close the expiry is left unset.
func (m *Manager) Cookie(name, value string, expires time.Time) *Cookie {
	c := &Cookie{
		Name:     name,
		Value:    value,
		Path:     settingString(m.settings, "session.path", "/"),
		Domain:   settingString(m.settings, "session.domain", ""),
		Secure:   settingBool(m.settings, "session.secure", false),
		HTTPOnly: settingBool(m.settings, "session.httpOnly", false),
		Raw:      settingBool(m.settings, "session.raw", true),
		SameSite: parseSameSite(settingString(m.settings, "session.sameSite", "NONE")),
	}
	if !settingBool(m.settings, "session.expire_on_close", false) {
		c.Expires = expires
	}
	return c
}

// SessionCookie returns the cookie carrying the active session id, or nil.
func (m *Manager) SessionCookie() *Cookie {
	if m.session == nil {
		return nil
	}
	return m.Cookie(m.cookieName, m.session.ID(), m.session.ExpiresAt())
}

// CSRFCookie returns the cookie carrying the active CSRF token, or nil.
func (m *Manager) CSRFCookie() *Cookie {
	if m.session == nil {
		return nil
	}
	return m.Cookie(m.csrfCookieName, m.session.CSRF(), m.session.ExpiresAt())
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "LAX":
		return http.SameSiteLaxMode
	case "STRICT":
		return http.SameSiteStrictMode
	case "DEFAULT":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteNoneMode
	}
}
