package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Environment selects cookie security attributes.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Default cookie names.
const (
	DefaultAccessCookie  = "access_token"
	DefaultRefreshCookie = "refresh_token"
	DefaultMarkerCookie  = "authenticated"
)

// ParseEnvironment accepts the four environment names, case-insensitively,
// plus the short forms dev and prod.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return EnvDevelopment, nil
	case "test":
		return EnvTest, nil
	case "staging":
		return EnvStaging, nil
	case "production", "prod":
		return EnvProduction, nil
	}
	return "", fmt.Errorf("session: unknown environment %q", s)
}

// Attributes are the environment-dependent cookie attributes.
type Attributes struct {
	Secure   bool
	SameSite http.SameSite
}

// AttributesFor returns the attribute set for env. Deployed environments
// serve the frontend from another origin, which requires SameSite=None and
// therefore Secure.
func AttributesFor(env Environment) Attributes {
	switch env {
	case EnvStaging, EnvProduction:
		return Attributes{Secure: true, SameSite: http.SameSiteNoneMode}
	default:
		return Attributes{Secure: false, SameSite: http.SameSiteLaxMode}
	}
}

// CookieNames overrides the default cookie names. Empty fields keep the default.
type CookieNames struct {
	Access  string
	Refresh string
	Marker  string
}

// CookieManager writes and clears the session cookie set.
type CookieManager struct {
	names CookieNames
	attrs Attributes
	// Domain is applied to every cookie when set.
	domain string
}

// NewCookieManager returns a manager for env.
func NewCookieManager(env Environment, names CookieNames, domain string) *CookieManager {
	if names.Access == "" {
		names.Access = DefaultAccessCookie
	}
	if names.Refresh == "" {
		names.Refresh = DefaultRefreshCookie
	}
	if names.Marker == "" {
		names.Marker = DefaultMarkerCookie
	}
	return &CookieManager{names: names, attrs: AttributesFor(env), domain: domain}
}

// Names returns the effective cookie names.
func (m *CookieManager) Names() CookieNames {
	return m.names
}

// Tokens is the cookie-relevant part of an issued token pair.
type Tokens struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

// Write sets the access and refresh cookies. When redirect is true it also
// sets the script-readable marker cookie that tells the frontend a login
// completed during a redirect.
func (m *CookieManager) Write(w http.ResponseWriter, t Tokens, redirect bool) {
	access := m.tokenCookie(m.names.Access)
	access.Value = t.Access
	access.Expires = t.AccessExpiresAt
	http.SetCookie(w, access)

	refresh := m.tokenCookie(m.names.Refresh)
	refresh.Value = t.Refresh
	refresh.Expires = t.RefreshExpiresAt
	http.SetCookie(w, refresh)

	if redirect {
		marker := m.markerCookie()
		marker.Value = "true"
		marker.Expires = t.RefreshExpiresAt
		http.SetCookie(w, marker)
	}
}

// Clear expires all three cookies with the same attributes Write uses.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{
		m.tokenCookie(m.names.Access),
		m.tokenCookie(m.names.Refresh),
		m.markerCookie(),
	} {
		c.Value = ""
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// Read returns the access and refresh cookie values from r. Missing cookies
// yield empty strings.
func (m *CookieManager) Read(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(m.names.Access); err == nil {
		access = c.Value
	}
	if c, err := r.Cookie(m.names.Refresh); err == nil {
		refresh = c.Value
	}
	return access, refresh
}

// HasMarker reports whether r carries the authenticated marker cookie.
func (m *CookieManager) HasMarker(r *http.Request) bool {
	c, err := r.Cookie(m.names.Marker)
	return err == nil && c.Value != ""
}

// tokenCookie leaves Path empty so the browser applies its default path.
func (m *CookieManager) tokenCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Domain:   m.domain,
		HttpOnly: true,
		Secure:   m.attrs.Secure,
		SameSite: m.attrs.SameSite,
	}
}

func (m *CookieManager) markerCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.names.Marker,
		Path:     "/",
		Domain:   m.domain,
		HttpOnly: false,
		Secure:   m.attrs.Secure,
		SameSite: m.attrs.SameSite,
	}
}
