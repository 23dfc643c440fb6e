package auth

import (
	"crypto/sha256"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	SessionName = "gatehouse-session"
	FlashName   = "gatehouse-flash"

	userIDKey = "user"
)

// Flash categories, matching the CSS classes of the landing page.
const (
	CategorySuccess = "success"
	CategoryInfo    = "info"
	CategoryWarning = "warning"
	CategoryDanger  = "danger"
	CategoryError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Flash{})
}

type Options struct {
	// Secure marks cookies HTTPS-only.
	Secure bool
	// MaxAge in seconds; 0 keeps the cookie for the browser session.
	MaxAge int
}

// Manager keeps the authenticated user id in a signed cookie. Flashes live
// in a second cookie so clearing the session keeps a flash queued in the
// same response.
type Manager struct {
	store *sessions.CookieStore
}

// NewManager derives the cookie keys from secret.
func NewManager(secret string, opts Options) *Manager {
	// Auth key for signing (HMAC)
	authKey := sha256.Sum256([]byte(secret + "auth"))
	// Encryption key for content encryption (AES)
	encKey := sha256.Sum256([]byte(secret + "encryption"))

	store := sessions.NewCookieStore(authKey[:], encKey[:])
	if opts.MaxAge > 0 {
		store.MaxAge(opts.MaxAge)
	}
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// Start replaces whatever the session held with userID.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, userID string) error {
	// A decode error only means the old cookie is unusable; overwrite it.
	session, _ := m.store.Get(r, SessionName)
	session.Values = map[interface{}]interface{}{userIDKey: userID}
	return session.Save(r, w)
}

// Current returns the user id carried by a valid session cookie.
func (m *Manager) Current(r *http.Request) (string, bool) {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	id, ok := session.Values[userIDKey].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, SessionName)
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, f Flash) error {
	session, _ := m.store.Get(r, FlashName)
	session.AddFlash(f)
	return session.Save(r, w)
}

// Flashes returns and consumes the queued flashes. A tampered flash cookie
// is dropped silently.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	session, err := m.store.Get(r, FlashName)
	if err != nil {
		session.Options.MaxAge = -1
		return nil, session.Save(r, w)
	}

	raw := session.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out, session.Save(r, w)
}
