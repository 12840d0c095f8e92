package session

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	log "github.com/sirupsen/logrus"
)

// PermanentMaxAge is the lifetime of a "remember me" session.
const PermanentMaxAge = 31 * 24 * time.Hour

// Manager reads and writes signed session cookies.
type Manager struct {
	name  string
	codec *securecookie.SecureCookie
}

// NewManager returns a Manager signing cookies named name with secret.
func NewManager(name, secret string) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("session: empty secret key")
	}
	hashKey := sha256.Sum256([]byte("ilog-session-hash:" + secret))
	codec := securecookie.New(hashKey[:], nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(PermanentMaxAge / time.Second))
	return &Manager{name: name, codec: codec}, nil
}

// Name returns the cookie name.
func (m *Manager) Name() string { return m.name }

// Load decodes the session cookie. Missing or tampered cookies yield an empty session.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, errCookie := r.Cookie(m.name)
	if errCookie != nil {
		return New()
	}
	s := New()
	if errDecode := m.codec.Decode(m.name, cookie.Value, s); errDecode != nil {
		log.WithError(errDecode).Debug("session: discard invalid cookie")
		return &Session{modified: true}
	}
	return s
}

// Save writes the cookie when the session changed. secure marks the cookie https only.
func (m *Manager) Save(w http.ResponseWriter, s *Session, secure bool) error {
	if s == nil || !s.modified {
		return nil
	}
	cookie := &http.Cookie{
		Name:     m.name,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.Empty() {
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
		return nil
	}
	encoded, errEncode := m.codec.Encode(m.name, s)
	if errEncode != nil {
		return errEncode
	}
	cookie.Value = encoded
	if s.Permanent {
		cookie.MaxAge = int(PermanentMaxAge / time.Second)
		cookie.Expires = time.Now().Add(PermanentMaxAge)
	}
	http.SetCookie(w, cookie)
	s.modified = false
	return nil
}
