package session

import (
	"encoding/json"
	"html"
	"html/template"
	"time"
)

// Flash message types.
const (
	FlashInfo      = "info"
	FlashAdd       = "add"
	FlashRemove    = "remove"
	FlashError     = "error"
	FlashOK        = "ok"
	FlashConfigure = "configure"
	FlashWarning   = "warning"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Type    string `json:"t"`
	Message string `json:"m"`
}

// HTML renders the message escaped. Error and warning messages get a bold
// label; translate maps the label to the viewer's language.
func (f Flash) HTML(translate func(string) string) template.HTML {
	escaped := html.EscapeString(f.Message)
	if translate == nil {
		translate = func(s string) string { return s }
	}
	switch f.Type {
	case FlashError:
		return template.HTML("<strong>" + html.EscapeString(translate("Error:")) + "</strong> " + escaped)
	case FlashWarning:
		return template.HTML("<strong>" + html.EscapeString(translate("Warning:")) + "</strong> " + escaped)
	default:
		return template.HTML(escaped)
	}
}

// Session is the state carried in the signed session cookie.
type Session struct {
	UserID    uint64          `json:"uid,omitempty"`
	LoginTime int64           `json:"lt,omitempty"`
	Permanent bool            `json:"pmt,omitempty"`
	Flashes   []Flash         `json:"fl,omitempty"`
	Pending   json.RawMessage `json:"rpx,omitempty"` // Third-party profile awaiting registration.

	modified bool
}

// New returns an empty session.
func New() *Session { return &Session{} }

// Modified reports whether the cookie needs to be written.
func (s *Session) Modified() bool { return s.modified }

// Empty reports whether the session holds no state at all.
func (s *Session) Empty() bool {
	return s.UserID == 0 && len(s.Flashes) == 0 && len(s.Pending) == 0
}

// Login binds the session to userID and stamps the login time.
func (s *Session) Login(userID uint64, permanent bool, now time.Time) {
	s.UserID = userID
	s.LoginTime = now.Unix()
	s.Permanent = permanent
	s.modified = true
}

// Logout drops every key of the session.
func (s *Session) Logout() {
	*s = Session{modified: true}
}

// AddFlash queues a message for the next page.
func (s *Session) AddFlash(kind, message string) {
	s.Flashes = append(s.Flashes, Flash{Type: kind, Message: message})
	s.modified = true
}

// PopFlashes returns and clears the queued messages.
func (s *Session) PopFlashes() []Flash {
	if len(s.Flashes) == 0 {
		return nil
	}
	out := s.Flashes
	s.Flashes = nil
	s.modified = true
	return out
}

// SetPending stores a value awaiting registration.
func (s *Session) SetPending(v any) error {
	raw, errMarshal := json.Marshal(v)
	if errMarshal != nil {
		return errMarshal
	}
	s.Pending = raw
	s.modified = true
	return nil
}

// LoadPending decodes the pending value into v. It reports false when nothing is pending.
func (s *Session) LoadPending(v any) bool {
	if len(s.Pending) == 0 {
		return false
	}
	return json.Unmarshal(s.Pending, v) == nil
}

// ClearPending drops the pending value.
func (s *Session) ClearPending() {
	if len(s.Pending) == 0 {
		return
	}
	s.Pending = nil
	s.modified = true
}
