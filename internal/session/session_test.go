package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, m *Manager, s *Session) (*Session, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s, false))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return m.Load(req), cookies[0]
}

func TestManager_RoundTrip(t *testing.T) {
	m, err := NewManager("ilog_session", "secret")
	require.NoError(t, err)

	s := New()
	s.Login(7, true, time.Unix(1700000000, 0))
	s.AddFlash(FlashOK, "saved")

	loaded, cookie := roundTrip(t, m, s)
	assert.EqualValues(t, 7, loaded.UserID)
	assert.EqualValues(t, 1700000000, loaded.LoginTime)
	assert.True(t, loaded.Permanent)
	assert.Equal(t, int(PermanentMaxAge/time.Second), cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)

	flashes := loaded.PopFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, "saved", flashes[0].Message)
	assert.Empty(t, loaded.PopFlashes())
	assert.True(t, loaded.Modified())
}

func TestManager_UnmodifiedNotWritten(t *testing.T) {
	m, err := NewManager("ilog_session", "secret")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, New(), false))
	assert.Empty(t, rec.Result().Cookies())
}

func TestManager_TamperedCookie(t *testing.T) {
	m, err := NewManager("ilog_session", "secret")
	require.NoError(t, err)
	other, err := NewManager("ilog_session", "other-secret")
	require.NoError(t, err)

	s := New()
	s.Login(1, false, time.Now())
	rec := httptest.NewRecorder()
	require.NoError(t, other.Save(rec, s, false))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	loaded := m.Load(req)
	assert.Zero(t, loaded.UserID)
}

func TestSession_LogoutClearsCookie(t *testing.T) {
	m, err := NewManager("ilog_session", "secret")
	require.NoError(t, err)

	s := New()
	s.Login(3, false, time.Now())
	s.Logout()
	assert.True(t, s.Empty())

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s, false))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSession_Pending(t *testing.T) {
	type profile struct {
		Identifier string `json:"identifier"`
	}
	s := New()
	assert.False(t, s.LoadPending(&profile{}))
	require.NoError(t, s.SetPending(profile{Identifier: "https://id.example/1"}))

	var got profile
	require.True(t, s.LoadPending(&got))
	assert.Equal(t, "https://id.example/1", got.Identifier)
	s.ClearPending()
	assert.False(t, s.LoadPending(&got))
}

func TestFlash_HTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;", string(Flash{Type: FlashInfo, Message: "<b>"}.HTML(nil)))
	assert.Equal(t, "<strong>Error:</strong> bad &amp; worse", string(Flash{Type: FlashError, Message: "bad & worse"}.HTML(nil)))
	assert.Equal(t, "<strong>Aviso:</strong> x", string(Flash{Type: FlashWarning, Message: "x"}.HTML(func(string) string { return "Aviso:" })))
}
