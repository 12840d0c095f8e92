package templates

import (
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubItem struct {
	URL    string
	Title  string
	Active bool
}

type stubMessage struct {
	Type string
	HTML template.HTML
}

type stubCore struct {
	MetaNav    []stubItem
	NavBar     []stubItem
	CtxNavBar  []stubItem
	Messages   []stubMessage
	ActivePane string
}

type stubPage struct {
	Lang string
	Path string
	Core stubCore
	Data map[string]any
}

func (stubPage) T(key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf(key, args...)
}

func (stubPage) URL(endpoint string, kv ...any) string { return "/" + strings.ReplaceAll(endpoint, ".", "/") }

func (stubPage) Static(name string) string { return "/_static/" + name }

func (stubPage) DateTime(any) string { return "" }

func TestNewParsesEveryPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	for _, name := range []string{
		"index.html", "403.html", "404.html", "500.html", "internal_error.html", "maintenance.html", "error.html",
		"account/login.html", "account/register.html", "account/profile.html", "account/dashboard.html",
		"account/delete.html", "account/activate.html",
		"admin/index.html", "admin/options.html",
		"admin/manage/groups.html", "admin/manage/edit_group.html", "admin/manage/delete_group.html",
		"admin/manage/users.html", "admin/manage/edit_user.html", "admin/manage/delete_user.html",
		"admin/manage/networks.html", "admin/manage/edit_network.html", "admin/manage/delete_network.html",
		"admin/manage/channels.html", "admin/manage/bots.html",
		"network/index.html", "network/channels.html", "network/channel.html", "network/browse.html",
	} {
		assert.True(t, r.Has(name), name)
	}
	for _, name := range r.Pages() {
		assert.False(t, strings.HasPrefix(name, "_"), "partial %s listed as page", name)
	}
}

func TestRenderPageUsesLayout(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	page := stubPage{
		Lang: "en",
		Path: "/nope",
		Core: stubCore{
			NavBar:   []stubItem{{URL: "/", Title: "Home", Active: true}},
			Messages: []stubMessage{{Type: "error", HTML: template.HTML("<strong>Error:</strong> boom")}},
		},
		Data: map[string]any{},
	}
	out, err := r.RenderPage("404.html", page)
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<title>Page Not Found - ILog</title>")
	assert.Contains(t, html, `<li class="active"><a href="/">Home</a></li>`)
	assert.Contains(t, html, "<strong>Error:</strong> boom")
	assert.Contains(t, html, `href="/_static/style.css"`)

	_, err = r.RenderPage("missing.html", page)
	assert.Error(t, err)
}

func TestRenderMail(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	body, err := r.RenderMail("activate_account.txt", map[string]any{
		"User":            "Jane",
		"ConfirmationURL": "http://ilog.example/account/activate/abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hello Jane!")
	assert.Contains(t, body, "http://ilog.example/account/activate/abc")

	body, err = r.RenderMail("error_notification.txt", map[string]any{
		"SiteURL": "http://ilog.example",
		"Incident": struct {
			ID, Method, URL, Endpoint, Username, Error, Stack string
			Time                                              time.Time
		}{ID: "abc-123", Method: "GET", URL: "/x", Error: "db down", Time: time.Unix(0, 0).UTC()},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Incident: abc-123")
	assert.Contains(t, body, "db down")
	assert.Contains(t, body, "(http://ilog.example)")
}

func TestStaticAssets(t *testing.T) {
	data, err := fs.ReadFile(Static(), "style.css")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestPartialsAreEmbedded(t *testing.T) {
	for _, name := range []string{"html/_layout.html", "html/_form.html", "html/_pagination.html"} {
		_, err := fs.Stat(files, name)
		require.NoError(t, err, name)
	}
}
