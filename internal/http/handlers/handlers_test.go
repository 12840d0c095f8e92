package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/i18n"
	"github.com/UfSoft/ILog-OLD/internal/mail"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/ratelimit"
	"github.com/UfSoft/ILog-OLD/internal/security"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/UfSoft/ILog-OLD/internal/templates"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testEnv struct {
	t      *testing.T
	conn   *gorm.DB
	store  *config.Store
	mailer *recordingMailer
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	translations := i18n.New()
	store, errStore := config.Load(filepath.Join(dir, settings.ConfigFilename), settings.MainSection,
		config.DefaultVars(translations.Languages(), translations.Timezones()), settings.HiddenKeys)
	require.NoError(t, errStore)
	tx := store.Edit()
	require.NoError(t, tx.Set(settings.SecretKeyKey, "handlers-test-secret"))
	require.NoError(t, tx.Commit(false))

	conn, errOpen := db.Open("file:" + filepath.Join(dir, "ilog.db"))
	require.NoError(t, errOpen)
	require.NoError(t, db.Migrate(conn))

	renderer, errRenderer := templates.New()
	require.NoError(t, errRenderer)

	mailer := &recordingMailer{}
	s, errSite := site.New(site.Deps{
		DB:       conn,
		Store:    store,
		I18n:     translations,
		Renderer: renderer,
		Mailer:   mailer,
		Limiter:  ratelimit.NewThrottle(ratelimit.FromStore(store), nil, nil),
	})
	require.NoError(t, errSite)
	RegisterRoutes(s)

	engine := gin.New()
	engine.NoRoute(s.Handle)
	return &testEnv{t: t, conn: conn, store: store, mailer: mailer, engine: engine}
}

func (e *testEnv) setOption(key string, value any) {
	e.t.Helper()
	tx := e.store.Edit()
	require.NoError(e.t, tx.Set(key, value))
	require.NoError(e.t, tx.Commit(false))
}

func (e *testEnv) createUser(username, password string, privs ...string) *models.User {
	e.t.Helper()
	user := models.NewUser(username, username+"@example.org")
	hash, errHash := security.HashPassword(password)
	require.NoError(e.t, errHash)
	user.PasswordHash = hash
	require.NoError(e.t, e.conn.Create(user).Error)
	if len(privs) > 0 {
		granted, errBind := privileges.Bind(e.conn, privs)
		require.NoError(e.t, errBind)
		require.NoError(e.t, e.conn.Model(user).Association("Privileges").Append(granted))
	}
	return user
}

// client keeps the session cookie between requests.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c.env.engine.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil)
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, target, form)
}

func (c *client) login(username, password string) {
	rec := c.post("/account/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(c.env.t, http.StatusFound, rec.Code, rec.Body.String())
}

func TestAnonymousAdminRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.client().get("/admin/manage/groups")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/account/login?next=/admin/manage/groups", rec.Header().Get("Location"))
}

func TestAdminListsGroups(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("admin", "secret", privileges.Admin)
	require.NoError(t, env.conn.Create(&models.Group{Name: "Moderators"}).Error)

	c := env.client()
	c.login("admin", "secret")
	rec := c.get("/admin/manage/groups")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Moderators")
}

func TestNonAdminIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("bob", "secret")

	c := env.client()
	c.login("bob", "secret")
	rec := c.get("/admin/")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", "secret")
	require.Nil(t, user.LastLogin)

	c := env.client()
	rec := c.post("/account/login", url.Values{"username": {"alice"}, "password": {"secret"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/account/dashboard", rec.Header().Get("Location"))
	assert.NotEmpty(t, c.cookies[settings.DefaultCookieName])

	var stored models.User
	require.NoError(t, env.conn.First(&stored, user.ID).Error)
	assert.NotNil(t, stored.LastLogin)

	dashboard := c.get("/account/dashboard")
	assert.Equal(t, http.StatusOK, dashboard.Code)
	assert.Contains(t, dashboard.Body.String(), "alice@example.org")
}

func TestLoginWrongPasswordKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", "secret")

	c := env.client()
	rec := c.post("/account/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password.")
	assert.Empty(t, c.cookies)

	var stored models.User
	require.NoError(t, env.conn.First(&stored, user.ID).Error)
	assert.Nil(t, stored.LastLogin)
}

func TestLoginThrottle(t *testing.T) {
	env := newTestEnv(t)
	env.setOption(settings.LoginAttemptsKey, 2)
	env.setOption(settings.LoginWindowKey, 3600)
	env.createUser("alice", "secret")
	env.createUser("bob", "secret")

	c := env.client()
	for i := 0; i < 2; i++ {
		rec := c.post("/account/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := c.post("/account/login", url.Values{"username": {"alice"}, "password": {"secret"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Empty(t, c.cookies)

	other := env.client()
	other.login("bob", "secret")
	assert.NotEmpty(t, other.cookies)
}

func TestLoginHonoursNext(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("admin", "secret", privileges.Admin)

	c := env.client()
	rec := c.post("/account/login", url.Values{
		"username": {"admin"}, "password": {"secret"}, "next": {"/admin/manage/groups"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/manage/groups", rec.Header().Get("Location"))

	offsite := env.client().post("/account/login", url.Values{
		"username": {"admin"}, "password": {"secret"}, "next": {"http://evil.example.org/"},
	})
	assert.Equal(t, "/account/dashboard", offsite.Header().Get("Location"))
}

func TestRegisterPasswordMismatch(t *testing.T) {
	env := newTestEnv(t)
	rec := env.client().post("/account/register", url.Values{
		"username":     {"carol"},
		"email":        {"carol@example.org"},
		"new_password": {"one"},
		"rep_password": {"two"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The two passwords do not match.")
	var count int64
	require.NoError(t, env.conn.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterAndActivate(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	rec := c.post("/account/register", url.Values{
		"username":     {"carol"},
		"display_name": {"Carol"},
		"email":        {"carol@example.org"},
		"new_password": {"pw"},
		"rep_password": {"pw"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/account/dashboard", rec.Header().Get("Location"))

	var user models.User
	require.NoError(t, env.conn.Where("username = ?", "carol").First(&user).Error)
	assert.False(t, user.Active())
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, []string{"carol@example.org"}, env.mailer.sent[0].To)
	assert.Contains(t, env.mailer.sent[0].Body, "/account/activate/"+user.ActivationKey)

	activated := c.get("/account/activate/" + user.ActivationKey)
	assert.Equal(t, http.StatusFound, activated.Code)

	var loaded models.User
	require.NoError(t, privileges.Preload(env.conn).First(&loaded, user.ID).Error)
	assert.True(t, loaded.Active())
	assert.True(t, privileges.Effective(&loaded).Contains(privileges.EnterAccountPanel))
}

func TestActivateInvalidKey(t *testing.T) {
	env := newTestEnv(t)
	rec := env.client().get("/account/activate/not-a-key")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The activation key is not valid or has expired.")
}

func TestActivateDropsStaleRegistrations(t *testing.T) {
	env := newTestEnv(t)
	stale := models.NewUser("stale", "stale@example.org")
	stale.ActivationKey = "old-key"
	require.NoError(t, env.conn.Create(stale).Error)
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	require.NoError(t, env.conn.Model(stale).UpdateColumn("register_date", old).Error)

	returning := env.createUser("returning", "pw", privileges.EnterAccountPanel)
	require.NoError(t, env.conn.Model(returning).UpdateColumns(map[string]any{
		"activation_key": "changed-mail", "register_date": old,
	}).Error)

	env.client().get("/account/activate/whatever")

	var count int64
	require.NoError(t, env.conn.Model(&models.User{}).Where("username = ?", "stale").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, env.conn.Model(&models.User{}).Where("username = ?", "returning").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func (e *testEnv) groupWithMembers(name string, members ...*models.User) *models.Group {
	e.t.Helper()
	group := &models.Group{Name: name}
	require.NoError(e.t, e.conn.Create(group).Error)
	if len(members) > 0 {
		require.NoError(e.t, e.conn.Model(group).Association("Users").Append(members))
	}
	return group
}

func TestDeleteGroupRelocatesMembers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("admin", "secret", privileges.Admin)
	alice := env.createUser("alice", "pw")
	bob := env.createUser("bob", "pw")
	doomed := env.groupWithMembers("Doomed", alice, bob)
	target := env.groupWithMembers("Target")

	c := env.client()
	c.login("admin", "secret")
	rec := c.post("/admin/manage/groups/delete/"+strconv.FormatUint(doomed.ID, 10), url.Values{
		"what_to_do":  {"relocate"},
		"relocate_to": {strconv.FormatUint(target.ID, 10)},
		"confirm":     {"1"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	var count int64
	require.NoError(t, env.conn.Model(&models.Group{}).Where("id = ?", doomed.ID).Count(&count).Error)
	assert.Zero(t, count)
	var members []models.User
	require.NoError(t, env.conn.Model(target).Association("Users").Find(&members))
	assert.Len(t, members, 2)
}

func TestDeleteGroupDetachesMembers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("admin", "secret", privileges.Admin)
	alice := env.createUser("alice", "pw")
	doomed := env.groupWithMembers("Doomed", alice)
	other := env.groupWithMembers("Other")

	c := env.client()
	c.login("admin", "secret")
	rec := c.post("/admin/manage/groups/delete/"+strconv.FormatUint(doomed.ID, 10), url.Values{
		"what_to_do": {"delete_membership"},
		"confirm":    {"1"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	var links int64
	require.NoError(t, env.conn.Table("group_users").Where("user_id = ?", alice.ID).Count(&links).Error)
	assert.Zero(t, links)
	assert.Zero(t, env.conn.Model(other).Association("Users").Count())
}

func TestGroupEditCancelDoesNotSave(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("admin", "secret", privileges.Admin)

	c := env.client()
	c.login("admin", "secret")
	rec := c.post("/admin/manage/groups/new", url.Values{"groupname": {"Ghost"}, "cancel": {"1"}})
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = c.post("/admin/manage/groups/new", url.Values{
		"groupname": {"Editors"}, "privileges": {privileges.EnterAccountPanel}, "save_and_continue": {"1"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	var groups []models.Group
	require.NoError(t, env.conn.Preload("Privileges").Find(&groups).Error)
	require.Len(t, groups, 1)
	assert.Equal(t, "Editors", groups[0].Name)
	require.Len(t, groups[0].Privileges, 1)
	assert.Equal(t, "/admin/manage/groups/edit/"+strconv.FormatUint(groups[0].ID, 10), rec.Header().Get("Location"))
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser("admin", "secret", privileges.Admin)

	c := env.client()
	c.login("admin", "secret")
	rec := c.post("/admin/manage/users/delete/"+strconv.FormatUint(admin.ID, 10), url.Values{"confirm": {"1"}})
	assert.Equal(t, http.StatusFound, rec.Code)

	var count int64
	require.NoError(t, env.conn.Model(&models.User{}).Where("id = ?", admin.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateNetworksGeneratesSlugs(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("admin", "secret", privileges.Admin)

	c := env.client()
	c.login("admin", "secret")
	for i := 0; i < 2; i++ {
		rec := c.post("/admin/manage/networks/new", url.Values{
			"name": {"Test"}, "servers": {"irc.example.org:6667\nirc2.example.org"}, "save": {"1"},
		})
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	}

	var networks []models.Network
	require.NoError(t, env.conn.Preload("Servers").Order("slug").Find(&networks).Error)
	require.Len(t, networks, 2)
	assert.Equal(t, "test", networks[0].Slug)
	assert.Equal(t, "test-1", networks[1].Slug)
	assert.Len(t, networks[0].Servers, 2)

	rec := c.post("/admin/manage/networks/edit/test", url.Values{
		"name": {"Test"}, "servers": {"irc.example.org:6667\nirc3.example.org:6697"}, "save": {"1"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	var servers []models.NetworkServer
	require.NoError(t, env.conn.Where("network_slug = ?", "test").Order("address").Find(&servers).Error)
	require.Len(t, servers, 2)
	assert.Equal(t, networks[0].Servers[0].ID, servers[0].ID)
	assert.Equal(t, "irc3.example.org", servers[1].Address)
}

func TestMaintenanceMode(t *testing.T) {
	env := newTestEnv(t)
	env.setOption(settings.MaintenanceModeKey, true)

	c := env.client()
	assert.Equal(t, http.StatusServiceUnavailable, c.get("/").Code)
	assert.Equal(t, http.StatusOK, c.get("/account/login").Code)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, env.client().get("/no/such/page").Code)
}

func TestBrowseChannel(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.conn.Create(&models.Network{Slug: "freenode", Name: "Freenode"}).Error)
	channel := models.Channel{Name: "ilog", NetworkName: "freenode", Prefix: "#"}
	require.NoError(t, env.conn.Create(&channel).Error)
	nick := models.IrcIdentity{NetworkName: "freenode", Nick: "dave"}
	require.NoError(t, env.conn.Create(&nick).Error)
	require.NoError(t, env.conn.Create(&models.IrcEvent{
		ChannelID:  channel.ID,
		Stamp:      time.Date(2010, 3, 1, 12, 0, 0, 0, time.UTC),
		Type:       "msg",
		IdentityID: &nick.ID,
		Message:    "hello logged world",
	}).Error)

	c := env.client()
	networks := c.get("/network/")
	assert.Equal(t, http.StatusOK, networks.Code)
	assert.Contains(t, networks.Body.String(), "Freenode")

	days := c.get("/network/freenode/ilog/")
	assert.Equal(t, http.StatusOK, days.Code)
	assert.Contains(t, days.Body.String(), "2010-03-01")

	day := c.get("/network/freenode/ilog/2010/03/01/")
	assert.Equal(t, http.StatusOK, day.Code)
	assert.Contains(t, day.Body.String(), "hello logged world")
	assert.Contains(t, day.Body.String(), "dave")

	assert.Equal(t, http.StatusNotFound, c.get("/network/freenode/ilog/2010/02/30/").Code)
	assert.Equal(t, http.StatusNotFound, c.get("/network/freenode/nope/").Code)
}

func TestBrowseChannelDaysFollowDaylightSaving(t *testing.T) {
	env := newTestEnv(t)
	env.setOption(settings.TimezoneKey, "Europe/Lisbon")
	require.NoError(t, env.conn.Create(&models.Network{Slug: "oftc", Name: "OFTC"}).Error)
	channel := models.Channel{Name: "dst", NetworkName: "oftc", Prefix: "#"}
	require.NoError(t, env.conn.Create(&channel).Error)
	for _, stamp := range []time.Time{
		time.Date(2010, 1, 15, 23, 30, 0, 0, time.UTC),
		time.Date(2010, 6, 30, 23, 30, 0, 0, time.UTC),
	} {
		require.NoError(t, env.conn.Create(&models.IrcEvent{
			ChannelID: channel.ID, Stamp: stamp, Type: "msg", Message: "tick",
		}).Error)
	}

	days := env.client().get("/network/oftc/dst/")
	require.Equal(t, http.StatusOK, days.Code)
	body := days.Body.String()
	assert.Contains(t, body, "2010-01-15")
	assert.Contains(t, body, "2010-07-01")
	assert.NotContains(t, body, "2010-06-30")
}
