package site

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/routing"
	"github.com/UfSoft/ILog-OLD/internal/i18n"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/session"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Data carries template values.
type Data map[string]any

// Request is the request-scoped context handed to every handler.
type Request struct {
	Ctx      *gin.Context
	Site     *Site
	Tx       *gorm.DB
	Session  *session.Session
	User     *models.User
	Privs    privileges.Set
	Endpoint string
	Values   routing.Values

	translator i18n.Translator
	location   *time.Location

	navbar   []navEntry
	metanav  []navEntry
	ctxNav   map[string][]navEntry
	response *response
	closed   bool
	bindErr  error
}

type response struct {
	status   int
	template string
	data     Data
	location string
}

// T translates key for the viewer.
func (r *Request) T(key string, args ...any) string { return r.translator.T(key, args...) }

// Translator returns the viewer translator.
func (r *Request) Translator() i18n.Translator { return r.translator }

// Location returns the viewer timezone.
func (r *Request) Location() *time.Location {
	if r.location == nil {
		return time.UTC
	}
	return r.location
}

func (r *Request) bindTranslator(preferences ...string) {
	tag := r.Site.i18n.Match(preferences...)
	r.translator = r.Site.i18n.Translator(tag)
}

// bindUser resolves the session user. Unknown or banned users are logged out.
func (r *Request) bindUser() error {
	r.location = r.Site.i18n.Location(r.Site.store.String(settings.TimezoneKey))
	if r.Session.UserID == 0 {
		r.bindTranslator(r.Site.store.String(settings.LanguageKey))
		return nil
	}
	var user models.User
	errFind := privileges.Preload(r.Tx).First(&user, r.Session.UserID).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		r.Session.Logout()
		return nil
	case errFind != nil:
		return fmt.Errorf("site: load session user: %w", errFind)
	}
	if user.Banned {
		r.Session.Logout()
		return nil
	}
	if errTouch := r.touchLogin(&user); errTouch != nil {
		return errTouch
	}
	r.setUser(&user)
	return nil
}

func (r *Request) setUser(user *models.User) {
	r.User = user
	r.Ctx.Set("user_id", user.ID)
	r.Privs = privileges.Effective(user)
	r.bindTranslator(user.Locale, r.Site.store.String(settings.LanguageKey))
	if user.Timezone != "" {
		r.location = r.Site.i18n.Location(user.Timezone)
	}
}

func (r *Request) touchLogin(user *models.User) error {
	now := r.Site.now()
	if errUpdate := r.Tx.Model(user).UpdateColumn("last_login", now).Error; errUpdate != nil {
		return fmt.Errorf("site: update last login: %w", errUpdate)
	}
	user.LastLogin = &now
	return nil
}

// Login binds the session to user and stamps the login time.
func (r *Request) Login(user *models.User, permanent bool) error {
	loaded := user
	if len(user.Privileges) == 0 && len(user.Groups) == 0 {
		var fresh models.User
		if errFind := privileges.Preload(r.Tx).First(&fresh, user.ID).Error; errFind != nil {
			return fmt.Errorf("site: load user: %w", errFind)
		}
		loaded = &fresh
	}
	if errTouch := r.touchLogin(loaded); errTouch != nil {
		return errTouch
	}
	r.Session.Login(loaded.ID, permanent, r.Site.now())
	r.setUser(loaded)
	return nil
}

// Logout clears the session and rebinds the anonymous user.
func (r *Request) Logout() {
	r.Session.Logout()
	r.User = models.NewAnonymousUser()
	r.Privs = privileges.Set{}
	r.bindTranslator(r.Site.store.String(settings.LanguageKey))
}

// HasPrivilege evaluates a privilege expression such as "ILOG_ADMIN | !X".
func (r *Request) HasPrivilege(expr string) bool {
	parsed, errParse := privileges.Parse(expr)
	if errParse != nil {
		log.WithError(errParse).WithField("expr", expr).Warn("site: bad privilege expression")
		return false
	}
	return r.Privs.Has(parsed)
}

// Require fails with ErrForbidden unless the user holds expr.
func (r *Request) Require(expr string) error {
	if !r.HasPrivilege(expr) {
		return ErrForbidden
	}
	return nil
}

// RequireLogin fails with ErrForbidden for anonymous users.
func (r *Request) RequireLogin() error {
	if !r.User.IsSomebody() {
		return ErrForbidden
	}
	return nil
}

// Flash queues a message for the next rendered page.
func (r *Request) Flash(kind, message string) {
	r.Session.AddFlash(kind, message)
}

// URLFor builds the path for endpoint from key/value pairs.
func (r *Request) URLFor(endpoint string, kv ...any) string {
	values, errValues := pairs(kv)
	if errValues != nil {
		log.WithError(errValues).WithField("endpoint", endpoint).Error("site: url arguments")
		return "#"
	}
	built, errBuild := r.Site.URLFor(endpoint, values)
	if errBuild != nil {
		log.WithError(errBuild).Error("site: build url")
		return "#"
	}
	return built
}

// ExternalURL builds an absolute URL for endpoint using the configured base URL,
// falling back to the request host.
func (r *Request) ExternalURL(endpoint string, kv ...any) string {
	path := r.URLFor(endpoint, kv...)
	if base := r.Site.ExternalURL(""); base != "" {
		return base + path
	}
	scheme := "http"
	if r.Site.isSecure(r.Ctx.Request) {
		scheme = "https"
	}
	return scheme + "://" + r.Ctx.Request.Host + path
}

func pairs(kv []any) (routing.Values, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("odd number of arguments")
	}
	values := make(routing.Values, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("argument %d is not a string key", i)
		}
		values[key] = kv[i+1]
	}
	return values, nil
}

// IsPost reports whether the request submits a form.
func (r *Request) IsPost() bool { return r.Ctx.Request.Method == http.MethodPost }

// Form returns the parsed request form (query plus body).
func (r *Request) Form() url.Values {
	if errParse := r.Ctx.Request.ParseForm(); errParse != nil {
		log.WithError(errParse).Debug("site: parse form")
	}
	return r.Ctx.Request.Form
}

// Submitted reports whether the form carried a named button.
func (r *Request) Submitted(name string) bool {
	_, ok := r.Form()[name]
	return ok
}

// Bind validates form against the posted values. A database failure during
// validation is kept and reported by the dispatcher once the handler returns.
func (r *Request) Bind(form *forms.Form) bool {
	valid := form.Validate(r.Form())
	if errForm := form.Err(); errForm != nil && r.bindErr == nil {
		r.bindErr = errForm
	}
	return valid
}

// ClientIP returns the client address as seen by gin.
func (r *Request) ClientIP() string { return r.Ctx.ClientIP() }

// Render records a 200 page response.
func (r *Request) Render(template string, data Data) error {
	return r.RenderStatus(http.StatusOK, template, data)
}

// RenderStatus records a page response with status.
func (r *Request) RenderStatus(status int, template string, data Data) error {
	r.response = &response{status: status, template: template, data: data}
	return nil
}

// Redirect records a 302 redirect to location.
func (r *Request) Redirect(location string) error {
	return r.RedirectStatus(http.StatusFound, location)
}

// RedirectStatus records a redirect with status.
func (r *Request) RedirectStatus(status int, location string) error {
	r.response = &response{status: status, location: location}
	return nil
}

// RedirectTo redirects to endpoint.
func (r *Request) RedirectTo(endpoint string, kv ...any) error {
	return r.Redirect(r.URLFor(endpoint, kv...))
}

// RedirectBack redirects to the "next" target when it is a same-site path,
// otherwise to endpoint.
func (r *Request) RedirectBack(endpoint string, kv ...any) error {
	if target := r.RedirectTarget(); target != "" {
		return r.Redirect(target)
	}
	return r.RedirectTo(endpoint, kv...)
}

// RedirectTarget returns the "next" argument when it points into this site.
func (r *Request) RedirectTarget() string {
	next := strings.TrimSpace(r.Form().Get("next"))
	if next == "" {
		return ""
	}
	parsed, errParse := url.Parse(next)
	if errParse != nil || parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}
	if !strings.HasPrefix(parsed.Path, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	if parsed.Path == r.Ctx.Request.URL.Path {
		return ""
	}
	return parsed.RequestURI()
}

// AddNavbar appends a navigation bar item.
func (r *Request) AddNavbar(endpoint, title string) {
	menu, _ := menuOf(endpoint)
	r.navbar = append(r.navbar, navEntry{menu: menu, endpoint: endpoint, title: title})
}

// AddMetanav appends a meta navigation item.
func (r *Request) AddMetanav(menu, endpoint, title string) {
	r.metanav = append(r.metanav, navEntry{menu: menu, endpoint: endpoint, title: title})
}

// AddCtxNavbar appends a contextual navigation item shown under its menu.
func (r *Request) AddCtxNavbar(endpoint, title string) {
	menu, submenu := menuOf(endpoint)
	r.ctxNav[menu] = append(r.ctxNav[menu], navEntry{menu: submenu, endpoint: endpoint, title: title})
}

func (r *Request) rollback() {
	if r.Tx == nil || r.closed {
		return
	}
	r.closed = true
	if errRollback := r.Tx.Rollback().Error; errRollback != nil {
		log.WithError(errRollback).Warn("site: rollback")
	}
}
