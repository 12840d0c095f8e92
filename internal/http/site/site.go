package site

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/http/routing"
	"github.com/UfSoft/ILog-OLD/internal/i18n"
	"github.com/UfSoft/ILog-OLD/internal/identity"
	"github.com/UfSoft/ILog-OLD/internal/mail"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/ratelimit"
	"github.com/UfSoft/ILog-OLD/internal/session"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/UfSoft/ILog-OLD/internal/templates"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HandlerFunc serves one endpoint. Handlers record their response on the
// request and return nil, or return an error for the dispatcher to map.
type HandlerFunc func(r *Request) error

// Deps are the collaborators shared by every request.
type Deps struct {
	DB          *gorm.DB
	Store       *config.Store
	I18n        *i18n.Service
	Renderer    *templates.Renderer
	Mailer      mail.Mailer
	Limiter     *ratelimit.Throttle
	Identity    *identity.Client
	BehindProxy bool
	Now         func() time.Time
}

// Site dispatches every request of the web application.
type Site struct {
	db          *gorm.DB
	store       *config.Store
	i18n        *i18n.Service
	renderer    *templates.Renderer
	mailer      mail.Mailer
	limiter     *ratelimit.Throttle
	identity    *identity.Client
	behindProxy bool
	now         func() time.Time

	urls     *routing.Map
	handlers map[string]HandlerFunc

	mu          sync.Mutex
	sessions    *session.Manager
	sessionKeys string

	seenMu sync.Mutex
	seen   map[string]struct{}
}

// New builds a Site. Handlers are attached with Register.
func New(deps Deps) (*Site, error) {
	if deps.DB == nil || deps.Store == nil || deps.Renderer == nil {
		return nil, errors.New("site: database, config store and renderer are required")
	}
	s := &Site{
		db:          deps.DB,
		store:       deps.Store,
		i18n:        deps.I18n,
		renderer:    deps.Renderer,
		mailer:      deps.Mailer,
		limiter:     deps.Limiter,
		identity:    deps.Identity,
		behindProxy: deps.BehindProxy,
		now:         deps.Now,
		urls:        URLMap(),
		handlers:    make(map[string]HandlerFunc),
		seen:        make(map[string]struct{}),
	}
	if s.i18n == nil {
		s.i18n = i18n.New()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// Register binds handler to endpoint.
func (s *Site) Register(endpoint string, handler HandlerFunc) {
	if !s.urls.Has(endpoint) {
		panic(fmt.Sprintf("site: register unknown endpoint %q", endpoint))
	}
	s.handlers[endpoint] = handler
}

// DB returns the shared connection pool.
func (s *Site) DB() *gorm.DB { return s.db }

// Store returns the instance configuration.
func (s *Site) Store() *config.Store { return s.store }

// I18n returns the locale service.
func (s *Site) I18n() *i18n.Service { return s.i18n }

// Mailer returns the outgoing mail service.
func (s *Site) Mailer() mail.Mailer { return s.mailer }

// Limiter returns the login throttle. It may be nil.
func (s *Site) Limiter() *ratelimit.Throttle { return s.limiter }

// Identity returns the third-party login client. It may be nil.
func (s *Site) Identity() *identity.Client { return s.identity }

// Renderer returns the template set.
func (s *Site) Renderer() *templates.Renderer { return s.renderer }

// Now returns the current UTC time.
func (s *Site) Now() time.Time { return s.now() }

// URLFor builds the path of endpoint.
func (s *Site) URLFor(endpoint string, values routing.Values) (string, error) {
	return s.urls.Build(endpoint, values)
}

// ExternalURL joins path to the configured base URL.
func (s *Site) ExternalURL(path string) string {
	base := strings.TrimRight(s.store.String(settings.URLKey), "/")
	return base + path
}

// sessionManager returns the cookie codec, rebuilt whenever the cookie name
// or the secret key change.
func (s *Site) sessionManager() (*session.Manager, error) {
	name := s.store.String(settings.CookieNameKey)
	if name == "" {
		name = settings.DefaultCookieName
	}
	secret := s.store.String(settings.SecretKeyKey)
	keys := name + "\x00" + secret

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions != nil && s.sessionKeys == keys {
		return s.sessions, nil
	}
	manager, errManager := session.NewManager(name, secret)
	if errManager != nil {
		return nil, fmt.Errorf("site: session manager: %w", errManager)
	}
	s.sessions, s.sessionKeys = manager, keys
	return manager, nil
}

// Handle is the gin entry point. It is installed as NoRoute so every path
// goes through the rule table.
func (s *Site) Handle(c *gin.Context) {
	r := &Request{
		Ctx:      c,
		Site:     s,
		User:     models.NewAnonymousUser(),
		Privs:    privileges.Set{},
		ctxNav:   make(map[string][]navEntry),
		response: nil,
	}
	r.bindTranslator(s.store.String(settings.LanguageKey))

	sessions, errSessions := s.sessionManager()
	if errSessions != nil {
		r.Session = session.New()
		s.handleError(r, errSessions)
		s.finish(r, nil)
		return
	}
	r.Session = sessions.Load(c.Request)

	r.Tx = s.db.WithContext(c.Request.Context()).Begin()
	if errBegin := r.Tx.Error; errBegin != nil {
		r.Tx = nil
		s.handleError(r, fmt.Errorf("site: begin transaction: %w", errBegin))
		s.finish(r, sessions)
		return
	}

	if errRun := s.run(r); errRun != nil {
		s.handleError(r, errRun)
	}
	if !r.closed {
		r.closed = true
		if errCommit := r.Tx.Commit().Error; errCommit != nil {
			s.handleError(r, fmt.Errorf("site: commit: %w", errCommit))
		}
	}
	s.finish(r, sessions)
}

// run walks the request through user binding, the site-wide checks and the
// endpoint handler.
func (s *Site) run(r *Request) error {
	if errBind := r.bindUser(); errBind != nil {
		return errBind
	}

	path := r.Ctx.Request.URL.Path
	if s.store.Bool(settings.MaintenanceModeKey) && !maintenanceExempt(path) &&
		!r.HasPrivilege(privileges.EnterAdminPanel) {
		r.Endpoint = "maintenance"
		return r.RenderStatus(http.StatusServiceUnavailable, "maintenance.html", nil)
	}

	if s.store.Bool(settings.ForceHTTPSKey) && !s.isSecure(r.Ctx.Request) {
		method := r.Ctx.Request.Method
		if method == http.MethodGet || method == http.MethodHead {
			target := "https://" + r.Ctx.Request.Host + r.Ctx.Request.URL.RequestURI()
			return r.RedirectStatus(http.StatusMovedPermanently, target)
		}
	}

	endpoint, values, errMatch := s.urls.Match(path)
	if errMatch != nil {
		return ErrNotFound
	}
	handler, ok := s.handlers[endpoint]
	if !ok {
		return ErrNotFound
	}
	r.Endpoint, r.Values = endpoint, values
	r.Ctx.Set("endpoint", endpoint)
	if errCall := s.call(handler, r); errCall != nil {
		return errCall
	}
	return r.bindErr
}

// call runs handler and turns a panic into an internal error unless errors
// should reach the hosting process.
func (s *Site) call(handler HandlerFunc, r *Request) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		if s.store.Bool(settings.PassthroughErrorsKey) {
			r.rollback()
			panic(recovered)
		}
		err = &panicError{value: recovered, stack: debug.Stack()}
	}()
	return handler(r)
}

func (s *Site) isSecure(req *http.Request) bool {
	if req.TLS != nil {
		return true
	}
	return s.behindProxy && strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}

// maintenanceExempt reports whether path stays reachable in maintenance mode.
func maintenanceExempt(path string) bool {
	for _, prefix := range []string{"/account", "/admin"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// finish renders the pending page, persists the session and writes the response.
func (s *Site) finish(r *Request, sessions *session.Manager) {
	c := r.Ctx
	resp := r.response
	if resp == nil {
		resp = &response{status: http.StatusInternalServerError, template: "500.html"}
	}

	var body []byte
	if resp.location == "" {
		page := r.buildPage(resp)
		rendered, errRender := s.renderer.RenderPage(resp.template, page)
		if errRender != nil {
			log.WithError(errRender).WithField("template", resp.template).Error("site: render failed")
			resp.status = http.StatusInternalServerError
			rendered = []byte(http.StatusText(http.StatusInternalServerError))
		}
		body = rendered
	}

	if sessions != nil {
		if errSave := sessions.Save(c.Writer, r.Session, s.isSecure(c.Request)); errSave != nil {
			log.WithError(errSave).Error("site: save session cookie")
		}
	}

	if resp.location != "" {
		c.Redirect(resp.status, resp.location)
		return
	}
	c.Data(resp.status, "text/html; charset=utf-8", body)
}
