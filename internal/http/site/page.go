package site

import (
	"time"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	log "github.com/sirupsen/logrus"
)

// Page is the value every template executes against.
type Page struct {
	Core Core
	User *models.User
	Form *forms.Form
	Data Data
	Lang string
	Path string

	r *Request
}

func (r *Request) buildPage(resp *response) *Page {
	page := &Page{
		User: r.User,
		Data: resp.data,
		Lang: r.translator.Tag().String(),
		Path: r.Ctx.Request.URL.Path,
		r:    r,
	}
	if page.Data == nil {
		page.Data = Data{}
	}
	if form, ok := page.Data["form"].(*forms.Form); ok {
		page.Form = form
	}
	page.Core = r.buildCore()
	return page
}

// T translates key.
func (p *Page) T(key string, args ...any) string { return p.r.T(key, args...) }

// URL builds the path of endpoint from key/value pairs.
func (p *Page) URL(endpoint string, kv ...any) string { return p.r.URLFor(endpoint, kv...) }

// Static returns the URL of an embedded asset.
func (p *Page) Static(name string) string { return StaticPrefix + "/" + name }

// Has reports whether the viewer holds the privilege expression.
func (p *Page) Has(expr string) bool { return p.r.HasPrivilege(expr) }

// DateTime formats t in the viewer timezone.
func (p *Page) DateTime(t any) string { return p.format(t, "2006-01-02 15:04:05 MST") }

// Date formats the date part of t in the viewer timezone.
func (p *Page) Date(t any) string { return p.format(t, "2006-01-02") }

// Time formats the clock part of t in the viewer timezone.
func (p *Page) Time(t any) string { return p.format(t, "15:04:05") }

func (p *Page) format(value any, layout string) string {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return ""
		}
		t = *v
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.In(p.r.Location()).Format(layout)
}

// Avatar returns the gravatar URL of user.
func (p *Page) Avatar(user *models.User, size int) string {
	if user == nil || user.Email == "" {
		return ""
	}
	store := p.r.Site.store
	avatar, errAvatar := user.GravatarURL(models.Gravatar{
		URL:      store.String(settings.GravatarURLKey),
		Fallback: store.String(settings.GravatarFallbackKey),
		Rating:   store.String(settings.GravatarRatingKey),
	}, size)
	if errAvatar != nil {
		log.WithError(errAvatar).Debug("site: gravatar")
		return ""
	}
	return avatar
}
