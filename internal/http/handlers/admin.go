package handlers

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/session"
	"github.com/UfSoft/ILog-OLD/internal/settings"
)

// AdminHandler serves the admin dashboard and the read-only listings.
type AdminHandler struct{}

// NewAdminHandler returns the admin handler.
func NewAdminHandler() *AdminHandler { return &AdminHandler{} }

// Index shows row counts and the public configuration.
func (h *AdminHandler) Index(r *site.Request) error {
	if errAdmin := requireAdmin(r, adminNav); errAdmin != nil {
		return errAdmin
	}
	counts := site.Data{}
	for key, model := range map[string]any{
		"users":    &models.User{},
		"groups":   &models.Group{},
		"networks": &models.Network{},
		"channels": &models.Channel{},
		"events":   &models.IrcEvent{},
	} {
		var n int64
		if errCount := r.Tx.Model(model).Count(&n).Error; errCount != nil {
			return fmt.Errorf("handlers: count %s: %w", key, errCount)
		}
		counts[key] = n
	}
	counts["config"] = r.Site.Store().PublicList(true)
	return r.Render("admin/index.html", counts)
}

// Channels lists every logged channel.
func (h *AdminHandler) Channels(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var channels []models.Channel
	if errFind := r.Tx.Order("network_name, name").Find(&channels).Error; errFind != nil {
		return fmt.Errorf("handlers: list channels: %w", errFind)
	}
	return r.Render("admin/manage/channels.html", site.Data{"channels": channels})
}

// Bots lists the bots with their owners and networks.
func (h *AdminHandler) Bots(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var bots []models.Bot
	if errFind := r.Tx.Preload("Owner").Preload("Participations").Order("name").Find(&bots).Error; errFind != nil {
		return fmt.Errorf("handlers: list bots: %w", errFind)
	}
	return r.Render("admin/manage/bots.html", site.Data{"bots": bots})
}

type optionPage struct {
	endpoint string
	label    string
	title    string
	bindings []forms.ConfigBinding
}

func bind(key string, opts ...forms.Option) forms.ConfigBinding {
	return forms.ConfigBinding{Name: key, Key: key, Options: opts}
}

func secret(key string) forms.ConfigBinding {
	return bind(key, forms.WithWidget(forms.WidgetPassword),
		forms.Help("Leave empty to keep the current value."))
}

// optionPages are the config-backed option forms in navigation order.
var optionPages = []optionPage{
	{endpoint: "admin.options.basic", label: "Basic", title: "Basic Options", bindings: []forms.ConfigBinding{
		bind(settings.URLKey),
		bind(settings.LanguageKey),
		bind(settings.TimezoneKey),
		bind(settings.MaintenanceModeKey),
	}},
	{endpoint: "admin.options.advanced", label: "Advanced", title: "Advanced Options", bindings: []forms.ConfigBinding{
		bind(settings.DatabaseURIKey),
		bind(settings.DatabaseDebugKey),
		bind(settings.CookieNameKey),
		secret(settings.SecretKeyKey),
		bind(settings.ForceHTTPSKey),
		bind(settings.PassthroughErrorsKey),
		bind(settings.LoginAttemptsKey),
		bind(settings.LoginWindowKey),
		bind(settings.RateLimitRedisEnabledKey),
		bind(settings.RateLimitRedisAddrKey),
		secret(settings.RateLimitRedisPasswordKey),
		bind(settings.RateLimitRedisDBKey),
		bind(settings.RateLimitRedisPrefixKey),
	}},
	{endpoint: "admin.options.rpxnow", label: "RPXNow", title: "RPXNow Options", bindings: []forms.ConfigBinding{
		bind(settings.RPXAppDomainKey),
		bind(settings.RPXAPIKeyKey),
	}},
	{endpoint: "admin.options.gravatar", label: "Gravatar", title: "Gravatar Options", bindings: []forms.ConfigBinding{
		bind(settings.GravatarURLKey),
		bind(settings.GravatarFallbackKey),
		bind(settings.GravatarRatingKey),
	}},
	{endpoint: "admin.options.email", label: "E-Mail", title: "E-Mail Options", bindings: []forms.ConfigBinding{
		bind(settings.EmailKey),
		bind(settings.SMTPHostKey),
		bind(settings.SMTPPortKey),
		bind(settings.SMTPUserKey),
		secret(settings.SMTPPasswordKey),
		bind(settings.SMTPFromNameKey),
		bind(settings.SMTPUseTLSKey),
		bind(settings.EmailSignatureKey),
		bind(settings.LogEmailOnlyKey),
	}},
	{endpoint: "admin.options.cache", label: "Cache", title: "Cache Options", bindings: []forms.ConfigBinding{
		bind(settings.CacheSystemKey),
		bind(settings.CacheTimeoutKey),
		bind(settings.EagerCachingKey),
		bind(settings.MemcachedServersKey),
		bind(settings.FilesystemCachePathKey),
	}},
}

// OptionsHandler edits the instance configuration.
type OptionsHandler struct{}

// NewOptionsHandler returns the options handler.
func NewOptionsHandler() *OptionsHandler { return &OptionsHandler{} }

func optionsNav(r *site.Request) {
	adminNav(r)
	for _, page := range optionPages {
		r.AddCtxNavbar(page.endpoint, r.T(page.label))
	}
}

func (h *OptionsHandler) handler(page optionPage) site.HandlerFunc {
	return func(r *site.Request) error {
		if errAdmin := requireAdmin(r, optionsNav); errAdmin != nil {
			return errAdmin
		}
		store := r.Site.Store()
		form := forms.NewConfigForm(page.endpoint, store, page.bindings)
		if r.IsPost() && r.Bind(form.Form) {
			if errApply := form.Apply(store); errApply != nil {
				return fmt.Errorf("handlers: save %s: %w", page.endpoint, errApply)
			}
			r.Flash(session.FlashConfigure, r.T("Configuration altered successfully."))
			return r.RedirectTo(page.endpoint)
		}
		return r.Render("admin/options.html", site.Data{"form": form.Form, "title": page.title})
	}
}
