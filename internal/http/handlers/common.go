package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/mail"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const mailTimeout = 20 * time.Second

// choices converts configuration choices into form choices.
func choices(list []config.Choice) []forms.Choice {
	out := make([]forms.Choice, 0, len(list))
	for _, item := range list {
		out = append(out, forms.Choice{Value: item.Value, Label: item.Label})
	}
	return out
}

func accountNav(r *site.Request) {
	if !r.User.IsSomebody() {
		return
	}
	r.AddNavbar("account.dashboard", r.T("My Account"))
	r.AddCtxNavbar("account.dashboard", r.T("Dashboard"))
	r.AddCtxNavbar("account.profile", r.T("Profile"))
}

func adminNav(r *site.Request) {
	r.AddNavbar("admin.index", r.T("Dashboard"))
	r.AddNavbar("admin.manage.groups", r.T("Manage"))
	r.AddNavbar("admin.options.basic", r.T("Options"))
}

func manageNav(r *site.Request) {
	adminNav(r)
	r.AddCtxNavbar("admin.manage.groups", r.T("Groups"))
	r.AddCtxNavbar("admin.manage.users", r.T("Users"))
	r.AddCtxNavbar("admin.manage.networks", r.T("Networks"))
	r.AddCtxNavbar("admin.manage.channels", r.T("Channels"))
	r.AddCtxNavbar("admin.manage.bots", r.T("Bots"))
}

// requireAdmin gates the admin panel and sets up its navigation.
func requireAdmin(r *site.Request, nav func(*site.Request)) error {
	if err := r.Require(privileges.Admin); err != nil {
		return err
	}
	nav(r)
	return nil
}

// afterSave redirects to the edit page when "save and continue" was pressed,
// otherwise to listEndpoint.
func afterSave(r *site.Request, listEndpoint, editEndpoint string, kv ...any) error {
	if r.Submitted("save_and_continue") {
		return r.RedirectTo(editEndpoint, kv...)
	}
	return r.RedirectTo(listEndpoint)
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int
	Pages   int
	PerPage int
	Total   int64
	PrevURL string
	NextURL string
}

// Offset returns the first row of the page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }

func newPagination(page, perPage int, total int64, urlFor func(page int) string) Pagination {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	p := Pagination{Page: page, Pages: pages, PerPage: perPage, Total: total}
	if page > 1 {
		p.PrevURL = urlFor(page - 1)
	}
	if page < pages {
		p.NextURL = urlFor(page + 1)
	}
	return p
}

// queryPage reads the "page" query argument.
func queryPage(r *site.Request) int {
	page, errConv := strconv.Atoi(r.Form().Get("page"))
	if errConv != nil || page < 1 {
		return 1
	}
	return page
}

// sendAccountMail renders tmpl for user and mails it. Failures are logged and
// flashed; they never abort the request.
func sendAccountMail(r *site.Request, user *models.User, tmpl, subject string) bool {
	mailer := r.Site.Mailer()
	if mailer == nil {
		log.WithField("user", user.Username).Warn("handlers: no mailer configured")
		return false
	}
	body, errBody := r.Site.Renderer().RenderMail(tmpl, map[string]any{
		"User":            user.Name(),
		"ConfirmationURL": r.ExternalURL("account.activate", "key", user.ActivationKey),
	})
	if errBody != nil {
		log.WithError(errBody).Error("handlers: render account mail")
		return false
	}

	ctx, cancel := context.WithTimeout(r.Ctx.Request.Context(), mailTimeout)
	defer cancel()
	errSend := mailer.Send(ctx, mail.Message{To: []string{user.Email}, Subject: r.T(subject), Body: body})
	if errSend != nil {
		log.WithError(errSend).WithField("to", user.Email).Error("handlers: send account mail")
		r.Flash(session.FlashError, r.T("The email to \"%s\" could not be sent.", user.Email))
		return false
	}
	return true
}

// deleteUser removes user and its rows. Claimed IRC identities and owned bots
// are detached, not deleted.
func deleteUser(tx *gorm.DB, user *models.User) error {
	if errDetach := tx.Model(&models.IrcIdentity{}).Where("user_id = ?", user.ID).
		Update("user_id", nil).Error; errDetach != nil {
		return fmt.Errorf("handlers: detach identities: %w", errDetach)
	}
	if errBots := tx.Model(&models.Bot{}).Where("user_id = ?", user.ID).
		Update("user_id", nil).Error; errBots != nil {
		return fmt.Errorf("handlers: detach bots: %w", errBots)
	}
	if errProviders := tx.Where("user_id = ?", user.ID).Delete(&models.Provider{}).Error; errProviders != nil {
		return fmt.Errorf("handlers: delete providers: %w", errProviders)
	}
	for _, assoc := range []string{"Privileges", "Groups"} {
		if errClear := tx.Model(user).Association(assoc).Clear(); errClear != nil {
			return fmt.Errorf("handlers: clear %s: %w", assoc, errClear)
		}
	}
	if errDelete := tx.Delete(user).Error; errDelete != nil {
		return fmt.Errorf("handlers: delete user: %w", errDelete)
	}
	return nil
}
