package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/mail"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrNotFound renders the 404 page.
	ErrNotFound = errors.New("site: not found")
	// ErrForbidden sends anonymous users to the login page and renders 403 otherwise.
	ErrForbidden = errors.New("site: forbidden")
)

const notifyTimeout = 10 * time.Second

// HTTPError renders a plain error page with Status.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("site: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("site: %d %s", e.Status, http.StatusText(e.Status))
}

// panicError carries a recovered handler panic.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("site: panic: %v", e.value) }

// Incident describes an internal error shown to administrators and mailed
// to them.
type Incident struct {
	ID       string
	Time     time.Time
	Method   string
	URL      string
	Endpoint string
	Username string
	Error    string
	Stack    string
}

func (s *Site) handleError(r *Request, err error) {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, forms.ErrNotFound):
		r.rollback()
		_ = r.RenderStatus(http.StatusNotFound, "404.html", nil)
	case errors.Is(err, ErrForbidden):
		r.rollback()
		if !r.User.IsSomebody() {
			_ = r.RedirectTo("account.login", "next", r.Ctx.Request.URL.RequestURI())
			return
		}
		_ = r.RenderStatus(http.StatusForbidden, "403.html", nil)
	case errors.As(err, &httpErr):
		r.rollback()
		_ = r.RenderStatus(httpErr.Status, "error.html", Data{
			"status":  httpErr.Status,
			"title":   http.StatusText(httpErr.Status),
			"message": httpErr.Message,
		})
	default:
		s.internalError(r, err)
	}
}

// internalError rolls back, logs the incident and picks the page: details
// for administrators, a generic page plus a notification mail for everyone
// else unless an administrator already saw the same error.
func (s *Site) internalError(r *Request, err error) {
	r.rollback()
	incident := Incident{
		ID:       uuid.NewString(),
		Time:     s.now(),
		Method:   r.Ctx.Request.Method,
		URL:      r.Ctx.Request.URL.String(),
		Endpoint: r.Endpoint,
		Username: r.User.Username,
		Error:    err.Error(),
	}
	var panicErr *panicError
	if errors.As(err, &panicErr) {
		incident.Stack = string(panicErr.stack)
	}
	log.WithError(err).WithFields(log.Fields{
		"incident": incident.ID,
		"endpoint": incident.Endpoint,
		"url":      incident.URL,
	}).Error("site: internal error")

	signature := incident.Endpoint + "\x00" + incident.Error
	if r.Privs.Contains(privileges.Admin) {
		s.markSeen(signature)
		_ = r.RenderStatus(http.StatusInternalServerError, "internal_error.html", Data{"incident": incident})
		return
	}
	if !s.wasSeen(signature) {
		s.notifyAdmins(r.Ctx.Request.Context(), incident)
	}
	_ = r.RenderStatus(http.StatusInternalServerError, "500.html", Data{"incident": incident})
}

func (s *Site) markSeen(signature string) {
	s.seenMu.Lock()
	s.seen[signature] = struct{}{}
	s.seenMu.Unlock()
}

func (s *Site) wasSeen(signature string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	_, ok := s.seen[signature]
	return ok
}

// notifyAdmins mails the incident to every administrator. Failures are logged.
func (s *Site) notifyAdmins(parent context.Context, incident Incident) {
	if s.mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), notifyTimeout)
	defer cancel()

	admins, errAdmins := AdminUsers(s.db.WithContext(ctx))
	if errAdmins != nil {
		log.WithError(errAdmins).Warn("site: load administrators for notification")
		return
	}
	recipients := make([]string, 0, len(admins))
	for _, admin := range admins {
		if admin.Email != "" {
			recipients = append(recipients, admin.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}
	body, errBody := s.renderer.RenderMail("error_notification.txt", map[string]any{
		"Incident": incident,
		"SiteURL":  s.store.String(settings.URLKey),
	})
	if errBody != nil {
		log.WithError(errBody).Warn("site: render error notification")
		return
	}
	msg := mail.Message{
		To:      recipients,
		Subject: "ILog internal error " + incident.ID,
		Body:    body,
	}
	if errSend := s.mailer.Send(ctx, msg); errSend != nil {
		log.WithError(errSend).WithField("incident", incident.ID).Warn("site: send error notification")
	}
}

// AdminUsers returns the users holding ILOG_ADMIN directly or through a group.
func AdminUsers(conn *gorm.DB) ([]models.User, error) {
	direct := conn.Table("user_privileges").
		Select("user_privileges.user_id").
		Joins("JOIN privileges ON privileges.id = user_privileges.privilege_id").
		Where("privileges.name = ?", privileges.Admin)
	viaGroup := conn.Table("group_users").
		Select("group_users.user_id").
		Joins("JOIN group_privileges ON group_privileges.group_id = group_users.group_id").
		Joins("JOIN privileges ON privileges.id = group_privileges.privilege_id").
		Where("privileges.name = ?", privileges.Admin)

	var users []models.User
	errFind := conn.Model(&models.User{}).
		Where("id IN (?) OR id IN (?)", direct, viaGroup).
		Order("id").
		Find(&users).Error
	if errFind != nil {
		return nil, fmt.Errorf("site: load administrators: %w", errFind)
	}
	return users, nil
}
