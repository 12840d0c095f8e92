package handlers

import (
	"fmt"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/security"
	"github.com/UfSoft/ILog-OLD/internal/session"
)

const usersPerPage = 20

// UserHandler manages user accounts.
type UserHandler struct {
	perPage int
}

// NewUserHandler returns the user handler.
func NewUserHandler() *UserHandler { return &UserHandler{perPage: usersPerPage} }

// List shows one page of users.
func (h *UserHandler) List(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var total int64
	if errCount := r.Tx.Model(&models.User{}).Count(&total).Error; errCount != nil {
		return fmt.Errorf("handlers: count users: %w", errCount)
	}
	pagination := newPagination(queryPage(r), h.perPage, total, func(page int) string {
		return r.URLFor("admin.manage.users", "page", page)
	})
	if pagination.Page > pagination.Pages {
		return site.ErrNotFound
	}
	var users []models.User
	errFind := r.Tx.Order("username").Offset(pagination.Offset()).Limit(h.perPage).Find(&users).Error
	if errFind != nil {
		return fmt.Errorf("handlers: list users: %w", errFind)
	}
	return r.Render("admin/manage/users.html", site.Data{"users": users, "pagination": pagination})
}

func (h *UserHandler) load(r *site.Request) (*models.User, error) {
	var user models.User
	if errFind := privileges.Preload(r.Tx).First(&user, r.Values.Int("user_id")).Error; errFind != nil {
		return nil, errFind
	}
	return &user, nil
}

// Edit creates a user or edits the one named by user_id.
func (h *UserHandler) Edit(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var user *models.User
	if r.Values.Int("user_id") != 0 {
		loaded, errLoad := h.load(r)
		if errLoad != nil {
			return errLoad
		}
		user = loaded
	}

	if r.IsPost() {
		switch {
		case r.Submitted("cancel"):
			return r.RedirectTo("admin.manage.users")
		case r.Submitted("delete") && user != nil:
			return r.RedirectTo("admin.manage.users.delete", "user_id", user.ID)
		}
	}

	i18n := r.Site.I18n()
	form, errForm := forms.NewEditUserForm(r.Tx, user, choices(i18n.Languages()), choices(i18n.Timezones()))
	if errForm != nil {
		return errForm
	}
	if r.IsPost() && r.Bind(form) {
		isNew := user == nil
		saved, errSave := h.save(r, user, form.Data)
		if errSave != nil {
			return errSave
		}
		if isNew {
			r.Flash(session.FlashAdd, r.T("User %s created successfully.", saved.Username))
		} else {
			r.Flash(session.FlashOK, r.T("User %s updated successfully.", saved.Username))
		}
		return afterSave(r, "admin.manage.users", "admin.manage.users.edit", "user_id", saved.ID)
	}

	return r.Render("admin/manage/edit_user.html", site.Data{
		"form":      form,
		"user":      user,
		"new":       user == nil,
		"deletable": user != nil && user.ID != r.User.ID,
	})
}

// save copies the allow-listed form fields onto user and persists it with
// its privileges and groups.
func (h *UserHandler) save(r *site.Request, user *models.User, data forms.Data) (*models.User, error) {
	if user == nil {
		user = models.NewUser(data.String("username"), data.String("email"))
	}
	user.Username = data.String("username")
	user.Email = data.String("email")
	user.DisplayName = strings.TrimSpace(data.String("display_name"))
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	user.Confirmed = data.Bool("confirmed")
	user.Banned = data.Bool("banned")
	if locale := data.String("locale"); locale != "" {
		user.Locale = locale
	}
	if timezone := data.String("timezone"); timezone != "" {
		user.Timezone = timezone
	}
	if password := data.String("password"); password != "" {
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			return nil, fmt.Errorf("handlers: hash password: %w", errHash)
		}
		user.PasswordHash = hash
	}

	granted, errBind := privileges.Bind(r.Tx, data.Strings("privileges"))
	if errBind != nil {
		return nil, errBind
	}
	var groups []models.Group
	if ids := data.Strings("groups"); len(ids) > 0 {
		if errFind := r.Tx.Where("id IN ?", ids).Find(&groups).Error; errFind != nil {
			return nil, fmt.Errorf("handlers: load groups: %w", errFind)
		}
	}

	if errSave := r.Tx.Omit("Privileges", "Groups", "Providers", "Identities", "Bots").Save(user).Error; errSave != nil {
		return nil, fmt.Errorf("handlers: save user: %w", errSave)
	}
	if errReplace := r.Tx.Model(user).Association("Privileges").Replace(granted); errReplace != nil {
		return nil, fmt.Errorf("handlers: set user privileges: %w", errReplace)
	}
	if errReplace := r.Tx.Model(user).Association("Groups").Replace(groups); errReplace != nil {
		return nil, fmt.Errorf("handlers: set user groups: %w", errReplace)
	}
	return user, nil
}

// Delete removes a user after confirmation. Administrators cannot delete
// their own account here.
func (h *UserHandler) Delete(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	user, errLoad := h.load(r)
	if errLoad != nil {
		return errLoad
	}
	if user.ID == r.User.ID {
		r.Flash(session.FlashError, r.T("You cannot delete yourself."))
		return r.RedirectTo("admin.manage.users.edit", "user_id", user.ID)
	}

	form := forms.NewConfirmForm("delete_user")
	if r.IsPost() {
		if r.Submitted("cancel") {
			return r.RedirectTo("admin.manage.users.edit", "user_id", user.ID)
		}
		if r.Submitted("confirm") {
			if errDelete := deleteUser(r.Tx, user); errDelete != nil {
				return errDelete
			}
			r.Flash(session.FlashRemove, r.T("User %s deleted.", user.Username))
			return r.RedirectTo("admin.manage.users")
		}
	}
	return r.Render("admin/manage/delete_user.html", site.Data{"form": form, "user": user})
}
