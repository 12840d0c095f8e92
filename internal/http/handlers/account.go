package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/identity"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/security"
	"github.com/UfSoft/ILog-OLD/internal/session"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// registrationExpiry is how long an unactivated registration is kept.
const registrationExpiry = 30 * 24 * time.Hour

// AccountHandler serves login, registration and the account panel.
type AccountHandler struct {
	expiry time.Duration
}

// NewAccountHandler returns the account handler.
func NewAccountHandler() *AccountHandler {
	return &AccountHandler{expiry: registrationExpiry}
}

// rpxURL returns the sign-in widget URL posting back to endpoint, or "" when
// RPXNow is not configured.
func rpxURL(r *site.Request, endpoint string) string {
	domain := strings.TrimSpace(r.Site.Store().String(settings.RPXAppDomainKey))
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return strings.TrimRight(domain, "/") + "/openid/v2/signin?token_url=" + url.QueryEscape(r.ExternalURL(endpoint))
}

// Login checks the credentials and binds the session.
func (h *AccountHandler) Login(r *site.Request) error {
	if r.User.IsSomebody() {
		r.Flash(session.FlashInfo, r.T("You are already logged in."))
		return r.RedirectBack("account.dashboard")
	}

	form := forms.NewLoginForm(r.Tx)
	status := http.StatusOK
	if r.IsPost() {
		if h.throttled(r) {
			status = http.StatusTooManyRequests
			form.AddError(r.T("Too many login attempts. Please try again later."))
		} else if r.Bind(form.Form) {
			account := form.Account
			if errLogin := r.Login(account, form.Data.Bool("permanent")); errLogin != nil {
				return errLogin
			}
			if limiter := r.Site.Limiter(); limiter != nil {
				limiter.Succeeded(r.Ctx.Request.Context(), r.ClientIP(), r.Form().Get("username"))
			}
			r.Flash(session.FlashOK, r.T("Welcome %s!", account.Name()))
			if !account.Active() {
				r.Flash(session.FlashWarning, r.T("Your account is not activated yet. Check your email for the activation link."))
			}
			return r.RedirectBack("account.dashboard")
		}
	}
	return r.RenderStatus(status, "account/login.html", site.Data{
		"form":    form.Form,
		"next":    r.RedirectTarget(),
		"rpx_url": rpxURL(r, "account.rpx"),
	})
}

func (h *AccountHandler) throttled(r *site.Request) bool {
	limiter := r.Site.Limiter()
	if limiter == nil {
		return false
	}
	decision, errAttempt := limiter.Attempt(r.Ctx.Request.Context(), r.ClientIP(), r.Form().Get("username"))
	if errAttempt != nil {
		log.WithError(errAttempt).Warn("handlers: login rate limit")
		return false
	}
	if !decision.Allowed {
		r.Ctx.Header("Retry-After", strconv.Itoa(max(int(time.Until(decision.RetryAt).Seconds()), 1)))
	}
	return !decision.Allowed
}

// Logout clears the session.
func (h *AccountHandler) Logout(r *site.Request) error {
	if r.User.IsSomebody() {
		r.Logout()
		r.Flash(session.FlashInfo, r.T("You were logged out successfully."))
	}
	return r.RedirectBack("index")
}

// authInfo resolves the posted RPX token into a profile. ok is false when the
// response was already recorded.
func (h *AccountHandler) authInfo(r *site.Request, failure string) (*identity.Profile, bool) {
	profile, errInfo := r.Site.Identity().AuthInfo(r.Ctx.Request.Context(), r.Form().Get("token"))
	if errInfo != nil {
		log.WithError(errInfo).Warn("handlers: rpx auth info")
		r.Flash(session.FlashError, r.T("The login provider could not verify your identity."))
		_ = r.RedirectTo(failure)
		return nil, false
	}
	return profile, true
}

func profileJSON(profile *identity.Profile) datatypes.JSON {
	raw, errMarshal := json.Marshal(profile)
	if errMarshal != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// RPX logs in through a third-party provider. Unknown identifiers continue
// with the registration form.
func (h *AccountHandler) RPX(r *site.Request) error {
	if !r.IsPost() {
		return &site.HTTPError{Status: http.StatusMethodNotAllowed}
	}
	profile, ok := h.authInfo(r, "account.login")
	if !ok {
		return nil
	}

	var provider models.Provider
	errFind := r.Tx.Preload("User").Where("identifier = ?", profile.Identifier).First(&provider).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		if errPending := r.Session.SetPending(profile); errPending != nil {
			return fmt.Errorf("handlers: store pending profile: %w", errPending)
		}
		r.Flash(session.FlashInfo, r.T("Please finish your registration."))
		return r.RedirectTo("account.register")
	case errFind != nil:
		return fmt.Errorf("handlers: load provider: %w", errFind)
	}
	if provider.User == nil {
		return site.ErrNotFound
	}
	if provider.User.Banned {
		r.Flash(session.FlashError, r.T("This account is banned."))
		return r.RedirectTo("account.login")
	}

	if errUpdate := r.Tx.Model(&provider).Update("profile", profileJSON(profile)).Error; errUpdate != nil {
		return fmt.Errorf("handlers: update provider profile: %w", errUpdate)
	}
	if errLogin := r.Login(provider.User, false); errLogin != nil {
		return errLogin
	}
	r.Flash(session.FlashOK, r.T("Welcome %s!", r.User.Name()))
	return r.RedirectBack("account.dashboard")
}

// RPXProviders associates another provider with the logged in account.
func (h *AccountHandler) RPXProviders(r *site.Request) error {
	if errLogin := r.RequireLogin(); errLogin != nil {
		return errLogin
	}
	if !r.IsPost() {
		return r.RedirectTo("account.profile")
	}
	profile, ok := h.authInfo(r, "account.profile")
	if !ok {
		return nil
	}

	var existing models.Provider
	errFind := r.Tx.Where("identifier = ?", profile.Identifier).First(&existing).Error
	switch {
	case errFind == nil && existing.UserID == r.User.ID:
		r.Flash(session.FlashInfo, r.T("This login provider is already associated with your account."))
	case errFind == nil:
		r.Flash(session.FlashError, r.T("This login provider is associated with another account."))
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		provider := models.Provider{
			Identifier:   profile.Identifier,
			ProviderName: profile.ProviderName,
			UserID:       r.User.ID,
			Profile:      profileJSON(profile),
		}
		if errCreate := r.Tx.Create(&provider).Error; errCreate != nil {
			return fmt.Errorf("handlers: create provider: %w", errCreate)
		}
		r.Flash(session.FlashAdd, r.T("Login provider %s added.", profile.ProviderName))
	default:
		return fmt.Errorf("handlers: load provider: %w", errFind)
	}
	return r.RedirectTo("account.profile")
}

// Register creates an account, optionally bound to the pending provider.
func (h *AccountHandler) Register(r *site.Request) error {
	if r.User.IsSomebody() {
		r.Flash(session.FlashInfo, r.T("You are already registered."))
		return r.RedirectTo("account.dashboard")
	}

	form := forms.NewRegisterForm(r.Tx)
	var pending identity.Profile
	hasPending := r.Session.LoadPending(&pending)
	if hasPending {
		form.Fill(forms.Data{
			"username":     pending.PreferredUsername,
			"display_name": pending.BestName(),
			"email":        pending.BestEmail(),
			"identifier":   pending.Identifier,
			"provider":     pending.ProviderName,
		})
	}

	if r.IsPost() && r.Bind(form) {
		identifier := form.Data.String("identifier")
		switch {
		case identifier != "" && (!hasPending || identifier != pending.Identifier):
			form.AddError(r.T("The login provider details do not match. Please sign in with your provider again."))
		case identifier != "":
			var count int64
			if errCount := r.Tx.Model(&models.Provider{}).Where("identifier = ?", identifier).Count(&count).Error; errCount != nil {
				return fmt.Errorf("handlers: check provider: %w", errCount)
			}
			if count > 0 {
				form.AddError(r.T("This login provider is already associated with an account."))
			}
		}
		if len(form.Errors) == 0 {
			var profile *identity.Profile
			if identifier != "" {
				profile = &pending
			}
			user, errCreate := h.createAccount(r, form.Data, profile)
			if errCreate != nil {
				return errCreate
			}
			r.Session.ClearPending()
			if sendAccountMail(r, user, "activate_account.txt", "Activate your ILog account") {
				r.Flash(session.FlashInfo, r.T("An email with the activation link was sent to %s.", user.Email))
			}
			if errLogin := r.Login(user, false); errLogin != nil {
				return errLogin
			}
			r.Flash(session.FlashOK, r.T("Your account was created."))
			return r.RedirectTo("account.dashboard")
		}
	}

	data := site.Data{"form": form}
	if hasPending {
		data["provider"] = pending.ProviderName
	}
	return r.Render("account/register.html", data)
}

func (h *AccountHandler) createAccount(r *site.Request, data forms.Data, profile *identity.Profile) (*models.User, error) {
	store := r.Site.Store()
	user := models.NewUser(data.String("username"), data.String("email"))
	if name := strings.TrimSpace(data.String("display_name")); name != "" {
		user.DisplayName = name
	}
	if password := data.String("new_password"); password != "" {
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			return nil, fmt.Errorf("handlers: hash password: %w", errHash)
		}
		user.PasswordHash = hash
	}
	user.Locale = r.Translator().Tag().String()
	user.Timezone = store.String(settings.TimezoneKey)
	user.ActivationKey = "pending"
	if errCreate := r.Tx.Create(user).Error; errCreate != nil {
		return nil, fmt.Errorf("handlers: create user: %w", errCreate)
	}

	key, errKey := security.NewActivationKey(store.String(settings.SecretKeyKey), user.ID, r.Site.Now())
	if errKey != nil {
		return nil, errKey
	}
	user.ActivationKey = key
	if errUpdate := r.Tx.Model(user).UpdateColumn("activation_key", key).Error; errUpdate != nil {
		return nil, fmt.Errorf("handlers: store activation key: %w", errUpdate)
	}

	if profile != nil {
		provider := models.Provider{
			Identifier:   profile.Identifier,
			ProviderName: profile.ProviderName,
			UserID:       user.ID,
			Profile:      profileJSON(profile),
		}
		if errProvider := r.Tx.Create(&provider).Error; errProvider != nil {
			return nil, fmt.Errorf("handlers: attach provider: %w", errProvider)
		}
	}
	return user, nil
}

// Activate confirms an activation key and grants the account panel.
func (h *AccountHandler) Activate(r *site.Request) error {
	key := r.Values.String("key")
	if key == "" {
		key = strings.TrimSpace(r.Form().Get("key"))
	}
	if key == "" {
		return r.Render("account/activate.html", nil)
	}
	if errCleanup := h.dropStaleRegistrations(r.Tx, r.Site.Now()); errCleanup != nil {
		return errCleanup
	}

	user, errLookup := h.lookupActivation(r, key)
	if errLookup != nil {
		return errLookup
	}
	if user == nil {
		r.Flash(session.FlashError, r.T("The activation key is not valid or has expired."))
		return r.Render("account/activate.html", nil)
	}

	if errUpdate := r.Tx.Model(user).UpdateColumn("activation_key", models.Activated).Error; errUpdate != nil {
		return fmt.Errorf("handlers: activate user: %w", errUpdate)
	}
	granted, errBind := privileges.Bind(r.Tx, []string{privileges.EnterAccountPanel})
	if errBind != nil {
		return errBind
	}
	if errAppend := r.Tx.Model(user).Association("Privileges").Append(granted); errAppend != nil {
		return fmt.Errorf("handlers: grant account panel: %w", errAppend)
	}

	r.Flash(session.FlashOK, r.T("Your account is now active."))
	if !r.User.IsSomebody() || r.User.ID == user.ID {
		user.Privileges = nil
		user.Groups = nil
		if errLogin := r.Login(user, false); errLogin != nil {
			return errLogin
		}
	}
	return r.RedirectTo("account.dashboard")
}

// lookupActivation returns nil without error when key matches no account.
func (h *AccountHandler) lookupActivation(r *site.Request, key string) (*models.User, error) {
	userID, errParse := security.ParseActivationKey(r.Site.Store().String(settings.SecretKeyKey), key)
	if errParse != nil {
		return nil, nil
	}
	var user models.User
	errFind := r.Tx.Where("id = ? AND activation_key = ?", userID, key).First(&user).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		return nil, nil
	case errFind != nil:
		return nil, fmt.Errorf("handlers: load activation: %w", errFind)
	}
	return &user, nil
}

// dropStaleRegistrations deletes never activated accounts older than the
// registration expiry. Accounts holding privileges were active once and are
// only waiting for re-activation, so they are kept.
func (h *AccountHandler) dropStaleRegistrations(tx *gorm.DB, now time.Time) error {
	granted := tx.Table("user_privileges").Select("user_id")
	var stale []models.User
	errFind := tx.Where("activation_key <> ? AND register_date < ?", models.Activated, now.Add(-h.expiry)).
		Where("id NOT IN (?)", granted).
		Find(&stale).Error
	if errFind != nil {
		return fmt.Errorf("handlers: find stale registrations: %w", errFind)
	}
	for i := range stale {
		if errDelete := deleteUser(tx, &stale[i]); errDelete != nil {
			return errDelete
		}
	}
	if len(stale) > 0 {
		log.WithField("count", len(stale)).Info("handlers: removed stale registrations")
	}
	return nil
}

// Profile edits the account settings.
func (h *AccountHandler) Profile(r *site.Request) error {
	if errLogin := r.RequireLogin(); errLogin != nil {
		return errLogin
	}
	if r.IsPost() && r.Submitted("delete") {
		return r.RedirectTo("account.delete")
	}
	accountNav(r)

	i18n := r.Site.I18n()
	form := forms.NewProfileForm(r.Tx, r.User, choices(i18n.Languages()), choices(i18n.Timezones()))
	if r.IsPost() && r.Bind(form) {
		user := r.User
		updates := map[string]any{
			"display_name": strings.TrimSpace(form.Data.String("display_name")),
			"locale":       form.Data.String("locale"),
			"timezone":     form.Data.String("timezone"),
		}
		if password := form.Data.String("new_password"); password != "" {
			hash, errHash := security.HashPassword(password)
			if errHash != nil {
				return fmt.Errorf("handlers: hash password: %w", errHash)
			}
			updates["passwd_hash"] = hash
		}
		email := form.Data.String("email")
		emailChanged := email != user.Email
		if emailChanged {
			key, errKey := security.NewActivationKey(r.Site.Store().String(settings.SecretKeyKey), user.ID, r.Site.Now())
			if errKey != nil {
				return errKey
			}
			updates["email"] = email
			updates["activation_key"] = key
			user.Email = email
			user.ActivationKey = key
		}
		if errUpdate := r.Tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("handlers: update profile: %w", errUpdate)
		}
		if emailChanged && sendAccountMail(r, user, "reactivate_account.txt", "Confirm your new email address") {
			r.Flash(session.FlashInfo, r.T("Your email address changed. Check %s for the confirmation link.", email))
		}
		r.Flash(session.FlashOK, r.T("Your profile was updated."))
		return r.RedirectTo("account.profile")
	}

	var providers []models.Provider
	if errFind := r.Tx.Where("user_id = ?", r.User.ID).Order("provider").Find(&providers).Error; errFind != nil {
		return fmt.Errorf("handlers: list providers: %w", errFind)
	}
	return r.Render("account/profile.html", site.Data{
		"form":      form,
		"providers": providers,
		"rpx_url":   rpxURL(r, "account.rpx_providers"),
	})
}

// Dashboard shows the account overview.
func (h *AccountHandler) Dashboard(r *site.Request) error {
	if errLogin := r.RequireLogin(); errLogin != nil {
		return errLogin
	}
	accountNav(r)
	var identities []models.IrcIdentity
	if errFind := r.Tx.Where("user_id = ?", r.User.ID).Order("network_name, nick").Find(&identities).Error; errFind != nil {
		return fmt.Errorf("handlers: list identities: %w", errFind)
	}
	return r.Render("account/dashboard.html", site.Data{"identities": identities})
}

// Delete removes the account after confirmation.
func (h *AccountHandler) Delete(r *site.Request) error {
	if errLogin := r.RequireLogin(); errLogin != nil {
		return errLogin
	}
	accountNav(r)
	form := forms.NewConfirmForm("delete_account")
	if r.IsPost() {
		if r.Submitted("cancel") {
			return r.RedirectTo("account.profile")
		}
		if r.Submitted("confirm") {
			name := r.User.Name()
			if errDelete := deleteUser(r.Tx, r.User); errDelete != nil {
				return errDelete
			}
			r.Logout()
			r.Flash(session.FlashRemove, r.T("The account of %s was deleted.", name))
			return r.RedirectTo("index")
		}
	}
	return r.Render("account/delete.html", site.Data{"form": form})
}
