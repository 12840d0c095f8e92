package forms

import (
	"errors"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/security"
	"github.com/UfSoft/ILog-OLD/internal/validate"
	"gorm.io/gorm"
)

var (
	errPasswordMismatch = errors.New("The two passwords do not match.")
	errPasswordRequired = errors.New("You have to choose a password.")
	errBadLogin         = errors.New("Invalid username or password.")
	errUserBanned       = errors.New("This account is banned.")
)

const (
	usernameMaxLength    = 25
	displayNameMaxLength = 60
)

func usernameField(tx *gorm.DB, exclude uint64) *Field {
	return Text("username", "Username", Required(), MaxLength(usernameMaxLength),
		Validate(StringValidator(validate.NotEmpty), uniqueUser(tx, "username", exclude,
			`The username "%s" is already taken.`)))
}

func emailField(tx *gorm.DB, exclude uint64) *Field {
	return Text("email", "E-Mail", Required(),
		Validate(StringValidator(validate.Email), uniqueUser(tx, "email", exclude,
			`The email address "%s" is already registered with us.`)))
}

func uniqueUser(tx *gorm.DB, column string, exclude uint64, message string) Validator {
	return StringValidator(func(value string) error {
		query := tx.Model(&models.User{}).Where("LOWER("+column+") = ?", strings.ToLower(value))
		if exclude != 0 {
			query = query.Where("id <> ?", exclude)
		}
		var count int64
		if errCount := query.Count(&count).Error; errCount != nil {
			return &StorageError{Err: errCount}
		}
		if count > 0 {
			return &FieldError{Field: column, Message: strings.Replace(message, "%s", value, 1)}
		}
		return nil
	})
}

func matchPasswords(field, repeat string, required func(Data) bool) func(Data) error {
	return func(data Data) error {
		if data.String(field) != data.String(repeat) {
			return &FieldError{Field: repeat, Message: errPasswordMismatch.Error()}
		}
		if required != nil && required(data) && data.String(field) == "" {
			return &FieldError{Field: field, Message: errPasswordRequired.Error()}
		}
		return nil
	}
}

// LoginForm checks a username and password pair.
type LoginForm struct {
	*Form
	Account *models.User
}

// NewLoginForm builds the login form. On success Account holds the user.
func NewLoginForm(tx *gorm.DB) *LoginForm {
	lf := &LoginForm{Form: New("login",
		Text("username", "Username", Required()),
		Password("password", "Password", Required()),
		Bool("permanent", "Remember me"),
	)}
	lf.Check(func(data Data) error {
		var account models.User
		errFind := tx.Where("username = ?", data.String("username")).First(&account).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errBadLogin
			}
			return &StorageError{Err: errFind}
		}
		if !security.CheckPassword(account.PasswordHash, data.String("password")) {
			return errBadLogin
		}
		if account.Banned {
			return errUserBanned
		}
		lf.Account = &account
		return nil
	})
	return lf
}

// NewRegisterForm builds the registration form. A password is optional only
// when a provider identifier is attached.
func NewRegisterForm(tx *gorm.DB) *Form {
	return New("register",
		usernameField(tx, 0),
		Text("display_name", "Display name", MaxLength(displayNameMaxLength)),
		emailField(tx, 0),
		Password("new_password", "Password"),
		Password("rep_password", "Repeat password"),
		Hidden("identifier"),
		Hidden("provider"),
	).Check(matchPasswords("new_password", "rep_password", func(data Data) bool {
		return data.String("identifier") == ""
	}))
}

// NewProfileForm builds the account profile form pre-filled from user.
func NewProfileForm(tx *gorm.DB, user *models.User, languages, timezones []Choice) *Form {
	form := New("profile",
		Text("display_name", "Display name", MaxLength(displayNameMaxLength)),
		emailField(tx, user.ID),
		Password("new_password", "New password"),
		Password("rep_password", "Repeat password"),
		SingleChoice("locale", "Language", Required(), WithChoices(languages...)),
		SingleChoice("timezone", "Timezone", Required(), WithChoices(timezones...)),
	).Check(matchPasswords("new_password", "rep_password", nil))
	form.Fill(Data{
		"display_name": user.DisplayName,
		"email":        user.Email,
		"locale":       user.Locale,
		"timezone":     user.Timezone,
	})
	return form
}

// NewConfirmForm builds a form with no fields, used by delete confirmations.
func NewConfirmForm(name string) *Form {
	return New(name)
}
