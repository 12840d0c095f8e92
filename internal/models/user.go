package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Sentinel values for password hashes and activation keys.
const (
	// NoPassword marks an account that cannot log in with a password.
	NoPassword = "!"
	// Activated is the activation key of an activated account.
	Activated = "!"
)

// User represents an account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username    string `gorm:"type:varchar(25);not null;uniqueIndex"` // Unique login name.
	Email       string `gorm:"type:text;not null;uniqueIndex"`        // Unique email address.
	DisplayName string `gorm:"type:varchar(60)"`                      // Name shown on pages.

	Banned    bool `gorm:"not null;default:false"` // Banned accounts cannot log in.
	Confirmed bool `gorm:"not null;default:false"` // Confirmed by an administrator.

	PasswordHash  string     `gorm:"column:passwd_hash;type:text;not null;default:'!'"` // bcrypt hash or NoPassword.
	LastLogin     *time.Time `gorm:"column:last_login"`                                 // Last successful login or session resolution.
	RegisterDate  time.Time  `gorm:"not null;autoCreateTime"`                           // Registration timestamp.
	ActivationKey string     `gorm:"type:text;not null;default:'!'"`                    // Pending activation key or Activated.
	Timezone      string     `gorm:"type:varchar(64);not null;default:'UTC'"`           // Display timezone.
	Locale        string     `gorm:"type:varchar(10);not null;default:'en'"`            // Preferred locale.

	Privileges []Privilege   `gorm:"many2many:user_privileges;constraint:OnDelete:CASCADE"` // Directly assigned privileges.
	Groups     []Group       `gorm:"many2many:group_users;constraint:OnDelete:CASCADE"`     // Group memberships.
	Providers  []Provider    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`         // Linked third-party identities.
	Identities []IrcIdentity `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`        // Claimed IRC identities.
	Bots       []Bot         `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL"`       // Owned bots.
}

// NewUser returns a user with the column defaults applied.
func NewUser(username, email string) *User {
	return &User{
		Username:      username,
		Email:         email,
		DisplayName:   username,
		PasswordHash:  NoPassword,
		ActivationKey: Activated,
		Timezone:      "UTC",
		Locale:        "en",
	}
}

// NewAnonymousUser returns the user bound to requests without a session.
func NewAnonymousUser() *User {
	return &User{
		Username:      "anonymous",
		DisplayName:   "Anonymous",
		PasswordHash:  NoPassword,
		ActivationKey: Activated,
		Timezone:      "UTC",
		Locale:        "en",
	}
}

// IsSomebody reports whether the user is a persisted account.
func (u *User) IsSomebody() bool {
	return u != nil && u.ID != 0
}

// Active reports whether the account finished activation.
func (u *User) Active() bool {
	return u.ActivationKey == Activated
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Gravatar holds the settings used to build avatar URLs.
type Gravatar struct {
	URL      string
	Fallback string
	Rating   string
}

// GravatarURL returns the avatar URL for the user's email. size must be in (8, 256).
func (u *User) GravatarURL(g Gravatar, size int) (string, error) {
	if size <= 8 || size >= 256 {
		return "", fmt.Errorf("models: unsupported gravatar size %d", size)
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return fmt.Sprintf("%s/%s?d=%s&rating=%s&size=%d",
		strings.TrimRight(g.URL, "/"), hex.EncodeToString(sum[:]), g.Fallback, g.Rating, size), nil
}
