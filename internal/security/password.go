package security

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, errHash := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("security: hash password: %w", errHash)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash. The NoPassword
// sentinel never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" || hash == models.NoPassword {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
