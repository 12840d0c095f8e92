package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActivationTTL is how long an activation key stays valid.
const ActivationTTL = 30 * 24 * time.Hour

const activationSubject = "activation"

// ErrInvalidActivationKey reports a malformed, forged or expired key.
var ErrInvalidActivationKey = errors.New("security: invalid activation key")

// ActivationClaims is the payload of an activation key.
type ActivationClaims struct {
	jwt.RegisteredClaims
	UserID uint64 `json:"uid"`
}

// NewActivationKey signs a key for userID that expires after ActivationTTL.
func NewActivationKey(secret string, userID uint64, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("security: empty secret key")
	}
	claims := ActivationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   activationSubject,
			ID:        strconv.FormatInt(now.UnixNano(), 36),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ActivationTTL)),
		},
		UserID: userID,
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign activation key: %w", errSign)
	}
	return signed, nil
}

// ParseActivationKey verifies key and returns the user id it was issued for.
func ParseActivationKey(secret, key string) (uint64, error) {
	claims := &ActivationClaims{}
	token, errParse := jwt.ParseWithClaims(key, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(activationSubject))
	if errParse != nil || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidActivationKey
	}
	return claims.UserID, nil
}
