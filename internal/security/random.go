package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString returns n random alphanumeric characters.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("security: invalid length %d", n)
	}
	out := make([]byte, n)
	limit := big.NewInt(int64(len(randomAlphabet)))
	for i := range out {
		idx, errRand := rand.Int(rand.Reader, limit)
		if errRand != nil {
			return "", fmt.Errorf("security: random: %w", errRand)
		}
		out[i] = randomAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateSecretKey returns a hex encoded 32 byte key suitable for signing cookies.
func GenerateSecretKey() (string, error) {
	buf := make([]byte, 32)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: secret key: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}
