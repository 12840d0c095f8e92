package db

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// ASCIISlug joins whitespace separated words with "-", folds the result to
// lower case ASCII and drops characters without an ASCII decomposition.
func ASCIISlug(text string) string {
	joined := strings.Join(strings.Fields(text), "-")
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, errFold := transform.String(folder, joined)
	if errFold != nil {
		folded = joined
	}
	return strings.ToLower(folded)
}

// GenerateNetworkSlug returns a slug for name not used by any network.
// Collisions get "-1", "-2", ... appended.
func GenerateNetworkSlug(tx *gorm.DB, name string) (string, error) {
	initial := ASCIISlug(name)
	if initial == "" {
		initial = "network"
	}
	slug := initial
	for suffix := 1; ; suffix++ {
		var existing models.Network
		errFind := tx.Select("slug").Where("slug = ?", slug).Take(&existing).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return slug, nil
		}
		if errFind != nil {
			return "", fmt.Errorf("db: check network slug: %w", errFind)
		}
		slug = fmt.Sprintf("%s-%d", initial, suffix)
	}
}
