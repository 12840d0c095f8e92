package privileges

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"gorm.io/gorm"
)

// Bind resolves names to privilege rows, creating rows that do not exist yet.
func Bind(tx *gorm.DB, names []string) ([]models.Privilege, error) {
	normalized := Normalize(names)
	if len(normalized) == 0 {
		return []models.Privilege{}, nil
	}
	var existing []models.Privilege
	if errFind := tx.Where("name IN ?", normalized).Find(&existing).Error; errFind != nil {
		return nil, fmt.Errorf("privileges: load: %w", errFind)
	}
	byName := make(map[string]models.Privilege, len(existing))
	for _, p := range existing {
		byName[p.Name] = p
	}
	out := make([]models.Privilege, 0, len(normalized))
	for _, name := range normalized {
		if p, ok := byName[name]; ok {
			out = append(out, p)
			continue
		}
		created := models.Privilege{Name: name}
		if errCreate := tx.Create(&created).Error; errCreate != nil {
			return nil, fmt.Errorf("privileges: create %s: %w", name, errCreate)
		}
		out = append(out, created)
	}
	return out, nil
}

// Preload loads the associations Effective needs.
func Preload(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Privileges").Preload("Groups.Privileges")
}
