package app

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether at least one user holds ILOG_ADMIN.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	migrator := conn.Migrator()
	for _, table := range []any{&models.User{}, &models.Privilege{}, &models.Group{}} {
		if !migrator.HasTable(table) {
			return false, nil
		}
	}
	admins, errAdmins := site.AdminUsers(conn)
	if errAdmins != nil {
		return false, errAdmins
	}
	return len(admins) > 0, nil
}
