package models

// Privilege is a named capability row.
type Privilege struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:varchar(50);not null;uniqueIndex"` // Privilege token.
}
