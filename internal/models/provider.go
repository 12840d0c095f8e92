package models

import "gorm.io/datatypes"

// Provider links a third-party login identity to a user.
type Provider struct {
	Identifier string `gorm:"primaryKey;type:varchar(255)"` // External identifier, globally unique.

	ProviderName string `gorm:"column:provider;type:varchar(25);index"` // Provider display name.
	UserID       uint64 `gorm:"not null;index"`                         // Owning user.

	Profile datatypes.JSON `gorm:"type:jsonb"` // Last profile returned by the provider.

	User *User `gorm:"foreignKey:UserID"` // Owning user.
}
