package models

// Bot is a logging bot process known to the site.
type Bot struct {
	Name string `gorm:"primaryKey;type:varchar(100)"` // Bot name.

	OwnerID *uint64 `gorm:"column:user_id;index"` // Owning user.
	Owner   *User   `gorm:"foreignKey:OwnerID"`   // Owning user.

	Participations []NetworkParticipation `gorm:"foreignKey:BotName;references:Name;constraint:OnDelete:CASCADE"` // Networks joined.
}
