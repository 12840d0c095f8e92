package models

// Group grants its privileges to every member.
type Group struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:varchar(30);not null;index"` // Display name.

	Users      []User      `gorm:"many2many:group_users;constraint:OnDelete:CASCADE"`      // Members.
	Privileges []Privilege `gorm:"many2many:group_privileges;constraint:OnDelete:CASCADE"` // Privileges granted to members.
}
