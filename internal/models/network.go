package models

// Network is an IRC network addressed by its slug.
type Network struct {
	Slug string `gorm:"primaryKey;type:varchar(100)"` // URL-safe identifier derived from Name.
	Name string `gorm:"type:varchar(20);not null"`    // Display name.

	Servers        []NetworkServer        `gorm:"foreignKey:NetworkSlug;references:Slug;constraint:OnDelete:CASCADE"` // Known servers.
	Participations []NetworkParticipation `gorm:"foreignKey:NetworkSlug;references:Slug;constraint:OnDelete:CASCADE"` // Bots on this network.
}

// NetworkServer is one server address of a network.
type NetworkServer struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	NetworkSlug string `gorm:"type:varchar(100);not null;uniqueIndex:idx_network_servers_addr"` // Owning network.
	Address     string `gorm:"type:text;not null;uniqueIndex:idx_network_servers_addr"`         // Host name or IP.
	Port        int    `gorm:"not null;uniqueIndex:idx_network_servers_addr"`                   // TCP port.

	Lag          float64 `gorm:"not null;default:0"` // Last measured lag in seconds.
	ConnFailures int     `gorm:"not null;default:0"` // Consecutive connection failures.
	FailureMsg   string  `gorm:"type:text"`          // Last failure message.
}

// NetworkParticipation records a bot joined to a network.
type NetworkParticipation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BotName     string `gorm:"type:varchar(100);index"`          // Participating bot.
	NetworkSlug string `gorm:"type:varchar(100);not null;index"` // Network joined.
	Nick        string `gorm:"type:text;not null"`               // Nick used on the network.
	Password    string `gorm:"type:text"`                        // NickServ password.
}
