package models

import "time"

// IrcIdentity is a nick seen on a network, optionally claimed by a user.
type IrcIdentity struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	NetworkName string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_identities_nick"` // Network slug.
	Nick        string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_identities_nick"`  // IRC nick.
	Realname    string  `gorm:"type:varchar(128)"`                                          // Real name from WHOIS.
	Ident       string  `gorm:"type:varchar(64)"`                                           // Ident from WHOIS.
	UserID      *uint64 `gorm:"index"`                                                      // Claiming user.
}

// TableName keeps the historical table name.
func (IrcIdentity) TableName() string { return "identities" }

// Channel is a logged channel on a network.
type Channel struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(100);not null;uniqueIndex:idx_channels_name"` // Channel name without prefix.
	NetworkName string `gorm:"type:varchar(100);not null;uniqueIndex:idx_channels_name"` // Network slug.
	Prefix      string `gorm:"type:varchar(3);not null;uniqueIndex:idx_channels_name"`   // Channel prefix such as "#".
	Key         string `gorm:"type:text"`                                                // Channel key.

	Topic            string       `gorm:"type:text"`                           // Current topic.
	TopicChangedOn   *time.Time   `gorm:"column:topic_changed_on"`             // When the topic last changed.
	TopicChangedByID *uint64      `gorm:"column:topic_changed_by_identity_id"` // Identity that set the topic.
	TopicChangedBy   *IrcIdentity `gorm:"foreignKey:TopicChangedByID"`         // Identity that set the topic.

	Events []IrcEvent `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE"` // Logged events.
}

// FullName returns the channel name with its prefix.
func (c Channel) FullName() string { return c.Prefix + c.Name }

// IrcEvent is one logged channel event.
type IrcEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChannelID  uint64       `gorm:"not null;index:idx_irc_events_channel_stamp,priority:1"` // Channel logged.
	Stamp      time.Time    `gorm:"not null;index:idx_irc_events_channel_stamp,priority:2"` // Event time (UTC).
	Type       string       `gorm:"type:varchar(10);not null"`                              // Event type such as msg or join.
	IdentityID *uint64      `gorm:"index"`                                                  // Acting identity.
	Identity   *IrcIdentity `gorm:"foreignKey:IdentityID"`                                  // Acting identity.
	Message    string       `gorm:"type:text"`                                              // Message text.
}
