package models

import "time"

// User is a chat participant the bot has observed at least once.
// The platform assigns the ID; handle and names are refreshed on every
// observation, last write wins. Rows are never deleted.
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Handle    string `gorm:"size:64;index"` // lowercase, no leading @; may be empty
	FirstName string `gorm:"size:128;not null"`
	LastName  string `gorm:"size:128"`
	UpdatedAt time.Time
}

// Mention returns the preferred way to address the user in chat:
// @handle when one is known, otherwise the first name.
func (u User) Mention() string {
	if u.Handle != "" {
		return "@" + u.Handle
	}
	return u.FirstName
}
