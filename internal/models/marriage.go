package models

import "time"

// Marriage is a committed pairing between two users within one chat.
// Party order carries no meaning; lookups must match either slot.
// Names and handles are denormalized at commit time so the couple can be
// displayed even if a party later changes handle.
type Marriage struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	ChatID    int64 `gorm:"not null;index"`
	AID       int64 `gorm:"column:a_id;not null;index"`
	AName     string
	AHandle   string
	BID       int64 `gorm:"column:b_id;not null;index"`
	BName     string
	BHandle   string
	MarriedAt time.Time `gorm:"not null"`
}

// Partner returns the display info of the other party, given one party's ID.
// Falls back to party A when the ID matches neither slot.
func (m Marriage) Partner(userID int64) (id int64, name, handle string) {
	if m.AID == userID {
		return m.BID, m.BName, m.BHandle
	}
	return m.AID, m.AName, m.AHandle
}

// Mention formats a party's preferred address, @handle or name.
func Mention(name, handle string) string {
	if handle != "" {
		return "@" + handle
	}
	return name
}
