package models

// MessageCount tracks how many messages a user has sent in a chat.
// Incremented once per observed message, never decremented or reset.
type MessageCount struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	ChatID int64 `gorm:"primaryKey;autoIncrement:false"`
	Count  int64 `gorm:"not null;default:0"`
}
