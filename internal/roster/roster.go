// Package roster caches known chat members and their message counts.
//
// The bot can only address users it has seen: every observed message,
// command, or button press upserts the sender into the roster so that
// later @handle lookups resolve to a stable platform user ID.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/daryatsv/chapel/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownIdentity is returned when a handle has never been observed.
var ErrUnknownIdentity = errors.New("roster: unknown identity")

// Observe upserts a chat member. The handle is lowercased and stripped of
// a leading @; empty handles are stored as empty (some users have none).
// Last write wins — only the latest handle and names are kept.
func Observe(gdb *gorm.DB, userID int64, handle, firstName, lastName string) error {
	u := models.User{
		ID:        userID,
		Handle:    NormalizeHandle(handle),
		FirstName: firstName,
		LastName:  lastName,
	}
	err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "first_name", "last_name", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("roster: observe user %d: %w", userID, err)
	}
	return nil
}

// Resolve finds a user by handle, case-insensitively and ignoring a
// leading @. Only the latest observed handle per user is matched; a user
// who changed handle is found under the new one only.
func Resolve(gdb *gorm.DB, handle string) (*models.User, error) {
	h := NormalizeHandle(handle)
	if h == "" {
		return nil, ErrUnknownIdentity
	}
	var u models.User
	if err := gdb.Where("handle = ?", h).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, fmt.Errorf("roster: resolve %q: %w", h, err)
	}
	return &u, nil
}

// NormalizeHandle lowercases a handle and strips a leading @.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// CountMessage increments the per-(user, chat) message counter by one,
// creating the row on first sight.
func CountMessage(gdb *gorm.DB, userID, chatID int64) error {
	mc := models.MessageCount{UserID: userID, ChatID: chatID, Count: 1}
	err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "chat_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
	}).Create(&mc).Error
	if err != nil {
		return fmt.Errorf("roster: count message for user %d in chat %d: %w", userID, chatID, err)
	}
	return nil
}

// MessageCount returns the message count for a user in a chat, 0 if the
// user has never spoken there.
func MessageCount(gdb *gorm.DB, userID, chatID int64) (int64, error) {
	var mc models.MessageCount
	err := gdb.Where("user_id = ? AND chat_id = ?", userID, chatID).First(&mc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("roster: message count for user %d in chat %d: %w", userID, chatID, err)
	}
	return mc.Count, nil
}
