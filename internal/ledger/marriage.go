package ledger

import (
	"errors"
	"fmt"

	"github.com/daryatsv/chapel/internal/models"
	"gorm.io/gorm"
)

// FindMarriage scans both party slots for userID within the chat.
// Returns nil when the user is not married there.
func FindMarriage(gdb *gorm.DB, chatID, userID int64) (*models.Marriage, error) {
	var m models.Marriage
	err := gdb.Where("chat_id = ? AND (a_id = ? OR b_id = ?)", chatID, userID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: find marriage for user %d in chat %d: %w", userID, chatID, err)
	}
	return &m, nil
}

// GetMarriage loads a marriage by ID. Returns nil when already dissolved.
func GetMarriage(gdb *gorm.DB, id uint) (*models.Marriage, error) {
	var m models.Marriage
	if err := gdb.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: get marriage %d: %w", id, err)
	}
	return &m, nil
}

// DissolveMarriage deletes a marriage and returns the prior row so the
// caller can report how long the couple lasted. Returns nil when the row
// was already gone.
func DissolveMarriage(gdb *gorm.DB, id uint) (*models.Marriage, error) {
	m, err := GetMarriage(gdb, id)
	if err != nil || m == nil {
		return m, err
	}
	result := gdb.Where("id = ?", id).Delete(&models.Marriage{})
	if result.Error != nil {
		return nil, fmt.Errorf("ledger: dissolve marriage %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return m, nil
}

// ListMarriages returns all couples in a chat ordered by formation time.
func ListMarriages(gdb *gorm.DB, chatID int64) ([]models.Marriage, error) {
	var out []models.Marriage
	err := gdb.Where("chat_id = ?", chatID).Order("married_at ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: list marriages in chat %d: %w", chatID, err)
	}
	return out, nil
}
