package dashboard

import (
	"time"

	"gorm.io/gorm"

	"github.com/daryatsv/chapel/internal/models"
)

// MarriageRow holds one couple for display.
type MarriageRow struct {
	ID        uint      `json:"id"`
	ChatID    int64     `json:"chat_id"`
	A         string    `json:"a"`
	B         string    `json:"b"`
	MarriedAt time.Time `json:"married_at"`
	Days      int       `json:"days"`
}

// ListMarriages returns marriages oldest first, optionally filtered by chat.
func ListMarriages(db *gorm.DB, chatID int64) ([]MarriageRow, error) {
	q := db.Model(&models.Marriage{})
	if chatID != 0 {
		q = q.Where("chat_id = ?", chatID)
	}

	var marriages []models.Marriage
	if err := q.Order("married_at ASC").Find(&marriages).Error; err != nil {
		return nil, err
	}

	rows := make([]MarriageRow, len(marriages))
	for i, m := range marriages {
		rows[i] = MarriageRow{
			ID:        m.ID,
			ChatID:    m.ChatID,
			A:         models.Mention(m.AName, m.AHandle),
			B:         models.Mention(m.BName, m.BHandle),
			MarriedAt: m.MarriedAt,
			Days:      int(time.Since(m.MarriedAt).Hours() / 24),
		}
	}
	return rows, nil
}

// ProposalRow holds one pending proposal for display.
type ProposalRow struct {
	ID        uint      `json:"id"`
	ChatID    int64     `json:"chat_id"`
	A         string    `json:"a"`
	B         string    `json:"b"`
	AGranted  bool      `json:"a_granted"`
	BGranted  bool      `json:"b_granted"`
	CreatedAt time.Time `json:"created_at"`
}

// ListProposals returns pending proposals newest first, optionally
// filtered by chat. Expired rows not yet swept are included; the sweep
// is the bot's concern, not the dashboard's.
func ListProposals(db *gorm.DB, chatID int64) ([]ProposalRow, error) {
	q := db.Model(&models.Proposal{})
	if chatID != 0 {
		q = q.Where("chat_id = ?", chatID)
	}

	var proposals []models.Proposal
	if err := q.Order("created_at DESC").Find(&proposals).Error; err != nil {
		return nil, err
	}

	rows := make([]ProposalRow, len(proposals))
	for i, p := range proposals {
		rows[i] = ProposalRow{
			ID:        p.ID,
			ChatID:    p.ChatID,
			A:         models.Mention(p.AName, p.AHandle),
			B:         models.Mention(p.BName, p.BHandle),
			AGranted:  p.AGranted,
			BGranted:  p.BGranted,
			CreatedAt: p.CreatedAt,
		}
	}
	return rows, nil
}

// Stats holds aggregate counters for the overview endpoint.
type Stats struct {
	Users     int64 `json:"users"`
	Marriages int64 `json:"marriages"`
	Proposals int64 `json:"proposals"`
	Messages  int64 `json:"messages"`
}

// Overview returns aggregate counts across all chats.
func Overview(db *gorm.DB) (Stats, error) {
	var s Stats
	if err := db.Model(&models.User{}).Count(&s.Users).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.Marriage{}).Count(&s.Marriages).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.Proposal{}).Count(&s.Proposals).Error; err != nil {
		return s, err
	}
	row := db.Model(&models.MessageCount{}).Select("COALESCE(SUM(count), 0)").Row()
	if err := row.Scan(&s.Messages); err != nil {
		return s, err
	}
	return s, nil
}
