package officiant

import (
	"github.com/daryatsv/chapel/internal/ledger"
	"github.com/daryatsv/chapel/internal/models"
	"github.com/daryatsv/chapel/internal/roster"
)

// CoupleStats is the data the statistics card is rendered from.
type CoupleStats struct {
	Marriage *models.Marriage
	Days     int   // whole days since the wedding
	Messages int64 // both spouses' message counts in this chat, combined
}

// Couple assembles statistics for the actor's active marriage in a chat.
func (o *Officiant) Couple(chatID, actorID int64) (*CoupleStats, error) {
	m, err := ledger.FindMarriage(o.db, chatID, actorID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoActiveMarriage
	}
	aCount, err := roster.MessageCount(o.db, m.AID, chatID)
	if err != nil {
		return nil, err
	}
	bCount, err := roster.MessageCount(o.db, m.BID, chatID)
	if err != nil {
		return nil, err
	}
	return &CoupleStats{
		Marriage: m,
		Days:     elapsedDays(m.MarriedAt),
		Messages: aCount + bCount,
	}, nil
}

// CoupleSummary is one row of the chat-wide marriage listing.
type CoupleSummary struct {
	Marriage models.Marriage
	Days     int
}

// Marriages lists every couple in a chat, oldest first.
func (o *Officiant) Marriages(chatID int64) ([]CoupleSummary, error) {
	rows, err := ledger.ListMarriages(o.db, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]CoupleSummary, 0, len(rows))
	for _, m := range rows {
		out = append(out, CoupleSummary{Marriage: m, Days: elapsedDays(m.MarriedAt)})
	}
	return out, nil
}

// SweepExpired purges expired proposals across all chats. Exposed for the
// optional background sweep; lazy query-time purging remains the
// correctness mechanism.
func (o *Officiant) SweepExpired() (int64, error) {
	return ledger.SweepExpired(o.db, o.retention)
}
