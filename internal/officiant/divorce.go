package officiant

import (
	"github.com/daryatsv/chapel/internal/ledger"
	"github.com/daryatsv/chapel/internal/models"
	"gorm.io/gorm"
)

// StartDivorce begins the two-step divorce flow: it looks up the actor's
// marriage so the dispatcher can render a confirmation prompt bound to the
// actor's identity. No storage mutation happens here.
func (o *Officiant) StartDivorce(chatID, actorID int64) (*models.Marriage, error) {
	m, err := ledger.FindMarriage(o.db, chatID, actorID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoActiveMarriage
	}
	return m, nil
}

// DivorceOutcome reports a completed divorce.
type DivorceOutcome struct {
	Marriage *models.Marriage // the dissolved row
	Days     int              // whole days the couple lasted
}

// ConfirmDivorce completes a divorce. boundID is the identity the
// confirmation button was issued to (the spouse who started the flow);
// any other presser gets ErrNotYourDecision. If the marriage is already
// gone the press reports ErrNoActiveMarriage.
func (o *Officiant) ConfirmDivorce(marriageID uint, actorID, boundID int64) (*DivorceOutcome, error) {
	if actorID != boundID {
		return nil, ErrNotYourDecision
	}
	var out DivorceOutcome
	err := o.db.Transaction(func(tx *gorm.DB) error {
		m, err := ledger.DissolveMarriage(tx, marriageID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrNoActiveMarriage
		}
		out.Marriage = m
		out.Days = elapsedDays(m.MarriedAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelDivorce aborts the flow. Pure guard — it never touches storage,
// it only verifies the presser is the spouse the prompt was issued to.
func (o *Officiant) CancelDivorce(actorID, boundID int64) error {
	if actorID != boundID {
		return ErrNotYourDecision
	}
	return nil
}
