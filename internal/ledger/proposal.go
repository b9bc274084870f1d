// Package ledger provides the durable primitives for marriages and
// in-flight proposals. Functions accept a *gorm.DB that may be a live
// transaction; multi-step invariants (purge-then-check, record-then-commit)
// are composed inside a single db.Transaction by the officiant package.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/daryatsv/chapel/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRetention is how long a proposal stays live before it is
// considered expired and purged lazily.
const DefaultRetention = 24 * time.Hour

// PurgeExpired deletes proposals in the chat older than the retention
// window. Callers must run this in the same transaction as any existence
// check that follows, so a stale row can never block a fresh proposal.
func PurgeExpired(gdb *gorm.DB, chatID int64, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention)
	err := gdb.Where("chat_id = ? AND created_at < ?", chatID, cutoff).
		Delete(&models.Proposal{}).Error
	if err != nil {
		return fmt.Errorf("ledger: purge expired proposals in chat %d: %w", chatID, err)
	}
	return nil
}

// SweepExpired deletes expired proposals across all chats. Used by the
// optional background sweep; the lazy query-time purge remains the
// correctness mechanism.
func SweepExpired(gdb *gorm.DB, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention)
	result := gdb.Where("created_at < ?", cutoff).Delete(&models.Proposal{})
	if result.Error != nil {
		return 0, fmt.Errorf("ledger: sweep expired proposals: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FindLiveProposal purges expired proposals for the chat, then scans both
// party slots of the remaining rows for userID. Returns nil when the user
// has no live proposal.
func FindLiveProposal(gdb *gorm.DB, chatID, userID int64, retention time.Duration) (*models.Proposal, error) {
	if err := PurgeExpired(gdb, chatID, retention); err != nil {
		return nil, err
	}
	return FindProposalFor(gdb, chatID, userID)
}

// FindProposalFor scans both party slots for userID without purging.
// Callers wanting expiry semantics either purge first in the same
// transaction or use FindLiveProposal.
func FindProposalFor(gdb *gorm.DB, chatID, userID int64) (*models.Proposal, error) {
	var p models.Proposal
	err := gdb.Where("chat_id = ? AND (a_id = ? OR b_id = ?)", chatID, userID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: find live proposal for user %d in chat %d: %w", userID, chatID, err)
	}
	return &p, nil
}

// GetProposal loads a proposal by ID. Returns nil when the row is gone
// (already resolved or purged) — the race every button press must tolerate.
func GetProposal(gdb *gorm.DB, id uint) (*models.Proposal, error) {
	return getProposal(gdb, id)
}

// GetProposalForUpdate loads a proposal with a row lock (SELECT ... FOR
// UPDATE), so concurrent consent decisions on the same row serialize and
// the second transaction re-reads the first one's writes rather than a
// stale snapshot. SQLite has no row locks and drops the clause; there the
// immediate write transaction serializes the whole decision instead.
func GetProposalForUpdate(gdb *gorm.DB, id uint) (*models.Proposal, error) {
	return getProposal(gdb.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func getProposal(gdb *gorm.DB, id uint) (*models.Proposal, error) {
	var p models.Proposal
	if err := gdb.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: get proposal %d: %w", id, err)
	}
	return &p, nil
}

// CreateProposal inserts a new proposal row. The confirmation surface is
// not attached yet; the row is valid and pending without it.
func CreateProposal(gdb *gorm.DB, p *models.Proposal) error {
	p.CreatedAt = time.Now()
	if err := gdb.Create(p).Error; err != nil {
		return fmt.Errorf("ledger: create proposal in chat %d: %w", p.ChatID, err)
	}
	return nil
}

// AttachSurface back-fills the opaque confirmation-surface reference after
// the chat message carrying the consent buttons has been sent. A zero
// rows-affected result means the proposal was already resolved or purged
// in between, which is not an error — the surface simply went stale.
func AttachSurface(gdb *gorm.DB, id uint, ref string) error {
	result := gdb.Model(&models.Proposal{}).Where("id = ?", id).
		Update("surface_ref", ref)
	if result.Error != nil {
		return fmt.Errorf("ledger: attach surface to proposal %d: %w", id, result.Error)
	}
	return nil
}

// RecordConsent sets the consent flag of whichever party slot matches
// userID and returns the updated row. The caller guards that userID is a
// party and runs this inside the same transaction as any commit decision.
func RecordConsent(gdb *gorm.DB, p *models.Proposal, userID int64) error {
	col := "a_granted"
	if p.BID == userID {
		col = "b_granted"
	}
	err := gdb.Model(&models.Proposal{}).Where("id = ?", p.ID).
		Update(col, true).Error
	if err != nil {
		return fmt.Errorf("ledger: record consent on proposal %d: %w", p.ID, err)
	}
	if p.AID == userID {
		p.AGranted = true
	} else {
		p.BGranted = true
	}
	return nil
}

// CommitProposal converts a fully-consented proposal into a marriage:
// the proposal row is deleted and the marriage row inserted. Must run
// inside a transaction so no intermediate state is ever observable.
func CommitProposal(gdb *gorm.DB, p *models.Proposal) (*models.Marriage, error) {
	m := models.Marriage{
		ChatID:    p.ChatID,
		AID:       p.AID,
		AName:     p.AName,
		AHandle:   p.AHandle,
		BID:       p.BID,
		BName:     p.BName,
		BHandle:   p.BHandle,
		MarriedAt: time.Now(),
	}
	if err := gdb.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("ledger: commit proposal %d: create marriage: %w", p.ID, err)
	}
	result := gdb.Where("id = ?", p.ID).Delete(&models.Proposal{})
	if result.Error != nil {
		return nil, fmt.Errorf("ledger: commit proposal %d: delete proposal: %w", p.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Another transaction already resolved this proposal; abort ours.
		return nil, fmt.Errorf("ledger: commit proposal %d: already resolved: %w", p.ID, gorm.ErrRecordNotFound)
	}
	return &m, nil
}

// DeleteProposal removes a proposal row, reporting whether it still
// existed. Used for rejection.
func DeleteProposal(gdb *gorm.DB, id uint) (bool, error) {
	result := gdb.Where("id = ?", id).Delete(&models.Proposal{})
	if result.Error != nil {
		return false, fmt.Errorf("ledger: delete proposal %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
