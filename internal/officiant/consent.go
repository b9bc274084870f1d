package officiant

import (
	"github.com/daryatsv/chapel/internal/ledger"
	"github.com/daryatsv/chapel/internal/models"
	"gorm.io/gorm"
)

// ConfirmOutcome reports what a consent press produced. Exactly one of
// Marriage or the Awaiting fields is populated.
type ConfirmOutcome struct {
	Proposal *models.Proposal
	Marriage *models.Marriage // set when both consents landed and the pair committed

	// Set while the other party's consent is still pending, so the
	// dispatcher can refresh the confirmation surface addressed to them.
	AwaitingID     int64
	AwaitingName   string
	AwaitingHandle string
}

// Confirm records the acting party's consent on a proposal. When both
// consents are granted the proposal is atomically converted into a
// marriage — delete and insert in the same transaction, never observable
// half-done. A press on a proposal that was already resolved (rejected,
// expired, or raced to commit by the other party) returns ErrProposalStale.
func (o *Officiant) Confirm(proposalID uint, actorID int64) (*ConfirmOutcome, error) {
	var out ConfirmOutcome
	err := o.db.Transaction(func(tx *gorm.DB) error {
		p, err := ledger.GetProposalForUpdate(tx, proposalID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrProposalStale
		}
		if !p.Party(actorID) {
			return ErrNotYourDecision
		}
		if err := ledger.RecordConsent(tx, p, actorID); err != nil {
			return err
		}
		out.Proposal = p
		if p.BothGranted() {
			m, err := ledger.CommitProposal(tx, p)
			if err != nil {
				return err
			}
			out.Marriage = m
			return nil
		}
		out.AwaitingID, out.AwaitingName, out.AwaitingHandle = p.Other(actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectOutcome reports a declined proposal and whom to address
// sympathetically.
type RejectOutcome struct {
	Proposal *models.Proposal

	// Comfort names the party to console: the initiator when the
	// initiator is themselves a party (self flow), otherwise party A.
	// The pair-flow default is deliberate policy, not an oversight.
	ComfortName   string
	ComfortHandle string
}

// Reject terminates a proposal. Only a named party may decline; anyone
// else gets ErrNotYourDecision. A press on an already-resolved proposal
// returns ErrProposalStale.
func (o *Officiant) Reject(proposalID uint, actorID int64) (*RejectOutcome, error) {
	var out RejectOutcome
	err := o.db.Transaction(func(tx *gorm.DB) error {
		p, err := ledger.GetProposalForUpdate(tx, proposalID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrProposalStale
		}
		if !p.Party(actorID) {
			return ErrNotYourDecision
		}
		existed, err := ledger.DeleteProposal(tx, p.ID)
		if err != nil {
			return err
		}
		if !existed {
			return ErrProposalStale
		}
		out.Proposal = p
		switch p.InitiatorID {
		case p.AID:
			out.ComfortName, out.ComfortHandle = p.AName, p.AHandle
		case p.BID:
			out.ComfortName, out.ComfortHandle = p.BName, p.BHandle
		default:
			out.ComfortName, out.ComfortHandle = p.AName, p.AHandle
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
