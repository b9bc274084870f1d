package officiant

import (
	"github.com/daryatsv/chapel/internal/ledger"
	"github.com/daryatsv/chapel/internal/models"
	"github.com/daryatsv/chapel/internal/roster"
	"gorm.io/gorm"
)

// Propose starts the self-initiated flow: the actor offers marriage to
// the user behind targetHandle. The actor's consent slot is pre-granted,
// so a single confirmation from the target completes the marriage.
//
// The returned proposal has no confirmation surface attached yet; call
// AttachSurface once the dispatcher has sent the message with the consent
// buttons.
func (o *Officiant) Propose(chatID int64, actor Actor, targetHandle string) (*models.Proposal, error) {
	if roster.NormalizeHandle(targetHandle) == roster.NormalizeHandle(actor.Handle) {
		return nil, ErrInvalidTarget
	}
	target, err := roster.Resolve(o.db, targetHandle)
	if err != nil {
		if err == roster.ErrUnknownIdentity {
			return nil, &SubjectError{Subject: "@" + roster.NormalizeHandle(targetHandle), Err: ErrUnknownIdentity}
		}
		return nil, err
	}
	if target.ID == actor.ID {
		return nil, ErrInvalidTarget
	}

	p := &models.Proposal{
		ChatID:      chatID,
		InitiatorID: actor.ID,
		AID:         actor.ID,
		AName:       actor.FirstName,
		AHandle:     roster.NormalizeHandle(actor.Handle),
		BID:         target.ID,
		BName:       target.FirstName,
		BHandle:     target.Handle,
		AGranted:    true, // the initiator implicitly consents
	}
	if err := o.createGuarded(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProposePair starts the matchmaker flow: the actor asks to marry two
// other users to each other. Both consents start unset.
func (o *Officiant) ProposePair(chatID int64, actor Actor, handleA, handleB string) (*models.Proposal, error) {
	if roster.NormalizeHandle(handleA) == roster.NormalizeHandle(handleB) {
		return nil, ErrInvalidTarget
	}
	a, err := roster.Resolve(o.db, handleA)
	if err != nil {
		if err == roster.ErrUnknownIdentity {
			return nil, &SubjectError{Subject: "@" + roster.NormalizeHandle(handleA), Err: ErrUnknownIdentity}
		}
		return nil, err
	}
	b, err := roster.Resolve(o.db, handleB)
	if err != nil {
		if err == roster.ErrUnknownIdentity {
			return nil, &SubjectError{Subject: "@" + roster.NormalizeHandle(handleB), Err: ErrUnknownIdentity}
		}
		return nil, err
	}
	if a.ID == b.ID {
		return nil, ErrInvalidTarget
	}

	p := &models.Proposal{
		ChatID:      chatID,
		InitiatorID: actor.ID,
		AID:         a.ID,
		AName:       a.FirstName,
		AHandle:     a.Handle,
		BID:         b.ID,
		BName:       b.FirstName,
		BHandle:     b.Handle,
	}
	if err := o.createGuarded(p); err != nil {
		return nil, err
	}
	return p, nil
}

// createGuarded runs the purge-then-check-then-create sequence in one
// transaction: expired proposals are purged first, then both parties are
// checked for an existing marriage or live proposal, then the row is
// inserted. Two concurrent proposes for the same user serialize here; the
// loser observes the winner's row and fails cleanly.
func (o *Officiant) createGuarded(p *models.Proposal) error {
	return o.db.Transaction(func(tx *gorm.DB) error {
		if err := ledger.PurgeExpired(tx, p.ChatID, o.retention); err != nil {
			return err
		}
		for _, party := range []struct {
			id           int64
			name, handle string
		}{
			{p.AID, p.AName, p.AHandle},
			{p.BID, p.BName, p.BHandle},
		} {
			m, err := ledger.FindMarriage(tx, p.ChatID, party.id)
			if err != nil {
				return err
			}
			if m != nil {
				return &SubjectError{Subject: models.Mention(party.name, party.handle), Err: ErrAlreadyMarried}
			}
			live, err := ledger.FindProposalFor(tx, p.ChatID, party.id)
			if err != nil {
				return err
			}
			if live != nil {
				return &SubjectError{Subject: models.Mention(party.name, party.handle), Err: ErrProposalInProgress}
			}
		}
		return ledger.CreateProposal(tx, p)
	})
}

// AttachSurface back-fills the opaque reference to the message carrying
// the consent buttons. Safe to call after the proposal has already been
// resolved; the surface just goes stale.
func (o *Officiant) AttachSurface(proposalID uint, ref string) error {
	return ledger.AttachSurface(o.db, proposalID, ref)
}
