package models

import "time"

// Proposal is an in-flight marriage offer awaiting consent from one or
// both parties. A user may be referenced by at most one live proposal per
// chat, across both slots. Rows older than the retention window are purged
// lazily before any existence check.
//
// The self-initiated flow (/marry) stores the initiator in slot A with
// AGranted already true; the matchmaker flow (/tomarry) starts with both
// consents unset. SurfaceRef is back-filled after the confirmation message
// is sent — an empty ref means the row is valid but the surface is not
// attached yet.
type Proposal struct {
	ID          uint  `gorm:"primaryKey;autoIncrement"`
	ChatID      int64 `gorm:"not null;index"`
	InitiatorID int64 `gorm:"not null"`
	AID         int64 `gorm:"column:a_id;not null;index"`
	AName       string
	AHandle     string
	BID         int64 `gorm:"column:b_id;not null;index"`
	BName       string
	BHandle     string
	AGranted    bool      `gorm:"not null;default:false"`
	BGranted    bool      `gorm:"not null;default:false"`
	SurfaceRef  string    `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// Party reports whether userID occupies a slot on this proposal.
func (p Proposal) Party(userID int64) bool {
	return p.AID == userID || p.BID == userID
}

// Other returns the display info of the party opposite to userID.
func (p Proposal) Other(userID int64) (id int64, name, handle string) {
	if p.AID == userID {
		return p.BID, p.BName, p.BHandle
	}
	return p.AID, p.AName, p.AHandle
}

// BothGranted reports whether both parties have consented.
func (p Proposal) BothGranted() bool {
	return p.AGranted && p.BGranted
}
