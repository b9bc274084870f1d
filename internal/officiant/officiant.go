// Package officiant runs the marriage proposal state machine.
//
// Every command is handled as one short-lived transaction against the
// store: purge-then-check before a create, record-consent-then-maybe-commit
// on a button press, check-then-delete on rejection. Two concurrent
// confirmations can never both commit, and a reject racing a confirm
// resolves to whichever delete lands first — the loser sees ErrProposalStale.
package officiant

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// User-facing outcomes. All recoverable; storage failures wrap separately
// and propagate unchanged.
var (
	ErrInvalidTarget      = errors.New("officiant: cannot marry a user to themselves")
	ErrUnknownIdentity    = errors.New("officiant: user has never been seen in this chat")
	ErrAlreadyMarried     = errors.New("officiant: already married")
	ErrProposalInProgress = errors.New("officiant: an active proposal already exists")
	ErrNotYourDecision    = errors.New("officiant: this decision belongs to someone else")
	ErrProposalStale      = errors.New("officiant: the proposal no longer exists")
	ErrNoActiveMarriage   = errors.New("officiant: no active marriage")
)

// SubjectError attaches the display mention of the user an outcome is
// about, so the dispatcher can name them ("@bob is already married").
type SubjectError struct {
	Subject string
	Err     error
}

func (e *SubjectError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Subject)
}

func (e *SubjectError) Unwrap() error { return e.Err }

// Actor is the identity performing a command, as reported by the platform.
type Actor struct {
	ID        int64
	Handle    string
	FirstName string
	LastName  string
}

// Officiant coordinates proposals, marriages, and divorces over the store.
type Officiant struct {
	db        *gorm.DB
	retention time.Duration
}

// Opts holds parameters for creating an Officiant.
type Opts struct {
	DB        *gorm.DB
	Retention time.Duration // live-proposal window, defaults to ledger.DefaultRetention
}

// New creates an Officiant.
func New(opts Opts) (*Officiant, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("officiant: db is required")
	}
	return &Officiant{db: opts.DB, retention: opts.Retention}, nil
}

// elapsedDays floors a duration since start to whole days.
func elapsedDays(since time.Time) int {
	return int(time.Since(since).Hours() / 24)
}
