package officiant

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	chapeldb "github.com/daryatsv/chapel/internal/db"
	"github.com/daryatsv/chapel/internal/models"
	"github.com/daryatsv/chapel/internal/roster"
)

func openOfficiantTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Marriage{}, &models.Proposal{}, &models.MessageCount{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// openFileTestDB opens a file-backed database. The in-memory helper pools
// a single connection, so it cannot exercise two transactions contending
// for the write lock; concurrency tests need a real file.
func openFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := chapeldb.ConnectSQLite(filepath.Join(t.TempDir(), "chapel.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := chapeldb.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func newTestOfficiant(t *testing.T, db *gorm.DB) *Officiant {
	t.Helper()
	o, err := New(Opts{DB: db})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

// observe registers a user in the roster and returns them as an Actor.
func observe(t *testing.T, db *gorm.DB, id int64, handle, name string) Actor {
	t.Helper()
	if err := roster.Observe(db, id, handle, name, ""); err != nil {
		t.Fatalf("observe %s: %v", handle, err)
	}
	return Actor{ID: id, Handle: handle, FirstName: name}
}

// backdate shifts a proposal's creation time into the past.
func backdate(t *testing.T, db *gorm.DB, proposalID uint, age time.Duration) {
	t.Helper()
	err := db.Model(&models.Proposal{}).Where("id = ?", proposalID).
		Update("created_at", time.Now().Add(-age)).Error
	if err != nil {
		t.Fatalf("backdate proposal %d: %v", proposalID, err)
	}
}

func TestPropose_SelfFlow(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected proposal ID to be set")
	}
	if !p.AGranted {
		t.Error("initiator consent should be pre-granted")
	}
	if p.BGranted {
		t.Error("target consent should start unset")
	}
	if p.InitiatorID != alice.ID || p.AID != alice.ID || p.BID != 2 {
		t.Errorf("parties = init %d, a %d, b %d; want 1, 1, 2", p.InitiatorID, p.AID, p.BID)
	}
}

func TestPropose_SelfFlowSingleConsentCompletes(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	out, err := o.Confirm(p.ID, 2)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if out.Marriage == nil {
		t.Fatal("one consent from the target should complete the self flow")
	}
	if out.Marriage.AID != 1 || out.Marriage.BID != 2 {
		t.Errorf("marriage parties = %d, %d; want 1, 2", out.Marriage.AID, out.Marriage.BID)
	}

	// The proposal row is gone.
	var count int64
	db.Model(&models.Proposal{}).Count(&count)
	if count != 0 {
		t.Errorf("proposal count = %d, want 0", count)
	}
}

func TestPropose_OwnHandle(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")

	if _, err := o.Propose(100, alice, "@Alice"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Propose(self) = %v, want ErrInvalidTarget", err)
	}
}

func TestPropose_UnknownHandle(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")

	_, err := o.Propose(100, alice, "@ghost")
	if !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("Propose(unknown) = %v, want ErrUnknownIdentity", err)
	}
	var se *SubjectError
	if !errors.As(err, &se) {
		t.Fatal("expected a SubjectError naming the handle")
	}
	if se.Subject != "@ghost" {
		t.Errorf("Subject = %q, want %q", se.Subject, "@ghost")
	}
}

func TestProposePair_BothMustConsent(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	carol := observe(t, db, 3, "carol", "Carol")
	observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.ProposePair(100, carol, "@alice", "@bob")
	if err != nil {
		t.Fatalf("ProposePair: %v", err)
	}
	if p.AGranted || p.BGranted {
		t.Fatal("matchmaker flow should start with both consents unset")
	}

	out, err := o.Confirm(p.ID, 1)
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	if out.Marriage != nil {
		t.Fatal("one consent must not complete a pair proposal")
	}
	if out.AwaitingID != 2 || out.AwaitingName != "Bob" {
		t.Errorf("awaiting = %d %q, want 2 %q", out.AwaitingID, out.AwaitingName, "Bob")
	}

	out, err = o.Confirm(p.ID, 2)
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if out.Marriage == nil {
		t.Fatal("both consents should commit the marriage")
	}
}

func TestProposePair_SameTarget(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	carol := observe(t, db, 3, "carol", "Carol")
	observe(t, db, 1, "alice", "Alice")

	if _, err := o.ProposePair(100, carol, "@alice", "Alice"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("ProposePair(same) = %v, want ErrInvalidTarget", err)
	}
}

func TestPropose_PartyAlreadyMarried(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")
	carol := observe(t, db, 3, "carol", "Carol")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err = o.Propose(100, carol, "@bob")
	if !errors.Is(err, ErrAlreadyMarried) {
		t.Fatalf("Propose(married target) = %v, want ErrAlreadyMarried", err)
	}
	var se *SubjectError
	if !errors.As(err, &se) || se.Subject != "@bob" {
		t.Errorf("expected SubjectError naming @bob, got %v", err)
	}
}

func TestPropose_PartyAlreadyProposed(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")
	carol := observe(t, db, 3, "carol", "Carol")

	if _, err := o.Propose(100, alice, "@bob"); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Propose(100, carol, "@bob"); !errors.Is(err, ErrProposalInProgress) {
		t.Errorf("Propose(busy target) = %v, want ErrProposalInProgress", err)
	}
	// The initiator is busy too: their consent slot is occupied.
	if _, err := o.Propose(100, alice, "@carol"); !errors.Is(err, ErrProposalInProgress) {
		t.Errorf("Propose(busy initiator) = %v, want ErrProposalInProgress", err)
	}
}

func TestPropose_ChatScoping(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// Same pair in a different chat is unconstrained.
	if _, err := o.Propose(200, alice, "@bob"); err != nil {
		t.Errorf("Propose in other chat: %v", err)
	}
}

func TestPropose_ExpiredProposalDoesNotBlock(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")
	carol := observe(t, db, 3, "carol", "Carol")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	backdate(t, db, p.ID, 25*time.Hour)

	// The lapsed row is purged on the way in, so the new proposal lands.
	if _, err := o.Propose(100, carol, "@bob"); err != nil {
		t.Fatalf("Propose after expiry: %v", err)
	}
}

func TestConfirm_ExpiredProposalIsStale(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")
	carol := observe(t, db, 3, "carol", "Carol")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	backdate(t, db, p.ID, 25*time.Hour)

	// Any later proposal in the chat purges the lapsed row...
	if _, err := o.Propose(100, carol, "@bob"); err != nil {
		t.Fatalf("Propose after expiry: %v", err)
	}
	// ...so a press on the old surface reports staleness.
	if _, err := o.Confirm(p.ID, 2); !errors.Is(err, ErrProposalStale) {
		t.Errorf("Confirm(expired) = %v, want ErrProposalStale", err)
	}
}

func TestConfirm_ConcurrentConsentsCommitOnce(t *testing.T) {
	gdb := openFileTestDB(t)
	o := newTestOfficiant(t, gdb)
	carol := observe(t, gdb, 3, "carol", "Carol")
	observe(t, gdb, 1, "alice", "Alice")
	observe(t, gdb, 2, "bob", "Bob")

	// Per round: a fresh pair proposal in its own chat, both parties
	// pressing at once. Every outcome must be a clean success or
	// ErrProposalStale, and the pair must end up married exactly once
	// with no residual proposal row.
	for round := 0; round < 25; round++ {
		chatID := int64(1000 + round)
		p, err := o.ProposePair(chatID, carol, "@alice", "@bob")
		if err != nil {
			t.Fatalf("round %d: ProposePair: %v", round, err)
		}

		outcomes := make(chan error, 2)
		for _, actorID := range []int64{1, 2} {
			actorID := actorID
			go func() {
				_, err := o.Confirm(p.ID, actorID)
				outcomes <- err
			}()
		}
		for i := 0; i < 2; i++ {
			if err := <-outcomes; err != nil && !errors.Is(err, ErrProposalStale) {
				t.Fatalf("round %d: unclean outcome: %v", round, err)
			}
		}

		var marriages, proposals int64
		gdb.Model(&models.Marriage{}).Where("chat_id = ?", chatID).Count(&marriages)
		gdb.Model(&models.Proposal{}).Where("chat_id = ?", chatID).Count(&proposals)
		if marriages != 1 {
			t.Fatalf("round %d: marriages = %d, want exactly 1", round, marriages)
		}
		if proposals != 0 {
			t.Fatalf("round %d: residual proposals = %d, want 0", round, proposals)
		}
	}
}

func TestConfirm_NotAParty(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 99); !errors.Is(err, ErrNotYourDecision) {
		t.Errorf("Confirm(outsider) = %v, want ErrNotYourDecision", err)
	}
}

func TestConfirm_AfterReject(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Reject(p.ID, 2); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); !errors.Is(err, ErrProposalStale) {
		t.Errorf("Confirm(resolved) = %v, want ErrProposalStale", err)
	}
}

func TestReject_ComfortsInitiatorInSelfFlow(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	out, err := o.Reject(p.ID, 2)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if out.ComfortName != "Alice" {
		t.Errorf("ComfortName = %q, want %q", out.ComfortName, "Alice")
	}
}

func TestReject_ComfortsPartyAInPairFlow(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	carol := observe(t, db, 3, "carol", "Carol")
	observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.ProposePair(100, carol, "@alice", "@bob")
	if err != nil {
		t.Fatalf("ProposePair: %v", err)
	}
	out, err := o.Reject(p.ID, 2)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if out.ComfortName != "Alice" {
		t.Errorf("ComfortName = %q, want %q", out.ComfortName, "Alice")
	}
}

func TestReject_NotAParty(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	carol := observe(t, db, 3, "carol", "Carol")
	observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.ProposePair(100, carol, "@alice", "@bob")
	if err != nil {
		t.Fatalf("ProposePair: %v", err)
	}
	// Even the matchmaker cannot decline on the couple's behalf.
	if _, err := o.Reject(p.ID, carol.ID); !errors.Is(err, ErrNotYourDecision) {
		t.Errorf("Reject(matchmaker) = %v, want ErrNotYourDecision", err)
	}
}

func TestDivorce_FullFlow(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	m, err := o.StartDivorce(100, 1)
	if err != nil {
		t.Fatalf("StartDivorce: %v", err)
	}

	out, err := o.ConfirmDivorce(m.ID, 1, 1)
	if err != nil {
		t.Fatalf("ConfirmDivorce: %v", err)
	}
	if out.Marriage.ID != m.ID {
		t.Errorf("dissolved marriage ID = %d, want %d", out.Marriage.ID, m.ID)
	}
	if out.Days != 0 {
		t.Errorf("Days = %d, want 0 for a fresh marriage", out.Days)
	}

	if _, err := o.StartDivorce(100, 1); !errors.Is(err, ErrNoActiveMarriage) {
		t.Errorf("StartDivorce after dissolve = %v, want ErrNoActiveMarriage", err)
	}
}

func TestDivorce_NotMarried(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)

	if _, err := o.StartDivorce(100, 1); !errors.Is(err, ErrNoActiveMarriage) {
		t.Errorf("StartDivorce = %v, want ErrNoActiveMarriage", err)
	}
}

func TestConfirmDivorce_BoundToPrompter(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)

	if _, err := o.ConfirmDivorce(1, 2, 1); !errors.Is(err, ErrNotYourDecision) {
		t.Errorf("ConfirmDivorce(wrong presser) = %v, want ErrNotYourDecision", err)
	}
}

func TestConfirmDivorce_AlreadyDissolved(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)

	if _, err := o.ConfirmDivorce(999, 1, 1); !errors.Is(err, ErrNoActiveMarriage) {
		t.Errorf("ConfirmDivorce(gone) = %v, want ErrNoActiveMarriage", err)
	}
}

func TestCancelDivorce(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if err := o.CancelDivorce(2, 1); !errors.Is(err, ErrNotYourDecision) {
		t.Errorf("CancelDivorce(wrong presser) = %v, want ErrNotYourDecision", err)
	}
	if err := o.CancelDivorce(1, 1); err != nil {
		t.Errorf("CancelDivorce: %v", err)
	}

	// Cancelling never touches the marriage.
	if _, err := o.StartDivorce(100, 1); err != nil {
		t.Errorf("marriage should survive a cancelled divorce: %v", err)
	}
}

func TestCouple_Stats(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := roster.CountMessage(db, 1, 100); err != nil {
			t.Fatalf("CountMessage: %v", err)
		}
	}
	if err := roster.CountMessage(db, 2, 100); err != nil {
		t.Fatalf("CountMessage: %v", err)
	}
	// Activity in another chat does not count.
	if err := roster.CountMessage(db, 1, 200); err != nil {
		t.Fatalf("CountMessage: %v", err)
	}

	stats, err := o.Couple(100, 2)
	if err != nil {
		t.Fatalf("Couple: %v", err)
	}
	if stats.Messages != 4 {
		t.Errorf("Messages = %d, want 4", stats.Messages)
	}
	if stats.Days != 0 {
		t.Errorf("Days = %d, want 0", stats.Days)
	}
}

func TestCouple_NotMarried(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)

	if _, err := o.Couple(100, 1); !errors.Is(err, ErrNoActiveMarriage) {
		t.Errorf("Couple = %v, want ErrNoActiveMarriage", err)
	}
}

func TestMarriages_OldestFirst(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")
	carol := observe(t, db, 3, "carol", "Carol")
	observe(t, db, 4, "dave", "Dave")

	p, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 2); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	// Push the first wedding into the past so ordering is deterministic.
	err = db.Model(&models.Marriage{}).Where("a_id = ?", 1).
		Update("married_at", time.Now().Add(-48*time.Hour)).Error
	if err != nil {
		t.Fatalf("backdate marriage: %v", err)
	}

	p, err = o.Propose(100, carol, "@dave")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Confirm(p.ID, 4); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	rows, err := o.Marriages(100)
	if err != nil {
		t.Fatalf("Marriages: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].Marriage.AID != 1 {
		t.Errorf("first row AID = %d, want the older couple", rows[0].Marriage.AID)
	}
	if rows[0].Days != 2 {
		t.Errorf("Days = %d, want 2", rows[0].Days)
	}
}

func TestSweepExpired(t *testing.T) {
	db := openOfficiantTestDB(t)
	o := newTestOfficiant(t, db)
	alice := observe(t, db, 1, "alice", "Alice")
	observe(t, db, 2, "bob", "Bob")
	carol := observe(t, db, 3, "carol", "Carol")
	observe(t, db, 4, "dave", "Dave")

	p1, err := o.Propose(100, alice, "@bob")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := o.Propose(200, carol, "@dave"); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	backdate(t, db, p1.ID, 25*time.Hour)

	n, err := o.SweepExpired()
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	var count int64
	db.Model(&models.Proposal{}).Count(&count)
	if count != 1 {
		t.Errorf("remaining proposals = %d, want 1", count)
	}
}
