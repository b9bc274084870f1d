package courier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"

	"github.com/daryatsv/chapel/internal/card"
	"github.com/daryatsv/chapel/internal/models"
	"github.com/daryatsv/chapel/internal/officiant"
	"github.com/daryatsv/chapel/internal/roster"
	"gorm.io/gorm"
)

// Router classifies inbound events and drives the officiant: passive
// messages feed the roster and counters, commands run the proposal flows,
// button presses advance or terminate proposals and divorces.
type Router struct {
	db        *gorm.DB
	off       *officiant.Officiant
	adapter   Adapter
	fontPaths []string
	out       io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	DB        *gorm.DB
	Officiant *officiant.Officiant
	Adapter   Adapter
	FontPaths []string  // extra TTF candidates for the card renderer
	Out       io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("courier: router: db is required")
	}
	if opts.Officiant == nil {
		return nil, fmt.Errorf("courier: router: officiant is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("courier: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		db:        opts.DB,
		off:       opts.Officiant,
		adapter:   opts.Adapter,
		fontPaths: opts.FontPaths,
		out:       out,
	}, nil
}

// Handle processes a single inbound event. Errors are rendered to the
// user where they are part of the flow, and logged otherwise; Handle
// itself never fails.
func (r *Router) Handle(ctx context.Context, ev Event) {
	if ev.IsBot {
		return
	}

	// Every observed activity refreshes the roster, so @handle lookups
	// always reflect the latest known handle.
	if err := roster.Observe(r.db, ev.UserID, ev.Handle, ev.FirstName, ev.LastName); err != nil {
		log.Printf("courier: router: observe user %d: %v", ev.UserID, err)
	}

	switch ev.Kind {
	case EventMessage:
		if !ev.Private {
			if err := roster.CountMessage(r.db, ev.UserID, ev.ChatID); err != nil {
				log.Printf("courier: router: count message: %v", err)
			}
		}
	case EventCommand:
		r.handleCommand(ctx, ev)
	case EventPress:
		r.handlePress(ctx, ev)
	}
}

func (r *Router) handleCommand(ctx context.Context, ev Event) {
	fmt.Fprintf(r.out, "courier: router: /%s from %s [chat=%d]\n", ev.Command, ev.FirstName, ev.ChatID)

	switch ev.Command {
	case "start", "help":
		r.reply(ctx, ev.ChatID, Outbound{
			Text:    greetingText,
			Buttons: [][]Button{{{Label: "📜 Commands", Data: pressCmds}}},
		})
		return
	}

	// Everything below works on per-chat state and is group-only.
	if ev.Private {
		r.replyText(ctx, ev.ChatID, groupOnlyText)
		return
	}

	switch ev.Command {
	case "marry":
		r.cmdMarry(ctx, ev)
	case "tomarry":
		r.cmdToMarry(ctx, ev)
	case "marriages":
		r.cmdMarriages(ctx, ev)
	case "divorce":
		r.cmdDivorce(ctx, ev)
	case "couple":
		r.cmdCouple(ctx, ev)
	}
}

// cmdMarry handles "/marry @name" — the self-initiated flow.
func (r *Router) cmdMarry(ctx context.Context, ev Event) {
	if len(ev.Args) < 1 {
		r.replyText(ctx, ev.ChatID, "❌ Usage: <code>/marry @name</code>")
		return
	}
	actor := officiant.Actor{ID: ev.UserID, Handle: ev.Handle, FirstName: ev.FirstName, LastName: ev.LastName}
	p, err := r.off.Propose(ev.ChatID, actor, ev.Args[0])
	if err != nil {
		r.replyOutcomeErr(ctx, ev.ChatID, err)
		return
	}

	// Only the target gets a consent button; the initiator's slot is
	// already granted.
	ref, err := r.adapter.Send(ctx, Outbound{
		ChatID:  ev.ChatID,
		Text:    formatSingleProposal(ev.FirstName, p.BName, models.Mention(p.BName, p.BHandle)),
		Buttons: [][]Button{consentRow(p.ID, p.BID, p.BName, false)},
	})
	if err != nil {
		log.Printf("courier: router: send proposal: %v", err)
		return
	}
	if err := r.off.AttachSurface(p.ID, ref); err != nil {
		log.Printf("courier: router: attach surface: %v", err)
	}
}

// cmdToMarry handles "/tomarry @a @b" — the matchmaker flow.
func (r *Router) cmdToMarry(ctx context.Context, ev Event) {
	if len(ev.Args) < 2 {
		r.replyText(ctx, ev.ChatID, "❌ Usage: <code>/tomarry @name1 @name2</code>")
		return
	}
	actor := officiant.Actor{ID: ev.UserID, Handle: ev.Handle, FirstName: ev.FirstName, LastName: ev.LastName}
	p, err := r.off.ProposePair(ev.ChatID, actor, ev.Args[0], ev.Args[1])
	if err != nil {
		r.replyOutcomeErr(ctx, ev.ChatID, err)
		return
	}

	ref, err := r.adapter.Send(ctx, Outbound{
		ChatID: ev.ChatID,
		Text:   formatPairProposal(ev.FirstName, p.AName, p.BName),
		Buttons: [][]Button{
			consentRow(p.ID, p.AID, p.AName, true),
			consentRow(p.ID, p.BID, p.BName, true),
		},
	})
	if err != nil {
		log.Printf("courier: router: send pair proposal: %v", err)
		return
	}
	if err := r.off.AttachSurface(p.ID, ref); err != nil {
		log.Printf("courier: router: attach surface: %v", err)
	}
}

func (r *Router) cmdMarriages(ctx context.Context, ev Event) {
	rows, err := r.off.Marriages(ev.ChatID)
	if err != nil {
		log.Printf("courier: router: list marriages: %v", err)
		return
	}
	r.replyText(ctx, ev.ChatID, formatMarriageList(rows))
}

func (r *Router) cmdDivorce(ctx context.Context, ev Event) {
	m, err := r.off.StartDivorce(ev.ChatID, ev.UserID)
	if err != nil {
		if errors.Is(err, officiant.ErrNoActiveMarriage) {
			r.replyText(ctx, ev.ChatID, "❌ You're not married 🤷")
			return
		}
		log.Printf("courier: router: start divorce: %v", err)
		return
	}
	_, pname, phandle := m.Partner(ev.UserID)
	r.reply(ctx, ev.ChatID, Outbound{
		Text: formatDivorcePrompt(ev.FirstName, models.Mention(pname, phandle)),
		Buttons: [][]Button{{
			{Label: "✅ Yes, divorce", Data: divorceData(m.ID, ev.UserID)},
			{Label: "❌ No, changed my mind", Data: keepData(ev.UserID)},
		}},
	})
}

func (r *Router) cmdCouple(ctx context.Context, ev Event) {
	stats, err := r.off.Couple(ev.ChatID, ev.UserID)
	if err != nil {
		r.replyOutcomeErr(ctx, ev.ChatID, err)
		return
	}
	m := stats.Marriage

	img := card.Render(card.Opts{
		NameA:      models.Mention(m.AName, m.AHandle),
		NameB:      models.Mention(m.BName, m.BHandle),
		AvatarA:    r.fetchAvatar(ctx, m.AID),
		AvatarB:    r.fetchAvatar(ctx, m.BID),
		Days:       stats.Days,
		Messages:   stats.Messages,
		FormedDate: m.MarriedAt.Format("02.01.2006"),
		FontPaths:  r.fontPaths,
	})
	data, err := card.EncodePNG(img)
	if err != nil {
		log.Printf("courier: router: encode card: %v", err)
		return
	}
	if err := r.adapter.SendPhoto(ctx, ev.ChatID, data, formatCoupleCaption(stats)); err != nil {
		log.Printf("courier: router: send card: %v", err)
	}
}

// handlePress routes an inline button press. Every consent and divorce
// button is bound to one user; anyone else gets a non-fatal alert before
// the state machine is ever consulted.
func (r *Router) handlePress(ctx context.Context, ev Event) {
	pr, ok := parsePress(ev.PressData)
	if !ok {
		return
	}

	if pr.action == pressCmds {
		r.ack(ctx, ev.PressID, "")
		r.replyText(ctx, ev.ChatID, commandsText)
		return
	}

	if ev.UserID != pr.boundID {
		r.alert(ctx, ev.PressID, notYourButtonText)
		return
	}

	switch pr.action {
	case pressConsent:
		r.pressConsent(ctx, ev, pr)
	case pressDecline:
		r.pressDecline(ctx, ev, pr)
	case pressDivorce:
		r.pressDivorce(ctx, ev, pr)
	case pressKeep:
		r.pressKeep(ctx, ev, pr)
	}
}

func (r *Router) pressConsent(ctx context.Context, ev Event, pr press) {
	out, err := r.off.Confirm(pr.rowID, ev.UserID)
	if err != nil {
		r.pressErr(ctx, ev, err)
		return
	}
	r.ack(ctx, ev.PressID, consentTakenText)

	surface := surfaceOf(ev, out.Proposal.SurfaceRef)
	if out.Marriage != nil {
		r.edit(ctx, ev.ChatID, surface, Outbound{Text: formatMarried(out.Marriage)})
		return
	}
	// Refresh the surface with a consent control for the party still due.
	r.edit(ctx, ev.ChatID, surface, Outbound{
		Text:    formatAwaiting(ev.FirstName, out.AwaitingName),
		Buttons: [][]Button{consentRow(out.Proposal.ID, out.AwaitingID, out.AwaitingName, false)},
	})
}

func (r *Router) pressDecline(ctx context.Context, ev Event, pr press) {
	out, err := r.off.Reject(pr.rowID, ev.UserID)
	if err != nil {
		r.pressErr(ctx, ev, err)
		return
	}
	r.ack(ctx, ev.PressID, "")
	r.edit(ctx, ev.ChatID, surfaceOf(ev, out.Proposal.SurfaceRef), Outbound{
		Text: formatRejected(ev.FirstName, out.ComfortName),
	})
}

func (r *Router) pressDivorce(ctx context.Context, ev Event, pr press) {
	out, err := r.off.ConfirmDivorce(pr.rowID, ev.UserID, pr.boundID)
	if err != nil {
		if errors.Is(err, officiant.ErrNoActiveMarriage) {
			r.alert(ctx, ev.PressID, marriageGoneText)
			return
		}
		r.pressErr(ctx, ev, err)
		return
	}
	r.ack(ctx, ev.PressID, "")
	r.edit(ctx, ev.ChatID, ev.SurfaceRef, Outbound{Text: formatDivorced(out.Marriage, out.Days)})
}

func (r *Router) pressKeep(ctx context.Context, ev Event, pr press) {
	if err := r.off.CancelDivorce(ev.UserID, pr.boundID); err != nil {
		r.pressErr(ctx, ev, err)
		return
	}
	r.ack(ctx, ev.PressID, "")
	r.edit(ctx, ev.ChatID, ev.SurfaceRef, Outbound{Text: formatDivorceCancelled(ev.FirstName)})
}

// pressErr surfaces recoverable press outcomes as alerts and logs the rest.
func (r *Router) pressErr(ctx context.Context, ev Event, err error) {
	switch {
	case errors.Is(err, officiant.ErrNotYourDecision):
		r.alert(ctx, ev.PressID, notYourButtonText)
	case errors.Is(err, officiant.ErrProposalStale):
		r.alert(ctx, ev.PressID, staleProposalText)
	default:
		log.Printf("courier: router: press %q: %v", ev.PressData, err)
	}
}

// fetchAvatar retrieves a profile picture, tolerating every failure —
// the card renderer substitutes a placeholder for nil.
func (r *Router) fetchAvatar(ctx context.Context, userID int64) image.Image {
	img, err := r.adapter.Avatar(ctx, userID)
	if err != nil {
		log.Printf("courier: router: avatar for %d: %v", userID, err)
		return nil
	}
	return img
}

// replyOutcomeErr renders a recoverable outcome to the chat; anything
// else is a storage failure and is only logged.
func (r *Router) replyOutcomeErr(ctx context.Context, chatID int64, err error) {
	if text, ok := formatOutcomeErr(err); ok {
		r.replyText(ctx, chatID, text)
		return
	}
	log.Printf("courier: router: command failed: %v", err)
}

func (r *Router) reply(ctx context.Context, chatID int64, msg Outbound) {
	msg.ChatID = chatID
	if _, err := r.adapter.Send(ctx, msg); err != nil {
		log.Printf("courier: router: send: %v", err)
	}
}

func (r *Router) replyText(ctx context.Context, chatID int64, text string) {
	r.reply(ctx, chatID, Outbound{Text: text})
}

func (r *Router) edit(ctx context.Context, chatID int64, surfaceRef string, msg Outbound) {
	if surfaceRef == "" {
		// The surface was never attached; fall back to a fresh message.
		r.reply(ctx, chatID, msg)
		return
	}
	msg.ChatID = chatID
	if err := r.adapter.Edit(ctx, chatID, surfaceRef, msg); err != nil {
		log.Printf("courier: router: edit %s: %v", surfaceRef, err)
	}
}

func (r *Router) alert(ctx context.Context, pressID, text string) {
	if err := r.adapter.Alert(ctx, pressID, text); err != nil {
		log.Printf("courier: router: alert: %v", err)
	}
}

func (r *Router) ack(ctx context.Context, pressID, text string) {
	if err := r.adapter.Ack(ctx, pressID, text); err != nil {
		log.Printf("courier: router: ack: %v", err)
	}
}

// surfaceOf prefers the surface the press arrived on, falling back to the
// ref stored on the proposal row.
func surfaceOf(ev Event, stored string) string {
	if ev.SurfaceRef != "" {
		return ev.SurfaceRef
	}
	return stored
}
