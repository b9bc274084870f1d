package courier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/daryatsv/chapel/internal/models"
	"github.com/daryatsv/chapel/internal/officiant"
)

// greetingText is the /start and /help reply in a private chat.
const greetingText = "💍 <b>Chapel</b> 💍\n\n" +
	"Hi! I marry people right inside your group chat.\n\n" +
	"Add me to a group and wed your friends,\n" +
	"or propose to someone yourself! 💒\n\n" +
	"Press <b>Commands</b> to see what I can do."

// commandsText lists every bot command.
const commandsText = "📜 <b>Commands:</b>\n\n" +
	"💍 /marry <code>@name</code> — propose to someone\n" +
	"💒 /tomarry <code>@name1 @name2</code> — wed two others\n" +
	"📋 /marriages — all couples in this chat\n" +
	"📊 /couple — your couple's statistics card\n" +
	"💔 /divorce — file for divorce"

const groupOnlyText = "❌ This command only works in groups!"

// formatOutcomeErr renders a recoverable officiant outcome as user-facing
// text. Unexpected errors (storage failures) return ok=false so the
// caller can log and stay silent instead of exposing internals.
func formatOutcomeErr(err error) (string, bool) {
	var subject string
	var se *officiant.SubjectError
	if errors.As(err, &se) {
		subject = se.Subject
	}
	switch {
	case errors.Is(err, officiant.ErrInvalidTarget):
		return "❌ You can't marry someone to themselves 😅", true
	case errors.Is(err, officiant.ErrUnknownIdentity):
		return fmt.Sprintf("❌ %s not found.\nThey need to send at least one message in this chat first.", subject), true
	case errors.Is(err, officiant.ErrAlreadyMarried):
		return fmt.Sprintf("❌ %s is already married!", subject), true
	case errors.Is(err, officiant.ErrProposalInProgress):
		return fmt.Sprintf("❌ There is already an active proposal for %s!", subject), true
	case errors.Is(err, officiant.ErrNoActiveMarriage):
		return "❌ You're not married! Try /marry 💍", true
	}
	return "", false
}

// Alert texts for button presses that can no longer succeed.
const (
	notYourButtonText = "This button isn't for you!"
	staleProposalText = "That proposal has lapsed!"
	marriageGoneText  = "That marriage is already dissolved!"
	consentTakenText  = "✅ Noted!"
)

func formatPairProposal(initiatorName, aName, bName string) string {
	return fmt.Sprintf("💒 <b>%s</b> wants to wed <b>%s</b> and <b>%s</b>!\n\nBoth must say yes! 💍",
		initiatorName, aName, bName)
}

func formatSingleProposal(initiatorName, targetName, targetMention string) string {
	return fmt.Sprintf("💍 <b>%s</b> asks for <b>%s</b>'s hand in marriage!\n\n%s, do you accept? 💒",
		initiatorName, targetName, targetMention)
}

func formatAwaiting(presserName, awaitingName string) string {
	return fmt.Sprintf("✅ <b>%s</b> said yes!\n\nWaiting for <b>%s</b>... 💒", presserName, awaitingName)
}

func formatMarried(m *models.Marriage) string {
	return fmt.Sprintf("🎊💒 <b>Congratulations!</b>\n\n%s and %s are now married! 💍\n\n📅 %s\n\nUse /couple for your statistics 💕",
		models.Mention(m.AName, m.AHandle),
		models.Mention(m.BName, m.BHandle),
		m.MarriedAt.Format("02.01.2006"))
}

func formatRejected(presserName, comfortName string) string {
	return fmt.Sprintf("💔 <b>%s</b> said no...\n\n<b>%s</b>, don't be sad — your day will come! 🫂",
		presserName, comfortName)
}

func formatDivorcePrompt(actorName, partnerMention string) string {
	return fmt.Sprintf("⚠️ <b>%s</b>, do you really want to divorce <b>%s</b>?\n\nThis cannot be undone!",
		actorName, partnerMention)
}

func formatDivorced(m *models.Marriage, days int) string {
	return fmt.Sprintf("📜 The marriage between <b>%s</b> and <b>%s</b> is dissolved.\nThey were together for <b>%d</b> days. 💔",
		models.Mention(m.AName, m.AHandle),
		models.Mention(m.BName, m.BHandle),
		days)
}

func formatDivorceCancelled(actorName string) string {
	return fmt.Sprintf("❤️ <b>%s</b> kept the marriage!\nLove wins! 🎉", actorName)
}

func formatMarriageList(rows []officiant.CoupleSummary) string {
	if len(rows) == 0 {
		return "💔 No couples in this chat yet..."
	}
	lines := []string{"💍 <b>Couples in this chat:</b>\n"}
	for i, r := range rows {
		lines = append(lines, fmt.Sprintf("%d. %s ❤️ %s — <i>%d d.</i>",
			i+1,
			models.Mention(r.Marriage.AName, r.Marriage.AHandle),
			models.Mention(r.Marriage.BName, r.Marriage.BHandle),
			r.Days))
	}
	return strings.Join(lines, "\n")
}

func formatCoupleCaption(s *officiant.CoupleStats) string {
	return fmt.Sprintf("💍 <b>%s</b> ❤️ <b>%s</b>\nTogether <b>%d</b> d. | 💬 <b>%d</b> msgs.",
		models.Mention(s.Marriage.AName, s.Marriage.AHandle),
		models.Mention(s.Marriage.BName, s.Marriage.BHandle),
		s.Days, s.Messages)
}
