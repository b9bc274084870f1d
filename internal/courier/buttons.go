package courier

import (
	"fmt"
	"strconv"
	"strings"
)

// Button payload grammar. Each consent or divorce button is bound to the
// one user allowed to press it; the router rejects any other presser
// before the state machine is consulted.
//
//	yes_<proposalID>_<userID>   grant consent
//	no_<proposalID>_<userID>    decline
//	dyes_<marriageID>_<userID>  confirm divorce
//	dno_<userID>                cancel divorce
//	cmds                        show the command list
const (
	pressConsent = "yes"
	pressDecline = "no"
	pressDivorce = "dyes"
	pressKeep    = "dno"
	pressCmds    = "cmds"
)

// press is a decoded button payload.
type press struct {
	action  string
	rowID   uint  // proposal or marriage ID; zero for dno/cmds
	boundID int64 // the only user allowed to press; zero for cmds
}

func consentData(proposalID uint, userID int64) string {
	return fmt.Sprintf("%s_%d_%d", pressConsent, proposalID, userID)
}

func declineData(proposalID uint, userID int64) string {
	return fmt.Sprintf("%s_%d_%d", pressDecline, proposalID, userID)
}

func divorceData(marriageID uint, userID int64) string {
	return fmt.Sprintf("%s_%d_%d", pressDivorce, marriageID, userID)
}

func keepData(userID int64) string {
	return fmt.Sprintf("%s_%d", pressKeep, userID)
}

// parsePress decodes a button payload. Unknown or malformed payloads
// return ok=false and are ignored by the router.
func parsePress(data string) (press, bool) {
	if data == pressCmds {
		return press{action: pressCmds}, true
	}
	parts := strings.Split(data, "_")
	switch {
	case len(parts) == 3 && (parts[0] == pressConsent || parts[0] == pressDecline || parts[0] == pressDivorce):
		rowID, err1 := strconv.ParseUint(parts[1], 10, 32)
		boundID, err2 := strconv.ParseInt(parts[2], 10, 64)
		if err1 != nil || err2 != nil {
			return press{}, false
		}
		return press{action: parts[0], rowID: uint(rowID), boundID: boundID}, true
	case len(parts) == 2 && parts[0] == pressKeep:
		boundID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return press{}, false
		}
		return press{action: pressKeep, boundID: boundID}, true
	}
	return press{}, false
}

// consentRow builds the yes/no button pair bound to one user.
func consentRow(proposalID uint, userID int64, name string, labeled bool) []Button {
	yes, no := "✅ I do!", "❌ Decline"
	if labeled {
		yes = fmt.Sprintf("✅ %s: I do", name)
		no = fmt.Sprintf("❌ %s: Decline", name)
	}
	return []Button{
		{Label: yes, Data: consentData(proposalID, userID)},
		{Label: no, Data: declineData(proposalID, userID)},
	}
}
