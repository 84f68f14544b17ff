package moderation

import (
	"errors"
	"fmt"
	"strings"
)

// NoReasonText replaces an empty reason in replies to staff.
const NoReasonText = "No reason provided."

// ReasonOrDefault returns reason, or NoReasonText when it is empty.
func ReasonOrDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return NoReasonText
	}
	return reason
}

// SuccessMessage renders the reply for a completed action.
func SuccessMessage(action Action, target Identity, reason string, warnCount int) string {
	var msg string
	switch a := action.(type) {
	case Kick:
		msg = fmt.Sprintf("**%s** was KICKED.", target.Mention())
	case Ban:
		msg = fmt.Sprintf("**%s** is now BANNED.", target.Mention())
	case TimedBan:
		msg = fmt.Sprintf("**%s** is now BANNED. %d day(s) of messages deleted.", target.Mention(), a.DeleteDays)
	case SilentBan:
		msg = fmt.Sprintf("%s is now silently BANNED.", target.Name)
	case MassBan:
		msg = fmt.Sprintf("**%s** is now BANNED.", target.Mention())
	case Unban:
		msg = fmt.Sprintf("%s is now UNBANNED.", target.Name)
	case Warn:
		msg = fmt.Sprintf("%s has been warned (warning #%d). This user now has %d warning(s).",
			target.Mention(), warnCount, warnCount)
	case Note:
		return "Noted."
	default:
		return "Done."
	}

	return msg + "\n📝 Reason: " + ReasonOrDefault(reason)
}

// FailureMessage renders the reply for an action whose membership call
// failed after the ledger entry was written.
func FailureMessage(kind ActionKind, target Identity, err error) string {
	cause := err
	var execErr *ActionExecutionError
	if errors.As(err, &execErr) {
		cause = execErr.Err
	}
	return fmt.Sprintf("Failed to %s %s: %v. The log entry was kept.", kind.Command(), target.Mention(), cause)
}

// BatchMessage summarizes a mass ban.
func BatchMessage(report *BatchReport) string {
	var b strings.Builder

	if report.Failed == 0 && report.Denied == 0 {
		fmt.Fprintf(&b, "All %d users are now BANNED.", report.Succeeded)
	} else {
		fmt.Fprintf(&b, "%d of %d users are now BANNED (%d denied, %d failed).",
			report.Succeeded, len(report.Outcomes), report.Denied, report.Failed)
	}

	for _, outcome := range report.Outcomes {
		if outcome.State.Failed() {
			fmt.Fprintf(&b, "\n(re: %d) %s", outcome.TargetID, outcome.Message)
		}
	}

	return b.String()
}
