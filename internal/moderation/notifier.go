package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// NotifyOutcome classifies a notification attempt. Every outcome other than
// NotifySent is a suppression.
type NotifyOutcome int

const (
	// NotifySent means the message was delivered.
	NotifySent NotifyOutcome = iota
	// NotifyForbidden means the target does not accept direct messages.
	NotifyForbidden
	// NotifyDeliveryError means delivery failed for any other reason.
	NotifyDeliveryError
	// NotifyNotMember means the target is not in the guild.
	NotifyNotMember
	// NotifyNotApplicable means the action never notifies.
	NotifyNotApplicable
)

func (o NotifyOutcome) String() string {
	switch o {
	case NotifySent:
		return "Sent"
	case NotifyForbidden:
		return "Forbidden"
	case NotifyDeliveryError:
		return "DeliveryError"
	case NotifyNotMember:
		return "NotMember"
	case NotifyNotApplicable:
		return "NotApplicable"
	}
	return fmt.Sprintf("NotifyOutcome(%d)", int(o))
}

// Sent reports whether the message was delivered.
func (o NotifyOutcome) Sent() bool {
	return o == NotifySent
}

// NotifyInfo carries the guild context rendered into notifications.
type NotifyInfo struct {
	GuildName string
	WarnCount int
	AppealURL string
	RulesURL  string
}

// Notifier sends best-effort direct messages to moderated users.
type Notifier struct {
	dm     DirectMessenger
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewNotifier creates a Notifier allowing at most concurrency deliveries at once.
func NewNotifier(dm DirectMessenger, concurrency int64, logger *zap.Logger) *Notifier {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Notifier{
		dm:     dm,
		sem:    semaphore.NewWeighted(concurrency),
		logger: logger.Named("notifier"),
	}
}

// Notify attempts to tell the target about the action. Failures are
// classified and logged at debug level, never returned.
func (n *Notifier) Notify(ctx context.Context, target Target, kind ActionKind, reason string, info NotifyInfo) NotifyOutcome {
	text, ok := NotificationText(kind, reason, info)
	if !ok {
		return NotifyNotApplicable
	}
	if !target.IsMember() {
		return NotifyNotMember
	}

	if err := n.sem.Acquire(ctx, 1); err != nil {
		n.logger.Debug("Notification abandoned",
			zap.Uint64("userID", uint64(target.ID)),
			zap.Error(err))
		return NotifyDeliveryError
	}
	defer n.sem.Release(1)

	err := n.dm.SendDirectMessage(ctx, target.ID, text)
	outcome := classifyDelivery(err)

	if outcome != NotifySent {
		n.logger.Debug("Notification suppressed",
			zap.Uint64("userID", uint64(target.ID)),
			zap.String("kind", kind.String()),
			zap.String("outcome", outcome.String()),
			zap.Error(err))
	}

	return outcome
}

func classifyDelivery(err error) NotifyOutcome {
	switch {
	case err == nil:
		return NotifySent
	case errors.Is(err, ErrDMForbidden):
		return NotifyForbidden
	default:
		return NotifyDeliveryError
	}
}

// NotificationText renders the direct message for an action. The boolean is
// false for actions that never notify.
func NotificationText(kind ActionKind, reason string, info NotifyInfo) (string, bool) {
	var b strings.Builder

	switch kind {
	case KindKick:
		fmt.Fprintf(&b, "**You were kicked** from `%s`.", info.GuildName)
		if reason != "" {
			fmt.Fprintf(&b, "\n*The given reason is:* \"%s\".", reason)
		}
		b.WriteString("\n\nYou are able to rejoin.")

	case KindBan, KindTimedBan:
		fmt.Fprintf(&b, "**You were banned** from `%s`.", info.GuildName)
		if reason != "" {
			fmt.Fprintf(&b, "\n*The given reason is:* \"%s\".", reason)
		}
		b.WriteString("\n\nThis ban does not expire")
		if info.AppealURL != "" {
			fmt.Fprintf(&b, ", but you may appeal it here:\n%s", info.AppealURL)
		} else {
			b.WriteString(".")
		}

	case KindWarn:
		fmt.Fprintf(&b, "**You were warned** on `%s`.", info.GuildName)
		if reason != "" {
			b.WriteString("\nThe given reason is: " + reason)
		}
		b.WriteString("\n\nPlease read the rules")
		if info.RulesURL != "" {
			fmt.Fprintf(&b, " in %s", info.RulesURL)
		}
		fmt.Fprintf(&b, ". This is warn #%d.", info.WarnCount)

	case KindSilentBan, KindUnban, KindMassBan, KindNote:
		return "", false

	default:
		return "", false
	}

	return b.String(), true
}
