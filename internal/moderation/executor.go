package moderation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// maxAuditReasonLength is the platform's limit for audit log reasons.
const maxAuditReasonLength = 512

// massBanAuditReason replaces the free-text reason on mass-ban platform calls.
const massBanAuditReason = "Massban."

// Executor performs the membership call of each action.
type Executor struct {
	membership Membership
	logger     *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(membership Membership, logger *zap.Logger) *Executor {
	return &Executor{
		membership: membership,
		logger:     logger.Named("executor"),
	}
}

// Execute runs the action against one target. Failures are wrapped in
// ActionExecutionError and never retried. Warn and Note make no call.
func (e *Executor) Execute(
	ctx context.Context, guildID snowflake.ID, action Action, target Target, reason string, actor Identity,
) error {
	auditReason := AuditReason(action.Kind(), actor, reason)

	var err error
	switch a := action.(type) {
	case Kick:
		err = e.membership.Kick(ctx, guildID, target.ID, auditReason)
	case Ban:
		err = e.membership.Ban(ctx, guildID, target.ID, 0, auditReason)
	case TimedBan:
		err = e.membership.Ban(ctx, guildID, target.ID, a.DeleteDays, auditReason)
	case SilentBan:
		err = e.membership.Ban(ctx, guildID, target.ID, 0, auditReason)
	case MassBan:
		err = e.membership.Ban(ctx, guildID, target.ID, 0, auditReason)
	case Unban:
		err = e.membership.Unban(ctx, guildID, target.ID, auditReason)
	case Warn, Note:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}

	if err != nil {
		e.logger.Warn("Action failed",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("userID", uint64(target.ID)),
			zap.String("kind", action.Kind().String()),
			zap.Error(err))
		return &ActionExecutionError{Kind: action.Kind(), TargetID: target.ID, Err: err}
	}

	return nil
}

// AuditReason formats the reason attached to the platform's own audit log.
func AuditReason(kind ActionKind, actor Identity, reason string) string {
	if kind == KindMassBan {
		reason = massBanAuditReason
	}

	text := strings.TrimSpace(fmt.Sprintf("[ %s by %s ] %s", kind.Label(), actor.Name, reason))
	if utf8.RuneCountInString(text) <= maxAuditReasonLength {
		return text
	}

	runes := []rune(text)
	return string(runes[:maxAuditReasonLength-1]) + "…"
}
