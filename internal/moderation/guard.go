package moderation

import "github.com/disgoorg/snowflake/v2"

// Guard denial reasons. They are shown to the actor verbatim.
const (
	DenySelf    = "cannot target self"
	DenySystem  = "cannot target the system account"
	DenyImmune  = "target is immune"
	allowReason = ""
)

// Decision is the outcome of a guard evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the permitting decision.
func Allow() Decision { return Decision{Allowed: true, Reason: allowReason} }

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// GuardEvaluator decides whether an actor may act on a target.
type GuardEvaluator interface {
	Evaluate(actorID snowflake.ID, target Target, kind ActionKind, staffRoleID snowflake.ID) Decision
}

// Guard is the default GuardEvaluator. It holds no state besides the id of the
// bot's own account.
type Guard struct {
	systemID snowflake.ID
}

// NewGuard creates a Guard protecting the given system account.
func NewGuard(systemID snowflake.ID) *Guard {
	return &Guard{systemID: systemID}
}

// Evaluate applies the rules in order and returns the first match. A zero
// staffRoleID means the guild has no immune role.
func (g *Guard) Evaluate(actorID snowflake.ID, target Target, kind ActionKind, staffRoleID snowflake.ID) Decision {
	switch {
	case target.ID == actorID:
		return Deny(DenySelf)
	case target.ID == g.systemID:
		return Deny(DenySystem)
	case kind.Immunable() && target.Member.HasRole(staffRoleID):
		return Deny(DenyImmune)
	default:
		return Allow()
	}
}
