package moderation

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrInvalidDeleteDays is returned when a timed ban's window is outside 0..7.
	ErrInvalidDeleteDays = errors.New("delete days must be between 0 and 7")
	// ErrNoTargets is returned for a mass ban without targets.
	ErrNoTargets = errors.New("no targets given")
	// ErrUnknownAction is returned for a nil or unrecognized action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrTargetUnresolved is returned when the target cannot be looked up.
	ErrTargetUnresolved = errors.New("target could not be resolved")
	// ErrBatchAction is returned when a batch action is passed to Run.
	ErrBatchAction = errors.New("batch actions must use RunBatch")
	// ErrPipelineClosed is returned after Close.
	ErrPipelineClosed = errors.New("pipeline is closed")

	// ErrMemberAbsent is returned by Membership.ResolveMember when the user is
	// not in the guild.
	ErrMemberAbsent = errors.New("user is not a member of the guild")
	// ErrDMForbidden is returned by DirectMessenger when the recipient does not
	// accept direct messages.
	ErrDMForbidden = errors.New("direct messages are forbidden")
)

// ActionExecutionError reports a failed membership call. The ledger entry
// written before the call is kept.
type ActionExecutionError struct {
	Kind     ActionKind
	TargetID snowflake.ID
	Err      error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %s on %d: %v", e.Kind, e.TargetID, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }
