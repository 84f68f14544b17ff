package moderation

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/userlog"
)

// MaxDeleteDays is the longest message-history window a ban may delete.
const MaxDeleteDays = 7

// ActionKind is the discriminant of an Action.
type ActionKind int

const (
	// KindKick removes a member who may rejoin.
	KindKick ActionKind = iota
	// KindBan bans a user without deleting messages.
	KindBan
	// KindTimedBan bans a user and deletes recent messages.
	KindTimedBan
	// KindSilentBan bans a user without notifying them.
	KindSilentBan
	// KindUnban lifts a ban.
	KindUnban
	// KindMassBan bans several users at once without notifying them.
	KindMassBan
	// KindWarn records a warning and notifies the user.
	KindWarn
	// KindNote records a staff note.
	KindNote
)

var actionKindNames = map[ActionKind]string{
	KindKick:      "Kick",
	KindBan:       "Ban",
	KindTimedBan:  "TimedBan",
	KindSilentBan: "SilentBan",
	KindUnban:     "Unban",
	KindMassBan:   "MassBan",
	KindWarn:      "Warn",
	KindNote:      "Note",
}

func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// EventKind returns the ledger kind recorded for the action. Unban records
// nothing.
func (k ActionKind) EventKind() (userlog.EventKind, bool) {
	switch k {
	case KindKick:
		return userlog.KindKick, true
	case KindBan, KindTimedBan, KindSilentBan, KindMassBan:
		return userlog.KindBan, true
	case KindWarn:
		return userlog.KindWarn, true
	case KindNote:
		return userlog.KindNote, true
	case KindUnban:
		return 0, false
	}
	return 0, false
}

// Immunable reports whether holders of the staff role are protected from it.
func (k ActionKind) Immunable() bool {
	switch k {
	case KindKick, KindBan, KindTimedBan, KindSilentBan, KindWarn, KindMassBan:
		return true
	case KindUnban, KindNote:
		return false
	}
	return false
}

// Notifies reports whether the target is sent a direct message.
func (k ActionKind) Notifies() bool {
	switch k {
	case KindKick, KindBan, KindTimedBan, KindWarn:
		return true
	case KindSilentBan, KindUnban, KindMassBan, KindNote:
		return false
	}
	return false
}

// Label is the short name used in platform audit reasons.
func (k ActionKind) Label() string {
	switch k {
	case KindBan, KindTimedBan, KindSilentBan, KindMassBan:
		return "Ban"
	case KindKick, KindUnban, KindWarn, KindNote:
		return k.String()
	}
	return k.String()
}

// Command returns the command name that issues the action.
func (k ActionKind) Command() string {
	switch k {
	case KindKick:
		return "kick"
	case KindBan:
		return "ban"
	case KindTimedBan:
		return "dban"
	case KindSilentBan:
		return "sban"
	case KindUnban:
		return "unban"
	case KindMassBan:
		return "massban"
	case KindWarn:
		return "warn"
	case KindNote:
		return "note"
	}
	return ""
}

// Action is a closed set of moderation actions. Each variant carries the
// fields it needs.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Kick removes the target from the guild.
type Kick struct{}

// Ban bans the target and keeps their messages.
type Ban struct{}

// TimedBan bans the target and deletes DeleteDays of message history.
type TimedBan struct {
	DeleteDays int
}

// SilentBan bans the target without a direct message.
type SilentBan struct{}

// Unban lifts the ban on the target.
type Unban struct{}

// MassBan bans every id in Targets.
type MassBan struct {
	Targets []snowflake.ID
}

// Warn records a warning.
type Warn struct{}

// Note records a staff note.
type Note struct{}

func (Kick) Kind() ActionKind      { return KindKick }
func (Ban) Kind() ActionKind       { return KindBan }
func (TimedBan) Kind() ActionKind  { return KindTimedBan }
func (SilentBan) Kind() ActionKind { return KindSilentBan }
func (Unban) Kind() ActionKind     { return KindUnban }
func (MassBan) Kind() ActionKind   { return KindMassBan }
func (Warn) Kind() ActionKind      { return KindWarn }
func (Note) Kind() ActionKind      { return KindNote }

func (Kick) isAction()      {}
func (Ban) isAction()       {}
func (TimedBan) isAction()  {}
func (SilentBan) isAction() {}
func (Unban) isAction()     {}
func (MassBan) isAction()   {}
func (Warn) isAction()      {}
func (Note) isAction()      {}

// Validate rejects malformed actions before any state is touched.
func Validate(action Action) error {
	switch a := action.(type) {
	case TimedBan:
		if a.DeleteDays < 0 || a.DeleteDays > MaxDeleteDays {
			return fmt.Errorf("%w: %d", ErrInvalidDeleteDays, a.DeleteDays)
		}
	case MassBan:
		if len(a.Targets) == 0 {
			return ErrNoTargets
		}
	case nil:
		return ErrUnknownAction
	}
	return nil
}
