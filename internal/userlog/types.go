package userlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// TimestampLayout is the wire format of event timestamps. Stored values are UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// EventKind categorizes ledger entries.
type EventKind int

const (
	// KindBan is recorded for every ban variant.
	KindBan EventKind = iota
	// KindKick is recorded when a member is kicked.
	KindKick
	// KindWarn is recorded when a member is warned.
	KindWarn
	// KindNote is a staff-only note.
	KindNote
	// KindToss is recorded when a member is isolated.
	KindToss
)

// AllKinds lists every kind in display order.
var AllKinds = []EventKind{KindBan, KindKick, KindWarn, KindNote, KindToss}

var kindKeys = map[EventKind]string{
	KindBan:  "bans",
	KindKick: "kicks",
	KindWarn: "warns",
	KindNote: "notes",
	KindToss: "tosses",
}

var kindNames = map[EventKind]string{
	KindBan:  "Ban",
	KindKick: "Kick",
	KindWarn: "Warn",
	KindNote: "Note",
	KindToss: "Toss",
}

// String returns the display name of the kind.
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Key returns the storage key of the kind, which is also the plural name
// accepted by the ledger-editing commands.
func (k EventKind) Key() string {
	return kindKeys[k]
}

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	_, ok := kindKeys[k]
	return ok
}

// ParseEventKind accepts a storage key ("warns") or a display name ("warn"),
// case-insensitively.
func ParseEventKind(s string) (EventKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, kind := range AllKinds {
		if s == kind.Key() || s == strings.ToLower(kind.String()) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Issuer identifies the staff member who created an event.
type Issuer struct {
	ID   snowflake.ID
	Name string
}

// Event is one immutable ledger entry.
type Event struct {
	Timestamp time.Time
	Issuer    Issuer
	Reason    string
}

// Watch holds the heightened scrutiny flag of a user.
type Watch struct {
	State bool
}

// GuildUserLog is the full ledger of one user in one guild.
type GuildUserLog struct {
	Events map[EventKind][]Event
	Watch  Watch
}

// Count returns the number of events of the given kind.
func (l *GuildUserLog) Count(kind EventKind) int {
	return len(l.Events[kind])
}

// Empty reports whether the log holds no events of the given kinds. With no
// kinds given every kind is checked.
func (l *GuildUserLog) Empty(kinds ...EventKind) bool {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	for _, kind := range kinds {
		if len(l.Events[kind]) > 0 {
			return false
		}
	}
	return true
}
