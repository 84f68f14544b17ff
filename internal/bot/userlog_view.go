package bot

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/userlog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Embed colours of the userlog view.
const (
	ColorLogEmpty   = 0x2ECC71
	ColorLogPresent = 0xE67E22
	ColorLogWatched = 0x992D22
)

// Discord rejects embed field values longer than this.
const maxFieldLength = 1024

var (
	staffKinds = []userlog.EventKind{userlog.KindToss, userlog.KindWarn, userlog.KindKick, userlog.KindBan}
	ownKinds   = []userlog.EventKind{userlog.KindWarn, userlog.KindKick, userlog.KindBan}
	titleCaser = cases.Title(language.English)
)

// LogView describes one rendering of a user's log.
type LogView struct {
	User moderation.Identity
	// Own hides issuers, tosses and the watch line.
	Own bool
	// Kind restricts the view to a single kind when set.
	Kind *userlog.EventKind
}

// BuildUserLogEmbed renders a user's log. found is false when the user has
// never been logged.
func BuildUserLogEmbed(view LogView, log *userlog.GuildUserLog, found bool) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("📜 Recorded logs...").
		SetAuthor(view.User.Name, "", view.User.AvatarURL)

	if !found || log == nil {
		return builder.SetDescription("> Not in system.").Build()
	}

	kinds := staffKinds
	if view.Own {
		kinds = ownKinds
	}
	if view.Kind != nil {
		kinds = []userlog.EventKind{*view.Kind}
	}

	fields := 0
	for _, kind := range kinds {
		events := log.Events[kind]
		if len(events) == 0 {
			continue
		}
		builder.AddField(titleCaser.String(kind.Key()), truncate(renderEvents(kind, events, view.Own), maxFieldLength), false)
		fields++
	}

	color := ColorLogPresent
	if fields == 0 {
		color = ColorLogEmpty
	}

	var description string
	if !view.Own {
		state := "is not"
		if log.Watch.State {
			state = "is"
			color = ColorLogWatched
		}
		notes := log.Count(userlog.KindNote)
		description = fmt.Sprintf("🔎 *User **%s** under watch, and has `%d` note%s.*", state, notes, plural(notes))
	}
	if fields == 0 {
		description += "\n> No logs recorded."
	}

	return builder.
		SetColor(color).
		SetDescription(description).
		Build()
}

func renderEvents(kind userlog.EventKind, events []userlog.Event, own bool) string {
	var b strings.Builder
	for i, event := range events {
		ts := event.Timestamp.Unix()
		fmt.Fprintf(&b, "\n`%s %d` <t:%d:R> on <t:%d:f>\n", kind, i+1, ts, ts)
		if !own {
			fmt.Fprintf(&b, "__Issuer:__ <@%d> (%d)\n", event.Issuer.ID, event.Issuer.ID)
		}
		fmt.Fprintf(&b, "__Reason:__ %s\n", moderation.ReasonOrDefault(event.Reason))
	}
	return b.String()
}

func truncate(s string, maxLength int) string {
	if len(s) > maxLength {
		return s[:maxLength-3] + "..."
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
