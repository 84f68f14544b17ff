package bot

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	adapter "github.com/robalyx/bailiff/internal/discord"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/userlog"
	"go.uber.org/zap"
)

// Option names.
const (
	optUser   = "user"
	optUsers  = "users"
	optReason = "reason"
	optDays   = "days"
	optText   = "text"
	optEvent  = "event"
	optIndex  = "index"
)

// reply is what a command answers with.
type reply struct {
	content string
	embed   *discord.Embed
}

func textReply(content string) reply {
	return reply{content: content}
}

func embedReply(embed *discord.Embed, fallback string) reply {
	if embed == nil {
		return reply{content: fallback}
	}
	return reply{embed: embed}
}

// command couples a slash command definition with its implementation.
type command struct {
	create discord.SlashCommandCreate
	// permission grants access on its own. Zero means everyone may run it.
	permission discord.Permissions
	ephemeral  bool
	// batch commands bound each target by the request timeout instead of the
	// whole command.
	batch bool
	run   func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply
}

func intPtr(v int) *int {
	return &v
}

func userOption(description string) discord.ApplicationCommandOption {
	return discord.ApplicationCommandOptionUser{Name: optUser, Description: description, Required: true}
}

func reasonOption() discord.ApplicationCommandOption {
	return discord.ApplicationCommandOptionString{Name: optReason, Description: "Reason for the action", MaxLength: intPtr(512)}
}

func eventOption(description string) discord.ApplicationCommandOption {
	choices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(userlog.AllKinds))
	for _, kind := range userlog.AllKinds {
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{Name: kind.Key(), Value: kind.Key()})
	}
	return discord.ApplicationCommandOptionString{Name: optEvent, Description: description, Choices: choices}
}

// moderate builds a single-target action command.
func moderate(
	name, description string, permission discord.Permissions, action func(discord.SlashCommandInteractionData) moderation.Action,
	extra ...discord.ApplicationCommandOption,
) command {
	options := append([]discord.ApplicationCommandOption{userOption("User to act on")}, extra...)
	options = append(options, reasonOption())

	return command{
		create:     discord.SlashCommandCreate{Name: name, Description: description, Options: options},
		permission: permission,
		run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
			data := event.SlashCommandInteractionData()
			target := data.User(optUser)
			return textReply(b.handler.Moderate(ctx, inv, target.ID, action(data), data.String(optReason)))
		},
	}
}

// commands returns every slash command the bot registers.
func commands() []command {
	return []command{
		moderate("kick", "Kick a member", discord.PermissionKickMembers,
			func(discord.SlashCommandInteractionData) moderation.Action { return moderation.Kick{} }),
		moderate("ban", "Ban a user", discord.PermissionBanMembers,
			func(discord.SlashCommandInteractionData) moderation.Action { return moderation.Ban{} }),
		moderate("dban", "Ban a user and delete their recent messages", discord.PermissionBanMembers,
			func(data discord.SlashCommandInteractionData) moderation.Action {
				return moderation.TimedBan{DeleteDays: data.Int(optDays)}
			},
			discord.ApplicationCommandOptionInt{
				Name:        optDays,
				Description: "Days of messages to delete",
				Required:    true,
				MinValue:    intPtr(0),
				MaxValue:    intPtr(7),
			}),
		moderate("sban", "Ban a user without notifying them", discord.PermissionBanMembers,
			func(discord.SlashCommandInteractionData) moderation.Action { return moderation.SilentBan{} }),
		moderate("unban", "Lift a ban", discord.PermissionBanMembers,
			func(discord.SlashCommandInteractionData) moderation.Action { return moderation.Unban{} }),
		moderate("warn", "Warn a member", discord.PermissionModerateMembers,
			func(discord.SlashCommandInteractionData) moderation.Action { return moderation.Warn{} }),
		{
			create: discord.SlashCommandCreate{
				Name:        "massban",
				Description: "Ban several users at once",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{Name: optUsers, Description: "Space separated user ids", Required: true},
					reasonOption(),
				},
			},
			permission: discord.PermissionBanMembers,
			batch:      true,
			run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				data := event.SlashCommandInteractionData()
				return textReply(b.handler.MassBan(ctx, inv, data.String(optUsers), data.String(optReason)))
			},
		},
		{
			create: discord.SlashCommandCreate{
				Name:        "note",
				Description: "Add a staff note to a user",
				Options: []discord.ApplicationCommandOption{
					userOption("User to note"),
					discord.ApplicationCommandOptionString{Name: optText, Description: "Note text", Required: true, MaxLength: intPtr(512)},
				},
			},
			permission: discord.PermissionModerateMembers,
			run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				data := event.SlashCommandInteractionData()
				target := data.User(optUser)
				return textReply(b.handler.Moderate(ctx, inv, target.ID, moderation.Note{}, data.String(optText)))
			},
		},
		{
			create: discord.SlashCommandCreate{
				Name:        "userlog",
				Description: "List the logged events of a user",
				Options:     []discord.ApplicationCommandOption{userOption("User to look up"), eventOption("Only show this event type")},
			},
			permission: discord.PermissionModerateMembers,
			run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				data := event.SlashCommandInteractionData()
				user := adapter.IdentityFromUser(data.User(optUser))
				return embedReply(b.handler.UserLog(ctx, inv.Guild.ID, user, data.String(optEvent)))
			},
		},
		{
			create: discord.SlashCommandCreate{
				Name:        "notes",
				Description: "List the notes of a user",
				Options:     []discord.ApplicationCommandOption{userOption("User to look up")},
			},
			permission: discord.PermissionModerateMembers,
			run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				user := adapter.IdentityFromUser(event.SlashCommandInteractionData().User(optUser))
				return embedReply(b.handler.Notes(ctx, inv.Guild.ID, user))
			},
		},
		{
			create:    discord.SlashCommandCreate{Name: "mylogs", Description: "Receive your own logs by direct message"},
			ephemeral: true,
			run: func(ctx context.Context, b *Bot, _ *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				return textReply(b.sendOwnLog(ctx, inv))
			},
		},
		{
			create: discord.SlashCommandCreate{
				Name:        "clearevent",
				Description: "Clear every event of one type from a user",
				Options:     []discord.ApplicationCommandOption{userOption("User to edit"), eventOption("Event type, warns by default")},
			},
			permission: discord.PermissionModerateMembers,
			run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				data := event.SlashCommandInteractionData()
				target := adapter.IdentityFromUser(data.User(optUser))
				return textReply(b.handler.ClearEvent(ctx, inv, target, data.String(optEvent)))
			},
		},
		{
			create: discord.SlashCommandCreate{
				Name:        "delevent",
				Description: "Remove one event from a user",
				Options: []discord.ApplicationCommandOption{
					userOption("User to edit"),
					discord.ApplicationCommandOptionInt{Name: optIndex, Description: "Position of the event, starting at 1", Required: true},
					eventOption("Event type, warns by default"),
				},
			},
			permission: discord.PermissionModerateMembers,
			run: func(ctx context.Context, b *Bot, event *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				data := event.SlashCommandInteractionData()
				target := adapter.IdentityFromUser(data.User(optUser))
				return textReply(b.handler.DeleteEvent(ctx, inv, target, data.Int(optIndex), data.String(optEvent)))
			},
		},
		{
			create:     discord.SlashCommandCreate{Name: "eventtypes", Description: "List the available event types"},
			permission: discord.PermissionModerateMembers,
			run: func(_ context.Context, b *Bot, _ *events.ApplicationCommandInteractionCreate, _ Invocation) reply {
				return textReply(b.handler.EventTypes())
			},
		},
		{
			create:     discord.SlashCommandCreate{Name: "modqueue", Description: "List moderation actions in progress"},
			permission: discord.PermissionModerateMembers,
			run: func(_ context.Context, b *Bot, _ *events.ApplicationCommandInteractionCreate, inv Invocation) reply {
				return textReply(b.handler.ModQueue(inv.Guild.ID))
			},
		},
	}
}

// sendOwnLog delivers the caller's log by direct message.
func (b *Bot) sendOwnLog(ctx context.Context, inv Invocation) string {
	embed, failure := b.handler.OwnLog(ctx, inv.Guild.ID, inv.Actor)
	if embed == nil {
		return failure
	}

	msg := discord.NewMessageCreateBuilder().
		SetEmbeds(*embed).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()
	if err := b.rest.SendDirectMessageCreate(ctx, inv.Actor.ID, msg); err != nil {
		if errors.Is(err, moderation.ErrDMForbidden) {
			return ReplyDMsClosed
		}
		b.logger.Error("Failed to send own log",
			zap.Uint64("guildID", uint64(inv.Guild.ID)),
			zap.Uint64("userID", uint64(inv.Actor.ID)),
			zap.Error(err))
		return ReplyInternalError
	}

	return ReplyDMsDelivered
}

// allowed reports whether the invoking member may run cmd.
func (b *Bot) allowed(ctx context.Context, cmd command, guildID snowflake.ID, member *discord.ResolvedMember) bool {
	if cmd.permission == 0 {
		return true
	}
	if member == nil {
		return false
	}
	if member.Permissions.Has(discord.PermissionAdministrator) || member.Permissions.Has(cmd.permission) {
		return true
	}
	return b.handler.IsStaff(ctx, guildID, member.RoleIDs)
}
