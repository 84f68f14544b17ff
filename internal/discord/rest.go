// Package discord adapts the Discord REST API to the moderation collaborators.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/moderation"
	"go.uber.org/zap"
)

// JSON error codes returned by the Discord API.
const (
	codeUnknownMember          = 10007
	codeUnknownUser            = 10013
	codeCannotSendMessagesUser = 50007
)

// Adapter implements moderation.Membership, moderation.DirectMessenger and
// moderation.ChannelPublisher on top of a REST client.
type Adapter struct {
	rest   rest.Rest
	logger *zap.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(client rest.Rest, logger *zap.Logger) *Adapter {
	return &Adapter{
		rest:   client,
		logger: logger.Named("discord_rest"),
	}
}

// Kick removes a member from the guild.
func (a *Adapter) Kick(ctx context.Context, guildID, userID snowflake.ID, auditReason string) error {
	if err := a.rest.RemoveMember(guildID, userID, rest.WithCtx(ctx), rest.WithReason(auditReason)); err != nil {
		return fmt.Errorf("failed to kick member: %w", err)
	}
	return nil
}

// Ban bans a user, deleting deleteDays of their message history.
func (a *Adapter) Ban(ctx context.Context, guildID, userID snowflake.ID, deleteDays int, auditReason string) error {
	window := time.Duration(deleteDays) * 24 * time.Hour
	if err := a.rest.AddBan(guildID, userID, window, rest.WithCtx(ctx), rest.WithReason(auditReason)); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

// Unban lifts a ban.
func (a *Adapter) Unban(ctx context.Context, guildID, userID snowflake.ID, auditReason string) error {
	if err := a.rest.DeleteBan(guildID, userID, rest.WithCtx(ctx), rest.WithReason(auditReason)); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// ResolveMember fetches the user's membership in the guild.
func (a *Adapter) ResolveMember(ctx context.Context, guildID, userID snowflake.ID) (*moderation.Member, error) {
	member, err := a.rest.GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		if hasCode(err, codeUnknownMember, codeUnknownUser) || hasStatus(err, http.StatusNotFound) {
			return nil, moderation.ErrMemberAbsent
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &moderation.Member{RoleIDs: member.RoleIDs}, nil
}

// ResolveUser fetches a user by id.
func (a *Adapter) ResolveUser(ctx context.Context, userID snowflake.ID) (moderation.Identity, error) {
	user, err := a.rest.GetUser(userID, rest.WithCtx(ctx))
	if err != nil {
		return moderation.Identity{}, fmt.Errorf("failed to get user: %w", err)
	}
	return IdentityFromUser(*user), nil
}

// SendDirectMessage opens a DM channel with the user and posts text to it.
func (a *Adapter) SendDirectMessage(ctx context.Context, userID snowflake.ID, text string) error {
	return a.SendDirectMessageCreate(ctx, userID, discord.NewMessageCreateBuilder().
		SetContent(text).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build())
}

// SendDirectMessageCreate posts an arbitrary message to the user's DM channel.
func (a *Adapter) SendDirectMessageCreate(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) error {
	channel, err := a.rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return classifyDMError(fmt.Errorf("failed to create DM channel: %w", err))
	}

	if _, err := a.rest.CreateMessage(channel.ID(), msg, rest.WithCtx(ctx)); err != nil {
		return classifyDMError(fmt.Errorf("failed to send direct message: %w", err))
	}

	return nil
}

// PublishAudit posts an audit message to a channel.
func (a *Adapter) PublishAudit(ctx context.Context, channelID snowflake.ID, msg moderation.AuditMessage) error {
	builder := discord.NewMessageCreateBuilder().
		SetContent(msg.Content).
		SetAllowedMentions(&discord.AllowedMentions{})
	if msg.Embed != nil {
		builder.SetEmbeds(BuildEmbed(*msg.Embed))
	}

	if _, err := a.rest.CreateMessage(channelID, builder.Build(), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to publish audit message: %w", err)
	}

	return nil
}

// BuildEmbed converts a platform-neutral audit embed.
func BuildEmbed(embed moderation.AuditEmbed) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(embed.Title).
		SetDescription(embed.Description).
		SetColor(embed.Color)

	if embed.AuthorName != "" {
		builder.SetAuthor(embed.AuthorName, "", embed.AuthorIcon)
	}
	for _, field := range embed.Fields {
		builder.AddField(field.Name, field.Value, field.Inline)
	}
	if !embed.Timestamp.IsZero() {
		builder.SetTimestamp(embed.Timestamp)
	}

	return builder.Build()
}

// IdentityFromUser converts a Discord user.
func IdentityFromUser(user discord.User) moderation.Identity {
	return moderation.Identity{
		ID:        user.ID,
		Name:      user.Tag(),
		AvatarURL: user.EffectiveAvatarURL(),
		Bot:       user.Bot,
	}
}

// classifyDMError maps refusals to moderation.ErrDMForbidden.
func classifyDMError(err error) error {
	if hasCode(err, codeCannotSendMessagesUser) || hasStatus(err, http.StatusForbidden) {
		return fmt.Errorf("%w: %w", moderation.ErrDMForbidden, err)
	}
	return err
}

func hasCode(err error, codes ...rest.JSONErrorCode) bool {
	var restErr *rest.Error
	if !errors.As(err, &restErr) {
		return false
	}
	for _, code := range codes {
		if restErr.Code == code {
			return true
		}
	}
	return false
}

func hasStatus(err error, status int) bool {
	var restErr *rest.Error
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == status
}
