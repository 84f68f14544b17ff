package moderation

import (
	"context"
	"fmt"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/robalyx/bailiff/internal/userlog"
)

// Identity is a resolved platform user.
type Identity struct {
	ID        snowflake.ID
	Name      string
	AvatarURL string
	Bot       bool
}

// Mention returns the platform mention markup of the user.
func (i Identity) Mention() string {
	return fmt.Sprintf("<@%d>", i.ID)
}

// Member is a user's current membership in a guild.
type Member struct {
	RoleIDs []snowflake.ID
}

// HasRole reports whether the member currently holds the role.
func (m *Member) HasRole(roleID snowflake.ID) bool {
	return m != nil && roleID != 0 && slices.Contains(m.RoleIDs, roleID)
}

// Target is the subject of an action. Member is nil when the user is not
// currently in the guild.
type Target struct {
	Identity
	Member *Member
}

// IsMember reports whether the target is currently in the guild.
func (t Target) IsMember() bool {
	return t.Member != nil
}

// Guild identifies the guild an action runs in.
type Guild struct {
	ID   snowflake.ID
	Name string
}

// Origin references the interaction an action was issued from.
type Origin struct {
	ChannelID snowflake.ID
	JumpURL   string
}

// ActionRequest describes one pipeline invocation.
type ActionRequest struct {
	ID       uuid.UUID
	Guild    Guild
	Actor    Identity
	TargetID snowflake.ID
	Action   Action
	Reason   string
	Origin   Origin
}

// NewActionRequest creates a request with a fresh correlation id.
func NewActionRequest(guild Guild, actor Identity, targetID snowflake.ID, action Action, reason string, origin Origin) ActionRequest {
	return ActionRequest{
		ID:       uuid.New(),
		Guild:    guild,
		Actor:    actor,
		TargetID: targetID,
		Action:   action,
		Reason:   reason,
		Origin:   origin,
	}
}

// Membership manages guild membership on the platform.
type Membership interface {
	Kick(ctx context.Context, guildID, userID snowflake.ID, auditReason string) error
	Ban(ctx context.Context, guildID, userID snowflake.ID, deleteDays int, auditReason string) error
	Unban(ctx context.Context, guildID, userID snowflake.ID, auditReason string) error
	// ResolveMember returns ErrMemberAbsent when the user is not in the guild.
	ResolveMember(ctx context.Context, guildID, userID snowflake.ID) (*Member, error)
	ResolveUser(ctx context.Context, userID snowflake.ID) (Identity, error)
}

// DirectMessenger delivers private messages. Implementations return
// ErrDMForbidden when the recipient does not accept them.
type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, userID snowflake.ID, text string) error
}

// ChannelPublisher posts audit messages to a guild channel.
type ChannelPublisher interface {
	PublishAudit(ctx context.Context, channelID snowflake.ID, msg AuditMessage) error
}

// ConfigProvider resolves per-guild settings.
type ConfigProvider interface {
	Get(ctx context.Context, guildID snowflake.ID, section, key string) (string, bool, error)
}

// Ledger records moderation events.
type Ledger interface {
	AppendEvent(
		ctx context.Context, guildID, userID snowflake.ID, kind userlog.EventKind, issuer userlog.Issuer, reason string,
	) (int, error)
}
