package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/userlog"
	"go.uber.org/zap"
)

// Severity selects the colour of an audit record.
type Severity int

const (
	// SeverityInfo is used for restorative or informational actions.
	SeverityInfo Severity = iota
	// SeverityWarning is used for kicks and warnings.
	SeverityWarning
	// SeverityDestructive is used for bans.
	SeverityDestructive
)

// Color returns the embed colour of the severity.
func (s Severity) Color() int {
	switch s {
	case SeverityWarning:
		return 0xFFFF00
	case SeverityDestructive:
		return 0xFF0000
	case SeverityInfo:
		return 0x00FF00
	}
	return 0x00FF00
}

// ColorLedgerEdit is used for deleted-event detail embeds.
const ColorLedgerEdit = 0x992D22

// AuditOutcome reports whether a record was published.
type AuditOutcome int

const (
	// AuditPublished means the record reached the review channel.
	AuditPublished AuditOutcome = iota
	// AuditSkipped means no review channel is configured.
	AuditSkipped
	// AuditFailed means a review channel is configured but the record
	// could not be posted to it.
	AuditFailed
)

func (o AuditOutcome) String() string {
	switch o {
	case AuditPublished:
		return "Published"
	case AuditFailed:
		return "Failed"
	case AuditSkipped:
		return "Skipped"
	}
	return "Skipped"
}

// AuditField is one name/value pair of an audit embed.
type AuditField struct {
	Name   string
	Value  string
	Inline bool
}

// AuditEmbed is the platform-neutral form of an audit embed.
type AuditEmbed struct {
	Title       string
	Description string
	Color       int
	AuthorName  string
	AuthorIcon  string
	Fields      []AuditField
	Timestamp   time.Time
}

// AuditMessage is what gets posted to the review channel.
type AuditMessage struct {
	Content string
	Embed   *AuditEmbed
}

// AuditRecord describes a completed action.
type AuditRecord struct {
	GuildID   snowflake.ID
	Kind      ActionKind
	Target    Identity
	Actor     Identity
	Reason    string
	Origin    Origin
	WarnCount int
}

// LedgerEdit describes a staff edit of a user's log.
type LedgerEdit struct {
	GuildID snowflake.ID
	Actor   Identity
	Target  Identity
	Kind    userlog.EventKind
	Origin  Origin
	// Index is the 1-based position of a deleted event. Zero means the whole
	// kind was cleared.
	Index   int
	Removed *userlog.Event
}

// AuditEmitter publishes audit records to the guild's review channel.
type AuditEmitter struct {
	config    ConfigProvider
	publisher ChannelPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditEmitter creates an AuditEmitter.
func NewAuditEmitter(config ConfigProvider, publisher ChannelPublisher, logger *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		config:    config,
		publisher: publisher,
		logger:    logger.Named("audit"),
		now:       time.Now,
	}
}

// Emit publishes the record. A guild without a review channel yields
// AuditSkipped and no error.
func (a *AuditEmitter) Emit(ctx context.Context, rec AuditRecord) (AuditOutcome, error) {
	embed := a.BuildEmbed(rec)
	return a.publish(ctx, rec.GuildID, AuditMessage{Embed: &embed})
}

// EmitLedgerEdit publishes a line describing a cleared or deleted event.
func (a *AuditEmitter) EmitLedgerEdit(ctx context.Context, edit LedgerEdit) (AuditOutcome, error) {
	return a.publish(ctx, edit.GuildID, BuildLedgerEditMessage(edit))
}

func (a *AuditEmitter) publish(ctx context.Context, guildID snowflake.ID, msg AuditMessage) (AuditOutcome, error) {
	value, ok, err := a.config.Get(ctx, guildID, guildconfig.SectionLogging, guildconfig.KeyModLog)
	if err != nil {
		return AuditFailed, fmt.Errorf("failed to resolve review channel: %w", err)
	}
	if !ok {
		return AuditSkipped, nil
	}

	channelID, err := snowflake.Parse(value)
	if err != nil {
		return AuditFailed, fmt.Errorf("%w: %q", guildconfig.ErrNotSnowflake, value)
	}

	if err := a.publisher.PublishAudit(ctx, channelID, msg); err != nil {
		a.logger.Error("Failed to publish audit record",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
		return AuditFailed, fmt.Errorf("failed to publish audit record: %w", err)
	}

	return AuditPublished, nil
}

// BuildEmbed renders the audit embed of a record.
func (a *AuditEmitter) BuildEmbed(rec AuditRecord) AuditEmbed {
	description := fmt.Sprintf("%s was %s by %s", rec.Target.Mention(), auditVerb(rec.Kind), rec.Actor.Mention())
	if rec.Origin.ChannelID != 0 {
		description += fmt.Sprintf(" [<#%d>]", rec.Origin.ChannelID)
	}
	if rec.Origin.JumpURL != "" {
		description += fmt.Sprintf(" [[Jump](%s)]", rec.Origin.JumpURL)
	}

	fields := []AuditField{
		{Name: "👤 User", Value: identityField(rec.Target), Inline: true},
		{Name: "🛠️ Staff", Value: identityField(rec.Actor), Inline: true},
	}

	// Mass bans carry no per-target reason.
	switch {
	case rec.Reason != "":
		fields = append(fields, AuditField{Name: "📝 Reason", Value: rec.Reason})
	case rec.Kind != KindMassBan:
		fields = append(fields, AuditField{Name: "📝 Reason", Value: DefaultAuditReason(rec.Kind)})
	}

	return AuditEmbed{
		Title:       AuditTitle(rec.Kind, rec.WarnCount),
		Description: description,
		Color:       AuditSeverity(rec.Kind).Color(),
		AuthorName:  rec.Target.Name,
		AuthorIcon:  rec.Target.AvatarURL,
		Fields:      fields,
		Timestamp:   a.now().UTC(),
	}
}

// AuditTitle returns the embed title of an action.
func AuditTitle(kind ActionKind, warnCount int) string {
	switch kind {
	case KindKick:
		return "👢 Kick"
	case KindBan, KindTimedBan:
		return "⛔ Ban"
	case KindSilentBan:
		return "⛔ Silent Ban"
	case KindMassBan:
		return "🚨 Massban"
	case KindUnban:
		return "🎁 Unban"
	case KindWarn:
		return fmt.Sprintf("🗞️ Warn #%d", warnCount)
	case KindNote:
		return "📝 Note"
	}
	return kind.String()
}

// AuditSeverity maps an action to its severity.
func AuditSeverity(kind ActionKind) Severity {
	switch kind {
	case KindBan, KindTimedBan, KindSilentBan, KindMassBan:
		return SeverityDestructive
	case KindKick, KindWarn:
		return SeverityWarning
	case KindUnban, KindNote:
		return SeverityInfo
	}
	return SeverityInfo
}

// DefaultAuditReason is shown in place of an empty reason. Actions that
// notify the target also remind the issuer that reasons are user-visible.
func DefaultAuditReason(kind ActionKind) string {
	text := fmt.Sprintf("**No reason provided!**\nPlease use `/%s <user> [reason]` in the future.", kind.Command())
	if kind.Notifies() {
		text += fmt.Sprintf("\n%s reasons are sent to the user.", kind.Label())
	}
	return text
}

// BuildLedgerEditMessage renders the review channel line for a ledger edit.
func BuildLedgerEditMessage(edit LedgerEdit) AuditMessage {
	name := strings.ToLower(edit.Kind.String())

	var content string
	if edit.Index == 0 {
		content = fmt.Sprintf("🗑 **Cleared %s**: %s cleared all %s events of %s | %s",
			edit.Kind.Key(), edit.Actor.Mention(), edit.Kind.Key(), edit.Target.Mention(), edit.Target.Name)
	} else {
		content = fmt.Sprintf("🗑 **Deleted %s**: %s removed %s %d from %s | %s",
			name, edit.Actor.Mention(), name, edit.Index, edit.Target.Mention(), edit.Target.Name)
	}
	if edit.Origin.JumpURL != "" {
		content += fmt.Sprintf("\n🔗 __Jump__: <%s>", edit.Origin.JumpURL)
	}

	msg := AuditMessage{Content: content}
	if edit.Removed != nil {
		embed := DeletedEventEmbed(edit.Kind, edit.Index, *edit.Removed)
		msg.Embed = &embed
	}

	return msg
}

// DeletedEventEmbed renders the detail of a removed event.
func DeletedEventEmbed(kind userlog.EventKind, idx int, event userlog.Event) AuditEmbed {
	return AuditEmbed{
		Title:       fmt.Sprintf("%s %d on %s", kind, idx, event.Timestamp.UTC().Format(userlog.TimestampLayout)),
		Description: fmt.Sprintf("Issuer: %s\nReason: %s", event.Issuer.Name, ReasonOrDefault(event.Reason)),
		Color:       ColorLedgerEdit,
	}
}

func auditVerb(kind ActionKind) string {
	switch kind {
	case KindKick:
		return "kicked"
	case KindBan, KindTimedBan, KindSilentBan, KindMassBan:
		return "banned"
	case KindUnban:
		return "unbanned"
	case KindWarn:
		return "warned"
	case KindNote:
		return "noted"
	}
	return "moderated"
}

func identityField(id Identity) string {
	return fmt.Sprintf("**%s**\n%s (`%d`)", id.Name, id.Mention(), id.ID)
}
