package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/userlog"
	"go.uber.org/zap"
)

// ErrNoValidTargets is returned when a mass ban lists nothing parseable.
var ErrNoValidTargets = errors.New("no valid user ids given")

// Replies shared by several commands.
const (
	ReplyInternalError = "Something went wrong while running this command. Please try again later."
	ReplyUnresolved    = "I couldn't find that user."
	ReplyShuttingDown  = "The bot is shutting down. Please try again in a moment."
	ReplyDMsDelivered  = "For privacy, your logs have been DMed."
	ReplyDMsClosed     = "I couldn't DM you your logs. Please allow direct messages from server members."
)

// Invocation carries who ran a command and where.
type Invocation struct {
	Guild  moderation.Guild
	Actor  moderation.Identity
	Origin moderation.Origin
}

// NewOrigin builds the origin of a command run in a guild channel.
func NewOrigin(guildID, channelID snowflake.ID) moderation.Origin {
	return moderation.Origin{
		ChannelID: channelID,
		JumpURL:   fmt.Sprintf("https://discord.com/channels/%d/%d", guildID, channelID),
	}
}

// Handler implements the moderation commands independently of the gateway.
type Handler struct {
	pipeline *moderation.Pipeline
	ledger   *userlog.Store
	config   *guildconfig.Provider
	audit    *moderation.AuditEmitter
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	pipeline *moderation.Pipeline,
	ledger *userlog.Store,
	config *guildconfig.Provider,
	audit *moderation.AuditEmitter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		pipeline: pipeline,
		ledger:   ledger,
		config:   config,
		audit:    audit,
		logger:   logger.Named("commands"),
	}
}

// IsStaff reports whether a member holding roleIDs has the guild's staff role.
func (h *Handler) IsStaff(ctx context.Context, guildID snowflake.ID, roleIDs []snowflake.ID) bool {
	roleID, ok, err := h.config.GetID(ctx, guildID, guildconfig.SectionStaff, guildconfig.KeyStaffRole)
	if err != nil {
		h.logger.Warn("Failed to read staff role",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	member := moderation.Member{RoleIDs: roleIDs}
	return member.HasRole(roleID)
}

// Moderate runs a single-target action and returns the reply text.
func (h *Handler) Moderate(
	ctx context.Context, inv Invocation, targetID snowflake.ID, action moderation.Action, reason string,
) string {
	req := moderation.NewActionRequest(inv.Guild, inv.Actor, targetID, action, reason, inv.Origin)

	result, err := h.pipeline.Run(ctx, req)
	if err != nil {
		return h.errorReply(req, err)
	}

	return result.Message
}

// MassBan parses space separated ids and bans every one of them.
func (h *Handler) MassBan(ctx context.Context, inv Invocation, rawTargets, reason string) string {
	targets, err := ParseTargets(rawTargets)
	if err != nil {
		return "Please give at least one valid user id."
	}

	req := moderation.NewActionRequest(inv.Guild, inv.Actor, 0, moderation.MassBan{Targets: targets}, reason, inv.Origin)

	report, err := h.pipeline.RunBatch(ctx, req)
	if err != nil {
		return h.errorReply(req, err)
	}

	return moderation.BatchMessage(report)
}

// UserLog renders a user's log for staff. kindName may be empty.
func (h *Handler) UserLog(
	ctx context.Context, guildID snowflake.ID, user moderation.Identity, kindName string,
) (*discord.Embed, string) {
	view := LogView{User: user}
	if kindName != "" {
		kind, err := userlog.ParseEventKind(kindName)
		if err != nil {
			return nil, unknownKindReply(kindName)
		}
		view.Kind = &kind
	}

	return h.renderLog(ctx, guildID, view)
}

// Notes renders only the notes of a user.
func (h *Handler) Notes(ctx context.Context, guildID snowflake.ID, user moderation.Identity) (*discord.Embed, string) {
	kind := userlog.KindNote
	return h.renderLog(ctx, guildID, LogView{User: user, Kind: &kind})
}

// OwnLog renders the caller's own log.
func (h *Handler) OwnLog(ctx context.Context, guildID snowflake.ID, user moderation.Identity) (*discord.Embed, string) {
	return h.renderLog(ctx, guildID, LogView{User: user, Own: true})
}

func (h *Handler) renderLog(ctx context.Context, guildID snowflake.ID, view LogView) (*discord.Embed, string) {
	log, found, err := h.ledger.GetLog(ctx, guildID, view.User.ID)
	if err != nil {
		h.logger.Error("Failed to load userlog",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("userID", uint64(view.User.ID)),
			zap.Error(err))
		return nil, ReplyInternalError
	}

	embed := BuildUserLogEmbed(view, log, found)
	return &embed, ""
}

// ClearEvent removes every event of one kind from a user's log.
func (h *Handler) ClearEvent(ctx context.Context, inv Invocation, target moderation.Identity, kindName string) string {
	kind, err := parseKindOrDefault(kindName)
	if err != nil {
		return unknownKindReply(kindName)
	}

	if _, err := h.ledger.ClearKind(ctx, inv.Guild.ID, target.ID, kind); err != nil {
		if errors.Is(err, userlog.ErrNoSuchEvents) {
			return fmt.Sprintf("%s has no %s!", target.Mention(), kind.Key())
		}
		h.logger.Error("Failed to clear events",
			zap.Uint64("guildID", uint64(inv.Guild.ID)),
			zap.Uint64("userID", uint64(target.ID)),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return ReplyInternalError
	}

	h.emitLedgerEdit(ctx, moderation.LedgerEdit{
		GuildID: inv.Guild.ID,
		Actor:   inv.Actor,
		Target:  target,
		Kind:    kind,
		Origin:  inv.Origin,
	})

	return fmt.Sprintf("%s no longer has any %s!", target.Mention(), kind.Key())
}

// DeleteEvent removes the event at a 1-based index from a user's log.
func (h *Handler) DeleteEvent(
	ctx context.Context, inv Invocation, target moderation.Identity, idx int, kindName string,
) string {
	kind, err := parseKindOrDefault(kindName)
	if err != nil {
		return unknownKindReply(kindName)
	}

	removed, err := h.ledger.DeleteAtIndex(ctx, inv.Guild.ID, target.ID, kind, idx)
	if err != nil {
		var indexErr *userlog.IndexError
		switch {
		case errors.Is(err, userlog.ErrNoSuchEvents):
			return fmt.Sprintf("%s has no %s!", target.Mention(), kind.Key())
		case errors.As(err, &indexErr) && indexErr.Index > indexErr.Count:
			return fmt.Sprintf("Index is higher than count (%d)!", indexErr.Count)
		case errors.As(err, &indexErr):
			return "Index is below 1!"
		}
		h.logger.Error("Failed to delete event",
			zap.Uint64("guildID", uint64(inv.Guild.ID)),
			zap.Uint64("userID", uint64(target.ID)),
			zap.String("kind", kind.String()),
			zap.Int("index", idx),
			zap.Error(err))
		return ReplyInternalError
	}

	h.emitLedgerEdit(ctx, moderation.LedgerEdit{
		GuildID: inv.Guild.ID,
		Actor:   inv.Actor,
		Target:  target,
		Kind:    kind,
		Origin:  inv.Origin,
		Index:   idx,
		Removed: &removed,
	})

	return fmt.Sprintf("%s has a %s removed!", target.Mention(), strings.ToLower(kind.String()))
}

// EventTypes lists the kinds accepted by the ledger-editing commands.
func (h *Handler) EventTypes() string {
	entries := make([]string, 0, len(userlog.AllKinds))
	for _, kind := range userlog.AllKinds {
		entries = append(entries, fmt.Sprintf("%s (%s)", kind.Key(), kind))
	}
	return "Available events:\n``` - " + strings.Join(entries, "\n - ") + "```"
}

// ModQueue lists the actions currently being processed in a guild.
func (h *Handler) ModQueue(guildID snowflake.ID) string {
	pending := h.pipeline.States().Pending(guildID)
	if len(pending) == 0 {
		return "No moderation actions are in progress."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d action(s) in progress:", len(pending))
	for _, p := range pending {
		fmt.Fprintf(&b, "\n- `%s` on <@%d>", p.Kind.Command(), p.TargetID)
	}
	return b.String()
}

func (h *Handler) emitLedgerEdit(ctx context.Context, edit moderation.LedgerEdit) {
	if _, err := h.audit.EmitLedgerEdit(ctx, edit); err != nil {
		h.logger.Warn("Failed to publish ledger edit",
			zap.Uint64("guildID", uint64(edit.GuildID)),
			zap.Uint64("userID", uint64(edit.Target.ID)),
			zap.Error(err))
	}
}

func (h *Handler) errorReply(req moderation.ActionRequest, err error) string {
	switch {
	case errors.Is(err, moderation.ErrInvalidDeleteDays):
		return "Delete days must be between 0 and 7."
	case errors.Is(err, moderation.ErrNoTargets):
		return "Please give at least one valid user id."
	case errors.Is(err, moderation.ErrTargetUnresolved):
		return ReplyUnresolved
	case errors.Is(err, moderation.ErrPipelineClosed):
		return ReplyShuttingDown
	}

	h.logger.Error("Moderation action failed",
		zap.String("requestID", req.ID.String()),
		zap.Uint64("guildID", uint64(req.Guild.ID)),
		zap.String("kind", req.Action.Kind().String()),
		zap.Error(err))
	return ReplyInternalError
}

// ParseTargets parses space separated user ids or mentions. Unparseable
// tokens are skipped.
func ParseTargets(raw string) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	for _, token := range strings.Fields(raw) {
		token = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(token, "<@"), "!"), ">")
		id, err := snowflake.Parse(token)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, ErrNoValidTargets
	}
	return ids, nil
}

func parseKindOrDefault(name string) (userlog.EventKind, error) {
	if strings.TrimSpace(name) == "" {
		return userlog.KindWarn, nil
	}
	return userlog.ParseEventKind(name)
}

func unknownKindReply(name string) string {
	return fmt.Sprintf("Unknown event type `%s`. Use `/eventtypes` to list them.", name)
}
