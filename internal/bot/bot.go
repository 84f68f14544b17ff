// Package bot exposes the moderation pipeline and user logs as Discord slash commands.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	adapter "github.com/robalyx/bailiff/internal/discord"
	"github.com/robalyx/bailiff/internal/document"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/setup/config"
	"github.com/robalyx/bailiff/internal/userlog"
	"go.uber.org/zap"
)

// interactionLifetime stays under the 15 minutes an interaction token can
// still edit its response.
const interactionLifetime = 14 * time.Minute

// Bot owns the Discord client and routes slash commands to the Handler.
type Bot struct {
	client         bot.Client
	rest           *adapter.Adapter
	pipeline       *moderation.Pipeline
	handler        *Handler
	commands       []command
	byName         map[string]command
	commandGuildID snowflake.ID
	timeout        time.Duration
	logger         *zap.Logger
}

// New creates the Discord client and wires the moderation pipeline to it.
func New(cfg *config.BotConfig, docs document.Store, locker *document.Locker, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		commands:       commands(),
		byName:         make(map[string]command),
		commandGuildID: snowflake.ID(cfg.Discord.CommandGuildID),
		timeout:        time.Duration(cfg.RequestTimeout) * time.Millisecond,
		logger:         logger.Named("bot"),
	}
	for _, cmd := range b.commands {
		b.byName[cmd.create.Name] = cmd
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(gateway.IntentGuilds),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}
	b.client = client
	b.rest = adapter.NewAdapter(client.Rest(), logger)

	ledger := userlog.NewStore(docs, locker, logger)
	guildConfig := guildconfig.NewProvider(docs, locker)
	audit := moderation.NewAuditEmitter(guildConfig, b.rest, logger)

	b.pipeline = moderation.NewPipeline(moderation.Dependencies{
		Guard:      moderation.NewGuard(client.ID()),
		Ledger:     ledger,
		Membership: b.rest,
		Config:     guildConfig,
		Notifier:   moderation.NewNotifier(b.rest, cfg.Moderation.DMConcurrency, logger),
		Executor:   moderation.NewExecutor(b.rest, logger),
		Audit:      audit,
	}, cfg.Moderation.BatchConcurrency, logger, moderation.WithItemTimeout(b.timeout))
	b.handler = NewHandler(b.pipeline, ledger, guildConfig, audit, logger)

	return b, nil
}

// Start registers the slash commands and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands", zap.Int("count", len(b.commands)))

	creates := make([]discord.ApplicationCommandCreate, 0, len(b.commands))
	for _, cmd := range b.commands {
		creates = append(creates, cmd.create)
	}

	var err error
	if b.commandGuildID != 0 {
		_, err = b.client.Rest().SetGuildCommands(b.client.ApplicationID(), b.commandGuildID, creates)
	} else {
		_, err = b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), creates)
	}
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close stops accepting moderation requests and closes the gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.pipeline.Close()
	b.client.Close(ctx)
}

// handleApplicationCommandInteraction defers the response and runs the
// command in its own goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		data := event.SlashCommandInteractionData()
		cmd, ok := b.byName[data.CommandName()]

		// Defer response to prevent Discord timeout while processing
		if err := event.DeferCreateMessage(ok && cmd.ephemeral); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		if !ok {
			b.respond(event, textReply("This command is not available."))
			return
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler",
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))
				b.respond(event, textReply("Internal error. Please report this to an administrator."))
			}
			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		guildID := event.GuildID()
		if guildID == nil {
			b.respond(event, textReply("This command can only be used in a server."))
			return
		}

		timeout := b.timeout
		if cmd.batch {
			timeout = interactionLifetime
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if !b.allowed(ctx, cmd, *guildID, event.Member()) {
			b.respond(event, textReply("You do not have permission to use this command."))
			return
		}

		inv := Invocation{
			Guild:  moderation.Guild{ID: *guildID, Name: b.guildName(*guildID)},
			Actor:  adapter.IdentityFromUser(event.User()),
			Origin: NewOrigin(*guildID, event.Channel().ID()),
		}

		b.respond(event, cmd.run(ctx, b, event, inv))
	}()
}

// respond replaces the deferred response.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, r reply) {
	builder := discord.NewMessageUpdateBuilder().
		SetContent(r.content).
		SetAllowedMentions(&discord.AllowedMentions{})
	if r.embed != nil {
		builder.SetEmbeds(*r.embed)
	}

	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(), builder.Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

// guildName returns the cached name of a guild, or its id when it is not cached.
func (b *Bot) guildName(guildID snowflake.ID) string {
	if guild, ok := b.client.Caches().Guild(guildID); ok {
		return guild.Name
	}
	return guildID.String()
}
