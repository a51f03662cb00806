// Package bot wires the Discord gateway to the guard pipeline: slash
// commands flow through the dispatcher's gate sequence and member joins
// through the anti-raid coordinator.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	disbot "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"go.uber.org/zap"

	"github.com/aurabot/aura/internal/bot/commands"
	"github.com/aurabot/aura/internal/database"
	"github.com/aurabot/aura/internal/discord/client"
	"github.com/aurabot/aura/internal/guard/antiraid"
	"github.com/aurabot/aura/internal/guard/cooldown"
	"github.com/aurabot/aura/internal/guard/dispatch"
	"github.com/aurabot/aura/internal/moderation"
	"github.com/aurabot/aura/internal/redis"
	"github.com/aurabot/aura/internal/service"
	"github.com/aurabot/aura/internal/setup/config"
)

// eventTimeout bounds the handling of one gateway event end to end.
const eventTimeout = 30 * time.Second

// Bot owns the Discord client and the guard pipeline behind it.
type Bot struct {
	client      disbot.Client
	registry    *dispatch.Registry
	dispatcher  *dispatch.Dispatcher
	coordinator *antiraid.Coordinator
	cooldowns   *cooldown.Registry
	logger      *zap.Logger
}

// New builds the bot: platform adapters over the REST client, the shared
// services, the command registry and the gateway client with its listeners.
func New(
	cfg *config.Config,
	db database.Client,
	redisManager *redis.Manager,
	logger *zap.Logger,
) (*Bot, error) {
	cache, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache client: %w", err)
	}

	guilds := service.NewGuildService(db, cache, logger)
	cooldowns := cooldown.NewRegistry(logger)

	b := &Bot{
		registry:  dispatch.NewRegistry(),
		cooldowns: cooldowns,
		logger:    logger.Named("bot"),
	}

	gatewayClient, err := disgo.New(cfg.Bot.Token,
		disbot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
			),
		),
		disbot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnGuildMemberJoin:               b.handleGuildMemberJoin,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = gatewayClient

	requestTimeout := time.Duration(cfg.Bot.RequestTimeout) * time.Millisecond
	actions := client.NewActions(gatewayClient.Rest(), requestTimeout, logger)
	messenger := client.NewMessenger(gatewayClient.Rest(), requestTimeout, logger)
	directory := client.NewDirectory(gatewayClient.Rest(), requestTimeout, logger)

	moderationService := moderation.NewService(
		guilds, db.Model().Case(), directory, actions, messenger,
		client.ErrMemberNotFound, logger)

	b.coordinator = antiraid.NewCoordinator(guilds, messenger, actions, logger)

	b.registry.Register(commands.Moderation(moderationService, directory, logger)...)
	b.registry.Register(commands.Cases(db)...)
	b.registry.Register(commands.AntiRaid(guilds, b.coordinator, actions, directory, logger)...)

	b.dispatcher = dispatch.NewDispatcher(
		b.registry,
		cooldowns,
		guilds,
		cfg.Bot.IsDeveloper,
		time.Duration(cfg.Bot.DefaultCooldownSeconds)*time.Second,
		logger,
	)

	return b, nil
}

// Start registers the slash commands globally and opens the gateway.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), b.registry.Creates())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close shuts down the gateway connection and the cooldown sweeper.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
	b.cooldowns.Close()
}

// handleApplicationCommandInteraction runs each slash command through the
// dispatcher in its own goroutine so slow commands never block the gateway
// read loop.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		inv := newSlashInvocation(event)
		start := time.Now()

		result := b.dispatcher.Dispatch(ctx, inv)

		b.logger.Debug("Slash command handled",
			zap.String("command", inv.CommandName()),
			zap.Uint64("actor_id", uint64(inv.ActorID())),
			zap.Int("result", int(result)),
			zap.Duration("duration", time.Since(start)))
	}()
}

// handleGuildMemberJoin feeds member joins to the anti-raid coordinator.
// Guild metadata for the welcome path is fetched best-effort; join handling
// proceeds even when that lookup fails.
func (b *Bot) handleGuildMemberJoin(event *events.GuildMemberJoin) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		join := antiraid.JoinEvent{
			GuildID:          event.GuildID,
			UserID:           event.Member.User.ID,
			Username:         event.Member.User.Username,
			AccountCreatedAt: event.Member.User.ID.Time(),
			Now:              time.Now(),
		}

		if guild, err := b.client.Rest().GetGuild(event.GuildID, true, rest.WithCtx(ctx)); err != nil {
			b.logger.Warn("Failed to fetch guild for member join",
				zap.Uint64("guild_id", uint64(event.GuildID)),
				zap.Error(err))
		} else {
			join.GuildName = guild.Name
			join.MemberCount = guild.ApproximateMemberCount
		}

		outcome, err := b.coordinator.HandleMemberJoin(ctx, join)
		if err != nil {
			b.logger.Error("Failed to handle member join",
				zap.Uint64("guild_id", uint64(event.GuildID)),
				zap.Uint64("user_id", uint64(join.UserID)),
				zap.Error(err))

			return
		}

		if outcome.Removed {
			b.logger.Info("Removed member during raid mode",
				zap.Uint64("guild_id", uint64(event.GuildID)),
				zap.Uint64("user_id", uint64(join.UserID)),
				zap.String("reason", outcome.Reason))
		}
	}()
}
