package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/aurabot/aura/internal/guard/cooldown"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// DefaultCooldown applies to commands that do not configure their own.
const DefaultCooldown = 3 * time.Second

// Result classifies the outcome of one dispatch.
type Result int

const (
	// ResultExecuted means the command body ran and succeeded.
	ResultExecuted Result = iota
	// ResultUnknownCommand means no command is registered under that name.
	ResultUnknownCommand
	// ResultRejectedDeveloper means the actor is not in the developer set.
	ResultRejectedDeveloper
	// ResultRejectedPremium means the guild's entitlement is not active.
	ResultRejectedPremium
	// ResultRejectedCooldown means the actor is still on cooldown.
	ResultRejectedCooldown
	// ResultFailed means the command body returned an error or panicked.
	ResultFailed
)

// EntitlementStore supplies guild entitlement state and usage counters.
type EntitlementStore interface {
	GetGuild(ctx context.Context, guildID snowflake.ID) (*types.GuildConfig, error)
	IncrementCommandsUsed(ctx context.Context, guildID snowflake.ID) error
}

// Dispatcher gates every inbound command invocation through the developer,
// entitlement and cooldown checks before running the command body.
type Dispatcher struct {
	registry        *Registry
	cooldowns       *cooldown.Registry
	store           EntitlementStore
	isDeveloper     func(userID uint64) bool
	defaultCooldown time.Duration
	logger          *zap.Logger
}

// NewDispatcher creates a command dispatcher. A non-positive defaultCooldown
// falls back to DefaultCooldown.
func NewDispatcher(
	registry *Registry,
	cooldowns *cooldown.Registry,
	store EntitlementStore,
	isDeveloper func(userID uint64) bool,
	defaultCooldown time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if defaultCooldown <= 0 {
		defaultCooldown = DefaultCooldown
	}

	return &Dispatcher{
		registry:        registry,
		cooldowns:       cooldowns,
		store:           store,
		isDeveloper:     isDeveloper,
		defaultCooldown: defaultCooldown,
		logger:          logger.Named("dispatch"),
	}
}

// Dispatch runs the gate sequence for one invocation: developer check,
// entitlement check, cooldown check, command body, usage counter. A failing
// command body produces a generic apology so internal detail never leaks;
// the full error is logged server-side.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Result {
	cmd, ok := d.registry.Get(inv.CommandName())
	if !ok {
		return ResultUnknownCommand
	}

	if cmd.DevOnly && !d.isDeveloper(uint64(inv.ActorID())) {
		d.reject(ctx, inv, embeds.Error("Access Denied",
			"This command is only available to developers."))

		return ResultRejectedDeveloper
	}

	if cmd.Premium {
		if guildID, inGuild := inv.GuildID(); inGuild {
			config, err := d.store.GetGuild(ctx, guildID)
			if err != nil {
				d.logger.Error("Failed to load guild config for entitlement check",
					zap.Uint64("guild_id", uint64(guildID)),
					zap.Error(err))
				d.reportFailure(ctx, inv)

				return ResultFailed
			}

			if !config.Premium.Active() {
				d.reject(ctx, inv, embeds.Error("Premium Required",
					"This feature requires an active premium subscription."))

				return ResultRejectedPremium
			}
		}
	}

	cooldownDuration := cmd.Cooldown
	if cooldownDuration <= 0 {
		cooldownDuration = d.defaultCooldown
	}

	if check := d.cooldowns.CheckAndStart(cmd.Name(), inv.ActorID(), cooldownDuration); !check.Allowed {
		d.reject(ctx, inv, embeds.Warning("Slow Down",
			fmt.Sprintf("Please wait %.1f more seconds before using this command again.",
				check.RemainingSeconds())))

		return ResultRejectedCooldown
	}

	if err := d.runHandler(ctx, cmd, inv); err != nil {
		d.logger.Error("Command execution failed",
			zap.String("command", cmd.Name()),
			zap.Uint64("actor_id", uint64(inv.ActorID())),
			zap.Error(err))
		d.reportFailure(ctx, inv)

		return ResultFailed
	}

	if guildID, inGuild := inv.GuildID(); inGuild {
		if err := d.store.IncrementCommandsUsed(ctx, guildID); err != nil {
			d.logger.Warn("Failed to increment command usage counter",
				zap.Uint64("guild_id", uint64(guildID)),
				zap.Error(err))
		}
	}

	return ResultExecuted
}

func (d *Dispatcher) runHandler(ctx context.Context, cmd *Command, inv Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in command handler: %v", r)
		}
	}()

	return cmd.Handle(ctx, inv)
}

// reject sends a specific, actionable rejection message.
func (d *Dispatcher) reject(ctx context.Context, inv Invocation, embed discord.Embed) {
	message := discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		SetEphemeral(true).
		Build()

	if err := inv.Reply(ctx, message); err != nil {
		d.logger.Warn("Failed to send rejection reply",
			zap.String("command", inv.CommandName()),
			zap.Error(err))
	}
}

// reportFailure delivers the generic failure apology exactly once, using a
// reply when nothing was sent yet and a follow-up otherwise.
func (d *Dispatcher) reportFailure(ctx context.Context, inv Invocation) {
	message := discord.NewMessageCreateBuilder().
		SetEmbeds(embeds.Error("Error", "There was an error executing this command!")).
		SetEphemeral(true).
		Build()

	var err error
	if inv.Responded() {
		err = inv.Followup(ctx, message)
	} else {
		err = inv.Reply(ctx, message)
	}

	if err != nil {
		d.logger.Warn("Failed to report command failure",
			zap.String("command", inv.CommandName()),
			zap.Error(err))
	}
}
