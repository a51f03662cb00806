package antiraid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// ConfigStore reads and escalates per-guild anti-raid configuration.
type ConfigStore interface {
	GetGuild(ctx context.Context, guildID snowflake.ID) (*types.GuildConfig, error)
	SetRaidMode(ctx context.Context, guildID snowflake.ID, active bool) error
}

// Messenger delivers best-effort notifications. Send failures are logged by
// the coordinator and never abort join handling.
type Messenger interface {
	SendEmbed(ctx context.Context, channelID snowflake.ID, embed discord.Embed) error
	SendText(ctx context.Context, channelID snowflake.ID, content string) error
}

// Platform applies member-level actions during join handling.
type Platform interface {
	Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	AddRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
}

// JoinEvent carries everything the coordinator needs about one member join.
type JoinEvent struct {
	GuildID          snowflake.ID
	UserID           snowflake.ID
	Username         string
	GuildName        string
	MemberCount      int
	AccountCreatedAt time.Time
	Now              time.Time
}

// JoinOutcome reports what happened to the joining member.
type JoinOutcome struct {
	Removed bool
	Reason  string
}

// Coordinator watches member joins per guild, escalates raid mode when a
// join burst crosses the configured threshold, and removes too-new accounts
// while raid mode is active. Raid mode only ever flips true here; clearing
// it is reserved for the manual raidmode command.
type Coordinator struct {
	store     ConfigStore
	messenger Messenger
	platform  Platform
	window    *JoinWindow
	logger    *zap.Logger
}

// NewCoordinator creates a new safety coordinator.
func NewCoordinator(
	store ConfigStore, messenger Messenger, platform Platform, logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:     store,
		messenger: messenger,
		platform:  platform,
		window:    NewJoinWindow(),
		logger:    logger.Named("antiraid"),
	}
}

// Window exposes the join window so the manual raidmode command can reset a
// guild's burst state after clearing raid mode.
func (c *Coordinator) Window() *JoinWindow {
	return c.window
}

// HandleMemberJoin runs the full join pipeline for one member. The config
// snapshot is read once at entry; in particular the raid-mode flag used for
// the kick decision is the value from before this event, so the member whose
// join merely completes the threshold count is never kicked by the flip they
// triggered. An error from persisting the raid-mode escalation is returned
// to the caller since losing that write defeats the protection.
func (c *Coordinator) HandleMemberJoin(ctx context.Context, event JoinEvent) (JoinOutcome, error) {
	config, err := c.store.GetGuild(ctx, event.GuildID)
	if err != nil {
		return JoinOutcome{}, fmt.Errorf("failed to load guild config: %w", err)
	}

	if !config.AntiRaid.Enabled {
		c.onboard(ctx, config, event)
		return JoinOutcome{}, nil
	}

	// Raid mode as it stood before this event; the kick decision below must
	// not observe the flip this same event may cause
	wasActive := config.AntiRaid.RaidModeActive

	count := c.window.Record(event.GuildID, event.Now, config.AntiRaid.Window())

	if count >= config.AntiRaid.JoinRateLimit && !wasActive {
		if err := c.store.SetRaidMode(ctx, event.GuildID, true); err != nil {
			return JoinOutcome{}, fmt.Errorf("failed to persist raid mode activation: %w", err)
		}

		c.logger.Warn("Raid mode activated",
			zap.Uint64("guild_id", uint64(event.GuildID)),
			zap.Int("joins_in_window", count),
			zap.Int("window_seconds", config.AntiRaid.WindowSeconds))

		c.notifyRaidDetected(ctx, config, count)
	}

	if wasActive {
		accountAge := event.Now.Sub(event.AccountCreatedAt)
		if accountAge < config.AntiRaid.MinAccountAge() {
			reason := fmt.Sprintf("Raid protection: account too new (%.1f days old, minimum %d)",
				accountAge.Hours()/24, config.AntiRaid.MinAccountAgeDays)

			if err := c.platform.Kick(ctx, event.GuildID, event.UserID, reason); err != nil {
				c.logger.Error("Failed to remove member during raid mode",
					zap.Uint64("guild_id", uint64(event.GuildID)),
					zap.Uint64("user_id", uint64(event.UserID)),
					zap.Error(err))

				return JoinOutcome{}, fmt.Errorf("failed to remove member: %w", err)
			}

			c.logger.Info("Removed member during raid mode",
				zap.Uint64("guild_id", uint64(event.GuildID)),
				zap.Uint64("user_id", uint64(event.UserID)),
				zap.String("reason", reason))

			return JoinOutcome{Removed: true, Reason: reason}, nil
		}
	}

	c.onboard(ctx, config, event)

	return JoinOutcome{}, nil
}

// notifyRaidDetected announces the escalation to the configured channel.
// Fires only on the event that flips raid mode, so an ongoing burst cannot
// storm the channel with repeats.
func (c *Coordinator) notifyRaidDetected(ctx context.Context, config *types.GuildConfig, count int) {
	channelID := config.AntiRaid.NotifyChannel
	if channelID == 0 {
		channelID = config.Moderation.LogChannel
	}

	if channelID == 0 {
		return
	}

	embed := embeds.Error("🚨 Raid Detected!",
		fmt.Sprintf("**%d** members joined in the last %d seconds.\n"+
			"Raid mode has been automatically activated.",
			count, config.AntiRaid.WindowSeconds))

	if err := c.messenger.SendEmbed(ctx, channelID, embed); err != nil {
		c.logger.Error("Failed to send raid notification",
			zap.Uint64("guild_id", uint64(config.ID)),
			zap.Error(err))
	}
}

// onboard runs the post-survival join steps: auto roles and the welcome
// message. Every failure here is logged and swallowed so one bad role or
// channel cannot abort join handling.
func (c *Coordinator) onboard(ctx context.Context, config *types.GuildConfig, event JoinEvent) {
	for _, roleID := range config.AutoRoles {
		err := c.platform.AddRole(ctx, event.GuildID, event.UserID, roleID, "Auto role on join")
		if err != nil {
			c.logger.Error("Failed to add auto role",
				zap.Uint64("guild_id", uint64(event.GuildID)),
				zap.Uint64("user_id", uint64(event.UserID)),
				zap.Uint64("role_id", uint64(roleID)),
				zap.Error(err))
		}
	}

	if !config.Welcome.Enabled || config.Welcome.Channel == 0 {
		return
	}

	message := formatWelcome(config.Welcome.Message, event)

	var err error
	if config.Welcome.UseEmbed {
		err = c.messenger.SendEmbed(ctx, config.Welcome.Channel, embeds.Success("Welcome!", message))
	} else {
		err = c.messenger.SendText(ctx, config.Welcome.Channel, message)
	}

	if err != nil {
		c.logger.Error("Failed to send welcome message",
			zap.Uint64("guild_id", uint64(event.GuildID)),
			zap.Error(err))
	}
}

func formatWelcome(template string, event JoinEvent) string {
	replacer := strings.NewReplacer(
		"{user}", fmt.Sprintf("<@%d>", event.UserID),
		"{username}", event.Username,
		"{server}", event.GuildName,
		"{membercount}", strconv.Itoa(event.MemberCount),
	)

	return replacer.Replace(template)
}
