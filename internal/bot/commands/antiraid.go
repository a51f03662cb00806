package commands

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aurabot/aura/internal/discord/client"
	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/aurabot/aura/internal/guard/antiraid"
	"github.com/aurabot/aura/internal/guard/dispatch"
	"github.com/aurabot/aura/internal/service"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const lockdownConcurrency = 4

type antiraidHandlers struct {
	guilds      *service.GuildService
	coordinator *antiraid.Coordinator
	actions     *client.Actions
	directory   *client.Directory
	logger      *zap.Logger
}

// AntiRaid builds the manual raid controls: the raidmode toggle, which is
// the only path that clears an active raid mode, and channel lockdown.
func AntiRaid(
	guilds *service.GuildService,
	coordinator *antiraid.Coordinator,
	actions *client.Actions,
	directory *client.Directory,
	logger *zap.Logger,
) []*dispatch.Command {
	h := &antiraidHandlers{
		guilds:      guilds,
		coordinator: coordinator,
		actions:     actions,
		directory:   directory,
		logger:      logger.Named("cmd_antiraid"),
	}

	return []*dispatch.Command{h.raidmode(), h.lockdown()}
}

func (h *antiraidHandlers) raidmode() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "raidmode",
			Description:              "Toggle raid mode on/off",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionAdministrator),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "enabled",
					Description: "Enable or disable raid mode",
					Required:    true,
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			enabled := inv.Data().Bool("enabled")

			if err := h.guilds.SetRaidMode(ctx, guildID, enabled); err != nil {
				return err
			}

			// Clearing raid mode also discards the guild's join burst
			// state so stale joins cannot re-trigger detection
			if !enabled {
				h.coordinator.Window().Reset(guildID)
			}

			level := discord.VerificationLevelMedium
			reason := "Raid mode deactivated"

			if enabled {
				level = discord.VerificationLevelVeryHigh
				reason = "Raid mode activated"
			}

			if err := h.actions.SetVerificationLevel(ctx, guildID, level, reason); err != nil {
				h.logger.Warn("Failed to adjust verification level",
					zap.Uint64("guild_id", uint64(guildID)),
					zap.Bool("enabled", enabled),
					zap.Error(err))
			}

			description := "Raid mode has been **disabled**.\n\n✅ Server restrictions have been lifted."
			if enabled {
				description = "Raid mode has been **enabled**.\n\n🛡️ Server is now in lockdown mode. New members will be heavily restricted."
			}

			return replyEmbed(ctx, inv, embeds.Success("Raid Mode Updated", description), false)
		},
	}
}

func (h *antiraidHandlers) lockdown() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "lockdown",
			Description:              "Lock or unlock text channels",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionManageChannels),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "locked",
					Description: "Lock or unlock",
					Required:    true,
				},
				discord.ApplicationCommandOptionChannel{
					Name:         "channel",
					Description:  "A single channel to lock/unlock (defaults to all text channels)",
					ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			locked := data.Bool("locked")

			reason := "Channel lockdown lifted"
			if locked {
				reason = "Channel lockdown"
			}

			if channel, hasChannel := data.OptChannel("channel"); hasChannel {
				if channel.Type != discord.ChannelTypeGuildText {
					return replyError(ctx, inv, "Invalid channel!")
				}

				if err := h.actions.SetChannelLock(ctx, channel.ID, guildID, locked, reason); err != nil {
					h.logger.Warn("Failed to update channel lock",
						zap.Uint64("channel_id", uint64(channel.ID)),
						zap.Error(err))

					return replyError(ctx, inv, "Failed to update channel permissions!")
				}

				return replyEmbed(ctx, inv, embeds.Success("Channel Lockdown",
					fmt.Sprintf("<#%d> has been **%s**.", channel.ID, lockedWord(locked))), false)
			}

			channels, err := h.directory.TextChannels(ctx, guildID)
			if err != nil {
				return err
			}

			updated := h.lockAll(ctx, guildID, channels, locked, reason)

			return replyEmbed(ctx, inv, embeds.Success("Server Lockdown",
				fmt.Sprintf("%d of %d text channels have been **%s**.",
					updated, len(channels), lockedWord(locked))), false)
		},
	}
}

// lockAll fans the overwrite updates out over a bounded worker pool. Per
// channel failures are logged and skipped so one broken overwrite cannot
// abort a server-wide lockdown.
func (h *antiraidHandlers) lockAll(
	ctx context.Context, guildID snowflake.ID, channels []snowflake.ID, locked bool, reason string,
) int64 {
	var updated atomic.Int64

	p := pool.New().WithContext(ctx).WithMaxGoroutines(lockdownConcurrency)

	for _, channelID := range channels {
		p.Go(func(ctx context.Context) error {
			if err := h.actions.SetChannelLock(ctx, channelID, guildID, locked, reason); err != nil {
				h.logger.Warn("Failed to update channel lock",
					zap.Uint64("channel_id", uint64(channelID)),
					zap.Error(err))

				return nil
			}

			updated.Add(1)

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		h.logger.Warn("Lockdown fan-out interrupted", zap.Error(err))
	}

	return updated.Load()
}

func lockedWord(locked bool) string {
	if locked {
		return "locked"
	}

	return "unlocked"
}
