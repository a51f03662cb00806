package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aurabot/aura/internal/database/dbretry"
	"github.com/aurabot/aura/internal/database/types"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// GuildModel handles database operations for per-guild configuration.
type GuildModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGuild creates a new GuildModel instance.
func NewGuild(db *bun.DB, logger *zap.Logger) *GuildModel {
	return &GuildModel{
		db:     db,
		logger: logger.Named("db_guild"),
	}
}

// GetGuild fetches the configuration snapshot for a guild. Guilds without a
// stored row get the reference defaults so every event sees a full config.
func (m *GuildModel) GetGuild(ctx context.Context, guildID snowflake.ID) (*types.GuildConfig, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.GuildConfig, error) {
		config := new(types.GuildConfig)

		err := m.db.NewSelect().
			Model(config).
			Where("id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.NewGuildConfig(guildID), nil
			}

			return nil, fmt.Errorf("failed to get guild config: %w", err)
		}

		return config, nil
	})
}

// UpsertGuild creates or updates the full configuration row for a guild.
func (m *GuildModel) UpsertGuild(ctx context.Context, config *types.GuildConfig) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(config).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("premium_enabled = EXCLUDED.premium_enabled").
			Set("premium_tier = EXCLUDED.premium_tier").
			Set("premium_expires_at = EXCLUDED.premium_expires_at").
			Set("anti_raid_enabled = EXCLUDED.anti_raid_enabled").
			Set("anti_raid_raid_mode_active = EXCLUDED.anti_raid_raid_mode_active").
			Set("anti_raid_join_rate_limit = EXCLUDED.anti_raid_join_rate_limit").
			Set("anti_raid_window_seconds = EXCLUDED.anti_raid_window_seconds").
			Set("anti_raid_min_account_age_days = EXCLUDED.anti_raid_min_account_age_days").
			Set("anti_raid_notify_channel = EXCLUDED.anti_raid_notify_channel").
			Set("moderation_log_channel = EXCLUDED.moderation_log_channel").
			Set("moderation_muted_role = EXCLUDED.moderation_muted_role").
			Set("welcome_enabled = EXCLUDED.welcome_enabled").
			Set("welcome_channel = EXCLUDED.welcome_channel").
			Set("welcome_message = EXCLUDED.welcome_message").
			Set("welcome_use_embed = EXCLUDED.welcome_use_embed").
			Set("auto_roles = EXCLUDED.auto_roles").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert guild config: %w", err)
		}

		return nil
	})
}

// SetRaidMode flips the raid mode flag for a guild. The detector only ever
// sets it true; clearing is reserved for the manual raidmode command.
func (m *GuildModel) SetRaidMode(ctx context.Context, guildID snowflake.ID, active bool) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		config := types.NewGuildConfig(guildID)
		config.AntiRaid.RaidModeActive = active

		_, err := m.db.NewInsert().
			Model(config).
			On("CONFLICT (id) DO UPDATE").
			Set("anti_raid_raid_mode_active = EXCLUDED.anti_raid_raid_mode_active").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set raid mode: %w", err)
		}

		return nil
	})
}

// IncrementCommandsUsed bumps the command usage counter for a guild.
func (m *GuildModel) IncrementCommandsUsed(ctx context.Context, guildID snowflake.ID) error {
	config := types.NewGuildConfig(guildID)
	config.Stats.CommandsUsed = 1

	return m.incrementStat(ctx, config, "stats_commands_used")
}

// IncrementModerationActions bumps the moderation action counter for a guild.
func (m *GuildModel) IncrementModerationActions(ctx context.Context, guildID snowflake.ID) error {
	config := types.NewGuildConfig(guildID)
	config.Stats.ModerationActions = 1

	return m.incrementStat(ctx, config, "stats_moderation_actions")
}

func (m *GuildModel) incrementStat(ctx context.Context, config *types.GuildConfig, column string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(config).
			On("CONFLICT (id) DO UPDATE").
			Set(fmt.Sprintf("%s = guild_config.%s + 1", column, column)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to increment %s: %w", column, err)
		}

		return nil
	})
}
