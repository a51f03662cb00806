package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aurabot/aura/internal/database"
	"github.com/aurabot/aura/internal/database/types"
	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// ConfigCacheTTL bounds how stale a cached guild config snapshot can be.
const ConfigCacheTTL = 30 * time.Second

// GuildService layers a short-lived Redis cache over the guild config model.
// Every inbound event reads its snapshot through here, so a cache miss costs
// one database round trip per guild per TTL rather than one per event.
type GuildService struct {
	db     database.Client
	cache  rueidis.Client
	logger *zap.Logger
}

// NewGuildService creates a new guild service.
func NewGuildService(db database.Client, cache rueidis.Client, logger *zap.Logger) *GuildService {
	return &GuildService{
		db:     db,
		cache:  cache,
		logger: logger.Named("guild_service"),
	}
}

func cacheKey(guildID snowflake.ID) string {
	return fmt.Sprintf("guild_config:%d", guildID)
}

// GetGuild returns the configuration snapshot for a guild, from cache when
// fresh. Cache failures fall through to the database; the cache is an
// optimization, never a source of truth.
func (s *GuildService) GetGuild(ctx context.Context, guildID snowflake.ID) (*types.GuildConfig, error) {
	key := cacheKey(guildID)

	data, err := s.cache.Do(ctx, s.cache.B().Get().Key(key).Build()).AsBytes()
	if err == nil {
		config := new(types.GuildConfig)
		if err := sonic.Unmarshal(data, config); err == nil {
			return config, nil
		}

		s.logger.Warn("Discarding undecodable cached guild config",
			zap.Uint64("guild_id", uint64(guildID)))
	} else if !rueidis.IsRedisNil(err) {
		s.logger.Warn("Guild config cache read failed",
			zap.Uint64("guild_id", uint64(guildID)),
			zap.Error(err))
	}

	config, err := s.db.Model().Guild().GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if data, err := sonic.Marshal(config); err == nil {
		setCmd := s.cache.B().Set().Key(key).Value(rueidis.BinaryString(data)).
			Ex(ConfigCacheTTL).Build()
		if err := s.cache.Do(ctx, setCmd).Error(); err != nil {
			s.logger.Warn("Guild config cache write failed",
				zap.Uint64("guild_id", uint64(guildID)),
				zap.Error(err))
		}
	}

	return config, nil
}

// UpsertGuild stores a full configuration row and invalidates the cache.
func (s *GuildService) UpsertGuild(ctx context.Context, config *types.GuildConfig) error {
	if err := s.db.Model().Guild().UpsertGuild(ctx, config); err != nil {
		return err
	}

	s.invalidate(ctx, config.ID)

	return nil
}

// SetRaidMode persists the raid mode flag and invalidates the cache. A
// failed write is returned to the caller: losing the activation defeats the
// protection, so it must never be swallowed.
func (s *GuildService) SetRaidMode(ctx context.Context, guildID snowflake.ID, active bool) error {
	if err := s.db.Model().Guild().SetRaidMode(ctx, guildID, active); err != nil {
		return err
	}

	s.invalidate(ctx, guildID)

	return nil
}

// IncrementCommandsUsed bumps the command usage counter. The cached snapshot
// is left alone; stats are not read on the event path and catch up on the
// next cache refresh.
func (s *GuildService) IncrementCommandsUsed(ctx context.Context, guildID snowflake.ID) error {
	return s.db.Model().Guild().IncrementCommandsUsed(ctx, guildID)
}

// IncrementModerationActions bumps the moderation action counter.
func (s *GuildService) IncrementModerationActions(ctx context.Context, guildID snowflake.ID) error {
	return s.db.Model().Guild().IncrementModerationActions(ctx, guildID)
}

func (s *GuildService) invalidate(ctx context.Context, guildID snowflake.ID) {
	delCmd := s.cache.B().Del().Key(cacheKey(guildID)).Build()
	if err := s.cache.Do(ctx, delCmd).Error(); err != nil {
		s.logger.Warn("Guild config cache invalidation failed",
			zap.Uint64("guild_id", uint64(guildID)),
			zap.Error(err))
	}
}
