package service_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/service"
	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return mr, client
}

// A fresh cached snapshot is served without touching the database; the nil
// database client here would panic if the read fell through.
func TestGetGuildServesFromCache(t *testing.T) {
	t.Parallel()

	mr, client := setupCache(t)

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cached := types.NewGuildConfig(100)
	cached.Name = "Cached Guild"
	cached.AntiRaid.RaidModeActive = true

	data, err := sonic.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, mr.Set("guild_config:100", string(data)))

	svc := service.NewGuildService(nil, client, logger)

	config, err := svc.GetGuild(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, "Cached Guild", config.Name)
	assert.True(t, config.AntiRaid.RaidModeActive)
	assert.Equal(t, types.DefaultJoinRateLimit, config.AntiRaid.JoinRateLimit)
}
