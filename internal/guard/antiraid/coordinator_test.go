package antiraid_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/guard/antiraid"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGuildID snowflake.ID = 100

type fakeStore struct {
	config          *types.GuildConfig
	raidModeSets    []bool
	failSetRaidMode bool
	failGetGuild    bool
}

func (s *fakeStore) GetGuild(_ context.Context, _ snowflake.ID) (*types.GuildConfig, error) {
	if s.failGetGuild {
		return nil, errors.New("database down")
	}

	// Return a copy so handlers hold a snapshot, matching the real store
	snapshot := *s.config

	return &snapshot, nil
}

func (s *fakeStore) SetRaidMode(_ context.Context, _ snowflake.ID, active bool) error {
	if s.failSetRaidMode {
		return errors.New("write failed")
	}

	s.raidModeSets = append(s.raidModeSets, active)
	s.config.AntiRaid.RaidModeActive = active

	return nil
}

type fakeMessenger struct {
	embeds []snowflake.ID
	texts  map[snowflake.ID]string
}

func (m *fakeMessenger) SendEmbed(_ context.Context, channelID snowflake.ID, _ discord.Embed) error {
	m.embeds = append(m.embeds, channelID)
	return nil
}

func (m *fakeMessenger) SendText(_ context.Context, channelID snowflake.ID, content string) error {
	if m.texts == nil {
		m.texts = make(map[snowflake.ID]string)
	}

	m.texts[channelID] = content

	return nil
}

type fakePlatform struct {
	kicked      []snowflake.ID
	kickReasons []string
	rolesAdded  []snowflake.ID
}

func (p *fakePlatform) Kick(_ context.Context, _, userID snowflake.ID, reason string) error {
	p.kicked = append(p.kicked, userID)
	p.kickReasons = append(p.kickReasons, reason)

	return nil
}

func (p *fakePlatform) AddRole(_ context.Context, _, _, roleID snowflake.ID, _ string) error {
	p.rolesAdded = append(p.rolesAdded, roleID)
	return nil
}

func setupCoordinator(t *testing.T) (*antiraid.Coordinator, *fakeStore, *fakeMessenger, *fakePlatform) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	config := types.NewGuildConfig(testGuildID)
	config.AntiRaid.NotifyChannel = 555

	store := &fakeStore{config: config}
	messenger := &fakeMessenger{}
	platform := &fakePlatform{}

	return antiraid.NewCoordinator(store, messenger, platform, logger), store, messenger, platform
}

func join(userID snowflake.ID, accountAge time.Duration, at time.Time) antiraid.JoinEvent {
	return antiraid.JoinEvent{
		GuildID:          testGuildID,
		UserID:           userID,
		Username:         "user",
		GuildName:        "Test Guild",
		MemberCount:      50,
		AccountCreatedAt: at.Add(-accountAge),
		Now:              at,
	}
}

func TestBurstActivatesRaidMode(t *testing.T) {
	t.Parallel()

	c, store, messenger, platform := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()
	oldAccount := 365 * 24 * time.Hour

	for i := 0; i < 4; i++ {
		_, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), oldAccount, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	assert.Empty(t, store.raidModeSets, "four joins in ten seconds must not trigger")

	_, err := c.HandleMemberJoin(ctx, join(5, oldAccount, now.Add(4*time.Second)))
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, store.raidModeSets)
	assert.Equal(t, []snowflake.ID{555}, messenger.embeds, "one notification to the notify channel")
	assert.Empty(t, platform.kicked)
}

func TestSlowJoinsNeverTrigger(t *testing.T) {
	t.Parallel()

	c, store, _, _ := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()
	oldAccount := 365 * 24 * time.Hour

	// Five joins spread over 20 seconds never have five inside one window
	for i := 0; i < 5; i++ {
		_, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), oldAccount, now.Add(time.Duration(i*5)*time.Second)))
		require.NoError(t, err)
	}

	assert.Empty(t, store.raidModeSets)
}

func TestTriggeringJoinerIsNotKicked(t *testing.T) {
	t.Parallel()

	c, store, _, platform := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()
	newAccount := 24 * time.Hour

	// Every joiner has a day-old account, below the seven day minimum
	for i := 0; i < 5; i++ {
		outcome, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), newAccount, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		assert.False(t, outcome.Removed)
	}

	require.Equal(t, []bool{true}, store.raidModeSets)
	assert.Empty(t, platform.kicked, "the joiner that completed the threshold is spared")

	// The next young account arrives with raid mode already active
	outcome, err := c.HandleMemberJoin(ctx, join(6, newAccount, now.Add(5*time.Second)))
	require.NoError(t, err)

	assert.True(t, outcome.Removed)
	assert.Contains(t, outcome.Reason, "account too new")
	assert.Equal(t, []snowflake.ID{6}, platform.kicked)
}

func TestRaidModeSparesEstablishedAccounts(t *testing.T) {
	t.Parallel()

	c, _, _, platform := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()

	// Flip raid mode by filling the window with established accounts
	oldAccount := 365 * 24 * time.Hour
	for i := 0; i < 5; i++ {
		_, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), oldAccount, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	outcome, err := c.HandleMemberJoin(ctx, join(6, oldAccount, now.Add(5*time.Second)))
	require.NoError(t, err)

	assert.False(t, outcome.Removed)
	assert.Empty(t, platform.kicked)
}

func TestDetectionSuppressedWhileActive(t *testing.T) {
	t.Parallel()

	c, store, messenger, _ := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()
	oldAccount := 365 * 24 * time.Hour

	for i := 0; i < 10; i++ {
		_, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), oldAccount, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	// The flip happens once; the ongoing burst does not repeat it
	assert.Equal(t, []bool{true}, store.raidModeSets)
	assert.Len(t, messenger.embeds, 1)
}

func TestRaidModePersistFailureIsReturned(t *testing.T) {
	t.Parallel()

	c, store, _, _ := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()
	oldAccount := 365 * 24 * time.Hour

	store.failSetRaidMode = true

	var lastErr error
	for i := 0; i < 5; i++ {
		_, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), oldAccount, now.Add(time.Duration(i)*time.Second)))
		lastErr = err
	}

	require.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "raid mode")
}

func TestDisabledGuildSkipsDetection(t *testing.T) {
	t.Parallel()

	c, store, _, platform := setupCoordinator(t)
	ctx := context.Background()
	now := time.Now()
	newAccount := time.Hour

	store.config.AntiRaid.Enabled = false

	for i := 0; i < 10; i++ {
		outcome, err := c.HandleMemberJoin(ctx, join(snowflake.ID(i+1), newAccount, now))
		require.NoError(t, err)
		assert.False(t, outcome.Removed)
	}

	assert.Empty(t, store.raidModeSets)
	assert.Empty(t, platform.kicked)
}

func TestOnboardingRunsForSurvivors(t *testing.T) {
	t.Parallel()

	c, store, messenger, platform := setupCoordinator(t)
	ctx := context.Background()

	store.config.AutoRoles = []snowflake.ID{42, 43}
	store.config.Welcome.Enabled = true
	store.config.Welcome.Channel = 900
	store.config.Welcome.Message = "Welcome {user} to {server}! Member #{membercount}"

	event := join(7, 365*24*time.Hour, time.Now())

	_, err := c.HandleMemberJoin(ctx, event)
	require.NoError(t, err)

	assert.Equal(t, []snowflake.ID{42, 43}, platform.rolesAdded)
	assert.Equal(t, "Welcome <@7> to Test Guild! Member #50", messenger.texts[900])
}

func TestConfigLoadFailureAborts(t *testing.T) {
	t.Parallel()

	c, store, _, platform := setupCoordinator(t)
	ctx := context.Background()

	store.failGetGuild = true

	_, err := c.HandleMemberJoin(ctx, join(1, time.Hour, time.Now()))
	require.Error(t, err)
	assert.Empty(t, platform.kicked)
}
