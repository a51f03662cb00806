package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/guard/cooldown"
	"github.com/aurabot/aura/internal/guard/dispatch"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID     snowflake.ID = 100
	actorID     snowflake.ID = 1
	developerID snowflake.ID = 999
)

type fakeInvocation struct {
	name      string
	inGuild   bool
	replies   []discord.MessageCreate
	followups []discord.MessageCreate
	actor     snowflake.ID
}

func (i *fakeInvocation) CommandName() string { return i.name }

func (i *fakeInvocation) GuildID() (snowflake.ID, bool) {
	if !i.inGuild {
		return 0, false
	}

	return guildID, true
}

func (i *fakeInvocation) ActorID() snowflake.ID {
	if i.actor != 0 {
		return i.actor
	}

	return actorID
}

func (i *fakeInvocation) Reply(_ context.Context, message discord.MessageCreate) error {
	i.replies = append(i.replies, message)
	return nil
}

func (i *fakeInvocation) Followup(_ context.Context, message discord.MessageCreate) error {
	i.followups = append(i.followups, message)
	return nil
}

func (i *fakeInvocation) Responded() bool {
	return len(i.replies) > 0
}

func (i *fakeInvocation) Data() discord.SlashCommandInteractionData {
	return discord.SlashCommandInteractionData{}
}

type fakeEntitlementStore struct {
	config       *types.GuildConfig
	commandsUsed int
}

func (s *fakeEntitlementStore) GetGuild(_ context.Context, _ snowflake.ID) (*types.GuildConfig, error) {
	snapshot := *s.config
	return &snapshot, nil
}

func (s *fakeEntitlementStore) IncrementCommandsUsed(_ context.Context, _ snowflake.ID) error {
	s.commandsUsed++
	return nil
}

type fixture struct {
	dispatcher *dispatch.Dispatcher
	registry   *dispatch.Registry
	store      *fakeEntitlementStore
}

func setupDispatcher(t *testing.T, commands ...*dispatch.Command) *fixture {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cooldowns := cooldown.NewRegistry(logger)
	t.Cleanup(cooldowns.Close)

	registry := dispatch.NewRegistry()
	registry.Register(commands...)

	store := &fakeEntitlementStore{config: types.NewGuildConfig(guildID)}

	isDeveloper := func(userID uint64) bool {
		return userID == uint64(developerID)
	}

	return &fixture{
		dispatcher: dispatch.NewDispatcher(registry, cooldowns, store, isDeveloper, 0, logger),
		registry:   registry,
		store:      store,
	}
}

func command(name string, handled *int) *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{Name: name, Description: "test"},
		Handle: func(_ context.Context, _ dispatch.Invocation) error {
			if handled != nil {
				*handled++
			}

			return nil
		},
	}
}

func firstEmbedDescription(t *testing.T, messages []discord.MessageCreate) string {
	t.Helper()
	require.NotEmpty(t, messages)
	require.NotEmpty(t, messages[0].Embeds)

	return messages[0].Embeds[0].Description
}

func TestUnknownCommandIsSilent(t *testing.T) {
	t.Parallel()

	f := setupDispatcher(t)
	inv := &fakeInvocation{name: "nope", inGuild: true}

	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultUnknownCommand, result)
	assert.Empty(t, inv.replies)
}

func TestExecutedCommandCountsUsage(t *testing.T) {
	t.Parallel()

	var handled int

	f := setupDispatcher(t, command("ping", &handled))
	inv := &fakeInvocation{name: "ping", inGuild: true}

	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultExecuted, result)
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, f.store.commandsUsed)
}

func TestDevOnlyRejectsOutsiders(t *testing.T) {
	t.Parallel()

	var handled int

	cmd := command("debug", &handled)
	cmd.DevOnly = true

	f := setupDispatcher(t, cmd)

	inv := &fakeInvocation{name: "debug", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultRejectedDeveloper, result)
	assert.Equal(t, 0, handled)
	assert.Contains(t, firstEmbedDescription(t, inv.replies), "developers")
	assert.True(t, inv.replies[0].Flags.Has(discord.MessageFlagEphemeral))
	assert.Zero(t, f.store.commandsUsed)

	// The developer passes the same gate
	devInv := &fakeInvocation{name: "debug", inGuild: true, actor: developerID}
	result = f.dispatcher.Dispatch(context.Background(), devInv)

	assert.Equal(t, dispatch.ResultExecuted, result)
	assert.Equal(t, 1, handled)
}

func TestPremiumGate(t *testing.T) {
	t.Parallel()

	var handled int

	cmd := command("autoscan", &handled)
	cmd.Premium = true

	f := setupDispatcher(t, cmd)

	inv := &fakeInvocation{name: "autoscan", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultRejectedPremium, result)
	assert.Equal(t, 0, handled)
	assert.Contains(t, firstEmbedDescription(t, inv.replies), "premium")

	// An active entitlement passes
	f.store.config.Premium.Enabled = true

	inv = &fakeInvocation{name: "autoscan", inGuild: true}
	result = f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultExecuted, result)
	assert.Equal(t, 1, handled)
}

func TestExpiredPremiumRejected(t *testing.T) {
	t.Parallel()

	cmd := command("autoscan", nil)
	cmd.Premium = true

	f := setupDispatcher(t, cmd)

	expired := time.Now().Add(-time.Hour)
	f.store.config.Premium.Enabled = true
	f.store.config.Premium.ExpiresAt = &expired

	inv := &fakeInvocation{name: "autoscan", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultRejectedPremium, result)
}

func TestCooldownRejectsRepeat(t *testing.T) {
	t.Parallel()

	var handled int

	cmd := command("ping", &handled)
	cmd.Cooldown = time.Minute

	f := setupDispatcher(t, cmd)

	first := &fakeInvocation{name: "ping", inGuild: true}
	require.Equal(t, dispatch.ResultExecuted, f.dispatcher.Dispatch(context.Background(), first))

	second := &fakeInvocation{name: "ping", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), second)

	assert.Equal(t, dispatch.ResultRejectedCooldown, result)
	assert.Equal(t, 1, handled)
	assert.Contains(t, firstEmbedDescription(t, second.replies), "wait")

	// A different actor is unaffected
	other := &fakeInvocation{name: "ping", inGuild: true, actor: 42}
	assert.Equal(t, dispatch.ResultExecuted, f.dispatcher.Dispatch(context.Background(), other))
}

func TestHandlerErrorGetsGenericApology(t *testing.T) {
	t.Parallel()

	cmd := &dispatch.Command{
		Create: discord.SlashCommandCreate{Name: "broken", Description: "test"},
		Handle: func(_ context.Context, _ dispatch.Invocation) error {
			return errors.New("internal detail that must not leak")
		},
	}

	f := setupDispatcher(t, cmd)

	inv := &fakeInvocation{name: "broken", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultFailed, result)
	description := firstEmbedDescription(t, inv.replies)
	assert.NotContains(t, description, "internal detail")
	assert.Contains(t, description, "error executing this command")
	assert.Zero(t, f.store.commandsUsed)
}

func TestFailureAfterReplyUsesFollowup(t *testing.T) {
	t.Parallel()

	cmd := &dispatch.Command{
		Create: discord.SlashCommandCreate{Name: "half", Description: "test"},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			_ = inv.Reply(ctx, discord.NewMessageCreateBuilder().SetContent("working...").Build())
			return errors.New("boom")
		},
	}

	f := setupDispatcher(t, cmd)

	inv := &fakeInvocation{name: "half", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultFailed, result)
	assert.Len(t, inv.replies, 1, "the handler's own reply")
	assert.Len(t, inv.followups, 1, "the apology arrives as a follow-up")
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()

	cmd := &dispatch.Command{
		Create: discord.SlashCommandCreate{Name: "explode", Description: "test"},
		Handle: func(_ context.Context, _ dispatch.Invocation) error {
			panic("boom")
		},
	}

	f := setupDispatcher(t, cmd)

	inv := &fakeInvocation{name: "explode", inGuild: true}
	result := f.dispatcher.Dispatch(context.Background(), inv)

	assert.Equal(t, dispatch.ResultFailed, result)
	assert.NotEmpty(t, inv.replies)
}

func TestRegistryPreservesOrder(t *testing.T) {
	t.Parallel()

	registry := dispatch.NewRegistry()
	registry.Register(command("a", nil), command("b", nil), command("c", nil))

	creates := registry.Creates()
	require.Len(t, creates, 3)
	assert.Equal(t, "a", creates[0].CommandName())
	assert.Equal(t, "b", creates[1].CommandName())
	assert.Equal(t, "c", creates[2].CommandName())
}
