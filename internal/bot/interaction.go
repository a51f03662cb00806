package bot

import (
	"context"
	"sync/atomic"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

// slashInvocation adapts a gateway slash command event to the dispatcher's
// invocation interface and tracks whether an initial response was sent so
// failures can pick between reply and follow-up.
type slashInvocation struct {
	event     *events.ApplicationCommandInteractionCreate
	data      discord.SlashCommandInteractionData
	responded atomic.Bool
}

func newSlashInvocation(event *events.ApplicationCommandInteractionCreate) *slashInvocation {
	return &slashInvocation{
		event: event,
		data:  event.SlashCommandInteractionData(),
	}
}

func (i *slashInvocation) CommandName() string {
	return i.data.CommandName()
}

func (i *slashInvocation) GuildID() (snowflake.ID, bool) {
	if guildID := i.event.GuildID(); guildID != nil {
		return *guildID, true
	}

	return 0, false
}

func (i *slashInvocation) ActorID() snowflake.ID {
	return i.event.User().ID
}

func (i *slashInvocation) Reply(_ context.Context, message discord.MessageCreate) error {
	if err := i.event.CreateMessage(message); err != nil {
		return err
	}

	i.responded.Store(true)

	return nil
}

func (i *slashInvocation) Followup(_ context.Context, message discord.MessageCreate) error {
	_, err := i.event.Client().Rest().CreateFollowupMessage(i.event.ApplicationID(), i.event.Token(), message)
	return err
}

func (i *slashInvocation) Responded() bool {
	return i.responded.Load()
}

func (i *slashInvocation) Data() discord.SlashCommandInteractionData {
	return i.data
}
