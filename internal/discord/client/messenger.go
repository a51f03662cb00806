package client

import (
	"context"
	"fmt"
	"time"

	"github.com/aurabot/aura/internal/discord/rate"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Messenger sends channel messages and direct messages. All sends are
// best-effort from the caller's point of view; callers that must not fail on
// a send swallow the returned error after logging it. Sends are paced by a
// shared limiter so notification bursts cannot storm a channel.
type Messenger struct {
	rest    rest.Rest
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewMessenger creates a new messenger.
func NewMessenger(restClient rest.Rest, timeout time.Duration, logger *zap.Logger) *Messenger {
	return &Messenger{
		rest:    restClient,
		limiter: rate.New(500 * time.Millisecond),
		timeout: timeout,
		logger:  logger.Named("discord_messenger"),
	}
}

// SendEmbed posts an embed to a channel.
func (m *Messenger) SendEmbed(ctx context.Context, channelID snowflake.ID, embed discord.Embed) error {
	return m.send(ctx, channelID, discord.NewMessageCreateBuilder().SetEmbeds(embed).Build())
}

// SendText posts a plain text message to a channel.
func (m *Messenger) SendText(ctx context.Context, channelID snowflake.ID, content string) error {
	return m.send(ctx, channelID, discord.NewMessageCreateBuilder().SetContent(content).Build())
}

// SendDM delivers an embed to a user's direct message channel.
func (m *Messenger) SendDM(ctx context.Context, userID snowflake.ID, embed discord.Embed) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	channel, err := m.rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to create DM channel: %w", err)
	}

	return m.send(ctx, channel.ID(), discord.NewMessageCreateBuilder().SetEmbeds(embed).Build())
}

func (m *Messenger) send(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.limiter.WaitForNextSlot(ctx); err != nil {
		return fmt.Errorf("message send timed out waiting for rate limit: %w", err)
	}

	if _, err := m.rest.CreateMessage(channelID, message, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
