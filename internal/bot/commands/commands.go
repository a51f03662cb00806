// Package commands defines the bot's slash commands. Each builder returns
// dispatch records wiring a command definition to its handler; the bot layer
// collects them into the registry at startup.
package commands

import (
	"context"

	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/aurabot/aura/internal/guard/dispatch"
	"github.com/disgoorg/disgo/discord"
)

func replyEmbed(ctx context.Context, inv dispatch.Invocation, embed discord.Embed, ephemeral bool) error {
	builder := discord.NewMessageCreateBuilder().SetEmbeds(embed)
	if ephemeral {
		builder.SetEphemeral(true)
	}

	return inv.Reply(ctx, builder.Build())
}

func replyError(ctx context.Context, inv dispatch.Invocation, description string) error {
	return replyEmbed(ctx, inv, embeds.Error("Error", description), true)
}

func replyGuildOnly(ctx context.Context, inv dispatch.Invocation) error {
	return replyError(ctx, inv, "This command can only be used in a server!")
}

func intPtr(v int) *int {
	return &v
}

// sentence renders a rejection error as user-facing message text.
func sentence(err error) string {
	text := err.Error()
	if text == "" {
		return text
	}

	if text[0] >= 'a' && text[0] <= 'z' {
		text = string(text[0]-'a'+'A') + text[1:]
	}

	return text + "!"
}
