package embeds

import (
	"time"

	"github.com/disgoorg/disgo/discord"
)

// Embed colors used across the bot's responses.
const (
	SuccessColor = 0x00FF00
	ErrorColor   = 0xFF0000
	WarningColor = 0xFFFF00
	InfoColor    = 0x0099FF
	PremiumColor = 0xFFD700
)

// Success builds a green embed with the given title and description.
func Success(title, description string) discord.Embed {
	return build(SuccessColor, title, description)
}

// Error builds a red embed with the given title and description.
func Error(title, description string) discord.Embed {
	return build(ErrorColor, title, description)
}

// Warning builds a yellow embed with the given title and description.
func Warning(title, description string) discord.Embed {
	return build(WarningColor, title, description)
}

// Info builds a blue embed with the given title and description.
func Info(title, description string) discord.Embed {
	return build(InfoColor, title, description)
}

func build(color int, title, description string) discord.Embed {
	return discord.NewEmbedBuilder().
		SetColor(color).
		SetTitle(title).
		SetDescription(description).
		SetTimestamp(time.Now()).
		Build()
}
