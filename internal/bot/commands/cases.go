package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aurabot/aura/internal/database"
	"github.com/aurabot/aura/internal/database/models"
	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/aurabot/aura/internal/guard/dispatch"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/json"
)

const historyLimit = 10

type caseHandlers struct {
	db database.Client
}

// Cases builds the case lookup and user history commands over the ledger.
func Cases(db database.Client) []*dispatch.Command {
	h := &caseHandlers{db: db}

	return []*dispatch.Command{h.lookup(), h.history()}
}

func (h *caseHandlers) lookup() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "case",
			Description:              "Look up a moderation case",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionModerateMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "number",
					Description: "The case number",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			number := int64(inv.Data().Int("number"))

			record, err := h.db.Model().Case().GetCase(ctx, guildID, number)
			if err != nil {
				if errors.Is(err, models.ErrCaseNotFound) {
					return replyError(ctx, inv, fmt.Sprintf("Case #%d does not exist!", number))
				}

				return err
			}

			return replyEmbed(ctx, inv, caseEmbed(record), false)
		},
	}
}

func (h *caseHandlers) history() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "history",
			Description:              "Show a user's moderation history",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionModerateMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user whose history to show",
					Required:    true,
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			target := inv.Data().User("user")

			records, err := h.db.Model().Case().GetUserCases(ctx, guildID, target.ID, historyLimit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				return replyEmbed(ctx, inv, embeds.Info("Moderation History",
					fmt.Sprintf("No cases recorded for %s.", target.Username)), false)
			}

			var lines []string
			for _, record := range records {
				lines = append(lines, fmt.Sprintf("**#%d** • %s • <t:%d:R> — %s",
					record.CaseNumber,
					titleCase(record.Type.String()),
					record.CreatedAt.Unix(),
					record.Reason))
			}

			return replyEmbed(ctx, inv, embeds.Info(
				fmt.Sprintf("Moderation History for %s", target.Username),
				strings.Join(lines, "\n")), false)
		},
	}
}

func caseEmbed(record *types.ModerationCase) discord.Embed {
	status := "Inactive"
	if record.Active {
		status = "Active"
	}

	description := fmt.Sprintf(
		"**Type:** %s\n**User:** <@%d>\n**Moderator:** <@%d>\n**Reason:** %s\n**Status:** %s\n**Created:** <t:%d:F>",
		titleCase(record.Type.String()),
		record.UserID,
		record.ModeratorID,
		record.Reason,
		status,
		record.CreatedAt.Unix())

	if record.Duration != nil {
		description += fmt.Sprintf("\n**Duration:** %d minutes", *record.Duration/60)
	}

	return embeds.Info(fmt.Sprintf("Case #%d", record.CaseNumber), description)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
