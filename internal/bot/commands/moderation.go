package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aurabot/aura/internal/database/types/enum"
	"github.com/aurabot/aura/internal/discord/client"
	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/aurabot/aura/internal/guard/dispatch"
	"github.com/aurabot/aura/internal/moderation"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/json"
	"go.uber.org/zap"
)

// Discord caps member timeouts at 28 days.
const maxMuteMinutes = 40320

type moderationHandlers struct {
	service   *moderation.Service
	directory *client.Directory
	logger    *zap.Logger
}

// Moderation builds the warn, mute, unmute, kick, ban and unban commands on
// top of the shared moderation service.
func Moderation(
	service *moderation.Service, directory *client.Directory, logger *zap.Logger,
) []*dispatch.Command {
	h := &moderationHandlers{
		service:   service,
		directory: directory,
		logger:    logger.Named("cmd_moderation"),
	}

	return []*dispatch.Command{
		h.warn(), h.mute(), h.unmute(), h.kick(), h.ban(), h.unban(),
	}
}

func (h *moderationHandlers) warn() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "warn",
			Description:              "Warn a user",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionModerateMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to warn",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Reason for the warning",
					Required:    true,
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			target := data.User("user")
			reason := data.String("reason")

			return h.run(ctx, inv, moderation.ActionRequest{
				Type:        enum.CaseTypeWarn,
				GuildID:     guildID,
				TargetID:    target.ID,
				ModeratorID: inv.ActorID(),
				Reason:      reason,
			}, "warn", "User Warned",
				fmt.Sprintf("%s has been warned.", target.Username))
		},
	}
}

func (h *moderationHandlers) mute() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "mute",
			Description:              "Timeout a user",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionModerateMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to mute",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "duration",
					Description: "Duration in minutes",
					Required:    true,
					MinValue:    intPtr(1),
					MaxValue:    intPtr(maxMuteMinutes),
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Reason for the mute",
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			target := data.User("user")
			minutes := data.Int("duration")

			return h.run(ctx, inv, moderation.ActionRequest{
				Type:        enum.CaseTypeMute,
				GuildID:     guildID,
				TargetID:    target.ID,
				ModeratorID: inv.ActorID(),
				Reason:      optionalReason(data),
				Duration:    time.Duration(minutes) * time.Minute,
			}, "mute", "User Muted",
				fmt.Sprintf("%s has been muted for %d minutes.", target.Username, minutes))
		},
	}
}

func (h *moderationHandlers) unmute() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "unmute",
			Description:              "Remove a user's timeout",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionModerateMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to unmute",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Reason for lifting the mute",
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			target := data.User("user")

			return h.run(ctx, inv, moderation.ActionRequest{
				Type:        enum.CaseTypeUnmute,
				GuildID:     guildID,
				TargetID:    target.ID,
				ModeratorID: inv.ActorID(),
				Reason:      optionalReason(data),
			}, "unmute", "User Unmuted",
				fmt.Sprintf("%s has been unmuted.", target.Username))
		},
	}
}

func (h *moderationHandlers) kick() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "kick",
			Description:              "Kick a user from the server",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionKickMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to kick",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Reason for the kick",
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			target := data.User("user")

			return h.run(ctx, inv, moderation.ActionRequest{
				Type:        enum.CaseTypeKick,
				GuildID:     guildID,
				TargetID:    target.ID,
				ModeratorID: inv.ActorID(),
				Reason:      optionalReason(data),
			}, "kick", "User Kicked",
				fmt.Sprintf("%s has been kicked.", target.Username))
		},
	}
}

func (h *moderationHandlers) ban() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "ban",
			Description:              "Ban a user from the server",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionBanMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to ban",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Reason for the ban",
				},
				discord.ApplicationCommandOptionInt{
					Name:        "delete_days",
					Description: "Number of days of messages to delete (0-7)",
					MinValue:    intPtr(0),
					MaxValue:    intPtr(7),
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			target := data.User("user")

			deleteDays, ok := data.OptInt("delete_days")
			if !ok {
				deleteDays = 0
			}

			return h.run(ctx, inv, moderation.ActionRequest{
				Type:        enum.CaseTypeBan,
				GuildID:     guildID,
				TargetID:    target.ID,
				ModeratorID: inv.ActorID(),
				Reason:      optionalReason(data),
				DeleteDays:  deleteDays,
			}, "ban", "User Banned",
				fmt.Sprintf("%s has been banned.", target.Username))
		},
	}
}

func (h *moderationHandlers) unban() *dispatch.Command {
	return &dispatch.Command{
		Create: discord.SlashCommandCreate{
			Name:                     "unban",
			Description:              "Remove a user's ban",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionBanMembers),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to unban",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Reason for lifting the ban",
				},
			},
		},
		Handle: func(ctx context.Context, inv dispatch.Invocation) error {
			guildID, ok := inv.GuildID()
			if !ok {
				return replyGuildOnly(ctx, inv)
			}

			data := inv.Data()
			target := data.User("user")

			return h.run(ctx, inv, moderation.ActionRequest{
				Type:        enum.CaseTypeUnban,
				GuildID:     guildID,
				TargetID:    target.ID,
				ModeratorID: inv.ActorID(),
				Reason:      optionalReason(data),
			}, "unban", "User Unbanned",
				fmt.Sprintf("%s has been unbanned.", target.Username))
		},
	}
}

// run executes the action and translates the service's error taxonomy into
// interaction responses. Unexpected errors bubble up to the dispatcher's
// generic failure path.
func (h *moderationHandlers) run(
	ctx context.Context,
	inv dispatch.Invocation,
	req moderation.ActionRequest,
	verb, successTitle, successLine string,
) error {
	req.GuildName = h.guildName(ctx, req)

	result, err := h.service.Execute(ctx, req)
	if err != nil {
		return h.respondFailure(ctx, inv, verb, err)
	}

	description := fmt.Sprintf("%s\n**Case:** #%d\n**Reason:** %s",
		successLine, result.CaseNumber, req.Reason)

	return replyEmbed(ctx, inv, embeds.Success(successTitle, description), false)
}

func (h *moderationHandlers) respondFailure(
	ctx context.Context, inv dispatch.Invocation, verb string, err error,
) error {
	var (
		platformErr *moderation.PlatformError
		partialErr  *moderation.PartialError
	)

	switch {
	case moderation.IsRejection(err):
		return replyError(ctx, inv, sentence(err))
	case errors.As(err, &partialErr):
		h.logger.Error("Moderation action applied without ledger record", zap.Error(err))

		return replyEmbed(ctx, inv, embeds.Warning("Action Applied",
			"The action took effect, but recording the case failed. The case ledger is out of date for this action."),
			false)
	case errors.As(err, &platformErr):
		h.logger.Warn("Platform refused moderation action",
			zap.String("action", verb),
			zap.Error(err))

		return replyError(ctx, inv, fmt.Sprintf("Failed to %s the user!", verb))
	default:
		return err
	}
}

// guildName resolves the guild's display name for target DMs. Best-effort:
// a DM without the name is better than a failed action.
func (h *moderationHandlers) guildName(ctx context.Context, req moderation.ActionRequest) string {
	name, err := h.directory.GuildName(ctx, req.GuildID)
	if err != nil {
		h.logger.Debug("Failed to resolve guild name",
			zap.Uint64("guild_id", uint64(req.GuildID)),
			zap.Error(err))

		return "the server"
	}

	return name
}

func optionalReason(data discord.SlashCommandInteractionData) string {
	if reason, ok := data.OptString("reason"); ok {
		return reason
	}

	return "No reason provided"
}
