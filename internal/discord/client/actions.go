package client

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Actions applies platform-level moderation actions through the Discord REST
// API. Every call carries a bounded timeout so a stalled request cannot hold
// up the per-guild pipeline that issued it.
type Actions struct {
	rest    rest.Rest
	timeout time.Duration
	logger  *zap.Logger
}

// NewActions creates a new platform action client.
func NewActions(restClient rest.Rest, timeout time.Duration, logger *zap.Logger) *Actions {
	return &Actions{
		rest:    restClient,
		timeout: timeout,
		logger:  logger.Named("discord_actions"),
	}
}

// Ban bans a user from a guild, deleting up to deleteDays days of messages.
func (a *Actions) Ban(
	ctx context.Context, guildID, userID snowflake.ID, deleteDays int, reason string,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.rest.AddBan(guildID, userID, time.Duration(deleteDays)*24*time.Hour,
		rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}

	return nil
}

// Unban removes a guild ban for a user.
func (a *Actions) Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.rest.DeleteBan(guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}

	return nil
}

// Kick removes a member from a guild.
func (a *Actions) Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.rest.RemoveMember(guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to kick user: %w", err)
	}

	return nil
}

// Timeout disables a member's communication until the given instant.
func (a *Actions) Timeout(
	ctx context.Context, guildID, userID snowflake.ID, until time.Time, reason string,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.rest.UpdateMember(guildID, userID, discord.MemberUpdate{
		CommunicationDisabledUntil: json.NewNullablePtr(until),
	}, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to timeout user: %w", err)
	}

	return nil
}

// RemoveTimeout clears an active communication timeout.
func (a *Actions) RemoveTimeout(
	ctx context.Context, guildID, userID snowflake.ID, reason string,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.rest.UpdateMember(guildID, userID, discord.MemberUpdate{
		CommunicationDisabledUntil: json.NullPtr[time.Time](),
	}, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to remove timeout: %w", err)
	}

	return nil
}

// SetVerificationLevel changes the guild's verification level. Raid mode
// raises it to the strictest setting and restores medium when cleared.
func (a *Actions) SetVerificationLevel(
	ctx context.Context, guildID snowflake.ID, level discord.VerificationLevel, reason string,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.rest.UpdateGuild(guildID, discord.GuildUpdate{
		VerificationLevel: json.NewNullablePtr(level),
	}, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to set verification level: %w", err)
	}

	return nil
}

// SetChannelLock denies or restores the send-messages permission for the
// given role in a channel. Existing unrelated overwrite bits are preserved.
func (a *Actions) SetChannelLock(
	ctx context.Context, channelID, roleID snowflake.ID, locked bool, reason string,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	channel, err := a.rest.GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch channel: %w", err)
	}

	guildChannel, ok := channel.(discord.GuildChannel)
	if !ok {
		return fmt.Errorf("channel %d is not a guild channel", channelID)
	}

	var allow, deny discord.Permissions

	for _, overwrite := range guildChannel.PermissionOverwrites() {
		if role, ok := overwrite.(discord.RolePermissionOverwrite); ok && role.RoleID == roleID {
			allow = role.Allow
			deny = role.Deny

			break
		}
	}

	if locked {
		allow &^= discord.PermissionSendMessages
		deny |= discord.PermissionSendMessages
	} else {
		deny &^= discord.PermissionSendMessages
	}

	err = a.rest.UpdatePermissionOverwrite(channelID, roleID, discord.RolePermissionOverwriteUpdate{
		Allow: &allow,
		Deny:  &deny,
	}, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to update channel overwrite: %w", err)
	}

	return nil
}

// AddRole assigns a role to a member.
func (a *Actions) AddRole(
	ctx context.Context, guildID, userID, roleID snowflake.ID, reason string,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.rest.AddMemberRole(guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}

	return nil
}
