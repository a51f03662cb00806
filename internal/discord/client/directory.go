package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// ErrMemberNotFound is returned when a user is not a member of the guild.
var ErrMemberNotFound = errors.New("member not found in guild")

// Directory answers read-only identity questions against the platform:
// membership, guild ownership and role-rank ordering.
type Directory struct {
	rest    rest.Rest
	timeout time.Duration
	logger  *zap.Logger
}

// NewDirectory creates a new directory client.
func NewDirectory(restClient rest.Rest, timeout time.Duration, logger *zap.Logger) *Directory {
	return &Directory{
		rest:    restClient,
		timeout: timeout,
		logger:  logger.Named("discord_directory"),
	}
}

// Member fetches a guild member, returning ErrMemberNotFound when the user
// is not in the guild.
func (d *Directory) Member(
	ctx context.Context, guildID, userID snowflake.ID,
) (*discord.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	member, err := d.rest.GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMemberNotFound
		}

		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	return member, nil
}

// IsOwner reports whether the user owns the guild.
func (d *Directory) IsOwner(ctx context.Context, guildID, userID snowflake.ID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	guild, err := d.rest.GetGuild(guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to fetch guild: %w", err)
	}

	return guild.OwnerID == userID, nil
}

// GuildName fetches the guild's display name.
func (d *Directory) GuildName(ctx context.Context, guildID snowflake.ID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	guild, err := d.rest.GetGuild(guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild: %w", err)
	}

	return guild.Name, nil
}

// TextChannels lists the IDs of the guild's text channels.
func (d *Directory) TextChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	channels, err := d.rest.GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild channels: %w", err)
	}

	ids := make([]snowflake.ID, 0, len(channels))
	for _, channel := range channels {
		if channel.Type() == discord.ChannelTypeGuildText {
			ids = append(ids, channel.ID())
		}
	}

	return ids, nil
}

// Outranks reports whether the moderator's highest role sits strictly above
// the target's highest role, using the platform's role ordering.
func (d *Directory) Outranks(ctx context.Context, guildID, moderatorID, targetID snowflake.ID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	roles, err := d.rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to fetch roles: %w", err)
	}

	positions := make(map[snowflake.ID]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}

	moderator, err := d.Member(ctx, guildID, moderatorID)
	if err != nil {
		return false, err
	}

	target, err := d.Member(ctx, guildID, targetID)
	if err != nil {
		return false, err
	}

	return topPosition(moderator, positions) > topPosition(target, positions), nil
}

func topPosition(member *discord.Member, positions map[snowflake.ID]int) int {
	highest := 0
	for _, roleID := range member.RoleIDs {
		if pos, ok := positions[roleID]; ok && pos > highest {
			highest = pos
		}
	}

	return highest
}

func isNotFound(err error) bool {
	var restErr rest.Error

	return errors.As(err, &restErr) &&
		restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusNotFound
}
