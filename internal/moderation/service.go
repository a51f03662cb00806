package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/database/types/enum"
	"github.com/aurabot/aura/internal/discord/embeds"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// ConfigStore supplies guild configuration and usage counters.
type ConfigStore interface {
	GetGuild(ctx context.Context, guildID snowflake.ID) (*types.GuildConfig, error)
	IncrementModerationActions(ctx context.Context, guildID snowflake.ID) error
}

// CaseStore is the ledger backing: case number allocation plus record writes
// and reversal support.
type CaseStore interface {
	NextCaseNumber(ctx context.Context, guildID snowflake.ID) (int64, error)
	CreateCase(ctx context.Context, record *types.ModerationCase) error
	DeactivateCases(ctx context.Context, guildID, userID snowflake.ID, caseType enum.CaseType) (int64, error)
}

// Directory answers the identity questions the pre-checks need.
type Directory interface {
	Member(ctx context.Context, guildID, userID snowflake.ID) (*discord.Member, error)
	IsOwner(ctx context.Context, guildID, userID snowflake.ID) (bool, error)
	Outranks(ctx context.Context, guildID, moderatorID, targetID snowflake.ID) (bool, error)
}

// Platform applies the moderation action itself.
type Platform interface {
	Ban(ctx context.Context, guildID, userID snowflake.ID, deleteDays int, reason string) error
	Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Timeout(ctx context.Context, guildID, userID snowflake.ID, until time.Time, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID snowflake.ID, reason string) error
}

// Messenger delivers the best-effort target DM and the log channel entry.
type Messenger interface {
	SendEmbed(ctx context.Context, channelID snowflake.ID, embed discord.Embed) error
	SendDM(ctx context.Context, userID snowflake.ID, embed discord.Embed) error
}

// ActionRequest describes one moderation action to perform.
type ActionRequest struct {
	Type        enum.CaseType
	GuildID     snowflake.ID
	TargetID    snowflake.ID
	ModeratorID snowflake.ID
	Reason      string
	Duration    time.Duration // mute only
	DeleteDays  int           // ban only
	GuildName   string        // for the target DM
}

// ActionResult reports a committed action.
type ActionResult struct {
	CaseNumber  int64
	DMDelivered bool
}

// Service runs every moderation action through the same three phases:
// side-effect-free pre-checks, a best-effort DM to the target, then the
// commit (platform action, case allocation, ledger write, counters, log).
type Service struct {
	store          ConfigStore
	cases          CaseStore
	directory      Directory
	platform       Platform
	messenger      Messenger
	memberNotFound error
	logger         *zap.Logger
}

// NewService creates a moderation service. memberNotFound is the sentinel
// the directory returns for users outside the guild.
func NewService(
	store ConfigStore,
	cases CaseStore,
	directory Directory,
	platform Platform,
	messenger Messenger,
	memberNotFound error,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:          store,
		cases:          cases,
		directory:      directory,
		platform:       platform,
		messenger:      messenger,
		memberNotFound: memberNotFound,
		logger:         logger.Named("moderation"),
	}
}

// Execute performs one moderation action end to end.
func (s *Service) Execute(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if err := s.preCheck(ctx, req); err != nil {
		return nil, err
	}

	// Notify the target before acting: once they are kicked or banned the
	// shared guild no longer permits a DM
	delivered := s.notifyTarget(ctx, req)

	if err := s.applyPlatformAction(ctx, req); err != nil {
		return nil, &PlatformError{Err: err}
	}

	caseNumber, err := s.RecordAction(
		ctx, req.Type, req.GuildID, req.TargetID, req.ModeratorID, req.Reason, req.Duration,
	)
	if err != nil {
		// The platform action is already applied; losing the record must be
		// reported as a partial outcome, never silently dropped
		s.logger.Error("Moderation action applied but ledger write failed",
			zap.String("type", req.Type.String()),
			zap.Uint64("guild_id", uint64(req.GuildID)),
			zap.Uint64("target_id", uint64(req.TargetID)),
			zap.Error(err))

		return nil, &PartialError{Err: err}
	}

	s.publishLogEntry(ctx, req, caseNumber)

	return &ActionResult{CaseNumber: caseNumber, DMDelivered: delivered}, nil
}

// RecordAction allocates the next case number, writes the ledger entry and
// bumps the guild's moderation counter. Reversal actions additionally close
// the open cases they undo. The ledger write is idempotent and retried
// internally, so a transient failure cannot duplicate case numbers.
func (s *Service) RecordAction(
	ctx context.Context,
	caseType enum.CaseType,
	guildID, targetID, moderatorID snowflake.ID,
	reason string,
	duration time.Duration,
) (int64, error) {
	if caseType.IsReversal() {
		if _, err := s.cases.DeactivateCases(ctx, guildID, targetID, caseType.Reverses()); err != nil {
			s.logger.Error("Failed to close reversed cases",
				zap.String("type", caseType.String()),
				zap.Uint64("guild_id", uint64(guildID)),
				zap.Error(err))
		}
	}

	caseNumber, err := s.cases.NextCaseNumber(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate case number: %w", err)
	}

	record := &types.ModerationCase{
		GuildID:     guildID,
		CaseNumber:  caseNumber,
		Type:        caseType,
		UserID:      targetID,
		ModeratorID: moderatorID,
		Reason:      reason,
		Active:      !caseType.IsReversal(),
		CreatedAt:   time.Now(),
	}

	if duration > 0 {
		seconds := int64(duration.Seconds())
		record.Duration = &seconds
	}

	if err := s.cases.CreateCase(ctx, record); err != nil {
		return 0, err
	}

	if err := s.store.IncrementModerationActions(ctx, guildID); err != nil {
		s.logger.Warn("Failed to increment moderation action counter",
			zap.Uint64("guild_id", uint64(guildID)),
			zap.Error(err))
	}

	return caseNumber, nil
}

// preCheck validates the request without side effects. Every failure here is
// a rejection the invoker can be shown directly.
func (s *Service) preCheck(ctx context.Context, req ActionRequest) error {
	if req.TargetID == req.ModeratorID && req.Type != enum.CaseTypeWarn {
		return ErrSelfTarget
	}

	// Unban targets are not members; their pre-checks end here
	if req.Type == enum.CaseTypeUnban {
		return nil
	}

	member, err := s.directory.Member(ctx, req.GuildID, req.TargetID)
	if err != nil {
		if errors.Is(err, s.memberNotFound) {
			return ErrTargetNotFound
		}

		return fmt.Errorf("failed to verify target membership: %w", err)
	}

	if req.Type == enum.CaseTypeUnmute {
		until := member.CommunicationDisabledUntil
		if until == nil || until.Before(time.Now()) {
			return ErrNothingToReverse
		}
	}

	if req.Type == enum.CaseTypeBan {
		owner, err := s.directory.IsOwner(ctx, req.GuildID, req.TargetID)
		if err != nil {
			return fmt.Errorf("failed to verify guild ownership: %w", err)
		}

		if owner {
			return ErrOwnerTarget
		}
	}

	if req.TargetID != req.ModeratorID {
		outranks, err := s.directory.Outranks(ctx, req.GuildID, req.ModeratorID, req.TargetID)
		if err != nil {
			return fmt.Errorf("failed to compare role ranks: %w", err)
		}

		if !outranks {
			return ErrInsufficientRank
		}
	}

	return nil
}

func (s *Service) applyPlatformAction(ctx context.Context, req ActionRequest) error {
	switch req.Type {
	case enum.CaseTypeWarn:
		return nil
	case enum.CaseTypeMute:
		return s.platform.Timeout(ctx, req.GuildID, req.TargetID, time.Now().Add(req.Duration), req.Reason)
	case enum.CaseTypeUnmute:
		return s.platform.RemoveTimeout(ctx, req.GuildID, req.TargetID, req.Reason)
	case enum.CaseTypeKick:
		return s.platform.Kick(ctx, req.GuildID, req.TargetID, req.Reason)
	case enum.CaseTypeBan:
		return s.platform.Ban(ctx, req.GuildID, req.TargetID, req.DeleteDays, req.Reason)
	case enum.CaseTypeUnban:
		return s.platform.Unban(ctx, req.GuildID, req.TargetID, req.Reason)
	default:
		return fmt.Errorf("unsupported action type %s", req.Type)
	}
}

// notifyTarget attempts to DM the target about the action. Failure is
// swallowed after logging; a closed DM must never block moderation.
func (s *Service) notifyTarget(ctx context.Context, req ActionRequest) bool {
	title, description := dmContent(req)

	if err := s.messenger.SendDM(ctx, req.TargetID, embeds.Error(title, description)); err != nil {
		s.logger.Debug("Failed to DM moderation target",
			zap.String("type", req.Type.String()),
			zap.Uint64("target_id", uint64(req.TargetID)),
			zap.Error(err))

		return false
	}

	return true
}

// publishLogEntry posts the case to the guild's moderation log channel.
// Best-effort: the case is already committed.
func (s *Service) publishLogEntry(ctx context.Context, req ActionRequest, caseNumber int64) {
	config, err := s.store.GetGuild(ctx, req.GuildID)
	if err != nil {
		s.logger.Warn("Failed to load config for log entry",
			zap.Uint64("guild_id", uint64(req.GuildID)),
			zap.Error(err))

		return
	}

	if config.Moderation.LogChannel == 0 {
		return
	}

	embed := embeds.Success(
		fmt.Sprintf("Case #%d | %s", caseNumber, titleCase(req.Type.String())),
		fmt.Sprintf("**User:** <@%d>\n**Moderator:** <@%d>\n**Reason:** %s",
			req.TargetID, req.ModeratorID, req.Reason))

	if err := s.messenger.SendEmbed(ctx, config.Moderation.LogChannel, embed); err != nil {
		s.logger.Warn("Failed to publish case to log channel",
			zap.Uint64("guild_id", uint64(req.GuildID)),
			zap.Int64("case_number", caseNumber),
			zap.Error(err))
	}
}

func dmContent(req ActionRequest) (string, string) {
	details := fmt.Sprintf("**Reason:** %s", req.Reason)

	switch req.Type {
	case enum.CaseTypeWarn:
		return fmt.Sprintf("You have been warned in %s", req.GuildName), details
	case enum.CaseTypeMute:
		return fmt.Sprintf("You have been muted in %s", req.GuildName),
			fmt.Sprintf("**Duration:** %s\n%s", req.Duration, details)
	case enum.CaseTypeUnmute:
		return fmt.Sprintf("Your mute in %s has been lifted", req.GuildName), details
	case enum.CaseTypeKick:
		return fmt.Sprintf("You have been kicked from %s", req.GuildName), details
	case enum.CaseTypeBan:
		return fmt.Sprintf("You have been banned from %s", req.GuildName), details
	case enum.CaseTypeUnban:
		return fmt.Sprintf("Your ban from %s has been lifted", req.GuildName), details
	default:
		return "Moderation action", details
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return string(s[0]-'a'+'A') + s[1:]
}
