package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aurabot/aura/internal/database/dbretry"
	"github.com/aurabot/aura/internal/database/types"
	"github.com/aurabot/aura/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrCaseNotFound is returned when a requested case does not exist.
var ErrCaseNotFound = errors.New("moderation case not found")

// CaseModel handles database operations for the moderation case ledger and
// the per-guild case number allocator.
type CaseModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCase creates a new CaseModel instance.
func NewCase(db *bun.DB, logger *zap.Logger) *CaseModel {
	return &CaseModel{
		db:     db,
		logger: logger.Named("db_case"),
	}
}

// NextCaseNumber allocates the next case number for a guild. The counter row
// is bumped with a single atomic upsert, so concurrent allocations for the
// same guild are serialized by the database and the returned numbers form a
// contiguous sequence starting at 1. Counting existing rows would race.
func (m *CaseModel) NextCaseNumber(ctx context.Context, guildID snowflake.ID) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		counter := &types.CaseCounter{
			GuildID:    guildID,
			NextNumber: 1,
		}

		_, err := m.db.NewInsert().
			Model(counter).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("next_number = case_counter.next_number + 1").
			Returning("next_number").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to allocate case number: %w", err)
		}

		return counter.NextNumber, nil
	})
}

// CreateCase writes a ledger entry. The insert is idempotent on the
// (guild_id, case_number) key so a retry after a lost response cannot
// produce a duplicate row.
func (m *CaseModel) CreateCase(ctx context.Context, record *types.ModerationCase) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(record).
			On("CONFLICT (guild_id, case_number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create moderation case: %w", err)
		}

		return nil
	})
}

// GetCase fetches one case by its number within a guild.
func (m *CaseModel) GetCase(
	ctx context.Context, guildID snowflake.ID, caseNumber int64,
) (*types.ModerationCase, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.ModerationCase, error) {
		record := new(types.ModerationCase)

		err := m.db.NewSelect().
			Model(record).
			Where("guild_id = ?", guildID).
			Where("case_number = ?", caseNumber).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrCaseNotFound
			}

			return nil, fmt.Errorf("failed to get moderation case: %w", err)
		}

		return record, nil
	})
}

// GetUserCases lists the most recent cases recorded against a user.
func (m *CaseModel) GetUserCases(
	ctx context.Context, guildID, userID snowflake.ID, limit int,
) ([]*types.ModerationCase, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ModerationCase, error) {
		var records []*types.ModerationCase

		err := m.db.NewSelect().
			Model(&records).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Order("case_number DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user cases: %w", err)
		}

		return records, nil
	})
}

// GetLatestCases lists the most recent cases for a guild.
func (m *CaseModel) GetLatestCases(
	ctx context.Context, guildID snowflake.ID, limit int,
) ([]*types.ModerationCase, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ModerationCase, error) {
		var records []*types.ModerationCase

		err := m.db.NewSelect().
			Model(&records).
			Where("guild_id = ?", guildID).
			Order("case_number DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest cases: %w", err)
		}

		return records, nil
	})
}

// DeactivateCases clears the active flag on every open case of the given
// type against a user. Reversal actions (unmute, unban) use this to close
// the records they undo; the rows themselves are kept.
// Returns the number of cases closed.
func (m *CaseModel) DeactivateCases(
	ctx context.Context, guildID, userID snowflake.ID, caseType enum.CaseType,
) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		result, err := m.db.NewUpdate().
			Model((*types.ModerationCase)(nil)).
			Set("active = FALSE").
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Where("type = ?", caseType).
			Where("active = TRUE").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate cases: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}

		return affected, nil
	})
}
