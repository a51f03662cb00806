package migrations

import (
	"context"
	"fmt"

	"github.com/aurabot/aura/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.GuildConfig)(nil),
			(*types.ModerationCase)(nil),
			(*types.CaseCounter)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// Ledger reads are almost always scoped to one user within a guild
		_, err := db.NewCreateIndex().
			Model((*types.ModerationCase)(nil)).
			Index("moderation_cases_guild_user_idx").
			IfNotExists().
			Column("guild_id", "user_id").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create moderation case index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.CaseCounter)(nil),
			(*types.ModerationCase)(nil),
			(*types.GuildConfig)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
