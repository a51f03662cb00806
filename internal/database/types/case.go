package types

import (
	"time"

	"github.com/aurabot/aura/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
)

// ModerationCase is one durable ledger entry. Case numbers are unique and
// contiguous within a guild; rows are never deleted, a reversal only clears
// the Active flag of the matching earlier case.
type ModerationCase struct {
	GuildID     snowflake.ID  `bun:",pk"`
	CaseNumber  int64         `bun:",pk"`
	Type        enum.CaseType `bun:",notnull"`
	UserID      snowflake.ID  `bun:",notnull"`
	ModeratorID snowflake.ID  `bun:",notnull"`
	Reason      string        `bun:",type:text,notnull"`
	Duration    *int64        `bun:",nullzero"` // seconds, mute only
	Active      bool          `bun:",notnull,default:true"`
	CreatedAt   time.Time     `bun:",notnull,default:current_timestamp"`
}

// CaseCounter serializes case number allocation per guild. The row is
// bumped with an atomic upsert so concurrent allocations never collide.
type CaseCounter struct {
	GuildID    snowflake.ID `bun:",pk"`
	NextNumber int64        `bun:",notnull"`
}
