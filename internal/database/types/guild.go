package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Default values applied to guilds that have not been configured yet.
const (
	DefaultJoinRateLimit     = 5
	DefaultWindowSeconds     = 10
	DefaultMinAccountAgeDays = 7
)

// PremiumSettings describes a guild's entitlement state.
// The flag is written by the external billing flow and only read here.
type PremiumSettings struct {
	Enabled   bool       `bun:",notnull,default:false"`
	Tier      int        `bun:",notnull,default:0"`
	ExpiresAt *time.Time `bun:",nullzero"`
}

// Active reports whether the entitlement is currently usable.
func (p *PremiumSettings) Active() bool {
	if !p.Enabled {
		return false
	}

	return p.ExpiresAt == nil || time.Now().Before(*p.ExpiresAt)
}

// AntiRaidSettings controls the join-burst detector and its escalation policy.
type AntiRaidSettings struct {
	Enabled           bool         `bun:",notnull,default:true"`
	RaidModeActive    bool         `bun:",notnull,default:false"`
	JoinRateLimit     int          `bun:",notnull"`
	WindowSeconds     int          `bun:",notnull"`
	MinAccountAgeDays int          `bun:",notnull"`
	NotifyChannel     snowflake.ID `bun:",nullzero"`
}

// Window returns the join-burst window as a duration.
func (a *AntiRaidSettings) Window() time.Duration {
	return time.Duration(a.WindowSeconds) * time.Second
}

// MinAccountAge returns the minimum account age as a duration.
func (a *AntiRaidSettings) MinAccountAge() time.Duration {
	return time.Duration(a.MinAccountAgeDays) * 24 * time.Hour
}

// ModerationSettings holds per-guild moderation configuration.
type ModerationSettings struct {
	LogChannel snowflake.ID `bun:",nullzero"`
	MutedRole  snowflake.ID `bun:",nullzero"`
}

// WelcomeSettings configures the onboarding message sent after a member
// survives the anti-raid checks.
type WelcomeSettings struct {
	Enabled  bool         `bun:",notnull,default:false"`
	Channel  snowflake.ID `bun:",nullzero"`
	Message  string       `bun:",type:text"`
	UseEmbed bool         `bun:",notnull,default:false"`
}

// GuildStats tracks per-guild usage counters.
type GuildStats struct {
	CommandsUsed      int64 `bun:",notnull,default:0"`
	ModerationActions int64 `bun:",notnull,default:0"`
}

// GuildConfig is the per-guild configuration snapshot read at the start of
// each event. Event handlers must not re-read it mid-event.
type GuildConfig struct {
	ID         snowflake.ID       `bun:"id,pk"`
	Name       string             `bun:",type:text"`
	Premium    PremiumSettings    `bun:"embed:premium_"`
	AntiRaid   AntiRaidSettings   `bun:"embed:anti_raid_"`
	Moderation ModerationSettings `bun:"embed:moderation_"`
	Welcome    WelcomeSettings    `bun:"embed:welcome_"`
	AutoRoles  []snowflake.ID     `bun:",type:jsonb"`
	Stats      GuildStats         `bun:"embed:stats_"`
	CreatedAt  time.Time          `bun:",notnull,default:current_timestamp"`
	UpdatedAt  time.Time          `bun:",notnull,default:current_timestamp"`
}

// NewGuildConfig returns a config populated with the reference defaults.
// Used for guilds that have no stored row yet.
func NewGuildConfig(id snowflake.ID) *GuildConfig {
	now := time.Now()

	return &GuildConfig{
		ID: id,
		AntiRaid: AntiRaidSettings{
			Enabled:           true,
			JoinRateLimit:     DefaultJoinRateLimit,
			WindowSeconds:     DefaultWindowSeconds,
			MinAccountAgeDays: DefaultMinAccountAgeDays,
		},
		Welcome: WelcomeSettings{
			Message: "Welcome {user} to {server}!",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
