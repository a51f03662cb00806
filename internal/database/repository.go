package database

import (
	"github.com/aurabot/aura/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	guild   *models.GuildModel
	modCase *models.CaseModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		guild:   models.NewGuild(db, logger),
		modCase: models.NewCase(db, logger),
	}
}

// Guild returns the guild configuration model repository.
func (r *Repository) Guild() *models.GuildModel {
	return r.guild
}

// Case returns the moderation case model repository.
func (r *Repository) Case() *models.CaseModel {
	return r.modCase
}
