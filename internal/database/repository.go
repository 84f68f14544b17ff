package database

import (
	"github.com/robalyx/bailiff/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	document *models.DocumentModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		document: models.NewDocument(db, logger),
	}
}

// Document returns the guild document model repository.
func (r *Repository) Document() *models.DocumentModel {
	return r.document
}
