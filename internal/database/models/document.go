package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/database/dbretry"
	"github.com/robalyx/bailiff/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// DocumentModel stores guild documents in Postgres. It implements document.Store.
type DocumentModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewDocument creates a new document model instance.
func NewDocument(db *bun.DB, logger *zap.Logger) *DocumentModel {
	return &DocumentModel{
		db:     db,
		logger: logger.Named("db_document"),
	}
}

// Get returns the raw document, or nil when the guild has none.
func (m *DocumentModel) Get(ctx context.Context, guildID snowflake.ID, name string) ([]byte, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]byte, error) {
		var doc types.GuildDocument

		err := m.db.NewSelect().
			Model(&doc).
			Where("guild_id = ?", uint64(guildID)).
			Where("name = ?", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to get document: %w", err)
		}

		return []byte(doc.Data), nil
	})
}

// Set replaces the document.
func (m *DocumentModel) Set(ctx context.Context, guildID snowflake.ID, name string, data []byte) error {
	doc := &types.GuildDocument{
		GuildID:   uint64(guildID),
		Name:      name,
		Data:      string(data),
		UpdatedAt: time.Now(),
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(doc).
			On("CONFLICT (guild_id, name) DO UPDATE").
			Set("data = EXCLUDED.data").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Stored guild document",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("name", name),
		zap.Int("bytes", len(data)))

	return nil
}

// Guilds returns the ids of every guild that has the named document.
func (m *DocumentModel) Guilds(ctx context.Context, name string) ([]snowflake.ID, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]snowflake.ID, error) {
		var ids []uint64

		err := m.db.NewSelect().
			Model((*types.GuildDocument)(nil)).
			Column("guild_id").
			Where("name = ?", name).
			Order("guild_id").
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list guilds: %w", err)
		}

		guilds := make([]snowflake.ID, len(ids))
		for i, id := range ids {
			guilds[i] = snowflake.ID(id)
		}

		return guilds, nil
	})
}
