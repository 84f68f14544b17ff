package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/bailiff/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.NewCreateTable().
				Model((*types.GuildDocument)(nil)).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create guild_documents table: %w", err)
			}

			_, err = tx.NewCreateIndex().
				Model((*types.GuildDocument)(nil)).
				Index("idx_guild_documents_name").
				Column("name").
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create guild_documents name index: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().
			Model((*types.GuildDocument)(nil)).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop guild_documents table: %w", err)
		}

		return nil
	})
}
