package commands

import (
	"errors"

	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired    = errors.New("NAME argument required")
	ErrGuildRequired   = errors.New("GUILD argument required")
	ErrSettingRequired = errors.New("SECTION and KEY arguments required")
	ErrValueRequired   = errors.New("VALUE argument required")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	Migrator *migrate.Migrator
	Config   *guildconfig.Provider
	Logger   *zap.Logger
}
