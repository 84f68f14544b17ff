package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/document"
	"github.com/robalyx/bailiff/internal/export/csv"
	"github.com/robalyx/bailiff/internal/export/sqlite"
	"github.com/robalyx/bailiff/internal/export/types"
	"github.com/robalyx/bailiff/internal/userlog"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidHashType   = errors.New("invalid hash type")
	ErrMissingSalt       = errors.New("salt is required")
)

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

// EngineVersion is bumped on breaking changes to the export layout.
const EngineVersion = "1.0.0"

// Config holds the configuration for exports.
type Config struct {
	ExportVersion string `json:"exportVersion"`
	Salt          string `json:"-"`
	Description   string `json:"description"`
	HashType      string `json:"hashType"`
	Iterations    uint32 `json:"iterations"`
	Memory        uint32 `json:"memory,omitempty"`
	Concurrency   int    `json:"-"`
}

// Validate checks the hashing parameters.
func (c *Config) Validate() error {
	if !HashType(c.HashType).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidHashType, c.HashType)
	}
	if c.Salt == "" {
		return ErrMissingSalt
	}
	return nil
}

// Ledger is the read side of the user log store.
type Ledger interface {
	Users(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error)
	ListEvents(
		ctx context.Context, guildID, userID snowflake.ID, kinds ...userlog.EventKind,
	) (map[userlog.EventKind][]userlog.Event, error)
}

// Summary describes a finished export.
type Summary struct {
	Guilds  int
	Users   int
	Records int
}

// Exporter writes every guild's ledger to offline files.
type Exporter struct {
	guilds  document.Lister
	ledger  Ledger
	outDir  string
	config  *Config
	formats []Format
	logger  *zap.Logger
}

// New creates a new exporter instance.
func New(guilds document.Lister, ledger Ledger, outDir string, config *Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		guilds: guilds,
		ledger: ledger,
		outDir: outDir,
		config: config,
		formats: []Format{
			FormatSQLite,
			FormatCSV,
		},
		logger: logger.Named("export"),
	}
}

// ExportAll exports all ledgers in all supported formats.
func (e *Exporter) ExportAll(ctx context.Context) (*Summary, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	e.logger.Info("Starting export",
		zap.String("hashType", e.config.HashType),
		zap.Uint32("iterations", e.config.Iterations),
		zap.Int("concurrency", e.config.Concurrency),
		zap.String("outDir", e.outDir))

	events, summary, err := e.collect(ctx)
	if err != nil {
		return nil, err
	}

	records := e.hashRecords(events)
	summary.Records = len(records)

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := e.writeConfig(); err != nil {
		return nil, err
	}

	for _, format := range e.formats {
		if err := e.export(format, records); err != nil {
			return nil, fmt.Errorf("failed to export %s format: %w", format, err)
		}
	}

	e.logger.Info("Export completed",
		zap.Int("guilds", summary.Guilds),
		zap.Int("users", summary.Users),
		zap.Int("records", summary.Records))

	return summary, nil
}

// rawEvent is a ledger event before its ids are hashed.
type rawEvent struct {
	guildID snowflake.ID
	userID  snowflake.ID
	kind    userlog.EventKind
	index   int
	event   userlog.Event
}

// collect reads every ledger event in guild, user, kind, index order.
func (e *Exporter) collect(ctx context.Context) ([]rawEvent, *Summary, error) {
	guildIDs, err := e.guilds.Guilds(ctx, document.NameUserLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list guilds: %w", err)
	}

	summary := &Summary{Guilds: len(guildIDs)}

	var events []rawEvent
	for _, guildID := range guildIDs {
		userIDs, err := e.ledger.Users(ctx, guildID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list users of guild %d: %w", guildID, err)
		}
		summary.Users += len(userIDs)

		for _, userID := range userIDs {
			byKind, err := e.ledger.ListEvents(ctx, guildID, userID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to list events of user %d: %w", userID, err)
			}

			for _, kind := range userlog.AllKinds {
				for i, event := range byKind[kind] {
					events = append(events, rawEvent{
						guildID: guildID,
						userID:  userID,
						kind:    kind,
						index:   i + 1,
						event:   event,
					})
				}
			}
		}
	}

	return events, summary, nil
}

// hashRecords replaces user and issuer ids with their hashes.
func (e *Exporter) hashRecords(events []rawEvent) []*types.EventRecord {
	ids := make([]uint64, 0, len(events)*2)
	for _, ev := range events {
		ids = append(ids, uint64(ev.userID), uint64(ev.event.Issuer.ID))
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	hashes := hashIDs(ids, e.config.Salt, HashType(e.config.HashType),
		e.config.Concurrency, e.config.Iterations, e.config.Memory)

	records := make([]*types.EventRecord, len(events))
	for i, ev := range events {
		records[i] = &types.EventRecord{
			GuildID:    uint64(ev.guildID),
			UserHash:   hashes[uint64(ev.userID)],
			Kind:       ev.kind.Key(),
			Index:      ev.index,
			Timestamp:  ev.event.Timestamp,
			IssuerHash: hashes[uint64(ev.event.Issuer.ID)],
			Reason:     ev.event.Reason,
		}
	}

	return records
}

// writeConfig saves the hashing parameters next to the exported files.
func (e *Exporter) writeConfig() error {
	jsonConfig := struct {
		*Config

		SaltFingerprint string `json:"saltFingerprint"`
		EngineVersion   string `json:"engineVersion"`
	}{
		Config:          e.config,
		SaltFingerprint: SaltFingerprint(e.config.Salt),
		EngineVersion:   EngineVersion,
	}

	configData, err := sonic.ConfigStd.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(e.outDir, "export_config.json"), configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	return nil
}

// export handles exporting data in the specified format.
func (e *Exporter) export(format Format, records []*types.EventRecord) error {
	var exporter interface {
		Export(records []*types.EventRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(records)
}
