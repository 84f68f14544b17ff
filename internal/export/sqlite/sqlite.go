package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robalyx/bailiff/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the database written by the exporter.
const FileName = "ledger.db"

// Exporter handles exporting ledger events to a SQLite database.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes the records to a fresh database, replacing any previous export.
func (e *Exporter) Export(records []*types.EventRecord) error {
	path := filepath.Join(e.outDir, FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing file %s: %w", FileName, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.ExecuteScript(conn, `
		CREATE TABLE events (
			guild_id INTEGER NOT NULL,
			user_hash TEXT NOT NULL,
			kind TEXT NOT NULL,
			idx INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			issuer_hash TEXT NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (guild_id, user_hash, kind, idx)
		);
		CREATE INDEX idx_events_user ON events (user_hash);
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Insert records in batches
	const batchSize = 1000
	for i := 0; i < len(records); i += batchSize {
		if err := insertBatch(conn, records[i:min(i+batchSize, len(records))]); err != nil {
			return err
		}
	}

	return nil
}

// insertBatch writes records inside one transaction.
func insertBatch(conn *sqlite.Conn, records []*types.EventRecord) (err error) {
	defer sqlitex.Save(conn)(&err)

	for _, record := range records {
		err = sqlitex.Execute(conn,
			"INSERT INTO events (guild_id, user_hash, kind, idx, timestamp, issuer_hash, reason) VALUES (?, ?, ?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{
					int64(record.GuildID), //nolint:gosec // snowflakes fit in 63 bits
					record.UserHash,
					record.Kind,
					record.Index,
					record.Timestamp.UTC().Format(time.RFC3339),
					record.IssuerHash,
					record.Reason,
				},
			})
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return nil
}
