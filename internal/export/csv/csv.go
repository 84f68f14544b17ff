package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robalyx/bailiff/internal/export/types"
)

// FileName is the file written by the exporter.
const FileName = "ledger.csv"

// Header is the first row of the file.
var Header = []string{"guild_id", "user_hash", "kind", "index", "timestamp", "issuer_hash", "reason"}

// Exporter handles exporting ledger events to a csv file.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes the records, replacing any previous export.
func (e *Exporter) Export(records []*types.EventRecord) error {
	file, err := os.Create(filepath.Join(e.outDir, FileName))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range records {
		if err := writer.Write([]string{
			strconv.FormatUint(record.GuildID, 10),
			record.UserHash,
			record.Kind,
			strconv.Itoa(record.Index),
			record.Timestamp.UTC().Format(time.RFC3339),
			record.IssuerHash,
			record.Reason,
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv file: %w", err)
	}

	return nil
}
