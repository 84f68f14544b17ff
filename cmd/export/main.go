package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robalyx/bailiff/internal/export"
	"github.com/robalyx/bailiff/internal/setup"
	"github.com/robalyx/bailiff/internal/setup/telemetry"
	"github.com/robalyx/bailiff/internal/userlog"
	"github.com/urfave/cli/v3"
)

// ExportLogDir specifies where export log files are stored.
const ExportLogDir = "logs/export_logs"

// Default hashing costs per algorithm.
const (
	defaultSHA256Iterations   = 1
	defaultArgon2idIterations = 16
	defaultArgon2idMemory     = 16
)

var errEmptySalt = errors.New("salt must not be empty")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	return newApp(runExport).Run(context.Background(), os.Args)
}

// newApp builds the export command around the given action.
func newApp(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every guild's user log to SQLite and CSV with hashed user ids",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "exports",
				Usage:   "Base output directory for export files",
			},
			&cli.StringFlag{
				Name:    "export-version",
				Aliases: []string{"v"},
				Value:   "1",
				Usage:   "Version label written to export_config.json",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Value:   "Bailiff ledger export",
				Usage:   "Description written to export_config.json",
			},
			&cli.StringFlag{
				Name:    "hash-type",
				Aliases: []string{"t"},
				Value:   string(export.HashTypeSHA256),
				Usage:   "Hash algorithm to use (argon2id or sha256)",
			},
			&cli.UintFlag{
				Name:    "iterations",
				Aliases: []string{"i"},
				Usage:   "Number of hash iterations (default depends on the hash type)",
			},
			&cli.UintFlag{
				Name:    "memory",
				Aliases: []string{"m"},
				Usage:   "Memory to use for Argon2id in MB",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Value:   1,
				Usage:   "Number of concurrent hash operations",
			},
		},
		Action: action,
	}
}

func runExport(ctx context.Context, c *cli.Command) error {
	config, err := exportConfig(c)
	if err != nil {
		return err
	}

	app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, ExportLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	outDir := filepath.Join(c.String("output"), time.Now().UTC().Format("2006-01-02_150405"))

	ledger := userlog.NewStore(app.Documents, app.Locker, app.Logger)
	summary, err := export.New(app.Documents, ledger, outDir, config, app.Logger).ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}

	log.Printf("Exported %d events of %d users across %d guilds to %s",
		summary.Records, summary.Users, summary.Guilds, outDir)
	return nil
}

// exportConfig builds the hashing parameters from flags. The salt comes from
// BAILIFF_EXPORT_SALT or a prompt, never from a flag.
func exportConfig(c *cli.Command) (*export.Config, error) {
	config := &export.Config{
		ExportVersion: c.String("export-version"),
		Description:   c.String("description"),
		HashType:      c.String("hash-type"),
		Iterations:    uint32(c.Uint("iterations")), //nolint:gosec // -
		Memory:        uint32(c.Uint("memory")),     //nolint:gosec // -
		Concurrency:   int(c.Int("concurrency")),
	}

	switch export.HashType(config.HashType) {
	case export.HashTypeArgon2id:
		if config.Iterations == 0 {
			config.Iterations = defaultArgon2idIterations
		}
		if config.Memory == 0 {
			config.Memory = defaultArgon2idMemory
		}
	case export.HashTypeSHA256:
		if config.Iterations == 0 {
			config.Iterations = defaultSHA256Iterations
		}
		config.Memory = 0
	default:
		return nil, fmt.Errorf("%w: %s", export.ErrInvalidHashType, config.HashType)
	}

	salt := os.Getenv("BAILIFF_EXPORT_SALT")
	if salt == "" {
		fmt.Print("Enter salt for hashing IDs: ")
		input, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read salt: %w", err)
		}
		salt = strings.TrimSpace(input)
	}
	if salt == "" {
		return nil, errEmptySalt
	}
	config.Salt = salt

	return config, nil
}
