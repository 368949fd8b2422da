package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/flagkeeper/internal/core/config"
	"github.com/solatis/flagkeeper/internal/core/db"
	"github.com/solatis/flagkeeper/internal/i18n"
	"github.com/solatis/flagkeeper/internal/log"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/telemetry"
)

// Version is the release of the flagkeeper binary.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "flagkeeper",
	Short:         "Flagkeeper feature toggle targeting editor",
	Long:          `Flagkeeper edits, validates, and publishes feature toggle targeting configurations.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, logfmt, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	return cfg, nil
}

// newLogger builds the process logger from the persistent flags.
func newLogger() (*slog.Logger, error) {
	logger, err := log.New(os.Stderr, logLevel, logFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// openDatabase opens the configured database and loads its named queries.
// The schema must be migrated.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, *db.Queries, error) {
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'flagkeeper migrate up' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// newEngine builds a targeting engine with the configured language and
// cosmetic variation fields.
func newEngine(cfg *config.Config, logger *slog.Logger, opts ...targeting.Option) (*targeting.Engine, error) {
	localizer, err := i18n.New(cfg.Editor.Language)
	if err != nil {
		return nil, err
	}
	if localizer.Fallback() {
		logger.Warn("no catalog for editor language, using English",
			"language", cfg.Editor.Language, "supported", strings.Join(i18n.Supported(), ", "))
	}
	base := []targeting.Option{
		targeting.WithLocalizer(localizer),
		targeting.WithLogger(logger),
		targeting.WithTracer(telemetry.Tracer("github.com/solatis/flagkeeper/internal/targeting")),
		targeting.WithCosmeticVariationFields(cfg.Editor.CosmeticVariationFields...),
	}
	return targeting.NewEngine(append(base, opts...)...), nil
}
