// Package main provides the Chronicler meeting ingestion CLI.
//
// The ingester fetches meeting-summary documents from one or more archive
// feeds, validates and normalizes each record, and materializes the result
// into the six entity tables with full run accounting. It is idempotent:
// re-running the same feeds converges to the same rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/chronicler-io/chronicler/internal/config"
	"github.com/chronicler-io/chronicler/internal/ingestion"
	"github.com/chronicler-io/chronicler/internal/sources"
	"github.com/chronicler-io/chronicler/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "ingester"
)

// sourceList collects repeatable --source flags.
type sourceList []string

func (s *sourceList) String() string {
	return strings.Join(*s, ",")
}

func (s *sourceList) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("source URL cannot be empty")
	}

	*s = append(*s, value)

	return nil
}

func main() {
	var sourceFlags sourceList

	flag.Var(&sourceFlags, "source", "source URL to ingest (repeatable; overrides the sources file)")
	sourcesFile := flag.String("sources-file", "", "path to a YAML sources file (default: $CHRONICLER_CONFIG_PATH or .chronicler.yaml)")
	dryRun := flag.Bool("dry-run", false, "validate and derive identity without writing to the database")
	skipValidation := flag.Bool("skip-validation", false, "bypass the structure gate (record gate still applies)")
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := newLogger()

	logger.Info("Starting ingester",
		slog.String("service", name),
		slog.String("version", version),
		slog.Bool("dry_run", *dryRun),
		slog.Bool("skip_validation", *skipValidation),
	)

	sourceURLs, err := resolveSources(sourceFlags, *sourcesFile)
	if err != nil {
		logger.Error("Failed to resolve sources", slog.String("error", err.Error()))
		os.Exit(1)
	}

	coordinator, cleanup, err := buildCoordinator(logger, *dryRun, *skipValidation)
	if err != nil {
		logger.Error("Failed to initialize pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer cleanup()

	// SIGINT/SIGTERM cancel the context; the coordinator rolls back the
	// in-flight transaction and closes the current run as partial.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := coordinator.Ingest(ctx, sourceURLs)
	if err != nil {
		logger.Error("Ingestion aborted", slog.String("error", err.Error()))
		cleanup()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	// Source-level failures are isolated, not fatal; report them in the exit
	// code so schedulers can alert.
	failed := 0

	for _, result := range summary.Sources {
		if result.Status == ingestion.RunStatusFailed {
			failed++
		}
	}

	if failed > 0 {
		logger.Warn("Ingestion finished with failed sources",
			slog.Int("failed_sources", failed),
			slog.Int("total_sources", len(summary.Sources)),
		)
		cleanup()
		os.Exit(1)
	}

	logger.Info("Ingestion finished", slog.Int("sources", len(summary.Sources)))
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger() *slog.Logger {
	level := config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo)

	var handler slog.Handler
	if config.GetEnvStr("LOG_FORMAT", "json") == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// resolveSources picks the source list: explicit --source flags win, then the
// sources file, then built-in defaults.
func resolveSources(flags sourceList, sourcesFile string) ([]string, error) {
	if len(flags) > 0 {
		return flags, nil
	}

	var (
		cfg *sources.Config
		err error
	)

	if sourcesFile != "" {
		cfg, err = sources.LoadConfig(sourcesFile)
	} else {
		cfg, err = sources.LoadConfigFromEnv()
	}

	if err != nil {
		return nil, err
	}

	return cfg.Sources, nil
}

// buildCoordinator wires the pipeline. In dry-run mode no database connection
// is opened; otherwise a missing DATABASE_URL is fatal, because ingestion
// without persistence is meaningless.
func buildCoordinator(
	logger *slog.Logger,
	dryRun, skipValidation bool,
) (*ingestion.Coordinator, func(), error) {
	fetcher := ingestion.NewFetcher(ingestion.DefaultFetchTimeout)
	cleanup := func() {}

	opts := []ingestion.CoordinatorOption{
		ingestion.WithProgress(func(sourceURL string, processed, total int) {
			logger.Info("Ingestion progress",
				slog.String("source_url", sourceURL),
				slog.Int("processed", processed),
				slog.Int("total", total),
			)
		}),
	}

	if dryRun {
		opts = append(opts, ingestion.WithDryRun())
	}

	if skipValidation {
		opts = append(opts, ingestion.WithSkipValidation())
	}

	var (
		store    ingestion.Store
		runStore ingestion.RunStore
	)

	if !dryRun {
		storageConfig := storage.LoadIngestConfig()
		if err := storageConfig.Validate(); err != nil {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for ingestion (use --dry-run to validate without a database): %w", err)
		}

		dbConn, err := storage.NewConnection(storageConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		meetingStore, err := storage.NewMeetingStore(dbConn)
		if err != nil {
			_ = dbConn.Close()

			return nil, nil, fmt.Errorf("failed to create meeting store: %w", err)
		}

		logger.Info("Meeting store initialized",
			slog.String("database_url", storageConfig.MaskDatabaseURL()),
			slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
			slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		)

		store = meetingStore
		runStore = meetingStore
		cleanup = func() { _ = meetingStore.Close() }
	}

	// Optional run-event publishing for downstream consumers
	if brokers := config.GetEnvStr("INGEST_KAFKA_BROKERS", ""); brokers != "" {
		topic := config.GetEnvStr("INGEST_KAFKA_TOPIC", "chronicler.ingestion.runs")
		publisher := ingestion.NewKafkaRunPublisher(config.ParseCommaSeparatedList(brokers), topic)

		logger.Info("Run event publishing enabled",
			slog.String("brokers", brokers),
			slog.String("topic", topic),
		)

		opts = append(opts, ingestion.WithPublisher(publisher))

		storeCleanup := cleanup
		cleanup = func() {
			_ = publisher.Close()

			storeCleanup()
		}
	}

	writer := ingestion.NewWriter(store, logger)
	coordinator := ingestion.NewCoordinator(fetcher, writer, store, runStore, logger, opts...)

	return coordinator, cleanup, nil
}
