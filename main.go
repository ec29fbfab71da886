package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/dq"
	"github.com/luyangsi/semiconductors-data-platform/pkg/ingest"
	"github.com/luyangsi/semiconductors-data-platform/pkg/logging"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
	"github.com/luyangsi/semiconductors-data-platform/pkg/render"
	"github.com/luyangsi/semiconductors-data-platform/pkg/repositories"
	"github.com/luyangsi/semiconductors-data-platform/pkg/services"
	"github.com/luyangsi/semiconductors-data-platform/pkg/simulate"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Pipeline failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting analysis pipeline",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Bool("simulator", cfg.Simulator.Enabled),
		zap.Bool("database", cfg.Database.Enabled()))

	if cfg.Simulator.Enabled {
		if err := runSimulator(cfg, logger); err != nil {
			return err
		}
	}

	snap, err := buildSnapshot(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := runDataQuality(snap, cfg, logger); err != nil {
		return err
	}

	return runAnalysis(ctx, snap, cfg, logger)
}

func runSimulator(cfg *config.Config, logger *zap.Logger) error {
	start, err := time.Parse("2006-01-02", cfg.Simulator.StartDate)
	if err != nil {
		return fmt.Errorf("invalid simulator start date: %w", err)
	}

	sim := simulate.NewSimulatorService(cfg.Simulator.Seed, logger)
	ds, err := sim.Generate(start.UTC(), cfg.Simulator.Days)
	if err != nil {
		return fmt.Errorf("generate dataset: %w", err)
	}
	return simulate.WriteCSV(ds, cfg.Simulator.OutputDir, logger)
}

// buildSnapshot materializes the analysis input, either straight from the
// CSV drop directory or through Postgres when a database is configured.
func buildSnapshot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*models.Snapshot, error) {
	ingester := ingest.NewIngestService(cfg.Ingest, logger)

	if !cfg.Database.Enabled() {
		return ingester.LoadSnapshot(ctx)
	}

	connStr := cfg.Database.ConnectionString()
	logger.Info("Connecting to database",
		zap.String("url", logging.SanitizeConnectionString(connStr)))

	if err := database.RunMigrations(connStr, migrationsPath, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := ingester.Sync(ctx, db); err != nil {
		return nil, fmt.Errorf("sync raw data: %w", err)
	}
	return repositories.NewSnapshotLoader(db, logger).Load(ctx)
}

func runDataQuality(snap *models.Snapshot, cfg *config.Config, logger *zap.Logger) error {
	rules, err := dq.LoadRules(cfg.DQ.RulesPath)
	if err != nil {
		return fmt.Errorf("load data quality rules: %w", err)
	}

	run, err := dq.NewEngine(logger).Evaluate(snap, rules)
	if err != nil {
		return fmt.Errorf("evaluate data quality rules: %w", err)
	}

	if err := writeReport(cfg.Report.DQReport, render.DQReport(run)); err != nil {
		return err
	}
	logger.Info("Data quality report written",
		zap.String("path", cfg.Report.DQReport),
		zap.Int("passed", run.Passed),
		zap.Int("warnings", run.Warnings),
		zap.Int("failures", run.Failures))

	if run.Failed() && cfg.DQ.FailOnCritical {
		return fmt.Errorf("data quality gate failed: %d rule(s) failed", run.Failures)
	}
	return nil
}

func runAnalysis(ctx context.Context, snap *models.Snapshot, cfg *config.Config, logger *zap.Logger) error {
	metrics := services.NewWindowedMetricsService(logger)
	classifier := services.NewClassificationService(cfg.Analysis.Thresholds, logger)
	lineage := services.NewLineageResolverService(logger)
	assembler := services.NewReportAssemblerService(cfg.Analysis, metrics, classifier, logger)
	analysis := services.NewAnalysisService(cfg.Analysis, assembler, lineage, logger)

	report, err := analysis.Run(ctx, snap)
	if err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}

	if err := writeReport(cfg.Report.OutputPath, render.Report(report)); err != nil {
		return err
	}
	logger.Info("Analysis report written",
		zap.String("path", cfg.Report.OutputPath),
		zap.String("run_id", report.RunID.String()))
	return nil
}

func writeReport(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
