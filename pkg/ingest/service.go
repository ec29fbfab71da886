package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
	"github.com/luyangsi/semiconductors-data-platform/pkg/repositories"
)

// Source file names expected in the data directory.
const (
	equipmentFile   = "equipment_master.csv"
	processStepFile = "process_steps.csv"
	eventFile       = "equipment_logs.csv"
	batchFile       = "wafer_batches.csv"
	testFile        = "test_results.csv"
	maintenanceFile = "maintenance_events.csv"
)

const eventWatermarkSource = "equipment_logs"

// IngestService loads raw CSV exports. LoadSnapshot materializes them
// directly; Sync pushes them into Postgres, skipping sensor events already
// covered by the ingestion watermark.
type IngestService interface {
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
	Sync(ctx context.Context, db *database.DB) error
}

type ingestService struct {
	cfg    config.IngestConfig
	logger *zap.Logger
}

// NewIngestService creates a CSV ingest service.
func NewIngestService(cfg config.IngestConfig, logger *zap.Logger) IngestService {
	return &ingestService{cfg: cfg, logger: logger.Named("ingest")}
}

var _ IngestService = (*ingestService)(nil)

type rawData struct {
	tests       []models.WaferTest
	batches     []models.Batch
	equipment   []models.Equipment
	steps       []models.ProcessStep
	events      []models.EquipmentEvent
	maintenance []models.MaintenanceEvent
}

func (s *ingestService) readAll() (*rawData, error) {
	dir := s.cfg.DataDir
	raw := &rawData{}
	var err error

	if raw.tests, err = ReadWaferTests(filepath.Join(dir, testFile)); err != nil {
		return nil, fmt.Errorf("read test results: %w", err)
	}
	if raw.batches, err = ReadBatches(filepath.Join(dir, batchFile)); err != nil {
		return nil, fmt.Errorf("read batches: %w", err)
	}
	if raw.equipment, err = ReadEquipment(filepath.Join(dir, equipmentFile)); err != nil {
		return nil, fmt.Errorf("read equipment: %w", err)
	}
	if raw.steps, err = ReadProcessSteps(filepath.Join(dir, processStepFile)); err != nil {
		return nil, fmt.Errorf("read process steps: %w", err)
	}
	if raw.events, err = ReadEquipmentEvents(filepath.Join(dir, eventFile)); err != nil {
		return nil, fmt.Errorf("read equipment events: %w", err)
	}
	if raw.maintenance, err = ReadMaintenanceEvents(filepath.Join(dir, maintenanceFile)); err != nil {
		return nil, fmt.Errorf("read maintenance events: %w", err)
	}

	s.logger.Info("read raw data",
		zap.String("dir", dir),
		zap.Int("wafer_tests", len(raw.tests)),
		zap.Int("batches", len(raw.batches)),
		zap.Int("equipment", len(raw.equipment)),
		zap.Int("equipment_events", len(raw.events)),
		zap.Int("maintenance_events", len(raw.maintenance)))
	return raw, nil
}

func (s *ingestService) LoadSnapshot(_ context.Context) (*models.Snapshot, error) {
	raw, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return models.NewSnapshot(raw.tests, raw.batches, raw.equipment, raw.steps, raw.events, raw.maintenance), nil
}

func (s *ingestService) Sync(ctx context.Context, db *database.DB) error {
	raw, err := s.readAll()
	if err != nil {
		return err
	}

	if err := repositories.NewEquipmentRepository(db).Upsert(ctx, raw.equipment); err != nil {
		return err
	}
	if err := repositories.NewProcessStepRepository(db).Upsert(ctx, raw.steps); err != nil {
		return err
	}
	if err := repositories.NewBatchRepository(db).Upsert(ctx, raw.batches); err != nil {
		return err
	}
	if err := repositories.NewWaferTestRepository(db).Upsert(ctx, raw.tests); err != nil {
		return err
	}
	if err := repositories.NewMaintenanceRepository(db).Upsert(ctx, raw.maintenance); err != nil {
		return err
	}
	if err := s.syncEvents(ctx, db, raw.events); err != nil {
		return err
	}

	s.logger.Info("sync complete")
	return nil
}

// syncEvents pushes only sensor events newer than the stored watermark, then
// advances it to the latest ingestion timestamp seen.
func (s *ingestService) syncEvents(ctx context.Context, db *database.DB, events []models.EquipmentEvent) error {
	watermarks := repositories.NewWatermarkRepository(db)

	watermark, err := watermarks.Get(ctx, eventWatermarkSource)
	if errors.Is(err, apperrors.ErrNoWatermark) {
		watermark = time.Time{}
	} else if err != nil {
		return err
	}

	var fresh []models.EquipmentEvent
	latest := watermark
	for _, ev := range events {
		if !ev.IngestionTimestamp.After(watermark) {
			continue
		}
		fresh = append(fresh, ev)
		if ev.IngestionTimestamp.After(latest) {
			latest = ev.IngestionTimestamp
		}
	}

	s.logger.Info("syncing equipment events",
		zap.Time("watermark", watermark),
		zap.Int("total", len(events)),
		zap.Int("fresh", len(fresh)))

	if len(fresh) == 0 {
		return nil
	}
	if err := repositories.NewEquipmentEventRepository(db).Upsert(ctx, fresh); err != nil {
		return err
	}
	return watermarks.Set(ctx, eventWatermarkSource, latest)
}
