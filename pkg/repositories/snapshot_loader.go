package repositories

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// SnapshotLoader materializes an immutable in-memory snapshot of all six
// tables for one analysis run. Table loads run concurrently; the snapshot
// itself handles sorting and indexing.
type SnapshotLoader interface {
	Load(ctx context.Context) (*models.Snapshot, error)
}

type snapshotLoader struct {
	waferTests  WaferTestRepository
	batches     BatchRepository
	equipment   EquipmentRepository
	steps       ProcessStepRepository
	events      EquipmentEventRepository
	maintenance MaintenanceRepository
	logger      *zap.Logger
}

// NewSnapshotLoader creates a new snapshot loader.
func NewSnapshotLoader(db *database.DB, logger *zap.Logger) SnapshotLoader {
	return &snapshotLoader{
		waferTests:  NewWaferTestRepository(db),
		batches:     NewBatchRepository(db),
		equipment:   NewEquipmentRepository(db),
		steps:       NewProcessStepRepository(db),
		events:      NewEquipmentEventRepository(db),
		maintenance: NewMaintenanceRepository(db),
		logger:      logger.Named("snapshot-loader"),
	}
}

func (l *snapshotLoader) Load(ctx context.Context) (*models.Snapshot, error) {
	var (
		tests       []models.WaferTest
		batches     []models.Batch
		equipment   []models.Equipment
		steps       []models.ProcessStep
		events      []models.EquipmentEvent
		maintenance []models.MaintenanceEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tests, err = l.waferTests.ListAll(gctx)
		return
	})
	g.Go(func() (err error) {
		batches, err = l.batches.ListAll(gctx)
		return
	})
	g.Go(func() (err error) {
		equipment, err = l.equipment.ListAll(gctx)
		return
	})
	g.Go(func() (err error) {
		steps, err = l.steps.ListAll(gctx)
		return
	})
	g.Go(func() (err error) {
		events, err = l.events.ListAll(gctx)
		return
	})
	g.Go(func() (err error) {
		maintenance, err = l.maintenance.ListAll(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	l.logger.Info("loaded snapshot",
		zap.Int("wafer_tests", len(tests)),
		zap.Int("batches", len(batches)),
		zap.Int("equipment", len(equipment)),
		zap.Int("process_steps", len(steps)),
		zap.Int("equipment_events", len(events)),
		zap.Int("maintenance_events", len(maintenance)))

	return models.NewSnapshot(tests, batches, equipment, steps, events, maintenance), nil
}
