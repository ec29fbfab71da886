package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// AnalysisService runs the full analysis pass over one snapshot and
// assembles the report. Table builders are independent and run concurrently;
// the result is identical regardless of parallelism because every builder is
// a pure function of the snapshot with a deterministic sort.
type AnalysisService interface {
	Run(ctx context.Context, snap *models.Snapshot) (*models.Report, error)
}

type analysisService struct {
	cfg       config.AnalysisConfig
	assembler ReportAssemblerService
	lineage   LineageResolverService
	logger    *zap.Logger
}

// NewAnalysisService creates the analysis orchestrator.
func NewAnalysisService(
	cfg config.AnalysisConfig,
	assembler ReportAssemblerService,
	lineage LineageResolverService,
	logger *zap.Logger,
) AnalysisService {
	return &analysisService{
		cfg:       cfg,
		assembler: assembler,
		lineage:   lineage,
		logger:    logger.Named("analysis"),
	}
}

var _ AnalysisService = (*analysisService)(nil)

func (s *analysisService) Run(ctx context.Context, snap *models.Snapshot) (*models.Report, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	started := time.Now()
	report := &models.Report{
		RunID:       uuid.New(),
		GeneratedAt: started.UTC(),
		ObservedEnd: snap.ObservedEnd(),
	}

	s.logger.Info("starting analysis run",
		zap.String("run_id", report.RunID.String()),
		zap.Int("wafer_tests", len(snap.WaferTests)),
		zap.Int("batches", len(snap.Batches)),
		zap.Int("equipment", len(snap.Equipment)),
		zap.Int("parallelism", s.cfg.Parallelism))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	run := func(name string, build func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := build(); err != nil {
				return fmt.Errorf("build %s table: %w", name, err)
			}
			return nil
		})
	}

	run("equipment_yield", func() (err error) {
		report.EquipmentYield, err = s.assembler.EquipmentYield(snap)
		return
	})
	run("yield_trend", func() (err error) {
		report.YieldTrend, err = s.assembler.YieldTrend(snap)
		return
	})
	run("step_failures", func() (err error) {
		report.StepFailures, err = s.assembler.StepFailures(snap)
		return
	})
	run("batch_yield", func() (err error) {
		report.BatchYield, err = s.assembler.BatchYield(snap)
		return
	})
	run("defect_pareto", func() (err error) {
		report.DefectPareto, err = s.assembler.DefectPareto(snap)
		return
	})
	run("first_pass_yield", func() (err error) {
		report.FirstPassYield, err = s.assembler.FirstPassYield(snap)
		return
	})
	run("utilization_yield", func() (err error) {
		report.UtilizationYield, err = s.assembler.UtilizationYield(snap)
		return
	})
	run("uptime", func() (err error) {
		report.Uptime, err = s.assembler.Uptime(snap)
		return
	})
	run("mtbf", func() (err error) {
		report.MTBF, err = s.assembler.MTBF(snap)
		return
	})
	run("alarm_frequency", func() (err error) {
		report.AlarmFrequency, err = s.assembler.AlarmFrequency(snap)
		return
	})
	run("degradation", func() (err error) {
		report.Degradation, err = s.assembler.Degradation(snap)
		return
	})
	run("maintenance_effect", func() (err error) {
		report.MaintenanceEffect, err = s.assembler.MaintenanceEffect(snap)
		return
	})
	run("criticality", func() (err error) {
		report.Criticality, err = s.assembler.Criticality(snap)
		return
	})
	run("batch_pair_correlation", func() (err error) {
		report.BatchPairCorrelation, err = s.assembler.BatchPairCorrelation(snap)
		return
	})
	run("sequence_failures", func() (err error) {
		report.SequenceFailures, err = s.assembler.SequenceFailures(snap)
		return
	})
	run("contamination", func() (err error) {
		report.Contamination, err = s.assembler.Contamination(snap)
		return
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	lineage, err := s.resolveWorstBatchLineage(snap, report.BatchYield)
	if err != nil {
		return nil, fmt.Errorf("resolve lineage: %w", err)
	}
	report.Lineage = lineage

	s.logger.Info("analysis run complete",
		zap.String("run_id", report.RunID.String()),
		zap.Duration("elapsed", time.Since(started)))
	return report, nil
}

// resolveWorstBatchLineage attaches full genealogy for the lowest-yield
// batches, up to LineageBatchLimit. BatchYield is already sorted worst
// first, so the head of that table picks the batches.
func (s *analysisService) resolveWorstBatchLineage(snap *models.Snapshot, batchYield []models.BatchYieldRow) ([]models.BatchLineage, error) {
	limit := s.cfg.LineageBatchLimit
	if limit > len(batchYield) {
		limit = len(batchYield)
	}

	lineage := make([]models.BatchLineage, 0, limit)
	for _, row := range batchYield[:limit] {
		bl, err := s.lineage.ResolveBatch(snap, row.BatchID)
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", row.BatchID, err)
		}
		lineage = append(lineage, *bl)
	}

	sort.Slice(lineage, func(i, j int) bool { return lineage[i].BatchID < lineage[j].BatchID })
	return lineage, nil
}
