package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

func newAnalysis(cfg config.AnalysisConfig) AnalysisService {
	logger := zap.NewNop()
	metrics := NewWindowedMetricsService(logger)
	classify := NewClassificationService(cfg.Thresholds, logger)
	return NewAnalysisService(cfg,
		NewReportAssemblerService(cfg, metrics, classify, logger),
		NewLineageResolverService(logger),
		logger)
}

// fabSnapshot builds a small but fully populated dataset: three tools, two
// weeks of batches on each, sensor events, and maintenance.
func fabSnapshot() *models.Snapshot {
	var (
		tests       []models.WaferTest
		batches     []models.Batch
		events      []models.EquipmentEvent
		maintenance []models.MaintenanceEvent
	)

	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH", Status: models.EquipmentActive},
		{EquipmentID: "LIT001", EquipmentType: "LITHO", Status: models.EquipmentActive},
		{EquipmentID: "TST001", EquipmentType: "TEST", Status: models.EquipmentActive},
	}
	steps := []models.ProcessStep{
		{StepID: 1, Name: "Photolithography", DurationMin: 45},
		{StepID: 2, Name: "Plasma Etch", DurationMin: 30},
		{StepID: 3, Name: "Electrical Test", DurationMin: 15},
	}
	route := []struct {
		stepID int
		eqID   string
	}{
		{1, "LIT001"},
		{2, "ETC001"},
		{3, "TST001"},
	}

	for day := 0; day < 14; day++ {
		batchID := fmt.Sprintf("B%03d", day)
		batches = append(batches, models.Batch{
			BatchID:   batchID,
			LotNumber: fmt.Sprintf("LOT_2024_%d", day),
			Recipe:    "CMOS_28nm_v3",
			StartTime: dayAt(day, 6),
			EndTime:   dayAt(day, 12),
		})
		for w := 0; w < 5; w++ {
			waferID := fmt.Sprintf("%s_W%02d", batchID, w)
			for i, hop := range route {
				result := models.Pass
				// A repeatable failure pattern: one wafer per batch fails
				// the etch step, and every third batch loses another wafer
				// at final test.
				if w == 0 && hop.stepID == 2 {
					result = models.Fail
				}
				if w == 1 && hop.stepID == 3 && day%3 == 0 {
					result = models.Fail
				}
				tests = append(tests, waferTest(waferID, batchID, hop.stepID, hop.eqID, dayAt(day, 7+i), result))
				if result == models.Fail {
					break
				}
			}
		}
	}

	for day := 0; day < 14; day++ {
		for _, eq := range equipment {
			status := models.StatusRunning
			if day%5 == 0 && eq.EquipmentID == "ETC001" {
				status = models.StatusAlarm
			}
			if day%7 == 3 && eq.EquipmentID == "ETC001" {
				status = models.StatusDown
			}
			temp := 250.0 + float64(day)
			events = append(events, models.EquipmentEvent{
				EquipmentID:        eq.EquipmentID,
				EventTimestamp:     dayAt(day, 13),
				Status:             status,
				TemperatureC:       temp,
				PressureTorr:       0.1,
				IngestionTimestamp: dayAt(day, 13).Add(time.Minute),
			})
		}
	}

	maintenance = append(maintenance, models.MaintenanceEvent{
		EventID:        "PM_ETC001_20240305",
		EquipmentID:    "ETC001",
		EventType:      models.MaintenancePreventive,
		EventTimestamp: dayAt(4, 2),
		DurationHours:  4,
		TechnicianID:   "TECH01",
	})

	return models.NewSnapshot(tests, batches, equipment, steps, events, maintenance)
}

func TestAnalysisRun(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.MinBatchPairs = 5
	svc := newAnalysis(cfg)

	report, err := svc.Run(context.Background(), fabSnapshot())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Equal(t, dayAt(13, 13), report.ObservedEnd)

	assert.NotEmpty(t, report.EquipmentYield)
	assert.NotEmpty(t, report.YieldTrend)
	assert.NotEmpty(t, report.StepFailures)
	assert.Len(t, report.BatchYield, 14)
	assert.NotEmpty(t, report.DefectPareto)
	assert.Len(t, report.FirstPassYield, 14)
	assert.NotEmpty(t, report.Uptime)
	assert.NotEmpty(t, report.Criticality)
	assert.NotEmpty(t, report.Lineage)
	assert.LessOrEqual(t, len(report.Lineage), cfg.LineageBatchLimit)

	// Lineage targets the lowest-yield batches and stays in ID order.
	for i := 1; i < len(report.Lineage); i++ {
		assert.Less(t, report.Lineage[i-1].BatchID, report.Lineage[i].BatchID)
	}
}

func TestAnalysisRunDeterministic(t *testing.T) {
	snap := fabSnapshot()

	reports := make([]*models.Report, 2)
	for i, parallelism := range []int{1, 8} {
		cfg := testAnalysisConfig()
		cfg.MinBatchPairs = 5
		cfg.Parallelism = parallelism

		report, err := newAnalysis(cfg).Run(context.Background(), snap)
		require.NoError(t, err)
		reports[i] = report
	}

	// Strip the per-run fields; everything else must be identical.
	for _, r := range reports {
		r.RunID = uuid.Nil
		r.GeneratedAt = time.Time{}
	}
	assert.Equal(t, reports[0], reports[1])
}

func TestAnalysisRunNilSnapshot(t *testing.T) {
	svc := newAnalysis(testAnalysisConfig())
	_, err := svc.Run(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNilSnapshot)
}

func TestAnalysisRunCancelled(t *testing.T) {
	svc := newAnalysis(testAnalysisConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, fabSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
}
