package services

import (
	"sort"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// LineageResolverService assembles root-cause traces: the ordered chain of
// process steps a wafer passed through, annotated with the equipment
// conditions observed during each step and the maintenance state the tool
// was in when the step started.
type LineageResolverService interface {
	// ResolveWafer returns the wafer's step chain ordered by step ordinal.
	// A wafer with no recorded steps yields an empty chain, not an error.
	ResolveWafer(snap *models.Snapshot, waferID string) (*models.WaferLineage, error)

	// ResolveBatch resolves every wafer in the batch and aggregates the
	// distinct ordered equipment route the batch used.
	ResolveBatch(snap *models.Snapshot, batchID string) (*models.BatchLineage, error)
}

type lineageResolverService struct {
	logger *zap.Logger
}

// NewLineageResolverService creates a new lineage resolver.
func NewLineageResolverService(logger *zap.Logger) LineageResolverService {
	return &lineageResolverService{
		logger: logger.Named("lineage-resolver"),
	}
}

var _ LineageResolverService = (*lineageResolverService)(nil)

func (s *lineageResolverService) ResolveWafer(snap *models.Snapshot, waferID string) (*models.WaferLineage, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	tests := snap.TestsByWafer(waferID)
	lineage := &models.WaferLineage{
		WaferID: waferID,
		Steps:   make([]models.LineageStep, 0, len(tests)),
	}

	for _, t := range tests {
		lineage.BatchID = t.BatchID
		lineage.Steps = append(lineage.Steps, s.annotateStep(snap, t))
	}

	// TestsByWafer is ordered by step ordinal already; keep the guarantee
	// local so callers need not know the index contract.
	sort.SliceStable(lineage.Steps, func(i, j int) bool {
		return lineage.Steps[i].StepID < lineage.Steps[j].StepID
	})

	return lineage, nil
}

// annotateStep attaches the equipment-condition summary for the step's
// [start, end] interval and the most recent preceding maintenance event.
func (s *lineageResolverService) annotateStep(snap *models.Snapshot, t *models.WaferTest) models.LineageStep {
	step := models.LineageStep{
		StepID:      t.ProcessStepID,
		StepName:    t.ProcessStepName,
		BatchID:     t.BatchID,
		EquipmentID: t.EquipmentID,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		DurationMin: t.EndTime.Sub(t.StartTime).Minutes(),
		PassFail:    t.PassFail,
	}
	if step.StepName == "" {
		if ps := snap.StepByID(t.ProcessStepID); ps != nil {
			step.StepName = ps.Name
		}
	}

	events := snap.EventsBetween(t.EquipmentID, t.StartTime, t.EndTime)
	if len(events) > 0 {
		var tempSum, pressureSum float64
		for _, ev := range events {
			tempSum += ev.TemperatureC
			pressureSum += ev.PressureTorr
			if ev.Status == models.StatusAlarm {
				step.AlarmCount++
			}
		}
		avgTemp := tempSum / float64(len(events))
		avgPressure := pressureSum / float64(len(events))
		step.AvgTemperatureC = &avgTemp
		step.AvgPressureTorr = &avgPressure
	}
	// No events in the interval: averages stay nil, AlarmCount stays 0.

	step.LastMaintenance = snap.MostRecentMaintenanceBefore(t.EquipmentID, t.StartTime)

	return step
}

func (s *lineageResolverService) ResolveBatch(snap *models.Snapshot, batchID string) (*models.BatchLineage, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	tests := snap.TestsByBatch(batchID)

	waferIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range tests {
		if _, ok := seen[t.WaferID]; !ok {
			seen[t.WaferID] = struct{}{}
			waferIDs = append(waferIDs, t.WaferID)
		}
	}
	sort.Strings(waferIDs)

	lineage := &models.BatchLineage{
		BatchID: batchID,
		Wafers:  make([]models.WaferLineage, 0, len(waferIDs)),
	}

	for _, waferID := range waferIDs {
		wl, err := s.ResolveWafer(snap, waferID)
		if err != nil {
			return nil, err
		}
		lineage.Wafers = append(lineage.Wafers, *wl)
	}

	lineage.EquipmentSequence = batchEquipmentSequence(lineage.Wafers)

	return lineage, nil
}

// batchEquipmentSequence derives the distinct ordered equipment route for a
// batch: for each step ordinal seen in the batch, the equipment that ran it.
// Wafers are scanned in sorted order, so when a batch was (unusually) split
// across tools at one step, the first wafer's tool wins deterministically.
func batchEquipmentSequence(wafers []models.WaferLineage) []string {
	byOrdinal := make(map[int]string)
	ordinals := make([]int, 0)
	for _, w := range wafers {
		for _, st := range w.Steps {
			if _, ok := byOrdinal[st.StepID]; !ok {
				byOrdinal[st.StepID] = st.EquipmentID
				ordinals = append(ordinals, st.StepID)
			}
		}
	}
	sort.Ints(ordinals)

	seq := make([]string, 0, len(ordinals))
	for _, o := range ordinals {
		seq = append(seq, byOrdinal[o])
	}
	return seq
}
