package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

var assemblerBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		YieldTrendWindowDays:   7,
		SensorTrendWindowWeeks: 4,
		AlarmWindowDays:        30,
		SequenceWindowDays:     30,
		MaintenanceWindowDays:  7,
		MinEquipmentWafers:     2,
		MinAlarms:              2,
		MinBatchPairs:          10,
		MinCorrelationDays:     3,
		SequenceNoiseFloor:     2,
		Parallelism:            4,
		LineageBatchLimit:      5,
		Thresholds:             defaultThresholds(),
	}
}

func newTestAssembler(cfg config.AnalysisConfig) ReportAssemblerService {
	logger := zap.NewNop()
	return NewReportAssemblerService(cfg,
		NewWindowedMetricsService(logger),
		NewClassificationService(cfg.Thresholds, logger),
		logger)
}

func dayAt(day, hour int) time.Time {
	return assemblerBase.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

// waferTest builds one record with sensible defaults for fields the table
// under test does not read.
func waferTest(waferID, batchID string, stepID int, equipmentID string, at time.Time, result models.PassFail) models.WaferTest {
	bin := "BIN1"
	if result == models.Fail {
		bin = "FAIL"
	}
	return models.WaferTest{
		WaferID: waferID, BatchID: batchID,
		ProcessStepID: stepID, ProcessStepName: fmt.Sprintf("Step %d", stepID),
		EquipmentID: equipmentID,
		StartTime:   at, EndTime: at.Add(30 * time.Minute),
		PassFail: result, BinCode: bin, TestTimestamp: at.Add(30 * time.Minute),
	}
}

func snapshotOf(tests []models.WaferTest, batches []models.Batch, equipment []models.Equipment, events []models.EquipmentEvent, maintenance []models.MaintenanceEvent) *models.Snapshot {
	return models.NewSnapshot(tests, batches, equipment, nil, events, maintenance)
}

func TestEquipmentYield(t *testing.T) {
	cfg := testAnalysisConfig()
	svc := newTestAssembler(cfg)

	tests := []models.WaferTest{
		// W01 crosses ETC001 twice; counts stay record-level while the gate
		// counts distinct wafers.
		waferTest("W01", "B1", 1, "ETC001", dayAt(0, 8), models.Pass),
		waferTest("W01", "B1", 2, "ETC001", dayAt(0, 10), models.Pass),
		waferTest("W02", "B1", 1, "ETC001", dayAt(0, 9), models.Fail),
		waferTest("W03", "B1", 1, "ETC002", dayAt(0, 8), models.Pass),
		waferTest("W04", "B1", 1, "ETC002", dayAt(0, 9), models.Pass),
		// Only one wafer: below the gate, dropped.
		waferTest("W05", "B1", 1, "ETC003", dayAt(0, 8), models.Fail),
	}
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "ETC002", EquipmentType: "ETCH"},
		{EquipmentID: "ETC003", EquipmentType: "ETCH"},
	}

	rows, err := svc.EquipmentYield(snapshotOf(tests, nil, equipment, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	// Worst first.
	assert.Equal(t, "ETC001", rows[0].EquipmentID)
	assert.InDelta(t, 100.0*2/3, rows[0].YieldPct, 1e-9)
	assert.Equal(t, 2, rows[0].WaferCount)
	assert.Equal(t, 3, rows[0].TestCount)
	assert.Equal(t, 2, rows[0].PassCount)
	assert.LessOrEqual(t, rows[0].PassCount, rows[0].TestCount)
	assert.Equal(t, "ETC002", rows[1].EquipmentID)
	assert.InDelta(t, 100, rows[1].YieldPct, 1e-9)
}

func TestEquipmentYieldNilSnapshot(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())
	_, err := svc.EquipmentYield(nil)
	assert.ErrorIs(t, err, apperrors.ErrNilSnapshot)
}

func TestDefectPareto(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	var tests []models.WaferTest
	addFails := func(bin string, n int) {
		for i := 0; i < n; i++ {
			wt := waferTest(fmt.Sprintf("W_%s_%d", bin, i), "B1", 1, "ETC001", dayAt(0, 8), models.Fail)
			wt.BinCode = bin
			tests = append(tests, wt)
		}
	}
	addFails("BINX", 6)
	addFails("FAIL", 3)
	addFails("BIN3", 1)
	// Passing records never count as defects.
	tests = append(tests, waferTest("W_OK", "B1", 1, "ETC001", dayAt(0, 8), models.Pass))

	rows, err := svc.DefectPareto(snapshotOf(tests, nil, nil, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "BINX", rows[0].BinCode)
	assert.Equal(t, 6, rows[0].DefectCount)
	assert.InDelta(t, 60, rows[0].CumulativePct, 1e-9)
	assert.Equal(t, models.ParetoHigh, rows[0].Priority)

	assert.Equal(t, "FAIL", rows[1].BinCode)
	assert.InDelta(t, 90, rows[1].CumulativePct, 1e-9)
	assert.Equal(t, models.ParetoMedium, rows[1].Priority)

	assert.Equal(t, "BIN3", rows[2].BinCode)
	assert.InDelta(t, 100, rows[2].CumulativePct, 1e-9)
	assert.Equal(t, models.ParetoLow, rows[2].Priority)
}

func TestDefectParetoTieOrder(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	var tests []models.WaferTest
	for i, bin := range []string{"BIN3", "BINX"} {
		for j := 0; j < 2; j++ {
			wt := waferTest(fmt.Sprintf("W%d_%d", i, j), "B1", 1, "ETC001", dayAt(0, 8), models.Fail)
			wt.BinCode = bin
			tests = append(tests, wt)
		}
	}

	rows, err := svc.DefectPareto(snapshotOf(tests, nil, nil, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "BIN3", rows[0].BinCode, "equal counts break ties by bin code")
	assert.Equal(t, "BINX", rows[1].BinCode)
}

func TestBatchYield(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	tests := []models.WaferTest{
		// B1: wafer W01 clean, W02 fails at steps 2 and 3, W03 fails at step 2.
		waferTest("W01", "B1", 1, "ETC001", dayAt(0, 8), models.Pass),
		waferTest("W01", "B1", 2, "ETC001", dayAt(0, 9), models.Pass),
		waferTest("W02", "B1", 2, "ETC001", dayAt(0, 9), models.Fail),
		waferTest("W02", "B1", 3, "ETC001", dayAt(0, 10), models.Fail),
		waferTest("W03", "B1", 2, "ETC001", dayAt(0, 9), models.Fail),
		// B2: fully clean.
		waferTest("W11", "B2", 1, "ETC001", dayAt(1, 8), models.Pass),
	}
	batches := []models.Batch{
		{BatchID: "B1", LotNumber: "LOT_1", Recipe: "CMOS_28nm_v3", StartTime: dayAt(0, 7)},
		{BatchID: "B2", LotNumber: "LOT_2", Recipe: "CMOS_28nm_v3", StartTime: dayAt(1, 7)},
	}

	rows, err := svc.BatchYield(snapshotOf(tests, batches, nil, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)

	worst := rows[0]
	assert.Equal(t, "B1", worst.BatchID)
	assert.Equal(t, 3, worst.WaferCount)
	assert.Equal(t, 1, worst.PassCount)
	assert.InDelta(t, 100.0/3.0, worst.YieldPct, 1e-9)
	assert.Equal(t, models.DispositionPoor, worst.Disposition)
	require.NotNil(t, worst.MostFailedStepID)
	assert.Equal(t, 2, *worst.MostFailedStepID, "step 2 has two failures, step 3 one")

	best := rows[1]
	assert.Equal(t, "B2", best.BatchID)
	assert.Nil(t, best.MostFailedStepID, "no failures means no most-failed step")
	assert.Equal(t, models.DispositionExcellent, best.Disposition)
}

func TestMostFailedStepTie(t *testing.T) {
	// Equal failure counts resolve to the lowest ordinal.
	stepID, ok := mostFailedStep(map[int]int{4: 2, 2: 2, 5: 1})
	require.True(t, ok)
	assert.Equal(t, 2, stepID)

	_, ok = mostFailedStep(map[int]int{})
	assert.False(t, ok)
}

func TestFirstPassYield(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	tests := []models.WaferTest{
		// W01: clean run.
		waferTest("W01", "B1", 1, "ETC001", dayAt(0, 8), models.Pass),
		waferTest("W01", "B1", 2, "ETC001", dayAt(0, 9), models.Pass),
		// W02: failed step 1, recovered by step 2.
		waferTest("W02", "B1", 1, "ETC001", dayAt(0, 8), models.Fail),
		waferTest("W02", "B1", 2, "ETC001", dayAt(0, 9), models.Pass),
		// W03: failed its last recorded step.
		waferTest("W03", "B1", 1, "ETC001", dayAt(0, 8), models.Fail),
	}
	batches := []models.Batch{{BatchID: "B1", StartTime: dayAt(0, 7)}}

	rows, err := svc.FirstPassYield(snapshotOf(tests, batches, nil, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].WaferCount)
	assert.InDelta(t, 100.0/3.0, rows[0].FirstPassYieldPct, 1e-9)
	assert.InDelta(t, 200.0/3.0, rows[0].FinalYieldPct, 1e-9)
}

func TestUptime(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	event := func(eq string, hour int, status models.EventStatus) models.EquipmentEvent {
		return models.EquipmentEvent{EquipmentID: eq, EventTimestamp: dayAt(0, hour), Status: status}
	}
	events := []models.EquipmentEvent{
		event("ETC001", 0, models.StatusRunning),
		event("ETC001", 1, models.StatusDown),
		event("ETC001", 2, models.StatusIdle),
		event("ETC001", 3, models.StatusAlarm),
		event("ETC002", 0, models.StatusRunning),
		event("ETC002", 1, models.StatusRunning),
	}
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "ETC002", EquipmentType: "ETCH"},
		{EquipmentID: "ETC003", EquipmentType: "ETCH"}, // no events, omitted
	}

	rows, err := svc.Uptime(snapshotOf(nil, nil, equipment, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "ETC001", rows[0].EquipmentID, "lowest uptime first")
	assert.InDelta(t, 75, rows[0].UptimePct, 1e-9)
	assert.Equal(t, models.UptimeAttention, rows[0].Tier)
	assert.Equal(t, "ETC002", rows[1].EquipmentID)
	assert.InDelta(t, 100, rows[1].UptimePct, 1e-9)
	assert.Equal(t, models.UptimeExcellent, rows[1].Tier)

	for _, row := range rows {
		assert.GreaterOrEqual(t, row.UptimePct, 0.0)
		assert.LessOrEqual(t, row.UptimePct, 100.0)
	}
}

func TestMTBF(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	down := func(eq string, day int) models.EquipmentEvent {
		return models.EquipmentEvent{EquipmentID: eq, EventTimestamp: dayAt(day, 0), Status: models.StatusDown}
	}
	events := []models.EquipmentEvent{
		// ETC001: DOWN at day 0, 2, 6 -> gaps 48h and 96h -> MTBF 72h.
		down("ETC001", 0),
		down("ETC001", 2),
		down("ETC001", 6),
		{EquipmentID: "ETC001", EventTimestamp: dayAt(1, 0), Status: models.StatusRunning},
		// ETC002: a single DOWN event has no defined MTBF.
		down("ETC002", 3),
	}
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "ETC002", EquipmentType: "ETCH"},
	}

	rows, err := svc.MTBF(snapshotOf(nil, nil, equipment, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "ETC001", rows[0].EquipmentID)
	assert.Equal(t, 3, rows[0].DownEvents)
	assert.InDelta(t, 72, rows[0].MTBFHours, 1e-9)
	assert.Equal(t, models.MTBFPoor, rows[0].Tier)
}

func TestAlarmFrequency(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.MinAlarms = 2
	svc := newTestAssembler(cfg)

	alarm := func(eq string, day int) models.EquipmentEvent {
		return models.EquipmentEvent{EquipmentID: eq, EventTimestamp: dayAt(day, 12), Status: models.StatusAlarm}
	}
	events := []models.EquipmentEvent{
		// Anchor the observed end.
		{EquipmentID: "ETC001", EventTimestamp: dayAt(60, 0), Status: models.StatusRunning},
		// In the trailing 30 days relative to day 60.
		alarm("ETC001", 55),
		alarm("ETC001", 58),
		alarm("ETC001", 59),
		// Outside the window: must not count.
		alarm("ETC001", 10),
		// Below the gate.
		alarm("ETC002", 58),
	}
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "ETC002", EquipmentType: "ETCH"},
	}

	rows, err := svc.AlarmFrequency(snapshotOf(nil, nil, equipment, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "ETC001", rows[0].EquipmentID)
	assert.Equal(t, 3, rows[0].AlarmCount)
	assert.Equal(t, models.AlarmLow, rows[0].Severity)
}

func TestBatchPairCorrelationGate(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.MinBatchPairs = 10
	svc := newTestAssembler(cfg)

	// Five batches on one tool produce four lag-1 pairs: below the gate.
	snap := correlatedBatchesSnapshot(t, 5)
	rows, err := svc.BatchPairCorrelation(snap)
	require.NoError(t, err)
	assert.Empty(t, rows, "four pairs must not clear a ten-pair gate")

	// Twelve batches produce eleven pairs: clears the gate.
	snap = correlatedBatchesSnapshot(t, 12)
	rows, err = svc.BatchPairCorrelation(snap)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 11, rows[0].PairCount)
	assert.GreaterOrEqual(t, rows[0].Correlation, -1.0)
	assert.LessOrEqual(t, rows[0].Correlation, 1.0)
}

// correlatedBatchesSnapshot builds n single-wafer batches on one tool whose
// yields alternate so the series has positive variance.
func correlatedBatchesSnapshot(t *testing.T, n int) *models.Snapshot {
	t.Helper()

	var tests []models.WaferTest
	var batches []models.Batch
	for i := 0; i < n; i++ {
		batchID := fmt.Sprintf("B%03d", i)
		result := models.Pass
		if i%3 == 0 {
			result = models.Fail
		}
		tests = append(tests, waferTest(batchID+"_W01", batchID, 1, "ETC001", dayAt(i, 8), result))
		batches = append(batches, models.Batch{BatchID: batchID, StartTime: dayAt(i, 7)})
	}
	equipment := []models.Equipment{{EquipmentID: "ETC001", EquipmentType: "ETCH"}}
	return snapshotOf(tests, batches, equipment, nil, nil)
}

func TestSequenceFailures(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.SequenceNoiseFloor = 2
	svc := newTestAssembler(cfg)

	failedWafer := func(waferID string, day int, route ...string) []models.WaferTest {
		var out []models.WaferTest
		for i, eq := range route {
			result := models.Pass
			if i == len(route)-1 {
				result = models.Fail
			}
			out = append(out, waferTest(waferID, "B1", i+1, eq, dayAt(day, 8+i), result))
		}
		return out
	}

	var tests []models.WaferTest
	tests = append(tests, failedWafer("W01", 28, "LIT001", "ETC001")...)
	tests = append(tests, failedWafer("W02", 29, "LIT001", "ETC001")...)
	// A different route, only once: below the noise floor.
	tests = append(tests, failedWafer("W03", 29, "LIT001", "ETC002")...)
	// Same route but failed outside the trailing window.
	tests = append(tests, failedWafer("W04", -20, "LIT001", "ETC001")...)
	// Clean wafer on the common route: not counted.
	tests = append(tests,
		waferTest("W05", "B1", 1, "LIT001", dayAt(29, 8), models.Pass),
		waferTest("W05", "B1", 2, "ETC001", dayAt(29, 9), models.Pass),
	)
	// Anchor observed end at day 30.
	events := []models.EquipmentEvent{
		{EquipmentID: "LIT001", EventTimestamp: dayAt(30, 0), Status: models.StatusRunning},
	}

	rows, err := svc.SequenceFailures(snapshotOf(tests, nil, nil, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "LIT001,ETC001", rows[0].EquipmentSequence)
	assert.Equal(t, 2, rows[0].FailedWafers)
}

func TestContamination(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	// Three consecutive single-wafer batches on one tool: clean, bad, bad.
	tests := []models.WaferTest{
		waferTest("B1_W01", "B1", 1, "ETC001", dayAt(0, 8), models.Pass),
		waferTest("B2_W01", "B2", 1, "ETC001", dayAt(1, 8), models.Fail),
		waferTest("B3_W01", "B3", 1, "ETC001", dayAt(2, 8), models.Fail),
	}
	batches := []models.Batch{
		{BatchID: "B1", StartTime: dayAt(0, 7), EndTime: dayAt(0, 10)},
		{BatchID: "B2", StartTime: dayAt(1, 7), EndTime: dayAt(1, 10)},
		{BatchID: "B3", StartTime: dayAt(2, 7), EndTime: dayAt(2, 10)},
	}
	equipment := []models.Equipment{{EquipmentID: "ETC001", EquipmentType: "ETCH"}}

	rows, err := svc.Contamination(snapshotOf(tests, batches, equipment, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "B2", rows[0].CurrBatchID)
	assert.Equal(t, models.ContaminationSuddenDrop, rows[0].Flag)
	assert.Equal(t, "B3", rows[1].CurrBatchID)
	assert.Equal(t, models.ContaminationPossible, rows[1].Flag)

	// With maintenance between B2 and B3 the carryover explanation goes away.
	maintenance := []models.MaintenanceEvent{
		{EventID: "CM_1", EquipmentID: "ETC001", EventType: models.MaintenanceCorrective, EventTimestamp: dayAt(1, 20)},
	}
	rows, err = svc.Contamination(snapshotOf(tests, batches, equipment, nil, maintenance))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B2", rows[0].CurrBatchID)
}

func TestCriticality(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	var tests []models.WaferTest
	for i := 0; i < 10; i++ {
		result := models.Pass
		if i < 2 {
			result = models.Fail
		}
		tests = append(tests, waferTest(fmt.Sprintf("W%02d", i), "B1", 1, "ETC001", dayAt(0, 8), result))
	}
	events := []models.EquipmentEvent{
		{EquipmentID: "ETC001", EventTimestamp: dayAt(0, 1), Status: models.StatusDown},
	}
	equipment := []models.Equipment{{EquipmentID: "ETC001", EquipmentType: "ETCH"}}

	rows, err := svc.Criticality(snapshotOf(tests, nil, equipment, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 10, row.WafersProcessed)
	assert.InDelta(t, 80, row.AvgYieldPct, 1e-9)
	assert.Equal(t, 1, row.DownEvents)
	// (10/100) x 20 x 2 = 4.
	assert.InDelta(t, 4, row.Score, 1e-9)
	assert.Equal(t, models.CriticalityTier4, row.Tier)
}

func TestYieldTrend(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.YieldTrendWindowDays = 2
	svc := newTestAssembler(cfg)

	var tests []models.WaferTest
	// Three days of single-wafer yields: 100, 100, 0.
	tests = append(tests, waferTest("W01", "B1", 1, "ETC001", dayAt(0, 8), models.Pass))
	tests = append(tests, waferTest("W02", "B1", 1, "ETC001", dayAt(1, 8), models.Pass))
	tests = append(tests, waferTest("W03", "B1", 1, "ETC001", dayAt(2, 8), models.Fail))
	equipment := []models.Equipment{{EquipmentID: "ETC001", EquipmentType: "ETCH"}}

	rows, err := svc.YieldTrend(snapshotOf(tests, nil, equipment, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.True(t, rows[0].Day.Before(rows[1].Day))

	// Group mean across the three days is 66.67; day 3 sits far below it.
	assert.InDelta(t, 200.0/3.0, rows[2].GroupMean, 1e-9)
	assert.InDelta(t, 50, rows[2].TrailingAvg, 1e-9, "two-day trailing window over 100 and 0")
	assert.Equal(t, models.TrendSignificantDrop, rows[2].Deviation)
	assert.Equal(t, models.TrendImproved, rows[0].Deviation)
}

func TestStepFailures(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	tests := []models.WaferTest{
		waferTest("W01", "B1", 1, "ETC001", dayAt(0, 8), models.Pass),
		waferTest("W02", "B1", 1, "ETC001", dayAt(0, 8), models.Pass),
		waferTest("W01", "B1", 2, "ETC002", dayAt(0, 9), models.Fail),
		waferTest("W02", "B1", 2, "ETC002", dayAt(0, 9), models.Pass),
	}

	rows, err := svc.StepFailures(snapshotOf(tests, nil, nil, nil, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].StepID, "highest failure rate first")
	assert.InDelta(t, 50, rows[0].FailureRatePct, 1e-9)
	assert.Equal(t, 1, rows[1].StepID)
	assert.Zero(t, rows[1].FailCount)
}

func TestDegradation(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	sensor := func(eq string, day int, temp float64, status models.EventStatus) models.EquipmentEvent {
		return models.EquipmentEvent{EquipmentID: eq, EventTimestamp: dayAt(day, 0), Status: status, TemperatureC: temp}
	}

	var events []models.EquipmentEvent
	// Four quiet baseline weeks per tool: two readings each, no alarms.
	for _, eq := range []string{"ETC001", "LIT001", "TST001"} {
		for _, day := range []int{2, 9, 16, 23} {
			events = append(events,
				sensor(eq, day, 200, models.StatusRunning),
				sensor(eq, day+2, 202, models.StatusRunning),
			)
		}
	}
	events = append(events,
		// ETC001 current week: volatile temperatures and an alarm burst.
		sensor("ETC001", 29, 200, models.StatusRunning),
		sensor("ETC001", 30, 220, models.StatusRunning),
		sensor("ETC001", 31, 200, models.StatusAlarm),
		sensor("ETC001", 32, 210, models.StatusAlarm),
		sensor("ETC001", 33, 220, models.StatusAlarm),
		// Latest event overall: anchors the observation range at day 35.
		sensor("ETC001", 35, 210, models.StatusRunning),
		// LIT001 current week looks exactly like its baseline.
		sensor("LIT001", 29, 200, models.StatusRunning),
		sensor("LIT001", 31, 202, models.StatusRunning),
		// TST001 has no current-week readings, so no defined volatility.
	)
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "LIT001", EquipmentType: "LITHO"},
		{EquipmentID: "TST001", EquipmentType: "TEST"},
	}

	rows, err := svc.Degradation(snapshotOf(nil, nil, equipment, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	// An alarm burst over an alarm-free baseline is still high risk.
	assert.Equal(t, "ETC001", rows[0].EquipmentID)
	assert.Equal(t, models.DegradationHighRisk, rows[0].Risk)
	assert.InDelta(t, 3, rows[0].CurrentAlarms, 1e-9)
	assert.InDelta(t, 0, rows[0].BaselineAlarms, 1e-9)
	assert.InDelta(t, 1.414, rows[0].BaselineTempStdDev, 1e-3)
	assert.Greater(t, rows[0].CurrentTempStdDev, rows[0].BaselineTempStdDev)

	assert.Equal(t, "LIT001", rows[1].EquipmentID)
	assert.Equal(t, models.DegradationStable, rows[1].Risk)
}

func TestDegradationNilSnapshot(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())
	_, err := svc.Degradation(nil)
	assert.ErrorIs(t, err, apperrors.ErrNilSnapshot)
}

func TestUtilizationYield(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.MinCorrelationDays = 3
	svc := newTestAssembler(cfg)

	event := func(eq string, day, hour int, status models.EventStatus) models.EquipmentEvent {
		return models.EquipmentEvent{EquipmentID: eq, EventTimestamp: dayAt(day, hour), Status: status}
	}

	var events []models.EquipmentEvent
	var tests []models.WaferTest
	wafer := 0
	addDay := func(eq string, day, running, idle, pass, fail int) {
		for h := 0; h < running; h++ {
			events = append(events, event(eq, day, 1+h, models.StatusRunning))
		}
		for h := 0; h < idle; h++ {
			events = append(events, event(eq, day, 1+running+h, models.StatusIdle))
		}
		for i := 0; i < pass; i++ {
			wafer++
			tests = append(tests, waferTest(fmt.Sprintf("W%03d", wafer), "B1", 1, eq, dayAt(day, 8), models.Pass))
		}
		for i := 0; i < fail; i++ {
			wafer++
			tests = append(tests, waferTest(fmt.Sprintf("W%03d", wafer), "B1", 1, eq, dayAt(day, 8), models.Fail))
		}
	}

	// ETC001: utilization tracks yield exactly over three qualifying days.
	addDay("ETC001", 0, 4, 0, 4, 0)
	addDay("ETC001", 1, 2, 2, 2, 2)
	addDay("ETC001", 2, 1, 3, 1, 3)
	// LIT001: only two days have both events and tests; below the gate.
	addDay("LIT001", 0, 1, 1, 1, 1)
	addDay("LIT001", 1, 1, 0, 1, 0)
	addDay("LIT001", 2, 1, 0, 0, 0)
	// TST001: constant utilization, correlation undefined.
	addDay("TST001", 0, 2, 0, 2, 0)
	addDay("TST001", 1, 2, 0, 1, 1)
	addDay("TST001", 2, 2, 0, 0, 2)

	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "LIT001", EquipmentType: "LITHO"},
		{EquipmentID: "TST001", EquipmentType: "TEST"},
	}

	rows, err := svc.UtilizationYield(snapshotOf(tests, nil, equipment, events, nil))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "ETC001", rows[0].EquipmentID)
	assert.Equal(t, 3, rows[0].DayCount)
	assert.InDelta(t, 1, rows[0].Correlation, 1e-9)
}

func TestMaintenanceEffect(t *testing.T) {
	svc := newTestAssembler(testAnalysisConfig())

	alarm := func(eq string, day int) models.EquipmentEvent {
		return models.EquipmentEvent{EquipmentID: eq, EventTimestamp: dayAt(day, 12), Status: models.StatusAlarm}
	}
	events := []models.EquipmentEvent{
		// ETC001: three alarms in the week before maintenance, one after.
		alarm("ETC001", 5), alarm("ETC001", 6), alarm("ETC001", 7),
		alarm("ETC001", 12),
		// LIT001: alarms picked up after the corrective action.
		alarm("LIT001", 15),
		alarm("LIT001", 22), alarm("LIT001", 23),
		// TST001: alarm rate halved but no yield data either side.
		alarm("TST001", 8), alarm("TST001", 9),
		alarm("TST001", 13),
	}
	tests := []models.WaferTest{
		waferTest("W01", "B1", 1, "ETC001", dayAt(5, 8), models.Pass),
		waferTest("W02", "B1", 1, "ETC001", dayAt(6, 8), models.Fail),
		waferTest("W03", "B1", 1, "ETC001", dayAt(12, 8), models.Pass),
		waferTest("W04", "B1", 1, "ETC001", dayAt(13, 8), models.Pass),
	}
	maintenance := []models.MaintenanceEvent{
		{EventID: "PM_ETC001_A", EquipmentID: "ETC001", EventType: models.MaintenancePreventive, EventTimestamp: dayAt(10, 0)},
		{EventID: "CM_LIT001_A", EquipmentID: "LIT001", EventType: models.MaintenanceCorrective, EventTimestamp: dayAt(20, 0)},
		{EventID: "PM_TST001_A", EquipmentID: "TST001", EventType: models.MaintenancePreventive, EventTimestamp: dayAt(10, 0)},
	}
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
		{EquipmentID: "LIT001", EquipmentType: "LITHO"},
		{EquipmentID: "TST001", EquipmentType: "TEST"},
	}

	rows, err := svc.MaintenanceEffect(snapshotOf(tests, nil, equipment, events, maintenance))
	require.NoError(t, err)

	require.Len(t, rows, 3)

	assert.Equal(t, "PM_ETC001_A", rows[0].EventID)
	assert.InDelta(t, 3.0/7, rows[0].PreAlarmRate, 1e-9)
	assert.InDelta(t, 1.0/7, rows[0].PostAlarmRate, 1e-9)
	require.NotNil(t, rows[0].PreYieldPct)
	require.NotNil(t, rows[0].PostYieldPct)
	assert.InDelta(t, 50, *rows[0].PreYieldPct, 1e-9)
	assert.InDelta(t, 100, *rows[0].PostYieldPct, 1e-9)
	assert.Equal(t, models.MaintenanceHighlyEffective, rows[0].Effect)

	assert.Equal(t, "CM_LIT001_A", rows[1].EventID)
	assert.Nil(t, rows[1].PreYieldPct)
	assert.Equal(t, models.MaintenanceLimited, rows[1].Effect)

	assert.Equal(t, "PM_TST001_A", rows[2].EventID)
	assert.Equal(t, models.MaintenanceModeratelyEffective, rows[2].Effect)
}
