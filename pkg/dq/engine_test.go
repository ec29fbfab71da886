package dq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

var dqBase = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// dirtySnapshot carries one violation of each category: an orphaned batch
// reference, an impossible temperature, a missing bin code, a duplicated
// test record, and an event ingested before it happened.
func dirtySnapshot() *models.Snapshot {
	tests := []models.WaferTest{
		{
			WaferID: "W01", BatchID: "B1", ProcessStepID: 1, EquipmentID: "ETC001",
			StartTime: dqBase, EndTime: dqBase.Add(30 * time.Minute),
			PassFail: models.Pass, BinCode: "BIN1", DefectDensity: 0.05,
			TestTimestamp: dqBase.Add(30 * time.Minute),
		},
		{
			WaferID: "W02", BatchID: "B_MISSING", ProcessStepID: 1, EquipmentID: "ETC001",
			StartTime: dqBase, EndTime: dqBase.Add(30 * time.Minute),
			PassFail: models.Fail, BinCode: "", DefectDensity: 1.2,
			TestTimestamp: dqBase.Add(30 * time.Minute),
		},
		// Duplicate of W01 at the same step.
		{
			WaferID: "W01", BatchID: "B1", ProcessStepID: 1, EquipmentID: "ETC001",
			StartTime: dqBase, EndTime: dqBase.Add(30 * time.Minute),
			PassFail: models.Pass, BinCode: "BIN2", DefectDensity: 0.08,
			TestTimestamp: dqBase.Add(30 * time.Minute),
		},
	}
	batches := []models.Batch{
		{BatchID: "B1", LotNumber: "LOT_2024_1", Recipe: "CMOS_28nm_v3", StartTime: dqBase.Add(-time.Hour), EndTime: dqBase.Add(4 * time.Hour)},
	}
	equipment := []models.Equipment{
		{EquipmentID: "ETC001", EquipmentType: "ETCH", Status: models.EquipmentActive},
	}
	steps := []models.ProcessStep{
		{StepID: 1, Name: "Plasma Etch", DurationMin: 30},
	}
	events := []models.EquipmentEvent{
		{
			EquipmentID: "ETC001", EventTimestamp: dqBase, Status: models.StatusRunning,
			TemperatureC: 251, PressureTorr: 0.1, IngestionTimestamp: dqBase.Add(time.Minute),
		},
		{
			// Out-of-range temperature, ingested before the event happened.
			EquipmentID: "ETC001", EventTimestamp: dqBase.Add(time.Hour), Status: models.StatusAlarm,
			TemperatureC: 9000, PressureTorr: 0.1, IngestionTimestamp: dqBase.Add(-time.Hour),
		},
	}
	maintenance := []models.MaintenanceEvent{
		{
			EventID: "PM_ETC001_20240501", EquipmentID: "ETC001",
			EventType: models.MaintenancePreventive, EventTimestamp: dqBase.Add(-24 * time.Hour),
			DurationHours: 4, TechnicianID: "TECH01",
		},
	}
	return models.NewSnapshot(tests, batches, equipment, steps, events, maintenance)
}

func rule(name string, cat Category, sev Severity, table, column string) Rule {
	return Rule{Name: name, Category: cat, Severity: sev, Table: table, Column: column}
}

func TestEvaluateReferential(t *testing.T) {
	e := NewEngine(zap.NewNop())

	r := rule("batch_fk", ReferentialIntegrity, SeverityCritical, "wafer_tests", "batch_id")
	r.References = "batches"

	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{r}})
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Violations)
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, []string{"W02"}, res.Samples)
	assert.True(t, run.Failed())
}

func TestEvaluateRange(t *testing.T) {
	e := NewEngine(zap.NewNop())

	lo, hi := -50.0, 1500.0
	r := rule("temp_range", Range, SeverityMedium, "equipment_events", "temperature_c")
	r.Min, r.Max = &lo, &hi

	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{r}})
	require.NoError(t, err)

	res := run.Results[0]
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Violations)
	assert.Equal(t, StatusWarning, res.Status, "MEDIUM severity downgrades to warning")
	assert.Equal(t, 1, run.Warnings)
	assert.False(t, run.Failed())
}

func TestEvaluateCompleteness(t *testing.T) {
	e := NewEngine(zap.NewNop())

	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{
		rule("bin_code_present", Completeness, SeverityHigh, "wafer_tests", "bin_code"),
		rule("technician_present", Completeness, SeverityLow, "maintenance_events", "technician_id"),
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Results[0].Violations)
	assert.Equal(t, StatusFail, run.Results[0].Status)
	assert.Zero(t, run.Results[1].Violations)
	assert.Equal(t, StatusPass, run.Results[1].Status)
}

func TestEvaluateCompletenessRejectsBadStatus(t *testing.T) {
	e := NewEngine(zap.NewNop())

	events := []models.EquipmentEvent{
		{EquipmentID: "ETC001", EventTimestamp: dqBase, Status: "POWERED", TemperatureC: 250, IngestionTimestamp: dqBase},
	}
	snap := models.NewSnapshot(nil, nil, nil, nil, events, nil)

	run, err := e.Evaluate(snap, &RuleSet{Rules: []Rule{
		rule("status_valid", Completeness, SeverityHigh, "equipment_events", "status"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Results[0].Violations, "unrecognized status counts as missing")
}

func TestEvaluateUniqueness(t *testing.T) {
	e := NewEngine(zap.NewNop())

	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{
		rule("test_pk", Uniqueness, SeverityCritical, "wafer_tests", ""),
		rule("batch_pk", Uniqueness, SeverityCritical, "batches", ""),
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Results[0].Violations)
	assert.Equal(t, []string{"W01/1"}, run.Results[0].Samples)
	assert.Zero(t, run.Results[1].Violations)
}

func TestEvaluateTemporal(t *testing.T) {
	e := NewEngine(zap.NewNop())

	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{
		rule("test_times", Temporal, SeverityMedium, "wafer_tests", ""),
		rule("ingestion_after_event", Temporal, SeverityMedium, "equipment_events", ""),
	}})
	require.NoError(t, err)

	assert.Zero(t, run.Results[0].Violations)
	assert.Equal(t, 1, run.Results[1].Violations)
}

func TestEvaluateUnknownRule(t *testing.T) {
	e := NewEngine(zap.NewNop())

	_, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{
		rule("mystery", Category("DISTRIBUTION"), SeverityLow, "wafer_tests", ""),
	}})
	assert.ErrorIs(t, err, apperrors.ErrUnknownRule)

	_, err = e.Evaluate(dirtySnapshot(), &RuleSet{Rules: []Rule{
		rule("bad_table", Range, SeverityLow, "operators", "shift"),
	}})
	assert.ErrorIs(t, err, apperrors.ErrUnknownRule)
}

func TestEvaluateNilSnapshot(t *testing.T) {
	e := NewEngine(zap.NewNop())
	_, err := e.Evaluate(nil, &RuleSet{})
	assert.ErrorIs(t, err, apperrors.ErrNilSnapshot)
}

func TestEvaluateEmptyRuleSet(t *testing.T) {
	e := NewEngine(zap.NewNop())
	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{})
	require.NoError(t, err)
	assert.Empty(t, run.Results)
	assert.False(t, run.Failed())
}

func TestShippedRules(t *testing.T) {
	rs, err := LoadRules("../../dq/rules.yml")
	require.NoError(t, err)
	require.NotEmpty(t, rs.Rules)

	// Every shipped rule must evaluate cleanly against a well-formed snapshot.
	e := NewEngine(zap.NewNop())
	run, err := e.Evaluate(dirtySnapshot(), &RuleSet{Rules: rs.Rules})
	require.NoError(t, err)
	assert.Len(t, run.Results, len(rs.Rules))
}
