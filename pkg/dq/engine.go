package dq

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

const sampleLimit = 5

// RuleResult is the outcome of evaluating one rule.
type RuleResult struct {
	Rule       Rule
	Checked    int
	Violations int
	Status     Status
	// Samples holds up to five violating record keys for the report.
	Samples []string
}

// RunResult aggregates one full evaluation pass.
type RunResult struct {
	EvaluatedAt time.Time
	Results     []RuleResult
	Passed      int
	Warnings    int
	Failures    int
}

// Failed reports whether any rule failed outright.
func (r *RunResult) Failed() bool { return r.Failures > 0 }

// Engine evaluates a rule set against a snapshot. Evaluation never mutates
// the snapshot; a run with zero rules passes trivially.
type Engine interface {
	Evaluate(snap *models.Snapshot, rules *RuleSet) (*RunResult, error)
}

type engine struct {
	logger *zap.Logger
}

// NewEngine creates a data quality engine.
func NewEngine(logger *zap.Logger) Engine {
	return &engine{logger: logger.Named("dq")}
}

var _ Engine = (*engine)(nil)

func (e *engine) Evaluate(snap *models.Snapshot, rules *RuleSet) (*RunResult, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	run := &RunResult{EvaluatedAt: time.Now().UTC()}
	for _, rule := range rules.Rules {
		res, err := e.evaluateRule(snap, rule)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}

		switch res.Status {
		case StatusPass:
			run.Passed++
		case StatusWarning:
			run.Warnings++
			e.logger.Warn("data quality warning",
				zap.String("rule", rule.Name),
				zap.Int("violations", res.Violations))
		case StatusFail:
			run.Failures++
			e.logger.Error("data quality failure",
				zap.String("rule", rule.Name),
				zap.Int("violations", res.Violations))
		}
		run.Results = append(run.Results, res)
	}
	return run, nil
}

func (e *engine) evaluateRule(snap *models.Snapshot, rule Rule) (RuleResult, error) {
	var checked, violations int
	var samples []string
	var err error

	switch rule.Category {
	case ReferentialIntegrity:
		checked, violations, samples, err = checkReferential(snap, rule)
	case Range:
		checked, violations, samples, err = checkRange(snap, rule)
	case Completeness:
		checked, violations, samples, err = checkCompleteness(snap, rule)
	case Uniqueness:
		checked, violations, samples, err = checkUniqueness(snap, rule)
	case Temporal:
		checked, violations, samples, err = checkTemporal(snap, rule)
	default:
		return RuleResult{}, fmt.Errorf("%w: category %q", apperrors.ErrUnknownRule, rule.Category)
	}
	if err != nil {
		return RuleResult{}, err
	}

	return RuleResult{
		Rule:       rule,
		Checked:    checked,
		Violations: violations,
		Status:     statusFor(rule.Severity, violations, rule.Threshold),
		Samples:    samples,
	}, nil
}

// ============================================================================
// Category evaluators
// ============================================================================

func checkReferential(snap *models.Snapshot, rule Rule) (int, int, []string, error) {
	exists, err := referenceLookup(snap, rule.References)
	if err != nil {
		return 0, 0, nil, err
	}

	checked, violations := 0, 0
	var samples []string
	record := func(key, ref string) {
		checked++
		if exists(ref) {
			return
		}
		violations++
		if len(samples) < sampleLimit {
			samples = append(samples, key)
		}
	}

	switch rule.Table {
	case "wafer_tests":
		for _, t := range snap.WaferTests {
			switch rule.Column {
			case "batch_id":
				record(t.WaferID, t.BatchID)
			case "equipment_id":
				record(t.WaferID, t.EquipmentID)
			case "process_step_id":
				record(t.WaferID, fmt.Sprintf("%d", t.ProcessStepID))
			default:
				return 0, 0, nil, fmt.Errorf("%w: column %s.%s", apperrors.ErrUnknownRule, rule.Table, rule.Column)
			}
		}
	case "equipment_events":
		for _, ev := range snap.EquipmentEvents {
			record(ev.EquipmentID+"@"+ev.EventTimestamp.Format(time.RFC3339), ev.EquipmentID)
		}
	case "maintenance_events":
		for _, m := range snap.MaintenanceEvents {
			record(m.EventID, m.EquipmentID)
		}
	default:
		return 0, 0, nil, fmt.Errorf("%w: table %q", apperrors.ErrUnknownRule, rule.Table)
	}
	return checked, violations, samples, nil
}

func referenceLookup(snap *models.Snapshot, references string) (func(string) bool, error) {
	switch references {
	case "batches":
		return func(id string) bool { return snap.BatchByID(id) != nil }, nil
	case "equipment":
		return func(id string) bool { return snap.EquipmentByID(id) != nil }, nil
	case "process_steps":
		return func(id string) bool {
			var stepID int
			if _, err := fmt.Sscanf(id, "%d", &stepID); err != nil {
				return false
			}
			return snap.StepByID(stepID) != nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: references %q", apperrors.ErrUnknownRule, references)
	}
}

func checkRange(snap *models.Snapshot, rule Rule) (int, int, []string, error) {
	type numericRecord struct {
		key   string
		value float64
	}

	var records []numericRecord
	switch rule.Table + "." + rule.Column {
	case "wafer_tests.defect_density":
		for _, t := range snap.WaferTests {
			records = append(records, numericRecord{t.WaferID, t.DefectDensity})
		}
	case "equipment_events.temperature_c":
		for _, ev := range snap.EquipmentEvents {
			records = append(records, numericRecord{ev.EquipmentID + "@" + ev.EventTimestamp.Format(time.RFC3339), ev.TemperatureC})
		}
	case "equipment_events.pressure_torr":
		for _, ev := range snap.EquipmentEvents {
			records = append(records, numericRecord{ev.EquipmentID + "@" + ev.EventTimestamp.Format(time.RFC3339), ev.PressureTorr})
		}
	case "maintenance_events.duration_hours":
		for _, m := range snap.MaintenanceEvents {
			records = append(records, numericRecord{m.EventID, m.DurationHours})
		}
	default:
		return 0, 0, nil, fmt.Errorf("%w: %s.%s", apperrors.ErrUnknownRule, rule.Table, rule.Column)
	}

	violations := 0
	var samples []string
	for _, rec := range records {
		if (rule.Min != nil && rec.value < *rule.Min) || (rule.Max != nil && rec.value > *rule.Max) {
			violations++
			if len(samples) < sampleLimit {
				samples = append(samples, rec.key)
			}
		}
	}
	return len(records), violations, samples, nil
}

func checkCompleteness(snap *models.Snapshot, rule Rule) (int, int, []string, error) {
	type stringRecord struct {
		key   string
		value string
	}

	var records []stringRecord
	switch rule.Table + "." + rule.Column {
	case "wafer_tests.bin_code":
		for _, t := range snap.WaferTests {
			records = append(records, stringRecord{t.WaferID, t.BinCode})
		}
	case "wafer_tests.pass_fail":
		for _, t := range snap.WaferTests {
			records = append(records, stringRecord{t.WaferID, string(t.PassFail)})
		}
	case "batches.lot_number":
		for _, b := range snap.Batches {
			records = append(records, stringRecord{b.BatchID, b.LotNumber})
		}
	case "batches.recipe":
		for _, b := range snap.Batches {
			records = append(records, stringRecord{b.BatchID, b.Recipe})
		}
	case "equipment_events.status":
		for _, ev := range snap.EquipmentEvents {
			key := ev.EquipmentID + "@" + ev.EventTimestamp.Format(time.RFC3339)
			value := string(ev.Status)
			if !validEventStatus(ev.Status) {
				value = ""
			}
			records = append(records, stringRecord{key, value})
		}
	case "maintenance_events.technician_id":
		for _, m := range snap.MaintenanceEvents {
			records = append(records, stringRecord{m.EventID, m.TechnicianID})
		}
	default:
		return 0, 0, nil, fmt.Errorf("%w: %s.%s", apperrors.ErrUnknownRule, rule.Table, rule.Column)
	}

	violations := 0
	var samples []string
	for _, rec := range records {
		if rec.value == "" {
			violations++
			if len(samples) < sampleLimit {
				samples = append(samples, rec.key)
			}
		}
	}
	return len(records), violations, samples, nil
}

func validEventStatus(status models.EventStatus) bool {
	for _, s := range models.ValidEventStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func checkUniqueness(snap *models.Snapshot, rule Rule) (int, int, []string, error) {
	var keys []string
	switch rule.Table {
	case "wafer_tests":
		for _, t := range snap.WaferTests {
			keys = append(keys, fmt.Sprintf("%s/%d", t.WaferID, t.ProcessStepID))
		}
	case "batches":
		for _, b := range snap.Batches {
			keys = append(keys, b.BatchID)
		}
	case "equipment":
		for _, e := range snap.Equipment {
			keys = append(keys, e.EquipmentID)
		}
	case "maintenance_events":
		for _, m := range snap.MaintenanceEvents {
			keys = append(keys, m.EventID)
		}
	case "equipment_events":
		for _, ev := range snap.EquipmentEvents {
			keys = append(keys, ev.EquipmentID+"@"+ev.EventTimestamp.Format(time.RFC3339Nano))
		}
	default:
		return 0, 0, nil, fmt.Errorf("%w: table %q", apperrors.ErrUnknownRule, rule.Table)
	}

	seen := make(map[string]struct{}, len(keys))
	violations := 0
	var samples []string
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			violations++
			if len(samples) < sampleLimit {
				samples = append(samples, key)
			}
			continue
		}
		seen[key] = struct{}{}
	}
	return len(keys), violations, samples, nil
}

func checkTemporal(snap *models.Snapshot, rule Rule) (int, int, []string, error) {
	checked, violations := 0, 0
	var samples []string
	record := func(key string, ok bool) {
		checked++
		if ok {
			return
		}
		violations++
		if len(samples) < sampleLimit {
			samples = append(samples, key)
		}
	}

	switch rule.Table {
	case "wafer_tests":
		for _, t := range snap.WaferTests {
			record(t.WaferID, !t.EndTime.Before(t.StartTime))
		}
	case "batches":
		for _, b := range snap.Batches {
			ok := b.EndTime.IsZero() || !b.EndTime.Before(b.StartTime)
			record(b.BatchID, ok)
		}
	case "equipment_events":
		for _, ev := range snap.EquipmentEvents {
			ok := ev.IngestionTimestamp.IsZero() || !ev.IngestionTimestamp.Before(ev.EventTimestamp)
			record(ev.EquipmentID+"@"+ev.EventTimestamp.Format(time.RFC3339), ok)
		}
	default:
		return 0, 0, nil, fmt.Errorf("%w: table %q", apperrors.ErrUnknownRule, rule.Table)
	}
	return checked, violations, samples, nil
}
