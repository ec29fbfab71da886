package models

import "time"

// LineageStep is one process step in a wafer's trace, annotated with the
// equipment conditions observed during the step interval.
type LineageStep struct {
	StepID      int       `json:"step_id"`
	StepName    string    `json:"step_name"`
	BatchID     string    `json:"batch_id"`
	EquipmentID string    `json:"equipment_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	DurationMin float64   `json:"duration_min"`
	PassFail    PassFail  `json:"pass_fail"`

	// Interval sensor summary over [StartTime, EndTime] for the step's
	// equipment. Averages are nil when the interval holds no events;
	// AlarmCount is 0 in that case, not undefined.
	AvgTemperatureC *float64 `json:"avg_temperature_c,omitempty"`
	AvgPressureTorr *float64 `json:"avg_pressure_torr,omitempty"`
	AlarmCount      int      `json:"alarm_count"`

	// LastMaintenance is the most recent maintenance event on the step's
	// equipment strictly before StartTime; nil when none precedes it.
	LastMaintenance *MaintenanceEvent `json:"last_maintenance,omitempty"`
}

// WaferLineage is the ordered chain of steps one wafer passed through.
// A wafer with no recorded steps has an empty Steps slice.
type WaferLineage struct {
	WaferID string        `json:"wafer_id"`
	BatchID string        `json:"batch_id"`
	Steps   []LineageStep `json:"steps"`
}

// BatchLineage is the lineage of every wafer in a batch plus the distinct
// ordered equipment route the batch used, for cross-batch pattern matching.
type BatchLineage struct {
	BatchID           string         `json:"batch_id"`
	Wafers            []WaferLineage `json:"wafers"`
	EquipmentSequence []string       `json:"equipment_sequence"`
}
