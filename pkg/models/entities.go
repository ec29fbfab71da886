package models

import "time"

// ============================================================================
// Enumerations
// ============================================================================

// PassFail is the outcome of a wafer test at one process step.
type PassFail string

const (
	Pass PassFail = "PASS"
	Fail PassFail = "FAIL"
)

// EquipmentStatus is the lifecycle status of a piece of equipment.
type EquipmentStatus string

const (
	EquipmentActive      EquipmentStatus = "ACTIVE"
	EquipmentMaintenance EquipmentStatus = "MAINTENANCE"
	EquipmentRetired     EquipmentStatus = "RETIRED"
)

// EventStatus is the operating state reported by an equipment sensor log event.
type EventStatus string

const (
	StatusRunning EventStatus = "RUNNING"
	StatusIdle    EventStatus = "IDLE"
	StatusAlarm   EventStatus = "ALARM"
	StatusDown    EventStatus = "DOWN"
)

// ValidEventStatuses contains all valid equipment event statuses.
var ValidEventStatuses = []EventStatus{StatusRunning, StatusIdle, StatusAlarm, StatusDown}

// MaintenanceType distinguishes scheduled from breakdown maintenance.
type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "PREVENTIVE"
	MaintenanceCorrective MaintenanceType = "CORRECTIVE"
)

// ============================================================================
// Core entities
// ============================================================================

// WaferTest is one wafer's result at one process step. Immutable fact record:
// the analytics layer only reads these, it never mutates or creates them.
type WaferTest struct {
	WaferID         string    `json:"wafer_id"`
	BatchID         string    `json:"batch_id"`
	ProcessStepID   int       `json:"process_step_id"`
	ProcessStepName string    `json:"process_step_name"`
	EquipmentID     string    `json:"equipment_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	PassFail        PassFail  `json:"pass_fail"`
	DefectDensity   float64   `json:"defect_density"`
	BinCode         string    `json:"bin_code"`
	TestTimestamp   time.Time `json:"test_timestamp"`
}

// Duration returns the step duration for this test record.
func (w *WaferTest) Duration() time.Duration {
	return w.EndTime.Sub(w.StartTime)
}

// Batch is a lot of wafers processed together under one recipe.
type Batch struct {
	BatchID   string    `json:"batch_id"`
	LotNumber string    `json:"lot_number"`
	Recipe    string    `json:"recipe"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	// EquipmentSequence is the comma-joined ordered equipment route recorded
	// at dispatch time. Lineage resolution recomputes the observed route from
	// wafer tests rather than trusting this column.
	EquipmentSequence string `json:"equipment_sequence"`
	WaferCount        int    `json:"wafer_count"`
}

// Equipment is a fab tool (etcher, stepper, implanter, ...).
type Equipment struct {
	EquipmentID   string          `json:"equipment_id"`
	EquipmentType string          `json:"equipment_type"`
	Manufacturer  string          `json:"manufacturer"`
	InstallDate   time.Time       `json:"install_date"`
	Status        EquipmentStatus `json:"status"`
}

// ProcessStep is one stage of the manufacturing route. StepID doubles as the
// ordinal position: routings visit steps in strictly increasing StepID order.
type ProcessStep struct {
	StepID        int    `json:"step_id"`
	Name          string `json:"name"`
	EquipmentType string `json:"equipment_type"`
	DurationMin   int    `json:"duration_min"`
}

// EquipmentEvent is one sensor log sample from a tool. Each event represents
// the start of an operating cycle in the given status.
type EquipmentEvent struct {
	EquipmentID        string      `json:"equipment_id"`
	EventTimestamp     time.Time   `json:"event_timestamp"`
	Status             EventStatus `json:"status"`
	TemperatureC       float64     `json:"temperature_c"`
	PressureTorr       float64     `json:"pressure_torr"`
	RFPowerW           *float64    `json:"rf_power_w,omitempty"`
	IngestionTimestamp time.Time   `json:"ingestion_timestamp"`
}

// MaintenanceEvent is a preventive or corrective maintenance action on a tool.
type MaintenanceEvent struct {
	EventID        string          `json:"event_id"`
	EquipmentID    string          `json:"equipment_id"`
	EventType      MaintenanceType `json:"event_type"`
	EventTimestamp time.Time       `json:"event_timestamp"`
	DurationHours  float64         `json:"duration_hours"`
	PartsReplaced  string          `json:"parts_replaced"`
	TechnicianID   string          `json:"technician_id"`
}
