package models

import (
	"time"

	"github.com/google/uuid"
)

// Report row types. One struct per output table; every table carries both the
// computed metric columns and the assigned tier so the rendering layer never
// re-derives thresholds. Undefined statistics are nil pointers, never zero.

// EquipmentYieldRow ranks equipment by yield over the analysis window.
type EquipmentYieldRow struct {
	EquipmentID   string `json:"equipment_id"`
	EquipmentType string `json:"equipment_type"`
	// WaferCount is distinct wafers (the sample-size gate basis); TestCount
	// and PassCount are test-record counts and YieldPct = PassCount/TestCount.
	WaferCount int     `json:"wafer_count"`
	TestCount  int     `json:"test_count"`
	PassCount  int     `json:"pass_count"`
	YieldPct   float64 `json:"yield_pct"`
}

// YieldTrendRow is one equipment-day of yield with its trailing average and
// deviation classification against the equipment's full-range mean.
type YieldTrendRow struct {
	EquipmentID string         `json:"equipment_id"`
	Day         time.Time      `json:"day"`
	WaferCount  int            `json:"wafer_count"`
	YieldPct    float64        `json:"yield_pct"`
	TrailingAvg float64        `json:"trailing_avg"`
	GroupMean   float64        `json:"group_mean"`
	Deviation   TrendDeviation `json:"deviation"`
}

// StepFailureRow ranks process steps by failure rate.
type StepFailureRow struct {
	StepID         int     `json:"step_id"`
	StepName       string  `json:"step_name"`
	TotalCount     int     `json:"total_count"`
	FailCount      int     `json:"fail_count"`
	FailureRatePct float64 `json:"failure_rate_pct"`
}

// BatchYieldRow ranks batches by yield, with the most-failed step attached.
// MostFailedStepID is nil when the batch has no failing records; step-count
// ties resolve to the lowest step ordinal.
type BatchYieldRow struct {
	BatchID            string           `json:"batch_id"`
	LotNumber          string           `json:"lot_number"`
	Recipe             string           `json:"recipe"`
	WaferCount         int              `json:"wafer_count"`
	PassCount          int              `json:"pass_count"`
	YieldPct           float64          `json:"yield_pct"`
	Disposition        BatchDisposition `json:"disposition"`
	MostFailedStepID   *int             `json:"most_failed_step_id,omitempty"`
	MostFailedStepName string           `json:"most_failed_step_name,omitempty"`
}

// ParetoRow is one defect code in the cumulative Pareto ranking.
type ParetoRow struct {
	BinCode       string         `json:"bin_code"`
	DefectCount   int            `json:"defect_count"`
	Pct           float64        `json:"pct"`
	CumulativePct float64        `json:"cumulative_pct"`
	Priority      ParetoPriority `json:"priority"`
}

// FirstPassYieldRow compares first-pass yield (wafers failing no step) with
// final yield (wafers passing their last recorded step) per batch.
type FirstPassYieldRow struct {
	BatchID           string  `json:"batch_id"`
	WaferCount        int     `json:"wafer_count"`
	FirstPassYieldPct float64 `json:"first_pass_yield_pct"`
	FinalYieldPct     float64 `json:"final_yield_pct"`
}

// UtilizationYieldRow correlates daily utilization with daily yield per tool.
type UtilizationYieldRow struct {
	EquipmentID string  `json:"equipment_id"`
	DayCount    int     `json:"day_count"`
	Correlation float64 `json:"correlation"`
}

// UptimeRow is equipment uptime with its reliability tier.
type UptimeRow struct {
	EquipmentID string     `json:"equipment_id"`
	EventCount  int        `json:"event_count"`
	UptimePct   float64    `json:"uptime_pct"`
	Tier        UptimeTier `json:"tier"`
}

// MTBFRow is mean time between DOWN events. Only emitted for equipment with
// at least two DOWN events in the window.
type MTBFRow struct {
	EquipmentID string   `json:"equipment_id"`
	DownEvents  int      `json:"down_events"`
	MTBFHours   float64  `json:"mtbf_hours"`
	Tier        MTBFTier `json:"tier"`
}

// AlarmFrequencyRow is total alarms in the trailing window with severity.
type AlarmFrequencyRow struct {
	EquipmentID string        `json:"equipment_id"`
	AlarmCount  int           `json:"alarm_count"`
	Severity    AlarmSeverity `json:"severity"`
}

// DegradationRow compares the current period's temperature volatility and
// alarm count against the trailing baseline for one tool.
type DegradationRow struct {
	EquipmentID        string          `json:"equipment_id"`
	CurrentTempStdDev  float64         `json:"current_temp_std_dev"`
	BaselineTempStdDev float64         `json:"baseline_temp_std_dev"`
	CurrentAlarms      float64         `json:"current_alarms"`
	BaselineAlarms     float64         `json:"baseline_alarms"`
	Risk               DegradationRisk `json:"risk"`
}

// MaintenanceEffectRow scores one maintenance event by before/after alarm
// rate and yield.
type MaintenanceEffectRow struct {
	EventID       string            `json:"event_id"`
	EquipmentID   string            `json:"equipment_id"`
	EventType     MaintenanceType   `json:"event_type"`
	PreAlarmRate  float64           `json:"pre_alarm_rate"`
	PostAlarmRate float64           `json:"post_alarm_rate"`
	PreYieldPct   *float64          `json:"pre_yield_pct,omitempty"`
	PostYieldPct  *float64          `json:"post_yield_pct,omitempty"`
	Effect        MaintenanceEffect `json:"effect"`
}

// CriticalityRow ranks equipment by the composite criticality score.
type CriticalityRow struct {
	EquipmentID     string          `json:"equipment_id"`
	WafersProcessed int             `json:"wafers_processed"`
	AvgYieldPct     float64         `json:"avg_yield_pct"`
	DownEvents      int             `json:"down_events"`
	Score           float64         `json:"score"`
	Tier            CriticalityTier `json:"tier"`
}

// BatchPairCorrelationRow is the lag-1 yield autocorrelation for batches
// processed on one tool. Only emitted at or above the pair-count gate.
type BatchPairCorrelationRow struct {
	EquipmentID string        `json:"equipment_id"`
	PairCount   int           `json:"pair_count"`
	Correlation float64       `json:"correlation"`
	Strength    DriftStrength `json:"strength"`
}

// SequenceFailureRow counts failed wafers per distinct ordered equipment route.
type SequenceFailureRow struct {
	EquipmentSequence string `json:"equipment_sequence"`
	FailedWafers      int    `json:"failed_wafers"`
}

// ContaminationRow flags consecutive-batch yield patterns on one tool.
type ContaminationRow struct {
	EquipmentID        string            `json:"equipment_id"`
	PrevBatchID        string            `json:"prev_batch_id"`
	CurrBatchID        string            `json:"curr_batch_id"`
	PrevYieldPct       float64           `json:"prev_yield_pct"`
	CurrYieldPct       float64           `json:"curr_yield_pct"`
	MaintenanceBetween bool              `json:"maintenance_between"`
	Flag               ContaminationFlag `json:"flag"`
}

// Report is the full set of classified output tables for one analysis run.
// All tables are deterministically sorted; re-running over the same snapshot
// produces an identical Report apart from RunID and GeneratedAt.
type Report struct {
	RunID       uuid.UUID `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	// ObservedEnd is the snapshot's latest timestamp; all trailing windows
	// are anchored here, never at wall-clock time.
	ObservedEnd time.Time `json:"observed_end"`

	EquipmentYield       []EquipmentYieldRow       `json:"equipment_yield"`
	YieldTrend           []YieldTrendRow           `json:"yield_trend"`
	StepFailures         []StepFailureRow          `json:"step_failures"`
	BatchYield           []BatchYieldRow           `json:"batch_yield"`
	DefectPareto         []ParetoRow               `json:"defect_pareto"`
	FirstPassYield       []FirstPassYieldRow       `json:"first_pass_yield"`
	UtilizationYield     []UtilizationYieldRow     `json:"utilization_yield"`
	Uptime               []UptimeRow               `json:"uptime"`
	MTBF                 []MTBFRow                 `json:"mtbf"`
	AlarmFrequency       []AlarmFrequencyRow       `json:"alarm_frequency"`
	Degradation          []DegradationRow          `json:"degradation"`
	MaintenanceEffect    []MaintenanceEffectRow    `json:"maintenance_effect"`
	Criticality          []CriticalityRow          `json:"criticality"`
	BatchPairCorrelation []BatchPairCorrelationRow `json:"batch_pair_correlation"`
	SequenceFailures     []SequenceFailureRow      `json:"sequence_failures"`
	Contamination        []ContaminationRow        `json:"contamination"`
	Lineage              []BatchLineage            `json:"lineage"`
}
