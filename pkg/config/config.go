package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the analytics platform.
// Configuration can come from YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. The analysis
// section carries every threshold, trailing-window size and sample-size gate
// with its documented default, so a run with no configuration at all uses the
// published rule tables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL). Optional: when Host is empty the
	// platform runs off CSV snapshots only.
	Database DatabaseConfig `yaml:"database"`

	Analysis  AnalysisConfig  `yaml:"analysis"`
	DQ        DQConfig        `yaml:"dq"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Report    ReportConfig    `yaml:"report"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"fab"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"fab_analytics"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// Enabled reports whether a database target is configured.
func (c *DatabaseConfig) Enabled() bool { return c.Host != "" }

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// AnalysisConfig holds trailing-window sizes, sample-size gates and the
// classification thresholds.
type AnalysisConfig struct {
	// Trailing windows
	YieldTrendWindowDays   int `yaml:"yield_trend_window_days" env:"ANALYSIS_YIELD_TREND_WINDOW_DAYS" env-default:"7"`
	SensorTrendWindowWeeks int `yaml:"sensor_trend_window_weeks" env:"ANALYSIS_SENSOR_TREND_WINDOW_WEEKS" env-default:"4"`
	AlarmWindowDays        int `yaml:"alarm_window_days" env:"ANALYSIS_ALARM_WINDOW_DAYS" env-default:"30"`
	SequenceWindowDays     int `yaml:"sequence_window_days" env:"ANALYSIS_SEQUENCE_WINDOW_DAYS" env-default:"30"`
	MaintenanceWindowDays  int `yaml:"maintenance_window_days" env:"ANALYSIS_MAINTENANCE_WINDOW_DAYS" env-default:"7"`

	// Minimum-sample-size gates. Rows below a gate are dropped, never
	// reported as degenerate results.
	MinEquipmentWafers int `yaml:"min_equipment_wafers" env:"ANALYSIS_MIN_EQUIPMENT_WAFERS" env-default:"30"`
	MinAlarms          int `yaml:"min_alarms" env:"ANALYSIS_MIN_ALARMS" env-default:"10"`
	MinBatchPairs      int `yaml:"min_batch_pairs" env:"ANALYSIS_MIN_BATCH_PAIRS" env-default:"10"`
	MinCorrelationDays int `yaml:"min_correlation_days" env:"ANALYSIS_MIN_CORRELATION_DAYS" env-default:"10"`
	SequenceNoiseFloor int `yaml:"sequence_noise_floor" env:"ANALYSIS_SEQUENCE_NOISE_FLOOR" env-default:"5"`

	// Parallelism bounds concurrent partition evaluation. Output is
	// identical at any value.
	Parallelism int `yaml:"parallelism" env:"ANALYSIS_PARALLELISM" env-default:"4"`

	// LineageBatchLimit is how many lowest-yield batches get a full lineage
	// trace in the report.
	LineageBatchLimit int `yaml:"lineage_batch_limit" env:"ANALYSIS_LINEAGE_BATCH_LIMIT" env-default:"5"`

	Thresholds ThresholdConfig `yaml:"thresholds"`
}

// ThresholdConfig is the classification rule table. All thresholds are
// inclusive lower bounds unless the classifier states otherwise.
type ThresholdConfig struct {
	// Equipment uptime %: <attention NEEDS_ATTENTION, <acceptable ACCEPTABLE,
	// <good GOOD, else EXCELLENT.
	UptimeAttentionPct  float64 `yaml:"uptime_attention_pct" env:"THRESH_UPTIME_ATTENTION_PCT" env-default:"85"`
	UptimeAcceptablePct float64 `yaml:"uptime_acceptable_pct" env:"THRESH_UPTIME_ACCEPTABLE_PCT" env-default:"90"`
	UptimeGoodPct       float64 `yaml:"uptime_good_pct" env:"THRESH_UPTIME_GOOD_PCT" env-default:"95"`

	// MTBF hours: <poor POOR, <acceptable ACCEPTABLE, <good GOOD, else EXCELLENT.
	MTBFPoorHours       float64 `yaml:"mtbf_poor_hours" env:"THRESH_MTBF_POOR_HOURS" env-default:"168"`
	MTBFAcceptableHours float64 `yaml:"mtbf_acceptable_hours" env:"THRESH_MTBF_ACCEPTABLE_HOURS" env-default:"360"`
	MTBFGoodHours       float64 `yaml:"mtbf_good_hours" env:"THRESH_MTBF_GOOD_HOURS" env-default:"720"`

	// Alarm volume over the trailing window.
	AlarmCritical int `yaml:"alarm_critical" env:"THRESH_ALARM_CRITICAL" env-default:"100"`
	AlarmHigh     int `yaml:"alarm_high" env:"THRESH_ALARM_HIGH" env-default:"50"`
	AlarmMedium   int `yaml:"alarm_medium" env:"THRESH_ALARM_MEDIUM" env-default:"20"`

	// Degradation ratios against the trailing baseline.
	DegradationTempHighRatio     float64 `yaml:"degradation_temp_high_ratio" env:"THRESH_DEGRADATION_TEMP_HIGH" env-default:"1.5"`
	DegradationAlarmHighRatio    float64 `yaml:"degradation_alarm_high_ratio" env:"THRESH_DEGRADATION_ALARM_HIGH" env-default:"2.0"`
	DegradationTempModerateRatio float64 `yaml:"degradation_temp_moderate_ratio" env:"THRESH_DEGRADATION_TEMP_MODERATE" env-default:"1.2"`

	// Yield deviation from the partition's group mean, in yield points.
	YieldSignificantDrop float64 `yaml:"yield_significant_drop" env:"THRESH_YIELD_SIGNIFICANT_DROP" env-default:"5"`
	YieldMinorDrop       float64 `yaml:"yield_minor_drop" env:"THRESH_YIELD_MINOR_DROP" env-default:"2"`
	YieldImproved        float64 `yaml:"yield_improved" env:"THRESH_YIELD_IMPROVED" env-default:"2"`

	// Batch-pair autocorrelation strength.
	DriftStrongCorrelation   float64 `yaml:"drift_strong_correlation" env:"THRESH_DRIFT_STRONG" env-default:"0.7"`
	DriftModerateCorrelation float64 `yaml:"drift_moderate_correlation" env:"THRESH_DRIFT_MODERATE" env-default:"0.4"`

	// Contamination yield bands.
	ContaminationLowYieldPct  float64 `yaml:"contamination_low_yield_pct" env:"THRESH_CONTAMINATION_LOW_YIELD" env-default:"80"`
	ContaminationHighYieldPct float64 `yaml:"contamination_high_yield_pct" env:"THRESH_CONTAMINATION_HIGH_YIELD" env-default:"90"`
	ContaminationPreRecovery  float64 `yaml:"contamination_pre_recovery_pct" env:"THRESH_CONTAMINATION_PRE_RECOVERY" env-default:"85"`

	// Maintenance effectiveness: post/pre alarm-rate ratio for HIGHLY_EFFECTIVE.
	MaintenanceAlarmRatio float64 `yaml:"maintenance_alarm_ratio" env:"THRESH_MAINTENANCE_ALARM_RATIO" env-default:"0.7"`

	// Criticality score tiers.
	CriticalityTier1 float64 `yaml:"criticality_tier1" env:"THRESH_CRITICALITY_TIER1" env-default:"500"`
	CriticalityTier2 float64 `yaml:"criticality_tier2" env:"THRESH_CRITICALITY_TIER2" env-default:"200"`
	CriticalityTier3 float64 `yaml:"criticality_tier3" env:"THRESH_CRITICALITY_TIER3" env-default:"50"`

	// Pareto cumulative-percentage bands.
	ParetoHighPct   float64 `yaml:"pareto_high_pct" env:"THRESH_PARETO_HIGH_PCT" env-default:"80"`
	ParetoMediumPct float64 `yaml:"pareto_medium_pct" env:"THRESH_PARETO_MEDIUM_PCT" env-default:"95"`

	// Batch disposition yield bands.
	BatchExcellentPct  float64 `yaml:"batch_excellent_pct" env:"THRESH_BATCH_EXCELLENT_PCT" env-default:"95"`
	BatchGoodPct       float64 `yaml:"batch_good_pct" env:"THRESH_BATCH_GOOD_PCT" env-default:"90"`
	BatchAcceptablePct float64 `yaml:"batch_acceptable_pct" env:"THRESH_BATCH_ACCEPTABLE_PCT" env-default:"80"`
}

// DQConfig configures the data quality gate run before analysis.
type DQConfig struct {
	RulesPath string `yaml:"rules_path" env:"DQ_RULES_PATH" env-default:"dq/rules.yml"`
	// FailOnCritical aborts the run when a CRITICAL rule fails.
	FailOnCritical bool `yaml:"fail_on_critical" env:"DQ_FAIL_ON_CRITICAL" env-default:"true"`
}

// SimulatorConfig configures the synthetic data generator.
type SimulatorConfig struct {
	Enabled   bool   `yaml:"enabled" env:"SIMULATOR_ENABLED" env-default:"false"`
	Seed      int64  `yaml:"seed" env:"SIMULATOR_SEED" env-default:"42"`
	StartDate string `yaml:"start_date" env:"SIMULATOR_START_DATE" env-default:"2024-01-01"`
	Days      int    `yaml:"days" env:"SIMULATOR_DAYS" env-default:"30"`
	OutputDir string `yaml:"output_dir" env:"SIMULATOR_OUTPUT_DIR" env-default:"data/raw"`
}

// IngestConfig configures CSV snapshot loading.
type IngestConfig struct {
	DataDir string `yaml:"data_dir" env:"INGEST_DATA_DIR" env-default:"data/raw"`
}

// ReportConfig configures rendered output.
type ReportConfig struct {
	OutputPath string `yaml:"output_path" env:"REPORT_OUTPUT_PATH" env-default:"reports/analysis_report.md"`
	DQReport   string `yaml:"dq_report_path" env:"REPORT_DQ_PATH" env-default:"reports/dq_report.md"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml is absent, configuration comes from the
// environment and defaults alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.Analysis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects contract-violating settings. Data-shape problems are
// handled at runtime by skipping; a nonsensical window size is not.
func (c *AnalysisConfig) Validate() error {
	if c.YieldTrendWindowDays < 1 {
		return fmt.Errorf("yield_trend_window_days must be positive, got %d", c.YieldTrendWindowDays)
	}
	if c.SensorTrendWindowWeeks < 1 {
		return fmt.Errorf("sensor_trend_window_weeks must be positive, got %d", c.SensorTrendWindowWeeks)
	}
	if c.AlarmWindowDays < 1 {
		return fmt.Errorf("alarm_window_days must be positive, got %d", c.AlarmWindowDays)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	if c.MinBatchPairs < 2 {
		return fmt.Errorf("min_batch_pairs must be at least 2, got %d", c.MinBatchPairs)
	}
	return nil
}
