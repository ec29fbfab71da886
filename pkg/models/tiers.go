package models

import "slices"

// Closed tier enumerations for every classification the engine produces.
// Each set partitions its metric's range with no gaps or overlaps; an
// undefined metric gets no tier at all (the row is omitted or the tier
// pointer is nil), never the lowest tier.

// ============================================================================
// Equipment reliability
// ============================================================================

// UptimeTier classifies equipment uptime percentage.
type UptimeTier string

const (
	UptimeExcellent  UptimeTier = "EXCELLENT"
	UptimeGood       UptimeTier = "GOOD"
	UptimeAcceptable UptimeTier = "ACCEPTABLE"
	UptimeAttention  UptimeTier = "NEEDS_ATTENTION"
)

// MTBFTier classifies mean time between DOWN events, in hours.
type MTBFTier string

const (
	MTBFExcellent  MTBFTier = "EXCELLENT"
	MTBFGood       MTBFTier = "GOOD"
	MTBFAcceptable MTBFTier = "ACCEPTABLE"
	MTBFPoor       MTBFTier = "POOR"
)

// AlarmSeverity classifies total alarm volume over the trailing window.
type AlarmSeverity string

const (
	AlarmCritical AlarmSeverity = "CRITICAL"
	AlarmHigh     AlarmSeverity = "HIGH"
	AlarmMedium   AlarmSeverity = "MEDIUM"
	AlarmLow      AlarmSeverity = "LOW"
)

// DegradationRisk classifies current sensor behavior against the trailing
// baseline.
type DegradationRisk string

const (
	DegradationHighRisk DegradationRisk = "HIGH_RISK"
	DegradationModerate DegradationRisk = "MODERATE"
	DegradationStable   DegradationRisk = "STABLE"
)

// ============================================================================
// Yield
// ============================================================================

// TrendDeviation classifies current yield against the partition's group mean.
type TrendDeviation string

const (
	TrendSignificantDrop TrendDeviation = "SIGNIFICANT_DROP"
	TrendMinorDrop       TrendDeviation = "MINOR_DROP"
	TrendImproved        TrendDeviation = "IMPROVED"
	TrendStable          TrendDeviation = "STABLE"
)

// BatchDisposition classifies batch-level yield percentage.
type BatchDisposition string

const (
	DispositionExcellent  BatchDisposition = "EXCELLENT"
	DispositionGood       BatchDisposition = "GOOD"
	DispositionAcceptable BatchDisposition = "ACCEPTABLE"
	DispositionPoor       BatchDisposition = "POOR"
)

// DriftStrength classifies batch-to-batch yield autocorrelation on one tool.
type DriftStrength string

const (
	DriftStrong      DriftStrength = "STRONG"
	DriftModerate    DriftStrength = "MODERATE"
	DriftIndependent DriftStrength = "INDEPENDENT"
)

// ContaminationFlag classifies consecutive-batch yield patterns on one tool.
type ContaminationFlag string

const (
	ContaminationPossible    ContaminationFlag = "POSSIBLE_CONTAMINATION"
	ContaminationSuddenDrop  ContaminationFlag = "SUDDEN_DROP"
	MaintenanceEffectiveFlag ContaminationFlag = "MAINTENANCE_EFFECTIVE"
	NormalVariation          ContaminationFlag = "NORMAL_VARIATION"
)

// ============================================================================
// Maintenance and prioritization
// ============================================================================

// MaintenanceEffect classifies how a maintenance action changed alarm rate
// and yield.
type MaintenanceEffect string

const (
	MaintenanceHighlyEffective     MaintenanceEffect = "HIGHLY_EFFECTIVE"
	MaintenanceModeratelyEffective MaintenanceEffect = "MODERATELY_EFFECTIVE"
	MaintenanceLimited             MaintenanceEffect = "LIMITED"
)

// CriticalityTier ranks equipment for maintenance prioritization.
type CriticalityTier string

const (
	CriticalityTier1 CriticalityTier = "TIER_1"
	CriticalityTier2 CriticalityTier = "TIER_2"
	CriticalityTier3 CriticalityTier = "TIER_3"
	CriticalityTier4 CriticalityTier = "TIER_4"
)

// ParetoPriority buckets defect codes by cumulative contribution.
type ParetoPriority string

const (
	ParetoHigh   ParetoPriority = "HIGH"
	ParetoMedium ParetoPriority = "MEDIUM"
	ParetoLow    ParetoPriority = "LOW"
)

// ValidUptimeTiers contains all uptime tiers, highest to lowest.
var ValidUptimeTiers = []UptimeTier{UptimeExcellent, UptimeGood, UptimeAcceptable, UptimeAttention}

// IsValidUptimeTier checks if the given tier is valid.
func IsValidUptimeTier(t UptimeTier) bool {
	return slices.Contains(ValidUptimeTiers, t)
}
