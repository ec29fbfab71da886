package services

import (
	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// ClassificationService maps computed metrics to categorical tiers. Every
// rule table the analytics publish lives here, driven by the threshold
// configuration, so no report re-derives a threshold inline. All methods are
// deterministic and side-effect free; callers must not pass undefined
// metrics (they decide "no tier assigned" before calling).
type ClassificationService interface {
	ClassifyUptime(pct float64) models.UptimeTier
	ClassifyMTBF(hours float64) models.MTBFTier
	ClassifyAlarmVolume(count int) models.AlarmSeverity
	ClassifyDegradation(tempVolatilityRatio, currentAlarms, baselineAlarms float64) models.DegradationRisk
	ClassifyYieldDeviation(current, groupMean float64) models.TrendDeviation
	ClassifyDrift(correlation float64) models.DriftStrength
	ClassifyContamination(prevYield, currYield float64, maintenanceBetween bool) models.ContaminationFlag
	ClassifyMaintenanceEffect(preAlarmRate, postAlarmRate float64, preYield, postYield *float64) models.MaintenanceEffect
	CriticalityScore(wafersProcessed int, avgYieldPct float64, downEvents int) float64
	ClassifyCriticality(score float64) models.CriticalityTier
	ClassifyParetoPriority(cumulativePct float64) models.ParetoPriority
	ClassifyBatchDisposition(yieldPct float64) models.BatchDisposition
}

type classificationService struct {
	thresholds config.ThresholdConfig
	logger     *zap.Logger
}

// NewClassificationService creates a classification service bound to one
// threshold table.
func NewClassificationService(thresholds config.ThresholdConfig, logger *zap.Logger) ClassificationService {
	return &classificationService{
		thresholds: thresholds,
		logger:     logger.Named("classification"),
	}
}

var _ ClassificationService = (*classificationService)(nil)

// ClassifyUptime tiers uptime percentage. The four tiers partition the real
// line: [0,85) NEEDS_ATTENTION, [85,90) ACCEPTABLE, [90,95) GOOD, [95,∞) EXCELLENT
// at the default thresholds.
func (s *classificationService) ClassifyUptime(pct float64) models.UptimeTier {
	t := s.thresholds
	switch {
	case pct < t.UptimeAttentionPct:
		return models.UptimeAttention
	case pct < t.UptimeAcceptablePct:
		return models.UptimeAcceptable
	case pct < t.UptimeGoodPct:
		return models.UptimeGood
	default:
		return models.UptimeExcellent
	}
}

func (s *classificationService) ClassifyMTBF(hours float64) models.MTBFTier {
	t := s.thresholds
	switch {
	case hours < t.MTBFPoorHours:
		return models.MTBFPoor
	case hours < t.MTBFAcceptableHours:
		return models.MTBFAcceptable
	case hours < t.MTBFGoodHours:
		return models.MTBFGood
	default:
		return models.MTBFExcellent
	}
}

func (s *classificationService) ClassifyAlarmVolume(count int) models.AlarmSeverity {
	t := s.thresholds
	switch {
	case count >= t.AlarmCritical:
		return models.AlarmCritical
	case count >= t.AlarmHigh:
		return models.AlarmHigh
	case count >= t.AlarmMedium:
		return models.AlarmMedium
	default:
		return models.AlarmLow
	}
}

// ClassifyDegradation compares the current period against the trailing
// baseline. Temperature volatility is a ratio (current / baseline); alarms
// come in as raw counts so an alarm burst over a clean baseline still
// trips the high-risk rule.
func (s *classificationService) ClassifyDegradation(tempVolatilityRatio, currentAlarms, baselineAlarms float64) models.DegradationRisk {
	t := s.thresholds
	if tempVolatilityRatio > t.DegradationTempHighRatio && currentAlarms > t.DegradationAlarmHighRatio*baselineAlarms {
		return models.DegradationHighRisk
	}
	if tempVolatilityRatio > t.DegradationTempModerateRatio {
		return models.DegradationModerate
	}
	return models.DegradationStable
}

func (s *classificationService) ClassifyYieldDeviation(current, groupMean float64) models.TrendDeviation {
	t := s.thresholds
	switch {
	case current < groupMean-t.YieldSignificantDrop:
		return models.TrendSignificantDrop
	case current < groupMean-t.YieldMinorDrop:
		return models.TrendMinorDrop
	case current > groupMean+t.YieldImproved:
		return models.TrendImproved
	default:
		return models.TrendStable
	}
}

func (s *classificationService) ClassifyDrift(correlation float64) models.DriftStrength {
	t := s.thresholds
	switch {
	case correlation > t.DriftStrongCorrelation:
		return models.DriftStrong
	case correlation > t.DriftModerateCorrelation:
		return models.DriftModerate
	default:
		return models.DriftIndependent
	}
}

// ClassifyContamination applies the consecutive-batch rule table:
// two sub-threshold yields with no intervening maintenance suggest carryover
// contamination; a clean-to-bad transition without maintenance is a sudden
// drop; a bad-to-clean transition after maintenance credits the maintenance.
func (s *classificationService) ClassifyContamination(prevYield, currYield float64, maintenanceBetween bool) models.ContaminationFlag {
	t := s.thresholds
	switch {
	case prevYield < t.ContaminationLowYieldPct && currYield < t.ContaminationLowYieldPct && !maintenanceBetween:
		return models.ContaminationPossible
	case prevYield >= t.ContaminationHighYieldPct && currYield < t.ContaminationLowYieldPct && !maintenanceBetween:
		return models.ContaminationSuddenDrop
	case prevYield < t.ContaminationPreRecovery && currYield >= t.ContaminationHighYieldPct && maintenanceBetween:
		return models.MaintenanceEffectiveFlag
	default:
		return models.NormalVariation
	}
}

// ClassifyMaintenanceEffect scores one maintenance action. Yield comparison
// only strengthens the verdict when both sides are defined.
func (s *classificationService) ClassifyMaintenanceEffect(preAlarmRate, postAlarmRate float64, preYield, postYield *float64) models.MaintenanceEffect {
	t := s.thresholds
	yieldImproved := preYield != nil && postYield != nil && *postYield > *preYield
	if postAlarmRate < preAlarmRate*t.MaintenanceAlarmRatio && yieldImproved {
		return models.MaintenanceHighlyEffective
	}
	if postAlarmRate < preAlarmRate {
		return models.MaintenanceModeratelyEffective
	}
	return models.MaintenanceLimited
}

// CriticalityScore is (wafers/100) x (100 - avg_yield) x (1 + down_events):
// throughput times yield shortfall times failure frequency.
func (s *classificationService) CriticalityScore(wafersProcessed int, avgYieldPct float64, downEvents int) float64 {
	return float64(wafersProcessed) / 100.0 * (100.0 - avgYieldPct) * float64(1+downEvents)
}

func (s *classificationService) ClassifyCriticality(score float64) models.CriticalityTier {
	t := s.thresholds
	switch {
	case score > t.CriticalityTier1:
		return models.CriticalityTier1
	case score > t.CriticalityTier2:
		return models.CriticalityTier2
	case score > t.CriticalityTier3:
		return models.CriticalityTier3
	default:
		return models.CriticalityTier4
	}
}

func (s *classificationService) ClassifyParetoPriority(cumulativePct float64) models.ParetoPriority {
	t := s.thresholds
	switch {
	case cumulativePct <= t.ParetoHighPct:
		return models.ParetoHigh
	case cumulativePct <= t.ParetoMediumPct:
		return models.ParetoMedium
	default:
		return models.ParetoLow
	}
}

func (s *classificationService) ClassifyBatchDisposition(yieldPct float64) models.BatchDisposition {
	t := s.thresholds
	switch {
	case yieldPct >= t.BatchExcellentPct:
		return models.DispositionExcellent
	case yieldPct >= t.BatchGoodPct:
		return models.DispositionGood
	case yieldPct >= t.BatchAcceptablePct:
		return models.DispositionAcceptable
	default:
		return models.DispositionPoor
	}
}
