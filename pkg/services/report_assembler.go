package services

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// ReportAssemblerService builds the classified output tables. Each builder
// applies its minimum-sample-size gate (rows below the gate are dropped, not
// reported as degenerate zeros), classifies through ClassificationService,
// and sorts deterministically: the table's primary sort key, ties broken by
// entity identifier. All builders are pure functions of the snapshot.
type ReportAssemblerService interface {
	EquipmentYield(snap *models.Snapshot) ([]models.EquipmentYieldRow, error)
	YieldTrend(snap *models.Snapshot) ([]models.YieldTrendRow, error)
	StepFailures(snap *models.Snapshot) ([]models.StepFailureRow, error)
	BatchYield(snap *models.Snapshot) ([]models.BatchYieldRow, error)
	DefectPareto(snap *models.Snapshot) ([]models.ParetoRow, error)
	FirstPassYield(snap *models.Snapshot) ([]models.FirstPassYieldRow, error)
	UtilizationYield(snap *models.Snapshot) ([]models.UtilizationYieldRow, error)
	Uptime(snap *models.Snapshot) ([]models.UptimeRow, error)
	MTBF(snap *models.Snapshot) ([]models.MTBFRow, error)
	AlarmFrequency(snap *models.Snapshot) ([]models.AlarmFrequencyRow, error)
	Degradation(snap *models.Snapshot) ([]models.DegradationRow, error)
	MaintenanceEffect(snap *models.Snapshot) ([]models.MaintenanceEffectRow, error)
	Criticality(snap *models.Snapshot) ([]models.CriticalityRow, error)
	BatchPairCorrelation(snap *models.Snapshot) ([]models.BatchPairCorrelationRow, error)
	SequenceFailures(snap *models.Snapshot) ([]models.SequenceFailureRow, error)
	Contamination(snap *models.Snapshot) ([]models.ContaminationRow, error)
}

type reportAssemblerService struct {
	cfg      config.AnalysisConfig
	metrics  WindowedMetricsService
	classify ClassificationService
	logger   *zap.Logger
}

// NewReportAssemblerService creates a report assembler.
func NewReportAssemblerService(
	cfg config.AnalysisConfig,
	metrics WindowedMetricsService,
	classify ClassificationService,
	logger *zap.Logger,
) ReportAssemblerService {
	return &reportAssemblerService{
		cfg:      cfg,
		metrics:  metrics,
		classify: classify,
		logger:   logger.Named("report-assembler"),
	}
}

var _ ReportAssemblerService = (*reportAssemblerService)(nil)

// ============================================================================
// Yield tables
// ============================================================================

// EquipmentYield ranks equipment by record-level pass rate, worst first.
// Gated at MinEquipmentWafers distinct wafers.
func (s *reportAssemblerService) EquipmentYield(snap *models.Snapshot) ([]models.EquipmentYieldRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.EquipmentYieldRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		tests := snap.TestsByEquipment(eqID)
		if len(tests) == 0 {
			continue
		}

		wafers := make(map[string]struct{})
		pass := 0
		for _, t := range tests {
			wafers[t.WaferID] = struct{}{}
			if t.PassFail == models.Pass {
				pass++
			}
		}
		if len(wafers) < s.cfg.MinEquipmentWafers {
			continue
		}

		eq := snap.EquipmentByID(eqID)
		rows = append(rows, models.EquipmentYieldRow{
			EquipmentID:   eqID,
			EquipmentType: eq.EquipmentType,
			WaferCount:    len(wafers),
			TestCount:     len(tests),
			PassCount:     pass,
			YieldPct:      pct(pass, len(tests)),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].YieldPct != rows[j].YieldPct {
			return rows[i].YieldPct < rows[j].YieldPct
		}
		return rows[i].EquipmentID < rows[j].EquipmentID
	})
	return rows, nil
}

// YieldTrend emits one row per equipment-day: daily yield, the trailing
// moving average, and the deviation classification against the equipment's
// full-range mean yield.
func (s *reportAssemblerService) YieldTrend(snap *models.Snapshot) ([]models.YieldTrendRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.YieldTrendRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		tests := snap.TestsByEquipment(eqID)
		if len(tests) == 0 {
			continue
		}

		type dayStat struct {
			total int
			pass  int
		}
		byDay := make(map[time.Time]*dayStat)
		for _, t := range tests {
			day := t.TestTimestamp.UTC().Truncate(24 * time.Hour)
			st := byDay[day]
			if st == nil {
				st = &dayStat{}
				byDay[day] = st
			}
			st.total++
			if t.PassFail == models.Pass {
				st.pass++
			}
		}

		days := make([]time.Time, 0, len(byDay))
		for d := range byDay {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

		yields := make([]float64, len(days))
		for i, d := range days {
			yields[i] = pct(byDay[d].pass, byDay[d].total)
		}

		trailing, err := s.metrics.TrailingAverages(yields, s.cfg.YieldTrendWindowDays)
		if err != nil {
			return nil, err
		}
		mean := s.metrics.Mean(yields)
		if mean == nil {
			continue
		}

		for i, d := range days {
			rows = append(rows, models.YieldTrendRow{
				EquipmentID: eqID,
				Day:         d,
				WaferCount:  byDay[d].total,
				YieldPct:    yields[i],
				TrailingAvg: trailing[i],
				GroupMean:   *mean,
				Deviation:   s.classify.ClassifyYieldDeviation(yields[i], *mean),
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EquipmentID != rows[j].EquipmentID {
			return rows[i].EquipmentID < rows[j].EquipmentID
		}
		return rows[i].Day.Before(rows[j].Day)
	})
	return rows, nil
}

// StepFailures ranks process steps by failure rate, worst first.
func (s *reportAssemblerService) StepFailures(snap *models.Snapshot) ([]models.StepFailureRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	type counts struct {
		name  string
		total int
		fail  int
	}
	byStep := make(map[int]*counts)
	for _, t := range snap.WaferTests {
		c := byStep[t.ProcessStepID]
		if c == nil {
			c = &counts{name: t.ProcessStepName}
			byStep[t.ProcessStepID] = c
		}
		if c.name == "" {
			if ps := snap.StepByID(t.ProcessStepID); ps != nil {
				c.name = ps.Name
			}
		}
		c.total++
		if t.PassFail == models.Fail {
			c.fail++
		}
	}

	rows := make([]models.StepFailureRow, 0, len(byStep))
	for id, c := range byStep {
		rows = append(rows, models.StepFailureRow{
			StepID:         id,
			StepName:       c.name,
			TotalCount:     c.total,
			FailCount:      c.fail,
			FailureRatePct: pct(c.fail, c.total),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FailureRatePct != rows[j].FailureRatePct {
			return rows[i].FailureRatePct > rows[j].FailureRatePct
		}
		return rows[i].StepID < rows[j].StepID
	})
	return rows, nil
}

// BatchYield ranks batches by wafer-level yield (a wafer counts as passing
// when none of its steps failed), worst first, with the most-failed step
// attached. Step-count ties resolve to the lowest step ordinal.
func (s *reportAssemblerService) BatchYield(snap *models.Snapshot) ([]models.BatchYieldRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.BatchYieldRow, 0)
	for _, batchID := range snap.BatchIDs() {
		batch := snap.BatchByID(batchID)
		tests := snap.TestsByBatch(batchID)
		if len(tests) == 0 {
			continue
		}

		waferFailed := make(map[string]bool)
		failsByStep := make(map[int]int)
		stepNames := make(map[int]string)
		for _, t := range tests {
			if _, ok := waferFailed[t.WaferID]; !ok {
				waferFailed[t.WaferID] = false
			}
			if t.PassFail == models.Fail {
				waferFailed[t.WaferID] = true
				failsByStep[t.ProcessStepID]++
				stepNames[t.ProcessStepID] = t.ProcessStepName
			}
		}

		pass := 0
		for _, failed := range waferFailed {
			if !failed {
				pass++
			}
		}
		yield := pct(pass, len(waferFailed))

		row := models.BatchYieldRow{
			BatchID:     batchID,
			LotNumber:   batch.LotNumber,
			Recipe:      batch.Recipe,
			WaferCount:  len(waferFailed),
			PassCount:   pass,
			YieldPct:    yield,
			Disposition: s.classify.ClassifyBatchDisposition(yield),
		}

		if stepID, ok := mostFailedStep(failsByStep); ok {
			id := stepID
			row.MostFailedStepID = &id
			row.MostFailedStepName = stepNames[stepID]
			if row.MostFailedStepName == "" {
				if ps := snap.StepByID(stepID); ps != nil {
					row.MostFailedStepName = ps.Name
				}
			}
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].YieldPct != rows[j].YieldPct {
			return rows[i].YieldPct < rows[j].YieldPct
		}
		return rows[i].BatchID < rows[j].BatchID
	})
	return rows, nil
}

// mostFailedStep picks the step with the highest failure count; ties resolve
// to the lowest step ordinal so the answer never depends on map order.
func mostFailedStep(failsByStep map[int]int) (int, bool) {
	best, bestCount := 0, 0
	for stepID, count := range failsByStep {
		if count > bestCount || (count == bestCount && count > 0 && stepID < best) {
			best, bestCount = stepID, count
		}
	}
	return best, bestCount > 0
}

// DefectPareto ranks defect bin codes by count descending (ties broken by
// bin code ascending) and assigns cumulative-percentage priority bands.
func (s *reportAssemblerService) DefectPareto(snap *models.Snapshot) ([]models.ParetoRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	byBin := make(map[string]int)
	total := 0
	for _, t := range snap.WaferTests {
		if t.PassFail != models.Fail {
			continue
		}
		byBin[t.BinCode]++
		total++
	}
	if total == 0 {
		return []models.ParetoRow{}, nil
	}

	rows := make([]models.ParetoRow, 0, len(byBin))
	for bin, count := range byBin {
		rows = append(rows, models.ParetoRow{
			BinCode:     bin,
			DefectCount: count,
			Pct:         pct(count, total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DefectCount != rows[j].DefectCount {
			return rows[i].DefectCount > rows[j].DefectCount
		}
		return rows[i].BinCode < rows[j].BinCode
	})

	cumulative := 0
	for i := range rows {
		cumulative += rows[i].DefectCount
		rows[i].CumulativePct = pct(cumulative, total)
		rows[i].Priority = s.classify.ClassifyParetoPriority(rows[i].CumulativePct)
	}
	return rows, nil
}

// FirstPassYield compares first-pass yield (wafers failing no step) with
// final yield (wafers whose last recorded step passed) per batch.
func (s *reportAssemblerService) FirstPassYield(snap *models.Snapshot) ([]models.FirstPassYieldRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.FirstPassYieldRow, 0)
	for _, batchID := range snap.BatchIDs() {
		tests := snap.TestsByBatch(batchID)
		if len(tests) == 0 {
			continue
		}

		type waferState struct {
			anyFail  bool
			lastStep int
			lastPass bool
		}
		byWafer := make(map[string]*waferState)
		for _, t := range tests {
			ws := byWafer[t.WaferID]
			if ws == nil {
				ws = &waferState{lastStep: -1}
				byWafer[t.WaferID] = ws
			}
			if t.PassFail == models.Fail {
				ws.anyFail = true
			}
			if t.ProcessStepID > ws.lastStep {
				ws.lastStep = t.ProcessStepID
				ws.lastPass = t.PassFail == models.Pass
			}
		}

		firstPass, final := 0, 0
		for _, ws := range byWafer {
			if !ws.anyFail {
				firstPass++
			}
			if ws.lastPass {
				final++
			}
		}

		rows = append(rows, models.FirstPassYieldRow{
			BatchID:           batchID,
			WaferCount:        len(byWafer),
			FirstPassYieldPct: pct(firstPass, len(byWafer)),
			FinalYieldPct:     pct(final, len(byWafer)),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].BatchID < rows[j].BatchID })
	return rows, nil
}

// ============================================================================
// Equipment reliability tables
// ============================================================================

// UtilizationYield correlates daily utilization (share of RUNNING events)
// with daily yield per tool, over days that have both signals. Gated at
// MinCorrelationDays joined days.
func (s *reportAssemblerService) UtilizationYield(snap *models.Snapshot) ([]models.UtilizationYieldRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.UtilizationYieldRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		type dayStat struct {
			events  int
			running int
			tests   int
			pass    int
		}
		byDay := make(map[time.Time]*dayStat)
		get := func(ts time.Time) *dayStat {
			day := ts.UTC().Truncate(24 * time.Hour)
			st := byDay[day]
			if st == nil {
				st = &dayStat{}
				byDay[day] = st
			}
			return st
		}

		for _, ev := range snap.EventsByEquipment(eqID) {
			st := get(ev.EventTimestamp)
			st.events++
			if ev.Status == models.StatusRunning {
				st.running++
			}
		}
		for _, t := range snap.TestsByEquipment(eqID) {
			st := get(t.TestTimestamp)
			st.tests++
			if t.PassFail == models.Pass {
				st.pass++
			}
		}

		days := make([]time.Time, 0, len(byDay))
		for d, st := range byDay {
			if st.events > 0 && st.tests > 0 {
				days = append(days, d)
			}
		}
		if len(days) < s.cfg.MinCorrelationDays {
			continue
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

		util := make([]float64, len(days))
		yield := make([]float64, len(days))
		for i, d := range days {
			st := byDay[d]
			util[i] = pct(st.running, st.events)
			yield[i] = pct(st.pass, st.tests)
		}

		r := s.metrics.Pearson(util, yield)
		if r == nil {
			continue
		}
		rows = append(rows, models.UtilizationYieldRow{
			EquipmentID: eqID,
			DayCount:    len(days),
			Correlation: *r,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].EquipmentID < rows[j].EquipmentID })
	return rows, nil
}

// Uptime tiers each tool by the share of non-DOWN events, worst first.
func (s *reportAssemblerService) Uptime(snap *models.Snapshot) ([]models.UptimeRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.UptimeRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		events := snap.EventsByEquipment(eqID)
		if len(events) == 0 {
			continue
		}
		up := 0
		for _, ev := range events {
			if ev.Status != models.StatusDown {
				up++
			}
		}
		uptime := pct(up, len(events))
		rows = append(rows, models.UptimeRow{
			EquipmentID: eqID,
			EventCount:  len(events),
			UptimePct:   uptime,
			Tier:        s.classify.ClassifyUptime(uptime),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UptimePct != rows[j].UptimePct {
			return rows[i].UptimePct < rows[j].UptimePct
		}
		return rows[i].EquipmentID < rows[j].EquipmentID
	})
	return rows, nil
}

// MTBF sums only the gaps between consecutive DOWN events; equipment with
// fewer than two DOWN events in the window has no defined MTBF and is
// omitted entirely.
func (s *reportAssemblerService) MTBF(snap *models.Snapshot) ([]models.MTBFRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.MTBFRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		var downs []time.Time
		for _, ev := range snap.EventsByEquipment(eqID) {
			if ev.Status == models.StatusDown {
				downs = append(downs, ev.EventTimestamp)
			}
		}
		if len(downs) < 2 {
			continue
		}

		var totalGap time.Duration
		for i := 1; i < len(downs); i++ {
			totalGap += downs[i].Sub(downs[i-1])
		}
		mtbf := totalGap.Hours() / float64(len(downs)-1)

		rows = append(rows, models.MTBFRow{
			EquipmentID: eqID,
			DownEvents:  len(downs),
			MTBFHours:   mtbf,
			Tier:        s.classify.ClassifyMTBF(mtbf),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MTBFHours != rows[j].MTBFHours {
			return rows[i].MTBFHours < rows[j].MTBFHours
		}
		return rows[i].EquipmentID < rows[j].EquipmentID
	})
	return rows, nil
}

// AlarmFrequency counts ALARM events in the trailing window anchored at the
// snapshot's observed end. Gated at MinAlarms; sorted by volume descending.
func (s *reportAssemblerService) AlarmFrequency(snap *models.Snapshot) ([]models.AlarmFrequencyRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	end := snap.ObservedEnd()
	from := end.AddDate(0, 0, -s.cfg.AlarmWindowDays)

	rows := make([]models.AlarmFrequencyRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		alarms := 0
		for _, ev := range snap.EventsBetween(eqID, from, end) {
			if ev.Status == models.StatusAlarm {
				alarms++
			}
		}
		if alarms < s.cfg.MinAlarms {
			continue
		}
		rows = append(rows, models.AlarmFrequencyRow{
			EquipmentID: eqID,
			AlarmCount:  alarms,
			Severity:    s.classify.ClassifyAlarmVolume(alarms),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AlarmCount != rows[j].AlarmCount {
			return rows[i].AlarmCount > rows[j].AlarmCount
		}
		return rows[i].EquipmentID < rows[j].EquipmentID
	})
	return rows, nil
}

// Degradation compares the current 7-day period's temperature volatility and
// alarm count against the average of the trailing baseline periods. Tools
// without a defined volatility on both sides are omitted (undefined, not
// STABLE).
func (s *reportAssemblerService) Degradation(snap *models.Snapshot) ([]models.DegradationRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	end := snap.ObservedEnd()
	const period = 7 * 24 * time.Hour

	rows := make([]models.DegradationRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		// Period 0 is the current window; periods 1..N form the baseline.
		currTemps, currAlarms := s.periodSensors(snap, eqID, end.Add(-period), end)

		var baselineStdDevs, baselineAlarms []float64
		for p := 1; p <= s.cfg.SensorTrendWindowWeeks; p++ {
			from := end.Add(-time.Duration(p+1) * period)
			to := end.Add(-time.Duration(p) * period)
			temps, alarms := s.periodSensors(snap, eqID, from, to)
			if sd := s.metrics.StdDev(temps); sd != nil {
				baselineStdDevs = append(baselineStdDevs, *sd)
				baselineAlarms = append(baselineAlarms, float64(alarms))
			}
		}

		currStdDev := s.metrics.StdDev(currTemps)
		baseStdDev := s.metrics.Mean(baselineStdDevs)
		baseAlarms := s.metrics.Mean(baselineAlarms)
		if currStdDev == nil || baseStdDev == nil || *baseStdDev == 0 {
			continue
		}

		tempRatio := *currStdDev / *baseStdDev

		rows = append(rows, models.DegradationRow{
			EquipmentID:        eqID,
			CurrentTempStdDev:  *currStdDev,
			BaselineTempStdDev: *baseStdDev,
			CurrentAlarms:      float64(currAlarms),
			BaselineAlarms:     derefOrZero(baseAlarms),
			Risk:               s.classify.ClassifyDegradation(tempRatio, float64(currAlarms), derefOrZero(baseAlarms)),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].EquipmentID < rows[j].EquipmentID })
	return rows, nil
}

// periodSensors collects temperature readings and the alarm count for one
// tool over (from, to].
func (s *reportAssemblerService) periodSensors(snap *models.Snapshot, eqID string, from, to time.Time) ([]float64, int) {
	var temps []float64
	alarms := 0
	for _, ev := range snap.EventsBetween(eqID, from, to) {
		if !ev.EventTimestamp.After(from) {
			continue
		}
		temps = append(temps, ev.TemperatureC)
		if ev.Status == models.StatusAlarm {
			alarms++
		}
	}
	return temps, alarms
}

// MaintenanceEffect scores each maintenance event by alarm rate and yield in
// the windows either side of it.
func (s *reportAssemblerService) MaintenanceEffect(snap *models.Snapshot) ([]models.MaintenanceEffectRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	windowDays := float64(s.cfg.MaintenanceWindowDays)
	window := time.Duration(s.cfg.MaintenanceWindowDays) * 24 * time.Hour

	rows := make([]models.MaintenanceEffectRow, 0, len(snap.MaintenanceEvents))
	for _, m := range snap.MaintenanceEvents {
		at := m.EventTimestamp
		preAlarms := countAlarms(snap.EventsBetween(m.EquipmentID, at.Add(-window), at))
		postAlarms := countAlarms(snap.EventsBetween(m.EquipmentID, at, at.Add(window)))

		preYield := equipmentYieldBetween(snap, m.EquipmentID, at.Add(-window), at)
		postYield := equipmentYieldBetween(snap, m.EquipmentID, at, at.Add(window))

		preRate := float64(preAlarms) / windowDays
		postRate := float64(postAlarms) / windowDays

		rows = append(rows, models.MaintenanceEffectRow{
			EventID:       m.EventID,
			EquipmentID:   m.EquipmentID,
			EventType:     m.EventType,
			PreAlarmRate:  preRate,
			PostAlarmRate: postRate,
			PreYieldPct:   preYield,
			PostYieldPct:  postYield,
			Effect:        s.classify.ClassifyMaintenanceEffect(preRate, postRate, preYield, postYield),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EquipmentID != rows[j].EquipmentID {
			return rows[i].EquipmentID < rows[j].EquipmentID
		}
		return rows[i].EventID < rows[j].EventID
	})
	return rows, nil
}

func countAlarms(events []*models.EquipmentEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Status == models.StatusAlarm {
			n++
		}
	}
	return n
}

// equipmentYieldBetween is the record-level pass rate for tests on one tool
// in (from, to]; nil when the interval has no tests.
func equipmentYieldBetween(snap *models.Snapshot, eqID string, from, to time.Time) *float64 {
	total, pass := 0, 0
	for _, t := range snap.TestsByEquipment(eqID) {
		if !t.TestTimestamp.After(from) || t.TestTimestamp.After(to) {
			continue
		}
		total++
		if t.PassFail == models.Pass {
			pass++
		}
	}
	if total == 0 {
		return nil
	}
	y := pct(pass, total)
	return &y
}

// Criticality ranks equipment by the composite maintenance-priority score,
// highest first.
func (s *reportAssemblerService) Criticality(snap *models.Snapshot) ([]models.CriticalityRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.CriticalityRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		tests := snap.TestsByEquipment(eqID)
		if len(tests) == 0 {
			continue
		}

		wafers := make(map[string]struct{})
		pass := 0
		for _, t := range tests {
			wafers[t.WaferID] = struct{}{}
			if t.PassFail == models.Pass {
				pass++
			}
		}
		downs := 0
		for _, ev := range snap.EventsByEquipment(eqID) {
			if ev.Status == models.StatusDown {
				downs++
			}
		}

		avgYield := pct(pass, len(tests))
		score := s.classify.CriticalityScore(len(wafers), avgYield, downs)
		rows = append(rows, models.CriticalityRow{
			EquipmentID:     eqID,
			WafersProcessed: len(wafers),
			AvgYieldPct:     avgYield,
			DownEvents:      downs,
			Score:           score,
			Tier:            s.classify.ClassifyCriticality(score),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].EquipmentID < rows[j].EquipmentID
	})
	return rows, nil
}

// ============================================================================
// Cross-batch pattern tables
// ============================================================================

// BatchPairCorrelation computes the lag-1 autocorrelation of batch yields
// per tool. Partitions with fewer than MinBatchPairs valid pairs are
// excluded from the output, not reported as zero.
func (s *reportAssemblerService) BatchPairCorrelation(snap *models.Snapshot) ([]models.BatchPairCorrelationRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.BatchPairCorrelationRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		yields := s.orderedBatchYields(snap, eqID)
		pairs := s.metrics.Lag1Pairs(yields)
		if len(pairs) < s.cfg.MinBatchPairs {
			continue
		}

		prev := make([]float64, len(pairs))
		curr := make([]float64, len(pairs))
		for i, p := range pairs {
			prev[i] = p.Prev
			curr[i] = p.Curr
		}
		r := s.metrics.Pearson(prev, curr)
		if r == nil {
			continue
		}

		rows = append(rows, models.BatchPairCorrelationRow{
			EquipmentID: eqID,
			PairCount:   len(pairs),
			Correlation: *r,
			Strength:    s.classify.ClassifyDrift(*r),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].EquipmentID < rows[j].EquipmentID })
	return rows, nil
}

// orderedBatchYields returns wafer-level batch yields for batches that ran
// on the tool, ordered by batch start time (ties by batch ID).
func (s *reportAssemblerService) orderedBatchYields(snap *models.Snapshot, eqID string) []float64 {
	batches := s.orderedBatches(snap, eqID)
	yields := make([]float64, 0, len(batches))
	for _, b := range batches {
		yields = append(yields, batchWaferYield(snap, b.BatchID))
	}
	return yields
}

// orderedBatches returns the batches with at least one test record on the
// tool, ordered by start time then batch ID. Orphaned batch references are
// skipped.
func (s *reportAssemblerService) orderedBatches(snap *models.Snapshot, eqID string) []*models.Batch {
	seen := make(map[string]struct{})
	var batches []*models.Batch
	for _, t := range snap.TestsByEquipment(eqID) {
		if _, ok := seen[t.BatchID]; ok {
			continue
		}
		seen[t.BatchID] = struct{}{}
		if b := snap.BatchByID(t.BatchID); b != nil {
			batches = append(batches, b)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].StartTime.Equal(batches[j].StartTime) {
			return batches[i].StartTime.Before(batches[j].StartTime)
		}
		return batches[i].BatchID < batches[j].BatchID
	})
	return batches
}

// batchWaferYield is the share of the batch's wafers with no failing step.
func batchWaferYield(snap *models.Snapshot, batchID string) float64 {
	waferFailed := make(map[string]bool)
	for _, t := range snap.TestsByBatch(batchID) {
		if _, ok := waferFailed[t.WaferID]; !ok {
			waferFailed[t.WaferID] = false
		}
		if t.PassFail == models.Fail {
			waferFailed[t.WaferID] = true
		}
	}
	pass := 0
	for _, failed := range waferFailed {
		if !failed {
			pass++
		}
	}
	return pct(pass, len(waferFailed))
}

// SequenceFailures counts failed wafers per distinct ordered equipment route
// over the trailing window. Sequences below the noise floor are dropped.
func (s *reportAssemblerService) SequenceFailures(snap *models.Snapshot) ([]models.SequenceFailureRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	end := snap.ObservedEnd()
	from := end.AddDate(0, 0, -s.cfg.SequenceWindowDays)

	bySequence := make(map[string]int)
	for _, waferID := range snap.WaferIDs() {
		tests := snap.TestsByWafer(waferID)

		failed := false
		inWindow := false
		route := make([]string, 0, len(tests))
		for _, t := range tests {
			route = append(route, t.EquipmentID)
			if t.PassFail == models.Fail {
				failed = true
			}
			if !t.TestTimestamp.Before(from) {
				inWindow = true
			}
		}
		if !failed || !inWindow {
			continue
		}
		bySequence[strings.Join(route, ",")]++
	}

	rows := make([]models.SequenceFailureRow, 0, len(bySequence))
	for seq, count := range bySequence {
		if count < s.cfg.SequenceNoiseFloor {
			continue
		}
		rows = append(rows, models.SequenceFailureRow{
			EquipmentSequence: seq,
			FailedWafers:      count,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FailedWafers != rows[j].FailedWafers {
			return rows[i].FailedWafers > rows[j].FailedWafers
		}
		return rows[i].EquipmentSequence < rows[j].EquipmentSequence
	})
	return rows, nil
}

// Contamination flags consecutive-batch yield patterns per tool. Only
// flagged pairs are emitted; NORMAL_VARIATION pairs are dropped to keep the
// table actionable.
func (s *reportAssemblerService) Contamination(snap *models.Snapshot) ([]models.ContaminationRow, error) {
	if snap == nil {
		return nil, apperrors.ErrNilSnapshot
	}

	rows := make([]models.ContaminationRow, 0)
	for _, eqID := range snap.EquipmentIDs() {
		batches := s.orderedBatches(snap, eqID)
		for i := 1; i < len(batches); i++ {
			prev, curr := batches[i-1], batches[i]

			prevYield := batchWaferYield(snap, prev.BatchID)
			currYield := batchWaferYield(snap, curr.BatchID)

			prevEnd := prev.EndTime
			if prevEnd.IsZero() {
				prevEnd = prev.StartTime
			}
			maintained := snap.MaintenanceBetween(eqID, prevEnd, curr.StartTime)

			flag := s.classify.ClassifyContamination(prevYield, currYield, maintained)
			if flag == models.NormalVariation {
				continue
			}
			rows = append(rows, models.ContaminationRow{
				EquipmentID:        eqID,
				PrevBatchID:        prev.BatchID,
				CurrBatchID:        curr.BatchID,
				PrevYieldPct:       prevYield,
				CurrYieldPct:       currYield,
				MaintenanceBetween: maintained,
				Flag:               flag,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EquipmentID != rows[j].EquipmentID {
			return rows[i].EquipmentID < rows[j].EquipmentID
		}
		return rows[i].CurrBatchID < rows[j].CurrBatchID
	})
	return rows, nil
}

// ============================================================================
// Shared helpers
// ============================================================================

// pct is count/total as a percentage; 0 when total is 0 (callers gate empty
// partitions before emitting rows, so this never masks an undefined result).
func pct(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100.0
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
