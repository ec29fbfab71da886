package simulate

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

const (
	wafersPerBatch = 25
	batchesPerDay  = 20
)

var equipmentTypes = []string{"ETCH", "LITHO", "IMPLANT", "CVD", "PVD", "CMP", "TEST"}

var processRoute = []models.ProcessStep{
	{StepID: 1, Name: "Photolithography", EquipmentType: "LITHO", DurationMin: 45},
	{StepID: 2, Name: "Plasma Etch", EquipmentType: "ETCH", DurationMin: 30},
	{StepID: 3, Name: "Ion Implantation", EquipmentType: "IMPLANT", DurationMin: 60},
	{StepID: 4, Name: "CVD Deposition", EquipmentType: "CVD", DurationMin: 40},
	{StepID: 5, Name: "Chemical Mechanical Polish", EquipmentType: "CMP", DurationMin: 25},
	{StepID: 6, Name: "Electrical Test", EquipmentType: "TEST", DurationMin: 15},
}

var manufacturers = []string{"Applied Materials", "Lam Research", "ASML", "KLA"}
var recipes = []string{"CMOS_28nm_v3", "FinFET_14nm_v2", "GAA_7nm_v1"}
var pmParts = []string{"Chamber cleaning", "Filter replacement", "Calibration", "None"}
var cmParts = []string{"Pump replacement", "Sensor calibration", "Software update", "Valve repair"}

// Dataset is one generated fab history.
type Dataset struct {
	Equipment         []models.Equipment
	ProcessSteps      []models.ProcessStep
	Batches           []models.Batch
	WaferTests        []models.WaferTest
	EquipmentEvents   []models.EquipmentEvent
	MaintenanceEvents []models.MaintenanceEvent
}

// SimulatorService generates a synthetic fab history: equipment inventory,
// sensor logs, batches with per-wafer step results, and a maintenance
// schedule. The same seed always produces the same dataset.
type SimulatorService interface {
	Generate(start time.Time, days int) (*Dataset, error)
}

type simulatorService struct {
	seed   int64
	logger *zap.Logger
}

// NewSimulatorService creates a seeded fab simulator.
func NewSimulatorService(seed int64, logger *zap.Logger) SimulatorService {
	return &simulatorService{seed: seed, logger: logger.Named("simulator")}
}

var _ SimulatorService = (*simulatorService)(nil)

func (s *simulatorService) Generate(start time.Time, days int) (*Dataset, error) {
	if days <= 0 {
		return nil, fmt.Errorf("simulation length must be positive, got %d days", days)
	}

	rng := rand.New(rand.NewSource(s.seed))
	ds := &Dataset{ProcessSteps: append([]models.ProcessStep(nil), processRoute...)}

	ds.Equipment = generateInventory(rng, start)
	ds.EquipmentEvents = generateSensorLogs(rng, ds.Equipment, start, days)
	ds.Batches = generateBatches(rng, ds.Equipment, start, days)
	ds.WaferTests = generateTestResults(rng, ds.Batches)
	ds.MaintenanceEvents = generateMaintenance(rng, ds.Equipment, ds.EquipmentEvents)

	s.logger.Info("generated dataset",
		zap.Int("equipment", len(ds.Equipment)),
		zap.Int("batches", len(ds.Batches)),
		zap.Int("wafer_tests", len(ds.WaferTests)),
		zap.Int("equipment_events", len(ds.EquipmentEvents)),
		zap.Int("maintenance_events", len(ds.MaintenanceEvents)))
	return ds, nil
}

// generateInventory creates 3-7 tools per equipment type, installed one to
// five years before the simulation starts.
func generateInventory(rng *rand.Rand, start time.Time) []models.Equipment {
	var inventory []models.Equipment
	for _, eqType := range equipmentTypes {
		numTools := randInt(rng, 3, 8)
		for i := 0; i < numTools; i++ {
			inventory = append(inventory, models.Equipment{
				EquipmentID:   fmt.Sprintf("%s%03d", eqType[:3], i+1),
				EquipmentType: eqType,
				Manufacturer:  manufacturers[rng.Intn(len(manufacturers))],
				InstallDate:   start.AddDate(0, 0, -randInt(rng, 365, 1825)),
				Status:        models.EquipmentActive,
			})
		}
	}
	return inventory
}

// generateSensorLogs walks each tool through 1-4 hour operating cycles.
// Older tools read with more variance.
func generateSensorLogs(rng *rand.Rand, inventory []models.Equipment, start time.Time, days int) []models.EquipmentEvent {
	end := start.AddDate(0, 0, days)

	var logs []models.EquipmentEvent
	for _, eq := range inventory {
		ageDays := start.Sub(eq.InstallDate).Hours() / 24
		degradation := 1 + (ageDays/1825)*0.1

		for ts := start; ts.Before(end); {
			status := pickStatus(rng)
			temperature, pressure := sensorReadings(rng, eq.EquipmentType, degradation)

			ev := models.EquipmentEvent{
				EquipmentID:        eq.EquipmentID,
				EventTimestamp:     ts,
				Status:             status,
				TemperatureC:       round2(temperature),
				PressureTorr:       round3(pressure),
				IngestionTimestamp: ts.Add(time.Duration(randInt(rng, 1, 300)) * time.Second),
			}
			if eq.EquipmentType == "ETCH" || eq.EquipmentType == "CVD" {
				rf := round1(rng.NormFloat64()*100 + 1500)
				ev.RFPowerW = &rf
			}
			logs = append(logs, ev)

			ts = ts.Add(time.Duration(randInt(rng, 60, 240)) * time.Minute)
		}
	}
	return logs
}

func pickStatus(rng *rand.Rand) models.EventStatus {
	p := rng.Float64()
	switch {
	case p < 0.70:
		return models.StatusRunning
	case p < 0.90:
		return models.StatusIdle
	case p < 0.98:
		return models.StatusAlarm
	default:
		return models.StatusDown
	}
}

func sensorReadings(rng *rand.Rand, eqType string, degradation float64) (float64, float64) {
	switch eqType {
	case "ETCH":
		return rng.NormFloat64()*10*degradation + 250, rng.NormFloat64()*0.02*degradation + 0.1
	case "LITHO":
		return rng.NormFloat64()*2*degradation + 23, rng.NormFloat64()*0.1*degradation + 1.0
	case "CVD":
		return rng.NormFloat64()*20*degradation + 400, rng.NormFloat64()*0.5*degradation + 5.0
	default:
		return rng.NormFloat64()*15*degradation + 100, rng.NormFloat64()*0.2*degradation + 1.0
	}
}

// generateBatches schedules batchesPerDay batches per day, each assigned one
// tool per route step.
func generateBatches(rng *rand.Rand, inventory []models.Equipment, start time.Time, days int) []models.Batch {
	byType := make(map[string][]string)
	for _, eq := range inventory {
		byType[eq.EquipmentType] = append(byType[eq.EquipmentType], eq.EquipmentID)
	}

	var batches []models.Batch
	batchID := 1
	for day := 0; day < days; day++ {
		date := start.AddDate(0, 0, day)
		for i := 0; i < batchesPerDay; i++ {
			sequence := make([]string, len(processRoute))
			totalDuration := 0
			for stepIdx, step := range processRoute {
				tools := byType[step.EquipmentType]
				sequence[stepIdx] = tools[rng.Intn(len(tools))]
				totalDuration += step.DurationMin
			}

			batchStart := date.Add(time.Duration(randInt(rng, 0, 24)) * time.Hour)
			batchEnd := batchStart.
				Add(time.Duration(totalDuration) * time.Minute).
				Add(time.Duration(randInt(rng, -20, 60)) * time.Minute)

			batches = append(batches, models.Batch{
				BatchID:           fmt.Sprintf("B%06d", batchID),
				LotNumber:         fmt.Sprintf("LOT_%d_%04d", date.Year(), batchID),
				Recipe:            recipes[rng.Intn(len(recipes))],
				StartTime:         batchStart,
				EndTime:           batchEnd,
				EquipmentSequence: strings.Join(sequence, ","),
				WaferCount:        wafersPerBatch,
			})
			batchID++
		}
	}
	return batches
}

// generateTestResults runs each wafer through the route. Edge wafers
// (positions outside 5-20) carry a yield penalty; a mid-route failure stops
// processing 70% of the time.
func generateTestResults(rng *rand.Rand, batches []models.Batch) []models.WaferTest {
	var results []models.WaferTest
	for _, batch := range batches {
		yieldFactor := clamp(rng.NormFloat64()*0.05+0.95, 0.70, 0.99)
		sequence := strings.Split(batch.EquipmentSequence, ",")

		for waferNum := 1; waferNum <= wafersPerBatch; waferNum++ {
			waferID := fmt.Sprintf("%s_W%02d", batch.BatchID, waferNum)
			positionEffect := 1.0
			if waferNum < 5 || waferNum > 20 {
				positionEffect = 0.95
			}

			current := batch.StartTime
			for stepIdx, step := range processRoute {
				stepStart := current
				stepEnd := stepStart.Add(time.Duration(step.DurationMin+randInt(rng, -5, 10)) * time.Minute)

				stepYield := yieldFactor * positionEffect * (0.98 + rng.Float64()*0.02)
				passFail := models.Fail
				if rng.Float64() < stepYield {
					passFail = models.Pass
				}

				defectMean := 0.1
				binCode := binCodes[rng.Intn(len(binCodes))]
				if passFail == models.Fail {
					defectMean = 0.5
					binCode = "FAIL"
				}

				results = append(results, models.WaferTest{
					WaferID:         waferID,
					BatchID:         batch.BatchID,
					ProcessStepID:   step.StepID,
					ProcessStepName: step.Name,
					EquipmentID:     sequence[stepIdx],
					StartTime:       stepStart,
					EndTime:         stepEnd,
					PassFail:        passFail,
					DefectDensity:   round3(rng.ExpFloat64() * defectMean),
					BinCode:         binCode,
					TestTimestamp:   stepEnd,
				})

				if passFail == models.Fail && stepIdx < len(processRoute)-1 && rng.Float64() < 0.7 {
					break
				}
				current = stepEnd
			}
		}
	}
	return results
}

var binCodes = []string{"BIN1", "BIN2", "BIN3", "BINX"}

// generateMaintenance schedules preventive maintenance every 7-13 days per
// tool, plus corrective work orders after a sample of ALARM/DOWN events.
func generateMaintenance(rng *rand.Rand, inventory []models.Equipment, logs []models.EquipmentEvent) []models.MaintenanceEvent {
	logsByEquipment := make(map[string][]models.EquipmentEvent)
	for _, ev := range logs {
		logsByEquipment[ev.EquipmentID] = append(logsByEquipment[ev.EquipmentID], ev)
	}

	var events []models.MaintenanceEvent
	for _, eq := range inventory {
		eqLogs := logsByEquipment[eq.EquipmentID]
		if len(eqLogs) == 0 {
			continue
		}
		sort.Slice(eqLogs, func(i, j int) bool {
			return eqLogs[i].EventTimestamp.Before(eqLogs[j].EventTimestamp)
		})
		first := eqLogs[0].EventTimestamp
		last := eqLogs[len(eqLogs)-1].EventTimestamp

		for ts := first; ; {
			ts = ts.AddDate(0, 0, randInt(rng, 7, 14))
			if ts.After(last) {
				break
			}
			events = append(events, models.MaintenanceEvent{
				EventID:        fmt.Sprintf("PM_%s_%s", eq.EquipmentID, ts.Format("20060102")),
				EquipmentID:    eq.EquipmentID,
				EventType:      models.MaintenancePreventive,
				EventTimestamp: ts,
				DurationHours:  float64(randInt(rng, 2, 8)),
				PartsReplaced:  pmParts[rng.Intn(len(pmParts))],
				TechnicianID:   fmt.Sprintf("TECH%02d", randInt(rng, 1, 20)),
			})
		}

		var problems []models.EquipmentEvent
		for _, ev := range eqLogs {
			if ev.Status == models.StatusAlarm || ev.Status == models.StatusDown {
				problems = append(problems, ev)
			}
		}
		for _, ev := range sample(rng, problems, 5) {
			at := ev.EventTimestamp.Add(time.Duration(randInt(rng, 1, 4)) * time.Hour)
			events = append(events, models.MaintenanceEvent{
				EventID:        fmt.Sprintf("CM_%s_%s", eq.EquipmentID, at.Format("200601021504")),
				EquipmentID:    eq.EquipmentID,
				EventType:      models.MaintenanceCorrective,
				EventTimestamp: at,
				DurationHours:  float64(randInt(rng, 1, 24)),
				PartsReplaced:  cmParts[rng.Intn(len(cmParts))],
				TechnicianID:   fmt.Sprintf("TECH%02d", randInt(rng, 1, 20)),
			})
		}
	}
	return events
}

// ============================================================================
// Helpers
// ============================================================================

// randInt returns a value in [lo, hi).
func randInt(rng *rand.Rand, lo, hi int) int {
	return rng.Intn(hi-lo) + lo
}

func sample(rng *rand.Rand, events []models.EquipmentEvent, n int) []models.EquipmentEvent {
	if len(events) <= n {
		return events
	}
	picked := make([]models.EquipmentEvent, len(events))
	copy(picked, events)
	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked[:n]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return roundTo(v, 10) }
func round2(v float64) float64 { return roundTo(v, 100) }
func round3(v float64) float64 { return roundTo(v, 1000) }

func roundTo(v float64, scale float64) float64 {
	if v < 0 {
		return float64(int64(v*scale-0.5)) / scale
	}
	return float64(int64(v*scale+0.5)) / scale
}
