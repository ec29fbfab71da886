package models

import (
	"sort"
	"time"
)

// Snapshot is the immutable entity collection one analysis run computes over.
// It is built once from loaded records and then only read; every index is a
// plain key-based lookup so the entity layer stays a pure data layer. All
// slice-valued lookups return records in a deterministic order (time, then
// identifier) so downstream computations are reproducible regardless of
// load order.
type Snapshot struct {
	WaferTests        []*WaferTest
	Batches           []*Batch
	Equipment         []*Equipment
	ProcessSteps      []*ProcessStep
	EquipmentEvents   []*EquipmentEvent
	MaintenanceEvents []*MaintenanceEvent

	testsByWafer     map[string][]*WaferTest
	testsByBatch     map[string][]*WaferTest
	testsByEquipment map[string][]*WaferTest
	batchByID        map[string]*Batch
	equipmentByID    map[string]*Equipment
	stepByID         map[int]*ProcessStep
	eventsByEquip    map[string][]*EquipmentEvent
	maintByEquip     map[string][]*MaintenanceEvent

	observedStart time.Time
	observedEnd   time.Time
}

// NewSnapshot indexes the supplied records. The snapshot keeps pointers into
// the input slices; the caller must not mutate them after handoff.
func NewSnapshot(
	tests []WaferTest,
	batches []Batch,
	equipment []Equipment,
	steps []ProcessStep,
	events []EquipmentEvent,
	maintenance []MaintenanceEvent,
) *Snapshot {
	s := &Snapshot{
		WaferTests:        make([]*WaferTest, len(tests)),
		Batches:           make([]*Batch, len(batches)),
		Equipment:         make([]*Equipment, len(equipment)),
		ProcessSteps:      make([]*ProcessStep, len(steps)),
		EquipmentEvents:   make([]*EquipmentEvent, len(events)),
		MaintenanceEvents: make([]*MaintenanceEvent, len(maintenance)),
		testsByWafer:      make(map[string][]*WaferTest),
		testsByBatch:      make(map[string][]*WaferTest),
		testsByEquipment:  make(map[string][]*WaferTest),
		batchByID:         make(map[string]*Batch, len(batches)),
		equipmentByID:     make(map[string]*Equipment, len(equipment)),
		stepByID:          make(map[int]*ProcessStep, len(steps)),
		eventsByEquip:     make(map[string][]*EquipmentEvent),
		maintByEquip:      make(map[string][]*MaintenanceEvent),
	}

	for i := range tests {
		s.WaferTests[i] = &tests[i]
	}
	for i := range batches {
		s.Batches[i] = &batches[i]
	}
	for i := range equipment {
		s.Equipment[i] = &equipment[i]
	}
	for i := range steps {
		s.ProcessSteps[i] = &steps[i]
	}
	for i := range events {
		s.EquipmentEvents[i] = &events[i]
	}
	for i := range maintenance {
		s.MaintenanceEvents[i] = &maintenance[i]
	}

	sort.Slice(s.WaferTests, func(i, j int) bool {
		a, b := s.WaferTests[i], s.WaferTests[j]
		if a.WaferID != b.WaferID {
			return a.WaferID < b.WaferID
		}
		return a.ProcessStepID < b.ProcessStepID
	})
	sort.Slice(s.Batches, func(i, j int) bool { return s.Batches[i].BatchID < s.Batches[j].BatchID })
	sort.Slice(s.Equipment, func(i, j int) bool { return s.Equipment[i].EquipmentID < s.Equipment[j].EquipmentID })
	sort.Slice(s.ProcessSteps, func(i, j int) bool { return s.ProcessSteps[i].StepID < s.ProcessSteps[j].StepID })
	sort.Slice(s.EquipmentEvents, func(i, j int) bool {
		a, b := s.EquipmentEvents[i], s.EquipmentEvents[j]
		if a.EquipmentID != b.EquipmentID {
			return a.EquipmentID < b.EquipmentID
		}
		return a.EventTimestamp.Before(b.EventTimestamp)
	})
	sort.Slice(s.MaintenanceEvents, func(i, j int) bool {
		a, b := s.MaintenanceEvents[i], s.MaintenanceEvents[j]
		if a.EquipmentID != b.EquipmentID {
			return a.EquipmentID < b.EquipmentID
		}
		if !a.EventTimestamp.Equal(b.EventTimestamp) {
			return a.EventTimestamp.Before(b.EventTimestamp)
		}
		return a.EventID < b.EventID
	})

	for _, t := range s.WaferTests {
		s.testsByWafer[t.WaferID] = append(s.testsByWafer[t.WaferID], t)
		s.testsByBatch[t.BatchID] = append(s.testsByBatch[t.BatchID], t)
		s.testsByEquipment[t.EquipmentID] = append(s.testsByEquipment[t.EquipmentID], t)
		s.extendObserved(t.TestTimestamp)
	}
	for _, b := range s.Batches {
		s.batchByID[b.BatchID] = b
	}
	for _, e := range s.Equipment {
		s.equipmentByID[e.EquipmentID] = e
	}
	for _, p := range s.ProcessSteps {
		s.stepByID[p.StepID] = p
	}
	for _, ev := range s.EquipmentEvents {
		s.eventsByEquip[ev.EquipmentID] = append(s.eventsByEquip[ev.EquipmentID], ev)
		s.extendObserved(ev.EventTimestamp)
	}
	for _, m := range s.MaintenanceEvents {
		s.maintByEquip[m.EquipmentID] = append(s.maintByEquip[m.EquipmentID], m)
	}

	return s
}

func (s *Snapshot) extendObserved(t time.Time) {
	if s.observedStart.IsZero() || t.Before(s.observedStart) {
		s.observedStart = t
	}
	if t.After(s.observedEnd) {
		s.observedEnd = t
	}
}

// ObservedStart is the earliest test or event timestamp in the snapshot.
func (s *Snapshot) ObservedStart() time.Time { return s.observedStart }

// ObservedEnd is the latest test or event timestamp in the snapshot. Trailing
// windows anchor here so recomputation over the same snapshot is idempotent.
func (s *Snapshot) ObservedEnd() time.Time { return s.observedEnd }

// TestsByWafer returns the wafer's test records ordered by step ordinal.
func (s *Snapshot) TestsByWafer(waferID string) []*WaferTest { return s.testsByWafer[waferID] }

// TestsByBatch returns all test records for a batch, ordered by wafer then step.
func (s *Snapshot) TestsByBatch(batchID string) []*WaferTest { return s.testsByBatch[batchID] }

// TestsByEquipment returns all test records run on a tool.
func (s *Snapshot) TestsByEquipment(equipmentID string) []*WaferTest {
	return s.testsByEquipment[equipmentID]
}

// BatchByID resolves a batch; nil when the reference is orphaned.
func (s *Snapshot) BatchByID(batchID string) *Batch { return s.batchByID[batchID] }

// EquipmentByID resolves a tool; nil when the reference is orphaned.
func (s *Snapshot) EquipmentByID(equipmentID string) *Equipment { return s.equipmentByID[equipmentID] }

// StepByID resolves a process step; nil when the reference is orphaned.
func (s *Snapshot) StepByID(stepID int) *ProcessStep { return s.stepByID[stepID] }

// WaferIDs returns all distinct wafer identifiers in ascending order.
func (s *Snapshot) WaferIDs() []string {
	ids := make([]string, 0, len(s.testsByWafer))
	for id := range s.testsByWafer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BatchIDs returns all batch identifiers in ascending order.
func (s *Snapshot) BatchIDs() []string {
	ids := make([]string, 0, len(s.batchByID))
	for id := range s.batchByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EquipmentIDs returns all registered equipment identifiers in ascending order.
func (s *Snapshot) EquipmentIDs() []string {
	ids := make([]string, 0, len(s.equipmentByID))
	for id := range s.equipmentByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EventsByEquipment returns the tool's sensor events in ascending time order.
func (s *Snapshot) EventsByEquipment(equipmentID string) []*EquipmentEvent {
	return s.eventsByEquip[equipmentID]
}

// EventsBetween returns the tool's events with from <= timestamp <= to.
func (s *Snapshot) EventsBetween(equipmentID string, from, to time.Time) []*EquipmentEvent {
	events := s.eventsByEquip[equipmentID]
	lo := sort.Search(len(events), func(i int) bool {
		return !events[i].EventTimestamp.Before(from)
	})
	hi := sort.Search(len(events), func(i int) bool {
		return events[i].EventTimestamp.After(to)
	})
	if lo >= hi {
		return nil
	}
	return events[lo:hi]
}

// MaintenanceByEquipment returns the tool's maintenance history in ascending
// time order.
func (s *Snapshot) MaintenanceByEquipment(equipmentID string) []*MaintenanceEvent {
	return s.maintByEquip[equipmentID]
}

// MostRecentMaintenanceBefore returns the latest maintenance event on the
// tool strictly before t, or nil. Equal timestamps resolve to the highest
// event ID, so the answer is stable across load orders.
func (s *Snapshot) MostRecentMaintenanceBefore(equipmentID string, t time.Time) *MaintenanceEvent {
	events := s.maintByEquip[equipmentID]
	idx := sort.Search(len(events), func(i int) bool {
		return !events[i].EventTimestamp.Before(t)
	})
	if idx == 0 {
		return nil
	}
	return events[idx-1]
}

// MaintenanceBetween reports whether the tool had any maintenance event with
// from < timestamp <= to.
func (s *Snapshot) MaintenanceBetween(equipmentID string, from, to time.Time) bool {
	for _, m := range s.maintByEquip[equipmentID] {
		if m.EventTimestamp.After(from) && !m.EventTimestamp.After(to) {
			return true
		}
	}
	return false
}
