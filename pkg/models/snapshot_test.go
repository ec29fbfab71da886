package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapBase = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return snapBase.Add(time.Duration(hours) * time.Hour) }

func buildSnapshot() *Snapshot {
	tests := []WaferTest{
		{WaferID: "W01", BatchID: "B1", ProcessStepID: 2, EquipmentID: "ETC001", PassFail: Fail, TestTimestamp: at(10)},
		{WaferID: "W01", BatchID: "B1", ProcessStepID: 1, EquipmentID: "LIT001", PassFail: Pass, TestTimestamp: at(9)},
		{WaferID: "W02", BatchID: "B1", ProcessStepID: 1, EquipmentID: "LIT001", PassFail: Pass, TestTimestamp: at(9)},
	}
	batches := []Batch{
		{BatchID: "B2", StartTime: at(24)},
		{BatchID: "B1", StartTime: at(8)},
	}
	equipment := []Equipment{
		{EquipmentID: "LIT001", EquipmentType: "LITHO"},
		{EquipmentID: "ETC001", EquipmentType: "ETCH"},
	}
	events := []EquipmentEvent{
		{EquipmentID: "ETC001", EventTimestamp: at(12), Status: StatusAlarm},
		{EquipmentID: "ETC001", EventTimestamp: at(4), Status: StatusRunning},
		{EquipmentID: "ETC001", EventTimestamp: at(8), Status: StatusRunning},
	}
	maintenance := []MaintenanceEvent{
		{EventID: "PM_ETC001_B", EquipmentID: "ETC001", EventType: MaintenancePreventive, EventTimestamp: at(6)},
		{EventID: "PM_ETC001_A", EquipmentID: "ETC001", EventType: MaintenancePreventive, EventTimestamp: at(6)},
		{EventID: "CM_ETC001_X", EquipmentID: "ETC001", EventType: MaintenanceCorrective, EventTimestamp: at(20)},
	}
	return NewSnapshot(tests, batches, equipment, nil, events, maintenance)
}

func TestSnapshotOrdering(t *testing.T) {
	snap := buildSnapshot()

	// Wafer tests sort by wafer then step regardless of input order.
	require.Len(t, snap.WaferTests, 3)
	assert.Equal(t, "W01", snap.WaferTests[0].WaferID)
	assert.Equal(t, 1, snap.WaferTests[0].ProcessStepID)
	assert.Equal(t, 2, snap.WaferTests[1].ProcessStepID)

	assert.Equal(t, []string{"B1", "B2"}, snap.BatchIDs())
	assert.Equal(t, []string{"ETC001", "LIT001"}, snap.EquipmentIDs())
	assert.Equal(t, []string{"W01", "W02"}, snap.WaferIDs())

	events := snap.EventsByEquipment("ETC001")
	require.Len(t, events, 3)
	assert.True(t, events[0].EventTimestamp.Before(events[1].EventTimestamp))
	assert.True(t, events[1].EventTimestamp.Before(events[2].EventTimestamp))
}

func TestSnapshotObservedRange(t *testing.T) {
	snap := buildSnapshot()
	assert.Equal(t, at(4), snap.ObservedStart(), "earliest sensor event")
	assert.Equal(t, at(12), snap.ObservedEnd(), "latest of tests and events")
}

func TestEventsBetween(t *testing.T) {
	snap := buildSnapshot()

	// Bounds are inclusive on both ends.
	events := snap.EventsBetween("ETC001", at(4), at(8))
	require.Len(t, events, 2)
	assert.Equal(t, at(4), events[0].EventTimestamp)
	assert.Equal(t, at(8), events[1].EventTimestamp)

	assert.Len(t, snap.EventsBetween("ETC001", at(5), at(7)), 0)
	assert.Len(t, snap.EventsBetween("ETC001", at(0), at(48)), 3)
	assert.Empty(t, snap.EventsBetween("NOPE01", at(0), at(48)))
}

func TestMostRecentMaintenanceBefore(t *testing.T) {
	snap := buildSnapshot()

	// Strictly before: an event at the cutoff itself does not count.
	assert.Nil(t, snap.MostRecentMaintenanceBefore("ETC001", at(6)))

	m := snap.MostRecentMaintenanceBefore("ETC001", at(7))
	require.NotNil(t, m)
	assert.Equal(t, "PM_ETC001_B", m.EventID, "equal timestamps resolve to the highest event ID")

	m = snap.MostRecentMaintenanceBefore("ETC001", at(48))
	require.NotNil(t, m)
	assert.Equal(t, "CM_ETC001_X", m.EventID)

	assert.Nil(t, snap.MostRecentMaintenanceBefore("NOPE01", at(48)))
}

func TestMaintenanceBetween(t *testing.T) {
	snap := buildSnapshot()

	// Half-open window: exclusive at from, inclusive at to.
	assert.False(t, snap.MaintenanceBetween("ETC001", at(6), at(10)))
	assert.True(t, snap.MaintenanceBetween("ETC001", at(5), at(6)))
	assert.True(t, snap.MaintenanceBetween("ETC001", at(10), at(20)))
	assert.False(t, snap.MaintenanceBetween("ETC001", at(21), at(48)))
	assert.False(t, snap.MaintenanceBetween("NOPE01", at(0), at(48)))
}

func TestSnapshotOrphanLookups(t *testing.T) {
	snap := buildSnapshot()

	assert.Nil(t, snap.BatchByID("B_MISSING"))
	assert.Nil(t, snap.EquipmentByID("NOPE01"))
	assert.Nil(t, snap.StepByID(99))
	assert.Empty(t, snap.TestsByWafer("W99"))
	assert.Empty(t, snap.TestsByBatch("B_MISSING"))
	assert.Empty(t, snap.TestsByEquipment("NOPE01"))
	assert.Empty(t, snap.MaintenanceByEquipment("NOPE01"))
}

func TestEmptySnapshot(t *testing.T) {
	snap := NewSnapshot(nil, nil, nil, nil, nil, nil)
	assert.True(t, snap.ObservedEnd().IsZero())
	assert.Empty(t, snap.BatchIDs())
	assert.Empty(t, snap.EquipmentIDs())
}
