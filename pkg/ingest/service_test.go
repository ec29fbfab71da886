package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/config"
	"github.com/luyangsi/semiconductors-data-platform/pkg/simulate"
)

func TestLoadSnapshotRoundtrip(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ds, err := simulate.NewSimulatorService(42, logger).Generate(start, 2)
	require.NoError(t, err)
	require.NoError(t, simulate.WriteCSV(ds, dir, logger))

	svc := NewIngestService(config.IngestConfig{DataDir: dir}, logger)
	snap, err := svc.LoadSnapshot(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.WaferTests, len(ds.WaferTests))
	assert.Len(t, snap.Batches, len(ds.Batches))
	assert.Len(t, snap.Equipment, len(ds.Equipment))
	assert.Len(t, snap.ProcessSteps, len(ds.ProcessSteps))
	assert.Len(t, snap.EquipmentEvents, len(ds.EquipmentEvents))
	assert.Len(t, snap.MaintenanceEvents, len(ds.MaintenanceEvents))

	// RF power survives the CSV roundtrip as present-or-absent.
	typeByID := make(map[string]string)
	for _, eq := range ds.Equipment {
		typeByID[eq.EquipmentID] = eq.EquipmentType
	}
	for _, ev := range snap.EquipmentEvents {
		eqType := typeByID[ev.EquipmentID]
		if eqType == "ETCH" || eqType == "CVD" {
			assert.NotNil(t, ev.RFPowerW)
		} else {
			assert.Nil(t, ev.RFPowerW)
		}
	}

	assert.False(t, snap.ObservedEnd().IsZero())
}

func TestLoadSnapshotMissingDirectory(t *testing.T) {
	svc := NewIngestService(config.IngestConfig{DataDir: "does/not/exist"}, zap.NewNop())
	_, err := svc.LoadSnapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read test results")
}
