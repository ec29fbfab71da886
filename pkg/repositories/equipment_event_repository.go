package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// EquipmentEventRepository defines the interface for sensor event data access.
type EquipmentEventRepository interface {
	// Upsert inserts or replaces sensor readings keyed by
	// (equipment_id, event_timestamp).
	Upsert(ctx context.Context, events []models.EquipmentEvent) error

	// ListAll retrieves every sensor event.
	ListAll(ctx context.Context) ([]models.EquipmentEvent, error)

	// ListIngestedAfter retrieves events with an ingestion timestamp strictly
	// after the watermark, for incremental loads.
	ListIngestedAfter(ctx context.Context, watermark time.Time) ([]models.EquipmentEvent, error)
}

type equipmentEventRepository struct {
	db *database.DB
}

// NewEquipmentEventRepository creates a new equipment event repository.
func NewEquipmentEventRepository(db *database.DB) EquipmentEventRepository {
	return &equipmentEventRepository{db: db}
}

const equipmentEventColumns = `
	equipment_id, event_timestamp, status, temperature_c, pressure_torr,
	rf_power_w, ingestion_timestamp`

func (r *equipmentEventRepository) Upsert(ctx context.Context, events []models.EquipmentEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO equipment_events (
			equipment_id, event_timestamp, status, temperature_c, pressure_torr,
			rf_power_w, ingestion_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (equipment_id, event_timestamp) DO UPDATE SET
			status = EXCLUDED.status,
			temperature_c = EXCLUDED.temperature_c,
			pressure_torr = EXCLUDED.pressure_torr,
			rf_power_w = EXCLUDED.rf_power_w,
			ingestion_timestamp = EXCLUDED.ingestion_timestamp`

	for _, ev := range events {
		batch.Queue(query,
			ev.EquipmentID, ev.EventTimestamp, ev.Status, ev.TemperatureC, ev.PressureTorr,
			ev.RFPowerW, ev.IngestionTimestamp,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert equipment event: %w", err)
		}
	}
	return nil
}

func (r *equipmentEventRepository) ListAll(ctx context.Context) ([]models.EquipmentEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM equipment_events", equipmentEventColumns)
	return r.list(ctx, query)
}

func (r *equipmentEventRepository) ListIngestedAfter(ctx context.Context, watermark time.Time) ([]models.EquipmentEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM equipment_events WHERE ingestion_timestamp > $1", equipmentEventColumns)
	return r.list(ctx, query, watermark)
}

func (r *equipmentEventRepository) list(ctx context.Context, query string, args ...any) ([]models.EquipmentEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment events: %w", err)
	}
	defer rows.Close()

	var events []models.EquipmentEvent
	for rows.Next() {
		var ev models.EquipmentEvent
		if err := rows.Scan(
			&ev.EquipmentID, &ev.EventTimestamp, &ev.Status, &ev.TemperatureC, &ev.PressureTorr,
			&ev.RFPowerW, &ev.IngestionTimestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan equipment event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate equipment events: %w", err)
	}
	return events, nil
}
