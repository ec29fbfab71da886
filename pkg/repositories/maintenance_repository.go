package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// MaintenanceRepository defines the interface for maintenance log data access.
type MaintenanceRepository interface {
	Upsert(ctx context.Context, events []models.MaintenanceEvent) error
	ListAll(ctx context.Context) ([]models.MaintenanceEvent, error)
}

type maintenanceRepository struct {
	db *database.DB
}

// NewMaintenanceRepository creates a new maintenance repository.
func NewMaintenanceRepository(db *database.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) Upsert(ctx context.Context, events []models.MaintenanceEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO maintenance_events (
			event_id, equipment_id, event_type, event_timestamp, duration_hours,
			parts_replaced, technician_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO UPDATE SET
			equipment_id = EXCLUDED.equipment_id,
			event_type = EXCLUDED.event_type,
			event_timestamp = EXCLUDED.event_timestamp,
			duration_hours = EXCLUDED.duration_hours,
			parts_replaced = EXCLUDED.parts_replaced,
			technician_id = EXCLUDED.technician_id`

	for _, m := range events {
		batch.Queue(query,
			m.EventID, m.EquipmentID, m.EventType, m.EventTimestamp, m.DurationHours,
			m.PartsReplaced, m.TechnicianID,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert maintenance event: %w", err)
		}
	}
	return nil
}

func (r *maintenanceRepository) ListAll(ctx context.Context) ([]models.MaintenanceEvent, error) {
	query := `
		SELECT event_id, equipment_id, event_type, event_timestamp, duration_hours,
			parts_replaced, technician_id
		FROM maintenance_events`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance events: %w", err)
	}
	defer rows.Close()

	var events []models.MaintenanceEvent
	for rows.Next() {
		var m models.MaintenanceEvent
		if err := rows.Scan(
			&m.EventID, &m.EquipmentID, &m.EventType, &m.EventTimestamp, &m.DurationHours,
			&m.PartsReplaced, &m.TechnicianID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance event: %w", err)
		}
		events = append(events, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate maintenance events: %w", err)
	}
	return events, nil
}
