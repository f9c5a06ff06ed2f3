package repository

import (
	"context"
	"sync"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

const defaultEventLogCapacity = 1000

// MemoryEventLog keeps the most recent processed events, dropping the oldest once full.
type MemoryEventLog struct {
	mu       sync.Mutex
	capacity int
	events   []entity.ProcessedEvent
}

func NewMemoryEventLog(capacity int) *MemoryEventLog {
	if capacity <= 0 {
		capacity = defaultEventLogCapacity
	}
	return &MemoryEventLog{capacity: capacity}
}

func (l *MemoryEventLog) Record(_ context.Context, event *entity.ProcessedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, *event)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append([]entity.ProcessedEvent(nil), l.events[over:]...)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (l *MemoryEventLog) Recent(_ context.Context, limit int) ([]entity.ProcessedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}
	out := make([]entity.ProcessedEvent, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}

type EventLogRepository struct {
	db DBTX
}

func NewEventLogRepository(db DBTX) *EventLogRepository {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) Record(ctx context.Context, event *entity.ProcessedEvent) error {
	query := `
		INSERT INTO processed_events (
			event_id, event_type, provider, partners_sent, partners_ok, bus_delivered, fallback, received_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.EventType,
		event.Provider,
		event.PartnersSent,
		event.PartnersOK,
		event.BusDelivered,
		event.Fallback,
		event.ReceivedAt,
	)
	if err != nil && isDuplicateEntryError(err) {
		return nil
	}
	return err
}

func (r *EventLogRepository) Recent(ctx context.Context, limit int) ([]entity.ProcessedEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT event_id, event_type, provider, partners_sent, partners_ok, bus_delivered, fallback, received_at
		FROM processed_events
		ORDER BY received_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]entity.ProcessedEvent, 0)
	for rows.Next() {
		var event entity.ProcessedEvent
		if err := rows.Scan(
			&event.EventID,
			&event.EventType,
			&event.Provider,
			&event.PartnersSent,
			&event.PartnersOK,
			&event.BusDelivered,
			&event.Fallback,
			&event.ReceivedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
