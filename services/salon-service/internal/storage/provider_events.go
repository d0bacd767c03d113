package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

type ProviderEvent struct {
	Provider      string
	EventID       string
	EventType     string
	CorrelationID string
	Payload       []byte
	ReceivedAt    time.Time
}

// ProviderEventRepository keeps an audit row per verified webhook delivery.
type ProviderEventRepository struct {
	q db.Querier
}

func NewProviderEventRepository(q db.Querier) *ProviderEventRepository {
	return &ProviderEventRepository{q: q}
}

// Record stores evt once. A redelivery of the same provider event id returns
// ErrDuplicateProviderEvent.
func (r *ProviderEventRepository) Record(ctx context.Context, evt ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		INSERT INTO provider_events (provider, event_id, event_type, correlation_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, evt.Provider, evt.EventID, evt.EventType, nullable(evt.CorrelationID), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}
