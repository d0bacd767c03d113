package outbox

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository reads and writes outbox_events through whichever Querier the
// caller holds, so events commit atomically with the appointment change.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stamps evt with the trace context of ctx.
func (r *Repository) Insert(ctx context.Context, q db.Querier, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	query, args, err := psql.Insert("outbox_events").
		Columns("aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate").
		Values(evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate).
		ToSql()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}

// Record is an unpublished row. Field order matches the FetchUnpublished
// projection.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// FetchUnpublished locks up to limit rows in id order. Concurrent publishers
// skip each other's rows.
func (r *Repository) FetchUnpublished(ctx context.Context, q db.Querier, limit int) ([]Record, error) {
	query, args, err := psql.Select(
		"id", "event_id::text", "aggregate_type", "aggregate_id", "event_type", "payload",
		"COALESCE(traceparent, '')", "COALESCE(tracestate, '')", "created_at",
	).
		From("outbox_events").
		Where("published_at IS NULL").
		OrderBy("id").
		Suffix("LIMIT ? FOR UPDATE SKIP LOCKED", limit).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Record])
}

func (r *Repository) MarkPublished(ctx context.Context, q db.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Update("outbox_events").
		Set("published_at", sq.Expr("now()")).
		Where("id = ANY(?)", ids).
		ToSql()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}
