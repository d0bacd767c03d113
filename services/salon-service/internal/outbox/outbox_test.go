package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

var outboxColumns = []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}

func TestPublishBatchWritesAndMarks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns).
			AddRow(int64(7), "evt-7", AggregateAppointment, "appt-1", EventAppointmentConfirmed, []byte(`{"x":1}`), "", "", time.Now()))
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{7}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	p := NewPublisher(mock, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})
	w := &recordingWriter{}
	n, err := p.PublishBatch(context.Background(), w)
	if err != nil || n != 1 {
		t.Fatalf("expected one published event, n=%d err=%v", n, err)
	}
	if len(w.msgs) != 1 || w.msgs[0].Topic != EventAppointmentConfirmed || string(w.msgs[0].Key) != "appt-1" {
		t.Fatalf("unexpected message: %+v", w.msgs)
	}
	if kafkax.HeaderValue(w.msgs[0].Headers, kafkax.HeaderEventID) != "evt-7" {
		t.Fatal("expected event id header")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatchLeavesRowsOnWriteFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns).
			AddRow(int64(8), "evt-8", AggregateAppointment, "appt-2", EventAppointmentBooked, []byte(`{}`), "", "", time.Now()))
	mock.ExpectRollback()

	p := NewPublisher(mock, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})
	if _, err := p.PublishBatch(context.Background(), &recordingWriter{err: errors.New("broker down")}); err == nil {
		t.Fatal("expected write error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertCarriesEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	evt, err := NewAppointmentEvent("appt-3", EventAppointmentBooked, map[string]string{"staff_id": "s1"})
	if err != nil {
		t.Fatalf("NewAppointmentEvent: %v", err)
	}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(AggregateAppointment, "appt-3", EventAppointmentBooked, []byte(`{"staff_id":"s1"}`), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewRepository().Insert(context.Background(), mock, evt); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
