package storage

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestProviderEventRecordDedupes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := NewProviderEventRepository(mock)

	evt := ProviderEvent{
		Provider:      "stripe",
		EventID:       "evt_1",
		EventType:     "checkout.session.completed",
		CorrelationID: "appt-1",
		Payload:       []byte(`{"id":"evt_1"}`),
	}
	mock.ExpectExec("INSERT INTO provider_events").
		WithArgs("stripe", "evt_1", "checkout.session.completed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO provider_events").
		WithArgs("stripe", "evt_1", "checkout.session.completed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := repo.Record(context.Background(), evt); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := repo.Record(context.Background(), evt); !errors.Is(err, ErrDuplicateProviderEvent) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProviderEventRecordRejectsInvalidPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	err = NewProviderEventRepository(mock).Record(context.Background(), ProviderEvent{
		Provider: "stripe",
		EventID:  "evt_2",
		Payload:  []byte("not json"),
	})
	if err == nil {
		t.Fatal("expected error for invalid payload")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected query: %v", err)
	}
}
