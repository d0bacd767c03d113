package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/conflicts"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var apptColumns = []string{
	"id", "staff_id", "customer_id", "customer_name", "customer_email", "customer_phone",
	"start_time", "end_time", "status", "total_cents", "deposit_cents", "deposit_paid",
	"payment_reference", "payment_session_id", "payment_url",
	"verify_token_hash", "cancel_reason", "created_at", "updated_at",
}

var itemColumns = []string{"service_id", "name", "duration_minutes", "price_cents"}

const apptID = "0b9f3c1e-5d7a-4c2b-9e61-1f0a2b3c4d5e"

func newRepo(t *testing.T) (pgxmock.PgxPoolIface, *AppointmentRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewAppointmentRepository(mock, conflicts.NewIndex(mock, time.UTC), outbox.NewRepository())
}

func pendingRow(start time.Time) *pgxmock.Rows {
	created := start.Add(-72 * time.Hour)
	return pgxmock.NewRows(apptColumns).AddRow(
		apptID, "staff-1", "", "Ana", "ana@example.com", "",
		start, start.Add(time.Hour), "PENDING", int64(4500), int64(2000), false,
		"", "cs_1", "https://pay.test/cs_1",
		"hash", "", created, created,
	)
}

func TestGetLoadsItems(t *testing.T) {
	mock, repo := newRepo(t)
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM appointments").WithArgs(apptID).WillReturnRows(pendingRow(start))
	mock.ExpectQuery("FROM appointment_services").WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows(itemColumns).
			AddRow("cut", "Haircut", 60, int64(4500)))

	appt, ok, err := repo.Get(context.Background(), apptID)
	if err != nil || !ok {
		t.Fatalf("expected appointment, ok=%v err=%v", ok, err)
	}
	if appt.Status != model.StatusPending || appt.TotalCents != 4500 || appt.DepositCents != 2000 {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if !appt.Customer.IsGuest() || appt.PaymentSessionID != "cs_1" {
		t.Fatalf("unexpected customer/session: %+v", appt)
	}
	if len(appt.Items) != 1 || appt.Items[0].PriceCents != 4500 {
		t.Fatalf("unexpected items: %+v", appt.Items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	mock, repo := newRepo(t)
	mock.ExpectQuery("FROM appointments").WithArgs(apptID).WillReturnRows(pgxmock.NewRows(apptColumns))

	_, ok, err := repo.Get(context.Background(), apptID)
	if err != nil || ok {
		t.Fatalf("expected not found, ok=%v err=%v", ok, err)
	}
}

func TestInTxInsertCommits(t *testing.T) {
	mock, repo := newRepo(t)
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID:        apptID,
		StaffID:   "staff-1",
		Customer:  model.Customer{Name: "Ana", Email: "ana@example.com"},
		StartTime: start,
		EndTime:   start.Add(90 * time.Minute),
		Status:    model.StatusPending,
		Items: []model.LineItem{
			{ServiceID: "cut", Name: "Haircut", DurationMinutes: 60, PriceCents: 4500},
			{ServiceID: "wash", Name: "Wash", DurationMinutes: 30, PriceCents: 1500},
		},
		TotalCents:   6000,
		DepositCents: 2000,
		CreatedAt:    now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM staff").WithArgs("staff-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("staff-1"))
	mock.ExpectQuery("FROM appointments").WithArgs("staff-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"start_time", "end_time"}))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(apptID, "staff-1", pgxmock.AnyArg(), "Ana", "ana@example.com", "", start, start.Add(90*time.Minute),
			"PENDING", int64(6000), int64(2000), "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO appointment_services").WithArgs(apptID, 0, "cut", "Haircut", 60, int64(4500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO appointment_services").WithArgs(apptID, 1, "wash", "Wash", 30, int64(1500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outbox.AggregateAppointment, apptID, outbox.EventAppointmentBooked, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		if err := tx.LockStaff(ctx, "staff-1"); err != nil {
			return err
		}
		busy, err := tx.Conflicts().ConflictsFor(ctx, "staff-1", start)
		if err != nil {
			return err
		}
		if len(busy) != 0 {
			t.Errorf("expected no conflicts, got %v", busy)
		}
		if err := tx.Insert(ctx, &appt); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(appt.ID, outbox.EventAppointmentBooked, map[string]any{"appointment_id": appt.ID})
		if err != nil {
			return err
		}
		return tx.Emit(ctx, evt)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertMapsExclusionViolation(t *testing.T) {
	mock, repo := newRepo(t)
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(apptID, "staff-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			start, start.Add(time.Hour), "PENDING", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.Insert(ctx, &model.Appointment{
			ID: apptID, StaffID: "staff-1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusPending,
		})
	})
	if !errors.Is(err, booking.ErrOverlapViolation) {
		t.Fatalf("expected ErrOverlapViolation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkPaidKeepsFirstReference(t *testing.T) {
	mock, repo := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`payment_reference = COALESCE\(payment_reference, \$2\)`).
		WithArgs(apptID, "pi_1", "CONFIRMED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs("missing", "pi_1", "CONFIRMED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		if err := tx.MarkPaid(ctx, apptID, "pi_1", model.StatusConfirmed); err != nil {
			return err
		}
		return tx.MarkPaid(ctx, "missing", "pi_1", model.StatusConfirmed)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindPendingMatchesCustomer(t *testing.T) {
	mock, repo := newRepo(t)
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	slot := model.Interval{Start: start, End: start.Add(time.Hour)}

	mock.ExpectBegin()
	mock.ExpectQuery("status = 'PENDING'").
		WithArgs("staff-1", slot.Start, slot.End, "", "ana@example.com").
		WillReturnRows(pendingRow(start))
	mock.ExpectQuery("FROM appointment_services").WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows(itemColumns))
	mock.ExpectExec("SET verify_token_hash").WithArgs(apptID, "new-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		appt, ok, err := tx.FindPending(ctx, "staff-1", slot, model.Customer{Email: "ana@example.com"})
		if err != nil {
			return err
		}
		if !ok || appt.ID != apptID {
			t.Errorf("expected pending match, got ok=%v appt=%+v", ok, appt)
		}
		return tx.SetVerifyTokenHash(ctx, appt.ID, "new-hash")
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPendingOldestFirst(t *testing.T) {
	mock, repo := newRepo(t)
	cutoff := time.Date(2026, 3, 6, 11, 30, 0, 0, time.UTC)

	mock.ExpectQuery("ORDER BY created_at ASC").WithArgs(cutoff, 100).
		WillReturnRows(pendingRow(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)))

	out, err := repo.ListPending(context.Background(), cutoff, 100)
	if err != nil || len(out) != 1 || out[0].ID != apptID {
		t.Fatalf("unexpected pending list: %+v err=%v", out, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListQueryFilters(t *testing.T) {
	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	query, args, err := listQuery(booking.ListFilter{
		StaffID: "staff-1",
		Status:  model.StatusConfirmed,
		From:    from,
		To:      to,
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("listQuery: %v", err)
	}
	for _, want := range []string{"staff_id = $1", "status = $2", "start_time >= $3", "start_time < $4", "LIMIT 50", "ORDER BY start_time ASC"} {
		if !strings.Contains(query, want) {
			t.Fatalf("expected %q in %s", want, query)
		}
	}
	if len(args) != 4 || args[0] != "staff-1" || args[1] != "CONFIRMED" {
		t.Fatalf("unexpected args: %#v", args)
	}

	query, args, err = listQuery(booking.ListFilter{})
	if err != nil || strings.Contains(query, "WHERE") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %s %v %v", query, args, err)
	}
}

func TestListRunsQuery(t *testing.T) {
	mock, repo := newRepo(t)
	mock.ExpectQuery("FROM appointments").WithArgs("staff-1").
		WillReturnRows(pendingRow(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)))

	out, err := repo.List(context.Background(), booking.ListFilter{StaffID: "staff-1", Limit: 10})
	if err != nil || len(out) != 1 {
		t.Fatalf("unexpected list: %+v err=%v", out, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAttachPaymentSessionNotFound(t *testing.T) {
	mock, repo := newRepo(t)
	mock.ExpectExec("SET payment_session_id").WithArgs(apptID, "cs_1", "https://pay.test").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.AttachPaymentSession(context.Background(), apptID, "cs_1", "https://pay.test"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsConflict(&pgconn.PgError{Code: "23P01"}) || IsConflict(errors.New("x")) {
		t.Fatal("IsConflict misclassified")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) || IsUniqueViolation(&pgconn.PgError{Code: "23P01"}) {
		t.Fatal("IsUniqueViolation misclassified")
	}
	if !IsNotFound(ErrNotFound) {
		t.Fatal("IsNotFound misclassified")
	}
}
