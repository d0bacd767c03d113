package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/conflicts"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
)

const appointmentColumns = `id::text, staff_id, COALESCE(customer_id, ''), customer_name, customer_email, customer_phone,
	start_time, end_time, status, total_cents, deposit_cents, deposit_paid,
	COALESCE(payment_reference, ''), COALESCE(payment_session_id, ''), COALESCE(payment_url, ''),
	verify_token_hash, COALESCE(cancel_reason, ''), created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// AppointmentRepository is the Postgres implementation of booking.Store.
type AppointmentRepository struct {
	conn   db.Conn
	index  *conflicts.Index
	events *outbox.Repository
}

func NewAppointmentRepository(conn db.Conn, index *conflicts.Index, events *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{conn: conn, index: index, events: events}
}

func (r *AppointmentRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx, repo: r}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, bool, error) {
	appt, err := scanAppointment(r.conn.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	if appt.Items, err = loadItems(ctx, r.conn, id); err != nil {
		return model.Appointment{}, false, err
	}
	return appt, true, nil
}

func (r *AppointmentRepository) AttachPaymentSession(ctx context.Context, id, sessionID, redirectURL string) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE appointments
		SET payment_session_id = $2,
			payment_url = $3,
			updated_at = now()
		WHERE id = $1
	`, id, sessionID, redirectURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending returns unpaid PENDING appointments created before createdBefore, oldest first.
func (r *AppointmentRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Appointment, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'PENDING'
			AND NOT deposit_paid
			AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) List(ctx context.Context, f booking.ListFilter) ([]model.Appointment, error) {
	query, args, err := listQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func listQuery(f booking.ListFilter) (string, []any, error) {
	qb := psql.Select(appointmentColumns).From("appointments")
	if f.StaffID != "" {
		qb = qb.Where(sq.Eq{"staff_id": f.StaffID})
	}
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(f.Status)})
	}
	if !f.From.IsZero() {
		qb = qb.Where(sq.GtOrEq{"start_time": f.From})
	}
	if !f.To.IsZero() {
		qb = qb.Where(sq.Lt{"start_time": f.To})
	}
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	return qb.OrderBy("start_time ASC", "id ASC").ToSql()
}

// pgTx binds the booking transaction operations to one pgx transaction.
type pgTx struct {
	tx   pgx.Tx
	repo *AppointmentRepository
}

// LockStaff takes the staff row lock that serialises bookings for one staff member.
func (t *pgTx) LockStaff(ctx context.Context, staffID string) error {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM staff WHERE id = $1 FOR UPDATE`, staffID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (t *pgTx) Conflicts() availability.ConflictSource {
	return t.repo.index.In(t.tx)
}

func (t *pgTx) FindPending(ctx context.Context, staffID string, slot model.Interval, c model.Customer) (model.Appointment, bool, error) {
	appt, err := scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status = 'PENDING'
			AND NOT deposit_paid
			AND start_time = $2
			AND end_time = $3
			AND (
				(customer_id IS NOT NULL AND customer_id = $4)
				OR (customer_id IS NULL AND $4 = '' AND lower(customer_email) = lower($5))
			)
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, staffID, slot.Start, slot.End, c.ID, c.Email))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	if appt.Items, err = loadItems(ctx, t.tx, appt.ID); err != nil {
		return model.Appointment{}, false, err
	}
	return appt, true, nil
}

func (t *pgTx) Insert(ctx context.Context, a *model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, staff_id, customer_id, customer_name, customer_email, customer_phone,
			start_time, end_time, status, total_cents, deposit_cents, verify_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, a.ID, a.StaffID, nullable(a.Customer.ID), a.Customer.Name, a.Customer.Email, a.Customer.Phone,
		a.StartTime, a.EndTime, string(a.Status), int64(a.TotalCents), int64(a.DepositCents), a.VerifyTokenHash, a.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return fmt.Errorf("%w: %v", booking.ErrOverlapViolation, err)
		}
		return err
	}
	for i, it := range a.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO appointment_services (appointment_id, position, service_id, name, duration_minutes, price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, a.ID, i, it.ServiceID, it.Name, it.DurationMinutes, int64(it.PriceCents)); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) GetForUpdate(ctx context.Context, id string) (model.Appointment, bool, error) {
	appt, err := scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	if appt.Items, err = loadItems(ctx, t.tx, id); err != nil {
		return model.Appointment{}, false, err
	}
	return appt, true, nil
}

func (t *pgTx) SetVerifyTokenHash(ctx context.Context, id, hash string) error {
	return t.update(ctx, `
		UPDATE appointments
		SET verify_token_hash = $2,
			updated_at = now()
		WHERE id = $1
	`, id, hash)
}

// MarkPaid records the deposit. The first payment reference wins.
func (t *pgTx) MarkPaid(ctx context.Context, id, ref string, status model.Status) error {
	return t.update(ctx, `
		UPDATE appointments
		SET deposit_paid = true,
			payment_reference = COALESCE(payment_reference, $2),
			status = $3,
			updated_at = now()
		WHERE id = $1
	`, id, ref, string(status))
}

func (t *pgTx) SetStatus(ctx context.Context, id string, status model.Status, reason string) error {
	return t.update(ctx, `
		UPDATE appointments
		SET status = $2,
			cancel_reason = COALESCE(NULLIF($3, ''), cancel_reason),
			updated_at = now()
		WHERE id = $1
	`, id, string(status), reason)
}

func (t *pgTx) Emit(ctx context.Context, evt outbox.Event) error {
	return t.repo.events.Insert(ctx, t.tx, evt)
}

func (t *pgTx) update(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a       model.Appointment
		status  string
		total   int64
		deposit int64
	)
	err := row.Scan(
		&a.ID,
		&a.StaffID,
		&a.Customer.ID,
		&a.Customer.Name,
		&a.Customer.Email,
		&a.Customer.Phone,
		&a.StartTime,
		&a.EndTime,
		&status,
		&total,
		&deposit,
		&a.DepositPaid,
		&a.PaymentReference,
		&a.PaymentSessionID,
		&a.PaymentURL,
		&a.VerifyTokenHash,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.TotalCents = model.Cents(total)
	a.DepositCents = model.Cents(deposit)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func loadItems(ctx context.Context, q db.Querier, appointmentID string) ([]model.LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT service_id, name, duration_minutes, price_cents
		FROM appointment_services
		WHERE appointment_id = $1
		ORDER BY position ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.LineItem
	for rows.Next() {
		var (
			it    model.LineItem
			price int64
		)
		if err := rows.Scan(&it.ServiceID, &it.Name, &it.DurationMinutes, &price); err != nil {
			return nil, err
		}
		it.PriceCents = model.Cents(price)
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
