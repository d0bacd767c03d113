package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

const (
	defaultOpenMinute  = 9 * 60
	defaultCloseMinute = 17 * 60
)

// Directory reads and maintains staff, services and working hours.
// It implements hours.Directory and booking.Catalog.
type Directory struct {
	conn db.Conn
}

func NewDirectory(conn db.Conn) *Directory {
	return &Directory{conn: conn}
}

func (d *Directory) GetStaff(ctx context.Context, staffID string) (model.Staff, bool, error) {
	var s model.Staff
	err := d.conn.QueryRow(ctx, `
		SELECT id, name, is_active
		FROM staff
		WHERE id = $1
	`, staffID).Scan(&s.ID, &s.Name, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Staff{}, false, nil
	}
	if err != nil {
		return model.Staff{}, false, err
	}
	return s, true, nil
}

// GetWorkingHours returns the row for weekday. A missing row means closed.
func (d *Directory) GetWorkingHours(ctx context.Context, staffID string, weekday time.Weekday) (model.WorkingHours, bool, error) {
	wh := model.WorkingHours{StaffID: staffID, Weekday: weekday}
	err := d.conn.QueryRow(ctx, `
		SELECT is_active, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1 AND weekday = $2
	`, staffID, int(weekday)).Scan(&wh.Active, &wh.StartMinute, &wh.EndMinute)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WorkingHours{}, false, nil
	}
	if err != nil {
		return model.WorkingHours{}, false, err
	}
	return wh, true, nil
}

func (d *Directory) GetService(ctx context.Context, serviceID string) (model.Service, bool, error) {
	var (
		s     model.Service
		price int64
	)
	err := d.conn.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price_cents, is_active
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&s.ID, &s.Name, &s.DurationMinutes, &price, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, false, nil
	}
	if err != nil {
		return model.Service{}, false, err
	}
	s.PriceCents = model.Cents(price)
	return s, true, nil
}

// StaffCanPerform reports whether serviceID is assigned to an active staff member.
func (d *Directory) StaffCanPerform(ctx context.Context, staffID, serviceID string) (bool, error) {
	var ok bool
	err := d.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM staff_services ss
			JOIN staff s ON s.id = ss.staff_id
			WHERE ss.staff_id = $1 AND ss.service_id = $2 AND s.is_active
		)
	`, staffID, serviceID).Scan(&ok)
	return ok, err
}

func (d *Directory) UpsertService(ctx context.Context, s model.Service) error {
	_, err := d.conn.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price_cents, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price_cents = EXCLUDED.price_cents,
			is_active = EXCLUDED.is_active
	`, s.ID, s.Name, s.DurationMinutes, int64(s.PriceCents), s.Active)
	return err
}

// UpsertStaff writes the staff row. A new staff member gets a default
// Mon-Fri 09:00-17:00 schedule; existing hours are left alone.
func (d *Directory) UpsertStaff(ctx context.Context, s model.Staff) error {
	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO staff (id, name, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			is_active = EXCLUDED.is_active
	`, s.ID, s.Name, s.Active); err != nil {
		return err
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		working := wd >= time.Monday && wd <= time.Friday
		startMin, endMin := defaultOpenMinute, defaultCloseMinute
		if !working {
			startMin, endMin = 0, 0
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_working_hours (staff_id, weekday, is_active, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (staff_id, weekday) DO NOTHING
		`, s.ID, int(wd), working, startMin, endMin); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (d *Directory) SetWorkingHours(ctx context.Context, wh model.WorkingHours) error {
	tag, err := d.conn.Exec(ctx, `
		INSERT INTO staff_working_hours (staff_id, weekday, is_active, start_minute, end_minute)
		SELECT id, $2, $3, $4, $5 FROM staff WHERE id = $1
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET is_active = EXCLUDED.is_active,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, wh.StaffID, int(wh.Weekday), wh.Active, wh.StartMinute, wh.EndMinute)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Directory) AssignService(ctx context.Context, staffID, serviceID string) error {
	_, err := d.conn.Exec(ctx, `
		INSERT INTO staff_services (staff_id, service_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, staffID, serviceID)
	return err
}
