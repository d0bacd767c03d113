package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// seedFile is the catalogue loaded by "salon-migrate seed":
//
//	[[services]]
//	id = "cut"
//	name = "Haircut"
//	duration_minutes = 60
//	price = "45.00"
//
//	[[staff]]
//	id = "staff-1"
//	name = "Alex"
//	services = ["cut"]
//	hours = [{ weekday = "saturday", start = "10:00", end = "14:00" }]
type seedFile struct {
	Services []seedService `toml:"services"`
	Staff    []seedStaff   `toml:"staff"`
}

type seedService struct {
	ID              string `toml:"id"`
	Name            string `toml:"name"`
	DurationMinutes int    `toml:"duration_minutes"`
	Price           string `toml:"price"`
	Inactive        bool   `toml:"inactive"`
}

type seedStaff struct {
	ID       string      `toml:"id"`
	Name     string      `toml:"name"`
	Inactive bool        `toml:"inactive"`
	Services []string    `toml:"services"`
	Hours    []seedHours `toml:"hours"`
}

type seedHours struct {
	Weekday string `toml:"weekday"`
	Start   string `toml:"start"`
	End     string `toml:"end"`
	Closed  bool   `toml:"closed"`
}

type catalogWriter interface {
	UpsertService(ctx context.Context, s model.Service) error
	UpsertStaff(ctx context.Context, s model.Staff) error
	SetWorkingHours(ctx context.Context, wh model.WorkingHours) error
	AssignService(ctx context.Context, staffID, serviceID string) error
}

type seedPlan struct {
	services []model.Service
	staff    []model.Staff
	hours    []model.WorkingHours
	assign   [][2]string
}

func loadSeed(path string) (seedPlan, error) {
	var f seedFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return seedPlan{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return seedPlan{}, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}
	return f.plan()
}

func (f seedFile) plan() (seedPlan, error) {
	var p seedPlan
	for _, s := range f.Services {
		if strings.TrimSpace(s.ID) == "" || s.DurationMinutes <= 0 {
			return p, fmt.Errorf("service %q: id and a positive duration_minutes are required", s.ID)
		}
		price, err := model.ParseCents(s.Price)
		if err != nil {
			return p, fmt.Errorf("service %s price: %w", s.ID, err)
		}
		p.services = append(p.services, model.Service{
			ID:              s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			PriceCents:      price,
			Active:          !s.Inactive,
		})
	}
	for _, st := range f.Staff {
		if strings.TrimSpace(st.ID) == "" {
			return p, fmt.Errorf("staff entry without id")
		}
		p.staff = append(p.staff, model.Staff{ID: st.ID, Name: st.Name, Active: !st.Inactive})
		for _, svc := range st.Services {
			p.assign = append(p.assign, [2]string{st.ID, svc})
		}
		for _, h := range st.Hours {
			wh, err := h.workingHours(st.ID)
			if err != nil {
				return p, fmt.Errorf("staff %s hours: %w", st.ID, err)
			}
			p.hours = append(p.hours, wh)
		}
	}
	return p, nil
}

func (h seedHours) workingHours(staffID string) (model.WorkingHours, error) {
	day, err := parseWeekday(h.Weekday)
	if err != nil {
		return model.WorkingHours{}, err
	}
	wh := model.WorkingHours{StaffID: staffID, Weekday: day, Active: !h.Closed}
	if h.Closed {
		return wh, nil
	}
	if wh.StartMinute, err = parseClock(h.Start); err != nil {
		return wh, err
	}
	if wh.EndMinute, err = parseClock(h.End); err != nil {
		return wh, err
	}
	if wh.EndMinute <= wh.StartMinute {
		return wh, fmt.Errorf("%s: end %s must be after start %s", h.Weekday, h.End, h.Start)
	}
	return wh, nil
}

// apply writes services first so staff assignments can reference them.
func (p seedPlan) apply(ctx context.Context, w catalogWriter) error {
	for _, s := range p.services {
		if err := w.UpsertService(ctx, s); err != nil {
			return fmt.Errorf("service %s: %w", s.ID, err)
		}
	}
	for _, s := range p.staff {
		if err := w.UpsertStaff(ctx, s); err != nil {
			return fmt.Errorf("staff %s: %w", s.ID, err)
		}
	}
	for _, wh := range p.hours {
		if err := w.SetWorkingHours(ctx, wh); err != nil {
			return fmt.Errorf("staff %s %s hours: %w", wh.StaffID, wh.Weekday, err)
		}
	}
	for _, a := range p.assign {
		if err := w.AssignService(ctx, a[0], a[1]); err != nil {
			return fmt.Errorf("assign %s to %s: %w", a[1], a[0], err)
		}
	}
	return nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// parseClock reads "HH:MM" as minutes after midnight; "24:00" is end of day.
func parseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}
