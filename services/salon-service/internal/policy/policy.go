package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// Policy holds the salon's booking rules.
type Policy struct {
	MinAdvance        time.Duration
	MaxAdvance        time.Duration
	SlotStep          time.Duration
	DepositCents      model.Cents
	DepositRefundable bool
	Currency          string
	HoldTTL           time.Duration
	Location          *time.Location
	NotifyOnExpiry    bool
}

func Default() Policy {
	return Policy{
		MinAdvance:   24 * time.Hour,
		MaxAdvance:   30 * 24 * time.Hour,
		SlotStep:     30 * time.Minute,
		DepositCents: 2000,
		Currency:     "usd",
		HoldTTL:      30 * time.Minute,
		Location:     time.UTC,
	}
}

type fileConfig struct {
	MinAdvanceHours   *int    `toml:"min_advance_hours"`
	MaxAdvanceDays    *int    `toml:"max_advance_days"`
	SlotStepMinutes   *int    `toml:"slot_step_minutes"`
	Deposit           *string `toml:"deposit"`
	DepositRefundable *bool   `toml:"deposit_refundable"`
	Currency          *string `toml:"currency"`
	HoldTTLMinutes    *int    `toml:"hold_ttl_minutes"`
	Timezone          *string `toml:"timezone"`
	NotifyOnExpiry    *bool   `toml:"notify_on_expiry"`
}

// Load starts from Default, applies the TOML file at path (skipped when path is
// empty), then environment overrides, and validates the result.
func Load(path string) (Policy, error) {
	p := Default()
	if strings.TrimSpace(path) != "" {
		if err := p.applyFile(path); err != nil {
			return Policy{}, err
		}
	}
	if err := p.applyEnv(); err != nil {
		return Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p *Policy) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var fc fileConfig
	md, err := toml.Decode(string(raw), &fc)
	if err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("policy file %s: unknown keys %v", path, undecoded)
	}

	if fc.MinAdvanceHours != nil {
		p.MinAdvance = time.Duration(*fc.MinAdvanceHours) * time.Hour
	}
	if fc.MaxAdvanceDays != nil {
		p.MaxAdvance = time.Duration(*fc.MaxAdvanceDays) * 24 * time.Hour
	}
	if fc.SlotStepMinutes != nil {
		p.SlotStep = time.Duration(*fc.SlotStepMinutes) * time.Minute
	}
	if fc.Deposit != nil {
		c, err := model.ParseCents(*fc.Deposit)
		if err != nil {
			return fmt.Errorf("policy file deposit: %w", err)
		}
		p.DepositCents = c
	}
	if fc.DepositRefundable != nil {
		p.DepositRefundable = *fc.DepositRefundable
	}
	if fc.Currency != nil {
		p.Currency = strings.ToLower(strings.TrimSpace(*fc.Currency))
	}
	if fc.HoldTTLMinutes != nil {
		p.HoldTTL = time.Duration(*fc.HoldTTLMinutes) * time.Minute
	}
	if fc.Timezone != nil {
		loc, err := time.LoadLocation(*fc.Timezone)
		if err != nil {
			return fmt.Errorf("policy file timezone: %w", err)
		}
		p.Location = loc
	}
	if fc.NotifyOnExpiry != nil {
		p.NotifyOnExpiry = *fc.NotifyOnExpiry
	}
	return nil
}

func (p *Policy) applyEnv() error {
	hours, err := config.Int("MIN_ADVANCE_HOURS", int(p.MinAdvance/time.Hour))
	if err != nil {
		return err
	}
	p.MinAdvance = time.Duration(hours) * time.Hour

	days, err := config.Int("MAX_ADVANCE_DAYS", int(p.MaxAdvance/(24*time.Hour)))
	if err != nil {
		return err
	}
	p.MaxAdvance = time.Duration(days) * 24 * time.Hour

	step, err := config.Int("SLOT_STEP_MINUTES", int(p.SlotStep/time.Minute))
	if err != nil {
		return err
	}
	p.SlotStep = time.Duration(step) * time.Minute

	if raw := config.String("DEPOSIT_AMOUNT", ""); raw != "" {
		c, err := model.ParseCents(raw)
		if err != nil {
			return fmt.Errorf("DEPOSIT_AMOUNT: %w", err)
		}
		p.DepositCents = c
	}
	p.DepositRefundable = config.Bool("DEPOSIT_REFUNDABLE", p.DepositRefundable)
	p.Currency = strings.ToLower(config.String("CURRENCY", p.Currency))

	ttl, err := config.Duration("HOLD_TTL", p.HoldTTL)
	if err != nil {
		return err
	}
	p.HoldTTL = ttl

	if tz := config.String("SALON_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("SALON_TIMEZONE: %w", err)
		}
		p.Location = loc
	}
	p.NotifyOnExpiry = config.Bool("NOTIFY_ON_EXPIRY", p.NotifyOnExpiry)
	return nil
}

func (p Policy) Validate() error {
	var errs []error
	if p.MinAdvance < 0 {
		errs = append(errs, errors.New("min advance must not be negative"))
	}
	if p.MaxAdvance <= p.MinAdvance {
		errs = append(errs, errors.New("max advance must exceed min advance"))
	}
	if p.SlotStep <= 0 || p.SlotStep%time.Minute != 0 {
		errs = append(errs, errors.New("slot step must be a positive whole number of minutes"))
	}
	if p.DepositCents <= 0 {
		errs = append(errs, errors.New("deposit must be positive"))
	}
	if len(p.Currency) != 3 {
		errs = append(errs, fmt.Errorf("currency %q must be a three letter code", p.Currency))
	}
	if p.HoldTTL < time.Minute {
		errs = append(errs, errors.New("hold ttl must be at least one minute"))
	}
	if p.Location == nil {
		errs = append(errs, errors.New("timezone is required"))
	}
	return errors.Join(errs...)
}

// Deposit is the amount charged at booking time, capped at the booking total.
// A free booking has no deposit.
func (p Policy) Deposit(total model.Cents) model.Cents {
	if total < 0 {
		return 0
	}
	if total < p.DepositCents {
		return total
	}
	return p.DepositCents
}
