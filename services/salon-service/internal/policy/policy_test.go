package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

func TestDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.MinAdvance != 24*time.Hour || p.MaxAdvance != 30*24*time.Hour || p.SlotStep != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.HoldTTL != 30*time.Minute || p.Location != time.UTC {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "salon.toml")
	body := `
min_advance_hours = 2
slot_step_minutes = 15
deposit = "25.50"
deposit_refundable = true
currency = "EUR"
timezone = "Europe/Berlin"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SLOT_STEP_MINUTES", "20")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.MinAdvance != 2*time.Hour {
		t.Fatalf("expected file min advance, got %s", p.MinAdvance)
	}
	if p.SlotStep != 20*time.Minute {
		t.Fatalf("expected env to override step, got %s", p.SlotStep)
	}
	if p.DepositCents != 2550 || !p.DepositRefundable || p.Currency != "eur" {
		t.Fatalf("unexpected deposit settings: %+v", p)
	}
	if p.Location.String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %s", p.Location)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salon.toml")
	if err := os.WriteFile(path, []byte("slot_stepp = 10\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestValidate(t *testing.T) {
	p := Default()
	p.DepositCents = 0
	if err := p.Validate(); err == nil {
		t.Fatal("expected zero deposit to be rejected")
	}
	p = Default()
	p.MaxAdvance = p.MinAdvance
	if err := p.Validate(); err == nil {
		t.Fatal("expected max advance <= min advance to be rejected")
	}
	t.Setenv("HOLD_TTL", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected malformed HOLD_TTL to fail")
	}
}

func TestDepositCappedAtTotal(t *testing.T) {
	p := Default()
	if got := p.Deposit(model.Cents(1500)); got != 1500 {
		t.Fatalf("expected deposit capped at 1500, got %d", got)
	}
	if got := p.Deposit(model.Cents(9000)); got != p.DepositCents {
		t.Fatalf("expected full deposit, got %d", got)
	}
	if got := p.Deposit(0); got != 0 {
		t.Fatalf("expected no deposit for a free booking, got %d", got)
	}
}
