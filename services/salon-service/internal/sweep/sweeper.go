package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Tasks are the periodic booking maintenance steps. Reconcile runs first so a
// paid hold whose webhook was lost is confirmed rather than expired.
type Tasks interface {
	ReconcilePending(ctx context.Context) (int, error)
	ExpireStale(ctx context.Context) (int, error)
}

// LockFunc runs fn only if this instance wins the sweep lock; it reports
// whether fn ran.
type LockFunc func(ctx context.Context, fn func(ctx context.Context) error) (bool, error)

type Config struct {
	// Schedule is a cron spec or descriptor, e.g. "@every 1m" or "*/30 * * * * *".
	Schedule string
	Timeout  time.Duration
	Location *time.Location
}

type Result struct {
	Ran       bool
	Confirmed int
	Expired   int
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Sweeper struct {
	tasks   Tasks
	lock    LockFunc
	logger  *slog.Logger
	timeout time.Duration
	sched   *cron.Cron
	ctx     context.Context
}

func New(tasks Tasks, lock LockFunc, logger *slog.Logger, cfg Config) (*Sweeper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 50 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cl := cronLogger{logger: logger}
	s := &Sweeper{
		tasks:   tasks,
		lock:    lock,
		logger:  logger,
		timeout: cfg.Timeout,
		ctx:     context.Background(),
	}
	s.sched = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.sched.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("sweep: invalid schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.ctx = ctx
	s.sched.Start()
	s.logger.Info("booking sweep scheduled", "entries", len(s.sched.Entries()))
}

// Stop halts the schedule; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.sched.Stop()
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("booking sweep failed", "err", err)
		return
	}
	if res.Ran && (res.Confirmed > 0 || res.Expired > 0) {
		s.logger.Info("booking sweep finished", "confirmed", res.Confirmed, "expired", res.Expired)
	}
}

// RunOnce reconciles then expires under the sweep lock.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	run := func(ctx context.Context) error {
		var errs []error
		n, err := s.tasks.ReconcilePending(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile: %w", err))
		}
		res.Confirmed = n
		n, err = s.tasks.ExpireStale(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire: %w", err))
		}
		res.Expired = n
		return errors.Join(errs...)
	}

	if s.lock == nil {
		res.Ran = true
		return res, run(ctx)
	}
	ran, err := s.lock(ctx, run)
	res.Ran = ran
	if !ran && err == nil {
		s.logger.Debug("booking sweep skipped; lock held elsewhere")
	}
	return res, err
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
