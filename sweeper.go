package websession

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs Clear every ten minutes.
const DefaultSweepSchedule = "@every 10m"

// Sweeper calls Store.Clear on a cron schedule. It lives outside the
// manager so that one sweeper serves a whole application.
type Sweeper struct {
	store   Store
	cron    *cron.Cron
	timeout time.Duration
	logger  zerolog.Logger
}

// SweeperConfig holds configuration for a Sweeper.
type SweeperConfig struct {
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@every 5m". Defaults to DefaultSweepSchedule.
	Schedule string
	// Timeout bounds a single sweep. Defaults to 30 seconds.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// NewSweeper schedules sweeps of store. Call Start to begin.
func NewSweeper(store Store, cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Sweeper{
		store:   store,
		cron:    cron.New(),
		timeout: cfg.Timeout,
		logger:  resolveLogger(cfg.Logger, "session_sweeper"),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Sweep(ctx)
}

// Sweep clears expired sessions once.
func (s *Sweeper) Sweep(ctx context.Context) bool {
	start := time.Now()
	ok := s.store.Clear(ctx)
	event := s.logger.Debug()
	if !ok {
		event = s.logger.Warn()
	}
	event.Bool("ok", ok).Dur("took", time.Since(start)).Msg("session sweep finished")
	return ok
}

// Start begins running scheduled sweeps in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
