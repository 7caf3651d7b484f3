// Package scheduler runs periodic ledger maintenance.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/api/metrics"
)

const (
	defaultInterval = time.Hour
	sweepTimeout    = 5 * time.Minute
)

// StreakResetter zeroes streaks whose last activity is older than yesterday.
type StreakResetter interface {
	ResetStaleStreaks(ctx context.Context, today time.Time) (int64, error)
}

// StreakSweeper periodically resets stale streaks.
type StreakSweeper struct {
	sched    gocron.Scheduler
	ledger   StreakResetter
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewStreakSweeper(ledger StreakResetter, interval time.Duration, log zerolog.Logger) (*StreakSweeper, error) {
	if interval <= 0 {
		interval = defaultInterval
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &StreakSweeper{
		sched:    sched,
		ledger:   ledger,
		interval: interval,
		now:      time.Now,
		log:      log,
	}, nil
}

// Start registers the sweep job, runs it once immediately and then on
// every interval tick.
func (s *StreakSweeper) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.Sweep),
		gocron.WithName("streak-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule streak sweep: %w", err)
	}
	s.sched.Start()
	s.log.Info().Dur("interval", s.interval).Msg("streak sweeper started")
	return nil
}

// Sweep performs one reset pass.
func (s *StreakSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.ledger.ResetStaleStreaks(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("streak sweep failed")
		return
	}
	metrics.StreaksResetTotal.Add(float64(n))
}

// Shutdown stops the scheduler and waits for a running sweep to finish.
func (s *StreakSweeper) Shutdown() error {
	return s.sched.Shutdown()
}
