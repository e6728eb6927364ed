package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc is invoked on every scheduled tick. Runs never overlap: the
// next tick is armed only after the job returns.
type JobFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval        time.Duration
	AlignToInterval bool
	StartupDelay    time.Duration
}

// Scheduler drives periodic execution of the synchronization job.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the job at each interval until ctx is cancelled.
// Job errors are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context, job JobFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}

		tick := next
		s.logger.Info().Time("tick", tick).Msg("executing scheduled update")
		if err := job(ctx, tick); err != nil {
			s.logger.Error().Err(err).Time("tick", tick).Msg("scheduled update failed")
		}

		next = s.nextTick(time.Now().UTC())
	}
}

// nextTick picks the next execution time, optionally aligned to
// interval boundaries so ticks land at predictable wall-clock times.
func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToInterval {
		return now.Add(s.opts.Interval)
	}
	aligned := now.Truncate(s.opts.Interval)
	if !aligned.After(now) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
