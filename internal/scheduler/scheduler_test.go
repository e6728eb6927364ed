package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 5 * time.Minute, AlignToInterval: true}, zerolog.Nop())

	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	next := s.nextTick(now)
	want := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())

	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	next := s.nextTick(now)
	if !next.Equal(now.Add(time.Minute)) {
		t.Fatalf("unaligned tick should be now+interval, got %s", next)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, tick time.Time) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestRunContinuesAfterJobError(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	runs := make(chan struct{}, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		_ = s.Run(ctx, func(ctx context.Context, tick time.Time) error {
			runs <- struct{}{}
			return errors.New("boom")
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-ctx.Done():
			t.Fatal("job should keep running after an error")
		}
	}
}
