package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsInvalidSchedule(t *testing.T) {
	job := func(context.Context) error { return nil }
	if _, err := New("", 0, job, nil); err == nil {
		t.Fatalf("empty schedule should be rejected")
	}
	if _, err := New("not a cron", 0, job, nil); err == nil {
		t.Fatalf("invalid schedule should be rejected")
	}
	if _, err := New("@daily", 0, nil, nil); err == nil {
		t.Fatalf("nil job should be rejected")
	}
}

func TestRunNowExecutesJobWithTimeout(t *testing.T) {
	var calls int32
	var hadDeadline bool
	s, err := New("0 3 * * *", time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		_, hadDeadline = ctx.Deadline()
		return errors.New("partial failure")
	}, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	s.RunNow()
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected job to run once, got %d", calls)
	}
	if !hadDeadline {
		t.Fatalf("job context should carry the configured timeout")
	}
}

func TestRunNowRecoversFromPanics(t *testing.T) {
	s, err := New("@hourly", 0, func(context.Context) error {
		panic("boom")
	}, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.RunNow()
}

func TestStartAndStop(t *testing.T) {
	s, err := New("@every 1h", 0, func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("next run should be unset before start")
	}
	s.Start()
	if next := s.Next(); next.IsZero() || next.Before(time.Now()) {
		t.Fatalf("unexpected next run %v", next)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
