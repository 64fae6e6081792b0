package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := NewScheduler(nil)
	var runs int32
	err := s.Register(Job{
		ID:         "tick",
		Expression: "* * * * * *",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&runs) > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected job to run at least once within 2s")
}

func TestScheduler_Register_RequiresID(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Register(Job{Expression: "* * * * * *", Run: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Error("expected error for missing job id")
	}
}

func TestScheduler_Register_RequiresRunFunc(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Register(Job{ID: "x", Expression: "* * * * * *"})
	if err == nil {
		t.Error("expected error for missing run function")
	}
}

func TestScheduler_Register_InvalidExpression(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Register(Job{ID: "x", Expression: "not a cron expr", Run: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestScheduler_Unregister(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Register(Job{ID: "x", Expression: "* * * * * *", Run: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Unregister("x")
	s.mu.Lock()
	_, ok := s.entries["x"]
	s.mu.Unlock()
	if ok {
		t.Error("expected job to be removed from entries")
	}
}
