package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func instantSleep(context.Context, time.Duration) {}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	p := Fixed(4, 15*time.Second)
	p.Sleep = instantSleep

	calls := 0
	err := p.Do(context.Background(), func(attempt int) (bool, error) {
		calls++
		return false, nil
	})

	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestDoReturnsOnSuccess(t *testing.T) {
	p := Fixed(4, time.Second)
	p.Sleep = instantSleep

	calls := 0
	err := p.Do(context.Background(), func(attempt int) (bool, error) {
		calls++
		return attempt == 2, nil
	})

	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDoJoinsLastError(t *testing.T) {
	p := Fixed(2, time.Second)
	p.Sleep = instantSleep

	sentinel := errors.New("still missing")
	err := p.Do(context.Background(), func(int) (bool, error) {
		return false, sentinel
	})

	if !errors.Is(err, ErrExhausted) || !errors.Is(err, sentinel) {
		t.Fatalf("expected joined exhaustion error, got %v", err)
	}
}

func TestLinearDelayGrowsPerAttempt(t *testing.T) {
	p := Linear(3, 5*time.Second)

	var delays []time.Duration
	p.Sleep = func(_ context.Context, d time.Duration) {
		delays = append(delays, d)
	}

	_ = p.Do(context.Background(), func(int) (bool, error) { return false, nil })

	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(delays))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Fixed(4, time.Second)
	p.Sleep = instantSleep

	err := p.Do(ctx, func(int) (bool, error) { return false, nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
