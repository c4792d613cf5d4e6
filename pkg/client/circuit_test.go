package client

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := newBreaker("/search", BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if b.State() != CircuitClosed {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}

	b.RecordFailure()
	if b.State() != CircuitOpen {
		t.Error("breaker still closed after reaching the failure threshold")
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() on open breaker = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newBreaker("/search", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	if b.State() != CircuitClosed {
		t.Error("breaker opened despite interleaved success resetting the count")
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := newBreaker("/search", BreakerConfig{FailureThreshold: 1, Cooldown: 20 * time.Millisecond})

	b.RecordFailure()
	if err := b.Allow(); err == nil {
		t.Fatal("Allow() during cooldown succeeded")
	}

	time.Sleep(30 * time.Millisecond)

	// Cooldown elapsed: exactly one probe is admitted.
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown = %v, want probe admitted", err)
	}
	if b.State() != CircuitHalfOpen {
		t.Errorf("state = %v, want half_open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second Allow() during probe = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_ProbeOutcomes(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		b := newBreaker("/search", BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond})
		b.RecordFailure()
		time.Sleep(5 * time.Millisecond)

		if err := b.Allow(); err != nil {
			t.Fatalf("probe Allow() = %v", err)
		}
		b.RecordSuccess()

		if b.State() != CircuitClosed {
			t.Errorf("state after successful probe = %v, want closed", b.State())
		}
		if err := b.Allow(); err != nil {
			t.Errorf("Allow() after close = %v, want nil", err)
		}
	})

	t.Run("failure reopens", func(t *testing.T) {
		b := newBreaker("/search", BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
		b.RecordFailure()
		b.openedAt = time.Now().Add(-2 * time.Minute) // force cooldown elapsed

		if err := b.Allow(); err != nil {
			t.Fatalf("probe Allow() = %v", err)
		}
		b.RecordFailure()

		if b.State() != CircuitOpen {
			t.Errorf("state after failed probe = %v, want open", b.State())
		}
		if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("Allow() after reopen = %v, want ErrCircuitOpen", err)
		}
	})
}

func TestBreaker_ConcurrentAllow(t *testing.T) {
	b := newBreaker("/search", BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond})
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	// Many concurrent callers race for the single half-open probe slot.
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Allow(); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("half-open breaker admitted %d probes, want exactly 1", admitted)
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half_open"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
