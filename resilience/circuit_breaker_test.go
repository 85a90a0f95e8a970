package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3, Timeout: time.Minute})
	failErr := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return failErr })
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 1,
		Timeout:     5 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	time.Sleep(10 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 1,
		Timeout:     5 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(10 * time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "engine",
		MaxFailures: 1,
		Timeout:     time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}
