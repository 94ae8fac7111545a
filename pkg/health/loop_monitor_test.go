package health

import (
	"errors"
	"testing"
	"time"
)

func TestLoopMonitorHealthyBeforeFirstTick(t *testing.T) {
	var m LoopMonitor
	ok, age, lastErr := m.Healthy(time.Now(), time.Second)
	if ok {
		t.Fatal("expected unhealthy before any Tick")
	}
	if age != 0 {
		t.Fatalf("expected zero age, got %v", age)
	}
	if lastErr != "" {
		t.Fatalf("expected empty lastErr, got %q", lastErr)
	}
}

func TestLoopMonitorHealthyAfterTick(t *testing.T) {
	var m LoopMonitor
	m.Tick()

	ok, _, _ := m.Healthy(time.Now(), time.Second)
	if !ok {
		t.Fatal("expected healthy right after Tick")
	}
}

func TestLoopMonitorUnhealthyAfterMaxAge(t *testing.T) {
	var m LoopMonitor
	m.Tick()

	ok, age, _ := m.Healthy(time.Now().Add(2*time.Second), time.Second)
	if ok {
		t.Fatal("expected unhealthy once age exceeds maxAge")
	}
	if age < time.Second {
		t.Fatalf("expected age >= 1s, got %v", age)
	}
}

func TestLoopMonitorDefaultsMaxAge(t *testing.T) {
	var m LoopMonitor
	m.Tick()

	ok, _, _ := m.Healthy(time.Now().Add(5*time.Second), 0)
	if !ok {
		t.Fatal("expected default 10s maxAge to cover a 5s gap")
	}
}

func TestLoopMonitorSetErrorIgnoresNil(t *testing.T) {
	var m LoopMonitor
	m.SetError(nil)
	if m.LastError() != "" {
		t.Fatalf("expected empty lastErr, got %q", m.LastError())
	}

	m.SetError(errors.New("boom"))
	if m.LastError() != "boom" {
		t.Fatalf("expected 'boom', got %q", m.LastError())
	}
}
