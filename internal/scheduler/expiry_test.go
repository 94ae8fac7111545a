package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

type stubEngine struct {
	calls  int64
	result int
}

func (s *stubEngine) CancelExpiredOrders(now time.Time) int {
	atomic.AddInt64(&s.calls, 1)
	return s.result
}

func TestNewRejectsInvalidCron(t *testing.T) {
	sweep := New("not a cron expr", &stubEngine{}, nil)
	if err := sweep.Start(); err == nil {
		t.Fatal("expected invalid cron expression to fail Start")
	}
}

func TestRunOnceCallsEngineAndTicksLoop(t *testing.T) {
	eng := &stubEngine{result: 3}
	sweep := New("* * * * *", eng, nil)

	sweep.runOnce()

	if atomic.LoadInt64(&eng.calls) != 1 {
		t.Fatalf("expected engine called once, got %d", eng.calls)
	}
	ok, _, _ := sweep.loop.Healthy(time.Now(), time.Minute)
	if !ok {
		t.Fatal("expected loop monitor healthy after a run")
	}
}

func TestHealthCheckerReflectsSweepState(t *testing.T) {
	eng := &stubEngine{}
	sweep := New("* * * * *", eng, nil)
	checker := sweep.HealthChecker(time.Minute)

	result := checker.Check(nil)
	if result.Status != "down" {
		t.Fatalf("expected down before any tick, got %v", result.Status)
	}

	sweep.runOnce()
	result = checker.Check(nil)
	if result.Status != "up" {
		t.Fatalf("expected up after a tick, got %v", result.Status)
	}
}

func TestStartAndStopWithValidCron(t *testing.T) {
	eng := &stubEngine{}
	sweep := New("*/1 * * * *", eng, nil)
	if err := sweep.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sweep.Stop()
}
