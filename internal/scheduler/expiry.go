// Package scheduler runs the cron-driven sweep that cancels expired
// orders across every symbol, repurposing the platform's cron.FuncJob
// scheduling pattern for a one-shot engine-wide sweep instead of a
// ledger reconciliation report.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/exchange/clob/pkg/health"
	"github.com/exchange/clob/pkg/logger"
)

// Engine is the subset of internal/engine.Engine the sweep needs.
type Engine interface {
	CancelExpiredOrders(now time.Time) int
}

// ExpirySweep periodically cancels every order past its expiry across
// every symbol in an Engine.
type ExpirySweep struct {
	cronExpr string
	engine   Engine
	log      *logger.Logger
	loop     health.LoopMonitor

	c *cron.Cron
}

// New builds an ExpirySweep that runs on cronExpr (standard 5-field
// minute/hour/dom/month/dow syntax). log may be nil.
func New(cronExpr string, eng Engine, log *logger.Logger) *ExpirySweep {
	if log == nil {
		log = logger.New("matching", nil)
	}
	return &ExpirySweep{cronExpr: cronExpr, engine: eng, log: log}
}

// HealthChecker exposes the sweep's liveness through the shared
// health.LoopMonitor adapter.
func (s *ExpirySweep) HealthChecker(maxAge time.Duration) health.Checker {
	return health.NewLoopChecker("expiry_sweep", &s.loop, maxAge)
}

// Start parses cronExpr and begins running the sweep in the background.
// It returns an error immediately if the expression is invalid.
func (s *ExpirySweep) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(s.cronExpr)
	if err != nil {
		return err
	}

	s.c = cron.New(cron.WithParser(parser))
	s.c.Schedule(schedule, cron.FuncJob(s.runOnce))
	s.c.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight run to finish.
func (s *ExpirySweep) Stop() {
	if s.c != nil {
		ctx := s.c.Stop()
		<-ctx.Done()
	}
}

func (s *ExpirySweep) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.loop.SetError(fmt.Errorf("panic: %v", r))
			s.log.Errorf("expiry sweep panic", map[string]interface{}{"panic": r})
		}
	}()

	n := s.engine.CancelExpiredOrders(time.Now())
	s.loop.Tick()
	if n > 0 {
		s.log.Infof("expiry sweep cancelled orders", map[string]interface{}{"count": n})
	}
}
