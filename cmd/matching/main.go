package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/exchange/clob/internal/config"
	"github.com/exchange/clob/internal/engine"
	"github.com/exchange/clob/internal/handler"
	"github.com/exchange/clob/internal/metrics"
	"github.com/exchange/clob/internal/recovery"
	"github.com/exchange/clob/internal/scheduler"
	"github.com/exchange/clob/pkg/health"
	"github.com/exchange/clob/pkg/logger"
	"github.com/exchange/clob/pkg/redisstream"
	"github.com/exchange/clob/pkg/snowflake"
	"github.com/exchange/clob/pkg/tracing"
)

type redisHealthClient struct {
	client *redisstream.Client
}

func (c redisHealthClient) Ping(ctx context.Context) health.RedisPingCmd {
	return c.client.Ping(ctx)
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, nil)
	log.Info(fmt.Sprintf("starting %s", cfg.ServiceName))

	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.WithError(err).Warn("tracing init failed, continuing without spans")
		shutdownTracing = func(context.Context) error { return nil }
	}

	ids, err := snowflake.New(cfg.WorkerID)
	if err != nil {
		log.WithError(err).Error("failed to init snowflake generator")
		os.Exit(1)
	}

	redisClient, err := redisstream.NewClient(&redisstream.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.WithError(err).Error("failed to connect to redis")
		os.Exit(1)
	}
	log.Info(fmt.Sprintf("connected to redis at %s", cfg.RedisAddr))

	db, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Warn("failed to open database, startup recovery disabled")
		db = nil
	}

	eng := engine.New()
	metrics.Init()

	var loader handler.OrderLoader
	if db != nil {
		loader = recovery.NewDBOrderLoader(db)
	}

	h := handler.NewHandler(redisClient, eng, ids, handler.Config{
		CommandStream:  cfg.InputStream,
		EventStream:    cfg.OutputStream,
		Group:          cfg.ConsumerGroup,
		Consumer:       cfg.ConsumerName,
		OrderLoader:    loader,
		Logger:         log,
		PricePrecision: 8,
		MinQuantity:    1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := h.Start(ctx); err != nil {
			log.WithError(err).Error("handler stopped with error")
		}
	}()
	log.Info(fmt.Sprintf("handler started, consuming from %s", cfg.InputStream))

	sweep := scheduler.New(cfg.ExpirySweepCron, eng, log)
	if err := sweep.Start(); err != nil {
		log.WithError(err).Error("failed to start expiry sweep")
		os.Exit(1)
	}

	go reportBookAnalytics(ctx, eng)

	hc := health.New()
	if db != nil {
		hc.Register(health.NewPostgresChecker(db))
	}
	hc.Register(health.NewRedisChecker(redisHealthClient{client: redisClient}))
	hc.Register(h.HealthChecker(45 * time.Second))
	hc.Register(sweep.HealthChecker(2 * time.Minute))
	hc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/live", hc.LiveHandler())
	mux.HandleFunc("/ready", hc.ReadyHandler())
	mux.HandleFunc("/health", hc.HealthHandler())
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/depth", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		bids, asks := h.Depth(symbol, 20)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"bids": bids,
			"asks": asks,
		})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info(fmt.Sprintf("http server listening on :%d", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	sweep.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	shutdownTracing(shutdownCtx)
	if db != nil {
		db.Close()
	}
	redisClient.Close()
	log.Info("shutdown complete")
}

// reportBookAnalytics periodically publishes each symbol's parked
// stop-order count and derived book analytics (average spread,
// order-to-trade ratio, cancellation rate) to metrics, since none of
// them change on a natural push point of their own.
func reportBookAnalytics(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range eng.Symbols() {
				metrics.SetStopOrdersArmed(symbol, eng.ArmedStopCount(symbol))
				metrics.SetAverageSpread(symbol, eng.AverageSpread(symbol, 10))
				metrics.SetOrderToTradeRatio(symbol, eng.OrderToTradeRatio(symbol))
				metrics.SetCancellationRate(symbol, eng.CancellationRate(symbol))
			}
		}
	}
}
