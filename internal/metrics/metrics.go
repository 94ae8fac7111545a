// Package metrics exposes the Prometheus collectors cmd/matching
// registers on its metrics endpoint.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	once     sync.Once

	matchingLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_latency_seconds",
		Help:    "Latency of order matching in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	tradesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_created_total",
			Help: "Total number of trades created.",
		},
		[]string{"symbol"},
	)
	orderbookDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_depth",
			Help: "Current orderbook depth.",
		},
		[]string{"symbol", "side"},
	)
	matchingThroughput = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matching_throughput",
		Help: "Total number of orders processed by matching.",
	})
	stopOrdersArmed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stop_orders_armed",
			Help: "Current number of parked Stop/StopLimit orders awaiting trigger.",
		},
		[]string{"symbol"},
	)
	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Total number of errors encountered consuming a Redis stream.",
		},
		[]string{"stream", "group"},
	)
	streamPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_pending",
			Help: "Current number of unacknowledged entries for a stream consumer group.",
		},
		[]string{"stream", "group"},
	)
	streamDLQ = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_dlq_total",
			Help: "Total number of messages routed to a stream's dead-letter queue.",
		},
		[]string{"stream", "group"},
	)
	averageSpread = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_average_spread",
			Help: "Mean ask-minus-bid spread across the top depth levels of a symbol's book.",
		},
		[]string{"symbol"},
	)
	orderToTradeRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_order_to_trade_ratio",
			Help: "Accepted orders per executed trade for a symbol's book.",
		},
		[]string{"symbol"},
	)
	cancellationRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_cancellation_rate",
			Help: "Estimated share of accepted orders no longer live for a symbol's book.",
		},
		[]string{"symbol"},
	)
)

// Init registers metrics with the registry once.
func Init() {
	once.Do(func() {
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
			matchingLatency,
			tradesCreated,
			orderbookDepth,
			matchingThroughput,
			stopOrdersArmed,
			streamErrors,
			streamPending,
			streamDLQ,
			averageSpread,
			orderToTradeRatio,
			cancellationRate,
		)
	})
}

// Handler exposes the Prometheus metrics endpoint handler.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func ObserveMatchingLatency(d time.Duration) {
	Init()
	matchingLatency.Observe(d.Seconds())
}

func IncTradesCreated(symbol string) {
	Init()
	tradesCreated.WithLabelValues(symbol).Inc()
}

func SetOrderbookDepth(symbol, side string, depth float64) {
	Init()
	orderbookDepth.WithLabelValues(symbol, side).Set(depth)
}

func AddMatchingThroughput(n int) {
	Init()
	if n <= 0 {
		return
	}
	matchingThroughput.Add(float64(n))
}

func SetStopOrdersArmed(symbol string, n int) {
	Init()
	stopOrdersArmed.WithLabelValues(symbol).Set(float64(n))
}

func IncStreamError(stream, group string) {
	Init()
	streamErrors.WithLabelValues(stream, group).Inc()
}

func SetStreamPending(stream, group string, n int64) {
	Init()
	streamPending.WithLabelValues(stream, group).Set(float64(n))
}

func IncStreamDLQ(stream, group string) {
	Init()
	streamDLQ.WithLabelValues(stream, group).Inc()
}

func SetAverageSpread(symbol string, spread float64) {
	Init()
	averageSpread.WithLabelValues(symbol).Set(spread)
}

func SetOrderToTradeRatio(symbol string, ratio float64) {
	Init()
	orderToTradeRatio.WithLabelValues(symbol).Set(ratio)
}

func SetCancellationRate(symbol string, rate float64) {
	Init()
	cancellationRate.WithLabelValues(symbol).Set(rate)
}
