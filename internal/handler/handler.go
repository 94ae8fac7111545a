// Package handler wires the matching engine to Redis Streams: it
// consumes order commands, applies them to the engine, and republishes
// whatever trades and order-state changes fall out the other side.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/exchange/clob/internal/engine"
	"github.com/exchange/clob/internal/metrics"
	"github.com/exchange/clob/internal/orderbook"
	"github.com/exchange/clob/internal/types"
	"github.com/exchange/clob/pkg/health"
	"github.com/exchange/clob/pkg/logger"
	"github.com/exchange/clob/pkg/redisstream"
	"github.com/exchange/clob/pkg/snowflake"
	"github.com/exchange/clob/pkg/validate"
)

// OrderLoader loads resting orders from persistent storage for startup
// recovery. internal/recovery.DBOrderLoader satisfies this.
type OrderLoader interface {
	LoadOpenOrders(ctx context.Context, symbol string) ([]*types.OpenOrder, error)
	ListActiveSymbols(ctx context.Context) ([]string, error)
}

// CommandMessage is a command carried on the input stream.
type CommandMessage struct {
	Type          string `json:"type"` // NEW / CANCEL / MODIFY
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	UserID        string `json:"userId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	OrderType     string `json:"orderType"`
	TimeInForce   string `json:"timeInForce"`
	Price         int64  `json:"price"`
	StopPrice     int64  `json:"stopPrice"`
	Qty           int64  `json:"qty"`
	NewPrice      int64  `json:"newPrice"`
	NewQty        int64  `json:"newQty"`
	ExpireAtMs    int64  `json:"expireAtMs"`
}

// EventMessage is an event republished to the output stream after the
// engine applies a command.
type EventMessage struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Config configures a Handler.
type Config struct {
	CommandStream  string
	EventStream    string
	Group          string
	Consumer       string
	DedupeTTL      time.Duration
	OrderLoader    OrderLoader
	Logger         *logger.Logger
	PricePrecision int
	MinQuantity    int64
	MaxQuantity    int64
	ConsumerOpts   *redisstream.ConsumerOptions
}

// Handler consumes order commands from Redis Streams, applies them to
// eng, and republishes trade/order-update events.
type Handler struct {
	client   *redisstream.Client
	stream   *redisstream.StreamClient
	consumer *redisstream.Consumer
	eng      *engine.Engine
	ids      *snowflake.Generator
	log      *logger.Logger
	cfg      Config

	ctxMu sync.RWMutex
	ctx   context.Context

	loop health.LoopMonitor
}

// NewHandler wires a Handler around client and eng, installing the
// engine's trade/order-update subscribers so every applied command
// republishes to cfg.EventStream.
func NewHandler(client *redisstream.Client, eng *engine.Engine, ids *snowflake.Generator, cfg Config) *Handler {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("matching", nil)
	}

	h := &Handler{
		client: client,
		stream: redisstream.NewStreamClient(client.Client),
		eng:    eng,
		ids:    ids,
		log:    log,
		cfg:    cfg,
	}

	eng.OnTrade(h.onTrade)
	eng.OnOrderUpdate(h.onOrderUpdate)

	h.consumer = redisstream.NewConsumer(h.stream, cfg.Group, cfg.Consumer,
		[]string{cfg.CommandStream}, h.handleMessage, cfg.ConsumerOpts)
	h.consumer.OnError = func(err error) {
		metrics.IncStreamError(cfg.CommandStream, cfg.Group)
		h.log.WithError(err).Warn("stream consumer error")
	}

	return h
}

// Start recovers resting orders from the database (if an OrderLoader is
// configured) and then blocks consuming commands until ctx is cancelled.
func (h *Handler) Start(ctx context.Context) error {
	h.ctxMu.Lock()
	h.ctx = ctx
	h.ctxMu.Unlock()

	h.log.Info("recovering order books from database")
	if err := h.recoverOrderBooks(ctx); err != nil {
		h.log.WithError(err).Warn("recover order books warning")
	}
	h.log.Info("order book recovery completed")
	h.loop.Tick()

	err := h.consumer.Start(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		h.loop.SetError(err)
	}
	return err
}

// ConsumeLoopHealthy reports whether the consumer has ticked recently,
// for wiring into pkg/health.NewLoopChecker.
func (h *Handler) ConsumeLoopHealthy(now time.Time, maxAge time.Duration) (bool, time.Duration, string) {
	return h.loop.Healthy(now, maxAge)
}

// HealthChecker exposes the consume loop's liveness as a health.Checker.
func (h *Handler) HealthChecker(maxAge time.Duration) health.Checker {
	return health.NewLoopChecker("order_stream_consumer", &h.loop, maxAge)
}

// Depth returns the top n bid/ask levels for symbol.
func (h *Handler) Depth(symbol string, n int) (bids, asks []orderbook.PriceQty) {
	for _, lvl := range h.eng.BidLevels(symbol, n) {
		bids = append(bids, orderbook.PriceQty{Price: lvl.Price, Qty: lvl.Quantity})
	}
	for _, lvl := range h.eng.AskLevels(symbol, n) {
		asks = append(asks, orderbook.PriceQty{Price: lvl.Price, Qty: lvl.Quantity})
	}
	return bids, asks
}

func (h *Handler) recoverOrderBooks(ctx context.Context) error {
	if h.cfg.OrderLoader == nil {
		return nil
	}

	symbols, err := h.cfg.OrderLoader.ListActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list active symbols: %w", err)
	}

	for _, symbol := range symbols {
		if err := h.recoverSymbol(ctx, symbol); err != nil {
			h.log.WithError(err).WithField("symbol", symbol).Warn("recover symbol error")
		}
	}
	return nil
}

func (h *Handler) recoverSymbol(ctx context.Context, symbol string) error {
	orders, err := h.cfg.OrderLoader.LoadOpenOrders(ctx, symbol)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	for _, o := range orders {
		if o == nil {
			continue
		}
		h.eng.RestoreOrder(openOrderToOrder(o))
	}

	h.log.Infof("recovered orders", map[string]interface{}{
		"symbol": symbol, "count": len(orders),
	})
	return nil
}

func openOrderToOrder(o *types.OpenOrder) *orderbook.Order {
	order := &orderbook.Order{
		ID:        o.OrderID,
		Symbol:    o.Symbol,
		Side:      sideFromString(o.Side),
		Type:      orderTypeFromString(o.OrderType),
		Price:     o.Price,
		StopPrice: o.StopPrice,
		Quantity:  o.LeavesQty,
		UserID:    o.UserID,
		TIF:       tifFromString(o.TimeInForce),
		Timestamp: time.Unix(0, o.CreatedAtNs),
	}
	return order
}

func (h *Handler) handleMessage(ctx context.Context, msg *redisstream.Message) error {
	var cmd CommandMessage
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		h.log.WithError(err).Warn("unmarshal command error")
		return nil // malformed payload can never succeed; drop it, don't retry forever
	}

	dup, err := h.shouldSkip(ctx, &cmd)
	if err != nil {
		h.log.WithError(err).Warn("dedupe check error")
	} else if dup {
		return nil
	}

	switch strings.ToUpper(cmd.Type) {
	case "NEW":
		return h.handleNew(&cmd)
	case "CANCEL":
		h.eng.CancelOrder(cmd.OrderID)
		return nil
	case "MODIFY":
		h.eng.ModifyOrder(cmd.OrderID, uint64(cmd.NewPrice), uint64(cmd.NewQty), time.Now())
		return nil
	default:
		h.log.WithField("type", cmd.Type).Warn("unknown command type")
		return nil
	}
}

func (h *Handler) handleNew(cmd *CommandMessage) error {
	v := validate.New().
		Symbol("symbol", cmd.Symbol).
		Side("side", cmd.Side).
		OrderType("orderType", cmd.OrderType).
		TimeInForce("timeInForce", cmd.TimeInForce).
		Required("userId", cmd.UserID)
	if v.HasErrors() {
		h.log.WithField("errors", v.Errors()).Warn("rejecting invalid command")
		return nil // a permanently invalid command should never retry
	}

	orderType := strings.ToUpper(cmd.OrderType)
	if orderType == "LIMIT" || orderType == "STOP_LIMIT" {
		if err := validate.Price(cmd.Price, h.cfg.PricePrecision); err != nil {
			h.log.WithError(err).Warn("rejecting invalid price")
			return nil
		}
	}
	if orderType == "STOP" || orderType == "STOP_LIMIT" {
		if err := validate.StopPrice(cmd.StopPrice, h.cfg.PricePrecision); err != nil {
			h.log.WithError(err).Warn("rejecting invalid stop price")
			return nil
		}
	}
	if err := validate.Quantity(cmd.Qty, h.cfg.MinQuantity, h.cfg.MaxQuantity); err != nil {
		h.log.WithError(err).Warn("rejecting invalid quantity")
		return nil
	}

	orderID := cmd.OrderID
	if orderID == "" {
		id, err := h.ids.GenerateString()
		if err != nil {
			return fmt.Errorf("mint order id: %w", err)
		}
		orderID = id
	}

	order := &orderbook.Order{
		ID:        orderID,
		Symbol:    cmd.Symbol,
		Side:      sideFromString(cmd.Side),
		Type:      orderTypeFromString(orderType),
		Price:     uint64(cmd.Price),
		StopPrice: uint64(cmd.StopPrice),
		Quantity:  uint64(cmd.Qty),
		UserID:    cmd.UserID,
		TIF:       tifFromString(cmd.TimeInForce),
	}
	if cmd.ExpireAtMs > 0 {
		order.Expiry = cmd.ExpireAtMs / 1000
	}

	h.eng.AddOrder(order, time.Now())
	return nil
}

func (h *Handler) shouldSkip(ctx context.Context, cmd *CommandMessage) (bool, error) {
	if h.cfg.DedupeTTL <= 0 || cmd.OrderID == "" {
		return false, nil
	}
	key := fmt.Sprintf("dedupe:%s:%s", strings.ToLower(cmd.Type), cmd.OrderID)
	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok, err := h.client.SetNX(timeoutCtx, key, "1", h.cfg.DedupeTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (h *Handler) onTrade(t orderbook.Trade) {
	h.publishEvent("TRADE_CREATED", t.Symbol, t)
}

func (h *Handler) onOrderUpdate(o orderbook.Order) {
	h.publishEvent(orderEventType(o.Status), o.Symbol, o)
}

func (h *Handler) publishEvent(eventType, symbol string, data interface{}) {
	h.ctxMu.RLock()
	ctx := h.ctx
	h.ctxMu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	msg := EventMessage{
		Type:      eventType,
		Symbol:    symbol,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}

	sendCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := h.stream.Publish(sendCtx, h.cfg.EventStream, msg); err != nil && ctx.Err() == nil {
		metrics.IncStreamError(h.cfg.EventStream, h.cfg.Group)
		h.log.WithError(err).Warn("publish event error")
	}
}

func orderEventType(s orderbook.Status) string {
	switch s {
	case orderbook.StatusNew:
		return "ORDER_ACCEPTED"
	case orderbook.StatusPartial:
		return "ORDER_PARTIALLY_FILLED"
	case orderbook.StatusFilled:
		return "ORDER_FILLED"
	case orderbook.StatusCancelled:
		return "ORDER_CANCELED"
	case orderbook.StatusRejected:
		return "ORDER_REJECTED"
	default:
		return "UNKNOWN"
	}
}

func sideFromString(s string) orderbook.Side {
	if strings.EqualFold(s, "SELL") {
		return orderbook.SideSell
	}
	return orderbook.SideBuy
}

func orderTypeFromString(s string) orderbook.Type {
	switch strings.ToUpper(s) {
	case "MARKET":
		return orderbook.TypeMarket
	case "STOP":
		return orderbook.TypeStop
	case "STOP_LIMIT":
		return orderbook.TypeStopLimit
	default:
		return orderbook.TypeLimit
	}
}

func tifFromString(s string) orderbook.TimeInForce {
	switch strings.ToUpper(s) {
	case "IOC":
		return orderbook.TIFIOC
	case "FOK":
		return orderbook.TIFFOK
	default:
		return orderbook.TIFGTC
	}
}
