package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/exchange/clob/internal/engine"
	"github.com/exchange/clob/internal/orderbook"
	"github.com/exchange/clob/internal/types"
	"github.com/exchange/clob/pkg/redisstream"
	"github.com/exchange/clob/pkg/snowflake"
)

func newTestHandler(t *testing.T) (*Handler, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	ids, err := snowflake.New(1)
	if err != nil {
		t.Fatalf("snowflake.New: %v", err)
	}

	eng := engine.New()
	h := NewHandler(&redisstream.Client{Client: rc}, eng, ids, Config{
		CommandStream:  "clob:orders",
		EventStream:    "clob:events",
		Group:          "matching-group",
		Consumer:       "matching-1",
		DedupeTTL:      time.Hour,
		PricePrecision: 8,
		MinQuantity:    1,
		MaxQuantity:    0,
	})
	return h, rc, mr
}

func TestHandleNewAddsOrderToEngine(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	cmd := CommandMessage{
		Type:        "NEW",
		OrderID:     "o1",
		UserID:      "alice",
		Symbol:      "BTC_USDT",
		Side:        "BUY",
		OrderType:   "LIMIT",
		TimeInForce: "GTC",
		Price:       50_000,
		Qty:         10,
	}
	data, _ := json.Marshal(cmd)

	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	if got := h.eng.BestBid("BTC_USDT"); got != uint64(cmd.Price) {
		t.Fatalf("expected resting order to set best bid %d, got %d", cmd.Price, got)
	}
}

func TestHandleNewMintsOrderIDWhenMissing(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	cmd := CommandMessage{
		Type:        "NEW",
		UserID:      "alice",
		Symbol:      "BTC_USDT",
		Side:        "BUY",
		OrderType:   "LIMIT",
		TimeInForce: "GTC",
		Price:       50_000,
		Qty:         10,
	}
	data, _ := json.Marshal(cmd)

	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	orders := h.eng.GetUserOrders("alice")
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if orders[0].ID == "" {
		t.Fatal("expected a minted order id")
	}
}

func TestHandleNewRejectsInvalidSymbol(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	cmd := CommandMessage{
		Type:        "NEW",
		OrderID:     "o1",
		UserID:      "alice",
		Symbol:      "not a symbol",
		Side:        "BUY",
		OrderType:   "LIMIT",
		TimeInForce: "GTC",
		Price:       1,
		Qty:         1,
	}
	data, _ := json.Marshal(cmd)

	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("handleMessage should swallow validation errors, got: %v", err)
	}
	if _, ok := h.eng.GetOrder("o1"); ok {
		t.Fatal("expected invalid order to never reach the engine")
	}
}

func TestHandleCancelRemovesOrder(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	h.eng.AddOrder(&orderbook.Order{
		ID: "o1", Symbol: "BTC_USDT", Side: orderbook.SideBuy, Type: orderbook.TypeLimit,
		Price: 100, Quantity: 10, UserID: "alice", TIF: orderbook.TIFGTC,
	}, time.Now())

	data, _ := json.Marshal(CommandMessage{Type: "CANCEL", OrderID: "o1"})
	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	if got, ok := h.eng.GetOrder("o1"); !ok || got.Status != orderbook.StatusCancelled {
		t.Fatalf("expected order cancelled, got %+v ok=%v", got, ok)
	}
}

func TestHandleModifyUpdatesOrder(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	h.eng.AddOrder(&orderbook.Order{
		ID: "o1", Symbol: "BTC_USDT", Side: orderbook.SideBuy, Type: orderbook.TypeLimit,
		Price: 100, Quantity: 10, UserID: "alice", TIF: orderbook.TIFGTC,
	}, time.Now())

	data, _ := json.Marshal(CommandMessage{Type: "MODIFY", OrderID: "o1", NewPrice: 100, NewQty: 4})
	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	got, ok := h.eng.GetOrder("o1")
	if !ok || got.Quantity != 4 {
		t.Fatalf("expected quantity 4 after modify, got %+v ok=%v", got, ok)
	}
}

func TestShouldSkipDeduplicatesByOrderID(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	cmd := &CommandMessage{Type: "NEW", OrderID: "dup-1"}

	skip, err := h.shouldSkip(ctx, cmd)
	if err != nil || skip {
		t.Fatalf("expected first sighting to be processed, skip=%v err=%v", skip, err)
	}

	skip, err = h.shouldSkip(ctx, cmd)
	if err != nil || !skip {
		t.Fatalf("expected second sighting to be skipped, skip=%v err=%v", skip, err)
	}
}

func TestHandleMessageSkipsDuplicateCommand(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	cmd := CommandMessage{
		Type: "NEW", OrderID: "o1", UserID: "alice", Symbol: "BTC_USDT",
		Side: "BUY", OrderType: "LIMIT", TimeInForce: "GTC", Price: 100, Qty: 10,
	}
	data, _ := json.Marshal(cmd)

	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("first handleMessage: %v", err)
	}
	if cancelled := h.eng.CancelOrder("o1"); !cancelled {
		t.Fatal("expected order resting after first delivery")
	}

	// Re-add and re-deliver the identical command; dedupe must drop it.
	h.eng.AddOrder(&orderbook.Order{
		ID: "o1", Symbol: "BTC_USDT", Side: orderbook.SideBuy, Type: orderbook.TypeLimit,
		Price: 100, Quantity: 10, UserID: "alice", TIF: orderbook.TIFGTC,
	}, time.Now())
	if err := h.handleMessage(ctx, &redisstream.Message{Data: data}); err != nil {
		t.Fatalf("second handleMessage: %v", err)
	}
	got, ok := h.eng.GetOrder("o1")
	if !ok || got.Quantity != 10 {
		t.Fatalf("expected duplicate delivery to be a no-op, got %+v ok=%v", got, ok)
	}
}

func TestOnTradePublishesEvent(t *testing.T) {
	h, rc, _ := newTestHandler(t)
	ctx := context.Background()
	h.ctx = ctx

	h.eng.AddOrder(&orderbook.Order{
		ID: "maker", Symbol: "BTC_USDT", Side: orderbook.SideSell, Type: orderbook.TypeLimit,
		Price: 100, Quantity: 10, UserID: "mm", TIF: orderbook.TIFGTC,
	}, time.Now())
	h.eng.AddOrder(&orderbook.Order{
		ID: "taker", Symbol: "BTC_USDT", Side: orderbook.SideBuy, Type: orderbook.TypeLimit,
		Price: 100, Quantity: 10, UserID: "trader", TIF: orderbook.TIFGTC,
	}, time.Now())

	length, err := rc.XLen(ctx, "clob:events").Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if length == 0 {
		t.Fatal("expected at least one event published for the trade and order updates")
	}
}

func TestOpenOrderToOrderMapsFields(t *testing.T) {
	open := &types.OpenOrder{
		OrderID:     "persisted-1",
		Symbol:      "BTC_USDT",
		Side:        "SELL",
		OrderType:   "STOP_LIMIT",
		TimeInForce: "IOC",
		Price:       100,
		StopPrice:   90,
		LeavesQty:   5,
		UserID:      "alice",
	}

	o := openOrderToOrder(open)
	if o.Side != orderbook.SideSell {
		t.Fatalf("expected SELL side, got %v", o.Side)
	}
	if o.Type != orderbook.TypeStopLimit {
		t.Fatalf("expected STOP_LIMIT type, got %v", o.Type)
	}
	if o.TIF != orderbook.TIFIOC {
		t.Fatalf("expected IOC tif, got %v", o.TIF)
	}
	if o.StopPrice != 90 || o.Quantity != 5 {
		t.Fatalf("expected stopPrice=90 quantity=5, got stopPrice=%d quantity=%d", o.StopPrice, o.Quantity)
	}
}
