// Package engine implements MatchingEngine, the cross-symbol orchestrator
// that routes orders to their per-symbol OrderBook, maintains the global
// id-to-symbol map, aggregates statistics, and fans out trade and
// order-update events to external subscribers.
package engine

import (
	"sync"
	"time"

	"github.com/exchange/clob/internal/orderbook"
)

// Stats mirrors the aggregate counters spec.md tracks at engine level.
type Stats struct {
	TotalOrders uint64
	TotalTrades uint64
	TotalVolume uint64
}

// Engine dispatches order operations across per-symbol books and
// re-publishes their events to subscribers installed via OnTrade and
// OnOrderUpdate. All exported methods are safe for concurrent use.
type Engine struct {
	mu             sync.RWMutex
	books          map[string]*orderbook.OrderBook
	orderIDSymbol  map[string]string
	stats          Stats

	onTrade       func(orderbook.Trade)
	onOrderUpdate func(orderbook.Order)
}

// New creates an empty engine with no books.
func New() *Engine {
	return &Engine{
		books:         make(map[string]*orderbook.OrderBook),
		orderIDSymbol: make(map[string]string),
	}
}

// OnTrade installs the trade-event subscriber. Not safe to call
// concurrently with order operations.
func (e *Engine) OnTrade(fn func(orderbook.Trade)) {
	e.onTrade = fn
}

// OnOrderUpdate installs the order-update subscriber. Not safe to call
// concurrently with order operations.
func (e *Engine) OnOrderUpdate(fn func(orderbook.Order)) {
	e.onOrderUpdate = fn
}

// bookFor returns the book for symbol, creating and wiring it on first
// use. Must be called without e.mu held; it takes the write lock itself
// only when a book needs creating.
func (e *Engine) bookFor(symbol string) *orderbook.OrderBook {
	e.mu.RLock()
	book, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return book
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if book, ok = e.books[symbol]; ok {
		return book
	}

	book = orderbook.New(symbol)
	book.SetCallbacks(
		func(t orderbook.Trade) { e.handleTrade(t) },
		func(o orderbook.Order) { e.handleOrderUpdate(o) },
	)
	e.books[symbol] = book
	return book
}

// handleTrade updates engine-level stats before forwarding to the
// external subscriber, so an observer reading Stats() from inside the
// callback sees a consistent view.
func (e *Engine) handleTrade(t orderbook.Trade) {
	e.mu.Lock()
	e.stats.TotalTrades++
	e.stats.TotalVolume += t.Quantity
	e.mu.Unlock()

	if e.onTrade != nil {
		e.onTrade(t)
	}
}

func (e *Engine) handleOrderUpdate(o orderbook.Order) {
	e.mu.Lock()
	if o.Status.IsTerminal() {
		if e.orderIDSymbol[o.ID] == o.Symbol {
			delete(e.orderIDSymbol, o.ID)
		}
	} else {
		e.orderIDSymbol[o.ID] = o.Symbol
	}
	e.mu.Unlock()

	if e.onOrderUpdate != nil {
		e.onOrderUpdate(o)
	}
}

// AddOrder routes order to its symbol's book, creating the book on first
// use, and returns the trades produced.
func (e *Engine) AddOrder(order *orderbook.Order, now time.Time) []orderbook.Trade {
	book := e.bookFor(order.Symbol)

	e.mu.Lock()
	e.orderIDSymbol[order.ID] = order.Symbol
	e.stats.TotalOrders++
	e.mu.Unlock()

	return book.Add(order, now)
}

// CancelOrder resolves order_id's symbol via the routing map and
// delegates to that book.
func (e *Engine) CancelOrder(orderID string) bool {
	e.mu.RLock()
	symbol, ok := e.orderIDSymbol[orderID]
	e.mu.RUnlock()
	if !ok {
		return false
	}

	book := e.bookFor(symbol)
	ok = book.Cancel(orderID)
	if ok {
		e.mu.Lock()
		delete(e.orderIDSymbol, orderID)
		if e.stats.TotalOrders > 0 {
			e.stats.TotalOrders--
		}
		e.mu.Unlock()
	}
	return ok
}

// ModifyOrder resolves order_id's symbol and delegates.
func (e *Engine) ModifyOrder(orderID string, newPrice, newQuantity uint64, now time.Time) bool {
	e.mu.RLock()
	symbol, ok := e.orderIDSymbol[orderID]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	return e.bookFor(symbol).Modify(orderID, newPrice, newQuantity, now)
}

// GetOrder resolves order_id's symbol and returns its current snapshot.
func (e *Engine) GetOrder(orderID string) (orderbook.Order, bool) {
	e.mu.RLock()
	symbol, ok := e.orderIDSymbol[orderID]
	e.mu.RUnlock()
	if ok {
		if o, found := e.bookFor(symbol).Get(orderID); found {
			return o, true
		}
	}
	// The order may have gone terminal and dropped out of the routing
	// map already; fall back to scanning every book's recent-terminal
	// cache before giving up.
	e.mu.RLock()
	symbols := make([]string, 0, len(e.books))
	for s := range e.books {
		symbols = append(symbols, s)
	}
	e.mu.RUnlock()
	for _, s := range symbols {
		if o, found := e.bookFor(s).Get(orderID); found {
			return o, true
		}
	}
	return orderbook.Order{}, false
}

// GetUserOrders scans every book for live orders owned by userID.
func (e *Engine) GetUserOrders(userID string) []orderbook.Order {
	e.mu.RLock()
	books := make([]*orderbook.OrderBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	var out []orderbook.Order
	for _, b := range books {
		out = append(out, b.UserOrders(userID)...)
	}
	return out
}

// GetUserTrades concatenates per-book trade history matches for userID.
func (e *Engine) GetUserTrades(userID string) []orderbook.Trade {
	e.mu.RLock()
	books := make([]*orderbook.OrderBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	var out []orderbook.Trade
	for _, b := range books {
		out = append(out, b.UserTrades(userID)...)
	}
	return out
}

// BestBid, BestAsk, Spread, BidLevels, AskLevels, BidDepth and AskDepth
// resolve symbol to its book (creating it empty if unseen) and delegate.

func (e *Engine) BestBid(symbol string) uint64  { return e.bookFor(symbol).BestBid() }
func (e *Engine) BestAsk(symbol string) uint64  { return e.bookFor(symbol).BestAsk() }
func (e *Engine) Spread(symbol string) uint64   { return e.bookFor(symbol).Spread() }

func (e *Engine) BidLevels(symbol string, n int) []orderbook.LevelSnapshot {
	return e.bookFor(symbol).BidLevels(n)
}

func (e *Engine) AskLevels(symbol string, n int) []orderbook.LevelSnapshot {
	return e.bookFor(symbol).AskLevels(n)
}

func (e *Engine) BidDepth(symbol string, price uint64) uint64 {
	return e.bookFor(symbol).BidDepth(price)
}

func (e *Engine) AskDepth(symbol string, price uint64) uint64 {
	return e.bookFor(symbol).AskDepth(price)
}

// GetOrderCount returns the number of live orders resting in symbol's book.
func (e *Engine) GetOrderCount(symbol string) int {
	return e.bookFor(symbol).OrderCount()
}

// ArmedStopCount returns the number of Stop/StopLimit orders parked
// awaiting trigger in symbol's book.
func (e *Engine) ArmedStopCount(symbol string) int {
	return e.bookFor(symbol).ArmedStopCount()
}

// AverageSpread returns symbol's book's mean top-of-book spread across
// depth levels on each side.
func (e *Engine) AverageSpread(symbol string, depth int) float64 {
	return e.bookFor(symbol).AverageSpread(depth)
}

// OrderToTradeRatio returns symbol's book's accepted-orders-per-trade
// ratio.
func (e *Engine) OrderToTradeRatio(symbol string) float64 {
	return e.bookFor(symbol).OrderToTradeRatio()
}

// CancellationRate returns symbol's book's estimated share of accepted
// orders no longer live.
func (e *Engine) CancellationRate(symbol string) float64 {
	return e.bookFor(symbol).CancellationRate()
}

// Symbols returns every symbol with a book, for callers that need to
// iterate (metrics export, the expiry sweep) without reaching into
// engine internals.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	return out
}

// GetAllOrders returns every live order across every book.
func (e *Engine) GetAllOrders() []orderbook.Order {
	e.mu.RLock()
	books := make([]*orderbook.OrderBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	var out []orderbook.Order
	for _, b := range books {
		out = append(out, b.AllOrders()...)
	}
	return out
}

// Stats returns the engine's aggregate counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Clear resets every book and the engine's own routing map and stats.
func (e *Engine) Clear() {
	e.mu.Lock()
	books := make([]*orderbook.OrderBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.orderIDSymbol = make(map[string]string)
	e.stats = Stats{}
	e.mu.Unlock()

	for _, b := range books {
		b.Clear()
	}
}

// CancelExpiredOrders fans out cancel_expired to every book and returns
// the total number of orders cancelled.
func (e *Engine) CancelExpiredOrders(now time.Time) int {
	e.mu.RLock()
	books := make([]*orderbook.OrderBook, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	total := 0
	for _, b := range books {
		n := b.CancelExpired(now)
		total += n
		if n > 0 {
			e.mu.Lock()
			if int(e.stats.TotalOrders) >= n {
				e.stats.TotalOrders -= uint64(n)
			}
			e.mu.Unlock()
		}
	}
	return total
}

// RestoreOrder replays a resting order into its book without matching or
// firing subscriber callbacks, for startup recovery from persisted state.
func (e *Engine) RestoreOrder(order *orderbook.Order) {
	book := e.bookFor(order.Symbol)
	book.RestoreOrder(order)

	e.mu.Lock()
	e.orderIDSymbol[order.ID] = order.Symbol
	e.stats.TotalOrders++
	e.mu.Unlock()
}

// RestoreTrade appends a trade to its symbol's local history during
// replay, without re-running matching.
func (e *Engine) RestoreTrade(symbol string, t orderbook.Trade) {
	e.bookFor(symbol).AddTradeHistory(t)

	e.mu.Lock()
	e.stats.TotalTrades++
	e.stats.TotalVolume += t.Quantity
	e.mu.Unlock()
}
