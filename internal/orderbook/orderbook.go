package orderbook

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

const recentTerminalCapacity = 256

// priceLevel is the set of resting orders at one price on one side,
// preserving arrival order.
type priceLevel struct {
	Price         uint64
	Orders        *list.List // *Order, FIFO by arrival
	TotalQuantity uint64
}

// OrderBook holds one symbol's resting orders and owns all matching,
// resting, cancel, modify and expiry logic for that symbol.
//
// Locking discipline (spec.md §5): levelsMu guards bids/asks/price
// slices and is held for the whole of a matching pass. idMu guards
// ordersByID and the recent-terminal cache. The two are never held
// simultaneously: cancel acquires idMu then levelsMu; matching only
// ever touches levelsMu, recording which orders went terminal, and
// idMu bookkeeping happens after levelsMu is released.
type OrderBook struct {
	Symbol string

	levelsMu sync.RWMutex
	bids     map[uint64]*priceLevel // keyed by price
	asks     map[uint64]*priceLevel
	bidPrices []uint64 // descending
	askPrices []uint64 // ascending

	armedStops []*Order // Stop/StopLimit orders parked awaiting trigger

	idMu           sync.RWMutex
	ordersByID     map[string]*Order
	recentTerminal *recentTerminal

	historyMu    sync.RWMutex
	tradeHistory []Trade

	seq uint64 // FIFO tiebreaker + trade counter generator, guarded by levelsMu

	// totalOrders/totalTrades/totalVolume back Stats() and are touched from
	// Add/finishTriggeredStop/RestoreOrder without levelsMu held (matching
	// the original reference implementation's use of std::atomic<size_t>
	// for the equivalent counters in order_book.hpp rather than taking the book lock just to
	// bump a running total).
	totalOrders atomic.Uint64
	totalTrades atomic.Uint64
	totalVolume atomic.Uint64

	onTrade       func(Trade)
	onOrderUpdate func(Order)
}

// New creates an empty order book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol:         symbol,
		bids:           make(map[uint64]*priceLevel),
		asks:           make(map[uint64]*priceLevel),
		ordersByID:     make(map[string]*Order),
		recentTerminal: newRecentTerminal(recentTerminalCapacity),
	}
}

// SetCallbacks installs the order-update and trade sinks. Not safe to
// call concurrently with Add/Cancel/Modify.
func (ob *OrderBook) SetCallbacks(onTrade func(Trade), onOrderUpdate func(Order)) {
	ob.onTrade = onTrade
	ob.onOrderUpdate = onOrderUpdate
}

func (ob *OrderBook) emitTrade(t Trade) {
	if ob.onTrade != nil {
		ob.onTrade(t)
	}
}

func (ob *OrderBook) emitOrderUpdate(o *Order) {
	if ob.onOrderUpdate != nil {
		ob.onOrderUpdate(o.Snapshot())
	}
}

func (ob *OrderBook) nextSeq() uint64 {
	ob.seq++
	return ob.seq
}

// Add validates, matches and (subject to type/TIF) rests order. order.ID
// and order.Symbol must already be populated by the caller; Add assigns
// Timestamp, seq and Status.
func (ob *OrderBook) Add(order *Order, now time.Time) []Trade {
	if order.Timestamp.IsZero() {
		order.Timestamp = now
	}
	order.Status = StatusNew

	if reason := ob.validate(order); reason != RejectNone {
		order.Status = StatusRejected
		ob.idMu.Lock()
		ob.recentTerminal.add(order)
		ob.idMu.Unlock()
		ob.emitOrderUpdate(order)
		return nil
	}

	ob.levelsMu.Lock()
	order.seq = ob.nextSeq()

	if order.Type == TypeStop || order.Type == TypeStopLimit {
		ref, ok := ob.referencePriceLocked(order.Side)
		if !ok {
			ob.levelsMu.Unlock()
			order.Status = StatusRejected
			ob.idMu.Lock()
			ob.recentTerminal.add(order)
			ob.idMu.Unlock()
			ob.emitOrderUpdate(order)
			return nil
		}
		if !stopTriggered(order.Side, order.StopPrice, ref) {
			ob.armedStops = append(ob.armedStops, order)
			ob.levelsMu.Unlock()

			ob.idMu.Lock()
			ob.ordersByID[order.ID] = order
			ob.idMu.Unlock()

			ob.totalOrders.Add(1)
			ob.emitOrderUpdate(order)
			return nil
		}
	}

	trades, terminalMakers := ob.matchLocked(order, now)

	rested := false
	if order.Remaining() > 0 && ob.canRest(order) {
		ob.restLocked(order)
		rested = true
	}

	triggeredFromStops := ob.checkArmedStopsLocked(now)
	ob.levelsMu.Unlock()

	// id-map bookkeeping happens strictly after the levels lock is released.
	for _, maker := range terminalMakers {
		ob.retireLocked(maker)
	}
	if !rested && order.Remaining() == 0 {
		ob.retireLocked(order)
	} else if !rested && order.Remaining() > 0 {
		order.Status = terminalStatusForUnrested(order.Type)
		ob.retireLocked(order)
	} else {
		ob.idMu.Lock()
		ob.ordersByID[order.ID] = order
		ob.idMu.Unlock()
	}

	ob.totalOrders.Add(1)
	ob.totalTrades.Add(uint64(len(trades)))
	for _, t := range trades {
		ob.totalVolume.Add(t.Quantity)
	}
	ob.appendHistory(trades)

	for _, t := range trades {
		ob.emitTrade(t)
	}
	for _, maker := range terminalMakers {
		ob.emitOrderUpdate(maker)
	}
	ob.emitOrderUpdate(order)

	for _, triggered := range triggeredFromStops {
		ob.finishTriggeredStop(triggered, now)
	}

	return trades
}

// validate applies the acceptance-time checks that yield Rejected with
// no side effects.
func (ob *OrderBook) validate(order *Order) RejectReason {
	if order.Quantity == 0 || order.Quantity > MaxOrderQuantity {
		return RejectInvalidQuantity
	}
	if order.Type == TypeLimit || order.Type == TypeStopLimit {
		if order.Price == 0 || order.Price > MaxOrderPrice {
			return RejectInvalidPrice
		}
	}
	if order.TIF == 0 {
		order.TIF = TIFGTC
	}
	return RejectNone
}

// canRest reports whether order's type/TIF combination allows resting an
// unfilled remainder.
func (ob *OrderBook) canRest(order *Order) bool {
	switch order.Type {
	case TypeMarket, TypeStop:
		return false
	case TypeLimit, TypeStopLimit:
		return order.TIF == TIFGTC
	default:
		return false
	}
}

// referencePriceLocked returns the engine-observable reference price used
// to arm stop orders: best ask for a buy, best bid for a sell. This is a
// documented simplification versus triggering on last-trade price (see
// spec.md §9 "Stop reference — open question").
func (ob *OrderBook) referencePriceLocked(side Side) (uint64, bool) {
	if side == SideBuy {
		if len(ob.askPrices) == 0 {
			return 0, false
		}
		return ob.askPrices[0], true
	}
	if len(ob.bidPrices) == 0 {
		return 0, false
	}
	return ob.bidPrices[0], true
}

func stopTriggered(side Side, stopPrice, reference uint64) bool {
	if side == SideBuy {
		return reference >= stopPrice
	}
	return reference <= stopPrice
}

// checkArmedStopsLocked scans parked stop orders and returns the ones
// whose trigger condition is now satisfied, removing them from the
// armed list. Callers process the returned orders after releasing
// levelsMu (each re-enters Add's matching path via finishTriggeredStop).
func (ob *OrderBook) checkArmedStopsLocked(now time.Time) []*Order {
	if len(ob.armedStops) == 0 {
		return nil
	}
	var triggered []*Order
	remaining := ob.armedStops[:0]
	for _, o := range ob.armedStops {
		ref, ok := ob.referencePriceLocked(o.Side)
		if ok && stopTriggered(o.Side, o.StopPrice, ref) {
			triggered = append(triggered, o)
			continue
		}
		remaining = append(remaining, o)
	}
	ob.armedStops = remaining
	return triggered
}

// finishTriggeredStop converts a just-triggered stop/stop-limit into its
// underlying Market/Limit order and drives it through the normal
// matching path.
func (ob *OrderBook) finishTriggeredStop(order *Order, now time.Time) {
	ob.idMu.Lock()
	delete(ob.ordersByID, order.ID)
	ob.idMu.Unlock()

	if order.Type == TypeStop {
		order.Type = TypeMarket
	} else {
		order.Type = TypeStopLimit // keep identity for callers, but matches as limit below
	}

	ob.levelsMu.Lock()
	trades, terminalMakers := ob.matchLocked(order, now)
	rested := false
	if order.Remaining() > 0 && ob.canRestTriggered(order) {
		ob.restLocked(order)
		rested = true
	}
	cascaded := ob.checkArmedStopsLocked(now)
	ob.levelsMu.Unlock()

	for _, maker := range terminalMakers {
		ob.retireLocked(maker)
	}
	if !rested && order.Remaining() == 0 {
		ob.retireLocked(order)
	} else if !rested && order.Remaining() > 0 {
		order.Status = terminalStatusForUnrested(order.Type)
		ob.retireLocked(order)
	} else {
		ob.idMu.Lock()
		ob.ordersByID[order.ID] = order
		ob.idMu.Unlock()
	}

	ob.totalTrades.Add(uint64(len(trades)))
	for _, t := range trades {
		ob.totalVolume.Add(t.Quantity)
	}
	ob.appendHistory(trades)
	for _, t := range trades {
		ob.emitTrade(t)
	}
	for _, maker := range terminalMakers {
		ob.emitOrderUpdate(maker)
	}
	ob.emitOrderUpdate(order)

	for _, next := range cascaded {
		ob.finishTriggeredStop(next, now)
	}
}

func (ob *OrderBook) canRestTriggered(order *Order) bool {
	return order.Type == TypeStopLimit && order.TIF == TIFGTC
}

// terminalStatusForUnrested is the status assigned to a remainder that
// matched but could not rest. Market orders (and triggered Stop orders,
// which become Market) reject an unfilled remainder outright; Limit and
// StopLimit orders under IOC/FOK cancel it instead.
func terminalStatusForUnrested(t Type) Status {
	if t == TypeMarket || t == TypeStop {
		return StatusRejected
	}
	return StatusCancelled
}

// matchLocked runs the price-time priority matching protocol for taker
// against the opposing side. It requires levelsMu held for writing and
// applies the spec's FOK pre-scan: for a FOK taker it computes fillable
// quantity read-only first and aborts with zero trades if the order
// cannot be fully filled, rather than filling partially then cancelling.
func (ob *OrderBook) matchLocked(taker *Order, now time.Time) ([]Trade, []*Order) {
	levels, prices := ob.oppositeSide(taker.Side)

	if taker.TIF == TIFFOK && !ob.fillableLocked(taker, levels, *prices) {
		return nil, nil
	}

	var trades []Trade
	var terminalMakers []*Order

	crosses := func(makerPrice uint64) bool {
		if taker.Type == TypeMarket || taker.Type == TypeStop {
			return true
		}
		if taker.Side == SideBuy {
			return makerPrice <= taker.Price
		}
		return makerPrice >= taker.Price
	}

	for taker.Remaining() > 0 && len(*prices) > 0 {
		bestPrice := (*prices)[0]
		if !crosses(bestPrice) {
			break
		}
		level := levels[bestPrice]

		for e := level.Orders.Front(); e != nil && taker.Remaining() > 0; {
			maker := e.Value.(*Order)
			next := e.Next()

			tradeQty := minU64(taker.Remaining(), maker.Remaining())

			trade := Trade{
				TradeID:   ob.nextSeq(),
				Symbol:    ob.Symbol,
				Price:     maker.Price,
				Quantity:  tradeQty,
				Timestamp: now,
			}
			if taker.Side == SideBuy {
				trade.BuyOrderID, trade.SellOrderID = taker.ID, maker.ID
			} else {
				trade.BuyOrderID, trade.SellOrderID = maker.ID, taker.ID
			}
			trades = append(trades, trade)

			taker.FilledQuantity += tradeQty
			maker.FilledQuantity += tradeQty
			level.TotalQuantity -= tradeQty

			if maker.Remaining() == 0 {
				maker.Status = StatusFilled
				level.Orders.Remove(e)
				terminalMakers = append(terminalMakers, maker)
			} else {
				maker.Status = StatusPartial
			}

			e = next
		}

		if level.Orders.Len() == 0 {
			delete(levels, bestPrice)
			*prices = (*prices)[1:]
		}
	}

	if taker.Remaining() == 0 {
		taker.Status = StatusFilled
	} else if taker.FilledQuantity > 0 {
		taker.Status = StatusPartial
	}

	return trades, terminalMakers
}

// fillableLocked reports whether the crossing side currently holds at
// least taker.Remaining() of quantity taker could actually cross with,
// without mutating any state.
func (ob *OrderBook) fillableLocked(taker *Order, levels map[uint64]*priceLevel, prices []uint64) bool {
	need := taker.Remaining()
	for _, price := range prices {
		crosses := taker.Type == TypeMarket || taker.Type == TypeStop
		if !crosses {
			if taker.Side == SideBuy {
				crosses = price <= taker.Price
			} else {
				crosses = price >= taker.Price
			}
		}
		if !crosses {
			break
		}
		level := levels[price]
		if level.TotalQuantity >= need {
			return true
		}
		need -= level.TotalQuantity
	}
	return false
}

func (ob *OrderBook) oppositeSide(side Side) (map[uint64]*priceLevel, *[]uint64) {
	if side == SideBuy {
		return ob.asks, &ob.askPrices
	}
	return ob.bids, &ob.bidPrices
}

func (ob *OrderBook) ownSide(side Side) (map[uint64]*priceLevel, *[]uint64) {
	if side == SideBuy {
		return ob.bids, &ob.bidPrices
	}
	return ob.asks, &ob.askPrices
}

// restLocked inserts order's remainder into its own side's book. Requires
// levelsMu held for writing.
func (ob *OrderBook) restLocked(order *Order) {
	levels, prices := ob.ownSide(order.Side)

	level, exists := levels[order.Price]
	if !exists {
		level = &priceLevel{Price: order.Price, Orders: list.New()}
		levels[order.Price] = level
		*prices = insertPrice(*prices, order.Price, order.Side == SideBuy)
	}
	order.element = level.Orders.PushBack(order)
	level.TotalQuantity += order.Remaining()
}

func (ob *OrderBook) retireLocked(order *Order) {
	ob.idMu.Lock()
	delete(ob.ordersByID, order.ID)
	ob.recentTerminal.add(order)
	ob.idMu.Unlock()
}

func (ob *OrderBook) appendHistory(trades []Trade) {
	if len(trades) == 0 {
		return
	}
	ob.historyMu.Lock()
	ob.tradeHistory = append(ob.tradeHistory, trades...)
	ob.historyMu.Unlock()
}

// Cancel marks order_id Cancelled and removes it from its price level (or
// the armed-stop queue). Returns false for unknown or already-terminal
// orders, without mutating state.
func (ob *OrderBook) Cancel(orderID string) bool {
	ob.idMu.Lock()
	order, exists := ob.ordersByID[orderID]
	if !exists || order.Status.IsTerminal() {
		ob.idMu.Unlock()
		return false
	}
	delete(ob.ordersByID, orderID)
	ob.idMu.Unlock()

	now := time.Now()

	ob.levelsMu.Lock()
	if order.element != nil {
		ob.removeFromLevelLocked(order)
	} else {
		ob.removeArmedStopLocked(order.ID)
	}
	order.Status = StatusCancelled
	// Removing the best price on a side can raise (asks) or lower (bids)
	// the reference price enough to trigger a parked stop order.
	triggered := ob.checkArmedStopsLocked(now)
	ob.levelsMu.Unlock()

	ob.idMu.Lock()
	ob.recentTerminal.add(order)
	ob.idMu.Unlock()

	for _, next := range triggered {
		ob.finishTriggeredStop(next, now)
	}

	ob.emitOrderUpdate(order)
	return true
}

func (ob *OrderBook) removeFromLevelLocked(order *Order) {
	levels, prices := ob.ownSide(order.Side)
	level, ok := levels[order.Price]
	if !ok {
		return
	}
	level.Orders.Remove(order.element)
	level.TotalQuantity -= order.Remaining()
	order.element = nil
	if level.Orders.Len() == 0 {
		delete(levels, order.Price)
		*prices = removePrice(*prices, order.Price)
	}
}

func (ob *OrderBook) removeArmedStopLocked(orderID string) {
	for i, o := range ob.armedStops {
		if o.ID == orderID {
			ob.armedStops = append(ob.armedStops[:i], ob.armedStops[i+1:]...)
			return
		}
	}
}

// Modify changes order_id's price/quantity. A same-price reduction in
// quantity mutates in place, preserving FIFO position. Any other change
// (price change, or a quantity increase) cancels and re-adds the order
// under the same id, which loses time priority by design (see spec.md
// §9, "Modify semantics — open question").
func (ob *OrderBook) Modify(orderID string, newPrice, newQuantity uint64, now time.Time) bool {
	ob.idMu.RLock()
	order, exists := ob.ordersByID[orderID]
	ob.idMu.RUnlock()
	if !exists || order.Status.IsTerminal() || order.Remaining() == 0 {
		return false
	}

	if newPrice == order.Price && newQuantity <= order.Quantity {
		ob.levelsMu.Lock()
		delta := order.Quantity - newQuantity
		order.Quantity = newQuantity
		if order.element != nil {
			levels, _ := ob.ownSide(order.Side)
			if level, ok := levels[order.Price]; ok {
				level.TotalQuantity -= delta
			}
		}
		ob.levelsMu.Unlock()
		ob.emitOrderUpdate(order)
		return true
	}

	// Price change or quantity increase: cancel and re-add under the same id, losing time priority.
	if !ob.Cancel(orderID) {
		return false
	}
	replacement := &Order{
		ID:        order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Type:      order.Type,
		Price:     newPrice,
		StopPrice: order.StopPrice,
		Quantity:  newQuantity,
		UserID:    order.UserID,
		Expiry:    order.Expiry,
		TIF:       order.TIF,
	}
	ob.Add(replacement, now)
	return true
}

// CancelExpired sweeps ordersByID for New orders whose expiry has passed
// and cancels each.
func (ob *OrderBook) CancelExpired(now time.Time) int {
	nowSec := now.Unix()

	ob.idMu.RLock()
	var candidates []string
	for id, o := range ob.ordersByID {
		if o.Expiry > 0 && o.Expiry <= nowSec && o.Status == StatusNew {
			candidates = append(candidates, id)
		}
	}
	ob.idMu.RUnlock()

	count := 0
	for _, id := range candidates {
		if ob.Cancel(id) {
			count++
		}
	}
	return count
}

// Clear resets the book to empty, including counters.
func (ob *OrderBook) Clear() {
	ob.levelsMu.Lock()
	ob.bids = make(map[uint64]*priceLevel)
	ob.asks = make(map[uint64]*priceLevel)
	ob.bidPrices = nil
	ob.askPrices = nil
	ob.armedStops = nil
	ob.seq = 0
	ob.levelsMu.Unlock()

	ob.idMu.Lock()
	ob.ordersByID = make(map[string]*Order)
	ob.recentTerminal = newRecentTerminal(recentTerminalCapacity)
	ob.idMu.Unlock()

	ob.historyMu.Lock()
	ob.tradeHistory = nil
	ob.historyMu.Unlock()

	ob.totalOrders.Store(0)
	ob.totalTrades.Store(0)
	ob.totalVolume.Store(0)
}

// BestBid returns the top bid price, or 0 if the bid side is empty.
func (ob *OrderBook) BestBid() uint64 {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	if len(ob.bidPrices) == 0 {
		return 0
	}
	return ob.bidPrices[0]
}

// BestAsk returns the top ask price, or 0 if the ask side is empty.
func (ob *OrderBook) BestAsk() uint64 {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	if len(ob.askPrices) == 0 {
		return 0
	}
	return ob.askPrices[0]
}

// Spread returns best_ask - best_bid, or 0 if either side is empty.
func (ob *OrderBook) Spread() uint64 {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	if len(ob.bidPrices) == 0 || len(ob.askPrices) == 0 {
		return 0
	}
	ask, bid := ob.askPrices[0], ob.bidPrices[0]
	if ask < bid {
		return 0
	}
	return ask - bid
}

// BidLevels returns the first n bid levels, best price first.
func (ob *OrderBook) BidLevels(n int) []LevelSnapshot {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	return ob.levelsLocked(ob.bids, ob.bidPrices, n)
}

// AskLevels returns the first n ask levels, best price first.
func (ob *OrderBook) AskLevels(n int) []LevelSnapshot {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	return ob.levelsLocked(ob.asks, ob.askPrices, n)
}

func (ob *OrderBook) levelsLocked(levels map[uint64]*priceLevel, prices []uint64, n int) []LevelSnapshot {
	if n <= 0 || n > len(prices) {
		n = len(prices)
	}
	out := make([]LevelSnapshot, 0, n)
	for i := 0; i < n; i++ {
		level := levels[prices[i]]
		snap := LevelSnapshot{Price: level.Price, Quantity: level.TotalQuantity}
		for e := level.Orders.Front(); e != nil; e = e.Next() {
			snap.Orders = append(snap.Orders, e.Value.(*Order).Snapshot())
		}
		out = append(out, snap)
	}
	return out
}

// BidDepth returns total resting bid quantity at prices >= price.
func (ob *OrderBook) BidDepth(price uint64) uint64 {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	var total uint64
	for _, p := range ob.bidPrices {
		if p >= price {
			total += ob.bids[p].TotalQuantity
		}
	}
	return total
}

// AskDepth returns total resting ask quantity at prices <= price.
func (ob *OrderBook) AskDepth(price uint64) uint64 {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	var total uint64
	for _, p := range ob.askPrices {
		if p <= price {
			total += ob.asks[p].TotalQuantity
		}
	}
	return total
}

// Get returns a snapshot of order_id, or false if unknown (recently
// terminal orders are still visible for a bounded window).
func (ob *OrderBook) Get(orderID string) (Order, bool) {
	ob.idMu.RLock()
	defer ob.idMu.RUnlock()
	if o, ok := ob.ordersByID[orderID]; ok {
		return o.Snapshot(), true
	}
	if o, ok := ob.recentTerminal.get(orderID); ok {
		return o.Snapshot(), true
	}
	return Order{}, false
}

// AllOrders returns a snapshot of every currently-live order (New/Partial
// and armed stops), in no particular order.
func (ob *OrderBook) AllOrders() []Order {
	ob.idMu.RLock()
	defer ob.idMu.RUnlock()
	out := make([]Order, 0, len(ob.ordersByID))
	for _, o := range ob.ordersByID {
		out = append(out, o.Snapshot())
	}
	return out
}

// OrderCount returns the number of currently-live orders.
func (ob *OrderBook) OrderCount() int {
	ob.idMu.RLock()
	defer ob.idMu.RUnlock()
	return len(ob.ordersByID)
}

// UserOrders returns live orders belonging to userID.
func (ob *OrderBook) UserOrders(userID string) []Order {
	ob.idMu.RLock()
	defer ob.idMu.RUnlock()
	var out []Order
	for _, o := range ob.ordersByID {
		if o.UserID == userID {
			out = append(out, o.Snapshot())
		}
	}
	return out
}

// UserTrades scans trade_history for trades touching an order owned by
// userID.
func (ob *OrderBook) UserTrades(userID string) []Trade {
	ob.idMu.RLock()
	owned := make(map[string]bool)
	for id, o := range ob.ordersByID {
		if o.UserID == userID {
			owned[id] = true
		}
	}
	for _, o := range ob.recentTerminal.orders {
		if o != nil && o.UserID == userID {
			owned[o.ID] = true
		}
	}
	ob.idMu.RUnlock()

	ob.historyMu.RLock()
	defer ob.historyMu.RUnlock()
	var out []Trade
	for _, t := range ob.tradeHistory {
		if owned[t.BuyOrderID] || owned[t.SellOrderID] {
			out = append(out, t)
		}
	}
	return out
}

// AddTradeHistory appends a trade to the local log without re-running
// matching or firing callbacks; used to restore trade history on replay
// (spec.md §6, replay contract).
func (ob *OrderBook) AddTradeHistory(t Trade) {
	ob.historyMu.Lock()
	ob.tradeHistory = append(ob.tradeHistory, t)
	ob.historyMu.Unlock()
}

// RestoreOrder inserts a resting limit order directly into its level
// without matching or emitting events, for startup recovery replay.
func (ob *OrderBook) RestoreOrder(order *Order) {
	ob.levelsMu.Lock()
	order.seq = ob.nextSeq()
	order.Status = StatusNew
	if order.Type == TypeStop || order.Type == TypeStopLimit {
		// A persisted Stop/StopLimit order was, by definition, still
		// armed when it was written; replay parks it without
		// re-evaluating the trigger against whatever reference price
		// the freshly rebuilt book happens to have at this point in
		// replay order.
		ob.armedStops = append(ob.armedStops, order)
	} else {
		ob.restLocked(order)
	}
	ob.levelsMu.Unlock()

	ob.idMu.Lock()
	ob.ordersByID[order.ID] = order
	ob.idMu.Unlock()

	ob.totalOrders.Add(1)
}

// Stats returns the book's order/trade/volume counters.
func (ob *OrderBook) Stats() (orders, trades, volume uint64) {
	return ob.totalOrders.Load(), ob.totalTrades.Load(), ob.totalVolume.Load()
}

// AverageSpread returns the mean ask-minus-bid spread across the top
// depth price levels on each side, or 0 if either side is empty.
func (ob *OrderBook) AverageSpread(depth int) float64 {
	bids := ob.BidLevels(depth)
	asks := ob.AskLevels(depth)
	n := len(bids)
	if len(asks) < n {
		n = len(asks)
	}
	if n == 0 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		total += float64(asks[i].Price) - float64(bids[i].Price)
	}
	return total / float64(n)
}

// OrderToTradeRatio returns total orders accepted divided by total trades
// executed, or 0 if no trade has happened yet. A high ratio indicates a
// book dominated by resting/cancelled orders relative to fills.
func (ob *OrderBook) OrderToTradeRatio() float64 {
	trades := ob.totalTrades.Load()
	if trades == 0 {
		return 0
	}
	return float64(ob.totalOrders.Load()) / float64(trades)
}

// CancellationRate estimates the share of accepted orders no longer live,
// relative to total orders accepted. This mirrors the simplification in
// the original reference implementation: it counts every order that left
// the live index, not strictly cancellations, so it over-counts orders
// that went terminal by filling or rejection rather than by Cancel.
func (ob *OrderBook) CancellationRate() float64 {
	total := ob.totalOrders.Load()
	if total == 0 {
		return 0
	}
	live := uint64(ob.OrderCount())
	return float64(total-live) / float64(total)
}

// ArmedStopCount returns the number of Stop/StopLimit orders currently
// parked awaiting trigger.
func (ob *OrderBook) ArmedStopCount() int {
	ob.levelsMu.RLock()
	defer ob.levelsMu.RUnlock()
	return len(ob.armedStops)
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// insertPrice inserts price into a sorted slice, descending for bids and
// ascending for asks, and returns the updated slice.
func insertPrice(prices []uint64, price uint64, descending bool) []uint64 {
	i := 0
	for i < len(prices) {
		if descending {
			if price > prices[i] {
				break
			}
		} else {
			if price < prices[i] {
				break
			}
		}
		i++
	}
	prices = append(prices, 0)
	copy(prices[i+1:], prices[i:])
	prices[i] = price
	return prices
}

func removePrice(prices []uint64, price uint64) []uint64 {
	for i, p := range prices {
		if p == price {
			return append(prices[:i], prices[i+1:]...)
		}
	}
	return prices
}
