// Package orderbook implements the per-symbol limit order book: matching,
// resting, cancellation, modification, expiry and depth/spread queries.
package orderbook

import (
	"container/list"
	"time"
)

// Side is the direction of an order.
type Side int

const (
	SideBuy Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Type is the order type.
type Type int

const (
	TypeMarket Type = iota + 1
	TypeLimit
	TypeStop
	TypeStopLimit
)

func (t Type) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	case TypeStop:
		return "STOP"
	case TypeStopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce governs an order's lifetime after its initial match pass.
type TimeInForce int

const (
	TIFGTC TimeInForce = iota + 1
	TIFIOC
	TIFFOK
)

func (tif TimeInForce) String() string {
	switch tif {
	case TIFGTC:
		return "GTC"
	case TIFIOC:
		return "IOC"
	case TIFFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// Status is the lifecycle state of an order. New/Partial are non-terminal;
// Filled/Cancelled/Rejected are terminal.
type Status int

const (
	StatusNew Status = iota + 1
	StatusPartial
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartial:
		return "PARTIAL"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

const (
	// MaxOrderQuantity is the largest quantity accepted for any order.
	MaxOrderQuantity uint64 = 1_000_000
	// MaxOrderPrice is the largest price accepted for a limit order.
	MaxOrderPrice uint64 = 1_000_000
)

// Order is a trading intention. Identity fields are set at construction
// and never change; fill state and status mutate only under the owning
// book's level lock.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Type           Type
	Price          uint64
	StopPrice      uint64
	Quantity       uint64
	FilledQuantity uint64
	Status         Status
	UserID         string
	Timestamp      time.Time
	Expiry         int64 // epoch seconds, 0 = no expiry
	TIF            TimeInForce

	seq     uint64 // monotonic tiebreaker assigned at acceptance, breaks equal-timestamp ties
	element *list.Element
}

// Remaining returns the quantity not yet filled.
func (o *Order) Remaining() uint64 {
	if o.FilledQuantity >= o.Quantity {
		return 0
	}
	return o.Quantity - o.FilledQuantity
}

// Snapshot returns a value copy safe to hand to callers/callbacks.
func (o *Order) Snapshot() Order {
	cp := *o
	cp.element = nil
	return cp
}

// Trade is a single match between a resting maker and an incoming taker.
// Price is always the maker's price (price improvement accrues to the taker).
type Trade struct {
	TradeID     uint64
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	Price       uint64
	Quantity    uint64
	Timestamp   time.Time
}

// PriceQty is a single depth-of-book entry.
type PriceQty struct {
	Price uint64
	Qty   uint64
}

// LevelSnapshot describes one price level for depth queries.
type LevelSnapshot struct {
	Price    uint64
	Quantity uint64
	Orders   []Order
}

// RejectReason enumerates why Add() rejected an order without matching it.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectInvalidQuantity  RejectReason = "INVALID_QUANTITY"
	RejectInvalidPrice     RejectReason = "INVALID_PRICE"
	RejectStopUntriggerable RejectReason = "STOP_UNTRIGGERABLE"
)
