// Package types holds wire and persistence shapes shared between
// internal/handler and internal/recovery without either importing the
// other.
package types

// OpenOrder is a resting-order snapshot loaded from the order database
// at startup, replayed directly into a book without re-matching.
type OpenOrder struct {
	OrderID       string
	ClientOrderID string
	UserID        string
	Symbol        string
	Side          string // BUY/SELL
	OrderType     string // LIMIT/MARKET/STOP/STOP_LIMIT
	TimeInForce   string // GTC/IOC/FOK
	Price         uint64
	StopPrice     uint64
	LeavesQty     uint64
	CreatedAtNs   int64
}
