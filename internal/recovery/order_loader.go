// Package recovery replays resting orders from the order database into
// fresh order books when the matching process restarts, so a crash
// doesn't lose live GTC orders.
package recovery

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/exchange/clob/internal/types"
	"github.com/exchange/clob/pkg/decimal"
)

// DBOrderLoader loads open orders from the order database for
// matching's startup recovery pass.
type DBOrderLoader struct {
	db *sql.DB
}

func NewDBOrderLoader(db *sql.DB) *DBOrderLoader {
	return &DBOrderLoader{db: db}
}

func (l *DBOrderLoader) ListActiveSymbols(ctx context.Context) ([]string, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("db not configured")
	}
	const query = `
		SELECT DISTINCT symbol
		FROM exchange_order.orders
		WHERE status IN (1, 2) AND type IN (2, 3, 4)
		ORDER BY symbol ASC
	`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		if strings.TrimSpace(symbol) != "" {
			symbols = append(symbols, symbol)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}
	return symbols, nil
}

// LoadOpenOrders returns symbol's resting orders (status NEW/PARTIAL,
// type LIMIT/STOP/STOP_LIMIT — MARKET orders never rest) in the order
// they were created, so replay preserves price-time priority.
func (l *DBOrderLoader) LoadOpenOrders(ctx context.Context, symbol string) ([]*types.OpenOrder, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("db not configured")
	}
	const query = `
		SELECT
			o.order_id,
			COALESCE(o.client_order_id, ''),
			o.user_id,
			o.symbol,
			o.side,
			o.type,
			o.time_in_force,
			o.price::text,
			COALESCE(o.stop_price::text, ''),
			o.orig_qty::text,
			o.executed_qty::text,
			o.create_time_ms,
			sc.price_precision,
			sc.qty_precision
		FROM exchange_order.orders o
		JOIN exchange_order.symbol_configs sc ON sc.symbol = o.symbol
		WHERE o.symbol = $1
		  AND o.status IN (1, 2)
		  AND o.type IN (2, 3, 4)
		ORDER BY o.create_time_ms ASC, o.order_id ASC
	`
	rows, err := l.db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}
	defer rows.Close()

	var orders []*types.OpenOrder
	for rows.Next() {
		var (
			orderID       string
			clientOrderID string
			userID        string
			dbSymbol      string
			side          int
			orderType     int
			timeInForce   int
			priceRaw      string
			stopPriceRaw  string
			origQtyRaw    string
			executedRaw   string
			createTimeMs  int64
			pricePrec     int
			qtyPrec       int
		)
		if err := rows.Scan(
			&orderID,
			&clientOrderID,
			&userID,
			&dbSymbol,
			&side,
			&orderType,
			&timeInForce,
			&priceRaw,
			&stopPriceRaw,
			&origQtyRaw,
			&executedRaw,
			&createTimeMs,
			&pricePrec,
			&qtyPrec,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		price, err := parseScaledUint(priceRaw, pricePrec)
		if err != nil {
			return nil, fmt.Errorf("parse price: orderID=%s: %w", orderID, err)
		}
		stopPrice, err := parseScaledUint(stopPriceRaw, pricePrec)
		if err != nil {
			return nil, fmt.Errorf("parse stop_price: orderID=%s: %w", orderID, err)
		}
		origQty, err := parseScaledUint(origQtyRaw, qtyPrec)
		if err != nil {
			return nil, fmt.Errorf("parse orig_qty: orderID=%s: %w", orderID, err)
		}
		executedQty, err := parseScaledUint(executedRaw, qtyPrec)
		if err != nil {
			return nil, fmt.Errorf("parse executed_qty: orderID=%s: %w", orderID, err)
		}
		var leavesQty uint64
		if origQty > executedQty {
			leavesQty = origQty - executedQty
		}

		orders = append(orders, &types.OpenOrder{
			OrderID:       orderID,
			ClientOrderID: clientOrderID,
			UserID:        userID,
			Symbol:        dbSymbol,
			Side:          sideToString(side),
			OrderType:     orderTypeToString(orderType),
			TimeInForce:   timeInForceToString(timeInForce),
			Price:         price,
			StopPrice:     stopPrice,
			LeavesQty:     leavesQty,
			CreatedAtNs:   createTimeMs * 1_000_000,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func parseScaledUint(value string, precision int) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if strings.Contains(value, ".") {
		dec, err := decimal.New(value)
		if err != nil {
			return 0, err
		}
		scaled := dec.ToInt(precision)
		if scaled < 0 {
			return 0, fmt.Errorf("negative value: %s", value)
		}
		return uint64(scaled), nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func sideToString(side int) string {
	switch side {
	case 1:
		return "BUY"
	case 2:
		return "SELL"
	default:
		return ""
	}
}

func orderTypeToString(orderType int) string {
	switch orderType {
	case 1:
		return "MARKET"
	case 2:
		return "LIMIT"
	case 3:
		return "STOP"
	case 4:
		return "STOP_LIMIT"
	default:
		return ""
	}
}

func timeInForceToString(tif int) string {
	switch tif {
	case 1:
		return "GTC"
	case 2:
		return "IOC"
	case 3:
		return "FOK"
	default:
		return ""
	}
}
