package recovery

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestParseScaledUint(t *testing.T) {
	cases := []struct {
		name      string
		value     string
		precision int
		want      uint64
		wantErr   bool
	}{
		{name: "empty", value: "", precision: 2, want: 0},
		{name: "integer string", value: "42", precision: 0, want: 42},
		{name: "decimal scaled up", value: "123.45", precision: 2, want: 12345},
		{name: "decimal trailing zero precision", value: "1.5", precision: 4, want: 15000},
		{name: "whitespace trimmed", value: "  7  ", precision: 0, want: 7},
		{name: "garbage", value: "not-a-number", precision: 2, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseScaledUint(tc.value, tc.precision)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("parseScaledUint(%q, %d) = %d, want %d", tc.value, tc.precision, got, tc.want)
			}
		})
	}
}

func TestSideToString(t *testing.T) {
	if got := sideToString(1); got != "BUY" {
		t.Fatalf("side 1 = %q, want BUY", got)
	}
	if got := sideToString(2); got != "SELL" {
		t.Fatalf("side 2 = %q, want SELL", got)
	}
	if got := sideToString(99); got != "" {
		t.Fatalf("unknown side = %q, want empty", got)
	}
}

func TestOrderTypeToString(t *testing.T) {
	cases := map[int]string{1: "MARKET", 2: "LIMIT", 3: "STOP", 4: "STOP_LIMIT", 0: ""}
	for code, want := range cases {
		if got := orderTypeToString(code); got != want {
			t.Fatalf("orderType %d = %q, want %q", code, got, want)
		}
	}
}

func TestTimeInForceToString(t *testing.T) {
	cases := map[int]string{1: "GTC", 2: "IOC", 3: "FOK", 0: ""}
	for code, want := range cases {
		if got := timeInForceToString(code); got != want {
			t.Fatalf("tif %d = %q, want %q", code, got, want)
		}
	}
}

func TestListActiveSymbolsNilDB(t *testing.T) {
	var l *DBOrderLoader
	if _, err := l.ListActiveSymbols(nil); err == nil {
		t.Fatal("expected error for unconfigured loader")
	}
}

func TestLoadOpenOrdersNilDB(t *testing.T) {
	l := NewDBOrderLoader(nil)
	if _, err := l.LoadOpenOrders(nil, "BTCUSDT"); err == nil {
		t.Fatal("expected error for unconfigured loader")
	}
}

func TestListActiveSymbolsQueriesDistinctSymbols(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"symbol"}).AddRow("BTCUSDT").AddRow("ETHUSDT")
	mock.ExpectQuery("SELECT DISTINCT symbol").WillReturnRows(rows)

	l := NewDBOrderLoader(db)
	symbols, err := l.ListActiveSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListActiveSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Fatalf("unexpected symbols: %v", symbols)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadOpenOrdersMapsRowsAndComputesLeavesQty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cols := []string{
		"order_id", "client_order_id", "user_id", "symbol", "side", "type",
		"time_in_force", "price", "stop_price", "orig_qty", "executed_qty",
		"create_time_ms", "price_precision", "qty_precision",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"ord-1", "cli-1", "user-1", "BTCUSDT", 1, 2, 1,
		"100.50", "", "2.0", "0.5", int64(1000), 2, 4,
	)
	mock.ExpectQuery("SELECT").WithArgs("BTCUSDT").WillReturnRows(rows)

	l := NewDBOrderLoader(db)
	orders, err := l.LoadOpenOrders(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("LoadOpenOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.OrderID != "ord-1" || o.Side != "BUY" || o.OrderType != "LIMIT" || o.TimeInForce != "GTC" {
		t.Fatalf("unexpected mapped fields: %+v", o)
	}
	if o.Price != 10050 {
		t.Fatalf("expected price 10050, got %d", o.Price)
	}
	if o.LeavesQty != 15000 {
		t.Fatalf("expected leaves qty 15000 (2.0-0.5 @ precision 4), got %d", o.LeavesQty)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
