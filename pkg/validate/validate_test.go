package validate

import "testing"

func TestSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "BTC_USDT", false},
		{"empty", "", true},
		{"lowercase", "btc_usdt", true},
		{"no underscore", "BTCUSDT", true},
		{"too many parts", "BTC_USDT_X", true},
		{"too short", "BT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Symbol(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Symbol(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSide(t *testing.T) {
	if err := Side("buy"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Side("SELL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Side("hold"); err == nil {
		t.Fatal("expected error for invalid side")
	}
}

func TestOrderType(t *testing.T) {
	valid := []string{"LIMIT", "market", "Stop", "stop_limit"}
	for _, v := range valid {
		if err := OrderType(v); err != nil {
			t.Fatalf("OrderType(%q) unexpected error: %v", v, err)
		}
	}
	if err := OrderType("POST_ONLY"); err == nil {
		t.Fatal("expected error for unsupported order type")
	}
}

func TestTimeInForce(t *testing.T) {
	valid := []string{"GTC", "ioc", "Fok"}
	for _, v := range valid {
		if err := TimeInForce(v); err != nil {
			t.Fatalf("TimeInForce(%q) unexpected error: %v", v, err)
		}
	}
	if err := TimeInForce("POST_ONLY"); err == nil {
		t.Fatal("expected error for POST_ONLY, which this engine does not support")
	}
}

func TestPrice(t *testing.T) {
	if err := Price(0, 8); err == nil {
		t.Fatal("expected error for zero price")
	}
	if err := Price(-100, 8); err == nil {
		t.Fatal("expected error for negative price")
	}
	if err := Price(12345678, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// precision=2 under defaultPrecision=8 requires a multiple of 10^6.
	if err := Price(1_000_000, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Price(1_000_001, 2); err == nil {
		t.Fatal("expected error for price violating precision")
	}
}

func TestQuantity(t *testing.T) {
	if err := Quantity(0, 0, 0); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if err := Quantity(5, 10, 0); err == nil {
		t.Fatal("expected error below min")
	}
	if err := Quantity(100, 0, 50); err == nil {
		t.Fatal("expected error above max")
	}
	if err := Quantity(25, 10, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientOrderID(t *testing.T) {
	if err := ClientOrderID(""); err == nil {
		t.Fatal("expected error for empty id")
	}
	if err := ClientOrderID("order one"); err == nil {
		t.Fatal("expected error for id containing a space")
	}
	if err := ClientOrderID("order-1_ABC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopPrice(t *testing.T) {
	if err := StopPrice(0, 8); err == nil {
		t.Fatal("expected error for zero stop price")
	}
	if err := StopPrice(5000000000, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatorAccumulatesErrors(t *testing.T) {
	v := New().Symbol("symbol", "bad").Side("side", "hold").OrderType("type", "LIMIT")

	if !v.HasErrors() {
		t.Fatal("expected accumulated errors")
	}
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors()))
	}
	if v.FirstError().Field != "symbol" {
		t.Fatalf("expected first error field symbol, got %s", v.FirstError().Field)
	}
}

func TestValidatorNoErrors(t *testing.T) {
	v := New().Symbol("symbol", "BTC_USDT").Side("side", "BUY").Required("userID", "u1")
	if v.HasErrors() {
		t.Fatalf("expected no errors, got %v", v.Errors())
	}
	if v.FirstError() != nil {
		t.Fatal("expected nil FirstError")
	}
}
