// Package validate checks order fields at the host boundary before they
// reach the matching engine, so a malformed command is rejected with a
// structured error instead of panicking deep inside an order book.
package validate

import (
	stderrors "errors"
	"regexp"
	"strings"

	commonerrors "github.com/exchange/clob/pkg/errors"
)

const defaultPrecision = 8

var (
	symbolAllowedRe = regexp.MustCompile(`^[A-Z_]{3,20}$`)
	symbolPartRe    = regexp.MustCompile(`^[A-Z]{1,19}$`)
	clientOrderIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,36}$`)
)

// Symbol checks a trading pair like BTC_USDT.
func Symbol(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return commonerrors.New(commonerrors.CodeInvalidParam, "symbol is required")
	}
	if len(s) < 3 || len(s) > 20 || !symbolAllowedRe.MatchString(s) {
		return commonerrors.Newf(commonerrors.CodeInvalidParam, "invalid symbol: %q (expected BASE_QUOTE, uppercase letters and underscore, length 3-20)", s)
	}
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return commonerrors.Newf(commonerrors.CodeInvalidParam, "invalid symbol: %q (expected BASE_QUOTE)", s)
	}
	if !symbolPartRe.MatchString(parts[0]) || !symbolPartRe.MatchString(parts[1]) {
		return commonerrors.Newf(commonerrors.CodeInvalidParam, "invalid symbol: %q (BASE/QUOTE must be uppercase letters)", s)
	}
	return nil
}

// Side checks an order side.
func Side(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "SELL":
		return nil
	default:
		return commonerrors.Newf(commonerrors.CodeInvalidSide, "invalid side: %q (expected BUY or SELL)", s)
	}
}

// OrderType checks an order type against the four types the engine
// supports: LIMIT, MARKET, STOP, STOP_LIMIT.
func OrderType(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMIT", "MARKET", "STOP", "STOP_LIMIT":
		return nil
	default:
		return commonerrors.Newf(commonerrors.CodeInvalidOrderType, "invalid order type: %q (expected LIMIT/MARKET/STOP/STOP_LIMIT)", s)
	}
}

// TimeInForce checks a time-in-force value. POST_ONLY is not part of this
// engine's order-type matrix, unlike the wider platform's.
func TimeInForce(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GTC", "IOC", "FOK":
		return nil
	default:
		return commonerrors.Newf(commonerrors.CodeInvalidTimeInForce, "invalid timeInForce: %q (expected GTC/IOC/FOK)", s)
	}
}

// Price checks that price is positive and respects precision, the number
// of decimal digits allowed under the scaled-integer representation
// (price is assumed scaled by 10^defaultPrecision).
func Price(price int64, precision int) error {
	if price <= 0 {
		return commonerrors.Newf(commonerrors.CodeInvalidPrice, "invalid price: %d (must be > 0)", price)
	}
	if precision < 0 || precision > defaultPrecision {
		return commonerrors.Newf(commonerrors.CodeInvalidPrice, "invalid price precision: %d (expected 0..%d)", precision, defaultPrecision)
	}
	if precision == defaultPrecision {
		return nil
	}
	factor := pow10i(defaultPrecision - precision)
	if factor <= 0 {
		return commonerrors.Newf(commonerrors.CodeInvalidPrice, "invalid price precision: %d", precision)
	}
	if price%factor != 0 {
		return commonerrors.Newf(commonerrors.CodeInvalidPrice, "invalid price: %d (precision=%d, expected multiple of %d)", price, precision, factor)
	}
	return nil
}

func pow10i(n int) int64 {
	if n < 0 {
		return 0
	}
	factor := int64(1)
	for i := 0; i < n; i++ {
		factor *= 10
	}
	return factor
}

// Quantity checks that qty is positive and within [min, max], where a
// zero bound means unbounded.
func Quantity(qty int64, min, max int64) error {
	if qty <= 0 {
		return commonerrors.Newf(commonerrors.CodeInvalidQuantity, "invalid quantity: %d (must be > 0)", qty)
	}
	if min > 0 && qty < min {
		return commonerrors.Newf(commonerrors.CodeInvalidQuantity, "invalid quantity: %d (min=%d)", qty, min)
	}
	if max > 0 && qty > max {
		return commonerrors.Newf(commonerrors.CodeInvalidQuantity, "invalid quantity: %d (max=%d)", qty, max)
	}
	if min > 0 && max > 0 && min > max {
		return commonerrors.Newf(commonerrors.CodeInvalidQuantity, "invalid quantity range: min=%d > max=%d", min, max)
	}
	return nil
}

// ClientOrderID checks a client-supplied idempotency key.
func ClientOrderID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return commonerrors.New(commonerrors.CodeInvalidParam, "clientOrderID is required")
	}
	if !clientOrderIDRe.MatchString(id) {
		return commonerrors.Newf(commonerrors.CodeInvalidParam, "invalid clientOrderID: %q (expected 1-36 chars, [A-Za-z0-9_-])", id)
	}
	return nil
}

// StopPrice checks the trigger price carried by STOP and STOP_LIMIT
// orders. It uses the same precision rule as Price.
func StopPrice(price int64, precision int) error {
	if err := Price(price, precision); err != nil {
		var ce *commonerrors.Error
		if stderrors.As(err, &ce) {
			return commonerrors.Newf(commonerrors.CodeInvalidPrice, "invalid stopPrice: %d", price)
		}
		return err
	}
	return nil
}

type ValidationError struct {
	Field   string
	Code    commonerrors.Code
	Message string
}

// Validator accumulates field errors across several checks so a command
// can be rejected with the full set of problems at once.
type Validator struct {
	errors []ValidationError
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) add(field string, err error) *Validator {
	if err == nil {
		return v
	}
	var ce *commonerrors.Error
	if ok := stderrors.As(err, &ce); ok && ce != nil {
		v.errors = append(v.errors, ValidationError{Field: field, Code: ce.Code, Message: ce.Message})
		return v
	}
	v.errors = append(v.errors, ValidationError{Field: field, Code: commonerrors.CodeInvalidParam, Message: err.Error()})
	return v
}

func (v *Validator) Symbol(field, value string) *Validator {
	return v.add(field, Symbol(value))
}

func (v *Validator) Side(field, value string) *Validator {
	return v.add(field, Side(value))
}

func (v *Validator) OrderType(field, value string) *Validator {
	return v.add(field, OrderType(value))
}

func (v *Validator) TimeInForce(field, value string) *Validator {
	return v.add(field, TimeInForce(value))
}

func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.add(field, commonerrors.Newf(commonerrors.CodeInvalidParam, "%s is required", field))
	}
	return v
}

func (v *Validator) Errors() []ValidationError {
	out := make([]ValidationError, len(v.errors))
	copy(out, v.errors)
	return out
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) FirstError() *ValidationError {
	if len(v.errors) == 0 {
		return nil
	}
	return &v.errors[0]
}
