// Package errors defines a unified error-code vocabulary for engine
// outcomes and transport failures. pkg/validate builds its validation
// errors from it; no other package in this module imports it.
package errors

import (
	"fmt"
	"net/http"
)

type Code string

const (
	// General (1xxx)
	CodeOK             Code = "OK"
	CodeUnknown        Code = "UNKNOWN"
	CodeInvalidParam   Code = "INVALID_PARAM"
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInternal       Code = "INTERNAL"
	CodeUnavailable    Code = "UNAVAILABLE"
	CodeTimeout        Code = "TIMEOUT"

	// Rate limiting (3xxx)
	CodeRateLimited Code = "RATE_LIMITED"

	// Trading (4xxx)
	CodeSymbolNotFound      Code = "SYMBOL_NOT_FOUND"
	CodeInvalidSide         Code = "INVALID_SIDE"
	CodeInvalidOrderType    Code = "INVALID_ORDER_TYPE"
	CodeInvalidTimeInForce  Code = "INVALID_TIME_IN_FORCE"
	CodeInvalidPrice        Code = "INVALID_PRICE"
	CodeInvalidQuantity     Code = "INVALID_QUANTITY"
	CodeOrderNotFound       Code = "ORDER_NOT_FOUND"
	CodeOrderAlreadyCanceled Code = "ORDER_ALREADY_CANCELED"
	CodeOrderAlreadyFilled  Code = "ORDER_ALREADY_FILLED"
	CodeStopUntriggerable   Code = "STOP_UNTRIGGERABLE"

	// System (9xxx)
	CodeSystemBusy      Code = "SYSTEM_BUSY"
	CodeServiceDegraded Code = "SERVICE_DEGRADED"
)

// Error is the structured error the host layer returns from its public
// entry points.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"requestId,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: isRetryable(code),
	}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

func (e *Error) HTTPStatus() int {
	return httpStatus(e.Code)
}

func isRetryable(code Code) bool {
	switch code {
	case CodeRateLimited, CodeSystemBusy, CodeTimeout, CodeUnavailable:
		return true
	default:
		return false
	}
}

func httpStatus(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeInvalidRequest, CodeInvalidPrice,
		CodeInvalidQuantity, CodeInvalidSide, CodeInvalidOrderType,
		CodeInvalidTimeInForce:
		return http.StatusBadRequest
	case CodeNotFound, CodeOrderNotFound, CodeSymbolNotFound:
		return http.StatusNotFound
	case CodeOrderAlreadyCanceled, CodeOrderAlreadyFilled:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInternal, CodeUnknown:
		return http.StatusInternalServerError
	case CodeUnavailable, CodeSystemBusy, CodeServiceDegraded:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrInvalidParam     = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound         = New(CodeNotFound, "not found")
	ErrOrderNotFound    = New(CodeOrderNotFound, "order not found")
	ErrSymbolNotFound   = New(CodeSymbolNotFound, "symbol not found")
	ErrStopUntriggerable = New(CodeStopUntriggerable, "no reference price available to trigger stop order")
	ErrRateLimited      = New(CodeRateLimited, "rate limited")
	ErrSystemBusy       = New(CodeSystemBusy, "system busy, please retry")
)
