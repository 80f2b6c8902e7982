package http

import (
	"fmt"
	"net/http"
)

// AppError is an error with a client-facing code and HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithError attaches the cause; it is logged but never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// UnknownSymbolError reports a symbol outside the configured universe.
func UnknownSymbolError(symbol string) *AppError {
	return NewAppError("ERR_UNKNOWN_SYMBOL", "symbol",
		fmt.Sprintf("asset %s is not tracked", symbol), http.StatusNotFound)
}

// RateLimitedError reports a caller that exhausted its bucket for scope.
func RateLimitedError(scope string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "",
		fmt.Sprintf("too many %s requests", scope), http.StatusTooManyRequests)
}

func InternalErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_INTERNAL", "", fmt.Sprintf(format, a...), http.StatusInternalServerError)
}
