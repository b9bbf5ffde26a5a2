package helpers

import (
	"errors"
	"fmt"
	"sync"

	"market-sync/src/logger"
	"market-sync/src/metrics"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SyncError struct {
	Message string
	Cause   error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Distinct categories so callers can use errors.As
type TransportError struct{ SyncError }
type DecodeError struct{ SyncError }
type CommandError struct{ SyncError }
type ConfigurationError struct{ SyncError }

func NewTransportError(msg string, cause error) error {
	return &TransportError{SyncError{Message: msg, Cause: cause}}
}

func NewDecodeError(msg string, cause error) error {
	return &DecodeError{SyncError{Message: msg, Cause: cause}}
}

func NewCommandError(msg string, cause error) error {
	return &CommandError{SyncError{Message: msg, Cause: cause}}
}

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{SyncError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Categories
// -----------------------------------------------------------------------------

const (
	CategoryTransport     = "transport"
	CategoryDecode        = "decode"
	CategoryCommand       = "command"
	CategoryConfiguration = "configuration"
	CategoryOther         = "other"
)

// Category classifies err by its wrapped type.
func Category(err error) string {
	var (
		transport *TransportError
		decode    *DecodeError
		command   *CommandError
		config    *ConfigurationError
	)
	switch {
	case errors.As(err, &transport):
		return CategoryTransport
	case errors.As(err, &decode):
		return CategoryDecode
	case errors.As(err, &command):
		return CategoryCommand
	case errors.As(err, &config):
		return CategoryConfiguration
	}
	return CategoryOther
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs errors of this layer and counts them. None of them is fatal:
// transport errors recover through reconnects, decode errors drop one frame,
// command errors are only reported.
type ErrorHandler struct {
	Logger *logger.Logger

	mu     sync.Mutex
	counts map[string]int
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger: log,
		counts: make(map[string]int),
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}
	category := Category(err)

	e.mu.Lock()
	e.counts[category]++
	e.mu.Unlock()
	metrics.Errors.WithLabelValues(category).Inc()

	switch category {
	case CategoryDecode, CategoryTransport:
		e.Logger.Warning("%s error in %s: %v", category, context, err)
	default:
		e.Logger.Error("%s error in %s: %v", category, context, err)
	}
}

// -----------------------------------------------------------------------------

// Count returns how many errors of category were handled.
func (e *ErrorHandler) Count(category string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[category]
}
