// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrPortfolioNotFound   = errors.New("portfolio not found")
	ErrAgentNotFound       = errors.New("agent not found")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRoundInProgress     = errors.New("trading round already in progress")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrDatabaseError       = errors.New("database error")
)

// TradeError represents a rejected ledger mutation. It wraps one of the
// trade-level sentinels so callers can match with errors.Is.
type TradeError struct {
	AgentKey string
	Symbol   string
	Side     string
	Reason   string
	Err      error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("trade rejected [%s] %s %s: %s: %v", e.AgentKey, e.Side, e.Symbol, e.Reason, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// NewTradeError creates a new TradeError.
func NewTradeError(agentKey, symbol, side, reason string, err error) *TradeError {
	return &TradeError{
		AgentKey: agentKey,
		Symbol:   symbol,
		Side:     side,
		Reason:   reason,
		Err:      err,
	}
}

// AgentError represents a failure isolated to one agent during a round.
type AgentError struct {
	AgentKey  string
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s] %s: %v", e.AgentKey, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(agentKey, operation string, err error) *AgentError {
	return &AgentError{
		AgentKey:  agentKey,
		Operation: operation,
		Err:       err,
	}
}

// DataError represents a market-data failure for one symbol.
type DataError struct {
	Symbol  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(symbol, message string, err error) *DataError {
	return &DataError{
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
