package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents the side of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is one executed arena trade. Records are immutable and append-only;
// PnL is populated on SELL records only. Commission is always zero.
type Trade struct {
	ID        string          `json:"id"`
	AgentKey  string          `json:"agent_key"`
	Side      TradeSide       `json:"side"`
	Symbol    string          `json:"symbol"`
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	PnL       decimal.Decimal `json:"pnl"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TradeIntent is a strategy's decision for one round, before execution.
// A round produces at most one buy intent and zero or more sell intents.
type TradeIntent struct {
	Side   TradeSide
	Symbol string
	Shares decimal.Decimal
	Reason string
}
