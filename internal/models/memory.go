package models

import "time"

// BeliefType identifies a class of scalar belief an agent can hold.
type BeliefType string

// BeliefStockSentiment is the per-symbol sentiment belief, in [-1, 1].
const BeliefStockSentiment BeliefType = "stock_sentiment"

// TradeOutcome is the remembered result of one closed trade.
type TradeOutcome struct {
	ID         string    `json:"id"`
	AgentKey   string    `json:"agent_key"`
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnl_percent"`
	Context    string    `json:"context,omitempty"`
	Lesson     string    `json:"lesson,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Observation is a free-text note an agent records about a symbol.
type Observation struct {
	ID         string    `json:"id"`
	AgentKey   string    `json:"agent_key"`
	Symbol     string    `json:"symbol"`
	Note       string    `json:"note"`
	Confidence float64   `json:"confidence"` // [0,1]
	Timestamp  time.Time `json:"timestamp"`
}

// Belief is a scalar conviction, unique per (agent, type, symbol),
// clamped to [-1, 1].
type Belief struct {
	AgentKey  string     `json:"agent_key"`
	Type      BeliefType `json:"type"`
	Symbol    string     `json:"symbol"`
	Value     float64    `json:"value"`
	Note      string     `json:"note,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Reflection is an agent's daily self-review, one per calendar date.
type Reflection struct {
	AgentKey  string    `json:"agent_key"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SymbolStats aggregates remembered outcomes for one symbol.
type SymbolStats struct {
	Symbol        string  `json:"symbol"`
	Trades        int     `json:"trades"`
	AvgPnLPercent float64 `json:"avg_pnl_percent"`
}

// WinRateStats aggregates remembered trade outcomes.
type WinRateStats struct {
	Total     int     `json:"total"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	WinRate   float64 `json:"win_rate"` // percent
	AvgReturn float64 `json:"avg_return"`
	AvgWin    float64 `json:"avg_win"`
	AvgLoss   float64 `json:"avg_loss"`
}

// MemorySummary is the composite read used by strategies and reporting.
type MemorySummary struct {
	AgentKey          string         `json:"agent_key"`
	WinRate           WinRateStats   `json:"win_rate"`
	BestSymbols       []SymbolStats  `json:"best_symbols"`
	WorstSymbols      []SymbolStats  `json:"worst_symbols"`
	RecentOutcomes    []TradeOutcome `json:"recent_outcomes"`
	Beliefs           []Belief       `json:"beliefs"`
	RecentReflections []Reflection   `json:"recent_reflections"`
}
