package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open holding inside a portfolio. Shares are fractional,
// kept to 4 decimal places; a position never holds zero or negative shares.
type Position struct {
	Symbol  string          `json:"symbol"`
	Shares  decimal.Decimal `json:"shares"`
	AvgCost decimal.Decimal `json:"avg_cost"`
}

// ValueSnapshot is one point of a portfolio's value history.
type ValueSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Portfolio holds the cash and positions of one agent.
type Portfolio struct {
	AgentKey      string               `json:"agent_key"`
	Cash          decimal.Decimal      `json:"cash"`
	Positions     map[string]*Position `json:"positions"`
	StartingValue decimal.Decimal      `json:"starting_value"`
	History       []ValueSnapshot      `json:"history"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Clone returns a deep copy of the portfolio.
func (p *Portfolio) Clone() *Portfolio {
	cp := &Portfolio{
		AgentKey:      p.AgentKey,
		Cash:          p.Cash,
		Positions:     make(map[string]*Position, len(p.Positions)),
		StartingValue: p.StartingValue,
		History:       append([]ValueSnapshot(nil), p.History...),
		UpdatedAt:     p.UpdatedAt,
	}
	for sym, pos := range p.Positions {
		dup := *pos
		cp.Positions[sym] = &dup
	}
	return cp
}

// Performance summarizes a portfolio's value history.
type Performance struct {
	AgentKey           string    `json:"agent_key"`
	StartingValue      float64   `json:"starting_value"`
	CurrentValue       float64   `json:"current_value"`
	TotalReturn        float64   `json:"total_return"`
	TotalReturnPercent float64   `json:"total_return_percent"`
	PeriodChanges      []float64 `json:"period_changes"` // period-over-period % changes
}
