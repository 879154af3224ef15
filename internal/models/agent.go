// Package models provides domain models for the arena.
package models

import "time"

// StrategyKind identifies one of the seven trading personalities.
type StrategyKind string

const (
	StrategyValue     StrategyKind = "value"
	StrategyMeme      StrategyKind = "meme"
	StrategyGrowth    StrategyKind = "growth"
	StrategyMomentum  StrategyKind = "momentum"
	StrategyHodl      StrategyKind = "hodl"
	StrategyScalp     StrategyKind = "scalp"
	StrategyTechnical StrategyKind = "technical"
)

// AllStrategyKinds lists every valid strategy kind.
var AllStrategyKinds = []StrategyKind{
	StrategyValue,
	StrategyMeme,
	StrategyGrowth,
	StrategyMomentum,
	StrategyHodl,
	StrategyScalp,
	StrategyTechnical,
}

// AgentStatus represents the lifecycle state of an agent slot.
type AgentStatus string

const (
	AgentActive     AgentStatus = "active"
	AgentEliminated AgentStatus = "eliminated"
)

// Agent is one simulated trader. The key is stable across respawns;
// generation counts how many times the slot has been recycled.
type Agent struct {
	Key              string       `json:"key"`
	Name             string       `json:"name"`
	Strategy         StrategyKind `json:"strategy"`
	RiskTolerance    float64      `json:"risk_tolerance"`
	TradeFrequency   float64      `json:"trade_frequency"` // probability of acting per round, [0,1]
	PreferredSymbols []string     `json:"preferred_symbols"`
	AvoidSymbols     []string     `json:"avoid_symbols"`
	Generation       int          `json:"generation"`
	Status           AgentStatus  `json:"status"`
	Kills            int          `json:"kills"`
	CreatedAt        time.Time    `json:"created_at"`
}

// IsActive reports whether the agent currently participates in rounds.
func (a *Agent) IsActive() bool {
	return a.Status == AgentActive
}

// AvoidsSymbol reports whether the symbol is on the agent's avoid list.
func (a *Agent) AvoidsSymbol(symbol string) bool {
	for _, s := range a.AvoidSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// LeaderboardEntry is one ranked row of the arena leaderboard.
type LeaderboardEntry struct {
	Rank          int          `json:"rank"`
	AgentKey      string       `json:"agent_key"`
	Name          string       `json:"name"`
	Strategy      StrategyKind `json:"strategy"`
	Generation    int          `json:"generation"`
	Kills         int          `json:"kills"`
	Value         float64      `json:"value"`
	ReturnPercent float64      `json:"return_percent"`
	InDanger      bool         `json:"in_danger"`
}

// GraveyardEntry is a permanent record of one eliminated agent generation.
type GraveyardEntry struct {
	Agent              Agent          `json:"agent"`
	FinalValue         float64        `json:"final_value"`
	FinalReturnPercent float64        `json:"final_return_percent"`
	EliminatedAt       time.Time      `json:"eliminated_at"`
	EliminatedRound    int            `json:"eliminated_round"`
	MemorySummary      *MemorySummary `json:"memory_summary,omitempty"`
}
