// Package strategy implements the seven trading personalities. Each is a
// stateless decision policy over (agent profile, portfolio snapshot, market
// view, memory reads) producing at most one buy intent and zero or more sell
// intents per round. Nothing is retained between invocations beyond what the
// ledger and memory store persist.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"paper-arena/internal/models"
)

// Shared cross-strategy constants. Tuned values, kept as-is.
const (
	// SentimentForceSell forces an exit on an underwater position when the
	// remembered sentiment drops below it. Memory can override sell
	// thresholds but never forces a buy.
	SentimentForceSell = -0.5

	// sentimentWeight scales remembered sentiment into candidate scores.
	sentimentWeight = 5.0

	// shareDecimals matches the ledger's fractional share precision.
	shareDecimals = 4
)

// Rand is the injectable randomness source. *math/rand.Rand satisfies it;
// tests pass a fixed-seed instance for reproducible decisions.
type Rand interface {
	Float64() float64
}

// MemoryReader is the slice of the memory store strategies consult.
// Satisfied by *memory.Store.
type MemoryReader interface {
	Sentiment(agentKey, symbol string) float64
	WorstSymbols(agentKey string, limit int) []models.SymbolStats
}

// Context is the full input of one strategy invocation.
type Context struct {
	Agent     *models.Agent
	Portfolio *models.Portfolio
	Market    *models.MarketView
	Memory    MemoryReader
	Rand      Rand
}

// Decision is a strategy's output for one round.
type Decision struct {
	Sells []models.TradeIntent
	Buy   *models.TradeIntent
}

// Strategy is one personality. Implementations are pure; the kind is fixed
// at construction and dispatch never reflects on it again.
type Strategy interface {
	Kind() models.StrategyKind
	Decide(c *Context) Decision
}

// ForKind returns the implementation for a strategy kind.
func ForKind(kind models.StrategyKind) (Strategy, error) {
	switch kind {
	case models.StrategyValue:
		return valueStrategy{}, nil
	case models.StrategyMeme:
		return memeStrategy{}, nil
	case models.StrategyGrowth:
		return growthStrategy{}, nil
	case models.StrategyMomentum:
		return momentumStrategy{}, nil
	case models.StrategyHodl:
		return hodlStrategy{}, nil
	case models.StrategyScalp:
		return scalpStrategy{}, nil
	case models.StrategyTechnical:
		return technicalStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", kind)
	}
}

// Run applies the trade-frequency gate and then evaluates the strategy.
// The gate throttles how often a personality acts, independent of signal
// strength: a uniform draw above the agent's TradeFrequency skips the round.
func Run(s Strategy, c *Context) Decision {
	if c.Rand.Float64() > c.Agent.TradeFrequency {
		return Decision{}
	}
	return s.Decide(c)
}

// sellRule decides whether one open position should be exited, given its
// unrealized pnl percent and the symbol's analysis (may be nil).
type sellRule func(symbol string, pnlPercent float64, a *models.Analysis) (bool, string)

// reviewPositions inspects every open position, computing
// pnlPercent = (currentPrice - avgCost) / avgCost * 100. A strongly negative
// remembered sentiment forces a sell when the position is underwater,
// regardless of the strategy's own rule. Positions without a quote are
// skipped for the round.
func reviewPositions(c *Context, rule sellRule) []models.TradeIntent {
	var sells []models.TradeIntent
	for sym, pos := range c.Portfolio.Positions {
		q := c.Market.QuoteFor(sym)
		if q == nil || q.Price <= 0 {
			continue
		}
		avg := pos.AvgCost.InexactFloat64()
		if avg <= 0 {
			continue
		}
		pnlPct := (q.Price - avg) / avg * 100

		if pnlPct < 0 && c.Memory.Sentiment(c.Agent.Key, sym) < SentimentForceSell {
			sells = append(sells, models.TradeIntent{
				Side:   models.TradeSideSell,
				Symbol: sym,
				Shares: pos.Shares,
				Reason: "bad memories, cutting it loose",
			})
			continue
		}

		if sell, reason := rule(sym, pnlPct, c.Market.AnalysisFor(sym)); sell {
			sells = append(sells, models.TradeIntent{
				Side:   models.TradeSideSell,
				Symbol: sym,
				Shares: pos.Shares,
				Reason: reason,
			})
		}
	}
	return sells
}

// candidates returns the agent's preferred symbols, or the full tradeable
// universe when it has none, minus the avoid list.
func candidates(c *Context) []string {
	base := c.Agent.PreferredSymbols
	if len(base) == 0 {
		base = c.Market.Universe
	}
	var out []string
	for _, sym := range base {
		if c.Agent.AvoidsSymbol(sym) {
			continue
		}
		out = append(out, sym)
	}
	return out
}

// universeCandidates returns the whole universe minus the avoid list, for
// data-driven strategies that ignore the preference list.
func universeCandidates(c *Context) []string {
	var out []string
	for _, sym := range c.Market.Universe {
		if c.Agent.AvoidsSymbol(sym) {
			continue
		}
		out = append(out, sym)
	}
	return out
}

// rememberedLoser reports whether memory ranks the symbol among the agent's
// historically bad performers.
func rememberedLoser(c *Context, symbol string) bool {
	for _, s := range c.Memory.WorstSymbols(c.Agent.Key, 3) {
		if s.Symbol == symbol && s.AvgPnLPercent < 0 {
			return true
		}
	}
	return false
}

// scoreFunc computes an additive heuristic score for one candidate.
type scoreFunc func(sym string, q *models.Quote, a *models.Analysis) float64

// bestCandidate scores every candidate that has both a quote and analysis
// and returns the highest scorer, or ok=false when none qualifies.
func bestCandidate(c *Context, syms []string, score scoreFunc) (best string, bestScore float64, ok bool) {
	for _, sym := range syms {
		q := c.Market.QuoteFor(sym)
		a := c.Market.AnalysisFor(sym)
		if q == nil || q.Price <= 0 || a == nil {
			continue
		}
		s := score(sym, q, a)
		if !ok || s > bestScore {
			best, bestScore, ok = sym, s, true
		}
	}
	return best, bestScore, ok
}

// sizedBuy converts a fraction of current cash into shares at the current
// price, rounded to 4 decimal places. A non-positive share count aborts the
// trade silently.
func sizedBuy(c *Context, symbol string, fraction float64, reason string) *models.TradeIntent {
	q := c.Market.QuoteFor(symbol)
	if q == nil || q.Price <= 0 || fraction <= 0 {
		return nil
	}
	budget := c.Portfolio.Cash.Mul(decimal.NewFromFloat(fraction))
	shares := budget.Div(decimal.NewFromFloat(q.Price)).Round(shareDecimals)
	if shares.Sign() <= 0 {
		return nil
	}
	return &models.TradeIntent{
		Side:   models.TradeSideBuy,
		Symbol: symbol,
		Shares: shares,
		Reason: reason,
	}
}

// sentimentTerm is the sentiment contribution shared by most strategies.
func sentimentTerm(c *Context, symbol string) float64 {
	return c.Memory.Sentiment(c.Agent.Key, symbol) * sentimentWeight
}

// supportDistance returns how far the price sits above support, in percent.
// Returns a large value when support is unknown.
func supportDistance(q *models.Quote, a *models.Analysis) float64 {
	if a.Support <= 0 {
		return 1e9
	}
	return (q.Price - a.Support) / a.Support * 100
}

// resistanceDistance returns how far the price sits below resistance, in
// percent. Returns a large value when resistance is unknown.
func resistanceDistance(q *models.Quote, a *models.Analysis) float64 {
	if a.Resistance <= 0 {
		return 1e9
	}
	return (a.Resistance - q.Price) / q.Price * 100
}
