package strategy

import (
	"fmt"

	"paper-arena/internal/models"
)

// Momentum buys whatever is moving today, sized aggressively, and bails the
// moment the move stalls.
const (
	momentumTakeProfitPct = 10.0
	momentumStopLossPct   = -5.0
	momentumBuyThreshold  = 18.0
	momentumCashFraction  = 0.40
	momentumOverheatRSI   = 80.0
)

type momentumStrategy struct{}

func (momentumStrategy) Kind() models.StrategyKind { return models.StrategyMomentum }

func (momentumStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		switch {
		case pnlPct >= momentumTakeProfitPct:
			return true, fmt.Sprintf("momentum paid at %+.1f%%", pnlPct)
		case pnlPct <= momentumStopLossPct:
			return true, fmt.Sprintf("quick stop at %+.1f%%", pnlPct)
		case a != nil && a.Trend == models.TrendStrongDown:
			return true, "trend flipped hard"
		}
		return false, ""
	})

	syms := c.moverCandidates()
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		s := 0.0
		switch {
		case a.DailyChange > 5:
			s += 15
		case a.DailyChange > 3:
			s += 10
		}
		switch a.Trend {
		case models.TrendStrongUp:
			s += 8
		case models.TrendUp:
			s += 4
		}
		if a.WeekChange > 8 {
			s += 5
		}
		if a.RSI > momentumOverheatRSI {
			s -= 10
		}
		return s + sentimentTerm(c, sym)
	})
	if ok && score > momentumBuyThreshold {
		d.Buy = sizedBuy(c, sym, momentumCashFraction, fmt.Sprintf("riding the tape, score %.1f", score))
	}

	return d
}

// moverCandidates prefers the day's top gainers, falling back to the whole
// universe when movers are unavailable.
func (c *Context) moverCandidates() []string {
	if c.Market.Movers == nil || len(c.Market.Movers.Gainers) == 0 {
		return universeCandidates(c)
	}
	var out []string
	for _, q := range c.Market.Movers.Gainers {
		if c.Agent.AvoidsSymbol(q.Symbol) {
			continue
		}
		out = append(out, q.Symbol)
	}
	if len(out) == 0 {
		return universeCandidates(c)
	}
	return out
}
