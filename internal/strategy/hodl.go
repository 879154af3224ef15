package strategy

import (
	"fmt"

	"paper-arena/internal/models"
)

// Hodl almost never trades: it accumulates a short list of conviction names
// and only ever sells in a true collapse.
const (
	hodlStopLossPct  = -15.0
	hodlBuyThreshold = 20.0
	hodlCashFraction = 0.20
)

type hodlStrategy struct{}

func (hodlStrategy) Kind() models.StrategyKind { return models.StrategyHodl }

func (hodlStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		if pnlPct <= hodlStopLossPct {
			return true, fmt.Sprintf("capitulating at %+.1f%%", pnlPct)
		}
		return false, ""
	})

	syms := candidates(c)
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		s := 0.0
		if a.Trend == models.TrendUp || a.Trend == models.TrendStrongUp {
			s += 8
		}
		if a.RSI < 60 {
			s += 6
		}
		if a.WeekChange > 0 {
			s += 4
		}
		return s + sentimentTerm(c, sym)
	})
	if ok && score > hodlBuyThreshold {
		d.Buy = sizedBuy(c, sym, hodlCashFraction, fmt.Sprintf("adding to the vault, score %.1f", score))
	}

	return d
}
