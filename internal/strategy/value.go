package strategy

import (
	"fmt"

	"paper-arena/internal/models"
)

// Value hunts beaten-down quality names and exits on modest gains.
const (
	valueTakeProfitPct = 8.0
	valueStopLossPct   = -7.0
	valueBuyThreshold  = 10.0
	valueCashFraction  = 0.30
)

type valueStrategy struct{}

func (valueStrategy) Kind() models.StrategyKind { return models.StrategyValue }

func (valueStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		switch {
		case pnlPct >= valueTakeProfitPct:
			return true, fmt.Sprintf("fair value reached at %+.1f%%", pnlPct)
		case pnlPct <= valueStopLossPct:
			return true, fmt.Sprintf("thesis broken at %+.1f%%", pnlPct)
		}
		return false, ""
	})

	syms := candidates(c)
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		if rememberedLoser(c, sym) {
			return -1e9
		}
		s := 0.0
		switch {
		case a.RSI < 35:
			s += 8
		case a.RSI < 45:
			s += 4
		}
		if a.DailyChange < -3 {
			s += 5
		}
		if a.WeekChange < -5 {
			s += 4
		}
		if supportDistance(q, a) <= 3 {
			s += 6
		}
		if a.Trend == models.TrendDown || a.Trend == models.TrendStrongDown {
			s += 3 // buying fear
		}
		return s + sentimentTerm(c, sym)
	})
	if ok && score > valueBuyThreshold {
		d.Buy = sizedBuy(c, sym, valueCashFraction, fmt.Sprintf("undervalued, score %.1f", score))
	}

	return d
}
