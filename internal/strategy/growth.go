package strategy

import (
	"fmt"

	"paper-arena/internal/models"
)

// Growth rides sustained uptrends, paying up for momentum in its preferred
// names and giving winners room to run.
const (
	growthTakeProfitPct = 20.0
	growthStopLossPct   = -10.0
	growthBuyThreshold  = 15.0
	growthCashFraction  = 0.25
)

type growthStrategy struct{}

func (growthStrategy) Kind() models.StrategyKind { return models.StrategyGrowth }

func (growthStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		switch {
		case pnlPct >= growthTakeProfitPct:
			return true, fmt.Sprintf("growth priced in at %+.1f%%", pnlPct)
		case pnlPct <= growthStopLossPct:
			return true, fmt.Sprintf("story changed at %+.1f%%", pnlPct)
		}
		return false, ""
	})

	syms := candidates(c)
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		if rememberedLoser(c, sym) {
			return -1e9
		}
		s := 0.0
		switch a.Trend {
		case models.TrendStrongUp:
			s += 12
		case models.TrendUp:
			s += 8
		}
		if a.WeekChange > 5 {
			s += 6
		}
		if a.RSI >= 50 && a.RSI <= 70 {
			s += 4
		}
		if a.DailyChange > 2 {
			s += 3
		}
		return s + sentimentTerm(c, sym)
	})
	if ok && score > growthBuyThreshold {
		d.Buy = sizedBuy(c, sym, growthCashFraction, fmt.Sprintf("compounder in motion, score %.1f", score))
	}

	return d
}
