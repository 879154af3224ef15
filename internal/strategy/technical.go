package strategy

import (
	"fmt"

	"paper-arena/internal/models"
)

// Technical is the most demanding personality: it scans the full universe
// and only buys when many indicators line up at once.
const (
	technicalTakeProfitPct = 12.0
	technicalStopLossPct   = -6.0
	technicalBuyThreshold  = 25.0
	technicalCashFraction  = 0.35
)

type technicalStrategy struct{}

func (technicalStrategy) Kind() models.StrategyKind { return models.StrategyTechnical }

func (technicalStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		switch {
		case pnlPct >= technicalTakeProfitPct:
			return true, fmt.Sprintf("target hit at %+.1f%%", pnlPct)
		case pnlPct <= technicalStopLossPct:
			return true, fmt.Sprintf("stop hit at %+.1f%%", pnlPct)
		case a != nil && a.Signal == models.SignalStrongSell:
			return true, "indicators rolled over"
		}
		return false, ""
	})

	syms := universeCandidates(c)
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		if rememberedLoser(c, sym) {
			return -1e9
		}
		s := 0.0
		switch a.Signal {
		case models.SignalStrongBuy:
			s += 15
		case models.SignalBuy:
			s += 10
		}
		switch a.Trend {
		case models.TrendStrongUp:
			s += 10
		case models.TrendUp:
			s += 6
		case models.TrendStrongDown:
			s -= 8
		}
		switch {
		case a.RSI < 30:
			s += 8
		case a.RSI < 45:
			s += 4
		case a.RSI > 70:
			s -= 6
		}
		if supportDistance(q, a) <= 3 {
			s += 5
		}
		if resistanceDistance(q, a) <= 2 {
			s -= 5 // no room overhead
		}
		if a.WeekChange > 4 {
			s += 4
		}
		return s + sentimentTerm(c, sym)
	})
	if ok && score > technicalBuyThreshold {
		d.Buy = sizedBuy(c, sym, technicalCashFraction, fmt.Sprintf("confluence setup, score %.1f", score))
	}

	return d
}
