package strategy

import (
	"fmt"
	"math"

	"paper-arena/internal/models"
)

// Scalp trades tiny moves in volatile names, in and out at ±1.5%.
const (
	scalpExitPct          = 1.5
	scalpBuyThreshold     = 8.0
	scalpCashFraction     = 0.15
	scalpVolatilityWeight = 3.0
	scalpSentimentWeight  = 2.0
)

type scalpStrategy struct{}

func (scalpStrategy) Kind() models.StrategyKind { return models.StrategyScalp }

func (scalpStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		if math.Abs(pnlPct) >= scalpExitPct {
			return true, fmt.Sprintf("scalp closed at %+.2f%%", pnlPct)
		}
		return false, ""
	})

	syms := universeCandidates(c)
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		s := a.Volatility * scalpVolatilityWeight
		if math.Abs(a.DailyChange) > 1 {
			s += 4
		}
		switch {
		case a.RSI < 30:
			s += 5
		case a.RSI > 70:
			s -= 5
		}
		if supportDistance(q, a) <= 1.5 {
			s += 4 // bounce setup
		}
		return s + c.Memory.Sentiment(c.Agent.Key, sym)*scalpSentimentWeight
	})
	if ok && score > scalpBuyThreshold {
		d.Buy = sizedBuy(c, sym, scalpCashFraction, fmt.Sprintf("quick flip setup, score %.1f", score))
	}

	return d
}
