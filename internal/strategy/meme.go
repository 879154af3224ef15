package strategy

import (
	"fmt"
	"math"

	"paper-arena/internal/models"
)

// Meme chases chaos: a random score term, oversized randomized positions,
// and a small chance of panic-selling anything at any time. It never
// consults its loss history.
const (
	memeTakeProfitPct   = 25.0
	memeStopLossPct     = -20.0
	memeBuyThreshold    = 12.0
	memeChaosWeight     = 20.0
	memeSentimentWeight = 3.0
	memeMinCashFraction = 0.30
	memeMaxCashFraction = 0.80
	memePanicChance     = 0.05
)

type memeStrategy struct{}

func (memeStrategy) Kind() models.StrategyKind { return models.StrategyMeme }

func (memeStrategy) Decide(c *Context) Decision {
	d := Decision{}

	d.Sells = reviewPositions(c, func(sym string, pnlPct float64, a *models.Analysis) (bool, string) {
		switch {
		case pnlPct >= memeTakeProfitPct:
			return true, "to the moon, cashing out"
		case pnlPct <= memeStopLossPct:
			return true, "this one's cooked"
		case c.Rand.Float64() < memePanicChance:
			return true, "paper hands moment"
		}
		return false, ""
	})

	syms := candidates(c)
	sym, score, ok := bestCandidate(c, syms, func(sym string, q *models.Quote, a *models.Analysis) float64 {
		s := c.Rand.Float64() * memeChaosWeight
		if math.Abs(a.DailyChange) > 5 {
			s += 8 // any action is good action
		}
		s += a.Volatility * 2
		s += c.Memory.Sentiment(c.Agent.Key, sym) * memeSentimentWeight
		return s
	})
	if ok && score > memeBuyThreshold {
		fraction := memeMinCashFraction + c.Rand.Float64()*(memeMaxCashFraction-memeMinCashFraction)
		d.Buy = sizedBuy(c, sym, fraction, fmt.Sprintf("vibes are immaculate, score %.1f", score))
	}

	return d
}
