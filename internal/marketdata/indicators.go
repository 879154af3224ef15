package marketdata

import (
	"math"

	"paper-arena/internal/models"
)

const (
	rsiPeriod        = 14
	shortTrendPeriod = 10
	longTrendPeriod  = 30
	rangePeriod      = 22 // ~30 calendar days of trading
	volatilityPeriod = 20
	weekLookback     = 5
)

// ComputeAnalysis derives the per-symbol technical view from daily candles.
// Insufficient history degrades gracefully to neutral values rather than
// failing: a symbol with thin data scores as uninteresting, not broken.
func ComputeAnalysis(symbol string, candles []Candle) *models.Analysis {
	a := &models.Analysis{
		Symbol: symbol,
		Trend:  models.TrendSideways,
		RSI:    50,
		Signal: models.SignalHold,
	}
	if len(candles) < 2 {
		return a
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := closes[len(closes)-1]
	prev := closes[len(closes)-2]

	if prev > 0 {
		a.DailyChange = (last - prev) / prev * 100
	}
	if len(closes) > weekLookback {
		weekAgo := closes[len(closes)-1-weekLookback]
		if weekAgo > 0 {
			a.WeekChange = (last - weekAgo) / weekAgo * 100
		}
	}

	a.RSI = rsi(closes, rsiPeriod)
	a.Trend = classifyTrend(closes)
	a.Support, a.Resistance = rangeLevels(candles, rangePeriod)
	a.Volatility = volatility(closes, volatilityPeriod)
	a.Signal = deriveSignal(a)
	return a
}

// rsi computes the Wilder-smoothed RSI. Returns 50 when history is too
// short for the period.
func rsi(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// sma computes the simple moving average over the trailing period.
func sma(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

// classifyTrend compares the short and long moving averages.
func classifyTrend(closes []float64) models.Trend {
	short := sma(closes, shortTrendPeriod)
	long := sma(closes, longTrendPeriod)
	if short == 0 || long == 0 {
		return models.TrendSideways
	}
	spread := (short - long) / long * 100
	switch {
	case spread > 5:
		return models.TrendStrongUp
	case spread > 1.5:
		return models.TrendUp
	case spread < -5:
		return models.TrendStrongDown
	case spread < -1.5:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

// rangeLevels returns the trailing low and high as support and resistance.
func rangeLevels(candles []Candle, period int) (support, resistance float64) {
	n := len(candles)
	start := n - period
	if start < 0 {
		start = 0
	}
	support = math.Inf(1)
	resistance = math.Inf(-1)
	for i := start; i < n; i++ {
		if candles[i].Low < support {
			support = candles[i].Low
		}
		if candles[i].High > resistance {
			resistance = candles[i].High
		}
	}
	if math.IsInf(support, 1) || math.IsInf(resistance, -1) {
		return 0, 0
	}
	return support, resistance
}

// volatility is the standard deviation of trailing daily percent changes.
func volatility(closes []float64, period int) float64 {
	var changes []float64
	start := len(closes) - period - 1
	if start < 0 {
		start = 0
	}
	for i := start + 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			changes = append(changes, (closes[i]-closes[i-1])/closes[i-1]*100)
		}
	}
	if len(changes) < 2 {
		return 0
	}
	mean := 0.0
	for _, c := range changes {
		mean += c
	}
	mean /= float64(len(changes))
	variance := 0.0
	for _, c := range changes {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(changes))
	return math.Sqrt(variance)
}

// deriveSignal folds RSI and trend into a coarse recommendation.
func deriveSignal(a *models.Analysis) models.Signal {
	switch {
	case a.RSI < 30 && (a.Trend == models.TrendUp || a.Trend == models.TrendSideways):
		return models.SignalStrongBuy
	case a.RSI < 40:
		return models.SignalBuy
	case a.RSI > 75 && (a.Trend == models.TrendDown || a.Trend == models.TrendStrongDown):
		return models.SignalStrongSell
	case a.RSI > 70:
		return models.SignalSell
	case a.Trend == models.TrendStrongUp:
		return models.SignalBuy
	case a.Trend == models.TrendStrongDown:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}
