package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-arena/internal/models"
)

func candlesFromCloses(closes []float64) []Candle {
	out := make([]Candle, len(closes))
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = Candle{
			Timestamp: ts.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func TestComputeAnalysisThinHistoryIsNeutral(t *testing.T) {
	for _, candles := range [][]Candle{nil, candlesFromCloses([]float64{100})} {
		a := ComputeAnalysis("THIN", candles)
		assert.Equal(t, models.TrendSideways, a.Trend)
		assert.Equal(t, 50.0, a.RSI)
		assert.Equal(t, models.SignalHold, a.Signal)
		assert.Zero(t, a.DailyChange)
	}
}

func TestComputeAnalysisChanges(t *testing.T) {
	// Seven flat days then a 10% pop.
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 110}
	a := ComputeAnalysis("POP", candlesFromCloses(closes))

	assert.InDelta(t, 10, a.DailyChange, 1e-9)
	assert.InDelta(t, 10, a.WeekChange, 1e-9)
}

func TestRSIBounds(t *testing.T) {
	period := 14

	rising := make([]float64, 40)
	falling := make([]float64, 40)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 140 - float64(i)
	}

	assert.Equal(t, 100.0, rsi(rising, period), "monotonic gains saturate RSI")
	assert.InDelta(t, 0, rsi(falling, period), 1e-9, "monotonic losses floor RSI")
	assert.Equal(t, 50.0, rsi(rising[:10], period), "short history is neutral")

	mixed := []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107, 109}
	v := rsi(mixed, period)
	assert.Greater(t, v, 50.0)
	assert.Less(t, v, 100.0)
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name string
		gen  func() []float64
		want models.Trend
	}{
		{
			name: "strongly rising",
			gen: func() []float64 {
				out := make([]float64, 40)
				for i := range out {
					out[i] = 100 * (1 + 0.02*float64(i))
				}
				return out
			},
			want: models.TrendStrongUp,
		},
		{
			name: "strongly falling",
			gen: func() []float64 {
				out := make([]float64, 40)
				for i := range out {
					out[i] = 200 - 3*float64(i)
				}
				return out
			},
			want: models.TrendStrongDown,
		},
		{
			name: "flat",
			gen: func() []float64 {
				out := make([]float64, 40)
				for i := range out {
					out[i] = 100
				}
				return out
			},
			want: models.TrendSideways,
		},
		{
			name: "too short",
			gen:  func() []float64 { return []float64{100, 101, 102} },
			want: models.TrendSideways,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTrend(tt.gen()))
		})
	}
}

func TestRangeLevels(t *testing.T) {
	candles := []Candle{
		{Low: 95, High: 105},
		{Low: 90, High: 102},
		{Low: 97, High: 110},
	}
	support, resistance := rangeLevels(candles, 22)
	assert.Equal(t, 90.0, support)
	assert.Equal(t, 110.0, resistance)

	support, resistance = rangeLevels(nil, 22)
	assert.Zero(t, support)
	assert.Zero(t, resistance)
}

func TestVolatility(t *testing.T) {
	flat := []float64{100, 100, 100, 100, 100}
	assert.Zero(t, volatility(flat, 20))

	choppy := []float64{100, 110, 99, 112, 98, 115}
	assert.Greater(t, volatility(choppy, 20), volatility([]float64{100, 101, 100, 101, 100, 101}, 20))

	assert.Zero(t, volatility([]float64{100}, 20), "too few points")
}

func TestDeriveSignal(t *testing.T) {
	tests := []struct {
		rsi   float64
		trend models.Trend
		want  models.Signal
	}{
		{25, models.TrendSideways, models.SignalStrongBuy},
		{35, models.TrendDown, models.SignalBuy},
		{80, models.TrendDown, models.SignalStrongSell},
		{72, models.TrendUp, models.SignalSell},
		{55, models.TrendStrongUp, models.SignalBuy},
		{55, models.TrendStrongDown, models.SignalSell},
		{55, models.TrendSideways, models.SignalHold},
	}
	for _, tt := range tests {
		a := &models.Analysis{RSI: tt.rsi, Trend: tt.trend}
		assert.Equal(t, tt.want, deriveSignal(a), "rsi=%.0f trend=%s", tt.rsi, tt.trend)
	}
}

func TestComputeAnalysisEndToEnd(t *testing.T) {
	// Sixty days of steady decline: oversold RSI, strong down trend, support
	// at the recent low.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 200 - 2*float64(i)
	}
	candles := candlesFromCloses(closes)

	a := ComputeAnalysis("GRIND", candles)
	require.NotNil(t, a)
	assert.Equal(t, "GRIND", a.Symbol)
	assert.Less(t, a.RSI, 30.0)
	assert.Equal(t, models.TrendStrongDown, a.Trend)
	assert.Negative(t, a.DailyChange)
	assert.Negative(t, a.WeekChange)
	assert.Greater(t, a.Resistance, a.Support)
	assert.Positive(t, a.Support)
}
