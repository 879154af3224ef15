package models

import "time"

// Quote represents a current market quote for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PrevClose     float64   `json:"prev_close"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Trend classifies the recent price direction of a symbol.
type Trend string

const (
	TrendStrongUp   Trend = "strong_up"
	TrendUp         Trend = "up"
	TrendSideways   Trend = "sideways"
	TrendDown       Trend = "down"
	TrendStrongDown Trend = "strong_down"
)

// Signal is a coarse technical recommendation derived from indicators.
type Signal string

const (
	SignalStrongBuy  Signal = "strong_buy"
	SignalBuy        Signal = "buy"
	SignalHold       Signal = "hold"
	SignalSell       Signal = "sell"
	SignalStrongSell Signal = "strong_sell"
)

// Analysis holds derived technical indicators for one symbol.
type Analysis struct {
	Symbol      string  `json:"symbol"`
	Trend       Trend   `json:"trend"`
	RSI         float64 `json:"rsi"`
	Signal      Signal  `json:"signal"`
	Support     float64 `json:"support"`
	Resistance  float64 `json:"resistance"`
	Volatility  float64 `json:"volatility"` // stddev of daily % changes
	DailyChange float64 `json:"daily_change"`
	WeekChange  float64 `json:"week_change"`
}

// Movers holds the day's biggest gainers and losers across the universe.
type Movers struct {
	Gainers []Quote `json:"gainers"`
	Losers  []Quote `json:"losers"`
}

// MarketView is the per-round market snapshot handed to every strategy.
type MarketView struct {
	Quotes   map[string]*Quote
	Analysis map[string]*Analysis
	Movers   *Movers
	Universe []string
}

// QuoteFor returns the quote for a symbol, or nil when unavailable.
func (m *MarketView) QuoteFor(symbol string) *Quote {
	if m == nil {
		return nil
	}
	return m.Quotes[symbol]
}

// AnalysisFor returns the analysis for a symbol, or nil when unavailable.
func (m *MarketView) AnalysisFor(symbol string) *Analysis {
	if m == nil {
		return nil
	}
	return m.Analysis[symbol]
}
