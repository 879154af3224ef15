package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-arena/internal/models"
)

// fixedRand returns a scripted sequence of draws, cycling when exhausted.
type fixedRand struct {
	draws []float64
	i     int
}

func (r *fixedRand) Float64() float64 {
	v := r.draws[r.i%len(r.draws)]
	r.i++
	return v
}

// stubMemory is a MemoryReader with canned sentiment and loser lists.
type stubMemory struct {
	sentiments map[string]float64
	worst      []models.SymbolStats
}

func (m *stubMemory) Sentiment(agentKey, symbol string) float64 {
	return m.sentiments[symbol]
}

func (m *stubMemory) WorstSymbols(agentKey string, limit int) []models.SymbolStats {
	return m.worst
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func testAgent(kind models.StrategyKind) *models.Agent {
	return &models.Agent{
		Key:            "tester",
		Name:           "Tester",
		Strategy:       kind,
		RiskTolerance:  0.5,
		TradeFrequency: 0.5,
		Generation:     1,
		Status:         models.AgentActive,
	}
}

func emptyPortfolio(cash string) *models.Portfolio {
	return &models.Portfolio{
		AgentKey:  "tester",
		Cash:      dec(cash),
		Positions: map[string]*models.Position{},
	}
}

func marketWith(symbols map[string]struct {
	price    float64
	analysis models.Analysis
}) *models.MarketView {
	view := &models.MarketView{
		Quotes:   map[string]*models.Quote{},
		Analysis: map[string]*models.Analysis{},
	}
	for sym, d := range symbols {
		view.Universe = append(view.Universe, sym)
		view.Quotes[sym] = &models.Quote{Symbol: sym, Price: d.price}
		a := d.analysis
		view.Analysis[sym] = &a
	}
	return view
}

func TestForKindCoversEveryStrategy(t *testing.T) {
	for _, kind := range models.AllStrategyKinds {
		s, err := ForKind(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, s.Kind())
	}
	_, err := ForKind("astrology")
	assert.Error(t, err)
}

func TestFrequencyGate(t *testing.T) {
	s, err := ForKind(models.StrategyValue)
	require.NoError(t, err)

	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"AAPL": {price: 100, analysis: models.Analysis{RSI: 20, DailyChange: -5, WeekChange: -8, Trend: models.TrendDown}},
	})

	ctx := &Context{
		Agent:     testAgent(models.StrategyValue),
		Portfolio: emptyPortfolio("10000"),
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{}},
	}

	// Draw above the agent's frequency: the round is skipped outright.
	ctx.Rand = &fixedRand{draws: []float64{0.9}}
	d := Run(s, ctx)
	assert.Nil(t, d.Buy)
	assert.Empty(t, d.Sells)

	// Draw below the frequency: the same signal now produces a buy.
	ctx.Rand = &fixedRand{draws: []float64{0.1}}
	d = Run(s, ctx)
	require.NotNil(t, d.Buy)
	assert.Equal(t, "AAPL", d.Buy.Symbol)
}

func TestValueBuysFearAndSizesByCash(t *testing.T) {
	s, _ := ForKind(models.StrategyValue)
	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		// RSI 20 (+8), daily -5 (+5), week -8 (+4), down trend (+3): score 20.
		"AAPL": {price: 50, analysis: models.Analysis{RSI: 20, DailyChange: -5, WeekChange: -8, Trend: models.TrendDown}},
		// Hot momentum name scores 0 for a value buyer.
		"NVDA": {price: 500, analysis: models.Analysis{RSI: 75, DailyChange: 4, WeekChange: 9, Trend: models.TrendStrongUp}},
	})

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyValue),
		Portfolio: emptyPortfolio("1000"),
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	require.NotNil(t, d.Buy)
	assert.Equal(t, "AAPL", d.Buy.Symbol)
	// 30% of 1000 cash at price 50 is 6 shares.
	assert.True(t, d.Buy.Shares.Equal(dec("6")), "got %s", d.Buy.Shares)
}

func TestValueSkipsRememberedLosers(t *testing.T) {
	s, _ := ForKind(models.StrategyValue)
	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"AAPL": {price: 50, analysis: models.Analysis{RSI: 20, DailyChange: -5, WeekChange: -8, Trend: models.TrendDown}},
	})

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyValue),
		Portfolio: emptyPortfolio("1000"),
		Market:    view,
		Memory: &stubMemory{
			sentiments: map[string]float64{},
			worst:      []models.SymbolStats{{Symbol: "AAPL", Trades: 3, AvgPnLPercent: -6}},
		},
		Rand: &fixedRand{draws: []float64{0.0}},
	})

	assert.Nil(t, d.Buy, "a remembered loser is never bought, whatever the signal")
}

func TestTakeProfitAndStopLossExits(t *testing.T) {
	s, _ := ForKind(models.StrategyValue)

	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"WIN":  {price: 110, analysis: models.Analysis{RSI: 55}},
		"LOSE": {price: 90, analysis: models.Analysis{RSI: 55}},
		"HOLD": {price: 102, analysis: models.Analysis{RSI: 55}},
	})

	p := emptyPortfolio("0")
	p.Positions["WIN"] = &models.Position{Symbol: "WIN", Shares: dec("1"), AvgCost: dec("100")}   // +10%
	p.Positions["LOSE"] = &models.Position{Symbol: "LOSE", Shares: dec("2"), AvgCost: dec("100")} // -10%
	p.Positions["HOLD"] = &models.Position{Symbol: "HOLD", Shares: dec("3"), AvgCost: dec("100")} // +2%

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyValue),
		Portfolio: p,
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	sold := map[string]bool{}
	for _, intent := range d.Sells {
		sold[intent.Symbol] = true
	}
	assert.True(t, sold["WIN"], "take profit above +8%%")
	assert.True(t, sold["LOSE"], "stop loss below -7%%")
	assert.False(t, sold["HOLD"], "small gain is held")
}

func TestSentimentForcesSellOnUnderwaterPosition(t *testing.T) {
	// Hodl tolerates a -10% drawdown on its own rule, so only the memory
	// override can produce this sell.
	s, _ := ForKind(models.StrategyHodl)

	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"PAIN": {price: 90, analysis: models.Analysis{RSI: 50}},
	})

	p := emptyPortfolio("0")
	p.Positions["PAIN"] = &models.Position{Symbol: "PAIN", Shares: dec("5"), AvgCost: dec("100")}

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyHodl),
		Portfolio: p,
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{"PAIN": -0.8}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	require.Len(t, d.Sells, 1)
	assert.Equal(t, "PAIN", d.Sells[0].Symbol)
	assert.True(t, d.Sells[0].Shares.Equal(dec("5")), "forced sell exits the whole position")
}

func TestSentimentNeverForcesBuy(t *testing.T) {
	s, _ := ForKind(models.StrategyHodl)

	// Flat, signal-free tape: score is sentiment only, 1.0*5 = 5, far below
	// the buy threshold. Maxed-out love for a symbol still cannot buy it.
	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"CRUSH": {price: 100, analysis: models.Analysis{RSI: 65, WeekChange: -1}},
	})

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyHodl),
		Portfolio: emptyPortfolio("10000"),
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{"CRUSH": 1.0}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	assert.Nil(t, d.Buy)
}

func TestAvoidListIsRespected(t *testing.T) {
	s, _ := ForKind(models.StrategyValue)
	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"AAPL": {price: 50, analysis: models.Analysis{RSI: 20, DailyChange: -5, WeekChange: -8, Trend: models.TrendDown}},
	})

	agent := testAgent(models.StrategyValue)
	agent.AvoidSymbols = []string{"AAPL"}

	d := s.Decide(&Context{
		Agent:     agent,
		Portfolio: emptyPortfolio("1000"),
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	assert.Nil(t, d.Buy)
}

func TestMissingQuoteSkipsSymbol(t *testing.T) {
	s, _ := ForKind(models.StrategyValue)

	// Position with no quote this round: neither sold nor valued.
	view := &models.MarketView{
		Quotes:   map[string]*models.Quote{},
		Analysis: map[string]*models.Analysis{},
		Universe: []string{"GHOST"},
	}
	p := emptyPortfolio("1000")
	p.Positions["GHOST"] = &models.Position{Symbol: "GHOST", Shares: dec("1"), AvgCost: dec("100")}

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyValue),
		Portfolio: p,
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	assert.Empty(t, d.Sells)
	assert.Nil(t, d.Buy)
}

func TestMomentumPrefersGainers(t *testing.T) {
	s, _ := ForKind(models.StrategyMomentum)

	view := marketWith(map[string]struct {
		price    float64
		analysis models.Analysis
	}{
		"HOT":  {price: 200, analysis: models.Analysis{RSI: 65, DailyChange: 6, WeekChange: 12, Trend: models.TrendStrongUp, Signal: models.SignalBuy}},
		"COLD": {price: 50, analysis: models.Analysis{RSI: 40, DailyChange: -1, WeekChange: -2, Trend: models.TrendDown}},
	})
	view.Movers = &models.Movers{
		Gainers: []models.Quote{{Symbol: "HOT", Price: 200, ChangePercent: 6}},
	}

	d := s.Decide(&Context{
		Agent:     testAgent(models.StrategyMomentum),
		Portfolio: emptyPortfolio("10000"),
		Market:    view,
		Memory:    &stubMemory{sentiments: map[string]float64{}},
		Rand:      &fixedRand{draws: []float64{0.0}},
	})

	require.NotNil(t, d.Buy)
	assert.Equal(t, "HOT", d.Buy.Symbol)
}
