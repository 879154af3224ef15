package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-arena/internal/errors"
	"paper-arena/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := New()

	first := l.Initialize(ctx, "warren", 10000)
	assert.True(t, first.Cash.Equal(dec("10000")))

	// A second initialize with a different amount must not reset anything.
	_, err := l.Buy(ctx, "warren", "AAPL", dec("10"), dec("100"), "")
	require.NoError(t, err)
	second := l.Initialize(ctx, "warren", 99999)

	assert.True(t, second.Cash.Equal(dec("9000")))
	assert.Len(t, second.Positions, 1)
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 25)

	buy, err := l.Buy(ctx, "warren", "AAPL", dec("1"), dec("20"), "cheap entry")
	require.NoError(t, err)
	assert.Equal(t, models.TradeSideBuy, buy.Side)
	assert.True(t, buy.Total.Equal(dec("20")))
	assert.Equal(t, "cheap entry", buy.Reason)

	p, err := l.Portfolio("warren")
	require.NoError(t, err)
	assert.True(t, p.Cash.Equal(dec("5")))
	require.Contains(t, p.Positions, "AAPL")
	assert.True(t, p.Positions["AAPL"].Shares.Equal(dec("1")))
	assert.True(t, p.Positions["AAPL"].AvgCost.Equal(dec("20")))

	sell, err := l.Sell(ctx, "warren", "AAPL", dec("1"), dec("25"), "taking profit")
	require.NoError(t, err)
	assert.True(t, sell.PnL.Equal(dec("5")))
	assert.Equal(t, "taking profit", sell.Reason)

	p, err = l.Portfolio("warren")
	require.NoError(t, err)
	assert.True(t, p.Cash.Equal(dec("30")))
	assert.NotContains(t, p.Positions, "AAPL", "fully sold position must be removed")
}

func TestBuyMergesAtWeightedAverageCost(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 1000)

	_, err := l.Buy(ctx, "warren", "TSLA", dec("10"), dec("10"), "")
	require.NoError(t, err)
	_, err = l.Buy(ctx, "warren", "TSLA", dec("10"), dec("20"), "")
	require.NoError(t, err)

	p, err := l.Portfolio("warren")
	require.NoError(t, err)
	pos := p.Positions["TSLA"]
	require.NotNil(t, pos)
	assert.True(t, pos.Shares.Equal(dec("20")))
	assert.True(t, pos.AvgCost.Equal(dec("15")), "avg cost got %s", pos.AvgCost)
}

func TestBuyRejections(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 100)

	tests := []struct {
		name    string
		shares  decimal.Decimal
		price   decimal.Decimal
		wantErr error
	}{
		{"zero shares", dec("0"), dec("10"), errors.ErrInvalidQuantity},
		{"negative shares", dec("-1"), dec("10"), errors.ErrInvalidQuantity},
		{"zero price", dec("1"), dec("0"), errors.ErrInvalidQuantity},
		{"cost exceeds cash", dec("11"), dec("10"), errors.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Buy(ctx, "warren", "AAPL", tt.shares, tt.price, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			// Rejection leaves the portfolio untouched.
			p, perr := l.Portfolio("warren")
			require.NoError(t, perr)
			assert.True(t, p.Cash.Equal(dec("100")))
			assert.Empty(t, p.Positions)
		})
	}
}

func TestSellRejections(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 100)
	_, err := l.Buy(ctx, "warren", "AAPL", dec("5"), dec("10"), "")
	require.NoError(t, err)

	_, err = l.Sell(ctx, "warren", "AAPL", dec("6"), dec("10"), "")
	assert.ErrorIs(t, err, errors.ErrInsufficientShares)

	_, err = l.Sell(ctx, "warren", "MSFT", dec("1"), dec("10"), "")
	assert.ErrorIs(t, err, errors.ErrInsufficientShares)

	_, err = l.Sell(ctx, "ghost", "AAPL", dec("1"), dec("10"), "")
	assert.ErrorIs(t, err, errors.ErrPortfolioNotFound)
}

func TestPartialSellKeepsAvgCost(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 1000)
	_, err := l.Buy(ctx, "warren", "AAPL", dec("10"), dec("10"), "")
	require.NoError(t, err)

	sell, err := l.Sell(ctx, "warren", "AAPL", dec("4"), dec("12"), "")
	require.NoError(t, err)
	assert.True(t, sell.PnL.Equal(dec("8")), "pnl got %s", sell.PnL)

	p, _ := l.Portfolio("warren")
	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.True(t, pos.Shares.Equal(dec("6")))
	assert.True(t, pos.AvgCost.Equal(dec("10")), "partial sell must not change avg cost")
}

func TestValuateFallsBackToAvgCost(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 100)
	_, err := l.Buy(ctx, "warren", "AAPL", dec("2"), dec("10"), "")
	require.NoError(t, err)

	// Quote available: cash 80 + 2*15 = 110.
	value, err := l.Valuate("warren", func(symbol string) (float64, error) {
		return 15, nil
	})
	require.NoError(t, err)
	assert.InDelta(t, 110, value, 1e-9)

	// No quote: positions valued at average cost, 80 + 2*10 = 100.
	value, err = l.Valuate("warren", func(symbol string) (float64, error) {
		return 0, errors.ErrQuoteUnavailable
	})
	require.NoError(t, err)
	assert.InDelta(t, 100, value, 1e-9)

	_, err = l.Valuate("ghost", nil)
	assert.ErrorIs(t, err, errors.ErrPortfolioNotFound)
}

func TestSnapshotHistoryCap(t *testing.T) {
	ctx := context.Background()
	l := New(WithHistoryLimit(5))
	l.Initialize(ctx, "warren", 100)

	for i := 0; i < 8; i++ {
		require.NoError(t, l.Snapshot(ctx, "warren", float64(100+i)))
	}

	p, _ := l.Portfolio("warren")
	require.Len(t, p.History, 5)
	assert.Equal(t, float64(103), p.History[0].Value, "oldest entries drop first")
	assert.Equal(t, float64(107), p.History[4].Value)
}

func TestPerformanceFromHistory(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 100)
	require.NoError(t, l.Snapshot(ctx, "warren", 110))
	require.NoError(t, l.Snapshot(ctx, "warren", 99))

	perf, err := l.Performance("warren")
	require.NoError(t, err)
	assert.InDelta(t, 100, perf.StartingValue, 1e-9)
	assert.InDelta(t, 99, perf.CurrentValue, 1e-9)
	assert.InDelta(t, -1, perf.TotalReturnPercent, 1e-9)
	require.Len(t, perf.PeriodChanges, 1)
	assert.InDelta(t, -10, perf.PeriodChanges[0], 1e-9)
}

func TestDeleteKeepsTradeFeed(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 100)
	_, err := l.Buy(ctx, "warren", "AAPL", dec("1"), dec("10"), "")
	require.NoError(t, err)

	l.Delete(ctx, "warren")

	_, err = l.Portfolio("warren")
	assert.ErrorIs(t, err, errors.ErrPortfolioNotFound)
	assert.Len(t, l.TradeHistory("warren", 0), 1, "trade feed survives elimination")
}

func TestTradeHistoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.Initialize(ctx, "warren", 1000)
	l.Initialize(ctx, "cathie", 1000)

	_, _ = l.Buy(ctx, "warren", "AAPL", dec("1"), dec("10"), "")
	_, _ = l.Buy(ctx, "cathie", "TSLA", dec("1"), dec("20"), "")
	_, _ = l.Buy(ctx, "warren", "MSFT", dec("1"), dec("30"), "")

	hist := l.TradeHistory("warren", 0)
	require.Len(t, hist, 2)
	assert.Equal(t, "MSFT", hist[0].Symbol, "most recent first")

	all := l.AllTrades(2)
	require.Len(t, all, 2)
	assert.Equal(t, "MSFT", all[0].Symbol)
	assert.Equal(t, "TSLA", all[1].Symbol)
}
