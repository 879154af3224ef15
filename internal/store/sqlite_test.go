package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-arena/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPortfolioRewriteIsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &models.Portfolio{
		AgentKey:      "warren",
		Cash:          decimal.RequireFromString("1000"),
		StartingValue: decimal.RequireFromString("1000"),
		Positions:     map[string]*models.Position{},
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, s.SavePortfolio(ctx, p))

	p.Cash = decimal.RequireFromString("750.5")
	p.Positions["AAPL"] = &models.Position{
		Symbol:  "AAPL",
		Shares:  decimal.RequireFromString("2.5"),
		AvgCost: decimal.RequireFromString("99.8"),
	}
	p.History = []models.ValueSnapshot{{Timestamp: time.Now(), Value: 1005}}
	require.NoError(t, s.SavePortfolio(ctx, p))

	loaded, err := s.LoadPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1, "same agent key overwrites, never duplicates")

	got := loaded[0]
	assert.True(t, got.Cash.Equal(decimal.RequireFromString("750.5")))
	require.Contains(t, got.Positions, "AAPL")
	assert.True(t, got.Positions["AAPL"].Shares.Equal(decimal.RequireFromString("2.5")))
	require.Len(t, got.History, 1)
	assert.InDelta(t, 1005, got.History[0].Value, 1e-9)

	require.NoError(t, s.DeletePortfolio(ctx, "warren"))
	loaded, err = s.LoadPortfolios(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTradeFeedSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	trade := &models.Trade{
		ID:        "t-1",
		AgentKey:  "warren",
		Side:      models.TradeSideSell,
		Symbol:    "AAPL",
		Shares:    decimal.RequireFromString("3"),
		Price:     decimal.RequireFromString("101.25"),
		Total:     decimal.RequireFromString("303.75"),
		PnL:       decimal.RequireFromString("-12.5"),
		Reason:    "stop loss",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveTrade(ctx, trade))
	require.NoError(t, s.Close())

	// A second process over the same file sees the full feed.
	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	trades, err := s2.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.TradeSideSell, trades[0].Side)
	assert.True(t, trades[0].PnL.Equal(decimal.RequireFromString("-12.5")))
	assert.Equal(t, "stop loss", trades[0].Reason)
}

func TestClearMemoryIsScopedToOneAgent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	for _, key := range []string{"warren", "cathie"} {
		require.NoError(t, s.SaveOutcome(ctx, &models.TradeOutcome{
			ID: key + "-o1", AgentKey: key, Symbol: "AAPL", PnL: 1, Timestamp: now,
		}))
		require.NoError(t, s.SaveBelief(ctx, &models.Belief{
			AgentKey: key, Type: models.BeliefStockSentiment, Symbol: "AAPL", Value: 0.4, UpdatedAt: now,
		}))
		require.NoError(t, s.SaveReflection(ctx, &models.Reflection{
			AgentKey: key, Date: "2025-03-01", Content: "note", UpdatedAt: now,
		}))
	}

	require.NoError(t, s.ClearMemory(ctx, "warren"))

	outcomes, err := s.LoadOutcomes(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "cathie", outcomes[0].AgentKey)

	beliefs, err := s.LoadBeliefs(ctx)
	require.NoError(t, err)
	require.Len(t, beliefs, 1)
	assert.Equal(t, "cathie", beliefs[0].AgentKey)

	reflections, err := s.LoadReflections(ctx)
	require.NoError(t, err)
	require.Len(t, reflections, 1)
	assert.Equal(t, "cathie", reflections[0].AgentKey)
}

func TestBeliefUpsertKeepsOneRowPerKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := &models.Belief{AgentKey: "warren", Type: models.BeliefStockSentiment, Symbol: "TSLA", Value: 0.2, UpdatedAt: time.Now()}
	require.NoError(t, s.SaveBelief(ctx, b))
	b.Value = -0.6
	require.NoError(t, s.SaveBelief(ctx, b))

	beliefs, err := s.LoadBeliefs(ctx)
	require.NoError(t, err)
	require.Len(t, beliefs, 1)
	assert.InDelta(t, -0.6, beliefs[0].Value, 1e-9)
}

func TestAgentRoundTripWithSymbolLists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &models.Agent{
		Key:              "warren",
		Name:             "Warren",
		Strategy:         models.StrategyValue,
		RiskTolerance:    0.3,
		TradeFrequency:   0.4,
		PreferredSymbols: []string{"AAPL", "KO"},
		AvoidSymbols:     []string{"DOGE"},
		Generation:       2,
		Status:           models.AgentActive,
		Kills:            4,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveAgent(ctx, a))

	// Respawn updates the same row.
	a.Generation = 3
	a.Kills = 0
	require.NoError(t, s.SaveAgent(ctx, a))

	agents, err := s.LoadAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	got := agents[0]
	assert.Equal(t, 3, got.Generation)
	assert.Equal(t, 0, got.Kills)
	assert.Equal(t, []string{"AAPL", "KO"}, got.PreferredSymbols)
	assert.Equal(t, []string{"DOGE"}, got.AvoidSymbols)
}

func TestCompetitionIsASingleton(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	none, err := s.LoadCompetition(ctx)
	require.NoError(t, err)
	assert.Nil(t, none, "fresh database has no competition yet")

	c := &models.Competition{
		Round:     1,
		StartDate: time.Now().UTC().Truncate(time.Second),
		EndDate:   time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second),
	}
	require.NoError(t, s.SaveCompetition(ctx, c))

	c.Round = 2
	c.EliminatedHistory = []string{"diamond@1", "flash@1"}
	require.NoError(t, s.SaveCompetition(ctx, c))

	got, err := s.LoadCompetition(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Round)
	assert.Equal(t, []string{"diamond@1", "flash@1"}, got.EliminatedHistory)
}

func TestGraveyardAppendsAcrossGenerations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	for gen := 1; gen <= 2; gen++ {
		e := &models.GraveyardEntry{
			Agent: models.Agent{
				Key: "diamond", Name: "Diamond", Strategy: models.StrategyMeme,
				Generation: gen, Status: models.AgentEliminated,
			},
			FinalValue:         9000 - float64(gen)*100,
			FinalReturnPercent: -10,
			EliminatedAt:       now,
			EliminatedRound:    gen,
			MemorySummary:      &models.MemorySummary{AgentKey: "diamond"},
		}
		require.NoError(t, s.SaveGraveyardEntry(ctx, e))
	}

	graves, err := s.LoadGraveyard(ctx)
	require.NoError(t, err)
	require.Len(t, graves, 2, "same key dies twice, both records kept")
	assert.Equal(t, 1, graves[0].Agent.Generation)
	assert.Equal(t, 2, graves[1].Agent.Generation)
	require.NotNil(t, graves[1].MemorySummary)
	assert.Equal(t, "diamond", graves[1].MemorySummary.AgentKey)
}
