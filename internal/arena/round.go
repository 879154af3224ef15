package arena

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"paper-arena/internal/errors"
	"paper-arena/internal/logging"
	"paper-arena/internal/memory"
	"paper-arena/internal/models"
	"paper-arena/internal/strategy"
)

// RoundReport summarizes one completed trading round.
type RoundReport struct {
	Round      int                `json:"round"`
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration"`
	Trades     []models.Trade     `json:"trades"`
	Skipped    []string           `json:"skipped,omitempty"` // agents gated out this round
	Errors     []string           `json:"errors,omitempty"`
	Valuations map[string]float64 `json:"valuations"`
}

// RunTradingRound fetches one market snapshot and walks every active agent
// through decide, execute, remember, valuate. Only one cycle runs at a time;
// a second caller gets ErrRoundInProgress instead of blocking. One agent's
// failure never aborts the round for the others.
func (c *Controller) RunTradingRound(ctx context.Context) (*RoundReport, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, errors.ErrRoundInProgress
	}
	defer c.busy.Store(false)

	started := time.Now()

	c.mu.RLock()
	round := c.competition.Round
	keys := append([]string(nil), c.order...)
	c.mu.RUnlock()

	view, err := c.buildMarketView(ctx, keys)
	if err != nil {
		return nil, err
	}

	report := &RoundReport{
		Round:      round,
		StartedAt:  started,
		Valuations: make(map[string]float64),
	}

	for _, key := range keys {
		c.mu.RLock()
		agent := c.agents[key]
		active := agent != nil && agent.IsActive()
		if active {
			cp := *agent
			agent = &cp
		}
		c.mu.RUnlock()
		if !active {
			continue
		}
		if err := c.runAgent(ctx, agent, view, report); err != nil {
			c.log.Error().Err(err).Str("agent", key).Msg("agent round failed")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
		}
	}

	c.mu.Lock()
	for sym, q := range view.Quotes {
		if q != nil && q.Price > 0 {
			c.lastQuotes[sym] = q.Price
		}
	}
	c.mu.Unlock()

	report.Duration = time.Since(started)
	c.log.Info().
		Int("round", round).
		Int("trades", len(report.Trades)).
		Int("skipped", len(report.Skipped)).
		Int("errors", len(report.Errors)).
		Dur("took", report.Duration).
		Msg("trading round complete")
	return report, nil
}

// buildMarketView assembles the shared per-round snapshot: analysis and
// quotes for the universe plus every symbol the roster holds or prefers.
// Partial data is acceptable; strategies skip symbols they cannot see.
func (c *Controller) buildMarketView(ctx context.Context, keys []string) (*models.MarketView, error) {
	symbols := make([]string, 0, len(c.cfg.Universe))
	seen := make(map[string]bool)
	add := func(sym string) {
		if sym != "" && !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	for _, sym := range c.cfg.Universe {
		add(sym)
	}
	c.mu.RLock()
	for _, key := range keys {
		if a := c.agents[key]; a != nil {
			for _, sym := range a.PreferredSymbols {
				add(sym)
			}
		}
		if p, err := c.ledger.Portfolio(key); err == nil {
			for sym := range p.Positions {
				add(sym)
			}
		}
	}
	c.mu.RUnlock()

	analysis, err := c.market.AnalyzeMultiple(ctx, symbols)
	if err != nil {
		return nil, errors.Wrap(err, "market snapshot")
	}

	view := &models.MarketView{
		Quotes:   make(map[string]*models.Quote, len(symbols)),
		Analysis: analysis,
		Universe: c.cfg.Universe,
	}
	for _, sym := range symbols {
		q, err := c.market.GetQuote(ctx, sym)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", sym).Msg("quote unavailable this round")
			continue
		}
		view.Quotes[sym] = q
	}

	movers, err := c.market.GetTopMovers(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("movers unavailable this round")
	} else {
		view.Movers = movers
	}
	return view, nil
}

// runAgent executes one agent's round: strategy decision, sell and buy
// execution, memory write-back, then valuation snapshot.
func (c *Controller) runAgent(ctx context.Context, agent *models.Agent, view *models.MarketView, report *RoundReport) error {
	s, err := strategy.ForKind(agent.Strategy)
	if err != nil {
		return errors.NewAgentError(agent.Key, "strategy", err)
	}
	portfolio, err := c.ledger.Portfolio(agent.Key)
	if err != nil {
		return errors.NewAgentError(agent.Key, "portfolio", err)
	}

	decision := strategy.Run(s, &strategy.Context{
		Agent:     agent,
		Portfolio: portfolio,
		Market:    view,
		Memory:    c.memory,
		Rand:      c.rng,
	})
	if decision.Buy == nil && len(decision.Sells) == 0 {
		report.Skipped = append(report.Skipped, agent.Key)
		return nil
	}

	alog := logging.WithAgent(c.log, agent.Key).With().Str("strategy", string(agent.Strategy)).Logger()

	// Sells settle first so freed cash is available for the buy.
	for _, intent := range decision.Sells {
		q := view.QuoteFor(intent.Symbol)
		if q == nil || q.Price <= 0 {
			continue
		}
		entry := entryPrice(portfolio, intent.Symbol)
		price := decimal.NewFromFloat(q.Price)

		trade, err := c.ledger.Sell(ctx, agent.Key, intent.Symbol, intent.Shares, price, intent.Reason)
		if err != nil {
			alog.Warn().Err(err).Str("symbol", intent.Symbol).Msg("sell rejected")
			continue
		}
		report.Trades = append(report.Trades, *trade)
		logging.LogTrade(alog, agent.Key, trade.Symbol, string(trade.Side), trade.Shares.InexactFloat64(), trade.Price.InexactFloat64())
		c.rememberSell(ctx, agent.Key, trade, entry)
	}

	if intent := decision.Buy; intent != nil {
		q := view.QuoteFor(intent.Symbol)
		if q != nil && q.Price > 0 {
			price := decimal.NewFromFloat(q.Price)
			trade, err := c.ledger.Buy(ctx, agent.Key, intent.Symbol, intent.Shares, price, intent.Reason)
			if err != nil {
				alog.Warn().Err(err).Str("symbol", intent.Symbol).Msg("buy rejected")
			} else {
				report.Trades = append(report.Trades, *trade)
				logging.LogTrade(alog, agent.Key, trade.Symbol, string(trade.Side), trade.Shares.InexactFloat64(), trade.Price.InexactFloat64())
				c.memory.AddObservation(ctx, models.Observation{
					AgentKey:   agent.Key,
					Symbol:     intent.Symbol,
					Note:       intent.Reason,
					Confidence: agent.RiskTolerance,
				})
			}
		}
	}

	value, err := c.ledger.Valuate(agent.Key, func(symbol string) (float64, error) {
		if q := view.QuoteFor(symbol); q != nil && q.Price > 0 {
			return q.Price, nil
		}
		return 0, errors.ErrQuoteUnavailable
	})
	if err != nil {
		return errors.NewAgentError(agent.Key, "valuation", err)
	}
	if err := c.ledger.Snapshot(ctx, agent.Key, value); err != nil {
		return errors.NewAgentError(agent.Key, "snapshot", err)
	}
	report.Valuations[agent.Key] = value
	return nil
}

// rememberSell records the closed trade's outcome and nudges the symbol
// sentiment: small reinforcement on a win, a larger penalty on a loss.
func (c *Controller) rememberSell(ctx context.Context, agentKey string, trade *models.Trade, entry float64) {
	pnl, _ := trade.PnL.Float64()
	exit, _ := trade.Price.Float64()

	outcome := models.TradeOutcome{
		AgentKey:   agentKey,
		Symbol:     trade.Symbol,
		EntryPrice: entry,
		ExitPrice:  exit,
		PnL:        pnl,
		Context:    fmt.Sprintf("closed %s shares of %s at %.2f, entered at %.2f", trade.Shares, trade.Symbol, exit, entry),
		Lesson:     trade.Reason,
	}
	if entry > 0 {
		outcome.PnLPercent = (exit - entry) / entry * 100
	}
	c.memory.RecordOutcome(ctx, outcome)

	if pnl >= 0 {
		c.memory.NudgeSentiment(ctx, agentKey, trade.Symbol, memory.SentimentWinStep, "profitable exit")
	} else {
		c.memory.NudgeSentiment(ctx, agentKey, trade.Symbol, -memory.SentimentLossStep, "losing exit")
	}
}

// entryPrice reads the average cost of a held position before it is mutated
// by the sell.
func entryPrice(p *models.Portfolio, symbol string) float64 {
	pos, ok := p.Positions[symbol]
	if !ok {
		return 0
	}
	return pos.AvgCost.InexactFloat64()
}
