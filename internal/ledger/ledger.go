// Package ledger owns per-agent cash and position state and exposes atomic
// buy/sell/valuation operations. It has no knowledge of strategies; agents
// are identified only by an opaque key.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paper-arena/internal/errors"
	"paper-arena/internal/models"
)

// ShareDecimals is the precision of fractional share quantities.
const ShareDecimals = 4

// DefaultHistoryLimit caps the value-history length per portfolio.
const DefaultHistoryLimit = 100

// Persister is the narrow persistence boundary the ledger writes through
// after each mutation. Implemented by the SQLite store; nil disables
// persistence (used in tests).
type Persister interface {
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	SaveTrade(ctx context.Context, t *models.Trade) error
	DeletePortfolio(ctx context.Context, agentKey string) error
}

// QuoteFunc resolves a current price for a symbol. It returns an error when
// no quote is available; valuation then falls back to average cost.
type QuoteFunc func(symbol string) (float64, error)

// Ledger tracks portfolios and the global trade feed.
type Ledger struct {
	mu           sync.RWMutex
	portfolios   map[string]*models.Portfolio
	trades       []*models.Trade
	historyLimit int
	store        Persister
	log          zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore wires a persistence backend.
func WithStore(p Persister) Option {
	return func(l *Ledger) { l.store = p }
}

// WithHistoryLimit overrides the value-history cap.
func WithHistoryLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

// WithLogger sets the ledger logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.log = logger }
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		portfolios:   make(map[string]*models.Portfolio),
		historyLimit: DefaultHistoryLimit,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hydrate replaces in-memory state with previously persisted portfolios and
// trades. Called once at startup, before any round runs.
func (l *Ledger) Hydrate(portfolios []*models.Portfolio, trades []*models.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.portfolios = make(map[string]*models.Portfolio, len(portfolios))
	for _, p := range portfolios {
		if p.Positions == nil {
			p.Positions = make(map[string]*models.Position)
		}
		l.portfolios[p.AgentKey] = p
	}
	l.trades = append([]*models.Trade(nil), trades...)
	sort.Slice(l.trades, func(i, j int) bool {
		return l.trades[i].Timestamp.Before(l.trades[j].Timestamp)
	})
}

// Initialize creates a portfolio for the agent if absent. Idempotent: an
// existing portfolio is left untouched.
func (l *Ledger) Initialize(ctx context.Context, agentKey string, startingCash float64) *models.Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.portfolios[agentKey]; ok {
		return p.Clone()
	}

	cash := decimal.NewFromFloat(startingCash)
	p := &models.Portfolio{
		AgentKey:      agentKey,
		Cash:          cash,
		Positions:     make(map[string]*models.Position),
		StartingValue: cash,
		UpdatedAt:     time.Now(),
	}
	l.portfolios[agentKey] = p
	l.persistPortfolio(ctx, p)
	return p.Clone()
}

// Buy debits cash and merges shares into the position at weighted-average
// cost. Commission is always zero. The portfolio is unchanged on rejection.
// The reason is free text from the caller, carried on the trade record.
func (l *Ledger) Buy(ctx context.Context, agentKey, symbol string, shares, price decimal.Decimal, reason string) (*models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.portfolios[agentKey]
	if !ok {
		return nil, errors.NewTradeError(agentKey, symbol, "BUY", "no portfolio", errors.ErrPortfolioNotFound)
	}

	shares = shares.Round(ShareDecimals)
	if shares.Sign() <= 0 || price.Sign() <= 0 {
		return nil, errors.NewTradeError(agentKey, symbol, "BUY", "non-positive shares or price", errors.ErrInvalidQuantity)
	}

	cost := shares.Mul(price)
	if cost.GreaterThan(p.Cash) {
		return nil, errors.NewTradeError(agentKey, symbol, "BUY", "cost exceeds cash", errors.ErrInsufficientFunds)
	}

	p.Cash = p.Cash.Sub(cost)
	if pos, held := p.Positions[symbol]; held {
		// newAvgCost = (oldShares*oldAvgCost + shares*price) / (oldShares + shares)
		totalShares := pos.Shares.Add(shares)
		totalCost := pos.Shares.Mul(pos.AvgCost).Add(cost)
		pos.AvgCost = totalCost.Div(totalShares)
		pos.Shares = totalShares
	} else {
		p.Positions[symbol] = &models.Position{Symbol: symbol, Shares: shares, AvgCost: price}
	}
	p.UpdatedAt = time.Now()

	trade := &models.Trade{
		ID:        uuid.NewString(),
		AgentKey:  agentKey,
		Side:      models.TradeSideBuy,
		Symbol:    symbol,
		Shares:    shares,
		Price:     price,
		Total:     cost,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	l.trades = append(l.trades, trade)

	l.persistPortfolio(ctx, p)
	l.persistTrade(ctx, trade)
	return trade, nil
}

// Sell credits proceeds and decrements shares, removing the position when it
// reaches exactly zero. Realized P&L is proceeds minus cost basis at average
// cost. The portfolio is unchanged on rejection. The reason is free text
// from the caller, carried on the trade record.
func (l *Ledger) Sell(ctx context.Context, agentKey, symbol string, shares, price decimal.Decimal, reason string) (*models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.portfolios[agentKey]
	if !ok {
		return nil, errors.NewTradeError(agentKey, symbol, "SELL", "no portfolio", errors.ErrPortfolioNotFound)
	}

	shares = shares.Round(ShareDecimals)
	if shares.Sign() <= 0 || price.Sign() <= 0 {
		return nil, errors.NewTradeError(agentKey, symbol, "SELL", "non-positive shares or price", errors.ErrInvalidQuantity)
	}

	pos, held := p.Positions[symbol]
	if !held || pos.Shares.LessThan(shares) {
		return nil, errors.NewTradeError(agentKey, symbol, "SELL", "position too small", errors.ErrInsufficientShares)
	}

	proceeds := shares.Mul(price)
	pnl := proceeds.Sub(shares.Mul(pos.AvgCost))

	p.Cash = p.Cash.Add(proceeds)
	pos.Shares = pos.Shares.Sub(shares)
	if pos.Shares.IsZero() {
		delete(p.Positions, symbol)
	}
	p.UpdatedAt = time.Now()

	trade := &models.Trade{
		ID:        uuid.NewString(),
		AgentKey:  agentKey,
		Side:      models.TradeSideSell,
		Symbol:    symbol,
		Shares:    shares,
		Price:     price,
		Total:     proceeds,
		PnL:       pnl,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	l.trades = append(l.trades, trade)

	l.persistPortfolio(ctx, p)
	l.persistTrade(ctx, trade)
	return trade, nil
}

// Valuate returns cash plus the market value of every position. A symbol
// with no available quote is valued at its average cost; a single missing
// quote never fails the whole valuation.
func (l *Ledger) Valuate(agentKey string, quote QuoteFunc) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.portfolios[agentKey]
	if !ok {
		return 0, errors.ErrPortfolioNotFound
	}

	total := p.Cash
	for sym, pos := range p.Positions {
		price := pos.AvgCost
		if quote != nil {
			if q, err := quote(sym); err == nil && q > 0 {
				price = decimal.NewFromFloat(q)
			}
		}
		total = total.Add(pos.Shares.Mul(price))
	}
	return total.InexactFloat64(), nil
}

// Snapshot appends a value point to the portfolio history, dropping the
// oldest entries beyond the history limit.
func (l *Ledger) Snapshot(ctx context.Context, agentKey string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.portfolios[agentKey]
	if !ok {
		return errors.ErrPortfolioNotFound
	}

	p.History = append(p.History, models.ValueSnapshot{Timestamp: time.Now(), Value: value})
	if len(p.History) > l.historyLimit {
		p.History = p.History[len(p.History)-l.historyLimit:]
	}
	p.UpdatedAt = time.Now()
	l.persistPortfolio(ctx, p)
	return nil
}

// Performance derives total return and period-over-period changes from the
// portfolio's value history.
func (l *Ledger) Performance(agentKey string) (*models.Performance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.portfolios[agentKey]
	if !ok {
		return nil, errors.ErrPortfolioNotFound
	}

	starting := p.StartingValue.InexactFloat64()
	current := starting
	if n := len(p.History); n > 0 {
		current = p.History[n-1].Value
	}

	perf := &models.Performance{
		AgentKey:      agentKey,
		StartingValue: starting,
		CurrentValue:  current,
		TotalReturn:   current - starting,
	}
	if starting > 0 {
		perf.TotalReturnPercent = (current - starting) / starting * 100
	}
	for i := 1; i < len(p.History); i++ {
		prev := p.History[i-1].Value
		if prev == 0 {
			perf.PeriodChanges = append(perf.PeriodChanges, 0)
			continue
		}
		perf.PeriodChanges = append(perf.PeriodChanges, (p.History[i].Value-prev)/prev*100)
	}
	return perf, nil
}

// Portfolio returns a copy of the agent's portfolio.
func (l *Ledger) Portfolio(agentKey string) (*models.Portfolio, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.portfolios[agentKey]
	if !ok {
		return nil, errors.ErrPortfolioNotFound
	}
	return p.Clone(), nil
}

// Delete removes the agent's portfolio. The trade feed is retained so the
// global history survives eliminations.
func (l *Ledger) Delete(ctx context.Context, agentKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.portfolios, agentKey)
	if l.store != nil {
		if err := l.store.DeletePortfolio(ctx, agentKey); err != nil {
			l.log.Warn().Err(err).Str("agent", agentKey).Msg("delete portfolio persistence failed")
		}
	}
}

// TradeHistory returns the agent's trades, most recent first.
func (l *Ledger) TradeHistory(agentKey string, limit int) []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Trade
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].AgentKey != agentKey {
			continue
		}
		out = append(out, *l.trades[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// AllTrades returns the global trade feed, most recent first.
func (l *Ledger) AllTrades(limit int) []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Trade
	for i := len(l.trades) - 1; i >= 0; i-- {
		out = append(out, *l.trades[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Persistence failures are logged, not surfaced: the in-memory state is
// authoritative within a round and writes are last-writer-wins.
func (l *Ledger) persistPortfolio(ctx context.Context, p *models.Portfolio) {
	if l.store == nil {
		return
	}
	if err := l.store.SavePortfolio(ctx, p); err != nil {
		l.log.Warn().Err(err).Str("agent", p.AgentKey).Msg("portfolio persistence failed")
	}
}

func (l *Ledger) persistTrade(ctx context.Context, t *models.Trade) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveTrade(ctx, t); err != nil {
		l.log.Warn().Err(err).Str("trade", t.ID).Msg("trade persistence failed")
	}
}
