// Package arena owns the roster of agents and drives the competition:
// trading rounds, the leaderboard, and the elimination/respawn cycle.
package arena

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"paper-arena/internal/config"
	"paper-arena/internal/errors"
	"paper-arena/internal/ledger"
	"paper-arena/internal/marketdata"
	"paper-arena/internal/memory"
	"paper-arena/internal/models"
	"paper-arena/internal/store"
	"paper-arena/internal/strategy"
)

// roundLength is the calendar span of one competition round.
const roundLength = 7 * 24 * time.Hour

// Config holds the competition parameters.
type Config struct {
	StartingCash     float64
	EliminationCount int
	MinActiveAgents  int
	Universe         []string
}

// Controller is the single owner of arena state. All consumers receive the
// instance explicitly; there are no package-level singletons.
type Controller struct {
	mu          sync.RWMutex
	cfg         Config
	agents      map[string]*models.Agent
	order       []string // stable iteration and tie-break order
	competition *models.Competition
	graveyard   []*models.GraveyardEntry
	lastQuotes  map[string]float64

	ledger *ledger.Ledger
	memory *memory.Store
	market marketdata.Provider
	store  store.DataStore
	rng    strategy.Rand
	log    zerolog.Logger

	// Guards against overlapping cycles fired by an external timer. One
	// round or elimination runs to completion before the next may start.
	busy atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore wires the persistence backend.
func WithStore(st store.DataStore) Option {
	return func(c *Controller) { c.store = st }
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.log = logger }
}

// WithRand injects the randomness source used by strategies, so behavior is
// reproducible under test with a fixed seed.
func WithRand(r strategy.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// New creates a Controller over the given engines and market provider.
func New(cfg Config, led *ledger.Ledger, mem *memory.Store, market marketdata.Provider, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		agents:     make(map[string]*models.Agent),
		lastQuotes: make(map[string]float64),
		ledger:     led,
		memory:     mem,
		market:     market,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap loads persisted state and registers any roster seeds that are
// not yet present. Safe to call on a fresh database.
func (c *Controller) Bootstrap(ctx context.Context, seeds []config.AgentSeed) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		agents, err := c.store.LoadAgents(ctx)
		if err != nil {
			return errors.Wrap(err, "loading agents")
		}
		for _, a := range agents {
			c.agents[a.Key] = a
			c.order = append(c.order, a.Key)
		}

		portfolios, err := c.store.LoadPortfolios(ctx)
		if err != nil {
			return errors.Wrap(err, "loading portfolios")
		}
		trades, err := c.store.LoadTrades(ctx)
		if err != nil {
			return errors.Wrap(err, "loading trades")
		}
		c.ledger.Hydrate(portfolios, trades)

		outcomes, err := c.store.LoadOutcomes(ctx)
		if err != nil {
			return errors.Wrap(err, "loading outcomes")
		}
		observations, err := c.store.LoadObservations(ctx)
		if err != nil {
			return errors.Wrap(err, "loading observations")
		}
		beliefs, err := c.store.LoadBeliefs(ctx)
		if err != nil {
			return errors.Wrap(err, "loading beliefs")
		}
		reflections, err := c.store.LoadReflections(ctx)
		if err != nil {
			return errors.Wrap(err, "loading reflections")
		}
		c.memory.Hydrate(outcomes, observations, beliefs, reflections)

		comp, err := c.store.LoadCompetition(ctx)
		if err != nil {
			return errors.Wrap(err, "loading competition")
		}
		c.competition = comp

		graves, err := c.store.LoadGraveyard(ctx)
		if err != nil {
			return errors.Wrap(err, "loading graveyard")
		}
		c.graveyard = graves
	}

	for _, seed := range seeds {
		if _, exists := c.agents[seed.Key]; exists {
			continue
		}
		kind := models.StrategyKind(seed.Strategy)
		if _, err := strategy.ForKind(kind); err != nil {
			return errors.Wrapf(err, "seed %q", seed.Key)
		}
		if seed.TradeFrequency < 0 || seed.TradeFrequency > 1 {
			return fmt.Errorf("seed %q: trade_frequency %.2f outside [0, 1]", seed.Key, seed.TradeFrequency)
		}
		if seed.RiskTolerance < 0 || seed.RiskTolerance > 1 {
			return fmt.Errorf("seed %q: risk_tolerance %.2f outside [0, 1]", seed.Key, seed.RiskTolerance)
		}
		a := &models.Agent{
			Key:              seed.Key,
			Name:             seed.Name,
			Strategy:         kind,
			RiskTolerance:    seed.RiskTolerance,
			TradeFrequency:   seed.TradeFrequency,
			PreferredSymbols: seed.PreferredSymbols,
			AvoidSymbols:     seed.AvoidSymbols,
			Generation:       1,
			Status:           models.AgentActive,
			CreatedAt:        time.Now(),
		}
		c.agents[a.Key] = a
		c.order = append(c.order, a.Key)
		c.ledger.Initialize(ctx, a.Key, c.cfg.StartingCash)
		c.saveAgent(ctx, a)
	}

	if c.competition == nil {
		now := time.Now()
		c.competition = &models.Competition{
			Round:     1,
			StartDate: now,
			EndDate:   now.Add(roundLength),
		}
		c.saveCompetition(ctx)
	}

	c.log.Info().Int("agents", len(c.agents)).Int("round", c.competition.Round).Msg("arena bootstrapped")
	return nil
}

// Agent returns a copy of one roster slot.
func (c *Controller) Agent(key string) (*models.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.agents[key]
	if !ok {
		return nil, errors.ErrAgentNotFound
	}
	cp := *a
	return &cp, nil
}

// AllAgents returns the roster in stable order.
func (c *Controller) AllAgents() []models.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Agent, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.agents[key])
	}
	return out
}

// CompetitionStatus returns the global competition record.
func (c *Controller) CompetitionStatus() models.Competition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.competition
}

// Graveyard returns every elimination record, oldest first.
func (c *Controller) Graveyard() []models.GraveyardEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.GraveyardEntry, 0, len(c.graveyard))
	for _, e := range c.graveyard {
		out = append(out, *e)
	}
	return out
}

// Ledger exposes the trade ledger to the API layer.
func (c *Controller) Ledger() *ledger.Ledger { return c.ledger }

// Memory exposes the memory store to the API layer.
func (c *Controller) Memory() *memory.Store { return c.memory }

// Leaderboard ranks active agents by current valuation, descending. Ties
// break by roster order. The bottom ranks are flagged as in danger whenever
// more agents are active than the elimination count.
func (c *Controller) Leaderboard() []models.LeaderboardEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leaderboardLocked()
}

func (c *Controller) leaderboardLocked() []models.LeaderboardEntry {
	quote := c.quoteFuncLocked()

	var entries []models.LeaderboardEntry
	for _, key := range c.order {
		a := c.agents[key]
		if !a.IsActive() {
			continue
		}
		value, err := c.ledger.Valuate(key, quote)
		if err != nil {
			c.log.Warn().Err(err).Str("agent", key).Msg("valuation failed for leaderboard")
			continue
		}
		e := models.LeaderboardEntry{
			AgentKey:   a.Key,
			Name:       a.Name,
			Strategy:   a.Strategy,
			Generation: a.Generation,
			Kills:      a.Kills,
			Value:      value,
		}
		if c.cfg.StartingCash > 0 {
			e.ReturnPercent = (value - c.cfg.StartingCash) / c.cfg.StartingCash * 100
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
	for i := range entries {
		entries[i].Rank = i + 1
		if len(entries) > c.cfg.EliminationCount && i >= len(entries)-c.cfg.EliminationCount {
			entries[i].InDanger = true
		}
	}
	return entries
}

// quoteFuncLocked builds a ledger quote lookup over the last seen prices.
func (c *Controller) quoteFuncLocked() ledger.QuoteFunc {
	quotes := c.lastQuotes
	return func(symbol string) (float64, error) {
		if p, ok := quotes[symbol]; ok && p > 0 {
			return p, nil
		}
		return 0, errors.ErrQuoteUnavailable
	}
}

// GenerateDailySummary writes one reflection per active agent for today,
// derived from remembered outcomes and current standing.
func (c *Controller) GenerateDailySummary(ctx context.Context) []models.Reflection {
	c.mu.Lock()
	defer c.mu.Unlock()

	board := c.leaderboardLocked()
	rankOf := make(map[string]int, len(board))
	for _, e := range board {
		rankOf[e.AgentKey] = e.Rank
	}

	now := time.Now()
	var out []models.Reflection
	for _, key := range c.order {
		a := c.agents[key]
		if !a.IsActive() {
			continue
		}
		stats := c.memory.WinRate(key, "")
		content := fmt.Sprintf(
			"Day %s: rank %d of %d, win rate %.0f%% over %d closed trades (avg %+.2f%%).",
			now.Format("2006-01-02"), rankOf[key], len(board), stats.WinRate, stats.Total, stats.AvgReturn,
		)
		if worst := c.memory.WorstSymbols(key, 1); len(worst) > 0 && worst[0].AvgPnLPercent < 0 {
			content += fmt.Sprintf(" Still bleeding on %s.", worst[0].Symbol)
		}
		c.memory.UpsertReflection(ctx, key, now, content)
		out = append(out, models.Reflection{AgentKey: key, Date: now.Format("2006-01-02"), Content: content})
	}
	return out
}

func (c *Controller) saveAgent(ctx context.Context, a *models.Agent) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveAgent(ctx, a); err != nil {
		c.log.Warn().Err(err).Str("agent", a.Key).Msg("agent persistence failed")
	}
}

func (c *Controller) saveCompetition(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveCompetition(ctx, c.competition); err != nil {
		c.log.Warn().Err(err).Msg("competition persistence failed")
	}
}
