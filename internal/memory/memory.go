// Package memory is the per-agent historical record: trade outcomes,
// observations, scalar beliefs, and daily reflections. It is purely
// additive and queryable; it contains no trading logic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"paper-arena/internal/models"
)

// Sentiment nudge steps applied after a closed trade. The loss step is
// deliberately larger: agents remember pain more than profit. Empirically
// tuned, kept as named constants.
const (
	SentimentWinStep  = 0.1
	SentimentLossStep = 0.2
)

// minSymbolTrades is the minimum remembered outcomes before a symbol can
// appear in best/worst rankings.
const minSymbolTrades = 2

// Persister is the narrow persistence boundary the memory store writes
// through after each mutation. Nil disables persistence.
type Persister interface {
	SaveOutcome(ctx context.Context, o *models.TradeOutcome) error
	SaveObservation(ctx context.Context, o *models.Observation) error
	SaveBelief(ctx context.Context, b *models.Belief) error
	SaveReflection(ctx context.Context, r *models.Reflection) error
	ClearMemory(ctx context.Context, agentKey string) error
}

type beliefKey struct {
	Type   models.BeliefType
	Symbol string
}

// Store accumulates memory facts per agent key.
type Store struct {
	mu           sync.RWMutex
	outcomes     map[string][]*models.TradeOutcome
	observations map[string][]*models.Observation
	beliefs      map[string]map[beliefKey]*models.Belief
	reflections  map[string]map[string]*models.Reflection
	store        Persister
	log          zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithStore wires a persistence backend.
func WithStore(p Persister) Option {
	return func(s *Store) { s.store = p }
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// New creates an empty memory Store.
func New(opts ...Option) *Store {
	s := &Store{
		outcomes:     make(map[string][]*models.TradeOutcome),
		observations: make(map[string][]*models.Observation),
		beliefs:      make(map[string]map[beliefKey]*models.Belief),
		reflections:  make(map[string]map[string]*models.Reflection),
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces in-memory state with previously persisted facts.
func (s *Store) Hydrate(outcomes []*models.TradeOutcome, observations []*models.Observation, beliefs []*models.Belief, reflections []*models.Reflection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes = make(map[string][]*models.TradeOutcome)
	for _, o := range outcomes {
		s.outcomes[o.AgentKey] = append(s.outcomes[o.AgentKey], o)
	}
	s.observations = make(map[string][]*models.Observation)
	for _, o := range observations {
		s.observations[o.AgentKey] = append(s.observations[o.AgentKey], o)
	}
	s.beliefs = make(map[string]map[beliefKey]*models.Belief)
	for _, b := range beliefs {
		if s.beliefs[b.AgentKey] == nil {
			s.beliefs[b.AgentKey] = make(map[beliefKey]*models.Belief)
		}
		s.beliefs[b.AgentKey][beliefKey{b.Type, b.Symbol}] = b
	}
	s.reflections = make(map[string]map[string]*models.Reflection)
	for _, r := range reflections {
		if s.reflections[r.AgentKey] == nil {
			s.reflections[r.AgentKey] = make(map[string]*models.Reflection)
		}
		s.reflections[r.AgentKey][r.Date] = r
	}
}

// RecordOutcome appends a trade-outcome record.
func (s *Store) RecordOutcome(ctx context.Context, o models.TradeOutcome) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.outcomes[o.AgentKey] = append(s.outcomes[o.AgentKey], &o)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveOutcome(ctx, &o); err != nil {
			s.log.Warn().Err(err).Str("agent", o.AgentKey).Msg("outcome persistence failed")
		}
	}
}

// AddObservation appends a free-text observation with confidence in [0,1].
func (s *Store) AddObservation(ctx context.Context, o models.Observation) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	o.Confidence = clamp(o.Confidence, 0, 1)

	s.mu.Lock()
	s.observations[o.AgentKey] = append(s.observations[o.AgentKey], &o)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveObservation(ctx, &o); err != nil {
			s.log.Warn().Err(err).Str("agent", o.AgentKey).Msg("observation persistence failed")
		}
	}
}

// UpsertBelief inserts or overwrites the unique (agent, type, symbol) belief
// with the value clamped to [-1, 1].
func (s *Store) UpsertBelief(ctx context.Context, agentKey string, typ models.BeliefType, symbol string, value float64, note string) {
	b := &models.Belief{
		AgentKey:  agentKey,
		Type:      typ,
		Symbol:    symbol,
		Value:     clamp(value, -1, 1),
		Note:      note,
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	if s.beliefs[agentKey] == nil {
		s.beliefs[agentKey] = make(map[beliefKey]*models.Belief)
	}
	s.beliefs[agentKey][beliefKey{typ, symbol}] = b
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveBelief(ctx, b); err != nil {
			s.log.Warn().Err(err).Str("agent", agentKey).Msg("belief persistence failed")
		}
	}
}

// Sentiment reads the stock_sentiment belief for a symbol, defaulting to 0.
func (s *Store) Sentiment(agentKey, symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m := s.beliefs[agentKey]; m != nil {
		if b, ok := m[beliefKey{models.BeliefStockSentiment, symbol}]; ok {
			return b.Value
		}
	}
	return 0
}

// NudgeSentiment shifts the symbol's remembered sentiment by delta,
// clamped to [-1, 1].
func (s *Store) NudgeSentiment(ctx context.Context, agentKey, symbol string, delta float64, note string) {
	current := s.Sentiment(agentKey, symbol)
	s.UpsertBelief(ctx, agentKey, models.BeliefStockSentiment, symbol, current+delta, note)
}

// WinRate aggregates remembered outcomes. An empty symbol aggregates over
// every symbol; no outcomes yields zeroes.
func (s *Store) WinRate(agentKey, symbol string) models.WinRateStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.WinRateStats
	var sumReturn, sumWin, sumLoss float64
	for _, o := range s.outcomes[agentKey] {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		stats.Total++
		sumReturn += o.PnLPercent
		if o.PnL > 0 {
			stats.Wins++
			sumWin += o.PnLPercent
		} else if o.PnL < 0 {
			stats.Losses++
			sumLoss += o.PnLPercent
		}
	}
	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total) * 100
		stats.AvgReturn = sumReturn / float64(stats.Total)
	}
	if stats.Wins > 0 {
		stats.AvgWin = sumWin / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = sumLoss / float64(stats.Losses)
	}
	return stats
}

// BestSymbols ranks symbols with at least two remembered trades by average
// pnlPercent, best first.
func (s *Store) BestSymbols(agentKey string, limit int) []models.SymbolStats {
	stats := s.symbolStats(agentKey)
	sort.Slice(stats, func(i, j int) bool { return stats[i].AvgPnLPercent > stats[j].AvgPnLPercent })
	return truncate(stats, limit)
}

// WorstSymbols ranks symbols with at least two remembered trades by average
// pnlPercent, worst first.
func (s *Store) WorstSymbols(agentKey string, limit int) []models.SymbolStats {
	stats := s.symbolStats(agentKey)
	sort.Slice(stats, func(i, j int) bool { return stats[i].AvgPnLPercent < stats[j].AvgPnLPercent })
	return truncate(stats, limit)
}

func (s *Store) symbolStats(agentKey string) []models.SymbolStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	sums := make(map[string]float64)
	for _, o := range s.outcomes[agentKey] {
		counts[o.Symbol]++
		sums[o.Symbol] += o.PnLPercent
	}

	var out []models.SymbolStats
	for sym, n := range counts {
		if n < minSymbolTrades {
			continue
		}
		out = append(out, models.SymbolStats{
			Symbol:        sym,
			Trades:        n,
			AvgPnLPercent: sums[sym] / float64(n),
		})
	}
	return out
}

// UpsertReflection writes the agent's reflection for one calendar date,
// overwriting any earlier reflection from the same day.
func (s *Store) UpsertReflection(ctx context.Context, agentKey string, date time.Time, content string) {
	r := &models.Reflection{
		AgentKey:  agentKey,
		Date:      date.Format("2006-01-02"),
		Content:   content,
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	if s.reflections[agentKey] == nil {
		s.reflections[agentKey] = make(map[string]*models.Reflection)
	}
	s.reflections[agentKey][r.Date] = r
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveReflection(ctx, r); err != nil {
			s.log.Warn().Err(err).Str("agent", agentKey).Msg("reflection persistence failed")
		}
	}
}

// Clear deletes every fact kind for the agent. Used exclusively at
// elimination so the respawned slot starts with a blank history.
func (s *Store) Clear(ctx context.Context, agentKey string) {
	s.mu.Lock()
	delete(s.outcomes, agentKey)
	delete(s.observations, agentKey)
	delete(s.beliefs, agentKey)
	delete(s.reflections, agentKey)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearMemory(ctx, agentKey); err != nil {
			s.log.Warn().Err(err).Str("agent", agentKey).Msg("memory clear persistence failed")
		}
	}
}

// Summary builds the composite read used by strategies and reporting.
func (s *Store) Summary(agentKey string) *models.MemorySummary {
	sum := &models.MemorySummary{
		AgentKey:     agentKey,
		WinRate:      s.WinRate(agentKey, ""),
		BestSymbols:  s.BestSymbols(agentKey, 3),
		WorstSymbols: s.WorstSymbols(agentKey, 3),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	outs := s.outcomes[agentKey]
	for i := len(outs) - 1; i >= 0 && len(sum.RecentOutcomes) < 10; i-- {
		sum.RecentOutcomes = append(sum.RecentOutcomes, *outs[i])
	}

	for _, b := range s.beliefs[agentKey] {
		sum.Beliefs = append(sum.Beliefs, *b)
	}
	sort.Slice(sum.Beliefs, func(i, j int) bool { return sum.Beliefs[i].Symbol < sum.Beliefs[j].Symbol })

	for _, r := range s.reflections[agentKey] {
		sum.RecentReflections = append(sum.RecentReflections, *r)
	}
	sort.Slice(sum.RecentReflections, func(i, j int) bool {
		return sum.RecentReflections[i].Date > sum.RecentReflections[j].Date
	})
	if len(sum.RecentReflections) > 5 {
		sum.RecentReflections = sum.RecentReflections[:5]
	}

	return sum
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(stats []models.SymbolStats, limit int) []models.SymbolStats {
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}
