// Package store provides data persistence interfaces and implementations.
//
// The contract is deliberately coarse: every logical record is rewritten in
// full on mutation and reads are last-writer-wins. The engines hold the
// authoritative in-memory state; the store only has to survive restarts.
package store

import (
	"context"

	"paper-arena/internal/models"
)

// DataStore defines the persistence boundary for the arena.
type DataStore interface {
	// Portfolios & trades
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	DeletePortfolio(ctx context.Context, agentKey string) error
	LoadPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	SaveTrade(ctx context.Context, t *models.Trade) error
	LoadTrades(ctx context.Context) ([]*models.Trade, error)

	// Memory facts
	SaveOutcome(ctx context.Context, o *models.TradeOutcome) error
	SaveObservation(ctx context.Context, o *models.Observation) error
	SaveBelief(ctx context.Context, b *models.Belief) error
	SaveReflection(ctx context.Context, r *models.Reflection) error
	ClearMemory(ctx context.Context, agentKey string) error
	LoadOutcomes(ctx context.Context) ([]*models.TradeOutcome, error)
	LoadObservations(ctx context.Context) ([]*models.Observation, error)
	LoadBeliefs(ctx context.Context) ([]*models.Belief, error)
	LoadReflections(ctx context.Context) ([]*models.Reflection, error)

	// Roster
	SaveAgent(ctx context.Context, a *models.Agent) error
	LoadAgents(ctx context.Context) ([]*models.Agent, error)

	// Competition & graveyard
	SaveCompetition(ctx context.Context, c *models.Competition) error
	LoadCompetition(ctx context.Context) (*models.Competition, error)
	SaveGraveyardEntry(ctx context.Context, e *models.GraveyardEntry) error
	LoadGraveyard(ctx context.Context) ([]*models.GraveyardEntry, error)

	// Lifecycle
	Close() error
}
