package arena

import (
	"context"
	"fmt"
	"time"

	"paper-arena/internal/errors"
	"paper-arena/internal/logging"
	"paper-arena/internal/models"
)

// EliminationResult summarizes one elimination cycle.
type EliminationResult struct {
	Round      int                     `json:"round"` // the round the cycle closed
	Eliminated []models.GraveyardEntry `json:"eliminated"`
	Survivors  []string                `json:"survivors"`
	NextRound  int                     `json:"next_round"`
	Skipped    bool                    `json:"skipped"` // too few active agents
}

// RunElimination closes the current round: the bottom-ranked agents are
// archived to the graveyard with a memory summary, their portfolios and
// memories wiped, and the same keys respawned fresh at generation+1.
// Survivors are credited with kills. The cycle is skipped entirely when
// fewer active agents remain than the configured minimum.
func (c *Controller) RunElimination(ctx context.Context) (*EliminationResult, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, errors.ErrRoundInProgress
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	board := c.leaderboardLocked()
	result := &EliminationResult{Round: c.competition.Round}

	if len(board) < c.cfg.MinActiveAgents {
		c.log.Warn().Int("active", len(board)).Int("min", c.cfg.MinActiveAgents).Msg("elimination skipped, roster too small")
		result.Skipped = true
		result.NextRound = c.competition.Round
		return result, nil
	}

	cut := len(board) - c.cfg.EliminationCount
	doomed := board[cut:]
	survivors := board[:cut]

	now := time.Now()
	for _, e := range doomed {
		agent := c.agents[e.AgentKey]

		entry := &models.GraveyardEntry{
			Agent:              *agent,
			FinalValue:         e.Value,
			FinalReturnPercent: e.ReturnPercent,
			EliminatedAt:       now,
			EliminatedRound:    c.competition.Round,
			MemorySummary:      c.memory.Summary(agent.Key),
		}
		entry.Agent.Status = models.AgentEliminated
		c.graveyard = append(c.graveyard, entry)
		if c.store != nil {
			if err := c.store.SaveGraveyardEntry(ctx, entry); err != nil {
				c.log.Warn().Err(err).Str("agent", agent.Key).Msg("graveyard persistence failed")
			}
		}
		logging.LogElimination(c.log, agent.Key, agent.Generation, e.Value)

		// The slot respawns immediately: same key and personality, fresh
		// portfolio, blank memory, no inherited kills.
		c.memory.Clear(ctx, agent.Key)
		c.ledger.Delete(ctx, agent.Key)
		c.ledger.Initialize(ctx, agent.Key, c.cfg.StartingCash)
		agent.Generation++
		agent.Kills = 0
		agent.Status = models.AgentActive
		agent.CreatedAt = now
		c.saveAgent(ctx, agent)

		c.competition.EliminatedHistory = append(c.competition.EliminatedHistory,
			fmt.Sprintf("%s@%d", entry.Agent.Key, entry.Agent.Generation))
		result.Eliminated = append(result.Eliminated, *entry)
	}

	for _, e := range survivors {
		agent := c.agents[e.AgentKey]
		agent.Kills += len(doomed)
		c.saveAgent(ctx, agent)
		result.Survivors = append(result.Survivors, agent.Key)
	}

	c.competition.Round++
	c.competition.StartDate = now
	c.competition.EndDate = now.Add(roundLength)
	c.saveCompetition(ctx)
	result.NextRound = c.competition.Round

	c.log.Info().
		Int("round", result.Round).
		Int("eliminated", len(result.Eliminated)).
		Int("next_round", result.NextRound).
		Msg("elimination cycle complete")
	return result, nil
}
