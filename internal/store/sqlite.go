package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "paper-arena/internal/errors"
	"paper-arena/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperrors.ErrDatabaseError, dbPath, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing schema: %v", apperrors.ErrDatabaseError, err)
	}
	return s, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Roster slots
	CREATE TABLE IF NOT EXISTS agents (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		strategy TEXT NOT NULL,
		risk_tolerance REAL NOT NULL,
		trade_frequency REAL NOT NULL,
		preferred_symbols TEXT,
		avoid_symbols TEXT,
		generation INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'active',
		kills INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	-- Portfolios, positions and history as JSON (full-state rewrite)
	CREATE TABLE IF NOT EXISTS portfolios (
		agent_key TEXT PRIMARY KEY,
		cash TEXT NOT NULL,
		starting_value TEXT NOT NULL,
		positions TEXT NOT NULL,
		history TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Global trade feed, append-only
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		agent_key TEXT NOT NULL,
		side TEXT NOT NULL,
		symbol TEXT NOT NULL,
		shares TEXT NOT NULL,
		price TEXT NOT NULL,
		total TEXT NOT NULL,
		pnl TEXT,
		reason TEXT,
		timestamp DATETIME NOT NULL
	);

	-- Memory facts
	CREATE TABLE IF NOT EXISTS memory_outcomes (
		id TEXT PRIMARY KEY,
		agent_key TEXT NOT NULL,
		symbol TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		context TEXT,
		lesson TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memory_observations (
		id TEXT PRIMARY KEY,
		agent_key TEXT NOT NULL,
		symbol TEXT NOT NULL,
		note TEXT NOT NULL,
		confidence REAL NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memory_beliefs (
		agent_key TEXT NOT NULL,
		type TEXT NOT NULL,
		symbol TEXT NOT NULL,
		value REAL NOT NULL,
		note TEXT,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (agent_key, type, symbol)
	);

	CREATE TABLE IF NOT EXISTS memory_reflections (
		agent_key TEXT NOT NULL,
		date TEXT NOT NULL,
		content TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (agent_key, date)
	);

	-- Single global competition record
	CREATE TABLE IF NOT EXISTS competition (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		round INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		eliminated_history TEXT
	);

	-- Permanent record of eliminations, never pruned
	CREATE TABLE IF NOT EXISTS graveyard (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_key TEXT NOT NULL,
		generation INTEGER NOT NULL,
		agent_json TEXT NOT NULL,
		final_value REAL NOT NULL,
		final_return_percent REAL NOT NULL,
		eliminated_at DATETIME NOT NULL,
		eliminated_round INTEGER NOT NULL,
		memory_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_trades_agent ON trades(agent_key);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
	CREATE INDEX IF NOT EXISTS idx_outcomes_agent ON memory_outcomes(agent_key);
	CREATE INDEX IF NOT EXISTS idx_observations_agent ON memory_observations(agent_key);
	CREATE INDEX IF NOT EXISTS idx_graveyard_agent ON graveyard(agent_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Portfolio & Trade Methods
// ============================================================================

// SavePortfolio rewrites the agent's full portfolio row.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	positions, err := json.Marshal(p.Positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO portfolios (agent_key, cash, starting_value, positions, history, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.AgentKey, p.Cash.String(), p.StartingValue.String(), string(positions), string(history), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

// DeletePortfolio removes the agent's portfolio row.
func (s *SQLiteStore) DeletePortfolio(ctx context.Context, agentKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE agent_key = ?`, agentKey)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return nil
}

// LoadPortfolios loads every persisted portfolio.
func (s *SQLiteStore) LoadPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_key, cash, starting_value, positions, history, updated_at FROM portfolios
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var out []*models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		var cash, starting, positions, history string
		if err := rows.Scan(&p.AgentKey, &cash, &starting, &positions, &history, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		if p.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("failed to parse cash: %w", err)
		}
		if p.StartingValue, err = decimal.NewFromString(starting); err != nil {
			return nil, fmt.Errorf("failed to parse starting value: %w", err)
		}
		if err := json.Unmarshal([]byte(positions), &p.Positions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
		}
		if err := json.Unmarshal([]byte(history), &p.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SaveTrade appends one trade record.
func (s *SQLiteStore) SaveTrade(ctx context.Context, t *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades (id, agent_key, side, symbol, shares, price, total, pnl, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.AgentKey, string(t.Side), t.Symbol, t.Shares.String(), t.Price.String(), t.Total.String(), t.PnL.String(), t.Reason, t.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// LoadTrades loads the full trade feed, oldest first.
func (s *SQLiteStore) LoadTrades(ctx context.Context) ([]*models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_key, side, symbol, shares, price, total, pnl, reason, timestamp
		FROM trades ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		var t models.Trade
		var side, shares, price, total, pnl string
		var reason sql.NullString
		if err := rows.Scan(&t.ID, &t.AgentKey, &side, &t.Symbol, &shares, &price, &total, &pnl, &reason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = models.TradeSide(side)
		t.Reason = reason.String
		if t.Shares, err = decimal.NewFromString(shares); err != nil {
			return nil, fmt.Errorf("failed to parse shares: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		if t.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("failed to parse total: %w", err)
		}
		if pnl != "" {
			if t.PnL, err = decimal.NewFromString(pnl); err != nil {
				return nil, fmt.Errorf("failed to parse pnl: %w", err)
			}
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ============================================================================
// Memory Methods
// ============================================================================

// SaveOutcome appends one trade-outcome record.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, o *models.TradeOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory_outcomes (id, agent_key, symbol, entry_price, exit_price, pnl, pnl_percent, context, lesson, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.AgentKey, o.Symbol, o.EntryPrice, o.ExitPrice, o.PnL, o.PnLPercent, o.Context, o.Lesson, o.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// SaveObservation appends one observation record.
func (s *SQLiteStore) SaveObservation(ctx context.Context, o *models.Observation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory_observations (id, agent_key, symbol, note, confidence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.ID, o.AgentKey, o.Symbol, o.Note, o.Confidence, o.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save observation: %w", err)
	}
	return nil
}

// SaveBelief upserts the unique (agent, type, symbol) belief row.
func (s *SQLiteStore) SaveBelief(ctx context.Context, b *models.Belief) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory_beliefs (agent_key, type, symbol, value, note, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.AgentKey, string(b.Type), b.Symbol, b.Value, b.Note, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save belief: %w", err)
	}
	return nil
}

// SaveReflection upserts the agent's reflection for one date.
func (s *SQLiteStore) SaveReflection(ctx context.Context, r *models.Reflection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory_reflections (agent_key, date, content, updated_at)
		VALUES (?, ?, ?, ?)
	`, r.AgentKey, r.Date, r.Content, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save reflection: %w", err)
	}
	return nil
}

// ClearMemory deletes every memory fact for one agent.
func (s *SQLiteStore) ClearMemory(ctx context.Context, agentKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"memory_outcomes", "memory_observations", "memory_beliefs", "memory_reflections"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE agent_key = ?`, agentKey); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memory clear: %w", err)
	}
	return nil
}

// LoadOutcomes loads every persisted outcome, oldest first.
func (s *SQLiteStore) LoadOutcomes(ctx context.Context) ([]*models.TradeOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_key, symbol, entry_price, exit_price, pnl, pnl_percent, context, lesson, timestamp
		FROM memory_outcomes ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []*models.TradeOutcome
	for rows.Next() {
		var o models.TradeOutcome
		var context, lesson sql.NullString
		if err := rows.Scan(&o.ID, &o.AgentKey, &o.Symbol, &o.EntryPrice, &o.ExitPrice, &o.PnL, &o.PnLPercent, &context, &lesson, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Context = context.String
		o.Lesson = lesson.String
		out = append(out, &o)
	}
	return out, rows.Err()
}

// LoadObservations loads every persisted observation, oldest first.
func (s *SQLiteStore) LoadObservations(ctx context.Context) ([]*models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_key, symbol, note, confidence, timestamp
		FROM memory_observations ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.AgentKey, &o.Symbol, &o.Note, &o.Confidence, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// LoadBeliefs loads every persisted belief.
func (s *SQLiteStore) LoadBeliefs(ctx context.Context) ([]*models.Belief, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_key, type, symbol, value, note, updated_at FROM memory_beliefs
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query beliefs: %w", err)
	}
	defer rows.Close()

	var out []*models.Belief
	for rows.Next() {
		var b models.Belief
		var typ string
		var note sql.NullString
		if err := rows.Scan(&b.AgentKey, &typ, &b.Symbol, &b.Value, &note, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan belief: %w", err)
		}
		b.Type = models.BeliefType(typ)
		b.Note = note.String
		out = append(out, &b)
	}
	return out, rows.Err()
}

// LoadReflections loads every persisted reflection.
func (s *SQLiteStore) LoadReflections(ctx context.Context) ([]*models.Reflection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_key, date, content, updated_at FROM memory_reflections
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reflections: %w", err)
	}
	defer rows.Close()

	var out []*models.Reflection
	for rows.Next() {
		var r models.Reflection
		if err := rows.Scan(&r.AgentKey, &r.Date, &r.Content, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reflection: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ============================================================================
// Roster, Competition & Graveyard Methods
// ============================================================================

// SaveAgent rewrites one roster slot.
func (s *SQLiteStore) SaveAgent(ctx context.Context, a *models.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO agents (key, name, strategy, risk_tolerance, trade_frequency, preferred_symbols, avoid_symbols, generation, status, kills, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Key, a.Name, string(a.Strategy), a.RiskTolerance, a.TradeFrequency,
		strings.Join(a.PreferredSymbols, ","), strings.Join(a.AvoidSymbols, ","),
		a.Generation, string(a.Status), a.Kills, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

// LoadAgents loads the full roster.
func (s *SQLiteStore) LoadAgents(ctx context.Context) ([]*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, strategy, risk_tolerance, trade_frequency, preferred_symbols, avoid_symbols, generation, status, kills, created_at
		FROM agents
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		var a models.Agent
		var strat, status string
		var preferred, avoid sql.NullString
		if err := rows.Scan(&a.Key, &a.Name, &strat, &a.RiskTolerance, &a.TradeFrequency, &preferred, &avoid, &a.Generation, &status, &a.Kills, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		a.Strategy = models.StrategyKind(strat)
		a.Status = models.AgentStatus(status)
		a.PreferredSymbols = splitList(preferred.String)
		a.AvoidSymbols = splitList(avoid.String)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// SaveCompetition rewrites the single global competition record.
func (s *SQLiteStore) SaveCompetition(ctx context.Context, c *models.Competition) error {
	history, err := json.Marshal(c.EliminatedHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal eliminated history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO competition (id, round, start_date, end_date, eliminated_history)
		VALUES (1, ?, ?, ?, ?)
	`, c.Round, c.StartDate, c.EndDate, string(history))
	if err != nil {
		return fmt.Errorf("failed to save competition: %w", err)
	}
	return nil
}

// LoadCompetition loads the competition record, or nil when none exists.
func (s *SQLiteStore) LoadCompetition(ctx context.Context) (*models.Competition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT round, start_date, end_date, eliminated_history FROM competition WHERE id = 1
	`)

	var c models.Competition
	var history sql.NullString
	if err := row.Scan(&c.Round, &c.StartDate, &c.EndDate, &history); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan competition: %w", err)
	}
	if history.String != "" {
		if err := json.Unmarshal([]byte(history.String), &c.EliminatedHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal eliminated history: %w", err)
		}
	}
	return &c, nil
}

// SaveGraveyardEntry appends one elimination record. Never deleted.
func (s *SQLiteStore) SaveGraveyardEntry(ctx context.Context, e *models.GraveyardEntry) error {
	agentJSON, err := json.Marshal(e.Agent)
	if err != nil {
		return fmt.Errorf("failed to marshal agent snapshot: %w", err)
	}
	var summaryJSON []byte
	if e.MemorySummary != nil {
		if summaryJSON, err = json.Marshal(e.MemorySummary); err != nil {
			return fmt.Errorf("failed to marshal memory summary: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graveyard (agent_key, generation, agent_json, final_value, final_return_percent, eliminated_at, eliminated_round, memory_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Agent.Key, e.Agent.Generation, string(agentJSON), e.FinalValue, e.FinalReturnPercent, e.EliminatedAt, e.EliminatedRound, string(summaryJSON))
	if err != nil {
		return fmt.Errorf("failed to save graveyard entry: %w", err)
	}
	return nil
}

// LoadGraveyard loads the full graveyard, oldest first.
func (s *SQLiteStore) LoadGraveyard(ctx context.Context) ([]*models.GraveyardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_json, final_value, final_return_percent, eliminated_at, eliminated_round, memory_summary
		FROM graveyard ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query graveyard: %w", err)
	}
	defer rows.Close()

	var out []*models.GraveyardEntry
	for rows.Next() {
		var e models.GraveyardEntry
		var agentJSON string
		var summary sql.NullString
		if err := rows.Scan(&agentJSON, &e.FinalValue, &e.FinalReturnPercent, &e.EliminatedAt, &e.EliminatedRound, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan graveyard entry: %w", err)
		}
		if err := json.Unmarshal([]byte(agentJSON), &e.Agent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent snapshot: %w", err)
		}
		if summary.String != "" {
			if err := json.Unmarshal([]byte(summary.String), &e.MemorySummary); err != nil {
				return nil, fmt.Errorf("failed to unmarshal memory summary: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Ensure SQLiteStore implements DataStore
var _ DataStore = (*SQLiteStore)(nil)
