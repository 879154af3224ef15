// Package cli provides the command-line interface for the arena.
package cli

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paper-arena/internal/arena"
	"paper-arena/internal/config"
	"paper-arena/internal/errors"
	"paper-arena/internal/ledger"
	"paper-arena/internal/marketdata"
	"paper-arena/internal/memory"
	"paper-arena/internal/store"
	"paper-arena/internal/strategy"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies. The arena stack is assembled
// lazily so read-only commands against a missing database still fail with
// a useful message instead of a stack trace.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.DataStore
	Controller *arena.Controller
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "Paper-trading arena - competing strategy agents",
		Long: `Paper-trading arena runs a roster of simulated trading agents against
live market data. Each agent follows a fixed personality, remembers its own
trade outcomes, and fights to stay off the bottom of the leaderboard: the
worst performers are eliminated each round and respawn with a fresh slate.

Use 'arena serve' to run the scheduler and HTTP API, or drive rounds
manually with 'arena round' and 'arena eliminate'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/paper-arena)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newRoundCmd(app))
	rootCmd.AddCommand(newEliminateCmd(app))
	rootCmd.AddCommand(newLeaderboardCmd(app))
	rootCmd.AddCommand(newAgentsCmd(app))
	rootCmd.AddCommand(newGraveyardCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Paper Arena v%s\n", Version)
			}
		},
	}
}

// buildArena assembles store, engines, market client, and controller, and
// bootstraps the roster. Callers own shutdown via app.Close.
func (app *App) buildArena(ctx context.Context, configDir string) error {
	if app.Controller != nil {
		return nil
	}
	cfg := app.Config

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	app.Store = st

	led := ledger.New(
		ledger.WithStore(st),
		ledger.WithHistoryLimit(cfg.Arena.HistoryLimit),
		ledger.WithLogger(app.Logger.With().Str("component", "ledger").Logger()),
	)
	mem := memory.New(
		memory.WithStore(st),
		memory.WithLogger(app.Logger.With().Str("component", "memory").Logger()),
	)

	market := marketdata.NewClient(marketdata.ClientConfig{
		BaseURL:       cfg.MarketData.BaseURL,
		Universe:      cfg.Arena.Universe,
		CacheTTL:      time.Duration(cfg.MarketData.CacheTTLSecs) * time.Second,
		RatePerSecond: cfg.MarketData.RatePerSecond,
		MaxRetries:    cfg.MarketData.MaxRetries,
		Timeout:       time.Duration(cfg.MarketData.TimeoutSecs) * time.Second,
	}, app.Logger.With().Str("component", "marketdata").Logger())

	var rng strategy.Rand
	if cfg.Arena.RandomSeed != 0 {
		rng = rand.New(rand.NewSource(cfg.Arena.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	controller := arena.New(arena.Config{
		StartingCash:     cfg.Arena.StartingCash,
		EliminationCount: cfg.Arena.EliminationCount,
		MinActiveAgents:  cfg.Arena.MinActiveAgents,
		Universe:         cfg.Arena.Universe,
	}, led, mem, market,
		arena.WithStore(st),
		arena.WithLogger(app.Logger.With().Str("component", "arena").Logger()),
		arena.WithRand(rng),
	)

	seeds, err := config.LoadAgents(configDir)
	if err != nil {
		return errors.Wrap(err, "loading roster")
	}
	if err := controller.Bootstrap(ctx, seeds); err != nil {
		return err
	}
	app.Controller = controller
	return nil
}

// Close releases held resources.
func (app *App) Close() {
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("store close failed")
		}
	}
}

func configDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config")
	return dir
}
