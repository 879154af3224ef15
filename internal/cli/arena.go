package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newRoundCmd runs one trading round immediately.
func newRoundCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "round",
		Short: "Run one trading round now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Controller.RunTradingRound(ctx)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(report)
			}

			output.Header(fmt.Sprintf("Round %d", report.Round))
			for _, t := range report.Trades {
				output.Printf("  %-10s %-4s %-6s %s @ %s\n",
					t.AgentKey, t.Side, t.Symbol, t.Shares.StringFixed(4), t.Price.StringFixed(2))
			}
			if len(report.Trades) == 0 {
				output.Dim("no trades this round")
			}
			if len(report.Skipped) > 0 {
				output.Dim("sat out: %s", strings.Join(report.Skipped, ", "))
			}
			for _, e := range report.Errors {
				output.Error("error: %s", e)
			}
			output.Success("round complete in %s", report.Duration.Round(0))
			return nil
		},
	}
}

// newEliminateCmd runs the elimination cycle immediately.
func newEliminateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "eliminate",
		Short: "Run the elimination cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Controller.RunElimination(ctx)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(result)
			}

			if result.Skipped {
				output.Warn("elimination skipped: not enough active agents")
				return nil
			}
			for _, e := range result.Eliminated {
				output.Error("eliminated %s (gen %d) at %.2f (%.1f%%)",
					e.Agent.Key, e.Agent.Generation, e.FinalValue, e.FinalReturnPercent)
			}
			output.Success("round %d closed, round %d begins", result.Round, result.NextRound)
			return nil
		},
	}
}

// newLeaderboardCmd prints the current standings.
func newLeaderboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the current standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			board := app.Controller.Leaderboard()
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(board)
			}

			comp := app.Controller.CompetitionStatus()
			output.Header(fmt.Sprintf("Leaderboard - Round %d", comp.Round))
			for _, e := range board {
				danger := "  "
				if e.InDanger {
					danger = " !"
				}
				output.Printf("%2d.%s %-10s %-9s gen %d  %10.2f  %s%%  kills %d\n",
					e.Rank, danger, e.Name, e.Strategy, e.Generation, e.Value,
					output.SignedMoney(e.ReturnPercent), e.Kills)
			}
			return nil
		},
	}
}

// newAgentsCmd prints the roster, or one agent's detail with a key argument.
func newAgentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "agents [key]",
		Short: "Show the roster or one agent's detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			output := NewOutput(cmd)

			if len(args) == 1 {
				return showAgentDetail(app, output, args[0])
			}

			agents := app.Controller.AllAgents()
			if output.IsJSON() {
				return output.JSON(agents)
			}
			output.Header("Agents")
			for _, a := range agents {
				output.Printf("%-10s %-9s gen %d  freq %.2f  risk %.2f  %s\n",
					a.Key, a.Strategy, a.Generation, a.TradeFrequency, a.RiskTolerance, a.Status)
			}
			return nil
		},
	}
}

func showAgentDetail(app *App, output *Output, key string) error {
	agent, err := app.Controller.Agent(key)
	if err != nil {
		return err
	}
	portfolio, err := app.Controller.Ledger().Portfolio(key)
	if err != nil {
		return err
	}
	summary := app.Controller.Memory().Summary(key)

	if output.IsJSON() {
		return output.JSON(map[string]any{
			"agent":     agent,
			"portfolio": portfolio,
			"memory":    summary,
		})
	}

	output.Header(fmt.Sprintf("%s (%s, gen %d)", agent.Name, agent.Strategy, agent.Generation))
	output.Printf("cash: %s\n", portfolio.Cash.StringFixed(2))
	for sym, pos := range portfolio.Positions {
		output.Printf("  %-6s %s shares @ %s avg\n", sym, pos.Shares.StringFixed(4), pos.AvgCost.StringFixed(2))
	}
	wr := summary.WinRate
	output.Printf("closed trades: %d, win rate %.0f%%, avg return %s%%\n",
		wr.Total, wr.WinRate, output.SignedMoney(wr.AvgReturn))
	for _, r := range summary.RecentReflections {
		output.Dim("%s: %s", r.Date, r.Content)
	}
	return nil
}

// newGraveyardCmd lists eliminated generations.
func newGraveyardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "graveyard",
		Short: "Show eliminated agent generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			graves := app.Controller.Graveyard()
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(graves)
			}

			output.Header("Graveyard")
			if len(graves) == 0 {
				output.Dim("nobody has died yet")
				return nil
			}
			for _, g := range graves {
				output.Printf("round %2d  %-10s gen %d  %10.2f (%s%%)  %s\n",
					g.EliminatedRound, g.Agent.Key, g.Agent.Generation,
					g.FinalValue, output.SignedMoney(g.FinalReturnPercent),
					g.EliminatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

// newSummaryCmd writes today's reflections for every active agent.
func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Write today's reflection for every active agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			reflections := app.Controller.GenerateDailySummary(ctx)
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(reflections)
			}
			for _, r := range reflections {
				output.Printf("%-10s %s\n", r.AgentKey, r.Content)
			}
			return nil
		},
	}
}
