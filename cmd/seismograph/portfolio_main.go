package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newPortfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio <SYMBOL=WEIGHT> [SYMBOL=WEIGHT...]",
		Short: "Aggregate holdings into one portfolio risk state",
		Long: `Classifies every holding and combines them into a weighted portfolio
criticality, regime, and risk-attribution table.

Weights must sum to 1.0:

  seismograph portfolio SPY=0.6 QQQ=0.3 GLD=0.1`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPortfolio,
	}
	cmd.Flags().Bool("json", false, "Print the portfolio state as JSON")
	return cmd
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	symbols := make([]string, len(args))
	weights := make([]float64, len(args))
	for i, arg := range args {
		symbol, raw, found := strings.Cut(arg, "=")
		if !found {
			return fmt.Errorf("holding %q must be SYMBOL=WEIGHT", arg)
		}
		weight, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("holding %q has bad weight: %w", arg, err)
		}
		symbols[i] = strings.ToUpper(symbol)
		weights[i] = weight
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	rt, err := buildRuntime(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	state, err := rt.service.Portfolio(ctx, symbols, weights)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	fmt.Printf("portfolio  %s\n", state.Date.Format("2006-01-02"))
	fmt.Printf("  criticality  %.1f/100\n", state.PortfolioCriticality)
	fmt.Printf("  regime       %s (raw %s)\n", state.PortfolioRegime, state.RawRegime)
	fmt.Println("  top risk contributors:")
	for _, c := range state.TopRiskContributors {
		fmt.Printf("    %-8s weight %.2f  crit %3d  share %5.1f%%\n",
			c.Symbol, c.Weight, c.Criticality, c.ContributionPct)
	}
	return nil
}
