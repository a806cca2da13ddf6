package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <symbol>",
		Short: "Classify the latest trading day for a symbol",
		Long: `Fetches the symbol's daily history, classifies it, and prints the
latest market state: criticality, regime, trend, and reason codes.`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
	cmd.Flags().Bool("json", false, "Print the raw state as JSON")
	cmd.Flags().Int("history", 0, "Also print the last N classified days")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	rt, err := buildRuntime(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	symbol := strings.ToUpper(args[0])
	views, err := rt.service.History(ctx, symbol)
	if err != nil {
		return err
	}
	latest := views[len(views)-1]

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(latest)
	}

	fmt.Printf("%s  %s\n", symbol, latest.Date.Format("2006-01-02"))
	fmt.Printf("  close        %.2f\n", latest.Close)
	fmt.Printf("  criticality  %d/100\n", latest.Criticality)
	fmt.Printf("  regime       %s (raw %s)\n", latest.AcceptedRegime, latest.Regime)
	fmt.Printf("  trend        %s (%.1f%% vs 200d avg)\n", latest.TrendState, latest.PriceDeviationPct)
	fmt.Printf("  volatility   p%.0f\n", latest.VolatilityPercentile)
	if len(latest.ReasonCodes) > 0 {
		fmt.Printf("  reasons      %s\n", strings.Join(latest.ReasonCodes, ", "))
	}
	if latest.Warmup {
		fmt.Println("  note         insufficient history, neutral warm-up state")
	}

	if n, _ := cmd.Flags().GetInt("history"); n > 0 {
		if n > len(views) {
			n = len(views)
		}
		fmt.Println()
		for _, view := range views[len(views)-n:] {
			fmt.Printf("  %s  crit %3d  %s\n",
				view.Date.Format("2006-01-02"), view.Criticality, view.AcceptedRegime)
		}
	}
	return nil
}
