package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tectoniq/seismograph/internal/backtest"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <symbol>",
		Short: "Backtest the exposure strategy against buy and hold",
		Long: `Replays the symbol's full history through the classifier and the
exposure table, accounting for fees, cash interest, and financing, and
compares the result against buy and hold.`,
		Args: cobra.ExactArgs(1),
		RunE: runSimulate,
	}
	cmd.Flags().String("mode", "defensive", "Strategy mode (defensive|aggressive)")
	cmd.Flags().Bool("json", false, "Print the full result as JSON")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	rawMode, _ := cmd.Flags().GetString("mode")
	mode, err := backtest.ParseStrategyMode(rawMode)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	rt, err := buildRuntime(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	symbol := strings.ToUpper(args[0])
	id, result, err := rt.service.Simulate(ctx, symbol, mode)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s  %s  %s -> %s  (%d days, run %s)\n",
		symbol, mode,
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"),
		result.TotalDays, id)
	fmt.Println()
	fmt.Printf("                 %12s  %12s\n", "strategy", "buy & hold")
	fmt.Printf("  final value    %12.2f  %12.2f\n", result.Strategy.FinalValue, result.BuyHold.FinalValue)
	fmt.Printf("  total return   %11.2f%%  %11.2f%%\n", result.Strategy.TotalReturnPct, result.BuyHold.TotalReturnPct)
	fmt.Printf("  max drawdown   %11.2f%%  %11.2f%%\n", result.Strategy.MaxDrawdownPct, result.BuyHold.MaxDrawdownPct)
	fmt.Printf("  ann. vol       %11.2f%%  %11.2f%%\n", result.Strategy.AnnualizedVolPct, result.BuyHold.AnnualizedVolPct)
	fmt.Printf("  sharpe         %12.2f  %12.2f\n", result.Strategy.SharpeRatio, result.BuyHold.SharpeRatio)
	fmt.Println()
	fmt.Printf("  outperformance       %+.2f%%\n", result.OutperformancePct)
	fmt.Printf("  drawdown protection  %+.2f%%\n", result.DrawdownProtectionPct)
	fmt.Printf("  trades %d, fees %.2f, interest %.2f, financing %.2f\n",
		result.TradeCount, result.FeesPaid, result.InterestEarned, result.FinancingCost)
	fmt.Printf("  exposure: %d full, %d partial, %d cash (avg %.1f%%)\n",
		result.DaysFullInvested, result.DaysPartial, result.DaysCash, result.AvgExposurePct)
	if result.WarmupDays > 0 {
		fmt.Printf("  warm-up: first %d days fully invested and excluded from drawdown stats\n",
			result.WarmupDays)
	}
	return nil
}
