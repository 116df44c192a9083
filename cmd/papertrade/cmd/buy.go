package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/position"
)

var buyCmd = &cobra.Command{
	Use:   "buy <ticker> <quantity> <price>",
	Short: "Open a simulated position",
	Long: `Buy shares of a ticker at the given price.

Autopilot positions are closed by the simulation when their target,
stop-loss or volatility exit fires. Manual positions only close on sell.

Examples:
  papertrade buy AAPL 10 100 --target 110 --stop 90 --mode autopilot
  papertrade buy TSLA 3 200`,
	Args: cobra.ExactArgs(3),
	RunE: runBuy,
}

var (
	buyTarget float64
	buyStop   float64
	buyMode   string
)

func init() {
	rootCmd.AddCommand(buyCmd)

	buyCmd.Flags().Float64Var(&buyTarget, "target", 0, "target price (must be above the purchase price)")
	buyCmd.Flags().Float64Var(&buyStop, "stop", 0, "stop-loss price (must be below the purchase price)")
	buyCmd.Flags().StringVarP(&buyMode, "mode", "m", string(position.Manual), "manual or autopilot")
}

func runBuy(cmd *cobra.Command, args []string) error {
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	price, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}

	o := position.Order{
		Ticker:        args[0],
		Quantity:      qty,
		PurchasePrice: price,
		Mode:          position.Mode(buyMode),
	}
	if cmd.Flags().Changed("target") {
		o.TargetPrice = &buyTarget
	}
	if cmd.Flags().Changed("stop") {
		o.StopLossPrice = &buyStop
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.engine.Buy(ctx, o)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Bought %d %s @ $%.2f (%s)\n", p.Quantity, p.Ticker, p.PurchasePrice, p.Mode)
	fmt.Printf("  ID: %s\n", p.ID)
	if p.TargetPrice != nil {
		fmt.Printf("  Target: $%.2f\n", *p.TargetPrice)
	}
	if p.StopLossPrice != nil {
		fmt.Printf("  Stop-loss: $%.2f\n", *p.StopLossPrice)
	}
	if p.Mode == position.Autopilot {
		fmt.Printf("  Volatility: %.2f\n", p.VolatilityFactor)
	}
	return nil
}
