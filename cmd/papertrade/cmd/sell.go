package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sellCmd = &cobra.Command{
	Use:   "sell <ticker> <quantity>",
	Short: "Sell shares of an open position",
	Long: `Sell shares of the oldest open position in a ticker at its current
simulated price. Selling more than is held sells everything.

Example:
  papertrade sell MSFT 3`,
	Args: cobra.ExactArgs(2),
	RunE: runSell,
}

func init() {
	rootCmd.AddCommand(sellCmd)
}

func runSell(cmd *cobra.Command, args []string) error {
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Sell(ctx, args[0], qty)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Sold %d %s @ $%.2f\n", res.Sold, res.Position.Ticker, res.Price)
	if res.Full() {
		fmt.Println("  Position closed")
	} else {
		fmt.Printf("  Remaining: %d\n", res.Remaining)
	}
	return nil
}
