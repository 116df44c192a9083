package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/portfolio"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open positions and portfolio totals",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ps := a.store.List()
	if len(ps) == 0 {
		fmt.Println("No open positions")
		return nil
	}

	s := portfolio.Summarize(ps, time.Now())

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTICKER\tQTY\tBUY\tNOW\tVALUE\tP/L\tMODE")
	for i, h := range s.Holdings {
		p := ps[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%s\t%s (%s%%)\t%s\n",
			h.ID, h.Ticker, h.Quantity, p.PurchasePrice, p.CurrentPrice,
			h.Value.StringFixed(2), h.PL.StringFixed(2), h.PLPct.StringFixed(2), h.Mode)
	}
	tw.Flush()

	fmt.Println()
	fmt.Printf("Invested: $%s\n", s.Invested.StringFixed(2))
	fmt.Printf("Value:    $%s\n", s.Value.StringFixed(2))
	fmt.Printf("P/L:      $%s (%s%%)\n", s.PL.StringFixed(2), s.PLPct.StringFixed(2))
	return nil
}
