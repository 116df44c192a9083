package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the price simulation clock",
	Long: `Advance every open position on a fixed tick and apply the autopilot
exit rules until interrupted or the tick limit is reached.

Examples:
  papertrade run --interval 1s --ticks 100
  papertrade run -c papertrade.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runInterval time.Duration
	runTicks    uint64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "tick interval (overrides config)")
	runCmd.Flags().Uint64Var(&runTicks, "ticks", 0, "stop after this many ticks (overrides config)")
}

func clockConfig(cmd *cobra.Command) (sim.ClockConfig, error) {
	interval, err := cfg.Simulation.Interval()
	if err != nil {
		return sim.ClockConfig{}, fmt.Errorf("tick interval: %w", err)
	}
	cc := sim.ClockConfig{
		Interval:   interval,
		MaxTicks:   cfg.Simulation.MaxTicks,
		MaxRetries: cfg.Simulation.MaxRetries,
	}
	if cmd.Flags().Changed("interval") {
		cc.Interval = runInterval
	}
	if cmd.Flags().Changed("ticks") {
		cc.MaxTicks = runTicks
	}
	return cc, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	cc, err := clockConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Running simulation: %d open positions\n", a.store.Len())
	fmt.Println()

	clock := sim.NewClock(a.engine, cc, logger)
	clock.OnTick(func(r sim.TickReport) {
		for _, x := range r.Exits {
			fmt.Printf("✓ tick %d: sold %d %s @ $%.2f (%s)\n",
				r.Tick, x.Position.Quantity, x.Position.Ticker, x.Position.CurrentPrice, x.Reason)
		}
	})

	if err := clock.Run(ctx); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Stopped after %d ticks, %d positions open\n", a.engine.Ticks(), a.store.Len())
	return nil
}
