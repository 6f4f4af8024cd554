package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"SuperAlgo/internal/di"
	"SuperAlgo/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "superalgo",
		Short:         "Per-symbol automated trading engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	run := newRunCmd(&configPath)
	root.AddCommand(run, newCheckConfigCmd(&configPath))
	// bare invocation runs the engine
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading scheduler until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			// Wire DI: Initialize all dependencies
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !once {
				return app.Run(ctx)
			}
			out, err := app.RunOnce(ctx)
			if err != nil {
				return err
			}
			symbols := make([]string, 0, len(out))
			for s := range out {
				symbols = append(symbols, s)
			}
			sort.Strings(symbols)
			for _, s := range symbols {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", s, out[s])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "evaluate every symbol once and exit")
	return cmd
}

func newCheckConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration without connecting anywhere",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "env=%s mode=%s broker=%s market_data=%s model=%s\n",
				cfg.Environment, cfg.Mode, cfg.Broker.Type, cfg.MarketData.Type, cfg.Model.Type)
			fmt.Fprintf(w, "symbols=%v interval=%s max_daily_loss=%.2f state=%s\n",
				cfg.Trading.Symbols, cfg.Trading.Interval, cfg.MaxDailyLoss(), cfg.State.Backend)
			return nil
		},
	}
}
