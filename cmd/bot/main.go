package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "bot",
		Short:        "Concentrated liquidity chat bot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chat bot",
		RunE:  runBot,
	}

	runCmd.Flags().String("rpc", "", "BSC RPC URL")
	runCmd.Flags().String("position-manager", "", "NonfungiblePositionManager address")
	runCmd.Flags().String("store-driver", "sqlite", "profile store driver (sqlite, postgres)")
	runCmd.Flags().String("sqlite-path", "./data/bot.db", "sqlite database path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().String("pools-file", "", "featured pools YAML file")
	runCmd.Flags().Duration("pool-list-timeout", 15*time.Second, "timeout for the featured pools view")
	runCmd.Flags().String("slippage", "0.05", "slippage cap on the quoted amount")
	runCmd.Flags().Duration("tx-deadline", 10*time.Minute, "transaction deadline")
	runCmd.Flags().Duration("receipt-timeout", 2*time.Minute, "how long to wait for a receipt")
	runCmd.Flags().String("metrics-addr", ":9090", "metrics and health listen address")
	runCmd.Flags().String("journal", "./data/journal.jsonl", "lifecycle journal JSONL path")
	runCmd.Flags().Float64("rate-limit-rps", 2, "per-user updates per second")
	runCmd.Flags().Int("rate-limit-burst", 5, "per-user burst")

	root.AddCommand(runCmd)
	root.AddCommand(walletCommand())
	root.AddCommand(positionsCommand())

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the profile store schema",
		RunE:  runSchema,
	}
	addStoreFlags(schemaCmd)
	root.AddCommand(schemaCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store-driver", "sqlite", "profile store driver (sqlite, postgres)")
	cmd.Flags().String("sqlite-path", "./data/bot.db", "sqlite database path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
