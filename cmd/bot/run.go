package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/api"
	"liquidityPilot/internal/bot"
	"liquidityPilot/internal/catalog"
	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/lifecycle"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/positions"
	"liquidityPilot/internal/ratelimit"
	"liquidityPilot/internal/session"
	"liquidityPilot/internal/storage"
	"liquidityPilot/internal/telegram"
	"liquidityPilot/internal/vault"
	"liquidityPilot/internal/workflow"
)

const (
	pollTimeoutSeconds = 60
	limiterIdleTTL     = 10 * time.Minute
)

func runBot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	profiles, err := storage.OpenProfiles(ctx, cfg.StoreDriver, cfg.SQLitePath, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer profiles.Close()

	pools, err := catalog.Load(cfg.PoolsFile)
	if err != nil {
		return err
	}

	amm, err := dex.NewService(dex.Config{
		PositionManager: cfg.PositionManager,
		TxDeadline:      cfg.TxDeadline,
		ReceiptTimeout:  cfg.ReceiptTimeout,
	}, chainClient, logger)
	if err != nil {
		return err
	}

	keys, err := vault.New(profiles, cfg.EncryptionKey, logger)
	if err != nil {
		return err
	}

	sessions := session.NewStore()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg, func() float64 { return float64(sessions.Len()) })

	tg, err := telegram.New(cfg.TelegramToken, pollTimeoutSeconds, logger)
	if err != nil {
		return err
	}

	coordinator := lifecycle.NewCoordinator(lifecycle.Config{Slippage: cfg.Slippage},
		amm, profiles, keys, positions.NewIndex(), storage.NewJsonlJournal(cfg.Journal), rec, logger)
	driver := workflow.NewDriver(workflow.Machine{ExplorerTxURL: cfg.ExplorerTxURL},
		sessions, amm, coordinator, tg, rec, logger)

	dispatcher := bot.NewDispatcher(bot.Config{
		ExplorerTxURL:      cfg.ExplorerTxURL,
		ExplorerAddressURL: cfg.ExplorerAddrURL,
		NativeSymbol:       cfg.NativeSymbol,
		PoolListTimeout:    cfg.PoolListTimeout,
	}, bot.Deps{
		Workflow:  driver,
		Lifecycle: coordinator,
		Wallets:   keys,
		Chain:     amm,
		Catalog:   pools,
		Sender:    tg,
		Limiter:   ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, limiterIdleTTL),
		Metrics:   rec,
	}, logger)
	lanes := bot.NewSerializer(logger)

	go func() {
		if err := api.Serve(ctx, cfg.MetricsAddr, api.NewRouter(reg, profiles, logger), logger); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	logger.Info("bot start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("position_manager", cfg.PositionManager),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Int("featured_pools", pools.Len()),
		zap.String("slippage", cfg.Slippage.String()),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	err = tg.Run(ctx, func(ev chat.Event) {
		lanes.Go(ev.UserID, func() { dispatcher.Dispatch(ctx, ev) })
	})
	lanes.Wait()
	logger.Info("bot stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
