package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/storage"
	"liquidityPilot/internal/vault"
)

func walletCommand() *cobra.Command {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage custodial user wallets",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a wallet for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withVault(cmd, func(ctx context.Context, keys *vault.Vault, userID int64) error {
				chatID, _ := cmd.Flags().GetInt64("chat")
				user, created, err := keys.Provision(ctx, userID, chatID)
				if err != nil {
					return err
				}
				state := "existing"
				if created {
					state = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, user.WalletAddress)
				return nil
			})
		},
	}
	createCmd.Flags().Int64("chat", 0, "chat id to record for the user")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the wallet address of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withVault(cmd, func(ctx context.Context, keys *vault.Vault, userID int64) error {
				address, err := keys.Address(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), address)
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{createCmd, showCmd} {
		c.Flags().Int64("user", 0, "chat user id")
		c.Flags().String("encryption-key", "", "wallet encryption passphrase")
		addStoreFlags(c)
		_ = c.MarkFlagRequired("user")
		walletCmd.AddCommand(c)
	}
	return walletCmd
}

func withVault(cmd *cobra.Command, fn func(ctx context.Context, keys *vault.Vault, userID int64) error) error {
	cfg, logger, err := loadTool(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	ctx := cmd.Context()
	profiles, err := storage.OpenProfiles(ctx, cfg.StoreDriver, cfg.SQLitePath, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer profiles.Close()

	keys, err := vault.New(profiles, cfg.EncryptionKey, logger)
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetInt64("user")
	return fn(ctx, keys, userID)
}

func positionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print the open positions of a user",
		RunE:  runPositions,
	}
	cmd.Flags().Int64("user", 0, "chat user id")
	cmd.Flags().String("rpc", "", "BSC RPC URL")
	cmd.Flags().String("position-manager", "", "NonfungiblePositionManager address")
	addStoreFlags(cmd)
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runPositions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadTool(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx := cmd.Context()
	profiles, err := storage.OpenProfiles(ctx, cfg.StoreDriver, cfg.SQLitePath, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer profiles.Close()

	userID, _ := cmd.Flags().GetInt64("user")
	user, err := profiles.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.HasWallet() {
		return fmt.Errorf("user %d has no wallet", userID)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	amm, err := dex.NewService(dex.Config{PositionManager: cfg.PositionManager}, chainClient, logger)
	if err != nil {
		return err
	}
	items, err := amm.ListPositions(ctx, user.WalletAddress)
	if err != nil {
		return err
	}
	logger.Info("positions loaded", zap.Int64("user_id", userID), zap.Int("count", len(items)))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tHANDLE\tPAIR\tFEE\tRANGE\tIN RANGE\tAMOUNT0\tAMOUNT1")
	for i, p := range items {
		fmt.Fprintf(w, "%d\t%s\t%s/%s\t%d\t%s-%s\t%t\t%s\t%s\n",
			i+1, p.Handle, p.Token0.Symbol, p.Token1.Symbol, p.Fee,
			p.PriceLower.String(), p.PriceUpper.String(), p.InRange,
			p.Amount0.String(), p.Amount1.String())
	}
	return w.Flush()
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadTool(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	profiles, err := storage.OpenProfiles(cmd.Context(), cfg.StoreDriver, cfg.SQLitePath, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer profiles.Close()

	logger.Info("schema ready", zap.String("store_driver", cfg.StoreDriver))
	return nil
}

func loadTool(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
