package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	TelegramToken   string
	EncryptionKey   string
	RPCURL          string
	PositionManager string
	StoreDriver     string
	SQLitePath      string
	PGDSN           string
	PoolsFile       string
	PoolListTimeout time.Duration
	Slippage        decimal.Decimal
	TxDeadline      time.Duration
	ReceiptTimeout  time.Duration
	MetricsAddr     string
	Journal         string
	RateLimitRPS    float64
	RateLimitBurst  int
	ExplorerTxURL   string
	ExplorerAddrURL string
	NativeSymbol    string
	LogLevel        string
}

// Load merges .env, config file, environment variables, and flags into
// Config. Environment keys use the LPBOT_ prefix.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store-driver", "sqlite")
	v.SetDefault("sqlite-path", "./data/bot.db")
	v.SetDefault("pool-list-timeout", 15*time.Second)
	v.SetDefault("slippage", "0.05")
	v.SetDefault("tx-deadline", 10*time.Minute)
	v.SetDefault("receipt-timeout", 2*time.Minute)
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("rate-limit-rps", 2.0)
	v.SetDefault("rate-limit-burst", 5)
	v.SetDefault("explorer-tx-url", "https://bscscan.com/tx/%s")
	v.SetDefault("explorer-address-url", "https://bscscan.com/address/%s")
	v.SetDefault("native-symbol", "BNB")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	slippage, err := decimal.NewFromString(strings.TrimSpace(v.GetString("slippage")))
	if err != nil {
		return Config{}, fmt.Errorf("parse slippage: %w", err)
	}

	cfg := Config{
		TelegramToken:   v.GetString("telegram-token"),
		EncryptionKey:   v.GetString("encryption-key"),
		RPCURL:          v.GetString("rpc"),
		PositionManager: v.GetString("position-manager"),
		StoreDriver:     strings.ToLower(v.GetString("store-driver")),
		SQLitePath:      v.GetString("sqlite-path"),
		PGDSN:           v.GetString("pg-dsn"),
		PoolsFile:       v.GetString("pools-file"),
		PoolListTimeout: v.GetDuration("pool-list-timeout"),
		Slippage:        slippage,
		TxDeadline:      v.GetDuration("tx-deadline"),
		ReceiptTimeout:  v.GetDuration("receipt-timeout"),
		MetricsAddr:     v.GetString("metrics-addr"),
		Journal:         v.GetString("journal"),
		RateLimitRPS:    v.GetFloat64("rate-limit-rps"),
		RateLimitBurst:  v.GetInt("rate-limit-burst"),
		ExplorerTxURL:   v.GetString("explorer-tx-url"),
		ExplorerAddrURL: v.GetString("explorer-address-url"),
		NativeSymbol:    v.GetString("native-symbol"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings every bot process needs.
func (c Config) Validate() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, "telegram-token")
	}
	if c.EncryptionKey == "" {
		missing = append(missing, "encryption-key")
	}
	if c.RPCURL == "" {
		missing = append(missing, "rpc")
	}
	if c.PositionManager == "" {
		missing = append(missing, "position-manager")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return c.validateRanges()
}

// ValidateStore checks only the settings needed to reach the profile store
// and the key vault.
func (c Config) ValidateStore() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("missing required settings: encryption-key")
	}
	return c.validateStoreDriver()
}

func (c Config) validateRanges() error {
	if c.Slippage.IsNegative() || c.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("slippage must be in [0, 1): %s", c.Slippage)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	for key, pattern := range map[string]string{"explorer-tx-url": c.ExplorerTxURL, "explorer-address-url": c.ExplorerAddrURL} {
		if pattern != "" && strings.Count(pattern, "%s") != 1 {
			return fmt.Errorf("%s must contain exactly one %%s", key)
		}
	}
	return c.validateStoreDriver()
}

func (c Config) validateStoreDriver() error {
	switch c.StoreDriver {
	case "", "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite-path is required for the sqlite store")
		}
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unsupported store driver: %s", c.StoreDriver)
	}
	return nil
}
