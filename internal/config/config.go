// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and the process environment, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/ksred/klear-splitter/internal/catalog"
	"github.com/ksred/klear-splitter/internal/database"
	"github.com/ksred/klear-splitter/internal/idempotency"
	"github.com/ksred/klear-splitter/internal/logging"
	"github.com/ksred/klear-splitter/internal/market"
	"github.com/ksred/klear-splitter/internal/trading"
	"github.com/ksred/klear-splitter/pkg/middleware"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

type Config struct {
	Server      ServerConfig               `yaml:"server"`
	Auth        AuthConfig                 `yaml:"auth"`
	Accounts    AccountsConfig             `yaml:"accounts"`
	Trading     TradingConfig              `yaml:"trading"`
	Idempotency IdempotencyConfig          `yaml:"idempotency"`
	Market      market.Config              `yaml:"market"`
	Storage     StorageConfig              `yaml:"storage"`
	Logging     logging.Config             `yaml:"logging"`
	RateLimit   middleware.RateLimitConfig `yaml:"rate_limit"`
	Catalog     []catalog.Instrument       `yaml:"catalog"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"` // development, staging, production
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	InternalAPIKey string        `yaml:"internal_api_key"`
}

type AccountsConfig struct {
	InitialBalance string `yaml:"initial_balance"`
}

type TradingConfig struct {
	FixedPrice    string `yaml:"fixed_price"`
	ShareDecimals int32  `yaml:"share_decimals"`
}

type IdempotencyConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

type StorageConfig struct {
	Driver          string `yaml:"driver"` // memory or sqlite
	database.Config `yaml:",inline"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Env:             "development",
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "klear-splitter-dev-secret",
			TokenTTL:  24 * time.Hour,
		},
		Accounts: AccountsConfig{InitialBalance: "10000"},
		Trading: TradingConfig{
			FixedPrice:    "100",
			ShareDecimals: 3,
		},
		Idempotency: IdempotencyConfig{
			TTL:           idempotency.DefaultTTL,
			SweepSchedule: trading.DefaultSweepSchedule,
		},
		Market:  market.DefaultConfig(),
		Storage: StorageConfig{Driver: StorageMemory},
		Logging: logging.Config{Level: "info", Pretty: true},
		RateLimit: middleware.RateLimitConfig{
			AuthPerMinute:   10,
			OrdersPerMinute: 100,
			Burst:           5,
		},
		Catalog: append([]catalog.Instrument(nil), catalog.DefaultInstruments...),
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	loadEnvFile()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	switch c.Server.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	balance, err := decimal.NewFromString(c.Accounts.InitialBalance)
	if err != nil || balance.IsNegative() {
		return fmt.Errorf("initial balance must be a non-negative decimal, got %q", c.Accounts.InitialBalance)
	}
	price, err := decimal.NewFromString(c.Trading.FixedPrice)
	if err != nil || !price.IsPositive() {
		return fmt.Errorf("fixed price must be a positive decimal, got %q", c.Trading.FixedPrice)
	}
	if c.Trading.ShareDecimals < 0 || c.Trading.ShareDecimals > 12 {
		return fmt.Errorf("share decimals must be between 0 and 12, got %d", c.Trading.ShareDecimals)
	}

	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("idempotency TTL must be positive")
	}
	if _, err := market.NewCalendar(c.Market); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("storage driver must be %q or %q, got %q", StorageMemory, StorageSQLite, c.Storage.Driver)
	}
	if len(c.Catalog) == 0 {
		return fmt.Errorf("at least one catalog instrument is required")
	}
	if _, err := catalog.New(c.Catalog); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// InitialBalance returns the validated starting balance
func (c *Config) InitialBalance() decimal.Decimal {
	return decimal.RequireFromString(c.Accounts.InitialBalance)
}

// TradingService returns the allocation parameters for the trading service
func (c *Config) TradingService() trading.Config {
	return trading.Config{
		FloorPrice:     decimal.RequireFromString(c.Trading.FixedPrice),
		ShareDecimals:  c.Trading.ShareDecimals,
		IdempotencyTTL: c.Idempotency.TTL,
	}
}

// loadEnvFile loads the first .env found; existing variables win
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Server.Env = v
		if v == "production" {
			cfg.Logging.Pretty = false
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if getEnvAsBool("DEBUG", false) {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("INTERNAL_API_KEY"); v != "" {
		cfg.Auth.InternalAPIKey = v
	}
	if v := os.Getenv("FIXED_PRICE"); v != "" {
		cfg.Trading.FixedPrice = v
	}
	if v := os.Getenv("SHARE_DECIMALS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.Trading.ShareDecimals = int32(n)
		}
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		cfg.Accounts.InitialBalance = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("MARKET_TIMEZONE"); v != "" {
		cfg.Market.Timezone = v
	}
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
