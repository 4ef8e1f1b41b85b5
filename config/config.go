package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marginledger/internal/adapters/logger"
	"marginledger/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Ledger Parameters
	Pair          string  // e.g. "ETH/BTC"
	Exchange      string  // exchange name stamped on trades
	StakeCurrency string  // quote currency for event payloads
	Leverage      float64 // default leverage for new positions
	FeeOpen       float64 // fractional, e.g. 0.0025 for 0.25%
	FeeClose      float64
	InterestRate  float64 // fractional rate per interest period
	InterestMode  domain.InterestMode
	Stoploss      float64 // trailing stop fraction, e.g. 0.05 for 5%

	// Risk Limits
	MaxLeverage    float64
	MaxStakeAmount float64
	MaxOpenTrades  int

	// Persistence. DryRun switches to the volatile in-process store; the
	// backing mode is fixed for the lifetime of the process.
	DryRun bool
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Price polling
	TickInterval time.Duration
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Ledger Parameters
	cfg.Pair = getEnv("PAIR", "ETH/BTC")
	if !strings.Contains(cfg.Pair, "/") {
		errs = append(errs, "PAIR must be of the form BASE/QUOTE")
	}
	cfg.Exchange = getEnv("EXCHANGE", "binance")
	cfg.StakeCurrency = getEnv("STAKE_CURRENCY", "BTC")

	cfg.Leverage, err = getEnvAsFloatRequired("LEVERAGE", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE: %v", err))
	} else if cfg.Leverage < 1.0 {
		errs = append(errs, "LEVERAGE must be at least 1.0")
	}

	cfg.FeeOpen, err = getEnvAsFloatRequired("FEE_OPEN", 0.0025)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_OPEN: %v", err))
	} else if cfg.FeeOpen < 0 || cfg.FeeOpen >= 1.0 {
		errs = append(errs, "FEE_OPEN must be between 0.0 and 1.0")
	}

	cfg.FeeClose, err = getEnvAsFloatRequired("FEE_CLOSE", 0.0025)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_CLOSE: %v", err))
	} else if cfg.FeeClose < 0 || cfg.FeeClose >= 1.0 {
		errs = append(errs, "FEE_CLOSE must be between 0.0 and 1.0")
	}

	cfg.InterestRate, err = getEnvAsFloatRequired("INTEREST_RATE", 0.0005)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INTEREST_RATE: %v", err))
	} else if cfg.InterestRate < 0 {
		errs = append(errs, "INTEREST_RATE cannot be negative")
	}

	modeStr := getEnv("INTEREST_MODE", string(domain.InterestHoursPerDay))
	cfg.InterestMode = domain.InterestMode(strings.ToUpper(modeStr))
	if !cfg.InterestMode.Valid() {
		errs = append(errs, fmt.Sprintf("unknown INTEREST_MODE %q (expected %s or %s)",
			modeStr, domain.InterestHoursPer4, domain.InterestHoursPerDay))
	}

	cfg.Stoploss, err = getEnvAsFloatRequired("STOPLOSS", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOPLOSS: %v", err))
	} else if cfg.Stoploss <= 0 || cfg.Stoploss >= 1.0 {
		errs = append(errs, "STOPLOSS must be between 0.0 and 1.0 (exclusive)")
	}

	// Risk Limits
	cfg.MaxLeverage = getEnvAsFloat("MAX_LEVERAGE", 5.0)
	cfg.MaxStakeAmount = getEnvAsFloat("MAX_STAKE_AMOUNT", 0) // 0 disables
	cfg.MaxOpenTrades = getEnvAsInt("MAX_OPEN_TRADES", 5)
	if cfg.MaxOpenTrades < 0 {
		errs = append(errs, "MAX_OPEN_TRADES cannot be negative")
	}

	// Persistence
	cfg.DryRun = getEnvAsBool("DRY_RUN", false)
	cfg.DBPath = getEnv("DB_PATH", "./data/ledger.db")
	if !cfg.DryRun && cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when DRY_RUN is false")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Price polling
	tickSeconds := getEnvAsInt("TICK_INTERVAL_SECONDS", 10)
	if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
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
