package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from the environment with
// sensible defaults for local development; a .env file is honoured if present.
type Config struct {
	ServerPort   int
	DatabasePath string

	JWTSecret string
	TokenTTL  time.Duration

	// MinBidIncrement is the amount a new bid must exceed the current bid by.
	// Zero means strictly-greater is enough. Enforced server-side only.
	MinBidIncrement float64

	// PlatformFeeRate is the fraction of the winning amount kept as the
	// platform fee when a transaction is created.
	PlatformFeeRate float64

	SweepInterval      time.Duration
	SettlementInterval time.Duration

	// Redis is optional. When RedisAddr is empty the in-process hub alone
	// serves real-time fanout.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, relying on environment")
	}

	cfg := &Config{
		ServerPort:         8080,
		DatabasePath:       getEnvOrDefault("DATABASE_PATH", "auction.db"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", "openbid-dev-secret"),
		TokenTTL:           7 * 24 * time.Hour,
		MinBidIncrement:    0,
		PlatformFeeRate:    0.05,
		SweepInterval:      10 * time.Second,
		SettlementInterval: time.Minute,
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.ServerPort = p
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", ttl, err)
		}
		cfg.TokenTTL = d
	}

	if inc := os.Getenv("MIN_BID_INCREMENT"); inc != "" {
		v, err := strconv.ParseFloat(inc, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid MIN_BID_INCREMENT %q", inc)
		}
		cfg.MinBidIncrement = v
	}

	if fee := os.Getenv("PLATFORM_FEE_RATE"); fee != "" {
		v, err := strconv.ParseFloat(fee, 64)
		if err != nil || v < 0 || v >= 1 {
			return nil, fmt.Errorf("invalid PLATFORM_FEE_RATE %q", fee)
		}
		cfg.PlatformFeeRate = v
	}

	if sweep := os.Getenv("SWEEP_INTERVAL"); sweep != "" {
		d, err := time.ParseDuration(sweep)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL %q: %w", sweep, err)
		}
		cfg.SweepInterval = d
	}

	if interval := os.Getenv("SETTLEMENT_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid SETTLEMENT_INTERVAL %q: %w", interval, err)
		}
		cfg.SettlementInterval = d
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", db, err)
		}
		cfg.RedisDB = n
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
