package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config describes all runtime settings for the server.
//
// Best practice for Go services:
//   - load config once in main
//   - validate
//   - pass further via DI (no global variables)
type Config struct {
	Env string // dev|stage|prod

	Log struct {
		Format string // text|json
	}

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
		ShutdownTimeout   time.Duration
	}

	Postgres struct {
		URL           string // empty => audit store disabled
		RunMigrations bool
		MigrationsDir string
	}

	Redis struct {
		Addr string // empty => snapshot persistence disabled
		DB   int
	}

	Auth struct {
		Secret   string // HMAC key for credential tokens
		TokenTTL time.Duration
	}

	Game struct {
		DeriveSecret  string // HMAC key for target-word derivation
		WordsFile     string // empty => embedded corpus
		InstanceTTL   time.Duration
		SweepInterval time.Duration
	}

	Signer struct {
		KeyHex string // 32-byte secp256k1 private key, hex
	}

	Settlement struct {
		RPCURL    string // empty => pre-check skipped
		Contract  string // 0x-prefixed settlement contract address
		Timeout   time.Duration
		Mode      string // warn|strict
		PayoutWei string // optional fixed payout bound into the attestation
	}

	RateLimit struct {
		RPS   int
		Burst int
	}
}

func LoadFromEnv() (Config, error) {
	var c Config

	c.Env = envString("APP_ENV", "dev")
	c.Log.Format = envString("LOG_FORMAT", "text")

	port := envString("PORT", "8080")
	c.HTTP.Addr = envString("HTTP_ADDR", ":"+port)
	c.HTTP.ReadHeaderTimeout = envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	c.HTTP.ReadTimeout = envDuration("HTTP_READ_TIMEOUT", 0)
	c.HTTP.WriteTimeout = envDuration("HTTP_WRITE_TIMEOUT", 0)
	c.HTTP.IdleTimeout = envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)
	c.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	c.Postgres.URL = envString("DATABASE_URL", "")
	c.Postgres.RunMigrations = envBool("RUN_MIGRATIONS", false)
	c.Postgres.MigrationsDir = envString("MIGRATIONS_DIR", "./db/migrations")

	c.Redis.Addr = envString("REDIS_ADDR", "")
	c.Redis.DB = envInt("REDIS_DB", 0)

	c.Auth.Secret = envString("CREDENTIAL_SECRET", "dev-secret-change-me")
	c.Auth.TokenTTL = envDuration("CREDENTIAL_TTL", 24*time.Hour)

	c.Game.DeriveSecret = envString("DERIVE_SECRET", "dev-derive-change-me")
	c.Game.WordsFile = envString("WORDS_FILE", "")
	c.Game.InstanceTTL = envDuration("INSTANCE_TTL", 24*time.Hour)
	c.Game.SweepInterval = envDuration("SWEEP_INTERVAL", 5*time.Minute)

	c.Signer.KeyHex = envString("SIGNER_KEY", "")

	c.Settlement.RPCURL = envString("SETTLEMENT_RPC_URL", "")
	c.Settlement.Contract = envString("SETTLEMENT_CONTRACT", "")
	c.Settlement.Timeout = envDuration("SETTLEMENT_TIMEOUT", 3*time.Second)
	c.Settlement.Mode = envString("SETTLEMENT_MODE", "warn")
	c.Settlement.PayoutWei = envString("PAYOUT_WEI", "")

	c.RateLimit.RPS = envInt("RATE_LIMIT_RPS", 5)
	c.RateLimit.Burst = envInt("RATE_LIMIT_BURST", 10)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP addr is empty")
	}
	if c.Auth.Secret == "" {
		return errors.New("CREDENTIAL_SECRET is empty")
	}
	if c.Game.DeriveSecret == "" {
		return errors.New("DERIVE_SECRET is empty")
	}
	if c.Signer.KeyHex == "" {
		return errors.New("SIGNER_KEY is empty")
	}
	if c.Env != "dev" && c.Auth.Secret == "dev-secret-change-me" {
		return fmt.Errorf("refuse to run with default CREDENTIAL_SECRET in %s", c.Env)
	}
	if c.Env != "dev" && c.Game.DeriveSecret == "dev-derive-change-me" {
		return fmt.Errorf("refuse to run with default DERIVE_SECRET in %s", c.Env)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	if c.Settlement.Mode != "warn" && c.Settlement.Mode != "strict" {
		return fmt.Errorf("unsupported SETTLEMENT_MODE=%q (want warn|strict)", c.Settlement.Mode)
	}
	if c.Settlement.RPCURL != "" && c.Settlement.Contract == "" {
		return errors.New("SETTLEMENT_CONTRACT is required when SETTLEMENT_RPC_URL is set")
	}
	if c.Game.InstanceTTL <= 0 {
		return errors.New("INSTANCE_TTL must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit rps/burst must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
