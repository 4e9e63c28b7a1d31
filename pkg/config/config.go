package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Settlement SettlementConfig
	Journal    JournalConfig
	Ledger     LedgerConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	// Requests the sequencer may queue before callers block.
	Backlog      int
	RateLimit    int
	RateWindow   time.Duration
	MaxBodyBytes int64
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled        bool
	URL            string
	Password       string
	DB             int
	LeaderboardKey string
	IdempotencyTTL time.Duration
}

type JWTConfig struct {
	Secret string
}

// SettlementConfig holds the protocol parameters enforced by the settlement core.
type SettlementConfig struct {
	Owner             string
	FeeRecipient      string
	Admins            []string
	Resolvers         []string
	FeeCapBps         uint16
	PlatformFeeBps    uint16
	MinStakeFloor     decimal.Decimal
	MinDeadlineBuffer time.Duration
	MinCommitDuration time.Duration
	MinRevealDuration time.Duration
	// Decimal places the value ledger can represent; payouts are floored to it.
	Precision int32
}

type JournalConfig struct {
	Path string
	// Pool, round, stake and commitment records. Used with the postgres ledger.
	StatePath string
}

// LedgerConfig selects the value ledger backend: "memory" or "postgres".
type LedgerConfig struct {
	Backend        string
	CustodyAccount string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS"),
			Backlog:         getIntEnv("SEQUENCER_BACKLOG", 256),
			RateLimit:       getIntEnv("RATE_LIMIT", 120),
			RateWindow:      getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			MaxBodyBytes:    int64(getIntEnv("SERVER_MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:        getBoolEnv("REDIS_ENABLED", true),
			URL:            normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getIntEnv("REDIS_DB", 0),
			LeaderboardKey: getEnv("REDIS_LEADERBOARD_KEY", "stakehub:leaderboard"),
			IdempotencyTTL: getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-secret"),
		},
		Settlement: SettlementConfig{
			Owner:             getEnv("SETTLEMENT_OWNER", ""),
			FeeRecipient:      getEnv("SETTLEMENT_FEE_RECIPIENT", ""),
			Admins:            getListEnv("SETTLEMENT_ADMINS"),
			Resolvers:         getListEnv("SETTLEMENT_RESOLVERS"),
			FeeCapBps:         uint16(getIntEnv("SETTLEMENT_FEE_CAP_BPS", 1000)),
			PlatformFeeBps:    uint16(getIntEnv("SETTLEMENT_PLATFORM_FEE_BPS", 200)),
			MinStakeFloor:     getDecimalEnv("SETTLEMENT_MIN_STAKE_FLOOR", decimal.New(1, -3)),
			MinDeadlineBuffer: getDurationEnv("SETTLEMENT_MIN_DEADLINE_BUFFER", time.Hour),
			MinCommitDuration: getDurationEnv("SETTLEMENT_MIN_COMMIT_DURATION", time.Hour),
			MinRevealDuration: getDurationEnv("SETTLEMENT_MIN_REVEAL_DURATION", 30*time.Minute),
			Precision:         int32(getIntEnv("SETTLEMENT_PRECISION", 18)),
		},
		Journal: JournalConfig{
			Path:      getEnv("JOURNAL_PATH", "data/journal.db"),
			StatePath: getEnv("STATE_PATH", "data/state.db"),
		},
		Ledger: LedgerConfig{
			Backend:        strings.ToLower(getEnv("LEDGER_BACKEND", "memory")),
			CustodyAccount: getEnv("LEDGER_CUSTODY_ACCOUNT", ""),
		},
	}
}

// Address parses a hex account from configuration; invalid input yields the zero address.
func Address(hex string) common.Address {
	if !common.IsHexAddress(hex) {
		return common.Address{}
	}
	return common.HexToAddress(hex)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
