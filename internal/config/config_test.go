package config

import (
    "testing"
    "time"

    "github.com/sirupsen/logrus"
    "github.com/stretchr/testify/assert"
)

func TestLoad_MemoryStoreSkipsDatabase(t *testing.T) {
    t.Setenv("APP_ENV", "dev")
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("SEED_DEMO", "yes")
    t.Setenv("RESERVE_TIMEOUT", "750ms")
    t.Setenv("COMPENSATION_ATTEMPTS", "5")
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://broker:5672/")

    cfg := Load()
    assert.Equal(t, StoreMemory, cfg.StoreDriver)
    assert.True(t, cfg.SeedDemo)
    assert.Empty(t, cfg.DBHost)
    assert.Equal(t, 750*time.Millisecond, cfg.ReserveTimeout)
    assert.Equal(t, 5, cfg.CompensationAttempts)
    assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
    assert.Equal(t, "amqp://broker:5672/", cfg.RabbitMQURL)
    assert.Equal(t, "logs/booking.log", cfg.BookingLogPath)
}

func TestLoad_MySQLReadsDatabase(t *testing.T) {
    t.Setenv("APP_ENV", "prod")
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "mysql")
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_PASS", "pw")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_PORT", "3306")
    t.Setenv("DB_NAME", "cinema")

    cfg := Load()
    dsn := cfg.DSN()
    assert.Contains(t, dsn, "app:pw@tcp(db:3306)/cinema")
    assert.Contains(t, dsn, "parseTime=true")
    assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestEnvHelpersFallBack(t *testing.T) {
    t.Setenv("X_INT", "nope")
    t.Setenv("X_DUR", "3")
    t.Setenv("X_BOOL", "maybe")
    assert.Equal(t, 4, envInt("X_INT", 4))
    assert.Equal(t, time.Second, envDur("X_DUR", time.Second))
    assert.True(t, envBool("X_BOOL", true))
    assert.Equal(t, "d", envStr("X_UNSET_FOR_TEST", "d"))
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")
    cfg := LoadRateLimitConfig()
    assert.Equal(t, 1, cfg.Capacity)
    assert.Equal(t, 10*time.Second, cfg.TTL)
    assert.Equal(t, "user_route", cfg.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    cfg := LoadCacheConfig()
    assert.True(t, cfg.Methods["GET"])
    assert.True(t, cfg.Methods["HEAD"])
    assert.False(t, cfg.Methods["POST"])
}

func TestLoadRedisConfig_HostPortWins(t *testing.T) {
    t.Setenv("REDIS_ADDR", "ignored:1")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)
    assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false}))
}

func TestNewLogger(t *testing.T) {
    log := NewLogger(Config{Env: "prod", LogLevel: "debug"})
    assert.Equal(t, logrus.DebugLevel, log.GetLevel())
    _, ok := log.Formatter.(*logrus.JSONFormatter)
    assert.True(t, ok)

    log = NewLogger(Config{Env: "dev", LogLevel: "loud"})
    assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
