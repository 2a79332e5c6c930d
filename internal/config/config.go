package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSecretLen = 32

var (
	ErrSessionSecret = errors.New("SESSION_SECRET is required and must be at least 32 chars")
	ErrDatabaseURL   = errors.New("DATABASE_URL is required for sql store drivers")
)

type Config struct {
	Port     string
	LogLevel string
	DevMode  bool

	SessionSecret string
	SessionTTL    time.Duration

	StoreDriver string
	DatabaseURL string

	CatalogFile string

	RateLimitPerMin int
	MetricsToken    string

	ShutdownTimeout time.Duration
}

func Load() (Config, error) {
	var c Config

	c.Port = getenv("PORT", "8080")
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.DevMode = getenvBool("DEV_MODE", false)

	c.SessionSecret = os.Getenv("SESSION_SECRET")
	if len(c.SessionSecret) < minSecretLen {
		if !c.DevMode {
			return Config{}, ErrSessionSecret
		}
		c.SessionSecret = "dev-session-secret-do-not-use-in-prod"
	}
	c.SessionTTL = getenvDuration("SESSION_TTL", 30*24*time.Hour)

	c.StoreDriver = strings.ToLower(getenv("STORE_DRIVER", "memory"))
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	switch c.StoreDriver {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return Config{}, fmt.Errorf("%w (driver=%s)", ErrDatabaseURL, c.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	c.CatalogFile = os.Getenv("CATALOG_FILE")
	c.RateLimitPerMin = getenvInt("RATE_LIMIT_PER_MIN", 120)
	c.MetricsToken = os.Getenv("METRICS_TOKEN")
	c.ShutdownTimeout = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	return c, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil {
		return def
	}
	return d
}
