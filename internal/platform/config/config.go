package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// Config is the server configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// CatalogPath is a YAML file of providers, aliases and content. Empty
	// starts the server with an empty catalog.
	CatalogPath string

	StatusFetchTimeout time.Duration
	XtreamTimeout      time.Duration

	// RedisAddr enables the shared status store when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ProxyAPIURL enables the monitor endpoints when set.
	ProxyAPIURL    string
	ProxyAPIToken  string
	MonitorTimeout time.Duration

	RateLimitPerMinute int
}

// Defaults returns the configuration used when no variables are set.
func Defaults() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		LogFormat:          "json",
		StatusFetchTimeout: 3 * time.Second,
		XtreamTimeout:      10 * time.Second,
		MonitorTimeout:     5 * time.Second,
		RateLimitPerMinute: 600,
	}
}

// FromEnv reads Config from the environment. Every invalid variable is
// reported in the returned error, not only the first.
func FromEnv() (Config, error) {
	cfg := Defaults()
	p := &envParser{}

	cfg.Port = GetEnv("PORT", cfg.Port)
	p.parseEnum("LOG_LEVEL", &cfg.LogLevel, "debug", "info", "warn", "error")
	p.parseEnum("LOG_FORMAT", &cfg.LogFormat, "json", "text")
	cfg.CatalogPath = GetEnv("CATALOG_PATH", "")
	p.parseDuration("STATUS_FETCH_TIMEOUT", &cfg.StatusFetchTimeout)
	p.parseDuration("XTREAM_TIMEOUT", &cfg.XtreamTimeout)
	cfg.RedisAddr = GetEnv("REDIS_ADDR", "")
	cfg.RedisPassword = GetEnv("REDIS_PASSWORD", "")
	p.parseNonNegativeInt("REDIS_DB", &cfg.RedisDB)
	cfg.ProxyAPIURL = GetEnv("PROXY_API_URL", "")
	cfg.ProxyAPIToken = GetEnv("PROXY_API_TOKEN", "")
	p.parseDuration("MONITOR_TIMEOUT", &cfg.MonitorTimeout)
	p.parseNonNegativeInt("RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)

	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		p.fail("PORT must be a TCP port number")
	}
	if cfg.ProxyAPIURL != "" {
		if u, err := url.Parse(cfg.ProxyAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
			p.fail("PROXY_API_URL must be an absolute URL")
		}
	}

	if len(p.errors) > 0 {
		return Config{}, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(p.errors, "\n  - "))
	}
	return cfg, nil
}

type envParser struct {
	errors []string
}

func (p *envParser) fail(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

// parseDuration accepts positive Go durations such as "3s" or "1m".
func (p *envParser) parseDuration(name string, target *time.Duration) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.fail("%s: invalid duration format (use '3s', '1m', etc.)", name)
		return
	}
	if d <= 0 {
		p.fail("%s must be positive", name)
		return
	}
	*target = d
}

func (p *envParser) parseNonNegativeInt(name string, target *int) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.fail("%s: must be a valid integer", name)
		return
	}
	if n < 0 {
		p.fail("%s must not be negative", name)
		return
	}
	*target = n
}

// parseEnum matches case-insensitively and stores the lower-cased value.
func (p *envParser) parseEnum(name string, target *string, valid ...string) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	normalized := strings.ToLower(val)
	for _, v := range valid {
		if normalized == v {
			*target = normalized
			return
		}
	}
	p.fail("%s must be one of: %s", name, strings.Join(valid, ", "))
}
