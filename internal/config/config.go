// Package config loads indexer settings from an optional YAML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of both binaries.
type Config struct {
	Sui struct {
		RPCURL     string        `yaml:"rpc_url"`
		WSURL      string        `yaml:"ws_url"` // optional, enables wake-ups
		PackageID  string        `yaml:"package_id"`
		Module     string        `yaml:"module"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"sui"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Clickhouse struct {
		DSN string `yaml:"dsn"` // optional raw event archive
	} `yaml:"clickhouse"`

	Indexer struct {
		PageLimit        int           `yaml:"page_limit"`
		FailurePolicy    string        `yaml:"failure_policy"`
		FilterMode       string        `yaml:"filter_mode"`
		Parallel         bool          `yaml:"parallel"`
		BusyDelay        time.Duration `yaml:"busy_delay"`
		ActiveDelay      time.Duration `yaml:"active_delay"`
		IdleDelay        time.Duration `yaml:"idle_delay"`
		RetryBatch       int           `yaml:"retry_batch"`
		MaxRetryAttempts int           `yaml:"max_retry_attempts"`
		UseMemory        bool          `yaml:"use_memory"`
	} `yaml:"indexer"`

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Defaults.
const (
	DefaultModule          = "bucky_bank"
	DefaultPageLimit       = 50
	DefaultFailurePolicy   = "dead-letter"
	DefaultFilterMode      = "event_type"
	DefaultHTTPAddr        = ":8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultRPCTimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultActiveDelay     = 1 * time.Second
	DefaultIdleDelay       = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Load reads path (skipped when empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is normal; existing variables win over the file.
	_ = godotenv.Load(".env")

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Sui.RPCURL, "SUI_RPC_URL")
	setString(&c.Sui.WSURL, "SUI_WS_URL")
	setString(&c.Sui.PackageID, "PACKAGE_ID")
	setString(&c.Sui.Module, "MODULE_NAME")
	setString(&c.Postgres.DSN, "DATABASE_URL")
	setString(&c.Clickhouse.DSN, "CLICKHOUSE_DSN")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Indexer.FailurePolicy, "FAILURE_POLICY")
	setString(&c.Indexer.FilterMode, "FILTER_MODE")

	var errs []error
	errs = append(errs,
		setInt(&c.Indexer.PageLimit, "PAGE_LIMIT"),
		setBool(&c.Indexer.Parallel, "PARALLEL"),
		setBool(&c.Indexer.UseMemory, "USE_MEMORY"),
		setDuration(&c.Indexer.IdleDelay, "IDLE_DELAY"),
		setDuration(&c.Indexer.ActiveDelay, "ACTIVE_DELAY"),
	)
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Sui.Module == "" {
		c.Sui.Module = DefaultModule
	}
	if c.Sui.Timeout == 0 {
		c.Sui.Timeout = DefaultRPCTimeout
	}
	if c.Sui.MaxRetries == 0 {
		c.Sui.MaxRetries = DefaultMaxRetries
	}
	if c.Indexer.PageLimit == 0 {
		c.Indexer.PageLimit = DefaultPageLimit
	}
	if c.Indexer.FailurePolicy == "" {
		c.Indexer.FailurePolicy = DefaultFailurePolicy
	}
	if c.Indexer.FilterMode == "" {
		c.Indexer.FilterMode = DefaultFilterMode
	}
	if c.Indexer.ActiveDelay == 0 {
		c.Indexer.ActiveDelay = DefaultActiveDelay
	}
	if c.Indexer.IdleDelay == 0 {
		c.Indexer.IdleDelay = DefaultIdleDelay
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// ValidateIndexer reports every setting the indexer binary cannot run without.
func (c *Config) ValidateIndexer() error {
	var errs []error
	if c.Sui.RPCURL == "" {
		errs = append(errs, errors.New("sui rpc url is required (SUI_RPC_URL)"))
	}
	if c.Sui.PackageID == "" {
		errs = append(errs, errors.New("package id is required (PACKAGE_ID)"))
	}
	if c.Indexer.PageLimit < 1 || c.Indexer.PageLimit > 1000 {
		errs = append(errs, fmt.Errorf("page limit %d out of range [1, 1000]", c.Indexer.PageLimit))
	}
	switch c.Indexer.FailurePolicy {
	case "dead-letter", "halt":
	default:
		errs = append(errs, fmt.Errorf("unknown failure policy %q", c.Indexer.FailurePolicy))
	}
	switch c.Indexer.FilterMode {
	case "event_type", "module":
	default:
		errs = append(errs, fmt.Errorf("unknown filter mode %q", c.Indexer.FilterMode))
	}
	if err := c.validateStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateAPI reports every setting the query API binary cannot run without.
func (c *Config) ValidateAPI() error {
	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	if !c.Indexer.UseMemory && c.Postgres.DSN == "" {
		return errors.New("postgres dsn is required (DATABASE_URL), or enable use_memory")
	}
	return nil
}

// DebugString renders the configuration for startup logs with passwords masked.
func (c *Config) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sui.rpc_url=%s sui.ws_url=%s sui.package_id=%s sui.module=%s ",
		c.Sui.RPCURL, c.Sui.WSURL, c.Sui.PackageID, c.Sui.Module)
	fmt.Fprintf(&b, "postgres.dsn=%s clickhouse.dsn=%s ",
		MaskDSN(c.Postgres.DSN), MaskDSN(c.Clickhouse.DSN))
	fmt.Fprintf(&b, "indexer.page_limit=%d indexer.failure_policy=%s indexer.filter_mode=%s indexer.parallel=%t indexer.use_memory=%t ",
		c.Indexer.PageLimit, c.Indexer.FailurePolicy, c.Indexer.FilterMode, c.Indexer.Parallel, c.Indexer.UseMemory)
	fmt.Fprintf(&b, "http.addr=%s logging.level=%s logging.format=%s",
		c.HTTP.Addr, c.Logging.Level, c.Logging.Format)
	return b.String()
}

// MaskDSN hides the password of a URL-style DSN.
func MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
