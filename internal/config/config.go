// Package config loads registry configuration from defaults, an optional YAML file and
// the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/attestation_layer/internal/registry"
)

// Config is the full process configuration.
type Config struct {
	Chain    ChainConfig    `yaml:"chain"`
	Registry RegistryConfig `yaml:"registry"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Scan     ScanConfig     `yaml:"scan"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ChainConfig configures the node connection.
type ChainConfig struct {
	RPCURL    string        `yaml:"rpc_url" env:"SUI_RPC_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"SUI_RPC_TIMEOUT"`
	RateLimit float64       `yaml:"rate_limit" env:"SUI_RPC_RATE_LIMIT"`
	GasBudget uint64        `yaml:"gas_budget" env:"REGISTRY_GAS_BUDGET"`
	// SignerKey is never read from the YAML file.
	SignerKey string `yaml:"-" env:"REGISTRY_SIGNER_KEY"`
}

// RegistryConfig locates the Move package.
type RegistryConfig struct {
	PackageID           string `yaml:"package_id" env:"REGISTRY_PACKAGE_ID"`
	Module              string `yaml:"module" env:"REGISTRY_MODULE"`
	CreateSchemaFn      string `yaml:"create_schema_fn" env:"REGISTRY_CREATE_SCHEMA_FN"`
	CreateAttestationFn string `yaml:"create_attestation_fn" env:"REGISTRY_CREATE_ATTESTATION_FN"`
	ClockObjectID       string `yaml:"clock_object_id" env:"REGISTRY_CLOCK_OBJECT_ID"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr      string  `yaml:"addr" env:"HTTP_ADDR"`
	RateLimit float64 `yaml:"rate_limit" env:"HTTP_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"HTTP_RATE_BURST"`
	// CORSOrigins is semicolon separated in the environment.
	CORSOrigins []string `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS"`
	// TrustedProxies may set X-Forwarded-For for rate limiting. IPs or CIDRs,
	// semicolon separated in the environment.
	TrustedProxies []string      `yaml:"trusted_proxies" env:"HTTP_TRUSTED_PROXIES"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
}

// DatabaseConfig configures the mirror database. An empty URL selects the memory mirror.
type DatabaseConfig struct {
	URL string `yaml:"-" env:"DATABASE_URL"`
}

// MirrorConfig configures mirror backfill.
type MirrorConfig struct {
	Schedule string `yaml:"schedule" env:"SYNC_SCHEDULE"`
	PageSize int    `yaml:"page_size" env:"SYNC_PAGE_SIZE"`
	MaxPages int    `yaml:"max_pages" env:"SYNC_MAX_PAGES"`
}

// ScanConfig tunes history scans.
type ScanConfig struct {
	RetryAttempts        int           `yaml:"retry_attempts" env:"SCAN_RETRY_ATTEMPTS"`
	RetryDelay           time.Duration `yaml:"retry_delay" env:"SCAN_RETRY_DELAY"`
	MaxPages             int           `yaml:"max_pages" env:"SCAN_MAX_PAGES"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches" env:"SCAN_MAX_CONCURRENT_FETCHES"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	contract := registry.DefaultContract("")
	return &Config{
		Chain: ChainConfig{
			Timeout:   15 * time.Second,
			RateLimit: 20,
		},
		Registry: RegistryConfig{
			Module:              contract.Module,
			CreateSchemaFn:      contract.CreateSchemaFn,
			CreateAttestationFn: contract.CreateAttestationFn,
			ClockObjectID:       contract.ClockObjectID,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			RateLimit:    10,
			RateBurst:    20,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Mirror: MirrorConfig{
			Schedule: "@every 1m",
			PageSize: 50,
			MaxPages: 20,
		},
		Scan: ScanConfig{
			RetryAttempts:        registry.DefaultRetryAttempts,
			RetryDelay:           registry.DefaultRetryDelay,
			MaxPages:             registry.DefaultMaxScanPages,
			MaxConcurrentFetches: registry.DefaultMaxConcurrentFetches,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadDotEnv loads .env style files into the process environment when present.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and bounds.
func (c *Config) Validate() error {
	var problems []string

	if c.Chain.RPCURL == "" {
		problems = append(problems, "chain.rpc_url (SUI_RPC_URL) is required")
	}
	if err := c.Contract().Validate(); err != nil {
		problems = append(problems, "registry: "+err.Error())
	}
	if c.Chain.RateLimit < 0 || c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		problems = append(problems, "rate limits must be positive")
	}
	if c.Scan.RetryAttempts < 1 {
		problems = append(problems, "scan.retry_attempts must be at least 1")
	}
	if c.Scan.RetryDelay < 0 {
		problems = append(problems, "scan.retry_delay must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Contract returns the registry contract described by the configuration.
func (c *Config) Contract() registry.Contract {
	return registry.Contract{
		PackageID:           c.Registry.PackageID,
		Module:              c.Registry.Module,
		CreateSchemaFn:      c.Registry.CreateSchemaFn,
		CreateAttestationFn: c.Registry.CreateAttestationFn,
		ClockObjectID:       c.Registry.ClockObjectID,
	}
}

// ReadOnly reports whether no signer is configured; write endpoints are then disabled.
func (c *Config) ReadOnly() bool {
	return c.Chain.SignerKey == ""
}
