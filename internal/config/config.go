package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/net/idna"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	// RecordTypeA is the marker in Records that enables IPv4 synchronization.
	RecordTypeA = "A"

	DefaultProvider = "cloudflare"
	DefaultIPURL    = "https://ifconfig.me"
	DefaultRedisKey = "yk-ddns:ipv4"
)

// ErrInvalidConfig wraps every problem found while loading the configuration document.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration document. It is loaded once and never mutated afterwards.
type Config struct {
	Token    string   `yaml:"token"`
	Zone     string   `yaml:"zone"`
	Domains  []string `yaml:"domains"`
	Records  []string `yaml:"records"`
	Interval int      `yaml:"interval"` // seconds

	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
	IPURL    string            `yaml:"ip_url"`
	Listen   string            `yaml:"listen"`
	Redis    *RedisConfig      `yaml:"redis"`
}

// RedisConfig selects Redis instead of the cache file for the last-applied address.
type RedisConfig struct {
	Address string `yaml:"address"`
	DB      int    `yaml:"db"`
	Key     string `yaml:"key"`
}

// Load reads, expands and validates the configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file: %w", ErrInvalidConfig, err)
	}

	// Expand ${ENV_VAR} references in secrets.
	cfg.Token = os.ExpandEnv(cfg.Token)
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}

	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.IPURL == "" {
		cfg.IPURL = DefaultIPURL
	}
	if cfg.Redis != nil && cfg.Redis.Key == "" {
		cfg.Redis.Key = DefaultRedisKey
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Provider == DefaultProvider && c.Token == "" && c.Settings["api_token"] == "" {
		errs = append(errs, errors.New("missing required field 'token' (or settings.api_token)"))
	}

	zone, err := normalizeName(c.Zone)
	switch {
	case c.Zone == "":
		errs = append(errs, errors.New("missing required field 'zone'"))
	case err != nil:
		errs = append(errs, fmt.Errorf("zone %q: %w", c.Zone, err))
	default:
		c.Zone = zone
	}

	if len(c.Domains) == 0 {
		errs = append(errs, errors.New("at least one entry in 'domains' is required"))
	}
	for i, d := range c.Domains {
		name, err := normalizeName(d)
		if err != nil || name == "" {
			errs = append(errs, fmt.Errorf("domains[%d] %q is not a valid domain name", i, d))
			continue
		}
		c.Domains[i] = name
	}

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be a positive number of seconds, got %d", c.Interval))
	}

	if c.Redis != nil && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis: missing required field 'address'"))
	}

	return utilerrors.NewAggregate(errs)
}

// IPv4 reports whether A records are enabled.
func (c *Config) IPv4() bool {
	return slices.Contains(c.Records, RecordTypeA)
}

// PollInterval returns the configured interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// normalizeName lower-cases a domain name, drops the trailing dot and converts
// internationalized labels to their ASCII form.
func normalizeName(name string) (string, error) {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	return idna.ToASCII(name)
}
