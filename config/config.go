// Package config loads ProKnow SDK settings from an HCL file or the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"
)

const (
	DefaultLogLevel           = "info"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRateLimit          = 20.0
	DefaultLockRenewalBuffer  = 30 * time.Second
	DefaultDownloadRetryDelay = 200 * time.Millisecond
	DefaultDownloadMaxRetries = 150
)

// Environment variables read by FromEnv.
const (
	EnvBaseURL           = "PROKNOW_BASE_URL"
	EnvCredentialsFile   = "PROKNOW_CREDENTIALS_FILE"
	EnvCredentialsID     = "PROKNOW_CREDENTIALS_ID"
	EnvCredentialsSecret = "PROKNOW_CREDENTIALS_SECRET"
	EnvLogLevel          = "PROKNOW_LOG_LEVEL"
	EnvRequestTimeout    = "PROKNOW_REQUEST_TIMEOUT"
	EnvMaxRetries        = "PROKNOW_MAX_RETRIES"
)

var (
	ErrMissingBaseURL     = errors.New("config: base_url is required")
	ErrInvalidBaseURL     = errors.New("config: base_url must be an absolute http(s) URL")
	ErrMissingCredentials = errors.New("config: credentials are required")
	ErrInvalidDuration    = errors.New("config: invalid duration")
)

// Config represents the SDK configuration from HCL.
type Config struct {
	// BaseURL is the ProKnow domain, e.g. https://example.proknow.com
	BaseURL string `hcl:"base_url"`

	// Credentials are taken from CredentialsID/CredentialsSecret when both are set,
	// otherwise from the JSON file downloaded from the ProKnow user profile.
	CredentialsFile   string `hcl:"credentials_file,optional"`
	CredentialsID     string `hcl:"credentials_id,optional"`
	CredentialsSecret string `hcl:"credentials_secret,optional"`

	LogLevel          string  `hcl:"log_level,optional"`
	RequestTimeout    string  `hcl:"request_timeout,optional"` // e.g. "30s"
	MaxRetries        int     `hcl:"max_retries,optional"`
	RateLimit         float64 `hcl:"rate_limit,optional"` // requests per second
	LockRenewalBuffer string  `hcl:"lock_renewal_buffer,optional"`

	Download *DownloadConfig `hcl:"download,block"`
}

// DownloadConfig controls how long a DICOM export is awaited.
type DownloadConfig struct {
	RetryDelay string `hcl:"retry_delay,optional"`
	MaxRetries int    `hcl:"max_retries,optional"`
}

// Credentials is the ProKnow API key pair.
type Credentials struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// Default returns a Config with every optional value set to its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadFile loads the configuration from an HCL (or HCL-JSON) file.
func LoadFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration file path is required")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	var cfg Config
	if err := hclsimple.DecodeFile(filename, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// FromEnv builds a Config from PROKNOW_* environment variables. The given env
// files are loaded first; with none given, ./.env is loaded if it exists.
// Variables already set in the process environment win over file values.
func FromEnv(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		BaseURL:           os.Getenv(EnvBaseURL),
		CredentialsFile:   os.Getenv(EnvCredentialsFile),
		CredentialsID:     os.Getenv(EnvCredentialsID),
		CredentialsSecret: os.Getenv(EnvCredentialsSecret),
		LogLevel:          os.Getenv(EnvLogLevel),
		RequestTimeout:    os.Getenv(EnvRequestTimeout),
	}

	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvMaxRetries, v, err)
		}
		cfg.MaxRetries = n
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = DefaultRequestTimeout.String()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.LockRenewalBuffer == "" {
		cfg.LockRenewalBuffer = DefaultLockRenewalBuffer.String()
	}
	if cfg.Download == nil {
		cfg.Download = &DownloadConfig{}
	}
	if cfg.Download.RetryDelay == "" {
		cfg.Download.RetryDelay = DefaultDownloadRetryDelay.String()
	}
	if cfg.Download.MaxRetries == 0 {
		cfg.Download.MaxRetries = DefaultDownloadMaxRetries
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
}

// Validate checks that the configuration can be used to build a client.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}

	hasPair := c.CredentialsID != "" && c.CredentialsSecret != ""
	if !hasPair && c.CredentialsFile == "" {
		return ErrMissingCredentials
	}

	durations := map[string]string{
		"request_timeout":     c.RequestTimeout,
		"lock_renewal_buffer": c.LockRenewalBuffer,
	}
	if c.Download != nil {
		durations["download.retry_delay"] = c.Download.RetryDelay
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("%w: %s = %q", ErrInvalidDuration, name, v)
		}
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative, got %v", c.RateLimit)
	}

	return nil
}

// Credentials resolves the API key pair, reading CredentialsFile when the
// inline pair is not set.
func (c *Config) Credentials() (Credentials, error) {
	if c.CredentialsID != "" && c.CredentialsSecret != "" {
		return Credentials{ID: c.CredentialsID, Secret: c.CredentialsSecret}, nil
	}
	if c.CredentialsFile == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return LoadCredentials(c.CredentialsFile)
}

// LoadCredentials reads a ProKnow credentials JSON file ({"id": ..., "secret": ...}).
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	if creds.ID == "" || creds.Secret == "" {
		return Credentials{}, fmt.Errorf("%w: %s has no id or secret", ErrMissingCredentials, path)
	}

	return creds, nil
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return durationOr(c.RequestTimeout, DefaultRequestTimeout)
}

// RenewalBuffer returns how long before lock expiry the renewer acts.
func (c *Config) RenewalBuffer() time.Duration {
	return durationOr(c.LockRenewalBuffer, DefaultLockRenewalBuffer)
}

// DownloadRetryDelay returns the pause between DICOM export readiness checks.
func (c *Config) DownloadRetryDelay() time.Duration {
	if c.Download == nil {
		return DefaultDownloadRetryDelay
	}
	return durationOr(c.Download.RetryDelay, DefaultDownloadRetryDelay)
}

// DownloadMaxRetries returns how many readiness checks are made before giving up.
func (c *Config) DownloadMaxRetries() int {
	if c.Download == nil || c.Download.MaxRetries <= 0 {
		return DefaultDownloadMaxRetries
	}
	return c.Download.MaxRetries
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
