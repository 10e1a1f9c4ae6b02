// Package config resolves the engine settings from defaults, a YAML file,
// SPLITDL_* environment variables. Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tanq16/splitdl/internal/utils"
)

// Config holds every value the download engine needs.
type Config struct {
	// Workers is the number of chunks per file.
	Workers int
	// BufferSize is the I/O write granularity in bytes.
	BufferSize int
	// PoolSize is the idle connection limit per host.
	PoolSize int
	// Retries is the number of whole-file attempts.
	Retries int
	// MinParallelSize is the byte threshold below which chunking is skipped.
	MinParallelSize int64
	// MaxConcurrentFiles bounds whole-file concurrency; 0 means auto.
	MaxConcurrentFiles int
	// Continue resumes from partial chunk files left by an earlier run.
	Continue bool
	// DeferCleanup keeps chunk files until the whole merge succeeded.
	DeferCleanup bool
	// MaxBackoff caps the retry sleep; 0 leaves it uncapped.
	MaxBackoff time.Duration

	Timeout          time.Duration
	ConnectTimeout   time.Duration
	KeepAliveTimeout time.Duration
	UserAgent        string
	Proxy            string
	Headers          map[string]string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Workers:          4,
		BufferSize:       utils.DefaultBufferSize,
		PoolSize:         utils.DefaultPoolSize,
		Retries:          3,
		MinParallelSize:  5 * 1024 * 1024,
		Timeout:          utils.DefaultTimeout,
		ConnectTimeout:   utils.DefaultConnectTimeout,
		KeepAliveTimeout: utils.DefaultKATimeout,
		UserAgent:        utils.ToolUserAgent,
	}
}

// yamlConfig is the on-disk shape; sizes and durations are strings.
type yamlConfig struct {
	Workers            int               `yaml:"workers"`
	BufferSize         string            `yaml:"buffer_size"`
	PoolSize           int               `yaml:"pool_size"`
	Retries            int               `yaml:"retries"`
	MinParallelSize    string            `yaml:"min_parallel_size"`
	MaxConcurrentFiles int               `yaml:"max_concurrent_files"`
	Continue           bool              `yaml:"continue"`
	DeferCleanup       bool              `yaml:"defer_cleanup"`
	MaxBackoff         string            `yaml:"max_backoff"`
	Timeout            string            `yaml:"timeout"`
	ConnectTimeout     string            `yaml:"connect_timeout"`
	KeepAliveTimeout   string            `yaml:"keep_alive_timeout"`
	UserAgent          string            `yaml:"user_agent"`
	Proxy              string            `yaml:"proxy"`
	Headers            map[string]string `yaml:"headers"`
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "splitdl", "config.yaml")
}

// LoadFromFile reads path on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.BufferSize != "" {
		size, err := utils.ParseBytes(yc.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse buffer_size: %w", err)
		}
		cfg.BufferSize = int(size)
	}
	if yc.PoolSize != 0 {
		cfg.PoolSize = yc.PoolSize
	}
	if yc.Retries != 0 {
		cfg.Retries = yc.Retries
	}
	if yc.MinParallelSize != "" {
		size, err := utils.ParseBytes(yc.MinParallelSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse min_parallel_size: %w", err)
		}
		cfg.MinParallelSize = size
	}
	cfg.MaxConcurrentFiles = yc.MaxConcurrentFiles
	cfg.Continue = yc.Continue
	cfg.DeferCleanup = yc.DeferCleanup
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"max_backoff", yc.MaxBackoff, &cfg.MaxBackoff},
		{"timeout", yc.Timeout, &cfg.Timeout},
		{"connect_timeout", yc.ConnectTimeout, &cfg.ConnectTimeout},
		{"keep_alive_timeout", yc.KeepAliveTimeout, &cfg.KeepAliveTimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	cfg.Proxy = yc.Proxy
	cfg.Headers = yc.Headers
	return cfg, nil
}

// LoadFromEnv applies SPLITDL_* environment variables onto c.
func (c *Config) LoadFromEnv() error {
	intVars := []struct {
		name string
		dst  *int
	}{
		{"SPLITDL_WORKERS", &c.Workers},
		{"SPLITDL_POOL_SIZE", &c.PoolSize},
		{"SPLITDL_RETRIES", &c.Retries},
		{"SPLITDL_MAX_CONCURRENT_FILES", &c.MaxConcurrentFiles},
	}
	for _, v := range intVars {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", v.name, err)
		}
		*v.dst = n
	}
	if v := os.Getenv("SPLITDL_BUFFER_SIZE"); v != "" {
		size, err := utils.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse SPLITDL_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = int(size)
	}
	if v := os.Getenv("SPLITDL_MIN_PARALLEL_SIZE"); v != "" {
		size, err := utils.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse SPLITDL_MIN_PARALLEL_SIZE: %w", err)
		}
		c.MinParallelSize = size
	}
	if v := os.Getenv("SPLITDL_CONTINUE"); v != "" {
		c.Continue = v == "true" || v == "1"
	}
	if v := os.Getenv("SPLITDL_DEFER_CLEANUP"); v != "" {
		c.DeferCleanup = v == "true" || v == "1"
	}
	if v := os.Getenv("SPLITDL_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SPLITDL_MAX_BACKOFF: %w", err)
		}
		c.MaxBackoff = d
	}
	if v := os.Getenv("SPLITDL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SPLITDL_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("SPLITDL_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("SPLITDL_PROXY"); v != "" {
		c.Proxy = v
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, errors.New("config: workers must be positive"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, errors.New("config: buffer_size must be positive"))
	}
	if c.Retries <= 0 {
		errs = append(errs, errors.New("config: retries must be positive"))
	}
	if c.MinParallelSize < 0 {
		errs = append(errs, errors.New("config: min_parallel_size must not be negative"))
	}
	if c.MaxConcurrentFiles < 0 {
		errs = append(errs, errors.New("config: max_concurrent_files must not be negative"))
	}
	if c.MaxBackoff < 0 {
		errs = append(errs, errors.New("config: max_backoff must not be negative"))
	}
	if c.Proxy != "" {
		if !strings.Contains(c.Proxy, "://") {
			errs = append(errs, fmt.Errorf("config: proxy %q needs a scheme", c.Proxy))
		} else if u, err := url.Parse(c.Proxy); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: invalid proxy %q", c.Proxy))
		}
	}
	return errors.Join(errs...)
}

// MaxFiles returns MaxConcurrentFiles, or min(8, max(1, 16/workers)) when
// it is unset.
func (c *Config) MaxFiles() int {
	if c.MaxConcurrentFiles > 0 {
		return c.MaxConcurrentFiles
	}
	return min(8, max(1, 16/max(1, c.Workers)))
}

// HTTPClientConfig maps the transport settings onto the shared client.
func (c *Config) HTTPClientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:        c.Timeout,
		ConnectTimeout: c.ConnectTimeout,
		KATimeout:      c.KeepAliveTimeout,
		ProxyURL:       c.Proxy,
		UserAgent:      c.UserAgent,
		Headers:        c.Headers,
		PoolSize:       c.PoolSize,
		HighThreadMode: c.Workers > 5,
	}
}
