package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/screa/onion-vanity-miner/pkg/prefix"
	"github.com/screa/onion-vanity-miner/pkg/worker"
)

// EnvPrefix is prepended to every environment variable viper reads.
const EnvPrefix = "ONION_MINER"

// Errors
var (
	ErrNoPrefixes      = errors.New("must specify at least one valid prefix with --prefix")
	ErrInvalidGeometry = errors.New("blocks, threads and batches must be positive")
	ErrInvalidLimit    = errors.New("count and timeout must not be negative")
)

// Config holds the application configuration
type Config struct {
	Prefixes    []string
	Count       int // Stop after this many matches, 0 = unlimited
	Timeout     int // Stop after this many seconds, 0 = unlimited
	Blocks      int
	Threads     int
	Batches     int
	Workers     int
	OutputDir   string
	HSDir       string
	LogInterval int // Logging interval in seconds
	LogFile     string
	LogLevel    string
	Verbose     bool
	MetricsAddr string
	ConfigFile  string

	table      *prefix.Table
	rejections []prefix.Rejection
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Blocks:      runtime.NumCPU(),
		Threads:     worker.DefaultThreadsPerBlock,
		Batches:     4,
		Workers:     runtime.NumCPU(),
		OutputDir:   ".",
		LogInterval: 1,
		LogLevel:    "info",
	}
}

// Load overlays values from v, which is expected to have flags bound and
// environment lookup configured (see NewViper). A config file is read when
// ConfigFile or v's "config" key names one.
func (c *Config) Load(v *viper.Viper) error {
	file := v.GetString("config")
	if file == "" {
		file = c.ConfigFile
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", file, err)
		}
		c.ConfigFile = file
	}

	if v.IsSet("prefix") {
		c.Prefixes = v.GetStringSlice("prefix")
	}
	setInt(v, "count", &c.Count)
	setInt(v, "timeout", &c.Timeout)
	setInt(v, "blocks", &c.Blocks)
	setInt(v, "threads", &c.Threads)
	setInt(v, "batches", &c.Batches)
	setInt(v, "workers", &c.Workers)
	setInt(v, "log-interval", &c.LogInterval)
	setString(v, "output-dir", &c.OutputDir)
	setString(v, "hs-dir", &c.HSDir)
	setString(v, "log-file", &c.LogFile)
	setString(v, "log-level", &c.LogLevel)
	setString(v, "metrics-addr", &c.MetricsAddr)
	if v.IsSet("verbose") {
		c.Verbose = v.GetBool("verbose")
	}
	return nil
}

// NewViper returns a viper instance reading ONION_MINER_* environment variables,
// with dashes in keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// Validate validates the configuration and loads the prefix table.
// Individual bad prefixes are not an error; they are available from Rejections.
func (c *Config) Validate() error {
	if c.Blocks <= 0 || c.Threads <= 0 || c.Batches <= 0 {
		return ErrInvalidGeometry
	}
	if c.Count < 0 || c.Timeout < 0 {
		return ErrInvalidLimit
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 1
	}

	c.table, c.rejections = prefix.Load(c.Prefixes)
	if c.table.Len() == 0 {
		return ErrNoPrefixes
	}
	return nil
}

// Table returns the prefix table built by Validate.
func (c *Config) Table() *prefix.Table {
	return c.table
}

// Rejections returns the prefixes dropped by Validate.
func (c *Config) Rejections() []prefix.Rejection {
	return c.rejections
}

// Geometry returns the kernel shape.
func (c *Config) Geometry() worker.Geometry {
	return worker.Geometry{Blocks: c.Blocks, Threads: c.Threads}
}

// TimeoutDuration returns the timeout, 0 when unlimited.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetTargetDescription returns a human-readable description of the target
func (c *Config) GetTargetDescription() string {
	if c.table == nil || c.table.Len() == 0 {
		return "unknown"
	}
	return "prefixes: " + strings.Join(c.table.Prefixes(), ", ")
}
