// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Server configuration: YAML loading, defaults, validation and a
// thread-safe live snapshot with reload propagation.

package control

import (
	"os"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every tunable of the message server.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	// PathPrefix is prepended to every action route.
	PathPrefix string `yaml:"path_prefix"`

	// MaxFrameSize is the auto-fragmentation threshold for outbound
	// messages. Explicit frames (SendMore) are never split.
	MaxFrameSize   int           `yaml:"max_frame_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBufferSize int           `yaml:"send_buffer_size"`
	// QueueLimit bounds the inbound frames queued per connection; 0 is
	// unbounded.
	QueueLimit int `yaml:"queue_limit"`
	// MaxMessageSize caps a reassembled inbound message; larger ones are
	// refused with close 1009. 0 is unbounded.
	MaxMessageSize int `yaml:"max_message_size"`
	// UpgradeRate limits accepted upgrades per second; 0 disables the limit.
	UpgradeRate     float64       `yaml:"upgrade_rate"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	LengthPrefix int `yaml:"length_prefix"`
	BulkLines    int `yaml:"bulk_lines"`
	FrameCount   int `yaml:"frame_count"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ShardCount int `yaml:"shard_count"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":9001",
		PathPrefix:      "/",
		MaxFrameSize:    4096,
		WriteTimeout:    10 * time.Second,
		QueueLimit:      4096,
		MaxMessageSize:  32 << 20,
		ShutdownTimeout: 5 * time.Second,
		LengthPrefix:    10,
		BulkLines:       10000,
		FrameCount:      1000,
		LogLevel:        "info",
		LogFormat:       "json",
		ShardCount:      16,
	}
}

// LoadConfig reads a YAML file. Keys absent from the file keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config").With("path", path)
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return errors.Wrap(ErrInvalidConfig, "listen_addr is empty")
	case c.MaxFrameSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "max_frame_size: %d", c.MaxFrameSize)
	case c.WriteTimeout < 0:
		return errors.Wrapf(ErrInvalidConfig, "write_timeout: %s", c.WriteTimeout)
	case c.SendBufferSize < 0:
		return errors.Wrapf(ErrInvalidConfig, "send_buffer_size: %d", c.SendBufferSize)
	case c.QueueLimit < 0:
		return errors.Wrapf(ErrInvalidConfig, "queue_limit: %d", c.QueueLimit)
	case c.MaxMessageSize < 0:
		return errors.Wrapf(ErrInvalidConfig, "max_message_size: %d", c.MaxMessageSize)
	case c.UpgradeRate < 0:
		return errors.Wrapf(ErrInvalidConfig, "upgrade_rate: %v", c.UpgradeRate)
	case c.LengthPrefix <= 0:
		return errors.Wrapf(ErrInvalidConfig, "length_prefix: %d", c.LengthPrefix)
	case c.BulkLines <= 0:
		return errors.Wrapf(ErrInvalidConfig, "bulk_lines: %d", c.BulkLines)
	case c.FrameCount <= 0:
		return errors.Wrapf(ErrInvalidConfig, "frame_count: %d", c.FrameCount)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log_format: %q", c.LogFormat)
	}
	return nil
}

// ConfigStore holds the live configuration and notifies listeners when it
// is replaced.
type ConfigStore struct {
	mu        sync.RWMutex
	config    *Config
	listeners []func(*Config)
}

// NewConfigStore initializes a store with cfg, or the defaults when nil.
func NewConfigStore(cfg *Config) *ConfigStore {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &ConfigStore{config: cfg}
}

// Snapshot returns a copy of the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return *cs.config
}

// Set validates and installs cfg, then runs the reload listeners in
// registration order.
func (cs *ConfigStore) Set(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.config = cfg
	listeners := append([]func(*Config){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Reload loads path and installs the result.
func (cs *ConfigStore) Reload(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return cs.Set(cfg)
}

// OnReload registers a listener called after each successful Set.
func (cs *ConfigStore) OnReload(fn func(*Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
