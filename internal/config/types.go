// Package config loads virtconn settings from a YAML file, .env files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/ssh/knownhosts"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/virtconn/internal/endpoint"
	"github.com/jbweber/virtconn/internal/libvirt"
	"github.com/jbweber/virtconn/internal/logging"
	"github.com/jbweber/virtconn/internal/output"
	"github.com/jbweber/virtconn/internal/uri"
)

// Environment variables consulted by Load.
const (
	EnvURI        = "VIRTCONN_URI"
	EnvLogLevel   = "VIRTCONN_LOG_LEVEL"
	EnvLogFormat  = "VIRTCONN_LOG_FORMAT"
	EnvOutput     = "VIRTCONN_OUTPUT"
	EnvDefaultURI = "LIBVIRT_DEFAULT_URI"
)

// Config represents the complete client configuration.
type Config struct {
	URI       string          `yaml:"uri,omitempty"` // Connection address; empty lets the daemon pick
	LogLevel  string          `yaml:"log_level,omitempty"`
	LogFormat string          `yaml:"log_format,omitempty"`
	Output    string          `yaml:"output,omitempty"`
	Transport TransportConfig `yaml:"transport,omitempty"`
	KeepAlive KeepAliveConfig `yaml:"keepalive,omitempty"`
}

// TransportConfig tunes how connections are dialed.
type TransportConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	SocketPath            string        `yaml:"socket_path,omitempty"`
	KnownHosts            string        `yaml:"known_hosts,omitempty"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key,omitempty"`
	PKIPath               string        `yaml:"pki_path,omitempty"`
}

// KeepAliveConfig configures connection keep-alive. Interval is in seconds;
// zero disables keep-alive.
type KeepAliveConfig struct {
	Interval int `yaml:"interval,omitempty"`
	Count    int `yaml:"count,omitempty"`
}

// Load builds a Config from path (optional), then envFiles, then the
// process environment. Missing env files are ignored; a missing config file
// is an error only when path is set.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads and parses a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvURI); ok {
		c.URI = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if c.URI == "" {
		c.URI = os.Getenv(EnvDefaultURI)
	}
}

// Normalize trims input and fills defaults.
func (c *Config) Normalize() {
	c.URI = strings.TrimSpace(c.URI)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "auto"
	}
	if c.Output == "" {
		c.Output = string(output.FormatTable)
	}
	if c.KeepAlive.Interval > 0 && c.KeepAlive.Count == 0 {
		c.KeepAlive.Count = 5
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.URI != "" && !endpoint.IsSynthetic(c.URI) {
		if _, err := uri.Parse(c.URI); err != nil {
			return fmt.Errorf("uri is not a valid connection URI: %w", err)
		}
	}

	if err := logging.ValidateLevel(c.LogLevel); err != nil {
		return err
	}
	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		return err
	}
	if err := output.ValidateFormat(c.Output); err != nil {
		return err
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	if c.KeepAlive.Interval < 0 {
		return fmt.Errorf("keepalive.interval must be non-negative, got %d", c.KeepAlive.Interval)
	}
	if c.KeepAlive.Count < 0 {
		return fmt.Errorf("keepalive.count must be non-negative, got %d", c.KeepAlive.Count)
	}

	return nil
}

// Validate checks transport configuration.
func (t *TransportConfig) Validate() error {
	if t.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", t.Timeout)
	}

	// Parse known_hosts up front so a broken file fails before any dial.
	if t.KnownHosts != "" {
		if _, err := knownhosts.New(t.KnownHosts); err != nil {
			return fmt.Errorf("known_hosts is not a valid known_hosts file: %w", err)
		}
	}

	if t.PKIPath != "" {
		info, err := os.Stat(t.PKIPath)
		if err != nil {
			return fmt.Errorf("pki_path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("pki_path must be a directory, got %q", t.PKIPath)
		}
	}

	return nil
}

// Dialer returns the transport settings as a libvirt dialer.
func (t TransportConfig) Dialer() libvirt.Dialer {
	return libvirt.Dialer{
		Timeout:               t.Timeout,
		SocketPath:            t.SocketPath,
		KnownHostsPath:        t.KnownHosts,
		InsecureIgnoreHostKey: t.InsecureIgnoreHostKey,
		PKIPath:               t.PKIPath,
	}
}

// LoggingConfig returns the logging settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}
