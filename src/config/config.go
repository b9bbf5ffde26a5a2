package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"market-sync/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKET_SYNC_"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// DefaultConfig returns the settings used for keys absent from the YAML file.
func DefaultConfig() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:     "market-sync",
		Host:     "127.0.0.1",
		Port:     8091,
		LogLevel: "INFO",
		GrpcHost: "127.0.0.1",
		GrpcPort: 50051,
		Engine: models.MEngineConfig{
			WSURL:                   "ws://127.0.0.1:8090/ws",
			CommandURL:              "http://127.0.0.1:8090/command",
			ReconnectDelayMs:        1000,
			HandshakeTimeoutSeconds: 10,
		},
		Notice: models.MNoticeConfig{ExpiryMs: 5000},
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: "file:journal?mode=memory&cache=shared",
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig loads configPath over the defaults, then a .env file next to the
// working directory, then MARKET_SYNC_* environment variables.
func NewConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal over the defaults
	if err := yaml.Unmarshal(data, config.MConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides settings from lookup, usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s must be an integer: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("HOST", &c.Host)
	str("LOG_LEVEL", &c.LogLevel)
	str("GRPC_HOST", &c.GrpcHost)
	str("ENGINE_WS_URL", &c.Engine.WSURL)
	str("ENGINE_COMMAND_URL", &c.Engine.CommandURL)
	str("DB_PATH", &c.Storage.DBPath)

	for key, dst := range map[string]*int{
		"PORT":               &c.Port,
		"GRPC_PORT":          &c.GrpcPort,
		"RECONNECT_DELAY_MS": &c.Engine.ReconnectDelayMs,
		"NOTICE_EXPIRY_MS":   &c.Notice.ExpiryMs,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	// Bridge
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	// Control service, 0 disables it
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be 0 or between 1025 and 65535)", c.GrpcPort)
	}
	if c.GrpcPort != 0 && c.GrpcPort == c.Port {
		return fmt.Errorf("grpc port and server port must differ")
	}

	// Engine
	if err := checkURL(c.Engine.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("engine ws_url: %w", err)
	}
	if err := checkURL(c.Engine.CommandURL, "http", "https"); err != nil {
		return fmt.Errorf("engine command_url: %w", err)
	}
	if c.Engine.ReconnectDelayMs <= 0 {
		return fmt.Errorf("reconnect delay must be greater than 0")
	}
	if c.Engine.HandshakeTimeoutSeconds <= 0 {
		return fmt.Errorf("handshake timeout must be greater than 0")
	}

	if c.Notice.ExpiryMs <= 0 {
		return fmt.Errorf("notice expiry must be greater than 0")
	}

	// Journal
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported database type: %q (sqlite or none)", c.Storage.DBType)
	}

	return nil
}

// JournalEnabled reports whether a journal should be opened.
func (c *Config) JournalEnabled() bool {
	return c.Storage.DBType != "none"
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %v", u.Scheme, schemes)
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
