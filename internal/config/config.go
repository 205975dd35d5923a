package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	DB          DBConfig        `yaml:"db"`
	Log         LogConfig       `yaml:"log"`
	Transport   TransportConfig `yaml:"transport"`
	MCP         MCPConfig       `yaml:"mcp"`
	Redis       RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// TimeZone names the IANA zone used for "today" and date filters.
	TimeZone string `yaml:"time_zone"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	// Mode is "http" or "stdio".
	Mode string `yaml:"mode"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
	// WorkerPIN selects the acting worker in stdio mode.
	WorkerPIN string `yaml:"worker_pin"`
}

type RedisConfig struct {
	// URL enables login throttling when set.
	URL string `yaml:"url"`
}

// Production reports whether cookies should be marked Secure.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Server.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.Server.TimeZone, err)
	}
	return loc, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "batchflow.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a .env file, an optional YAML file and
// environment variables, in increasing precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("BATCHFLOW_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if env := os.Getenv("BATCHFLOW_ENV"); env != "" {
		cfg.Environment = env
	}
	if host := os.Getenv("BATCHFLOW_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("BATCHFLOW_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid BATCHFLOW_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if tz := os.Getenv("BATCHFLOW_TIME_ZONE"); tz != "" {
		cfg.Server.TimeZone = tz
	}
	if dbPath := os.Getenv("BATCHFLOW_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("BATCHFLOW_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("BATCHFLOW_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("BATCHFLOW_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if enabled := os.Getenv("BATCHFLOW_MCP_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid BATCHFLOW_MCP_ENABLED: %w", err)
		}
		cfg.MCP.Enabled = v
	}
	if pin := os.Getenv("BATCHFLOW_MCP_WORKER_PIN"); pin != "" {
		cfg.MCP.WorkerPIN = pin
	}
	if url := os.Getenv("BATCHFLOW_REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	return nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q: want http or stdio", c.Transport.Mode)
	}
	if c.Transport.Mode == "stdio" && c.MCP.WorkerPIN == "" {
		return fmt.Errorf("stdio transport requires mcp.worker_pin")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
