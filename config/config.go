// Package config loads the application configuration from a JSON file with
// environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level application configuration
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	ProviderConfig ProviderConfig `json:"provider"`
	VaultConfig    VaultConfig    `json:"vault"`
	RedisConfig    RedisConfig    `json:"redis"`
	SnapshotConfig SnapshotConfig `json:"snapshot"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	ParametersFile string         `json:"parameters_file"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// AuthConfig holds API authentication settings
type AuthConfig struct {
	Username          string `json:"username"`
	PasswordHash      string `json:"password_hash"`
	JWTSecret         string `json:"jwt_secret"`
	TokenDurationHrs  int    `json:"token_duration_hours"`
}

// ProviderConfig holds market data provider settings
type ProviderConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	StreamURL string `json:"stream_url"`
	UseVault  bool   `json:"use_vault"`
}

// VaultConfig holds HashiCorp Vault settings
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds kline cache settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SnapshotConfig holds the snapshot database settings
type SnapshotConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// Load reads the configuration file (MARKETFLOW_CONFIG or ./config.json)
// and applies environment overrides
func Load() (*Config, error) {
	cfg := defaultConfig()

	path := os.Getenv("MARKETFLOW_CONFIG")
	if path == "" {
		path = "config.json"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.AuthConfig.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		AuthConfig: AuthConfig{
			Username:         "admin",
			TokenDurationHrs: 24,
		},
		ProviderConfig: ProviderConfig{
			Name:      "polygon",
			StreamURL: "wss://socket.polygon.io/stocks",
		},
		RedisConfig: RedisConfig{
			Addr: "localhost:6379",
		},
		SnapshotConfig: SnapshotConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "marketflow",
			Database: "marketflow",
			SSLMode:  "disable",
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKETFLOW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ServerConfig.Port = port
		}
	}
	if v := os.Getenv("MARKETFLOW_JWT_SECRET"); v != "" {
		cfg.AuthConfig.JWTSecret = v
	}
	if v := os.Getenv("MARKETFLOW_API_PASSWORD_HASH"); v != "" {
		cfg.AuthConfig.PasswordHash = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.ProviderConfig.APIKey = v
	}
	if v := os.Getenv("MARKETFLOW_REDIS_ADDR"); v != "" {
		cfg.RedisConfig.Addr = v
		cfg.RedisConfig.Enabled = true
	}
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		cfg.VaultConfig.Address = v
	}
	if v := os.Getenv("VAULT_TOKEN"); v != "" {
		cfg.VaultConfig.Token = v
	}
	if v := os.Getenv("MARKETFLOW_LOG_LEVEL"); v != "" {
		cfg.LoggingConfig.Level = v
	}
	if v := os.Getenv("MARKETFLOW_PARAMETERS_FILE"); v != "" {
		cfg.ParametersFile = v
	}
}
