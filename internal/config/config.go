// Package config loads thunder settings from a YAML file and THUNDER_* environment variables.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "thunder.yaml"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Model     ModelConfig     `yaml:"model"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Templates TemplatesConfig `yaml:"templates"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	MCPPort int    `yaml:"mcp_port"`
}

type StoreConfig struct {
	Kind       string        `yaml:"kind"`
	Dir        string        `yaml:"dir"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisPass  string        `yaml:"redis_password"`
	RedisDB    int           `yaml:"redis_db"`
	RedisTTL   time.Duration `yaml:"redis_ttl"`
	SQLitePath string        `yaml:"sqlite_path"`
	// EncryptionKey is a 32 byte key, hex or base64 encoded. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	Redact        []string `yaml:"redact"`
}

type ModelConfig struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
}

type SandboxConfig struct {
	// Dir holds one working directory per session. Empty disables the sandbox.
	Dir          string `yaml:"dir"`
	CommandsFile string `yaml:"commands_file"`
	Inline       bool   `yaml:"inline"`
}

type TemplatesConfig struct {
	// Dir is a loam template library. Empty uses the built-in templates.
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080", MCPPort: 8081},
		Store:   StoreConfig{Kind: StoreMemory, Dir: ".thunder/sessions", RedisAddr: "localhost:6379", SQLitePath: ".thunder/sessions.db"},
		Model:   ModelConfig{Name: "gemini-2.5-pro"},
		Sandbox: SandboxConfig{CommandsFile: "commands.yaml"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	// Order matters: THUNDER_API_KEY wins over GEMINI_API_KEY.
	vars := []struct {
		key string
		dst *string
	}{
		{"THUNDER_ADDR", &c.Server.Addr},
		{"THUNDER_STORE", &c.Store.Kind},
		{"THUNDER_STORE_DIR", &c.Store.Dir},
		{"THUNDER_REDIS_ADDR", &c.Store.RedisAddr},
		{"THUNDER_REDIS_PASSWORD", &c.Store.RedisPass},
		{"THUNDER_SQLITE_PATH", &c.Store.SQLitePath},
		{"THUNDER_ENCRYPTION_KEY", &c.Store.EncryptionKey},
		{"THUNDER_MODEL", &c.Model.Name},
		{"GEMINI_API_KEY", &c.Model.APIKey},
		{"THUNDER_API_KEY", &c.Model.APIKey},
		{"THUNDER_SANDBOX_DIR", &c.Sandbox.Dir},
		{"THUNDER_COMMANDS_FILE", &c.Sandbox.CommandsFile},
		{"THUNDER_TEMPLATES_DIR", &c.Templates.Dir},
		{"THUNDER_LOG_LEVEL", &c.Log.Level},
		{"THUNDER_LOG_FILE", &c.Log.File},
	}
	for _, v := range vars {
		if val, ok := lookup(v.key); ok {
			*v.dst = val
		}
	}

	if v, ok := lookup("THUNDER_MCP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("THUNDER_MCP_PORT: %w", err)
		}
		c.Server.MCPPort = port
	}
	if v, ok := lookup("THUNDER_REDIS_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("THUNDER_REDIS_TTL: %w", err)
		}
		c.Store.RedisTTL = ttl
	}
	return nil
}

// Validate checks enumerations and keys.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if c.Store.EncryptionKey != "" {
		if _, err := DecodeKey(c.Store.EncryptionKey); err != nil {
			return fmt.Errorf("encryption_key: %w", err)
		}
	}
	for i, k := range c.Store.FallbackKeys {
		if _, err := DecodeKey(k); err != nil {
			return fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
	}
	return nil
}

// DecodeKey accepts a 32 byte key encoded as hex or standard base64.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, errors.New("key must be 32 bytes, hex or base64 encoded")
}
