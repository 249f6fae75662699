// Package config provides configuration handling for the marketing team runner.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Agents configuration
	Agents AgentsConfig `json:"agents"`

	// LLM configuration
	LLM LLMConfig `json:"llm"`

	// Naver API credentials
	Naver NaverConfig `json:"naver"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Dashboard configuration
	Dashboard DashboardConfig `json:"dashboard"`

	// Logging configuration
	Logging logging.LogConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`
}

// StorageConfig contains run log and artifact storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type"` // "file", "memory", "redis"

	// OutputDir is where the file backend keeps logs, status and artifacts
	OutputDir string `json:"output_dir"`

	// Redis configuration
	Redis RedisConfig `json:"redis"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	// Addr is host:port of the Redis server
	Addr string `json:"addr"`

	// Password for AUTH, empty for none
	Password string `json:"password"`

	// DB index
	DB int `json:"db"`

	// KeyPrefix namespaces every key
	KeyPrefix string `json:"key_prefix"`
}

// AgentsConfig locates agent definitions
type AgentsConfig struct {
	// Dir holds one subdirectory per team
	Dir string `json:"dir"`

	// SkillsDir holds skill documents appended to prompts
	SkillsDir string `json:"skills_dir"`

	// CapabilitiesFile optionally overrides the agent to skill table (YAML)
	CapabilitiesFile string `json:"capabilities_file"`
}

// LLMConfig contains model call settings
type LLMConfig struct {
	// Provider is "openai", "anthropic" or "generic"
	Provider string `json:"provider"`

	// Model name
	Model string `json:"model"`

	// APIKey for the provider
	APIKey string `json:"api_key"`

	// BaseURL overrides the provider endpoint
	BaseURL string `json:"base_url"`

	// Temperature for sampling
	Temperature float64 `json:"temperature"`

	// MaxTokens caps the response length
	MaxTokens int `json:"max_tokens"`

	// Simulate returns canned text instead of calling a model
	Simulate bool `json:"simulate"`

	// SimulateDelayMS is the artificial latency of simulated calls
	SimulateDelayMS int `json:"simulate_delay_ms"`
}

// SimulateDelay returns the simulated call latency.
func (c LLMConfig) SimulateDelay() time.Duration {
	return time.Duration(c.SimulateDelayMS) * time.Millisecond
}

// NaverConfig contains Naver Search Ad and Open API credentials
type NaverConfig struct {
	SearchAdAPIKey    string `json:"search_ad_api_key"`
	SearchAdSecretKey string `json:"search_ad_secret_key"`
	CustomerID        string `json:"customer_id"`
	ClientID          string `json:"client_id"`
	ClientSecret      string `json:"client_secret"`
}

// Enabled reports whether any Naver credential is configured.
func (c NaverConfig) Enabled() bool {
	return c.SearchAdAPIKey != "" || c.ClientID != ""
}

// AuthConfig contains authentication settings for control endpoints
type AuthConfig struct {
	// JWTSecret signs operator tokens; empty disables auth
	JWTSecret string `json:"jwt_secret"`

	// TokenExpiration is the token expiration time in hours
	TokenExpiration int `json:"token_expiration"`
}

// DashboardConfig contains poller settings
type DashboardConfig struct {
	// PollIntervalMS is how often pollers re-read the store
	PollIntervalMS int `json:"poll_interval_ms"`

	// LogLimit is how many log entries pollers fetch
	LogLimit int `json:"log_limit"`
}

// PollInterval returns the poll interval as a duration.
func (c DashboardConfig) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so partial files stay usable
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Locate returns the first readable configuration from the standard locations,
// or the default configuration when none exists.
func Locate(explicit string) (*Config, error) {
	if explicit != "" {
		cfg, err := LoadConfig(explicit)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", explicit, err)
		}
		return cfg, nil
	}

	locations := []string{
		"./config.json",
		"./configs/config.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".marketing-team", "config.json"))
	}
	for _, path := range locations {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg, nil
		}
	}
	return DefaultConfig(), nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8501,
		},
		Storage: StorageConfig{
			Type:      "file",
			OutputDir: "outputs",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "marketing_team:",
			},
		},
		Agents: AgentsConfig{
			Dir:       "agents",
			SkillsDir: filepath.Join("skills", "naver_api"),
		},
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o",
			Temperature:     0.7,
			Simulate:        true,
			SimulateDelayMS: 2000,
		},
		Auth: AuthConfig{
			TokenExpiration: 24,
		},
		Dashboard: DashboardConfig{
			PollIntervalMS: 1000,
			LogLimit:       100,
		},
		Logging: logging.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	switch c.LLM.Provider {
	case "anthropic":
		set(&c.LLM.APIKey, "ANTHROPIC_API_KEY")
	default:
		set(&c.LLM.APIKey, "OPENAI_API_KEY")
	}
	set(&c.Naver.SearchAdAPIKey, "NAVER_SEARCH_AD_API_KEY")
	set(&c.Naver.SearchAdSecretKey, "NAVER_SEARCH_AD_SECRET_KEY")
	set(&c.Naver.CustomerID, "NAVER_CUSTOMER_ID")
	set(&c.Naver.ClientID, "NAVER_CLIENT_ID")
	set(&c.Naver.ClientSecret, "NAVER_CLIENT_SECRET")
	set(&c.Auth.JWTSecret, "MARKETING_TEAM_JWT_SECRET")
	set(&c.Storage.Redis.Addr, "REDIS_ADDR")

	if v := getenv("MARKETING_TEAM_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LLM.Simulate = b
		}
	}
}

// Validate reports configuration combinations that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "file":
		if c.Storage.OutputDir == "" {
			return fmt.Errorf("storage.output_dir is required for file storage")
		}
	case "memory":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for redis storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Agents.Dir == "" {
		return fmt.Errorf("agents.dir is required")
	}

	if !c.LLM.Simulate {
		switch c.LLM.Provider {
		case "openai", "anthropic":
			if c.LLM.APIKey == "" {
				return fmt.Errorf("llm.api_key is required for provider %s", c.LLM.Provider)
			}
		case "generic":
			if c.LLM.BaseURL == "" {
				return fmt.Errorf("llm.base_url is required for the generic provider")
			}
		default:
			return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Create the directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal the JSON
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
