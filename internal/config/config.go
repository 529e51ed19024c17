package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service.
// Structural settings come from the JSON file; credentials come from the
// environment (see FromEnv) so they never land in a checked-in file.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Turnitin    TurnitinConfig            `json:"turnitin"`

	// Filled from the environment, never from the JSON file.
	BotToken string `json:"-"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	UploadDir         string `json:"upload_dir"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
	SessionTTL        int    `json:"session_ttl"`         // minutes
	SessionCapacity   int    `json:"session_capacity"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// TurnitinConfig holds vendor polling knobs; the API key and base URL come
// from the environment.
type TurnitinConfig struct {
	BaseURL      string `json:"-"`
	APIKey       string `json:"-"`
	PollInterval int    `json:"poll_interval"` // seconds, defaults to 5
	MaxAttempts  int    `json:"max_attempts"`  // defaults to 60
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.UploadDir == "" {
		cfg.BasicConfig.UploadDir = "./data/uploads"
	}
	if !filepath.IsAbs(cfg.BasicConfig.UploadDir) {
		cfg.BasicConfig.UploadDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.UploadDir)
	}

	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv pulls credentials out of the environment and fails fast when any
// is absent. A typo'd variable name must stop the process at startup, not
// silently degrade it.
func (c *Config) FromEnv() error {
	c.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}

	c.Turnitin.APIKey = strings.TrimSpace(os.Getenv("TURNITIN_API_KEY"))
	if c.Turnitin.APIKey == "" {
		return fmt.Errorf("TURNITIN_API_KEY is not set")
	}
	c.Turnitin.BaseURL = strings.TrimSpace(os.Getenv("TURNITIN_API_URL"))
	if c.Turnitin.BaseURL == "" {
		return fmt.Errorf("TURNITIN_API_URL is not set")
	}
	return nil
}
