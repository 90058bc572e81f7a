package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"news_search/internal/query"

	"github.com/joho/godotenv"
)

const (
	DefaultEndpoint = "https://content.guardianapis.com/search"
	DefaultSubject  = "women"
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Config holds the search endpoint settings and the default preferences.
// Timeouts are in seconds.
type Config struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	PageSize       int    `json:"page_size"`
	FromDate       string `json:"from_date"`
	DefaultSubject string `json:"default_subject"`
	DefaultOrderBy string `json:"default_order_by"`
	ConnectTimeout int    `json:"connect_timeout"`
	ReadTimeout    int    `json:"read_timeout"`
	DatabaseURL    string `json:"database_url"`
	ListenAddr     string `json:"listen_addr"`
	// RefreshInterval reloads the list periodically in serve mode; 0 disables.
	RefreshInterval int `json:"refresh_interval"`
}

// Default returns a Config that works against the public developer key.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "test"
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.FromDate == "" {
		cfg.FromDate = query.DefaultFromDate
	}
	if cfg.DefaultSubject == "" {
		cfg.DefaultSubject = DefaultSubject
	}
	if cfg.DefaultOrderBy == "" {
		cfg.DefaultOrderBy = query.DefaultOrderBy
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 15
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
}

// ApplyEnv overrides secrets from GUARDIAN_API_KEY and DATABASE_URL.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("GUARDIAN_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
}

// Validate checks the endpoint URL, page size, order and timeouts.
func (cfg *Config) Validate() error {
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return fmt.Errorf("invalid endpoint URL: %s", cfg.Endpoint)
	}
	if cfg.APIKey == "" {
		return errors.New("api key is required")
	}
	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d", MaxPageSize)
	}
	if cfg.DefaultSubject == "" {
		return errors.New("default subject is required")
	}
	if !query.ValidOrder(cfg.DefaultOrderBy) {
		return fmt.Errorf("invalid order-by: %s", cfg.DefaultOrderBy)
	}
	if cfg.ConnectTimeout < 1 || cfg.ReadTimeout < 1 {
		return errors.New("timeouts must be at least 1 second")
	}
	if cfg.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}
	return nil
}

// ConnectTimeoutDuration converts the seconds fields to durations, as do the
// two helpers below.
func (cfg *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(cfg.ConnectTimeout) * time.Second
}

func (cfg *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(cfg.ReadTimeout) * time.Second
}

func (cfg *Config) RefreshIntervalDuration() time.Duration {
	return time.Duration(cfg.RefreshInterval) * time.Second
}

// LoadEnv reads .env files into the process environment. Missing files are
// not an error.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// LoadConfig reads the JSON file at path, fills defaults and applies
// environment overrides. It does not validate.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.ApplyEnv()
	return &cfg, nil
}
