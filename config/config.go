package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"caixa-imoveis/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is built once at startup and handed to every component
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Regions  []string       `yaml:"regions"`
	Store    StoreConfig    `yaml:"store"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Database DatabaseConfig `yaml:"database"`
	Geoloc   GeolocConfig   `yaml:"geoloc"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Filters  FilterConfig   `yaml:"filters"`
	Log      LogConfig      `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// FeedConfig controls how the upstream CSV feed is downloaded
type FeedConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Delay     time.Duration `yaml:"delay"` // between consecutive feed requests
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// SheetsConfig points at the workbook holding one worksheet per region plus the archive
type SheetsConfig struct {
	Spreadsheet     string `yaml:"spreadsheet"` // id or full URL
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"-"`
}

type DatabaseConfig struct {
	URL    string `yaml:"url"`
	Ledger bool   `yaml:"ledger"` // record runs in sync_runs / sync_regions
}

// GeolocConfig configures the optional coordinate enrichment of new listings
type GeolocConfig struct {
	Enabled   bool          `yaml:"enabled"`
	APIKey    string        `yaml:"api_key"`
	BatchSize int           `yaml:"batch_size"`
	Delay     time.Duration `yaml:"delay"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

// FilterConfig represents the filter criteria applied by the read surface
type FilterConfig struct {
	MinPrice float64 `yaml:"min_price"`
	MaxPrice float64 `yaml:"max_price"` // 0 means no upper bound
}

// LogConfig selects the zap logger flavour
type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"` // console or json
	Development bool   `yaml:"development"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"-"`
	ChatID   int64  `yaml:"chat_id"`
}

// LoadConfig loads configuration from a YAML file, then applies .env and environment overrides.
// A missing file at path falls back to the defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := GetDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	regions := make([]string, len(models.Regions))
	for i, r := range models.Regions {
		regions[i] = string(r)
	}
	return &Config{
		Feed: FeedConfig{
			BaseURL:   "https://venda-imoveis.caixa.gov.br",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:   60 * time.Second,
			Delay:     2 * time.Second,
		},
		Regions: regions,
		Store:   StoreConfig{Backend: BackendSheets},
		Geoloc: GeolocConfig{
			BatchSize: 2000,
			Delay:     60 * time.Second,
		},
		Schedule: ScheduleConfig{Cron: "0 6 * * *"},
		Server: ServerConfig{
			Addr:       ":8080",
			SummaryTTL: 10 * time.Minute,
		},
		Filters: FilterConfig{MinPrice: 100},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

func (c *Config) applyEnv() error {
	c.Sheets.CredentialsJSON = strings.TrimSpace(getEnv("GOOGLE_SHEETS_CREDENTIALS", c.Sheets.CredentialsJSON))
	if c.Sheets.CredentialsJSON == "" {
		// older deployments name it after gspread
		c.Sheets.CredentialsJSON = strings.TrimSpace(os.Getenv("GSPREAD_CREDENTIALS"))
	}
	c.Sheets.Spreadsheet = getEnv("SHEETS_API", c.Sheets.Spreadsheet)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Geoloc.APIKey = getEnv("MAPS_API", c.Geoloc.APIKey)
	c.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	if _, err := c.RegionList(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendSheets, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Geoloc.BatchSize <= 0 {
		return fmt.Errorf("geoloc.batch_size must be positive, got %d", c.Geoloc.BatchSize)
	}
	if c.Geoloc.Delay < 0 {
		return fmt.Errorf("geoloc.delay must not be negative")
	}
	if c.Filters.MaxPrice > 0 && c.Filters.MaxPrice < c.Filters.MinPrice {
		return fmt.Errorf("filters.max_price %.2f is below min_price %.2f", c.Filters.MaxPrice, c.Filters.MinPrice)
	}
	return nil
}

// RegionList parses the configured region codes, keeping their order
func (c *Config) RegionList() ([]models.Region, error) {
	if len(c.Regions) == 0 {
		return nil, fmt.Errorf("no regions configured")
	}
	seen := make(map[models.Region]bool, len(c.Regions))
	regions := make([]models.Region, 0, len(c.Regions))
	for _, s := range c.Regions {
		r, err := models.ParseRegion(s)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		regions = append(regions, r)
	}
	return regions, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
