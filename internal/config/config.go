package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type AirtableConfig struct {
	Token           string `yaml:"token"`
	APIURL          string `yaml:"api_url"`
	BaseID          string `yaml:"base_id"`
	TableID         string `yaml:"table_id"`
	SettingsTableID string `yaml:"settings_table_id"`
	// BaseURL задаётся целиком, если таблица живёт не по стандартной схеме api_url/base/table
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TableURL returns the accounts table endpoint.
func (a AirtableConfig) TableURL() string {
	if a.BaseURL != "" {
		return strings.TrimRight(a.BaseURL, "/")
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.APIURL, "/"), a.BaseID, a.TableID)
}

// SettingsURL returns the settings table endpoint, or "" when no settings table is configured.
func (a AirtableConfig) SettingsURL() string {
	if a.SettingsTableID == "" || a.BaseID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.APIURL, "/"), a.BaseID, a.SettingsTableID)
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// часовой пояс для "Login Time" в сообщениях с кодом
	Timezone string `yaml:"timezone"`
}

type SecurityConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	ConfigSecret   string        `yaml:"config_secret"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	Backend   string        `yaml:"backend"` // memory | redis
	Capacity  int           `yaml:"capacity"`
	Refill    time.Duration `yaml:"refill"`
	IdleTTL   time.Duration `yaml:"idle_ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisPass string        `yaml:"redis_password"`
	RedisDB   int           `yaml:"redis_db"`
}

type BillingConfig struct {
	// период (часы, как в форме создания) -> цена пакета для админа
	Packages map[string]float64 `yaml:"packages"`
}

type ReportsConfig struct {
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Airtable  AirtableConfig  `yaml:"airtable"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Billing   BillingConfig   `yaml:"billing"`
	Reports   ReportsConfig   `yaml:"reports"`
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides (.env is loaded when present) and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("[config] %s not found, using environment only", path)
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file found, using system environment variables")
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Airtable.Token, "AIRTABLE_API_TOKEN")
	overrideString(&c.Airtable.BaseID, "AIRTABLE_BASE_ID")
	overrideString(&c.Airtable.TableID, "AIRTABLE_TABLE_ID")
	overrideString(&c.Airtable.BaseURL, "AIRTABLE_BASE_URL")
	overrideString(&c.Airtable.SettingsTableID, "AIRTABLE_SETTINGS_TABLE_ID")
	overrideString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overrideString(&c.Security.JWTSecret, "JWT_SECRET")
	overrideString(&c.Security.ConfigSecret, "CONFIG_SECRET")
	overrideString(&c.RateLimit.RedisAddr, "REDIS_ADDR")
	overrideString(&c.RateLimit.RedisPass, "REDIS_PASSWORD")
	if v, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Airtable.APIURL == "" {
		c.Airtable.APIURL = "https://api.airtable.com/v0"
	}
	if c.Airtable.Timeout == 0 {
		c.Airtable.Timeout = 15 * time.Second
	}
	if c.Telegram.Timezone == "" {
		c.Telegram.Timezone = "Asia/Kolkata"
	}
	if c.Security.SessionTimeout == 0 {
		c.Security.SessionTimeout = time.Hour
	}
	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = []string{"*"}
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.Refill == 0 {
		c.RateLimit.Refill = 200 * time.Millisecond
	}
	if c.RateLimit.IdleTTL == 0 {
		c.RateLimit.IdleTTL = 10 * time.Minute
	}
}

// Validate reports settings without which the service cannot talk to its collaborators.
func (c *Config) Validate() error {
	if c.Airtable.Token == "" {
		return errors.New("airtable token is not set (AIRTABLE_API_TOKEN)")
	}
	if c.Airtable.BaseURL == "" && (c.Airtable.BaseID == "" || c.Airtable.TableID == "") {
		return errors.New("airtable table is not set (AIRTABLE_BASE_ID/AIRTABLE_TABLE_ID or AIRTABLE_BASE_URL)")
	}
	if c.Security.JWTSecret == "" {
		return errors.New("jwt secret is not set (JWT_SECRET)")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return errors.New("rate_limit.backend is redis but redis_addr is empty")
		}
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
