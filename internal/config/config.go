// Package config provides environment-based configuration management.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RedisConfig holds Redis connection parameters
type RedisConfig struct {
	Enabled  bool // false falls back to in-process dedup
	Addr     string
	Password string
	DB       int
	DedupTTL time.Duration
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Port             int
	Version          string
	InternalAPIToken string // bearer token for server-to-server routes; empty disables the check
	RequestTimeout   time.Duration
	LogLevel         string // debug, info, warn, error
	LogFormat        string // json or text
}

// WhatsAppConfig holds webhook and Graph API settings
type WhatsAppConfig struct {
	AppSecret       string // HMAC SHA256 key for X-Hub-Signature-256; empty skips the check
	VerifyToken     string // static token accepted in addition to per-account tokens
	GraphBaseURL    string
	GraphAPIVersion string
	HTTPTimeout     time.Duration
}

// ConversionsConfig holds ad platform endpoints
type ConversionsConfig struct {
	MetaBaseURL      string
	GoogleAdsBaseURL string
	HTTPTimeout      time.Duration
}

// AMQPConfig holds broker settings; an empty URL disables publishing
type AMQPConfig struct {
	URL      string
	Exchange string
}

// OpsConfig holds watchdog and operator console settings
type OpsConfig struct {
	EventHubSecret   string
	WatchdogInterval time.Duration
	DiskPath         string
	DiskThreshold    float64
	WebhookRetention time.Duration
}

// Config aggregates all configuration sections
type Config struct {
	DB          DBConfig
	Redis       RedisConfig
	App         AppConfig
	WhatsApp    WhatsAppConfig
	Conversions ConversionsConfig
	AMQP        AMQPConfig
	Ops         OpsConfig
}

// LoadConfig reads configuration from the environment.
// Returns error if critical variables are missing.
func LoadConfig() (*Config, error) {
	// A missing .env is normal in containers
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "crm_db")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_NAME", "crm")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_ADDR", "crm_redis:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DEDUP_TTL", 24*time.Hour)

	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("WHATSAPP_GRAPH_API_VERSION", "v20.0")
	v.SetDefault("WHATSAPP_HTTP_TIMEOUT", 15*time.Second)

	v.SetDefault("META_CAPI_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("GOOGLE_ADS_BASE_URL", "https://googleads.googleapis.com")
	v.SetDefault("CONVERSIONS_HTTP_TIMEOUT", 15*time.Second)

	v.SetDefault("AMQP_EXCHANGE", "crm.events")

	v.SetDefault("WATCHDOG_INTERVAL", 5*time.Minute)
	v.SetDefault("WATCHDOG_DISK_PATH", "/")
	v.SetDefault("WATCHDOG_DISK_THRESHOLD", 70.0)
	v.SetDefault("WEBHOOK_LOG_RETENTION", 7*24*time.Hour)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	// Database Configuration
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASS")
	cfg.DB.Database = v.GetString("DB_NAME")

	if cfg.DB.Password == "" {
		return nil, errors.New("DB_PASS environment variable is required")
	}

	// Redis Configuration
	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.DedupTTL = v.GetDuration("DEDUP_TTL")

	// Application Configuration
	cfg.App.Port = v.GetInt("APP_PORT")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.InternalAPIToken = v.GetString("INTERNAL_API_TOKEN")
	cfg.App.RequestTimeout = v.GetDuration("REQUEST_TIMEOUT")
	cfg.App.LogLevel = strings.ToLower(v.GetString("LOG_LEVEL"))
	cfg.App.LogFormat = strings.ToLower(v.GetString("LOG_FORMAT"))

	// WhatsApp Configuration
	cfg.WhatsApp.AppSecret = v.GetString("WHATSAPP_APP_SECRET")
	cfg.WhatsApp.VerifyToken = v.GetString("WHATSAPP_VERIFY_TOKEN")
	cfg.WhatsApp.GraphBaseURL = v.GetString("WHATSAPP_GRAPH_BASE_URL")
	cfg.WhatsApp.GraphAPIVersion = v.GetString("WHATSAPP_GRAPH_API_VERSION")
	cfg.WhatsApp.HTTPTimeout = v.GetDuration("WHATSAPP_HTTP_TIMEOUT")

	// Conversion APIs
	cfg.Conversions.MetaBaseURL = v.GetString("META_CAPI_BASE_URL")
	cfg.Conversions.GoogleAdsBaseURL = v.GetString("GOOGLE_ADS_BASE_URL")
	cfg.Conversions.HTTPTimeout = v.GetDuration("CONVERSIONS_HTTP_TIMEOUT")

	// Broker
	cfg.AMQP.URL = v.GetString("AMQP_URL")
	cfg.AMQP.Exchange = v.GetString("AMQP_EXCHANGE")

	// Ops
	cfg.Ops.EventHubSecret = v.GetString("EVENT_HUB_SECRET")
	cfg.Ops.WatchdogInterval = v.GetDuration("WATCHDOG_INTERVAL")
	cfg.Ops.DiskPath = v.GetString("WATCHDOG_DISK_PATH")
	cfg.Ops.DiskThreshold = v.GetFloat64("WATCHDOG_DISK_THRESHOLD")
	cfg.Ops.WebhookRetention = v.GetDuration("WEBHOOK_LOG_RETENTION")

	if cfg.Ops.DiskThreshold <= 0 || cfg.Ops.DiskThreshold > 100 {
		return nil, fmt.Errorf("WATCHDOG_DISK_THRESHOLD must be in (0, 100], got %v", cfg.Ops.DiskThreshold)
	}
	switch cfg.App.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.App.LogFormat)
	}

	return cfg, nil
}

// GetDSN returns MariaDB connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}
