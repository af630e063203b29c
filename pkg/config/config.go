package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Notifications NotificationsConfig
	Support       SupportConfig
	Telegram      TelegramConfig
	Presence      PresenceConfig
	Agent         AgentConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// NotificationsConfig drives the alert evaluation loop.
type NotificationsConfig struct {
	Enabled           bool
	Schedule          string
	TimeWaitThreshold time.Duration
	TimeLimitHour     int
	Timezone          string
	Subscribers       []string
	SentMarkerTTL     time.Duration
}

// SupportConfig configures the support request shortcut.
type SupportConfig struct {
	WhatsAppPhone string
	Cooldown      time.Duration
}

// TelegramConfig holds the push channel credentials. An empty token disables the channel.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

type PresenceConfig struct {
	StaleAfter time.Duration
}

// AgentConfig configures cmd/presence-agent.
type AgentConfig struct {
	APIURL         string
	Token          string
	TokenFile      string
	Email          string
	Name           string
	QueueDir       string
	SyncRetryDelay time.Duration
	SyncMaxRetries int
	RequestTimeout time.Duration
	HighAccuracy   bool
	MaxFixAge      time.Duration
	FixTimeout     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	limitHour := v.GetInt("TIME_LIMIT_HOUR")
	if limitHour < 0 || limitHour > 23 {
		limitHour = 17
	}
	cfg.Notifications = NotificationsConfig{
		Enabled:           v.GetBool("ENABLE_NOTIFICATIONS"),
		Schedule:          v.GetString("NOTIFICATION_SCHEDULE"),
		TimeWaitThreshold: parseDuration(v.GetString("TIME_WAIT_THRESHOLD"), time.Hour),
		TimeLimitHour:     limitHour,
		Timezone:          v.GetString("TIMEZONE"),
		Subscribers:       splitAndTrim(v.GetString("NOTIFICATION_SUBSCRIBERS")),
		SentMarkerTTL:     parseDuration(v.GetString("NOTIFICATION_SENT_TTL"), 24*time.Hour),
	}

	cfg.Support = SupportConfig{
		WhatsAppPhone: v.GetString("SUPPORT_WHATSAPP_PHONE"),
		Cooldown:      parseDuration(v.GetString("SUPPORT_COOLDOWN"), 30*time.Minute),
	}

	cfg.Telegram = TelegramConfig{
		Token:  v.GetString("TELEGRAM_TOKEN"),
		ChatID: v.GetInt64("TELEGRAM_CHAT_ID"),
	}

	cfg.Presence = PresenceConfig{
		StaleAfter: parseDuration(v.GetString("PRESENCE_STALE_AFTER"), 5*time.Minute),
	}

	cfg.Agent = AgentConfig{
		APIURL:         v.GetString("AGENT_API_URL"),
		Token:          v.GetString("AGENT_TOKEN"),
		TokenFile:      v.GetString("AGENT_TOKEN_FILE"),
		Email:          v.GetString("AGENT_EMAIL"),
		Name:           v.GetString("AGENT_NAME"),
		QueueDir:       v.GetString("AGENT_QUEUE_DIR"),
		SyncRetryDelay: parseDuration(v.GetString("AGENT_SYNC_RETRY_DELAY"), 30*time.Second),
		SyncMaxRetries: v.GetInt("AGENT_SYNC_MAX_RETRIES"),
		RequestTimeout: parseDuration(v.GetString("AGENT_REQUEST_TIMEOUT"), 10*time.Second),
		HighAccuracy:   v.GetBool("AGENT_HIGH_ACCURACY"),
		MaxFixAge:      parseDuration(v.GetString("AGENT_MAX_FIX_AGE"), 10*time.Second),
		FixTimeout:     parseDuration(v.GetString("AGENT_FIX_TIMEOUT"), 20*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "delivery_ops")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "delivery-ops-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATION_SCHEDULE", "@every 1m")
	v.SetDefault("TIME_WAIT_THRESHOLD", "1h")
	v.SetDefault("TIME_LIMIT_HOUR", 17)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("NOTIFICATION_SUBSCRIBERS", "")
	v.SetDefault("NOTIFICATION_SENT_TTL", "24h")

	v.SetDefault("SUPPORT_WHATSAPP_PHONE", "")
	v.SetDefault("SUPPORT_COOLDOWN", "30m")

	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)

	v.SetDefault("PRESENCE_STALE_AFTER", "5m")

	v.SetDefault("AGENT_API_URL", "http://localhost:8080/api/v1")
	v.SetDefault("AGENT_TOKEN", "")
	v.SetDefault("AGENT_TOKEN_FILE", "")
	v.SetDefault("AGENT_EMAIL", "")
	v.SetDefault("AGENT_NAME", "")
	v.SetDefault("AGENT_QUEUE_DIR", "./.presence-queue")
	v.SetDefault("AGENT_SYNC_RETRY_DELAY", "30s")
	v.SetDefault("AGENT_SYNC_MAX_RETRIES", 20)
	v.SetDefault("AGENT_REQUEST_TIMEOUT", "10s")
	v.SetDefault("AGENT_HIGH_ACCURACY", true)
	v.SetDefault("AGENT_MAX_FIX_AGE", "10s")
	v.SetDefault("AGENT_FIX_TIMEOUT", "20s")
}

// Location resolves the configured timezone, falling back to the process local zone.
func (c NotificationsConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SetConfigFile surfaces a missing .env as a path error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
