package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RateLimitRule describes one limiter tier.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig groups the HTTP and chat tiers.
type RateLimitConfig struct {
	Enabled bool
	// Backend is "memory" or "redis".
	Backend  string
	IP       RateLimitRule
	Auth     RateLimitRule
	AI       RateLimitRule
	Identity RateLimitRule
	Chat     RateLimitRule
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeofenceConfig is the service area complaints must be filed in.
// A zero radius disables the check.
type GeofenceConfig struct {
	CenterLat float64
	CenterLon float64
	RadiusKm  float64
}

type ClassifierConfig struct {
	Command string
	Script  string
	Timeout time.Duration
}

type MailConfig struct {
	ResendAPIKey string
	BaseURL      string
	From         string
}

type TelegramConfig struct {
	BotToken    string
	AdminChatID int64
}

type LogConfig struct {
	Level  string
	Format string
}

// Config holds all configuration for the API server.
type Config struct {
	HTTPAddr   string
	UploadDir  string
	JWTSecret  string
	JWTTTL     time.Duration
	NATSURL    string
	Database   DatabaseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Geofence   GeofenceConfig
	Classifier ClassifierConfig
	Mail       MailConfig
	Telegram   TelegramConfig
	Log        LogConfig
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":3000"),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		JWTSecret: getEnv("JWT_SECRET", "civicdesk-secret-change-in-production"),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 72*time.Hour),
		NATSURL:   getEnv("NATS_URL", ""),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "civicdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: loadRateLimitConfig(),
		Geofence: GeofenceConfig{
			CenterLat: getEnvAsFloat("GEOFENCE_CENTER_LAT", 12.9165),
			CenterLon: getEnvAsFloat("GEOFENCE_CENTER_LON", 79.1325),
			RadiusKm:  getEnvAsFloat("GEOFENCE_RADIUS_KM", 25),
		},
		Classifier: ClassifierConfig{
			Command: getEnv("CLASSIFIER_COMMAND", "python3"),
			Script:  getEnv("CLASSIFIER_SCRIPT", "../civic-ai/predict.py"),
			Timeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
		},
		Mail: MailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			BaseURL:      getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			From:         getEnv("MAIL_FROM", "CivicDesk <onboarding@resend.dev>"),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			AdminChatID: int64(getEnvAsInt("TELEGRAM_ADMIN_CHAT_ID", 0)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func loadRateLimitConfig() RateLimitConfig {
	minute := time.Minute
	return RateLimitConfig{
		Enabled: getEnvAsBool("RATE_LIMIT_ENABLED", true),
		Backend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		IP: RateLimitRule{
			Limit:  getEnvAsInt("RATE_LIMIT_MAX", 100),
			Window: getEnvAsDuration("RATE_LIMIT_WINDOW", minute),
		},
		Auth: RateLimitRule{
			Limit:  getEnvAsInt("AUTH_RATE_LIMIT_MAX", 10),
			Window: minute,
		},
		AI: RateLimitRule{
			Limit:  getEnvAsInt("AI_RATE_LIMIT_MAX", 20),
			Window: minute,
		},
		Identity: RateLimitRule{
			Limit:  getEnvAsInt("USER_RATE_LIMIT_MAX", 60),
			Window: minute,
		},
		Chat: RateLimitRule{
			Limit:  getEnvAsInt("CHAT_RATE_LIMIT_MAX", 60),
			Window: minute,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain milliseconds ("60000").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
