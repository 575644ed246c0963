package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	StorageDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotificationQueueName     string
	NotificationChannelPrefix string
	NotificationDedupeTTL     time.Duration

	RequestTimeout         time.Duration
	JoinRateLimitPerMinute int
	DefaultMaxTeamSize     int
	PendingTeamsLimit      int

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// Load reads .env (if present) and the process environment into AppConfig.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	AppConfig = FromEnv()
	return AppConfig
}

// FromEnv builds a Config from the process environment only.
func FromEnv() *Config {
	cfg := &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "robocomp"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		NotificationQueueName:     getEnv("NOTIFICATION_QUEUE_NAME", "notification_events_queue"),
		NotificationChannelPrefix: getEnv("NOTIFICATION_CHANNEL_PREFIX", ""),
		NotificationDedupeTTL:     time.Duration(getEnvAsInt("NOTIFICATION_DEDUPE_TTL_SECONDS", 86400)) * time.Second,

		RequestTimeout:         time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		JoinRateLimitPerMinute: getEnvAsInt("JOIN_RATE_LIMIT_PER_MINUTE", 10),
		DefaultMaxTeamSize:     getEnvAsInt("DEFAULT_MAX_TEAM_SIZE", 4),
		PendingTeamsLimit:      getEnvAsInt("PENDING_TEAMS_LIMIT", 5),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	cfg.DBConnStr = getEnv("DATABASE_URL", "")
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = "host=" + cfg.DBHost +
			" port=" + cfg.DBPort +
			" user=" + cfg.DBUser +
			" password=" + cfg.DBPassword +
			" dbname=" + cfg.DBName +
			" sslmode=" + cfg.DBSslMode
	}
	return cfg
}

// RedisEnabled reports whether Redis backed features (queue, rate limit) are on.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if len(c.JWTKey) == 0 {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.DefaultMaxTeamSize < 1 {
		return fmt.Errorf("DEFAULT_MAX_TEAM_SIZE must be at least 1, got %d", c.DefaultMaxTeamSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
