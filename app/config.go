package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries everything a service needs at startup. Load returns a value
// that callers inject into constructors; nothing in this package is mutable
// package state.
type (
	Config struct {
		Service  string
		HTTPPort string
		Database DatabaseConfig
		Kafka    KafkaConfig
		Redis    RedisConfig
		FCM      FCMConfig
		Logging  LoggingConfig
	}

	KafkaConfig struct {
		Brokers     []string
		GroupID     string
		Concurrency int
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}

	FCMConfig struct {
		Enabled         bool
		CredentialsFile string
	}
)

func Load(service string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		logrus.WithError(err).Debug("no .env file, using process environment")
	}

	cfg := &Config{
		Service:  service,
		HTTPPort: Getenv("WEB_PORT", "3636"),
		Database: DatabaseConfig{
			Host:        Getenv("DB_HOST", "localhost"),
			Username:    Getenv("DB_USER", "root"),
			Password:    os.Getenv("DB_PASSWORD"),
			DBName:      os.Getenv("DB_NAME"),
			Port:        getEnvAsInt("DB_PORT", 3306),
			MaxIdleConn: getEnvAsInt("MAX_IDLE_CONN", 0),
			MaxOpenConn: getEnvAsInt("MAX_OPEN_CONN", 0),
			MaxLifetime: getEnvAsInt("MAX_LIFE_TIME_PER_CONN", 0),
			Debug:       os.Getenv("DB_DEBUG") == "true",
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(Getenv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID:     Getenv("KAFKA_GROUP_ID", service+"-group"),
			Concurrency: getEnvAsInt("KAFKA_CONCURRENCY", 1),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvAsInt("REDIS_TTL_SECONDS", 60)) * time.Second,
		},
		FCM: FCMConfig{
			Enabled:         os.Getenv("FCM_ENABLED") == "true",
			CredentialsFile: os.Getenv("FCM_CREDENTIALS_FILE"),
		},
		Logging: LoggingConfig{
			Level:      Getenv("LOG_LEVEL", "info"),
			Format:     Getenv("LOG_TYPE", "text"),
			ServerName: Getenv("SERVER_NAME", service),
		},
	}

	return cfg, nil
}

// Getenv returns the env value or a default when unset.
func Getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Helper convert env -> int
func getEnvAsInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
