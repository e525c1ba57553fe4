package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-insecure-secret"

type Config struct {
	// HTTP
	HTTPAddr    string
	GinMode     string
	CORSOrigins []string

	// PostgreSQL
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBTimezone        string
	DBMaxConns        int
	DBConnectAttempts int
	DBConnectDelay    time.Duration

	// Logging
	LogFile  string
	LogLevel string

	// Device auth
	JWTSecret    string
	TokenTTL     time.Duration
	AuthCacheTTL time.Duration
	BcryptCost   int

	// Operator API; empty disables /admin
	AdminAPIKey string

	// Alert sinks; empty address disables the sink
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KafkaBrokers    []string
	KafkaAlertTopic string
	HubBuffer       int

	// Catalog
	CatalogRefreshSpec string
}

// Load reads .env (if present) and the environment. JWT_SECRET may only be
// omitted when GIN_MODE is debug.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	cfg := &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "")),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "password"),
		DBName:             getEnv("DB_NAME", "fleet"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		DBTimezone:         getEnv("DB_TIMEZONE", "UTC"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 15),
		DBConnectAttempts:  getEnvInt("DB_CONNECT_ATTEMPTS", 10),
		DBConnectDelay:     getEnvDuration("DB_CONNECT_DELAY", 2*time.Second),
		LogFile:            getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		AuthCacheTTL:       time.Duration(getEnvInt("AUTH_CACHE_TTL_SECONDS", 300)) * time.Second,
		BcryptCost:         getEnvInt("BCRYPT_COST", 0),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaAlertTopic:    getEnv("KAFKA_ALERT_TOPIC", "device-alerts"),
		HubBuffer:          getEnvInt("ALERT_HUB_BUFFER", 256),
		CatalogRefreshSpec: getEnv("CATALOG_REFRESH_SPEC", "@every 5m"),
	}

	if cfg.JWTSecret == "" {
		if cfg.GinMode != "debug" {
			return nil, errors.New("JWT_SECRET is required outside debug mode")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
