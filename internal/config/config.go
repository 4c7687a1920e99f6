package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	Schema     SchemaConfig
	Redis      RedisConfig
	Email      EmailConfig
	Storage    StorageConfig
	Alerts     AlertsConfig
	Events     EventsConfig
	Pagination PaginationConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrateOnStart    bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret           string
	AccessTokenExpiry   time.Duration
	VerificationExpiry  time.Duration
	PasswordResetExpiry time.Duration
	CleanupInterval     time.Duration
	AuditRetentionDays  int
	SuperUserEmail      string
	SuperUserPassword   string
}

type SchemaConfig struct {
	MigrationsDir string
	CacheDriver   string // "memory" or "redis"
	CacheSize     int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	AppURL      string
}

type StorageConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	URLTTL   time.Duration
	MaxBytes int64
}

type AlertsConfig struct {
	SlackWebhookURL string
	SlackChannel    string
}

type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "roster"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrateOnStart:    getEnvAsBool("DB_MIGRATE_ON_START", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			AccessTokenExpiry:   getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 12*time.Hour),
			VerificationExpiry:  getEnvAsDuration("EMAIL_VERIFICATION_EXPIRY", 24*time.Hour),
			PasswordResetExpiry: getEnvAsDuration("PASSWORD_RESET_EXPIRY", 1*time.Hour),
			CleanupInterval:     getEnvAsDuration("TOKEN_CLEANUP_INTERVAL", 1*time.Hour),
			AuditRetentionDays:  getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
			SuperUserEmail:      getEnv("SUPER_USER_EMAIL", ""),
			SuperUserPassword:   getEnv("SUPER_USER_PASSWORD", ""),
		},
		Schema: SchemaConfig{
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
			CacheDriver:   strings.ToLower(getEnv("SCHEMA_CACHE_DRIVER", "memory")),
			CacheSize:     getEnvAsInt("SCHEMA_CACHE_SIZE", 512),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@example.com"),
			AppURL:      getEnv("APP_URL", "http://localhost:3000"),
		},
		Storage: StorageConfig{
			Bucket:   getEnv("S3_BUCKET", ""),
			Region:   getEnv("S3_REGION", getEnv("AWS_REGION", "us-east-1")),
			Endpoint: getEnv("S3_ENDPOINT", ""),
			URLTTL:   getEnvAsDuration("S3_URL_TTL", 30*time.Minute),
			MaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20)),
		},
		Alerts: AlertsConfig{
			SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
			SlackChannel:    getEnv("SLACK_CHANNEL", ""),
		},
		Events: EventsConfig{
			KafkaBrokers: parseList(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:   getEnv("KAFKA_USER_TOPIC", "roster.users"),
		},
		Pagination: PaginationConfig{
			DefaultPageSize: getEnvAsInt("DEFAULT_PAGE_SIZE", 25),
			MaxPageSize:     getEnvAsInt("MAX_PAGE_SIZE", 100),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Schema.CacheDriver != "memory" && cfg.Schema.CacheDriver != "redis" {
		return nil, fmt.Errorf("SCHEMA_CACHE_DRIVER must be memory or redis (got %q)", cfg.Schema.CacheDriver)
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
