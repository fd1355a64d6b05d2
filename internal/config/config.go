package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Underwriting UnderwritingConfig
	Documents    DocumentsConfig
	Storage      StorageConfig
	Notification NotificationConfig
	Session      SessionConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr keeps all state in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines flow token and operator gate parameters.
type AuthConfig struct {
	FlowTokenSecret     string
	FlowTokenTTLMinutes int
	OperatorUsername    string
	OperatorPassHash    string
}

// EnvironmentEndpoints describes one underwriting environment.
type EnvironmentEndpoints struct {
	BaseURL        string
	APIURL         string
	Username       string
	Password       string
	SellerNodeCode string
}

// UnderwritingConfig configures access to the external underwriting service.
type UnderwritingConfig struct {
	DefaultEnvironment string
	AllowOverride      bool
	Test               EnvironmentEndpoints
	Production         EnvironmentEndpoints
	TokenValidity      time.Duration
	HTTPTimeout        time.Duration
	SignatureValidity  time.Duration
}

// DocumentsConfig tunes the document retrieval poller.
type DocumentsConfig struct {
	PollAttempts int
	PollDelay    time.Duration
}

// StorageConfig holds S3-compatible archive settings.
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NotificationConfig holds confirmation message relay settings.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// SessionConfig controls how long flows stay in the session store.
type SessionConfig struct {
	FlowTTL            time.Duration
	CompletedRetention time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "gap-pos"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			FlowTokenSecret:     getEnv("AUTH_FLOW_TOKEN_SECRET", "dev-secret"),
			FlowTokenTTLMinutes: getEnvAsInt("AUTH_FLOW_TOKEN_TTL_MINUTES", 240),
			OperatorUsername:    getEnv("AUTH_OPERATOR_USERNAME", "operator"),
			OperatorPassHash:    os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
		},
		Underwriting: UnderwritingConfig{
			DefaultEnvironment: strings.ToUpper(getEnv("UW_ENVIRONMENT", "TEST")),
			AllowOverride:      getEnvAsBool("UW_ALLOW_CLIENT_OVERRIDE", true),
			Test:               loadEndpoints("UW_TEST", "https://test.gap-underwriting.example"),
			Production:         loadEndpoints("UW_PROD", "https://gap-underwriting.example"),
			TokenValidity:      getEnvAsDuration("UW_TOKEN_VALIDITY", 30*time.Minute),
			HTTPTimeout:        getEnvAsDuration("UW_HTTP_TIMEOUT", 30*time.Second),
			SignatureValidity:  getEnvAsDuration("UW_SIGNATURE_VALIDITY", 15*time.Minute),
		},
		Documents: DocumentsConfig{
			PollAttempts: getEnvAsInt("DOCUMENTS_POLL_ATTEMPTS", 3),
			PollDelay:    getEnvAsDuration("DOCUMENTS_POLL_DELAY", 2*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnv("S3_REGION", "eu-central-1"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Session: SessionConfig{
			FlowTTL:            getEnvAsDuration("SESSION_FLOW_TTL", 24*time.Hour),
			CompletedRetention: getEnvAsDuration("SESSION_COMPLETED_RETENTION", time.Hour),
		},
	}

	return cfg, nil
}

func loadEndpoints(prefix, defaultBase string) EnvironmentEndpoints {
	base := strings.TrimRight(getEnv(prefix+"_BASE_URL", defaultBase), "/")
	return EnvironmentEndpoints{
		BaseURL:        base,
		APIURL:         strings.TrimRight(getEnv(prefix+"_API_URL", base+"/api/v1"), "/"),
		Username:       os.Getenv(prefix + "_USERNAME"),
		Password:       os.Getenv(prefix + "_PASSWORD"),
		SellerNodeCode: os.Getenv(prefix + "_SELLER_NODE_CODE"),
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ArchiveEnabled reports whether generated documents should be copied to object storage.
func (s StorageConfig) ArchiveEnabled() bool {
	return s.Bucket != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
