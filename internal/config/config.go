package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"miniquest-server/shared/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Session lock backends.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// StoreRetryMaxIntervalFactor caps a single store retry wait at this multiple of
// STORE_RETRY_BASE_DELAY.
const StoreRetryMaxIntervalFactor = 20

// Text generation backends.
const (
	AIClientOpenAI = "openai"
	AIClientOllama = "ollama"
)

// Config holds the process configuration.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"5000"`

	// Database
	DBHost            string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort            string        `envconfig:"DB_PORT" default:"5432"`
	DBUser            string        `envconfig:"DB_USER" default:"postgres"`
	DBName            string        `envconfig:"DB_NAME" default:"miniquest"`
	DBSSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns        int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBMaxConnIdleTime time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`
	DBMigrateOnStart  bool          `envconfig:"DB_MIGRATE_ON_START" default:"true"`
	// Secret, no envconfig tag
	DBPassword string `ignored:"true"`

	// Store retries
	StoreMaxRetries     uint64        `envconfig:"STORE_MAX_RETRIES" default:"3"`
	StoreRetryBaseDelay time.Duration `envconfig:"STORE_RETRY_BASE_DELAY" default:"100ms"`

	// Session locking
	SessionLockBackend string        `envconfig:"SESSION_LOCK_BACKEND" default:"memory"`
	SessionLockTTL     time.Duration `envconfig:"SESSION_LOCK_TTL" default:"60s"`
	RedisAddr          string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB            int           `envconfig:"REDIS_DB" default:"0"`
	// Secret, no envconfig tag
	RedisPassword string `ignored:"true"`

	// Telemetry; an empty RABBITMQ_URL keeps events in PostgreSQL only.
	RabbitMQURL         string `envconfig:"RABBITMQ_URL"`
	QuestEventsQueue    string `envconfig:"QUEST_EVENTS_QUEUE" default:"quest_events"`
	TelemetryBufferSize int    `envconfig:"TELEMETRY_BUFFER_SIZE" default:"256"`

	// Text generation
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"10s"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"150"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	HistorySteps  int           `envconfig:"HISTORY_CONTEXT_STEPS" default:"4"`
	ContentFile   string        `envconfig:"CONTENT_FILE"`
	// Secret, no envconfig tag
	AIAPIKey string `ignored:"true"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8081"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// TelemetryPublishEnabled reports whether events are also sent to RabbitMQ.
func (c *Config) TelemetryPublishEnabled() bool {
	return c.RabbitMQURL != ""
}

// TurnBudget is the longest a single turn can hold its session lock: generation
// plus the retry waits of the load and the commit. Jitter can stretch a wait to
// 1.5x the capped interval.
func (c *Config) TurnBudget() time.Duration {
	retries := c.StoreMaxRetries
	if retries == 0 {
		retries = 3
	}
	maxWait := time.Duration(StoreRetryMaxIntervalFactor) * c.StoreRetryBaseDelay * 3 / 2
	return c.AITimeout + 2*time.Duration(retries)*maxWait
}

// Validate checks enumerated settings and bounds.
func (c *Config) Validate() error {
	switch c.SessionLockBackend {
	case LockBackendMemory, LockBackendRedis:
	default:
		return fmt.Errorf("invalid SESSION_LOCK_BACKEND %q: want %q or %q", c.SessionLockBackend, LockBackendMemory, LockBackendRedis)
	}
	switch strings.ToLower(c.AIClientType) {
	case AIClientOpenAI, AIClientOllama:
	default:
		return fmt.Errorf("invalid AI_CLIENT_TYPE %q: want %q or %q", c.AIClientType, AIClientOpenAI, AIClientOllama)
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive, got %v", c.AITimeout)
	}
	if c.HistorySteps < 0 {
		return fmt.Errorf("HISTORY_CONTEXT_STEPS must not be negative, got %d", c.HistorySteps)
	}
	if c.SessionLockBackend == LockBackendRedis && c.SessionLockTTL <= c.TurnBudget() {
		return fmt.Errorf("SESSION_LOCK_TTL (%v) must exceed the longest turn (%v): AI_TIMEOUT plus store retries", c.SessionLockTTL, c.TurnBudget())
	}
	if c.TelemetryBufferSize <= 0 {
		return fmt.Errorf("TELEMETRY_BUFFER_SIZE must be positive, got %d", c.TelemetryBufferSize)
	}
	return nil
}

// LoadConfig reads envFilePath (if it exists), the environment and the secrets.
func LoadConfig(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: could not load %s: %v", envFilePath, err)
			} else {
				log.Printf("Loaded environment from %s", envFilePath)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: error checking %s: %v", envFilePath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	var err error
	if cfg.DBPassword, err = utils.ReadSecretOrEnv("db_password", "DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.AIAPIKey, err = utils.ReadSecretOrEnv("ai_api_key", "AI_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.RedisPassword, err = utils.ReadSecretOrEnv("redis_password", "REDIS_PASSWORD"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: env=%s port=%s db=%s:%s/%s ai=%s/%s timeout=%v lock=%s telemetry_broker=%t",
		cfg.Env, cfg.ServerPort, cfg.DBHost, cfg.DBPort, cfg.DBName,
		cfg.AIClientType, cfg.AIModel, cfg.AITimeout, cfg.SessionLockBackend, cfg.TelemetryPublishEnabled())
	return &cfg, nil
}
