package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port     string
	Env      string
	DBDSN    string
	LogLevel string
	LogFile  string
	SeedDemo bool

	// OperatorTokenHash is a bcrypt hash of the operator token. Empty leaves
	// authentication to the host platform.
	OperatorTokenHash string

	LedgerAllowNegative bool
	DefaultLabelURL     string

	LabelProviderURL string
	LabelBaseURL     string
	LabelBatchSize   int
	LabelTimeout     time.Duration
	LabelRetries     int

	KafkaBroker string
	KafkaTopic  string

	OtelEndpoint   string
	OtelAuthHeader string

	OrderPageSize int
	OrderPageMax  int
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		DBDSN:    getEnv("DB_DSN", "backoffice.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "./backoffice.log"),
		SeedDemo: getEnvAsBool("SEED_DEMO", true),

		OperatorTokenHash: getEnv("OPERATOR_TOKEN_HASH", ""),

		LedgerAllowNegative: getEnvAsBool("LEDGER_ALLOW_NEGATIVE", true),
		DefaultLabelURL:     getEnv("DEFAULT_LABEL_URL", ""),

		LabelProviderURL: getEnv("LABEL_PROVIDER_URL", ""),
		LabelBaseURL:     getEnv("LABEL_BASE_URL", "https://labels.local/staging"),
		LabelBatchSize:   getEnvAsInt("LABEL_BATCH_SIZE", 2),
		LabelTimeout:     getEnvAsDuration("LABEL_TIMEOUT", 30*time.Second),
		LabelRetries:     clamp(getEnvAsInt("LABEL_RETRIES", 1), 0, 1),

		KafkaBroker: getEnv("KAFKA_BROKER", ""),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "backoffice.events"),

		OtelEndpoint:   getEnv("OTEL_ENDPOINT", ""),
		OtelAuthHeader: getEnv("OTEL_AUTH_HEADER", ""),

		OrderPageSize: getEnvAsInt("ORDER_PAGE_SIZE", 20),
		OrderPageMax:  getEnvAsInt("ORDER_PAGE_MAX", 100),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.OrderPageSize <= 0 || c.OrderPageMax <= 0 {
		errs = append(errs, fmt.Errorf("order page size must be positive (size=%d max=%d)", c.OrderPageSize, c.OrderPageMax))
	}
	if c.OrderPageSize > c.OrderPageMax {
		errs = append(errs, fmt.Errorf("ORDER_PAGE_SIZE %d exceeds ORDER_PAGE_MAX %d", c.OrderPageSize, c.OrderPageMax))
	}
	if c.LabelTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LABEL_TIMEOUT must be positive, got %s", c.LabelTimeout))
	}
	if c.LabelBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("LABEL_BATCH_SIZE must be positive, got %d", c.LabelBatchSize))
	}
	return errors.Join(errs...)
}

// LogFields summarises the config for the startup line. Secrets are reported
// only as present/absent.
func (c Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("port", c.Port),
		zap.String("environment", c.Env),
		zap.String("db_dsn", c.DBDSN),
		zap.String("log_file", c.LogFile),
		zap.Bool("seed_demo", c.SeedDemo),
		zap.Bool("operator_gate", c.OperatorTokenHash != ""),
		zap.Bool("ledger_allow_negative", c.LedgerAllowNegative),
		zap.Bool("label_at_create", c.DefaultLabelURL != ""),
		zap.String("label_provider", c.labelProvider()),
		zap.Duration("label_timeout", c.LabelTimeout),
		zap.Int("label_retries", c.LabelRetries),
		zap.Bool("kafka", c.KafkaBroker != ""),
		zap.Bool("otel", c.OtelEndpoint != ""),
	}
}

func (c Config) labelProvider() string {
	if c.LabelProviderURL == "" {
		return "staging"
	}
	return c.LabelProviderURL
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
