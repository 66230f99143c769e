package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/smukkama/farm-carbon/internal/carbon"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	HTTP      HTTPConfig
	Reference ReferenceConfig
	Carbon    CarbonConfig
	Ledger    LedgerConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PricingTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	TopicLedger   string
	ConsumerGroup string
}

type HTTPConfig struct {
	Addr            string
	MetricsAddr     string // ledger relay metrics listener
	ShutdownTimeout time.Duration
}

// ReferenceConfig locates the YAML reference tables and how often they are reloaded
type ReferenceConfig struct {
	Dir             string
	RefreshInterval time.Duration
	Watch           bool
}

// CarbonConfig overrides the carbon model policy
type CarbonConfig struct {
	Policy        carbon.Policy
	HybridMarkers []string
}

// LedgerConfig points at the external ledger. An empty URL keeps the
// relay in log-only mode.
type LedgerConfig struct {
	URL           string
	Timeout       time.Duration
	NotifyTimeout time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	defaults := carbon.DefaultPolicy()

	config := &Config{
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "farm_user"),
			Password:      getEnv("DB_PASSWORD", "farm_pass"),
			DBName:        getEnv("DB_NAME", "farm_carbon"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			PricingTTL: getEnvAsDuration("REDIS_PRICING_TTL", 60*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicLedger:   getEnv("KAFKA_TOPIC_LEDGER", "farm.ledger.updates"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "ledger-relay"),
		},
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			MetricsAddr:     getEnv("HTTP_METRICS_ADDR", ":9102"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Reference: ReferenceConfig{
			Dir:             getEnv("REFERENCE_DIR", "refdata"),
			RefreshInterval: getEnvAsDuration("REFERENCE_REFRESH_INTERVAL", 60*time.Second),
			Watch:           getEnvAsBool("REFERENCE_WATCH", true),
		},
		Carbon: CarbonConfig{
			Policy: carbon.Policy{
				DiameterThresholdIn:  getEnvAsFloat("CARBON_DIAMETER_THRESHOLD_IN", defaults.DiameterThresholdIn),
				SmallTreeCoefficient: getEnvAsFloat("CARBON_SMALL_TREE_COEFFICIENT", defaults.SmallTreeCoefficient),
				LargeTreeCoefficient: getEnvAsFloat("CARBON_LARGE_TREE_COEFFICIENT", defaults.LargeTreeCoefficient),
				SurvivorshipFactor:   getEnvAsFloat("CARBON_SURVIVORSHIP_FACTOR", defaults.SurvivorshipFactor),
				DefaultSPHA:          getEnvAsFloat("CARBON_DEFAULT_SPHA", defaults.DefaultSPHA),
			},
			HybridMarkers: getEnvAsList("CARBON_HYBRID_MARKERS", []string{"clones", "GxN"}),
		},
		Ledger: LedgerConfig{
			URL:           getEnv("LEDGER_URL", ""),
			Timeout:       getEnvAsDuration("LEDGER_TIMEOUT", 10*time.Second),
			NotifyTimeout: getEnvAsDuration("LEDGER_NOTIFY_TIMEOUT", 5*time.Second),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := config.Carbon.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid carbon policy: %w", err)
	}
	if config.Reference.RefreshInterval <= 0 {
		return nil, fmt.Errorf("REFERENCE_REFRESH_INTERVAL must be positive, got %s", config.Reference.RefreshInterval)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
