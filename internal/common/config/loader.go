// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RecomputeWorker is the Workers key of the queue processor.
const RecomputeWorker = "recompute-processor"

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// even when the YAML omits it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "match-engine")
	v.SetDefault("app.environment", "development")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "matching")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.auto_migrate", true)
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.elasticsearch.url", "")
	v.SetDefault("database.elasticsearch.index", "match-scores")

	v.SetDefault("processor.interval", 30000)
	v.SetDefault("processor.cleanup_interval", 3600000)
	v.SetDefault("processor.sweep_interval", 86400000)
	v.SetDefault("processor.retention", 7*24*3600000)
	v.SetDefault("processor.stale_after", 600000)
	v.SetDefault("processor.audit_empty_runs", false)

	v.SetDefault("matching.weights.skill", 0.40)
	v.SetDefault("matching.weights.academic", 0.25)
	v.SetDefault("matching.weights.experience", 0.25)
	v.SetDefault("matching.weights.preference", 0.10)

	v.SetDefault("collaborators.profile_service_url", "")
	v.SetDefault("collaborators.opportunity_service_url", "")
	v.SetDefault("collaborators.api_key", "")
	v.SetDefault("collaborators.timeout", 5000)
	v.SetDefault("collaborators.cache_ttl", 300000)
	v.SetDefault("collaborators.active_candidates_path", "/v1/candidates/active")
	v.SetDefault("collaborators.active_opportunities_path", "/v1/opportunities/active")

	v.SetDefault("events.driver", "none")
	v.SetDefault("events.nats.url", "")
	v.SetDefault("events.nats.subject", "matching.runs")
	v.SetDefault("events.sns.region", "")
	v.SetDefault("events.sns.topic_arn", "")
	v.SetDefault("events.score_index.enabled", false)

	v.SetDefault("api.address", ":8080")
	v.SetDefault("api.metrics_address", ":9090")
	v.SetDefault("telemetry.jaeger_endpoint", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Collaborators.APIKey == "" {
		if val := os.Getenv("COLLABORATORS_API_KEY"); val != "" {
			cfg.Collaborators.APIKey = val
		}
	}
}

// applyDefaults sets values that cannot be expressed as viper defaults.
func applyDefaults(cfg *Config) {
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	if _, ok := cfg.Workers[RecomputeWorker]; !ok {
		cfg.Workers[RecomputeWorker] = defaultWorkerConfig()
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 10
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func defaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	w := cfg.Matching.Weights
	if w.Skill < 0 || w.Academic < 0 || w.Experience < 0 || w.Preference < 0 {
		return fmt.Errorf("matching.weights must be non-negative")
	}
	if sum := w.Skill + w.Academic + w.Experience + w.Preference; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("matching.weights must sum to 1, got %.6f", sum)
	}

	if cfg.Processor.Interval <= 0 {
		return fmt.Errorf("processor.interval must be positive")
	}
	if cfg.Processor.SweepInterval < 0 {
		return fmt.Errorf("processor.sweep_interval must not be negative")
	}

	switch cfg.Events.Driver {
	case "", "none":
	case "nats":
		if cfg.Events.NATS.URL == "" {
			return fmt.Errorf("events.nats.url is required for the nats driver")
		}
	case "sns":
		if cfg.Events.SNS.TopicARN == "" {
			return fmt.Errorf("events.sns.topic_arn is required for the sns driver")
		}
	default:
		return fmt.Errorf("events.driver %q is not supported", cfg.Events.Driver)
	}

	if cfg.Events.ScoreIndex.Enabled && !cfg.Database.Elasticsearch.Enabled() {
		return fmt.Errorf("events.score_index requires database.elasticsearch")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return defaultWorkerConfig()
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
