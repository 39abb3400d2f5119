// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Processor     ProcessorConfig         `mapstructure:"processor"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Collaborators CollaboratorsConfig     `mapstructure:"collaborators"`
	Events        EventsConfig            `mapstructure:"events"`
	API           APIConfig               `mapstructure:"api"`
	Telemetry     TelemetryConfig         `mapstructure:"telemetry"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig is optional; an empty address list disables the score index.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

func (e ElasticsearchConfig) Enabled() bool { return e.GetURL() != "" }

// RedisConfig is optional; an empty address disables the profile cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"` // tasks claimed per run
	Timeout       int  `mapstructure:"timeout"`         // milliseconds, per task
	MaxRetries    int  `mapstructure:"max_retries"`     // attempts before FAILED
}

// ProcessorConfig drives the recompute scheduler. All durations are milliseconds.
type ProcessorConfig struct {
	Interval        int  `mapstructure:"interval"`
	CleanupInterval int  `mapstructure:"cleanup_interval"`
	SweepInterval   int  `mapstructure:"sweep_interval"` // 0 disables the full sweep
	Retention       int  `mapstructure:"retention"`
	StaleAfter      int  `mapstructure:"stale_after"`
	AuditEmptyRuns  bool `mapstructure:"audit_empty_runs"`
}

// MatchingConfig holds the scoring weights and the technical-major set.
type MatchingConfig struct {
	Weights         WeightsConfig `mapstructure:"weights"`
	TechnicalMajors []string      `mapstructure:"technical_majors"`
}

type WeightsConfig struct {
	Skill      float64 `mapstructure:"skill"`
	Academic   float64 `mapstructure:"academic"`
	Experience float64 `mapstructure:"experience"`
	Preference float64 `mapstructure:"preference"`
}

// CollaboratorsConfig points at the profile and opportunity services.
type CollaboratorsConfig struct {
	ProfileServiceURL       string `mapstructure:"profile_service_url"`
	OpportunityServiceURL   string `mapstructure:"opportunity_service_url"`
	APIKey                  string `mapstructure:"api_key"`
	Timeout                 int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL                int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables caching
	ActiveCandidatesPath    string `mapstructure:"active_candidates_path"`
	ActiveOpportunitiesPath string `mapstructure:"active_opportunities_path"`
}

// EventsConfig selects where run summaries and indexed scores are published.
type EventsConfig struct {
	Driver string `mapstructure:"driver"` // nats | sns | none
	NATS   struct {
		URL     string `mapstructure:"url"`
		Subject string `mapstructure:"subject"`
	} `mapstructure:"nats"`
	SNS struct {
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	ScoreIndex struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"score_index"`
}

type APIConfig struct {
	Address        string `mapstructure:"address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type TelemetryConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
