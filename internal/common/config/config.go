// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Server   ServerConfig            `mapstructure:"server"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	LLM      LLMConfig               `mapstructure:"llm"`
	CRM      CRMConfig               `mapstructure:"crm"`
	Chat     ChatConfig              `mapstructure:"chat"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds, 0 disables (streaming)
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	Debug           bool   `mapstructure:"debug"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Enabled reports whether a Zeebe gateway was configured.
func (c CamundaConfig) Enabled() bool {
	return c.BrokerAddress != ""
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
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
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

// AllAddresses merges URL and Addresses without duplicates.
func (e ElasticsearchConfig) AllAddresses() []string {
	out := append([]string(nil), e.Addresses...)
	if e.URL == "" {
		return out
	}
	for _, a := range out {
		if a == e.URL {
			return out
		}
	}
	return append([]string{e.URL}, out...)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LLMConfig configures the streaming text generator.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

// Search backends for name and email lookups.
const (
	SearchBackendPostgres      = "postgres"
	SearchBackendElasticsearch = "elasticsearch"
)

// CRMConfig configures the CRM query pipeline.
type CRMConfig struct {
	SearchBackend  string `mapstructure:"search_backend"`
	SearchIndex    string `mapstructure:"search_index"`
	CacheTTL       int    `mapstructure:"cache_ttl"`     // milliseconds
	QueryTimeout   int    `mapstructure:"query_timeout"` // milliseconds
	MaxRecordsShow int    `mapstructure:"max_records_shown"`
	Debug          bool   `mapstructure:"debug"`
}

// ChatConfig configures the chat orchestrator and its persistence queue.
type ChatConfig struct {
	DemoUserID          string `mapstructure:"demo_user_id"`
	PersistenceEnabled  *bool  `mapstructure:"persistence_enabled"`
	PersistenceWorkers  int    `mapstructure:"persistence_workers"`
	PersistenceQueue    int    `mapstructure:"persistence_queue_size"`
	SystemPrompt        string `mapstructure:"system_prompt"`
	TitleMaxRunes       int    `mapstructure:"title_max_runes"`
	PersistenceDeadline int    `mapstructure:"persistence_drain_timeout"` // milliseconds
}

// Persist reports whether chat turns are written to the conversation store.
func (c ChatConfig) Persist() bool {
	return c.PersistenceEnabled == nil || *c.PersistenceEnabled
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
