package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Traffic  TrafficConfig  `mapstructure:"traffic"`
	Callback CallbackConfig `mapstructure:"callback"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Mock     MockConfig     `mapstructure:"mock"`
	Rate     RateConfig     `mapstructure:"rate"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
	Entities []EntityConfig `mapstructure:"entities"`
}

type ServerConfig struct {
	Port                   string `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type AuthConfig struct {
	// RequireAPIKey makes mock traffic present the entity key in X-API-Key.
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	TrafficKeyBase string `mapstructure:"traffic_key_base"`
}

type TrafficConfig struct {
	MaxEntriesPerEntity int `mapstructure:"max_entries_per_entity"`
	DefaultLimit        int `mapstructure:"default_limit"`
	MaxLimit            int `mapstructure:"max_limit"`
	QueueSize           int `mapstructure:"queue_size"`

	// ArchiveDir enables daily JSONL traffic files when set.
	ArchiveDir string `mapstructure:"archive_dir"`
}

type CallbackConfig struct {
	TimeoutMs  int `mapstructure:"timeout_ms"`
	MaxDelayMs int `mapstructure:"max_delay_ms"`
}

type StreamConfig struct {
	SendBuffer          int `mapstructure:"send_buffer"`
	PingIntervalSeconds int `mapstructure:"ping_interval_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type MockConfig struct {
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	MaxDelayMs   int   `mapstructure:"max_delay_ms"`
}

// RateConfig bounds mock traffic per entity. QPS <= 0 disables limiting.
type RateConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EntityConfig seeds an entity at startup when no store is configured or the
// entity does not exist yet.
type EntityConfig struct {
	ID         string           `mapstructure:"id"`
	Name       string           `mapstructure:"name"`
	APIKey     string           `mapstructure:"api_key"`
	OwnerID    string           `mapstructure:"owner_id"`
	IsPublic   bool             `mapstructure:"is_public"`
	SharedWith []string         `mapstructure:"shared_with"`
	Endpoints  []EndpointConfig `mapstructure:"endpoints"`
}

type EndpointConfig struct {
	Name                    string            `mapstructure:"name"`
	Method                  string            `mapstructure:"method"`
	Path                    string            `mapstructure:"path"`
	SelectionMode           string            `mapstructure:"selection_mode"`
	ActiveScenarioIndex     int               `mapstructure:"active_scenario_index"`
	ScenarioWeights         []float64         `mapstructure:"scenario_weights"`
	SchemaValidationEnabled bool              `mapstructure:"schema_validation_enabled"`
	RequestSchema           string            `mapstructure:"request_schema"`
	CallbackEnabled         bool              `mapstructure:"callback_enabled"`
	CallbackURL             string            `mapstructure:"callback_url"`
	CallbackURLField        string            `mapstructure:"callback_url_field"`
	CallbackMethod          string            `mapstructure:"callback_method"`
	CallbackPayload         string            `mapstructure:"callback_payload"`
	CallbackDelayMs         int               `mapstructure:"callback_delay_ms"`
	CallbackHeaders         map[string]string `mapstructure:"callback_headers"`
	Scenarios               []ScenarioConfig  `mapstructure:"scenarios"`
}

type ScenarioConfig struct {
	Name            string            `mapstructure:"name"`
	ResponseCode    int               `mapstructure:"response_code"`
	ResponseHeaders map[string]string `mapstructure:"response_headers"`
	ResponseBody    string            `mapstructure:"response_body"`
	DelayMs         int               `mapstructure:"delay_ms"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. MOCKGATE_AUTH_ADMIN_KEY
	v.SetEnvPrefix("mockgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout_seconds", 5)
	v.SetDefault("auth.require_api_key", false)
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("redis.traffic_key_base", "mock_traffic")
	v.SetDefault("traffic.max_entries_per_entity", 1000)
	v.SetDefault("traffic.default_limit", 100)
	v.SetDefault("traffic.max_limit", 1000)
	v.SetDefault("traffic.queue_size", 1000)
	v.SetDefault("traffic.archive_dir", "")
	v.SetDefault("callback.timeout_ms", 10000)
	v.SetDefault("callback.max_delay_ms", 300000)
	v.SetDefault("stream.send_buffer", 64)
	v.SetDefault("stream.ping_interval_seconds", 30)
	v.SetDefault("stream.write_timeout_seconds", 10)
	v.SetDefault("mock.max_body_bytes", 1<<20)
	v.SetDefault("mock.max_delay_ms", 60000)
	v.SetDefault("rate.qps", 0)
	v.SetDefault("rate.burst", 0)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
