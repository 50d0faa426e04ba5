package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Scylla    ScyllaConfig    `mapstructure:"scylla"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Telephony TelephonyConfig `mapstructure:"telephony"`
	Dialer    DialerConfig    `mapstructure:"dialer"`
	Report    ReportConfig    `mapstructure:"report"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ScyllaConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Port        int           `mapstructure:"port"`
	Keyspace    string        `mapstructure:"keyspace"`
	Consistency string        `mapstructure:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	ClientID     string   `mapstructure:"client_id"`
	StatusTopic  string   `mapstructure:"status_topic"`
	SummaryTopic string   `mapstructure:"summary_topic"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelephonyConfig selects and tunes the telephony control client.
type TelephonyConfig struct {
	Provider         string        `mapstructure:"provider"`
	Address          string        `mapstructure:"address"`
	Username         string        `mapstructure:"username"`
	Secret           string        `mapstructure:"secret"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	DialContext      string        `mapstructure:"dial_context"`
	LocalContext     string        `mapstructure:"local_context"`
	OriginateTimeout time.Duration `mapstructure:"originate_timeout"`
}

// DialerConfig tunes the campaign run loop.
type DialerConfig struct {
	SlotPollInterval time.Duration `mapstructure:"slot_poll_interval"`
	FinalizeInterval time.Duration `mapstructure:"finalize_interval"`
	CallLifetime     time.Duration `mapstructure:"call_lifetime"`
	FinalizeTimeout  time.Duration `mapstructure:"finalize_timeout"`
	RunLockTTL       time.Duration `mapstructure:"run_lock_ttl"`
}

type ReportConfig struct {
	Directory string        `mapstructure:"directory"`
	Retention time.Duration `mapstructure:"retention"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("SIMPLEDIALER")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	cfg.Dialer.applyDefaults()
	cfg.Telephony.applyDefaults()
	cfg.Report.applyDefaults()

	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func (c *DialerConfig) applyDefaults() {
	if c.SlotPollInterval <= 0 {
		c.SlotPollInterval = time.Second
	}
	if c.FinalizeInterval <= 0 {
		c.FinalizeInterval = 2 * time.Second
	}
	if c.CallLifetime <= 0 {
		c.CallLifetime = 2 * time.Minute
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 2 * time.Minute
	}
	if c.RunLockTTL <= 0 {
		c.RunLockTTL = 30 * time.Minute
	}
}

func (c *TelephonyConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "mock"
	}
	if c.DialContext == "" {
		c.DialContext = "simpledialer-outbound"
	}
	if c.LocalContext == "" {
		c.LocalContext = "from-internal"
	}
	if c.OriginateTimeout <= 0 {
		c.OriginateTimeout = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

func (c *ReportConfig) applyDefaults() {
	if c.Directory == "" {
		c.Directory = "/var/log/simpledialer/reports"
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
}
