package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Server holds all configuration for skirmishd.
type Server struct {
	// Network
	HTTP HTTPConfig `yaml:"http"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Content directory (characters/, abilities/, campaigns/, ...)
	ContentDir string `yaml:"content_dir" env:"SKIRMISH_CONTENT_DIR"`

	Battle    BattleConfig    `yaml:"battle"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// debug | info | warn | error
	LogLevel string `yaml:"log_level" env:"SKIRMISH_LOG_LEVEL"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"SKIRMISH_HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SKIRMISH_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SKIRMISH_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SKIRMISH_HTTP_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"SKIRMISH_DB_HOST"`
	Port     int    `yaml:"port" env:"SKIRMISH_DB_PORT"`
	User     string `yaml:"user" env:"SKIRMISH_DB_USER"`
	Password string `yaml:"password" env:"SKIRMISH_DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"SKIRMISH_DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"SKIRMISH_DB_SSLMODE"`

	// DSN overrides the fields above when set
	URL string `yaml:"url" env:"SKIRMISH_DB_URL"`

	// без PostgreSQL: прогресс в памяти, история боёв отключена
	InMemory bool `yaml:"in_memory" env:"SKIRMISH_DB_IN_MEMORY"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// BattleConfig tunes the battle manager.
type BattleConfig struct {
	MaxTurns      int           `yaml:"max_turns" env:"SKIRMISH_BATTLE_MAX_TURNS"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"SKIRMISH_BATTLE_IDLE_TIMEOUT"`
	Retention     time.Duration `yaml:"retention" env:"SKIRMISH_BATTLE_RETENTION"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SKIRMISH_BATTLE_SWEEP_INTERVAL"`
	Salt          string        `yaml:"salt" env:"SKIRMISH_BATTLE_SALT"` // mixed into battle dice seeds
}

// TelemetryConfig configures OTLP tracing. Empty endpoint disables export.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" env:"SKIRMISH_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "skirmish",
			Password: "skirmish",
			DBName:   "skirmish",
			SSLMode:  "disable",
		},
		ContentDir: "content",
		Battle: BattleConfig{
			MaxTurns:      50,
			IdleTimeout:   30 * time.Minute,
			Retention:     5 * time.Minute,
			SweepInterval: 30 * time.Second,
			Salt:          "skirmish",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "skirmishd",
		},
		LogLevel: "info",
	}
}

// LoadServer loads config from a YAML file over defaults, then applies
// SKIRMISH_* environment overrides. A missing file means defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
