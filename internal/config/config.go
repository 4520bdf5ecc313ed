// Package config provides Viper-based configuration loading for the hexbeat
// hosts.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Journal drivers.
const (
	JournalNone     = "none"
	JournalFile     = "file"
	JournalPostgres = "postgres"
	JournalSQLite   = "sqlite"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig selects the scenario and tunes the beat loop.
type SimulationConfig struct {
	// BPM is the tempo of the beat clock.
	BPM float64 `mapstructure:"bpm"`
	// Scenario is the path of the scenario YAML file.
	Scenario string `mapstructure:"scenario"`
	// TemplatesDir holds the unit template YAML files.
	TemplatesDir string `mapstructure:"templates_dir"`
	// ScriptDir holds Lua policy scripts; empty disables scripting.
	ScriptDir string `mapstructure:"script_dir"`
	// CheerBeats is how long units linger after completing their objective.
	CheerBeats int `mapstructure:"cheer_beats"`
	// InstructionLimit caps the Lua opcodes of one hook call.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Interval returns the beat duration at the configured tempo.
//
// Precondition: BPM > 0.
func (s SimulationConfig) Interval() time.Duration {
	return time.Duration(float64(time.Minute) / s.BPM)
}

// TransportConfig holds the listen addresses of the observer and command endpoints.
type TransportConfig struct {
	WSHost   string `mapstructure:"ws_host"`
	WSPort   int    `mapstructure:"ws_port"`
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// WSAddr returns the "host:port" WebSocket listen address.
func (t TransportConfig) WSAddr() string { return fmt.Sprintf("%s:%d", t.WSHost, t.WSPort) }

// GRPCAddr returns the "host:port" gRPC address.
func (t TransportConfig) GRPCAddr() string { return fmt.Sprintf("%s:%d", t.GRPCHost, t.GRPCPort) }

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JournalConfig selects where simulation events are recorded.
type JournalConfig struct {
	// Driver is one of "none", "file", "postgres", "sqlite".
	Driver string `mapstructure:"driver"`
	// Dir is the output directory of the file driver.
	Dir string `mapstructure:"dir"`
	// SQLitePath is the database file of the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
	// Buffer is the recorder's event queue capacity.
	Buffer int `mapstructure:"buffer"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Journal    JournalConfig    `mapstructure:"journal"`
}

// Validate checks all configuration invariants. The database section is only
// checked when the journal writes to PostgreSQL.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, validateLogging(c.Logging))
	errs = append(errs, validateSimulation(c.Simulation))
	errs = append(errs, validateTransport(c.Transport))
	errs = append(errs, validateJournal(c.Journal))
	if c.Journal.Driver == JournalPostgres {
		errs = append(errs, ValidateDatabase(c.Database))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.BPM <= 0 || s.BPM > 600 {
		errs = append(errs, fmt.Sprintf("simulation.bpm must be in (0, 600], got %v", s.BPM))
	}
	if s.Scenario == "" {
		errs = append(errs, "simulation.scenario must not be empty")
	}
	if s.TemplatesDir == "" {
		errs = append(errs, "simulation.templates_dir must not be empty")
	}
	if s.CheerBeats < 0 {
		errs = append(errs, fmt.Sprintf("simulation.cheer_beats must be >= 0, got %d", s.CheerBeats))
	}
	if s.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("simulation.instruction_limit must be >= 0, got %d", s.InstructionLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateTransport(t TransportConfig) error {
	var errs []string
	if t.WSPort < 1 || t.WSPort > 65535 {
		errs = append(errs, fmt.Sprintf("transport.ws_port must be 1-65535, got %d", t.WSPort))
	}
	if t.GRPCHost == "" {
		errs = append(errs, "transport.grpc_host must not be empty")
	}
	if t.GRPCPort < 1 || t.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("transport.grpc_port must be 1-65535, got %d", t.GRPCPort))
	}
	if t.WSPort == t.GRPCPort && t.WSHost == t.GRPCHost {
		errs = append(errs, "transport.ws_port and transport.grpc_port must differ")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateJournal(j JournalConfig) error {
	switch j.Driver {
	case JournalNone, JournalPostgres:
	case JournalFile:
		if j.Dir == "" {
			return errors.New("journal.dir must not be empty for the file driver")
		}
	case JournalSQLite:
		if j.SQLitePath == "" {
			return errors.New("journal.sqlite_path must not be empty for the sqlite driver")
		}
	default:
		return fmt.Errorf("journal.driver must be one of [none, file, postgres, sqlite], got %q", j.Driver)
	}
	if j.Buffer < 0 {
		return fmt.Errorf("journal.buffer must be >= 0, got %d", j.Buffer)
	}
	return nil
}

// ValidateDatabase checks the PostgreSQL settings.
//
// Postcondition: Returns nil, or every violation in one error.
func ValidateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and HEXBEAT_ environment
// overrides applied, e.g. HEXBEAT_SIMULATION_BPM.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HEXBEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("simulation.bpm", 120)
	v.SetDefault("simulation.scenario", "content/scenarios/border.yaml")
	v.SetDefault("simulation.templates_dir", "content/templates")
	v.SetDefault("simulation.script_dir", "")
	v.SetDefault("simulation.cheer_beats", 4)
	v.SetDefault("simulation.instruction_limit", 100000)

	v.SetDefault("transport.ws_host", "0.0.0.0")
	v.SetDefault("transport.ws_port", 8080)
	v.SetDefault("transport.grpc_host", "127.0.0.1")
	v.SetDefault("transport.grpc_port", 50051)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hexbeat")
	v.SetDefault("database.password", "hexbeat")
	v.SetDefault("database.name", "hexbeat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("journal.driver", JournalNone)
	v.SetDefault("journal.dir", "var/journal")
	v.SetDefault("journal.sqlite_path", "var/journal.db")
	v.SetDefault("journal.buffer", 1024)
}
