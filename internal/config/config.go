package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
	SweepSecret  string   `mapstructure:"sweep_secret"`
}

// WorkerConfig holds settlement worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// PolicyConfig holds the named knobs of the conquest economy. Every
// threshold the lifecycle, settlement and integrity passes consult lives
// here rather than in code.
type PolicyConfig struct {
	// ProtectionWindow is how long a new owner is shielded from challenges
	ProtectionWindow time.Duration `mapstructure:"protection_window"`
	// AbandonmentThreshold is the inactivity span after which a permanent
	// territory is warned
	AbandonmentThreshold time.Duration `mapstructure:"abandonment_threshold"`
	// AbandonmentWarningGrace is how long a warned owner has to act before
	// the territory is re-auctioned
	AbandonmentWarningGrace time.Duration `mapstructure:"abandonment_warning_grace"`
	// ReauctionDuration is the bidding window of sweep-opened auctions
	ReauctionDuration time.Duration `mapstructure:"reauction_duration"`
	// DefaultFloorPrice is the starting price when a territory has no
	// acquisition history
	DefaultFloorPrice int64 `mapstructure:"default_floor_price"`
	// SweepBatchSize bounds how many rows a single sweep pass claims
	SweepBatchSize int `mapstructure:"sweep_batch_size"`

	// ValueJumpFactor and TerritoryJumpLimit bound a single ranking
	// recompute; breaching either quarantines the update
	ValueJumpFactor    int64 `mapstructure:"value_jump_factor"`
	TerritoryJumpLimit int   `mapstructure:"territory_jump_limit"`

	// MinReporters, MinTrustedReporters, BrigadeWindow, BrigadeReportCount
	// and EscalateReportCount parameterize the report trust gate
	MinReporters        int           `mapstructure:"min_reporters"`
	MinTrustedReporters int           `mapstructure:"min_trusted_reporters"`
	BrigadeWindow       time.Duration `mapstructure:"brigade_window"`
	BrigadeReportCount  int           `mapstructure:"brigade_report_count"`
	EscalateReportCount int           `mapstructure:"escalate_report_count"`
}

// IntervalConfig holds the continuous sweeper's pass intervals
type IntervalConfig struct {
	Lifecycle  time.Duration `mapstructure:"lifecycle"`
	Settlement time.Duration `mapstructure:"settlement"`
	Rankings   time.Duration `mapstructure:"rankings"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Policy     PolicyConfig   `mapstructure:"policy"`
	Worker     WorkerConfig   `mapstructure:"worker"`
}

// SweeperConfig holds configuration for the continuous sweeper program
type SweeperConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Policy     PolicyConfig   `mapstructure:"policy"`
	Worker     WorkerConfig   `mapstructure:"worker"`
	Intervals  IntervalConfig `mapstructure:"intervals"`
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "CONQUEST_EVENTS")
	v.SetDefault("worker.pool_size", 10)
	v.SetDefault("worker.queue_size", 256)
	setPolicyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "CONQUEST_EVENTS")
	v.SetDefault("worker.pool_size", 10)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("intervals.lifecycle", "1m")
	v.SetDefault("intervals.settlement", "30s")
	v.SetDefault("intervals.rankings", "10m")
	setPolicyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setPolicyDefaults(v *viper.Viper) {
	v.SetDefault("policy.protection_window", "168h")         // 7 days
	v.SetDefault("policy.abandonment_threshold", "720h")     // 30 days
	v.SetDefault("policy.abandonment_warning_grace", "168h") // 7 days
	v.SetDefault("policy.reauction_duration", "24h")
	v.SetDefault("policy.default_floor_price", 100)
	v.SetDefault("policy.sweep_batch_size", 100)
	v.SetDefault("policy.value_jump_factor", 100)
	v.SetDefault("policy.territory_jump_limit", 50)
	v.SetDefault("policy.min_reporters", 3)
	v.SetDefault("policy.min_trusted_reporters", 2)
	v.SetDefault("policy.brigade_window", "5m")
	v.SetDefault("policy.brigade_report_count", 3)
	v.SetDefault("policy.escalate_report_count", 5)
}

func validateDatabase(db DatabaseConfig) error {
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.DBName == "" {
		return errors.New("database.dbname is required")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/sweeper/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("CONQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		"auth.sweep_secret",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// Policy
		"policy.protection_window",
		"policy.abandonment_threshold",
		"policy.abandonment_warning_grace",
		"policy.reauction_duration",
		"policy.default_floor_price",
		"policy.sweep_batch_size",
		"policy.value_jump_factor",
		"policy.territory_jump_limit",
		"policy.min_reporters",
		"policy.min_trusted_reporters",
		"policy.brigade_window",
		"policy.brigade_report_count",
		"policy.escalate_report_count",
		// Intervals
		"intervals.lifecycle",
		"intervals.settlement",
		"intervals.rankings",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
