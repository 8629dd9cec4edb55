package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Approval store backends
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Approval ApprovalConfig `mapstructure:"approval"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// StorageConfig holds the root directory for signature images and documents
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ApprovalConfig holds approval flow settings
type ApprovalConfig struct {
	Backend       string        `mapstructure:"backend"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	VerifyDelay   time.Duration `mapstructure:"verify_delay"`
}

// DynamoDBConfig holds the DynamoDB backend settings
type DynamoDBConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ApprovalsTable  string `mapstructure:"approvals_table"`
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Async bool `mapstructure:"async"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from the YAML file at configPath (optional), a
// .env file in the working directory (optional) and environment variables.
// Environment wins over the file.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("APPROVALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("storage.base_dir", "data/files")

	// Approval defaults
	v.SetDefault("approval.backend", BackendSQLite)
	v.SetDefault("approval.public_base_url", "http://localhost:8080")
	v.SetDefault("approval.verify_delay", 800*time.Millisecond)

	v.SetDefault("dynamodb.region", "us-east-1")
	v.SetDefault("dynamodb.approvals_table", "service_approvals")

	v.SetDefault("audit.async", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional AWS variables in addition to the
// APPROVALS_* names picked up by AutomaticEnv
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"dynamodb.region":            {"APPROVALS_DYNAMODB_REGION", "AWS_REGION"},
		"dynamodb.endpoint":          {"APPROVALS_DYNAMODB_ENDPOINT", "DYNAMODB_ENDPOINT"},
		"dynamodb.access_key_id":     {"APPROVALS_DYNAMODB_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
		"dynamodb.secret_access_key": {"APPROVALS_DYNAMODB_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
		"server.port":                {"APPROVALS_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Approval.Backend {
	case BackendSQLite:
	case BackendDynamoDB:
		if c.DynamoDB.ApprovalsTable == "" {
			return fmt.Errorf("dynamodb.approvals_table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("approval.backend must be %q or %q, got %q", BackendSQLite, BackendDynamoDB, c.Approval.Backend)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	u, err := url.Parse(c.Approval.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("approval.public_base_url must be an absolute http(s) URL, got %q", c.Approval.PublicBaseURL)
	}
	if c.Approval.VerifyDelay < 0 {
		return fmt.Errorf("approval.verify_delay must not be negative")
	}

	return nil
}
