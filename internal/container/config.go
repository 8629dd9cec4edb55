// Package container provides dependency injection and lifecycle management
// for the approval service.
package container

import (
	"fmt"
	"time"
)

// Approval store backends
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Approval ApprovalConfig
	DynamoDB DynamoDBConfig
	Audit    AuditConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir is the root for signature images and signed documents
	BaseDir string
}

// ApprovalConfig selects the approval store.
type ApprovalConfig struct {
	Backend string
}

// DynamoDBConfig holds the DynamoDB backend settings.
type DynamoDBConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ApprovalsTable  string
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Async delivers audit entries in background goroutines
	Async bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/approvals.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			BusyTimeout:  5 * time.Second,
		},
		Storage: StorageConfig{
			BaseDir: "data/files",
		},
		Approval: ApprovalConfig{
			Backend: BackendSQLite,
		},
		DynamoDB: DynamoDBConfig{
			Region:         "us-east-1",
			ApprovalsTable: "service_approvals",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	switch c.Approval.Backend {
	case BackendSQLite:
	case BackendDynamoDB:
		if c.DynamoDB.ApprovalsTable == "" {
			return fmt.Errorf("dynamodb.approvals_table is required")
		}
	default:
		return fmt.Errorf("unknown approval backend %q", c.Approval.Backend)
	}

	return nil
}
