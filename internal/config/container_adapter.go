package config

import (
	"github.com/providencia/approvals/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Storage: container.StorageConfig{
			BaseDir: c.Storage.BaseDir,
		},
		Approval: container.ApprovalConfig{
			Backend: c.Approval.Backend,
		},
		DynamoDB: container.DynamoDBConfig{
			Region:          c.DynamoDB.Region,
			Endpoint:        c.DynamoDB.Endpoint,
			AccessKeyID:     c.DynamoDB.AccessKeyID,
			SecretAccessKey: c.DynamoDB.SecretAccessKey,
			ApprovalsTable:  c.DynamoDB.ApprovalsTable,
		},
		Audit: container.AuditConfig{
			Async: c.Audit.Async,
		},
	}
}
