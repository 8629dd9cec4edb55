package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/dispatcher"
	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/application/service"
	"github.com/providencia/approvals/internal/infrastructure/audit"
	"github.com/providencia/approvals/internal/infrastructure/persistence/dynamo"
	"github.com/providencia/approvals/internal/infrastructure/persistence/repository"
	"github.com/providencia/approvals/internal/infrastructure/persistence/sqlite"
	"github.com/providencia/approvals/migrations"
	"github.com/providencia/approvals/pkg/database"
	"github.com/providencia/approvals/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Database       *database.DB
	TransactionMgr *sqlite.DB
}

// AuditBundle holds the event dispatcher and the audit sink publishing on it.
type AuditBundle struct {
	Dispatcher dispatcher.Dispatcher
	Sink       port.AuditSink
}

// ProvideDatabase opens the SQLite database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run(migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		logger.Info("Applied migrations", zap.Int("count", applied))
	}

	return &DatabaseBundle{
		Database:       db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories. Approvals use the configured
// backend; everything else lives in SQLite.
func ProvideRepositories(ctx context.Context, sqlDB *sql.DB, cfg *Config, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	approvals, err := provideApprovalRepository(ctx, sqlDB, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &RepositoryBundle{
		Approval:  approvals,
		Signature: repository.NewSignatureRepository(sqlDB, logger),
		Evidence:  repository.NewEvidenceRepository(sqlDB, logger),
		Order:     repository.NewOrderRepository(sqlDB, logger),
		Company:   repository.NewCompanyRepository(sqlDB, logger),
		Audit:     repository.NewAuditRepository(sqlDB, logger),
	}, nil
}

func provideApprovalRepository(ctx context.Context, sqlDB *sql.DB, cfg *Config, logger *zap.Logger) (port.ApprovalRepository, error) {
	if cfg.Approval.Backend != BackendDynamoDB {
		return repository.NewApprovalRepository(sqlDB, logger), nil
	}

	client, err := dynamo.NewClient(ctx, dynamo.Config{
		Region:          cfg.DynamoDB.Region,
		Endpoint:        cfg.DynamoDB.Endpoint,
		AccessKeyID:     cfg.DynamoDB.AccessKeyID,
		SecretAccessKey: cfg.DynamoDB.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamodb client: %w", err)
	}

	logger.Info("Using DynamoDB approval store",
		zap.String("table", cfg.DynamoDB.ApprovalsTable),
		zap.String("region", cfg.DynamoDB.Region))
	return dynamo.NewApprovalRepository(client, cfg.DynamoDB.ApprovalsTable, logger), nil
}

// ProvideAudit creates the dispatcher, subscribes the audit handlers and
// returns the sink the services record into.
func ProvideAudit(repo port.AuditRepository, cfg *AuditConfig, logger *zap.Logger) *AuditBundle {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	audit.Register(d, repo, logger)

	return &AuditBundle{
		Dispatcher: d,
		Sink:       audit.NewEventSink(d, logger, audit.WithAsync(cfg.Async)),
	}
}

// ServiceDeps contains dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Files     port.FileStorage
	Audit     port.AuditSink
	Logger    *zap.Logger
}

// ProvideServices creates the application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := utils.NewKVLogger(deps.Logger)

	return &ServiceBundle{
		Approval: service.NewApprovalService(service.ApprovalServiceDeps{
			Approvals:  deps.Repos.Approval,
			Signatures: deps.Repos.Signature,
			Evidence:   deps.Repos.Evidence,
			Orders:     deps.Repos.Order,
			TxManager:  deps.TxManager,
			Files:      deps.Files,
			Audit:      deps.Audit,
			Logger:     logger,
		}),
		Verification: service.NewVerificationService(
			deps.Repos.Approval,
			deps.Repos.Order,
			deps.Repos.Company,
			deps.Audit,
			logger,
		),
		AuditTrail: service.NewAuditTrailService(deps.Repos.Audit),
	}, nil
}
