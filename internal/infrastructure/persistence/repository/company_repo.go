package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/infrastructure/persistence/sqlite"
	"github.com/providencia/approvals/pkg/utils"
)

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a tenant. A CNPJ, when given, must carry valid check digits.
func (r *CompanyRepository) Create(ctx context.Context, c *entity.Company) error {
	if c.CNPJ != "" {
		if err := utils.ValidateCNPJ(c.CNPJ); err != nil {
			return fmt.Errorf("failed to create company: %w", err)
		}
	}

	query := `INSERT INTO companies (id, name, cnpj, created_at) VALUES (?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, c.ID, c.Name, c.CNPJ, c.CreatedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to create company", zap.String("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	return nil
}

// GetByID retrieves a tenant by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `SELECT id, name, cnpj, created_at FROM companies WHERE id = ?`

	var c entity.Company
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.CNPJ, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &c, nil
}

// Verify interface compliance
var _ port.CompanyRepository = (*CompanyRepository)(nil)
