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
)

// EvidenceRepository implements port.EvidenceRepository
type EvidenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *sql.DB, logger *zap.Logger) port.EvidenceRepository {
	return &EvidenceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an uploaded document record
func (r *EvidenceRepository) Create(ctx context.Context, ev *entity.Evidence) error {
	query := `
		INSERT INTO approval_evidences (
			id, service_approval_id, service_order_id, document_ref,
			file_name, mime_type, size, uploaded_at, uploaded_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		ev.ID,
		ev.ServiceApprovalID,
		ev.ServiceOrderID,
		ev.DocumentRef,
		ev.FileName,
		ev.MimeType,
		ev.Size,
		ev.UploadedAt.UTC(),
		ev.UploadedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create evidence", zap.String("id", ev.ID), zap.Error(err))
		return fmt.Errorf("failed to create evidence: %w", err)
	}

	return nil
}

// GetByID retrieves an evidence record by ID
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*entity.Evidence, error) {
	query := `
		SELECT id, service_approval_id, service_order_id, document_ref,
			file_name, mime_type, size, uploaded_at, uploaded_by
		FROM approval_evidences WHERE id = ?
	`

	var ev entity.Evidence
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&ev.ID,
		&ev.ServiceApprovalID,
		&ev.ServiceOrderID,
		&ev.DocumentRef,
		&ev.FileName,
		&ev.MimeType,
		&ev.Size,
		&ev.UploadedAt,
		&ev.UploadedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get evidence", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}

	return &ev, nil
}

// Verify interface compliance
var _ port.EvidenceRepository = (*EvidenceRepository)(nil)
