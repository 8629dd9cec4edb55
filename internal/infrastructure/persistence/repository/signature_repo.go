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

const signatureColumns = `id, service_approval_id, signature_image, image_path, signed_name, confirmation_checked, signed_at`

// SignatureRepository implements port.SignatureRepository
type SignatureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *sql.DB, logger *zap.Logger) port.SignatureRepository {
	return &SignatureRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a signature. Signatures are never updated.
func (r *SignatureRepository) Create(ctx context.Context, sig *entity.DigitalSignature) error {
	query := `INSERT INTO digital_signatures (` + signatureColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		sig.ID,
		sig.ServiceApprovalID,
		sig.SignatureImage,
		sig.ImagePath,
		sig.SignedName,
		sig.ConfirmationChecked,
		sig.SignedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create signature", zap.String("id", sig.ID), zap.Error(err))
		return fmt.Errorf("failed to create signature: %w", err)
	}

	return nil
}

// GetByID retrieves a signature by ID
func (r *SignatureRepository) GetByID(ctx context.Context, id string) (*entity.DigitalSignature, error) {
	return r.queryOne(ctx, `SELECT `+signatureColumns+` FROM digital_signatures WHERE id = ?`, id)
}

// GetByApprovalID retrieves the signature captured for an approval
func (r *SignatureRepository) GetByApprovalID(ctx context.Context, approvalID string) (*entity.DigitalSignature, error) {
	return r.queryOne(ctx, `SELECT `+signatureColumns+` FROM digital_signatures WHERE service_approval_id = ?`, approvalID)
}

func (r *SignatureRepository) queryOne(ctx context.Context, query string, arg string) (*entity.DigitalSignature, error) {
	var sig entity.DigitalSignature
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&sig.ID,
		&sig.ServiceApprovalID,
		&sig.SignatureImage,
		&sig.ImagePath,
		&sig.SignedName,
		&sig.ConfirmationChecked,
		&sig.SignedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get signature", zap.String("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}

	return &sig, nil
}

// Verify interface compliance
var _ port.SignatureRepository = (*SignatureRepository)(nil)
