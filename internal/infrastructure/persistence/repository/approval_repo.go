package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/infrastructure/persistence/sqlite"
)

const approvalColumns = `
	id, token, service_order_id, company_id, type, status, items_snapshot,
	total_value, description, created_at, created_by, responded_at,
	rejection_reason, verification_hash, approval_method, digital_signature_id,
	evidence_id, receipt_url, ip_address, user_agent`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts the approval or replaces the stored row with the same id
func (r *ApprovalRepository) Save(ctx context.Context, a *entity.ServiceApproval) error {
	items, err := json.Marshal(a.ItemsSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode items snapshot: %w", err)
	}

	var respondedAt sql.NullTime
	if a.RespondedAt != nil {
		respondedAt = sql.NullTime{Time: a.RespondedAt.UTC(), Valid: true}
	}

	res := a.Flatten()

	query := `
		INSERT INTO service_approvals (` + approvalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			service_order_id = excluded.service_order_id,
			company_id = excluded.company_id,
			type = excluded.type,
			status = excluded.status,
			items_snapshot = excluded.items_snapshot,
			total_value = excluded.total_value,
			description = excluded.description,
			created_at = excluded.created_at,
			created_by = excluded.created_by,
			responded_at = excluded.responded_at,
			rejection_reason = excluded.rejection_reason,
			verification_hash = excluded.verification_hash,
			approval_method = excluded.approval_method,
			digital_signature_id = excluded.digital_signature_id,
			evidence_id = excluded.evidence_id,
			receipt_url = excluded.receipt_url,
			ip_address = excluded.ip_address,
			user_agent = excluded.user_agent
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		a.ID,
		a.Token,
		a.ServiceOrderID,
		a.CompanyID,
		string(a.Type),
		string(a.Status),
		string(items),
		a.TotalValue,
		a.Description,
		a.CreatedAt.UTC(),
		a.CreatedBy,
		respondedAt,
		a.RejectionReason,
		nullString(a.VerificationHash),
		string(res.Method),
		res.DigitalSignatureID,
		res.EvidenceID,
		res.ReceiptURL,
		res.IPAddress,
		res.UserAgent,
	)
	if err != nil {
		r.logger.Error("Failed to save approval", zap.String("id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to save approval: %w", err)
	}

	return nil
}

// SaveDecision records the outcome of a pending approval. The status guard
// in the WHERE clause makes a second decision affect no rows.
func (r *ApprovalRepository) SaveDecision(ctx context.Context, a *entity.ServiceApproval) error {
	var respondedAt sql.NullTime
	if a.RespondedAt != nil {
		respondedAt = sql.NullTime{Time: a.RespondedAt.UTC(), Valid: true}
	}

	res := a.Flatten()

	query := `
		UPDATE service_approvals SET
			status = ?,
			responded_at = ?,
			rejection_reason = ?,
			verification_hash = ?,
			approval_method = ?,
			digital_signature_id = ?,
			evidence_id = ?,
			receipt_url = ?,
			ip_address = ?,
			user_agent = ?
		WHERE id = ? AND status = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		string(a.Status),
		respondedAt,
		a.RejectionReason,
		nullString(a.VerificationHash),
		string(res.Method),
		res.DigitalSignatureID,
		res.EvidenceID,
		res.ReceiptURL,
		res.IPAddress,
		res.UserAgent,
		a.ID,
		string(entity.ApprovalStatusPending),
	)
	if err != nil {
		r.logger.Error("Failed to save approval decision", zap.String("id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to save approval decision: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrApprovalNotPending
	}
	return nil
}

// List returns every approval, newest first
func (r *ApprovalRepository) List(ctx context.Context) ([]*entity.ServiceApproval, error) {
	return r.query(ctx, `SELECT `+approvalColumns+` FROM service_approvals ORDER BY created_at DESC, rowid DESC`)
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.ServiceApproval, error) {
	return r.queryOne(ctx, `SELECT `+approvalColumns+` FROM service_approvals WHERE id = ?`, id)
}

// GetByToken retrieves an approval by its public token
func (r *ApprovalRepository) GetByToken(ctx context.Context, token string) (*entity.ServiceApproval, error) {
	return r.queryOne(ctx, `SELECT `+approvalColumns+` FROM service_approvals WHERE token = ?`, token)
}

// GetByVerificationHash retrieves an approval by hash, across companies
func (r *ApprovalRepository) GetByVerificationHash(ctx context.Context, hash string) (*entity.ServiceApproval, error) {
	if hash == "" {
		return nil, nil
	}
	return r.queryOne(ctx, `SELECT `+approvalColumns+` FROM service_approvals WHERE verification_hash = ?`, hash)
}

// GetLatestByOrderID returns the most recently created approval of an order
func (r *ApprovalRepository) GetLatestByOrderID(ctx context.Context, orderID string) (*entity.ServiceApproval, error) {
	return r.queryOne(ctx, `
		SELECT `+approvalColumns+` FROM service_approvals
		WHERE service_order_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, orderID)
}

// ListByOrderID returns the approvals of an order, newest first
func (r *ApprovalRepository) ListByOrderID(ctx context.Context, orderID string) ([]*entity.ServiceApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+` FROM service_approvals
		WHERE service_order_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, orderID)
}

func (r *ApprovalRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*entity.ServiceApproval, error) {
	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, args...)

	approval, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval", zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ServiceApproval, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.ServiceApproval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}

	return approvals, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApproval(s scanner) (*entity.ServiceApproval, error) {
	var (
		a           entity.ServiceApproval
		typ, status string
		items       string
		respondedAt sql.NullTime
		hash        sql.NullString
		res         entity.ResolutionFields
		method      string
	)

	err := s.Scan(
		&a.ID,
		&a.Token,
		&a.ServiceOrderID,
		&a.CompanyID,
		&typ,
		&status,
		&items,
		&a.TotalValue,
		&a.Description,
		&a.CreatedAt,
		&a.CreatedBy,
		&respondedAt,
		&a.RejectionReason,
		&hash,
		&method,
		&res.DigitalSignatureID,
		&res.EvidenceID,
		&res.ReceiptURL,
		&res.IPAddress,
		&res.UserAgent,
	)
	if err != nil {
		return nil, err
	}

	a.Type = entity.ApprovalType(typ)
	a.Status = entity.ApprovalStatus(status)
	a.VerificationHash = hash.String
	if respondedAt.Valid {
		t := respondedAt.Time
		a.RespondedAt = &t
	}

	res.Method = entity.ApprovalMethod(method)
	a.Resolution = res.Resolution()

	if err := json.Unmarshal([]byte(items), &a.ItemsSnapshot); err != nil {
		return nil, fmt.Errorf("failed to decode items snapshot: %w", err)
	}

	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
