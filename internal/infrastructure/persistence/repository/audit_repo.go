package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository. Rows are only ever inserted.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an entry and sets its ID
func (r *AuditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	var changes sql.NullString
	if len(entry.Changes) > 0 {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("failed to encode audit changes: %w", err)
		}
		changes = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO audit_logs (
			action, entity_type, entity_id, company_id, actor_id, actor_name,
			details, changes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.CompanyID,
		entry.ActorID,
		entry.ActorName,
		entry.Details,
		changes,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create audit log", zap.String("action", entry.Action), zap.Error(err))
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit log id: %w", err)
	}
	entry.ID = id

	return nil
}

// ListByEntity returns the trail of one entity in insertion order
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, action, entity_type, entity_id, company_id, actor_id, actor_name,
			details, changes, created_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit logs", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var (
			e       entity.AuditEntry
			changes sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.CompanyID,
			&e.ActorID,
			&e.ActorName,
			&e.Details,
			&changes,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if changes.Valid && changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &e.Changes); err != nil {
				return nil, fmt.Errorf("failed to decode audit changes: %w", err)
			}
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
