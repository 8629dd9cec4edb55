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

// OrderRepository implements port.OrderRepository over the service_orders projection
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) port.OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new service order
func (r *OrderRepository) Create(ctx context.Context, o *entity.ServiceOrder) error {
	items, history, err := encodeOrder(o)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO service_orders (
			id, company_id, customer_name, customer_phone, technician_name,
			status, items, status_history, total_value, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		o.ID,
		o.CompanyID,
		o.CustomerName,
		o.CustomerPhone,
		o.TechnicianName,
		o.Status,
		items,
		history,
		o.TotalValue,
		o.CreatedAt.UTC(),
		o.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create service order", zap.String("id", o.ID), zap.Error(err))
		return fmt.Errorf("failed to create service order: %w", err)
	}

	return nil
}

// GetByID retrieves a service order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	query := `
		SELECT id, company_id, customer_name, customer_phone, technician_name,
			status, items, status_history, total_value, created_at, updated_at
		FROM service_orders WHERE id = ?
	`

	var (
		o              entity.ServiceOrder
		items, history string
	)
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.CompanyID,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.TechnicianName,
		&o.Status,
		&items,
		&history,
		&o.TotalValue,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get service order", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get service order: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &o.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to decode status history: %w", err)
	}

	return &o, nil
}

// Update replaces the mutable fields of a service order
func (r *OrderRepository) Update(ctx context.Context, o *entity.ServiceOrder) error {
	items, history, err := encodeOrder(o)
	if err != nil {
		return err
	}

	query := `
		UPDATE service_orders SET
			customer_name = ?, customer_phone = ?, technician_name = ?,
			status = ?, items = ?, status_history = ?, total_value = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		o.CustomerName,
		o.CustomerPhone,
		o.TechnicianName,
		o.Status,
		items,
		history,
		o.TotalValue,
		o.UpdatedAt.UTC(),
		o.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update service order", zap.String("id", o.ID), zap.Error(err))
		return fmt.Errorf("failed to update service order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("service order not found: %s", o.ID)
	}

	return nil
}

func encodeOrder(o *entity.ServiceOrder) (string, string, error) {
	items := o.Items
	if items == nil {
		items = []entity.OrderItem{}
	}
	history := o.StatusHistory
	if history == nil {
		history = []entity.StatusChange{}
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode order items: %w", err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode status history: %w", err)
	}

	return string(itemsJSON), string(historyJSON), nil
}

// Verify interface compliance
var _ port.OrderRepository = (*OrderRepository)(nil)
