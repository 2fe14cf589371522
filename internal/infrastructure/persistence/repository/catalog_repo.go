package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// CatalogRepository implements port.CatalogRepository on SQLite
type CatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, logger *zap.Logger) port.CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// ListCategories returns a space's categories in creation order
func (r *CatalogRepository) ListCategories(ctx context.Context, spaceID string) ([]*entity.Category, error) {
	query := `
		SELECT id, space_id, name, color, is_default, created_at, updated_at
		FROM categories
		WHERE space_id = ?
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.String("space_id", spaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.SpaceID, &c.Name, &c.Color, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// CreateCategory inserts a category
func (r *CatalogRepository) CreateCategory(ctx context.Context, category *entity.Category) error {
	query := `
		INSERT INTO categories (id, space_id, name, color, is_default)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		category.ID, category.SpaceID, category.Name, category.Color, category.IsDefault)
	if err != nil {
		r.logger.Error("Failed to create category", zap.String("name", category.Name), zap.Error(err))
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// ListPurposes returns a space's purposes in creation order
func (r *CatalogRepository) ListPurposes(ctx context.Context, spaceID string) ([]*entity.Purpose, error) {
	query := `
		SELECT id, space_id, name, is_default, created_at, updated_at
		FROM purposes
		WHERE space_id = ?
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID)
	if err != nil {
		r.logger.Error("Failed to list purposes", zap.String("space_id", spaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list purposes: %w", err)
	}
	defer rows.Close()

	var purposes []*entity.Purpose
	for rows.Next() {
		var p entity.Purpose
		if err := rows.Scan(&p.ID, &p.SpaceID, &p.Name, &p.IsDefault, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purpose: %w", err)
		}
		purposes = append(purposes, &p)
	}
	return purposes, rows.Err()
}

// CreatePurpose inserts a purpose
func (r *CatalogRepository) CreatePurpose(ctx context.Context, purpose *entity.Purpose) error {
	query := `
		INSERT INTO purposes (id, space_id, name, is_default)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		purpose.ID, purpose.SpaceID, purpose.Name, purpose.IsDefault)
	if err != nil {
		r.logger.Error("Failed to create purpose", zap.String("name", purpose.Name), zap.Error(err))
		return fmt.Errorf("failed to create purpose: %w", err)
	}
	return nil
}

// ListPaymentAccounts returns a space's payment accounts in creation order
func (r *CatalogRepository) ListPaymentAccounts(ctx context.Context, spaceID string) ([]*entity.PaymentAccount, error) {
	query := `
		SELECT id, space_id, name, tax_number, is_ai_recognized, created_at, updated_at
		FROM payment_accounts
		WHERE space_id = ?
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID)
	if err != nil {
		r.logger.Error("Failed to list payment accounts", zap.String("space_id", spaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list payment accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*entity.PaymentAccount
	for rows.Next() {
		var a entity.PaymentAccount
		if err := rows.Scan(&a.ID, &a.SpaceID, &a.Name, &a.TaxNumber, &a.IsAIRecognized, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// CreatePaymentAccount inserts a payment account
func (r *CatalogRepository) CreatePaymentAccount(ctx context.Context, account *entity.PaymentAccount) error {
	query := `
		INSERT INTO payment_accounts (id, space_id, name, tax_number, is_ai_recognized)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		account.ID, account.SpaceID, account.Name, account.TaxNumber, account.IsAIRecognized)
	if err != nil {
		r.logger.Error("Failed to create payment account", zap.String("name", account.Name), zap.Error(err))
		return fmt.Errorf("failed to create payment account: %w", err)
	}
	return nil
}

// UpdatePaymentAccount rewrites a payment account's mutable fields
func (r *CatalogRepository) UpdatePaymentAccount(ctx context.Context, account *entity.PaymentAccount) error {
	query := `
		UPDATE payment_accounts
		SET name = ?, tax_number = ?, is_ai_recognized = ?, updated_at = CURRENT_TIMESTAMP
		WHERE space_id = ? AND id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		account.Name, account.TaxNumber, account.IsAIRecognized, account.SpaceID, account.ID)
	if err != nil {
		r.logger.Error("Failed to update payment account", zap.String("id", account.ID), zap.Error(err))
		return fmt.Errorf("failed to update payment account: %w", err)
	}
	return requireRowAffected(result, "payment account", account.ID)
}

// ListSuppliers returns a space's suppliers in creation order
func (r *CatalogRepository) ListSuppliers(ctx context.Context, spaceID string) ([]*entity.Supplier, error) {
	query := `
		SELECT id, space_id, name, tax_number, phone, address, is_ai_recognized, created_at, updated_at
		FROM suppliers
		WHERE space_id = ?
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID)
	if err != nil {
		r.logger.Error("Failed to list suppliers", zap.String("space_id", spaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []*entity.Supplier
	for rows.Next() {
		var s entity.Supplier
		if err := rows.Scan(&s.ID, &s.SpaceID, &s.Name, &s.TaxNumber, &s.Phone, &s.Address,
			&s.IsAIRecognized, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, &s)
	}
	return suppliers, rows.Err()
}

// CreateSupplier inserts a supplier
func (r *CatalogRepository) CreateSupplier(ctx context.Context, supplier *entity.Supplier) error {
	query := `
		INSERT INTO suppliers (id, space_id, name, tax_number, phone, address, is_ai_recognized)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		supplier.ID, supplier.SpaceID, supplier.Name, supplier.TaxNumber,
		supplier.Phone, supplier.Address, supplier.IsAIRecognized)
	if err != nil {
		r.logger.Error("Failed to create supplier", zap.String("name", supplier.Name), zap.Error(err))
		return fmt.Errorf("failed to create supplier: %w", err)
	}
	return nil
}

// UpdateSupplier rewrites a supplier's mutable fields
func (r *CatalogRepository) UpdateSupplier(ctx context.Context, supplier *entity.Supplier) error {
	query := `
		UPDATE suppliers
		SET name = ?, tax_number = ?, phone = ?, address = ?, is_ai_recognized = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE space_id = ? AND id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		supplier.Name, supplier.TaxNumber, supplier.Phone, supplier.Address,
		supplier.IsAIRecognized, supplier.SpaceID, supplier.ID)
	if err != nil {
		r.logger.Error("Failed to update supplier", zap.String("id", supplier.ID), zap.Error(err))
		return fmt.Errorf("failed to update supplier: %w", err)
	}
	return requireRowAffected(result, "supplier", supplier.ID)
}

// DeleteSupplier removes a supplier row
func (r *CatalogRepository) DeleteSupplier(ctx context.Context, spaceID, id string) error {
	query := `DELETE FROM suppliers WHERE space_id = ? AND id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, spaceID, id)
	if err != nil {
		r.logger.Error("Failed to delete supplier", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete supplier: %w", err)
	}
	return requireRowAffected(result, "supplier", id)
}

// MergeHistory maps normalized source names to surviving IDs for a kind
func (r *CatalogRepository) MergeHistory(ctx context.Context, spaceID string, kind entity.EntityKind) (map[string]string, error) {
	query := `
		SELECT source_name, target_id
		FROM entity_merges
		WHERE space_id = ? AND kind = ?
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID, string(kind))
	if err != nil {
		r.logger.Error("Failed to load merge history",
			zap.String("space_id", spaceID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load merge history: %w", err)
	}
	defer rows.Close()

	history := make(map[string]string)
	for rows.Next() {
		var sourceName, targetID string
		if err := rows.Scan(&sourceName, &targetID); err != nil {
			return nil, fmt.Errorf("failed to scan merge record: %w", err)
		}
		// later merges of the same name win
		history[sourceName] = targetID
	}
	return history, rows.Err()
}

// RecordMerge appends one merge record
func (r *CatalogRepository) RecordMerge(ctx context.Context, record *entity.MergeRecord) error {
	query := `
		INSERT INTO entity_merges (space_id, kind, source_name, target_id)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.SpaceID, string(record.Kind), record.SourceName, record.TargetID)
	if err != nil {
		r.logger.Error("Failed to record merge",
			zap.String("source_name", record.SourceName),
			zap.Error(err))
		return fmt.Errorf("failed to record merge: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

func (r *CatalogRepository) getExecutor(ctx context.Context) executor {
	return executorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.CatalogRepository = (*CatalogRepository)(nil)
