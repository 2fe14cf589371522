package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// ReceiptRepository implements port.ReceiptRepository on SQLite
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a receipt together with its line items
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			id, space_id, supplier_id, total_amount, currency, tax, date,
			payment_account_id, status, image_url, confidence, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := r.getExecutor(ctx)
	_, err := exec.ExecContext(ctx, query,
		receipt.ID,
		receipt.SpaceID,
		receipt.SupplierID,
		receipt.TotalAmount,
		receipt.Currency,
		receipt.Tax,
		receipt.Date,
		receipt.PaymentAccountID,
		receipt.Status,
		receipt.ImageURL,
		receipt.Confidence,
		receipt.CreatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt",
			zap.String("space_id", receipt.SpaceID),
			zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	for i := range receipt.Items {
		if err := r.insertItem(ctx, exec, receipt.ID, &receipt.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a receipt with its items, scoped to a space.
// Returns nil, nil when no such receipt exists in the space.
func (r *ReceiptRepository) GetByID(ctx context.Context, spaceID, id string) (*entity.Receipt, error) {
	query := `
		SELECT id, space_id, supplier_id, total_amount, currency, tax, date,
			payment_account_id, status, image_url, confidence, created_by,
			created_at, updated_at
		FROM receipts
		WHERE space_id = ? AND id = ?
	`

	receipt, err := r.scanReceipt(r.getExecutor(ctx).QueryRowContext(ctx, query, spaceID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get receipt", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	receipt.Items = items
	return receipt, nil
}

// ListBySpace returns all of a space's receipts, newest first, items included
func (r *ReceiptRepository) ListBySpace(ctx context.Context, spaceID string) ([]*entity.Receipt, error) {
	query := `
		SELECT id, space_id, supplier_id, total_amount, currency, tax, date,
			payment_account_id, status, image_url, confidence, created_by,
			created_at, updated_at
		FROM receipts
		WHERE space_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID)
	if err != nil {
		r.logger.Error("Failed to list receipts", zap.String("space_id", spaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.Receipt
	for rows.Next() {
		receipt, err := r.scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}

	for _, receipt := range receipts {
		items, err := r.loadItems(ctx, receipt.ID)
		if err != nil {
			return nil, err
		}
		receipt.Items = items
	}
	return receipts, nil
}

// Update rewrites the receipt header row
func (r *ReceiptRepository) Update(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		UPDATE receipts
		SET supplier_id = ?, total_amount = ?, currency = ?, tax = ?, date = ?,
			payment_account_id = ?, status = ?, image_url = ?, confidence = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE space_id = ? AND id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		receipt.SupplierID,
		receipt.TotalAmount,
		receipt.Currency,
		receipt.Tax,
		receipt.Date,
		receipt.PaymentAccountID,
		receipt.Status,
		receipt.ImageURL,
		receipt.Confidence,
		receipt.SpaceID,
		receipt.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update receipt", zap.String("id", receipt.ID), zap.Error(err))
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	return requireRowAffected(result, "receipt", receipt.ID)
}

// UpdateStatus sets only the lifecycle status
func (r *ReceiptRepository) UpdateStatus(ctx context.Context, spaceID, id, status string) error {
	query := `
		UPDATE receipts
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE space_id = ? AND id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, status, spaceID, id)
	if err != nil {
		r.logger.Error("Failed to update receipt status",
			zap.String("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update receipt status: %w", err)
	}
	return requireRowAffected(result, "receipt", id)
}

// ReplaceItems deletes the receipt's items and inserts the given ones
func (r *ReceiptRepository) ReplaceItems(ctx context.Context, spaceID, receiptID string, items []entity.ReceiptItem) error {
	exec := r.getExecutor(ctx)

	owned := `
		DELETE FROM receipt_items
		WHERE receipt_id = ?
		  AND receipt_id IN (SELECT id FROM receipts WHERE space_id = ?)
	`
	if _, err := exec.ExecContext(ctx, owned, receiptID, spaceID); err != nil {
		r.logger.Error("Failed to clear receipt items", zap.String("receipt_id", receiptID), zap.Error(err))
		return fmt.Errorf("failed to clear receipt items: %w", err)
	}

	for i := range items {
		if err := r.insertItem(ctx, exec, receiptID, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateItem rewrites one line item belonging to the space's receipt
func (r *ReceiptRepository) UpdateItem(ctx context.Context, spaceID, receiptID string, item *entity.ReceiptItem) error {
	query := `
		UPDATE receipt_items
		SET name = ?, category_id = ?, purpose_id = ?, price = ?, is_asset = ?, confidence = ?
		WHERE id = ? AND receipt_id = ?
		  AND receipt_id IN (SELECT id FROM receipts WHERE space_id = ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		item.Name,
		item.CategoryID,
		item.PurposeID,
		item.Price,
		item.IsAsset,
		item.Confidence,
		item.ID,
		receiptID,
		spaceID,
	)
	if err != nil {
		r.logger.Error("Failed to update receipt item", zap.String("item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to update receipt item: %w", err)
	}
	return requireRowAffected(result, "receipt item", item.ID)
}

// Delete removes a receipt; items go with it via ON DELETE CASCADE
func (r *ReceiptRepository) Delete(ctx context.Context, spaceID, id string) error {
	query := `DELETE FROM receipts WHERE space_id = ? AND id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, spaceID, id)
	if err != nil {
		r.logger.Error("Failed to delete receipt", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return requireRowAffected(result, "receipt", id)
}

// CurrencyCounts returns per-currency receipt counts for a space
func (r *ReceiptRepository) CurrencyCounts(ctx context.Context, spaceID string) (map[string]int, error) {
	query := `
		SELECT currency, COUNT(*)
		FROM receipts
		WHERE space_id = ? AND currency != ''
		GROUP BY currency
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, spaceID)
	if err != nil {
		r.logger.Error("Failed to count currencies", zap.String("space_id", spaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to count currencies: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var currency string
		var count int
		if err := rows.Scan(&currency, &count); err != nil {
			return nil, fmt.Errorf("failed to scan currency count: %w", err)
		}
		counts[currency] = count
	}
	return counts, rows.Err()
}

// ReassignSupplier moves all receipts from one supplier to another
func (r *ReceiptRepository) ReassignSupplier(ctx context.Context, spaceID, fromSupplierID, toSupplierID string) error {
	query := `
		UPDATE receipts
		SET supplier_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE space_id = ? AND supplier_id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, toSupplierID, spaceID, fromSupplierID)
	if err != nil {
		r.logger.Error("Failed to reassign supplier",
			zap.String("from", fromSupplierID),
			zap.String("to", toSupplierID),
			zap.Error(err))
		return fmt.Errorf("failed to reassign supplier: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) insertItem(ctx context.Context, exec executor, receiptID string, item *entity.ReceiptItem) error {
	query := `
		INSERT INTO receipt_items (id, receipt_id, name, category_id, purpose_id, price, is_asset, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	item.ReceiptID = receiptID
	_, err := exec.ExecContext(ctx, query,
		item.ID,
		receiptID,
		item.Name,
		item.CategoryID,
		item.PurposeID,
		item.Price,
		item.IsAsset,
		item.Confidence,
	)
	if err != nil {
		r.logger.Error("Failed to insert receipt item", zap.String("receipt_id", receiptID), zap.Error(err))
		return fmt.Errorf("failed to insert receipt item: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) loadItems(ctx context.Context, receiptID string) ([]entity.ReceiptItem, error) {
	query := `
		SELECT id, receipt_id, name, category_id, purpose_id, price, is_asset, confidence
		FROM receipt_items
		WHERE receipt_id = ?
		ORDER BY rowid
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt items: %w", err)
	}
	defer rows.Close()

	var items []entity.ReceiptItem
	for rows.Next() {
		var item entity.ReceiptItem
		if err := rows.Scan(
			&item.ID,
			&item.ReceiptID,
			&item.Name,
			&item.CategoryID,
			&item.PurposeID,
			&item.Price,
			&item.IsAsset,
			&item.Confidence,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ReceiptRepository) scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var receipt entity.Receipt
	err := row.Scan(
		&receipt.ID,
		&receipt.SpaceID,
		&receipt.SupplierID,
		&receipt.TotalAmount,
		&receipt.Currency,
		&receipt.Tax,
		&receipt.Date,
		&receipt.PaymentAccountID,
		&receipt.Status,
		&receipt.ImageURL,
		&receipt.Confidence,
		&receipt.CreatedBy,
		&receipt.CreatedAt,
		&receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *ReceiptRepository) getExecutor(ctx context.Context) executor {
	return executorFrom(ctx, r.db)
}

func requireRowAffected(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// Verify interface compliance
var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
