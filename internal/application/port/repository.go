package port

import (
	"context"

	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// ReceiptRepository defines persistence operations for receipts and their
// items. Every method is scoped by space ID; cross-space reads or writes
// must be impossible through this interface.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	GetByID(ctx context.Context, spaceID, id string) (*entity.Receipt, error)
	ListBySpace(ctx context.Context, spaceID string) ([]*entity.Receipt, error)
	Update(ctx context.Context, receipt *entity.Receipt) error
	UpdateStatus(ctx context.Context, spaceID, id, status string) error
	ReplaceItems(ctx context.Context, spaceID, receiptID string, items []entity.ReceiptItem) error
	UpdateItem(ctx context.Context, spaceID, receiptID string, item *entity.ReceiptItem) error
	Delete(ctx context.Context, spaceID, id string) error
	// CurrencyCounts returns how often each currency appears in the space's
	// receipts, used to pick the default currency during normalization.
	CurrencyCounts(ctx context.Context, spaceID string) (map[string]int, error)
	ReassignSupplier(ctx context.Context, spaceID, fromSupplierID, toSupplierID string) error
}

// CatalogRepository defines persistence operations for the resolvable
// entity tables: categories, purposes, payment accounts, and suppliers.
type CatalogRepository interface {
	ListCategories(ctx context.Context, spaceID string) ([]*entity.Category, error)
	CreateCategory(ctx context.Context, category *entity.Category) error

	ListPurposes(ctx context.Context, spaceID string) ([]*entity.Purpose, error)
	CreatePurpose(ctx context.Context, purpose *entity.Purpose) error

	ListPaymentAccounts(ctx context.Context, spaceID string) ([]*entity.PaymentAccount, error)
	CreatePaymentAccount(ctx context.Context, account *entity.PaymentAccount) error
	UpdatePaymentAccount(ctx context.Context, account *entity.PaymentAccount) error

	ListSuppliers(ctx context.Context, spaceID string) ([]*entity.Supplier, error)
	CreateSupplier(ctx context.Context, supplier *entity.Supplier) error
	UpdateSupplier(ctx context.Context, supplier *entity.Supplier) error
	DeleteSupplier(ctx context.Context, spaceID, id string) error

	// MergeHistory maps normalized source names to surviving entity IDs for
	// one entity kind in a space.
	MergeHistory(ctx context.Context, spaceID string, kind entity.EntityKind) (map[string]string, error)
	RecordMerge(ctx context.Context, record *entity.MergeRecord) error
}

// JobRepository defines persistence operations for the ingestion job queue
type JobRepository interface {
	Create(ctx context.Context, job *entity.IngestJob) error
	GetByID(ctx context.Context, id string) (*entity.IngestJob, error)
	// ClaimQueued atomically moves up to limit queued jobs out of QUEUED
	// state and returns them, so concurrent workers never claim the same job.
	ClaimQueued(ctx context.Context, limit int) ([]*entity.IngestJob, error)
	UpdateState(ctx context.Context, id, state string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
}
