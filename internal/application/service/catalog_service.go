package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/catalog"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// CatalogService exposes the read side of the entity tables plus supplier
// merging
type CatalogService struct {
	catalogs port.CatalogRepository
	merger   *catalog.Merger
	logger   *zap.Logger
}

// NewCatalogService creates a catalog service
func NewCatalogService(
	catalogs port.CatalogRepository,
	receipts port.ReceiptRepository,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		catalogs: catalogs,
		merger:   catalog.NewMerger(catalogs, receipts, logger),
		logger:   logger,
	}
}

// Categories lists a space's categories
func (s *CatalogService) Categories(ctx context.Context, spaceID string) ([]*entity.Category, error) {
	return s.catalogs.ListCategories(ctx, spaceID)
}

// Purposes lists a space's purposes
func (s *CatalogService) Purposes(ctx context.Context, spaceID string) ([]*entity.Purpose, error) {
	return s.catalogs.ListPurposes(ctx, spaceID)
}

// PaymentAccounts lists a space's payment accounts
func (s *CatalogService) PaymentAccounts(ctx context.Context, spaceID string) ([]*entity.PaymentAccount, error) {
	return s.catalogs.ListPaymentAccounts(ctx, spaceID)
}

// Suppliers lists a space's suppliers
func (s *CatalogService) Suppliers(ctx context.Context, spaceID string) ([]*entity.Supplier, error) {
	return s.catalogs.ListSuppliers(ctx, spaceID)
}

// MergeSuppliers merges source suppliers into the target: receipts are
// repointed, missing target fields are backfilled, merge history is
// recorded, and the sources are deleted
func (s *CatalogService) MergeSuppliers(ctx context.Context, spaceID string, sourceIDs []string, targetID string) error {
	return s.merger.MergeSuppliers(ctx, spaceID, sourceIDs, targetID)
}
