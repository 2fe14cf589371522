package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/match"
)

// ReceiptReassigner repoints receipts from one supplier to another
type ReceiptReassigner interface {
	ReassignSupplier(ctx context.Context, spaceID, fromSupplierID, toSupplierID string) error
}

// Merger folds duplicate suppliers into one surviving entity. Receipts are
// repointed to the target, missing target fields are filled from the
// sources, and a merge record is written so future resolutions of the
// source names land on the survivor.
type Merger struct {
	catalogRepo port.CatalogRepository
	receiptRepo ReceiptReassigner
	logger      *zap.Logger
}

// NewMerger creates a supplier merger
func NewMerger(catalogRepo port.CatalogRepository, receiptRepo ReceiptReassigner, logger *zap.Logger) *Merger {
	return &Merger{
		catalogRepo: catalogRepo,
		receiptRepo: receiptRepo,
		logger:      logger,
	}
}

// MergeSuppliers merges each source supplier into the target and deletes
// the sources
func (m *Merger) MergeSuppliers(ctx context.Context, spaceID string, sourceIDs []string, targetID string) error {
	if len(sourceIDs) == 0 {
		return fmt.Errorf("no source suppliers to merge")
	}
	for _, id := range sourceIDs {
		if id == targetID {
			return fmt.Errorf("cannot merge supplier %s into itself", id)
		}
	}

	suppliers, err := m.catalogRepo.ListSuppliers(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("list suppliers: %w", err)
	}
	byID := make(map[string]*entity.Supplier, len(suppliers))
	for _, s := range suppliers {
		byID[s.ID] = s
	}

	target, ok := byID[targetID]
	if !ok {
		return fmt.Errorf("target supplier %s not found in space %s", targetID, spaceID)
	}

	for _, sourceID := range sourceIDs {
		source, ok := byID[sourceID]
		if !ok {
			return fmt.Errorf("source supplier %s not found in space %s", sourceID, spaceID)
		}

		if err := m.receiptRepo.ReassignSupplier(ctx, spaceID, sourceID, targetID); err != nil {
			return fmt.Errorf("reassign receipts from supplier %s: %w", sourceID, err)
		}

		if fillMissing(target, source) {
			target.UpdatedAt = time.Now()
			if err := m.catalogRepo.UpdateSupplier(ctx, target); err != nil {
				return fmt.Errorf("update target supplier %s: %w", targetID, err)
			}
		}

		record := &entity.MergeRecord{
			SpaceID:    spaceID,
			Kind:       entity.KindSupplier,
			SourceName: match.Normalize(source.Name),
			TargetID:   targetID,
			CreatedAt:  time.Now(),
		}
		if err := m.catalogRepo.RecordMerge(ctx, record); err != nil {
			// the merge itself still stands; later resolutions just lose
			// the automatic redirect for this name
			m.logger.Warn("Failed to record supplier merge history",
				zap.String("source_name", source.Name),
				zap.Error(err))
		}

		if err := m.catalogRepo.DeleteSupplier(ctx, spaceID, sourceID); err != nil {
			return fmt.Errorf("delete merged supplier %s: %w", sourceID, err)
		}

		m.logger.Info("Merged supplier",
			zap.String("space_id", spaceID),
			zap.String("source", source.Name),
			zap.String("target", target.Name))
	}

	return nil
}

func fillMissing(target, source *entity.Supplier) bool {
	changed := false
	if target.TaxNumber == "" && source.TaxNumber != "" {
		target.TaxNumber = source.TaxNumber
		changed = true
	}
	if target.Phone == "" && source.Phone != "" {
		target.Phone = source.Phone
		changed = true
	}
	if target.Address == "" && source.Address != "" {
		target.Address = source.Address
		changed = true
	}
	return changed
}
