// Package catalog resolves free-text labels from extractions onto the
// space's persisted entities: categories, purposes, payment accounts, and
// suppliers.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/match"
)

// ConfigError reports a space that is missing a required entity kind
// entirely. It needs administrative remediation (seed default entities),
// not a retry.
type ConfigError struct {
	Kind    entity.EntityKind
	SpaceID string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("space %s has no %s entities; seed defaults before ingesting receipts", e.SpaceID, e.Kind)
}

// SupplierHints carries secondary supplier fields the oracle may have read
// off the receipt
type SupplierHints struct {
	TaxNumber string
	Phone     string
	Address   string
}

// Resolver maps free-text labels to persisted entities, creating them when
// no match exists. Matching deliberately avoids partial-similarity fuzzing:
// an incorrect merge is harder to undo than a duplicate entity the user can
// merge manually later.
type Resolver struct {
	repo   port.CatalogRepository
	logger *zap.Logger
}

// NewResolver creates a resolver over the given catalog repository
func NewResolver(repo port.CatalogRepository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// ResolveCategory resolves a category label. An absent or placeholder label
// falls back to the space's first available category; a space with no
// categories at all is a configuration error.
func (r *Resolver) ResolveCategory(ctx context.Context, spaceID, label string) (*entity.Category, error) {
	categories, err := r.repo.ListCategories(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	if match.IsPlaceholder(label) {
		if len(categories) == 0 {
			return nil, &ConfigError{Kind: entity.KindCategory, SpaceID: spaceID}
		}
		return categories[0], nil
	}

	history, err := r.repo.MergeHistory(ctx, spaceID, entity.KindCategory)
	if err != nil {
		return nil, fmt.Errorf("category merge history: %w", err)
	}
	normalized := match.Normalize(label)
	if targetID, ok := history[normalized]; ok {
		for _, c := range categories {
			if c.ID == targetID {
				return c, nil
			}
		}
	}

	for _, c := range categories {
		if match.Normalize(c.Name) == normalized {
			return c, nil
		}
	}

	created := &entity.Category{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      trimmed(label),
		Color:     "#95A5A6",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.repo.CreateCategory(ctx, created); err != nil {
		if len(categories) == 0 {
			return nil, &ConfigError{Kind: entity.KindCategory, SpaceID: spaceID}
		}
		return nil, fmt.Errorf("create category %q: %w", created.Name, err)
	}

	r.logger.Info("Created category from extraction",
		zap.String("space_id", spaceID),
		zap.String("name", created.Name))
	return created, nil
}

// ResolvePurpose resolves a purpose label, creating one when no normalized
// match exists
func (r *Resolver) ResolvePurpose(ctx context.Context, spaceID, label string) (*entity.Purpose, error) {
	purposes, err := r.repo.ListPurposes(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list purposes: %w", err)
	}

	if match.IsPlaceholder(label) {
		if len(purposes) == 0 {
			return nil, &ConfigError{Kind: entity.KindPurpose, SpaceID: spaceID}
		}
		return purposes[0], nil
	}

	history, err := r.repo.MergeHistory(ctx, spaceID, entity.KindPurpose)
	if err != nil {
		return nil, fmt.Errorf("purpose merge history: %w", err)
	}
	normalized := match.Normalize(label)
	if targetID, ok := history[normalized]; ok {
		for _, p := range purposes {
			if p.ID == targetID {
				return p, nil
			}
		}
	}

	for _, p := range purposes {
		if match.Normalize(p.Name) == normalized {
			return p, nil
		}
	}

	created := &entity.Purpose{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      trimmed(label),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.repo.CreatePurpose(ctx, created); err != nil {
		return nil, fmt.Errorf("create purpose %q: %w", created.Name, err)
	}
	return created, nil
}

// ResolvePaymentAccount resolves a payment-account label. A placeholder
// label is treated as absent and yields (nil, nil): the receipt keeps a
// null payment-account reference.
func (r *Resolver) ResolvePaymentAccount(ctx context.Context, spaceID, label string) (*entity.PaymentAccount, error) {
	if match.IsPlaceholder(label) {
		return nil, nil
	}

	accounts, err := r.repo.ListPaymentAccounts(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list payment accounts: %w", err)
	}

	history, err := r.repo.MergeHistory(ctx, spaceID, entity.KindPaymentAccount)
	if err != nil {
		return nil, fmt.Errorf("payment account merge history: %w", err)
	}
	normalized := match.Normalize(label)
	if targetID, ok := history[normalized]; ok {
		for _, a := range accounts {
			if a.ID == targetID {
				return a, nil
			}
		}
	}

	for _, a := range accounts {
		if match.Normalize(a.Name) == normalized {
			return a, nil
		}
	}

	created := &entity.PaymentAccount{
		ID:             uuid.NewString(),
		SpaceID:        spaceID,
		Name:           trimmed(label),
		IsAIRecognized: true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := r.repo.CreatePaymentAccount(ctx, created); err != nil {
		return nil, fmt.Errorf("create payment account %q: %w", created.Name, err)
	}
	return created, nil
}

// ResolveSupplier resolves a supplier label. Matching order: merge history,
// exact normalized name, tax number. A tax-number hit opportunistically
// backfills the stored entity: the longer of the two names wins, and
// missing phone/address fields are filled from the hints. A placeholder
// label yields (nil, nil).
func (r *Resolver) ResolveSupplier(ctx context.Context, spaceID, label string, hints SupplierHints) (*entity.Supplier, error) {
	if match.IsPlaceholder(label) {
		return nil, nil
	}

	suppliers, err := r.repo.ListSuppliers(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}

	history, err := r.repo.MergeHistory(ctx, spaceID, entity.KindSupplier)
	if err != nil {
		return nil, fmt.Errorf("supplier merge history: %w", err)
	}
	normalized := match.Normalize(label)
	if targetID, ok := history[normalized]; ok {
		for _, s := range suppliers {
			if s.ID == targetID {
				return r.backfillSupplier(ctx, s, "", hints)
			}
		}
	}

	for _, s := range suppliers {
		if match.Normalize(s.Name) == normalized {
			return r.backfillSupplier(ctx, s, "", hints)
		}
	}

	if hints.TaxNumber != "" {
		for _, s := range suppliers {
			if s.TaxNumber != "" && s.TaxNumber == hints.TaxNumber {
				r.logger.Info("Matched supplier by tax number",
					zap.String("space_id", spaceID),
					zap.String("label", label),
					zap.String("supplier", s.Name))
				return r.backfillSupplier(ctx, s, trimmed(label), hints)
			}
		}
	}

	created := &entity.Supplier{
		ID:             uuid.NewString(),
		SpaceID:        spaceID,
		Name:           trimmed(label),
		TaxNumber:      hints.TaxNumber,
		Phone:          hints.Phone,
		Address:        hints.Address,
		IsAIRecognized: true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := r.repo.CreateSupplier(ctx, created); err != nil {
		return nil, fmt.Errorf("create supplier %q: %w", created.Name, err)
	}

	r.logger.Info("Created supplier from extraction",
		zap.String("space_id", spaceID),
		zap.String("name", created.Name))
	return created, nil
}

// backfillSupplier fills missing secondary fields on a matched supplier
// from freshly extracted hints. candidateName, when longer than the stored
// name, replaces it (tax-number matches often carry the fuller legal name).
func (r *Resolver) backfillSupplier(ctx context.Context, s *entity.Supplier, candidateName string, hints SupplierHints) (*entity.Supplier, error) {
	changed := false

	if candidateName != "" && len([]rune(candidateName)) > len([]rune(s.Name)) {
		s.Name = candidateName
		changed = true
	}
	if s.TaxNumber == "" && hints.TaxNumber != "" {
		s.TaxNumber = hints.TaxNumber
		changed = true
	}
	if s.Phone == "" && hints.Phone != "" {
		s.Phone = hints.Phone
		changed = true
	}
	if s.Address == "" && hints.Address != "" {
		s.Address = hints.Address
		changed = true
	}

	if changed {
		s.UpdatedAt = time.Now()
		if err := r.repo.UpdateSupplier(ctx, s); err != nil {
			// the match is still valid even if the backfill write fails
			r.logger.Warn("Failed to backfill supplier fields",
				zap.String("supplier_id", s.ID),
				zap.Error(err))
		}
	}
	return s, nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
