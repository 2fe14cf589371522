// Package service exposes the application's synchronous use cases: receipt
// submission and mutation, plus catalog reads and supplier merging. The
// asynchronous half of ingestion lives in the pipeline worker.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// ValidationError marks a rejected submission; the HTTP layer maps it to a
// 400 response before any job is queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmitRequest carries one receipt submission
type SubmitRequest struct {
	SpaceID   string
	CreatedBy string
	Modality  string
	// Payload holds raw bytes for image/pdf/audio submissions
	Payload  []byte
	MimeType string
	// Text holds the description for text submissions
	Text string
}

// ItemPatch holds the editable fields of a line item. Nil fields are left
// untouched.
type ItemPatch struct {
	Name       *string
	CategoryID *string
	PurposeID  *string
	Price      *float64
	IsAsset    *bool
}

// ReceiptService implements the synchronous receipt use cases
type ReceiptService struct {
	receipts port.ReceiptRepository
	jobs     port.JobRepository
	assets   port.AssetStore
	logger   *zap.Logger
}

// NewReceiptService creates a receipt service
func NewReceiptService(
	receipts port.ReceiptRepository,
	jobs port.JobRepository,
	assets port.AssetStore,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		receipts: receipts,
		jobs:     jobs,
		assets:   assets,
		logger:   logger,
	}
}

// Submit validates the input, persists a processing draft, stages the
// payload, and enqueues an ingest job. It returns the draft immediately;
// the background worker does the rest.
func (s *ReceiptService) Submit(ctx context.Context, req SubmitRequest) (*entity.Receipt, error) {
	if err := validateSubmit(&req); err != nil {
		return nil, err
	}

	receipt := &entity.Receipt{
		ID:        uuid.NewString(),
		SpaceID:   req.SpaceID,
		Status:    entity.StatusProcessing,
		CreatedBy: req.CreatedBy,
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		return nil, fmt.Errorf("create draft receipt: %w", err)
	}

	payloadPath := req.Text
	if req.Modality != entity.ModalityText {
		key := fmt.Sprintf("tmp/%s%s", uuid.NewString(), extensionFor(req.MimeType))
		if _, err := s.assets.Upload(ctx, key, req.Payload, req.MimeType); err != nil {
			s.discardDraft(ctx, receipt, "")
			return nil, fmt.Errorf("stage payload: %w", err)
		}
		payloadPath = key
	}

	job := &entity.IngestJob{
		SpaceID:     req.SpaceID,
		ReceiptID:   receipt.ID,
		Modality:    req.Modality,
		PayloadPath: payloadPath,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		stagedKey := ""
		if req.Modality != entity.ModalityText {
			stagedKey = payloadPath
		}
		s.discardDraft(ctx, receipt, stagedKey)
		return nil, fmt.Errorf("enqueue ingest job: %w", err)
	}

	s.logger.Info("Receipt submitted",
		zap.String("receipt_id", receipt.ID),
		zap.String("space_id", req.SpaceID),
		zap.String("modality", req.Modality))
	return receipt, nil
}

// discardDraft removes a draft whose submission could not be completed; a
// receipt with no job would stay processing forever. Cleanup is best-effort,
// the submission error is what the caller reports.
func (s *ReceiptService) discardDraft(ctx context.Context, receipt *entity.Receipt, stagedKey string) {
	if err := s.receipts.Delete(ctx, receipt.SpaceID, receipt.ID); err != nil {
		s.logger.Warn("Failed to discard draft after submission failure",
			zap.String("receipt_id", receipt.ID),
			zap.Error(err))
	}
	if stagedKey != "" {
		if err := s.assets.Delete(ctx, stagedKey); err != nil {
			s.logger.Warn("Failed to delete staged payload",
				zap.String("key", stagedKey),
				zap.Error(err))
		}
	}
}

// Get returns one receipt with items, nil when absent
func (s *ReceiptService) Get(ctx context.Context, spaceID, id string) (*entity.Receipt, error) {
	return s.receipts.GetByID(ctx, spaceID, id)
}

// List returns the space's receipts, newest first
func (s *ReceiptService) List(ctx context.Context, spaceID string) ([]*entity.Receipt, error) {
	return s.receipts.ListBySpace(ctx, spaceID)
}

// Confirm marks a receipt confirmed by explicit user action. Allowed from
// any current status.
func (s *ReceiptService) Confirm(ctx context.Context, spaceID, id string) (*entity.Receipt, error) {
	receipt, err := s.receipts.GetByID(ctx, spaceID, id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, nil
	}

	if err := s.receipts.UpdateStatus(ctx, spaceID, id, entity.StatusConfirmed); err != nil {
		return nil, err
	}
	receipt.Status = entity.StatusConfirmed

	s.logger.Info("Receipt confirmed", zap.String("receipt_id", id))
	return receipt, nil
}

// EditItem applies a partial update to one line item
func (s *ReceiptService) EditItem(ctx context.Context, spaceID, receiptID, itemID string, patch ItemPatch) (*entity.ReceiptItem, error) {
	receipt, err := s.receipts.GetByID(ctx, spaceID, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, nil
	}

	var item *entity.ReceiptItem
	for i := range receipt.Items {
		if receipt.Items[i].ID == itemID {
			item = &receipt.Items[i]
			break
		}
	}
	if item == nil {
		return nil, nil
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		item.Name = name
	}
	if patch.CategoryID != nil {
		item.CategoryID = *patch.CategoryID
	}
	if patch.PurposeID != nil {
		item.PurposeID = patch.PurposeID
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.IsAsset != nil {
		item.IsAsset = *patch.IsAsset
	}

	if err := s.receipts.UpdateItem(ctx, spaceID, receiptID, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the receipt (items cascade) and best-effort deletes the
// stored asset
func (s *ReceiptService) Delete(ctx context.Context, spaceID, id string) error {
	receipt, err := s.receipts.GetByID(ctx, spaceID, id)
	if err != nil {
		return err
	}
	if receipt == nil {
		return nil
	}

	if err := s.receipts.Delete(ctx, spaceID, id); err != nil {
		return err
	}

	if key := assetKeyFromURL(receipt.ImageURL); key != "" {
		if err := s.assets.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to delete receipt asset",
				zap.String("receipt_id", id),
				zap.String("key", key),
				zap.Error(err))
		}
	}

	s.logger.Info("Receipt deleted", zap.String("receipt_id", id))
	return nil
}

func validateSubmit(req *SubmitRequest) error {
	if strings.TrimSpace(req.SpaceID) == "" {
		return &ValidationError{Field: "space_id", Reason: "must not be empty"}
	}

	switch req.Modality {
	case entity.ModalityImage, entity.ModalityPDF, entity.ModalityAudio:
		if len(req.Payload) == 0 {
			return &ValidationError{Field: "payload", Reason: "must not be empty"}
		}
		if req.MimeType == "" {
			return &ValidationError{Field: "mime_type", Reason: "required for binary submissions"}
		}
	case entity.ModalityText:
		if strings.TrimSpace(req.Text) == "" {
			return &ValidationError{Field: "text", Reason: "must not be empty"}
		}
	default:
		return &ValidationError{Field: "modality", Reason: fmt.Sprintf("unsupported value %q", req.Modality)}
	}
	return nil
}

// assetKeyFromURL recovers the store key from a public asset URL. Permanent
// keys always live under receipts/.
func assetKeyFromURL(url string) string {
	idx := strings.Index(url, "/receipts/")
	if idx < 0 {
		return ""
	}
	return url[idx+1:]
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/m4a", "audio/mp4":
		return ".m4a"
	default:
		return ""
	}
}
