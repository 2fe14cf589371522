// Package pipeline sequences one receipt's ingestion run: upload, extract,
// normalize, resolve, persist, evaluate, duplicate-check, finalize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/catalog"
	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/extraction"
	"github.com/hualiang/home-ledger/internal/ingest"
)

// Config holds pipeline tuning
type Config struct {
	Evaluator extraction.EvaluatorConfig
	Detector  extraction.DetectorConfig
}

// DefaultConfig returns the standard pipeline tuning
func DefaultConfig() Config {
	return Config{
		Evaluator: extraction.DefaultEvaluatorConfig(),
		Detector:  extraction.DefaultDetectorConfig(),
	}
}

// Pipeline runs one ingest job end to end. It is safe for concurrent use;
// each Process call touches only its own job's receipt.
type Pipeline struct {
	receipts  port.ReceiptRepository
	catalogs  port.CatalogRepository
	jobs      port.JobRepository
	assets    port.AssetStore
	extractor port.Extractor
	resolver  *catalog.Resolver
	evaluator *extraction.Evaluator
	detector  *extraction.Detector
	renderer  *ingest.PDFRenderer
	metrics   *Metrics
	logger    *zap.Logger
}

// New creates a pipeline
func New(
	cfg Config,
	receipts port.ReceiptRepository,
	catalogs port.CatalogRepository,
	jobs port.JobRepository,
	assets port.AssetStore,
	extractor port.Extractor,
	metrics *Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		receipts:  receipts,
		catalogs:  catalogs,
		jobs:      jobs,
		assets:    assets,
		extractor: extractor,
		resolver:  catalog.NewResolver(catalogs, logger),
		evaluator: extraction.NewEvaluator(cfg.Evaluator),
		detector:  extraction.NewDetector(cfg.Detector),
		renderer:  ingest.NewPDFRenderer(logger),
		metrics:   metrics,
		logger:    logger,
	}
}

// Process advances a claimed job to a terminal state. The returned error is
// informational; the job and receipt rows always record the outcome.
func (p *Pipeline) Process(ctx context.Context, job *entity.IngestJob) error {
	start := time.Now()
	err := p.run(ctx, job)
	p.metrics.StageDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.JobsFailed.Inc()
		if markErr := p.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			p.logger.Error("Failed to record job failure",
				zap.String("job_id", job.ID),
				zap.Error(markErr))
		}
		return err
	}

	p.metrics.JobsProcessed.Inc()
	if markErr := p.jobs.MarkCompleted(ctx, job.ID); markErr != nil {
		p.logger.Error("Failed to record job completion",
			zap.String("job_id", job.ID),
			zap.Error(markErr))
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, job *entity.IngestJob) error {
	receipt, err := p.receipts.GetByID(ctx, job.SpaceID, job.ReceiptID)
	if err != nil {
		return err
	}
	if receipt == nil {
		return fmt.Errorf("receipt %s not found in space %s", job.ReceiptID, job.SpaceID)
	}

	payload, text, err := p.loadPayload(ctx, job, receipt)
	if err != nil {
		return p.abandon(ctx, job, receipt, err)
	}
	if receipt.ImageURL != "" {
		// the asset already moved to its permanent key; persist the URL now
		// so a later failure still leaves the draft pointing at it
		if err := p.receipts.Update(ctx, receipt); err != nil {
			return p.abandon(ctx, job, receipt, fmt.Errorf("persist asset url: %w", err))
		}
	}

	result, err := p.extract(ctx, job, payload, text)
	if err != nil {
		return p.abandon(ctx, job, receipt, err)
	}

	if err := p.jobs.UpdateState(ctx, job.ID, entity.JobStateResolving); err != nil {
		p.logger.Warn("Failed to update job state", zap.String("job_id", job.ID), zap.Error(err))
	}

	normalized := p.normalize(ctx, job.SpaceID, result)
	hints := catalog.SupplierHints{
		TaxNumber: normalized.SupplierTaxNumber,
		Phone:     normalized.SupplierPhone,
		Address:   normalized.SupplierAddress,
	}

	if err := p.resolve(ctx, job.SpaceID, receipt, normalized, hints); err != nil {
		return p.abandon(ctx, job, receipt, err)
	}

	if err := p.receipts.Update(ctx, receipt); err != nil {
		return p.abandon(ctx, job, receipt, err)
	}
	if err := p.receipts.ReplaceItems(ctx, job.SpaceID, receipt.ID, receipt.Items); err != nil {
		return p.abandon(ctx, job, receipt, err)
	}

	if err := p.jobs.UpdateState(ctx, job.ID, entity.JobStateEvaluating); err != nil {
		p.logger.Warn("Failed to update job state", zap.String("job_id", job.ID), zap.Error(err))
	}

	eval := p.evaluator.Evaluate(normalized)
	receipt.Confidence = eval.Confidence
	receipt.Status = eval.Status

	if err := p.jobs.UpdateState(ctx, job.ID, entity.JobStateDedup); err != nil {
		p.logger.Warn("Failed to update job state", zap.String("job_id", job.ID), zap.Error(err))
	}

	if dup, err := p.findDuplicate(ctx, job.SpaceID, receipt); err != nil {
		p.logger.Warn("Duplicate check failed, keeping evaluated status",
			zap.String("receipt_id", receipt.ID),
			zap.Error(err))
	} else if dup != nil {
		receipt.Status = entity.StatusDuplicate
		p.metrics.DuplicatesDetected.Inc()
		p.logger.Info("Receipt flagged as duplicate",
			zap.String("receipt_id", receipt.ID),
			zap.String("duplicate_of", dup.ID))
	}

	if err := p.receipts.Update(ctx, receipt); err != nil {
		return p.abandon(ctx, job, receipt, err)
	}

	if receipt.SupplierID != nil {
		// enrichment runs after the status is settled and must never
		// block or fail the pipeline
		go p.enrichSupplier(context.WithoutCancel(ctx), job.SpaceID, *receipt.SupplierID, hints)
	}

	p.logger.Info("Receipt ingestion completed",
		zap.String("receipt_id", receipt.ID),
		zap.String("status", receipt.Status),
		zap.Float64("confidence", receipt.Confidence))
	return nil
}

// enrichSupplier fills supplier fields the receipt revealed but entity
// resolution did not persist. Errors are logged and swallowed.
func (p *Pipeline) enrichSupplier(ctx context.Context, spaceID, supplierID string, hints catalog.SupplierHints) {
	if hints.TaxNumber == "" && hints.Phone == "" && hints.Address == "" {
		return
	}

	suppliers, err := p.catalogs.ListSuppliers(ctx, spaceID)
	if err != nil {
		p.logger.Warn("Supplier enrichment skipped", zap.String("supplier_id", supplierID), zap.Error(err))
		return
	}

	for _, s := range suppliers {
		if s.ID != supplierID {
			continue
		}

		changed := false
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
		if !changed {
			return
		}

		if err := p.catalogs.UpdateSupplier(ctx, s); err != nil {
			p.logger.Warn("Supplier enrichment failed",
				zap.String("supplier_id", supplierID),
				zap.Error(err))
		}
		return
	}
}

// loadPayload fetches the raw input and, for binary modalities, moves the
// asset from its temporary upload key to its permanent home.
func (p *Pipeline) loadPayload(ctx context.Context, job *entity.IngestJob, receipt *entity.Receipt) ([]byte, string, error) {
	if job.Modality == entity.ModalityText {
		return nil, job.PayloadPath, nil
	}

	payload, err := p.assets.Read(ctx, job.PayloadPath)
	if err != nil {
		return nil, "", fmt.Errorf("load payload: %w", err)
	}

	permanentKey := fmt.Sprintf("receipts/%s/%s%s", job.SpaceID, receipt.ID, path.Ext(job.PayloadPath))
	url, err := p.assets.Upload(ctx, permanentKey, payload, mimeFromKey(job.PayloadPath))
	if err != nil {
		return nil, "", fmt.Errorf("store asset: %w", err)
	}
	receipt.ImageURL = url

	// the temp object is already copied; losing the delete only leaks a file
	if err := p.assets.Delete(ctx, job.PayloadPath); err != nil {
		p.logger.Warn("Failed to delete temporary upload",
			zap.String("key", job.PayloadPath),
			zap.Error(err))
	}
	return payload, "", nil
}

// abandon moves the draft to pending so the user can complete it by hand,
// then surfaces the cause for the job record. Whatever was persisted before
// the failure (asset URL, resolved fields) stays on the draft.
func (p *Pipeline) abandon(ctx context.Context, job *entity.IngestJob, receipt *entity.Receipt, cause error) error {
	if err := p.receipts.UpdateStatus(ctx, job.SpaceID, receipt.ID, entity.StatusPending); err != nil {
		p.logger.Error("Failed to move draft to pending",
			zap.String("receipt_id", receipt.ID),
			zap.Error(err))
	}
	return cause
}

// extract calls the oracle
func (p *Pipeline) extract(ctx context.Context, job *entity.IngestJob, payload []byte, text string) (*entity.ExtractionResult, error) {
	if err := p.jobs.UpdateState(ctx, job.ID, entity.JobStateExtracting); err != nil {
		p.logger.Warn("Failed to update job state", zap.String("job_id", job.ID), zap.Error(err))
	}

	req := port.ExtractRequest{
		Modality: job.Modality,
		Payload:  payload,
		MimeType: mimeFromKey(job.PayloadPath),
		Text:     text,
	}

	if job.Modality == entity.ModalityPDF {
		page, err := p.renderer.RenderFirstPage(payload)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
		req.Modality = entity.ModalityImage
		req.Payload = page
		req.MimeType = "image/jpeg"
	}

	if categories, err := p.catalogs.ListCategories(ctx, job.SpaceID); err == nil {
		for _, c := range categories {
			req.CategoryNames = append(req.CategoryNames, c.Name)
		}
	}
	if purposes, err := p.catalogs.ListPurposes(ctx, job.SpaceID); err == nil {
		for _, pu := range purposes {
			req.PurposeNames = append(req.PurposeNames, pu.Name)
		}
	}

	result, err := p.extractor.Extract(ctx, req)
	if err != nil {
		var oracleErr *extraction.OracleError
		if errors.As(err, &oracleErr) {
			p.metrics.OracleErrors.WithLabelValues(string(oracleErr.Kind)).Inc()
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return result, nil
}

func (p *Pipeline) normalize(ctx context.Context, spaceID string, result *entity.ExtractionResult) *entity.ExtractionResult {
	opts := extraction.NormalizeOptions{}

	if counts, err := p.receipts.CurrencyCounts(ctx, spaceID); err == nil {
		opts.DefaultCurrency = mostFrequent(counts)
	} else {
		p.logger.Warn("Failed to load currency history", zap.String("space_id", spaceID), zap.Error(err))
	}

	if categories, err := p.catalogs.ListCategories(ctx, spaceID); err == nil && len(categories) > 0 {
		opts.DefaultCategoryName = categories[0].Name
	}

	return extraction.Normalize(result, opts)
}

// resolve maps normalized names onto persisted entities and rewrites the
// receipt and its items in place.
func (p *Pipeline) resolve(ctx context.Context, spaceID string, receipt *entity.Receipt, normalized *entity.ExtractionResult, hints catalog.SupplierHints) error {
	supplier, err := p.resolver.ResolveSupplier(ctx, spaceID, normalized.SupplierName, hints)
	if err != nil {
		return fmt.Errorf("resolve supplier: %w", err)
	}
	if supplier != nil {
		receipt.SupplierID = &supplier.ID
	}

	account, err := p.resolver.ResolvePaymentAccount(ctx, spaceID, normalized.PaymentAccountName)
	if err != nil {
		return fmt.Errorf("resolve payment account: %w", err)
	}
	if account != nil {
		receipt.PaymentAccountID = &account.ID
	}

	items := make([]entity.ReceiptItem, 0, len(normalized.Items))
	for _, raw := range normalized.Items {
		category, err := p.resolver.ResolveCategory(ctx, spaceID, raw.CategoryName)
		if err != nil {
			return fmt.Errorf("resolve category %q: %w", raw.CategoryName, err)
		}

		item := entity.ReceiptItem{
			ID:         uuid.NewString(),
			ReceiptID:  receipt.ID,
			Name:       raw.Name,
			CategoryID: category.ID,
			Price:      raw.Price,
			IsAsset:    raw.IsAsset,
			Confidence: raw.Confidence,
		}

		purpose, err := p.resolver.ResolvePurpose(ctx, spaceID, raw.PurposeName)
		if err != nil {
			return fmt.Errorf("resolve purpose %q: %w", raw.PurposeName, err)
		}
		if purpose != nil {
			item.PurposeID = &purpose.ID
		}

		items = append(items, item)
	}

	receipt.Items = items
	receipt.TotalAmount = normalized.TotalAmount
	receipt.Currency = normalized.Currency
	receipt.Tax = normalized.Tax
	receipt.Date = normalized.Date
	return nil
}

// findDuplicate compares the candidate against the space's persisted
// receipts by supplier name, date, amount, and item layout
func (p *Pipeline) findDuplicate(ctx context.Context, spaceID string, candidate *entity.Receipt) (*entity.Receipt, error) {
	existing, err := p.receipts.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	suppliers, err := p.catalogs.ListSuppliers(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(suppliers))
	for _, s := range suppliers {
		names[s.ID] = s.Name
	}

	supplierName := func(r *entity.Receipt) string {
		if r.SupplierID == nil {
			return ""
		}
		return names[*r.SupplierID]
	}

	// only settled receipts count as dedup targets; drafts mid-pipeline
	// and prior duplicates are skipped
	targets := make([]*entity.Receipt, 0, len(existing))
	for _, r := range existing {
		if r.Status == entity.StatusProcessing || r.Status == entity.StatusDuplicate {
			continue
		}
		targets = append(targets, r)
	}

	return p.detector.FindDuplicate(candidate, targets, supplierName), nil
}

func mostFrequent(counts map[string]int) string {
	best := ""
	bestCount := 0
	for currency, count := range counts {
		if count > bestCount || (count == bestCount && currency < best) {
			best = currency
			bestCount = count
		}
	}
	return best
}

func mimeFromKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/m4a"
	default:
		return "application/octet-stream"
	}
}
