package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

type memReceipts struct {
	rows map[string]*entity.Receipt
}

func newMemReceipts() *memReceipts {
	return &memReceipts{rows: make(map[string]*entity.Receipt)}
}

func (m *memReceipts) Create(_ context.Context, r *entity.Receipt) error {
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memReceipts) GetByID(_ context.Context, spaceID, id string) (*entity.Receipt, error) {
	r, ok := m.rows[id]
	if !ok || r.SpaceID != spaceID {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memReceipts) ListBySpace(_ context.Context, spaceID string) ([]*entity.Receipt, error) {
	var out []*entity.Receipt
	for _, r := range m.rows {
		if r.SpaceID == spaceID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memReceipts) Update(_ context.Context, r *entity.Receipt) error {
	stored, ok := m.rows[r.ID]
	if !ok {
		return fmt.Errorf("receipt not found: %s", r.ID)
	}
	items := stored.Items
	cp := *r
	cp.Items = items
	m.rows[r.ID] = &cp
	return nil
}

func (m *memReceipts) UpdateStatus(_ context.Context, spaceID, id, status string) error {
	r, ok := m.rows[id]
	if !ok || r.SpaceID != spaceID {
		return fmt.Errorf("receipt not found: %s", id)
	}
	r.Status = status
	return nil
}

func (m *memReceipts) ReplaceItems(_ context.Context, _, receiptID string, items []entity.ReceiptItem) error {
	r, ok := m.rows[receiptID]
	if !ok {
		return fmt.Errorf("receipt not found: %s", receiptID)
	}
	r.Items = append([]entity.ReceiptItem(nil), items...)
	return nil
}

func (m *memReceipts) UpdateItem(_ context.Context, _, receiptID string, item *entity.ReceiptItem) error {
	r, ok := m.rows[receiptID]
	if !ok {
		return fmt.Errorf("receipt not found: %s", receiptID)
	}
	for i := range r.Items {
		if r.Items[i].ID == item.ID {
			r.Items[i] = *item
			return nil
		}
	}
	return fmt.Errorf("item not found: %s", item.ID)
}

func (m *memReceipts) Delete(_ context.Context, _, id string) error {
	delete(m.rows, id)
	return nil
}

func (m *memReceipts) CurrencyCounts(_ context.Context, spaceID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, r := range m.rows {
		if r.SpaceID == spaceID && r.Currency != "" {
			counts[r.Currency]++
		}
	}
	return counts, nil
}

func (m *memReceipts) ReassignSupplier(_ context.Context, spaceID, from, to string) error {
	for _, r := range m.rows {
		if r.SpaceID == spaceID && r.SupplierID != nil && *r.SupplierID == from {
			id := to
			r.SupplierID = &id
		}
	}
	return nil
}

type memCatalog struct {
	categories []*entity.Category
	purposes   []*entity.Purpose
	accounts   []*entity.PaymentAccount
	suppliers  []*entity.Supplier
	merges     []*entity.MergeRecord

	createCategoryErr error
}

func (m *memCatalog) ListCategories(_ context.Context, spaceID string) ([]*entity.Category, error) {
	return m.categories, nil
}

func (m *memCatalog) CreateCategory(_ context.Context, c *entity.Category) error {
	if m.createCategoryErr != nil {
		return m.createCategoryErr
	}
	m.categories = append(m.categories, c)
	return nil
}

func (m *memCatalog) ListPurposes(_ context.Context, _ string) ([]*entity.Purpose, error) {
	return m.purposes, nil
}

func (m *memCatalog) CreatePurpose(_ context.Context, p *entity.Purpose) error {
	m.purposes = append(m.purposes, p)
	return nil
}

func (m *memCatalog) ListPaymentAccounts(_ context.Context, _ string) ([]*entity.PaymentAccount, error) {
	return m.accounts, nil
}

func (m *memCatalog) CreatePaymentAccount(_ context.Context, a *entity.PaymentAccount) error {
	m.accounts = append(m.accounts, a)
	return nil
}

func (m *memCatalog) UpdatePaymentAccount(_ context.Context, a *entity.PaymentAccount) error {
	for i, existing := range m.accounts {
		if existing.ID == a.ID {
			m.accounts[i] = a
			return nil
		}
	}
	return fmt.Errorf("payment account not found: %s", a.ID)
}

func (m *memCatalog) ListSuppliers(_ context.Context, _ string) ([]*entity.Supplier, error) {
	return m.suppliers, nil
}

func (m *memCatalog) CreateSupplier(_ context.Context, s *entity.Supplier) error {
	m.suppliers = append(m.suppliers, s)
	return nil
}

func (m *memCatalog) UpdateSupplier(_ context.Context, s *entity.Supplier) error {
	for i, existing := range m.suppliers {
		if existing.ID == s.ID {
			m.suppliers[i] = s
			return nil
		}
	}
	return fmt.Errorf("supplier not found: %s", s.ID)
}

func (m *memCatalog) DeleteSupplier(_ context.Context, _, id string) error {
	for i, s := range m.suppliers {
		if s.ID == id {
			m.suppliers = append(m.suppliers[:i], m.suppliers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memCatalog) MergeHistory(_ context.Context, _ string, kind entity.EntityKind) (map[string]string, error) {
	history := make(map[string]string)
	for _, r := range m.merges {
		if r.Kind == kind {
			history[r.SourceName] = r.TargetID
		}
	}
	return history, nil
}

func (m *memCatalog) RecordMerge(_ context.Context, r *entity.MergeRecord) error {
	m.merges = append(m.merges, r)
	return nil
}

type memJobs struct {
	jobs   map[string]*entity.IngestJob
	states []string
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*entity.IngestJob)}
}

func (m *memJobs) Create(_ context.Context, j *entity.IngestJob) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.State == "" {
		j.State = entity.JobStateQueued
	}
	m.jobs[j.ID] = j
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*entity.IngestJob, error) {
	return m.jobs[id], nil
}

func (m *memJobs) ClaimQueued(_ context.Context, limit int) ([]*entity.IngestJob, error) {
	var out []*entity.IngestJob
	for _, j := range m.jobs {
		if j.State == entity.JobStateQueued && len(out) < limit {
			j.State = entity.JobStateUploading
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) UpdateState(_ context.Context, id, state string) error {
	m.jobs[id].State = state
	m.states = append(m.states, state)
	return nil
}

func (m *memJobs) MarkCompleted(_ context.Context, id string) error {
	m.jobs[id].State = entity.JobStateCompleted
	now := time.Now()
	m.jobs[id].FinishedAt = &now
	return nil
}

func (m *memJobs) MarkFailed(_ context.Context, id, errorMsg string) error {
	m.jobs[id].State = entity.JobStateFailed
	m.jobs[id].LastError = errorMsg
	return nil
}

type memAssets struct {
	objects map[string][]byte
}

func newMemAssets() *memAssets {
	return &memAssets{objects: make(map[string][]byte)}
}

func (m *memAssets) Upload(_ context.Context, key string, content []byte, _ string) (string, error) {
	m.objects[key] = content
	return "http://assets.local/" + key, nil
}

func (m *memAssets) Read(_ context.Context, key string) ([]byte, error) {
	content, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return content, nil
}

func (m *memAssets) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type stubExtractor struct {
	result *entity.ExtractionResult
	err    error
	calls  int
}

func (s *stubExtractor) Extract(_ context.Context, _ port.ExtractRequest) (*entity.ExtractionResult, error) {
	s.calls++
	return s.result, s.err
}

type fixture struct {
	receipts *memReceipts
	catalogs *memCatalog
	jobs     *memJobs
	assets   *memAssets
	oracle   *stubExtractor
	pipeline *Pipeline
}

func newFixture(t *testing.T, oracle *stubExtractor) *fixture {
	t.Helper()

	f := &fixture{
		receipts: newMemReceipts(),
		catalogs: &memCatalog{},
		jobs:     newMemJobs(),
		assets:   newMemAssets(),
		oracle:   oracle,
	}
	f.pipeline = New(
		DefaultConfig(),
		f.receipts,
		f.catalogs,
		f.jobs,
		f.assets,
		oracle,
		NewMetrics(prometheus.NewRegistry()),
		zap.NewNop(),
	)
	return f
}

func (f *fixture) submitImageJob(t *testing.T, spaceID string) (*entity.Receipt, *entity.IngestJob) {
	t.Helper()

	receipt := &entity.Receipt{
		ID:      uuid.NewString(),
		SpaceID: spaceID,
		Status:  entity.StatusProcessing,
	}
	require.NoError(t, f.receipts.Create(context.Background(), receipt))

	tempKey := "tmp/" + uuid.NewString() + ".jpg"
	_, err := f.assets.Upload(context.Background(), tempKey, []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)

	job := &entity.IngestJob{
		SpaceID:     spaceID,
		ReceiptID:   receipt.ID,
		Modality:    entity.ModalityImage,
		PayloadPath: tempKey,
		State:       entity.JobStateUploading,
	}
	require.NoError(t, f.jobs.Create(context.Background(), job))
	return receipt, job
}

func f64(v float64) *float64 { return &v }

func cleanResult(supplier string) *entity.ExtractionResult {
	return &entity.ExtractionResult{
		SupplierName: supplier,
		Date:         "2024-03-15",
		TotalAmount:  40.0,
		Currency:     "USD",
		Tax:          2.5,
		Items: []entity.ExtractedItem{
			{Name: "Produce", CategoryName: "Grocery", PurposeName: "Home", Price: 37.5, Confidence: f64(0.9)},
		},
		Confidence: f64(0.92),
		ImageQuality: &entity.ImageQuality{
			Clarity:      f64(0.9),
			Completeness: f64(0.95),
		},
	}
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(t, &stubExtractor{result: cleanResult("Whole Foods")})
	receipt, job := f.submitImageJob(t, "space-1")
	tempKey := job.PayloadPath

	require.NoError(t, f.pipeline.Process(context.Background(), job))

	stored, err := f.receipts.GetByID(context.Background(), "space-1", receipt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	// clean extraction earns the bonus and lands at the ceiling
	assert.Equal(t, entity.StatusConfirmed, stored.Status)
	assert.InDelta(t, 0.95, stored.Confidence, 1e-9)
	assert.Equal(t, 40.0, stored.TotalAmount)
	assert.Equal(t, "2024-03-15", stored.Date)
	assert.Equal(t, "USD", stored.Currency)

	require.NotNil(t, stored.SupplierID)
	require.Len(t, f.catalogs.suppliers, 1)
	assert.Equal(t, "Whole Foods", f.catalogs.suppliers[0].Name)
	assert.True(t, f.catalogs.suppliers[0].IsAIRecognized)

	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Produce", stored.Items[0].Name)
	require.Len(t, f.catalogs.categories, 1)
	assert.Equal(t, "Grocery", f.catalogs.categories[0].Name)
	assert.Equal(t, f.catalogs.categories[0].ID, stored.Items[0].CategoryID)
	require.NotNil(t, stored.Items[0].PurposeID)

	permanentKey := fmt.Sprintf("receipts/space-1/%s.jpg", receipt.ID)
	assert.Equal(t, "http://assets.local/"+permanentKey, stored.ImageURL)
	_, hasPermanent := f.assets.objects[permanentKey]
	assert.True(t, hasPermanent)
	_, hasTemp := f.assets.objects[tempKey]
	assert.False(t, hasTemp, "temporary upload should be deleted")

	assert.Equal(t, entity.JobStateCompleted, f.jobs.jobs[job.ID].State)
	assert.Equal(t, []string{
		entity.JobStateExtracting,
		entity.JobStateResolving,
		entity.JobStateEvaluating,
		entity.JobStateDedup,
	}, f.jobs.states)
}

func TestProcessExtractionFailureLeavesDraftPending(t *testing.T) {
	f := newFixture(t, &stubExtractor{err: errors.New("rate limit exceeded")})
	receipt, job := f.submitImageJob(t, "space-1")
	tempKey := job.PayloadPath

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	stored, getErr := f.receipts.GetByID(context.Background(), "space-1", receipt.ID)
	require.NoError(t, getErr)
	require.NotNil(t, stored, "draft must be preserved")
	assert.Equal(t, entity.StatusPending, stored.Status)

	// the asset already moved to its permanent key; the draft must keep
	// pointing at it even though extraction never ran
	permanentKey := fmt.Sprintf("receipts/space-1/%s.jpg", receipt.ID)
	assert.Equal(t, "http://assets.local/"+permanentKey, stored.ImageURL)
	_, hasPermanent := f.assets.objects[permanentKey]
	assert.True(t, hasPermanent)
	_, hasTemp := f.assets.objects[tempKey]
	assert.False(t, hasTemp)

	assert.Equal(t, entity.JobStateFailed, f.jobs.jobs[job.ID].State)
	assert.Contains(t, f.jobs.jobs[job.ID].LastError, "rate limit")
}

func TestProcessResolutionFailureLeavesDraftPending(t *testing.T) {
	f := newFixture(t, &stubExtractor{result: cleanResult("Whole Foods")})
	f.catalogs.createCategoryErr = errors.New("disk I/O error")
	receipt, job := f.submitImageJob(t, "space-1")

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	stored, getErr := f.receipts.GetByID(context.Background(), "space-1", receipt.ID)
	require.NoError(t, getErr)
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusPending, stored.Status,
		"a draft must not stay processing once its job has failed")
	assert.NotEmpty(t, stored.ImageURL)

	assert.Equal(t, entity.JobStateFailed, f.jobs.jobs[job.ID].State)
}

func TestProcessFlagsDuplicate(t *testing.T) {
	f := newFixture(t, &stubExtractor{result: cleanResult("Walmart")})

	supplierID := uuid.NewString()
	f.catalogs.suppliers = append(f.catalogs.suppliers, &entity.Supplier{
		ID:      supplierID,
		SpaceID: "space-1",
		Name:    "Walmart Inc",
	})
	existing := &entity.Receipt{
		ID:          uuid.NewString(),
		SpaceID:     "space-1",
		SupplierID:  &supplierID,
		TotalAmount: 40.0,
		Currency:    "USD",
		Tax:         2.5,
		Date:        "2024-03-15",
		Status:      entity.StatusConfirmed,
		Items: []entity.ReceiptItem{
			{ID: uuid.NewString(), Name: "Produce", Price: 37.5},
		},
	}
	require.NoError(t, f.receipts.Create(context.Background(), existing))
	require.NoError(t, f.receipts.ReplaceItems(context.Background(), "space-1", existing.ID, existing.Items))

	receipt, job := f.submitImageJob(t, "space-1")
	require.NoError(t, f.pipeline.Process(context.Background(), job))

	stored, err := f.receipts.GetByID(context.Background(), "space-1", receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDuplicate, stored.Status)

	untouched, err := f.receipts.GetByID(context.Background(), "space-1", existing.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, untouched.Status)

	assert.Equal(t, entity.JobStateCompleted, f.jobs.jobs[job.ID].State)
}

func TestProcessTextModality(t *testing.T) {
	f := newFixture(t, &stubExtractor{result: cleanResult("Trader Joe's")})

	receipt := &entity.Receipt{
		ID:      uuid.NewString(),
		SpaceID: "space-1",
		Status:  entity.StatusProcessing,
	}
	require.NoError(t, f.receipts.Create(context.Background(), receipt))

	job := &entity.IngestJob{
		SpaceID:     "space-1",
		ReceiptID:   receipt.ID,
		Modality:    entity.ModalityText,
		PayloadPath: "bought groceries at trader joes for $40",
		State:       entity.JobStateUploading,
	}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	require.NoError(t, f.pipeline.Process(context.Background(), job))

	stored, err := f.receipts.GetByID(context.Background(), "space-1", receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, stored.Status)
	assert.Empty(t, stored.ImageURL, "text submissions have no asset")
	assert.Equal(t, 1, f.oracle.calls)
}

func TestProcessMissingReceiptFailsJob(t *testing.T) {
	f := newFixture(t, &stubExtractor{result: cleanResult("Costco")})

	job := &entity.IngestJob{
		SpaceID:     "space-1",
		ReceiptID:   "gone",
		Modality:    entity.ModalityText,
		PayloadPath: "whatever",
		State:       entity.JobStateUploading,
	}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, entity.JobStateFailed, f.jobs.jobs[job.ID].State)
	assert.Equal(t, 0, f.oracle.calls)
}
