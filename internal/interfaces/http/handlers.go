package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/service"
	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// spaceHeader carries the tenant: every data route requires it
const spaceHeader = "X-Space-ID"

// userHeader identifies the submitting member, optional
const userHeader = "X-User-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	receipts *service.ReceiptService
	catalogs *service.CatalogService
	logger   *zap.Logger
}

// NewHandlers creates a Handlers instance
func NewHandlers(receipts *service.ReceiptService, catalogs *service.CatalogService, logger *zap.Logger) *Handlers {
	return &Handlers{
		receipts: receipts,
		catalogs: catalogs,
		logger:   logger,
	}
}

// Response is the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health handles GET /healthz
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SubmitReceipt handles POST /api/v1/receipts. The body is multipart form
// data with a "modality" field and either a "file" part or a "text" field.
// Returns 202 with the draft receipt; the pipeline fills it in afterwards.
func (h *Handlers) SubmitReceipt(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	req := service.SubmitRequest{
		SpaceID:   spaceID,
		CreatedBy: c.GetHeader(userHeader),
		Modality:  c.PostForm("modality"),
		Text:      c.PostForm("text"),
	}

	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			h.fail(c, http.StatusBadRequest, err)
			return
		}
		defer f.Close()

		payload, err := io.ReadAll(f)
		if err != nil {
			h.fail(c, http.StatusBadRequest, err)
			return
		}
		req.Payload = payload
		req.MimeType = file.Header.Get("Content-Type")
	}

	receipt, err := h.receipts.Submit(c.Request.Context(), req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			h.fail(c, http.StatusBadRequest, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, Response{Success: true, Data: receipt})
}

// ListReceipts handles GET /api/v1/receipts
func (h *Handlers) ListReceipts(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	receipts, err := h.receipts.List(c.Request.Context(), spaceID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	if receipts == nil {
		receipts = []*entity.Receipt{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: receipts})
}

// GetReceipt handles GET /api/v1/receipts/:id
func (h *Handlers) GetReceipt(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	receipt, err := h.receipts.Get(c.Request.Context(), spaceID, c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	if receipt == nil {
		h.notFound(c)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: receipt})
}

// ConfirmReceipt handles POST /api/v1/receipts/:id/confirm
func (h *Handlers) ConfirmReceipt(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	receipt, err := h.receipts.Confirm(c.Request.Context(), spaceID, c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	if receipt == nil {
		h.notFound(c)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: receipt})
}

type editItemRequest struct {
	Name       *string  `json:"name"`
	CategoryID *string  `json:"category_id"`
	PurposeID  *string  `json:"purpose_id"`
	Price      *float64 `json:"price"`
	IsAsset    *bool    `json:"is_asset"`
}

// EditReceiptItem handles PATCH /api/v1/receipts/:id/items/:itemID
func (h *Handlers) EditReceiptItem(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	var body editItemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	item, err := h.receipts.EditItem(c.Request.Context(), spaceID, c.Param("id"), c.Param("itemID"), service.ItemPatch{
		Name:       body.Name,
		CategoryID: body.CategoryID,
		PurposeID:  body.PurposeID,
		Price:      body.Price,
		IsAsset:    body.IsAsset,
	})
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			h.fail(c, http.StatusBadRequest, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	if item == nil {
		h.notFound(c)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: item})
}

// DeleteReceipt handles DELETE /api/v1/receipts/:id
func (h *Handlers) DeleteReceipt(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	if err := h.receipts.Delete(c.Request.Context(), spaceID, c.Param("id")); err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListCategories handles GET /api/v1/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}
	categories, err := h.catalogs.Categories(c.Request.Context(), spaceID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: categories})
}

// ListPurposes handles GET /api/v1/purposes
func (h *Handlers) ListPurposes(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}
	purposes, err := h.catalogs.Purposes(c.Request.Context(), spaceID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: purposes})
}

// ListPaymentAccounts handles GET /api/v1/payment-accounts
func (h *Handlers) ListPaymentAccounts(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}
	accounts, err := h.catalogs.PaymentAccounts(c.Request.Context(), spaceID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: accounts})
}

// ListSuppliers handles GET /api/v1/suppliers
func (h *Handlers) ListSuppliers(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}
	suppliers, err := h.catalogs.Suppliers(c.Request.Context(), spaceID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: suppliers})
}

type mergeSuppliersRequest struct {
	SourceIDs []string `json:"source_ids" binding:"required,min=1"`
	TargetID  string   `json:"target_id" binding:"required"`
}

// MergeSuppliers handles POST /api/v1/suppliers/merge
func (h *Handlers) MergeSuppliers(c *gin.Context) {
	spaceID, ok := h.space(c)
	if !ok {
		return
	}

	var body mergeSuppliersRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	if err := h.catalogs.MergeSuppliers(c.Request.Context(), spaceID, body.SourceIDs, body.TargetID); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

func (h *Handlers) space(c *gin.Context) (string, bool) {
	spaceID := c.GetHeader(spaceHeader)
	if spaceID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing " + spaceHeader + " header"})
		return "", false
	}
	return spaceID, true
}

func (h *Handlers) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{Success: false, Error: "not found"})
}

func (h *Handlers) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
