// Package extraction holds the receipt-ingestion core: normalizing raw
// oracle output, scoring its trustworthiness, and detecting duplicate
// submissions.
package extraction

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/match"
)

const (
	// FallbackSupplierName is used when neither the oracle nor the item
	// list yields a usable supplier label
	FallbackSupplierName = "Unknown"
	// FallbackItemName names the single synthesized item when the oracle
	// returned no usable line items
	FallbackItemName = "General Purchase"
	// FallbackCurrency is used when the space has no receipt history to
	// infer a currency from
	FallbackCurrency = "USD"
	// FallbackPurposeName is the conservative default purpose: most
	// household receipts are personal, not business
	FallbackPurposeName = "Home"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// NormalizeOptions carries the tenant context the defaulting rules need
type NormalizeOptions struct {
	// Today is the caller's local calendar date (YYYY-MM-DD). Empty means
	// compute it from the local clock.
	Today string
	// DefaultCurrency is the space's most frequently used currency, empty
	// when the space has no history
	DefaultCurrency string
	// DefaultCategoryName is the space's first available category name,
	// given to the synthesized fallback item
	DefaultCategoryName string
}

// Normalize converts an untrusted extraction result into a value safe to
// feed into entity resolution and persistence. It is total: any input,
// including nil, yields a fully populated result with at least one item
// carrying a category and purpose. It never errors.
func Normalize(raw *entity.ExtractionResult, opts NormalizeOptions) *entity.ExtractionResult {
	if raw == nil {
		raw = &entity.ExtractionResult{}
	}

	out := *raw

	out.TotalAmount = sanitizeAmount(raw.TotalAmount)
	out.Tax = sanitizeAmount(raw.Tax)
	out.Date = normalizeDate(raw.Date, opts.Today)
	out.Currency = normalizeCurrency(raw.Currency, opts.DefaultCurrency)
	out.Items = normalizeItems(raw.Items, out.TotalAmount, out.Tax, opts.DefaultCategoryName)
	// the fallback runs on the oracle's own items, not the synthesized one,
	// so an empty extraction reads "Unknown" rather than "General Purchase"
	out.SupplierName = normalizeSupplierName(raw.SupplierName, raw.Items)

	if match.IsPlaceholder(out.PaymentAccountName) {
		out.PaymentAccountName = ""
	} else {
		out.PaymentAccountName = strings.TrimSpace(out.PaymentAccountName)
	}

	return &out
}

func normalizeSupplierName(name string, items []entity.ExtractedItem) string {
	trimmed := strings.TrimSpace(name)
	if !match.IsPlaceholder(trimmed) {
		return trimmed
	}
	for _, item := range items {
		if n := strings.TrimSpace(item.Name); n != "" {
			return n
		}
	}
	return FallbackSupplierName
}

// normalizeDate keeps the date component of an ISO input verbatim. A
// calendar date must never round-trip through a time zone: "2024-03-15"
// stays "2024-03-15" no matter where it is read back.
func normalizeDate(raw, today string) string {
	trimmed := strings.TrimSpace(raw)
	if m := isoDatePattern.FindString(trimmed); m != "" {
		return m
	}
	if today != "" {
		return today
	}
	return time.Now().Format("2006-01-02")
}

func normalizeCurrency(raw, spaceDefault string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed != "" {
		return trimmed
	}
	if spaceDefault != "" {
		return spaceDefault
	}
	return FallbackCurrency
}

func normalizeItems(raw []entity.ExtractedItem, total, tax float64, defaultCategory string) []entity.ExtractedItem {
	items := make([]entity.ExtractedItem, 0, len(raw))

	for _, item := range raw {
		item.Name = strings.TrimSpace(item.Name)
		item.CategoryName = strings.TrimSpace(item.CategoryName)
		item.Price = sanitizeAmount(item.Price)

		if item.Name == "" || match.IsPlaceholder(item.CategoryName) {
			continue
		}
		if match.IsPlaceholder(item.PurposeName) {
			item.PurposeName = FallbackPurposeName
		} else {
			item.PurposeName = strings.TrimSpace(item.PurposeName)
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		items = append(items, fallbackItem(total, tax, defaultCategory))
	}
	return items
}

func fallbackItem(total, tax float64, defaultCategory string) entity.ExtractedItem {
	category := strings.TrimSpace(defaultCategory)
	return entity.ExtractedItem{
		Name:         FallbackItemName,
		CategoryName: category,
		PurposeName:  FallbackPurposeName,
		Price:        sanitizeAmount(total - tax),
	}
}

func sanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
