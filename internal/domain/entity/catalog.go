package entity

import "time"

// EntityKind identifies a catalog entity table
type EntityKind string

const (
	KindCategory       EntityKind = "category"
	KindPurpose        EntityKind = "purpose"
	KindPaymentAccount EntityKind = "payment_account"
	KindSupplier       EntityKind = "supplier"
)

// Category classifies receipt line items (e.g. Grocery, Dining Out)
type Category struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purpose marks what a line item was bought for (Home, Business, ...)
type Purpose struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentAccount is a card or account a receipt was paid from
type PaymentAccount struct {
	ID             string    `json:"id"`
	SpaceID        string    `json:"space_id"`
	Name           string    `json:"name"`
	TaxNumber      string    `json:"tax_number"`
	IsAIRecognized bool      `json:"is_ai_recognized"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Supplier is a merchant receipts are purchased from
type Supplier struct {
	ID             string    `json:"id"`
	SpaceID        string    `json:"space_id"`
	Name           string    `json:"name"`
	TaxNumber      string    `json:"tax_number"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	IsAIRecognized bool      `json:"is_ai_recognized"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MergeRecord remembers that an entity with SourceName was merged into
// TargetID, so later resolutions of the same name land on the survivor
type MergeRecord struct {
	ID         int64     `json:"id"`
	SpaceID    string    `json:"space_id"`
	Kind       EntityKind `json:"kind"`
	SourceName string    `json:"source_name"` // normalized form
	TargetID   string    `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}
