package entity

import "time"

// Receipt represents a single purchase recorded for a space (household)
type Receipt struct {
	ID               string        `json:"id"`
	SpaceID          string        `json:"space_id"`
	SupplierID       *string       `json:"supplier_id"`
	TotalAmount      float64       `json:"total_amount"`
	Currency         string        `json:"currency"`
	Tax              float64       `json:"tax"`
	Date             string        `json:"date"` // calendar date, YYYY-MM-DD, stored verbatim
	PaymentAccountID *string       `json:"payment_account_id"`
	Status           string        `json:"status"`
	ImageURL         string        `json:"image_url"`
	Confidence       float64       `json:"confidence"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Items            []ReceiptItem `json:"items"`
}

// ReceiptItem is a line item owned by exactly one receipt
type ReceiptItem struct {
	ID         string   `json:"id"`
	ReceiptID  string   `json:"receipt_id"`
	Name       string   `json:"name"`
	CategoryID string   `json:"category_id"`
	PurposeID  *string  `json:"purpose_id"`
	Price      float64  `json:"price"`
	IsAsset    bool     `json:"is_asset"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ItemsSum returns the sum of all line item prices
func (r *Receipt) ItemsSum() float64 {
	var sum float64
	for _, item := range r.Items {
		sum += item.Price
	}
	return sum
}
