package entity

// ExtractionResult is the AI oracle's structured best-guess reading of a
// receipt. Every field is untrusted: any of them may be absent, malformed,
// or semantically wrong until the normalizer has run.
type ExtractionResult struct {
	SupplierName       string           `json:"supplier_name"`
	SupplierTaxNumber  string           `json:"supplier_tax_number,omitempty"`
	SupplierPhone      string           `json:"supplier_phone,omitempty"`
	SupplierAddress    string           `json:"supplier_address,omitempty"`
	Date               string           `json:"date"`
	TotalAmount        float64          `json:"total_amount"`
	Currency           string           `json:"currency"`
	Tax                float64          `json:"tax"`
	PaymentAccountName string           `json:"payment_account"`
	Items              []ExtractedItem  `json:"items"`
	Confidence         *float64         `json:"confidence,omitempty"`
	ImageQuality       *ImageQuality    `json:"image_quality,omitempty"`
	DataConsistency    *DataConsistency `json:"data_consistency,omitempty"`
}

// ExtractedItem is one line item as read by the oracle
type ExtractedItem struct {
	Name         string   `json:"name"`
	CategoryName string   `json:"category_name"`
	PurposeName  string   `json:"purpose,omitempty"`
	Price        float64  `json:"price"`
	IsAsset      bool     `json:"is_asset,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// ImageQuality carries the oracle's self-assessment of the source image
type ImageQuality struct {
	Clarity      *float64 `json:"clarity,omitempty"`      // 0-1
	Completeness *float64 `json:"completeness,omitempty"` // 0-1
}

// DataConsistency carries the oracle's cross-checks of its own output
type DataConsistency struct {
	ItemsSum             *float64 `json:"items_sum,omitempty"`
	ItemsSumMatchesTotal *bool    `json:"items_sum_matches_total,omitempty"`
	MissingItems         *bool    `json:"missing_items,omitempty"`
}
