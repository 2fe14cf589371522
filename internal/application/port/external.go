package port

import (
	"context"

	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// ExtractRequest is one call to the AI extraction oracle
type ExtractRequest struct {
	Modality string
	// Payload holds the raw bytes for image/pdf/audio inputs
	Payload  []byte
	MimeType string
	// Text holds free-text input for the text modality
	Text string
	// Known entity names for the space, given to the oracle as hints so it
	// picks from existing categories and purposes where possible
	CategoryNames []string
	PurposeNames  []string
}

// Extractor is the AI oracle that turns raw receipt input into a
// structured guess. Implementations must tolerate the model wrapping its
// JSON in prose or code fences, and classify failures per the oracle
// error taxonomy.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*entity.ExtractionResult, error)
}
