package entity

import "time"

// Modality is the shape of the raw input a receipt was submitted as
const (
	ModalityImage = "image"
	ModalityPDF   = "pdf"
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// IngestJob is one queued run of the ingestion pipeline for a receipt.
// The submitting request creates the job and returns; a worker claims it
// and advances it to a terminal state.
type IngestJob struct {
	ID          string     `json:"id"`
	SpaceID     string     `json:"space_id"`
	ReceiptID   string     `json:"receipt_id"`
	Modality    string     `json:"modality"`
	PayloadPath string     `json:"payload_path"` // asset-store key for image/pdf/audio, inline text otherwise
	State       string     `json:"state"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}
