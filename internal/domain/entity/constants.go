package entity

// Status constants for Receipt lifecycle
const (
	StatusProcessing  = "processing"   // extraction still running in the background
	StatusPending     = "pending"      // awaiting user confirmation
	StatusConfirmed   = "confirmed"    // confirmed automatically or by a user
	StatusNeedsRetake = "needs_retake" // extraction too unreliable, ask for a new photo
	StatusDuplicate   = "duplicate"    // judged a re-submission of an existing receipt
)

// State constants for IngestJob
const (
	JobStateQueued     = "QUEUED"
	JobStateUploading  = "UPLOADING"
	JobStateExtracting = "EXTRACTING"
	JobStateResolving  = "RESOLVING"
	JobStateEvaluating = "EVALUATING"
	JobStateDedup      = "DUPLICATE_CHECKING"
	JobStateCompleted  = "COMPLETED"
	JobStateFailed     = "FAILED"
)

// ValidReceiptStatuses lists every status a receipt row may carry
var ValidReceiptStatuses = []string{
	StatusProcessing,
	StatusPending,
	StatusConfirmed,
	StatusNeedsRetake,
	StatusDuplicate,
}
