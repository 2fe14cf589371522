package match

import "strings"

// Placeholder strings some models emit instead of real data when the source
// was unreadable or the answer was streamed before completion. A label on
// this list must be treated as absent, never stored as an entity name.
var placeholderLabels = map[string]bool{
	"processing":    true,
	"processing...": true,
	"pending":       true,
	"pending...":    true,
	"loading":       true,
	"loading...":    true,
	"识别中":           true,
	"处理中":           true,
	"待处理":           true,
}

// IsPlaceholder reports whether a label is empty or a transient placeholder
func IsPlaceholder(label string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(label))
	if trimmed == "" {
		return true
	}
	return placeholderLabels[trimmed]
}
