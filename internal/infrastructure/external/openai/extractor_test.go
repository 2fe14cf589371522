package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "bare object",
			content:  `{"supplier_name": "Walmart"}`,
			expected: `{"supplier_name": "Walmart"}`,
		},
		{
			name:     "fenced json",
			content:  "```json\n{\"total_amount\": 42.5}\n```",
			expected: `{"total_amount": 42.5}`,
		},
		{
			name:     "fenced without language tag",
			content:  "```\n{\"currency\": \"USD\"}\n```",
			expected: `{"currency": "USD"}`,
		},
		{
			name:     "surrounded by prose",
			content:  "Here is the extraction:\n{\"tax\": 1.5}\nLet me know if you need more.",
			expected: `{"tax": 1.5}`,
		},
		{
			name:     "nested objects",
			content:  `result: {"image_quality": {"clarity": 0.9}, "items": [{"name": "Milk"}]}`,
			expected: `{"image_quality": {"clarity": 0.9}, "items": [{"name": "Milk"}]}`,
		},
		{
			name:     "braces inside strings",
			content:  `{"supplier_name": "Curly {Brace} Mart"}`,
			expected: `{"supplier_name": "Curly {Brace} Mart"}`,
		},
		{
			name:     "no json",
			content:  "I could not read this receipt.",
			expected: "",
		},
		{
			name:     "unbalanced",
			content:  `{"supplier_name": "Truncated`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.content))
		})
	}
}

func TestDecodeResult(t *testing.T) {
	content := "```json\n" + `{
  "supplier_name": "Whole Foods",
  "date": "2024-03-15",
  "total_amount": 40.0,
  "currency": "USD",
  "tax": 2.5,
  "items": [
    {"name": "Produce", "category_name": "Grocery", "purpose": "Home", "price": 37.5, "is_asset": false, "confidence": 0.9}
  ],
  "confidence": 0.92,
  "image_quality": {"clarity": 0.9, "completeness": 0.95},
  "data_consistency": {"items_sum": 37.5, "items_sum_matches_total": false, "missing_items": false}
}` + "\n```"

	result, err := decodeResult(content)
	require.NoError(t, err)
	assert.Equal(t, "Whole Foods", result.SupplierName)
	assert.Equal(t, "2024-03-15", result.Date)
	assert.Equal(t, 40.0, result.TotalAmount)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Produce", result.Items[0].Name)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.92, *result.Confidence, 1e-9)
	require.NotNil(t, result.ImageQuality)
	require.NotNil(t, result.ImageQuality.Clarity)
	assert.InDelta(t, 0.9, *result.ImageQuality.Clarity, 1e-9)
}

func TestDecodeResultNoJSON(t *testing.T) {
	_, err := decodeResult("the image is too blurry to read")
	assert.Error(t, err)
}

func TestBuildReceiptPromptIncludesHints(t *testing.T) {
	prompt := buildReceiptPrompt([]string{"Grocery", "Utilities"}, []string{"Home", "Office"})
	assert.Contains(t, prompt, "Grocery, Utilities")
	assert.Contains(t, prompt, "Home, Office")
	assert.Contains(t, prompt, "supplier_name")
	assert.Contains(t, prompt, "data_consistency")
}
