package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trims and lowercases",
			input:    "  Starbucks  ",
			expected: "starbucks",
		},
		{
			name:     "collapses inner whitespace",
			input:    "Whole   Foods   Market",
			expected: "whole foods market",
		},
		{
			name:     "strips english corporate suffix",
			input:    "Walmart Inc",
			expected: "walmart",
		},
		{
			name:     "strips stacked suffixes",
			input:    "Acme Co. Ltd",
			expected: "acme",
		},
		{
			name:     "strips chinese corporate suffix",
			input:    "盒马鲜生超市有限公司",
			expected: "盒马鲜生",
		},
		{
			name:     "suffix-only name is kept",
			input:    "Co",
			expected: "co",
		},
		{
			name:     "empty input",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Walmart", "walmart"))
	assert.Equal(t, 0.0, Similarity("", "walmart"))
	assert.Equal(t, 0.0, Similarity("walmart", ""))

	// "walmart" vs "walmart inc": 4 edits over 11 chars
	sim := Similarity("Walmart", "Walmart Inc")
	assert.InDelta(t, 1.0-4.0/11.0, sim, 1e-9)
	assert.Greater(t, sim, 0.6)

	// completely different strings score low
	assert.Less(t, Similarity("Starbucks", "Home Depot"), 0.3)
}

func TestMatcherEqualNormalized(t *testing.T) {
	m := NewMatcher(0.8)

	assert.True(t, m.EqualNormalized("Walmart Inc", "  walmart  "))
	assert.True(t, m.EqualNormalized("盒马鲜生有限公司", "盒马鲜生"))
	assert.False(t, m.EqualNormalized("Walmart", "Target"))
}

func TestMatcherPairRatio(t *testing.T) {
	m := NewMatcher(0.7)

	left := []string{"Coffee", "Sandwich", "Orange Juice"}
	right := []string{"coffee", "sandwich", "orange juice"}
	assert.Equal(t, 1.0, m.PairRatio(left, right))

	right = []string{"coffee", "laptop", "screwdriver"}
	assert.InDelta(t, 1.0/3.0, m.PairRatio(left, right), 1e-9)

	assert.Equal(t, 0.0, m.PairRatio(nil, right))
}
