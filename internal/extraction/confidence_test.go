package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hualiang/home-ledger/internal/domain/entity"
)

func f64(v float64) *float64 { return &v }

// neutralResult builds an extraction whose signals add no penalty and no
// bonus (completeness below the bonus gate), so the adjusted score equals
// the oracle confidence exactly.
func neutralResult(confidence float64) *entity.ExtractionResult {
	return &entity.ExtractionResult{
		TotalAmount: 25.5,
		Tax:         0,
		Confidence:  f64(confidence),
		Items: []entity.ExtractedItem{
			{Name: "Coffee", CategoryName: "Dining Out", Price: 5.5},
			{Name: "Sandwich", CategoryName: "Dining Out", Price: 20},
		},
		ImageQuality: &entity.ImageQuality{
			Clarity:      f64(0.8),
			Completeness: f64(0.85),
		},
	}
}

func TestEvaluateDefaultsMissingConfidence(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	result := neutralResult(0)
	result.Confidence = nil
	eval := e.Evaluate(result)

	assert.InDelta(t, 0.5, eval.Confidence, 1e-9)
	assert.Equal(t, entity.StatusPending, eval.Status)
}

func TestEvaluateAmountInvariant(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	result := neutralResult(0.9)
	eval := e.Evaluate(result)
	require.True(t, eval.AmountMatches)
	assert.InDelta(t, 25.5, eval.ItemsSum, 1e-9)
	assert.InDelta(t, 25.5, eval.ExpectedTotal, 1e-9)

	// changing one item's price moves the computed difference accordingly
	result.Items[1].Price = 19
	eval = e.Evaluate(result)
	assert.False(t, eval.AmountMatches)
	assert.InDelta(t, 1.0, eval.AmountDifference, 1e-9)
}

func TestEvaluateMismatchPenalties(t *testing.T) {
	tests := []struct {
		name       string
		total      float64
		itemsSum   float64
		confidence float64
		expected   float64
	}{
		{
			// relative error 20/100 > 10%: subtract 0.3
			name: "large relative error", total: 100, itemsSum: 120, confidence: 0.9, expected: 0.6,
		},
		{
			// relative error 8/100 > 5%: subtract 0.2
			name: "medium relative error", total: 100, itemsSum: 108, confidence: 0.9, expected: 0.7,
		},
		{
			// relative error 2/100 <= 5%: subtract 0.1
			name: "small relative error", total: 100, itemsSum: 102, confidence: 0.9, expected: 0.8,
		},
		{
			// floor stops the large-error penalty from collapsing the score
			name: "large error floored", total: 100, itemsSum: 120, confidence: 0.3, expected: 0.2,
		},
	}

	e := NewEvaluator(DefaultEvaluatorConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := neutralResult(tt.confidence)
			result.TotalAmount = tt.total
			result.Items = []entity.ExtractedItem{
				{Name: "Single", CategoryName: "Grocery", Price: tt.itemsSum},
			}

			eval := e.Evaluate(result)
			assert.InDelta(t, tt.expected, eval.Confidence, 1e-9)
		})
	}
}

func TestEvaluateInfersMissingItems(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	// itemsSum 80 < total 100 with a mismatch: missing items are inferred,
	// so both the large-error and missing-items penalties apply
	result := neutralResult(0.9)
	result.TotalAmount = 100
	result.Items = []entity.ExtractedItem{{Name: "Single", CategoryName: "Grocery", Price: 80}}

	eval := e.Evaluate(result)
	assert.True(t, eval.MissingItems)
	assert.InDelta(t, 0.45, eval.Confidence, 1e-9) // 0.9 - 0.3 - 0.15

	// itemsSum above the total mismatches without implying missing items
	result.Items[0].Price = 120
	eval = e.Evaluate(result)
	assert.False(t, eval.MissingItems)
}

func TestEvaluateExplicitMissingItemsFlag(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	flag := true
	result := neutralResult(0.9)
	result.DataConsistency = &entity.DataConsistency{MissingItems: &flag}

	eval := e.Evaluate(result)
	assert.True(t, eval.MissingItems)
	assert.InDelta(t, 0.75, eval.Confidence, 1e-9)
}

// Decreasing clarity below its threshold must never increase the score.
func TestEvaluateClarityMonotonicity(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	clear := neutralResult(0.9)
	blurry := neutralResult(0.9)
	blurry.ImageQuality.Clarity = f64(0.6)

	evalClear := e.Evaluate(clear)
	evalBlurry := e.Evaluate(blurry)
	assert.LessOrEqual(t, evalBlurry.Confidence, evalClear.Confidence)
	assert.InDelta(t, 0.8, evalBlurry.Confidence, 1e-9)
}

// An extraction whose amounts match never scores below the same extraction
// with mismatched amounts.
func TestEvaluateAmountMatchMonotonicity(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	matching := neutralResult(0.7)
	mismatching := neutralResult(0.7)
	mismatching.TotalAmount = 30

	assert.GreaterOrEqual(t,
		e.Evaluate(matching).Confidence,
		e.Evaluate(mismatching).Confidence)
}

func TestEvaluateCleanBonus(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	result := neutralResult(0.8)
	result.ImageQuality = &entity.ImageQuality{
		Clarity:      f64(0.9),
		Completeness: f64(0.95),
	}

	eval := e.Evaluate(result)
	assert.InDelta(t, 0.85, eval.Confidence, 1e-9)
	assert.Equal(t, entity.StatusConfirmed, eval.Status)

	// ceiling applies
	result.Confidence = f64(0.93)
	eval = e.Evaluate(result)
	assert.InDelta(t, 0.95, eval.Confidence, 1e-9)
}

func TestEvaluateStatusBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		expected   string
	}{
		{name: "exactly confirm threshold", confidence: 0.85, expected: entity.StatusConfirmed},
		{name: "just under confirm threshold", confidence: 0.849999, expected: entity.StatusPending},
		{name: "exactly retake threshold", confidence: 0.4, expected: entity.StatusPending},
		{name: "just under retake threshold", confidence: 0.399999, expected: entity.StatusNeedsRetake},
	}

	e := NewEvaluator(DefaultEvaluatorConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := e.Evaluate(neutralResult(tt.confidence))
			assert.InDelta(t, tt.confidence, eval.Confidence, 1e-9)
			assert.Equal(t, tt.expected, eval.Status)
		})
	}
}

// An empty item list synthesized into one fallback item makes the amounts
// trivially match, so no amount penalty applies.
func TestEvaluateSynthesizedFallbackScenario(t *testing.T) {
	normalized := Normalize(&entity.ExtractionResult{TotalAmount: 40}, NormalizeOptions{
		Today:               "2024-03-15",
		DefaultCategoryName: "Grocery",
	})

	eval := NewEvaluator(DefaultEvaluatorConfig()).Evaluate(normalized)
	assert.True(t, eval.AmountMatches)
	assert.False(t, eval.MissingItems)
	assert.InDelta(t, 0.5, eval.Confidence, 1e-9)
	assert.Equal(t, entity.StatusPending, eval.Status)
}
