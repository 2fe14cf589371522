package extraction

import (
	"math"

	"github.com/hualiang/home-ledger/internal/domain/entity"
)

// EvaluatorConfig holds the confidence heuristics' tuning constants. The
// values are inherited, not derived; treat them as product decisions and
// change them only through configuration.
type EvaluatorConfig struct {
	BaseConfidence        float64 `mapstructure:"base_confidence"`  // assumed when the oracle reports none
	AmountTolerance       float64 `mapstructure:"amount_tolerance"` // absolute tolerance for sum-vs-total match
	LargeErrorRatio       float64 `mapstructure:"large_error_ratio"`
	MediumErrorRatio      float64 `mapstructure:"medium_error_ratio"`
	LargeErrorPenalty     float64 `mapstructure:"large_error_penalty"`
	LargeErrorFloor       float64 `mapstructure:"large_error_floor"`
	MediumErrorPenalty    float64 `mapstructure:"medium_error_penalty"`
	MediumErrorFloor      float64 `mapstructure:"medium_error_floor"`
	SmallErrorPenalty     float64 `mapstructure:"small_error_penalty"`
	SmallErrorFloor       float64 `mapstructure:"small_error_floor"`
	MissingItemsPenalty   float64 `mapstructure:"missing_items_penalty"`
	MissingItemsFloor     float64 `mapstructure:"missing_items_floor"`
	ClarityThreshold      float64 `mapstructure:"clarity_threshold"`
	ClarityPenalty        float64 `mapstructure:"clarity_penalty"`
	ClarityFloor          float64 `mapstructure:"clarity_floor"`
	CompletenessThreshold float64 `mapstructure:"completeness_threshold"`
	CompletenessPenalty   float64 `mapstructure:"completeness_penalty"`
	CompletenessFloor     float64 `mapstructure:"completeness_floor"`
	CleanBonus            float64 `mapstructure:"clean_bonus"` // awarded when every signal is unambiguous
	CleanBonusCeiling     float64 `mapstructure:"clean_bonus_ceiling"`
	ConfirmThreshold      float64 `mapstructure:"confirm_threshold"` // score at or above becomes confirmed
	RetakeThreshold       float64 `mapstructure:"retake_threshold"`  // score below becomes needs_retake
}

// DefaultEvaluatorConfig returns the tuning constants the heuristics were
// shipped with
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		BaseConfidence:        0.5,
		AmountTolerance:       0.01,
		LargeErrorRatio:       0.10,
		MediumErrorRatio:      0.05,
		LargeErrorPenalty:     0.3,
		LargeErrorFloor:       0.2,
		MediumErrorPenalty:    0.2,
		MediumErrorFloor:      0.3,
		SmallErrorPenalty:     0.1,
		SmallErrorFloor:       0.4,
		MissingItemsPenalty:   0.15,
		MissingItemsFloor:     0.3,
		ClarityThreshold:      0.7,
		ClarityPenalty:        0.1,
		ClarityFloor:          0.2,
		CompletenessThreshold: 0.8,
		CompletenessPenalty:   0.1,
		CompletenessFloor:     0.3,
		CleanBonus:            0.05,
		CleanBonusCeiling:     0.95,
		ConfirmThreshold:      0.85,
		RetakeThreshold:       0.4,
	}
}

// Evaluation is the outcome of scoring one normalized extraction
type Evaluation struct {
	Confidence       float64
	Status           string
	ItemsSum         float64
	ExpectedTotal    float64
	AmountDifference float64
	AmountMatches    bool
	MissingItems     bool
}

// Evaluator computes an adjusted confidence score and the provisional
// lifecycle status for a normalized extraction. Evaluate is a pure
// function of its input.
type Evaluator struct {
	cfg EvaluatorConfig
}

// NewEvaluator creates an evaluator with the given tuning constants
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate cross-checks the item sum against the declared total, folds in
// the oracle's image-quality signals, and maps the adjusted score to a
// status. Floors on each penalty keep a single bad signal from collapsing
// the score to zero.
func (e *Evaluator) Evaluate(result *entity.ExtractionResult) Evaluation {
	cfg := e.cfg

	score := cfg.BaseConfidence
	if result.Confidence != nil {
		score = *result.Confidence
	}

	var itemsSum float64
	for _, item := range result.Items {
		itemsSum += item.Price
	}

	expectedTotal := itemsSum + result.Tax
	amountDifference := math.Abs(expectedTotal - result.TotalAmount)
	amountMatches := amountDifference <= cfg.AmountTolerance

	if !amountMatches {
		relativeError := amountDifference / math.Max(result.TotalAmount, 1)
		switch {
		case relativeError > cfg.LargeErrorRatio:
			score = penalize(score, cfg.LargeErrorPenalty, cfg.LargeErrorFloor)
		case relativeError > cfg.MediumErrorRatio:
			score = penalize(score, cfg.MediumErrorPenalty, cfg.MediumErrorFloor)
		default:
			score = penalize(score, cfg.SmallErrorPenalty, cfg.SmallErrorFloor)
		}
	}

	missingItems := flaggedMissingItems(result)
	if !missingItems && !amountMatches && itemsSum < result.TotalAmount {
		// amounts short of the declared total imply items the oracle missed
		missingItems = true
	}
	if missingItems {
		score = penalize(score, cfg.MissingItemsPenalty, cfg.MissingItemsFloor)
	}

	// absent quality signals are treated as 0.8: good enough not to penalize
	clarity, completeness := 0.8, 0.8
	if q := result.ImageQuality; q != nil {
		if q.Clarity != nil {
			clarity = *q.Clarity
		}
		if q.Completeness != nil {
			completeness = *q.Completeness
		}
	}
	if clarity < cfg.ClarityThreshold {
		score = penalize(score, cfg.ClarityPenalty, cfg.ClarityFloor)
	}
	if completeness < cfg.CompletenessThreshold {
		score = penalize(score, cfg.CompletenessPenalty, cfg.CompletenessFloor)
	}

	if amountMatches && !missingItems && clarity >= 0.8 && completeness >= 0.9 {
		score = math.Min(score+cfg.CleanBonus, cfg.CleanBonusCeiling)
	}

	score = math.Max(0, math.Min(1, score))

	return Evaluation{
		Confidence:       score,
		Status:           e.statusFor(score),
		ItemsSum:         itemsSum,
		ExpectedTotal:    expectedTotal,
		AmountDifference: amountDifference,
		AmountMatches:    amountMatches,
		MissingItems:     missingItems,
	}
}

func (e *Evaluator) statusFor(score float64) string {
	switch {
	case score >= e.cfg.ConfirmThreshold:
		return entity.StatusConfirmed
	case score < e.cfg.RetakeThreshold:
		return entity.StatusNeedsRetake
	default:
		return entity.StatusPending
	}
}

func flaggedMissingItems(result *entity.ExtractionResult) bool {
	if result.DataConsistency == nil || result.DataConsistency.MissingItems == nil {
		return false
	}
	return *result.DataConsistency.MissingItems
}

// penalize subtracts a penalty but never drops the score below floor;
// a score already under the floor is left where it is
func penalize(score, penalty, floor float64) float64 {
	lowered := score - penalty
	if lowered < floor {
		if score < floor {
			return score
		}
		return floor
	}
	return lowered
}
