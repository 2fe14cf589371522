package extraction

import (
	"math"
	"time"

	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/match"
)

// DetectorConfig holds the duplicate heuristics' tuning constants.
// Inherited values; change through configuration only.
type DetectorConfig struct {
	SupplierSimilarity float64 `mapstructure:"supplier_similarity"` // gate: below this the pair is skipped
	ItemSimilarity     float64 `mapstructure:"item_similarity"`     // per-item name pairing threshold
	ItemPairRatio      float64 `mapstructure:"item_pair_ratio"`     // fraction of items that must pair up
	MaxItemCountGap    int     `mapstructure:"max_item_count_gap"`  // item-count difference above this is dissimilar
	MaxDateGapDays     int     `mapstructure:"max_date_gap_days"`   // calendar-day distance gate
	AmountTolerance    float64 `mapstructure:"amount_tolerance"`    // absolute amount tolerance
	MinChecks          int     `mapstructure:"min_checks"`          // checks that must have been evaluated
	MatchRatio         float64 `mapstructure:"match_ratio"`         // fraction of evaluated checks that must pass
}

// DefaultDetectorConfig returns the tuning constants the heuristics were
// shipped with
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		SupplierSimilarity: 0.8,
		ItemSimilarity:     0.7,
		ItemPairRatio:      0.8,
		MaxItemCountGap:    2,
		MaxDateGapDays:     1,
		AmountTolerance:    0.01,
		MinChecks:          4,
		MatchRatio:         0.85,
	}
}

// Detector decides whether a newly ingested receipt is very likely a
// re-submission of an existing one in the same space
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector with the given tuning constants
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// FindDuplicate compares candidate against each existing receipt, skipping
// the candidate itself, and returns the first one that clears the match
// threshold, or nil. First match wins; the scan is not exhaustive.
//
// supplierName resolves a receipt's supplier reference to its display name
// (duplicate comparison runs on names, not IDs, so "Walmart" and
// "Walmart Inc" recorded as separate suppliers still compare as similar).
func (d *Detector) FindDuplicate(candidate *entity.Receipt, existing []*entity.Receipt, supplierName func(r *entity.Receipt) string) *entity.Receipt {
	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		if d.matches(candidate, other, supplierName) {
			return other
		}
	}
	return nil
}

func (d *Detector) matches(candidate, other *entity.Receipt, supplierName func(r *entity.Receipt) string) bool {
	cfg := d.cfg

	var matchScore float64
	checks := 0

	// supplier names too different cannot be the same purchase; corporate
	// suffixes are stripped first so "Walmart" and "Walmart Inc" compare close
	similarity := match.Similarity(match.Normalize(supplierName(candidate)), match.Normalize(supplierName(other)))
	if similarity <= cfg.SupplierSimilarity {
		return false
	}
	matchScore += similarity
	checks++

	if !withinDays(candidate.Date, other.Date, cfg.MaxDateGapDays) {
		return false
	}
	matchScore++
	checks++

	if math.Abs(candidate.TotalAmount-other.TotalAmount) > cfg.AmountTolerance {
		return false
	}
	matchScore++
	checks++

	// payment account only counts when both sides carry one
	if candidate.PaymentAccountID != nil && other.PaymentAccountID != nil {
		if *candidate.PaymentAccountID == *other.PaymentAccountID {
			matchScore++
			checks++
		}
	}

	if d.itemsSimilar(candidate.Items, other.Items) {
		matchScore++
		checks++
	}

	return checks >= cfg.MinChecks && matchScore/float64(checks) >= cfg.MatchRatio
}

func (d *Detector) itemsSimilar(a, b []entity.ReceiptItem) bool {
	cfg := d.cfg

	gap := len(a) - len(b)
	if gap < 0 {
		gap = -gap
	}
	if gap > cfg.MaxItemCountGap {
		return false
	}

	var sumA, sumB float64
	for _, item := range a {
		sumA += item.Price
	}
	for _, item := range b {
		sumB += item.Price
	}
	if math.Abs(sumA-sumB) > cfg.AmountTolerance {
		return false
	}

	if len(a) == len(b) {
		namesA := make([]string, len(a))
		for i, item := range a {
			namesA[i] = item.Name
		}
		namesB := make([]string, len(b))
		for i, item := range b {
			namesB[i] = item.Name
		}
		matcher := match.NewMatcher(cfg.ItemSimilarity)
		return matcher.PairRatio(namesA, namesB) >= cfg.ItemPairRatio
	}

	return true
}

// withinDays compares two calendar dates without time zone conversion
func withinDays(date1, date2 string, maxDays int) bool {
	d1, err1 := time.Parse("2006-01-02", date1)
	d2, err2 := time.Parse("2006-01-02", date2)
	if err1 != nil || err2 != nil {
		return false
	}

	diff := d1.Sub(d2)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(maxDays)*24*time.Hour
}
