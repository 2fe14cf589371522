// Package match provides the shared fuzzy label matching used by catalog
// entity resolution and duplicate receipt detection.
package match

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Chinese corporate suffixes stripped as substrings
var cnSuffixes = strings.NewReplacer(
	"股份有限公司", "",
	"有限责任公司", "",
	"有限公司", "",
	"公司", "",
	"商店", "",
	"超市", "",
	"商场", "",
)

// English corporate suffixes stripped as trailing tokens
var enSuffixes = map[string]bool{
	"inc":         true,
	"inc.":        true,
	"incorporated": true,
	"corp":        true,
	"corp.":       true,
	"corporation": true,
	"ltd":         true,
	"ltd.":        true,
	"limited":     true,
	"llc":         true,
	"co":          true,
	"co.":         true,
	"company":     true,
}

// Normalize canonicalizes a free-text label for comparison: trim, lowercase,
// collapse whitespace, unify colons, and strip common corporate suffixes.
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, "：", ":")
	s = cnSuffixes.Replace(s)

	fields := strings.Fields(s)
	for len(fields) > 1 && enSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// Similarity returns the normalized-edit-distance similarity of two strings:
// 1 - levenshtein(a,b)/max(len(a),len(b)), over lowercased trimmed runes.
// Either side empty yields 0; identical strings yield 1.
func Similarity(a, b string) float64 {
	s1 := strings.ToLower(strings.TrimSpace(a))
	s2 := strings.ToLower(strings.TrimSpace(b))

	if s1 == "" || s2 == "" {
		return 0
	}
	if s1 == s2 {
		return 1
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	maxLen := len(r1)
	if len(r2) > maxLen {
		maxLen = len(r2)
	}

	dist := levenshtein.Distance(s1, s2, nil)
	return 1 - float64(dist)/float64(maxLen)
}

// Matcher compares labels under a similarity threshold
type Matcher struct {
	Threshold float64
}

// NewMatcher creates a matcher with the given similarity threshold
func NewMatcher(threshold float64) Matcher {
	return Matcher{Threshold: threshold}
}

// EqualNormalized reports whether two labels normalize to the same string
func (m Matcher) EqualNormalized(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Similar reports whether the similarity of two labels exceeds the threshold
func (m Matcher) Similar(a, b string) bool {
	return Similarity(a, b) > m.Threshold
}

// PairRatio greedily pairs each name in left with its first sufficiently
// similar name in right (no backtracking) and returns the fraction of left
// names that found a pair.
func (m Matcher) PairRatio(left, right []string) float64 {
	if len(left) == 0 {
		return 0
	}

	matched := 0
	for _, a := range left {
		for _, b := range right {
			if Similarity(a, b) > m.Threshold {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(left))
}
