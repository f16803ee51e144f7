package facematch

import (
	"fmt"
	"math"
	"sort"
)

// DefaultThreshold is the maximum distance at which two signatures are treated as the same person.
const DefaultThreshold = 0.6

// GalleryEntry is one candidate in a comparison.
type GalleryEntry struct {
	ID        string
	Signature Signature
}

// RankedMatch is a gallery entry that passed the threshold.
type RankedMatch struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Rank compares probe against every gallery entry and returns those with a distance
// of at most threshold, nearest first. Entries with an invalid signature are skipped,
// as are distances that come out as NaN. An invalid probe returns no matches.
// Equal distances keep gallery order.
func Rank(probe Signature, gallery []GalleryEntry, threshold float64) []RankedMatch {
	if !probe.Valid() || math.IsNaN(threshold) {
		return nil
	}

	matches := make([]RankedMatch, 0)
	for _, entry := range gallery {
		if !entry.Signature.Valid() {
			continue
		}
		d := EuclideanDistance(probe, entry.Signature)
		if !WithinThreshold(d, threshold) {
			continue
		}
		matches = append(matches, RankedMatch{ID: entry.ID, Distance: d})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}

// WithinThreshold reports whether distance is at most threshold when both are
// rounded to float32, the precision signatures are stored in. A descriptor at
// 0.6 on one axis sits at 0.6000000238 in float64 and must still match at 0.6.
func WithinThreshold(distance, threshold float64) bool {
	if math.IsNaN(distance) || math.IsNaN(threshold) {
		return false
	}
	return float32(distance) <= float32(threshold)
}

// Best returns the nearest match, if any.
func Best(matches []RankedMatch) (RankedMatch, bool) {
	if len(matches) == 0 {
		return RankedMatch{}, false
	}
	return matches[0], true
}

// Confidence converts a distance into a percentage score, (1 - distance) * 100.
// Distances above 1 produce negative values.
func Confidence(distance float64) float64 {
	return (1 - distance) * 100
}

// FormatConfidence renders Confidence with two decimals, e.g. "72.00%".
func FormatConfidence(distance float64) string {
	return fmt.Sprintf("%.2f%%", Confidence(distance))
}
