// Package score computes the scalar confidence score attached to
// locate Results, used to pick a "best" Result and to gate hit/miss
// result stats.
package score

import (
	"math"

	"github.com/ichnaea-go/locate/pkg/locate/result"
)

// clusterScoreScale is the cluster size at which ClusterScore
// saturates to 1.0; larger agreeing clusters do not increase
// confidence further.
const clusterScoreScale = 5.0

// ClusterScore returns a monotone score in [0, 1] as a function of how
// many stored station fixes agreed on a position; an empty cluster
// scores 0. A single matching
// station yields the lowest confidence; agreement from clusterScoreScale
// or more stations saturates at 1.0.
func ClusterScore(clusterSize int) float64 {
	if clusterSize <= 0 {
		return 0
	}
	return math.Min(float64(clusterSize)/clusterScoreScale, 1.0)
}

// WeightedScore combines a base score with signal-strength weights,
// e.g. to prefer a cluster whose members reported stronger signal
// over an equally sized cluster of weak ones.
func WeightedScore(base float64, weights []float64) float64 {
	if len(weights) == 0 {
		return base
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	avg := sum / float64(len(weights))
	return math.Min(base*avg, 1.0)
}

// Bounded clamps a score into [0, 1].
func Bounded(s float64) float64 {
	return math.Max(0, math.Min(s, 1.0))
}

// GeoIPScore returns the confidence score a GeoIP-derived Result
// carries, as a function of the coarseness band its accuracy radius
// falls into. The "high" and "medium" bands score above the midpoint
// (spec.md §8 scenario 1: a London IP resolves with 0.5 < score < 1.0),
// which is also above the fixed scores of a fallback-service result
// and an internal cell match; "low" and "none" score below it.
func GeoIPScore(band result.DataAccuracy) float64 {
	switch band {
	case result.DataAccuracyHigh:
		return 0.9
	case result.DataAccuracyMedium:
		return 0.7
	case result.DataAccuracyLow:
		return 0.3
	default:
		return 0.1
	}
}
