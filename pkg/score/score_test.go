package score

import (
	"testing"

	"github.com/ichnaea-go/locate/pkg/locate/result"
)

func TestClusterScoreMonotone(t *testing.T) {
	prev := ClusterScore(0)
	for n := 1; n <= 10; n++ {
		cur := ClusterScore(n)
		if cur < prev {
			t.Fatalf("ClusterScore(%d) = %v is less than ClusterScore(%d) = %v", n, cur, n-1, prev)
		}
		prev = cur
	}
}

func TestClusterScoreSaturates(t *testing.T) {
	if got := ClusterScore(5); got != 1.0 {
		t.Errorf("ClusterScore(5) = %v, want 1.0", got)
	}
	if got := ClusterScore(100); got != 1.0 {
		t.Errorf("ClusterScore(100) = %v, want 1.0", got)
	}
}

func TestClusterScoreZero(t *testing.T) {
	if got := ClusterScore(0); got != 0 {
		t.Errorf("ClusterScore(0) = %v, want 0", got)
	}
}

func TestWeightedScore(t *testing.T) {
	base := ClusterScore(2)
	got := WeightedScore(base, []float64{1.0, 1.0})
	if got != base {
		t.Errorf("WeightedScore with unit weights = %v, want %v", got, base)
	}

	got = WeightedScore(1.0, []float64{2.0})
	if got != 1.0 {
		t.Errorf("WeightedScore should clamp to 1.0, got %v", got)
	}
}

func TestGeoIPScoreMonotoneWithBand(t *testing.T) {
	high := GeoIPScore(result.DataAccuracyHigh)
	medium := GeoIPScore(result.DataAccuracyMedium)
	low := GeoIPScore(result.DataAccuracyLow)
	none := GeoIPScore(result.DataAccuracyNone)

	if !(high > medium && medium > low && low > none) {
		t.Fatalf("GeoIPScore not monotone with band: high=%v medium=%v low=%v none=%v", high, medium, low, none)
	}
	// spec.md §8 scenario 1: a medium-band GeoIP fix scores strictly
	// between 0.5 and 1.0.
	if medium <= 0.5 || medium >= 1.0 {
		t.Errorf("GeoIPScore(medium) = %v, want strictly between 0.5 and 1.0", medium)
	}
}

func TestBounded(t *testing.T) {
	if got := Bounded(-1); got != 0 {
		t.Errorf("Bounded(-1) = %v, want 0", got)
	}
	if got := Bounded(2); got != 1 {
		t.Errorf("Bounded(2) = %v, want 1", got)
	}
	if got := Bounded(0.5); got != 0.5 {
		t.Errorf("Bounded(0.5) = %v, want 0.5", got)
	}
}
