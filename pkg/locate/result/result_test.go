package result

import "testing"

func TestDataAccuracyOrdering(t *testing.T) {
	if !(DataAccuracyHigh < DataAccuracyMedium) {
		t.Error("High should be less than Medium")
	}
	if !(DataAccuracyMedium < DataAccuracyLow) {
		t.Error("Medium should be less than Low")
	}
	if !(DataAccuracyLow < DataAccuracyNone) {
		t.Error("Low should be less than None")
	}
}

func TestClassifyAccuracy(t *testing.T) {
	cases := []struct {
		meters float64
		want   DataAccuracy
	}{
		{100, DataAccuracyHigh},
		{500, DataAccuracyHigh},
		{25000, DataAccuracyMedium},
		{40000, DataAccuracyMedium},
		{1000000, DataAccuracyLow},
		{99999999, DataAccuracyNone},
	}
	for _, c := range cases {
		if got := ClassifyAccuracy(c.meters); got != c.want {
			t.Errorf("ClassifyAccuracy(%v) = %v, want %v", c.meters, got, c.want)
		}
	}
}

func TestResultEmpty(t *testing.T) {
	if !(Result{}).Empty() {
		t.Error("zero-value Result should be empty")
	}
	if (Result{HasLatLon: true, Lat: 1, Lon: 1}).Empty() {
		t.Error("result with lat/lon should not be empty")
	}
	if (Result{RegionCode: "GB"}).Empty() {
		t.Error("result with region code should not be empty")
	}
}

func TestResultListBestPicksHighestScore(t *testing.T) {
	var rl ResultList
	rl.Add(Result{HasLatLon: true, Score: 0.3, Source: "a"})
	rl.Add(Result{HasLatLon: true, Score: 0.9, Source: "b"})
	rl.Add(Result{HasLatLon: true, Score: 0.5, Source: "c"})

	best := rl.Best()
	if best.Source != "b" {
		t.Errorf("Best().Source = %q, want %q", best.Source, "b")
	}
}

func TestResultListBestIgnoresEmpty(t *testing.T) {
	var rl ResultList
	rl.Add(Result{})
	rl.Add(Result{})

	if !rl.Best().Empty() {
		t.Error("Best() of all-empty list should be empty")
	}
}

func TestResultListBestStableTiebreak(t *testing.T) {
	var rl ResultList
	rl.Add(Result{HasLatLon: true, Score: 0.5, Source: "first"})
	rl.Add(Result{HasLatLon: true, Score: 0.5, Source: "second"})

	if got := rl.Best().Source; got != "first" {
		t.Errorf("tied scores should keep earliest insertion, got %q", got)
	}
}

func TestResultListSatisfies(t *testing.T) {
	var rl ResultList
	rl.Add(Result{HasLatLon: true, Accuracy: 100, Score: 1})

	if !rl.Satisfies(DataAccuracyMedium) {
		t.Error("high-accuracy result should satisfy a medium expectation")
	}
	if rl.Satisfies(DataAccuracyHigh) != true {
		t.Error("high-accuracy result should satisfy a high expectation")
	}

	var empty ResultList
	if empty.Satisfies(DataAccuracyNone) != true {
		t.Error("empty result list should satisfy a None expectation")
	}
	if empty.Satisfies(DataAccuracyHigh) {
		t.Error("empty result list should not satisfy a High expectation")
	}
}
