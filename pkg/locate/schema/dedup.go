package schema

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DedupCells folds a slice of CellLookups into an insertion-ordered,
// per-identity deduplicated slice: the first-seen lookup for an
// identity survives unless a later one is Better.
func DedupCells(in []CellLookup) []CellLookup {
	om := orderedmap.New[CellID, CellLookup]()
	for _, c := range in {
		if existing, ok := om.Get(c.Identity()); ok {
			if c.Better(existing) {
				om.Set(c.Identity(), c)
			}
			continue
		}
		om.Set(c.Identity(), c)
	}

	out := make([]CellLookup, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// DedupCellAreas folds a slice of CellAreaLookups the same way.
func DedupCellAreas(in []CellAreaLookup) []CellAreaLookup {
	om := orderedmap.New[CellAreaID, CellAreaLookup]()
	for _, c := range in {
		if existing, ok := om.Get(c.Identity()); ok {
			if c.Better(existing) {
				om.Set(c.Identity(), c)
			}
			continue
		}
		om.Set(c.Identity(), c)
	}

	out := make([]CellAreaLookup, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// DedupWifis folds a slice of WifiLookups by MAC identity.
func DedupWifis(in []WifiLookup) []WifiLookup {
	om := orderedmap.New[string, WifiLookup]()
	for _, w := range in {
		if existing, ok := om.Get(w.Identity()); ok {
			if w.Better(existing) {
				om.Set(w.Identity(), w)
			}
			continue
		}
		om.Set(w.Identity(), w)
	}

	out := make([]WifiLookup, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
