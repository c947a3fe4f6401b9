package schema

import "testing"

func intp(n int) *int { return &n }

func TestNewWifiLookupNormalizesMAC(t *testing.T) {
	w, ok := NewWifiLookup("AA:BB:CC:DD:EE:FF", intp(-60), nil, nil, nil, nil, "")
	if !ok {
		t.Fatal("expected valid lookup")
	}
	if w.MAC != "aabbccddeeff" {
		t.Errorf("MAC = %q, want normalized lowercase", w.MAC)
	}
}

func TestNewWifiLookupRejectsBroadcast(t *testing.T) {
	if _, ok := NewWifiLookup("ff:ff:ff:11:22:33", nil, nil, nil, nil, nil, ""); ok {
		t.Error("expected broadcast-prefixed MAC to be rejected")
	}
}

func TestNewWifiLookupRejectsMalformed(t *testing.T) {
	if _, ok := NewWifiLookup("not-a-mac", nil, nil, nil, nil, nil, ""); ok {
		t.Error("expected malformed MAC to be rejected")
	}
}

func TestNewWifiLookupDropsOutOfRangeSignal(t *testing.T) {
	w, ok := NewWifiLookup("aabbccddeeff", intp(10), nil, nil, nil, nil, "")
	if !ok {
		t.Fatal("expected valid lookup despite bad signal")
	}
	if w.Signal != nil {
		t.Error("expected out-of-range signal to be dropped, not the lookup")
	}
}

func TestNewCellLookupValidRanges(t *testing.T) {
	if _, ok := NewCellLookup(RadioLTE, 234, 30, 1000, 5000, nil, nil, nil, nil); !ok {
		t.Error("expected valid GB cell to validate")
	}
	if _, ok := NewCellLookup(RadioLTE, 1000, 30, 1000, 5000, nil, nil, nil, nil); ok {
		t.Error("expected out-of-range mcc to be rejected")
	}
	if _, ok := NewCellLookup("bogus", 234, 30, 1000, 5000, nil, nil, nil, nil); ok {
		t.Error("expected unknown radio to be rejected")
	}
}

func TestCellLookupBetter(t *testing.T) {
	strong := CellLookup{ID: CellID{Radio: RadioLTE, MCC: 234}, Signal: intp(-60)}
	weak := CellLookup{ID: CellID{Radio: RadioLTE, MCC: 234}, Signal: intp(-90)}
	if !strong.Better(weak) {
		t.Error("stronger signal should be better")
	}
	if weak.Better(strong) {
		t.Error("weaker signal should not be better")
	}
}

func TestCellLookupBetterTiebreakOnAge(t *testing.T) {
	newer := CellLookup{ID: CellID{Radio: RadioLTE, MCC: 234}, Age: intp(1)}
	older := CellLookup{ID: CellID{Radio: RadioLTE, MCC: 234}, Age: intp(100)}
	if !newer.Better(older) {
		t.Error("lower age should be better when signal ties")
	}
}

func TestDedupCellsKeepsBest(t *testing.T) {
	id := CellID{Radio: RadioLTE, MCC: 234, MNC: 30, LAC: 1, CID: 1}
	weak := CellLookup{ID: id, Signal: intp(-95)}
	strong := CellLookup{ID: id, Signal: intp(-50)}

	out := DedupCells([]CellLookup{weak, strong})
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving cell, got %d", len(out))
	}
	if *out[0].Signal != -50 {
		t.Errorf("expected strongest signal to survive, got %d", *out[0].Signal)
	}
}

func TestDedupCellsPreservesInsertionOrder(t *testing.T) {
	a := CellID{Radio: RadioLTE, MCC: 234, MNC: 30, LAC: 1, CID: 1}
	b := CellID{Radio: RadioLTE, MCC: 234, MNC: 30, LAC: 1, CID: 2}

	out := DedupCells([]CellLookup{{ID: b}, {ID: a}})
	if out[0].ID != b || out[1].ID != a {
		t.Error("expected first-seen insertion order to be preserved")
	}
}

func TestDedupWifisByMAC(t *testing.T) {
	strong, _ := NewWifiLookup("aabbccddeeff", intp(-70), nil, nil, nil, nil, "")
	weak, _ := NewWifiLookup("aabbccddeeff", intp(-90), nil, nil, nil, nil, "")

	out := DedupWifis([]WifiLookup{weak, strong})
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving wifi, got %d", len(out))
	}
	if *out[0].Signal != -70 {
		t.Error("expected stronger signal to survive dedup")
	}
}

func TestCellAreaFromCell(t *testing.T) {
	c, _ := NewCellLookup(RadioGSM, 234, 30, 1000, 5000, nil, nil, nil, nil)
	area := CellAreaFromCell(c)
	if area.ID.LAC != 1000 || area.ID.MCC != 234 {
		t.Errorf("unexpected area identity: %+v", area.ID)
	}
}

func TestFallbackLookupDefaults(t *testing.T) {
	f := NewFallbackLookup(nil)
	if !f.LACF || !f.IPF {
		t.Error("expected both fallback flags to default true")
	}

	f = NewFallbackLookup(map[string]bool{"lacf": false, "unknown": true})
	if f.LACF {
		t.Error("expected lacf=false to be honored")
	}
	if !f.IPF {
		t.Error("expected ipf to keep its default when not supplied")
	}
}
