package sqlstation

import (
	"context"
	"testing"
	"time"

	"github.com/ichnaea-go/locate/pkg/locate/schema"
	"github.com/ichnaea-go/locate/pkg/locate/station"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestUpsertAndLoadWifi(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fix := station.Fix{Lat: 51.5, Lon: -0.1, Radius: 50, Samples: 3, LastSeen: time.Now().Truncate(time.Second)}
	if err := s.UpsertWifi(ctx, "aabbccddeeff", fix); err != nil {
		t.Fatalf("UpsertWifi: %v", err)
	}

	got, err := s.LoadWifis(ctx, []string{"aabbccddeeff", "000000000000"})
	if err != nil {
		t.Fatalf("LoadWifis: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadWifis returned %d fixes, want 1", len(got))
	}
	f, ok := got["aabbccddeeff"]
	if !ok {
		t.Fatalf("LoadWifis missing known mac")
	}
	if f.Lat != fix.Lat || f.Lon != fix.Lon {
		t.Errorf("LoadWifis fix = %+v, want lat/lon %v/%v", f, fix.Lat, fix.Lon)
	}
}

func TestUpsertAndLoadCell(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := schema.CellID{Radio: schema.RadioLTE, MCC: 234, MNC: 10, LAC: 1, CID: 42}
	fix := station.Fix{Lat: 51.5, Lon: -0.1, Radius: 150, Samples: 5, LastSeen: time.Now().Truncate(time.Second)}
	if err := s.UpsertCell(ctx, id, fix); err != nil {
		t.Fatalf("UpsertCell: %v", err)
	}

	got, err := s.LoadCells(ctx, []schema.CellID{id})
	if err != nil {
		t.Fatalf("LoadCells: %v", err)
	}
	if f, ok := got[id]; !ok || f.Radius != fix.Radius {
		t.Errorf("LoadCells = %+v, want %+v", got, fix)
	}
}

func TestLoadCellsEmptyInput(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadCells(context.Background(), nil)
	if err != nil {
		t.Fatalf("LoadCells(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadCells(nil) = %v, want empty", got)
	}
}
