// Package station defines the crowd-sourced station fix contract the
// internal source consults: a bulk load of cell and Wi-Fi fixes keyed
// by beacon identity, backed by whatever SQL store the deployment
// chooses (see pkg/sqlstation for a reference implementation).
package station

import (
	"context"
	"time"

	"github.com/ichnaea-go/locate/pkg/locate/schema"
)

// Fix is one stored observation of a beacon's position, aggregated
// from crowd-sourced reports.
type Fix struct {
	Lat       float64
	Lon       float64
	Radius    float64 // meters
	Samples   int
	LastSeen  time.Time
}

// Store is the storage-layer contract consumed by InternalSource. A
// production deployment backs this with its SQL data layer (an
// external collaborator); pkg/sqlstation provides a concrete
// reference implementation for local use and tests.
type Store interface {
	// LoadCells bulk-loads stored fixes for the given cell identities.
	// Identities with no stored fix are simply absent from the result.
	LoadCells(ctx context.Context, ids []schema.CellID) (map[schema.CellID]Fix, error)

	// LoadCellAreas bulk-loads stored fixes for location areas.
	LoadCellAreas(ctx context.Context, ids []schema.CellAreaID) (map[schema.CellAreaID]Fix, error)

	// LoadWifis bulk-loads stored fixes for the given MAC addresses.
	LoadWifis(ctx context.Context, macs []string) (map[string]Fix, error)
}
