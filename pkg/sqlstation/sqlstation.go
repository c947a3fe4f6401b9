// Package sqlstation is a concrete, swappable reference
// implementation of the station.Store contract (spec.md §4.5) backed
// by database/sql and the mattn/go-sqlite3 driver. spec.md §1 places
// the production SQL data layer out of scope as an external
// collaborator; this package exists for local development and tests
// so InternalSource has something real to query against, and to give
// the module's SQL driver dependency an exercised home.
package sqlstation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ichnaea-go/locate/pkg/locate/schema"
	"github.com/ichnaea-go/locate/pkg/locate/station"
)

// Store is a station.Store backed by a SQLite database with three
// tables: cell_fix, cell_area_fix, wifi_fix. Schema migration is out
// of scope (spec.md §1); Open assumes the schema already exists.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn (e.g. "file:stations.db"
// or ":memory:" for tests).
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening station store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the station tables if they don't already exist.
// Production schema migration is an external collaborator (spec.md
// §1); this is a convenience for local/dev use and tests only.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cell_fix (
			radio TEXT NOT NULL, mcc INTEGER NOT NULL, mnc INTEGER NOT NULL,
			lac INTEGER NOT NULL, cid INTEGER NOT NULL,
			lat REAL NOT NULL, lon REAL NOT NULL, radius REAL NOT NULL,
			samples INTEGER NOT NULL, last_seen INTEGER NOT NULL,
			PRIMARY KEY (radio, mcc, mnc, lac, cid)
		)`,
		`CREATE TABLE IF NOT EXISTS cell_area_fix (
			radio TEXT NOT NULL, mcc INTEGER NOT NULL, mnc INTEGER NOT NULL,
			lac INTEGER NOT NULL,
			lat REAL NOT NULL, lon REAL NOT NULL, radius REAL NOT NULL,
			samples INTEGER NOT NULL, last_seen INTEGER NOT NULL,
			PRIMARY KEY (radio, mcc, mnc, lac)
		)`,
		`CREATE TABLE IF NOT EXISTS wifi_fix (
			mac TEXT NOT NULL PRIMARY KEY,
			lat REAL NOT NULL, lon REAL NOT NULL, radius REAL NOT NULL,
			samples INTEGER NOT NULL, last_seen INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating station store: %w", err)
		}
	}
	return nil
}

// LoadCells bulk-loads stored fixes for the given cell identities.
func (s *Store) LoadCells(ctx context.Context, ids []schema.CellID) (map[schema.CellID]station.Fix, error) {
	out := make(map[schema.CellID]station.Fix, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args := buildCellQuery("cell_fix", "cid", ids)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading cell fixes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id schema.CellID
		var radio string
		var fix station.Fix
		var lastSeen int64
		if err := rows.Scan(&radio, &id.MCC, &id.MNC, &id.LAC, &id.CID, &fix.Lat, &fix.Lon, &fix.Radius, &fix.Samples, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning cell fix: %w", err)
		}
		id.Radio = schema.Radio(radio)
		fix.LastSeen = time.Unix(lastSeen, 0).UTC()
		out[id] = fix
	}
	return out, rows.Err()
}

// LoadCellAreas bulk-loads stored fixes for location areas.
func (s *Store) LoadCellAreas(ctx context.Context, ids []schema.CellAreaID) (map[schema.CellAreaID]station.Fix, error) {
	out := make(map[schema.CellAreaID]station.Fix, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)*4)
	for i, id := range ids {
		placeholders[i] = "(?,?,?,?)"
		args = append(args, string(id.Radio), id.MCC, id.MNC, id.LAC)
	}
	query := fmt.Sprintf(
		`SELECT radio, mcc, mnc, lac, lat, lon, radius, samples, last_seen FROM cell_area_fix WHERE (radio, mcc, mnc, lac) IN (%s)`,
		strings.Join(placeholders, ","),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading cell area fixes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id schema.CellAreaID
		var radio string
		var fix station.Fix
		var lastSeen int64
		if err := rows.Scan(&radio, &id.MCC, &id.MNC, &id.LAC, &fix.Lat, &fix.Lon, &fix.Radius, &fix.Samples, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning cell area fix: %w", err)
		}
		id.Radio = schema.Radio(radio)
		fix.LastSeen = time.Unix(lastSeen, 0).UTC()
		out[id] = fix
	}
	return out, rows.Err()
}

// LoadWifis bulk-loads stored fixes for the given MAC addresses.
func (s *Store) LoadWifis(ctx context.Context, macs []string) (map[string]station.Fix, error) {
	out := make(map[string]station.Fix, len(macs))
	if len(macs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(macs))
	args := make([]interface{}, len(macs))
	for i, mac := range macs {
		placeholders[i] = "?"
		args[i] = mac
	}
	query := fmt.Sprintf(
		`SELECT mac, lat, lon, radius, samples, last_seen FROM wifi_fix WHERE mac IN (%s)`,
		strings.Join(placeholders, ","),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading wifi fixes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mac string
		var fix station.Fix
		var lastSeen int64
		if err := rows.Scan(&mac, &fix.Lat, &fix.Lon, &fix.Radius, &fix.Samples, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning wifi fix: %w", err)
		}
		fix.LastSeen = time.Unix(lastSeen, 0).UTC()
		out[mac] = fix
	}
	return out, rows.Err()
}

// UpsertWifi inserts or refreshes a crowd-sourced Wi-Fi fix. Exposed
// for tests and local seeding; the production submit (upload)
// pipeline that aggregates raw reports into fixes is out of scope
// (spec.md §1).
func (s *Store) UpsertWifi(ctx context.Context, mac string, fix station.Fix) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wifi_fix (mac, lat, lon, radius, samples, last_seen) VALUES (?,?,?,?,?,?)
		 ON CONFLICT(mac) DO UPDATE SET lat=excluded.lat, lon=excluded.lon, radius=excluded.radius,
			samples=excluded.samples, last_seen=excluded.last_seen`,
		mac, fix.Lat, fix.Lon, fix.Radius, fix.Samples, fix.LastSeen.Unix(),
	)
	return err
}

// UpsertCell inserts or refreshes a crowd-sourced cell fix.
func (s *Store) UpsertCell(ctx context.Context, id schema.CellID, fix station.Fix) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cell_fix (radio, mcc, mnc, lac, cid, lat, lon, radius, samples, last_seen) VALUES (?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(radio, mcc, mnc, lac, cid) DO UPDATE SET lat=excluded.lat, lon=excluded.lon,
			radius=excluded.radius, samples=excluded.samples, last_seen=excluded.last_seen`,
		string(id.Radio), id.MCC, id.MNC, id.LAC, id.CID, fix.Lat, fix.Lon, fix.Radius, fix.Samples, fix.LastSeen.Unix(),
	)
	return err
}

func buildCellQuery(table, idColumn string, ids []schema.CellID) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)*5)
	for i, id := range ids {
		placeholders[i] = "(?,?,?,?,?)"
		args = append(args, string(id.Radio), id.MCC, id.MNC, id.LAC, id.CID)
	}
	query := fmt.Sprintf(
		`SELECT radio, mcc, mnc, lac, %s, lat, lon, radius, samples, last_seen FROM %s WHERE (radio, mcc, mnc, lac, %s) IN (%s)`,
		idColumn, table, idColumn, strings.Join(placeholders, ","),
	)
	return query, args
}
