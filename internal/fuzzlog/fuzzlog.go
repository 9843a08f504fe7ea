package fuzzlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DiscoveryKind labels what kind of entry a probe discovered.
type DiscoveryKind string

const (
	KindMux  DiscoveryKind = "mux"
	KindWord DiscoveryKind = "word"
	KindEnum DiscoveryKind = "enum"
)

// Probe is one fuzzing run against a tile type.
type Probe struct {
	ID        string
	Family    string
	Device    string
	TileType  string
	StartedAt time.Time
}

// Discovery is one database entry a probe contributed.
type Discovery struct {
	ProbeID   string
	Kind      DiscoveryKind
	Name      string
	Entry     string
	CreatedAt time.Time
}

// Log is the SQLite-backed probe log.
type Log struct {
	db *sql.DB
}

// Open creates or opens the probe log at the given path, applying
// pragmas and the schema. Idempotent.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open fuzz log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect fuzz log: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY under concurrent probes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// BeginProbe records the start of a fuzzing probe and returns it with
// a fresh UUID.
func (l *Log) BeginProbe(ctx context.Context, family, device, tileType string) (Probe, error) {
	probe := Probe{
		ID:        uuid.NewString(),
		Family:    family,
		Device:    device,
		TileType:  tileType,
		StartedAt: time.Now().UTC(),
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO probes (id, family, device, tile_type, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, probe.ID, probe.Family, probe.Device, probe.TileType, probe.StartedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Probe{}, fmt.Errorf("begin probe: %w", err)
	}
	return probe, nil
}

// RecordDiscovery journals one entry a probe fed into the bit
// database. Re-recording the same (probe, kind, name) is silently
// ignored, so retried probes stay idempotent.
func (l *Log) RecordDiscovery(ctx context.Context, d Discovery) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO discoveries (probe_id, kind, name, entry, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(probe_id, kind, name) DO NOTHING
	`, d.ProbeID, string(d.Kind), d.Name, d.Entry, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record discovery: %w", err)
	}
	return nil
}

// Discoveries returns every discovery a probe recorded, ordered by
// insertion.
func (l *Log) Discoveries(ctx context.Context, probeID string) ([]Discovery, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT probe_id, kind, name, entry, created_at
		FROM discoveries
		WHERE probe_id = ?
		ORDER BY id ASC
	`, probeID)
	if err != nil {
		return nil, fmt.Errorf("query discoveries: %w", err)
	}
	defer rows.Close()

	var out []Discovery
	for rows.Next() {
		var d Discovery
		var kind, createdAt string
		if err := rows.Scan(&d.ProbeID, &kind, &d.Name, &d.Entry, &createdAt); err != nil {
			return nil, fmt.Errorf("scan discovery: %w", err)
		}
		d.Kind = DiscoveryKind(kind)
		d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse discovery timestamp: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discoveries: %w", err)
	}
	return out, nil
}

// Probes returns every recorded probe for a tile type, newest first.
func (l *Log) Probes(ctx context.Context, family, tileType string) ([]Probe, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, family, device, tile_type, started_at
		FROM probes
		WHERE family = ? AND tile_type = ?
		ORDER BY started_at DESC, id ASC
	`, family, tileType)
	if err != nil {
		return nil, fmt.Errorf("query probes: %w", err)
	}
	defer rows.Close()

	var out []Probe
	for rows.Next() {
		var p Probe
		var startedAt string
		if err := rows.Scan(&p.ID, &p.Family, &p.Device, &p.TileType, &startedAt); err != nil {
			return nil, fmt.Errorf("scan probe: %w", err)
		}
		p.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse probe timestamp: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate probes: %w", err)
	}
	return out, nil
}
