// Package store persists town visit history and reward ledgers in SQLite.
// It is the module's own world.PersistenceSink; hosts with their own storage
// plug in theirs instead.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/world/feature/economy/ledger"
	"townfare.dev/internal/sim/world/feature/visits"
)

type DB struct {
	conn *sqlx.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initPragmas(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pragmas: %w", err)
	}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// initPragmas must run as explicit statements: the modernc driver does not
// understand DSN query parameters.
func (db *DB) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS visit_history (
		town TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		origin TEXT NOT NULL,
		visitors INTEGER NOT NULL,
		origin_x INTEGER NOT NULL,
		origin_y INTEGER NOT NULL,
		origin_z INTEGER NOT NULL,
		PRIMARY KEY (town, seq)
	);

	CREATE TABLE IF NOT EXISTS reward_entries (
		id TEXT PRIMARY KEY,
		town TEXT NOT NULL,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		category TEXT NOT NULL,
		source_json TEXT NOT NULL DEFAULT '',
		lines_json TEXT NOT NULL,
		status TEXT NOT NULL,
		claimant TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_reward_entries_town ON reward_entries(town, seq);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type historyRow struct {
	Town     string `db:"town"`
	Seq      int    `db:"seq"`
	Tick     uint64 `db:"tick"`
	Origin   string `db:"origin"`
	Visitors int    `db:"visitors"`
	OriginX  int    `db:"origin_x"`
	OriginY  int    `db:"origin_y"`
	OriginZ  int    `db:"origin_z"`
}

// SaveVisitHistory replaces the stored history for one town. Records are
// stored in the order given (newest first) and come back in that order.
func (db *DB) SaveVisitHistory(town string, records []visits.Record) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM visit_history WHERE town = ?`, town); err != nil {
		return err
	}
	for i, r := range records {
		_, err := tx.Exec(
			`INSERT INTO visit_history (town, seq, tick, origin, visitors, origin_x, origin_y, origin_z)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			town, i, r.Tick, r.Origin, r.Visitors, r.OriginPos.X, r.OriginPos.Y, r.OriginPos.Z)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) LoadVisitHistory(town string) ([]visits.Record, error) {
	var rows []historyRow
	err := db.conn.Select(&rows, `SELECT * FROM visit_history WHERE town = ? ORDER BY seq`, town)
	if err != nil {
		return nil, err
	}
	out := make([]visits.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, visits.Record{
			Tick:      r.Tick,
			Origin:    r.Origin,
			Visitors:  r.Visitors,
			OriginPos: protocol.Vec3i{X: r.OriginX, Y: r.OriginY, Z: r.OriginZ},
		})
	}
	return out, nil
}

type rewardRow struct {
	ID         string `db:"id"`
	Town       string `db:"town"`
	Seq        int    `db:"seq"`
	CreatedAt  string `db:"created_at"`
	ExpiresAt  string `db:"expires_at"`
	Category   string `db:"category"`
	SourceJSON string `db:"source_json"`
	LinesJSON  string `db:"lines_json"`
	Status     string `db:"status"`
	Claimant   string `db:"claimant"`
	Note       string `db:"note"`
}

// SaveLedger replaces the stored reward entries for one town.
func (db *DB) SaveLedger(town string, entries []*ledger.Entry) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM reward_entries WHERE town = ?`, town); err != nil {
		return err
	}
	for i, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		category, payload := ledger.EncodeSource(e.Source)
		lines, err := json.Marshal(e.Lines)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO reward_entries (id, town, seq, created_at, expires_at, category, source_json, lines_json, status, claimant, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, town, i,
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
			e.ExpiresAt.UTC().Format(time.RFC3339Nano),
			category, string(payload), string(lines),
			e.Status.String(), e.Claimant, e.Note)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadLedger restores reward entries. Unknown categories and statuses
// degrade to GenericSource/UNCLAIMED rather than dropping rows: persisted
// value must survive version skew.
func (db *DB) LoadLedger(town string) ([]*ledger.Entry, error) {
	var rows []rewardRow
	err := db.conn.Select(&rows, `SELECT * FROM reward_entries WHERE town = ? ORDER BY seq`, town)
	if err != nil {
		return nil, err
	}
	out := make([]*ledger.Entry, 0, len(rows))
	for _, r := range rows {
		var lines []protocol.ItemStack
		if err := json.Unmarshal([]byte(r.LinesJSON), &lines); err != nil {
			return nil, fmt.Errorf("reward %s lines: %w", r.ID, err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("reward %s created_at: %w", r.ID, err)
		}
		expiresAt, err := time.Parse(time.RFC3339Nano, r.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("reward %s expires_at: %w", r.ID, err)
		}
		var payload []byte
		if r.SourceJSON != "" {
			payload = []byte(r.SourceJSON)
		}
		out = append(out, &ledger.Entry{
			ID:        r.ID,
			CreatedAt: createdAt,
			ExpiresAt: expiresAt,
			Source:    ledger.DecodeSource(r.Category, payload),
			Lines:     lines,
			Status:    ledger.ParseStatus(r.Status),
			Claimant:  r.Claimant,
			Note:      r.Note,
		})
	}
	return out, nil
}
