package store

import (
	"path/filepath"
	"testing"
	"time"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/world/feature/economy/ledger"
	"townfare.dev/internal/sim/world/feature/visits"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "townfare.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenAppliesWALPragmas(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode=%q, want wal", mode)
	}

	var timeout int
	if err := db.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatalf("query busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout=%d, want 5000", timeout)
	}
}

func TestVisitHistoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	in := []visits.Record{
		{Tick: 200, Origin: "riverton", Visitors: 3, OriginPos: protocol.Vec3i{X: 1200, Z: -9}},
		{Tick: 100, Origin: "hillfort", Visitors: 1, OriginPos: protocol.Vec3i{X: -40}},
	}
	if err := db.SaveVisitHistory("portown", in); err != nil {
		t.Fatalf("SaveVisitHistory: %v", err)
	}
	got, err := db.LoadVisitHistory("portown")
	if err != nil {
		t.Fatalf("LoadVisitHistory: %v", err)
	}
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}

	// Save replaces: a shorter history must not leave stale rows.
	if err := db.SaveVisitHistory("portown", in[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = db.LoadVisitHistory("portown")
	if len(got) != 1 {
		t.Fatalf("replace semantics broken: %+v", got)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	in := []*ledger.Entry{
		{
			ID:        "r-1",
			CreatedAt: t0,
			ExpiresAt: t0.Add(24 * time.Hour),
			Source:    ledger.ArrivalSource{Origin: "riverton", Visitors: 3, Fare: 18, MilestoneDistance: 1000},
			Lines:     []protocol.ItemStack{{Item: "EMERALD", Count: 18}, {Item: "WHEAT", Count: 6}},
			Status:    ledger.StatusUnclaimed,
		},
		{
			ID:        "r-2",
			CreatedAt: t0,
			ExpiresAt: t0.Add(time.Hour),
			Source:    ledger.AdminSource{Note: "festival"},
			Lines:     []protocol.ItemStack{{Item: "WHEAT", Count: 1}},
			Status:    ledger.StatusClaimed,
			Claimant:  "mayor",
		},
	}
	if err := db.SaveLedger("portown", in); err != nil {
		t.Fatalf("SaveLedger: %v", err)
	}
	got, err := db.LoadLedger("portown")
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries=%d, want 2", len(got))
	}
	e := got[0]
	if !e.CreatedAt.Equal(t0) || !e.ExpiresAt.Equal(t0.Add(24*time.Hour)) {
		t.Fatalf("timestamps: %+v", e)
	}
	src, ok := e.Source.(ledger.ArrivalSource)
	if !ok || src.Fare != 18 || src.MilestoneDistance != 1000 {
		t.Fatalf("source=%#v", e.Source)
	}
	if got[1].Status != ledger.StatusClaimed || got[1].Claimant != "mayor" {
		t.Fatalf("entry 2: %+v", got[1])
	}
}

func TestLedgerDegradesUnknownRows(t *testing.T) {
	db := openTestDB(t)
	_, err := db.conn.Exec(
		`INSERT INTO reward_entries (id, town, seq, created_at, expires_at, category, source_json, lines_json, status)
		 VALUES ('r-x', 'portown', 0, '2026-03-01T08:00:00Z', '2026-03-02T08:00:00Z',
		         'SEASONAL_GIFT', '{"season":3}', '[{"item":"WHEAT","count":2}]', 'SOMEDAY')`)
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadLedger("portown")
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unknown rows must not be dropped, got %d", len(got))
	}
	if got[0].Source.Category() != "SEASONAL_GIFT" {
		t.Fatalf("category=%q", got[0].Source.Category())
	}
	if got[0].Status != ledger.StatusUnclaimed {
		t.Fatalf("unknown status must degrade to UNCLAIMED, got %v", got[0].Status)
	}
}

func TestTownsIsolated(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveVisitHistory("portown", []visits.Record{{Tick: 1, Origin: "a", Visitors: 1}}); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadVisitHistory("hillfort")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("town isolation broken: %+v", got)
	}
}
