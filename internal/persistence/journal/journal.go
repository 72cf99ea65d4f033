// Package journal appends compressed JSONL records of settlement and claim
// activity. One file per UTC day, rotated on write.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"townfare.dev/internal/sim/world"
)

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDay = day
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *jsonlZstdWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// ClaimEntry records one reward claim-state transition.
type ClaimEntry struct {
	Kind     string `json:"kind"` // always "claim"
	Time     string `json:"time"`
	Town     string `json:"town"`
	RewardID string `json:"reward_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type settlementLine struct {
	Kind string `json:"kind"` // always "settlement"
	Time string `json:"time"`
	world.SettlementEvent
}

// SettlementJournal persists settlement and claim records under
// dataDir/journal. Writes are fire-and-forget from the coordinator's view;
// errors surface only to direct callers.
type SettlementJournal struct {
	w *jsonlZstdWriter
}

func NewSettlementJournal(dataDir string) *SettlementJournal {
	return &SettlementJournal{w: newJSONLZstdWriter(filepath.Join(dataDir, "journal"), "townfare")}
}

// RecordSettlement implements world.SettlementRecorder. Failures are
// swallowed; the journal is an audit trail, not a ledger of record.
func (j *SettlementJournal) RecordSettlement(e world.SettlementEvent) {
	_ = j.w.write(settlementLine{
		Kind:            "settlement",
		Time:            time.Now().UTC().Format(time.RFC3339),
		SettlementEvent: e,
	})
}

func (j *SettlementJournal) WriteClaim(town, rewardID, from, to string) error {
	return j.w.write(ClaimEntry{
		Kind:     "claim",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Town:     town,
		RewardID: rewardID,
		From:     from,
		To:       to,
	})
}

func (j *SettlementJournal) Close() error { return j.w.close() }
