package visits

import (
	"testing"

	"townfare.dev/internal/protocol"
)

func TestBufferAccumulatesPerOrigin(t *testing.T) {
	b := NewBuffer(100)
	pos := protocol.Vec3i{X: 10, Z: -4}
	b.AddVisitor("riverton", pos, 5)
	b.AddVisitor("riverton", pos, 20)
	b.AddVisitor("hillfort", protocol.Vec3i{X: -3}, 30)

	recs := b.Flush(110)
	if len(recs) != 2 {
		t.Fatalf("records=%d, want 2", len(recs))
	}
	// Deterministic origin order.
	if recs[0].Origin != "hillfort" || recs[1].Origin != "riverton" {
		t.Fatalf("order=%q,%q", recs[0].Origin, recs[1].Origin)
	}
	if recs[1].Visitors != 2 || recs[1].OriginPos != pos || recs[1].Tick != 110 {
		t.Fatalf("riverton record=%+v", recs[1])
	}
}

func TestBufferFlushIdempotent(t *testing.T) {
	b := NewBuffer(10)
	b.AddVisitor("riverton", protocol.Vec3i{}, 0)
	if got := b.Flush(10); len(got) != 1 {
		t.Fatalf("first flush=%d records", len(got))
	}
	if got := b.Flush(10); got != nil {
		t.Fatalf("second flush must be empty, got %v", got)
	}
}

func TestBufferShouldFlush(t *testing.T) {
	b := NewBuffer(100)
	if b.ShouldFlush(500) {
		t.Fatalf("empty buffer must not flush")
	}
	b.AddVisitor("riverton", protocol.Vec3i{}, 400)
	if b.ShouldFlush(450) {
		t.Fatalf("window not elapsed yet")
	}
	if !b.ShouldFlush(500) {
		t.Fatalf("window elapsed, should flush")
	}
	// A newer origin does not keep the oldest entry from aging out.
	b.AddVisitor("hillfort", protocol.Vec3i{}, 495)
	if !b.ShouldFlush(500) {
		t.Fatalf("oldest entry governs the window")
	}
}

func TestDistanceLatestWinsAndSurvivesFlush(t *testing.T) {
	b := NewBuffer(10)
	b.AddVisitor("riverton", protocol.Vec3i{}, 0)
	b.UpdateDistance("riverton", 800)
	b.UpdateDistance("riverton", 1200)

	if d, ok := b.AverageDistance("riverton"); !ok || d != 1200 {
		t.Fatalf("distance=%v/%v, want latest 1200", d, ok)
	}
	b.Flush(10)
	if d, ok := b.AverageDistance("riverton"); !ok || d != 1200 {
		t.Fatalf("distance must survive flush, got %v/%v", d, ok)
	}
	b.ClearSavedDistance("riverton")
	if _, ok := b.AverageDistance("riverton"); ok {
		t.Fatalf("distance should be cleared")
	}
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(Record{Tick: uint64(i), Origin: "riverton", Visitors: i})
	}
	recs := h.Records()
	if len(recs) != 3 {
		t.Fatalf("len=%d, want 3", len(recs))
	}
	if recs[0].Tick != 5 || recs[2].Tick != 3 {
		t.Fatalf("ordering wrong: %+v", recs)
	}
}

func TestHistoryBulkLoadPreservesTicks(t *testing.T) {
	h := NewHistory(10)
	h.Append(Record{Tick: 999})
	h.BulkLoad([]Record{
		{Tick: 70, Origin: "hillfort", Visitors: 2},
		{Tick: 50, Origin: "riverton", Visitors: 1},
	})
	recs := h.Records()
	if len(recs) != 2 || recs[0].Tick != 70 || recs[1].Tick != 50 {
		t.Fatalf("bulk load must replace and preserve ticks: %+v", recs)
	}
}
