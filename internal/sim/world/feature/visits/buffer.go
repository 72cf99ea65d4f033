// Package visits batches visitor arrivals per origin inside a tick window
// and routes new visitors between towns with population-weighted fairness.
package visits

import (
	"sort"

	"townfare.dev/internal/protocol"
)

// Record is one settled visit event: every arrival from one origin inside
// one window. Immutable once created.
type Record struct {
	Tick      uint64
	Origin    string
	Visitors  int
	OriginPos protocol.Vec3i
}

type bufferEntry struct {
	visitors   int
	openedTick uint64
	originPos  protocol.Vec3i
}

// Buffer accumulates arrivals per origin until the window elapses. Stored
// distances live outside the window entries: they are overwritten
// latest-wins and survive a flush until explicitly cleared, since distance
// is recomputed consistently from static origin/destination positions.
type Buffer struct {
	windowTicks uint64
	entries     map[string]*bufferEntry
	distances   map[string]float64
}

func NewBuffer(windowTicks uint64) *Buffer {
	if windowTicks == 0 {
		windowTicks = 1
	}
	return &Buffer{
		windowTicks: windowTicks,
		entries:     map[string]*bufferEntry{},
		distances:   map[string]float64{},
	}
}

// AddVisitor counts one arrival from origin, opening the window entry on
// first use.
func (b *Buffer) AddVisitor(origin string, pos protocol.Vec3i, nowTick uint64) {
	if origin == "" {
		return
	}
	e := b.entries[origin]
	if e == nil {
		e = &bufferEntry{openedTick: nowTick, originPos: pos}
		b.entries[origin] = e
	}
	e.visitors++
}

// UpdateDistance overwrites the stored travel distance for origin.
func (b *Buffer) UpdateDistance(origin string, distance float64) {
	if origin == "" || distance < 0 {
		return
	}
	b.distances[origin] = distance
}

// AverageDistance returns the stored distance for origin, if any.
func (b *Buffer) AverageDistance(origin string) (float64, bool) {
	d, ok := b.distances[origin]
	return d, ok
}

// ClearSavedDistance drops the stored distance for origin.
func (b *Buffer) ClearSavedDistance(origin string) {
	delete(b.distances, origin)
}

// ShouldFlush reports whether the oldest open entry has aged past the
// window.
func (b *Buffer) ShouldFlush(nowTick uint64) bool {
	for _, e := range b.entries {
		if nowTick >= e.openedTick && nowTick-e.openedTick >= b.windowTicks {
			return true
		}
	}
	return false
}

// Flush returns one Record per origin with a positive count, ordered by
// origin id for determinism, and clears all window entries. Flushing an
// empty buffer returns nil and has no side effects.
func (b *Buffer) Flush(nowTick uint64) []Record {
	if len(b.entries) == 0 {
		return nil
	}
	origins := make([]string, 0, len(b.entries))
	for origin, e := range b.entries {
		if e.visitors > 0 {
			origins = append(origins, origin)
		}
	}
	sort.Strings(origins)

	out := make([]Record, 0, len(origins))
	for _, origin := range origins {
		e := b.entries[origin]
		out = append(out, Record{
			Tick:      nowTick,
			Origin:    origin,
			Visitors:  e.visitors,
			OriginPos: e.originPos,
		})
	}
	b.entries = map[string]*bufferEntry{}
	return out
}

// Pending is the number of open window entries.
func (b *Buffer) Pending() int { return len(b.entries) }
