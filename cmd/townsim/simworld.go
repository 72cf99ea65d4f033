package main

import (
	"fmt"
	"sort"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/world"
	"townfare.dev/internal/sim/world/feature/visits"
)

// simWorld is the scripted world collaborator used by the demo. Visitors
// travel in straight lines at a fixed speed and settle at their destination
// town's position; there is no terrain, collision or pathing.
type simWorld struct {
	towns    map[string]*simTown
	visitors map[string]*simVisitor
	nextID   int
}

type simTown struct {
	pos        protocol.Vec3i
	population int
	hopper     *memHandle
}

type simVisitor struct {
	id          string
	origin      string
	destination string // concrete town id once resolved
	originPos   protocol.Vec3i
	arriveTick  uint64
	settled     bool
}

func newSimWorld() *simWorld {
	return &simWorld{
		towns:    map[string]*simTown{},
		visitors: map[string]*simVisitor{},
	}
}

func (w *simWorld) addTown(id string, pos protocol.Vec3i, population int) {
	w.towns[id] = &simTown{pos: pos, population: population, hopper: newMemHandle(5)}
}

func (w *simWorld) townIDs() []string {
	out := make([]string, 0, len(w.towns))
	for id := range w.towns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (w *simWorld) posOf(id string) protocol.Vec3i { return w.towns[id].pos }

func (w *simWorld) handleOf(id string) *memHandle { return w.towns[id].hopper }

// SpawnVisitor registers a visitor leaving origin. Arrival timing is set
// later by scheduleArrival once the caller knows the current tick.
func (w *simWorld) SpawnVisitor(origin, destination string, pos protocol.Vec3i) string {
	w.nextID++
	id := fmt.Sprintf("visitor-%d", w.nextID)
	w.visitors[id] = &simVisitor{
		id:          id,
		origin:      origin,
		destination: destination,
		originPos:   pos,
	}
	return id
}

// scheduleArrival fixes the visitor's travel time from the straight-line
// distance. Wildcard destinations are resolved to the first candidate town
// in id order, mirroring a visitor that wanders until it finds somewhere.
func (w *simWorld) scheduleArrival(visitorID, destination string, nowTick uint64) {
	v, ok := w.visitors[visitorID]
	if !ok {
		return
	}
	if destination == visits.DestinationAny {
		for _, id := range w.townIDs() {
			if id != v.origin {
				destination = id
				break
			}
		}
	}
	dest, ok := w.towns[destination]
	if !ok {
		delete(w.visitors, visitorID)
		return
	}
	v.destination = destination
	travel := uint64(v.originPos.DistanceTo(dest.pos) / visitorSpeed)
	if travel == 0 {
		travel = 1
	}
	v.arriveTick = nowTick + travel
}

// advance settles every visitor whose travel time has elapsed.
func (w *simWorld) advance(nowTick uint64) {
	for _, v := range w.visitors {
		if !v.settled && v.arriveTick > 0 && nowTick >= v.arriveTick {
			v.settled = true
		}
	}
}

func (w *simWorld) NearbyVisitorObservations(center protocol.Vec3i, radius int) []world.VisitorObservation {
	var out []world.VisitorObservation
	for _, v := range w.visitors {
		if !v.settled {
			continue
		}
		dest, ok := w.towns[v.destination]
		if !ok || dest.pos.DistanceTo(center) > float64(radius) {
			continue
		}
		out = append(out, world.VisitorObservation{
			VisitorID:   v.id,
			Origin:      v.origin,
			Destination: v.destination,
			Pos:         dest.pos,
			OriginPos:   v.originPos,
			Settled:     true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitorID < out[j].VisitorID })
	return out
}

func (w *simWorld) RemoveVisitor(id string) {
	delete(w.visitors, id)
}

func (w *simWorld) PopulationOf(id string) int {
	if t, ok := w.towns[id]; ok {
		return t.population
	}
	return 0
}

func (w *simWorld) CandidateIDs(excluding string) []string {
	var out []string
	for _, id := range w.townIDs() {
		if id != excluding {
			out = append(out, id)
		}
	}
	return out
}

// memHandle is an in-memory slot container standing in for an attached
// hopper or chest.
type memHandle struct {
	slots []protocol.ItemStack
}

func newMemHandle(n int) *memHandle {
	return &memHandle{slots: make([]protocol.ItemStack, n)}
}

func (h *memHandle) SlotCount() int { return len(h.slots) }

func (h *memHandle) Slot(i int) protocol.ItemStack {
	if i < 0 || i >= len(h.slots) {
		return protocol.Empty
	}
	return h.slots[i]
}

func (h *memHandle) SetSlot(i int, s protocol.ItemStack) {
	if i < 0 || i >= len(h.slots) {
		return
	}
	h.slots[i] = s
}
