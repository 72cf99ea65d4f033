package visits

import "sort"

// DestinationAny is the wildcard destination returned when an origin has no
// enabled candidates. The coordinator resolves it against the live candidate
// set at flush time, not at selection time.
const DestinationAny = "ANY"

type pairStats struct {
	routed     int
	lastRouted uint64
}

type originLedger struct {
	total int
	pairs map[string]*pairStats
}

// Allocator routes new visitors between candidate destinations with
// population-weighted fairness. Per (origin, destination) pair it tracks how
// many visitors were routed against the destination's target share; the
// candidate with the largest positive deficit wins, ties broken by the
// least-recently allocated candidate (smooth weighted round-robin).
type Allocator struct {
	origins map[string]*originLedger
}

func NewAllocator() *Allocator {
	return &Allocator{origins: map[string]*originLedger{}}
}

func (a *Allocator) ledgerFor(origin string) *originLedger {
	ol := a.origins[origin]
	if ol == nil {
		ol = &originLedger{pairs: map[string]*pairStats{}}
		a.origins[origin] = ol
	}
	return ol
}

// Pick selects one destination for a new visitor from origin and records the
// allocation. Empty candidate sets resolve to DestinationAny; that is not an
// error.
func (a *Allocator) Pick(origin string, populations map[string]int, nowTick uint64) string {
	totalPop := 0
	ids := make([]string, 0, len(populations))
	for id, pop := range populations {
		if id == "" || pop <= 0 {
			continue
		}
		ids = append(ids, id)
		totalPop += pop
	}
	if len(ids) == 0 || totalPop <= 0 {
		return DestinationAny
	}
	sort.Strings(ids)

	ol := a.ledgerFor(origin)

	best := ""
	bestDeficit := 0.0
	var bestLast uint64
	for _, id := range ids {
		target := float64(populations[id]) / float64(totalPop)
		var observed float64
		var last uint64
		if ps := ol.pairs[id]; ps != nil {
			last = ps.lastRouted
			if ol.total > 0 {
				observed = float64(ps.routed) / float64(ol.total)
			}
		}
		deficit := target - observed
		if best == "" || deficit > bestDeficit || (deficit == bestDeficit && last < bestLast) {
			best = id
			bestDeficit = deficit
			bestLast = last
		}
	}

	ps := ol.pairs[best]
	if ps == nil {
		ps = &pairStats{}
		ol.pairs[best] = ps
	}
	ps.routed++
	ps.lastRouted = nowTick
	ol.total++
	return best
}

// RecordRemoval decrements the routed count for a pair when a visitor is
// removed or expires, so long-lived visitors do not permanently bias the
// deficit. Counts never go below zero.
func (a *Allocator) RecordRemoval(origin, destination string) {
	ol := a.origins[origin]
	if ol == nil {
		return
	}
	ps := ol.pairs[destination]
	if ps == nil || ps.routed <= 0 {
		return
	}
	ps.routed--
	if ol.total > 0 {
		ol.total--
	}
}

// RoutedCount reports visitors currently accounted to an (origin,
// destination) pair.
func (a *Allocator) RoutedCount(origin, destination string) int {
	ol := a.origins[origin]
	if ol == nil {
		return 0
	}
	ps := ol.pairs[destination]
	if ps == nil {
		return 0
	}
	return ps.routed
}
