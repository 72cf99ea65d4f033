package world

import (
	"encoding/hex"
	"time"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/tuning"
	"townfare.dev/internal/sim/world/feature/economy/fare"
	"townfare.dev/internal/sim/world/feature/economy/ledger"
	"townfare.dev/internal/sim/world/feature/visits"
)

// Coordinator drives one town's visit economy for one simulation tick:
// observations in, batched settlements out. All operations are synchronous
// and run to completion inside the tick; there is exactly one logical tick
// actor, so no internal locking.
type Coordinator struct {
	town  *Town
	tune  tuning.Tuning
	table fare.Table

	buffer *visits.Buffer
	alloc  *visits.Allocator

	obs      ObservationSource
	pops     PopulationDirectory
	notify   NotificationSink
	recorder SettlementRecorder
}

func NewCoordinator(town *Town, tune tuning.Tuning, table fare.Table, obs ObservationSource, pops PopulationDirectory, notify NotificationSink, recorder SettlementRecorder) *Coordinator {
	c := &Coordinator{
		town:     town,
		tune:     tune,
		table:    table,
		buffer:   visits.NewBuffer(tune.VisitWindowTicks),
		alloc:    visits.NewAllocator(),
		obs:      obs,
		pops:     pops,
		notify:   notify,
		recorder: recorder,
	}
	if town.Bridge != nil && notify != nil {
		town.Bridge.Subscribe(func(slots []protocol.ItemStack) {
			notify.NotifySlotBufferChanged(town.ID, slots)
		})
	}
	return c
}

func (c *Coordinator) Buffer() *visits.Buffer    { return c.buffer }
func (c *Coordinator) Allocator() *visits.Allocator { return c.alloc }

// RouteNewVisitor picks a fair destination for a visitor leaving origin and
// spawns it through the world collaborator. The returned destination may be
// the wildcard; it is resolved on arrival against whichever town the visitor
// actually settles at, not fixed here.
func (c *Coordinator) RouteNewVisitor(origin string, pos protocol.Vec3i, nowTick uint64) (dest string, visitorID string) {
	populations := map[string]int{}
	if c.pops != nil {
		for _, id := range c.pops.CandidateIDs(origin) {
			populations[id] = c.pops.PopulationOf(id)
		}
	}
	dest = c.alloc.Pick(origin, populations, nowTick)
	if c.obs != nil {
		visitorID = c.obs.SpawnVisitor(origin, dest, pos)
	}
	return dest, visitorID
}

// VisitorRemoved unwinds allocator bookkeeping when a routed visitor is
// removed or expires before settling.
func (c *Coordinator) VisitorRemoved(origin, destination string) {
	c.alloc.RecordRemoval(origin, destination)
}

// Tick runs one simulation step: ingest settled visitors, flush the window
// when due, then run outbound before inbound sync so the inbound check never
// reads a half-written external handle.
func (c *Coordinator) Tick(nowTick uint64, now time.Time) {
	c.ingest(nowTick)

	if c.buffer.ShouldFlush(nowTick) {
		c.settle(nowTick, now)
	}

	if b := c.town.Bridge; b != nil {
		b.RefreshDirty()
		b.SyncOut()
		b.SyncIn()
	}
}

func (c *Coordinator) ingest(nowTick uint64) {
	if c.obs == nil {
		return
	}
	for _, o := range c.obs.NearbyVisitorObservations(c.town.Pos, c.tune.VisitRadius) {
		if !o.Settled || o.Origin == "" {
			continue
		}
		// Wildcard destinations resolve to whichever town the visitor
		// settled at.
		if o.Destination != c.town.ID && o.Destination != visits.DestinationAny {
			continue
		}
		c.buffer.AddVisitor(o.Origin, o.OriginPos, nowTick)
		c.buffer.UpdateDistance(o.Origin, o.OriginPos.DistanceTo(c.town.Pos))
		c.obs.RemoveVisitor(o.VisitorID)
	}
}

// settle flushes the aggregation buffer and writes one bundled ledger entry
// per origin. Fare and milestone lines share a single ARRIVAL entry so
// notification volume tracks visit events, not reward categories.
func (c *Coordinator) settle(nowTick uint64, now time.Time) {
	for _, rec := range c.buffer.Flush(nowTick) {
		distance, _ := c.buffer.AverageDistance(rec.Origin)

		fareAmt := fare.Compute(c.tune.Fare, distance, rec.Visitors)
		ms := fare.CheckMilestones(c.table, distance, rec.Visitors)

		lines := make([]protocol.ItemStack, 0, 1+len(ms.Lines))
		if fareAmt > 0 && c.tune.Fare.CurrencyItem != "" {
			lines = append(lines, protocol.ItemStack{Item: c.tune.Fare.CurrencyItem, Count: fareAmt})
		}
		lines = append(lines, ms.Lines...)

		src := ledger.ArrivalSource{
			Origin:            rec.Origin,
			Visitors:          rec.Visitors,
			Fare:              fareAmt,
			MilestoneDistance: ms.Threshold,
		}
		id, ok := c.town.Ledger.Add(now, src, lines, "")

		c.town.History.Append(rec)
		c.buffer.ClearSavedDistance(rec.Origin)
		if !ok {
			continue
		}

		for _, line := range lines {
			c.town.PaymentBuffer.AddItem(line)
		}
		if c.town.Bridge != nil {
			c.town.Bridge.MarkDirty()
		}

		if c.notify != nil {
			if e, found := c.town.Ledger.Get(id); found {
				c.notify.NotifyRewardAdded(c.town.ID, e)
			}
		}
		if c.recorder != nil {
			digest := c.town.PaymentBuffer.Digest()
			c.recorder.RecordSettlement(SettlementEvent{
				Tick:              nowTick,
				Town:              c.town.ID,
				Origin:            rec.Origin,
				Visitors:          rec.Visitors,
				Distance:          distance,
				Fare:              fareAmt,
				MilestoneDistance: ms.Threshold,
				RewardID:          id,
				BufferDigest:      hex.EncodeToString(digest[:]),
			})
		}
	}
}
