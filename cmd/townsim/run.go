package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"townfare.dev/internal/persistence/journal"
	"townfare.dev/internal/persistence/store"
	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/catalogs"
	"townfare.dev/internal/sim/tuning"
	"townfare.dev/internal/sim/world"
	"townfare.dev/internal/sim/world/feature/economy/fare"
	"townfare.dev/internal/sim/world/feature/economy/ledger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scripted demo simulation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSim(cmd.Context())
	},
}

// visitorSpeed is the scripted travel speed in blocks per tick.
const visitorSpeed = 4.0

func runSim(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tune := tuning.Default()
	if flagConfig != "" {
		var err error
		if tune, err = tuning.Load(flagConfig); err != nil {
			return err
		}
	}

	var cat *catalogs.Catalogs
	if flagItems != "" {
		var err error
		if cat, err = catalogs.Load(flagItems); err != nil {
			return err
		}
	}
	maxStack := cat.MaxStack

	doc := demoRewards()
	if flagRewards != "" {
		var err error
		if doc, err = tuning.LoadRewards(flagRewards); err != nil {
			return err
		}
	}
	known := func(item string) bool {
		if cat == nil {
			return true
		}
		return cat.Known(item)
	}
	table := fare.BuildTable(doc, known)

	var sink world.PersistenceSink
	if flagDBPath != "" {
		db, err := store.Open(flagDBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		sink = db
	}

	var recorder world.SettlementRecorder
	var jrnl *journal.SettlementJournal
	if flagDataDir != "" {
		jrnl = journal.NewSettlementJournal(flagDataDir)
		defer jrnl.Close()
		recorder = jrnl
	}

	sim := newSimWorld()
	sim.addTown("PLAINS", protocol.Vec3i{X: 0, Y: 64, Z: 0}, 58)
	sim.addTown("HARBOR", protocol.Vec3i{X: 900, Y: 64, Z: 0}, 31)
	sim.addTown("SUMMIT", protocol.Vec3i{X: 0, Y: 64, Z: 2400}, 11)

	reg := world.NewRegistry()
	coords := map[string]*world.Coordinator{}
	notify := logSink{}
	for _, id := range sim.townIDs() {
		t := world.NewTown(id, sim.posOf(id), tune, maxStack, sim.handleOf(id))
		if sink != nil {
			if err := t.Load(sink); err != nil {
				return err
			}
		}
		reg.Add(t)
		coords[id] = world.NewCoordinator(t, tune, table, sim, sim, notify, recorder)
	}

	var limiter *rate.Limiter
	if flagRealtime {
		limiter = rate.NewLimiter(rate.Limit(tune.TickRateHz), 1)
	}
	departEvery := tune.VisitWindowTicks / 10
	if departEvery == 0 {
		departEvery = 1
	}

	log.Printf("townsim: %d towns, %d ticks at %d Hz", reg.Len(), flagTicks, tune.TickRateHz)
	start := time.Now()
	for tick := uint64(1); tick <= uint64(flagTicks); tick++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
		now := time.Now()

		if tick%departEvery == 0 {
			reg.Each(func(t *world.Town) {
				dest, vid := coords[t.ID].RouteNewVisitor(t.ID, t.Pos, tick)
				sim.scheduleArrival(vid, dest, tick)
			})
		}
		sim.advance(tick)

		reg.Each(func(t *world.Town) {
			coords[t.ID].Tick(tick, now)
		})

		if tick%tune.VisitWindowTicks == 0 {
			reg.Each(func(t *world.Town) {
				if n := t.Ledger.SweepExpired(now); n > 0 {
					log.Printf("town %s: %d rewards expired", t.ID, n)
				}
			})
		}
	}

	// Claim the oldest open reward per town so the run shows the whole
	// settle-then-claim cycle.
	reg.Each(func(t *world.Town) {
		for _, e := range t.Ledger.Entries() {
			if e.Status != ledger.StatusUnclaimed {
				continue
			}
			lines, err := t.Claim(e.ID, "operator", time.Now())
			if err != nil {
				log.Printf("town %s: claim %s failed: %v", t.ID, e.ID, err)
				break
			}
			log.Printf("town %s: claimed %s -> %v", t.ID, e.ID, lines)
			if jrnl != nil {
				if err := jrnl.WriteClaim(t.ID, e.ID, t.ID, "operator"); err != nil {
					log.Printf("journal claim: %v", err)
				}
			}
			break
		}
	})

	var saveErr error
	reg.Each(func(t *world.Town) {
		if sink != nil {
			if err := t.Save(sink); err != nil && saveErr == nil {
				saveErr = err
			}
		}
		log.Printf("town %s: %d ledger entries, %d history records, buffer %v",
			t.ID, t.Ledger.Len(), len(t.History.Records()), t.PaymentBuffer.Slots())
	})
	log.Printf("townsim: done in %s", time.Since(start).Round(time.Millisecond))
	return saveErr
}

func demoRewards() tuning.RewardsDoc {
	return tuning.RewardsDoc{
		Enabled: true,
		Milestones: []tuning.MilestoneDef{
			{Distance: 500, Rewards: []string{"WHEAT:2"}},
			{Distance: 2000, Rewards: []string{"GOLD_INGOT:1"}},
		},
	}
}

type logSink struct{}

func (logSink) NotifyRewardAdded(town string, e *ledger.Entry) {
	var desc string
	if src, ok := e.Source.(ledger.ArrivalSource); ok {
		desc = fmt.Sprintf("%d visitors from %s, fare %d", src.Visitors, src.Origin, src.Fare)
		if src.MilestoneDistance > 0 {
			desc += fmt.Sprintf(", milestone %dm", src.MilestoneDistance)
		}
	} else {
		desc = e.Source.Category()
	}
	log.Printf("town %s: reward %s (%s) lines=%v", town, e.ID, desc, e.Lines)
}

func (logSink) NotifySlotBufferChanged(town string, slots []protocol.ItemStack) {
	occupied := 0
	for _, s := range slots {
		if !s.IsEmpty() {
			occupied++
		}
	}
	log.Printf("town %s: payment buffer changed, %d/%d slots occupied", town, occupied, len(slots))
}
