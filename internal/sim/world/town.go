package world

import (
	"errors"
	"sort"
	"time"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/tuning"
	"townfare.dev/internal/sim/world/feature/conveyor"
	"townfare.dev/internal/sim/world/feature/economy/inventory"
	"townfare.dev/internal/sim/world/feature/economy/ledger"
	"townfare.dev/internal/sim/world/feature/visits"
)

// Town is one origin/destination entity. It exclusively owns its reward
// ledger, visit history, and payment slot buffer; the sync bridge holds the
// buffer by reference only.
type Town struct {
	ID  string
	Pos protocol.Vec3i

	Ledger        *ledger.Ledger
	History       *visits.History
	PaymentBuffer *inventory.Inventory
	Bridge        *conveyor.Bridge

	tradeSlots int
	maxStack   func(string) int
}

// NewTown wires a town from tuning. external may be nil for towns without
// automation attached; the bridge is only built when a handle exists.
func NewTown(id string, pos protocol.Vec3i, tune tuning.Tuning, maxStack func(string) int, external conveyor.ExternalHandle) *Town {
	t := &Town{
		ID:            id,
		Pos:           pos,
		Ledger:        ledger.New(time.Duration(tune.RewardTTLHours) * time.Hour),
		History:       visits.NewHistory(tune.HistoryCap),
		PaymentBuffer: inventory.New(tune.PaymentSlots, maxStack),
		tradeSlots:    tune.TradeSlots,
		maxStack:      maxStack,
	}
	if external != nil {
		gate := func(inv *inventory.Inventory) bool {
			return inv.OccupiedSlots() <= tune.Sync.MostlyEmptyMaxSlots
		}
		t.Bridge = conveyor.NewBridge(t.PaymentBuffer, external, gate)
		t.Bridge.SetContext(id)
	}
	return t
}

// TradeView returns a trade-window sized snapshot of the payment buffer for
// trade UIs. Only the first tradeSlots slots are visible; storage is never
// shared with the live buffer.
func (t *Town) TradeView() *inventory.Inventory {
	view := inventory.New(t.tradeSlots, t.maxStack)
	t.PaymentBuffer.CopyInto(view)
	return view
}

// Claim flips a reward entry to CLAIMED for the given claimant and returns
// its lines for delivery. Errors carry the wire code as their message.
func (t *Town) Claim(id, claimant string, now time.Time) ([]protocol.ItemStack, error) {
	e, ok := t.Ledger.Get(id)
	if !ok {
		return nil, errors.New(protocol.ErrBadRequest)
	}
	if e.Status == ledger.StatusExpired || e.IsExpired(now) {
		return nil, errors.New(protocol.ErrExpired)
	}
	if e.Status == ledger.StatusClaimed {
		return nil, errors.New(protocol.ErrConflict)
	}
	if e.Claimant != "" && e.Claimant != claimant {
		return nil, errors.New(protocol.ErrNoPermission)
	}
	if len(e.Lines) == 0 {
		return nil, errors.New(protocol.ErrEmptyReward)
	}
	if !t.Ledger.SetStatus(id, ledger.StatusClaimed) {
		return nil, errors.New(protocol.ErrConflict)
	}
	return e.Lines, nil
}

// Save writes the town's history and ledger through the persistence sink.
func (t *Town) Save(sink PersistenceSink) error {
	if sink == nil {
		return nil
	}
	if err := sink.SaveVisitHistory(t.ID, t.History.Records()); err != nil {
		return err
	}
	return sink.SaveLedger(t.ID, t.Ledger.Entries())
}

// Load restores history and ledger, preserving persisted timestamps via the
// bulk-load APIs.
func (t *Town) Load(sink PersistenceSink) error {
	if sink == nil {
		return nil
	}
	records, err := sink.LoadVisitHistory(t.ID)
	if err != nil {
		return err
	}
	t.History.BulkLoad(records)
	entries, err := sink.LoadLedger(t.ID)
	if err != nil {
		return err
	}
	t.Ledger.BulkLoad(entries)
	return nil
}

// Registry maps town ids to live handles. It replaces any process-wide
// instance map: the host owns one registry and passes it by reference to
// whatever needs to broadcast, which keeps lifecycles explicit and lets
// tests run independent instances side by side.
type Registry struct {
	towns map[string]*Town
}

func NewRegistry() *Registry {
	return &Registry{towns: map[string]*Town{}}
}

func (r *Registry) Add(t *Town) {
	if t == nil || t.ID == "" {
		return
	}
	r.towns[t.ID] = t
}

func (r *Registry) Get(id string) (*Town, bool) {
	t, ok := r.towns[id]
	return t, ok
}

func (r *Registry) Remove(id string) {
	delete(r.towns, id)
}

func (r *Registry) Len() int { return len(r.towns) }

// IDs returns registered town ids in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.towns))
	for id := range r.towns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Each visits towns in sorted id order.
func (r *Registry) Each(fn func(*Town)) {
	if fn == nil {
		return
	}
	for _, id := range r.IDs() {
		fn(r.towns[id])
	}
}
