// Package conveyor keeps a town's canonical payment buffer consistent with
// an automation-facing external inventory handle. The canonical side is the
// source of truth; the external side mirrors it for hopper-like extractors.
// Both directions are triggered by change callbacks, so a suppression flag
// guards against the two directions re-triggering each other forever.
package conveyor

import (
	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/world/feature/economy/inventory"
)

type State uint8

const (
	StateIdle State = iota
	StateSyncingOut
	StateSyncingIn
)

// ExternalHandle is the automation-facing inventory view. Its slot count may
// differ from the canonical buffer's; only the overlapping prefix is synced.
type ExternalHandle interface {
	SlotCount() int
	Slot(i int) protocol.ItemStack
	SetSlot(i int, s protocol.ItemStack)
}

// Observer receives the canonical slot contents after every completed
// inbound sync.
type Observer func(slots []protocol.ItemStack)

// Bridge synchronizes one canonical buffer with one external handle.
type Bridge struct {
	contextID string
	canonical *inventory.Inventory
	external  ExternalHandle

	state    State
	suppress bool
	dirty    bool
	initial  bool

	// mostlyEmpty gates outbound sync so automation mid-extraction on the
	// external side is not clobbered. Nil means no throttle.
	mostlyEmpty func(*inventory.Inventory) bool

	observers  []Observer
	lastDigest [32]byte
	ops        int
}

func NewBridge(canonical *inventory.Inventory, external ExternalHandle, mostlyEmpty func(*inventory.Inventory) bool) *Bridge {
	b := &Bridge{
		canonical:   canonical,
		external:    external,
		mostlyEmpty: mostlyEmpty,
		initial:     true,
	}
	if canonical != nil {
		b.lastDigest = canonical.Digest()
	}
	return b
}

func (b *Bridge) State() State     { return b.state }
func (b *Bridge) Suppressed() bool { return b.suppress }
func (b *Bridge) ContextID() string { return b.contextID }

// Ops counts sync invocations, bounding bridge work for loop-termination
// checks.
func (b *Bridge) Ops() int { return b.ops }

// Subscribe registers an observer for post-inbound notifications.
func (b *Bridge) Subscribe(fn Observer) {
	if fn != nil {
		b.observers = append(b.observers, fn)
	}
}

// MarkDirty flags the canonical side as changed since the last outbound
// sync.
func (b *Bridge) MarkDirty() { b.dirty = true }

// RefreshDirty compares the canonical content digest against the last synced
// one and marks dirty on mismatch. Cheap to call every tick.
func (b *Bridge) RefreshDirty() {
	if b.canonical == nil {
		return
	}
	if d := b.canonical.Digest(); d != b.lastDigest {
		b.dirty = true
	}
}

// SetContext re-binds the bridge to a new owning town/context. No sync state
// survives the re-bind; the next outbound sync is a forced initial full
// sync.
func (b *Bridge) SetContext(id string) {
	b.contextID = id
	b.dirty = false
	b.initial = true
	b.suppress = false
	b.state = StateIdle
}

func (b *Bridge) overlap() int {
	n := 0
	if b.canonical != nil {
		n = b.canonical.SlotCount()
	}
	if b.external != nil && b.external.SlotCount() < n {
		n = b.external.SlotCount()
	}
	if b.external == nil {
		n = 0
	}
	return n
}

// SyncOut pushes canonical slots to the external handle. It runs only when
// the canonical side is dirty or an initial sync is forced, and unless
// forced, only while the canonical buffer passes the mostly-empty gate.
// Returns whether a sync actually ran.
//
// The suppression flag is cleared on every exit path, including a panic in
// the external handle: a stuck flag would deadlock all future inbound sync.
func (b *Bridge) SyncOut() bool {
	if b.canonical == nil || b.external == nil {
		return false
	}
	if !b.dirty && !b.initial {
		return false
	}
	if !b.initial && b.mostlyEmpty != nil && !b.mostlyEmpty(b.canonical) {
		return false
	}

	b.ops++
	b.state = StateSyncingOut
	b.suppress = true
	defer func() {
		b.suppress = false
		b.state = StateIdle
	}()

	n := b.overlap()
	for i := 0; i < n; i++ {
		want := b.canonical.Slot(i)
		if b.external.Slot(i) != want {
			b.external.SetSlot(i, want)
		}
	}
	b.dirty = false
	b.initial = false
	b.lastDigest = b.canonical.Digest()
	return true
}

// SyncIn pulls external changes into the canonical buffer. While an outbound
// sync holds the suppression flag this is a silent no-op: an active outbound
// sync must never be reinterpreted as an external change. Returns whether
// anything changed.
//
// On completion observers are always notified with the current canonical
// contents, changed or not: the caller cannot tell "nothing changed" from
// "a sync bug swallowed a change".
func (b *Bridge) SyncIn() bool {
	if b.canonical == nil || b.external == nil {
		return false
	}
	if b.suppress {
		return false
	}

	b.ops++
	b.state = StateSyncingIn
	defer func() { b.state = StateIdle }()

	changed := false
	n := b.overlap()
	for i := 0; i < n; i++ {
		got := b.external.Slot(i)
		if b.canonical.Slot(i) != got {
			b.canonical.SetSlot(i, got)
			changed = true
		}
	}
	b.lastDigest = b.canonical.Digest()

	slots := b.canonical.Slots()
	for _, fn := range b.observers {
		fn(slots)
	}
	return changed
}
