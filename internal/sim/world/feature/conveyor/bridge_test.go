package conveyor

import (
	"testing"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/world/feature/economy/inventory"
)

// memHandle is an in-memory external inventory. Its onSet hook simulates the
// host container firing on-change callbacks mid-sync.
type memHandle struct {
	slots []protocol.ItemStack
	onSet func()
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
	if h.onSet != nil {
		h.onSet()
	}
}

func stack(item string, n int) protocol.ItemStack {
	return protocol.ItemStack{Item: item, Count: n}
}

func TestInitialSyncPushesCanonical(t *testing.T) {
	canon := inventory.New(4, nil)
	canon.SetSlot(0, stack("EMERALD", 5))
	ext := newMemHandle(4)
	b := NewBridge(canon, ext, nil)

	if !b.SyncOut() {
		t.Fatalf("initial sync must run")
	}
	if ext.Slot(0) != stack("EMERALD", 5) {
		t.Fatalf("external slot 0 = %+v", ext.Slot(0))
	}
	if b.SyncOut() {
		t.Fatalf("clean bridge must skip outbound sync")
	}
}

func TestSuppressionBlocksInboundMidSync(t *testing.T) {
	canon := inventory.New(2, nil)
	canon.SetSlot(0, stack("EMERALD", 9))
	ext := newMemHandle(2)
	b := NewBridge(canon, ext, nil)

	inboundRan := false
	ext.onSet = func() {
		// External container fires its change callback mid-outbound-sync.
		if !b.Suppressed() {
			t.Fatalf("suppression flag must be set during outbound sync")
		}
		inboundRan = b.SyncIn()
	}
	b.SyncOut()

	if inboundRan {
		t.Fatalf("inbound sync during suppression must report no changes")
	}
	if b.Suppressed() {
		t.Fatalf("suppression flag must be cleared after outbound sync")
	}
	if b.State() != StateIdle {
		t.Fatalf("state=%v, want Idle", b.State())
	}
}

func TestSuppressionClearedOnPanic(t *testing.T) {
	canon := inventory.New(1, nil)
	canon.SetSlot(0, stack("EMERALD", 1))
	ext := newMemHandle(1)
	b := NewBridge(canon, ext, nil)
	ext.onSet = func() { panic("external handle misbehaved") }

	func() {
		defer func() { _ = recover() }()
		b.SyncOut()
	}()
	if b.Suppressed() {
		t.Fatalf("suppression flag must be cleared even when the handle panics")
	}
}

func TestInboundPullsAndAlwaysNotifies(t *testing.T) {
	canon := inventory.New(3, nil)
	ext := newMemHandle(3)
	b := NewBridge(canon, ext, nil)
	b.SyncOut() // settle initial state

	notified := 0
	b.Subscribe(func(slots []protocol.ItemStack) { notified++ })

	ext.slots[1] = stack("WHEAT", 7)
	if !b.SyncIn() {
		t.Fatalf("inbound sync should report the change")
	}
	if canon.Slot(1) != stack("WHEAT", 7) {
		t.Fatalf("canonical slot 1 = %+v", canon.Slot(1))
	}
	// No delta this time: notification still fires.
	if b.SyncIn() {
		t.Fatalf("no delta expected")
	}
	if notified != 2 {
		t.Fatalf("notified=%d, want unconditional notification on both syncs", notified)
	}
}

func TestMostlyEmptyGateThrottlesOutbound(t *testing.T) {
	canon := inventory.New(4, nil)
	ext := newMemHandle(4)
	gate := func(inv *inventory.Inventory) bool { return inv.OccupiedSlots() <= 1 }
	b := NewBridge(canon, ext, gate)
	b.SyncOut() // initial sync bypasses the gate

	canon.SetSlot(0, stack("EMERALD", 1))
	canon.SetSlot(1, stack("EMERALD", 2))
	canon.SetSlot(2, stack("EMERALD", 3))
	b.MarkDirty()
	if b.SyncOut() {
		t.Fatalf("outbound sync must be skipped while the buffer is busy")
	}
	canon.RemoveItem("EMERALD", 3) // drains slots 0 and 1
	if !b.SyncOut() {
		t.Fatalf("outbound sync should run once mostly empty")
	}
	if ext.Slot(2) != stack("EMERALD", 3) {
		t.Fatalf("external slot 2 = %+v", ext.Slot(2))
	}
}

func TestSetContextForcesInitialSync(t *testing.T) {
	canon := inventory.New(2, nil)
	canon.SetSlot(0, stack("EMERALD", 2))
	ext := newMemHandle(2)
	gate := func(*inventory.Inventory) bool { return false } // gate always closed
	b := NewBridge(canon, ext, gate)
	b.SyncOut()

	ext.slots[0] = protocol.Empty // external drifts while unbound
	b.SetContext("riverton")
	if b.ContextID() != "riverton" {
		t.Fatalf("context=%q", b.ContextID())
	}
	if !b.SyncOut() {
		t.Fatalf("re-bind must force an initial full sync past the gate")
	}
	if ext.Slot(0) != stack("EMERALD", 2) {
		t.Fatalf("external slot 0 = %+v after forced sync", ext.Slot(0))
	}
}

func TestRefreshDirtyUsesDigest(t *testing.T) {
	canon := inventory.New(2, nil)
	ext := newMemHandle(2)
	b := NewBridge(canon, ext, nil)
	b.SyncOut()

	b.RefreshDirty()
	if b.SyncOut() {
		t.Fatalf("unchanged canonical content must not trigger sync")
	}
	canon.SetSlot(1, stack("WHEAT", 1))
	b.RefreshDirty()
	if !b.SyncOut() {
		t.Fatalf("digest change must mark the bridge dirty")
	}
}

func TestSyncLoopTerminates(t *testing.T) {
	canon := inventory.New(4, nil)
	ext := newMemHandle(4)
	b := NewBridge(canon, ext, nil)

	// N outbound syncs interleaved with inbound-change notifications must
	// stay linear in bridge operations.
	const n = 50
	for i := 0; i < n; i++ {
		canon.SetSlot(0, stack("EMERALD", i+1))
		b.MarkDirty()
		b.SyncOut()
		ext.slots[1] = stack("WHEAT", i+1)
		b.SyncIn()
	}
	if b.Ops() > 2*n {
		t.Fatalf("ops=%d, want <= %d (no recursive re-triggering)", b.Ops(), 2*n)
	}
}

func TestSlotCountMismatchSyncsOverlapOnly(t *testing.T) {
	canon := inventory.New(4, nil)
	canon.SetSlot(0, stack("EMERALD", 1))
	canon.SetSlot(3, stack("EMERALD", 4))
	ext := newMemHandle(2)
	b := NewBridge(canon, ext, nil)
	b.SyncOut()

	if ext.Slot(0) != stack("EMERALD", 1) {
		t.Fatalf("overlap prefix must sync")
	}
	ext.slots[1] = stack("WHEAT", 2)
	b.SyncIn()
	if canon.Slot(3) != stack("EMERALD", 4) {
		t.Fatalf("slots past the overlap must be untouched")
	}
	if canon.Slot(1) != stack("WHEAT", 2) {
		t.Fatalf("canonical slot 1 = %+v", canon.Slot(1))
	}
}
