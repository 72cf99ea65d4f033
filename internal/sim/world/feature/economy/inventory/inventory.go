// Package inventory implements the fixed-capacity slot buffers used for
// visitor payments and trade views. Slot indices frequently arrive from
// less-trusted sync code, so reads and writes are bounds-safe rather than
// panicking.
package inventory

import (
	"encoding/binary"
	"errors"

	"lukechampine.com/blake3"

	"townfare.dev/internal/protocol"
)

// ErrSlotCountMismatch is returned by Restore when persisted slot data does
// not match the buffer's capacity. Truncating persisted slots would lose
// items, so this surfaces as a hard failure.
var ErrSlotCountMismatch = errors.New(protocol.ErrSlotMismatch + ": slot count mismatch")

// Inventory is a fixed-count array of item slots. The slot count never
// changes after construction.
type Inventory struct {
	slots    []protocol.ItemStack
	maxStack func(string) int
}

const defaultMaxStack = 64

// New builds an inventory with n slots. maxStack resolves the stack cap per
// item kind; nil falls back to a flat cap of 64.
func New(n int, maxStack func(string) int) *Inventory {
	if n < 0 {
		n = 0
	}
	return &Inventory{
		slots:    make([]protocol.ItemStack, n),
		maxStack: maxStack,
	}
}

func (v *Inventory) capFor(item string) int {
	if v.maxStack != nil {
		if c := v.maxStack(item); c > 0 {
			return c
		}
	}
	return defaultMaxStack
}

func (v *Inventory) SlotCount() int { return len(v.slots) }

// Slot returns the stack at i, or the empty stack when i is out of range.
func (v *Inventory) Slot(i int) protocol.ItemStack {
	if i < 0 || i >= len(v.slots) {
		return protocol.Empty
	}
	return v.slots[i]
}

// SetSlot stores a stack at i. Out-of-range writes are ignored.
func (v *Inventory) SetSlot(i int, s protocol.ItemStack) {
	if i < 0 || i >= len(v.slots) {
		return
	}
	if s.IsEmpty() {
		s = protocol.Empty
	}
	v.slots[i] = s
}

// FindEmptySlot returns the first empty slot index, -1 when full.
func (v *Inventory) FindEmptySlot() int {
	for i, s := range v.slots {
		if s.IsEmpty() {
			return i
		}
	}
	return -1
}

// FindStackableSlot returns the first slot holding the same item kind with
// room left under its stack cap, -1 when none.
func (v *Inventory) FindStackableSlot(s protocol.ItemStack) int {
	if s.IsEmpty() {
		return -1
	}
	limit := v.capFor(s.Item)
	for i, cur := range v.slots {
		if cur.Item == s.Item && cur.Count > 0 && cur.Count < limit {
			return i
		}
	}
	return -1
}

// AddItem places a stack using two passes: top up existing same-kind slots
// left to right, then fill empty slots. Returns true when at least one unit
// was placed; callers needing all-or-nothing must check Remaining via
// AddItemRemainder.
func (v *Inventory) AddItem(s protocol.ItemStack) bool {
	_, placed := v.AddItemRemainder(s)
	return placed > 0
}

// AddItemRemainder is AddItem with the unplaced remainder reported.
func (v *Inventory) AddItemRemainder(s protocol.ItemStack) (remainder int, placed int) {
	if s.IsEmpty() {
		return 0, 0
	}
	limit := v.capFor(s.Item)
	left := s.Count

	for i := 0; i < len(v.slots) && left > 0; i++ {
		cur := v.slots[i]
		if cur.Item != s.Item || cur.Count <= 0 || cur.Count >= limit {
			continue
		}
		take := limit - cur.Count
		if take > left {
			take = left
		}
		v.slots[i].Count += take
		left -= take
	}

	for i := 0; i < len(v.slots) && left > 0; i++ {
		if !v.slots[i].IsEmpty() {
			continue
		}
		take := limit
		if take > left {
			take = left
		}
		v.slots[i] = protocol.ItemStack{Item: s.Item, Count: take}
		left -= take
	}

	return left, s.Count - left
}

// RemoveItem drains up to amount units of an item kind in slot order and
// returns how many were actually removed. Short removal is not an error.
func (v *Inventory) RemoveItem(item string, amount int) int {
	if item == "" || amount <= 0 {
		return 0
	}
	removed := 0
	for i := 0; i < len(v.slots) && removed < amount; i++ {
		cur := v.slots[i]
		if cur.Item != item || cur.Count <= 0 {
			continue
		}
		take := amount - removed
		if take > cur.Count {
			take = cur.Count
		}
		v.slots[i].Count -= take
		if v.slots[i].Count <= 0 {
			v.slots[i] = protocol.Empty
		}
		removed += take
	}
	return removed
}

// CopyInto copies min(src, dst) slots into dst and clears the remainder of
// dst. Storage is never shared between instances.
func (v *Inventory) CopyInto(dst *Inventory) {
	if dst == nil {
		return
	}
	n := len(v.slots)
	if len(dst.slots) < n {
		n = len(dst.slots)
	}
	copy(dst.slots[:n], v.slots[:n])
	for i := n; i < len(dst.slots); i++ {
		dst.slots[i] = protocol.Empty
	}
}

// Copy returns a deep copy with the same slot count and stack-cap resolver.
func (v *Inventory) Copy() *Inventory {
	out := New(len(v.slots), v.maxStack)
	copy(out.slots, v.slots)
	return out
}

// Restore replaces slot contents from persisted data. The slot counts must
// match exactly.
func (v *Inventory) Restore(slots []protocol.ItemStack) error {
	if len(slots) != len(v.slots) {
		return ErrSlotCountMismatch
	}
	copy(v.slots, slots)
	for i, s := range v.slots {
		if s.IsEmpty() {
			v.slots[i] = protocol.Empty
		}
	}
	return nil
}

// Slots returns a copy of the slot contents.
func (v *Inventory) Slots() []protocol.ItemStack {
	out := make([]protocol.ItemStack, len(v.slots))
	copy(out, v.slots)
	return out
}

// OccupiedSlots counts non-empty slots.
func (v *Inventory) OccupiedSlots() int {
	n := 0
	for _, s := range v.slots {
		if !s.IsEmpty() {
			n++
		}
	}
	return n
}

// Digest is a blake3 content hash over slot contents, used for cheap
// change detection by the sync bridge and recorded in journals.
func (v *Inventory) Digest() [32]byte {
	h := blake3.New(32, nil)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(v.slots)))
	_, _ = h.Write(buf[:])
	for _, s := range v.slots {
		_, _ = h.Write([]byte(s.Item))
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(s.Count)))
		_, _ = h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
