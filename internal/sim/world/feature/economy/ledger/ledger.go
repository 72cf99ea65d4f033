// Package ledger keeps a town's claimable reward entries. Entries are
// append-only; the only mutable fields after creation are claim status and
// expiry, and status transitions are monotonic.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"townfare.dev/internal/protocol"
)

// DefaultTTL is applied to new entries when the ledger is built without an
// explicit TTL.
const DefaultTTL = 24 * time.Hour

type Status uint8

const (
	StatusUnclaimed Status = iota
	StatusClaimed
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusUnclaimed:
		return "UNCLAIMED"
	case StatusClaimed:
		return "CLAIMED"
	case StatusExpired:
		return "EXPIRED"
	}
	return "UNCLAIMED"
}

// ParseStatus degrades unknown persisted values to UNCLAIMED rather than
// dropping the entry.
func ParseStatus(s string) Status {
	switch s {
	case "CLAIMED":
		return StatusClaimed
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnclaimed
	}
}

// Entry is one claimable reward. ID, CreatedAt, Source, Lines and Claimant
// are immutable after creation.
type Entry struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Source    Source
	Lines     []protocol.ItemStack
	Status    Status

	// Claimant restricts who may claim; empty means anyone.
	Claimant string

	Note string
}

// IsExpired is a pure read of current time against ExpiresAt. It never
// mutates Status; only SetStatus/SweepExpired do that.
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

type Ledger struct {
	ttl     time.Duration
	entries []*Entry
	byID    map[string]*Entry
}

func New(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{ttl: ttl, byID: map[string]*Entry{}}
}

// Add appends a new unclaimed entry and returns its id. An empty line list
// is a caller error answered with a no-op signal, not a fault.
func (l *Ledger) Add(now time.Time, src Source, lines []protocol.ItemStack, claimant string) (string, bool) {
	kept := make([]protocol.ItemStack, 0, len(lines))
	for _, line := range lines {
		if line.IsEmpty() {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return "", false
	}
	e := &Entry{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
		Source:    src,
		Lines:     kept,
		Status:    StatusUnclaimed,
		Claimant:  claimant,
	}
	l.entries = append(l.entries, e)
	l.byID[e.ID] = e
	return e.ID, true
}

func (l *Ledger) Get(id string) (*Entry, bool) {
	e, ok := l.byID[id]
	return e, ok
}

// CanClaim reports whether claimantKey may claim the entry right now.
func (l *Ledger) CanClaim(id, claimantKey string, now time.Time) bool {
	e, ok := l.byID[id]
	if !ok {
		return false
	}
	if e.Status != StatusUnclaimed || e.IsExpired(now) {
		return false
	}
	return e.Claimant == "" || e.Claimant == claimantKey
}

// SetStatus is the claim/sweep hook. Transitions are monotonic: only
// UNCLAIMED -> CLAIMED or UNCLAIMED -> EXPIRED are applied. Returns whether
// the transition happened.
func (l *Ledger) SetStatus(id string, next Status) bool {
	e, ok := l.byID[id]
	if !ok {
		return false
	}
	if e.Status != StatusUnclaimed || next == StatusUnclaimed {
		return false
	}
	e.Status = next
	return true
}

// SetExpiry adjusts an entry's expiration. Expiry is the one timestamp that
// stays mutable (admin extensions).
func (l *Ledger) SetExpiry(id string, until time.Time) bool {
	e, ok := l.byID[id]
	if !ok {
		return false
	}
	e.ExpiresAt = until
	return true
}

// SweepExpired flips every expired UNCLAIMED entry to EXPIRED through the
// same monotonic transition and returns how many were flipped.
func (l *Ledger) SweepExpired(now time.Time) int {
	n := 0
	for _, e := range l.entries {
		if e.Status == StatusUnclaimed && e.IsExpired(now) {
			e.Status = StatusExpired
			n++
		}
	}
	return n
}

func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns the entries in insertion order. The slice is a copy; the
// pointed-to entries are live.
func (l *Ledger) Entries() []*Entry {
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// BulkLoad replaces ledger contents from persisted entries, preserving their
// original ids and timestamps. Entries without an id are dropped.
func (l *Ledger) BulkLoad(entries []*Entry) {
	l.entries = l.entries[:0]
	l.byID = map[string]*Entry{}
	for _, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		if e.Source == nil {
			e.Source = GenericSource{}
		}
		l.entries = append(l.entries, e)
		l.byID[e.ID] = e
	}
}
