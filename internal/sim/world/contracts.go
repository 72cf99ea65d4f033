package world

import (
	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/world/feature/economy/ledger"
	"townfare.dev/internal/sim/world/feature/visits"
)

// VisitorObservation is one candidate visitor as reported by the world
// collaborator each tick. Ephemeral; never persisted.
type VisitorObservation struct {
	VisitorID   string
	Origin      string
	Destination string // may be visits.DestinationAny
	Pos         protocol.Vec3i
	OriginPos   protocol.Vec3i
	Settled     bool // the visitor has stopped moving
}

// ObservationSource is the world/entity collaborator. Spawning, movement and
// collision stay on the host side.
type ObservationSource interface {
	NearbyVisitorObservations(center protocol.Vec3i, radius int) []VisitorObservation
	RemoveVisitor(id string)
	SpawnVisitor(origin, destination string, pos protocol.Vec3i) string
}

// PopulationDirectory resolves town populations and candidate sets.
type PopulationDirectory interface {
	PopulationOf(id string) int
	CandidateIDs(excluding string) []string
}

// NotificationSink receives fire-and-forget updates. No return value, no
// delivery guarantee.
type NotificationSink interface {
	NotifyRewardAdded(town string, e *ledger.Entry)
	NotifySlotBufferChanged(town string, slots []protocol.ItemStack)
}

// PersistenceSink saves and loads town state on demand. Serialization format
// is the sink's concern.
type PersistenceSink interface {
	SaveVisitHistory(town string, records []visits.Record) error
	LoadVisitHistory(town string) ([]visits.Record, error)
	SaveLedger(town string, entries []*ledger.Entry) error
	LoadLedger(town string) ([]*ledger.Entry, error)
}

// SettlementEvent is the journal view of one settled visit event.
type SettlementEvent struct {
	Tick              uint64  `json:"tick"`
	Town              string  `json:"town"`
	Origin            string  `json:"origin"`
	Visitors          int     `json:"visitors"`
	Distance          float64 `json:"distance"`
	Fare              int     `json:"fare"`
	MilestoneDistance int     `json:"milestone_distance"`
	RewardID          string  `json:"reward_id"`
	BufferDigest      string  `json:"buffer_digest"`
}

// SettlementRecorder is the journal hook; nil recorders are skipped.
type SettlementRecorder interface {
	RecordSettlement(e SettlementEvent)
}
