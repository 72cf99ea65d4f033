package protocol

const (
	// Caller-contract violations (sentinel results, never faults).
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrEmptyReward = "E_EMPTY_REWARD"

	// Claim layer.
	ErrNoPermission = "E_NO_PERMISSION"
	ErrExpired      = "E_EXPIRED"
	ErrConflict     = "E_CONFLICT"

	// Restore/copy layer. Slot-count mismatch is the one hard failure:
	// truncating persisted slots silently would lose items.
	ErrSlotMismatch = "E_SLOT_MISMATCH"

	ErrStale    = "E_STALE"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:   {},
	ErrEmptyReward:  {},
	ErrNoPermission: {},
	ErrExpired:      {},
	ErrConflict:     {},
	ErrSlotMismatch: {},
	ErrStale:        {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
