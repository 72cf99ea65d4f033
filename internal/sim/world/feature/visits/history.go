package visits

// History is a bounded, newest-first container of settled visit records.
type History struct {
	cap     int
	records []Record
}

const defaultHistoryCap = 50

func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = defaultHistoryCap
	}
	return &History{cap: cap}
}

// Append inserts a record at the front and drops the oldest past the cap.
func (h *History) Append(r Record) {
	h.records = append([]Record{r}, h.records...)
	if len(h.records) > h.cap {
		h.records = h.records[:h.cap]
	}
}

// BulkLoad replaces contents with pre-existing records, preserving their
// original ticks and order (newest first expected). This is the migration
// path for data saved by earlier formats; no reflection needed.
func (h *History) BulkLoad(records []Record) {
	h.records = h.records[:0]
	h.records = append(h.records, records...)
	if len(h.records) > h.cap {
		h.records = h.records[:h.cap]
	}
}

// Records returns a copy, newest first.
func (h *History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

func (h *History) Len() int { return len(h.records) }
