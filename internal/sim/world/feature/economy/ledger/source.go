package ledger

import "encoding/json"

// Source categories as persisted.
const (
	CategoryMilestone = "MILESTONE"
	CategoryFare      = "FARE"
	CategoryArrival   = "ARRIVAL" // bundled fare + milestone settlement
	CategoryTrade     = "TRADE"
	CategoryJob       = "JOB"
	CategoryAdmin     = "ADMIN"
	CategoryCourier   = "COURIER"
	CategoryOther     = "OTHER"
)

// Source identifies why a reward entry exists. Each category carries its own
// typed payload; GenericSource is the forward-compatible fallback for
// categories this build does not know.
type Source interface {
	Category() string
}

type MilestoneSource struct {
	Origin   string `json:"origin"`
	Distance int    `json:"distance"`
	Visitors int    `json:"visitors"`
}

func (MilestoneSource) Category() string { return CategoryMilestone }

type FareSource struct {
	Origin   string `json:"origin"`
	Visitors int    `json:"visitors"`
	Amount   int    `json:"amount"`
}

func (FareSource) Category() string { return CategoryFare }

// ArrivalSource bundles fare and milestone payouts for one settled visit
// event into a single entry, keeping notification volume proportional to
// visit events rather than reward categories.
type ArrivalSource struct {
	Origin            string `json:"origin"`
	Visitors          int    `json:"visitors"`
	Fare              int    `json:"fare"`
	MilestoneDistance int    `json:"milestone_distance"` // ThresholdNone when no bar cleared
}

func (ArrivalSource) Category() string { return CategoryArrival }

type TradeSource struct {
	TradeID string `json:"trade_id"`
}

func (TradeSource) Category() string { return CategoryTrade }

type JobSource struct {
	JobID string `json:"job_id"`
}

func (JobSource) Category() string { return CategoryJob }

type AdminSource struct {
	Note string `json:"note"`
}

func (AdminSource) Category() string { return CategoryAdmin }

type CourierSource struct {
	CourierID string `json:"courier_id"`
}

func (CourierSource) Category() string { return CategoryCourier }

// GenericSource preserves entries whose category this build cannot resolve.
// Persisted value must not be dropped on load.
type GenericSource struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s GenericSource) Category() string {
	if s.Kind == "" {
		return CategoryOther
	}
	return s.Kind
}

// EncodeSource flattens a source for persistence.
func EncodeSource(src Source) (category string, payload []byte) {
	if src == nil {
		src = GenericSource{}
	}
	if g, ok := src.(GenericSource); ok {
		return g.Category(), g.Payload
	}
	b, err := json.Marshal(src)
	if err != nil {
		return src.Category(), nil
	}
	return src.Category(), b
}

// DecodeSource rebuilds a source from persisted data. Unknown categories
// degrade to GenericSource so the entry survives the round trip.
func DecodeSource(category string, payload []byte) Source {
	decode := func(dst Source) (Source, bool) {
		if len(payload) == 0 {
			return dst, true
		}
		if err := json.Unmarshal(payload, dst); err != nil {
			return nil, false
		}
		return dst, true
	}
	var (
		src Source
		ok  bool
	)
	switch category {
	case CategoryMilestone:
		src, ok = decode(&MilestoneSource{})
	case CategoryFare:
		src, ok = decode(&FareSource{})
	case CategoryArrival:
		src, ok = decode(&ArrivalSource{})
	case CategoryTrade:
		src, ok = decode(&TradeSource{})
	case CategoryJob:
		src, ok = decode(&JobSource{})
	case CategoryAdmin:
		src, ok = decode(&AdminSource{})
	case CategoryCourier:
		src, ok = decode(&CourierSource{})
	}
	if ok && src != nil {
		return derefSource(src)
	}
	return GenericSource{Kind: category, Payload: payload}
}

func derefSource(src Source) Source {
	switch s := src.(type) {
	case *MilestoneSource:
		return *s
	case *FareSource:
		return *s
	case *ArrivalSource:
		return *s
	case *TradeSource:
		return *s
	case *JobSource:
		return *s
	case *AdminSource:
		return *s
	case *CourierSource:
		return *s
	default:
		return src
	}
}
