// Package fare computes per-settlement payments and distance milestone
// bonuses for batched visitor arrivals.
package fare

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"townfare.dev/internal/protocol"
	"townfare.dev/internal/sim/tuning"
)

// ThresholdNone marks a milestone result where no threshold was cleared or
// milestones are disabled. An absent reward is a valid outcome, not an error.
const ThresholdNone = -1

var logger = slog.With("pkg", "fare")

// Compute returns the payment quantity for one settled visit event.
//
// Two formulas are evaluated and the larger result wins: the legacy flat
// distance rate and the newer per-visitor base plus distance bonus. The max
// keeps payouts from regressing for hosts tuned against the old model.
func Compute(r tuning.FareRates, distance float64, visitors int) int {
	if visitors <= 0 {
		return 0
	}
	if distance < 0 {
		distance = 0
	}

	legacyUnits := 1
	if r.MetersPerUnit > 0 {
		if u := int(math.Floor(distance / float64(r.MetersPerUnit))); u > 1 {
			legacyUnits = u
		}
	}
	legacy := legacyUnits * visitors

	base := visitors * r.PerVisitorBase
	if r.BonusInterval > 0 && r.BonusThreshold > 0 && distance > float64(r.BonusThreshold) {
		base += int(math.Floor(distance / float64(r.BonusInterval)))
	}

	if base > legacy {
		return base
	}
	return legacy
}

// Milestone is one resolved distance threshold with its reward lines.
type Milestone struct {
	Threshold int
	Lines     []protocol.ItemStack
}

// Table is the resolved milestone table, thresholds ascending.
type Table struct {
	Enabled    bool
	Milestones []Milestone
}

// MilestoneResult reports the highest bar cleared for one visit event.
// Lines are already scaled by the visitor count.
type MilestoneResult struct {
	Threshold int
	Lines     []protocol.ItemStack
	Visitors  int
}

// CheckMilestones picks the largest configured threshold at or below the
// traveled distance and scales its reward lines by the visitor count.
func CheckMilestones(t Table, distance float64, visitors int) MilestoneResult {
	res := MilestoneResult{Threshold: ThresholdNone, Visitors: visitors}
	if !t.Enabled || visitors <= 0 {
		return res
	}
	var best *Milestone
	for i := range t.Milestones {
		m := &t.Milestones[i]
		if float64(m.Threshold) <= distance {
			if best == nil || m.Threshold > best.Threshold {
				best = m
			}
		}
	}
	if best == nil {
		return res
	}
	res.Threshold = best.Threshold
	res.Lines = make([]protocol.ItemStack, 0, len(best.Lines))
	for _, line := range best.Lines {
		res.Lines = append(res.Lines, protocol.ItemStack{Item: line.Item, Count: line.Count * visitors})
	}
	return res
}

// BuildTable resolves a rewards document against the item catalog. Malformed
// lines (unparseable, unknown item, non-positive count) are logged and
// skipped; the table never fails outright because of one bad line.
func BuildTable(doc tuning.RewardsDoc, knownItem func(string) bool) Table {
	t := Table{Enabled: doc.Enabled}
	for _, def := range doc.Milestones {
		if def.Distance <= 0 {
			continue
		}
		m := Milestone{Threshold: def.Distance}
		for _, raw := range def.Rewards {
			line, ok := parseLine(raw, knownItem)
			if !ok {
				logger.Warn("skipping malformed reward line",
					"milestone", def.Distance, "line", raw)
				continue
			}
			m.Lines = append(m.Lines, line)
		}
		t.Milestones = append(t.Milestones, m)
	}
	sort.Slice(t.Milestones, func(i, j int) bool {
		return t.Milestones[i].Threshold < t.Milestones[j].Threshold
	})
	return t
}

func parseLine(raw string, knownItem func(string) bool) (protocol.ItemStack, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return protocol.Empty, false
	}
	item := strings.TrimSpace(parts[0])
	if item == "" {
		return protocol.Empty, false
	}
	if knownItem != nil && !knownItem(item) {
		return protocol.Empty, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || count <= 0 {
		return protocol.Empty, false
	}
	return protocol.ItemStack{Item: item, Count: count}, true
}
