package protocol

import "math"

// ItemStack is one (item kind, quantity) pair as it appears in slot buffers,
// reward lines, and notifications.
type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

func (s ItemStack) IsEmpty() bool { return s.Item == "" || s.Count <= 0 }

// Empty is the zero stack returned for out-of-range slot reads.
var Empty = ItemStack{}

// Vec3i is a block position. Distances are horizontal (X/Z); Y is elevation
// and does not contribute to travel distance.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) DistanceTo(o Vec3i) float64 {
	dx := float64(v.X - o.X)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dz*dz)
}
