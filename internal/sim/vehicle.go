package sim

// Direction is one of the two opposing travel directions along the road
// axis. It is immutable for a vehicle's lifetime.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// Sign reports the signed unit displacement for the direction: forward
// vehicles move toward increasing positions, reverse vehicles toward
// decreasing ones.
func (d Direction) Sign() float64 {
	if d == DirectionReverse {
		return -1
	}
	return 1
}

// Vehicle is one car on the road. Position is one-dimensional along the road
// axis; LaneY only groups same-direction vehicles for car-following and gives
// renderers a vertical offset.
type Vehicle struct {
	ID        string
	Position  float64
	LaneY     float64
	Speed     float64 // magnitude in units per tick; sign comes from Direction
	Direction Direction
	// HitRed is sticky: set the first time a red signal halts the vehicle
	// and never cleared for the rest of its lifetime.
	HitRed    bool
	SpawnTick uint64
}
