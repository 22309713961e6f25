package sim

// LightID names one of the three signalized intersections.
type LightID string

const (
	LightLeft   LightID = "left"
	LightMiddle LightID = "middle"
	LightRight  LightID = "right"
)

// LightCount is the fixed number of signalized intersections on the road.
const LightCount = 3

// TrafficLight is one signalized intersection. Phase is never mutated
// directly: it is recomputed every tick from the global clock, the offset,
// and the cycle duration.
type TrafficLight struct {
	ID           LightID
	Position     float64
	Phase        Phase
	CycleSeconds float64
	// OffsetSeconds is the effective phase offset: the configured manual
	// offset when one is set, otherwise the green-wave arrival time.
	OffsetSeconds float64
	// ArrivalSeconds is the forward-direction travel time from the road
	// origin to this light at the configured speed limit.
	ArrivalSeconds float64
	// Manual reports whether the offset was pinned by configuration rather
	// than derived from the arrival time.
	Manual bool
}

// StopLine reports the position a vehicle traveling in the given direction
// must halt before while this light is red.
func (l *TrafficLight) StopLine(dir Direction) float64 {
	return l.Position - dir.Sign()*StopLineSetbackUnits
}
