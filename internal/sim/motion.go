package sim

import "math"

// RedStop records the first time a red signal halted a vehicle, for event
// publication and per-direction outcome counters.
type RedStop struct {
	Vehicle  *Vehicle
	Light    *TrafficLight
	StopLine float64
}

// AdvanceVehicles moves every vehicle by up to ticksElapsed steps. Within a
// step, each vehicle's candidate position is checked against the frozen
// pre-step positions of all other vehicles and the already-refreshed light
// phases; the admitted positions are then committed together, so the update
// behaves as if simultaneous. Returned are the red stops that set a vehicle's
// sticky HitRed flag during this call.
func AdvanceVehicles(vehicles []*Vehicle, lights []*TrafficLight, ticksElapsed int) []RedStop {
	var stops []RedStop
	next := make([]float64, len(vehicles))
	for step := 0; step < ticksElapsed; step++ {
		for i, vehicle := range vehicles {
			candidate := vehicle.Position + vehicle.Direction.Sign()*vehicle.Speed
			if followingBlocked(vehicle, candidate, vehicles) {
				// Spacing takes precedence: signal state is not
				// evaluated for a vehicle held by the car ahead.
				next[i] = vehicle.Position
				continue
			}
			if light := signalBlock(vehicle, candidate, lights); light != nil {
				next[i] = vehicle.Position
				if !vehicle.HitRed {
					vehicle.HitRed = true
					stops = append(stops, RedStop{
						Vehicle:  vehicle,
						Light:    light,
						StopLine: light.StopLine(vehicle.Direction),
					})
				}
				continue
			}
			next[i] = candidate
		}
		for i, vehicle := range vehicles {
			vehicle.Position = next[i]
		}
	}
	return stops
}

// followingBlocked reports whether moving to candidate would close the gap to
// any same-lane vehicle ahead below the minimum following distance. Gaps are
// measured against the other vehicle's pre-step position.
func followingBlocked(vehicle *Vehicle, candidate float64, vehicles []*Vehicle) bool {
	sign := vehicle.Direction.Sign()
	for _, other := range vehicles {
		if other == vehicle || other.Direction != vehicle.Direction {
			continue
		}
		if math.Abs(other.LaneY-vehicle.LaneY) > LaneToleranceUnits {
			continue
		}
		if sign*(other.Position-vehicle.Position) <= 0 {
			continue // alongside or behind
		}
		if sign*(other.Position-candidate) < FollowingDistanceUnits {
			return true
		}
	}
	return false
}

// signalBlock returns the first red light, in slice order, whose stop line
// halts the vehicle this step. A vehicle already past a stop line is never
// re-blocked by that light. Crossing detection compares the signed current
// and candidate positions against the line so that a single step larger than
// the setback cannot skip over it undetected; a vehicle holding within one
// following distance of a red stop line stays blocked until the phase leaves
// red.
func signalBlock(vehicle *Vehicle, candidate float64, lights []*TrafficLight) *TrafficLight {
	sign := vehicle.Direction.Sign()
	for _, light := range lights {
		line := light.StopLine(vehicle.Direction)
		remaining := sign * (line - vehicle.Position)
		if remaining <= 0 {
			continue // at or past the line already
		}
		if light.Phase != PhaseRed {
			continue // yellow and green crossings are permitted
		}
		if sign*(candidate-line) >= 0 {
			return light // would cross the line this step
		}
		if remaining <= FollowingDistanceUnits {
			return light // holding at the line
		}
	}
	return nil
}
