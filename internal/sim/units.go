package sim

// The simulation runs in screen-oriented distance units and dilated time.
// Every conversion between real-world units (miles per hour, feet, seconds)
// and simulation units (distance units, ticks) goes through the constants and
// helpers in this file; nothing else in the repository is allowed to convert
// units on its own.
const (
	// FeetPerUnit maps real-world feet onto simulation distance units.
	FeetPerUnit = 2.0
	// TimeScale is the time dilation factor: simulated seconds that elapse
	// per real second.
	TimeScale = 5.0
	// TickRate is the target number of simulation ticks per real second.
	TickRate = 25
	// SimSecondsPerTick is the simulated time covered by a single tick.
	SimSecondsPerTick = TimeScale / TickRate

	feetPerMile    = 5280.0
	secondsPerHour = 3600.0
)

// Road geometry, expressed in real feet and converted once.
const (
	// RoadLengthFeet spans the visible road from the left edge to the right.
	RoadLengthFeet = 1056.0
	// RoadLengthUnits is the road span in simulation distance units.
	RoadLengthUnits = RoadLengthFeet / FeetPerUnit

	vehicleLengthFeet = 16.0
	// displayLengthFloorUnits is the minimum on-screen vehicle length used
	// for collision grouping regardless of the physical length.
	displayLengthFloorUnits = 10.0

	stopLineSetbackFeet = 25.0
	// StopLineSetbackUnits offsets each stop line from its light, on the
	// approach side for the travel direction.
	StopLineSetbackUnits = stopLineSetbackFeet / FeetPerUnit

	spawnLeadFeet = 80.0
	// SpawnLeadUnits is how far outside each road edge vehicles spawn.
	SpawnLeadUnits = spawnLeadFeet / FeetPerUnit

	retireMarginFeet = 120.0
	// RetireMarginUnits is how far past the opposite road edge a vehicle
	// must travel before it is removed from the live set.
	RetireMarginUnits = retireMarginFeet / FeetPerUnit

	// LaneOffsetUnits separates the two travel directions vertically.
	LaneOffsetUnits = 10.0
	// LaneToleranceUnits bounds the lateral distance within which two
	// same-direction vehicles are treated as sharing a lane.
	LaneToleranceUnits = 5.0
)

// VehicleLengthUnits is the effective vehicle length after applying the
// display floor.
var VehicleLengthUnits = maxFloat(vehicleLengthFeet/FeetPerUnit, displayLengthFloorUnits)

// FollowingDistanceUnits is the minimum permitted gap between a vehicle and
// the one ahead of it: one vehicle length plus a 20% buffer.
var FollowingDistanceUnits = VehicleLengthUnits * 1.2

// UnitsPerSimSecond converts a miles-per-hour speed into simulation distance
// units per simulated second.
func UnitsPerSimSecond(mph float64) float64 {
	return mph * feetPerMile / secondsPerHour / FeetPerUnit
}

// UnitsPerTick converts a miles-per-hour speed into simulation distance units
// per tick.
func UnitsPerTick(mph float64) float64 {
	return UnitsPerSimSecond(mph) * SimSecondsPerTick
}

// TravelSeconds reports the simulated seconds a vehicle moving at the given
// speed limit takes to travel from the forward-direction road origin to the
// given position. The speed limit must be positive.
func TravelSeconds(positionUnits, mph float64) float64 {
	return positionUnits / UnitsPerSimSecond(mph)
}

// TicksToSimSeconds converts a tick count into simulated seconds.
func TicksToSimSeconds(ticks uint64) float64 {
	return float64(ticks) * SimSecondsPerTick
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
