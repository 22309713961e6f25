package sim

import "math"

// Phase is a traffic light's current signal state.
type Phase string

const (
	PhaseGreen  Phase = "green"
	PhaseYellow Phase = "yellow"
	PhaseRed    Phase = "red"
)

// A cycle is partitioned into three contiguous windows in fixed order:
// green, then yellow, then red.
const (
	greenFraction  = 0.45
	yellowFraction = 0.10
)

// PhaseAt derives a light's phase from the global clock. It is a pure
// function of its inputs: the phase is recomputed from scratch on every call
// and never extrapolated from a previous value. The cycle duration must be
// positive; offsets may carry any sign and magnitude.
func PhaseAt(cycleSeconds, offsetSeconds float64, clock uint64) Phase {
	elapsed := TicksToSimSeconds(clock)
	effective := floorMod(elapsed-offsetSeconds, cycleSeconds)
	switch {
	case effective < cycleSeconds*greenFraction:
		return PhaseGreen
	case effective < cycleSeconds*(greenFraction+yellowFraction):
		return PhaseYellow
	default:
		return PhaseRed
	}
}

// GreenWaveOffsetSeconds derives the phase offset that opens a light's green
// window exactly when an unimpeded forward-direction vehicle, departing the
// road origin at simulated time zero at the speed limit, arrives at the
// light's position.
func GreenWaveOffsetSeconds(positionUnits, speedLimitMPH float64) float64 {
	return TravelSeconds(positionUnits, speedLimitMPH)
}

// floorMod wraps value into [0, modulus) regardless of sign.
func floorMod(value, modulus float64) float64 {
	remainder := math.Mod(value, modulus)
	if remainder < 0 {
		remainder += modulus
	}
	return remainder
}
