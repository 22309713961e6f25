package sim

import (
	"math"
	"testing"
)

func redLightAt(position float64) *TrafficLight {
	return &TrafficLight{ID: LightMiddle, Position: position, Phase: PhaseRed, CycleSeconds: 30}
}

func TestSignalHoldBlocksBeforeRedStopLine(t *testing.T) {
	vehicle := &Vehicle{ID: "a", Position: 240, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	light := redLightAt(264) // stop line 251.5

	stops := AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)

	if vehicle.Position != 240 {
		t.Fatalf("vehicle moved to %v while held at red", vehicle.Position)
	}
	if !vehicle.HitRed {
		t.Fatalf("expected sticky hit-red flag after red block")
	}
	if len(stops) != 1 || stops[0].Light != light {
		t.Fatalf("expected one recorded red stop for the blocking light, got %+v", stops)
	}
}

func TestSignalCrossingCaughtAtHighSpeed(t *testing.T) {
	// A displacement larger than the setback must not skip over the line.
	vehicle := &Vehicle{ID: "a", Position: 200, LaneY: LaneOffsetUnits, Speed: 100, Direction: DirectionForward}
	light := redLightAt(264)

	AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)

	if vehicle.Position != 200 {
		t.Fatalf("vehicle skipped the stop line to %v", vehicle.Position)
	}
	if !vehicle.HitRed {
		t.Fatalf("expected hit-red flag on crossing block")
	}
}

func TestYellowAndGreenCrossingsPermitted(t *testing.T) {
	for _, phase := range []Phase{PhaseGreen, PhaseYellow} {
		vehicle := &Vehicle{ID: "a", Position: 248, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
		light := redLightAt(264)
		light.Phase = phase

		AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)

		if vehicle.Position != 256.8 {
			t.Fatalf("phase %s: vehicle at %v, want 256.8", phase, vehicle.Position)
		}
		if vehicle.HitRed {
			t.Fatalf("phase %s: hit-red flag set on permitted crossing", phase)
		}
	}
}

func TestVehiclePastLineNotReblocked(t *testing.T) {
	// Between the stop line (251.5) and the light itself.
	vehicle := &Vehicle{ID: "a", Position: 255, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	light := redLightAt(264)

	AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)

	if vehicle.Position != 263.8 {
		t.Fatalf("vehicle past the line was re-blocked, at %v", vehicle.Position)
	}
	if vehicle.HitRed {
		t.Fatalf("vehicle past the line was flagged")
	}
}

func TestStoppedVehicleStaysStoppedWhileRed(t *testing.T) {
	vehicle := &Vehicle{ID: "a", Position: 245, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	light := redLightAt(264)

	for i := 0; i < 10; i++ {
		AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)
		if vehicle.Position != 245 {
			t.Fatalf("tick %d: held vehicle moved to %v", i, vehicle.Position)
		}
	}

	light.Phase = PhaseGreen
	AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)
	if vehicle.Position != 253.8 {
		t.Fatalf("vehicle did not resume on green, at %v", vehicle.Position)
	}
	if !vehicle.HitRed {
		t.Fatalf("hit-red flag cleared after green release")
	}
}

func TestFollowingBlockPrecedesSignalCheck(t *testing.T) {
	leader := &Vehicle{ID: "lead", Position: 250, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	trailer := &Vehicle{ID: "trail", Position: 242, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	light := redLightAt(264)

	AdvanceVehicles([]*Vehicle{leader, trailer}, []*TrafficLight{light}, 1)

	if !leader.HitRed {
		t.Fatalf("leader holding at the line was not flagged")
	}
	if trailer.HitRed {
		t.Fatalf("trailer blocked by spacing must not be flagged by the signal")
	}
	if trailer.Position != 242 {
		t.Fatalf("trailer moved to %v while spacing-blocked", trailer.Position)
	}
}

func TestNoPassingKeepsFollowingDistance(t *testing.T) {
	leader := &Vehicle{ID: "lead", Position: 100, LaneY: LaneOffsetUnits, Speed: 0, Direction: DirectionForward}
	trailer := &Vehicle{ID: "trail", Position: 40, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}

	for i := 0; i < 20; i++ {
		AdvanceVehicles([]*Vehicle{leader, trailer}, nil, 1)
		if gap := leader.Position - trailer.Position; gap < FollowingDistanceUnits-1e-9 {
			t.Fatalf("tick %d: gap %v below following distance", i, gap)
		}
	}
}

func TestOppositeDirectionsIgnoreEachOther(t *testing.T) {
	forward := &Vehicle{ID: "f", Position: 100, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	reverse := &Vehicle{ID: "r", Position: 105, LaneY: -LaneOffsetUnits, Speed: 8.8, Direction: DirectionReverse}

	AdvanceVehicles([]*Vehicle{forward, reverse}, nil, 1)

	if forward.Position != 108.8 {
		t.Fatalf("forward vehicle blocked by opposing traffic, at %v", forward.Position)
	}
	if reverse.Position != 96.2 {
		t.Fatalf("reverse vehicle blocked by opposing traffic, at %v", reverse.Position)
	}
}

func TestReverseDirectionStopLine(t *testing.T) {
	// For reverse travel the stop line sits past the light: 264 + 12.5.
	vehicle := &Vehicle{ID: "a", Position: 290, LaneY: -LaneOffsetUnits, Speed: 8.8, Direction: DirectionReverse}
	light := redLightAt(264)

	AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)
	if vehicle.Position != 281.2 {
		t.Fatalf("reverse vehicle outside the hold window was blocked, at %v", vehicle.Position)
	}

	AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)
	if vehicle.Position != 281.2 {
		t.Fatalf("reverse vehicle inside the hold window moved, at %v", vehicle.Position)
	}
	if !vehicle.HitRed {
		t.Fatalf("reverse vehicle not flagged at red")
	}
}

func TestAdvanceUsesFrozenSnapshot(t *testing.T) {
	// The trailer's gap is measured against the leader's pre-step position
	// even though the leader moves in the same pass.
	leader := &Vehicle{ID: "lead", Position: 100, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	trailer := &Vehicle{ID: "trail", Position: 85, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}

	AdvanceVehicles([]*Vehicle{leader, trailer}, nil, 1)

	if leader.Position != 108.8 {
		t.Fatalf("leader at %v, want 108.8", leader.Position)
	}
	if trailer.Position != 85 {
		t.Fatalf("trailer at %v, want pre-step hold at 85", trailer.Position)
	}
}

func TestZeroSpeedIsValidDegenerateInput(t *testing.T) {
	parked := &Vehicle{ID: "p", Position: 100, LaneY: LaneOffsetUnits, Speed: 0, Direction: DirectionForward}
	light := redLightAt(105) // forward stop line 92.5 is behind the vehicle

	AdvanceVehicles([]*Vehicle{parked}, []*TrafficLight{light}, 5)

	if parked.Position != 100 {
		t.Fatalf("zero-speed vehicle moved to %v", parked.Position)
	}
}

func TestDirectionMonotonicity(t *testing.T) {
	lights := []*TrafficLight{redLightAt(100), redLightAt(300)}
	forward := &Vehicle{ID: "f", Position: -40, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	reverse := &Vehicle{ID: "r", Position: 500, LaneY: -LaneOffsetUnits, Speed: 8.8, Direction: DirectionReverse}
	vehicles := []*Vehicle{forward, reverse}

	prevForward, prevReverse := forward.Position, reverse.Position
	for i := 0; i < 100; i++ {
		if i%17 == 0 {
			for _, light := range lights {
				if light.Phase == PhaseRed {
					light.Phase = PhaseGreen
				} else {
					light.Phase = PhaseRed
				}
			}
		}
		AdvanceVehicles(vehicles, lights, 1)
		if forward.Position < prevForward {
			t.Fatalf("tick %d: forward vehicle reversed from %v to %v", i, prevForward, forward.Position)
		}
		if reverse.Position > prevReverse {
			t.Fatalf("tick %d: reverse vehicle reversed from %v to %v", i, prevReverse, reverse.Position)
		}
		prevForward, prevReverse = forward.Position, reverse.Position
	}
}

func TestStickyFlagSurvivesLifetime(t *testing.T) {
	vehicle := &Vehicle{ID: "a", Position: 245, LaneY: LaneOffsetUnits, Speed: 8.8, Direction: DirectionForward}
	light := redLightAt(264)

	AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)
	if !vehicle.HitRed {
		t.Fatalf("vehicle not flagged at red")
	}

	light.Phase = PhaseGreen
	for i := 0; i < 50; i++ {
		AdvanceVehicles([]*Vehicle{vehicle}, []*TrafficLight{light}, 1)
		if !vehicle.HitRed {
			t.Fatalf("tick %d: sticky flag cleared", i)
		}
	}
	if math.Abs(vehicle.Position-(245+50*8.8)) > 1e-9 {
		t.Fatalf("vehicle at %v after green run", vehicle.Position)
	}
}
