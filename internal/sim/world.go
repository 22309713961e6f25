package sim

import (
	"context"
	"fmt"

	"github.com/fdamstra/speed-limit-demonstration/logging"
	logginglifecycle "github.com/fdamstra/speed-limit-demonstration/logging/lifecycle"
	loggingtraffic "github.com/fdamstra/speed-limit-demonstration/logging/traffic"
)

// World owns the authoritative simulation state: the clock, the three
// lights, the live vehicle set, and the current configuration. It is mutated
// exclusively by the loop goroutine; all other callers interact through
// staged commands and read-only snapshots.
type World struct {
	cfg            Config
	clock          uint64
	lights         []*TrafficLight
	vehicles       []*Vehicle
	lastSpawnTick  uint64
	nextVehicleSeq uint64
	running        bool

	spawnedTotal    uint64
	retiredTotal    uint64
	redStopsForward uint64
	redStopsReverse uint64

	deps      Deps
	publisher logging.Publisher
}

// NewWorld constructs a world initialized from cfg. The zero Deps value is
// usable: events are dropped and the loop falls back to the system clock.
func NewWorld(cfg Config, deps Deps) *World {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	w := &World{
		cfg:       cfg.normalized(),
		deps:      deps,
		publisher: publisher,
	}
	w.initialize()
	return w
}

// initialize resets the clock to zero, clears the vehicle set, and places the
// three lights with their phases computed for clock zero.
func (w *World) initialize() {
	w.clock = 0
	w.lastSpawnTick = 0
	w.vehicles = nil
	w.lights = []*TrafficLight{
		{ID: LightLeft, Position: 0},
		{ID: LightMiddle, Position: w.middleLightPosition()},
		{ID: LightRight, Position: RoadLengthUnits},
	}
	w.refreshLights()
}

func (w *World) middleLightPosition() float64 {
	return RoadLengthUnits * w.cfg.MiddleLightPercent / 100
}

// refreshLights recomputes each light's timing metadata and phase for the
// current clock. Phase is always derived, never carried over.
func (w *World) refreshLights() {
	for i, light := range w.lights {
		light.CycleSeconds = w.cfg.CycleSeconds[i]
		light.ArrivalSeconds = GreenWaveOffsetSeconds(light.Position, w.cfg.SpeedLimitMPH)
		if manual := w.cfg.ManualOffsets[i]; manual != nil {
			light.OffsetSeconds = *manual
			light.Manual = true
		} else {
			light.OffsetSeconds = light.ArrivalSeconds
			light.Manual = false
		}
		light.Phase = PhaseAt(light.CycleSeconds, light.OffsetSeconds, w.clock)
	}
}

// Apply folds staged commands into the world. Commands are applied in order,
// atomically between ticks; they take effect on the next tick's phase
// computation rather than retroactively.
func (w *World) Apply(commands []Command) error {
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandUpdateConfig:
			if cmd.Config == nil {
				return fmt.Errorf("sim: UpdateConfig command without a patch")
			}
			w.applyConfigPatch(*cmd.Config)
		case CommandStart:
			w.start()
		case CommandPause:
			w.pause()
		case CommandReset:
			w.reset()
		default:
			return fmt.Errorf("sim: unknown command type %q", cmd.Type)
		}
	}
	return nil
}

// applyConfigPatch mutates the live configuration. A speed-limit change
// retunes every live vehicle's speed magnitude in place without touching
// positions; a middle-light change repositions only that light.
func (w *World) applyConfigPatch(patch ConfigPatch) {
	speedChanged := patch.apply(&w.cfg)
	w.lights[1].Position = w.middleLightPosition()
	if speedChanged {
		speed := UnitsPerTick(w.cfg.SpeedLimitMPH)
		for _, vehicle := range w.vehicles {
			vehicle.Speed = speed
		}
	}
	logginglifecycle.ConfigUpdated(context.Background(), w.publisher, w.clock,
		logginglifecycle.ConfigUpdatedPayload{
			SpeedLimitMPH:      w.cfg.SpeedLimitMPH,
			MiddleLightPercent: w.cfg.MiddleLightPercent,
			SpawnEverySeconds:  w.cfg.SpawnEverySeconds,
		}, nil)
}

func (w *World) start() {
	if w.running {
		return
	}
	w.running = true
	// Spawn immediately so the demonstration is visible without waiting a
	// full spawn interval.
	w.spawnPair()
	logginglifecycle.SimStarted(context.Background(), w.publisher, w.clock, nil)
}

func (w *World) pause() {
	if !w.running {
		return
	}
	w.running = false
	logginglifecycle.SimPaused(context.Background(), w.publisher, w.clock, nil)
}

func (w *World) reset() {
	w.running = false
	w.initialize()
	w.spawnedTotal = 0
	w.retiredTotal = 0
	w.redStopsForward = 0
	w.redStopsReverse = 0
	logginglifecycle.SimReset(context.Background(), w.publisher, w.clock, nil)
}

// Step advances the simulation by one tick: clock, conditional spawn, light
// phases, vehicle motion, retirement — strictly in that order. It is a no-op
// while the world is paused.
func (w *World) Step() {
	if !w.running {
		return
	}
	w.clock++
	if w.clock-w.lastSpawnTick >= w.cfg.spawnIntervalTicks() {
		w.spawnPair()
	}
	w.refreshLights()
	for _, stop := range AdvanceVehicles(w.vehicles, w.lights, 1) {
		w.recordRedStop(stop)
	}
	w.retireVehicles()
}

// spawnPair creates one forward and one reverse vehicle just outside the two
// road edges. Spawning is never retried or batched for skipped ticks.
func (w *World) spawnPair() {
	w.lastSpawnTick = w.clock
	speed := UnitsPerTick(w.cfg.SpeedLimitMPH)
	w.spawnVehicle(DirectionForward, -SpawnLeadUnits, LaneOffsetUnits, speed)
	w.spawnVehicle(DirectionReverse, RoadLengthUnits+SpawnLeadUnits, -LaneOffsetUnits, speed)
}

func (w *World) spawnVehicle(dir Direction, position, laneY, speed float64) {
	w.nextVehicleSeq++
	vehicle := &Vehicle{
		ID:        fmt.Sprintf("vehicle-%d", w.nextVehicleSeq),
		Position:  position,
		LaneY:     laneY,
		Speed:     speed,
		Direction: dir,
		SpawnTick: w.clock,
	}
	w.vehicles = append(w.vehicles, vehicle)
	w.spawnedTotal++
	loggingtraffic.VehicleSpawned(context.Background(), w.publisher, w.clock,
		logging.EntityRef{ID: vehicle.ID, Kind: logging.EntityKindVehicle},
		loggingtraffic.VehicleSpawnedPayload{
			Position:  vehicle.Position,
			LaneY:     vehicle.LaneY,
			Direction: string(vehicle.Direction),
			Speed:     vehicle.Speed,
		}, nil)
}

func (w *World) recordRedStop(stop RedStop) {
	if stop.Vehicle.Direction == DirectionForward {
		w.redStopsForward++
	} else {
		w.redStopsReverse++
	}
	loggingtraffic.RedLightStop(context.Background(), w.publisher, w.clock,
		logging.EntityRef{ID: stop.Vehicle.ID, Kind: logging.EntityKindVehicle},
		logging.EntityRef{ID: string(stop.Light.ID), Kind: logging.EntityKindLight},
		loggingtraffic.RedLightStopPayload{
			Position:  stop.Vehicle.Position,
			Direction: string(stop.Vehicle.Direction),
			StopLine:  stop.StopLine,
		}, nil)
}

// retireVehicles removes vehicles that traveled past the retire margin
// beyond the road edge opposite their spawn point.
func (w *World) retireVehicles() {
	kept := w.vehicles[:0]
	for _, vehicle := range w.vehicles {
		if !retired(vehicle) {
			kept = append(kept, vehicle)
			continue
		}
		w.retiredTotal++
		loggingtraffic.VehicleRetired(context.Background(), w.publisher, w.clock,
			logging.EntityRef{ID: vehicle.ID, Kind: logging.EntityKindVehicle},
			loggingtraffic.VehicleRetiredPayload{
				Position: vehicle.Position,
				HitRed:   vehicle.HitRed,
				AgeTicks: w.clock - vehicle.SpawnTick,
			}, nil)
	}
	w.vehicles = kept
}

func retired(vehicle *Vehicle) bool {
	if vehicle.Direction == DirectionForward {
		return vehicle.Position > RoadLengthUnits+RetireMarginUnits
	}
	return vehicle.Position < -RetireMarginUnits
}

// Snapshot copies the render-facing state. The copy is detached from the
// world and safe to hand to other goroutines.
func (w *World) Snapshot() Snapshot {
	lights := make([]LightView, len(w.lights))
	for i, light := range w.lights {
		lights[i] = LightView{
			ID:             light.ID,
			Position:       light.Position,
			Phase:          light.Phase,
			CycleSeconds:   light.CycleSeconds,
			OffsetSeconds:  light.OffsetSeconds,
			ArrivalSeconds: light.ArrivalSeconds,
			Manual:         light.Manual,
		}
	}
	vehicles := make([]VehicleView, len(w.vehicles))
	for i, vehicle := range w.vehicles {
		vehicles[i] = VehicleView{
			ID:        vehicle.ID,
			Position:  vehicle.Position,
			LaneY:     vehicle.LaneY,
			Speed:     vehicle.Speed,
			Direction: vehicle.Direction,
			HitRed:    vehicle.HitRed,
		}
	}
	return Snapshot{
		Tick:       w.clock,
		SimSeconds: TicksToSimSeconds(w.clock),
		Running:    w.running,
		RoadLength: RoadLengthUnits,
		Lights:     lights,
		Vehicles:   vehicles,
		Counters: CounterView{
			Spawned:         w.spawnedTotal,
			Retired:         w.retiredTotal,
			Live:            len(w.vehicles),
			RedStopsForward: w.redStopsForward,
			RedStopsReverse: w.redStopsReverse,
		},
		Config: w.cfg,
	}
}

// Deps returns the injected infrastructure dependencies.
func (w *World) Deps() Deps {
	return w.deps
}

// Running reports whether ticks currently advance the world.
func (w *World) Running() bool {
	return w.running
}

var _ EngineCore = (*World)(nil)
