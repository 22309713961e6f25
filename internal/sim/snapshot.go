package sim

// LightView is the render-facing copy of a traffic light.
type LightView struct {
	ID             LightID `json:"id"`
	Position       float64 `json:"position"`
	Phase          Phase   `json:"phase"`
	CycleSeconds   float64 `json:"cycleSeconds"`
	OffsetSeconds  float64 `json:"offsetSeconds"`
	ArrivalSeconds float64 `json:"arrivalSeconds"`
	Manual         bool    `json:"manual,omitempty"`
}

// VehicleView is the render-facing copy of a vehicle.
type VehicleView struct {
	ID        string    `json:"id"`
	Position  float64   `json:"position"`
	LaneY     float64   `json:"laneY"`
	Speed     float64   `json:"speed"`
	Direction Direction `json:"direction"`
	HitRed    bool      `json:"hitRed"`
}

// CounterView exposes the demonstration's running outcome totals.
type CounterView struct {
	Spawned         uint64 `json:"spawned"`
	Retired         uint64 `json:"retired"`
	Live            int    `json:"live"`
	RedStopsForward uint64 `json:"redStopsForward"`
	RedStopsReverse uint64 `json:"redStopsReverse"`
}

// Snapshot is the read-only per-tick state handed to renderers and
// broadcast subscribers. It carries everything needed to draw the scene
// without any simulation knowledge.
type Snapshot struct {
	Tick       uint64        `json:"tick"`
	SimSeconds float64       `json:"simSeconds"`
	Running    bool          `json:"running"`
	RoadLength float64       `json:"roadLength"`
	Lights     []LightView   `json:"lights"`
	Vehicles   []VehicleView `json:"vehicles"`
	Counters   CounterView   `json:"counters"`
	Config     Config        `json:"config"`
}
