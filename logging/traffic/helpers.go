package traffic

import (
	"context"

	"github.com/fdamstra/speed-limit-demonstration/logging"
)

const (
	// EventVehicleSpawned is emitted when a vehicle enters the road.
	EventVehicleSpawned logging.EventType = "traffic.vehicle_spawned"
	// EventVehicleRetired is emitted when a vehicle leaves the road and is removed.
	EventVehicleRetired logging.EventType = "traffic.vehicle_retired"
	// EventRedLightStop is emitted the first time a vehicle is halted by a red signal.
	EventRedLightStop logging.EventType = "traffic.red_light_stop"
)

// VehicleSpawnedPayload captures entry metadata for a new vehicle.
type VehicleSpawnedPayload struct {
	Position  float64 `json:"position"`
	LaneY     float64 `json:"laneY"`
	Direction string  `json:"direction"`
	Speed     float64 `json:"speed"`
}

// VehicleRetiredPayload captures exit metadata for a removed vehicle.
type VehicleRetiredPayload struct {
	Position float64 `json:"position"`
	HitRed   bool    `json:"hitRed"`
	AgeTicks uint64  `json:"ageTicks"`
}

// RedLightStopPayload captures the signal block that flagged a vehicle.
type RedLightStopPayload struct {
	Position  float64 `json:"position"`
	Direction string  `json:"direction"`
	StopLine  float64 `json:"stopLine"`
}

// VehicleSpawned publishes a vehicle entry event.
func VehicleSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload VehicleSpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventVehicleSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: "traffic",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// VehicleRetired publishes a vehicle removal event.
func VehicleRetired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload VehicleRetiredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventVehicleRetired,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: "traffic",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// RedLightStop publishes the first block of a vehicle by a red signal. The
// target names the light whose stop line halted the vehicle.
func RedLightStop(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, light logging.EntityRef, payload RedLightStopPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRedLightStop,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{light},
		Severity: logging.SeverityInfo,
		Category: "traffic",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
