package lifecycle

import (
	"context"

	"github.com/fdamstra/speed-limit-demonstration/logging"
)

const (
	// EventSimStarted is emitted when the simulation begins running.
	EventSimStarted logging.EventType = "lifecycle.sim_started"
	// EventSimPaused is emitted when the simulation stops running.
	EventSimPaused logging.EventType = "lifecycle.sim_paused"
	// EventSimReset is emitted when the world is reinitialized.
	EventSimReset logging.EventType = "lifecycle.sim_reset"
	// EventConfigUpdated is emitted after a configuration patch is applied.
	EventConfigUpdated logging.EventType = "lifecycle.config_updated"
	// EventViewerJoined is emitted when a render subscriber connects.
	EventViewerJoined logging.EventType = "lifecycle.viewer_joined"
	// EventViewerLeft is emitted when a render subscriber disconnects.
	EventViewerLeft logging.EventType = "lifecycle.viewer_left"
)

// ConfigUpdatedPayload captures the live configuration after a patch.
type ConfigUpdatedPayload struct {
	SpeedLimitMPH      float64 `json:"speedLimitMph"`
	MiddleLightPercent float64 `json:"middleLightPercent"`
	SpawnEverySeconds  float64 `json:"spawnEverySeconds"`
}

// ViewerPayload captures the transport endpoint of a render subscriber.
type ViewerPayload struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
}

// SimStarted publishes a run transition event.
func SimStarted(ctx context.Context, pub logging.Publisher, tick uint64, extra map[string]any) {
	publishTransition(ctx, pub, EventSimStarted, tick, extra)
}

// SimPaused publishes a pause transition event.
func SimPaused(ctx context.Context, pub logging.Publisher, tick uint64, extra map[string]any) {
	publishTransition(ctx, pub, EventSimPaused, tick, extra)
}

// SimReset publishes a reinitialization event.
func SimReset(ctx context.Context, pub logging.Publisher, tick uint64, extra map[string]any) {
	publishTransition(ctx, pub, EventSimReset, tick, extra)
}

func publishTransition(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "world", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Extra:    extra,
	})
}

// ConfigUpdated publishes the configuration state after a patch is applied.
func ConfigUpdated(ctx context.Context, pub logging.Publisher, tick uint64, payload ConfigUpdatedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConfigUpdated,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "world", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// ViewerJoined publishes a subscriber connect event.
func ViewerJoined(ctx context.Context, pub logging.Publisher, tick uint64, session logging.EntityRef, payload ViewerPayload, extra map[string]any) {
	publishViewer(ctx, pub, EventViewerJoined, tick, session, payload, extra)
}

// ViewerLeft publishes a subscriber disconnect event.
func ViewerLeft(ctx context.Context, pub logging.Publisher, tick uint64, session logging.EntityRef, payload ViewerPayload, extra map[string]any) {
	publishViewer(ctx, pub, EventViewerLeft, tick, session, payload, extra)
}

func publishViewer(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, session logging.EntityRef, payload ViewerPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    session,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
