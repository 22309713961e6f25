package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fdamstra/speed-limit-demonstration/internal/net/proto"
	"github.com/fdamstra/speed-limit-demonstration/internal/sim"
	"github.com/fdamstra/speed-limit-demonstration/internal/telemetry"
	"github.com/fdamstra/speed-limit-demonstration/logging"
	logginglifecycle "github.com/fdamstra/speed-limit-demonstration/logging/lifecycle"
	loggingsimulation "github.com/fdamstra/speed-limit-demonstration/logging/simulation"
)

// Hub owns the simulation engine, the viewer subscriber registry, and the
// per-tick broadcast. Viewers never touch the world directly: inbound control
// messages are staged as commands on the engine queue and applied by the loop
// goroutine before the next tick.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	latest      sim.Snapshot

	engine    sim.Engine
	world     *sim.World
	publisher logging.Publisher
	telemetry *telemetryCounters
	logger    telemetry.Logger
}

// HubConfig wires the hub's engine and infrastructure dependencies.
type HubConfig struct {
	Sim       sim.Config
	Loop      sim.LoopConfig
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Autostart bool
}

// DefaultHubConfig returns the baseline hub wiring.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Sim:       sim.DefaultConfig(),
		Loop:      sim.DefaultLoopConfig(),
		Autostart: true,
	}
}

// subscriberConn is the connection surface the broadcast path writes to.
// *websocket.Conn satisfies it.
type subscriberConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one websocket viewer session. Writes are serialized and
// carry a deadline so a stalled peer cannot block the broadcast.
type Subscriber struct {
	id             string
	conn           subscriberConn
	mu             sync.Mutex
	lastCommandSeq uint64
}

// WriteMessage writes a frame to the subscriber with the broadcast deadline.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// LastCommandSeq reports the highest acknowledged client command sequence.
func (s *Subscriber) LastCommandSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommandSeq
}

// StoreLastCommandSeq records the highest acknowledged client command sequence.
func (s *Subscriber) StoreLastCommandSeq(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommandSeq = seq
}

// ID reports the server-assigned session identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// NewHub constructs a hub with its world and loop. The publisher receives
// traffic and lifecycle events from the world, budget overruns from the loop,
// and viewer events from the hub itself.
func NewHub(cfg HubConfig, publisher logging.Publisher) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	hub := &Hub{
		subscribers: make(map[string]*Subscriber),
		publisher:   publisher,
		telemetry:   newTelemetryCounters(),
		logger:      logger,
	}

	world := sim.NewWorld(cfg.Sim, sim.Deps{
		Logger:    logger,
		Metrics:   cfg.Metrics,
		Clock:     logging.SystemClock{},
		Publisher: publisher,
	})
	hub.world = world
	hub.latest = world.Snapshot()
	hub.engine = sim.NewLoop(world, cfg.Loop, sim.LoopHooks{
		AfterStep: hub.afterStep,
		OnQueueWarning: func(length int) {
			logger.Printf("[backpressure] command queue length %d", length)
		},
	})

	if cfg.Autostart {
		hub.engine.Enqueue(sim.Command{
			SessionID: "autostart",
			Type:      sim.CommandStart,
			IssuedAt:  time.Now(),
		})
	}

	return hub
}

// RunSimulation drives the engine loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.engine.Run(stop)
}

// afterStep runs on the loop goroutine after every tick: it records the tick
// budget, caches the fresh snapshot, and fans it out to all subscribers.
func (h *Hub) afterStep(result sim.LoopStepResult) {
	h.mu.Lock()
	h.latest = result.Snapshot
	h.mu.Unlock()

	h.telemetry.RecordTickDuration(result.Duration)
	if result.Budget > 0 && result.Duration > result.Budget {
		loggingsimulation.TickBudgetOverrun(context.Background(), h.publisher, result.Tick,
			loggingsimulation.TickBudgetOverrunPayload{
				DurationMillis: result.Duration.Milliseconds(),
				BudgetMillis:   result.Budget.Milliseconds(),
				Ratio:          float64(result.Duration) / float64(result.Budget),
			}, nil)
	}

	h.broadcastState(result.Snapshot)
}

// broadcastState sends one state frame to every subscriber. The registry is
// copied under the lock and writes happen outside it; peers whose writes fail
// are disconnected.
func (h *Hub) broadcastState(snapshot sim.Snapshot) {
	data, frames, err := h.MarshalState(snapshot)
	if err != nil {
		h.logger.Printf("failed to marshal state frame: %v", err)
		return
	}

	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send update to %s: %v", sub.id, err)
			h.Disconnect(sub.id)
		}
	}
	if len(subs) > 0 {
		h.telemetry.RecordBroadcast(len(data)*len(subs), frames*len(subs))
	}
}

// MarshalState renders a snapshot as a wire state frame, returning the
// payload and the number of entities it carries.
func (h *Hub) MarshalState(snapshot sim.Snapshot) ([]byte, int, error) {
	frame := proto.StateFromSnapshot(snapshot, time.Now())
	data, err := proto.EncodeState(frame)
	if err != nil {
		return nil, 0, err
	}
	return data, len(snapshot.Lights) + len(snapshot.Vehicles), nil
}

// Subscribe registers a websocket viewer under a fresh session id and
// returns the subscriber together with the snapshot for its hello frame.
func (h *Hub) Subscribe(conn *websocket.Conn) (*Subscriber, sim.Snapshot) {
	sub := &Subscriber{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	snapshot := h.latest
	h.mu.Unlock()

	h.telemetry.RecordSubscribers(count)
	logginglifecycle.ViewerJoined(context.Background(), h.publisher, snapshot.Tick,
		logging.EntityRef{ID: sub.id, Kind: logging.EntityKindSession},
		logginglifecycle.ViewerPayload{RemoteAddr: conn.RemoteAddr().String()}, nil)
	return sub, snapshot
}

// Disconnect removes a subscriber and closes its connection.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	sub, ok := h.subscribers[sessionID]
	if ok {
		delete(h.subscribers, sessionID)
	}
	count := len(h.subscribers)
	tick := h.latest.Tick
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.conn.Close()
	h.telemetry.RecordSubscribers(count)
	logginglifecycle.ViewerLeft(context.Background(), h.publisher, tick,
		logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		logginglifecycle.ViewerPayload{}, nil)
}

// StageCommand validates a control command and enqueues it for the next
// tick. It returns the staged command with origin metadata filled in, or a
// reject reason.
func (h *Hub) StageCommand(cmd sim.Command) (sim.Command, bool, string) {
	var zero sim.Command
	switch cmd.Type {
	case sim.CommandUpdateConfig:
		if cmd.Config == nil || cmd.Config.Empty() {
			return zero, false, CommandRejectInvalid
		}
	case sim.CommandStart, sim.CommandPause, sim.CommandReset:
	default:
		return zero, false, CommandRejectInvalid
	}

	cmd.OriginTick = h.LatestSnapshot().Tick
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	if ok, reason := h.engine.Enqueue(cmd); !ok {
		return zero, false, reason
	}
	return cmd, true, ""
}

// StageConfigPatch stages a configuration update from a control session.
func (h *Hub) StageConfigPatch(sessionID string, patch sim.ConfigPatch) (sim.Command, bool, string) {
	return h.StageCommand(sim.Command{
		SessionID: sessionID,
		Type:      sim.CommandUpdateConfig,
		Config:    &patch,
	})
}

// StageLifecycle stages a start, pause, or reset command from a control
// session.
func (h *Hub) StageLifecycle(sessionID string, commandType sim.CommandType) (sim.Command, bool, string) {
	return h.StageCommand(sim.Command{
		SessionID: sessionID,
		Type:      commandType,
	})
}

// LatestSnapshot returns the most recent post-tick snapshot.
func (h *Hub) LatestSnapshot() sim.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// CurrentConfig returns the configuration from the latest snapshot.
func (h *Hub) CurrentConfig() sim.Config {
	return h.LatestSnapshot().Config
}

// Diagnostics aggregates loop, broadcast, and outcome counters for the
// diagnostics endpoint.
type Diagnostics struct {
	Tick        uint64            `json:"tick"`
	SimSeconds  float64           `json:"simSeconds"`
	Running     bool              `json:"running"`
	Counters    sim.CounterView   `json:"counters"`
	Subscribers int               `json:"subscribers"`
	Pending     int               `json:"pendingCommands"`
	Telemetry   telemetrySnapshot `json:"telemetry"`
}

// DiagnosticsSnapshot assembles the current diagnostics view.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	h.mu.Lock()
	snapshot := h.latest
	subscribers := len(h.subscribers)
	h.mu.Unlock()

	return Diagnostics{
		Tick:        snapshot.Tick,
		SimSeconds:  snapshot.SimSeconds,
		Running:     snapshot.Running,
		Counters:    snapshot.Counters,
		Subscribers: subscribers,
		Pending:     h.engine.Pending(),
		Telemetry:   h.telemetry.Snapshot(),
	}
}
