package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fdamstra/speed-limit-demonstration/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by viewers.
	Version = 1

	// Type identifiers for outbound websocket payloads.
	typeHello         = "hello"
	typeState         = "state"
	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeHeartbeat     = "heartbeat"
)

// Client message type identifiers.
const (
	TypeConfig    = "config"
	TypeStart     = "start"
	TypePause     = "pause"
	TypeReset     = "reset"
	TypeHeartbeat = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeHello = typeHello
	TypeState = typeState
)

// ClientMessage captures an inbound websocket message from a control or
// viewer session.
type ClientMessage struct {
	Ver        int              `json:"ver,omitempty"`
	Type       string           `json:"type"`
	Config     *sim.ConfigPatch `json:"config,omitempty"`
	SentAt     int64            `json:"sentAt,omitempty"`
	CommandSeq *uint64          `json:"seq,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured
// message, rejecting unsupported protocol versions.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// ClientCommand maps an inbound message onto a simulation command. Origin
// metadata is populated by the hub when the command is accepted.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeConfig:
		if msg.Config == nil {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandUpdateConfig, Config: msg.Config}, true
	case TypeStart:
		return sim.Command{Type: sim.CommandStart}, true
	case TypePause:
		return sim.Command{Type: sim.CommandPause}, true
	case TypeReset:
		return sim.Command{Type: sim.CommandReset}, true
	default:
		return sim.Command{}, false
	}
}

// StateV1 is the version 1 per-tick state frame.
type StateV1 struct {
	Ver        int               `json:"ver"`
	Type       string            `json:"type"`
	Tick       uint64            `json:"t"`
	SimSeconds float64           `json:"simSeconds"`
	Running    bool              `json:"running"`
	ServerTime int64             `json:"serverTime"`
	RoadLength float64           `json:"roadLength"`
	Lights     []sim.LightView   `json:"lights"`
	Vehicles   []sim.VehicleView `json:"vehicles"`
	Counters   sim.CounterView   `json:"counters"`
	Config     sim.Config        `json:"config"`
}

// StateFromSnapshot builds the wire frame for a post-tick snapshot.
func StateFromSnapshot(snapshot sim.Snapshot, now time.Time) StateV1 {
	return StateV1{
		Ver:        Version,
		Type:       typeState,
		Tick:       snapshot.Tick,
		SimSeconds: snapshot.SimSeconds,
		Running:    snapshot.Running,
		ServerTime: now.UnixMilli(),
		RoadLength: snapshot.RoadLength,
		Lights:     snapshot.Lights,
		Vehicles:   snapshot.Vehicles,
		Counters:   snapshot.Counters,
		Config:     snapshot.Config,
	}
}

// EncodeState renders a versioned state frame.
func EncodeState(msg StateV1) ([]byte, error) {
	if msg.Type == "" {
		msg.Type = typeState
	}
	msg.Ver = Version
	return json.Marshal(msg)
}

// HelloV1 is the first frame sent to a new viewer session: its assigned
// session id plus an immediate state frame so the scene renders without
// waiting for the next tick.
type HelloV1 struct {
	Ver      int        `json:"ver"`
	Type     string     `json:"type"`
	Session  string     `json:"session"`
	TickRate int        `json:"tickRate"`
	Config   sim.Config `json:"config"`
	State    StateV1    `json:"state"`
}

// EncodeHello renders a versioned hello payload.
func EncodeHello(msg HelloV1) ([]byte, error) {
	if msg.Type == "" {
		msg.Type = typeHello
	}
	msg.Ver = Version
	if msg.TickRate == 0 {
		msg.TickRate = sim.TickRate
	}
	return json.Marshal(msg)
}

// CommandAck describes an acknowledgement of a staged command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
	}
	if msg.Tick > 0 {
		frame.Tick = msg.Tick
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
	}
	if msg.Retry {
		frame.Retry = true
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}
