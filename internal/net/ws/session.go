package ws

import (
	"time"

	"github.com/gorilla/websocket"

	server "github.com/fdamstra/speed-limit-demonstration"
	"github.com/fdamstra/speed-limit-demonstration/internal/net/proto"
	"github.com/fdamstra/speed-limit-demonstration/internal/sim"
	"github.com/fdamstra/speed-limit-demonstration/internal/telemetry"
)

// Handler coordinates a websocket session for an anonymous viewer: the hello
// handshake, the per-tick state frames written by the hub broadcast, and the
// inbound control messages staged as commands.
type Handler struct {
	hub    *server.Hub
	logger telemetry.Logger
}

// NewHandler constructs a websocket session handler for the given hub.
func NewHandler(hub *server.Hub, logger telemetry.Logger) *Handler {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &Handler{hub: hub, logger: logger}
}

// Serve runs the session read loop until the connection fails or closes.
func (h *Handler) Serve(conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	sub, snapshot := h.hub.Subscribe(conn)
	sessionID := sub.ID()

	hello, err := proto.EncodeHello(proto.HelloV1{
		Session: sessionID,
		Config:  snapshot.Config,
		State:   proto.StateFromSnapshot(snapshot, time.Now()),
	})
	if err != nil {
		h.logger.Printf("failed to marshal hello for %s: %v", sessionID, err)
		h.hub.Disconnect(sessionID)
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, hello); err != nil {
		h.hub.Disconnect(sessionID)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(sessionID)
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sessionID, err)
			continue
		}

		if msg.Type == proto.TypeHeartbeat {
			if !h.echoHeartbeat(sub, sessionID, msg) {
				return
			}
			continue
		}

		if !h.stageCommand(sub, sessionID, msg) {
			return
		}
	}
}

// stageCommand maps a client message onto a simulation command, deduplicates
// by client sequence, and reports the outcome. It returns false when the
// session should end.
func (h *Handler) stageCommand(sub *server.Subscriber, sessionID string, msg proto.ClientMessage) bool {
	seq := uint64(0)
	if msg.CommandSeq != nil && *msg.CommandSeq > 0 {
		seq = *msg.CommandSeq
	}

	command, ok := proto.ClientCommand(msg)
	if !ok {
		h.logger.Printf("unknown message type %q from %s", msg.Type, sessionID)
		return h.sendReject(sub, sessionID, seq, server.CommandRejectInvalid, false)
	}
	command.SessionID = sessionID

	if seq > 0 {
		if last := sub.LastCommandSeq(); last > 0 && seq <= last {
			// Duplicate delivery of an already-staged command: re-ack.
			return h.sendAck(sub, sessionID, seq, 0)
		}
	}

	staged, ok, reason := h.hub.StageCommand(command)
	if !ok {
		retry := reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull
		return h.sendReject(sub, sessionID, seq, reason, retry)
	}
	if seq > 0 {
		if !h.sendAck(sub, sessionID, seq, staged.OriginTick) {
			return false
		}
		sub.StoreLastCommandSeq(seq)
	}
	return true
}

func (h *Handler) sendAck(sub *server.Subscriber, sessionID string, seq, tick uint64) bool {
	if seq == 0 {
		return true
	}
	data, err := proto.EncodeCommandAck(proto.CommandAck{Seq: seq, Tick: tick})
	if err != nil {
		h.logger.Printf("failed to marshal ack for %s: %v", sessionID, err)
		return true
	}
	return h.write(sub, sessionID, data)
}

func (h *Handler) sendReject(sub *server.Subscriber, sessionID string, seq uint64, reason string, retry bool) bool {
	if seq == 0 {
		return true
	}
	data, err := proto.EncodeCommandReject(proto.CommandReject{Seq: seq, Reason: reason, Retry: retry})
	if err != nil {
		h.logger.Printf("failed to marshal reject for %s: %v", sessionID, err)
		return true
	}
	return h.write(sub, sessionID, data)
}

func (h *Handler) echoHeartbeat(sub *server.Subscriber, sessionID string, msg proto.ClientMessage) bool {
	now := time.Now()
	var rtt int64
	if msg.SentAt > 0 {
		clientTime := time.UnixMilli(msg.SentAt)
		if delta := now.Sub(clientTime); delta > 0 && delta < 5*time.Second {
			rtt = delta.Milliseconds()
		}
	}
	data, err := proto.EncodeHeartbeat(proto.Heartbeat{
		ServerTime: now.UnixMilli(),
		ClientTime: msg.SentAt,
		RTTMillis:  rtt,
	})
	if err != nil {
		h.logger.Printf("failed to marshal heartbeat ack for %s: %v", sessionID, err)
		return true
	}
	return h.write(sub, sessionID, data)
}

func (h *Handler) write(sub *server.Subscriber, sessionID string, data []byte) bool {
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		h.hub.Disconnect(sessionID)
		return false
	}
	return true
}
