package net

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"

	server "github.com/fdamstra/speed-limit-demonstration"
	"github.com/fdamstra/speed-limit-demonstration/internal/net/ws"
	"github.com/fdamstra/speed-limit-demonstration/internal/sim"
	"github.com/fdamstra/speed-limit-demonstration/internal/telemetry"
)

// HTTPHandlerConfig wires the HTTP surface.
type HTTPHandlerConfig struct {
	// ClientDir optionally serves a static viewer from "/".
	ClientDir string
	Logger    telemetry.Logger
}

// httpSessionID labels commands staged through plain HTTP endpoints, which
// carry no per-session identity.
const httpSessionID = "http"

// NewHTTPHandler builds the server mux: health and diagnostics probes,
// configuration intake and its JSON Schema, lifecycle commands, the
// websocket upgrade, and the optional static client.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string             `json:"status"`
			ServerTime int64              `json:"serverTime"`
			TickRate   int                `json:"tickRate"`
			Sim        server.Diagnostics `json:"sim"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   sim.TickRate,
			Sim:        hub.DiagnosticsSnapshot(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/config", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if r.Body == nil {
			httpError(w, "missing payload", nethttp.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		var patch sim.ConfigPatch
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&patch); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}

		cmd, ok, reason := hub.StageConfigPatch(httpSessionID, patch)
		if !ok {
			status := nethttp.StatusBadRequest
			if reason == sim.CommandRejectQueueFull || reason == sim.CommandRejectQueueLimit {
				status = nethttp.StatusServiceUnavailable
			}
			httpError(w, reason, status)
			return
		}

		writeJSON(w, struct {
			Status     string `json:"status"`
			OriginTick uint64 `json:"originTick"`
		}{Status: "staged", OriginTick: cmd.OriginTick})
	})

	mux.HandleFunc("/config/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		schema := jsonschema.Reflect(&sim.ConfigPatch{})
		writeJSON(w, schema)
	})

	lifecycle := func(commandType sim.CommandType) nethttp.HandlerFunc {
		return func(w nethttp.ResponseWriter, r *nethttp.Request) {
			if r.Method != nethttp.MethodPost {
				httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
				return
			}
			cmd, ok, reason := hub.StageLifecycle(httpSessionID, commandType)
			if !ok {
				httpError(w, reason, nethttp.StatusServiceUnavailable)
				return
			}
			writeJSON(w, struct {
				Status     string `json:"status"`
				OriginTick uint64 `json:"originTick"`
			}{Status: "staged", OriginTick: cmd.OriginTick})
		}
	}
	mux.HandleFunc("/sim/start", lifecycle(sim.CommandStart))
	mux.HandleFunc("/sim/pause", lifecycle(sim.CommandPause))
	mux.HandleFunc("/sim/reset", lifecycle(sim.CommandReset))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	session := ws.NewHandler(hub, logger)

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
			return
		}
		go session.Serve(conn)
	})

	if cfg.ClientDir != "" {
		mux.Handle("/", nethttp.FileServer(nethttp.Dir(cfg.ClientDir)))
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
