package proto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fdamstra/speed-limit-demonstration/internal/sim"
)

func TestDecodeClientMessageDefaultsVersion(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"start"}`))
	require.NoError(t, err)
	require.Equal(t, Version, msg.Ver)
	require.Equal(t, TypeStart, msg.Type)
}

func TestDecodeClientMessageRejectsUnknownVersion(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"ver":99,"type":"start"}`))
	require.Error(t, err)
}

func TestDecodeClientMessageRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":`))
	require.Error(t, err)
}

func TestDecodeClientMessageConfigPatch(t *testing.T) {
	payload := []byte(`{"ver":1,"type":"config","seq":7,"config":{"speedLimitMph":35,"middleLightPositionPercent":40}}`)
	msg, err := DecodeClientMessage(payload)
	require.NoError(t, err)
	require.NotNil(t, msg.CommandSeq)
	require.EqualValues(t, 7, *msg.CommandSeq)
	require.NotNil(t, msg.Config)
	require.NotNil(t, msg.Config.SpeedLimitMPH)
	require.Equal(t, 35.0, *msg.Config.SpeedLimitMPH)
	require.NotNil(t, msg.Config.MiddleLightPercent)
	require.Equal(t, 40.0, *msg.Config.MiddleLightPercent)
}

func TestClientCommandMapping(t *testing.T) {
	speed := 30.0
	cases := []struct {
		name     string
		msg      ClientMessage
		wantType sim.CommandType
		ok       bool
	}{
		{"start", ClientMessage{Type: TypeStart}, sim.CommandStart, true},
		{"pause", ClientMessage{Type: TypePause}, sim.CommandPause, true},
		{"reset", ClientMessage{Type: TypeReset}, sim.CommandReset, true},
		{"config", ClientMessage{Type: TypeConfig, Config: &sim.ConfigPatch{SpeedLimitMPH: &speed}}, sim.CommandUpdateConfig, true},
		{"config without patch", ClientMessage{Type: TypeConfig}, "", false},
		{"heartbeat is not a command", ClientMessage{Type: TypeHeartbeat}, "", false},
		{"unknown", ClientMessage{Type: "teleport"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := ClientCommand(tc.msg)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.wantType, cmd.Type)
			}
		})
	}
}

func TestStateFromSnapshotFillsFrame(t *testing.T) {
	world := sim.NewWorld(sim.DefaultConfig(), sim.Deps{})
	snapshot := world.Snapshot()
	now := time.UnixMilli(1700000000123)

	frame := StateFromSnapshot(snapshot, now)
	require.Equal(t, Version, frame.Ver)
	require.Equal(t, TypeState, frame.Type)
	require.Equal(t, snapshot.Tick, frame.Tick)
	require.Equal(t, int64(1700000000123), frame.ServerTime)
	require.Len(t, frame.Lights, 3)

	payload, err := EncodeState(frame)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "state", decoded["type"])
	require.Equal(t, float64(Version), decoded["ver"])
	require.Contains(t, decoded, "t")
	require.Contains(t, decoded, "roadLength")
}

func TestEncodeHelloDefaults(t *testing.T) {
	payload, err := EncodeHello(HelloV1{Session: "abc", Config: sim.DefaultConfig()})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "hello", decoded["type"])
	require.Equal(t, float64(Version), decoded["ver"])
	require.Equal(t, "abc", decoded["session"])
	require.Equal(t, float64(sim.TickRate), decoded["tickRate"])
}

func TestEncodeCommandAck(t *testing.T) {
	payload, err := EncodeCommandAck(CommandAck{Seq: 9, Tick: 42})
	require.NoError(t, err)
	require.JSONEq(t, `{"ver":1,"type":"commandAck","seq":9,"tick":42}`, string(payload))

	payload, err = EncodeCommandAck(CommandAck{Seq: 9})
	require.NoError(t, err)
	require.JSONEq(t, `{"ver":1,"type":"commandAck","seq":9}`, string(payload))
}

func TestEncodeCommandReject(t *testing.T) {
	payload, err := EncodeCommandReject(CommandReject{Seq: 4, Reason: "queue_full", Retry: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"ver":1,"type":"commandReject","seq":4,"reason":"queue_full","retry":true}`, string(payload))
}

func TestEncodeHeartbeat(t *testing.T) {
	payload, err := EncodeHeartbeat(Heartbeat{ServerTime: 200, ClientTime: 150, RTTMillis: 50})
	require.NoError(t, err)
	require.JSONEq(t, `{"ver":1,"type":"heartbeat","serverTime":200,"clientTime":150,"rtt":50}`, string(payload))
}
