package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fdamstra/speed-limit-demonstration/internal/net/proto"
	"github.com/fdamstra/speed-limit-demonstration/internal/sim"
)

type recordingViewerConn struct {
	mu        sync.Mutex
	frames    [][]byte
	deadlines []time.Time
}

func (c *recordingViewerConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *recordingViewerConn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, deadline)
	return nil
}

func (c *recordingViewerConn) Close() error { return nil }

func (c *recordingViewerConn) snapshot() ([][]byte, []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([][]byte, len(c.frames))
	copy(frames, c.frames)
	deadlines := make([]time.Time, len(c.deadlines))
	copy(deadlines, c.deadlines)
	return frames, deadlines
}

type failingViewerConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *failingViewerConn) WriteMessage(int, []byte) error {
	return errors.New("peer went away")
}

func (c *failingViewerConn) SetWriteDeadline(time.Time) error { return nil }

func (c *failingViewerConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *failingViewerConn) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func addSubscriber(hub *Hub, id string, conn subscriberConn) {
	hub.mu.Lock()
	hub.subscribers[id] = &Subscriber{id: id, conn: conn}
	hub.mu.Unlock()
}

func TestAfterStepBroadcastsToAllSubscribers(t *testing.T) {
	hub := newTestHub()

	first := &recordingViewerConn{}
	second := &recordingViewerConn{}
	addSubscriber(hub, "viewer-1", first)
	addSubscriber(hub, "viewer-2", second)

	snapshot := hub.LatestSnapshot()
	snapshot.Tick = 42
	before := time.Now()
	hub.afterStep(sim.LoopStepResult{
		Tick:     42,
		Snapshot: snapshot,
		Duration: 3 * time.Millisecond,
		Budget:   40 * time.Millisecond,
	})

	if hub.LatestSnapshot().Tick != 42 {
		t.Fatalf("latest snapshot tick %d, want 42", hub.LatestSnapshot().Tick)
	}

	firstFrames, firstDeadlines := first.snapshot()
	secondFrames, _ := second.snapshot()
	if len(firstFrames) != 1 || len(secondFrames) != 1 {
		t.Fatalf("frames per viewer %d/%d, want 1 each", len(firstFrames), len(secondFrames))
	}
	if string(firstFrames[0]) != string(secondFrames[0]) {
		t.Fatalf("viewers received different payloads")
	}

	var frame struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Tick uint64 `json:"t"`
	}
	if err := json.Unmarshal(firstFrames[0], &frame); err != nil {
		t.Fatalf("unmarshal broadcast frame: %v", err)
	}
	if frame.Ver != proto.Version || frame.Type != proto.TypeState || frame.Tick != 42 {
		t.Fatalf("broadcast frame ver=%d type=%q t=%d", frame.Ver, frame.Type, frame.Tick)
	}

	if len(firstDeadlines) != 1 {
		t.Fatalf("deadlines recorded %d, want 1", len(firstDeadlines))
	}
	if firstDeadlines[0].Before(before.Add(writeWait)) {
		t.Fatalf("write deadline %v precedes %v", firstDeadlines[0], before.Add(writeWait))
	}

	counters := hub.telemetry.Snapshot()
	wantBytes := uint64(2 * len(firstFrames[0]))
	if counters.BytesSent != wantBytes || counters.LastBroadcastBytes != wantBytes {
		t.Fatalf("bytes sent %d last %d, want %d", counters.BytesSent, counters.LastBroadcastBytes, wantBytes)
	}
	if counters.FramesSent != uint64(2*sim.LightCount) {
		t.Fatalf("frames sent %d, want %d", counters.FramesSent, 2*sim.LightCount)
	}
	if counters.TickDuration != 3 {
		t.Fatalf("tick duration %dms, want 3", counters.TickDuration)
	}
}

func TestBroadcastStateDisconnectsFailedWriter(t *testing.T) {
	hub := newTestHub()

	healthy := &recordingViewerConn{}
	broken := &failingViewerConn{}
	addSubscriber(hub, "healthy", healthy)
	addSubscriber(hub, "broken", broken)

	hub.broadcastState(hub.LatestSnapshot())

	hub.mu.Lock()
	_, brokenPresent := hub.subscribers["broken"]
	_, healthyPresent := hub.subscribers["healthy"]
	hub.mu.Unlock()

	if brokenPresent {
		t.Fatalf("failed writer still registered after broadcast")
	}
	if !healthyPresent {
		t.Fatalf("healthy viewer dropped alongside failed writer")
	}
	if !broken.wasClosed() {
		t.Fatalf("failed writer connection left open")
	}

	frames, _ := healthy.snapshot()
	if len(frames) != 1 {
		t.Fatalf("healthy viewer frames %d, want 1", len(frames))
	}
	if subs := hub.telemetry.Snapshot().Subscribers; subs != 1 {
		t.Fatalf("subscriber gauge %d, want 1", subs)
	}
}
