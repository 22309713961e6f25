package sim

import "testing"

func TestCommandBufferFIFO(t *testing.T) {
	buffer := NewCommandBuffer(4, nil)
	for _, typ := range []CommandType{CommandStart, CommandPause, CommandReset} {
		if !buffer.Push(Command{Type: typ}) {
			t.Fatalf("push %s failed", typ)
		}
	}
	if buffer.Len() != 3 {
		t.Fatalf("len %d, want 3", buffer.Len())
	}

	drained := buffer.Drain()
	want := []CommandType{CommandStart, CommandPause, CommandReset}
	if len(drained) != len(want) {
		t.Fatalf("drained %d commands, want %d", len(drained), len(want))
	}
	for i, cmd := range drained {
		if cmd.Type != want[i] {
			t.Fatalf("drained[%d] = %s, want %s", i, cmd.Type, want[i])
		}
	}
	if buffer.Len() != 0 || buffer.Drain() != nil {
		t.Fatalf("buffer not empty after drain")
	}
}

func TestCommandBufferOverflow(t *testing.T) {
	buffer := NewCommandBuffer(2, nil)
	if !buffer.Push(Command{Type: CommandStart}) || !buffer.Push(Command{Type: CommandPause}) {
		t.Fatalf("fill failed")
	}
	if buffer.Push(Command{Type: CommandReset}) {
		t.Fatalf("push beyond capacity succeeded")
	}

	drained := buffer.Drain()
	if len(drained) != 2 || drained[0].Type != CommandStart || drained[1].Type != CommandPause {
		t.Fatalf("overflow corrupted contents: %+v", drained)
	}
}

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(2, nil)
	for round := 0; round < 5; round++ {
		if !buffer.Push(Command{Type: CommandStart, SessionID: "a"}) {
			t.Fatalf("round %d: push failed", round)
		}
		if !buffer.Push(Command{Type: CommandPause, SessionID: "b"}) {
			t.Fatalf("round %d: push failed", round)
		}
		drained := buffer.Drain()
		if len(drained) != 2 || drained[0].SessionID != "a" || drained[1].SessionID != "b" {
			t.Fatalf("round %d: drained %+v", round, drained)
		}
	}
}

func TestCommandBufferMinimumCapacity(t *testing.T) {
	buffer := NewCommandBuffer(0, nil)
	if buffer.Capacity() != 1 {
		t.Fatalf("capacity %d, want 1", buffer.Capacity())
	}
}
