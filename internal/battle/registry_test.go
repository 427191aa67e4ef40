package battle

import (
	"errors"
	"testing"
)

type flakySender struct {
	events []any
	fail   bool
}

func (s *flakySender) Send(v any) error {
	if s.fail {
		return errors.New("broken pipe")
	}
	s.events = append(s.events, v)
	return nil
}

func TestRegistryBindAndSendTo(t *testing.T) {
	r := NewRegistry()
	s := &flakySender{}
	r.Bind("b1", "alice", s)

	r.SendTo("b1", "alice", "hello")
	r.SendTo("b1", "bob", "ignored")
	r.SendTo("b2", "alice", "ignored")

	if len(s.events) != 1 || s.events[0] != "hello" {
		t.Fatalf("unexpected deliveries: %v", s.events)
	}
}

func TestRegistryReconnectReplaces(t *testing.T) {
	r := NewRegistry()
	old := &flakySender{}
	fresh := &flakySender{}
	hOld := r.Bind("b1", "alice", old)
	r.Bind("b1", "alice", fresh)

	r.SendTo("b1", "alice", "ping")
	if len(old.events) != 0 || len(fresh.events) != 1 {
		t.Fatalf("send went to stale connection: old=%v fresh=%v", old.events, fresh.events)
	}

	// unbinding the superseded handle must not evict the fresh connection
	if last := r.Unbind(hOld); last {
		t.Fatalf("stale unbind reported last connection")
	}
	if !r.HasLive("b1") {
		t.Fatalf("fresh connection dropped by stale unbind")
	}
}

func TestRegistryUnbindReportsLast(t *testing.T) {
	r := NewRegistry()
	hA := r.Bind("b1", "alice", &flakySender{})
	hB := r.Bind("b1", "bob", &flakySender{})

	if last := r.Unbind(hA); last {
		t.Fatalf("first unbind reported last")
	}
	if last := r.Unbind(hB); !last {
		t.Fatalf("second unbind did not report last")
	}
	if r.HasLive("b1") {
		t.Fatalf("battle still live after both unbinds")
	}
}

func TestRegistryFailedSendDropsConnection(t *testing.T) {
	r := NewRegistry()
	s := &flakySender{fail: true}
	r.Bind("b1", "alice", s)

	r.SendTo("b1", "alice", "x")
	if r.HasLive("b1") {
		t.Fatalf("failing connection not dropped")
	}
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewRegistry()
	a, b := &flakySender{}, &flakySender{}
	r.Bind("b1", "alice", a)
	r.Bind("b1", "bob", b)

	r.Broadcast("b1", "done")
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("broadcast deliveries: alice=%d bob=%d", len(a.events), len(b.events))
	}

	r.Release("b1")
	if r.HasLive("b1") || len(r.Connected("b1")) != 0 {
		t.Fatalf("release left live connections")
	}
}
