package chat

import (
	"context"
	"strconv"
	"sync"
	"testing"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []PushEvent
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Push(_ context.Context, ev PushEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) pushed() []PushEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PushEvent, len(c.events))
	copy(out, c.events)
	return out
}

func TestConnectionRegistry_Bind(t *testing.T) {
	reg := NewConnectionRegistry()
	conn := newFakeConn("c1")

	reg.Bind(conn, "u1")

	conns := reg.ConnectionsFor("u1")
	if len(conns) != 1 || conns[0].ID() != "c1" {
		t.Errorf("Expected one connection c1, got %v", conns)
	}
	if !reg.Reachable("u1") {
		t.Error("Expected u1 to be reachable")
	}
}

func TestConnectionRegistry_Unbind(t *testing.T) {
	reg := NewConnectionRegistry()
	conn := newFakeConn("c1")

	reg.Bind(conn, "u1")
	reg.Unbind(conn)

	if reg.Reachable("u1") {
		t.Error("Expected u1 to be unreachable after unbind")
	}
	if conns := reg.ConnectionsFor("u1"); len(conns) != 0 {
		t.Errorf("Expected no connections, got %v", conns)
	}
}

func TestConnectionRegistry_MultiDevice(t *testing.T) {
	reg := NewConnectionRegistry()
	conn1 := newFakeConn("c1")
	conn2 := newFakeConn("c2")

	reg.Bind(conn1, "u1")
	reg.Bind(conn2, "u1")

	if got := len(reg.ConnectionsFor("u1")); got != 2 {
		t.Fatalf("Expected 2 connections, got %d", got)
	}

	// Unbinding one device leaves the other reachable.
	reg.Unbind(conn1)

	conns := reg.ConnectionsFor("u1")
	if len(conns) != 1 || conns[0].ID() != "c2" {
		t.Errorf("Expected only c2 to remain, got %v", conns)
	}
}

func TestConnectionRegistry_RebindReplacesOwner(t *testing.T) {
	reg := NewConnectionRegistry()
	conn := newFakeConn("c1")

	reg.Bind(conn, "u1")
	reg.Bind(conn, "u2")

	if reg.Reachable("u1") {
		t.Error("Expected u1 to lose the connection after rebind")
	}
	conns := reg.ConnectionsFor("u2")
	if len(conns) != 1 || conns[0].ID() != "c1" {
		t.Errorf("Expected c1 bound to u2, got %v", conns)
	}
}

func TestConnectionRegistry_BindIdempotent(t *testing.T) {
	reg := NewConnectionRegistry()
	conn := newFakeConn("c1")

	reg.Bind(conn, "u1")
	reg.Bind(conn, "u1")

	if got := len(reg.ConnectionsFor("u1")); got != 1 {
		t.Errorf("Expected 1 connection after double bind, got %d", got)
	}
}

func TestConnectionRegistry_UnbindUnknownIsNoop(t *testing.T) {
	reg := NewConnectionRegistry()
	reg.Unbind(newFakeConn("ghost"))

	if reg.Reachable("ghost") {
		t.Error("Expected no binding for an unknown handle")
	}
}

func TestConnectionRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewConnectionRegistry()
	userID := "concurrentUser"

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			reg.Bind(newFakeConn("conn-"+strconv.Itoa(i)), userID)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			reg.Unbind(newFakeConn("conn-" + strconv.Itoa(i)))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			reg.ConnectionsFor(userID)
			reg.Reachable(userID)
		}
	}()

	wg.Wait()
}
