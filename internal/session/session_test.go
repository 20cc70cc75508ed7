package session

import (
	"testing"
	"time"

	"github.com/skylinewire/streamd/internal/control"
)

func newTestManager(capacity int) *Manager {
	return NewManager(capacity, NewPortMapping(capacity, 20000), []byte("0123456789abcdef"))
}

func TestAdmitAssignsLowestFreeSlot(t *testing.T) {
	m := newTestManager(3)

	reply, err := m.Admit(control.DiscoveryRequest{Username: "alice"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if reply.ClientID != 0 {
		t.Fatalf("ClientID = %d, want 0", reply.ClientID)
	}

	reply2, err := m.Admit(control.DiscoveryRequest{Username: "bob"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if reply2.ClientID != 1 {
		t.Fatalf("ClientID = %d, want 1", reply2.ClientID)
	}
}

func TestAdmitReusesSlotForReturningUsername(t *testing.T) {
	m := newTestManager(2)

	first, err := m.Admit(control.DiscoveryRequest{Username: "alice"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	second, err := m.Admit(control.DiscoveryRequest{Username: "alice"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if second.ClientID != first.ClientID {
		t.Fatalf("returning username got slot %d, want reused slot %d", second.ClientID, first.ClientID)
	}
	if second.ConnectionID == first.ConnectionID {
		t.Fatal("expected a fresh connection id for the new admission")
	}
}

func TestAdmitFailsWhenFull(t *testing.T) {
	m := newTestManager(1)
	if _, err := m.Admit(control.DiscoveryRequest{Username: "alice"}); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := m.Admit(control.DiscoveryRequest{Username: "bob"}); err == nil {
		t.Fatal("expected admission to fail once capacity is exhausted")
	}
}

func TestReapStaleEvictsAndStartsGrace(t *testing.T) {
	m := newTestManager(1)
	if _, err := m.Admit(control.DiscoveryRequest{Username: "alice"}); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	m.ActivateSlot(0, nil, nil)
	m.slots[0].LastPing = time.Now().Add(-LivenessAge - time.Second)

	m.reapStale()

	if m.slots[0].Active {
		t.Fatal("expected slot to be reaped")
	}
	if m.slots[0].NongracefulUntil.Before(time.Now()) {
		t.Fatal("expected a nongraceful grace period to be started")
	}
}

func TestShouldExitBeforeStartupGraceWithNoClients(t *testing.T) {
	m := newTestManager(1)
	if m.ShouldExit() {
		t.Fatal("should not exit before startup grace elapses with no clients ever connected")
	}
}

func TestShouldExitFalseWhileActiveClientPresent(t *testing.T) {
	m := newTestManager(1)
	if _, err := m.Admit(control.DiscoveryRequest{Username: "alice"}); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	m.ActivateSlot(0, nil, nil)
	if m.ShouldExit() {
		t.Fatal("should not exit while an active client is present")
	}
}

func TestShouldExitFalseDuringNongracefulGrace(t *testing.T) {
	m := newTestManager(1)
	if _, err := m.Admit(control.DiscoveryRequest{Username: "alice"}); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	m.ActivateSlot(0, nil, nil)
	m.slots[0].LastPing = time.Now().Add(-LivenessAge - time.Second)
	m.reapStale()

	if m.ShouldExit() {
		t.Fatal("should not exit during an active nongraceful grace period")
	}
}

func TestPortMappingAssignsDisjointPorts(t *testing.T) {
	pm := NewPortMapping(3, 20000)
	seen := make(map[uint16]bool)
	for i := 0; i < 3; i++ {
		udp, tcp, err := pm.Ports(i)
		if err != nil {
			t.Fatalf("Ports(%d): %v", i, err)
		}
		if seen[udp] || seen[tcp] {
			t.Fatalf("port collision at slot %d", i)
		}
		seen[udp], seen[tcp] = true, true
	}
	if _, _, err := pm.Ports(3); err == nil {
		t.Fatal("expected out-of-range slot to error")
	}
}
