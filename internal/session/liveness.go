package session

import "time"

// RunLivenessScanner reaps any active slot whose last_ping age exceeds
// LivenessAge, every LivenessInterval, until stop is closed. A reaped slot
// starts a nongraceful grace period and, if it held the host assignment,
// clears it.
func (m *Manager) RunLivenessScanner(stop <-chan struct{}) {
	ticker := time.NewTicker(LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.reapStale()
		}
	}
}

func (m *Manager) reapStale() {
	now := time.Now()

	m.mu.Lock()
	var reaped []int
	for i := range m.slots {
		if !m.slots[i].Active {
			continue
		}
		if now.Sub(m.slots[i].LastPing) <= LivenessAge {
			continue
		}
		log.Info("reaping unresponsive client", "slot", i, "username", m.slots[i].Username)
		if m.slots[i].UDP != nil {
			m.slots[i].UDP.Destroy()
		}
		if m.slots[i].TCP != nil {
			m.slots[i].TCP.Destroy()
		}
		m.slots[i].reset()
		m.slots[i].NongracefulUntil = now.Add(NongracefulGrace)
		reaped = append(reaped, i)
	}
	m.mu.Unlock()

	if len(reaped) == 0 {
		return
	}
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	for _, idx := range reaped {
		if m.hostSlot == idx {
			m.setHostLocked(-1)
		}
	}
}
