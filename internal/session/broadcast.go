package session

import "github.com/skylinewire/streamd/internal/wire"

// BroadcastUDP sends p to every active slot's UDP context. Fragment buffers
// for a given (type, id) are built once by the caller and shared across
// every recipient of this call — only the per-context send serialization
// differs per client.
func (m *Manager) BroadcastUDP(p wire.Packet) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.slots {
		if !m.slots[i].Active || m.slots[i].UDP == nil {
			continue
		}
		if err := m.slots[i].UDP.SendPacket(p); err != nil {
			log.Warn("broadcast udp send failed", "slot", i, "error", err)
		}
	}
}

// BroadcastTCP sends p to every active slot's TCP context.
func (m *Manager) BroadcastTCP(p wire.Packet) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.slots {
		if !m.slots[i].Active || m.slots[i].TCP == nil {
			continue
		}
		if err := m.slots[i].TCP.SendPacket(p); err != nil {
			log.Warn("broadcast tcp send failed", "slot", i, "error", err)
		}
	}
}
