package device

import "time"

// EndpointStatus is the connection state of one device endpoint.
type EndpointStatus struct {
	URL                 string    `json:"url"`
	Connected           bool      `json:"connected"`
	ConnectedSince      time.Time `json:"connected_since,omitempty"`
	Attempts            int       `json:"attempts"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Frames              uint64    `json:"frames"`
	DecodeErrors        uint64    `json:"decode_errors"`
	LastFrame           time.Time `json:"last_frame,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
}

// Status returns a copy of every endpoint's state in configuration order.
func (m *Manager) Status() []EndpointStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EndpointStatus, 0, len(m.urls))
	for _, url := range m.urls {
		out = append(out, *m.status[url])
	}

	return out
}

func (m *Manager) updateStatus(url string, fn func(*EndpointStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.status[url]; ok {
		fn(s)
	}
}
