package courier

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// MockAdapter implements Adapter for testing. It records everything sent,
// edited, or acknowledged, and allows simulating inbound events.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan Event
	sent      []Outbound
	refs      []string // surface refs returned by Send, parallel to sent
	edits     map[string]Outbound
	photos    []MockPhoto
	alerts    []string
	acks      []string
	avatars   map[int64]image.Image
	refSeq    int
}

// MockPhoto is one recorded SendPhoto call.
type MockPhoto struct {
	ChatID  int64
	PNG     []byte
	Caption string
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound: make(chan Event, 100),
		edits:   make(map[string]Outbound),
		avatars: make(map[int64]image.Image),
	}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound event channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message and returns a synthetic surface ref.
func (m *MockAdapter) Send(ctx context.Context, msg Outbound) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refSeq++
	ref := fmt.Sprintf("msg-%d", m.refSeq)
	m.sent = append(m.sent, msg)
	m.refs = append(m.refs, ref)
	return ref, nil
}

// Edit records the edit keyed by surface ref.
func (m *MockAdapter) Edit(ctx context.Context, chatID int64, surfaceRef string, msg Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[surfaceRef] = msg
	return nil
}

// SendPhoto records the photo.
func (m *MockAdapter) SendPhoto(ctx context.Context, chatID int64, pngData []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, MockPhoto{ChatID: chatID, PNG: pngData, Caption: caption})
	return nil
}

// Alert records the alert text.
func (m *MockAdapter) Alert(ctx context.Context, pressID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, text)
	return nil
}

// Ack records the toast text (possibly empty).
func (m *MockAdapter) Ack(ctx context.Context, pressID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, text)
	return nil
}

// Avatar returns a pre-configured avatar, or (nil, nil) when unset.
func (m *MockAdapter) Avatar(ctx context.Context, userID int64) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avatars[userID], nil
}

// Close shuts down the mock adapter and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// --- Test helpers ---

// SimulateInbound feeds an event as if it came from the platform.
func (m *MockAdapter) SimulateInbound(ev Event) {
	m.inbound <- ev
}

// SetAvatar pre-configures an avatar for Avatar calls.
func (m *MockAdapter) SetAvatar(userID int64, img image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.avatars[userID] = img
}

// LastSent returns the most recent Send call and its surface ref.
func (m *MockAdapter) LastSent() (Outbound, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Outbound{}, "", false
	}
	return m.sent[len(m.sent)-1], m.refs[len(m.refs)-1], true
}

// AllSent returns a copy of all Send calls.
func (m *MockAdapter) AllSent() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outbound, len(m.sent))
	copy(out, m.sent)
	return out
}

// EditFor returns the recorded edit for a surface ref.
func (m *MockAdapter) EditFor(surfaceRef string) (Outbound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.edits[surfaceRef]
	return msg, ok
}

// Alerts returns a copy of all alert texts.
func (m *MockAdapter) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Photos returns a copy of all SendPhoto calls.
func (m *MockAdapter) Photos() []MockPhoto {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPhoto, len(m.photos))
	copy(out, m.photos)
	return out
}
