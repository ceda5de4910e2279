package platform

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Posted records one PostMessage call made against a MockAdapter.
type Posted struct {
	ChannelID string
	Text      string
	ThreadID  string
}

// MockAdapter implements Adapter for testing. It records posted messages,
// serves pre-seeded history, and lets tests push inbound messages via
// SimulateInbound.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan InboundMessage
	posted    []Posted
	history   map[string][]HistoryMessage // key: channelID
	names     map[string]string
	botUserID string

	// PostErr, when set, is returned by every PostMessage call.
	PostErr error
	// HistoryErr, when set, is returned by every History call.
	HistoryErr error
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound: make(chan InboundMessage, 100),
		history: make(map[string][]HistoryMessage),
		names:   make(map[string]string),
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

// Listen returns the inbound message channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// PostMessage records the outbound message.
func (m *MockAdapter) PostMessage(ctx context.Context, channelID, text, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PostErr != nil {
		return m.PostErr
	}
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	m.posted = append(m.posted, Posted{ChannelID: channelID, Text: text, ThreadID: threadID})
	return nil
}

// History returns pre-seeded history for a channel, filtered by oldest.
func (m *MockAdapter) History(ctx context.Context, channelID string, oldest time.Time, limit int, inclusive bool) ([]HistoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	var out []HistoryMessage
	for _, h := range m.history[channelID] {
		if h.Timestamp.Before(oldest) && !(inclusive && h.Timestamp.Equal(oldest)) {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ResolveDisplayName returns a seeded display name or the user ID.
func (m *MockAdapter) ResolveDisplayName(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.names[userID]; ok {
		return name
	}
	return userID
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

// BotUserID returns the configured bot user ID (implements BotUserIDer).
func (m *MockAdapter) BotUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID
}

// SetBotUserID sets the bot user ID for testing.
func (m *MockAdapter) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = id
}

// SetDisplayName seeds a user ID to display name mapping.
func (m *MockAdapter) SetDisplayName(userID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[userID] = name
}

// SeedHistory appends messages to a channel's served history.
func (m *MockAdapter) SeedHistory(channelID string, msgs ...HistoryMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[channelID] = append(m.history[channelID], msgs...)
}

// SimulateInbound pushes a message onto the inbound channel.
func (m *MockAdapter) SimulateInbound(msg InboundMessage) {
	m.inbound <- msg
}

// PostedMessages returns a copy of all recorded PostMessage calls.
func (m *MockAdapter) PostedMessages() []Posted {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Posted, len(m.posted))
	copy(out, m.posted)
	return out
}
