// Package mailbox accumulates inbound chat messages per conversation key
// until the debounce window closes and the batch is dispatched.
package mailbox

import (
	"sync"
	"time"
)

// MainThread is the normalized thread ID for top-level channel messages.
const MainThread = "main"

// Key identifies one independent batching unit: a channel plus an
// optional sub-thread. Messages under distinct keys never interact.
type Key struct {
	ChannelID string
	ThreadID  string
}

// NewKey builds a Key, normalizing an empty thread ID to MainThread.
func NewKey(channelID, threadID string) Key {
	if threadID == "" {
		threadID = MainThread
	}
	return Key{ChannelID: channelID, ThreadID: threadID}
}

// Message is a single buffered chat message awaiting dispatch.
type Message struct {
	UserID    string
	UserName  string
	Text      string
	Timestamp time.Time
	ChannelID string
	ThreadID  string
	// EventTS is the platform's raw event timestamp (e.g. Slack's
	// "1719849600.000100"). It identifies the event for dedup and for
	// exact-match comparison during reconciliation.
	EventTS string
	// Output holds the downstream processor's result, recorded after
	// dispatch for audit only.
	Output string
}

// Stats summarizes mailbox contents.
type Stats struct {
	Channels int `json:"channels"`
	Threads  int `json:"threads"`
	Messages int `json:"messages"`
}

// Mailbox is a thread-safe accumulation buffer keyed by conversation.
// All operations are O(1)-ish structural mutations under one coarse
// mutex; none of them perform I/O.
type Mailbox struct {
	mu           sync.Mutex
	messages     map[Key][]Message
	lastActivity map[Key]time.Time
}

// New creates an empty Mailbox.
func New() *Mailbox {
	return &Mailbox{
		messages:     make(map[Key][]Message),
		lastActivity: make(map[Key]time.Time),
	}
}

// Add appends a message under its conversation key. Messages for a given
// key are retained in arrival order.
func (m *Mailbox) Add(msg Message) {
	key := NewKey(msg.ChannelID, msg.ThreadID)
	msg.ThreadID = key.ThreadID

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[key] = append(m.messages[key], msg)
	m.lastActivity[key] = time.Now()
}

// Get returns a snapshot copy of the messages for a key. Callers never
// observe concurrent mutation through the returned slice.
func (m *Mailbox) Get(key Key) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[key]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Remove atomically pops and returns all messages for a key. Returns an
// empty slice if the key is absent.
func (m *Mailbox) Remove(key Key) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[key]
	delete(m.messages, key)
	delete(m.lastActivity, key)
	return msgs
}

// UpdateOutput sets the downstream output on every message currently
// stored for a key. Idempotent; audit use only.
func (m *Mailbox) UpdateOutput(key Key, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[key]
	for i := range msgs {
		msgs[i].Output = output
	}
}

// Count returns the number of messages buffered for a key.
func (m *Mailbox) Count(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[key])
}

// LastActivity returns the arrival time of the most recent message for a
// key, and whether any message has arrived.
func (m *Mailbox) LastActivity(key Key) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lastActivity[key]
	return t, ok
}

// ClearAll drops every buffered message.
func (m *Mailbox) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = make(map[Key][]Message)
	m.lastActivity = make(map[Key]time.Time)
}

// Stats counts distinct channels, distinct keys, and total messages.
func (m *Mailbox) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make(map[string]struct{})
	total := 0
	for key, msgs := range m.messages {
		channels[key.ChannelID] = struct{}{}
		total += len(msgs)
	}
	return Stats{
		Channels: len(channels),
		Threads:  len(m.messages),
		Messages: total,
	}
}
