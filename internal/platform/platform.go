// Package platform abstracts chat platforms (Slack, Discord) behind a
// single Adapter interface consumed by the operator daemon.
package platform

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management, inbound message
// delivery, outbound posting, and channel history retrieval for one
// chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the
	// adapter is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// PostMessage sends text to a channel, threaded when threadID is
	// non-empty.
	PostMessage(ctx context.Context, channelID, text, threadID string) error

	// History retrieves channel messages with event time >= oldest,
	// ordered oldest first. A limit of 0 means the platform default.
	History(ctx context.Context, channelID string, oldest time.Time, limit int, inclusive bool) ([]HistoryMessage, error)

	// ResolveDisplayName looks up a user's display name. Implementations
	// fall back to the raw user ID on lookup failure.
	ResolveDisplayName(userID string) string

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// BotUserIDer is an optional interface that adapters implement to expose
// the bot's own user ID, enabling self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string    // e.g. "slack", "discord"
	ChannelID string    // platform-specific channel identifier
	ThreadID  string    // sub-thread identifier (empty if top-level)
	UserID    string    // platform-specific user identifier
	UserName  string    // human-readable display name
	Text      string    // raw message text
	Timestamp time.Time // when the message was sent
	EventTS   string    // platform's raw event timestamp, identifies the event
	Bot       bool      // authored by a bot or an event subtype
}

// HistoryMessage is a single message from a channel's authoritative
// history, used by reconciliation to recover dropped events.
type HistoryMessage struct {
	UserID    string
	UserName  string
	Text      string
	ThreadID  string
	Timestamp time.Time
	EventTS   string
	Bot       bool
}
