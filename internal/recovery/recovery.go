// Package recovery compensates for the chat platform's real-time feed
// silently dropping messages. Before a batch is dispatched, the engine
// pulls a short trailing window of authoritative channel history and
// merges any missing events into the mailbox.
package recovery

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/platform"
)

const (
	// DefaultLookback is how far back the history fetch reaches.
	DefaultLookback = 30 * time.Second
	// DefaultMinCheckInterval is the minimum gap between two history
	// checks of the same channel.
	DefaultMinCheckInterval = 25 * time.Second
	// DefaultMaxProcessed caps the processed-event record. When
	// exceeded, the record is trimmed to its most recent half.
	DefaultMaxProcessed = 10000
	// historyPageLimit bounds a single history fetch.
	historyPageLimit = 100
)

// EventID identifies one platform event for dedup purposes.
type EventID struct {
	ChannelID string
	EventTS   string
}

// HistorySource provides channel history. *platform.Adapter
// implementations satisfy it.
type HistorySource interface {
	History(ctx context.Context, channelID string, oldest time.Time, limit int, inclusive bool) ([]platform.HistoryMessage, error)
}

// Engine reconciles buffered batches against platform history. The
// processed-event record is a best-effort bound (trim-to-half past the
// cap): an event redelivered long after a trim can be re-recovered, which
// is acceptable because the lookback window is only a few dozen seconds.
type Engine struct {
	mailbox          *mailbox.Mailbox
	source           HistorySource
	botUserID        string
	lookback         time.Duration
	minCheckInterval time.Duration
	maxProcessed     int
	out              io.Writer

	mu        sync.Mutex
	processed map[EventID]struct{}
	order     []EventID // insertion order, for trimming
	lastCheck map[string]time.Time
}

// Opts holds parameters for creating an Engine.
type Opts struct {
	Mailbox          *mailbox.Mailbox
	Source           HistorySource
	BotUserID        string
	Lookback         time.Duration // defaults to DefaultLookback
	MinCheckInterval time.Duration // defaults to DefaultMinCheckInterval
	MaxProcessed     int           // defaults to DefaultMaxProcessed
	Out              io.Writer     // defaults to os.Stdout
}

// New creates a reconciliation Engine.
func New(opts Opts) (*Engine, error) {
	if opts.Mailbox == nil {
		return nil, fmt.Errorf("recovery: mailbox is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("recovery: history source is required")
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.MinCheckInterval <= 0 {
		opts.MinCheckInterval = DefaultMinCheckInterval
	}
	if opts.MaxProcessed <= 0 {
		opts.MaxProcessed = DefaultMaxProcessed
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Engine{
		mailbox:          opts.Mailbox,
		source:           opts.Source,
		botUserID:        opts.BotUserID,
		lookback:         opts.Lookback,
		minCheckInterval: opts.MinCheckInterval,
		maxProcessed:     opts.MaxProcessed,
		out:              opts.Out,
		processed:        make(map[EventID]struct{}),
		lastCheck:        make(map[string]time.Time),
	}, nil
}

// MarkProcessed records an event identifier so reconciliation and
// redelivery never ingest it again (within the record's bound).
func (e *Engine) MarkProcessed(channelID, eventTS string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markLocked(EventID{ChannelID: channelID, EventTS: eventTS})
}

// IsProcessed reports whether an event identifier was already ingested
// or recovered.
func (e *Engine) IsProcessed(channelID, eventTS string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.processed[EventID{ChannelID: channelID, EventTS: eventTS}]
	return ok
}

// ProcessedCount returns the current size of the processed-event record.
func (e *Engine) ProcessedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.processed)
}

// markLocked inserts an identifier and trims the record to its most
// recent half once the cap is exceeded. Caller holds e.mu.
func (e *Engine) markLocked(id EventID) {
	if _, ok := e.processed[id]; ok {
		return
	}
	e.processed[id] = struct{}{}
	e.order = append(e.order, id)

	if len(e.order) <= e.maxProcessed {
		return
	}
	keep := e.maxProcessed / 2
	drop := e.order[:len(e.order)-keep]
	for _, old := range drop {
		delete(e.processed, old)
	}
	e.order = append([]EventID(nil), e.order[len(e.order)-keep:]...)
}

// ReconcileBeforeDispatch fetches the trailing history window for a
// channel and merges any missing events straight into the mailbox. It
// returns the number of recovered messages.
//
// Called from inside the already-firing debounce callback, so it never
// arms a new timer: doing so would delay the batch indefinitely while
// messages trickle in. Fetch errors (including remote rate limits) are
// logged and treated as zero messages recovered; the batch dispatch
// proceeds regardless.
func (e *Engine) ReconcileBeforeDispatch(ctx context.Context, channelID string) int {
	now := time.Now()

	// Per-channel watermark: skip silently if checked too recently.
	e.mu.Lock()
	if last, ok := e.lastCheck[channelID]; ok && now.Sub(last) < e.minCheckInterval {
		e.mu.Unlock()
		return 0
	}
	e.lastCheck[channelID] = now
	e.mu.Unlock()

	// Network fetch happens with no engine or mailbox lock held.
	oldest := now.Add(-e.lookback)
	msgs, err := e.source.History(ctx, channelID, oldest, historyPageLimit, true)
	if err != nil {
		log.Printf("recovery: history fetch for %s failed, recovering nothing: %v", channelID, err)
		return 0
	}

	recovered := 0
	for _, msg := range msgs {
		if !e.shouldRecover(channelID, msg) {
			continue
		}
		e.mailbox.Add(mailbox.Message{
			UserID:    msg.UserID,
			UserName:  msg.UserName,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
			ChannelID: channelID,
			ThreadID:  msg.ThreadID,
			EventTS:   msg.EventTS,
		})
		e.MarkProcessed(channelID, msg.EventTS)
		recovered++
	}

	if recovered > 0 {
		fmt.Fprintf(e.out, "recovery: merged %d missing message(s) into batch for %s\n", recovered, channelID)
	}
	return recovered
}

// shouldRecover applies the recovery filter chain, in order: already
// processed; authored by the bot itself; empty text; already present in
// the live mailbox (exact event-timestamp match, which also marks the
// event processed).
func (e *Engine) shouldRecover(channelID string, msg platform.HistoryMessage) bool {
	id := EventID{ChannelID: channelID, EventTS: msg.EventTS}

	e.mu.Lock()
	_, seen := e.processed[id]
	e.mu.Unlock()
	if seen {
		return false
	}

	if msg.Bot || (e.botUserID != "" && msg.UserID == e.botUserID) {
		return false
	}

	if isBlank(msg.Text) {
		return false
	}

	key := mailbox.NewKey(channelID, msg.ThreadID)
	for _, stored := range e.mailbox.Get(key) {
		if stored.EventTS == msg.EventTS {
			e.mu.Lock()
			e.markLocked(id)
			e.mu.Unlock()
			return false
		}
	}
	return true
}

// isBlank reports whether s is empty or whitespace-only.
func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
