// Package operator wires the mailbox, debounce scheduler, reconciliation
// engine, and downstream processor into the message-batching pipeline:
// inbound events accumulate per conversation key until the debounce
// window closes, then the finalized batch is reconciled against platform
// history, dispatched once, and cleared.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/debounce"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/platform"
	"github.com/zulandar/switchboard/internal/processor"
	"github.com/zulandar/switchboard/internal/recovery"
)

// DefaultBatchTimeout is the debounce quiet period before a batch closes.
const DefaultBatchTimeout = 20 * time.Second

// dispatchTimeout bounds the reconcile+process+post work for one batch.
const dispatchTimeout = 2 * time.Minute

// Stats is the operator's introspection snapshot.
type Stats struct {
	ConversationCount int `json:"conversation_count"`
	ThreadCount       int `json:"thread_count"`
	MessageCount      int `json:"message_count"`
	ActiveTimerCount  int `json:"active_timer_count"`
}

// Outcome is one entry of the final-outcomes view: a buffered message
// with the downstream output recorded against it.
type Outcome struct {
	UserID   string `json:"user_id"`
	UserName string `json:"username"`
	Text     string `json:"text"`
	Output   string `json:"output"`
}

// Operator binds the batching components. All state lives in the
// injected structures; the Operator itself holds no locks.
type Operator struct {
	mailbox      *mailbox.Mailbox
	scheduler    debounce.Scheduler
	recovery     *recovery.Engine
	adapter      platform.Adapter
	processor    processor.Processor
	batchTimeout time.Duration
	botUserID    string
	out          io.Writer
}

// Opts holds parameters for creating an Operator.
type Opts struct {
	Mailbox      *mailbox.Mailbox
	Scheduler    debounce.Scheduler
	Recovery     *recovery.Engine
	Adapter      platform.Adapter
	Processor    processor.Processor
	BatchTimeout time.Duration // defaults to DefaultBatchTimeout
	BotUserID    string        // the bot's own user ID, for self-filtering
	Out          io.Writer     // defaults to os.Stdout
}

// New creates an Operator.
func New(opts Opts) (*Operator, error) {
	if opts.Mailbox == nil {
		return nil, fmt.Errorf("operator: mailbox is required")
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("operator: scheduler is required")
	}
	if opts.Recovery == nil {
		return nil, fmt.Errorf("operator: recovery engine is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("operator: adapter is required")
	}
	if opts.Processor == nil {
		return nil, fmt.Errorf("operator: processor is required")
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Operator{
		mailbox:      opts.Mailbox,
		scheduler:    opts.Scheduler,
		recovery:     opts.Recovery,
		adapter:      opts.Adapter,
		processor:    opts.Processor,
		batchTimeout: opts.BatchTimeout,
		botUserID:    opts.BotUserID,
		out:          opts.Out,
	}, nil
}

// Ingest handles one inbound platform event: dedup, filter, buffer, and
// (re)arm the debounce timer for its conversation key. Malformed and
// duplicate events are discarded silently.
func (o *Operator) Ingest(msg platform.InboundMessage) {
	// The platform may redeliver the same event; drop repeats by
	// (channel, event timestamp) identity.
	if o.recovery.IsProcessed(msg.ChannelID, msg.EventTS) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if msg.Bot || (o.botUserID != "" && msg.UserID == o.botUserID) {
		return
	}

	o.recovery.MarkProcessed(msg.ChannelID, msg.EventTS)

	key := mailbox.NewKey(msg.ChannelID, msg.ThreadID)
	o.mailbox.Add(mailbox.Message{
		UserID:    msg.UserID,
		UserName:  msg.UserName,
		Text:      text,
		Timestamp: msg.Timestamp,
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		EventTS:   msg.EventTS,
	})

	fmt.Fprintf(o.out, "operator: buffered message #%d [ch=%s thread=%s user=%s]\n",
		o.mailbox.Count(key), key.ChannelID, key.ThreadID, msg.UserName)

	o.scheduler.Start(key, o.batchTimeout, o.onBatchReady)
}

// onBatchReady runs when a key's debounce window closes. It finalizes
// the batch (snapshot, reconcile, re-read), dispatches it at most once,
// posts the result or a degraded placeholder, and clears the batch
// regardless of outcome. No error here escapes the timer goroutine.
func (o *Operator) onBatchReady(key mailbox.Key) {
	initial := o.mailbox.Get(key)
	if len(initial) == 0 {
		// Already drained by a concurrent path.
		log.Printf("operator: batch timer fired for %s/%s with no buffered messages", key.ChannelID, key.ThreadID)
		return
	}

	// At-most-once: the batch is gone after this point no matter what
	// dispatch does.
	defer o.mailbox.Remove(key)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	recovered := o.recovery.ReconcileBeforeDispatch(ctx, key.ChannelID)

	final := o.mailbox.Get(key)
	fmt.Fprintf(o.out, "operator: dispatching batch of %d message(s) for %s/%s (%d recovered)\n",
		len(final), key.ChannelID, key.ThreadID, recovered)

	result, err := o.processor.Process(ctx, final)
	if err != nil {
		log.Printf("operator: processing batch for %s/%s failed: %v", key.ChannelID, key.ThreadID, err)
		result = processor.DegradedResult(len(final))
	} else {
		o.mailbox.UpdateOutput(key, result)
	}

	threadID := key.ThreadID
	if threadID == mailbox.MainThread {
		threadID = ""
	}
	if err := o.adapter.PostMessage(ctx, key.ChannelID, result, threadID); err != nil {
		log.Printf("operator: post reply to %s/%s failed: %v", key.ChannelID, key.ThreadID, err)
	}
}

// FinalOutcomes returns the currently buffered messages for a key with
// their recorded downstream outputs, as a JSON array.
func (o *Operator) FinalOutcomes(channelID, threadID string) ([]byte, error) {
	msgs := o.mailbox.Get(mailbox.NewKey(channelID, threadID))
	outcomes := make([]Outcome, 0, len(msgs))
	for _, m := range msgs {
		outcomes = append(outcomes, Outcome{
			UserID:   m.UserID,
			UserName: m.UserName,
			Text:     m.Text,
			Output:   m.Output,
		})
	}
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("operator: encode outcomes: %w", err)
	}
	return data, nil
}

// Stats returns mailbox and scheduler counters.
func (o *Operator) Stats() Stats {
	ms := o.mailbox.Stats()
	return Stats{
		ConversationCount: ms.Channels,
		ThreadCount:       ms.Threads,
		MessageCount:      ms.Messages,
		ActiveTimerCount:  o.scheduler.Count(),
	}
}

// Shutdown cancels all pending timers and disables new arming. A batch
// callback already executing is allowed to complete.
func (o *Operator) Shutdown() {
	o.scheduler.StopAll()
}
