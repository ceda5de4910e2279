// Package processor defines the downstream batch processor that receives
// finalized batches and returns a textual result. The operator makes
// at most one attempt per batch; a failed attempt is not retried at the
// batch level.
package processor

import (
	"context"
	"fmt"

	"github.com/zulandar/switchboard/internal/mailbox"
)

// Processor consumes one finalized batch and returns a textual result
// for posting back to the conversation.
type Processor interface {
	// Process handles the batch. The returned string is the
	// user-visible result; a non-nil error means the batch could not
	// be processed and the caller should degrade.
	Process(ctx context.Context, batch []mailbox.Message) (string, error)

	// HealthCheck reports whether the processor is reachable.
	HealthCheck(ctx context.Context) error
}

// Mock is a Processor that acknowledges batches without doing any work.
// Used in tests and as the runtime fallback when no endpoint is
// configured or the configured one fails its health check.
type Mock struct{}

// Process returns a canned summary of the batch.
func (Mock) Process(ctx context.Context, batch []mailbox.Message) (string, error) {
	if len(batch) == 0 {
		return "", fmt.Errorf("processor: empty batch")
	}
	return fmt.Sprintf("Processed %d %s", len(batch), plural(len(batch))), nil
}

// HealthCheck always succeeds.
func (Mock) HealthCheck(ctx context.Context) error { return nil }

func plural(n int) string {
	if n == 1 {
		return "message"
	}
	return "messages"
}

// DegradedResult builds the placeholder posted when processing fails.
// The batch is still cleared; the user sees this instead of silence.
func DegradedResult(batchSize int) string {
	return fmt.Sprintf("Received %d %s (processing failed, please try again)", batchSize, plural(batchSize))
}
