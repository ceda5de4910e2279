package operator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/zulandar/switchboard/internal/fairness"
	"github.com/zulandar/switchboard/internal/platform"
)

// Daemon runs the operator against a live platform connection: it
// connects the adapter, pumps inbound messages into Ingest, and shuts
// everything down when the context is cancelled.
type Daemon struct {
	operator *Operator
	adapter  platform.Adapter
	fairness *fairness.Queue // optional; enables digest queue summary
	digest   *digestSchedule
	channel  string // default channel for status and digest posts
	out      io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Operator   *Operator
	Adapter    platform.Adapter
	Fairness   *fairness.Queue // optional
	DigestCron string          // optional 5-field cron for the stats digest
	Channel    string          // channel for online/offline/digest posts
	Out        io.Writer       // defaults to os.Stdout
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Operator == nil {
		return nil, fmt.Errorf("operator: daemon: operator is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("operator: daemon: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	var digest *digestSchedule
	if opts.DigestCron != "" {
		d, err := newDigestSchedule(opts.DigestCron)
		if err != nil {
			return nil, fmt.Errorf("operator: daemon: %w", err)
		}
		digest = d
	}
	return &Daemon{
		operator: opts.Operator,
		adapter:  opts.Adapter,
		fairness: opts.Fairness,
		digest:   digest,
		channel:  opts.Channel,
		out:      out,
	}, nil
}

// Run connects the adapter and blocks pumping inbound messages until ctx
// is cancelled. On shutdown it stops the scheduler and closes the
// adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Switchboard connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("operator: daemon: connect: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("operator: daemon: listen: %w", err)
	}

	if d.digest != nil {
		go d.runDigest(ctx)
	}

	fmt.Fprintf(d.out, "Switchboard online\n")
	if d.channel != "" {
		if err := d.adapter.PostMessage(ctx, d.channel, "Switchboard online", ""); err != nil {
			log.Printf("operator: daemon: post online notice: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Switchboard shutting down...\n")
			d.operator.Shutdown()
			d.sendShutdown()
			if err := d.adapter.Close(); err != nil {
				log.Printf("operator: daemon: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Switchboard stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Switchboard inbound channel closed\n")
				d.operator.Shutdown()
				return nil
			}
			d.operator.Ingest(msg)
		}
	}
}

// runDigest posts a periodic one-line stats summary on the configured
// cron schedule. Suppressed when there is nothing buffered and no
// pending fairness queue.
func (d *Daemon) runDigest(ctx context.Context) {
	for {
		wait := d.digest.untilNext()
		if wait <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-timeAfter(wait):
		}

		line := d.digestLine()
		if line == "" {
			continue
		}
		if err := d.adapter.PostMessage(ctx, d.channel, line, ""); err != nil {
			log.Printf("operator: daemon: post digest: %v", err)
		}
	}
}

// digestLine builds the digest text, or "" when there is nothing to say.
func (d *Daemon) digestLine() string {
	stats := d.operator.Stats()

	pendingUsers := 0
	pendingRequests := 0
	if d.fairness != nil {
		all, err := d.fairness.StatusAll()
		if err != nil {
			log.Printf("operator: daemon: digest queue status: %v", err)
		} else {
			for _, st := range all {
				if st.PendingCount > 0 {
					pendingUsers++
					pendingRequests += st.PendingCount
				}
			}
		}
	}

	if stats.MessageCount == 0 && stats.ActiveTimerCount == 0 && pendingRequests == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Switchboard digest: %d message(s) buffered across %d conversation(s), %d timer(s) armed",
		stats.MessageCount, stats.ConversationCount, stats.ActiveTimerCount)
	if pendingRequests > 0 {
		fmt.Fprintf(&b, ", %d queued request(s) for %d user(s)", pendingRequests, pendingUsers)
	}
	return b.String()
}

// sendShutdown posts a shutdown notice (best-effort).
func (d *Daemon) sendShutdown() {
	if d.channel == "" {
		return
	}
	if err := d.adapter.PostMessage(context.Background(), d.channel, "Switchboard shutting down", ""); err != nil {
		log.Printf("operator: daemon: post shutdown notice: %v", err)
	}
}
