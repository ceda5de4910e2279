package operator

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// timeAfter is swapped out in tests to fire digests immediately.
var timeAfter = time.After

// digestSchedule wraps a parsed cron schedule for the stats digest.
type digestSchedule struct {
	sched cron.Schedule
}

func newDigestSchedule(expr string) (*digestSchedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse digest cron %q: %w", expr, err)
	}
	return &digestSchedule{sched: sched}, nil
}

// untilNext returns the duration until the next scheduled fire.
func (d *digestSchedule) untilNext() time.Duration {
	next := d.sched.Next(time.Now())
	w := time.Until(next)
	if w < 0 {
		return 0
	}
	return w
}
