// Package debounce arms one-shot timers per conversation key. A timer
// fires its callback once no new message has re-armed it for the
// configured quiet period, which closes the batch for that key.
package debounce

import (
	"log"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/mailbox"
)

// Callback runs when a key's debounce window closes. It executes on the
// timer goroutine, outside the scheduler's bookkeeping lock.
type Callback func(key mailbox.Key)

// Scheduler arms, re-arms, and cancels per-key debounce timers. Exactly
// one timer is live per key; arming a key that already has a timer
// replaces it.
type Scheduler interface {
	// Start cancels any existing timer for key, stores callback, and
	// arms a new one-shot timer. No-op after StopAll.
	Start(key mailbox.Key, timeout time.Duration, callback Callback)

	// Reset re-arms key using its previously stored callback. No-op if
	// no callback is on file.
	Reset(key mailbox.Key, timeout time.Duration)

	// Cancel removes and cancels the timer for key if present, and
	// reports whether one existed.
	Cancel(key mailbox.Key) bool

	// Has reports whether a timer is armed for key.
	Has(key mailbox.Key) bool

	// ActiveKeys returns the keys with armed timers.
	ActiveKeys() []mailbox.Key

	// Count returns the number of armed timers.
	Count() int

	// StopAll cancels every outstanding timer and disables future Start
	// calls. Callbacks already executing are allowed to complete.
	StopAll()
}

// entry pairs an armed timer with its callback. Each arm creates a fresh
// entry; the fired goroutine compares entry identity so a timer that was
// replaced after its function was already scheduled cannot fire the old
// batch.
type entry struct {
	timer    *time.Timer
	callback Callback
}

// TimerScheduler implements Scheduler with time.AfterFunc timers.
type TimerScheduler struct {
	mu      sync.Mutex
	entries map[mailbox.Key]*entry
	stopped bool
}

// NewTimerScheduler creates a running TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		entries: make(map[mailbox.Key]*entry),
	}
}

// Start implements Scheduler.
func (s *TimerScheduler) Start(key mailbox.Key, timeout time.Duration, callback Callback) {
	if callback == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.cancelLocked(key)

	e := &entry{callback: callback}
	e.timer = time.AfterFunc(timeout, func() {
		s.fire(key, e)
	})
	s.entries[key] = e
}

// Reset implements Scheduler.
func (s *TimerScheduler) Reset(key mailbox.Key, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	cur, ok := s.entries[key]
	if !ok {
		return
	}
	callback := cur.callback
	s.cancelLocked(key)

	e := &entry{callback: callback}
	e.timer = time.AfterFunc(timeout, func() {
		s.fire(key, e)
	})
	s.entries[key] = e
}

// Cancel implements Scheduler.
func (s *TimerScheduler) Cancel(key mailbox.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

// cancelLocked stops and removes the timer for key. Caller holds s.mu.
func (s *TimerScheduler) cancelLocked(key mailbox.Key) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// fire runs when a timer expires. The entry is removed from bookkeeping
// before the callback executes, so a callback that re-arms the same key
// does not clobber its own removal.
func (s *TimerScheduler) fire(key mailbox.Key, e *entry) {
	s.mu.Lock()
	cur, ok := s.entries[key]
	if !ok || cur != e {
		// Replaced or cancelled after this fire was scheduled.
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("debounce: callback for %s/%s panicked: %v", key.ChannelID, key.ThreadID, r)
		}
	}()
	e.callback(key)
}

// Has implements Scheduler.
func (s *TimerScheduler) Has(key mailbox.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// ActiveKeys implements Scheduler.
func (s *TimerScheduler) ActiveKeys() []mailbox.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]mailbox.Key, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Count implements Scheduler.
func (s *TimerScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StopAll implements Scheduler.
func (s *TimerScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key := range s.entries {
		s.cancelLocked(key)
	}
}
