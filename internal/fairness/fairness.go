// Package fairness keeps each user to at most one request in flight.
// A user's first request becomes "current processing"; the rest wait in
// a persisted per-user queue until an external caller marks the user
// free and pops the next one.
package fairness

import (
	"fmt"
	"sync"
)

// UserState is the persisted per-user record.
type UserState struct {
	Free    bool     `json:"free"`
	Pending []string `json:"pending,omitempty"`
}

// Document is the whole persisted state: user ID to state. Stores read
// and write it as a single unit, never field by field.
type Document map[string]UserState

// Store persists the fairness document. Whole-document semantics only.
// Implementations are not required to be safe against concurrent writers
// from separate processes; the Queue serializes access within one.
type Store interface {
	Read() (Document, error)
	Write(Document) error
}

// Status classifies the outcome of a Submit call.
type Status string

const (
	// StatusAccepted: user was free; first request is now current, the
	// remainder persisted, user marked busy.
	StatusAccepted Status = "accepted"
	// StatusQueued: user was busy with an empty queue; the requests
	// were persisted for later instead of being dropped, keeping the
	// one-in-flight guarantee without losing input.
	StatusQueued Status = "queued"
	// StatusConflict: user already has pending requests; nothing was
	// mutated. The caller should present continue/discard/merge choices.
	StatusConflict Status = "conflict"
)

// SubmitResult reports what Submit did.
type SubmitResult struct {
	Status  Status
	Current string   // set when StatusAccepted
	Pending []string // persisted queue after the call (or the conflicting one)
}

// UserStatus is a read-only view of one user's state.
type UserStatus struct {
	UserID          string   `json:"user_id"`
	PendingRequests []string `json:"pending_requests"`
	PendingCount    int      `json:"pending_count"`
	Free            bool     `json:"is_free"`
}

// Queue coordinates per-user busy/free state and pending requests over
// an injected Store. Every operation is a whole-document
// read-modify-write under one mutex.
type Queue struct {
	mu    sync.Mutex
	store Store
}

// NewQueue creates a Queue backed by store.
func NewQueue(store Store) (*Queue, error) {
	if store == nil {
		return nil, fmt.Errorf("fairness: store is required")
	}
	return &Queue{store: store}, nil
}

// Submit hands a user's ordered requests to the queue. See Status values
// for the three outcomes.
func (q *Queue) Submit(userID string, requests []string) (SubmitResult, error) {
	if len(requests) == 0 {
		return SubmitResult{}, fmt.Errorf("fairness: submit for %s: no requests", userID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("fairness: read state: %w", err)
	}

	state, exists := doc[userID]
	if len(state.Pending) > 0 {
		pending := append([]string(nil), state.Pending...)
		return SubmitResult{Status: StatusConflict, Pending: pending}, nil
	}

	free := !exists || state.Free
	if !free {
		state.Pending = append([]string(nil), requests...)
		doc[userID] = state
		if err := q.store.Write(doc); err != nil {
			return SubmitResult{}, fmt.Errorf("fairness: write state: %w", err)
		}
		return SubmitResult{Status: StatusQueued, Pending: state.Pending}, nil
	}

	state.Free = false
	state.Pending = append([]string(nil), requests[1:]...)
	doc[userID] = state
	if err := q.store.Write(doc); err != nil {
		return SubmitResult{}, fmt.Errorf("fairness: write state: %w", err)
	}
	return SubmitResult{Status: StatusAccepted, Current: requests[0], Pending: state.Pending}, nil
}

// NextForUser pops and returns the head of the user's pending queue.
// The second return is false when the queue is empty.
func (q *Queue) NextForUser(userID string) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return "", false, fmt.Errorf("fairness: read state: %w", err)
	}

	state := doc[userID]
	if len(state.Pending) == 0 {
		return "", false, nil
	}

	next := state.Pending[0]
	state.Pending = append([]string(nil), state.Pending[1:]...)
	doc[userID] = state
	if err := q.store.Write(doc); err != nil {
		return "", false, fmt.Errorf("fairness: write state: %w", err)
	}
	return next, true, nil
}

// MarkBusy flags the user as having a request in processing. Idempotent.
func (q *Queue) MarkBusy(userID string) error {
	return q.setFree(userID, false)
}

// MarkFree flags the user's current request as complete. Idempotent.
func (q *Queue) MarkFree(userID string) error {
	return q.setFree(userID, true)
}

func (q *Queue) setFree(userID string, free bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return fmt.Errorf("fairness: read state: %w", err)
	}
	state := doc[userID]
	state.Free = free
	doc[userID] = state
	if err := q.store.Write(doc); err != nil {
		return fmt.Errorf("fairness: write state: %w", err)
	}
	return nil
}

// Status returns one user's state. An unknown user reads as free with an
// empty queue.
func (q *Queue) Status(userID string) (UserStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return UserStatus{}, fmt.Errorf("fairness: read state: %w", err)
	}
	state, exists := doc[userID]
	free := !exists || state.Free
	pending := append([]string(nil), state.Pending...)
	return UserStatus{
		UserID:          userID,
		PendingRequests: pending,
		PendingCount:    len(pending),
		Free:            free,
	}, nil
}

// StatusAll returns the state of every known user.
func (q *Queue) StatusAll() (map[string]UserStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return nil, fmt.Errorf("fairness: read state: %w", err)
	}
	out := make(map[string]UserStatus, len(doc))
	for userID, state := range doc {
		pending := append([]string(nil), state.Pending...)
		out[userID] = UserStatus{
			UserID:          userID,
			PendingRequests: pending,
			PendingCount:    len(pending),
			Free:            state.Free,
		}
	}
	return out, nil
}

// Clear drops the user's pending queue, leaving the busy/free flag as is.
func (q *Queue) Clear(userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return fmt.Errorf("fairness: read state: %w", err)
	}
	state, exists := doc[userID]
	if !exists || len(state.Pending) == 0 {
		return nil
	}
	state.Pending = nil
	doc[userID] = state
	if err := q.store.Write(doc); err != nil {
		return fmt.Errorf("fairness: write state: %w", err)
	}
	return nil
}

// ClearAll drops every user's pending queue.
func (q *Queue) ClearAll() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.store.Read()
	if err != nil {
		return fmt.Errorf("fairness: read state: %w", err)
	}
	for userID, state := range doc {
		state.Pending = nil
		doc[userID] = state
	}
	if err := q.store.Write(doc); err != nil {
		return fmt.Errorf("fairness: write state: %w", err)
	}
	return nil
}
